package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/n1rna/invadmin/internal/schema"
)

type SchemaCommand struct{}

func NewSchemaCommand(groupId string) *cobra.Command {
	sc := &SchemaCommand{}

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect entity manifests",
		Long: `Inspect the manifests describing each entity type.

Manifests list the fields of an entity, their kinds, defaults and relationship
targets. Built-in manifests can be extended or overridden with YAML files from
the directory named by $INVADMIN_MANIFESTS.`,
		GroupID: groupId,
	}

	cmd.AddCommand(
		sc.newListCommand(),
		sc.newShowCommand(),
		sc.newValidateCommand(),
	)

	return cmd
}

func (c *SchemaCommand) newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List entity types",
		Args:  cobra.NoArgs,
		RunE:  c.runList,
	}
}

func (c *SchemaCommand) newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [entity]",
		Short: "Show the fields of an entity type",
		Args:  cobra.ExactArgs(1),
		RunE:  c.runShow,
	}
}

func (c *SchemaCommand) newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [dir]",
		Short: "Validate manifests together with the built-in ones",
		Long: `Validate a directory of manifest files.

The files are loaded on top of the built-in manifests and the result is checked
for inheritance cycles, identity fields, field kinds and relationship targets.

Examples:
  invadmin schema validate ./manifests`,
		Args: cobra.MaximumNArgs(1),
		RunE: c.runValidate,
	}
}

func (c *SchemaCommand) runList(cmd *cobra.Command, args []string) error {
	app, err := RequireApp(cmd.Context())
	if err != nil {
		return err
	}
	return app.Printer.PrintManifestList(app.Registry.List())
}

func (c *SchemaCommand) runShow(cmd *cobra.Command, args []string) error {
	app, err := RequireApp(cmd.Context())
	if err != nil {
		return err
	}
	m, err := app.Registry.Get(args[0])
	if err != nil {
		return err
	}
	return app.Printer.PrintManifest(m)
}

func (c *SchemaCommand) runValidate(cmd *cobra.Command, args []string) error {
	app, err := RequireApp(cmd.Context())
	if err != nil {
		return err
	}

	dir := app.Config.ManifestDir
	if len(args) == 1 {
		dir = args[0]
	}

	reg, err := schema.Load(dir)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	source := "built-in manifests"
	if dir != "" {
		source = dir
	}
	app.Printer.Success(fmt.Sprintf("%s: %d entities valid", source, len(reg.List())))
	return nil
}
