package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/n1rna/invadmin/internal/api"
)

type EntityCommand struct{}

func NewEntityCommand(groupId string) *cobra.Command {
	ec := &EntityCommand{}

	cmd := &cobra.Command{
		Use:   "entity",
		Short: "Read and delete records on the backend",
		Long: `Read and delete records of any entity type on the backend.

Use the draft commands to create or edit records.`,
		GroupID: groupId,
	}

	cmd.AddCommand(
		ec.newGetCommand(),
		ec.newListCommand(),
		ec.newDeleteCommand(),
	)

	return cmd
}

func (c *EntityCommand) newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get [entity] [id]",
		Short: "Show a single record",
		Args:  cobra.ExactArgs(2),
		RunE:  c.runGet,
	}
}

func (c *EntityCommand) newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [entity]",
		Short: "List one page of records",
		Long: `List one page of records.

Examples:
  invadmin entity list product --size 50 --sort name,asc
  invadmin entity list product --filter name.contains=bolt`,
		Args: cobra.ExactArgs(1),
		RunE: c.runList,
	}

	cmd.Flags().Int("page", 0, "Page number, starting at 0")
	cmd.Flags().Int("size", 20, "Page size")
	cmd.Flags().StringArray("sort", nil, "Sort order as field,asc|desc (repeatable)")
	cmd.Flags().StringArray("filter", nil, "Filter as key=value, e.g. name.contains=bolt (repeatable)")

	return cmd
}

func (c *EntityCommand) newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [entity] [id]",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(2),
		RunE:  c.runDelete,
	}
}

func (c *EntityCommand) runGet(cmd *cobra.Command, args []string) error {
	app, err := RequireApp(cmd.Context())
	if err != nil {
		return err
	}
	id, err := parseID(args[1])
	if err != nil {
		return err
	}

	m, err := app.Registry.Get(args[0])
	if err != nil {
		return err
	}
	rec, err := app.Service.Get(cmd.Context(), m.Name, id)
	if err != nil {
		return fmt.Errorf("failed to get %s %d: %w", m.Name, id, err)
	}
	return app.Printer.PrintRecord(m, rec)
}

func (c *EntityCommand) runList(cmd *cobra.Command, args []string) error {
	app, err := RequireApp(cmd.Context())
	if err != nil {
		return err
	}

	page, _ := cmd.Flags().GetInt("page")
	size, _ := cmd.Flags().GetInt("size")
	sorts, _ := cmd.Flags().GetStringArray("sort")
	filters, _ := cmd.Flags().GetStringArray("filter")

	params := api.QueryParams{Page: page, Size: size, Sort: sorts}
	if len(filters) > 0 {
		params.Filters = make(map[string]string, len(filters))
		for _, f := range filters {
			key, value, err := parseAssignment(f)
			if err != nil {
				return err
			}
			params.Filters[key] = value
		}
	}

	m, err := app.Registry.Get(args[0])
	if err != nil {
		return err
	}
	recs, err := app.Service.List(cmd.Context(), m.Name, params)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", m.CollectionPath(), err)
	}
	return app.Printer.PrintRecords(m, recs)
}

func (c *EntityCommand) runDelete(cmd *cobra.Command, args []string) error {
	app, err := RequireApp(cmd.Context())
	if err != nil {
		return err
	}
	id, err := parseID(args[1])
	if err != nil {
		return err
	}

	if err := app.Service.Delete(cmd.Context(), args[0], id); err != nil {
		return fmt.Errorf("failed to delete %s %d: %w", args[0], id, err)
	}
	app.Printer.Success(fmt.Sprintf("Deleted %s %d", args[0], id))
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: must be an integer", s)
	}
	return id, nil
}

// parseAssignment splits "field=value"; the value may be empty or contain '='.
func parseAssignment(s string) (string, string, error) {
	key, value, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("invalid assignment %q: expected field=value", s)
	}
	return key, value, nil
}
