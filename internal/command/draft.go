package command

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/n1rna/invadmin/internal/api"
	"github.com/n1rna/invadmin/internal/entity"
	"github.com/n1rna/invadmin/internal/form"
	"github.com/n1rna/invadmin/internal/picker"
	"github.com/n1rna/invadmin/internal/schema"
	"github.com/n1rna/invadmin/internal/storage"
	"github.com/n1rna/invadmin/internal/tui"
)

type DraftCommand struct{}

func NewDraftCommand(groupId string) *cobra.Command {
	dc := &DraftCommand{}

	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Create and edit records through local drafts",
		Long: `Create and edit records through local drafts.

A draft holds the form state of one record between commands. New drafts start
from the entity defaults; edit drafts start from the record on the backend.
Saving a draft creates the record when it has no id and updates it otherwise.

Examples:
  invadmin draft new brand --set name=Acme --name acme
  invadmin draft set acme description="Hand tools"
  invadmin draft save acme

  invadmin draft edit product 42 --name bolt
  invadmin draft choices bolt brand
  invadmin draft set bolt brand=7763
  invadmin draft save bolt --patch`,
		GroupID: groupId,
	}

	cmd.AddCommand(
		dc.newNewCommand(),
		dc.newEditCommand(),
		dc.newSetCommand(),
		dc.newShowCommand(),
		dc.newListCommand(),
		dc.newChoicesCommand(),
		dc.newPickCommand(),
		dc.newSaveCommand(),
		dc.newDiscardCommand(),
	)

	return cmd
}

func (c *DraftCommand) newNewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "new [entity]",
		Short: "Start a draft for a new record",
		Args:  cobra.ExactArgs(1),
		RunE:  c.runNew,
	}
	cmd.Flags().StringArray("set", nil, "Set a field as field=value (repeatable)")
	cmd.Flags().String("name", "", "Name the draft for later reference")
	return cmd
}

func (c *DraftCommand) newEditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit [entity] [id]",
		Short: "Start a draft from an existing record",
		Args:  cobra.ExactArgs(2),
		RunE:  c.runEdit,
	}
	cmd.Flags().String("name", "", "Name the draft for later reference")
	return cmd
}

func (c *DraftCommand) newSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set [draft] [field=value]...",
		Short: "Set draft fields",
		Long: `Set draft fields.

Values are parsed by field kind: instants as RFC 3339, dates as YYYY-MM-DD,
booleans as true/false, relationships as an id and relationship lists as
comma-separated ids. Use "null" to clear a field.`,
		Args: cobra.MinimumNArgs(2),
		RunE: c.runSet,
	}
}

func (c *DraftCommand) newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [draft]",
		Short: "Show a draft",
		Args:  cobra.ExactArgs(1),
		RunE:  c.runShow,
	}
}

func (c *DraftCommand) newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List drafts",
		Args:  cobra.NoArgs,
		RunE:  c.runList,
	}
}

func (c *DraftCommand) newChoicesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "choices [draft] [field]",
		Short: "List the choices of a relationship field",
		Long: `List one page of choices for a relationship field of a draft.

The draft's current selection is always part of the list, even when the backend
page does not contain it. Selected entries are marked with '*'.`,
		Args: cobra.ExactArgs(2),
		RunE: c.runChoices,
	}
	cmd.Flags().Int("page", 0, "Page number, starting at 0")
	cmd.Flags().Int("size", 20, "Page size")
	return cmd
}

func (c *DraftCommand) newPickCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pick [draft] [field]",
		Short: "Choose a relationship value interactively",
		Long: `Choose the value of a relationship field in an interactive list.

Pages are loaded from the backend on demand (n/p). The current selection stays
in the list on every page. Relationship lists toggle entries with space.`,
		Args: cobra.ExactArgs(2),
		RunE: c.runPick,
	}
	cmd.Flags().Int("size", 20, "Page size")
	return cmd
}

func (c *DraftCommand) newSaveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save [draft]",
		Short: "Save a draft to the backend",
		Args:  cobra.ExactArgs(1),
		RunE:  c.runSave,
	}
	cmd.Flags().Bool("patch", false, "Send a partial update (merge patch) for existing records")
	cmd.Flags().Bool("keep", false, "Keep the draft after saving")
	return cmd
}

func (c *DraftCommand) newDiscardCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "discard [draft]",
		Aliases: []string{"rm"},
		Short:   "Discard a draft",
		Args:    cobra.ExactArgs(1),
		RunE:    c.runDiscard,
	}
}

func (c *DraftCommand) runNew(cmd *cobra.Command, args []string) error {
	app, err := RequireApp(cmd.Context())
	if err != nil {
		return err
	}
	sets, _ := cmd.Flags().GetStringArray("set")
	name, _ := cmd.Flags().GetString("name")

	screen, err := app.Service.OpenCreate(cmd.Context(), args[0], nil)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	if err := applyAssignments(screen.State, sets); err != nil {
		return err
	}

	d := storage.NewDraft(screen.Manifest.Name, screen.State.Session().String(), screen.State.InitializedAt(), nil)
	d.Name = name
	if err := app.storeDraft(d, screen.State); err != nil {
		return err
	}

	app.Printer.Success(fmt.Sprintf("Draft %s created for new %s", draftRef(d), d.Entity))
	app.warnMissing(screen.State)
	return nil
}

func (c *DraftCommand) runEdit(cmd *cobra.Command, args []string) error {
	app, err := RequireApp(cmd.Context())
	if err != nil {
		return err
	}
	id, err := parseID(args[1])
	if err != nil {
		return err
	}
	name, _ := cmd.Flags().GetString("name")

	screen, err := app.Service.OpenEdit(cmd.Context(), args[0], id)
	if err != nil {
		return fmt.Errorf("failed to open %s %d: %w", args[0], id, err)
	}

	d := storage.NewDraft(screen.Manifest.Name, screen.State.Session().String(), screen.State.InitializedAt(), nil)
	d.Name = name
	if err := app.storeDraft(d, screen.State); err != nil {
		return err
	}

	app.Printer.Success(fmt.Sprintf("Draft %s created for %s %d", draftRef(d), d.Entity, id))
	return nil
}

func (c *DraftCommand) runSet(cmd *cobra.Command, args []string) error {
	app, err := RequireApp(cmd.Context())
	if err != nil {
		return err
	}

	d, state, err := app.resumeDraft(args[0])
	if err != nil {
		return err
	}
	if err := applyAssignments(state, args[1:]); err != nil {
		return err
	}
	if err := app.storeDraft(d, state); err != nil {
		return err
	}

	app.Printer.Success(fmt.Sprintf("Draft %s updated", draftRef(d)))
	app.warnMissing(state)
	return nil
}

func (c *DraftCommand) runShow(cmd *cobra.Command, args []string) error {
	app, err := RequireApp(cmd.Context())
	if err != nil {
		return err
	}

	d, state, err := app.resumeDraft(args[0])
	if err != nil {
		return err
	}
	mgr, err := app.Service.Manager(d.Entity)
	if err != nil {
		return err
	}

	if err := app.Printer.PrintDraft(d, state.Manifest(), mgr.Value(state)); err != nil {
		return err
	}
	app.warnMissing(state)
	return nil
}

func (c *DraftCommand) runList(cmd *cobra.Command, args []string) error {
	app, err := RequireApp(cmd.Context())
	if err != nil {
		return err
	}
	summaries, err := app.Drafts.List()
	if err != nil {
		return err
	}
	return app.Printer.PrintDrafts(summaries)
}

func (c *DraftCommand) runChoices(cmd *cobra.Command, args []string) error {
	app, err := RequireApp(cmd.Context())
	if err != nil {
		return err
	}
	page, _ := cmd.Flags().GetInt("page")
	size, _ := cmd.Flags().GetInt("size")

	_, state, err := app.resumeDraft(args[0])
	if err != nil {
		return err
	}

	field := args[1]
	choices, err := app.Service.Choices(cmd.Context(), state, field, api.QueryParams{Page: page, Size: size})
	if err != nil {
		return err
	}

	f, _ := state.Manifest().Field(field)
	current, _ := state.Get(field)
	selected := picker.Selected(f, map[string]any{field: current})
	return app.Printer.PrintChoices(f, choices, selected)
}

func (c *DraftCommand) runPick(cmd *cobra.Command, args []string) error {
	app, err := RequireApp(cmd.Context())
	if err != nil {
		return err
	}
	size, _ := cmd.Flags().GetInt("size")

	d, state, err := app.resumeDraft(args[0])
	if err != nil {
		return err
	}

	field := args[1]
	ctx := cmd.Context()
	load := func(page int) ([]entity.Ref, error) {
		return app.Service.Choices(ctx, state, field, api.QueryParams{Page: page, Size: size})
	}
	first, err := load(0)
	if err != nil {
		return err
	}

	f, _ := state.Manifest().Field(field)
	display := "name"
	if target, err := app.Registry.Get(f.Target); err == nil {
		display = target.DisplayField()
	}
	current, _ := state.Get(field)

	model := tui.NewPickerModel(f, first, picker.Selected(f, map[string]any{field: current}), load,
		func(r entity.Ref) string { return r.Label(display) })
	program := tea.NewProgram(model, tea.WithInput(cmd.InOrStdin()), tea.WithOutput(cmd.ErrOrStderr()))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("picker failed: %w", err)
	}

	refs, ok := model.Result()
	if !ok {
		app.Printer.Info("Selection canceled")
		return nil
	}

	var value any
	switch {
	case f.Kind == schema.KindRelationshipList:
		value = refs
	case len(refs) > 0:
		value = refs[0]
	}
	if err := state.Set(field, value); err != nil {
		return err
	}
	if err := app.storeDraft(d, state); err != nil {
		return err
	}

	app.Printer.Success(fmt.Sprintf("Draft %s: %s updated", draftRef(d), f.DisplayName()))
	return nil
}

func (c *DraftCommand) runSave(cmd *cobra.Command, args []string) error {
	app, err := RequireApp(cmd.Context())
	if err != nil {
		return err
	}
	patch, _ := cmd.Flags().GetBool("patch")
	keep, _ := cmd.Flags().GetBool("keep")

	d, state, err := app.resumeDraft(args[0])
	if err != nil {
		return err
	}

	mode := state.Mode()
	saved, err := app.Service.Save(cmd.Context(), state, patch)
	if err != nil {
		if errors.Is(err, form.ErrRequiredMissing) {
			return fmt.Errorf("draft %s is incomplete: %w", draftRef(d), err)
		}
		return fmt.Errorf("failed to save draft %s: %w", draftRef(d), err)
	}

	if keep {
		if err := app.storeDraft(d, state); err != nil {
			return err
		}
	} else if err := app.Drafts.Delete(d.ID); err != nil {
		return err
	}

	id, _ := saved.ID(state.Manifest().IDField())
	verb := "Updated"
	if mode == form.ModeCreate {
		verb = "Created"
	}
	app.Printer.Success(fmt.Sprintf("%s %s %d", verb, d.Entity, id))
	return app.Printer.PrintRecord(state.Manifest(), saved)
}

func (c *DraftCommand) runDiscard(cmd *cobra.Command, args []string) error {
	app, err := RequireApp(cmd.Context())
	if err != nil {
		return err
	}
	if err := app.Drafts.Delete(args[0]); err != nil {
		return err
	}
	app.Printer.Success(fmt.Sprintf("Draft %s discarded", args[0]))
	return nil
}

// resumeDraft loads a stored draft and rebuilds its form state
func (a *App) resumeDraft(ref string) (*storage.Draft, *form.State, error) {
	d, err := a.Drafts.Load(ref)
	if err != nil {
		return nil, nil, err
	}
	session, err := uuid.Parse(d.Session)
	if err != nil {
		return nil, nil, fmt.Errorf("draft %s has an invalid session: %w", d.ID, err)
	}
	state, err := a.Service.Resume(d.Entity, session, d.Values, d.InitializedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to restore draft %s: %w", d.ID, err)
	}
	return d, state, nil
}

// storeDraft writes the state's current wire value into the draft and saves it
func (a *App) storeDraft(d *storage.Draft, state *form.State) error {
	wire, err := a.Service.Wire(state)
	if err != nil {
		return err
	}
	d.Values = wire
	d.RecordID = nil
	if id, ok := state.ID(); ok {
		d.RecordID = &id
	}
	return a.Drafts.Save(d)
}

func (a *App) warnMissing(state *form.State) {
	if missing := state.Missing(); len(missing) > 0 {
		a.Printer.Warning(fmt.Sprintf("Required fields not set: %s", strings.Join(missing, ", ")))
	}
}

func applyAssignments(state *form.State, assignments []string) error {
	for _, a := range assignments {
		field, value, err := parseAssignment(a)
		if err != nil {
			return err
		}
		if err := state.SetRaw(field, value); err != nil {
			return err
		}
	}
	return nil
}

func draftRef(d *storage.Draft) string {
	if d.Name != "" {
		return d.Name
	}
	if len(d.ID) > 8 {
		return d.ID[:8]
	}
	return d.ID
}
