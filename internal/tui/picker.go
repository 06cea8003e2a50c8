// Package tui provides an interactive relationship picker for drafts
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/n1rna/invadmin/internal/entity"
	"github.com/n1rna/invadmin/internal/picker"
	"github.com/n1rna/invadmin/internal/schema"
)

// PageLoader fetches one page of choices
type PageLoader func(page int) ([]entity.Ref, error)

// PageLoadedMsg carries a freshly loaded page
type PageLoadedMsg struct {
	Page  int
	Items []entity.Ref
	Err   error
}

// PickerModel lets the user choose the value of a relationship field. The current
// selection is merged into every page, so it never disappears from the list.
type PickerModel struct {
	field    schema.Field
	multi    bool
	load     PageLoader
	label    func(entity.Ref) string
	refs     *picker.Reconciler[entity.Ref]
	page     int
	items    []entity.Ref
	selected []entity.Ref
	cursor   int
	filter   textinput.Model
	loading  bool
	err      error
	done     bool
	canceled bool
}

// NewPickerModel creates a picker for field, starting from the given first page and the
// field's current selection.
func NewPickerModel(f schema.Field, first, selected []entity.Ref, load PageLoader, label func(entity.Ref) string) *PickerModel {
	ti := textinput.New()
	ti.Placeholder = "filter"
	ti.Prompt = "/ "
	ti.CharLimit = 64

	if label == nil {
		label = func(r entity.Ref) string { return r.Label("name") }
	}

	m := &PickerModel{
		field:    f,
		multi:    f.Kind == schema.KindRelationshipList,
		load:     load,
		label:    label,
		refs:     picker.Refs(),
		selected: append([]entity.Ref(nil), selected...),
		filter:   ti,
	}
	m.items = m.refs.Merge(first, m.selected...)
	return m
}

// Result returns the chosen references and whether the user confirmed the choice.
func (m *PickerModel) Result() ([]entity.Ref, bool) {
	return m.selected, m.done && !m.canceled
}

// Init returns the initial command for the picker
func (m *PickerModel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the picker
func (m *PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case PageLoadedMsg:
		m.loading = false
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.err = nil
		m.page = msg.Page
		m.items = m.refs.Merge(msg.Items, m.selected...)
		m.cursor = 0
		return m, nil

	case tea.KeyMsg:
		if m.filter.Focused() {
			return m.updateFilter(msg)
		}

		switch msg.String() {
		case "ctrl+c", "esc", "q":
			m.done, m.canceled = true, true
			return m, tea.Quit

		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}

		case "down", "j":
			if m.cursor < len(m.visible())-1 {
				m.cursor++
			}

		case "/":
			m.filter.Focus()
			return m, textinput.Blink

		case "n", "right":
			return m, m.loadPage(m.page + 1)

		case "p", "left":
			if m.page > 0 {
				return m, m.loadPage(m.page - 1)
			}

		case " ":
			if m.multi {
				m.toggle()
			}

		case "enter":
			if !m.multi {
				visible := m.visible()
				if len(visible) == 0 {
					return m, nil
				}
				m.selected = []entity.Ref{visible[m.cursor]}
			}
			m.done = true
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m *PickerModel) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.done, m.canceled = true, true
		return m, tea.Quit
	case "enter", "esc":
		m.filter.Blur()
		m.cursor = 0
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.cursor = 0
	return m, cmd
}

func (m *PickerModel) loadPage(page int) tea.Cmd {
	if m.load == nil || m.loading {
		return nil
	}
	m.loading = true
	load := m.load
	return func() tea.Msg {
		items, err := load(page)
		return PageLoadedMsg{Page: page, Items: items, Err: err}
	}
}

func (m *PickerModel) toggle() {
	visible := m.visible()
	if len(visible) == 0 {
		return
	}
	ref := visible[m.cursor]
	if !m.refs.Contains(m.selected, ref) {
		m.selected = append(m.selected, ref)
		return
	}
	kept := m.selected[:0]
	for _, s := range m.selected {
		if !m.refs.Equal(s, ref) {
			kept = append(kept, s)
		}
	}
	m.selected = kept
}

// visible returns the items matching the filter text
func (m *PickerModel) visible() []entity.Ref {
	needle := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	if needle == "" {
		return m.items
	}
	var out []entity.Ref
	for _, ref := range m.items {
		if strings.Contains(strings.ToLower(m.label(ref)), needle) {
			out = append(out, ref)
		}
	}
	return out
}

// View renders the picker
func (m *PickerModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Choose %s", m.field.DisplayName())))
	b.WriteString(subtitleStyle.Render(fmt.Sprintf("  page %d", m.page+1)))
	b.WriteString("\n\n")

	visible := m.visible()
	if len(visible) == 0 {
		b.WriteString(noItemsStyle.Render("No choices"))
		b.WriteString("\n")
	}
	for i, ref := range visible {
		cursor := " "
		if m.cursor == i {
			cursor = ">"
		}
		mark := "[ ]"
		if m.refs.Contains(m.selected, ref) {
			mark = "[x]"
		}
		line := fmt.Sprintf("%s %s %s (#%d)", cursor, mark, m.label(ref), ref.ID)
		if m.cursor == i {
			b.WriteString(selectedItemStyle.Render(line))
		} else {
			b.WriteString(normalItemStyle.Render(line))
		}
		b.WriteString("\n")
	}

	if m.filter.Focused() || m.filter.Value() != "" {
		b.WriteString("\n" + m.filter.View() + "\n")
	}
	if m.loading {
		b.WriteString("\n" + subtitleStyle.Render("loading...") + "\n")
	}
	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render(m.err.Error()) + "\n")
	}

	help := "enter: choose • /: filter • n/p: next/prev page • esc: cancel"
	if m.multi {
		help = "space: toggle • enter: confirm • /: filter • n/p: next/prev page • esc: cancel"
	}
	b.WriteString("\n" + helpStyle.Render(help))
	return b.String()
}

// Styles for the picker
var (
	titleStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	subtitleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedItemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("170")).Bold(true)
	normalItemStyle   = lipgloss.NewStyle()
	noItemsStyle      = lipgloss.NewStyle().
				Foreground(lipgloss.Color("243")).
				Italic(true)
)
