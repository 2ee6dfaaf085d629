package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"kiroku/internal/store"
)

var itemColors = []string{"#7AA2F7", "#2EC4B6", "#FF6B6B", "#F39C12", "#2ECC71", "#E74C3C", "#9B59B6", "#BB9AF7"}

type itemsModel struct {
	store  *store.Store
	width  int
	height int

	items        []store.Item
	cursor       int
	showArchived bool

	formActive bool
	form       *huh.Form
	editingID  string // empty = creating

	// Form field pointers (survive value copies)
	formName  *string
	formColor *string

	confirmingDelete bool
}

func newItemsModel(s *store.Store) itemsModel {
	name, color := "", itemColors[0]
	return itemsModel{
		store:     s,
		formName:  &name,
		formColor: &color,
	}
}

func (m *itemsModel) setSize(w, h int) {
	m.width = w
	m.height = h
}

type itemsDataMsg struct {
	items []store.Item
}

func (m itemsModel) refresh() tea.Cmd {
	return func() tea.Msg {
		items, _ := m.store.ListItems(m.showArchived)
		return itemsDataMsg{items: items}
	}
}

func (m itemsModel) update(msg tea.Msg) (itemsModel, tea.Cmd) {
	if m.formActive && m.form != nil {
		return m.updateForm(msg)
	}

	switch msg := msg.(type) {
	case itemsDataMsg:
		m.items = msg.items
		if m.cursor >= len(m.items) {
			m.cursor = max(0, len(m.items)-1)
		}
		return m, nil

	case tea.KeyMsg:
		if m.confirmingDelete {
			return m.updateDeleteConfirm(msg)
		}

		switch {
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		case key.Matches(msg, keys.New):
			return m.showItemForm("")
		case key.Matches(msg, keys.Edit):
			if len(m.items) > 0 {
				return m.showItemForm(m.items[m.cursor].ID)
			}
		case key.Matches(msg, keys.Toggle):
			if len(m.items) > 0 {
				item := m.items[m.cursor]
				if item.Archived {
					m.store.RestoreItem(item.ID)
				} else {
					m.store.ArchiveItem(item.ID)
				}
				return m, m.refresh()
			}
		case key.Matches(msg, keys.Delete):
			if len(m.items) > 0 {
				m.confirmingDelete = true
			}
		case key.Matches(msg, keys.Tab):
			m.showArchived = !m.showArchived
			return m, m.refresh()
		}
	}
	return m, nil
}

func (m itemsModel) updateDeleteConfirm(msg tea.KeyMsg) (itemsModel, tea.Cmd) {
	m.confirmingDelete = false
	if msg.String() != "y" {
		return m, nil
	}

	item := m.items[m.cursor]
	if err := m.store.DeleteItem(item.ID); err != nil {
		return m, func() tea.Msg {
			return statusMsg{text: fmt.Sprintf("Delete failed: %v", err), isError: true}
		}
	}
	return m, tea.Batch(
		m.refresh(),
		func() tea.Msg {
			return statusMsg{text: fmt.Sprintf("Deleted %q and its sessions", item.Name)}
		},
	)
}

func (m itemsModel) showItemForm(editID string) (itemsModel, tea.Cmd) {
	m.editingID = editID
	*m.formName = ""
	*m.formColor = itemColors[0]
	if editID != "" {
		item := m.items[m.cursor]
		*m.formName = item.Name
		if item.Color != "" {
			*m.formColor = item.Color
		}
	}

	colorOptions := make([]huh.Option[string], len(itemColors))
	for i, c := range itemColors {
		colorOptions[i] = huh.NewOption(fmt.Sprintf("● %s", c), c)
	}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Item Name").Value(m.formName),
			huh.NewSelect[string]().Title("Color").Options(colorOptions...).Value(m.formColor),
		),
	).WithShowHelp(true).WithShowErrors(true)

	m.formActive = true
	return m, m.form.Init()
}

func (m itemsModel) updateForm(msg tea.Msg) (itemsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			m.formActive = false
			m.form = nil
			return m, nil
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.formActive = false
		if *m.formName != "" {
			if m.editingID == "" {
				m.store.CreateItem(*m.formName, *m.formColor)
			} else {
				m.store.UpdateItem(m.editingID, store.ItemUpdate{
					Name:  m.formName,
					Color: m.formColor,
				})
			}
		}
		return m, m.refresh()
	}

	return m, cmd
}

func (m itemsModel) view() string {
	w := m.width - 4

	if m.formActive && m.form != nil {
		title := titleStyle.Render("New Item")
		if m.editingID != "" {
			title = titleStyle.Render("Edit Item")
		}
		content := lipgloss.JoinVertical(lipgloss.Left, title, "", m.form.View())
		return panelStyle.Width(w).Render(content)
	}

	title := titleStyle.Render("Items")
	if m.showArchived {
		title = titleStyle.Render("Items") + mutedStyle.Render("  (including archived)")
	}

	if m.confirmingDelete && len(m.items) > 0 {
		item := m.items[m.cursor]
		content := lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Delete item?"),
			"",
			fmt.Sprintf("Delete %s and all of its tracked sessions?", highlightStyle.Render(item.Name)),
			"",
			mutedStyle.Render("  y: delete  any other key: cancel"),
		)
		return activePanelStyle.Width(w).Render(content)
	}

	if len(m.items) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			"",
			mutedStyle.Render("No items yet. Press n to create one."),
		)
		return panelStyle.Width(w).Render(content)
	}

	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")

	for i, item := range m.items {
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color(item.Color)).Render("●")
		cursor := "  "
		style := normalItemStyle
		if i == m.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		label := item.Name
		if item.Archived {
			label += "  (archived)"
		}
		rows = append(rows, style.Render(fmt.Sprintf("%s%s %s", cursor, dot, label)))
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  n: new  e: edit  a: archive/restore  d: delete  tab: show archived"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
