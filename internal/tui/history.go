package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"kiroku/internal/report"
	"kiroku/internal/store"
)

const historyPageSize = 15

type historyModel struct {
	store  *store.Store
	width  int
	height int

	sessions []store.Session
	items    map[string]store.Item
	cursor   int
	offset   int

	formActive bool
	form       *huh.Form
	editingID  string
	formNote   *string
}

func newHistoryModel(s *store.Store) historyModel {
	note := ""
	return historyModel{
		store:    s,
		items:    map[string]store.Item{},
		formNote: &note,
	}
}

func (m *historyModel) setSize(w, h int) {
	m.width = w
	m.height = h
}

func (m historyModel) refresh() tea.Cmd {
	return func() tea.Msg {
		sessions, _ := m.store.ListSessions()
		items := map[string]store.Item{}
		list, _ := m.store.ListItems(true)
		for _, item := range list {
			items[item.ID] = item
		}
		return historyDataMsg{sessions: sessions, items: items}
	}
}

func (m historyModel) update(msg tea.Msg) (historyModel, tea.Cmd) {
	if m.formActive && m.form != nil {
		return m.updateForm(msg)
	}

	switch msg := msg.(type) {
	case historyDataMsg:
		m.sessions = msg.sessions
		m.items = msg.items
		if m.cursor >= len(m.sessions) {
			m.cursor = max(0, len(m.sessions)-1)
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
				if m.cursor < m.offset {
					m.offset = m.cursor
				}
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.sessions)-1 {
				m.cursor++
				if m.cursor >= m.offset+historyPageSize {
					m.offset = m.cursor - historyPageSize + 1
				}
			}
		case key.Matches(msg, keys.Delete):
			if len(m.sessions) > 0 {
				sess := m.sessions[m.cursor]
				if err := m.store.DeleteSession(sess.ID); err != nil {
					return m, func() tea.Msg {
						return statusMsg{text: fmt.Sprintf("Delete failed: %v", err), isError: true}
					}
				}
				// The deleted row may have been the running session.
				return m, tea.Batch(m.refresh(), func() tea.Msg { return timerChangedMsg{} })
			}
		case key.Matches(msg, keys.Edit):
			if len(m.sessions) > 0 {
				return m.showNoteForm()
			}
		}
	}
	return m, nil
}

func (m historyModel) showNoteForm() (historyModel, tea.Cmd) {
	sess := m.sessions[m.cursor]
	m.editingID = sess.ID
	*m.formNote = sess.Note

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Note").Value(m.formNote),
		),
	).WithShowHelp(true).WithShowErrors(true)

	m.formActive = true
	return m, m.form.Init()
}

func (m historyModel) updateForm(msg tea.Msg) (historyModel, tea.Cmd) {
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
		m.store.UpdateSession(m.editingID, store.SessionUpdate{Note: m.formNote})
		return m, m.refresh()
	}

	return m, cmd
}

func (m historyModel) view() string {
	w := m.width - 4

	if m.formActive && m.form != nil {
		title := titleStyle.Render("Edit Note")
		content := lipgloss.JoinVertical(lipgloss.Left, title, "", m.form.View())
		return panelStyle.Width(w).Render(content)
	}

	title := titleStyle.Render("History")

	if len(m.sessions) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			"",
			mutedStyle.Render("No sessions yet."),
		)
		return panelStyle.Width(w).Render(content)
	}

	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-12s %-16s %-9s %s", "Date", "Item", "Duration", "Note")))

	end := min(m.offset+historyPageSize, len(m.sessions))
	for i := m.offset; i < end; i++ {
		sess := m.sessions[i]
		cursor := "  "
		style := normalItemStyle
		if i == m.cursor {
			cursor = "> "
			style = selectedItemStyle
		}

		dot := lipgloss.NewStyle().Foreground(lipgloss.Color(itemColor(m.items, sess.ItemID))).Render("●")
		name := itemName(m.items, sess.ItemID)
		date := sess.StartAt.Local().Format("Jan 02 15:04")

		dur := "running"
		if sess.EndAt != nil {
			dur = report.FormatHoursMinutes(seconds(sess.EndAt.Sub(sess.StartAt)))
		}

		note := truncate(sess.Note, 24)

		rows = append(rows, style.Render(fmt.Sprintf("%s%-12s", cursor, date))+
			fmt.Sprintf(" %s %-14s %-9s %s", dot, name, dur, mutedStyle.Render(note)))
	}

	if len(m.sessions) > historyPageSize {
		rows = append(rows, "")
		rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %d-%d of %d", m.offset+1, end, len(m.sessions))))
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  e: edit note  d: delete"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
