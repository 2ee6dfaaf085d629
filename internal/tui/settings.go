package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"kiroku/internal/store"
)

const defaultWeekStart = 1

type settingsModel struct {
	store  *store.Store
	width  int
	height int

	settings   *store.Settings
	formActive bool
	form       *huh.Form

	// Form value as pointer (survives value copies)
	weekStartsOn *int
}

func newSettingsModel(s *store.Store) settingsModel {
	ws := 1
	return settingsModel{
		store:        s,
		weekStartsOn: &ws,
	}
}

func (s *settingsModel) setSize(w, h int) {
	s.width = w
	s.height = h
}

func (s settingsModel) refresh() tea.Cmd {
	return func() tea.Msg {
		settings, err := s.store.GetSettings()
		if err != nil {
			return statusMsg{text: err.Error(), isError: true}
		}
		return settingsDataMsg{settings: settings}
	}
}

func (s settingsModel) update(msg tea.Msg) (settingsModel, tea.Cmd) {
	if s.formActive && s.form != nil {
		return s.updateForm(msg)
	}

	switch msg := msg.(type) {
	case settingsDataMsg:
		s.settings = msg.settings
		return s, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Select), key.Matches(msg, keys.Edit):
			return s.showForm()
		}
	}
	return s, nil
}

func (s settingsModel) showForm() (settingsModel, tea.Cmd) {
	*s.weekStartsOn = defaultWeekStart
	if s.settings != nil {
		*s.weekStartsOn = s.settings.WeekStartsOn
	}

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().Title("Week starts on").
				Options(
					huh.NewOption("Monday", 1),
					huh.NewOption("Sunday", 0),
				).Value(s.weekStartsOn),
		).Title("General"),
	).WithShowHelp(true).WithShowErrors(true)

	s.formActive = true
	return s, s.form.Init()
}

func (s settingsModel) updateForm(msg tea.Msg) (settingsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			s.formActive = false
			s.form = nil
			return s, nil
		}
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if s.form.State == huh.StateCompleted {
		s.formActive = false
		if err := s.store.SetWeekStartsOn(*s.weekStartsOn); err != nil {
			return s, tea.Batch(s.refresh(), func() tea.Msg {
				return statusMsg{text: err.Error(), isError: true}
			})
		}
		return s, s.refresh()
	}

	return s, cmd
}

func (s settingsModel) view() string {
	w := s.width - 4

	if s.formActive && s.form != nil {
		title := titleStyle.Render("Settings")
		formView := s.form.View()
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", formView),
		)
	}

	title := titleStyle.Render("Settings")
	hint := mutedStyle.Render("Press enter to edit settings")

	weekStart := "Monday"
	if s.settings != nil && s.settings.WeekStartsOn == 0 {
		weekStart = "Sunday"
	}

	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")
	label := lipgloss.NewStyle().Width(24).Render("Week starts on")
	rows = append(rows, "  "+label+" "+highlightStyle.Render(weekStart))
	rows = append(rows, "")
	rows = append(rows, hint)

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
