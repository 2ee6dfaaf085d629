package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"kiroku/internal/report"
	"kiroku/internal/store"
	"kiroku/internal/timer"
)

// dashboardModel is the item picker plus the live timer display. Selecting
// an item drives the timer controller: start when idle, stop on the active
// item, confirm-then-switch on a different one.
type dashboardModel struct {
	store  *store.Store
	ctl    *timer.Controller
	width  int
	height int

	items  []store.Item
	cursor int
}

func newDashboardModel(s *store.Store, ctl *timer.Controller) dashboardModel {
	return dashboardModel{store: s, ctl: ctl}
}

func (d dashboardModel) Init() tea.Cmd {
	return d.loadData()
}

func (d *dashboardModel) setSize(w, h int) {
	d.width = w
	d.height = h
}

func (d dashboardModel) isRunning() bool {
	return d.ctl.RunningSession() != nil
}

func (d dashboardModel) elapsed() time.Duration {
	return d.ctl.Elapsed()
}

func (d dashboardModel) loadData() tea.Cmd {
	return func() tea.Msg {
		items, _ := d.store.ListItems(false)
		return dashboardDataMsg{items: items}
	}
}

func (d dashboardModel) update(msg tea.Msg) (dashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case dashboardDataMsg:
		d.items = msg.items
		if d.cursor >= len(d.items) {
			d.cursor = max(0, len(d.items)-1)
		}
		return d, nil

	case tea.KeyMsg:
		if d.ctl.Pending() != nil {
			return d.updateConfirm(msg)
		}

		switch {
		case key.Matches(msg, keys.Up):
			if d.cursor > 0 {
				d.cursor--
			}
		case key.Matches(msg, keys.Down):
			if d.cursor < len(d.items)-1 {
				d.cursor++
			}
		case key.Matches(msg, keys.Select):
			if len(d.items) == 0 {
				return d, func() tea.Msg {
					return statusMsg{text: "No items yet. Press 2 to go to Items and create one.", isError: true}
				}
			}
			return d.selectItem(d.items[d.cursor].ID)
		}
	}
	return d, nil
}

func (d dashboardModel) selectItem(itemID string) (dashboardModel, tea.Cmd) {
	outcome, err := d.ctl.SelectItem(itemID)
	if err != nil {
		return d, func() tea.Msg {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
	}

	switch outcome {
	case timer.Started, timer.Stopped:
		return d, func() tea.Msg { return timerChangedMsg{} }
	case timer.ConfirmRequired:
		// Dialog renders from ctl.Pending; nothing was written yet.
		return d, nil
	}
	return d, nil
}

func (d dashboardModel) updateConfirm(msg tea.KeyMsg) (dashboardModel, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
		if err := d.ctl.ConfirmSwitch(); err != nil {
			return d, func() tea.Msg {
				return statusMsg{text: fmt.Sprintf("Switch failed: %v", err), isError: true}
			}
		}
		return d, func() tea.Msg { return timerChangedMsg{} }
	case "n", "esc":
		d.ctl.CancelSwitch()
	}
	return d, nil
}

func (d dashboardModel) view() string {
	if d.width < 20 {
		return "Terminal too small"
	}

	contentWidth := d.width - 4

	timerPanel := d.renderTimerPanel(contentWidth)

	var bottomPanel string
	if pending := d.ctl.Pending(); pending != nil {
		bottomPanel = d.renderConfirmDialog(contentWidth, pending)
	} else {
		bottomPanel = d.renderItemList(contentWidth)
	}

	return lipgloss.JoinVertical(lipgloss.Left, timerPanel, bottomPanel)
}

func (d dashboardModel) renderTimerPanel(w int) string {
	running := d.ctl.RunningSession()
	if running == nil {
		timeDisplay := timerIdleStyle.Width(w - 6).Render("0:00:00")
		indicator := mutedStyle.Render("■  IDLE")
		hint := mutedStyle.Render("Select an item to start tracking")
		content := lipgloss.JoinVertical(lipgloss.Center, timeDisplay, indicator, hint)
		return panelStyle.Width(w).Render(content)
	}

	elapsed := report.FormatClock(seconds(d.ctl.Elapsed()))
	timeDisplay := timerRunningStyle.Width(w - 6).Render(elapsed)
	indicator := successStyle.Render("●  RUNNING")

	name := d.resolveName(running.ItemID)
	since := running.StartAt.Local().Format("15:04")
	itemLine := highlightStyle.Render(name) + mutedStyle.Render("  since "+since)

	content := lipgloss.JoinVertical(lipgloss.Center, timeDisplay, indicator, itemLine)
	return activePanelStyle.Width(w).Render(content)
}

func (d dashboardModel) renderItemList(w int) string {
	title := titleStyle.Render("Items")

	if len(d.items) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			"",
			mutedStyle.Render("No items yet. Press 2 to create one."),
		)
		return panelStyle.Width(w).Render(content)
	}

	running := d.ctl.RunningSession()

	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")
	for i, item := range d.items {
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color(item.Color)).Render("●")
		cursor := "  "
		style := normalItemStyle
		if i == d.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		marker := " "
		if running != nil && running.ItemID == item.ID {
			marker = successStyle.Render("●")
		}
		rows = append(rows, style.Render(fmt.Sprintf("%s%s %s ", cursor, dot, item.Name))+marker)
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: start/stop  (selecting another item asks to switch)"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (d dashboardModel) renderConfirmDialog(w int, pending *timer.Switch) string {
	title := titleStyle.Render("Switch item?")
	from := d.resolveName(pending.FromItemID)
	to := d.resolveName(pending.ToItemID)

	body := fmt.Sprintf("Stop %s and start %s?",
		highlightStyle.Render(from), highlightStyle.Render(to))

	rows := []string{
		title,
		"",
		body,
		"",
		mutedStyle.Render("  y/enter: switch  n/esc: keep tracking"),
	}
	return activePanelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (d dashboardModel) resolveName(itemID string) string {
	for _, item := range d.items {
		if item.ID == itemID {
			return item.Name
		}
	}
	if item, err := d.store.GetItem(itemID); err == nil {
		return item.Name
	}
	return "unknown"
}
