package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"kiroku/internal/backup"
	"kiroku/internal/report"
	"kiroku/internal/store"
	"kiroku/internal/timer"
)

// App is the root Bubble Tea model.
type App struct {
	store  *store.Store
	ctl    *timer.Controller
	width  int
	height int

	activeView    viewState
	showHelp      bool
	backupPicking bool
	backupCursor  int

	dashboard dashboardModel
	items     itemsModel
	history   historyModel
	reports   reportsModel
	settings  settingsModel

	help      help.Model
	status    string
	statusErr bool
}

func NewApp(s *store.Store, ctl *timer.Controller) App {
	h := help.New()
	h.ShowAll = false

	return App{
		store:      s,
		ctl:        ctl,
		activeView: viewDashboard,
		dashboard:  newDashboardModel(s, ctl),
		items:      newItemsModel(s),
		history:    newHistoryModel(s),
		reports:    newReportsModel(s),
		settings:   newSettingsModel(s),
		help:       h,
	}
}

func (a App) Init() tea.Cmd {
	return tea.Batch(
		a.dashboard.Init(),
		tickCmd(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		contentHeight := a.height - 4 // header + footer
		a.dashboard.setSize(a.width, contentHeight)
		a.items.setSize(a.width, contentHeight)
		a.history.setSize(a.width, contentHeight)
		a.reports.setSize(a.width, contentHeight)
		a.settings.setSize(a.width, contentHeight)
		return a, nil

	case tea.KeyMsg:
		if a.backupPicking {
			return a.updateBackupPicker(msg)
		}

		// If a child view is capturing input (e.g. form or dialog), delegate first.
		if a.isCapturing() {
			return a.updateActiveView(msg)
		}

		switch {
		case key.Matches(msg, keys.Backup):
			a.backupPicking = true
			a.backupCursor = 0
			return a, nil
		case key.Matches(msg, keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, keys.Help):
			a.showHelp = !a.showHelp
			a.help.ShowAll = a.showHelp
			return a, nil
		case key.Matches(msg, keys.Tab1):
			a.activeView = viewDashboard
			return a, a.dashboard.loadData()
		case key.Matches(msg, keys.Tab2):
			a.activeView = viewItems
			return a, a.items.refresh()
		case key.Matches(msg, keys.Tab3):
			a.activeView = viewHistory
			return a, a.history.refresh()
		case key.Matches(msg, keys.Tab4):
			a.activeView = viewReports
			return a, a.reports.refresh()
		case key.Matches(msg, keys.Tab5):
			a.activeView = viewSettings
			return a, a.settings.refresh()
		case key.Matches(msg, keys.Tab):
			// Reports cycles the period kind on tab, Items toggles the
			// archived filter; both take precedence over view cycling.
			if a.activeView == viewReports || a.activeView == viewItems {
				return a.updateActiveView(msg)
			}
			a.activeView = (a.activeView + 1) % 5
			return a, a.refreshCurrentView()
		}

	case tickMsg:
		// Keep the clock ticking; the running timer redraws each second.
		return a, tickCmd()

	case statusMsg:
		a.status = msg.text
		a.statusErr = msg.isError
		return a, nil

	case timerChangedMsg:
		a.statusErr = false
		if running := a.ctl.RunningSession(); running != nil {
			a.status = "Tracking " + a.dashboard.resolveName(running.ItemID)
		} else {
			a.status = "Timer stopped"
		}
		return a, tea.Batch(a.dashboard.loadData(), a.history.refresh())

	case exportDoneMsg:
		a.status = "Exported to " + msg.path
		a.statusErr = false
		return a, nil

	case importDoneMsg:
		a.status = fmt.Sprintf("Imported %d items, %d sessions", msg.stats.Items, msg.stats.Sessions)
		a.statusErr = false
		return a, tea.Batch(a.dashboard.loadData(), a.refreshCurrentView(), func() tea.Msg {
			if err := a.ctl.Resync(); err != nil {
				return statusMsg{text: fmt.Sprintf("Resync error: %v", err), isError: true}
			}
			return nil
		})
	}

	return a.updateActiveView(msg)
}

func (a App) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.activeView {
	case viewDashboard:
		a.dashboard, cmd = a.dashboard.update(msg)
	case viewItems:
		a.items, cmd = a.items.update(msg)
	case viewHistory:
		a.history, cmd = a.history.update(msg)
	case viewReports:
		a.reports, cmd = a.reports.update(msg)
	case viewSettings:
		a.settings, cmd = a.settings.update(msg)
	}
	return a, cmd
}

func (a App) isCapturing() bool {
	switch a.activeView {
	case viewDashboard:
		return a.ctl.Pending() != nil
	case viewItems:
		return a.items.formActive || a.items.confirmingDelete
	case viewHistory:
		return a.history.formActive
	case viewSettings:
		return a.settings.formActive
	}
	return false
}

func (a App) refreshCurrentView() tea.Cmd {
	switch a.activeView {
	case viewDashboard:
		return a.dashboard.loadData()
	case viewItems:
		return a.items.refresh()
	case viewHistory:
		return a.history.refresh()
	case viewReports:
		return a.reports.refresh()
	case viewSettings:
		return a.settings.refresh()
	}
	return nil
}

func (a App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	header := a.renderHeader()
	footer := a.renderFooter()

	var content string
	switch a.activeView {
	case viewDashboard:
		content = a.dashboard.view()
	case viewItems:
		content = a.items.view()
	case viewHistory:
		content = a.history.view()
	case viewReports:
		content = a.reports.view()
	case viewSettings:
		content = a.settings.view()
	}

	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	contentHeight := a.height - headerHeight - footerHeight
	if contentHeight < 1 {
		contentHeight = 1
	}

	if a.backupPicking {
		content = a.renderBackupPicker()
	}

	content = lipgloss.NewStyle().
		Width(a.width).
		Height(contentHeight).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (a App) renderHeader() string {
	var tabs []string
	for i, name := range viewNames {
		if viewState(i) == a.activeView {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}

	tabRow := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("kiroku")
	gap := a.width - lipgloss.Width(title) - lipgloss.Width(tabRow) - 4
	if gap < 1 {
		gap = 1
	}
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return headerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Bottom, title, spacer, tabRow),
	)
}

func (a App) renderFooter() string {
	helpView := a.help.View(keys)

	status := ""
	if a.status != "" {
		style := mutedStyle
		if a.statusErr {
			style = errorStyle
		}
		status = style.Render(" " + a.status)
	}

	// Live timer indicator, visible from every tab.
	timerInfo := ""
	if a.ctl.RunningSession() != nil {
		timerInfo = successStyle.Render(" ● " + report.FormatClock(seconds(a.ctl.Elapsed())))
	}

	left := footerStyle.Render(helpView)
	right := timerInfo + status

	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, right)
}

var backupActions = []string{"Export JSON backup", "Export sessions CSV", "Import JSON backup"}

func (a App) renderBackupPicker() string {
	title := titleStyle.Render("Backup")
	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")
	for i, action := range backupActions {
		cursor := "  "
		style := normalItemStyle
		if i == a.backupCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+action))
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: run  esc: cancel"))

	w := a.width - 4
	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (a App) updateBackupPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if a.backupCursor > 0 {
			a.backupCursor--
		}
	case key.Matches(msg, keys.Down):
		if a.backupCursor < len(backupActions)-1 {
			a.backupCursor++
		}
	case key.Matches(msg, keys.Select):
		a.backupPicking = false
		return a, a.doBackup(a.backupCursor)
	case key.Matches(msg, keys.Back):
		a.backupPicking = false
	}
	return a, nil
}

func (a App) doBackup(action int) tea.Cmd {
	return func() tea.Msg {
		home, err := os.UserHomeDir()
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Backup error: %v", err), isError: true}
		}
		now := time.Now()
		dateStr := now.Format("2006-01-02")

		switch action {
		case 0:
			path := filepath.Join(home, fmt.Sprintf("kiroku-backup-%s.json", dateStr))
			if err := backup.Export(a.store, path, now); err != nil {
				return statusMsg{text: fmt.Sprintf("Export error: %v", err), isError: true}
			}
			return exportDoneMsg{path: path}

		case 1:
			sessions, err := a.store.ListSessions()
			if err != nil {
				return statusMsg{text: fmt.Sprintf("Export error: %v", err), isError: true}
			}
			items := make(map[string]*store.Item)
			list, _ := a.store.ListItems(true)
			for i := range list {
				items[list[i].ID] = &list[i]
			}
			path := filepath.Join(home, fmt.Sprintf("kiroku-sessions-%s.csv", dateStr))
			if err := backup.ToCSV(sessions, items, path, now); err != nil {
				return statusMsg{text: fmt.Sprintf("CSV error: %v", err), isError: true}
			}
			return exportDoneMsg{path: path}

		default:
			path, err := latestBackupFile(home)
			if err != nil {
				return statusMsg{text: fmt.Sprintf("Import error: %v", err), isError: true}
			}
			stats, err := backup.Import(a.store, path)
			if err != nil {
				return statusMsg{text: fmt.Sprintf("Import error: %v", err), isError: true}
			}
			return importDoneMsg{stats: stats}
		}
	}
}

// latestBackupFile picks the newest kiroku-backup-*.json in dir by name,
// which sorts chronologically because of the date suffix.
func latestBackupFile(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "kiroku-backup-*.json"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no kiroku-backup-*.json found in %s", dir)
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}
