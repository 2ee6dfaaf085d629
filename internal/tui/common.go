package tui

import (
	"time"

	"kiroku/internal/backup"
	"kiroku/internal/store"
)

// viewState represents the currently active view.
type viewState int

const (
	viewDashboard viewState = iota
	viewItems
	viewHistory
	viewReports
	viewSettings
)

var viewNames = []string{"Dashboard", "Items", "History", "Reports", "Settings"}

// --- Messages ---

type statusMsg struct {
	text    string
	isError bool
}

type tickMsg time.Time

// timerChangedMsg is emitted whenever a session was started or stopped.
type timerChangedMsg struct{}

type dashboardDataMsg struct {
	items []store.Item
}

type historyDataMsg struct {
	sessions []store.Session
	items    map[string]store.Item
}

type reportsDataMsg struct {
	sessions []store.Session
	items    map[string]store.Item
	weekOn   int
}

type settingsDataMsg struct {
	settings *store.Settings
}

type exportDoneMsg struct {
	path string
}

type importDoneMsg struct {
	stats backup.Stats
}

// --- Helpers ---

// itemName resolves an item id against the lookup map, degrading to
// "unknown" for dangling references instead of failing.
func itemName(items map[string]store.Item, id string) string {
	if item, ok := items[id]; ok {
		return item.Name
	}
	return "unknown"
}

func itemColor(items map[string]store.Item, id string) string {
	if item, ok := items[id]; ok && item.Color != "" {
		return item.Color
	}
	return "#666666"
}

func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// truncate clips s to at most n runes, replacing the tail with "..."
// when it does. Rune-based so multibyte text is never cut mid-rune.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
