package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"kiroku/internal/period"
	"kiroku/internal/report"
	"kiroku/internal/store"
)

type reportsModel struct {
	store  *store.Store
	width  int
	height int

	kind   period.Kind
	ref    time.Time
	weekOn int

	sessions []store.Session
	items    map[string]store.Item
	summary  report.Summary

	chart barchart.Model
}

func newReportsModel(s *store.Store) reportsModel {
	return reportsModel{
		store:  s,
		kind:   period.Day,
		ref:    time.Now(),
		weekOn: 1,
		items:  map[string]store.Item{},
		chart:  barchart.New(60, 12),
	}
}

func (r *reportsModel) setSize(w, h int) {
	r.width = w
	r.height = h
}

func (r reportsModel) refresh() tea.Cmd {
	return func() tea.Msg {
		sessions, _ := r.store.ListSessions()
		items := map[string]store.Item{}
		list, _ := r.store.ListItems(true)
		for _, item := range list {
			items[item.ID] = item
		}
		weekOn := 1
		if settings, err := r.store.GetSettings(); err == nil {
			weekOn = settings.WeekStartsOn
		}
		return reportsDataMsg{sessions: sessions, items: items, weekOn: weekOn}
	}
}

func (r reportsModel) update(msg tea.Msg) (reportsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case reportsDataMsg:
		r.sessions = msg.sessions
		r.items = msg.items
		r.weekOn = msg.weekOn
		r.aggregate()
		return r, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Left):
			r.ref = period.Previous(r.kind, r.ref)
			r.aggregate()
			return r, nil
		case key.Matches(msg, keys.Right):
			r.ref = period.Next(r.kind, r.ref)
			r.aggregate()
			return r, nil
		case key.Matches(msg, keys.Today):
			r.ref = time.Now()
			r.aggregate()
			return r, nil
		case key.Matches(msg, keys.Tab):
			r.kind = period.Kinds[(int(r.kind)+1)%len(period.Kinds)]
			r.ref = time.Now()
			r.aggregate()
			return r, nil
		}
	}
	return r, nil
}

func (r *reportsModel) aggregate() {
	rng := period.Resolve(r.kind, r.ref, r.weekOn)
	r.summary = report.Aggregate(r.sessions, rng, time.Now())
	r.buildChart()
}

func (r *reportsModel) buildChart() {
	chartWidth := r.width - 8
	if chartWidth < 20 {
		chartWidth = 20
	}
	chartHeight := 10
	if r.height > 30 {
		chartHeight = 14
	}

	r.chart = barchart.New(chartWidth, chartHeight)

	var bars []barchart.BarData
	for _, itemID := range r.summary.ItemOrder {
		secs := r.summary.SecondsByItem[itemID]
		hours := float64(secs) / 3600.0
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(itemColor(r.items, itemID)))

		label := itemName(r.items, itemID)
		if runes := []rune(label); len(runes) > 8 {
			label = string(runes[:8])
		}
		bars = append(bars, barchart.BarData{
			Label: label,
			Values: []barchart.BarValue{
				{Name: itemName(r.items, itemID), Value: hours, Style: style},
			},
		})
	}

	if len(bars) == 0 {
		return
	}
	r.chart.PushAll(bars)
	r.chart.Draw()
}

func (r reportsModel) rangeLabel() string {
	rng := period.Resolve(r.kind, r.ref, r.weekOn)
	if rng.Unbounded {
		return "all time"
	}
	last := rng.End.AddDate(0, 0, -1)
	switch r.kind {
	case period.Day:
		return rng.Start.Format("Mon, Jan 02 2006")
	case period.Month:
		return rng.Start.Format("January 2006")
	case period.Year:
		return rng.Start.Format("2006")
	default:
		return fmt.Sprintf("%s - %s", rng.Start.Format("Jan 02"), last.Format("Jan 02, 2006"))
	}
}

func (r reportsModel) view() string {
	w := r.width - 4

	// Period kind tabs
	var kindTabs []string
	for _, k := range period.Kinds {
		if k == r.kind {
			kindTabs = append(kindTabs, activeTabStyle.Render(k.String()))
		} else {
			kindTabs = append(kindTabs, inactiveTabStyle.Render(k.String()))
		}
	}

	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("Reports"), "  ",
		lipgloss.JoinHorizontal(lipgloss.Bottom, kindTabs...), "  ",
		mutedStyle.Render(r.rangeLabel()),
	)

	kpis := r.renderKPIs()
	tableView := r.renderTable()
	nav := mutedStyle.Render("  ←/→: navigate  t: today  tab: period")

	sections := []string{header, "", kpis}
	if len(r.summary.ItemOrder) > 0 {
		sections = append(sections, "", r.chart.View())
	}
	sections = append(sections, "", tableView, "", nav)

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (r reportsModel) renderKPIs() string {
	total := highlightStyle.Render(report.FormatHoursMinutes(r.summary.TotalSeconds))
	count := fmt.Sprintf("%d sessions", r.summary.SessionCount)

	top := "—"
	if r.summary.TopItemID != "" {
		top = itemName(r.items, r.summary.TopItemID)
	}

	return fmt.Sprintf("  Total %s   %s   Top: %s", total, mutedStyle.Render(count), successStyle.Render(top))
}

func (r reportsModel) renderTable() string {
	if len(r.summary.ItemOrder) == 0 {
		return mutedStyle.Render("  No tracked time in this period")
	}

	var rows []string
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-20s %10s", "Item", "Duration")))
	rows = append(rows, mutedStyle.Render("  "+strings.Repeat("─", 32)))

	for _, itemID := range r.summary.ItemOrder {
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color(itemColor(r.items, itemID))).Render("●")
		rows = append(rows, fmt.Sprintf("  %s %-18s %10s",
			dot, itemName(r.items, itemID),
			report.FormatHoursMinutes(r.summary.SecondsByItem[itemID]),
		))
	}

	return strings.Join(rows, "\n")
}
