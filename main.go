package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"kiroku/internal/clock"
	"kiroku/internal/notify"
	"kiroku/internal/store"
	"kiroku/internal/timer"
	"kiroku/internal/tui"
)

func main() {
	dbPath, err := store.DefaultDBPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	s, err := store.New(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening database: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	ctl, err := timer.New(s, clock.System{}, notify.New())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading timer state: %v\n", err)
		os.Exit(1)
	}

	app := tui.NewApp(s, ctl)
	p := tea.NewProgram(app, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
