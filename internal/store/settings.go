package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const defaultWeekStartsOn = 1 // Monday

// GetSettings returns the settings record, creating it with defaults on
// first read.
func (s *Store) GetSettings() (*Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getSettings()
}

func (s *Store) getSettings() (*Settings, error) {
	var weekStartsOn int
	var updatedAt string
	err := s.db.QueryRow(
		`SELECT week_starts_on, updated_at FROM settings WHERE id = 'default'`,
	).Scan(&weekStartsOn, &updatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		now := s.clock.Now().UTC()
		_, err = s.db.Exec(
			`INSERT INTO settings (id, week_starts_on, updated_at) VALUES ('default', ?, ?)`,
			defaultWeekStartsOn, now.Format(time.RFC3339),
		)
		if err != nil {
			return nil, fmt.Errorf("create default settings: %w", err)
		}
		return &Settings{WeekStartsOn: defaultWeekStartsOn, UpdatedAt: now}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}

	st := &Settings{WeekStartsOn: weekStartsOn}
	st.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return st, nil
}

// SetWeekStartsOn persists the first day of the week: 0 Sunday, 1 Monday.
func (s *Store) SetWeekStartsOn(weekStartsOn int) error {
	if weekStartsOn != 0 && weekStartsOn != 1 {
		return fmt.Errorf("set week start: value %d not 0 or 1", weekStartsOn)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(
		`INSERT INTO settings (id, week_starts_on, updated_at) VALUES ('default', ?, ?)
		 ON CONFLICT(id) DO UPDATE SET week_starts_on = excluded.week_starts_on, updated_at = excluded.updated_at`,
		weekStartsOn, now,
	)
	if err != nil {
		return fmt.Errorf("set week start: %w", err)
	}
	return nil
}

// PutSettings upserts the settings record (used by backup import).
func (s *Store) PutSettings(st Settings) error {
	if st.WeekStartsOn != 0 && st.WeekStartsOn != 1 {
		return fmt.Errorf("put settings: week start %d not 0 or 1", st.WeekStartsOn)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO settings (id, week_starts_on, updated_at) VALUES ('default', ?, ?)
		 ON CONFLICT(id) DO UPDATE SET week_starts_on = excluded.week_starts_on, updated_at = excluded.updated_at`,
		st.WeekStartsOn, st.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("put settings: %w", err)
	}
	return nil
}
