package store

import "time"

// Item is a trackable activity. Archiving is a soft delete: archived items
// are hidden from the active picker but their past sessions stay aggregable.
type Item struct {
	ID        string
	Name      string
	Color     string
	SortOrder int
	Archived  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session is one contiguous interval of work on an item.
// A nil EndAt means the session is still running.
type Session struct {
	ID        string
	ItemID    string
	StartAt   time.Time
	EndAt     *time.Time
	Note      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Open reports whether the session is still running.
func (s Session) Open() bool { return s.EndAt == nil }

// Settings is the single persistent settings record.
// WeekStartsOn is 0 for Sunday, 1 for Monday.
type Settings struct {
	WeekStartsOn int
	UpdatedAt    time.Time
}

// SessionUpdate holds a partial edit of a session. Nil fields are left
// unchanged; a non-nil EndAt pointing at a nil time reopens the session.
type SessionUpdate struct {
	ItemID  *string
	StartAt *time.Time
	EndAt   **time.Time
	Note    *string
}

// ItemUpdate holds a partial edit of an item.
type ItemUpdate struct {
	Name      *string
	Color     *string
	SortOrder *int
	Archived  *bool
}
