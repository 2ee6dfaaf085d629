// Package backup serializes the full item/session/settings collections to
// a versioned JSON document and merges such documents back in by id.
package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"kiroku/internal/store"
)

// Version is the backup document format version.
const Version = 1

// Document is the on-disk backup format. Timestamps are RFC3339 strings,
// matching the wire format of the data the app exchanges.
type Document struct {
	Items      []itemRecord    `json:"items"`
	Sessions   []sessionRecord `json:"sessions"`
	Settings   []settingRecord `json:"settings"`
	ExportedAt string          `json:"exportedAt"`
	Version    int             `json:"version"`
}

type itemRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color,omitempty"`
	SortOrder int    `json:"sortOrder"`
	Archived  bool   `json:"archived"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type sessionRecord struct {
	ID        string  `json:"id"`
	ItemID    string  `json:"itemId"`
	StartAt   string  `json:"startAt"`
	EndAt     *string `json:"endAt"`
	Note      string  `json:"note,omitempty"`
	CreatedAt string  `json:"createdAt"`
	UpdatedAt string  `json:"updatedAt"`
}

type settingRecord struct {
	ID           string `json:"id"`
	WeekStartsOn int    `json:"weekStartsOn"`
	UpdatedAt    string `json:"updatedAt"`
}

// Export writes the store's full contents to path as pretty-printed JSON.
func Export(s *store.Store, path string, now time.Time) error {
	items, err := s.ListItems(true)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	sessions, err := s.ListSessions()
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	settings, err := s.GetSettings()
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	doc := Document{
		Items:      []itemRecord{},
		Sessions:   []sessionRecord{},
		ExportedAt: now.UTC().Format(time.RFC3339),
		Version:    Version,
	}
	for _, it := range items {
		doc.Items = append(doc.Items, itemRecord{
			ID:        it.ID,
			Name:      it.Name,
			Color:     it.Color,
			SortOrder: it.SortOrder,
			Archived:  it.Archived,
			CreatedAt: it.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt: it.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	for _, sess := range sessions {
		rec := sessionRecord{
			ID:        sess.ID,
			ItemID:    sess.ItemID,
			StartAt:   sess.StartAt.UTC().Format(time.RFC3339),
			Note:      sess.Note,
			CreatedAt: sess.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt: sess.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if sess.EndAt != nil {
			end := sess.EndAt.UTC().Format(time.RFC3339)
			rec.EndAt = &end
		}
		doc.Sessions = append(doc.Sessions, rec)
	}
	doc.Settings = []settingRecord{{
		ID:           "default",
		WeekStartsOn: settings.WeekStartsOn,
		UpdatedAt:    settings.UpdatedAt.UTC().Format(time.RFC3339),
	}}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal backup: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	return nil
}

// Stats reports what an import wrote.
type Stats struct {
	Items    int
	Sessions int
}

// Import merges the document at path into the store, upserting by id
// (last write wins per record). The whole document is validated before
// anything is written, so a malformed backup is one descriptive error
// with no partial side effects. A document whose open session would
// coexist with the store's running session is rejected up front; a
// document that closes the running session by id and opens another is
// fine, and the closing record is written before the open one.
func Import(s *store.Store, path string) (Stats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Stats{}, fmt.Errorf("read backup: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Stats{}, fmt.Errorf("parse backup: %w", err)
	}

	items, sessions, settings, err := validate(doc)
	if err != nil {
		return Stats{}, fmt.Errorf("invalid backup: %w", err)
	}

	closed := make([]store.Session, 0, len(sessions))
	var open *store.Session
	for i := range sessions {
		if sessions[i].EndAt == nil {
			open = &sessions[i]
		} else {
			closed = append(closed, sessions[i])
		}
	}

	if open != nil {
		running, err := s.GetRunning()
		if err != nil {
			return Stats{}, fmt.Errorf("import: %w", err)
		}
		if running != nil && running.ID != open.ID && !closes(closed, running.ID) {
			return Stats{}, fmt.Errorf(
				"invalid backup: open session %s conflicts with running session %s; stop the timer or restore a backup that closes it",
				open.ID, running.ID)
		}
	}

	for _, it := range items {
		if err := s.PutItem(it); err != nil {
			return Stats{}, fmt.Errorf("import item %s: %w", it.ID, err)
		}
	}
	for _, sess := range closed {
		if err := s.PutSession(sess); err != nil {
			return Stats{}, fmt.Errorf("import session %s: %w", sess.ID, err)
		}
	}
	if open != nil {
		if err := s.PutSession(*open); err != nil {
			return Stats{}, fmt.Errorf("import session %s: %w", open.ID, err)
		}
	}
	if settings != nil {
		if err := s.PutSettings(*settings); err != nil {
			return Stats{}, fmt.Errorf("import settings: %w", err)
		}
	}

	return Stats{Items: len(items), Sessions: len(sessions)}, nil
}

func closes(sessions []store.Session, id string) bool {
	for _, sess := range sessions {
		if sess.ID == id {
			return true
		}
	}
	return false
}

func validate(doc Document) ([]store.Item, []store.Session, *store.Settings, error) {
	if doc.Version > Version {
		return nil, nil, nil, fmt.Errorf("unsupported version %d", doc.Version)
	}
	if doc.Items == nil || doc.Sessions == nil {
		return nil, nil, nil, fmt.Errorf("missing items or sessions collection")
	}

	items := make([]store.Item, 0, len(doc.Items))
	for i, rec := range doc.Items {
		if rec.ID == "" {
			return nil, nil, nil, fmt.Errorf("item %d: empty id", i)
		}
		created, err := parseTime(rec.CreatedAt)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("item %s: createdAt: %w", rec.ID, err)
		}
		updated, err := parseTime(rec.UpdatedAt)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("item %s: updatedAt: %w", rec.ID, err)
		}
		items = append(items, store.Item{
			ID:        rec.ID,
			Name:      rec.Name,
			Color:     rec.Color,
			SortOrder: rec.SortOrder,
			Archived:  rec.Archived,
			CreatedAt: created,
			UpdatedAt: updated,
		})
	}

	openCount := 0
	sessions := make([]store.Session, 0, len(doc.Sessions))
	for i, rec := range doc.Sessions {
		if rec.ID == "" {
			return nil, nil, nil, fmt.Errorf("session %d: empty id", i)
		}
		start, err := parseTime(rec.StartAt)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("session %s: startAt: %w", rec.ID, err)
		}
		sess := store.Session{
			ID:      rec.ID,
			ItemID:  rec.ItemID,
			StartAt: start,
			Note:    rec.Note,
		}
		if rec.EndAt != nil {
			end, err := parseTime(*rec.EndAt)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("session %s: endAt: %w", rec.ID, err)
			}
			if end.Before(start) {
				return nil, nil, nil, fmt.Errorf("session %s: end before start", rec.ID)
			}
			sess.EndAt = &end
		} else {
			openCount++
		}
		sess.CreatedAt, err = parseTime(rec.CreatedAt)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("session %s: createdAt: %w", rec.ID, err)
		}
		sess.UpdatedAt, err = parseTime(rec.UpdatedAt)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("session %s: updatedAt: %w", rec.ID, err)
		}
		sessions = append(sessions, sess)
	}
	if openCount > 1 {
		return nil, nil, nil, fmt.Errorf("%d open sessions, at most one allowed", openCount)
	}

	var settings *store.Settings
	for _, rec := range doc.Settings {
		if rec.ID != "default" {
			continue
		}
		updated, err := parseTime(rec.UpdatedAt)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("settings: updatedAt: %w", err)
		}
		if rec.WeekStartsOn != 0 && rec.WeekStartsOn != 1 {
			return nil, nil, nil, fmt.Errorf("settings: weekStartsOn %d not 0 or 1", rec.WeekStartsOn)
		}
		settings = &store.Settings{WeekStartsOn: rec.WeekStartsOn, UpdatedAt: updated}
	}

	return items, sessions, settings, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q", s)
	}
	return t, nil
}
