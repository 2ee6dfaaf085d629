package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const sessionCols = `id, item_id, start_at, end_at, note, created_at, updated_at`

// StartSession opens a new session on itemID starting now. It fails with
// ErrSessionRunning if a session is already open; it never auto-closes.
func (s *Store) StartSession(itemID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	running, err := s.getRunning()
	if err != nil {
		return nil, err
	}
	if running != nil {
		return nil, fmt.Errorf("start session for item %s: %w", itemID, ErrSessionRunning)
	}

	now := s.clock.Now().UTC().Format(time.RFC3339)
	id := uuid.NewString()
	_, err = s.db.Exec(
		`INSERT INTO sessions (id, item_id, start_at, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, itemID, now, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	return s.getSession(id)
}

// StopSession closes the named session at the current time. It fails with
// ErrNotFound for an unknown id and ErrAlreadyClosed for a closed session,
// so a double-stop surfaces controller bugs instead of hiding them.
func (s *Store) StopSession(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(id)
	if err != nil {
		return nil, err
	}
	if sess.EndAt != nil {
		return nil, fmt.Errorf("stop session %s: %w", id, ErrAlreadyClosed)
	}

	now := s.clock.Now().UTC().Format(time.RFC3339)
	_, err = s.db.Exec(
		`UPDATE sessions SET end_at = ?, updated_at = ? WHERE id = ?`,
		now, now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("stop session %s: %w", id, err)
	}
	return s.getSession(id)
}

// GetRunning returns the unique open session, or nil if none is running.
func (s *Store) GetRunning() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getRunning()
}

func (s *Store) getRunning() (*Session, error) {
	row := s.db.QueryRow(
		`SELECT ` + sessionCols + ` FROM sessions WHERE end_at IS NULL LIMIT 1`,
	)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get running session: %w", err)
	}
	return sess, nil
}

// GetSession returns the session with the given id, or ErrNotFound.
func (s *Store) GetSession(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getSession(id)
}

func (s *Store) getSession(id string) (*Session, error) {
	row := s.db.QueryRow(
		`SELECT `+sessionCols+` FROM sessions WHERE id = ?`, id,
	)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return sess, nil
}

// ListSessions returns all sessions newest start_at first.
func (s *Store) ListSessions() ([]Session, error) {
	rows, err := s.db.Query(
		`SELECT ` + sessionCols + ` FROM sessions ORDER BY start_at DESC, created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

// UpdateSession applies a partial edit. The store re-validates that end_at
// stays at or after start_at and fails with ErrInvalidRange otherwise,
// regardless of what the caller checked.
func (s *Store) UpdateSession(id string, u SessionUpdate) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(id)
	if err != nil {
		return nil, err
	}

	if u.ItemID != nil {
		sess.ItemID = *u.ItemID
	}
	if u.StartAt != nil {
		sess.StartAt = *u.StartAt
	}
	if u.EndAt != nil {
		sess.EndAt = *u.EndAt
	}
	if u.Note != nil {
		sess.Note = *u.Note
	}

	if sess.EndAt != nil && sess.EndAt.Before(sess.StartAt) {
		return nil, fmt.Errorf("update session %s: %w", id, ErrInvalidRange)
	}

	var endStr any
	if sess.EndAt != nil {
		endStr = sess.EndAt.UTC().Format(time.RFC3339)
	}
	now := s.clock.Now().UTC().Format(time.RFC3339)
	_, err = s.db.Exec(
		`UPDATE sessions SET item_id = ?, start_at = ?, end_at = ?, note = ?, updated_at = ? WHERE id = ?`,
		sess.ItemID, sess.StartAt.UTC().Format(time.RFC3339), endStr, sess.Note, now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update session %s: %w", id, err)
	}
	return s.getSession(id)
}

// DeleteSession removes a session. Deleting the running session clears the
// running state, since that state is nothing but the open row.
func (s *Store) DeleteSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete session %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteSessionsForItem removes every session referencing itemID.
func (s *Store) DeleteSessionsForItem(itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteSessionsForItem(itemID)
}

func (s *Store) deleteSessionsForItem(itemID string) error {
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE item_id = ?`, itemID); err != nil {
		return fmt.Errorf("delete sessions for item %s: %w", itemID, err)
	}
	return nil
}

// PutSession upserts a full session record by id (used by backup import).
// Update-then-insert rather than ON CONFLICT: upserting the row that is
// itself the open session must not trip the open-session unique index,
// while inserting a second open row must.
func (s *Store) PutSession(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var endStr any
	if sess.EndAt != nil {
		endStr = sess.EndAt.UTC().Format(time.RFC3339)
	}
	startStr := sess.StartAt.UTC().Format(time.RFC3339)

	res, err := s.db.Exec(
		`UPDATE sessions SET item_id = ?, start_at = ?, end_at = ?, note = ?, updated_at = ? WHERE id = ?`,
		sess.ItemID, startStr, endStr, sess.Note,
		sess.UpdatedAt.UTC().Format(time.RFC3339), sess.ID,
	)
	if err != nil {
		return fmt.Errorf("put session %s: %w", sess.ID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	_, err = s.db.Exec(
		`INSERT INTO sessions (id, item_id, start_at, end_at, note, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.ItemID, startStr, endStr, sess.Note,
		sess.CreatedAt.UTC().Format(time.RFC3339), sess.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("put session %s: %w", sess.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (*Session, error) {
	sess := &Session{}
	var startAt, createdAt, updatedAt string
	var endAt sql.NullString
	if err := r.Scan(&sess.ID, &sess.ItemID, &startAt, &endAt, &sess.Note, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	sess.StartAt, _ = time.Parse(time.RFC3339, startAt)
	if endAt.Valid {
		t, _ := time.Parse(time.RFC3339, endAt.String)
		sess.EndAt = &t
	}
	sess.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	sess.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return sess, nil
}
