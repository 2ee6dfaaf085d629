package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const itemCols = `id, name, color, sort_order, archived, created_at, updated_at`

// CreateItem adds a new active item. The sort order defaults to the current
// item count, so new items append to the picker.
func (s *Store) CreateItem(name, color string) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM items`).Scan(&count); err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}

	now := s.clock.Now().UTC().Format(time.RFC3339)
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO items (id, name, color, sort_order, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, name, color, count, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	return s.getItem(id)
}

// GetItem returns the item with the given id, or ErrNotFound.
func (s *Store) GetItem(id string) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getItem(id)
}

func (s *Store) getItem(id string) (*Item, error) {
	row := s.db.QueryRow(`SELECT `+itemCols+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get item %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", id, err)
	}
	return item, nil
}

// ListItems returns items ordered by sort order. Archived items are
// excluded unless includeArchived is set.
func (s *Store) ListItems(includeArchived bool) ([]Item, error) {
	query := `SELECT ` + itemCols + ` FROM items`
	if !includeArchived {
		query += ` WHERE archived = 0`
	}
	query += ` ORDER BY sort_order, created_at`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// UpdateItem applies a partial edit to an item.
func (s *Store) UpdateItem(id string, u ItemUpdate) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.getItem(id)
	if err != nil {
		return nil, err
	}

	if u.Name != nil {
		item.Name = *u.Name
	}
	if u.Color != nil {
		item.Color = *u.Color
	}
	if u.SortOrder != nil {
		item.SortOrder = *u.SortOrder
	}
	if u.Archived != nil {
		item.Archived = *u.Archived
	}

	now := s.clock.Now().UTC().Format(time.RFC3339)
	_, err = s.db.Exec(
		`UPDATE items SET name = ?, color = ?, sort_order = ?, archived = ?, updated_at = ? WHERE id = ?`,
		item.Name, item.Color, item.SortOrder, boolToInt(item.Archived), now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update item %s: %w", id, err)
	}
	return s.getItem(id)
}

// ArchiveItem soft-deletes an item, keeping its sessions for history.
func (s *Store) ArchiveItem(id string) error {
	archived := true
	_, err := s.UpdateItem(id, ItemUpdate{Archived: &archived})
	return err
}

// RestoreItem brings an archived item back into the active picker.
func (s *Store) RestoreItem(id string) error {
	archived := false
	_, err := s.UpdateItem(id, ItemUpdate{Archived: &archived})
	return err
}

// DeleteItem removes an item and all of its sessions. The cascade is an
// explicit two-step delete, sessions first, so history never references a
// hard-deleted item.
func (s *Store) DeleteItem(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getItem(id); err != nil {
		return err
	}
	if err := s.deleteSessionsForItem(id); err != nil {
		return err
	}
	if _, err := s.db.Exec(`DELETE FROM items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete item %s: %w", id, err)
	}
	return nil
}

// PutItem upserts a full item record by id (used by backup import).
func (s *Store) PutItem(item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO items (id, name, color, sort_order, archived, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			color = excluded.color,
			sort_order = excluded.sort_order,
			archived = excluded.archived,
			updated_at = excluded.updated_at`,
		item.ID, item.Name, item.Color, item.SortOrder, boolToInt(item.Archived),
		item.CreatedAt.UTC().Format(time.RFC3339), item.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("put item %s: %w", item.ID, err)
	}
	return nil
}

func scanItem(r rowScanner) (*Item, error) {
	item := &Item{}
	var createdAt, updatedAt string
	var archived int
	if err := r.Scan(&item.ID, &item.Name, &item.Color, &item.SortOrder, &archived, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	item.Archived = archived == 1
	item.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	item.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return item, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
