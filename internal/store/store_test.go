package store

import (
	"errors"
	"testing"
	"time"

	"kiroku/internal/clock"
)

var testEpoch = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *clock.Mock) {
	t.Helper()
	c := clock.NewMock(testEpoch)
	s, err := NewMemoryWithClock(c)
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, c
}

func mustCreateItem(t *testing.T, s *Store, name string) *Item {
	t.Helper()
	item, err := s.CreateItem(name, "#FF0000")
	if err != nil {
		t.Fatalf("create item %q: %v", name, err)
	}
	return item
}

// ============================================================
// Store initialization
// ============================================================

func TestNewMemory(t *testing.T) {
	s, err := NewMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	var version int
	s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if version != 1 {
		t.Fatalf("expected user_version 1, got %d", version)
	}
}

func TestNewWithPath(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/sub/kiroku.db"
	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	// Reopen: migration must be idempotent
	s2, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	s2.Close()
}

func TestDefaultDBPath(t *testing.T) {
	path, err := DefaultDBPath()
	if err != nil {
		t.Fatal(err)
	}
	if path == "" {
		t.Fatal("empty path")
	}
}

// ============================================================
// Items
// ============================================================

func TestCreateAndGetItem(t *testing.T) {
	s, _ := newTestStore(t)

	item := mustCreateItem(t, s, "Deep Work")
	if item.ID == "" {
		t.Fatal("expected generated id")
	}
	if item.SortOrder != 0 {
		t.Fatalf("first item sort order = %d, want 0", item.SortOrder)
	}

	got, err := s.GetItem(item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Deep Work" || got.Color != "#FF0000" {
		t.Fatalf("got %+v", got)
	}
}

func TestCreateItemSortOrderIncrements(t *testing.T) {
	s, _ := newTestStore(t)

	a := mustCreateItem(t, s, "a")
	b := mustCreateItem(t, s, "b")
	c := mustCreateItem(t, s, "c")

	if a.SortOrder != 0 || b.SortOrder != 1 || c.SortOrder != 2 {
		t.Fatalf("sort orders = %d %d %d", a.SortOrder, b.SortOrder, c.SortOrder)
	}
}

func TestGetItemNotFound(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.GetItem("nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListItemsExcludesArchived(t *testing.T) {
	s, _ := newTestStore(t)

	a := mustCreateItem(t, s, "active")
	b := mustCreateItem(t, s, "shelved")
	if err := s.ArchiveItem(b.ID); err != nil {
		t.Fatal(err)
	}

	items, err := s.ListItems(false)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ID != a.ID {
		t.Fatalf("active list = %+v", items)
	}

	all, err := s.ListItems(true)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("full list len = %d, want 2", len(all))
	}
}

func TestArchiveAndRestoreItem(t *testing.T) {
	s, _ := newTestStore(t)

	item := mustCreateItem(t, s, "x")
	if err := s.ArchiveItem(item.ID); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetItem(item.ID)
	if !got.Archived {
		t.Fatal("expected archived")
	}

	if err := s.RestoreItem(item.ID); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetItem(item.ID)
	if got.Archived {
		t.Fatal("expected restored")
	}
}

func TestUpdateItemPartial(t *testing.T) {
	s, _ := newTestStore(t)

	item := mustCreateItem(t, s, "before")
	name := "after"
	got, err := s.UpdateItem(item.ID, ItemUpdate{Name: &name})
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "after" {
		t.Fatalf("name = %q", got.Name)
	}
	if got.Color != item.Color {
		t.Fatalf("color changed to %q", got.Color)
	}
}

func TestUpdateItemNotFound(t *testing.T) {
	s, _ := newTestStore(t)

	name := "x"
	_, err := s.UpdateItem("nope", ItemUpdate{Name: &name})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteItemCascadesSessions(t *testing.T) {
	s, c := newTestStore(t)

	item := mustCreateItem(t, s, "doomed")
	keep := mustCreateItem(t, s, "keep")

	sess, err := s.StartSession(item.ID)
	if err != nil {
		t.Fatal(err)
	}
	c.Advance(time.Minute)
	if _, err := s.StopSession(sess.ID); err != nil {
		t.Fatal(err)
	}
	other, _ := s.StartSession(keep.ID)
	c.Advance(time.Minute)
	s.StopSession(other.ID)

	if err := s.DeleteItem(item.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := s.GetItem(item.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("item still present: %v", err)
	}
	sessions, _ := s.ListSessions()
	for _, sess := range sessions {
		if sess.ItemID == item.ID {
			t.Fatal("session for deleted item survived")
		}
	}
	if len(sessions) != 1 {
		t.Fatalf("sessions len = %d, want 1", len(sessions))
	}
}

func TestDeleteItemNotFound(t *testing.T) {
	s, _ := newTestStore(t)

	if err := s.DeleteItem("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// ============================================================
// Sessions
// ============================================================

func TestStartAndStopSession(t *testing.T) {
	s, c := newTestStore(t)
	item := mustCreateItem(t, s, "work")

	sess, err := s.StartSession(item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !sess.Open() {
		t.Fatal("new session should be open")
	}
	if !sess.StartAt.Equal(testEpoch) {
		t.Fatalf("start = %v, want %v", sess.StartAt, testEpoch)
	}

	c.Advance(25 * time.Minute)

	stopped, err := s.StopSession(sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stopped.Open() {
		t.Fatal("stopped session still open")
	}
	want := testEpoch.Add(25 * time.Minute)
	if !stopped.EndAt.Equal(want) {
		t.Fatalf("end = %v, want %v", stopped.EndAt, want)
	}
}

func TestStartSessionWhileRunning(t *testing.T) {
	s, _ := newTestStore(t)
	item := mustCreateItem(t, s, "work")

	if _, err := s.StartSession(item.ID); err != nil {
		t.Fatal(err)
	}
	_, err := s.StartSession(item.ID)
	if !errors.Is(err, ErrSessionRunning) {
		t.Fatalf("expected ErrSessionRunning, got %v", err)
	}
}

func TestStopSessionTwice(t *testing.T) {
	s, c := newTestStore(t)
	item := mustCreateItem(t, s, "work")

	sess, _ := s.StartSession(item.ID)
	c.Advance(time.Minute)
	if _, err := s.StopSession(sess.ID); err != nil {
		t.Fatal(err)
	}
	_, err := s.StopSession(sess.ID)
	if !errors.Is(err, ErrAlreadyClosed) {
		t.Fatalf("expected ErrAlreadyClosed, got %v", err)
	}
}

func TestStopSessionNotFound(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.StopSession("nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetRunning(t *testing.T) {
	s, _ := newTestStore(t)
	item := mustCreateItem(t, s, "work")

	running, err := s.GetRunning()
	if err != nil {
		t.Fatal(err)
	}
	if running != nil {
		t.Fatalf("expected no running session, got %+v", running)
	}

	sess, _ := s.StartSession(item.ID)
	running, err = s.GetRunning()
	if err != nil {
		t.Fatal(err)
	}
	if running == nil || running.ID != sess.ID {
		t.Fatalf("running = %+v, want id %s", running, sess.ID)
	}
}

func TestListSessionsNewestFirst(t *testing.T) {
	s, c := newTestStore(t)
	item := mustCreateItem(t, s, "work")

	first, _ := s.StartSession(item.ID)
	c.Advance(time.Minute)
	s.StopSession(first.ID)
	c.Advance(time.Minute)
	second, _ := s.StartSession(item.ID)
	c.Advance(time.Minute)
	s.StopSession(second.ID)

	sessions, err := s.ListSessions()
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 {
		t.Fatalf("len = %d", len(sessions))
	}
	if sessions[0].ID != second.ID || sessions[1].ID != first.ID {
		t.Fatal("expected newest first")
	}
}

func TestUpdateSessionNote(t *testing.T) {
	s, c := newTestStore(t)
	item := mustCreateItem(t, s, "work")

	sess, _ := s.StartSession(item.ID)
	c.Advance(time.Minute)
	s.StopSession(sess.ID)

	note := "reviewed PRs"
	got, err := s.UpdateSession(sess.ID, SessionUpdate{Note: &note})
	if err != nil {
		t.Fatal(err)
	}
	if got.Note != "reviewed PRs" {
		t.Fatalf("note = %q", got.Note)
	}
}

func TestUpdateSessionRejectsEndBeforeStart(t *testing.T) {
	s, c := newTestStore(t)
	item := mustCreateItem(t, s, "work")

	sess, _ := s.StartSession(item.ID)
	c.Advance(time.Hour)
	s.StopSession(sess.ID)

	bad := testEpoch.Add(-time.Minute)
	badPtr := &bad
	_, err := s.UpdateSession(sess.ID, SessionUpdate{EndAt: &badPtr})
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}

	// Unchanged on failure
	got, _ := s.GetSession(sess.ID)
	if !got.EndAt.Equal(testEpoch.Add(time.Hour)) {
		t.Fatalf("end mutated to %v", got.EndAt)
	}
}

func TestUpdateSessionReopen(t *testing.T) {
	s, c := newTestStore(t)
	item := mustCreateItem(t, s, "work")

	sess, _ := s.StartSession(item.ID)
	c.Advance(time.Minute)
	s.StopSession(sess.ID)

	var nilEnd *time.Time
	got, err := s.UpdateSession(sess.ID, SessionUpdate{EndAt: &nilEnd})
	if err != nil {
		t.Fatal(err)
	}
	if !got.Open() {
		t.Fatal("expected session reopened")
	}
}

func TestDeleteSession(t *testing.T) {
	s, c := newTestStore(t)
	item := mustCreateItem(t, s, "work")

	sess, _ := s.StartSession(item.ID)
	c.Advance(time.Minute)
	s.StopSession(sess.ID)

	if err := s.DeleteSession(sess.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetSession(sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteSession(sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestDeleteRunningSession(t *testing.T) {
	s, _ := newTestStore(t)
	item := mustCreateItem(t, s, "work")

	sess, _ := s.StartSession(item.ID)
	if err := s.DeleteSession(sess.ID); err != nil {
		t.Fatal(err)
	}
	running, _ := s.GetRunning()
	if running != nil {
		t.Fatal("running session survived delete")
	}
}

func TestPutSessionUpsert(t *testing.T) {
	s, _ := newTestStore(t)
	item := mustCreateItem(t, s, "work")

	end := testEpoch.Add(time.Hour)
	sess := Session{
		ID:        "fixed-id",
		ItemID:    item.ID,
		StartAt:   testEpoch,
		EndAt:     &end,
		Note:      "v1",
		CreatedAt: testEpoch,
		UpdatedAt: testEpoch,
	}
	if err := s.PutSession(sess); err != nil {
		t.Fatal(err)
	}

	sess.Note = "v2"
	if err := s.PutSession(sess); err != nil {
		t.Fatal(err)
	}

	sessions, _ := s.ListSessions()
	if len(sessions) != 1 {
		t.Fatalf("len = %d, want 1 after upsert", len(sessions))
	}
	if sessions[0].Note != "v2" {
		t.Fatalf("note = %q", sessions[0].Note)
	}
}

func TestOpenSessionIndexRejectsSecondOpenRow(t *testing.T) {
	s, _ := newTestStore(t)
	item := mustCreateItem(t, s, "work")
	if _, err := s.StartSession(item.ID); err != nil {
		t.Fatal(err)
	}

	// Bypass the API: the schema itself must refuse a second open row.
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, item_id, start_at, end_at, note, created_at, updated_at)
		 VALUES ('rogue', ?, '2025-03-10T10:00:00Z', NULL, '', '2025-03-10T10:00:00Z', '2025-03-10T10:00:00Z')`,
		item.ID,
	)
	if err == nil {
		t.Fatal("second open row inserted, unique index not enforced")
	}
}

func TestPutSessionReputOpenRow(t *testing.T) {
	s, _ := newTestStore(t)
	item := mustCreateItem(t, s, "work")
	running, err := s.StartSession(item.ID)
	if err != nil {
		t.Fatal(err)
	}

	// Re-upserting the row that is itself the open session is fine.
	running.Note = "still going"
	if err := s.PutSession(*running); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetRunning()
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Note != "still going" {
		t.Fatalf("running = %+v", got)
	}
}

// ============================================================
// Settings
// ============================================================

func TestGetSettingsLazyDefault(t *testing.T) {
	s, _ := newTestStore(t)

	settings, err := s.GetSettings()
	if err != nil {
		t.Fatal(err)
	}
	if settings.WeekStartsOn != 1 {
		t.Fatalf("default week start = %d, want 1", settings.WeekStartsOn)
	}

	// Second read sees the persisted record
	again, err := s.GetSettings()
	if err != nil {
		t.Fatal(err)
	}
	if again.WeekStartsOn != 1 {
		t.Fatalf("week start = %d", again.WeekStartsOn)
	}
}

func TestSetWeekStartsOn(t *testing.T) {
	s, _ := newTestStore(t)

	if err := s.SetWeekStartsOn(0); err != nil {
		t.Fatal(err)
	}
	settings, _ := s.GetSettings()
	if settings.WeekStartsOn != 0 {
		t.Fatalf("week start = %d, want 0", settings.WeekStartsOn)
	}
}

func TestSetWeekStartsOnRejectsInvalid(t *testing.T) {
	s, _ := newTestStore(t)

	if err := s.SetWeekStartsOn(3); err == nil {
		t.Fatal("expected error for week start 3")
	}
}

func TestSettingsSingleRecord(t *testing.T) {
	s, _ := newTestStore(t)

	s.GetSettings()
	s.SetWeekStartsOn(0)
	s.SetWeekStartsOn(1)

	var count int
	s.db.QueryRow(`SELECT COUNT(*) FROM settings`).Scan(&count)
	if count != 1 {
		t.Fatalf("settings rows = %d, want 1", count)
	}
}
