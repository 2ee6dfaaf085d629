package backup

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kiroku/internal/clock"
	"kiroku/internal/store"
)

var testEpoch = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*store.Store, *clock.Mock) {
	t.Helper()
	c := clock.NewMock(testEpoch)
	s, err := store.NewMemoryWithClock(c)
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, c
}

func seedStore(t *testing.T, s *store.Store, c *clock.Mock) (*store.Item, *store.Item) {
	t.Helper()
	a, err := s.CreateItem("Deep Work", "#FF0000")
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.CreateItem("Email", "#00FF00")
	if err != nil {
		t.Fatal(err)
	}

	sess, err := s.StartSession(a.ID)
	if err != nil {
		t.Fatal(err)
	}
	c.Advance(25 * time.Minute)
	if _, err := s.StopSession(sess.ID); err != nil {
		t.Fatal(err)
	}

	if err := s.SetWeekStartsOn(0); err != nil {
		t.Fatal(err)
	}
	return a, b
}

// ============================================================
// JSON export / import
// ============================================================

func TestExportDocumentShape(t *testing.T) {
	s, c := newTestStore(t)
	seedStore(t, s, c)

	path := filepath.Join(t.TempDir(), "backup.json")
	if err := Export(s, path, c.Now()); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Version != 1 {
		t.Fatalf("version = %d", doc.Version)
	}
	if len(doc.Items) != 2 || len(doc.Sessions) != 1 || len(doc.Settings) != 1 {
		t.Fatalf("doc = %d items, %d sessions, %d settings", len(doc.Items), len(doc.Sessions), len(doc.Settings))
	}
	if doc.Settings[0].WeekStartsOn != 0 {
		t.Fatalf("weekStartsOn = %d", doc.Settings[0].WeekStartsOn)
	}
	if doc.ExportedAt == "" {
		t.Fatal("missing exportedAt")
	}

	// Field names are the wire format, not Go names
	raw := string(data)
	for _, field := range []string{`"itemId"`, `"startAt"`, `"sortOrder"`, `"weekStartsOn"`, `"exportedAt"`} {
		if !strings.Contains(raw, field) {
			t.Fatalf("document missing %s field", field)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	src, c := newTestStore(t)
	a, _ := seedStore(t, src, c)

	path := filepath.Join(t.TempDir(), "backup.json")
	if err := Export(src, path, c.Now()); err != nil {
		t.Fatal(err)
	}

	dst, _ := newTestStore(t)
	stats, err := Import(dst, path)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Items != 2 || stats.Sessions != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	got, err := dst.GetItem(a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Deep Work" || got.Color != "#FF0000" {
		t.Fatalf("item = %+v", got)
	}

	sessions, _ := dst.ListSessions()
	if len(sessions) != 1 || sessions[0].ItemID != a.ID || sessions[0].Open() {
		t.Fatalf("sessions = %+v", sessions)
	}

	settings, _ := dst.GetSettings()
	if settings.WeekStartsOn != 0 {
		t.Fatalf("weekStartsOn = %d", settings.WeekStartsOn)
	}
}

func TestImportUpsertsById(t *testing.T) {
	src, c := newTestStore(t)
	a, _ := seedStore(t, src, c)

	path := filepath.Join(t.TempDir(), "backup.json")
	if err := Export(src, path, c.Now()); err != nil {
		t.Fatal(err)
	}

	// Rename the item, then re-import the old backup over it.
	name := "Renamed"
	if _, err := src.UpdateItem(a.ID, store.ItemUpdate{Name: &name}); err != nil {
		t.Fatal(err)
	}

	if _, err := Import(src, path); err != nil {
		t.Fatal(err)
	}

	got, _ := src.GetItem(a.ID)
	if got.Name != "Deep Work" {
		t.Fatalf("name = %q, backup should win by id", got.Name)
	}
	items, _ := src.ListItems(true)
	if len(items) != 2 {
		t.Fatalf("items duplicated: %d", len(items))
	}
}

func TestImportRunningSessionSurvives(t *testing.T) {
	src, c := newTestStore(t)
	a, _ := seedStore(t, src, c)
	if _, err := src.StartSession(a.ID); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "backup.json")
	if err := Export(src, path, c.Now()); err != nil {
		t.Fatal(err)
	}

	dst, _ := newTestStore(t)
	if _, err := Import(dst, path); err != nil {
		t.Fatal(err)
	}

	running, err := dst.GetRunning()
	if err != nil {
		t.Fatal(err)
	}
	if running == nil || running.ItemID != a.ID {
		t.Fatalf("running = %+v", running)
	}
}

// ============================================================
// Validation
// ============================================================

func writeDoc(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backup.json")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestImportRejectsNewerVersion(t *testing.T) {
	s, _ := newTestStore(t)
	path := writeDoc(t, `{"items":[],"sessions":[],"settings":[],"exportedAt":"2025-03-10T09:00:00Z","version":2}`)

	if _, err := Import(s, path); err == nil {
		t.Fatal("expected version error")
	}
}

func TestImportRejectsMissingCollections(t *testing.T) {
	s, _ := newTestStore(t)
	path := writeDoc(t, `{"settings":[],"version":1}`)

	if _, err := Import(s, path); err == nil {
		t.Fatal("expected missing collections error")
	}
}

func TestImportRejectsBadTimestamp(t *testing.T) {
	s, _ := newTestStore(t)
	path := writeDoc(t, `{
		"items":[{"id":"i1","name":"x","sortOrder":0,"archived":false,"createdAt":"not-a-time","updatedAt":"2025-03-10T09:00:00Z"}],
		"sessions":[],"settings":[],"version":1}`)

	if _, err := Import(s, path); err == nil {
		t.Fatal("expected timestamp error")
	}
}

func TestImportRejectsEndBeforeStart(t *testing.T) {
	s, _ := newTestStore(t)
	path := writeDoc(t, `{
		"items":[],
		"sessions":[{"id":"s1","itemId":"i1","startAt":"2025-03-10T10:00:00Z","endAt":"2025-03-10T09:00:00Z","createdAt":"2025-03-10T09:00:00Z","updatedAt":"2025-03-10T09:00:00Z"}],
		"settings":[],"version":1}`)

	if _, err := Import(s, path); err == nil {
		t.Fatal("expected end-before-start error")
	}
}

func TestImportRejectsMultipleOpenSessions(t *testing.T) {
	s, _ := newTestStore(t)
	path := writeDoc(t, `{
		"items":[],
		"sessions":[
			{"id":"s1","itemId":"i1","startAt":"2025-03-10T09:00:00Z","endAt":null,"createdAt":"2025-03-10T09:00:00Z","updatedAt":"2025-03-10T09:00:00Z"},
			{"id":"s2","itemId":"i1","startAt":"2025-03-10T10:00:00Z","endAt":null,"createdAt":"2025-03-10T10:00:00Z","updatedAt":"2025-03-10T10:00:00Z"}
		],
		"settings":[],"version":1}`)

	if _, err := Import(s, path); err == nil {
		t.Fatal("expected open-session count error")
	}
}

func TestImportRejectsOpenSessionConflictingWithRunning(t *testing.T) {
	s, c := newTestStore(t)
	a, _ := seedStore(t, s, c)
	running, err := s.StartSession(a.ID)
	if err != nil {
		t.Fatal(err)
	}

	// The document's open session is not the running one and nothing in
	// the document closes the running one: two open sessions if written.
	path := writeDoc(t, `{
		"items":[],
		"sessions":[{"id":"other-open","itemId":"i1","startAt":"2025-03-10T10:00:00Z","endAt":null,"createdAt":"2025-03-10T10:00:00Z","updatedAt":"2025-03-10T10:00:00Z"}],
		"settings":[],"version":1}`)

	if _, err := Import(s, path); err == nil {
		t.Fatal("expected running-session conflict error")
	}

	got, err := s.GetRunning()
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != running.ID {
		t.Fatalf("running = %+v, want untouched %s", got, running.ID)
	}
	sessions, _ := s.ListSessions()
	open := 0
	for _, sess := range sessions {
		if sess.Open() {
			open++
		}
	}
	if open != 1 {
		t.Fatalf("open sessions = %d, want 1", open)
	}
}

func TestImportClosesRunningSessionAndOpensAnother(t *testing.T) {
	s, c := newTestStore(t)
	a, _ := seedStore(t, s, c)
	running, err := s.StartSession(a.ID)
	if err != nil {
		t.Fatal(err)
	}

	// The document closes the currently running session by id and opens
	// a different one, so at no point are two sessions open.
	doc := `{
		"items":[],
		"sessions":[
			{"id":"` + running.ID + `","itemId":"` + a.ID + `","startAt":"2025-03-10T09:25:00Z","endAt":"2025-03-10T09:55:00Z","createdAt":"2025-03-10T09:25:00Z","updatedAt":"2025-03-10T09:55:00Z"},
			{"id":"new-open","itemId":"` + a.ID + `","startAt":"2025-03-10T10:00:00Z","endAt":null,"createdAt":"2025-03-10T10:00:00Z","updatedAt":"2025-03-10T10:00:00Z"}
		],
		"settings":[],"version":1}`
	path := writeDoc(t, doc)

	if _, err := Import(s, path); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetRunning()
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != "new-open" {
		t.Fatalf("running = %+v, want new-open", got)
	}
}

func TestImportFailureLeavesStoreUntouched(t *testing.T) {
	s, _ := newTestStore(t)

	// Valid first record, invalid second: nothing may be written.
	path := writeDoc(t, `{
		"items":[
			{"id":"i1","name":"ok","sortOrder":0,"archived":false,"createdAt":"2025-03-10T09:00:00Z","updatedAt":"2025-03-10T09:00:00Z"},
			{"id":"","name":"bad","sortOrder":1,"archived":false,"createdAt":"2025-03-10T09:00:00Z","updatedAt":"2025-03-10T09:00:00Z"}
		],
		"sessions":[],"settings":[],"version":1}`)

	if _, err := Import(s, path); err == nil {
		t.Fatal("expected validation error")
	}

	items, _ := s.ListItems(true)
	if len(items) != 0 {
		t.Fatalf("partial import wrote %d items", len(items))
	}
}

func TestImportMissingFile(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := Import(s, filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected read error")
	}
}

// ============================================================
// CSV export
// ============================================================

func TestToCSV(t *testing.T) {
	s, c := newTestStore(t)
	a, _ := seedStore(t, s, c)

	sessions, _ := s.ListSessions()
	items := map[string]*store.Item{a.ID: a}

	path := filepath.Join(t.TempDir(), "sessions.csv")
	if err := ToCSV(sessions, items, path, c.Now()); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("csv lines = %d, want header + 1 row", len(lines))
	}
	if !strings.HasPrefix(lines[0], "ID,Item,Start,End") {
		t.Fatalf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "Deep Work") {
		t.Fatalf("row = %q", lines[1])
	}
	if !strings.Contains(lines[1], "1500") {
		t.Fatalf("row missing duration seconds: %q", lines[1])
	}
}

func TestToCSVUnknownItem(t *testing.T) {
	s, c := newTestStore(t)
	seedStore(t, s, c)

	sessions, _ := s.ListSessions()

	path := filepath.Join(t.TempDir(), "sessions.csv")
	if err := ToCSV(sessions, map[string]*store.Item{}, path, c.Now()); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "Unknown") {
		t.Fatal("dangling item not rendered as Unknown")
	}
}

func TestToCSVRunningSession(t *testing.T) {
	s, c := newTestStore(t)
	a, _ := seedStore(t, s, c)
	if _, err := s.StartSession(a.ID); err != nil {
		t.Fatal(err)
	}
	c.Advance(5 * time.Minute)

	sessions, _ := s.ListSessions()
	items := map[string]*store.Item{a.ID: a}

	path := filepath.Join(t.TempDir(), "sessions.csv")
	if err := ToCSV(sessions, items, path, c.Now()); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(path)
	// Open session measured against now: 5 minutes
	if !strings.Contains(string(data), "300") {
		t.Fatalf("running session duration missing: %s", data)
	}
}
