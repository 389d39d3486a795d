package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStore_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")

	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Fatal("database file should not exist before creating store")
	}

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("database file should exist after creating store")
	}
	if s.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", s.Path(), dbPath)
	}
}

func TestNewStore_RunsMigrations(t *testing.T) {
	s := newTestStore(t)

	for _, table := range []string{"sessions", "session_events", "settings"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q should exist after migrations: %v", table, err)
		}
	}

	for _, idx := range []string{"idx_session_events_session_id", "idx_sessions_started_at"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='index' AND name=?",
			idx,
		).Scan(&name)
		if err != nil {
			t.Errorf("index %q should exist after migrations: %v", idx, err)
		}
	}
}

func TestNewStore_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := s.Sessions().Start(&Session{ID: "keep"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	s.Close()

	s, err = New(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	if _, err := s.Sessions().GetByID("keep"); err != nil {
		t.Errorf("session lost across reopen: %v", err)
	}
}

func TestStore_Close(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("close should not return error: %v", err)
	}

	if _, err := s.DB().Exec("SELECT 1"); err == nil {
		t.Error("DB operations should fail after close")
	}
}

func TestStore_ForeignKeysEnabled(t *testing.T) {
	s := newTestStore(t)

	var fkEnabled int
	if err := s.DB().QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		t.Fatalf("failed to check foreign keys pragma: %v", err)
	}
	if fkEnabled != 1 {
		t.Error("foreign keys should be enabled")
	}
}

func TestSettings(t *testing.T) {
	s := newTestStore(t)
	settings := s.Settings()

	if _, err := settings.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
	if got := settings.Bool(SettingTrackingEnabled, true); !got {
		t.Error("Bool() on missing key should return the default")
	}

	if err := settings.SetBool(SettingTrackingEnabled, false); err != nil {
		t.Fatalf("SetBool() error = %v", err)
	}
	if got := settings.Bool(SettingTrackingEnabled, true); got {
		t.Error("Bool() = true after SetBool(false)")
	}

	if err := settings.Set(SettingTrackingEnabled, "yes please"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got := settings.Bool(SettingTrackingEnabled, true); !got {
		t.Error("unparseable value should fall back to the default")
	}
}

func TestSessions_Lifecycle(t *testing.T) {
	s := newTestStore(t)
	sessions := s.Sessions()

	sess := &Session{ScreenWidth: 1920, ScreenHeight: 1080}
	if err := sessions.Start(sess); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if sess.ID == "" {
		t.Fatal("Start() should assign an ID")
	}
	if sess.StartedAt.IsZero() {
		t.Error("Start() should set StartedAt")
	}

	got, err := sessions.GetByID(sess.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.ScreenWidth != 1920 || got.ScreenHeight != 1080 {
		t.Errorf("screen = %vx%v, want 1920x1080", got.ScreenWidth, got.ScreenHeight)
	}
	if got.EndedAt != nil {
		t.Error("new session should be open")
	}

	end := sess.StartedAt.Add(time.Minute)
	if err := sessions.End(sess.ID, end); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	got, err = sessions.GetByID(sess.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.EndedAt == nil || !got.EndedAt.Equal(end) {
		t.Errorf("EndedAt = %v, want %v", got.EndedAt, end)
	}

	if err := sessions.End("nope", end); !errors.Is(err, ErrNotFound) {
		t.Errorf("End(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestSessions_GetByID_NotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Sessions().GetByID("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestSessions_List(t *testing.T) {
	s := newTestStore(t)
	sessions := s.Sessions()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := sessions.Start(&Session{ID: id, StartedAt: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatalf("Start(%s) error = %v", id, err)
		}
	}

	all, err := sessions.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List() returned %d sessions, want 3", len(all))
	}
	if all[0].ID != "c" || all[2].ID != "a" {
		t.Errorf("List() order = %s,%s,%s; want newest first", all[0].ID, all[1].ID, all[2].ID)
	}

	limited, err := sessions.List(2)
	if err != nil {
		t.Fatalf("List(2) error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("List(2) returned %d sessions", len(limited))
	}
}

func TestSessions_DeleteCascades(t *testing.T) {
	s := newTestStore(t)

	sess := &Session{}
	if err := s.Sessions().Start(sess); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Events().Add(&Event{SessionID: sess.ID, Kind: EventMode, Value: "ROTATING", At: time.Now()}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if err := s.Sessions().Delete(sess.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Sessions().Delete(sess.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}

	events, err := s.Events().ListBySession(sess.ID)
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(events) != 0 {
		t.Errorf("events survived session delete: %d", len(events))
	}
}

func TestEvents(t *testing.T) {
	s := newTestStore(t)

	sess := &Session{}
	if err := s.Sessions().Start(sess); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	want := []Event{
		{Kind: EventMode, Value: "ROTATING"},
		{Kind: EventRegion, Value: "PACIFIC"},
		{Kind: EventMode, Value: "IDLE"},
	}
	for i := range want {
		e := want[i]
		e.SessionID = sess.ID
		e.At = at.Add(time.Duration(i) * time.Second)
		if err := s.Events().Add(&e); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
		if e.ID == 0 {
			t.Error("Add() should set the ID")
		}
	}

	events, err := s.Events().ListBySession(sess.ID)
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i, e := range events {
		if e.Kind != want[i].Kind || e.Value != want[i].Value {
			t.Errorf("event %d = %s/%s, want %s/%s", i, e.Kind, e.Value, want[i].Kind, want[i].Value)
		}
	}

	got, err := s.Sessions().GetByID(sess.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Events != 3 {
		t.Errorf("session Events = %d, want 3", got.Events)
	}

	bad := &Event{SessionID: "missing", Kind: EventMode, Value: "IDLE", At: at}
	if err := s.Events().Add(bad); err == nil {
		t.Error("Add() for an unknown session should violate the foreign key")
	}
}
