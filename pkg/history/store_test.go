package history

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

func seed(t *testing.T, store Store) {
	t.Helper()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	score := 100.0
	records := []Record{
		{Builder: "ana", Repo: "acme/flows", Passed: true, Accuracy: &score, Text: "ok"},
		{Builder: "ben", Repo: "acme/flows", Passed: false, Text: "System Error: boom", Fault: "EVALUATION_FAULT"},
		{Builder: "ana", Repo: "acme/other", Passed: false, Text: "bad tone"},
	}
	for i, rec := range records {
		rec.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		stored, err := store.Record(context.Background(), rec)
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if stored.ID == "" {
			t.Fatalf("record %d: expected generated id", i)
		}
	}
}

func exerciseStore(t *testing.T, store Store) {
	seed(t, store)
	ctx := context.Background()

	all, err := store.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}
	if all[0].Text != "bad tone" || all[2].Text != "ok" {
		t.Errorf("expected newest first, got %q ... %q", all[0].Text, all[2].Text)
	}
	if all[2].Accuracy == nil || *all[2].Accuracy != 100 {
		t.Errorf("accuracy not preserved: %v", all[2].Accuracy)
	}
	if all[1].Accuracy != nil {
		t.Errorf("missing accuracy must stay nil")
	}
	if all[1].Fault != "EVALUATION_FAULT" {
		t.Errorf("fault not preserved: %q", all[1].Fault)
	}

	passed := false
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{name: "builder", filter: Filter{Builder: "ana"}, want: []string{"bad tone", "ok"}},
		{name: "repo", filter: Filter{Repo: "acme/flows"}, want: []string{"System Error: boom", "ok"}},
		{name: "failed only", filter: Filter{Passed: &passed}, want: []string{"bad tone", "System Error: boom"}},
		{name: "limit", filter: Filter{Limit: 1}, want: []string{"bad tone"}},
		{name: "no match", filter: Filter{Builder: "zoe"}, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d records, got %d", len(tt.want), len(got))
			}
			for i, rec := range got {
				if rec.Text != tt.want[i] {
					t.Errorf("record %d: expected %q, got %q", i, tt.want[i], rec.Text)
				}
			}
		})
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	store, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer store.Close()
	exerciseStore(t, store)
}

func TestSQLiteStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	rec, err := store.Record(context.Background(), Record{Builder: "ana", Repo: "r", Passed: true, Text: "ok"})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen sqlite: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != rec.ID {
		t.Fatalf("expected persisted record %s, got %+v", rec.ID, got)
	}
	if !got[0].CreatedAt.Equal(rec.CreatedAt) {
		t.Errorf("timestamp changed: %v vs %v", got[0].CreatedAt, rec.CreatedAt)
	}
}

func TestNewSQLiteStoreSharedHandle(t *testing.T) {
	db, err := sql.Open("sqlite", "file:history_shared_test?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	if _, err := NewSQLiteStore(nil); err == nil {
		t.Fatal("expected error for nil db")
	}
	store, err := NewSQLiteStore(db)
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Fatalf("borrowed handle must stay open: %v", err)
	}
}
