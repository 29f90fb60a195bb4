package multiroom

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/tvbridge/internal/infrastructure/database"
)

func openTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
		CREATE TABLE sync_groups (
			name       TEXT PRIMARY KEY,
			device_ids TEXT NOT NULL,
			primary_id TEXT NOT NULL,
			created_at TEXT NOT NULL
		)
	`)
	if err != nil {
		t.Fatalf("creating schema: %v", err)
	}

	return NewSQLiteRepository(db)
}

func TestGroupRoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	in := &SyncGroup{
		Name:      "downstairs",
		DeviceIDs: []string{"living", "kitchen"},
		Primary:   "living",
		CreatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := repo.Save(ctx, in); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := repo.Get(ctx, "downstairs")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got.DeviceIDs) != 2 || got.DeviceIDs[0] != "living" || got.DeviceIDs[1] != "kitchen" {
		t.Errorf("members round-trip: %v", got.DeviceIDs)
	}
	if got.Primary != "living" {
		t.Errorf("primary = %s", got.Primary)
	}
	if !got.CreatedAt.Equal(in.CreatedAt) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, in.CreatedAt)
	}
}

func TestGroupGetNotFound(t *testing.T) {
	repo := openTestRepo(t)
	if _, err := repo.Get(context.Background(), "nope"); !errors.Is(err, ErrSyncGroupNotFound) {
		t.Errorf("expected ErrSyncGroupNotFound, got %v", err)
	}
}

func TestGroupDelete(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	_ = repo.Save(ctx, &SyncGroup{Name: "g", DeviceIDs: []string{"a", "b"}, Primary: "a"})

	if err := repo.Delete(ctx, "g"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := repo.Delete(ctx, "g"); !errors.Is(err, ErrSyncGroupNotFound) {
		t.Errorf("second delete: expected ErrSyncGroupNotFound, got %v", err)
	}
}

func TestGroupListOrdered(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	for _, name := range []string{"upstairs", "downstairs"} {
		err := repo.Save(ctx, &SyncGroup{Name: name, DeviceIDs: []string{"a", "b"}, Primary: "a"})
		if err != nil {
			t.Fatalf("Save %s failed: %v", name, err)
		}
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 || list[0].Name != "downstairs" || list[1].Name != "upstairs" {
		t.Errorf("list not ordered by name: %v", list)
	}
}
