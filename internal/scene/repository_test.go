package scene

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

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
		CREATE TABLE scenes (
			name        TEXT PRIMARY KEY,
			volume      INTEGER,
			muted       INTEGER,
			current_app TEXT,
			keys        TEXT NOT NULL DEFAULT '[]',
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		)
	`)
	if err != nil {
		t.Fatalf("creating schema: %v", err)
	}

	return NewSQLiteRepository(db)
}

func TestRepositoryRoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	in := &Scene{
		Name:       "movie-night",
		Volume:     intPtr(35),
		Muted:      boolPtr(false),
		CurrentApp: "https://app.example/watch",
		Keys:       []Key{{Code: 23, Name: "KEYCODE_DPAD_CENTER"}, {Code: 4}},
	}
	if err := repo.Save(ctx, in); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := repo.Get(ctx, "movie-night")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Volume == nil || *got.Volume != 35 {
		t.Errorf("volume round-trip: %v", got.Volume)
	}
	if got.Muted == nil || *got.Muted {
		t.Errorf("muted round-trip: %v", got.Muted)
	}
	if got.CurrentApp != in.CurrentApp {
		t.Errorf("current_app = %q", got.CurrentApp)
	}
	if len(got.Keys) != 2 || got.Keys[0].Code != 23 || got.Keys[0].Name != "KEYCODE_DPAD_CENTER" {
		t.Errorf("keys round-trip: %+v", got.Keys)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Errorf("timestamps not recorded")
	}
}

func TestRepositoryOptionalFieldsOmitted(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if err := repo.Save(ctx, &Scene{Name: "keys-only", Keys: []Key{{Code: 4}}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := repo.Get(ctx, "keys-only")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Volume != nil || got.Muted != nil {
		t.Errorf("unset targets should stay nil: volume=%v muted=%v", got.Volume, got.Muted)
	}
}

func TestRepositoryUpsert(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if err := repo.Save(ctx, &Scene{Name: "s", Volume: intPtr(10)}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	first, _ := repo.Get(ctx, "s")

	if err := repo.Save(ctx, &Scene{Name: "s", Volume: intPtr(20)}); err != nil {
		t.Fatalf("re-Save failed: %v", err)
	}

	got, err := repo.Get(ctx, "s")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if *got.Volume != 20 {
		t.Errorf("overwrite did not stick: volume=%d", *got.Volume)
	}
	if !got.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("created_at changed on overwrite")
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 scene after upsert, got %d", len(list))
	}
}

func TestRepositoryDeleteMissing(t *testing.T) {
	repo := openTestRepo(t)
	err := repo.Delete(context.Background(), "missing")
	if !errors.Is(err, ErrSceneNotFound) {
		t.Errorf("expected ErrSceneNotFound, got %v", err)
	}

	// The miss must leave the store untouched and usable.
	if err := repo.Save(context.Background(), &Scene{Name: "after"}); err != nil {
		t.Errorf("Save after failed delete: %v", err)
	}
}

func TestRepositoryListOrdered(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	for _, name := range []string{"zulu", "alpha", "mike"} {
		if err := repo.Save(ctx, &Scene{Name: name}); err != nil {
			t.Fatalf("Save %s failed: %v", name, err)
		}
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []string{"alpha", "mike", "zulu"}
	if len(list) != len(want) {
		t.Fatalf("expected %d scenes, got %d", len(want), len(list))
	}
	for i, s := range list {
		if s.Name != want[i] {
			t.Errorf("list[%d] = %s, want %s", i, s.Name, want[i])
		}
	}
}
