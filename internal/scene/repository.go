package scene

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/tvbridge/internal/infrastructure/database"
)

// Repository persists scenes.
type Repository interface {
	// Save upserts a scene by name.
	Save(ctx context.Context, s *Scene) error

	// Get returns the scene, or ErrSceneNotFound.
	Get(ctx context.Context, name string) (*Scene, error)

	// Delete removes the scene. Removing an unknown name is
	// ErrSceneNotFound.
	Delete(ctx context.Context, name string) error

	// List returns all scenes, ordered by name.
	List(ctx context.Context) ([]*Scene, error)
}

// SQLiteRepository implements Repository on SQLite. The key sequence is
// stored as a JSON column; scenes are small and never queried by key
// content.
type SQLiteRepository struct {
	db *database.DB
}

// NewSQLiteRepository creates a repository backed by db.
func NewSQLiteRepository(db *database.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Save upserts a scene by name, preserving created_at across overwrites.
func (r *SQLiteRepository) Save(ctx context.Context, s *Scene) error {
	if err := s.Validate(); err != nil {
		return err
	}

	keys, err := json.Marshal(s.Keys)
	if err != nil {
		return fmt.Errorf("encoding key sequence: %w", err)
	}

	var volume, muted any
	if s.Volume != nil {
		volume = *s.Volume
	}
	if s.Muted != nil {
		muted = boolToInt(*s.Muted)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		INSERT INTO scenes (name, volume, muted, current_app, keys, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			volume = excluded.volume,
			muted = excluded.muted,
			current_app = excluded.current_app,
			keys = excluded.keys,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		s.Name, volume, muted, s.CurrentApp, string(keys), now, now)
	if err != nil {
		return fmt.Errorf("saving scene %q: %w", s.Name, err)
	}
	return nil
}

// Get returns the named scene.
func (r *SQLiteRepository) Get(ctx context.Context, name string) (*Scene, error) {
	query := `
		SELECT name, volume, muted, current_app, keys, created_at, updated_at
		FROM scenes
		WHERE name = ?
	`

	s, err := scanScene(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", ErrSceneNotFound, name)
		}
		return nil, fmt.Errorf("loading scene %q: %w", name, err)
	}
	return s, nil
}

// Delete removes the named scene.
func (r *SQLiteRepository) Delete(ctx context.Context, name string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM scenes WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("deleting scene %q: %w", name, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %q", ErrSceneNotFound, name)
	}
	return nil
}

// List returns all scenes, ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]*Scene, error) {
	query := `
		SELECT name, volume, muted, current_app, keys, created_at, updated_at
		FROM scenes
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing scenes: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var out []*Scene
	for rows.Next() {
		s, err := scanScene(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning scene row: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scenes: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanScene(sc scanner) (*Scene, error) {
	var (
		s          Scene
		volume     sql.NullInt64
		muted      sql.NullInt64
		currentApp sql.NullString
		keysJSON   string
		createdAt  string
		updatedAt  string
	)

	err := sc.Scan(&s.Name, &volume, &muted, &currentApp, &keysJSON, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if volume.Valid {
		v := int(volume.Int64)
		s.Volume = &v
	}
	if muted.Valid {
		m := muted.Int64 != 0
		s.Muted = &m
	}
	s.CurrentApp = currentApp.String

	if err := json.Unmarshal([]byte(keysJSON), &s.Keys); err != nil {
		return nil, fmt.Errorf("decoding key sequence: %w", err)
	}

	if s.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
	}
	if s.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at %q: %w", updatedAt, err)
	}
	return &s, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
