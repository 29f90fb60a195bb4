package multiroom

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/tvbridge/internal/infrastructure/database"
)

// Repository persists sync groups.
type Repository interface {
	// Save upserts a group by name.
	Save(ctx context.Context, g *SyncGroup) error

	// Get returns the group, or ErrSyncGroupNotFound.
	Get(ctx context.Context, name string) (*SyncGroup, error)

	// Delete removes the group. Removing an unknown name is
	// ErrSyncGroupNotFound.
	Delete(ctx context.Context, name string) error

	// List returns all groups, ordered by name.
	List(ctx context.Context) ([]*SyncGroup, error)
}

// SQLiteRepository implements Repository on SQLite, with the member list
// stored as a JSON column.
type SQLiteRepository struct {
	db *database.DB
}

// NewSQLiteRepository creates a repository backed by db.
func NewSQLiteRepository(db *database.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Save upserts a group by name.
func (r *SQLiteRepository) Save(ctx context.Context, g *SyncGroup) error {
	if g == nil || g.Name == "" {
		return ErrInvalidGroup
	}

	members, err := json.Marshal(g.DeviceIDs)
	if err != nil {
		return fmt.Errorf("encoding member list: %w", err)
	}

	createdAt := g.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO sync_groups (name, device_ids, primary_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			device_ids = excluded.device_ids,
			primary_id = excluded.primary_id
	`

	_, err = r.db.ExecContext(ctx, query,
		g.Name, string(members), g.Primary, createdAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving sync group %q: %w", g.Name, err)
	}
	return nil
}

// Get returns the named group.
func (r *SQLiteRepository) Get(ctx context.Context, name string) (*SyncGroup, error) {
	query := `
		SELECT name, device_ids, primary_id, created_at
		FROM sync_groups
		WHERE name = ?
	`

	g, err := scanGroup(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", ErrSyncGroupNotFound, name)
		}
		return nil, fmt.Errorf("loading sync group %q: %w", name, err)
	}
	return g, nil
}

// Delete removes the named group.
func (r *SQLiteRepository) Delete(ctx context.Context, name string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM sync_groups WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("deleting sync group %q: %w", name, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %q", ErrSyncGroupNotFound, name)
	}
	return nil
}

// List returns all groups, ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]*SyncGroup, error) {
	query := `
		SELECT name, device_ids, primary_id, created_at
		FROM sync_groups
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing sync groups: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var out []*SyncGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning sync group row: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sync groups: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGroup(sc scanner) (*SyncGroup, error) {
	var (
		g         SyncGroup
		members   string
		createdAt string
	)

	if err := sc.Scan(&g.Name, &members, &g.Primary, &createdAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(members), &g.DeviceIDs); err != nil {
		return nil, fmt.Errorf("decoding member list: %w", err)
	}

	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
	}
	g.CreatedAt = t
	return &g, nil
}
