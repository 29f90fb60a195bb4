package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/tvbridge/internal/infrastructure/database"
	"github.com/nerrad567/tvbridge/internal/session"
)

// Credentials is the persisted pairing record for one device. It is the
// only device state that survives a restart.
type Credentials struct {
	DeviceID string
	Host     string
	Name     string
	Material session.Credentials
	PairedAt time.Time
}

// CredentialsRepository persists pairing credentials.
type CredentialsRepository interface {
	// Save inserts or replaces the credentials for a device.
	Save(ctx context.Context, creds *Credentials) error

	// Get returns the stored credentials, or ErrCredentialsNotFound.
	Get(ctx context.Context, deviceID string) (*Credentials, error)

	// Delete removes the credentials. Removing an unknown device is
	// ErrCredentialsNotFound.
	Delete(ctx context.Context, deviceID string) error

	// List returns all stored credentials, ordered by device ID.
	List(ctx context.Context) ([]*Credentials, error)
}

// SQLiteCredentialsRepository implements CredentialsRepository on SQLite.
type SQLiteCredentialsRepository struct {
	db *database.DB
}

// NewSQLiteCredentialsRepository creates a repository backed by db.
func NewSQLiteCredentialsRepository(db *database.DB) *SQLiteCredentialsRepository {
	return &SQLiteCredentialsRepository{db: db}
}

// Save inserts or replaces the credentials for a device.
func (r *SQLiteCredentialsRepository) Save(ctx context.Context, creds *Credentials) error {
	if creds == nil || creds.DeviceID == "" {
		return ErrInvalidDevice
	}

	query := `
		INSERT INTO device_credentials (device_id, host, name, certificate, private_key, paired_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			host = excluded.host,
			name = excluded.name,
			certificate = excluded.certificate,
			private_key = excluded.private_key,
			paired_at = excluded.paired_at
	`

	_, err := r.db.ExecContext(ctx, query,
		creds.DeviceID,
		creds.Host,
		creds.Name,
		creds.Material.Certificate,
		creds.Material.PrivateKey,
		creds.PairedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving credentials for %s: %w", creds.DeviceID, err)
	}
	return nil
}

// Get returns the stored credentials for a device.
func (r *SQLiteCredentialsRepository) Get(ctx context.Context, deviceID string) (*Credentials, error) {
	query := `
		SELECT device_id, host, name, certificate, private_key, paired_at
		FROM device_credentials
		WHERE device_id = ?
	`

	creds, err := scanCredentials(r.db.QueryRowContext(ctx, query, deviceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("loading credentials for %s: %w", deviceID, err)
	}
	return creds, nil
}

// Delete removes the stored credentials for a device.
func (r *SQLiteCredentialsRepository) Delete(ctx context.Context, deviceID string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM device_credentials WHERE device_id = ?", deviceID)
	if err != nil {
		return fmt.Errorf("deleting credentials for %s: %w", deviceID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if rows == 0 {
		return ErrCredentialsNotFound
	}
	return nil
}

// List returns all stored credentials, ordered by device ID.
func (r *SQLiteCredentialsRepository) List(ctx context.Context) ([]*Credentials, error) {
	query := `
		SELECT device_id, host, name, certificate, private_key, paired_at
		FROM device_credentials
		ORDER BY device_id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing credentials: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var out []*Credentials
	for rows.Next() {
		creds, err := scanCredentials(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning credentials row: %w", err)
		}
		out = append(out, creds)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating credentials: %w", err)
	}
	return out, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCredentials(s scanner) (*Credentials, error) {
	var (
		creds    Credentials
		pairedAt string
	)

	err := s.Scan(
		&creds.DeviceID,
		&creds.Host,
		&creds.Name,
		&creds.Material.Certificate,
		&creds.Material.PrivateKey,
		&pairedAt,
	)
	if err != nil {
		return nil, err
	}

	if pairedAt != "" {
		t, err := time.Parse(time.RFC3339, pairedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing paired_at %q: %w", pairedAt, err)
		}
		creds.PairedAt = t
	}
	return &creds, nil
}
