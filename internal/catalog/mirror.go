package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/starsweep/internal/model"
)

// Mirror is a SQLite copy of the catalog.
// Rows are only inserted or deleted, never updated, matching the primary store.
type Mirror struct {
	db   *sql.DB
	path string
}

// MirrorRecord is a mirrored catalog entry with its insertion time.
type MirrorRecord struct {
	model.CatalogEntry

	// AddedAt is when the row was first inserted.
	AddedAt time.Time
}

// MirrorOptions configures Mirror behavior.
type MirrorOptions struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultMirrorOptions returns the default mirror options.
func DefaultMirrorOptions() MirrorOptions {
	return MirrorOptions{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// OpenMirror opens or creates the mirror database at path.
func OpenMirror(path string, opts MirrorOptions) (*Mirror, error) {
	if !opts.CreateIfNotExists {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("mirror database not found at %s", path)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check mirror path: %w", err)
		}
	} else if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create mirror directory: %w", err)
	}

	// mode=rw refuses to create a missing file; mode=rwc allows it.
	dsn := path + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = path + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open mirror: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	m := &Mirror{db: db, path: path}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := m.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return m, nil
}

// Close closes the database connection.
func (m *Mirror) Close() error {
	return m.db.Close()
}

// Path returns the database file location.
func (m *Mirror) Path() string {
	return m.path
}

func (m *Mirror) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sites (
		alias TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		added_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_sites_url ON sites(url);
	`

	_, err := m.db.ExecContext(context.Background(), schema)
	return err
}

// Insert adds entry unless its alias already exists.
// It reports whether a row was inserted.
func (m *Mirror) Insert(ctx context.Context, entry model.CatalogEntry) (bool, error) {
	query := `
		INSERT INTO sites (alias, url, description, added_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(alias) DO NOTHING
	`

	result, err := m.db.ExecContext(ctx, query,
		entry.Alias,
		entry.URL,
		entry.Description,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert site: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n > 0, nil
}

// Delete removes alias. It reports whether a row was deleted.
func (m *Mirror) Delete(ctx context.Context, alias string) (bool, error) {
	result, err := m.db.ExecContext(ctx, `DELETE FROM sites WHERE alias = ?`, alias)
	if err != nil {
		return false, fmt.Errorf("failed to delete site: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n > 0, nil
}

// List returns every row ordered by alias.
func (m *Mirror) List(ctx context.Context) ([]MirrorRecord, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT alias, url, description, added_at FROM sites ORDER BY alias`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	records := make([]MirrorRecord, 0)
	for rows.Next() {
		var rec MirrorRecord
		var addedAt string
		if err := rows.Scan(&rec.Alias, &rec.URL, &rec.Description, &addedAt); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		rec.AddedAt = parseTimestamp(addedAt)
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Count returns the number of rows.
func (m *Mirror) Count(ctx context.Context) (int, error) {
	var n int
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sites`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sites: %w", err)
	}
	return n, nil
}

// timestampFormats lists the layouts SQLite may return for DATETIME columns.
var timestampFormats = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999",
}

// parseTimestamp tries each known layout and returns the zero time when none match.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
