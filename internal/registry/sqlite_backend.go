package registry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"vidshare/internal/logging"
)

const defaultTimeout = 5 * time.Second

// SQLiteBackend stores one row per media record. Save rewrites the table
// inside a single transaction so readers never observe a partial mapping.
type SQLiteBackend struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteBackend opens (or creates) the database file at dbPath.
func NewSQLiteBackend(ctx context.Context, dbPath string) (*SQLiteBackend, error) {
	logging.Info("Metadata database path: %s", dbPath)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create metadata directory: %w", err)
	}

	// busy_timeout helps prevent "database is locked" errors
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Writes are serialized by the registry; one connection avoids lock churn.
	db.SetMaxOpenConns(1)

	b := &SQLiteBackend{db: db, dbPath: dbPath}
	if err := b.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Metadata database initialized at %s", dbPath)
	return b, nil
}

func (b *SQLiteBackend) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS media (
		id TEXT PRIMARY KEY,
		stored_filename TEXT NOT NULL,
		original_name TEXT NOT NULL,
		mime_type TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		converted INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_media_created_at ON media(created_at);
	`
	_, err := b.db.ExecContext(ctx, schema)
	return err
}

// Name identifies the backend in logs and metrics.
func (b *SQLiteBackend) Name() string { return "sqlite" }

// Load reads every row. Query failures are reported, unlike the JSON
// backend, since a broken database is not something an empty mapping hides.
func (b *SQLiteBackend) Load(ctx context.Context) (records map[string]MediaRecord, err error) {
	done := observe(b.Name(), "load")
	defer func() { done(err) }()

	rows, err := b.db.QueryContext(ctx, `
		SELECT id, stored_filename, original_name, mime_type, size, created_at, converted
		FROM media
	`)
	if err != nil {
		return nil, fmt.Errorf("query media: %w", err)
	}
	defer rows.Close()

	records = map[string]MediaRecord{}
	for rows.Next() {
		var (
			rec       MediaRecord
			createdAt int64
			converted int
		)
		if err := rows.Scan(&rec.ID, &rec.StoredFilename, &rec.OriginalName, &rec.MimeType,
			&rec.SizeBytes, &createdAt, &converted); err != nil {
			return nil, fmt.Errorf("scan media row: %w", err)
		}
		rec.CreatedAt = time.UnixMilli(createdAt).UTC()
		rec.Converted = converted != 0
		records[rec.ID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media rows: %w", err)
	}
	return records, nil
}

// Save replaces the table contents with records.
func (b *SQLiteBackend) Save(ctx context.Context, records map[string]MediaRecord) (err error) {
	done := observe(b.Name(), "save")
	defer func() { done(err) }()

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Error("failed to rollback metadata transaction: %v", rbErr)
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM media`); err != nil {
		return fmt.Errorf("clear media: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO media (id, stored_filename, original_name, mime_type, size, created_at, converted)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		converted := 0
		if rec.Converted {
			converted = 1
		}
		if _, err = stmt.ExecContext(ctx, rec.ID, rec.StoredFilename, rec.OriginalName, rec.MimeType,
			rec.SizeBytes, rec.CreatedAt.UnixMilli(), converted); err != nil {
			return fmt.Errorf("insert media %s: %w", rec.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit metadata: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
