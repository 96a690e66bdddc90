package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/vector"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

var _ Storage = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		dimensions INTEGER NOT NULL DEFAULT 0,
		embedder TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS records (
		collection_id INTEGER NOT NULL,
		id TEXT NOT NULL,
		document TEXT NOT NULL,
		embedding BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (collection_id, id),
		UNIQUE (collection_id, document),
		FOREIGN KEY (collection_id) REFERENCES collections(id) ON DELETE CASCADE
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return err
	}

	// Databases created before embedders were recorded lack the column.
	var hasEmbedder int
	if err := db.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info('collections') WHERE name = 'embedder'`,
	).Scan(&hasEmbedder); err != nil {
		return err
	}
	if hasEmbedder == 0 {
		if _, err := db.Exec(`ALTER TABLE collections ADD COLUMN embedder TEXT NOT NULL DEFAULT ''`); err != nil {
			return err
		}
	}
	return nil
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.path
}

// GetOrCreateCollection returns the named collection, creating it if needed.
func (s *SQLiteStorage) GetOrCreateCollection(ctx context.Context, name string) (*models.Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("collection name cannot be empty")
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO collections (name, created_at) VALUES (?, ?)`, name, time.Now(),
	); err != nil {
		return nil, fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	c := &models.Collection{Name: name}
	err := s.db.QueryRowContext(ctx,
		`SELECT c.dimensions, c.embedder, c.created_at, COUNT(r.id)
		 FROM collections c LEFT JOIN records r ON r.collection_id = c.id
		 WHERE c.name = ? GROUP BY c.id`, name,
	).Scan(&c.Dimensions, &c.Embedder, &c.CreatedAt, &c.Records)
	if err != nil {
		return nil, fmt.Errorf("failed to load collection %s: %w", name, err)
	}
	return c, nil
}

// ListCollections returns every collection with its record count, by name.
func (s *SQLiteStorage) ListCollections(ctx context.Context) ([]*models.Collection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.name, c.dimensions, c.embedder, c.created_at, COUNT(r.id)
		 FROM collections c LEFT JOIN records r ON r.collection_id = c.id
		 GROUP BY c.id ORDER BY c.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Collection
	for rows.Next() {
		var c models.Collection
		if err := rows.Scan(&c.Name, &c.Dimensions, &c.Embedder, &c.CreatedAt, &c.Records); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// AddRecords inserts records in one transaction. Nothing is written if any
// record fails, including on a dimension mismatch or a duplicate text.
func (s *SQLiteStorage) AddRecords(ctx context.Context, collection string, records []*models.Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var collectionID int64
	var dims int
	err = tx.QueryRowContext(ctx,
		`SELECT id, dimensions FROM collections WHERE name = ?`, collection,
	).Scan(&collectionID, &dims)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("collection not found: %s", collection)
	}
	if err != nil {
		return err
	}

	if dims == 0 {
		dims = len(records[0].Embedding)
		if _, err := tx.ExecContext(ctx,
			`UPDATE collections SET dimensions = ? WHERE id = ?`, dims, collectionID,
		); err != nil {
			return err
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (collection_id, id, document, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, r := range records {
		if len(r.Embedding) != dims {
			return fmt.Errorf("record %s: %w: got %d, collection has %d", r.ID, ErrDimensionMismatch, len(r.Embedding), dims)
		}
		if _, err := stmt.ExecContext(ctx, collectionID, r.ID, r.Text, vector.Encode(r.Embedding), now); err != nil {
			return fmt.Errorf("insert record %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// BindEmbedder records embedder against the collection. It rebinds an empty
// collection and fails with ErrEmbedderMismatch when records exist that were
// embedded by another model.
func (s *SQLiteStorage) BindEmbedder(ctx context.Context, collection, embedder string) error {
	if embedder == "" {
		return fmt.Errorf("embedder name cannot be empty")
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE collections SET embedder = ?
		 WHERE name = ? AND (embedder = '' OR NOT EXISTS (
			SELECT 1 FROM records r WHERE r.collection_id = collections.id))`,
		embedder, collection,
	); err != nil {
		return fmt.Errorf("failed to bind embedder: %w", err)
	}
	var bound string
	err := s.db.QueryRowContext(ctx,
		`SELECT embedder FROM collections WHERE name = ?`, collection,
	).Scan(&bound)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("collection not found: %s", collection)
	}
	if err != nil {
		return err
	}
	if bound != embedder {
		return fmt.Errorf("collection %s: %w: its passages were embedded with %s, not %s",
			collection, ErrEmbedderMismatch, bound, embedder)
	}
	return nil
}

// ListRecords returns all records of a collection in insertion order.
func (s *SQLiteStorage) ListRecords(ctx context.Context, collection string) ([]*models.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.document, r.embedding
		 FROM records r JOIN collections c ON c.id = r.collection_id
		 WHERE c.name = ? ORDER BY r.rowid`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Record
	for rows.Next() {
		var r models.Record
		var blob []byte
		if err := rows.Scan(&r.ID, &r.Text, &blob); err != nil {
			return nil, err
		}
		if r.Embedding, err = vector.Decode(blob); err != nil {
			return nil, fmt.Errorf("record %s: %w", r.ID, err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// CountRecords returns the number of records in a collection.
func (s *SQLiteStorage) CountRecords(ctx context.Context, collection string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records r JOIN collections c ON c.id = r.collection_id WHERE c.name = ?`,
		collection,
	).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
