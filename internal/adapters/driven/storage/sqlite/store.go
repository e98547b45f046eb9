package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/kb-cli/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/kb-cli/internal/core/domain"
	"github.com/custodia-labs/kb-cli/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.IngestLedger = (*Store)(nil)

// Store is the SQLite-based ingest ledger.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.kb/data/ledger.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".kb", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "ledger.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SchemaVersion returns the highest applied migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	row := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&version); err != nil {
		return 0, fmt.Errorf("getting current version: %w", err)
	}
	return version, nil
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys fs.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	currentVersion, err := s.SchemaVersion(context.Background())
	if err != nil {
		return err
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// Save inserts or replaces the ledger row for a document.
func (s *Store) Save(ctx context.Context, entry domain.LedgerEntry) error {
	if entry.DocumentID == "" {
		return fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}
	if entry.IngestedAt.IsZero() {
		entry.IngestedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (document_id, path, source, document_type, chunks, blob_name, blob_url, status, error, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			path = excluded.path,
			source = excluded.source,
			document_type = excluded.document_type,
			chunks = excluded.chunks,
			blob_name = excluded.blob_name,
			blob_url = excluded.blob_url,
			status = excluded.status,
			error = excluded.error,
			ingested_at = excluded.ingested_at
	`, entry.DocumentID, entry.Path, entry.Source, entry.Type, entry.Chunks,
		nullString(entry.BlobName), nullString(entry.BlobURL), string(entry.Status),
		nullString(entry.Error), entry.IngestedAt.UTC())

	if err != nil {
		return fmt.Errorf("saving ledger entry: %w", err)
	}
	return nil
}

// Get retrieves the ledger row for a document.
func (s *Store) Get(ctx context.Context, documentID string) (*domain.LedgerEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT document_id, path, source, document_type, chunks, blob_name, blob_url, status, error, ingested_at
		FROM documents WHERE document_id = ?
	`, documentID)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// List returns all ledger rows, most recent first.
func (s *Store) List(ctx context.Context) ([]domain.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, path, source, document_type, chunks, blob_name, blob_url, status, error, ingested_at
		FROM documents ORDER BY ingested_at DESC, path ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("listing ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// Delete removes the ledger row for a document.
func (s *Store) Delete(ctx context.Context, documentID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE document_id = ?", documentID)
	if err != nil {
		return fmt.Errorf("deleting ledger entry: %w", err)
	}
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*domain.LedgerEntry, error) {
	var entry domain.LedgerEntry
	var status string
	var blobName, blobURL, errMsg sql.NullString
	var ingestedAt sql.NullTime
	if err := row.Scan(&entry.DocumentID, &entry.Path, &entry.Source, &entry.Type, &entry.Chunks,
		&blobName, &blobURL, &status, &errMsg, &ingestedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning ledger entry: %w", err)
	}

	entry.Status = domain.IngestStatus(status)
	entry.BlobName = blobName.String
	entry.BlobURL = blobURL.String
	entry.Error = errMsg.String
	if ingestedAt.Valid {
		entry.IngestedAt = ingestedAt.Time
	}
	return &entry, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
