// Package sqlite provides the SQLite-backed ingest ledger.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. The ledger keeps one row per ingested
// document so that documents can be listed and removed without querying the
// vector index.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// Applied versions are recorded in the schema_migrations table.
//
// # Data Location
//
// By default, the database is stored at ~/.kb/data/ledger.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
