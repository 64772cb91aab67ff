package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Namespace is the storage namespace version. Bump it whenever the record
// encoding changes incompatibly; Open purges data written under any other
// namespace at startup.
const Namespace = "v6"

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - meta table + namespace purge
const currentSchemaVersion = 1

// Collection names a record collection.
type Collection string

const (
	// Checkouts is the master mirror synced with the server.
	Checkouts Collection = "checkouts"
	// MyCheckouts holds checkouts this device owns or has completed but
	// not yet uploaded.
	MyCheckouts Collection = "my_checkouts"
	// Pending is the upload queue.
	Pending Collection = "pending"
)

// Valid reports whether c names a known collection.
func (c Collection) Valid() bool {
	return c == Checkouts || c == MyCheckouts || c == Pending
}

// Store provides durable storage for checkout records, singleton settings,
// and picture attachments.
type Store struct {
	db    *sql.DB
	locks KeyedMutex
}

// Open creates or opens a SQLite database at the given path.
// Applies pragmas, schema, migrations, and the namespace purge.
// Idempotent - safe to call multiple times on the same path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// SQLite only supports one writer at a time; a single connection
	// avoids SQLITE_BUSY between the sync loop and UI-triggered tasks.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if err := purgeStaleNamespace(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("namespace purge: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Lock acquires the per-checkout mutex for id. Callers doing a
// read-modify-write on a single record hold it across the whole operation
// to close the lost-update window between the sync loop and manual
// actions. The returned func releases the lock.
func (s *Store) Lock(id int) func() {
	return s.locks.Lock(id)
}

// KeyedMutex provides one mutex per checkout ID.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

// Lock locks the mutex for key and returns its unlock func.
func (k *KeyedMutex) Lock(key int) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[int]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}

	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	// No incremental migrations yet; the schema.sql IF NOT EXISTS forms
	// bring version 0 databases to current.
	if version < currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}

	return nil
}

// purgeStaleNamespace wipes all record data written under a different
// storage namespace, then records the current one.
func purgeStaleNamespace(db *sql.DB) error {
	var stored string
	err := db.QueryRow("SELECT value FROM meta WHERE key = 'namespace'").Scan(&stored)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("read namespace: %w", err)
	}

	if err == nil && stored == Namespace {
		return nil
	}

	if err == nil && stored != Namespace {
		slog.Warn("storage namespace changed, purging old data",
			"old", stored,
			"new", Namespace,
		)
		for _, table := range []string{"records", "singletons", "pictures"} {
			if _, err := db.Exec("DELETE FROM " + table); err != nil {
				return fmt.Errorf("purge %s: %w", table, err)
			}
		}
	}

	if _, err := db.Exec(`
		INSERT INTO meta (key, value) VALUES ('namespace', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, Namespace); err != nil {
		return fmt.Errorf("record namespace: %w", err)
	}

	return nil
}
