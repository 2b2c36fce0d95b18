package objectstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lni/dragonboat/v4/logger"
	_ "modernc.org/sqlite"
)

var log = logger.GetLogger("objectstore")

var (
	// ErrNotFound is returned when a transaction names an object store that does not exist in
	// the container.
	ErrNotFound = errors.New("object store not found")
	// ErrVersion is returned by Open when the container has a higher version than requested.
	ErrVersion = errors.New("container version is higher than the requested version")
	// ErrClosed is returned when a closed container is used.
	ErrClosed = errors.New("container is closed")
	// ErrReadOnly is returned when a read-only transaction is used to write.
	ErrReadOnly = errors.New("transaction is read-only")
	// ErrTxDone is returned when a committed or rolled back transaction is used.
	ErrTxDone = errors.New("transaction has already been committed or rolled back")
)

// Mode is the access mode of a transaction.
type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
)

func (m Mode) String() string {
	if m == ReadWrite {
		return "readwrite"
	}
	return "readonly"
}

// UpgradeFunc is called by Open inside the version change transaction when the stored version of
// the container is lower than the requested one. Returning an error aborts the open.
type UpgradeFunc func(ctx context.Context, u *Upgrade, oldVersion, newVersion int) error

// Upgrade gives an UpgradeFunc access to the schema of the container.
type Upgrade struct {
	tx *sql.Tx
}

// CreateObjectStore creates the object store name if it does not exist yet.
func (u *Upgrade) CreateObjectStore(ctx context.Context, name string) error {
	q := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (key TEXT PRIMARY KEY, value TEXT NOT NULL)", quoteIdent(name))
	if _, err := u.tx.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("failed to create object store %q: %w", name, err)
	}
	return nil
}

// HasObjectStore reports whether the object store name exists.
func (u *Upgrade) HasObjectStore(ctx context.Context, name string) (bool, error) {
	return hasTable(ctx, u.tx, name)
}

// DB is a named, versioned container of object stores, kept in one SQLite file. The version is
// stored as PRAGMA user_version and every object store is a table of (key, value) rows.
type DB struct {
	mu      sync.Mutex
	sqlDB   *sql.DB
	name    string
	path    string
	version int
	closed  bool
}

// Path returns the file a container with the given name is kept in.
func Path(dir, name string) string {
	return filepath.Join(dir, name+".sqlite")
}

// Open opens (or creates) the container name in dir at the given version.
//
// If the stored version is lower than version, upgrade is called in a transaction and the new
// version is stored when it returns without error. If the stored version is higher, Open fails
// with ErrVersion.
func Open(ctx context.Context, dir, name string, version int, upgrade UpgradeFunc) (*DB, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("container name is required")
	}
	if version < 1 {
		return nil, fmt.Errorf("invalid container version: %d", version)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	path := Path(dir, name)
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// SQLite only supports one writer at a time
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	db := &DB{sqlDB: sqlDB, name: name, path: path, version: version}
	if err := db.migrate(ctx, version, upgrade); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	log.Debugf("opened container %q (version %d) at %s", name, version, path)
	return db, nil
}

func (d *DB) migrate(ctx context.Context, version int, upgrade UpgradeFunc) error {
	var stored int
	if err := d.sqlDB.QueryRowContext(ctx, "PRAGMA user_version").Scan(&stored); err != nil {
		return fmt.Errorf("read container version: %w", err)
	}

	switch {
	case stored > version:
		return fmt.Errorf("%w: stored %d, requested %d", ErrVersion, stored, version)
	case stored == version:
		return nil
	}

	tx, err := d.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin version change: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if upgrade != nil {
		if err := upgrade(ctx, &Upgrade{tx: tx}, stored, version); err != nil {
			return fmt.Errorf("upgrade %q from version %d to %d: %w", d.name, stored, version, err)
		}
	}
	// PRAGMA does not accept bound parameters; version is an int
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("store container version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit version change: %w", err)
	}

	log.Infof("upgraded container %q from version %d to %d", d.name, stored, version)
	return nil
}

// Name returns the name of the container.
func (d *DB) Name() string { return d.name }

// Version returns the version the container was opened with.
func (d *DB) Version() int { return d.version }

// ObjectStoreNames returns the names of all object stores in the container, sorted.
func (d *DB) ObjectStoreNames(ctx context.Context) ([]string, error) {
	sqlDB, err := d.handle()
	if err != nil {
		return nil, err
	}

	rows, err := sqlDB.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list object stores: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("list object stores: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Transaction starts a transaction on the object store store. It fails with ErrNotFound if the
// object store does not exist.
func (d *DB) Transaction(ctx context.Context, store string, mode Mode) (*Tx, error) {
	sqlDB, err := d.handle()
	if err != nil {
		return nil, err
	}

	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin %s transaction: %w", mode, err)
	}

	ok, err := hasTable(ctx, tx, store)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if !ok {
		_ = tx.Rollback()
		return nil, fmt.Errorf("%w: %q in container %q", ErrNotFound, store, d.name)
	}

	return &Tx{tx: tx, store: store, table: quoteIdent(store), mode: mode}, nil
}

// Close closes the container. Closing twice is a no-op.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	return d.sqlDB.Close()
}

func (d *DB) handle() (*sql.DB, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}
	return d.sqlDB, nil
}

// DeleteDatabase deletes the container name in dir including its journal files. Deleting a
// container that does not exist is not an error. Open handles must be closed first.
func DeleteDatabase(dir, name string) error {
	path := Path(dir, name)
	for _, p := range []string{path, path + "-journal", path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to delete container %q: %w", name, err)
		}
	}
	log.Infof("deleted container %q", name)
	return nil
}

// --------------------------------------------------------------------------
// Transactions
// --------------------------------------------------------------------------

// Tx is a transaction on a single object store. It must be finished with Commit or Rollback.
type Tx struct {
	tx    *sql.Tx
	store string
	table string
	mode  Mode
	done  bool
}

// Get returns the value stored under key.
func (t *Tx) Get(ctx context.Context, key string) (string, bool, error) {
	if t.done {
		return "", false, ErrTxDone
	}

	var value string
	err := t.tx.QueryRowContext(ctx, "SELECT value FROM "+t.table+" WHERE key = ?", key).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, t.wrap("get", err)
	}
	return value, true, nil
}

// Put stores value under key, replacing an existing value.
func (t *Tx) Put(ctx context.Context, key, value string) error {
	if t.done {
		return ErrTxDone
	}
	if t.mode != ReadWrite {
		return ErrReadOnly
	}

	_, err := t.tx.ExecContext(ctx,
		"INSERT INTO "+t.table+" (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return t.wrap("put", err)
	}
	return nil
}

// Delete removes key from the object store.
func (t *Tx) Delete(ctx context.Context, key string) error {
	if t.done {
		return ErrTxDone
	}
	if t.mode != ReadWrite {
		return ErrReadOnly
	}

	if _, err := t.tx.ExecContext(ctx, "DELETE FROM "+t.table+" WHERE key = ?", key); err != nil {
		return t.wrap("delete", err)
	}
	return nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return t.wrap("commit", err)
	}
	return nil
}

// Rollback aborts the transaction. Rolling back a finished transaction is a no-op.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Rollback()
}

// wrap maps a missing table (the object store was dropped while the container was open) to
// ErrNotFound.
func (t *Tx) wrap(op string, err error) error {
	if strings.Contains(err.Error(), "no such table") {
		return fmt.Errorf("%s: %w: %q", op, ErrNotFound, t.store)
	}
	return fmt.Errorf("%s %q: %w", op, t.store, err)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func hasTable(ctx context.Context, q querier, name string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("look up object store %q: %w", name, err)
	}
	return n > 0, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
