// Package objectstore implements a small asynchronous-style object database: named, versioned
// containers that hold key/value object stores and are accessed through transactions.
//
// Each container is one SQLite file (modernc.org/sqlite, no cgo). The container version lives in
// PRAGMA user_version and every object store is a table (key TEXT PRIMARY KEY, value TEXT).
//
// Opening a container at a higher version than stored runs an UpgradeFunc, which is the only
// place object stores are created. Opening below the stored version fails with ErrVersion. Starting a
// transaction on an object store that does not exist fails with ErrNotFound, the condition a
// caller sees when the stored version matches but the schema does not (schema drift).
//
// Basic usage:
//
//	db, err := objectstore.Open(ctx, dir, "evercookieDB", 2, func(ctx context.Context, u *objectstore.Upgrade, _, _ int) error {
//		return u.CreateObjectStore(ctx, "store")
//	})
//	tx, err := db.Transaction(ctx, "store", objectstore.ReadWrite)
//	err = tx.Put(ctx, "id", "abc123")
//	err = tx.Commit()
package objectstore
