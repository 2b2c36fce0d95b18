// Package lstore implements a local, in-memory web storage substrate based on the
// store.IStore interface. It provides a thin wrapper around any db.KVDB implementation and is
// used as session storage: data lives exactly as long as the process does.
//
// Key Features:
//   - Pure in-memory storage without persistence
//   - Direct integration with db.KVDB implementations through a store.DBFactory
//   - Quota accounting (summed key and value lengths), 5 MiB by default
//   - Feature detection to handle unsupported operations gracefully
//
// Thread Safety:
//
//	Reads go straight to the db.KVDB, which provides its own thread safety. Writes are
//	serialized by a mutex so that the quota counter stays consistent with the stored data.
//
// Usage Example:
//
//	factory := func() db.KVDB { return maple.NewMapleDB(nil) }
//	session := lstore.NewLocalStore(factory, nil)
//	err := session.SetItem("id", "abc123")
//	value, ok, err := session.GetItem("id")
//
// For storage that survives process restarts use the pstore package, which composes this
// store with a snapshot file.
package lstore
