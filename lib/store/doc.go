// Package store provides the web storage abstraction used by the durable and session storage
// substrates: a flat namespace mapping string keys to string values, with unified error
// handling.
//
// Key Components:
//
//   - IStore Interface: The item operations of a web storage (SetItem, GetItem, RemoveItem,
//     Clear, Length). Implementations share this interface so the backend adapters do not
//     care whether an item lives in memory or on disk.
//
//   - Error System: A structured error type carrying a RetCode (e.g. RetCQuotaExceeded) and a
//     descriptive message. Errors compare by code with errors.Is.
//
//   - DBFactory: A function type that abstracts the creation of the underlying db.KVDB.
//
// Implementations:
//
//   - Local Store (lstore): in-memory, lives as long as the process. Used as session storage.
//     Available in the "github.com/ValentinKolb/evercookie/lib/store/lstore" package.
//
//   - Persistent Store (pstore): snapshots the db to a file after every mutation and reloads
//     it on open. Used as durable storage.
//     Available in the "github.com/ValentinKolb/evercookie/lib/store/pstore" package.
package store
