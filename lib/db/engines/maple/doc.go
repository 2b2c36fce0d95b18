// Package maple implements a sharded in-memory key-value database (KVDB) used as the medium of
// the web storage substrates. It provides a complete implementation of the db.KVDB interface.
//
// Key Components:
//
//   - mapleImpl: The central database structure implementing db.KVDB. It manages shards and
//     maintains a monotonically increasing write counter that records insertion order.
//
//   - Shard: A partition of the database that manages a subset of the key space. Each shard
//     owns an xsync.MapOf, so operations on different keys rarely contend.
//
//   - Entry: A stored value plus the write index at which it was written.
//
// Internal Mechanisms:
//
//   - Sharding Strategy: Keys are spread across shards in a two-step process:
//     1. String keys are converted to 64-bit integers using util.HashString with a
//     database-specific seed
//     2. The integer key is right-shifted by 7 bits to use higher-quality bits for
//     distribution
//
//   - Conditional Writes: SetIfUnset uses xsync's Compute so that the existence check and the
//     write happen atomically for a key.
//
//   - Persistence: Save writes a binary snapshot (magic number, format version, entry count,
//     length-prefixed keys and values) ordered by write index. Load verifies the header and
//     replaces the in-memory state. Keys are stored verbatim, so the hash seed is not part of
//     the format.
//
// Usage Example:
//
//	kv := maple.NewMapleDB(nil)
//	kv.Set("id", "abc123")
//	value, ok := kv.Get("id")
package maple
