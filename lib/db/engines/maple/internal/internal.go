package internal

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Entry Type (key-value pair with metadata)
// --------------------------------------------------------------------------

// Entry stores a key-value pair with metadata
type Entry struct {
	Value string // Stored value
	Index uint64 // Write index when this entry was created/updated (preserves insertion order)
}

// --------------------------------------------------------------------------
// Shard Type (partition of the database)
// --------------------------------------------------------------------------

// Shard represents a partition of the database
type Shard struct {
	Data *xsync.MapOf[string, Entry] // Map of active key-value entries
}

// NewShard creates a new empty shard
func NewShard() *Shard {
	return &Shard{
		Data: xsync.NewMapOf[string, Entry](),
	}
}

// GetShard returns the appropriate shard for a given key hash
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func GetShard[T any](hash uint64, shards []*T) *T {
	// Shift right by 7 bits to use higher-quality bits for distribution
	shiftedKey := hash >> 7
	shardPos := shiftedKey % uint64(len(shards))
	return shards[shardPos]
}
