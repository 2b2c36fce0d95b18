package maple

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"runtime"
	"sort"
	"sync/atomic"

	"github.com/ValentinKolb/evercookie/lib/db"
	"github.com/ValentinKolb/evercookie/lib/db/engines/maple/internal"
	"github.com/ValentinKolb/evercookie/lib/db/util"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

// Constants for database behavior and structure
const (
	magicNum     = "MAPLEDB\x00" // File format identifier
	mapleVersion = 4             // Database version (4 = string keys and values)
)

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// mapleImpl implements a sharded in-memory key-value database
type mapleImpl struct {
	numShards int               // Number of shards
	seed      uint64            // Seed for hash function
	shards    []*internal.Shard // Array of shards
	currIndex atomic.Uint64     // Monotonic write counter
}

// Metadata is the engine specific part of db.DatabaseInfo
type Metadata struct {
	CurrentWriteIndex uint64                 `json:"current_write_index"`
	ShardCount        int                    `json:"shard_count"`
	ShardDistribution util.DistributionStats `json:"shard_distribution"`
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	NumShards int // Number of shards (0 = auto)
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		NumShards: runtime.NumCPU(), // Auto-determine based on CPU count
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB creates a new MapleDB instance with the specified options (optional)
func NewMapleDB(opts *DBOptions) db.KVDB {

	// Generate default options if not provided
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.NumShards <= 0 {
		opts.NumShards = runtime.NumCPU()
	}

	return &mapleImpl{
		numShards: opts.NumShards,
		seed:      util.GenerateSeed(),
		shards:    newShards(opts.NumShards),
	}
}

func newShards(n int) []*internal.Shard {
	shards := make([]*internal.Shard, n)
	for i := 0; i < n; i++ {
		shards[i] = internal.NewShard()
	}
	return shards
}

// shardFor returns the shard responsible for the key
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) shardFor(key string) *internal.Shard {
	return internal.GetShard(util.HashString(key, maple.seed), maple.shards)
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Set inserts or updates an entry with the given key and value.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Set(key, value string) {
	maple.shardFor(key).Data.Store(key, internal.Entry{
		Value: value,
		Index: maple.currIndex.Add(1),
	})
}

// SetIfUnset inserts an entry only if the key does not exist.
// The check and the write are atomic with respect to other writers of the same key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) SetIfUnset(key, value string) bool {
	written := false
	maple.shardFor(key).Data.Compute(key, func(old internal.Entry, loaded bool) (internal.Entry, bool) {
		if loaded {
			return old, false
		}
		written = true
		return internal.Entry{Value: value, Index: maple.currIndex.Add(1)}, false
	})
	return written
}

// Delete removes an entry with the specified key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Delete(key string) {
	maple.shardFor(key).Data.Delete(key)
}

// Clear removes all entries from all shards.
//
// Thread-safety: This method is thread-safe, but concurrent writes may survive the clear.
func (maple *mapleImpl) Clear() {
	for _, shard := range maple.shards {
		shard.Data.Clear()
	}
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Get retrieves a value for a key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Get(key string) (string, bool) {
	e, ok := maple.shardFor(key).Data.Load(key)
	if !ok {
		return "", false
	}
	return e.Value, true
}

// Has checks if a key exists in the database.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Has(key string) bool {
	_, ok := maple.shardFor(key).Data.Load(key)
	return ok
}

// Len returns the number of entries over all shards.
func (maple *mapleImpl) Len() int {
	n := 0
	for _, shard := range maple.shards {
		n += shard.Data.Size()
	}
	return n
}

// SizeBytes returns the summed length of all keys and values over all shards.
func (maple *mapleImpl) SizeBytes() int {
	size := 0
	for _, shard := range maple.shards {
		shard.Data.Range(func(key string, entry internal.Entry) bool {
			size += len(key) + len(entry.Value)
			return true
		})
	}
	return size
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

type savedEntry struct {
	key   string
	entry internal.Entry
}

// Save persists the database to the writer.
// Entries are written in write order so a Load reproduces the same insertion order.
//
// Thread-safety: Concurrent reading and writing is allowed during Save, writes that happen
// during the snapshot may or may not be included.
func (maple *mapleImpl) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)

	var entries []savedEntry
	for _, shard := range maple.shards {
		shard.Data.Range(func(key string, entry internal.Entry) bool {
			entries = append(entries, savedEntry{key, entry})
			return true
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].entry.Index < entries[j].entry.Index })

	// Write file header
	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}

	// Write maple version
	if err := binary.Write(bw, binary.LittleEndian, uint8(mapleVersion)); err != nil {
		return err
	}

	// Write total data entries count
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(entries))); err != nil {
		return err
	}

	// Write data entries
	for _, item := range entries {
		if err := writeString(bw, item.key); err != nil {
			return err
		}
		if err := writeString(bw, item.entry.Value); err != nil {
			return err
		}
	}

	// Flush buffer to ensure all data is written
	return bw.Flush()
}

// Load restores a database from the reader. All existing entries are replaced.
//
// Thread-safety: This function is not thread-safe and should not be called concurrently
func (maple *mapleImpl) Load(r io.Reader) error {
	br := bufio.NewReader(r)

	// Read and verify magic number
	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return err
	}
	if string(magicBytes) != magicNum {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	// Read and verify version
	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}
	if int(version) != mapleVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, mapleVersion)
	}

	// Read data entries count
	var dataCount uint64
	if err := binary.Read(br, binary.LittleEndian, &dataCount); err != nil {
		return err
	}

	// Recreate empty shards, the seed does not need to be persisted since keys are stored verbatim
	shards := newShards(maple.numShards)
	var index uint64
	for i := uint64(0); i < dataCount; i++ {
		key, err := readString(br)
		if err != nil {
			return err
		}
		value, err := readString(br)
		if err != nil {
			return err
		}
		index++
		internal.GetShard(util.HashString(key, maple.seed), shards).Data.Store(key, internal.Entry{
			Value: value,
			Index: index,
		})
	}

	maple.shards = shards
	maple.currIndex.Store(index)
	return nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {
	shardSizes := make([]float64, len(maple.shards))
	for i, shard := range maple.shards {
		shardSizes[i] = float64(shard.Data.Size())
	}

	meta := &Metadata{
		CurrentWriteIndex: maple.currIndex.Load(),
		ShardCount:        len(maple.shards),
		ShardDistribution: util.NewDistributionStats(shardSizes),
	}

	return db.DatabaseInfo{
		Entries: maple.Len(),
		DbType:  db.ImplMaple,
		SupportedFeatures: []db.Feature{
			db.FeatureSet, db.FeatureSetIfUnset,
			db.FeatureGet, db.FeatureHas,
			db.FeatureDelete, db.FeatureClear,
			db.FeatureSave, db.FeatureLoad,
		},
		Metadata: meta,
	}
}

// SupportsFeature checks if this implementation supports a specific KVDB feature
func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeatureSet |
		db.FeatureSetIfUnset |
		db.FeatureGet |
		db.FeatureHas |
		db.FeatureDelete |
		db.FeatureClear |
		db.FeatureSave |
		db.FeatureLoad
	return supportedFeatures&feature == feature
}

// Close releases the shards. The database must not be used afterward.
func (maple *mapleImpl) Close() error {
	maple.Clear()
	return nil
}
