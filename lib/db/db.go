package db

import "io"

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMaple Implementation = "maple"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureSet        Feature = 1 << iota // Support for Set operations
	FeatureSetIfUnset                     // Support for SetIfUnset operations
	FeatureGet                            // Support for Get operations
	FeatureDelete                         // Support for Delete operations
	FeatureHas                            // Support for Has operations
	FeatureClear                          // Support for Clear operations
	FeatureSave                           // Support for Save operations
	FeatureLoad                           // Support for Load operations
)

func (f Feature) String() string {
	switch f {
	case FeatureSet:
		return "Set"
	case FeatureSetIfUnset:
		return "SetIfUnset"
	case FeatureGet:
		return "Get"
	case FeatureDelete:
		return "Delete"
	case FeatureHas:
		return "Has"
	case FeatureClear:
		return "Clear"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	Entries           int            `json:"entries"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB defines an interface for flat string key-value database implementations.
// It backs the web storage substrates (durable and session storage), which map a string key
// to a string value without any further structure.
// Implementations can vary in their feature support, which can be queried with SupportsFeature.
type KVDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Set inserts or updates an entry with the given key and value.
	// If the key already exists, the old value is overwritten.
	Set(key, value string)

	// SetIfUnset inserts an entry only if the key does not exist yet.
	// It returns true if the value was written.
	SetIfUnset(key, value string) (written bool)

	// Delete removes the entry with the specified key. Deleting a missing key is a no-op.
	Delete(key string)

	// Clear removes all entries.
	Clear()

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves the value for an exact key.
	// The boolean return value indicates whether a value for the key was found.
	Get(key string) (value string, loaded bool)

	// Has checks whether a key exists in the database.
	Has(key string) (loaded bool)

	// Len returns the number of entries.
	Len() int

	// SizeBytes returns the summed length of all keys and values.
	SizeBytes() int

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Save persists the current state of the database to the provided io.Writer.
	Save(w io.Writer) (err error)

	// Load replaces the database state with the data provided by an io.Reader.
	Load(r io.Reader) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close closes the database.
	Close() (err error)
}
