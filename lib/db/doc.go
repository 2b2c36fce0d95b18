// Package db provides a standardized interface for flat key-value database implementations.
// It defines the KVDB interface that backs the web storage substrates of the evercookie
// library: a durable storage that survives process restarts and an ephemeral session storage
// that lives as long as the process.
//
// The package focuses on:
//   - A unified interface for string key-value operations
//   - Feature discovery through capability flags
//   - Standardized persistence operations (Save, Load)
//
// Key Components:
//
//   - KVDB Interface: The core interface that all database implementations must satisfy.
//     It provides methods for basic operations (Set, Get, Has, Delete, Clear),
//     the conditional write SetIfUnset, metadata retrieval (GetInfo), and persistence
//     operations (Save, Load).
//
//   - Feature Flags: The Feature type defines capability flags that implementations
//     can advertise through the SupportsFeature method.
//
//   - Implementation Identifiers: The Implementation type provides string constants
//     for different database backends (currently "maple").
//
// Related Packages:
//
// The engines/maple package (github.com/ValentinKolb/evercookie/lib/db/engines/maple) provides a
// sharded in-memory implementation of the KVDB interface with binary persistence.
//
// The testing package (github.com/ValentinKolb/evercookie/lib/db/testing) provides a
// standardized conformance suite for KVDB implementations (RunKVDBTests).
package db
