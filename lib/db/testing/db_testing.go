package testing

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/evercookie/lib/db"
)

// DBFactory is a function that creates a new instance of a KVDB implementation
type DBFactory func() db.KVDB

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("Has", func(t *testing.T) {
			testHas(t, factory())
		})

		t.Run("SetIfUnset", func(t *testing.T) {
			testSetIfUnset(t, factory())
		})

		t.Run("ConcurrentSetIfUnset", func(t *testing.T) {
			testConcurrentSetIfUnset(t, factory())
		})

		t.Run("Clear", func(t *testing.T) {
			testClear(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("LoadRejectsGarbage", func(t *testing.T) {
			testLoadRejectsGarbage(t, factory())
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})

		t.Run("CollisionHandling", func(t *testing.T) {
			testCollisionHandling(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)

	testKey := "test-key"

	database.Set(testKey, "test-value1")

	result, exists := database.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if result != "test-value1" {
		t.Errorf("Expected value %s, got %s", "test-value1", result)
	}

	database.Set(testKey, "test-value2")

	result, exists = database.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if result != "test-value2" {
		t.Errorf("Expected value %s, got %s", "test-value2", result)
	}

	_, exists = database.Get("nonexistent-key")
	if exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}

	if database.Len() != 1 {
		t.Errorf("Expected 1 entry, got %d", database.Len())
	}
	if database.SizeBytes() != len(testKey)+len("test-value2") {
		t.Errorf("Expected %d bytes, got %d", len(testKey)+len("test-value2"), database.SizeBytes())
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)
	requireFeature(t, database, db.FeatureDelete)

	database.Set("delete-key", "delete-value")
	database.Delete("delete-key")

	if _, exists := database.Get("delete-key"); exists {
		t.Errorf("Key should not exist after Delete")
	}

	// deleting a missing key is a no-op
	database.Delete("never-existed")
}

func testHas(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureHas)

	if database.Has("has-key") {
		t.Errorf("Has should return false for a missing key")
	}

	database.Set("has-key", "")

	if !database.Has("has-key") {
		t.Errorf("Has should return true for a key with an empty value")
	}
}

func testSetIfUnset(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSetIfUnset)
	requireFeature(t, database, db.FeatureGet)

	if !database.SetIfUnset("once-key", "first") {
		t.Errorf("SetIfUnset should write a missing key")
	}
	if database.SetIfUnset("once-key", "second") {
		t.Errorf("SetIfUnset should not overwrite an existing key")
	}

	result, _ := database.Get("once-key")
	if result != "first" {
		t.Errorf("Expected value %s, got %s", "first", result)
	}
}

func testConcurrentSetIfUnset(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSetIfUnset)

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if database.SetIfUnset("race-key", fmt.Sprintf("value-%d", i)) {
				winners.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if winners.Load() != 1 {
		t.Errorf("Expected exactly one SetIfUnset to win, got %d", winners.Load())
	}
}

func testClear(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureClear)

	for i := 0; i < 100; i++ {
		database.Set(fmt.Sprintf("clear-key-%d", i), "v")
	}
	database.Clear()

	if database.Len() != 0 {
		t.Errorf("Expected empty database after Clear, got %d entries", database.Len())
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	database := factory()
	database2 := factory()

	// close the databases after the test
	defer database.Close()
	defer database2.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)
	requireFeature(t, database, db.FeatureSave)
	requireFeature(t, database, db.FeatureLoad)

	numEntries := 1000
	for i := 0; i < numEntries; i++ {
		database.Set(fmt.Sprintf("save-load-test-key-%d", i), fmt.Sprintf("save-load-test-value-%d", i))
	}

	// existing entries of the target are replaced by Load
	database2.Set("stale-key", "stale-value")

	var buf bytes.Buffer
	if err := database.Save(&buf); err != nil {
		t.Fatalf("Unexpected error during Save: %v", err)
	}
	if err := database2.Load(&buf); err != nil {
		t.Fatalf("Unexpected error during Load: %v", err)
	}

	for i := 0; i < numEntries; i++ {
		key := fmt.Sprintf("save-load-test-key-%d", i)
		expected := fmt.Sprintf("save-load-test-value-%d", i)

		actual, exists := database2.Get(key)
		if !exists {
			t.Errorf("Key %s not found after Load", key)
			continue
		}
		if actual != expected {
			t.Errorf("Value mismatch for key %s: expected %s, got %s", key, expected, actual)
		}
	}

	if _, exists := database2.Get("stale-key"); exists {
		t.Errorf("Load should replace existing entries")
	}
	if database2.Len() != numEntries {
		t.Errorf("Expected %d entries after Load, got %d", numEntries, database2.Len())
	}
}

func testLoadRejectsGarbage(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureLoad)

	database.Set("keep", "me")

	if err := database.Load(bytes.NewReader([]byte("definitely not a snapshot"))); err == nil {
		t.Errorf("Expected Load to fail on invalid input")
	}

	if value, ok := database.Get("keep"); !ok || value != "me" {
		t.Errorf("Failed Load must not modify the database")
	}
}

func testEdgeCases(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)

	database.Set("", "value for empty key")
	if result, exists := database.Get(""); !exists || result != "value for empty key" {
		t.Errorf("Empty key not found after Set")
	}

	database.Set("empty-value-key", "")
	if result, exists := database.Get("empty-value-key"); !exists || result != "" {
		t.Errorf("Key for empty value not found after Set")
	}

	// values that look like cookie or data-uri syntax are stored verbatim
	odd := "a=b; c=d, data:image/png;base64,AAAA=="
	database.Set("odd-value-key", odd)
	if result, _ := database.Get("odd-value-key"); result != odd {
		t.Errorf("Expected value %q, got %q", odd, result)
	}

	largeKey := string(make([]byte, 1000))
	database.Set(largeKey, "value for large key")
	if result, exists := database.Get(largeKey); !exists || result != "value for large key" {
		t.Errorf("Large key not found after Set")
	}
}

func testCollisionHandling(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)
	requireFeature(t, database, db.FeatureDelete)

	prefix := "collision-test-"
	numKeys := 1000

	for i := 0; i < numKeys; i++ {
		database.Set(fmt.Sprintf("%s%d", prefix, i), fmt.Sprintf("value-%d", i))
	}

	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("%s%d", prefix, i)
		expected := fmt.Sprintf("value-%d", i)

		actual, exists := database.Get(key)
		if !exists {
			t.Errorf("Key %s not found", key)
			continue
		}
		if actual != expected {
			t.Errorf("Value for key %s does not match: expected %s, got %s", key, expected, actual)
		}
	}

	for i := 0; i < numKeys; i += 2 {
		database.Delete(fmt.Sprintf("%s%d", prefix, i))
	}

	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("%s%d", prefix, i)
		_, exists := database.Get(key)

		if i%2 == 0 {
			if exists {
				t.Errorf("Key %s should be deleted", key)
			}
		} else {
			if !exists {
				t.Errorf("Key %s should still exist", key)
			}
		}
	}
}
