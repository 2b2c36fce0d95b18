package testing

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/ValentinKolb/evercookie/lib/db"
)

// RunKVDBBenchmarks runs all benchmarks for a key-value database implementations
func RunKVDBBenchmarks(b *testing.B, name string, factory DBFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("Set", func(b *testing.B) {
			benchmarkSet(b, factory())
		})

		b.Run("SetIfUnset", func(b *testing.B) {
			benchmarkSetIfUnset(b, factory())
		})

		b.Run("Get", func(b *testing.B) {
			benchmarkGet(b, factory())
		})

		b.Run("SaveLoad", func(b *testing.B) {
			benchmarkSaveLoad(b, factory)
		})
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func benchmarkSet(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			database.Set(fmt.Sprintf("key-%d", counter%1000), "value")
			counter++
		}
	})
}

func benchmarkSetIfUnset(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSetIfUnset)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			database.SetIfUnset(fmt.Sprintf("key-%d", counter%1000), "value")
			counter++
		}
	})
}

func benchmarkGet(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet|db.FeatureGet)

	for i := 0; i < 1000; i++ {
		database.Set(fmt.Sprintf("key-%d", i), "value")
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			database.Get(fmt.Sprintf("key-%d", counter%1000))
			counter++
		}
	})
}

func benchmarkSaveLoad(b *testing.B, factory DBFactory) {
	database := factory()
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSave|db.FeatureLoad)

	for i := 0; i < 10000; i++ {
		database.Set(fmt.Sprintf("key-%d", i), fmt.Sprintf("value-%d", i))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var buf bytes.Buffer
		if err := database.Save(&buf); err != nil {
			b.Fatal(err)
		}
		if err := database.Load(&buf); err != nil {
			b.Fatal(err)
		}
	}
}
