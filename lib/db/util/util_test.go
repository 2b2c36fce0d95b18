package util

import (
	"testing"
)

func TestNewStats(t *testing.T) {
	s := NewStats([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if s.Mean != 5 || s.StdDeviation != 2 || s.Min != 2 || s.Max != 9 {
		t.Fatalf("unexpected stats: %+v", s)
	}
	if (NewStats(nil) != Stats{}) {
		t.Fatal("expected zero stats for no values")
	}
}

func TestDistributionQuality(t *testing.T) {
	even := NewDistributionStats([]float64{10, 10, 10, 10})
	if even.DistributionQuality != 1 {
		t.Fatalf("expected quality 1 for an even spread, got %f", even.DistributionQuality)
	}

	skewed := NewDistributionStats([]float64{0, 0, 0, 40})
	if skewed.DistributionQuality >= 0.5 {
		t.Fatalf("expected low quality for a skewed spread, got %f", skewed.DistributionQuality)
	}
}

func TestHashString(t *testing.T) {
	seed := GenerateSeed()
	if HashString("id", seed) != HashString("id", seed) {
		t.Fatal("hash must be deterministic for the same seed")
	}
	if HashString("id", seed) == HashString("idx", seed) {
		t.Fatal("expected different hashes for different keys")
	}
}
