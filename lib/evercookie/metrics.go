package evercookie

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"
	"github.com/ValentinKolb/evercookie/lib/backend"
)

// clientMetrics holds the counters of one client
type clientMetrics struct {
	set *metrics.Set
}

func newClientMetrics(set *metrics.Set) *clientMetrics {
	if set == nil {
		set = metrics.NewSet()
	}
	return &clientMetrics{set: set}
}

func (m *clientMetrics) write(kind backend.Kind, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.set.GetOrCreateCounter(fmt.Sprintf(`evercookie_writes_total{backend=%q,result=%q}`, kind.String(), result)).Inc()
}

func (m *clientMetrics) read(kind backend.Kind, found bool, err error) {
	result := "miss"
	switch {
	case err != nil:
		result = "error"
	case found:
		result = "hit"
	}
	m.set.GetOrCreateCounter(fmt.Sprintf(`evercookie_reads_total{backend=%q,result=%q}`, kind.String(), result)).Inc()
}

func (m *clientMetrics) skipped() {
	m.set.GetOrCreateCounter(`evercookie_sets_skipped_total`).Inc()
}

func (m *clientMetrics) recovery() {
	m.set.GetOrCreateCounter(`evercookie_schema_recoveries_total`).Inc()
}
