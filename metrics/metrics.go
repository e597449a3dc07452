// Package metrics centralizes the engine's Prometheus instrumentation
// behind a lazily-registered singleton returning pre-registered vectors.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the process-wide instrumentation surface.
type Metrics struct {
	FieldExpiredTotal        *prometheus.CounterVec
	FieldDeletesPropagated   prometheus.Counter
	ActiveExpireCycleSeconds prometheus.Histogram
	ActiveExpireFieldsTotal  prometheus.Counter
	GlobalIndexHashesGauge   prometheus.Gauge
	EncodingUpgradesTotal    *prometheus.CounterVec
	CacheMemoryBytes         prometheus.Gauge
}

var (
	once sync.Once
	m    *Metrics
)

// GetMetrics returns the lazily-registered singleton.
func GetMetrics() *Metrics {
	once.Do(func() {
		m = &Metrics{
			FieldExpiredTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "titanhfe",
				Name:      "field_expired_total",
				Help:      "Hash fields removed by lazy or active expiration.",
			}, []string{"path"}),
			FieldDeletesPropagated: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "titanhfe",
				Name:      "field_deletes_propagated_total",
				Help:      "Synthetic HDEL records handed to the persistence/replication sink.",
			}),
			ActiveExpireCycleSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "titanhfe",
				Name:      "active_expire_cycle_seconds",
				Help:      "Wall time spent in one active-expire cycle.",
			}),
			ActiveExpireFieldsTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "titanhfe",
				Name:      "active_expire_fields_total",
				Help:      "Fields removed across all active-expire cycles.",
			}),
			GlobalIndexHashesGauge: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "titanhfe",
				Name:      "global_index_hashes",
				Help:      "Hashes currently linked in the process-wide expiration index.",
			}),
			EncodingUpgradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "titanhfe",
				Name:      "encoding_upgrades_total",
				Help:      "Hash encoding transitions, by target encoding.",
			}, []string{"target"}),
			CacheMemoryBytes: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "titanhfe",
				Name:      "cache_memory_bytes",
				Help:      "Approximate count of hashes and fields linked into an expiration index.",
			}),
		}
		prometheus.MustRegister(
			m.FieldExpiredTotal,
			m.FieldDeletesPropagated,
			m.ActiveExpireCycleSeconds,
			m.ActiveExpireFieldsTotal,
			m.GlobalIndexHashesGauge,
			m.EncodingUpgradesTotal,
			m.CacheMemoryBytes,
		)
	})
	return m
}
