package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "reserve_sync"

// Metrics holds the Prometheus collectors shared by the syncer components.
// A nil registerer yields working but unregistered collectors, which is what tests use.
type Metrics struct {
	LastLedger      prometheus.Gauge
	PairsTracked    prometheus.Gauge
	Cycles          prometheus.Counter
	Batches         *prometheus.CounterVec
	SyncEvents      prometheus.Counter
	Updates         *prometheus.CounterVec
	WorkerErrors    prometheus.Counter
	PairsDiscovered prometheus.Counter
	ScanDuration    prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LastLedger: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_ledger",
			Help:      "Ledger sequence most recently dispatched to the workers.",
		}),
		PairsTracked: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pairs_tracked",
			Help:      "Number of pairs in the store at the last dispatch.",
		}),
		Cycles: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Sync cycles dispatched.",
		}),
		Batches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_batches_total",
			Help:      "Event queries by outcome.",
		}, []string{"status"}),
		SyncEvents: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_events_total",
			Help:      "Sync events extracted from the event stream.",
		}),
		Updates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reserve_updates_total",
			Help:      "Reserve updates handed to the store, by result.",
		}, []string{"result"}),
		WorkerErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_errors_total",
			Help:      "Worker jobs that ended with an error.",
		}),
		PairsDiscovered: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairs_discovered_total",
			Help:      "Pairs upserted by factory discovery.",
		}),
		ScanDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Time a worker spends scanning its slice of pairs.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}
