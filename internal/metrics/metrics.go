// Package metrics defines the Prometheus collectors for the trash lifecycle
// and the retention sweep.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bookwyrm"

// Sweep results used as the "result" label of SweepRuns.
const (
	ResultSuccess = "success"
	ResultPartial = "partial"
	ResultDryRun  = "dry_run"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// Trash groups the lifecycle and sweep collectors.
type Trash struct {
	BooksTrashed  prometheus.Counter
	BooksRestored prometheus.Counter
	BooksPurged   *prometheus.CounterVec
	RestoreFailed prometheus.Counter

	SweepRuns      *prometheus.CounterVec
	SweepFailures  prometheus.Counter
	SweepDuration  prometheus.Histogram
	LastSweepUnix  prometheus.Gauge
	PhotoBlobFails prometheus.Counter
}

// NewTrash creates the collectors and registers them on reg. A nil reg leaves
// them unregistered, which is what the tests use.
func NewTrash(reg prometheus.Registerer) *Trash {
	t := &Trash{
		BooksTrashed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trash",
			Name:      "books_trashed_total",
			Help:      "Books moved to the trash.",
		}),
		BooksRestored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trash",
			Name:      "books_restored_total",
			Help:      "Books restored from the trash.",
		}),
		BooksPurged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trash",
			Name:      "books_purged_total",
			Help:      "Books permanently deleted, by path (direct, empty_trash, sweep).",
		}, []string{"path"}),
		RestoreFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trash",
			Name:      "restore_verification_failures_total",
			Help:      "Restores whose post-write check still read the book as deleted.",
		}),
		SweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "sweep_runs_total",
			Help:      "Retention sweeps by result.",
		}, []string{"result"}),
		SweepFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "sweep_delete_failures_total",
			Help:      "Sweep candidates that could not be deleted.",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "sweep_duration_seconds",
			Help:      "Wall time of retention sweeps.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}),
		LastSweepUnix: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "last_sweep_timestamp_seconds",
			Help:      "Unix time of the last completed sweep.",
		}),
		PhotoBlobFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trash",
			Name:      "photo_blob_delete_failures_total",
			Help:      "Photo objects left behind after their book was purged.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			t.BooksTrashed,
			t.BooksRestored,
			t.BooksPurged,
			t.RestoreFailed,
			t.SweepRuns,
			t.SweepFailures,
			t.SweepDuration,
			t.LastSweepUnix,
			t.PhotoBlobFails,
		)
	}

	return t
}

// NewRegistry returns a registry preloaded with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
