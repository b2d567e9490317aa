// Package metrics holds the Prometheus collectors for a verification run and
// the optional HTTP server exposing them with pprof and a JSON status endpoint.
package metrics

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Task results used as the "result" label.
const (
	ResultMatched   = "matched"
	ResultDuplicate = "duplicate"
	ResultMiss      = "miss"
	ResultSkipped   = "skipped"
	ResultError     = "error"
)

var (
	regOnce sync.Once

	Tasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "romverify_tasks_total", Help: "Verification tasks by result"},
		[]string{"result"},
	)
	BytesHashed  = prometheus.NewCounter(prometheus.CounterOpts{Name: "romverify_bytes_hashed_total", Help: "Total content bytes hashed"})
	HashDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "romverify_hash_duration_seconds", Help: "Time spent extracting and hashing one candidate", Buckets: prometheus.DefBuckets})
	Inflight     = prometheus.NewGauge(prometheus.GaugeOpts{Name: "romverify_inflight_tasks", Help: "Verification tasks currently running"})
	Completion   = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "romverify_category_completion_ratio", Help: "Confirmed over original entries per category, 0..1"},
		[]string{"collection", "category"},
	)
)

// Register adds the collectors to the default registry once.
func Register() {
	regOnce.Do(func() {
		prometheus.MustRegister(Tasks, BytesHashed, HashDuration, Inflight, Completion)
	})
}

// Status is the snapshot served at /api/status.
type Status struct {
	Version   string `json:"version"`
	Processed int64  `json:"processed"`
	Matched   int64  `json:"matched"`
	Skipped   int64  `json:"skipped"`
	Errors    int64  `json:"errors"`
	UptimeSec int64  `json:"uptime_sec"`
	Rate      string `json:"rate_per_sec"`
}

var (
	statusMu   sync.RWMutex
	statusFunc func() Status
	startedAt  = time.Now()
)

// SetStatusSource installs the function backing /api/status. The latest
// running engine wins.
func SetStatusSource(f func() Status) {
	statusMu.Lock()
	statusFunc = f
	statusMu.Unlock()
}

// Snapshot returns the current status, or an empty one when no source is set.
func Snapshot() Status {
	statusMu.RLock()
	f := statusFunc
	statusMu.RUnlock()
	if f == nil {
		return Status{Version: "dev", UptimeSec: int64(time.Since(startedAt).Seconds())}
	}
	st := f()
	if st.Version == "" {
		st.Version = "dev"
	}
	return st
}

// Handler returns the mux served by StartServer.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		b, err := json.Marshal(Snapshot())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(b)
	})
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// StartServer exposes metrics, status and pprof at addr in the background.
// An empty addr does nothing.
func StartServer(addr string) {
	if addr == "" {
		return
	}
	Register()
	mux := Handler()
	go func() {
		slog.Info("metrics/pprof listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("metrics server error", "err", err)
		}
	}()
}

// Rate formats n items over elapsed as items per second.
func Rate(n int64, elapsed time.Duration) string {
	if elapsed <= 0 {
		return ""
	}
	return fmt.Sprintf("%.1f", float64(n)/elapsed.Seconds())
}
