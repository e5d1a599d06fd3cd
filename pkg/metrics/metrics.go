// Package metrics holds the Prometheus collectors for engagedl and an
// optional HTTP listener that exposes them.
//
// Collectors:
//   - engagedl_requests_total{kind, status}: API calls by kind (token, batch) and HTTP status
//   - engagedl_request_duration_seconds{kind}: API call latency
//   - engagedl_batches_total{outcome}: batches by outcome (ok, failed)
//   - engagedl_rows_total: result rows collected
//   - engagedl_sink_writes_total{sink, outcome}: result persists by sink
//   - engagedl_checkpoint_offset: next offset recorded at the last checkpoint
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer all collectors are attached to
var Registry = prometheus.DefaultRegisterer

var (
	// RequestsTotal counts API calls by kind and status ("error" for transport failures)
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engagedl_requests_total",
		Help: "Total engagement API requests by kind and HTTP status",
	}, []string{"kind", "status"})

	// RequestDuration tracks API latency by kind
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "engagedl_request_duration_seconds",
		Help:    "Engagement API request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	// BatchesTotal counts processed batches by outcome
	BatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engagedl_batches_total",
		Help: "Total batches processed by outcome",
	}, []string{"outcome"})

	// RowsTotal counts collected result rows
	RowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engagedl_rows_total",
		Help: "Total result rows collected",
	})

	// SinkWritesTotal counts result persists by sink and outcome
	SinkWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engagedl_sink_writes_total",
		Help: "Total result persists by sink and outcome",
	}, []string{"sink", "outcome"})

	// CheckpointOffset is the next offset recorded at the last checkpoint
	CheckpointOffset = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "engagedl_checkpoint_offset",
		Help: "Next identifier offset recorded at the last checkpoint",
	})
)

// ObserveRequest records one API call. status 0 means the request never
// produced a response.
func ObserveRequest(kind string, status int, d time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	RequestsTotal.WithLabelValues(kind, label).Inc()
	RequestDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// Outcome returns the label for a success flag
func Outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}

// Handler returns the /metrics handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is done
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
