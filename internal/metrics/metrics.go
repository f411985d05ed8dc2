// Package metrics provides Prometheus metrics for the capishare client.
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

var (
	apiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capishare_api_requests_total",
			Help: "Total number of REST API requests",
		},
		[]string{"method", "status"},
	)

	apiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "capishare_api_request_duration_seconds",
			Help:    "REST API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	apiThrottledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "capishare_api_throttled_total",
			Help: "Total 429 responses from the API",
		},
	)

	transfersStartedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capishare_transfers_started_total",
			Help: "Total transfers started",
		},
		[]string{"kind"},
	)

	transfersFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capishare_transfers_finished_total",
			Help: "Total transfers that reached a terminal state",
		},
		[]string{"kind", "outcome"},
	)

	transferBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capishare_transfer_bytes_total",
			Help: "Total bytes moved by transfers",
		},
		[]string{"kind"},
	)

	assetLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capishare_asset_loads_total",
			Help: "Total thumbnail loads",
		},
		[]string{"outcome"},
	)

	assetLoaderActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "capishare_asset_loader_active",
			Help: "Thumbnail loads currently dispatched",
		},
	)

	assetLoaderQueued = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "capishare_asset_loader_queued",
			Help: "Thumbnail loads waiting for a slot",
		},
	)

	navigatorLoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "capishare_navigator_load_duration_seconds",
			Help:    "Folder listing load duration including the minimum loading time",
			Buckets: []float64{0.25, 0.5, 0.75, 1, 2, 5, 10},
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// RecordAPIRequest records one REST call. status 0 means a transport error.
func RecordAPIRequest(method string, status int, duration time.Duration) {
	apiRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	apiRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
	if status == http.StatusTooManyRequests {
		apiThrottledTotal.Inc()
	}
}

// RecordTransferStarted counts a task entering the active state.
func RecordTransferStarted(kind string) {
	transfersStartedTotal.WithLabelValues(kind).Inc()
}

// RecordTransferFinished counts a task reaching a terminal state.
func RecordTransferFinished(kind, outcome string, bytes int64) {
	transfersFinishedTotal.WithLabelValues(kind, outcome).Inc()
	if bytes > 0 {
		transferBytesTotal.WithLabelValues(kind).Add(float64(bytes))
	}
}

// RecordAssetLoad records one thumbnail fetch attempt.
func RecordAssetLoad(success bool) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	assetLoadsTotal.WithLabelValues(outcome).Inc()
}

// SetAssetLoaderState publishes the loader's slot usage.
func SetAssetLoaderState(active, queued int) {
	assetLoaderActive.Set(float64(active))
	assetLoaderQueued.Set(float64(queued))
}

// RecordNavigatorLoad records a completed folder load.
func RecordNavigatorLoad(duration time.Duration) {
	navigatorLoadDuration.Observe(duration.Seconds())
}
