// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediashare_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediashare_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	ResponseCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediashare_response_cache_lookups_total",
			Help: "Response cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediashare_uploads_total",
			Help: "Accepted uploads by media type",
		},
		[]string{"media_type"},
	)

	UploadBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediashare_upload_bytes_total",
			Help: "Bytes of accepted uploads by media type",
		},
		[]string{"media_type"},
	)

	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediashare_rate_limited_total",
			Help: "Requests rejected by the per-IP rate limit",
		},
	)

	PanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediashare_http_panics_total",
			Help: "Handler panics recovered into 500 responses",
		},
	)

	OrphansRemovedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediashare_orphan_files_removed_total",
			Help: "Stored files removed by the orphan sweep",
		},
	)

	MaintenanceTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediashare_maintenance_tasks_total",
			Help: "Maintenance tasks processed by type and outcome",
		},
		[]string{"type", "outcome"},
	)
)

func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func RecordUpload(mediaType string, size int64) {
	UploadsTotal.WithLabelValues(mediaType).Inc()
	UploadBytes.WithLabelValues(mediaType).Add(float64(size))
}

func RecordCacheLookup(result string) {
	ResponseCacheLookups.WithLabelValues(result).Inc()
}

func RecordTask(taskType string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	MaintenanceTasksTotal.WithLabelValues(taskType, outcome).Inc()
}
