// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prediction modes used as label values.
const (
	ModeIndividual = "individual"
	ModeBatch      = "batch"
	ModeAPI        = "api"
	ModeWorker     = "worker"
)

var (
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pv_predictions_total",
			Help: "Total number of records scored, by mode and predicted label",
		},
		[]string{"mode", "label"},
	)

	PredictionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pv_prediction_duration_seconds",
			Help:    "Duration of a prediction call in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		},
		[]string{"mode"},
	)

	BatchRows = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pv_batch_rows",
			Help:    "Number of rows per batch prediction",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	UploadFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pv_upload_failures_total",
			Help: "Uploads rejected, by error code",
		},
		[]string{"error_code"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pv_cache_lookups_total",
			Help: "Prediction cache lookups, by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pv_http_requests_total",
			Help: "HTTP requests served, by route and status",
		},
		[]string{"route", "status"},
	)

	ModelLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pv_model_loaded",
			Help: "1 when the prediction pipeline is loaded, 0 otherwise",
		},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)
)

// ObservePredictions counts scored labels for one call.
func ObservePredictions(mode string, labels []int) {
	var yes, no float64
	for _, l := range labels {
		if l == 1 {
			yes++
		} else {
			no++
		}
	}
	if yes > 0 {
		PredictionsTotal.WithLabelValues(mode, "1").Add(yes)
	}
	if no > 0 {
		PredictionsTotal.WithLabelValues(mode, "0").Add(no)
	}
}
