package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imstream_jobs_processed_total",
		Help: "Total number of extraction jobs processed, by status",
	}, []string{"status"})

	JobProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "imstream_job_processing_duration_seconds",
		Help:    "Duration of the frame-extraction pipeline",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	FramesDecodedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imstream_frames_decoded_total",
		Help: "Total number of frames decoded across all jobs",
	})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "imstream_active_workers",
		Help: "Number of currently active workers processing jobs",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imstream_retry_total",
		Help: "Total number of retries",
	}, []string{"attempt"})

	StreamCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imstream_stream_cache_hits_total",
		Help: "Frame-cache hits across all media streams",
	})

	StreamCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imstream_stream_cache_misses_total",
		Help: "Frame-cache misses across all media streams",
	})

	StreamSeeks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imstream_stream_seeks_total",
		Help: "Explicit backend repositioning calls across all media streams",
	})
)
