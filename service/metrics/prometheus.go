package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "segment_requests_total",
		Help: "Total number of upload requests, by kind and status",
	}, []string{"kind", "status"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "segment_request_duration_seconds",
		Help:    "Duration of a full upload request",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"kind"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "segment_stage_duration_seconds",
		Help:    "Duration of the pipeline stages",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	FramesTransformedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "segment_frames_transformed_total",
		Help: "Total number of frames run through the scorer",
	})

	FramesStagedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "segment_frames_staged_total",
		Help: "Total number of video frames split to disk",
	})

	CacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "segment_cache_lookups_total",
		Help: "Image result cache lookups, by result",
	}, []string{"result"})

	WorkspacesRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "segment_workspaces_removed_total",
		Help: "Workspaces removed by the janitor",
	})

	InFlightRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "segment_in_flight_requests",
		Help: "Number of upload requests currently being processed",
	})
)
