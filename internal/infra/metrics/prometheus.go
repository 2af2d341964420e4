package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ClassificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emotion_classifications_total",
		Help: "Total classification calls, by outcome (ok, fallback)",
	}, []string{"outcome"})

	FramesExtractedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "emotion_frames_extracted_total",
		Help: "Total number of frames extracted from videos",
	})

	IngestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "emotion_ingest_duration_seconds",
		Help:    "Duration of ingestion pipeline stages",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
	}, []string{"stage"})

	RecordsPersistedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "emotion_records_persisted_total",
		Help: "Total number of emotion records written to the store",
	})

	LowConfidenceSkipsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "emotion_low_confidence_skips_total",
		Help: "Total number of observations skipped by the reliability gate",
	})
)
