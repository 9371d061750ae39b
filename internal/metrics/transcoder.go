// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics defines the Prometheus collectors of the transcoder.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PacketsRead counts packets returned by the demuxer
	PacketsRead = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xgt_packets_read_total",
		Help: "Total packets read from inputs",
	}, []string{"media_type"})

	// FramesDecoded counts frames produced by decoders
	FramesDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xgt_frames_decoded_total",
		Help: "Total frames produced by decoders",
	}, []string{"media_type"})

	// FramesFiltered counts frames pulled from filter graphs
	FramesFiltered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xgt_frames_filtered_total",
		Help: "Total frames pulled from filter graphs",
	}, []string{"media_type"})

	// PacketsWritten counts packets handed to the muxer
	PacketsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xgt_packets_written_total",
		Help: "Total packets handed to the muxer",
	}, []string{"media_type", "mode"})

	// BytesWritten counts payload bytes handed to the muxer
	BytesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xgt_bytes_written_total",
		Help: "Total payload bytes handed to the muxer",
	})

	// StageErrors counts fatal errors by pipeline stage
	StageErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xgt_stage_errors_total",
		Help: "Total fatal errors by pipeline stage",
	}, []string{"stage"})

	// StreamTransitions counts stream state machine transitions
	StreamTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xgt_stream_transitions_total",
		Help: "Total stream state transitions",
	}, []string{"from", "to"})

	// RunDuration tracks the wall time of whole transcode runs
	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "xgt_run_duration_seconds",
		Help:    "Duration of transcode runs",
		Buckets: prometheus.ExponentialBuckets(0.01, 2.0, 15), // 10ms to ~5min
	}, []string{"outcome"})

	// ThumbnailsWritten counts thumbnail attempts by result
	ThumbnailsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xgt_thumbnails_total",
		Help: "Total thumbnail write attempts",
	}, []string{"result"})

	// BatchJobs counts batch jobs by result
	BatchJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xgt_batch_jobs_total",
		Help: "Total batch jobs by result",
	}, []string{"result"})

	// BatchJobsActive tracks batch jobs currently running
	BatchJobsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "xgt_batch_jobs_active",
		Help: "Batch jobs currently running",
	})
)

// Run outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeFailed   = "failed"
	OutcomeCanceled = "canceled"
)

// ObserveRun records the duration of a finished run.
func ObserveRun(outcome string, d time.Duration) {
	RunDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// WriteTextfile dumps the default registry in the node_exporter textfile
// format. An empty path is a no-op.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
