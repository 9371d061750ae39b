// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	xglog "github.com/ManuGH/xgtranscode/internal/log"
	"github.com/ManuGH/xgtranscode/internal/metrics"
)

// Job results.
const (
	ResultOK       = "ok"
	ResultFailed   = "failed"
	ResultSkipped  = "skipped"
	ResultCanceled = "canceled"
)

// RunFunc executes one job. ctx carries the job ID.
type RunFunc func(ctx context.Context, job Job) error

// Options configure a batch run.
type Options struct {
	Concurrency int
	// FailFast cancels running and pending jobs after the first failure.
	FailFast bool
}

// Result is the outcome of one job, reported in manifest order.
type Result struct {
	JobID    string
	Name     string
	Status   string
	Err      error
	Duration time.Duration
}

// ErrJobsFailed is returned when at least one job did not succeed.
var ErrJobsFailed = errors.New("batch jobs failed")

// Run executes jobs with at most opts.Concurrency running at once. Every
// job is an independent single-threaded transcode. Results are returned
// in job order even when an error is returned.
func Run(ctx context.Context, jobs []Job, opts Options, run RunFunc) ([]Result, error) {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	logger := xglog.WithComponentFromContext(ctx, "batch")
	results := make([]Result, len(jobs))

	var g *errgroup.Group
	gctx := ctx
	if opts.FailFast {
		g, gctx = errgroup.WithContext(ctx)
	} else {
		g = new(errgroup.Group)
	}
	g.SetLimit(opts.Concurrency)

	for i, job := range jobs {
		id := uuid.NewString()
		results[i] = Result{JobID: id, Name: job.Name, Status: ResultSkipped}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				metrics.BatchJobs.WithLabelValues(ResultSkipped).Inc()
				return nil
			}
			jctx := xglog.ContextWithJobID(gctx, id)
			jlog := xglog.WithContext(jctx, logger).With().Str("job", job.Name).Logger()

			metrics.BatchJobsActive.Inc()
			start := time.Now()
			err := run(jctx, job)
			metrics.BatchJobsActive.Dec()

			res := &results[i]
			res.Duration = time.Since(start)
			res.Err = err
			switch {
			case err == nil:
				res.Status = ResultOK
				jlog.Info().Str(xglog.FieldEvent, "batch.job.done").Dur("duration", res.Duration).Msg("job finished")
			case errors.Is(err, context.Canceled):
				res.Status = ResultCanceled
				jlog.Warn().Err(err).Str(xglog.FieldEvent, "batch.job.canceled").Msg("job canceled")
			default:
				res.Status = ResultFailed
				jlog.Error().Err(err).Str(xglog.FieldEvent, "batch.job.failed").Msg("job failed")
			}
			metrics.BatchJobs.WithLabelValues(res.Status).Inc()
			if err != nil && opts.FailFast {
				return fmt.Errorf("job %q: %w", job.Name, err)
			}
			return nil
		})
	}

	firstErr := g.Wait()

	failed := 0
	for _, r := range results {
		if r.Status != ResultOK {
			failed++
		}
	}
	logger.Info().
		Str(xglog.FieldEvent, "batch.done").
		Int("jobs", len(jobs)).
		Int("failed", failed).
		Msg("batch finished")
	if failed == 0 {
		return results, nil
	}
	if firstErr != nil {
		return results, fmt.Errorf("%w: %d of %d: %w", ErrJobsFailed, failed, len(jobs), firstErr)
	}
	return results, fmt.Errorf("%w: %d of %d", ErrJobsFailed, failed, len(jobs))
}
