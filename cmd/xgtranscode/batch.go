// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuGH/xgtranscode/internal/batch"
)

func newBatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "batch <manifest.yaml>",
		Short: "Run the transcode jobs listed in a manifest",
		Long: `Runs every job of a YAML manifest with bounded concurrency. Each job
writes its thumbnail to <thumbnail-dir>/<job name>/ unless the job sets
thumbnail_dir.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usageError{fmt.Errorf("batch expects exactly one manifest path")}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := batch.LoadManifest(args[0])
			if err != nil {
				return usageError{err}
			}
			if err := batch.CheckThumbnailTargets(m.Jobs, a.cfg.ThumbnailDir); err != nil {
				return usageError{err}
			}
			opts := batch.Options{
				Concurrency: a.cfg.BatchConcurrency,
				FailFast:    a.cfg.BatchFailFast,
			}
			if m.Concurrency != nil {
				opts.Concurrency = *m.Concurrency
			}
			if m.FailFast != nil {
				opts.FailFast = *m.FailFast
			}

			results, err := batch.Run(cmd.Context(), m.Jobs, opts, func(ctx context.Context, job batch.Job) error {
				spec, err := job.Spec()
				if err != nil {
					return err
				}
				_, err = a.transcode(ctx, spec, jobOverrides{
					videoFilter:  job.VideoFilter,
					audioFilter:  job.AudioFilter,
					thumbnailDir: job.ThumbnailDirIn(a.cfg.ThumbnailDir),
				})
				return err
			})
			for _, r := range results {
				line := fmt.Sprintf("%-8s %-20s %s", r.Status, r.Name, r.Duration.Round(time.Millisecond))
				if r.Err != nil {
					line += "  " + r.Err.Error()
				}
				fmt.Fprintln(a.stdout, line)
			}
			return err
		},
	}
}
