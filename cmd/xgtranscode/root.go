// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ManuGH/xgtranscode/internal/jobspec"
	"github.com/ManuGH/xgtranscode/internal/version"
)

const rootUse = "xgtranscode <input> <output> <thumbnail|disabled> <height|unset> <width|unset> <bitrate|unset>"

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   rootUse,
		Short: "Transcode a media container, optionally writing one thumbnail frame",
		Long: `Reads every stream of <input>, decodes, filters and re-encodes audio and
video, copies other streams unchanged and writes the result to <output>.

The container format of each path is chosen by its extension (.pktdb, .y4m).
A positive <thumbnail> writes that 1-based video frame as a PPM image;
"disabled" or 0 turns it off. <height>, <width> and <bitrate> override the
video encoder; "unset" or 0 keeps the source value.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != jobspec.NArgs {
				return usageError{fmt.Errorf("expected %d arguments, got %d\nusage: %s", jobspec.NArgs, len(args), rootUse)}
			}
			return nil
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup(cmd.Context())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := jobspec.Parse(args)
			if err != nil {
				return err
			}
			res, err := a.transcode(cmd.Context(), spec, jobOverrides{})
			if err != nil {
				return err
			}
			a.printSummary(res)
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	f := cmd.PersistentFlags()
	f.StringVar(&a.flags.configPath, "config", "", "path to a YAML configuration file")
	f.StringVar(&a.flags.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	f.StringVar(&a.flags.logFormat, "log-format", "", "log format (auto, json, console)")
	f.StringVar(&a.flags.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")
	f.StringVar(&a.flags.thumbDir, "thumbnail-dir", "", "directory for thumbnail images")
	f.StringVar(&a.flags.videoFilter, "video-filter", "", "video filter graph description (its output size is used when width/height are unset)")
	f.StringVar(&a.flags.audioFilter, "audio-filter", "", "audio filter graph description")
	f.StringVar(&a.flags.videoCodec, "video-codec", "", "video encoder (defaults to the source codec)")
	f.StringVar(&a.flags.audioCodec, "audio-codec", "", "audio encoder (defaults to the source codec)")

	cmd.AddCommand(newBatchCmd(a), newVerifyCmd(a), newVersionCmd(a))
	return cmd
}
