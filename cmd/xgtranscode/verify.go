// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ManuGH/xgtranscode/internal/container/pktdb"
)

var errVerifyFailed = errors.New("verification failed")

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file.pktdb>",
		Short: "Check the integrity of a packet database file",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usageError{fmt.Errorf("verify expects exactly one file")}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := pktdb.Verify(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "streams:   %d\npackets:   %d\nfinalized: %t\n", rep.Streams, rep.Packets, rep.Finalized)
			for _, issue := range rep.Issues {
				fmt.Fprintf(a.stdout, "issue:     %s\n", issue)
			}
			if !rep.OK() {
				return fmt.Errorf("%s: %w", args[0], errVerifyFailed)
			}
			return nil
		},
	}
}
