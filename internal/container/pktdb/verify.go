// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pktdb

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ManuGH/xgtranscode/internal/persistence/sqlite"
)

// Report summarises a container health check.
type Report struct {
	Streams   int
	Packets   int64
	Finalized bool
	Issues    []string
}

// OK reports whether no issue was found.
func (r Report) OK() bool {
	return len(r.Issues) == 0
}

// Verify runs a SQLite integrity check and then reads every packet,
// validating payload checksums.
func Verify(ctx context.Context, path string) (Report, error) {
	var rep Report
	issues, err := sqlite.VerifyIntegrity(path, "full")
	if err != nil {
		return rep, err
	}
	if issues != nil {
		rep.Issues = append(rep.Issues, issues...)
		return rep, nil
	}
	r, err := Open(path)
	if err != nil {
		return rep, err
	}
	defer r.Close()

	rep.Streams = len(r.Streams())
	rep.Finalized = r.Finalized()
	if !rep.Finalized {
		rep.Issues = append(rep.Issues, "container was not finalized")
	}
	for {
		if _, err := r.ReadPacket(ctx); err != nil {
			if errors.Is(err, io.EOF) {
				return rep, nil
			}
			if errors.Is(err, ErrChecksum) {
				rep.Issues = append(rep.Issues, err.Error())
				return rep, nil
			}
			return rep, fmt.Errorf("pktdb: verify: %w", err)
		}
		rep.Packets++
	}
}
