// probe.go: bootstrap the runtime once and report what came up
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	goxpcom "github.com/agilira/go-xpcom"
)

// bootstrapFunc is replaced in tests, which have no native runtime.
var bootstrapFunc = goxpcom.BootstrapContext

func newProbeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Initialize the selected runtime, report it and shut it down",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			rt, err := bootstrapFunc(cmd.Context(), cfg, goxpcom.WithBootstrapLogger(logger))
			if err != nil {
				if result, ok := goxpcom.NativeResultOf(err); ok {
					return fmt.Errorf("probe failed (native result %s): %w", result, err)
				}
				return fmt.Errorf("probe failed: %w", err)
			}

			out := cmd.OutOrStdout()
			active, _ := rt.Active()
			_, _ = fmt.Fprintf(out, "Runtime:  %s\n", active.Dir)
			_, _ = fmt.Fprintf(out, "Version:  %s\n", rt.Version())
			_, _ = fmt.Fprintf(out, "Source:   %s\n", active.Candidate.Source)
			if profile, err := rt.ProfileDirectory(); err == nil {
				_, _ = fmt.Fprintf(out, "Profile:  %s\n", profile)
			}

			if err := rt.Close(); err != nil {
				return fmt.Errorf("shutdown failed: %w", err)
			}
			stats := rt.QueryStats()
			_, _ = fmt.Fprintf(out, "Shutdown: ok (%d queries, %d references outstanding)\n", stats.Queries, stats.Outstanding())
			return nil
		},
	}
}
