// discover.go: list runtime candidates in preference order
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"encoding/json"
	"fmt"
	"runtime"
	"text/tabwriter"

	"github.com/spf13/cobra"

	goxpcom "github.com/agilira/go-xpcom"
)

// discoverReport is the --json form of the discover output.
type discoverReport struct {
	Range      string                     `json:"range"`
	Candidates []goxpcom.RuntimeCandidate `json:"candidates"`
	Preferred  *goxpcom.RuntimeCandidate  `json:"preferred,omitempty"`
}

func newDiscoverCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List runtime candidates and the one that would be selected",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			compat, err := cfg.CompatibilityRange()
			if err != nil {
				return err
			}
			source := &goxpcom.FilesystemCandidateSource{
				ApplicationDir: cfg.ApplicationDir,
				Pattern:        cfg.CandidatePattern,
				SystemPaths:    cfg.SystemSearchPaths,
				EngineLibrary:  goxpcom.EngineLibraryName(runtime.GOOS),
				Logger:         logger,
			}
			candidates, err := source.Candidates(cmd.Context())
			if err != nil {
				return err
			}

			selector := goxpcom.NewVersionSelector(compat)
			report := discoverReport{Range: compat.String(), Candidates: candidates}
			if best, err := selector.Preferred(candidates); err == nil {
				report.Preferred = &best
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "PATH\tVERSION\tVALID\tSOURCE\tIN RANGE")
			for _, c := range candidates {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%t\n", c.Path, c.Version, c.Valid, c.Source, compat.Contains(c.Version))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if report.Preferred == nil {
				_, _ = fmt.Fprintf(out, "\nNo runtime in %s\n", report.Range)
				return nil
			}
			_, _ = fmt.Fprintf(out, "\nSelected: %s\n", report.Preferred.Path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}
