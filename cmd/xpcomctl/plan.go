// plan.go: print the native library load order
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	goxpcom "github.com/agilira/go-xpcom"
)

func newPlanCmd(opts *globalOptions) *cobra.Command {
	var runtimeDir string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the order in which runtime libraries are loaded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ordered, err := goxpcom.OrderLibraries(cfg.Libraries)
			if err != nil {
				return err
			}
			logger.Debug("Library plan computed", "libraries", len(ordered))

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			header := "#\tLIBRARY\tALTERNATIVES\tOPTIONAL\tDEPENDS ON"
			if runtimeDir != "" {
				header += "\tFOUND"
			}
			_, _ = fmt.Fprintln(tw, header)
			for i, spec := range ordered {
				line := fmt.Sprintf("%d\t%s\t%s\t%t\t%s", i+1, spec.Name,
					orDash(strings.Join(spec.Alternatives, ",")), spec.Optional,
					orDash(strings.Join(spec.DependsOn, ",")))
				if runtimeDir != "" {
					line += "\t" + orDash(locate(runtimeDir, spec))
				}
				_, _ = fmt.Fprintln(tw, line)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&runtimeDir, "dir", "", "runtime directory to check the library files against")
	return cmd
}

// locate returns the first file of spec present in dir.
func locate(dir string, spec goxpcom.LibrarySpec) string {
	for _, name := range append([]string{spec.Name}, spec.Alternatives...) {
		if info, err := os.Stat(filepath.Join(dir, name)); err == nil && !info.IsDir() {
			return name
		}
	}
	return ""
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
