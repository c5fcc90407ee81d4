// root.go: root command, shared flags and logger wiring
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	goxpcom "github.com/agilira/go-xpcom"
)

// globalOptions holds the flags shared by every subcommand.
type globalOptions struct {
	configPath string
	appDir     string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "xpcomctl",
		Short:         "Inspect and probe installed XULRunner runtimes",
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "configuration file (yaml, json, toml or ini)")
	root.PersistentFlags().StringVar(&opts.appDir, "app-dir", "", "application directory searched before system locations")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		newDiscoverCmd(opts),
		newPlanCmd(opts),
		newProbeCmd(opts),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads --config when given and falls back to DefaultConfig with
// GO_XPCOM_* overrides otherwise. --app-dir wins over both.
func (o *globalOptions) loadConfig() (goxpcom.Config, error) {
	var cfg goxpcom.Config
	if o.configPath != "" {
		loaded, err := goxpcom.LoadConfigFromFile(o.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	} else {
		cfg = goxpcom.DefaultConfig()
		if err := goxpcom.ApplyEnvironmentOverrides(&cfg, goxpcom.DefaultEnvPrefix); err != nil {
			return cfg, err
		}
	}
	if o.appDir != "" {
		cfg.ApplicationDir = o.appDir
	}
	if o.verbose {
		cfg.LogLevel = goxpcom.LogLevelDebug
	}
	return cfg, cfg.Validate()
}

// newLogger builds a console zap logger at level writing to w.
func newLogger(w io.Writer, level string) (*zap.Logger, error) {
	atomic, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(w), atomic)
	return zap.New(core), nil
}

// setup loads the configuration and the logger for a subcommand.
func (o *globalOptions) setup(cmd *cobra.Command) (goxpcom.Config, *goxpcom.ZapAdapter, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return cfg, nil, err
	}
	zl, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, goxpcom.NewZapAdapter(zl), nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the xpcomctl version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := io.WriteString(cmd.OutOrStdout(), "xpcomctl "+versionString()+"\n")
			return err
		},
	}
}
