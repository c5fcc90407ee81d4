// bootstrap.go: discover, load and initialize a runtime from a Config
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goxpcom

import (
	"context"
	"runtime"
)

// EngineFactory binds an Engine to the runtime installed in dir.
type EngineFactory func(dir string, logger Logger) (Engine, error)

type bootstrapSettings struct {
	logger     Logger
	source     CandidateSource
	platform   Platform
	engine     EngineFactory
	searchPath func(dir string) (bool, error)
	runtime    []RuntimeOption
}

// BootstrapOption configures Bootstrap.
type BootstrapOption func(*bootstrapSettings)

// WithBootstrapLogger sets the logger used by discovery, loading and the
// runtime. Accepts anything NewLogger accepts.
func WithBootstrapLogger(logger any) BootstrapOption {
	return func(s *bootstrapSettings) { s.logger = NewLogger(logger) }
}

// WithCandidateSource replaces the filesystem discovery.
func WithCandidateSource(source CandidateSource) BootstrapOption {
	return func(s *bootstrapSettings) { s.source = source }
}

// WithPlatform replaces the native library loader.
func WithPlatform(platform Platform) BootstrapOption {
	return func(s *bootstrapSettings) { s.platform = platform }
}

// WithEngineFactory replaces the purego engine.
func WithEngineFactory(factory EngineFactory) BootstrapOption {
	return func(s *bootstrapSettings) { s.engine = factory }
}

// WithSearchPath replaces PrependSearchPath for both library loading and
// the runtime; nil disables search path changes.
func WithSearchPath(fn func(dir string) (bool, error)) BootstrapOption {
	return func(s *bootstrapSettings) { s.searchPath = fn }
}

// WithRuntimeOptions passes extra options to NewRuntime. They are applied
// after those derived from the configuration.
func WithRuntimeOptions(opts ...RuntimeOption) BootstrapOption {
	return func(s *bootstrapSettings) { s.runtime = append(s.runtime, opts...) }
}

// Bootstrap is BootstrapContext with a background context.
func Bootstrap(cfg Config, opts ...BootstrapOption) (*Runtime, error) {
	return BootstrapContext(context.Background(), cfg, opts...)
}

// BootstrapContext brings up a runtime as described by cfg and returns it
// Ready.
//
// With AutoSearch the preferred candidate is selected from discovery, its
// libraries are loaded in dependency order and the engine is bound to its
// directory. Without AutoSearch the runtime is expected in the application
// directory at DefaultRuntimeVersion and nothing is preloaded. Any failure
// aborts the bootstrap; no other candidate is tried. ctx bounds discovery
// only.
//
// Example usage:
//
//	cfg := goxpcom.DefaultConfig()
//	rt, err := goxpcom.Bootstrap(cfg, goxpcom.WithBootstrapLogger(zapLogger))
//	if err != nil {
//		return err
//	}
//	defer rt.Close()
func BootstrapContext(ctx context.Context, cfg Config, opts ...BootstrapOption) (*Runtime, error) {
	settings := bootstrapSettings{
		logger:     LoggerFromContext(ctx),
		engine:     newNativeEngine,
		searchPath: PrependSearchPath,
	}
	for _, opt := range opts {
		opt(&settings)
	}
	logger := settings.logger

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	audit, err := NewAuditTrail(cfg.Audit)
	if err != nil {
		return nil, err
	}
	closeAudit := func() {
		if err := audit.Close(); err != nil {
			logger.Warn("Audit trail not closed", "error", err)
		}
	}

	candidate, err := selectCandidate(ctx, cfg, settings)
	if err != nil {
		closeAudit()
		return nil, err
	}
	logger.Info("Runtime selected",
		"runtime_dir", candidate.Path,
		"runtime_version", candidate.Version.String(),
		"source", candidate.Source)

	if cfg.AutoSearch {
		if err := loadLibraries(candidate, cfg, settings, audit); err != nil {
			closeAudit()
			return nil, err
		}
	}

	engine, err := settings.engine(candidate.Path, logger)
	if err != nil {
		closeAudit()
		return nil, err
	}

	runtimeOpts := []RuntimeOption{
		WithLogger(logger),
		WithApplicationDir(cfg.ApplicationDir),
		WithProfile(cfg.Profile),
		WithAuditTrail(audit),
		WithSearchPathFunc(settings.searchPath),
	}
	rt := NewRuntime(engine, append(runtimeOpts, settings.runtime...)...)
	if err := rt.Initialize(candidate); err != nil {
		closeAudit()
		return nil, err
	}
	return rt, nil
}

func selectCandidate(ctx context.Context, cfg Config, settings bootstrapSettings) (RuntimeCandidate, error) {
	if !cfg.AutoSearch {
		return RuntimeCandidate{
			Path:    cfg.ApplicationDir,
			Version: DefaultRuntimeVersion,
			Valid:   true,
			Source:  SourceApplication,
		}, nil
	}

	compat, err := cfg.CompatibilityRange()
	if err != nil {
		return RuntimeCandidate{}, err
	}
	source := settings.source
	if source == nil {
		source = &FilesystemCandidateSource{
			ApplicationDir: cfg.ApplicationDir,
			Pattern:        cfg.CandidatePattern,
			SystemPaths:    cfg.SystemSearchPaths,
			EngineLibrary:  EngineLibraryName(runtime.GOOS),
			Logger:         settings.logger,
		}
	}

	candidates, err := source.Candidates(ctx)
	if err != nil {
		return RuntimeCandidate{}, NewDiscoveryError("runtime discovery failed", err)
	}
	return NewVersionSelector(compat).Preferred(candidates)
}

func loadLibraries(candidate RuntimeCandidate, cfg Config, settings bootstrapSettings, audit *AuditTrail) error {
	ordered, err := OrderLibraries(cfg.Libraries)
	if err != nil {
		return err
	}

	if settings.searchPath != nil {
		changed, err := settings.searchPath(candidate.Path)
		if err != nil {
			return NewLibraryLoadError("", candidate.Path, 0, err).
				WithContext("stage", "search_path")
		}
		settings.logger.Debug("Library search path", "runtime_dir", candidate.Path, "prepended", changed)
	}

	loaded, err := NewLibraryLoader(settings.platform, settings.logger).Load(candidate.Path, ordered)
	if err != nil {
		ctx := map[string]interface{}{
			"runtime_dir": candidate.Path,
			"error":       err.Error(),
		}
		if loaded != nil {
			ctx["loaded"] = loaded.Paths()
		}
		audit.Record(AuditLibraryLoadFailed, "Runtime library could not be loaded", ctx)
		return err
	}

	audit.Record(AuditLibrariesLoaded, "Runtime libraries loaded", map[string]interface{}{
		"runtime_dir": candidate.Path,
		"libraries":   loaded.Paths(),
		"skipped":     loaded.Skipped,
	})
	return nil
}
