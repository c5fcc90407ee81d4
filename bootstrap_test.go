// bootstrap_test.go: end-to-end bootstrap over fake discovery, platform and engine
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goxpcom

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bootstrapFixture wires Bootstrap to fakes and records what it did.
type bootstrapFixture struct {
	cfg       Config
	platform  *fakePlatform
	engine    *fakeEngine
	auditPath string

	mu          sync.Mutex
	engineDirs  []string
	searchPaths []string
	engineErr   error
	searchErr   error
}

func newBootstrapFixture(t *testing.T) *bootstrapFixture {
	t.Helper()
	appDir := t.TempDir()
	f := &bootstrapFixture{
		platform:  newFakePlatform(),
		engine:    newFakeEngine(),
		auditPath: filepath.Join(t.TempDir(), "audit.jsonl"),
	}
	f.cfg = Config{
		ApplicationDir:    appDir,
		AutoSearch:        true,
		SystemSearchPaths: []string{},
		Libraries: []LibrarySpec{
			{Name: "libnspr4.so"},
			{Name: "libmozjs.so", Optional: true},
			{Name: "libxpcom.so"},
		},
		Profile: ProfileLocator{Root: t.TempDir(), AppName: "bootstrap-test"},
		Audit:   AuditSettings{Enabled: true, OutputFile: f.auditPath, FlushInterval: "10ms"},
	}
	return f
}

func (f *bootstrapFixture) options(extra ...BootstrapOption) []BootstrapOption {
	opts := []BootstrapOption{
		WithPlatform(f.platform),
		WithEngineFactory(func(dir string, logger Logger) (Engine, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.engineDirs = append(f.engineDirs, dir)
			if f.engineErr != nil {
				return nil, f.engineErr
			}
			return f.engine, nil
		}),
		WithSearchPath(func(dir string) (bool, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.searchPaths = append(f.searchPaths, dir)
			return true, f.searchErr
		}),
	}
	return append(opts, extra...)
}

func (f *bootstrapFixture) auditLog(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(f.auditPath)
	require.NoError(t, err)
	return string(data)
}

func staticSource(candidates ...RuntimeCandidate) CandidateSource {
	return CandidateSourceFunc(func(context.Context) ([]RuntimeCandidate, error) {
		return candidates, nil
	})
}

func TestBootstrap_AutoSearch(t *testing.T) {
	f := newBootstrapFixture(t)
	runtimeDir := writeRuntimeLayout(t, filepath.Join(t.TempDir(), "xulrunner"), "1.9.2.13", "libnspr4.so", "libxpcom.so")
	older := writeRuntimeLayout(t, filepath.Join(t.TempDir(), "xulrunner-old"), "1.8.1", "libnspr4.so", "libxpcom.so")

	logger := NewTestLogger()
	rt, err := Bootstrap(f.cfg, f.options(
		WithBootstrapLogger(logger),
		WithCandidateSource(staticSource(
			RuntimeCandidate{Path: older, Version: MustRuntimeVersion(1, 8, 1, 0), Valid: true, Source: SourceSystem},
			RuntimeCandidate{Path: runtimeDir, Version: MustRuntimeVersion(1, 9, 2, 13), Valid: true, Source: SourceSystem},
		)),
	)...)
	require.NoError(t, err)

	require.True(t, rt.IsInitialized())
	active, ok := rt.Active()
	require.True(t, ok)
	assert.Equal(t, filepath.Clean(runtimeDir), active.Dir)
	assert.Equal(t, MustRuntimeVersion(1, 9, 2, 13), rt.Version())

	assert.Equal(t, []string{"libnspr4.so", "libxpcom.so"}, f.platform.loadAttempts())
	assert.Equal(t, []string{runtimeDir}, f.engineDirs)
	assert.Contains(t, f.searchPaths, runtimeDir, "Search path is extended before the preload")
	assert.Equal(t, filepath.Clean(runtimeDir), f.engine.binDirectory)
	assert.True(t, logger.HasMessage("INFO", "Runtime selected"))

	require.NoError(t, rt.Close())
	log := f.auditLog(t)
	assert.Contains(t, log, AuditLibrariesLoaded)
	assert.Contains(t, log, AuditRuntimeInitialized)
	assert.Zero(t, f.engine.heap.outstanding())
}

func TestBootstrap_FilesystemDiscovery(t *testing.T) {
	f := newBootstrapFixture(t)
	engineLib := EngineLibraryName(runtime.GOOS)
	f.cfg.Libraries = []LibrarySpec{{Name: engineLib}}
	runtimeDir := writeRuntimeLayout(t, filepath.Join(f.cfg.ApplicationDir, "xulrunner"), "1.9.1.16", engineLib)

	rt, err := Bootstrap(f.cfg, f.options()...)
	require.NoError(t, err)
	defer rt.Close()

	active, _ := rt.Active()
	assert.Equal(t, runtimeDir, active.Candidate.Path)
	assert.Equal(t, SourceApplication, active.Candidate.Source)
	assert.Equal(t, []string{engineLib}, f.platform.loadAttempts())
}

func TestBootstrap_WithoutAutoSearch(t *testing.T) {
	f := newBootstrapFixture(t)
	f.cfg.AutoSearch = false

	rt, err := Bootstrap(f.cfg, f.options(WithCandidateSource(CandidateSourceFunc(func(context.Context) ([]RuntimeCandidate, error) {
		t.Error("Discovery must not run without auto search")
		return nil, nil
	})))...)
	require.NoError(t, err)
	defer rt.Close()

	assert.Empty(t, f.platform.loadAttempts(), "Nothing is preloaded")
	assert.Equal(t, []string{f.cfg.ApplicationDir}, f.engineDirs)
	assert.Equal(t, DefaultRuntimeVersion, rt.Version())
	assert.Empty(t, f.engine.binDirectory, "The runtime lives in the application directory")
}

func TestBootstrap_LibraryFailureAborts(t *testing.T) {
	f := newBootstrapFixture(t)
	f.platform.failOn("libxpcom.so", 2)
	runtimeDir := writeRuntimeLayout(t, filepath.Join(t.TempDir(), "xulrunner"), "1.9.2", "libnspr4.so", "libxpcom.so")

	rt, err := Bootstrap(f.cfg, f.options(WithCandidateSource(staticSource(
		RuntimeCandidate{Path: runtimeDir, Version: MustRuntimeVersion(1, 9, 2, 0), Valid: true},
	)))...)
	require.Error(t, err)
	assert.Nil(t, rt)
	assert.True(t, IsErrorCode(err, ErrCodeLibraryLoad))
	code, _ := PlatformCodeOf(err)
	assert.Equal(t, 2, code)

	assert.Empty(t, f.engineDirs, "Engine is never bound after a load failure")
	assert.Contains(t, f.auditLog(t), AuditLibraryLoadFailed)
}

func TestBootstrap_Failures(t *testing.T) {
	runtimeDir := writeRuntimeLayout(t, filepath.Join(t.TempDir(), "xulrunner"), "1.9.2", "libnspr4.so", "libxpcom.so")
	valid := RuntimeCandidate{Path: runtimeDir, Version: MustRuntimeVersion(1, 9, 2, 0), Valid: true}

	tests := []struct {
		name      string
		configure func(f *bootstrapFixture) []BootstrapOption
		code      string
	}{
		{
			name: "DiscoveryError",
			configure: func(f *bootstrapFixture) []BootstrapOption {
				return []BootstrapOption{WithCandidateSource(CandidateSourceFunc(func(context.Context) ([]RuntimeCandidate, error) {
					return nil, stderrors.New("registry unavailable")
				}))}
			},
			code: ErrCodeDiscovery,
		},
		{
			name: "NoValidCandidate",
			configure: func(f *bootstrapFixture) []BootstrapOption {
				return []BootstrapOption{WithCandidateSource(staticSource(RuntimeCandidate{Path: runtimeDir}))}
			},
			code: ErrCodeDiscovery,
		},
		{
			name: "InvalidConfig",
			configure: func(f *bootstrapFixture) []BootstrapOption {
				f.cfg.LogLevel = "loud"
				return nil
			},
			code: ErrCodeConfigValidation,
		},
		{
			name: "SearchPathFails",
			configure: func(f *bootstrapFixture) []BootstrapOption {
				f.searchErr = stderrors.New("environment locked")
				return []BootstrapOption{WithCandidateSource(staticSource(valid))}
			},
			code: ErrCodeLibraryLoad,
		},
		{
			name: "EngineUnavailable",
			configure: func(f *bootstrapFixture) []BootstrapOption {
				f.engineErr = NewNativeUnavailableError("symbol NS_InitXPCOM2 missing", nil)
				return []BootstrapOption{WithCandidateSource(staticSource(valid))}
			},
			code: ErrCodeNativeUnavailable,
		},
		{
			name: "NativeInitFails",
			configure: func(f *bootstrapFixture) []BootstrapOption {
				f.engine.initResult = ResultFailure
				return []BootstrapOption{WithCandidateSource(staticSource(valid))}
			},
			code: ErrCodeNativeInit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBootstrapFixture(t)
			extra := tt.configure(f)

			rt, err := Bootstrap(f.cfg, f.options(extra...)...)
			require.Error(t, err)
			assert.Nil(t, rt)
			assert.True(t, IsErrorCode(err, tt.code), "expected %s, got %v", tt.code, err)
			assert.Zero(t, f.engine.heap.outstanding())
		})
	}
}

func TestBootstrap_CancelledDiscovery(t *testing.T) {
	f := newBootstrapFixture(t)
	writeRuntimeLayout(t, filepath.Join(f.cfg.ApplicationDir, "xulrunner"), "1.9.2", EngineLibraryName(runtime.GOOS))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := BootstrapContext(ctx, f.cfg, f.options()...)
	require.Error(t, err)
	assert.True(t, IsErrorCode(err, ErrCodeDiscovery))
}

func TestBootstrap_RuntimeOptions(t *testing.T) {
	f := newBootstrapFixture(t)
	f.cfg.AutoSearch = false
	journal, mu := newJournal()

	rt, err := Bootstrap(f.cfg, f.options(WithRuntimeOptions(
		WithSubsystems(&recordingSubsystem{name: "prefs", journal: journal, mu: mu}),
	))...)
	require.NoError(t, err)
	require.NoError(t, rt.Close())

	assert.Equal(t, []string{"init:prefs", "shutdown:prefs"}, *journal)
}

func TestBootstrap_LoggerFromContext(t *testing.T) {
	f := newBootstrapFixture(t)
	f.cfg.AutoSearch = false
	logger := NewTestLogger()

	rt, err := BootstrapContext(ContextWithLogger(context.Background(), logger), f.cfg, f.options()...)
	require.NoError(t, err)
	defer rt.Close()

	assert.True(t, logger.HasMessage("INFO", "Runtime selected"))
	assert.True(t, logger.HasMessage("INFO", "Runtime initialized"))

	t.Run("OptionWins", func(t *testing.T) {
		f := newBootstrapFixture(t)
		f.cfg.AutoSearch = false
		fromCtx, explicit := NewTestLogger(), NewTestLogger()

		rt, err := BootstrapContext(ContextWithLogger(context.Background(), fromCtx), f.cfg,
			f.options(WithBootstrapLogger(explicit))...)
		require.NoError(t, err)
		defer rt.Close()

		assert.Empty(t, fromCtx.Messages())
		assert.True(t, explicit.HasMessage("INFO", "Runtime selected"))
	})
}
