// main_test.go: xpcomctl commands against temporary runtime layouts
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goxpcom "github.com/agilira/go-xpcom"
)

// writeLayout creates appDir/xulrunner holding a manifest and the engine
// library, plus a config file pointing at appDir.
func writeLayout(t *testing.T, version string) (configPath, runtimeDir string) {
	t.Helper()
	for _, name := range []string{"APPLICATION_DIR", "AUTO_SEARCH", "PROFILE_DIR", "LOG_LEVEL"} {
		t.Setenv(goxpcom.DefaultEnvPrefix+name, "")
	}

	appDir := t.TempDir()
	runtimeDir = filepath.Join(appDir, "xulrunner")
	require.NoError(t, os.MkdirAll(runtimeDir, 0o755))
	manifest := "name: xulrunner\nversion: \"" + version + "\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(runtimeDir, goxpcom.RuntimeManifestFile), []byte(manifest), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(runtimeDir, goxpcom.EngineLibraryName(runtime.GOOS)), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(runtimeDir, "libnspr4.so"), nil, 0o644))

	config := strings.Join([]string{
		"application_dir: " + appDir,
		"auto_search: true",
		"system_search_paths:",
		"  - " + filepath.Join(appDir, "missing", "xulrunner*"),
		"libraries:",
		"  - name: libxpcom.so",
		"    depends_on: [libnspr4.so]",
		"  - name: libnspr4.so",
		"  - name: libmozjs.so",
		"    optional: true",
		"log_level: warn",
		"",
	}, "\n")
	configPath = filepath.Join(t.TempDir(), "xpcom.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0o644))
	return configPath, runtimeDir
}

func TestMainVersion(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, execute([]string{"xpcomctl", "version"}, &out, &out))
	assert.Contains(t, out.String(), Version)

	out.Reset()
	require.NoError(t, execute([]string{"xpcomctl", "--version"}, &out, &out))
	assert.Contains(t, out.String(), Version)
}

func TestMainUnknownCommand(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, execute([]string{"xpcomctl", "unknown"}, &out, &out))
}

func TestRunMainExitCodes(t *testing.T) {
	var out bytes.Buffer
	called := false
	runMain([]string{"xpcomctl", "version"}, &out, &out, func(int) { called = true })
	assert.False(t, called)

	code := 0
	out.Reset()
	runMain([]string{"xpcomctl", "unknown"}, &out, &out, func(c int) { code = c })
	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "unknown command")
}

func TestDiscover(t *testing.T) {
	configPath, runtimeDir := writeLayout(t, "1.9.2.13")

	var out bytes.Buffer
	require.NoError(t, execute([]string{"xpcomctl", "discover", "--config", configPath}, &out, &out))
	assert.Contains(t, out.String(), "1.9.2.13")
	assert.Contains(t, out.String(), "Selected: "+runtimeDir)

	t.Run("JSON", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		require.NoError(t, execute([]string{"xpcomctl", "-c", configPath, "discover", "--json"}, &stdout, &stderr))

		var report discoverReport
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &report))
		require.Len(t, report.Candidates, 1)
		require.NotNil(t, report.Preferred)
		assert.Equal(t, runtimeDir, report.Preferred.Path)
		assert.Equal(t, goxpcom.SourceApplication, report.Preferred.Source)
	})

	t.Run("OutOfRangeStillSelected", func(t *testing.T) {
		configPath, runtimeDir := writeLayout(t, "2.0")
		var out bytes.Buffer
		require.NoError(t, execute([]string{"xpcomctl", "discover", "--config", configPath}, &out, &out))
		assert.Contains(t, out.String(), "application  false")
		assert.Contains(t, out.String(), "Selected: "+runtimeDir)
	})

	t.Run("NoRuntime", func(t *testing.T) {
		configPath, runtimeDir := writeLayout(t, "1.9.2")
		require.NoError(t, os.Remove(filepath.Join(runtimeDir, goxpcom.EngineLibraryName(runtime.GOOS))))
		var out bytes.Buffer
		require.NoError(t, execute([]string{"xpcomctl", "discover", "--config", configPath}, &out, &out))
		assert.Contains(t, out.String(), "No runtime in")
	})
}

func TestPlan(t *testing.T) {
	configPath, runtimeDir := writeLayout(t, "1.9.2")

	var out bytes.Buffer
	require.NoError(t, execute([]string{"xpcomctl", "plan", "--config", configPath, "--dir", runtimeDir}, &out, &out))

	text := out.String()
	nspr := strings.Index(text, "libnspr4.so")
	xpcom := strings.Index(text, "libxpcom.so")
	require.True(t, nspr > 0 && xpcom > 0, "both libraries are listed: %q", text)
	assert.Less(t, nspr, xpcom, "Dependencies come first")
	assert.Contains(t, text, "FOUND")

	lines := strings.Split(strings.TrimSpace(text), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(lines[3]), "-"), "Optional library is not present")
}

func TestPlan_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("libraries:\n  - name: a\n    depends_on: [b]\n  - name: b\n    depends_on: [a]\n"), 0o644))

	var out bytes.Buffer
	err := execute([]string{"xpcomctl", "plan", "--config", path}, &out, &out)
	require.Error(t, err)
	assert.True(t, goxpcom.IsErrorCode(err, goxpcom.ErrCodeConfigValidation))
}

func TestProbe_Failure(t *testing.T) {
	configPath, _ := writeLayout(t, "1.9.2")

	original := bootstrapFunc
	t.Cleanup(func() { bootstrapFunc = original })
	var seen goxpcom.Config
	bootstrapFunc = func(ctx context.Context, cfg goxpcom.Config, opts ...goxpcom.BootstrapOption) (*goxpcom.Runtime, error) {
		seen = cfg
		return nil, goxpcom.NewNativeInitError("NS_InitXPCOM2", goxpcom.ResultFailure, nil)
	}

	var out bytes.Buffer
	err := execute([]string{"xpcomctl", "probe", "--config", configPath, "--verbose"}, &out, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "native result")
	assert.True(t, goxpcom.IsErrorCode(err, goxpcom.ErrCodeNativeInit))
	assert.Equal(t, goxpcom.LogLevelDebug, seen.LogLevel, "--verbose raises the log level")
}
