// candidate.go: filesystem discovery of installed runtime candidates
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goxpcom

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/agilira/argus"
	"gopkg.in/yaml.v3"
)

// Candidate sources.
const (
	SourceApplication = "application"
	SourceSystem      = "system"
)

// Metadata files read from a runtime directory.
const (
	RuntimeManifestFile = "runtime.yaml"
	PlatformINIFile     = "platform.ini"
)

// DefaultCandidatePattern matches runtime directories next to the application.
const DefaultCandidatePattern = "xulrunner*"

// RuntimeCandidate is an installed runtime found by a CandidateSource.
type RuntimeCandidate struct {
	Path    string         `json:"path" yaml:"path"`
	Version RuntimeVersion `json:"version" yaml:"version"`
	Valid   bool           `json:"valid" yaml:"valid"`
	Source  string         `json:"source" yaml:"source"`
}

func (c RuntimeCandidate) String() string {
	state := "valid"
	if !c.Valid {
		state = "invalid"
	}
	return fmt.Sprintf("%s (%s, %s, %s)", c.Path, c.Version, c.Source, state)
}

// CandidateSource enumerates installed runtimes.
type CandidateSource interface {
	Candidates(ctx context.Context) ([]RuntimeCandidate, error)
}

// CandidateSourceFunc adapts a function to CandidateSource.
type CandidateSourceFunc func(ctx context.Context) ([]RuntimeCandidate, error)

func (f CandidateSourceFunc) Candidates(ctx context.Context) ([]RuntimeCandidate, error) {
	return f(ctx)
}

// RuntimeManifest is the optional runtime.yaml file of a runtime directory.
//
// Example manifest:
//
//	name: xulrunner
//	version: 1.9.2.13
//	engine_library: libxpcom.so
type RuntimeManifest struct {
	Name          string `yaml:"name" json:"name"`
	Version       string `yaml:"version" json:"version"`
	EngineLibrary string `yaml:"engine_library,omitempty" json:"engine_library,omitempty"`
}

// FilesystemCandidateSource finds runtimes on disk.
//
// Directories matching Pattern inside ApplicationDir are preferred. Only
// when none exists are SystemPaths consulted. Each directory yields one
// candidate; it is valid when its engine library exists and its version
// can be read from runtime.yaml or from the Milestone of platform.ini.
type FilesystemCandidateSource struct {
	ApplicationDir string
	Pattern        string
	SystemPaths    []string
	EngineLibrary  string
	Logger         Logger
}

// NewFilesystemCandidateSource creates a source with platform defaults for
// the current operating system.
func NewFilesystemCandidateSource(applicationDir string, logger Logger) *FilesystemCandidateSource {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	return &FilesystemCandidateSource{
		ApplicationDir: applicationDir,
		Pattern:        DefaultCandidatePattern,
		SystemPaths:    DefaultSystemSearchPaths(runtime.GOOS),
		EngineLibrary:  EngineLibraryName(runtime.GOOS),
		Logger:         logger,
	}
}

// Candidates implements CandidateSource.
func (s *FilesystemCandidateSource) Candidates(ctx context.Context) ([]RuntimeCandidate, error) {
	logger := s.logger()

	appDirs, err := s.applicationDirectories()
	if err != nil {
		return nil, err
	}

	source, dirs := SourceApplication, appDirs
	if len(dirs) == 0 {
		source, dirs = SourceSystem, s.systemDirectories()
	}
	logger.Debug("Inspecting runtime directories", "source", source, "count", len(dirs))

	candidates := make([]RuntimeCandidate, 0, len(dirs))
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return nil, NewDiscoveryError("candidate discovery cancelled", err)
		}
		candidate := s.inspect(dir, source)
		logger.Debug("Runtime candidate inspected",
			"path", candidate.Path,
			"version", candidate.Version.String(),
			"valid", candidate.Valid)
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}

func (s *FilesystemCandidateSource) logger() Logger {
	if s.Logger == nil {
		return NewNoOpLogger()
	}
	return s.Logger
}

// applicationDirectories lists pattern matches inside the application
// directory in lexical order.
func (s *FilesystemCandidateSource) applicationDirectories() ([]string, error) {
	if s.ApplicationDir == "" {
		return nil, nil
	}
	pattern := s.Pattern
	if pattern == "" {
		pattern = DefaultCandidatePattern
	}
	matches, err := filepath.Glob(filepath.Join(filepath.Clean(s.ApplicationDir), pattern))
	if err != nil {
		return nil, NewDiscoveryError("invalid candidate pattern "+pattern, err)
	}
	return onlyDirectories(matches), nil
}

// systemDirectories expands SystemPaths, which may contain glob patterns.
func (s *FilesystemCandidateSource) systemDirectories() []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, p := range s.SystemPaths {
		expanded := os.ExpandEnv(p)
		if expanded == "" {
			continue
		}
		matches, err := filepath.Glob(expanded)
		if err != nil {
			s.logger().Warn("Ignoring malformed system search path", "path", p, "error", err)
			continue
		}
		for _, dir := range onlyDirectories(matches) {
			if !seen[dir] {
				seen[dir] = true
				dirs = append(dirs, dir)
			}
		}
	}
	return dirs
}

func (s *FilesystemCandidateSource) inspect(dir, source string) RuntimeCandidate {
	candidate := RuntimeCandidate{Path: dir, Source: source}

	version, engineLib, err := readRuntimeMetadata(dir)
	if err != nil {
		s.logger().Warn("Runtime directory has no readable version", "path", dir, "error", NewCandidateReadError(dir, err))
		return candidate
	}
	candidate.Version = version

	if engineLib == "" {
		engineLib = s.EngineLibrary
	}
	if engineLib == "" {
		engineLib = EngineLibraryName(runtime.GOOS)
	}
	candidate.Valid = fileExists(filepath.Join(dir, engineLib))
	return candidate
}

// readRuntimeMetadata reads the version of the runtime in dir, preferring
// runtime.yaml over platform.ini.
func readRuntimeMetadata(dir string) (RuntimeVersion, string, error) {
	manifestPath := filepath.Join(dir, RuntimeManifestFile)
	if data, err := os.ReadFile(manifestPath); err == nil { // #nosec G304 -- path is built from a discovered directory
		var manifest RuntimeManifest
		if err := yaml.Unmarshal(data, &manifest); err != nil {
			return 0, "", err
		}
		v, err := ParseRuntimeVersion(manifest.Version)
		return v, manifest.EngineLibrary, err
	}

	iniPath := filepath.Join(dir, PlatformINIFile)
	data, err := os.ReadFile(iniPath) // #nosec G304 -- path is built from a discovered directory
	if err != nil {
		return 0, "", err
	}
	milestone, err := platformMilestone(data)
	if err != nil {
		return 0, "", err
	}
	v, err := ParseRuntimeVersion(milestone)
	return v, "", err
}

// platformMilestone extracts [Build] Milestone from platform.ini contents.
func platformMilestone(data []byte) (string, error) {
	parsed, err := argus.ParseConfig(data, argus.FormatINI)
	if err != nil {
		return "", err
	}
	if value, ok := lookupINI(parsed, "Build", "Milestone"); ok {
		return value, nil
	}
	return "", fmt.Errorf("%s has no [Build] Milestone", PlatformINIFile)
}

// lookupINI finds section.key case-insensitively in either nested or
// dotted-key form.
func lookupINI(parsed map[string]interface{}, section, key string) (string, bool) {
	for k, v := range parsed {
		if strings.EqualFold(k, section+"."+key) {
			return fmt.Sprint(v), true
		}
		if !strings.EqualFold(k, section) {
			continue
		}
		if nested, ok := v.(map[string]interface{}); ok {
			for nk, nv := range nested {
				if strings.EqualFold(nk, key) {
					return fmt.Sprint(nv), true
				}
			}
		}
	}
	return "", false
}

func onlyDirectories(paths []string) []string {
	dirs := make([]string, 0, len(paths))
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			dirs = append(dirs, p)
		}
	}
	sort.Strings(dirs)
	return dirs
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// DefaultSystemSearchPaths returns the system-wide install locations
// searched for runtimes on goos. Entries may hold environment variables and
// glob patterns.
func DefaultSystemSearchPaths(goos string) []string {
	switch goos {
	case "windows":
		return []string{
			`${ProgramFiles}\Mozilla Firefox`,
			`${ProgramFiles(x86)}\Mozilla Firefox`,
			`${ProgramFiles}\xulrunner*`,
		}
	case "darwin":
		return []string{
			"/Library/Frameworks/XUL.framework/Versions/Current",
			"/Applications/Firefox.app/Contents/MacOS",
		}
	default:
		return []string{
			"/usr/lib/xulrunner*",
			"/usr/lib64/xulrunner*",
			"/usr/local/lib/xulrunner*",
			"/opt/xulrunner*",
			"/usr/lib/firefox*",
		}
	}
}
