// library_loader.go: ordered, fail-fast loading of the runtime's native libraries
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goxpcom

import (
	stderrors "errors"
	"path/filepath"
)

// LibrarySpec describes one native library of a runtime.
//
// Name and Alternatives are file names inside the runtime directory; the
// first one present on disk is loaded. A missing optional library is
// skipped, a missing required one stops the load sequence.
type LibrarySpec struct {
	Name         string   `json:"name" yaml:"name"`
	Alternatives []string `json:"alternatives,omitempty" yaml:"alternatives,omitempty"`
	Optional     bool     `json:"optional,omitempty" yaml:"optional,omitempty"`
	DependsOn    []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

// fileNames lists Name followed by its alternatives.
func (s LibrarySpec) fileNames() []string {
	return append([]string{s.Name}, s.Alternatives...)
}

// LoadedLibrary is a library resident in the process.
type LoadedLibrary struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Module Module `json:"-"`
}

// LoadedLibraries lists resident libraries in load order.
type LoadedLibraries struct {
	Dir       string          `json:"dir"`
	Libraries []LoadedLibrary `json:"libraries"`
	Skipped   []string        `json:"skipped,omitempty"`
}

// Has reports whether a library with the given spec name was loaded.
func (l *LoadedLibraries) Has(name string) bool {
	if l == nil {
		return false
	}
	for _, lib := range l.Libraries {
		if lib.Name == name {
			return true
		}
	}
	return false
}

// Paths returns the loaded file paths in load order.
func (l *LoadedLibraries) Paths() []string {
	if l == nil {
		return nil
	}
	paths := make([]string, len(l.Libraries))
	for i, lib := range l.Libraries {
		paths[i] = lib.Path
	}
	return paths
}

// LibraryLoader loads runtime libraries in order through a Platform.
//
// Loading stops at the first library that fails. Libraries loaded before
// the failure stay resident: unloading them out of order is not safe.
//
// Example usage:
//
//	loader := goxpcom.NewLibraryLoader(goxpcom.NativePlatform(), logger)
//	loaded, err := loader.Load(candidate.Path, goxpcom.DefaultLibraries(runtime.GOOS))
//	if err != nil {
//		code, _ := goxpcom.PlatformCodeOf(err)
//		logger.Error("Runtime libraries not loaded", "error", err, "platform_code", code)
//	}
type LibraryLoader struct {
	platform Platform
	logger   Logger
}

// NewLibraryLoader creates a loader. A nil platform selects NativePlatform.
func NewLibraryLoader(platform Platform, logger Logger) *LibraryLoader {
	if platform == nil {
		platform = NativePlatform()
	}
	if logger == nil {
		logger = NewNoOpLogger()
	}
	return &LibraryLoader{platform: platform, logger: logger}
}

// Load loads libs from baseDir in the given order.
//
// On failure the returned LoadedLibraries still lists what was loaded before
// the failing library, and the error is a LibraryLoadError naming it.
func (l *LibraryLoader) Load(baseDir string, libs []LibrarySpec) (*LoadedLibraries, error) {
	dir := filepath.Clean(baseDir)
	loaded := &LoadedLibraries{Dir: dir, Libraries: make([]LoadedLibrary, 0, len(libs))}

	for _, spec := range libs {
		path, found := l.locate(dir, spec)
		if !found {
			if spec.Optional {
				l.logger.Debug("Optional library not present", "library", spec.Name, "dir", dir)
				loaded.Skipped = append(loaded.Skipped, spec.Name)
				continue
			}
			l.logger.Error("Required library not present", "library", spec.Name, "dir", dir)
			return loaded, NewLibraryLoadError(spec.Name, filepath.Join(dir, spec.Name), LoadCodeNotFound, nil)
		}

		module, err := l.platform.LoadLibrary(path)
		if err != nil {
			code := 0
			var platformErr *PlatformLoadError
			if stderrors.As(err, &platformErr) {
				code = platformErr.Code
			}
			l.logger.Error("Library load failed",
				"library", spec.Name,
				"path", path,
				"platform_code", code,
				"loaded_before_failure", len(loaded.Libraries))
			return loaded, NewLibraryLoadError(spec.Name, path, code, err)
		}

		loaded.Libraries = append(loaded.Libraries, LoadedLibrary{Name: spec.Name, Path: path, Module: module})
		l.logger.Debug("Library loaded", "library", spec.Name, "path", path)
	}

	l.logger.Info("Runtime libraries loaded", "dir", dir, "count", len(loaded.Libraries))
	return loaded, nil
}

// locate returns the path of the first file of spec present in dir.
func (l *LibraryLoader) locate(dir string, spec LibrarySpec) (string, bool) {
	for _, name := range spec.fileNames() {
		if name == "" {
			continue
		}
		path := filepath.Join(dir, name)
		if l.platform.FileExists(path) {
			return path, true
		}
	}
	return "", false
}

// OrderLibraries returns specs in load order. Specs without declared
// dependencies are returned as given; otherwise the order comes from a
// DependencyGraph, stable on declaration order.
func OrderLibraries(specs []LibrarySpec) ([]LibrarySpec, error) {
	byName := make(map[string]LibrarySpec, len(specs))
	hasDeps := false
	for _, spec := range specs {
		if spec.Name == "" {
			return nil, NewLibraryPlanError("library without a name", "")
		}
		if _, dup := byName[spec.Name]; dup {
			return nil, NewLibraryPlanError("duplicate library", spec.Name)
		}
		byName[spec.Name] = spec
		if len(spec.DependsOn) > 0 {
			hasDeps = true
		}
	}
	if !hasDeps {
		return append([]LibrarySpec(nil), specs...), nil
	}

	graph := NewDependencyGraph()
	for _, spec := range specs {
		graph.AddLibrary(spec.Name, spec.DependsOn)
	}
	order, err := graph.CalculateLoadOrder()
	if err != nil {
		return nil, err
	}

	ordered := make([]LibrarySpec, len(order))
	for i, name := range order {
		ordered[i] = byName[name]
	}
	return ordered, nil
}

// EngineLibraryName is the file name of the library exporting the XPCOM
// entry points on goos.
func EngineLibraryName(goos string) string {
	switch goos {
	case "windows":
		return "xpcom.dll"
	case "darwin":
		return "libxpcom.dylib"
	default:
		return "libxpcom.so"
	}
}

// DefaultLibraries returns the load manifest of a XULRunner 1.9 runtime on
// goos, support libraries before the engine library.
func DefaultLibraries(goos string) []LibrarySpec {
	switch goos {
	case "windows":
		return []LibrarySpec{
			{Name: "mozcrt19.dll"},
			{Name: "AccessibleMarshal.dll"},
			{Name: "nspr4.dll"},
			{Name: "plc4.dll"},
			{Name: "plds4.dll"},
			{Name: "nssutil3.dll"},
			{Name: "nss3.dll"},
			{Name: "ssl3.dll"},
			{Name: "smime3.dll"},
			{Name: "js3250.dll"},
			{Name: "sqlite3.dll"},
			{Name: "softokn3.dll"},
			{Name: "freebl3.dll"},
			{Name: "nssdbm3.dll"},
			{Name: "nssckbi.dll"},
			{Name: "xul.dll", Alternatives: []string{"xpcom_core.dll"}},
			{Name: "xpcom.dll"},
		}
	case "darwin":
		return []LibrarySpec{
			{Name: "libmozutils.dylib", Optional: true},
			{Name: "libnspr4.dylib"},
			{Name: "libplc4.dylib"},
			{Name: "libplds4.dylib"},
			{Name: "libnssutil3.dylib", Optional: true},
			{Name: "libnss3.dylib"},
			{Name: "libssl3.dylib"},
			{Name: "libsmime3.dylib"},
			{Name: "libmozjs.dylib", Optional: true},
			{Name: "libsqlite3.dylib", Optional: true},
			{Name: "libsoftokn3.dylib", Optional: true},
			{Name: "libfreebl3.dylib", Optional: true},
			{Name: "libnssdbm3.dylib", Optional: true},
			{Name: "libnssckbi.dylib", Optional: true},
			{Name: "XUL", Alternatives: []string{"libxpcom_core.dylib"}},
			{Name: "libxpcom.dylib"},
		}
	default:
		return []LibrarySpec{
			{Name: "libnspr4.so"},
			{Name: "libplc4.so"},
			{Name: "libplds4.so"},
			{Name: "libnssutil3.so", Optional: true},
			{Name: "libnss3.so"},
			{Name: "libssl3.so"},
			{Name: "libsmime3.so"},
			{Name: "libmozjs.so", Optional: true},
			{Name: "libsqlite3.so", Optional: true},
			{Name: "libsoftokn3.so", Optional: true},
			{Name: "libfreebl3.so", Optional: true},
			{Name: "libnssdbm3.so", Optional: true},
			{Name: "libnssckbi.so", Optional: true},
			{Name: "libxul.so", Alternatives: []string{"libxpcom_core.so"}},
			{Name: "libxpcom.so"},
		}
	}
}
