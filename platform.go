// platform.go: native module loading and process search path
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goxpcom

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Module is an opaque handle to a loaded native library.
type Module uintptr

// Platform loads native libraries into the process.
type Platform interface {
	LoadLibrary(path string) (Module, error)
	FreeLibrary(module Module) error
	FileExists(path string) bool
}

// PlatformLoadError is returned by Platform.LoadLibrary. Code is the
// platform error number, or 0 where the platform reports only a message.
type PlatformLoadError struct {
	Path string
	Code int
	Err  error
}

func (e *PlatformLoadError) Error() string {
	return fmt.Sprintf("load %s: code %d: %v", e.Path, e.Code, e.Err)
}

func (e *PlatformLoadError) Unwrap() error { return e.Err }

// NativePlatform returns the loader of the host operating system.
func NativePlatform() Platform {
	return nativePlatform{}
}

// SearchPathVariable is the environment variable the dynamic loader of goos
// consults for dependent libraries.
func SearchPathVariable(goos string) string {
	switch goos {
	case "windows":
		return "PATH"
	case "darwin":
		return "DYLD_LIBRARY_PATH"
	default:
		return "LD_LIBRARY_PATH"
	}
}

// PrependSearchPath puts dir at the front of the search path variable for
// the rest of the process lifetime. It reports false when dir is already
// listed.
func PrependSearchPath(dir string) (bool, error) {
	variable := SearchPathVariable(runtime.GOOS)
	current := os.Getenv(variable)
	clean := filepath.Clean(dir)

	for _, entry := range filepath.SplitList(current) {
		if entry == "" {
			continue
		}
		if samePath(filepath.Clean(entry), clean) {
			return false, nil
		}
	}

	value := clean
	if current != "" {
		value = clean + string(os.PathListSeparator) + current
	}
	if err := os.Setenv(variable, value); err != nil {
		return false, err
	}
	return true, nil
}

func samePath(a, b string) bool {
	if runtime.GOOS == "windows" {
		return strings.EqualFold(a, b)
	}
	return a == b
}
