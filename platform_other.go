//go:build !darwin && !linux && !freebsd && !windows

package goxpcom

import (
	"os"
	"runtime"
)

type nativePlatform struct{}

func (nativePlatform) LoadLibrary(path string) (Module, error) {
	return 0, &PlatformLoadError{Path: path, Err: NewNativeUnavailableError("dynamic loading is not supported on "+runtime.GOOS, nil)}
}

func (nativePlatform) FreeLibrary(Module) error {
	return NewNativeUnavailableError("dynamic loading is not supported on "+runtime.GOOS, nil)
}

func (nativePlatform) FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func lookupSymbol(Module, string) (uintptr, error) {
	return 0, NewNativeUnavailableError("symbol lookup is not supported on "+runtime.GOOS, nil)
}
