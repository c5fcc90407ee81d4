//go:build windows

package goxpcom

import (
	"errors"
	"os"
	"syscall"

	"golang.org/x/sys/windows"
)

type nativePlatform struct{}

// LoadLibrary loads path with the altered search order, so dependencies are
// resolved from the library's own directory first.
func (nativePlatform) LoadLibrary(path string) (Module, error) {
	handle, err := windows.LoadLibraryEx(path, 0, windows.LOAD_WITH_ALTERED_SEARCH_PATH)
	if err != nil {
		code := 0
		var errno syscall.Errno
		if errors.As(err, &errno) {
			code = int(errno)
		}
		return 0, &PlatformLoadError{Path: path, Code: code, Err: err}
	}
	return Module(handle), nil
}

func (nativePlatform) FreeLibrary(module Module) error {
	return windows.FreeLibrary(windows.Handle(module))
}

func (nativePlatform) FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// lookupSymbol resolves an exported function of module.
func lookupSymbol(module Module, name string) (uintptr, error) {
	return windows.GetProcAddress(windows.Handle(module), name)
}
