//go:build darwin || linux || freebsd

package goxpcom

import (
	"os"

	"github.com/ebitengine/purego"
)

type nativePlatform struct{}

// LoadLibrary opens path with global symbol visibility so libraries loaded
// later resolve against it. dlopen reports no error number, so Code is 0.
func (nativePlatform) LoadLibrary(path string) (Module, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return 0, &PlatformLoadError{Path: path, Code: 0, Err: err}
	}
	return Module(handle), nil
}

func (nativePlatform) FreeLibrary(module Module) error {
	return purego.Dlclose(uintptr(module))
}

func (nativePlatform) FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// lookupSymbol resolves an exported function of module.
func lookupSymbol(module Module, name string) (uintptr, error) {
	return purego.Dlsym(uintptr(module), name)
}
