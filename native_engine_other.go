//go:build !((darwin || freebsd || linux || windows) && (amd64 || arm64))

package goxpcom

import "runtime"

func newNativeEngine(dir string, logger Logger) (Engine, error) {
	return nil, NewNativeUnavailableError("native runtime calls are not supported on "+runtime.GOOS+"/"+runtime.GOARCH, nil).
		WithContext("runtime_dir", dir)
}
