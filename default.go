// default.go: process-wide default runtime
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goxpcom

import "sync"

var (
	defaultMu      sync.Mutex
	defaultRuntime *Runtime
)

// Initialize bootstraps the process-wide runtime from cfg. While it is
// Ready, later calls return it unchanged and ignore their arguments. A
// previous runtime that was shut down directly is closed and replaced.
//
//	rt, err := goxpcom.Initialize(goxpcom.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer goxpcom.Shutdown()
func Initialize(cfg Config, opts ...BootstrapOption) (*Runtime, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultRuntime != nil && defaultRuntime.IsInitialized() {
		return defaultRuntime, nil
	}
	if stale := defaultRuntime; stale != nil {
		defaultRuntime = nil
		if err := stale.Close(); err != nil {
			stale.logger.Warn("Stale default runtime not closed", "error", err)
		}
	}
	rt, err := Bootstrap(cfg, opts...)
	if err != nil {
		return nil, err
	}
	defaultRuntime = rt
	return rt, nil
}

// DefaultRuntime returns the runtime set up by Initialize, or nil.
func DefaultRuntime() *Runtime {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultRuntime
}

// Shutdown closes the process-wide runtime. It does nothing when
// Initialize was never called.
func Shutdown() error {
	defaultMu.Lock()
	rt := defaultRuntime
	defaultRuntime = nil
	defaultMu.Unlock()

	if rt == nil {
		return nil
	}
	return rt.Close()
}
