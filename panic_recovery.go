// panic_recovery.go: panic containment for event handlers and native callbacks
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goxpcom

import (
	"runtime"
	"sync/atomic"
)

// panicsRecovered counts panics contained by this package.
var panicsRecovered atomic.Int64

// PanicsRecovered returns the number of panics contained so far in event
// handlers and Go code called back from the native runtime.
func PanicsRecovered() int64 {
	return panicsRecovered.Load()
}

func captureStack() string {
	buf := make([]byte, 64<<10)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// withStackRecover returns a deferred function that logs a panic with its
// stack trace instead of crashing the process.
//
//	go func() {
//		defer withStackRecover(logger)()
//		handler(event)
//	}()
func withStackRecover(logger Logger) func() {
	return func() {
		if r := recover(); r != nil {
			panicsRecovered.Add(1)
			logger.Error("Panic recovered in goroutine",
				"panic", r,
				"stack", captureStack())
		}
	}
}

// safeGo runs fn in a new goroutine with panic recovery.
func safeGo(logger Logger, fn func()) {
	go func() {
		defer withStackRecover(logger)()
		fn()
	}()
}

// recoverCallback contains a panic raised by Go code the native runtime
// called into. A panic must not unwind through foreign frames, so it is
// logged and turned into a failure result stored in rc.
//
//	func (e *exportedFactory) createInstance(...) (rc Result) {
//		defer recoverCallback(logger, "nsIFactory.CreateInstance", &rc)
//		...
//	}
func recoverCallback(logger Logger, callback string, rc *Result) {
	if r := recover(); r != nil {
		panicsRecovered.Add(1)
		logger.Error("Panic recovered in native callback",
			"callback", callback,
			"panic", r,
			"stack", captureStack())
		if rc != nil {
			*rc = ResultUnexpected
		}
	}
}
