// Package goxpcom bootstraps an externally installed XULRunner/Gecko runtime
// inside a Go host process and provides safe, versioned access to its XPCOM
// component model.
//
// The package covers the whole host-side lifecycle of the native runtime:
//   - Discovery of installed runtimes and compatibility-range version selection
//   - Ordered, fail-fast loading of the runtime's native libraries
//   - A serialized initialize/shutdown state machine with idempotent Initialize
//   - Version-keyed interface identity resolution and typed casts
//   - Reference-counted QueryInterface with nsIInterfaceRequestor fallback
//   - Component creation, service lookup and factory registration
//
// Basic Usage:
//
//	cfg := goxpcom.DefaultConfig()
//	cfg.AutoSearch = true
//
//	rt, err := goxpcom.Bootstrap(cfg, goxpcom.WithBootstrapLogger(logger))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer rt.Shutdown()
//
//	dir := rt.Directory()
//	h, err := dir.GetService(goxpcom.ByContractID("@mozilla.org/file/directory_service;1"),
//		goxpcom.InterfaceDirectoryService)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer h.Release()
//
// Reference counting:
// Every *Handle returned by this package owns exactly one strong reference to
// a native object. Call Release exactly once, or Detach to take the reference
// over. A Scope releases every handle it tracks when it is closed.
//
// Threading:
// Bootstrap and Initialize mutate process-wide state (working directory,
// library search path) and are expected to run once on the primary thread.
// The native runtime is not assumed to be thread safe; callers serialize
// access to native objects unless the runtime documents otherwise.
//
// Copyright (c) 2025 AGILira - A. Giordano
// SPDX-License-Identifier: MPL-2.0
package goxpcom
