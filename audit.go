// audit.go: argus-backed audit trail of runtime lifecycle events
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goxpcom

import (
	"time"

	"github.com/agilira/argus"
)

// Audit event names.
const (
	AuditRuntimeInitialized = "runtime_initialized"
	AuditRuntimeInitFailed  = "runtime_init_failed"
	AuditRuntimeShutdown    = "runtime_shutdown"
	AuditLibrariesLoaded    = "libraries_loaded"
	AuditLibraryLoadFailed  = "library_load_failed"
)

// AuditSettings configures the audit trail.
type AuditSettings struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	OutputFile    string `json:"output_file,omitempty" yaml:"output_file,omitempty"`
	BufferSize    int    `json:"buffer_size,omitempty" yaml:"buffer_size,omitempty"`
	FlushInterval string `json:"flush_interval,omitempty" yaml:"flush_interval,omitempty"`
}

// flushInterval parses FlushInterval; empty means the default.
func (s AuditSettings) flushInterval() (time.Duration, error) {
	if s.FlushInterval == "" {
		return 5 * time.Second, nil
	}
	d, err := time.ParseDuration(s.FlushInterval)
	if err != nil {
		return 0, NewConfigValidationError("invalid audit flush interval", err)
	}
	if d <= 0 {
		return 0, NewConfigValidationError("audit flush interval must be positive", nil)
	}
	return d, nil
}

func (s AuditSettings) argusConfig() argus.AuditConfig {
	bufferSize := s.BufferSize
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	flush, err := s.flushInterval()
	if err != nil {
		flush = 5 * time.Second
	}
	return argus.AuditConfig{
		Enabled:       s.Enabled,
		OutputFile:    s.OutputFile,
		MinLevel:      argus.AuditInfo,
		BufferSize:    bufferSize,
		FlushInterval: flush,
		IncludeStack:  false,
	}
}

// AuditTrail records lifecycle events. A nil *AuditTrail records nothing.
type AuditTrail struct {
	auditor *argus.AuditLogger
}

// NewAuditTrail opens the audit log described by settings. Disabled
// settings yield a nil trail and no error.
func NewAuditTrail(settings AuditSettings) (*AuditTrail, error) {
	if !settings.Enabled {
		return nil, nil
	}
	auditor, err := argus.NewAuditLogger(settings.argusConfig())
	if err != nil {
		return nil, NewConfigValidationError("audit logger could not be created", err)
	}
	return &AuditTrail{auditor: auditor}, nil
}

// Record writes one event.
func (a *AuditTrail) Record(event, description string, context map[string]interface{}) {
	if a == nil || a.auditor == nil {
		return
	}
	a.auditor.LogSecurityEvent(event, description, context)
}

// Close flushes and closes the audit log.
func (a *AuditTrail) Close() error {
	if a == nil || a.auditor == nil {
		return nil
	}
	return a.auditor.Close()
}
