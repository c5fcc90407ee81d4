// errors_test.go: structured error constructors and extraction helpers
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goxpcom

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/agilira/go-errors"
)

// TestDiscoveryErrorConstructors covers discovery and version errors
func TestDiscoveryErrorConstructors(t *testing.T) {
	t.Run("NewDiscoveryError", func(t *testing.T) {
		err := NewDiscoveryError("no valid runtime candidate", nil)

		if err.ErrorCode() != errors.ErrorCode(ErrCodeDiscovery) {
			t.Errorf("Expected error code %s, got %s", ErrCodeDiscovery, err.ErrorCode())
		}
		if err.Cause != nil {
			t.Errorf("Expected no cause, got %v", err.Cause)
		}
		if err.Severity != "error" {
			t.Errorf("Expected severity %q, got %q", "error", err.Severity)
		}
		if err.IsRetryable() {
			t.Error("Expected error to not be retryable")
		}
	})

	t.Run("NewCandidateReadError", func(t *testing.T) {
		cause := stderrors.New("permission denied")
		err := NewCandidateReadError("/opt/xulrunner", cause)

		if err.Context["candidate_path"] != "/opt/xulrunner" {
			t.Errorf("Expected candidate_path context, got %v", err.Context["candidate_path"])
		}
		if err.Cause != cause {
			t.Error("Expected cause to be preserved")
		}
		if err.Severity != "warning" {
			t.Errorf("Expected severity %q, got %q", "warning", err.Severity)
		}
	})

	t.Run("NewInvalidVersionSpanError", func(t *testing.T) {
		err := NewInvalidVersionSpanError(MustRuntimeVersion(1, 9, 2, 0), MustRuntimeVersion(1, 8, 0, 0))

		if err.Context["min"] != "1.9.2.0" || err.Context["max"] != "1.8.0.0" {
			t.Errorf("Expected min and max context, got %v", err.Context)
		}
	})
}

// TestLibraryErrorConstructors covers library loading and planning errors
func TestLibraryErrorConstructors(t *testing.T) {
	t.Run("NewLibraryLoadError", func(t *testing.T) {
		err := NewLibraryLoadError("xul.dll", `C:\xulrunner\xul.dll`, 126, nil)

		if err.ErrorCode() != errors.ErrorCode(ErrCodeLibraryLoad) {
			t.Errorf("Expected error code %s, got %s", ErrCodeLibraryLoad, err.ErrorCode())
		}
		if err.Context["library"] != "xul.dll" {
			t.Errorf("Expected library context, got %v", err.Context["library"])
		}
		code, ok := PlatformCodeOf(err)
		if !ok || code != 126 {
			t.Errorf("Expected platform code 126, got %d (%v)", code, ok)
		}
		expectedMsg := "A native runtime library could not be loaded; the load sequence was aborted"
		if err.UserMessage() != expectedMsg {
			t.Errorf("Expected user message %q, got %q", expectedMsg, err.UserMessage())
		}
	})

	t.Run("NewLibraryPlanError", func(t *testing.T) {
		err := NewLibraryPlanError("duplicate library", "libxul.so")
		if err.ErrorCode() != errors.ErrorCode(ErrCodeLibraryPlan) {
			t.Errorf("Expected error code %s, got %s", ErrCodeLibraryPlan, err.ErrorCode())
		}
		if _, ok := PlatformCodeOf(err); ok {
			t.Error("Plan errors carry no platform code")
		}
	})
}

// TestLifecycleErrorConstructors covers initialization and subsystem errors
func TestLifecycleErrorConstructors(t *testing.T) {
	t.Run("NewNativeInitError", func(t *testing.T) {
		err := NewNativeInitError("NS_InitXPCOM2", ResultFailure, nil)

		if err.Context["stage"] != "NS_InitXPCOM2" {
			t.Errorf("Expected stage context, got %v", err.Context["stage"])
		}
		rc, ok := NativeResultOf(err)
		if !ok || rc != ResultFailure {
			t.Errorf("Expected native result %s, got %s (%v)", ResultFailure, rc, ok)
		}
	})

	t.Run("NewNotInitializedError", func(t *testing.T) {
		err := NewNotInitializedError("CreateInstance")
		if err.Context["operation"] != "CreateInstance" {
			t.Errorf("Expected operation context, got %v", err.Context["operation"])
		}
		if _, ok := NativeResultOf(err); ok {
			t.Error("Expected no native result")
		}
	})

	t.Run("NewSubsystemError", func(t *testing.T) {
		cause := stderrors.New("hook failed")
		err := NewSubsystemError("prefs", "init", cause)
		if err.Context["subsystem"] != "prefs" || err.Context["phase"] != "init" {
			t.Errorf("Expected subsystem and phase context, got %v", err.Context)
		}
		if err.Cause != cause {
			t.Error("Expected cause to be preserved")
		}
	})
}

// TestInterfaceErrorConstructors covers interface resolution errors
func TestInterfaceErrorConstructors(t *testing.T) {
	err := NewUnsupportedInterfaceError(InterfaceLocalFile, MustRuntimeVersion(2, 0, 0, 0))
	if err.Context["interface"] != string(InterfaceLocalFile) {
		t.Errorf("Expected interface context, got %v", err.Context["interface"])
	}
	if err.Context["runtime_version"] != "2.0.0.0" {
		t.Errorf("Expected runtime_version context, got %v", err.Context["runtime_version"])
	}

	invalid := NewInvalidObjectError(42)
	if invalid.Context["object_type"] != "int" {
		t.Errorf("Expected object_type int, got %v", invalid.Context["object_type"])
	}
}

func TestIsErrorCode_WalksCauses(t *testing.T) {
	inner := NewNativeCallError("NS_NewNativeLocalFile", ResultFileUnrecognizedPath)
	outer := NewNativeInitError("bin_directory", ResultFileUnrecognizedPath, inner)
	wrapped := fmt.Errorf("bootstrap: %w", outer)

	if !IsErrorCode(wrapped, ErrCodeNativeInit) {
		t.Error("Expected outer code to match")
	}
	if !IsErrorCode(wrapped, ErrCodeNativeCall) {
		t.Error("Expected cause code to match")
	}
	if IsErrorCode(wrapped, ErrCodeDiscovery) {
		t.Error("Unexpected code match")
	}
	if IsErrorCode(nil, ErrCodeDiscovery) || IsErrorCode(stderrors.New("plain"), ErrCodeDiscovery) {
		t.Error("Plain errors match no code")
	}
}

func TestNativeResultOf_PrefersOutermost(t *testing.T) {
	inner := NewNativeCallError("GetService", ResultServiceNotAvailable)
	outer := NewNativeInitError("directory_service", ResultFailure, inner)

	rc, ok := NativeResultOf(outer)
	if !ok || rc != ResultFailure {
		t.Errorf("Expected outer result, got %s (%v)", rc, ok)
	}

	rc, ok = NativeResultOf(NewDiscoveryError("wrapped", inner))
	if !ok || rc != ResultServiceNotAvailable {
		t.Errorf("Expected result from cause, got %s (%v)", rc, ok)
	}
}

func TestResult_String(t *testing.T) {
	tests := []struct {
		result   Result
		expected string
	}{
		{ResultOK, "NS_OK"},
		{ResultNoInterface, "NS_NOINTERFACE"},
		{ResultFactoryExists, "NS_ERROR_FACTORY_EXISTS"},
		{Result(0x80001234), "0x80001234"},
	}
	for _, tt := range tests {
		if got := tt.result.String(); got != tt.expected {
			t.Errorf("Result(0x%08X).String() = %q, want %q", uint32(tt.result), got, tt.expected)
		}
	}

	if !Result(0x00000001).Succeeded() || !ResultFailure.Failed() {
		t.Error("Success is determined by the high bit")
	}
}
