// errors.go: structured error definitions for the go-xpcom bootstrap layer
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goxpcom

import (
	stderrors "errors"
	"fmt"

	"github.com/agilira/go-errors"
)

// Error codes for the go-xpcom system
const (
	// Discovery errors (1100-1199)
	ErrCodeDiscovery          = "DISCOVERY_1101"
	ErrCodeCandidateRead      = "DISCOVERY_1102"
	ErrCodeInvalidVersion     = "DISCOVERY_1103"
	ErrCodeInvalidVersionSpan = "DISCOVERY_1104"

	// Library loading errors (1200-1299)
	ErrCodeLibraryLoad = "LOADER_1201"
	ErrCodeLibraryPlan = "LOADER_1202"

	// Lifecycle errors (1300-1399)
	ErrCodeNativeInit     = "LIFECYCLE_1301"
	ErrCodeNotInitialized = "LIFECYCLE_1302"
	ErrCodeSubsystem      = "LIFECYCLE_1303"

	// Interface errors (1400-1499)
	ErrCodeInvalidObject        = "INTERFACE_1401"
	ErrCodeUnsupportedInterface = "INTERFACE_1402"
	ErrCodeInvalidIID           = "INTERFACE_1403"
	ErrCodeInterfaceMismatch    = "INTERFACE_1404"

	// Native call errors (1500-1599)
	ErrCodeNativeCall        = "NATIVE_1501"
	ErrCodeNativeUnavailable = "NATIVE_1502"

	// Configuration errors (1600-1699)
	ErrCodeConfigNotFound   = "CONFIG_1601"
	ErrCodeConfigParse      = "CONFIG_1602"
	ErrCodeConfigValidation = "CONFIG_1603"

	// Profile errors (1700-1799)
	ErrCodeProfile = "PROFILE_1701"
)

// LoadCodeNotFound is the platform code reported when no file for a required
// library exists in the runtime directory.
const LoadCodeNotFound = -1

// Context keys shared by the constructors below and NativeResultOf.
const (
	contextNativeResult = "native_result"
	contextPlatformCode = "platform_code"
)

// wrapOrNew keeps nil causes out of the error chain.
func wrapOrNew(cause error, code errors.ErrorCode, message string) *errors.Error {
	if cause == nil {
		return errors.New(code, message)
	}
	return errors.Wrap(cause, code, message)
}

// Discovery error constructors

// NewDiscoveryError reports that no valid runtime candidate was found.
func NewDiscoveryError(message string, cause error) *errors.Error {
	return wrapOrNew(cause, ErrCodeDiscovery, "Discovery error: "+message).
		WithUserMessage("No compatible XULRunner runtime was found; install one or point the application at its directory").
		WithSeverity("error")
}

func NewCandidateReadError(path string, cause error) *errors.Error {
	return wrapOrNew(cause, ErrCodeCandidateRead, "Failed to read runtime candidate").
		WithUserMessage("A runtime directory could not be inspected").
		WithContext("candidate_path", path).
		WithSeverity("warning")
}

func NewInvalidVersionError(version string, cause error) *errors.Error {
	return wrapOrNew(cause, ErrCodeInvalidVersion, "Invalid runtime version").
		WithUserMessage("Runtime version must be up to four dotted fields between 0 and 99").
		WithContext("version", version).
		WithSeverity("error")
}

func NewInvalidVersionSpanError(min, max RuntimeVersion) *errors.Error {
	return errors.New(ErrCodeInvalidVersionSpan, "Invalid compatibility range").
		WithUserMessage("Compatibility range minimum must not exceed its maximum").
		WithContext("min", min.String()).
		WithContext("max", max.String()).
		WithSeverity("error")
}

// Library loading error constructors

// NewLibraryLoadError reports the library that stopped the load sequence and
// the platform error code it failed with.
func NewLibraryLoadError(library, path string, platformCode int, cause error) *errors.Error {
	return wrapOrNew(cause, ErrCodeLibraryLoad, fmt.Sprintf("Failed to load native library %s (platform code %d)", library, platformCode)).
		WithUserMessage("A native runtime library could not be loaded; the load sequence was aborted").
		WithContext("library", library).
		WithContext("path", path).
		WithContext(contextPlatformCode, platformCode).
		WithSeverity("error")
}

func NewLibraryPlanError(message string, library string) *errors.Error {
	return errors.New(ErrCodeLibraryPlan, "Library plan error: "+message).
		WithUserMessage("The native library manifest is inconsistent").
		WithContext("library", library).
		WithSeverity("error")
}

// Lifecycle error constructors

// NewNativeInitError reports a failed initialization stage. A zero result
// means the foreign call succeeded but a required follow-up did not.
func NewNativeInitError(stage string, result Result, cause error) *errors.Error {
	return wrapOrNew(cause, ErrCodeNativeInit, fmt.Sprintf("Native runtime initialization failed at %s (result 0x%08X)", stage, uint32(result))).
		WithUserMessage("The XPCOM runtime could not be initialized").
		WithContext("stage", stage).
		WithContext(contextNativeResult, result).
		WithSeverity("error")
}

func NewNotInitializedError(operation string) *errors.Error {
	return errors.New(ErrCodeNotInitialized, "Runtime not initialized").
		WithUserMessage("The XPCOM runtime must be initialized before this operation").
		WithContext("operation", operation).
		WithSeverity("error")
}

func NewSubsystemError(name, phase string, cause error) *errors.Error {
	return wrapOrNew(cause, ErrCodeSubsystem, "Subsystem "+phase+" failed: "+name).
		WithUserMessage("A runtime subsystem hook failed").
		WithContext("subsystem", name).
		WithContext("phase", phase).
		WithSeverity("error")
}

// Interface error constructors

func NewInvalidObjectError(object any) *errors.Error {
	return errors.New(ErrCodeInvalidObject, "Object exposes no base identity").
		WithUserMessage("The object cannot be queried for interfaces").
		WithContext("object_type", fmt.Sprintf("%T", object)).
		WithSeverity("error")
}

func NewUnsupportedInterfaceError(name InterfaceName, version RuntimeVersion) *errors.Error {
	return errors.New(ErrCodeUnsupportedInterface, "Unsupported interface: "+string(name)).
		WithUserMessage("The interface is not available for the active runtime version").
		WithContext("interface", string(name)).
		WithContext("runtime_version", version.String()).
		WithSeverity("error")
}

func NewInterfaceMismatchError(from, to InterfaceName) *errors.Error {
	return errors.New(ErrCodeInterfaceMismatch, "Cannot cast "+string(from)+" to "+string(to)).
		WithUserMessage("The handle is typed as an unrelated interface").
		WithContext("from", string(from)).
		WithContext("to", string(to)).
		WithSeverity("error")
}

func NewInvalidIIDError(value string, cause error) *errors.Error {
	return wrapOrNew(cause, ErrCodeInvalidIID, "Invalid interface identifier").
		WithUserMessage("Interface identifiers must be 128-bit UUIDs").
		WithContext("value", value).
		WithSeverity("error")
}

// Native call error constructors

// NewNativeCallError preserves the numeric result of a failed foreign call.
func NewNativeCallError(operation string, result Result) *errors.Error {
	return errors.New(ErrCodeNativeCall, fmt.Sprintf("Native call %s failed (result 0x%08X)", operation, uint32(result))).
		WithUserMessage("A call into the XPCOM runtime failed").
		WithContext("operation", operation).
		WithContext(contextNativeResult, result).
		WithSeverity("error")
}

func NewNativeUnavailableError(message string, cause error) *errors.Error {
	return wrapOrNew(cause, ErrCodeNativeUnavailable, "Native binding unavailable: "+message).
		WithUserMessage("The native XPCOM binding is not available on this platform or library").
		WithSeverity("error")
}

// Configuration error constructors

func NewConfigNotFoundError(path string) *errors.Error {
	return errors.New(ErrCodeConfigNotFound, "Configuration file not found").
		WithUserMessage("The configuration file could not be found").
		WithContext("config_path", path).
		WithSeverity("error")
}

func NewConfigParseError(path string, cause error) *errors.Error {
	return wrapOrNew(cause, ErrCodeConfigParse, "Configuration parse error").
		WithUserMessage("Failed to parse configuration file").
		WithContext("config_path", path).
		WithSeverity("error")
}

func NewConfigValidationError(message string, cause error) *errors.Error {
	return wrapOrNew(cause, ErrCodeConfigValidation, "Configuration validation error: "+message).
		WithUserMessage("Configuration validation failed").
		WithSeverity("error")
}

// Profile error constructors

func NewProfileError(path string, message string, cause error) *errors.Error {
	return wrapOrNew(cause, ErrCodeProfile, "Profile directory error: "+message).
		WithUserMessage("The runtime profile directory is not usable").
		WithContext("profile_path", path).
		WithSeverity("error")
}

// IsErrorCode reports whether any structured error in err's chain carries code.
func IsErrorCode(err error, code string) bool {
	for e := err; e != nil; {
		var structured *errors.Error
		if !stderrors.As(e, &structured) {
			return false
		}
		if structured.Code == errors.ErrorCode(code) {
			return true
		}
		e = structured.Cause
	}
	return false
}

// NativeResultOf extracts the foreign result code preserved in err, if any.
func NativeResultOf(err error) (Result, bool) {
	for e := err; e != nil; {
		var structured *errors.Error
		if !stderrors.As(e, &structured) {
			return 0, false
		}
		if rc, ok := structured.Context[contextNativeResult].(Result); ok {
			return rc, true
		}
		e = structured.Cause
	}
	return 0, false
}

// PlatformCodeOf extracts the platform loader code of a LibraryLoadError.
func PlatformCodeOf(err error) (int, bool) {
	var structured *errors.Error
	if !stderrors.As(err, &structured) || structured.Code != ErrCodeLibraryLoad {
		return 0, false
	}
	code, ok := structured.Context[contextPlatformCode].(int)
	return code, ok
}
