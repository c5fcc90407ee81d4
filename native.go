// native.go: Go view of the native XPCOM object model and entry points
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goxpcom

import "fmt"

// Result is a native result code (nsresult). The high bit marks failure.
type Result uint32

// Well-known native result codes.
const (
	ResultOK                   Result = 0x00000000
	ResultNotImplemented       Result = 0x80004001
	ResultNoInterface          Result = 0x80004002
	ResultNullPointer          Result = 0x80004003
	ResultFailure              Result = 0x80004005
	ResultUnexpected           Result = 0x8000FFFF
	ResultOutOfMemory          Result = 0x8007000E
	ResultInvalidArg           Result = 0x80070057
	ResultNoAggregation        Result = 0x80040110
	ResultFactoryNotRegistered Result = 0x80040154
	ResultNotInitialized       Result = 0xC1F30001
	ResultAlreadyInitialized   Result = 0xC1F30002
	ResultFileNotFound         Result = 0x80520012
	ResultFileUnrecognizedPath Result = 0x80520001
	ResultFactoryExists        Result = 0xC1F30100
	ResultFactoryNotLoaded     Result = 0x800401F8
	ResultServiceNotAvailable  Result = 0x80040111
)

var resultNames = map[Result]string{
	ResultOK:                   "NS_OK",
	ResultNotImplemented:       "NS_ERROR_NOT_IMPLEMENTED",
	ResultNoInterface:          "NS_NOINTERFACE",
	ResultNullPointer:          "NS_ERROR_NULL_POINTER",
	ResultFailure:              "NS_ERROR_FAILURE",
	ResultUnexpected:           "NS_ERROR_UNEXPECTED",
	ResultOutOfMemory:          "NS_ERROR_OUT_OF_MEMORY",
	ResultInvalidArg:           "NS_ERROR_INVALID_ARG",
	ResultNoAggregation:        "NS_ERROR_NO_AGGREGATION",
	ResultFactoryNotRegistered: "NS_ERROR_FACTORY_NOT_REGISTERED",
	ResultNotInitialized:       "NS_ERROR_NOT_INITIALIZED",
	ResultAlreadyInitialized:   "NS_ERROR_ALREADY_INITIALIZED",
	ResultFileNotFound:         "NS_ERROR_FILE_NOT_FOUND",
	ResultFileUnrecognizedPath: "NS_ERROR_FILE_UNRECOGNIZED_PATH",
	ResultFactoryExists:        "NS_ERROR_FACTORY_EXISTS",
	ResultFactoryNotLoaded:     "NS_ERROR_FACTORY_NOT_LOADED",
	ResultServiceNotAvailable:  "NS_ERROR_SERVICE_NOT_AVAILABLE",
}

// Succeeded reports whether r is a success code.
func (r Result) Succeeded() bool { return r&0x80000000 == 0 }

// Failed reports whether r is a failure code.
func (r Result) Failed() bool { return !r.Succeeded() }

func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("0x%08X", uint32(r))
}

// Unknown is a reference-counted native object (nsISupports).
//
// QueryInterface returns an object holding one new reference on success.
type Unknown interface {
	QueryInterface(iid IID) (Unknown, Result)
	AddRef() uint32
	Release() uint32
}

// IdentityProvider is implemented by Go values that wrap a native object
// without being one. Identity returns the object without adding a reference.
type IdentityProvider interface {
	Identity() Unknown
}

// InterfaceRequestor exposes secondary interfaces (nsIInterfaceRequestor).
type InterfaceRequestor interface {
	Unknown
	GetInterface(iid IID) (Unknown, Result)
}

// ServiceManager looks up process-wide services (nsIServiceManager).
type ServiceManager interface {
	Unknown
	GetService(classID IID, iid IID) (Unknown, Result)
	GetServiceByContractID(contractID string, iid IID) (Unknown, Result)
}

// ComponentManager creates component instances (nsIComponentManager).
type ComponentManager interface {
	Unknown
	CreateInstance(classID IID, iid IID) (Unknown, Result)
	CreateInstanceByContractID(contractID string, iid IID) (Unknown, Result)
}

// ComponentRegistrar registers factories (nsIComponentRegistrar).
type ComponentRegistrar interface {
	Unknown
	RegisterFactory(classID IID, name, contractID string, factory Factory) Result
}

// Factory is a Go-implemented component factory (nsIFactory).
type Factory interface {
	CreateInstance(outer Unknown, iid IID) (Unknown, Result)
	LockFactory(lock bool) Result
}

// FactoryFunc adapts a function to Factory. Aggregation is refused.
type FactoryFunc func(iid IID) (Unknown, Result)

func (f FactoryFunc) CreateInstance(outer Unknown, iid IID) (Unknown, Result) {
	if outer != nil {
		return nil, ResultNoAggregation
	}
	return f(iid)
}

func (f FactoryFunc) LockFactory(bool) Result { return ResultOK }

// DirectoryService is the runtime's directory service (nsIDirectoryService).
type DirectoryService interface {
	Unknown
	RegisterProvider(provider DirectoryServiceProvider) Result
}

// DirectoryServiceProvider is a Go-implemented directory provider.
//
// GetFile returns a file holding one reference, or a failure result when the
// property is not served by this provider.
type DirectoryServiceProvider interface {
	GetFile(property string) (file Unknown, persistent bool, rc Result)
}

// LocalFile is a native file object (nsILocalFile).
type LocalFile interface {
	Unknown
	Path() string
}

// Memory is the foreign heap, for buffers the runtime takes ownership of.
type Memory interface {
	Alloc(size uintptr) uintptr
	Realloc(ptr uintptr, size uintptr) uintptr
	Free(ptr uintptr)
}

// Engine is the set of native entry points of a loaded runtime.
//
// InitXPCOM returns the service manager holding one reference; ShutdownXPCOM
// consumes that reference. binDirectory may be nil, meaning the runtime
// lives in the application directory.
type Engine interface {
	InitXPCOM(binDirectory LocalFile) (ServiceManager, Result)
	ShutdownXPCOM(serviceManager ServiceManager) Result
	NewNativeLocalFile(path string, followLinks bool) (LocalFile, Result)
	GetComponentManager() (ComponentManager, Result)
	GetComponentRegistrar() (ComponentRegistrar, Result)
	Memory() Memory
}
