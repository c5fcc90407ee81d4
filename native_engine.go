//go:build (darwin || freebsd || linux || windows) && (amd64 || arm64)

package goxpcom

import (
	"errors"
	"path/filepath"
	"runtime"

	"github.com/ebitengine/purego"
)

// Vtable slots of the frozen interfaces used by this package.
const (
	slotQueryInterface = 0
	slotAddRef         = 1
	slotRelease        = 2

	// nsIServiceManager
	slotGetService             = 3
	slotGetServiceByContractID = 4

	// nsIComponentManager
	slotCreateInstance             = 5
	slotCreateInstanceByContractID = 6

	// nsIComponentRegistrar
	slotRegisterFactory = 5

	// nsIInterfaceRequestor
	slotGetInterface = 3

	// nsIDirectoryService
	slotRegisterProvider = 4
)

// cstringContainerSize covers nsCStringContainer on every supported ABI.
const cstringContainerSize = 4 * pointerSize

type engineSymbols struct {
	initXPCOM             uintptr
	shutdownXPCOM         uintptr
	newNativeLocalFile    uintptr
	getComponentManager   uintptr
	getComponentRegistrar uintptr
	alloc                 uintptr
	realloc               uintptr
	free                  uintptr
	cstringInit           uintptr
	cstringFinish         uintptr
}

func (s *engineSymbols) bind(module Module) error {
	entries := []struct {
		name string
		addr *uintptr
	}{
		{"NS_InitXPCOM2", &s.initXPCOM},
		{"NS_ShutdownXPCOM", &s.shutdownXPCOM},
		{"NS_NewNativeLocalFile", &s.newNativeLocalFile},
		{"NS_GetComponentManager", &s.getComponentManager},
		{"NS_GetComponentRegistrar", &s.getComponentRegistrar},
		{"NS_Alloc", &s.alloc},
		{"NS_Realloc", &s.realloc},
		{"NS_Free", &s.free},
		{"NS_CStringContainerInit2", &s.cstringInit},
		{"NS_CStringContainerFinish", &s.cstringFinish},
	}
	for _, entry := range entries {
		addr, err := lookupSymbol(module, entry.name)
		if err != nil || addr == 0 {
			return NewNativeUnavailableError("runtime entry point not found", err).
				WithContext("symbol", entry.name)
		}
		*entry.addr = addr
	}
	return nil
}

// NativeEngine calls the entry points of a loaded xpcom library.
//
// Every call happens on the calling goroutine; callers that need the
// runtime's main thread affinity lock the OS thread themselves.
type NativeEngine struct {
	module Module
	path   string
	sym    engineSymbols
	logger Logger
}

// NewNativeEngine opens the engine library of the runtime in dir, falling
// back to the loader search path when dir does not contain it, and binds
// its entry points.
func NewNativeEngine(dir string, logger Logger) (*NativeEngine, error) {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	name := EngineLibraryName(runtime.GOOS)
	path := name
	if dir != "" {
		if candidate := filepath.Join(dir, name); fileExists(candidate) {
			path = candidate
		}
	}

	module, err := NativePlatform().LoadLibrary(path)
	if err != nil {
		code := 0
		var loadErr *PlatformLoadError
		if errors.As(err, &loadErr) {
			code = loadErr.Code
		}
		return nil, NewLibraryLoadError(name, path, code, err)
	}

	e := &NativeEngine{module: module, path: path, logger: logger}
	if err := e.sym.bind(module); err != nil {
		return nil, err
	}
	logger.Debug("Native engine bound", "library", path)
	return e, nil
}

func newNativeEngine(dir string, logger Logger) (Engine, error) {
	e, err := NewNativeEngine(dir, logger)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Path is the engine library the entry points were bound from.
func (e *NativeEngine) Path() string { return e.path }

func (e *NativeEngine) call(fn uintptr, args ...uintptr) Result {
	r1, _, _ := purego.SyscallN(fn, args...)
	return Result(uint32(r1))
}

// InitXPCOM implements Engine.
func (e *NativeEngine) InitXPCOM(binDirectory LocalFile) (ServiceManager, Result) {
	f := e.frame()
	defer f.release()
	out := f.out()
	if f.failed {
		return nil, ResultOutOfMemory
	}
	rc := e.call(e.sym.initXPCOM, out, nativePointer(binDirectory), 0)
	if rc.Failed() {
		return nil, rc
	}
	ptr := readPointer(out)
	if ptr == 0 {
		return nil, rc
	}
	return &nativeServiceManager{nativeObject{e, ptr}}, rc
}

// ShutdownXPCOM implements Engine. The runtime releases serviceManager.
func (e *NativeEngine) ShutdownXPCOM(serviceManager ServiceManager) Result {
	return e.call(e.sym.shutdownXPCOM, nativePointer(serviceManager))
}

// NewNativeLocalFile implements Engine.
func (e *NativeEngine) NewNativeLocalFile(path string, followLinks bool) (LocalFile, Result) {
	f := e.frame()
	defer f.release()
	container := f.alloc(cstringContainerSize)
	data := f.cstring(path)
	out := f.out()
	if f.failed {
		return nil, ResultOutOfMemory
	}

	if rc := e.call(e.sym.cstringInit, container, data, uintptr(len(path)), 0); rc.Failed() {
		return nil, rc
	}
	defer purego.SyscallN(e.sym.cstringFinish, container)

	rc := e.call(e.sym.newNativeLocalFile, container, boolArg(followLinks), out)
	if rc.Failed() {
		return nil, rc
	}
	ptr := readPointer(out)
	if ptr == 0 {
		return nil, rc
	}
	return &nativeLocalFile{nativeObject: nativeObject{e, ptr}, path: path}, rc
}

// GetComponentManager implements Engine.
func (e *NativeEngine) GetComponentManager() (ComponentManager, Result) {
	ptr, rc := e.getter(e.sym.getComponentManager)
	if rc.Failed() || ptr == 0 {
		return nil, rc
	}
	return &nativeComponentManager{nativeObject{e, ptr}}, rc
}

// GetComponentRegistrar implements Engine.
func (e *NativeEngine) GetComponentRegistrar() (ComponentRegistrar, Result) {
	ptr, rc := e.getter(e.sym.getComponentRegistrar)
	if rc.Failed() || ptr == 0 {
		return nil, rc
	}
	return &nativeComponentRegistrar{nativeObject{e, ptr}}, rc
}

func (e *NativeEngine) getter(fn uintptr) (uintptr, Result) {
	f := e.frame()
	defer f.release()
	out := f.out()
	if f.failed {
		return 0, ResultOutOfMemory
	}
	rc := e.call(fn, out)
	if rc.Failed() {
		return 0, rc
	}
	return readPointer(out), rc
}

// Memory implements Engine.
func (e *NativeEngine) Memory() Memory { return e }

// Alloc allocates size bytes on the runtime heap.
func (e *NativeEngine) Alloc(size uintptr) uintptr {
	r1, _, _ := purego.SyscallN(e.sym.alloc, size)
	return r1
}

// Realloc resizes a block allocated by Alloc.
func (e *NativeEngine) Realloc(ptr uintptr, size uintptr) uintptr {
	r1, _, _ := purego.SyscallN(e.sym.realloc, ptr, size)
	return r1
}

// Free returns a block to the runtime heap.
func (e *NativeEngine) Free(ptr uintptr) {
	if ptr == 0 {
		return
	}
	purego.SyscallN(e.sym.free, ptr)
}

// wrap types ptr by the interface it was obtained for. The reference held
// by ptr moves into the returned object.
func (e *NativeEngine) wrap(ptr uintptr, iid IID) Unknown {
	if ptr == 0 {
		return nil
	}
	obj := nativeObject{engine: e, ptr: ptr}
	switch iid {
	case IIDServiceManager:
		return &nativeServiceManager{obj}
	case IIDComponentManager:
		return &nativeComponentManager{obj}
	case IIDComponentRegistrar:
		return &nativeComponentRegistrar{obj}
	case IIDInterfaceRequestor:
		return &nativeInterfaceRequestor{obj}
	case IIDDirectoryService:
		return &nativeDirectoryService{obj}
	case IIDLocalFile, IIDFile:
		return &nativeLocalFile{nativeObject: obj}
	default:
		return &obj
	}
}

// callFrame owns the foreign memory holding the arguments of one call.
type callFrame struct {
	engine *NativeEngine
	blocks []uintptr
	failed bool
}

func (e *NativeEngine) frame() *callFrame {
	return &callFrame{engine: e}
}

func (f *callFrame) alloc(size uintptr) uintptr {
	ptr := f.engine.Alloc(size)
	if ptr == 0 {
		f.failed = true
		return 0
	}
	zeroBytes(ptr, size)
	f.blocks = append(f.blocks, ptr)
	return ptr
}

func (f *callFrame) iid(id IID) uintptr {
	ptr := f.alloc(16)
	if ptr != 0 {
		writeIID(ptr, id)
	}
	return ptr
}

// cstring copies s with a terminator; "" yields a null pointer.
func (f *callFrame) cstring(s string) uintptr {
	if s == "" {
		return 0
	}
	ptr := f.alloc(uintptr(len(s) + 1))
	if ptr != 0 {
		writeBytes(ptr, []byte(s))
	}
	return ptr
}

func (f *callFrame) out() uintptr {
	return f.alloc(pointerSize)
}

func (f *callFrame) release() {
	for i := len(f.blocks) - 1; i >= 0; i-- {
		f.engine.Free(f.blocks[i])
	}
	f.blocks = nil
}

// nativeObject is a pointer to a native nsISupports-derived object.
type nativeObject struct {
	engine *NativeEngine
	ptr    uintptr
}

func (o nativeObject) nativePointer() uintptr { return o.ptr }

func (o nativeObject) method(slot int, args ...uintptr) Result {
	return o.engine.call(vtableEntry(o.ptr, slot), append([]uintptr{o.ptr}, args...)...)
}

func (o nativeObject) QueryInterface(iid IID) (Unknown, Result) {
	return o.lookup(slotQueryInterface, iid)
}

// lookup calls a (const nsIID&, void**) method.
func (o nativeObject) lookup(slot int, iid IID) (Unknown, Result) {
	f := o.engine.frame()
	defer f.release()
	iidPtr, out := f.iid(iid), f.out()
	if f.failed {
		return nil, ResultOutOfMemory
	}
	rc := o.method(slot, iidPtr, out)
	if rc.Failed() {
		return nil, rc
	}
	return o.engine.wrap(readPointer(out), iid), rc
}

func (o nativeObject) AddRef() uint32 {
	r1, _, _ := purego.SyscallN(vtableEntry(o.ptr, slotAddRef), o.ptr)
	return uint32(r1)
}

func (o nativeObject) Release() uint32 {
	r1, _, _ := purego.SyscallN(vtableEntry(o.ptr, slotRelease), o.ptr)
	return uint32(r1)
}

type nativeServiceManager struct{ nativeObject }

func (s *nativeServiceManager) GetService(classID IID, iid IID) (Unknown, Result) {
	f := s.engine.frame()
	defer f.release()
	cid, iidPtr, out := f.iid(classID), f.iid(iid), f.out()
	if f.failed {
		return nil, ResultOutOfMemory
	}
	rc := s.method(slotGetService, cid, iidPtr, out)
	if rc.Failed() {
		return nil, rc
	}
	return s.engine.wrap(readPointer(out), iid), rc
}

func (s *nativeServiceManager) GetServiceByContractID(contractID string, iid IID) (Unknown, Result) {
	f := s.engine.frame()
	defer f.release()
	contract, iidPtr, out := f.cstring(contractID), f.iid(iid), f.out()
	if f.failed {
		return nil, ResultOutOfMemory
	}
	rc := s.method(slotGetServiceByContractID, contract, iidPtr, out)
	if rc.Failed() {
		return nil, rc
	}
	return s.engine.wrap(readPointer(out), iid), rc
}

type nativeComponentManager struct{ nativeObject }

func (m *nativeComponentManager) CreateInstance(classID IID, iid IID) (Unknown, Result) {
	f := m.engine.frame()
	defer f.release()
	cid, iidPtr, out := f.iid(classID), f.iid(iid), f.out()
	if f.failed {
		return nil, ResultOutOfMemory
	}
	rc := m.method(slotCreateInstance, cid, 0, iidPtr, out)
	if rc.Failed() {
		return nil, rc
	}
	return m.engine.wrap(readPointer(out), iid), rc
}

func (m *nativeComponentManager) CreateInstanceByContractID(contractID string, iid IID) (Unknown, Result) {
	f := m.engine.frame()
	defer f.release()
	contract, iidPtr, out := f.cstring(contractID), f.iid(iid), f.out()
	if f.failed {
		return nil, ResultOutOfMemory
	}
	rc := m.method(slotCreateInstanceByContractID, contract, 0, iidPtr, out)
	if rc.Failed() {
		return nil, rc
	}
	return m.engine.wrap(readPointer(out), iid), rc
}

type nativeComponentRegistrar struct{ nativeObject }

// RegisterFactory exports factory as a native nsIFactory. The registrar
// keeps its own reference; ours is dropped before returning.
func (r *nativeComponentRegistrar) RegisterFactory(classID IID, name, contractID string, factory Factory) Result {
	exported := exportFactory(r.engine, factory)
	if exported == 0 {
		return ResultOutOfMemory
	}
	defer exports.release(exported)

	f := r.engine.frame()
	defer f.release()
	cid, className, contract := f.iid(classID), f.cstring(name), f.cstring(contractID)
	if f.failed {
		return ResultOutOfMemory
	}
	return r.method(slotRegisterFactory, cid, className, contract, exported)
}

type nativeInterfaceRequestor struct{ nativeObject }

func (q *nativeInterfaceRequestor) GetInterface(iid IID) (Unknown, Result) {
	return q.lookup(slotGetInterface, iid)
}

type nativeDirectoryService struct{ nativeObject }

// RegisterProvider exports provider as a native nsIDirectoryServiceProvider.
func (d *nativeDirectoryService) RegisterProvider(provider DirectoryServiceProvider) Result {
	exported := exportProvider(d.engine, provider)
	if exported == 0 {
		return ResultOutOfMemory
	}
	defer exports.release(exported)
	return d.method(slotRegisterProvider, exported)
}

type nativeLocalFile struct {
	nativeObject
	path string
}

// Path is the path the file was created for, or "" when the object was
// obtained from the runtime.
func (l *nativeLocalFile) Path() string { return l.path }

// nativePointer returns the native address behind obj, or 0 when obj is
// nil or a pure Go value.
func nativePointer(obj any) uintptr {
	if obj == nil {
		return 0
	}
	if p, ok := obj.(interface{ nativePointer() uintptr }); ok {
		return p.nativePointer()
	}
	return 0
}

func boolArg(b bool) uintptr {
	if b {
		return 1
	}
	return 0
}
