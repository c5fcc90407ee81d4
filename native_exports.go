//go:build (darwin || freebsd || linux || windows) && (amd64 || arm64)

package goxpcom

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ebitengine/purego"
)

// Go factories and providers handed to the runtime live on the foreign
// heap as a two word object: the vtable pointer and a spare word. The
// vtables are package globals filled with callback trampolines once per
// process, since trampolines cannot be freed.
var (
	callbacksOnce  sync.Once
	factoryVtable  [5]uintptr
	providerVtable [4]uintptr
)

func initCallbacks() {
	queryInterface := purego.NewCallback(exportedQueryInterface)
	addRef := purego.NewCallback(exportedAddRef)
	release := purego.NewCallback(exportedRelease)

	factoryVtable = [5]uintptr{
		queryInterface,
		addRef,
		release,
		purego.NewCallback(exportedCreateInstance),
		purego.NewCallback(exportedLockFactory),
	}
	providerVtable = [4]uintptr{
		queryInterface,
		addRef,
		release,
		purego.NewCallback(exportedGetFile),
	}
}

type exportedObject struct {
	engine   *NativeEngine
	addr     uintptr
	refs     atomic.Int32
	iids     []IID
	factory  Factory
	provider DirectoryServiceProvider
}

func (o *exportedObject) implements(iid IID) bool {
	for _, known := range o.iids {
		if known == iid {
			return true
		}
	}
	return false
}

type exportRegistry struct {
	mu      sync.Mutex
	objects map[uintptr]*exportedObject
}

var exports = &exportRegistry{objects: make(map[uintptr]*exportedObject)}

func (r *exportRegistry) add(obj *exportedObject, vtable uintptr) uintptr {
	addr := obj.engine.Alloc(2 * pointerSize)
	if addr == 0 {
		return 0
	}
	writePointer(addr, vtable)
	writePointer(addr+pointerSize, 0)
	obj.addr = addr
	obj.refs.Store(1)

	r.mu.Lock()
	r.objects[addr] = obj
	r.mu.Unlock()
	return addr
}

func (r *exportRegistry) lookup(addr uintptr) *exportedObject {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.objects[addr]
}

func (r *exportRegistry) addRef(addr uintptr) uint32 {
	obj := r.lookup(addr)
	if obj == nil {
		return 0
	}
	return uint32(obj.refs.Add(1))
}

// release drops one reference and frees the object at zero.
func (r *exportRegistry) release(addr uintptr) uint32 {
	obj := r.lookup(addr)
	if obj == nil {
		return 0
	}
	n := obj.refs.Add(-1)
	if n > 0 {
		return uint32(n)
	}
	r.mu.Lock()
	delete(r.objects, addr)
	r.mu.Unlock()
	obj.engine.Free(addr)
	return 0
}

// ExportedObjects is the number of Go objects currently referenced by the
// native runtime.
func (e *NativeEngine) ExportedObjects() int {
	exports.mu.Lock()
	defer exports.mu.Unlock()
	n := 0
	for _, obj := range exports.objects {
		if obj.engine == e {
			n++
		}
	}
	return n
}

func exportFactory(e *NativeEngine, factory Factory) uintptr {
	callbacksOnce.Do(initCallbacks)
	obj := &exportedObject{
		engine:  e,
		iids:    []IID{IIDSupports, IIDFactory},
		factory: factory,
	}
	return exports.add(obj, uintptr(unsafe.Pointer(&factoryVtable)))
}

func exportProvider(e *NativeEngine, provider DirectoryServiceProvider) uintptr {
	callbacksOnce.Do(initCallbacks)
	obj := &exportedObject{
		engine:   e,
		iids:     []IID{IIDSupports, IIDDirectoryServiceProvider},
		provider: provider,
	}
	return exports.add(obj, uintptr(unsafe.Pointer(&providerVtable)))
}

func exportedQueryInterface(this, iidPtr, out uintptr) uintptr {
	obj := exports.lookup(this)
	if obj == nil || iidPtr == 0 || out == 0 {
		return uintptr(ResultNullPointer)
	}
	return uintptr(obj.queryInterface(iidPtr, out))
}

func exportedAddRef(this uintptr) uintptr {
	return uintptr(exports.addRef(this))
}

func exportedRelease(this uintptr) uintptr {
	return uintptr(exports.release(this))
}

func exportedCreateInstance(this, outer, iidPtr, out uintptr) uintptr {
	obj := exports.lookup(this)
	if obj == nil || obj.factory == nil || iidPtr == 0 || out == 0 {
		return uintptr(ResultNullPointer)
	}
	return uintptr(obj.createInstance(outer, iidPtr, out))
}

func exportedLockFactory(this, lock uintptr) uintptr {
	obj := exports.lookup(this)
	if obj == nil || obj.factory == nil {
		return uintptr(ResultNullPointer)
	}
	return uintptr(obj.lockFactory(lock != 0))
}

func exportedGetFile(this, property, persistent, out uintptr) uintptr {
	obj := exports.lookup(this)
	if obj == nil || obj.provider == nil || out == 0 {
		return uintptr(ResultNullPointer)
	}
	return uintptr(obj.getFile(property, persistent, out))
}

func (o *exportedObject) queryInterface(iidPtr, out uintptr) (rc Result) {
	defer recoverCallback(o.engine.logger, "nsISupports.QueryInterface", &rc)
	if o.implements(readIID(iidPtr)) {
		o.refs.Add(1)
		writePointer(out, o.addr)
		return ResultOK
	}
	writePointer(out, 0)
	return ResultNoInterface
}

// createInstance hands the reference of the created object to the caller.
func (o *exportedObject) createInstance(outer, iidPtr, out uintptr) (rc Result) {
	defer recoverCallback(o.engine.logger, "nsIFactory.CreateInstance", &rc)
	writePointer(out, 0)

	var outerObj Unknown
	if outer != 0 {
		outerObj = o.engine.wrap(outer, IIDSupports)
	}
	obj, rc := o.factory.CreateInstance(outerObj, readIID(iidPtr))
	if rc.Failed() {
		if obj != nil {
			obj.Release()
		}
		return rc
	}
	ptr := nativePointer(obj)
	if ptr == 0 {
		if obj != nil {
			obj.Release()
		}
		return ResultNoInterface
	}
	writePointer(out, ptr)
	return ResultOK
}

func (o *exportedObject) lockFactory(lock bool) (rc Result) {
	defer recoverCallback(o.engine.logger, "nsIFactory.LockFactory", &rc)
	return o.factory.LockFactory(lock)
}

// getFile hands the reference of the returned file to the caller.
func (o *exportedObject) getFile(property, persistent, out uintptr) (rc Result) {
	defer recoverCallback(o.engine.logger, "nsIDirectoryServiceProvider.GetFile", &rc)
	writePointer(out, 0)

	file, keep, rc := o.provider.GetFile(readCString(property))
	if persistent != 0 {
		writeUint32(persistent, uint32(boolArg(keep)))
	}
	if rc.Failed() {
		if file != nil {
			file.Release()
		}
		return rc
	}
	ptr := nativePointer(file)
	if ptr == 0 {
		if file != nil {
			file.Release()
		}
		return ResultFailure
	}
	writePointer(out, ptr)
	return ResultOK
}
