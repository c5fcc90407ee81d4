// testing_helpers_test.go: fake engine, fake platform and runtime layouts
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goxpcom

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeHeap tracks every fake object so tests can check that all
// references were given back.
type fakeHeap struct {
	mu      sync.Mutex
	objects []*fakeObject
}

func newFakeHeap() *fakeHeap {
	return &fakeHeap{}
}

// newObject creates an object holding one reference that answers
// QueryInterface for ifaces.
func (h *fakeHeap) newObject(name string, ifaces ...IID) *fakeObject {
	obj := &fakeObject{heap: h, name: name, ifaces: make(map[IID]bool)}
	for _, iid := range ifaces {
		obj.ifaces[iid] = true
	}
	obj.refs.Store(1)
	h.mu.Lock()
	h.objects = append(h.objects, obj)
	h.mu.Unlock()
	return obj
}

// outstanding is the sum of references held on all objects.
func (h *fakeHeap) outstanding() int32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	var total int32
	for _, obj := range h.objects {
		total += obj.refs.Load()
	}
	return total
}

// overReleased lists objects released more often than referenced.
func (h *fakeHeap) overReleased() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var names []string
	for _, obj := range h.objects {
		if obj.refs.Load() < 0 {
			names = append(names, obj.name)
		}
	}
	return names
}

type fakeObject struct {
	heap         *fakeHeap
	name         string
	path         string
	refs         atomic.Int32
	ifaces       map[IID]bool
	viaRequestor map[IID]bool
	qiResult     Result
}

// exposeViaRequestor makes iid reachable only through nsIInterfaceRequestor.
func (o *fakeObject) exposeViaRequestor(iids ...IID) *fakeObject {
	if o.viaRequestor == nil {
		o.viaRequestor = make(map[IID]bool)
	}
	for _, iid := range iids {
		o.viaRequestor[iid] = true
	}
	return o
}

func (o *fakeObject) QueryInterface(iid IID) (Unknown, Result) {
	if o.qiResult.Failed() {
		return nil, o.qiResult
	}
	if iid == IIDSupports || o.ifaces[iid] {
		o.AddRef()
		return o, ResultOK
	}
	if iid == IIDInterfaceRequestor && len(o.viaRequestor) > 0 {
		o.AddRef()
		return &fakeRequestor{o}, ResultOK
	}
	return nil, ResultNoInterface
}

func (o *fakeObject) AddRef() uint32  { return uint32(o.refs.Add(1)) }
func (o *fakeObject) Release() uint32 { return uint32(o.refs.Add(-1)) }
func (o *fakeObject) Path() string    { return o.path }

type fakeRequestor struct{ *fakeObject }

func (r *fakeRequestor) GetInterface(iid IID) (Unknown, Result) {
	if r.viaRequestor[iid] {
		r.AddRef()
		return r.fakeObject, ResultOK
	}
	return nil, ResultNoInterface
}

// fakeEngine is an in-process Engine whose objects live on a fakeHeap.
type fakeEngine struct {
	heap *fakeHeap

	mu    sync.Mutex
	calls []string

	initResult             Result
	nullServiceManager     bool
	shutdownResult         Result
	componentManagerResult Result
	registrarResult        Result
	directoryServiceResult Result
	registerProviderResult Result
	localFileResult        Result

	initWorkingDir string
	binDirectory   string
	providers      []DirectoryServiceProvider
	factories      map[IID]Factory
	contracts      map[string]IID
	services       map[string]*fakeObject
	memory         *fakeMemory
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		heap:      newFakeHeap(),
		factories: make(map[IID]Factory),
		contracts: make(map[string]IID),
		services:  make(map[string]*fakeObject),
		memory:    &fakeMemory{blocks: make(map[uintptr]uintptr)},
	}
}

func (e *fakeEngine) record(call string) {
	e.mu.Lock()
	e.calls = append(e.calls, call)
	e.mu.Unlock()
}

func (e *fakeEngine) callLog() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

func (e *fakeEngine) count(call string) int {
	n := 0
	for _, c := range e.callLog() {
		if c == call {
			n++
		}
	}
	return n
}

func (e *fakeEngine) registeredProviders() []DirectoryServiceProvider {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]DirectoryServiceProvider(nil), e.providers...)
}

func (e *fakeEngine) InitXPCOM(binDirectory LocalFile) (ServiceManager, Result) {
	e.record("InitXPCOM")
	wd, _ := os.Getwd()
	e.mu.Lock()
	e.initWorkingDir = wd
	e.binDirectory = ""
	if binDirectory != nil {
		e.binDirectory = binDirectory.Path()
	}
	e.mu.Unlock()

	if e.initResult.Failed() {
		return nil, e.initResult
	}
	if e.nullServiceManager {
		return nil, ResultOK
	}
	return &fakeServiceManager{e.heap.newObject("service-manager", IIDServiceManager), e}, ResultOK
}

func (e *fakeEngine) ShutdownXPCOM(serviceManager ServiceManager) Result {
	e.record("ShutdownXPCOM")
	if serviceManager != nil {
		serviceManager.Release()
	}
	return e.shutdownResult
}

func (e *fakeEngine) NewNativeLocalFile(path string, followLinks bool) (LocalFile, Result) {
	e.record("NewNativeLocalFile")
	if e.localFileResult.Failed() {
		return nil, e.localFileResult
	}
	file := e.heap.newObject("file:"+path, IIDFile, IIDLocalFile)
	file.path = path
	return file, ResultOK
}

func (e *fakeEngine) GetComponentManager() (ComponentManager, Result) {
	e.record("GetComponentManager")
	if e.componentManagerResult.Failed() {
		return nil, e.componentManagerResult
	}
	return &fakeComponentManager{e.heap.newObject("component-manager", IIDComponentManager), e}, ResultOK
}

func (e *fakeEngine) GetComponentRegistrar() (ComponentRegistrar, Result) {
	e.record("GetComponentRegistrar")
	if e.registrarResult.Failed() {
		return nil, e.registrarResult
	}
	return &fakeComponentRegistrar{e.heap.newObject("component-registrar", IIDComponentRegistrar), e}, ResultOK
}

func (e *fakeEngine) Memory() Memory { return e.memory }

// addService makes obj available under contractID; the engine keeps the
// creation reference.
func (e *fakeEngine) addService(contractID string, obj *fakeObject) {
	e.mu.Lock()
	e.services[contractID] = obj
	e.mu.Unlock()
}

type fakeServiceManager struct {
	*fakeObject
	engine *fakeEngine
}

func (s *fakeServiceManager) GetService(classID IID, iid IID) (Unknown, Result) {
	return s.GetServiceByContractID(classID.Braced(), iid)
}

func (s *fakeServiceManager) GetServiceByContractID(contractID string, iid IID) (Unknown, Result) {
	e := s.engine
	e.record("GetService:" + contractID)
	if contractID == DirectoryServiceContractID {
		if e.directoryServiceResult.Failed() {
			return nil, e.directoryServiceResult
		}
		return &fakeDirectoryService{e.heap.newObject("directory-service", IIDDirectoryService), e}, ResultOK
	}
	e.mu.Lock()
	obj, ok := e.services[contractID]
	e.mu.Unlock()
	if !ok {
		return nil, ResultServiceNotAvailable
	}
	return obj.QueryInterface(iid)
}

type fakeComponentManager struct {
	*fakeObject
	engine *fakeEngine
}

func (m *fakeComponentManager) CreateInstance(classID IID, iid IID) (Unknown, Result) {
	e := m.engine
	e.record("CreateInstance")
	e.mu.Lock()
	factory, ok := e.factories[classID]
	e.mu.Unlock()
	if !ok {
		return nil, ResultFactoryNotRegistered
	}
	return factory.CreateInstance(nil, iid)
}

func (m *fakeComponentManager) CreateInstanceByContractID(contractID string, iid IID) (Unknown, Result) {
	e := m.engine
	e.mu.Lock()
	classID, ok := e.contracts[contractID]
	e.mu.Unlock()
	if !ok {
		e.record("CreateInstance")
		return nil, ResultFactoryNotRegistered
	}
	return m.CreateInstance(classID, iid)
}

type fakeComponentRegistrar struct {
	*fakeObject
	engine *fakeEngine
}

func (r *fakeComponentRegistrar) RegisterFactory(classID IID, name, contractID string, factory Factory) Result {
	e := r.engine
	e.record("RegisterFactory")
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.factories[classID]; exists {
		return ResultFactoryExists
	}
	e.factories[classID] = factory
	if contractID != "" {
		e.contracts[contractID] = classID
	}
	return ResultOK
}

type fakeDirectoryService struct {
	*fakeObject
	engine *fakeEngine
}

func (d *fakeDirectoryService) RegisterProvider(provider DirectoryServiceProvider) Result {
	e := d.engine
	e.record("RegisterProvider")
	if e.registerProviderResult.Failed() {
		return e.registerProviderResult
	}
	e.mu.Lock()
	e.providers = append(e.providers, provider)
	e.mu.Unlock()
	return ResultOK
}

type fakeMemory struct {
	mu     sync.Mutex
	next   uintptr
	blocks map[uintptr]uintptr
}

func (m *fakeMemory) Alloc(size uintptr) uintptr {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next += 0x10
	m.blocks[m.next] = size
	return m.next
}

func (m *fakeMemory) Realloc(ptr uintptr, size uintptr) uintptr {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blocks[ptr]; !ok {
		return 0
	}
	m.blocks[ptr] = size
	return ptr
}

func (m *fakeMemory) Free(ptr uintptr) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blocks, ptr)
}

func (m *fakeMemory) live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blocks)
}

// fakePlatform records load attempts. Files are looked up on disk.
type fakePlatform struct {
	mu       sync.Mutex
	attempts []string
	failures map[string]int
	freed    []Module
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{failures: make(map[string]int)}
}

// failOn makes loading the file with the given base name fail with code.
func (p *fakePlatform) failOn(name string, code int) *fakePlatform {
	p.failures[name] = code
	return p
}

func (p *fakePlatform) LoadLibrary(path string) (Module, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts = append(p.attempts, filepath.Base(path))
	if code, ok := p.failures[filepath.Base(path)]; ok {
		return 0, &PlatformLoadError{Path: path, Code: code, Err: stderrors.New("image could not be mapped")}
	}
	return Module(len(p.attempts)), nil
}

func (p *fakePlatform) FreeLibrary(module Module) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.freed = append(p.freed, module)
	return nil
}

func (p *fakePlatform) FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (p *fakePlatform) loadAttempts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.attempts...)
}

// writeRuntimeLayout creates a runtime directory with a runtime.yaml
// manifest declaring version and empty files for each library name.
func writeRuntimeLayout(t *testing.T, dir, version string, libraries ...string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("Failed to create runtime dir: %v", err)
	}
	if version != "" {
		manifest := fmt.Sprintf("name: test-runtime\nversion: %q\n", version)
		if err := os.WriteFile(filepath.Join(dir, RuntimeManifestFile), []byte(manifest), 0o644); err != nil {
			t.Fatalf("Failed to write manifest: %v", err)
		}
	}
	for _, lib := range libraries {
		if err := os.WriteFile(filepath.Join(dir, lib), nil, 0o644); err != nil {
			t.Fatalf("Failed to write library %s: %v", lib, err)
		}
	}
	return dir
}

// recordingSubsystem logs its Init and Shutdown calls into a shared journal.
type recordingSubsystem struct {
	name        string
	journal     *[]string
	mu          *sync.Mutex
	initErr     error
	shutdownErr error
	panicOnInit bool
}

func newJournal() (*[]string, *sync.Mutex) {
	return &[]string{}, &sync.Mutex{}
}

func (s *recordingSubsystem) Name() string { return s.name }

func (s *recordingSubsystem) Init(ctx *SubsystemContext) error {
	s.note("init:" + s.name)
	if s.panicOnInit {
		panic("subsystem exploded")
	}
	return s.initErr
}

func (s *recordingSubsystem) Shutdown(ctx *SubsystemContext) error {
	s.note("shutdown:" + s.name)
	return s.shutdownErr
}

func (s *recordingSubsystem) note(entry string) {
	s.mu.Lock()
	*s.journal = append(*s.journal, entry)
	s.mu.Unlock()
}

// collectEvents subscribes to rt and returns a channel of its events.
func collectEvents(rt *Runtime) <-chan RuntimeEvent {
	events := make(chan RuntimeEvent, 32)
	rt.AddEventHandler(func(event RuntimeEvent) { events <- event })
	return events
}

// waitForEvent returns the first event of the given type.
func waitForEvent(t *testing.T, events <-chan RuntimeEvent, eventType string) RuntimeEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-events:
			if event.Type == eventType {
				return event
			}
		case <-deadline:
			t.Fatalf("Timed out waiting for event %s", eventType)
			return RuntimeEvent{}
		}
	}
}

// newTestRuntime returns a runtime over a fresh fake engine whose
// application directory and profile root are temporary directories.
func newTestRuntime(t *testing.T, opts ...RuntimeOption) (*Runtime, *fakeEngine) {
	t.Helper()
	engine := newFakeEngine()
	base := []RuntimeOption{
		WithApplicationDir(t.TempDir()),
		WithProfile(ProfileLocator{Root: t.TempDir(), AppName: "go-xpcom-test"}),
		WithSearchPathFunc(nil),
	}
	rt := NewRuntime(engine, append(base, opts...)...)
	return rt, engine
}
