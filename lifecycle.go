// lifecycle.go: runtime initialize/shutdown state machine
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goxpcom

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/go-timecache"
)

// DirectoryServiceContractID is the contract ID of the runtime directory service.
const DirectoryServiceContractID = "@mozilla.org/file/directory_service;1"

// LifecycleState is the state of a Runtime.
type LifecycleState int32

const (
	StateUninitialized LifecycleState = iota
	StateInitializing
	StateReady
	StateShuttingDown
)

func (s LifecycleState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

// ActiveRuntime is the runtime selected for a Ready period.
type ActiveRuntime struct {
	Candidate     RuntimeCandidate `json:"candidate"`
	Dir           string           `json:"dir"`
	Version       RuntimeVersion   `json:"version"`
	InitializedAt time.Time        `json:"initialized_at"`
}

// runtimeHandles is published atomically once all three handles exist.
type runtimeHandles struct {
	serviceManager     ServiceManager
	componentManager   ComponentManager
	componentRegistrar ComponentRegistrar
	active             ActiveRuntime
}

// Subsystem is a secondary component initialized after the runtime handles
// exist and shut down before they are released.
type Subsystem interface {
	Name() string
	Init(ctx *SubsystemContext) error
	Shutdown(ctx *SubsystemContext) error
}

// SubsystemContext gives subsystems access to the runtime being brought up
// or torn down. Its directory is usable during Init and Shutdown, when the
// runtime itself does not report Ready.
type SubsystemContext struct {
	Runtime   *Runtime
	Directory *ComponentDirectory
	Active    ActiveRuntime
}

// Lifecycle event types.
const (
	EventInitializing = "runtime_initializing"
	EventInitialized  = "runtime_initialized"
	EventInitFailed   = "runtime_init_failed"
	EventShuttingDown = "runtime_shutting_down"
	EventShutdown     = "runtime_shutdown"
)

// RuntimeEvent describes a lifecycle transition.
type RuntimeEvent struct {
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	State     LifecycleState         `json:"state"`
	Runtime   ActiveRuntime          `json:"runtime"`
	Error     error                  `json:"error,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// RuntimeEventHandler receives lifecycle events on its own goroutine.
type RuntimeEventHandler func(event RuntimeEvent)

// Runtime owns the process-wide state of one native XPCOM runtime.
//
// Initialize and Shutdown serialize on a mutex; the runtime handles are
// published through an atomic pointer so reads while Ready take no lock.
// The native runtime itself is not assumed to be thread safe.
//
// Example usage:
//
//	rt := goxpcom.NewRuntime(engine,
//		goxpcom.WithLogger(logger),
//		goxpcom.WithApplicationDir(appDir))
//	if err := rt.Initialize(candidate); err != nil {
//		return err
//	}
//	defer rt.Shutdown()
type Runtime struct {
	engine   Engine
	logger   Logger
	appDir   string
	profile  ProfileLocator
	resolver *InterfaceResolver
	queries  *QueryEngine
	audit    *AuditTrail

	prependSearchPath func(dir string) (bool, error)

	mu          sync.Mutex
	state       atomic.Int32
	handles     atomic.Pointer[runtimeHandles]
	last        atomic.Pointer[ActiveRuntime]
	pending     atomic.Pointer[ActiveRuntime]
	subsystems  []Subsystem
	runtimeDirs []string

	handlersMu sync.RWMutex
	handlers   []RuntimeEventHandler

	directory *ComponentDirectory
	provider  *profileProvider
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithLogger sets the logger. Accepts anything NewLogger accepts.
func WithLogger(logger any) RuntimeOption {
	return func(r *Runtime) { r.logger = NewLogger(logger) }
}

// WithApplicationDir sets the application directory. A runtime installed in
// it needs no search path change and no binary directory handle.
func WithApplicationDir(dir string) RuntimeOption {
	return func(r *Runtime) { r.appDir = filepath.Clean(dir) }
}

// WithProfile sets how the profile directory is located.
func WithProfile(locator ProfileLocator) RuntimeOption {
	return func(r *Runtime) { r.profile = locator }
}

// WithInterfaceTable replaces the default interface table.
func WithInterfaceTable(table *InterfaceTable) RuntimeOption {
	return func(r *Runtime) { r.resolver = NewInterfaceResolver(table) }
}

// WithAuditTrail records lifecycle events to trail.
func WithAuditTrail(trail *AuditTrail) RuntimeOption {
	return func(r *Runtime) { r.audit = trail }
}

// WithSubsystems registers subsystems, initialized in the given order.
func WithSubsystems(subsystems ...Subsystem) RuntimeOption {
	return func(r *Runtime) { r.subsystems = append(r.subsystems, subsystems...) }
}

// WithSearchPathFunc replaces PrependSearchPath; nil disables search path
// changes.
func WithSearchPathFunc(fn func(dir string) (bool, error)) RuntimeOption {
	return func(r *Runtime) { r.prependSearchPath = fn }
}

// NewRuntime creates an uninitialized runtime bound to engine.
func NewRuntime(engine Engine, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		engine:            engine,
		logger:            NewNoOpLogger(),
		prependSearchPath: PrependSearchPath,
	}
	if exe, err := os.Executable(); err == nil {
		r.appDir = filepath.Dir(exe)
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.resolver == nil {
		r.resolver = NewInterfaceResolver(nil)
	}
	r.queries = NewQueryEngine(r.logger)
	r.provider = &profileProvider{rt: r}
	r.directory = newComponentDirectory(r.readyHandles, r.resolver, r.queries)
	return r
}

// State returns the current lifecycle state.
func (r *Runtime) State() LifecycleState {
	return LifecycleState(r.state.Load())
}

// IsInitialized reports whether the runtime is Ready.
func (r *Runtime) IsInitialized() bool {
	return r.State() == StateReady && r.handles.Load() != nil
}

// Active returns the runtime selected for the current Ready period.
func (r *Runtime) Active() (ActiveRuntime, bool) {
	h := r.readyHandlesOrNil()
	if h == nil {
		return ActiveRuntime{}, false
	}
	return h.active, true
}

// LastRuntime returns the most recent selection, kept after Shutdown.
func (r *Runtime) LastRuntime() (ActiveRuntime, bool) {
	last := r.last.Load()
	if last == nil {
		return ActiveRuntime{}, false
	}
	return *last, true
}

// Version is the active runtime version, else the version being brought up,
// else the last one, else DefaultRuntimeVersion.
func (r *Runtime) Version() RuntimeVersion {
	if active, ok := r.Active(); ok {
		return active.Version
	}
	if pending := r.pending.Load(); pending != nil && r.State() == StateInitializing {
		return pending.Version
	}
	if last, ok := r.LastRuntime(); ok {
		return last.Version
	}
	return DefaultRuntimeVersion
}

// Directory returns the component directory bound to this runtime.
func (r *Runtime) Directory() *ComponentDirectory {
	return r.directory
}

// Resolver returns the interface resolver of this runtime.
func (r *Runtime) Resolver() *InterfaceResolver {
	return r.resolver
}

// QueryStats returns the reference counters of this runtime's queries.
func (r *Runtime) QueryStats() QueryStats {
	return r.queries.Stats()
}

// Memory returns the foreign heap of the engine.
func (r *Runtime) Memory() Memory {
	return r.engine.Memory()
}

// ProfileDirectory resolves the profile directory for the runtime version.
func (r *Runtime) ProfileDirectory() (string, error) {
	return r.profile.Resolve(r.Version())
}

// NewLocalFile creates a native file object for path.
func (r *Runtime) NewLocalFile(path string) (*Handle, error) {
	iface, err := r.resolver.Resolve(InterfaceLocalFile, r.Version())
	if err != nil {
		return nil, err
	}
	file, rc := r.engine.NewNativeLocalFile(path, true)
	if rc.Failed() {
		if file != nil {
			file.Release()
		}
		return nil, NewNativeCallError("NS_NewNativeLocalFile", rc)
	}
	if file == nil {
		return nil, NewNativeCallError("NS_NewNativeLocalFile", ResultNullPointer)
	}
	return r.queries.adopt(file, iface), nil
}

// RegisterSubsystem adds a subsystem. Subsystems registered while Ready
// take effect from the next Initialize.
func (r *Runtime) RegisterSubsystem(s Subsystem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subsystems = append(r.subsystems, s)
}

// AddEventHandler registers a lifecycle event handler.
func (r *Runtime) AddEventHandler(handler RuntimeEventHandler) {
	r.handlersMu.Lock()
	defer r.handlersMu.Unlock()
	r.handlers = append(r.handlers, handler)
}

// Initialize brings the runtime in candidate.Path up.
//
// When the runtime is already Ready, Initialize does nothing. Concurrent
// calls wait for the first to finish. On failure every handle acquired so
// far is released, the runtime returns to Uninitialized and the error is a
// NativeInitError.
func (r *Runtime) Initialize(candidate RuntimeCandidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State() == StateReady {
		r.logger.Debug("Runtime already initialized", "runtime_dir", candidate.Path)
		return nil
	}

	r.state.Store(int32(StateInitializing))
	r.emit(RuntimeEvent{Type: EventInitializing, State: StateInitializing, Runtime: ActiveRuntime{Candidate: candidate, Version: candidate.Version}})

	handles, err := r.bringUp(candidate)
	if err != nil {
		r.state.Store(int32(StateUninitialized))
		r.pending.Store(nil)
		r.logger.Error("Runtime initialization failed", "runtime_dir", candidate.Path, "error", err)
		r.audit.Record(AuditRuntimeInitFailed, "Runtime initialization failed", map[string]interface{}{
			"runtime_dir": candidate.Path,
			"error":       err.Error(),
		})
		r.emit(RuntimeEvent{Type: EventInitFailed, State: StateUninitialized, Error: err})
		return err
	}

	r.handles.Store(handles)
	active := handles.active
	r.last.Store(&active)
	r.state.Store(int32(StateReady))
	r.pending.Store(nil)

	r.logger.Info("Runtime initialized",
		"runtime_dir", active.Dir,
		"runtime_version", active.Version.String())
	r.audit.Record(AuditRuntimeInitialized, "Runtime initialized", map[string]interface{}{
		"runtime_dir":     active.Dir,
		"runtime_version": active.Version.String(),
	})
	r.emit(RuntimeEvent{Type: EventInitialized, State: StateReady, Runtime: active})
	return nil
}

// bringUp performs the Initializing steps. It either returns complete
// handles or leaves nothing acquired.
func (r *Runtime) bringUp(candidate RuntimeCandidate) (*runtimeHandles, error) {
	dir := candidate.Path
	if dir == "" {
		dir = r.appDir
	}
	dir = filepath.Clean(dir)

	version := candidate.Version
	if version == 0 {
		version = DefaultRuntimeVersion
	}
	r.noteRuntimeDir(dir)

	scope := NewScope()
	defer scope.Close()

	var binDirectory LocalFile
	if !samePath(dir, r.appDir) {
		if r.prependSearchPath != nil {
			changed, err := r.prependSearchPath(dir)
			if err != nil {
				return nil, NewNativeInitError("search_path", ResultOK, err)
			}
			r.logger.Debug("Runtime search path", "runtime_dir", dir, "prepended", changed)
		}

		file, rc := r.engine.NewNativeLocalFile(dir, true)
		if rc.Failed() || file == nil {
			if file != nil {
				file.Release()
			}
			return nil, NewNativeInitError("binary_directory", rc, nil)
		}
		scope.Adopt(newHandle(file, InterfaceIdentity{Name: InterfaceLocalFile}, nil))
		binDirectory = file
	}

	serviceManager, err := r.initXPCOM(dir, binDirectory)
	if err != nil {
		return nil, err
	}

	handles := &runtimeHandles{
		serviceManager: serviceManager,
		active: ActiveRuntime{
			Candidate:     candidate,
			Dir:           dir,
			Version:       version,
			InitializedAt: timecache.CachedTime(),
		},
	}

	// Providers and subsystems called before Ready see this runtime.
	r.pending.Store(&handles.active)

	// From here on a failure also undoes the native initialization.
	fail := func(err error) (*runtimeHandles, error) {
		r.tearDown(handles)
		return nil, err
	}

	cm, rc := r.engine.GetComponentManager()
	if rc.Failed() || cm == nil {
		if cm != nil {
			cm.Release()
		}
		return fail(NewNativeInitError("component_manager", rc, nil))
	}
	handles.componentManager = cm

	cr, rc := r.engine.GetComponentRegistrar()
	if rc.Failed() || cr == nil {
		if cr != nil {
			cr.Release()
		}
		return fail(NewNativeInitError("component_registrar", rc, nil))
	}
	handles.componentRegistrar = cr

	if err := r.registerProfileProvider(handles); err != nil {
		return fail(err)
	}

	ctx := r.subsystemContext(handles)
	for i, s := range r.subsystems {
		if err := r.initSubsystem(s, ctx); err != nil {
			r.shutdownSubsystems(r.subsystems[:i], ctx)
			return fail(NewNativeInitError("subsystem", ResultOK, NewSubsystemError(s.Name(), "init", err)))
		}
	}
	return handles, nil
}

// initXPCOM runs the native initialization with dir as working directory.
func (r *Runtime) initXPCOM(dir string, binDirectory LocalFile) (ServiceManager, error) {
	guard, err := EnterDirectory(dir)
	if err != nil {
		return nil, NewNativeInitError("working_directory", ResultOK, err)
	}
	defer func() {
		if err := guard.Restore(); err != nil {
			r.logger.Warn("Working directory not restored", "directory", guard.Previous(), "error", err)
		}
	}()

	serviceManager, rc := r.engine.InitXPCOM(binDirectory)
	if rc.Failed() {
		if serviceManager != nil {
			serviceManager.Release()
		}
		return nil, NewNativeInitError("NS_InitXPCOM2", rc, nil)
	}
	if serviceManager == nil {
		return nil, NewNativeInitError("NS_InitXPCOM2", ResultNullPointer, nil)
	}
	return serviceManager, nil
}

// registerProfileProvider installs the ProfD provider in the directory
// service. Without it the secure transport layer crashes on first use
// (Mozilla bug 309877).
func (r *Runtime) registerProfileProvider(h *runtimeHandles) error {
	iface, err := r.resolver.Resolve(InterfaceDirectoryService, h.active.Version)
	if err != nil {
		return NewNativeInitError("directory_service", ResultNoInterface, err)
	}

	obj, rc := h.serviceManager.GetServiceByContractID(DirectoryServiceContractID, iface.IID)
	if rc.Failed() || obj == nil {
		if obj != nil {
			obj.Release()
		}
		return NewNativeInitError("directory_service", rc, nil)
	}
	defer obj.Release()

	dirService, ok := obj.(DirectoryService)
	if !ok {
		return NewNativeInitError("directory_service", ResultNoInterface, nil)
	}
	if rc := dirService.RegisterProvider(r.provider); rc.Failed() {
		return NewNativeInitError("register_profile_provider", rc, nil)
	}
	return nil
}

func (r *Runtime) initSubsystem(s Subsystem, ctx *SubsystemContext) (err error) {
	defer func() {
		if p := recover(); p != nil {
			panicsRecovered.Add(1)
			err = NewSubsystemError(s.Name(), "init", nil).WithContext("panic", p)
		}
	}()
	r.logger.Debug("Initializing subsystem", "subsystem", s.Name())
	return s.Init(ctx)
}

// shutdownSubsystems runs shutdown hooks in reverse order. Failures are
// logged and do not stop later hooks.
func (r *Runtime) shutdownSubsystems(subsystems []Subsystem, ctx *SubsystemContext) {
	for i := len(subsystems) - 1; i >= 0; i-- {
		s := subsystems[i]
		func() {
			defer withStackRecover(r.logger.With("subsystem", s.Name()))()
			if err := s.Shutdown(ctx); err != nil {
				r.logger.Warn("Subsystem shutdown failed", "subsystem", s.Name(), "error", err)
			}
		}()
	}
}

func (r *Runtime) subsystemContext(h *runtimeHandles) *SubsystemContext {
	fixed := func(string) (*runtimeHandles, error) { return h, nil }
	return &SubsystemContext{
		Runtime:   r,
		Directory: newComponentDirectory(fixed, r.resolver, r.queries),
		Active:    h.active,
	}
}

// tearDown releases the component manager and registrar, then hands the
// service manager reference to the native shutdown.
func (r *Runtime) tearDown(h *runtimeHandles) Result {
	if h.componentRegistrar != nil {
		h.componentRegistrar.Release()
		h.componentRegistrar = nil
	}
	if h.componentManager != nil {
		h.componentManager.Release()
		h.componentManager = nil
	}
	rc := r.engine.ShutdownXPCOM(h.serviceManager)
	h.serviceManager = nil
	return rc
}

// Shutdown tears a Ready runtime down; in any other state it does nothing.
// A failing native shutdown is reported after the state has been cleared.
func (r *Runtime) Shutdown() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State() != StateReady {
		return nil
	}
	handles := r.handles.Load()

	r.state.Store(int32(StateShuttingDown))
	r.emit(RuntimeEvent{Type: EventShuttingDown, State: StateShuttingDown, Runtime: handles.active})

	r.shutdownSubsystems(r.subsystems, r.subsystemContext(handles))
	rc := r.tearDown(handles)

	r.handles.Store(nil)
	r.state.Store(int32(StateUninitialized))

	r.logger.Info("Runtime shut down", "runtime_dir", handles.active.Dir, "result", rc.String())
	r.audit.Record(AuditRuntimeShutdown, "Runtime shut down", map[string]interface{}{
		"runtime_dir": handles.active.Dir,
		"result":      rc.String(),
	})
	r.emit(RuntimeEvent{Type: EventShutdown, State: StateUninitialized, Runtime: handles.active})

	if rc.Failed() {
		return NewNativeCallError("NS_ShutdownXPCOM", rc)
	}
	return nil
}

// readyHandles returns the published handles, or NotInitializedError.
func (r *Runtime) readyHandles(operation string) (*runtimeHandles, error) {
	h := r.readyHandlesOrNil()
	if h == nil {
		return nil, NewNotInitializedError(operation)
	}
	return h, nil
}

func (r *Runtime) readyHandlesOrNil() *runtimeHandles {
	if r.State() != StateReady {
		return nil
	}
	return r.handles.Load()
}

// noteRuntimeDir records dir. Libraries of earlier runtimes are never
// unloaded, so switching directories is logged as a risk.
func (r *Runtime) noteRuntimeDir(dir string) {
	for _, known := range r.runtimeDirs {
		if samePath(known, dir) {
			return
		}
	}
	if len(r.runtimeDirs) > 0 {
		r.logger.Warn("Initializing a different runtime; libraries of earlier runtimes stay resident",
			"runtime_dir", dir,
			"stale_dirs", append([]string(nil), r.runtimeDirs...))
	}
	r.runtimeDirs = append(r.runtimeDirs, dir)
}

// StaleRuntimeDirs lists runtime directories initialized earlier whose
// libraries may still be resident, excluding the active one.
func (r *Runtime) StaleRuntimeDirs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := ""
	if active, ok := r.Active(); ok {
		current = active.Dir
	}
	var stale []string
	for _, dir := range r.runtimeDirs {
		if !samePath(dir, current) {
			stale = append(stale, dir)
		}
	}
	return stale
}

func (r *Runtime) emit(event RuntimeEvent) {
	event.Timestamp = timecache.CachedTime()

	r.handlersMu.RLock()
	handlers := make([]RuntimeEventHandler, len(r.handlers))
	copy(handlers, r.handlers)
	r.handlersMu.RUnlock()

	for _, handler := range handlers {
		h := handler
		safeGo(r.logger, func() { h(event) })
	}
}

// Close shuts the runtime down and closes its audit trail. The runtime
// cannot record audit events afterwards.
func (r *Runtime) Close() error {
	err := r.Shutdown()
	r.mu.Lock()
	audit := r.audit
	r.audit = nil
	r.mu.Unlock()
	if closeErr := audit.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
