// handle.go: owned references to native objects and scoped acquisition
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goxpcom

import (
	"sync"
	"sync/atomic"
)

const (
	handleLive int32 = iota
	handleReleased
	handleDetached
)

// Handle owns exactly one strong reference to a native object.
//
// Release gives the reference back exactly once; later calls do nothing and
// never reach the native object. Detach hands the reference to the caller,
// after which the handle no longer owns anything.
//
// Example usage:
//
//	h, err := dir.CreateInstance(goxpcom.ByContractID(contractID), goxpcom.InterfaceSupports)
//	if err != nil {
//		return err
//	}
//	defer h.Release()
type Handle struct {
	object    Unknown
	iface     InterfaceIdentity
	state     atomic.Int32
	onRelease func()
}

// newHandle takes over one reference the caller already holds on object.
func newHandle(object Unknown, iface InterfaceIdentity, onRelease func()) *Handle {
	return &Handle{object: object, iface: iface, onRelease: onRelease}
}

// AdoptReference wraps a reference obtained outside this package.
// The handle takes ownership; the caller must not release object itself.
func AdoptReference(object Unknown, iface InterfaceIdentity) *Handle {
	if object == nil {
		return nil
	}
	return newHandle(object, iface, nil)
}

// Object returns the referenced object, or nil once released or detached.
// The returned value is borrowed and must not be released by the caller.
func (h *Handle) Object() Unknown {
	if h == nil || h.state.Load() != handleLive {
		return nil
	}
	return h.object
}

// Identity implements IdentityProvider so handles can be passed to Query.
func (h *Handle) Identity() Unknown {
	return h.Object()
}

// Interface is the interface identity the handle was obtained for.
func (h *Handle) Interface() InterfaceIdentity {
	if h == nil {
		return InterfaceIdentity{}
	}
	return h.iface
}

// Live reports whether the handle still owns its reference.
func (h *Handle) Live() bool {
	return h != nil && h.state.Load() == handleLive
}

// Release gives up the reference. Safe to call more than once.
func (h *Handle) Release() {
	if h == nil || !h.state.CompareAndSwap(handleLive, handleReleased) {
		return
	}
	h.object.Release()
	if h.onRelease != nil {
		h.onRelease()
	}
}

// Detach transfers the reference to the caller, who becomes responsible for
// releasing it. Returns nil if the handle no longer owns a reference.
func (h *Handle) Detach() Unknown {
	if h == nil || !h.state.CompareAndSwap(handleLive, handleDetached) {
		return nil
	}
	return h.object
}

// retype moves the reference into a new handle bound to iface.
func (h *Handle) retype(iface InterfaceIdentity) *Handle {
	if !h.state.CompareAndSwap(handleLive, handleDetached) {
		return nil
	}
	return newHandle(h.object, iface, h.onRelease)
}

// As returns the typed Go view of the object behind h.
func As[T any](h *Handle) (T, bool) {
	var zero T
	obj := h.Object()
	if obj == nil {
		return zero, false
	}
	typed, ok := obj.(T)
	return typed, ok
}

// Scope releases every handle it tracks when closed.
//
// Example usage:
//
//	scope := goxpcom.NewScope()
//	defer scope.Close()
//	file, err := rt.NewLocalFile(path)
//	if err != nil {
//		return nil, err
//	}
//	scope.Adopt(file)
//	...
//	return scope.Detach(result), nil
type Scope struct {
	mu      sync.Mutex
	handles []*Handle
	closed  bool
}

// NewScope creates an empty scope.
func NewScope() *Scope {
	return &Scope{}
}

// Adopt tracks h and returns it. A nil handle is ignored. Adopting into a
// closed scope releases h immediately.
func (s *Scope) Adopt(h *Handle) *Handle {
	if h == nil {
		return nil
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		h.Release()
		return h
	}
	s.handles = append(s.handles, h)
	s.mu.Unlock()
	return h
}

// Detach stops tracking h so it outlives the scope, and returns it.
func (s *Scope) Detach(h *Handle) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, tracked := range s.handles {
		if tracked == h {
			s.handles = append(s.handles[:i], s.handles[i+1:]...)
			break
		}
	}
	return h
}

// Len reports the number of tracked handles.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// Close releases tracked handles in reverse acquisition order.
func (s *Scope) Close() {
	s.mu.Lock()
	handles := s.handles
	s.handles = nil
	s.closed = true
	s.mu.Unlock()

	for i := len(handles) - 1; i >= 0; i-- {
		handles[i].Release()
	}
}
