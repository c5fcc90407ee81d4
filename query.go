// query.go: reference-counted interface query with requestor fallback
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goxpcom

import (
	"reflect"
	"sync/atomic"
)

// QueryEngine runs the query protocol against native objects.
//
// A query takes a base reference on the object, asks it for the interface
// directly and, failing that, asks its nsIInterfaceRequestor. Every
// intermediate reference is released before Query returns; only the result
// survives, owned by the returned handle.
type QueryEngine struct {
	requestorIID IID
	logger       Logger
	counters     queryCounters
}

type queryCounters struct {
	queries       atomic.Int64
	directHits    atomic.Int64
	requestorHits atomic.Int64
	misses        atomic.Int64
	acquired      atomic.Int64
	released      atomic.Int64
}

// QueryStats is a snapshot of QueryEngine counters. Acquired and Released
// count references, so Acquired-Released is the number of references the
// engine has handed out that are still held.
type QueryStats struct {
	Queries       int64 `json:"queries"`
	DirectHits    int64 `json:"direct_hits"`
	RequestorHits int64 `json:"requestor_hits"`
	Misses        int64 `json:"misses"`
	Acquired      int64 `json:"acquired"`
	Released      int64 `json:"released"`
}

// Outstanding is the number of references still held by callers.
func (s QueryStats) Outstanding() int64 {
	return s.Acquired - s.Released
}

// NewQueryEngine creates a query engine. A nil logger is replaced with
// a NoOpLogger.
func NewQueryEngine(logger Logger) *QueryEngine {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	return &QueryEngine{requestorIID: IIDInterfaceRequestor, logger: logger}
}

// Query asks object for the interface iid.
//
// object may be a *Handle, an Unknown or an IdentityProvider; anything else,
// including nil or a released handle, is an InvalidObjectError. When neither
// the object nor its requestor provides iid, Query returns (nil, nil).
func (q *QueryEngine) Query(object any, iid IID) (*Handle, error) {
	return q.query(object, InterfaceIdentity{IID: iid})
}

// QueryIdentity is Query for a resolved interface identity; the identity is
// recorded on the returned handle.
func (q *QueryEngine) QueryIdentity(object any, iface InterfaceIdentity) (*Handle, error) {
	return q.query(object, iface)
}

func (q *QueryEngine) query(object any, iface InterfaceIdentity) (*Handle, error) {
	q.counters.queries.Add(1)

	base := baseIdentity(object)
	if base == nil {
		return nil, NewInvalidObjectError(object)
	}
	base.AddRef()
	q.counters.acquired.Add(1)
	defer q.release(base)

	if result, rc := base.QueryInterface(iface.IID); rc.Succeeded() && result != nil {
		q.counters.acquired.Add(1)
		q.counters.directHits.Add(1)
		return q.wrap(result, iface), nil
	} else if rc.Failed() && rc != ResultNoInterface {
		q.logger.Debug("Direct interface query failed", "iid", iface.IID.String(), "result", rc.String())
	}

	if result := q.viaRequestor(base, iface.IID); result != nil {
		q.counters.requestorHits.Add(1)
		return q.wrap(result, iface), nil
	}

	q.counters.misses.Add(1)
	return nil, nil
}

// viaRequestor returns a referenced result obtained through the object's
// interface requestor, or nil.
func (q *QueryEngine) viaRequestor(base Unknown, iid IID) Unknown {
	obj, rc := base.QueryInterface(q.requestorIID)
	if rc.Failed() || obj == nil {
		return nil
	}
	q.counters.acquired.Add(1)
	defer q.release(obj)

	requestor, ok := obj.(InterfaceRequestor)
	if !ok {
		return nil
	}
	result, rc := requestor.GetInterface(iid)
	if rc.Failed() || result == nil {
		return nil
	}
	q.counters.acquired.Add(1)
	return result
}

func (q *QueryEngine) wrap(result Unknown, iface InterfaceIdentity) *Handle {
	return newHandle(result, iface, func() { q.counters.released.Add(1) })
}

func (q *QueryEngine) release(obj Unknown) {
	obj.Release()
	q.counters.released.Add(1)
}

// adopt wraps a reference acquired from a runtime handle so its release is
// counted alongside query results.
func (q *QueryEngine) adopt(result Unknown, iface InterfaceIdentity) *Handle {
	q.counters.acquired.Add(1)
	return q.wrap(result, iface)
}

// Stats returns a snapshot of the engine counters.
func (q *QueryEngine) Stats() QueryStats {
	return QueryStats{
		Queries:       q.counters.queries.Load(),
		DirectHits:    q.counters.directHits.Load(),
		RequestorHits: q.counters.requestorHits.Load(),
		Misses:        q.counters.misses.Load(),
		Acquired:      q.counters.acquired.Load(),
		Released:      q.counters.released.Load(),
	}
}

// baseIdentity returns the object to query without adding a reference.
func baseIdentity(object any) Unknown {
	switch o := object.(type) {
	case nil:
		return nil
	case *Handle:
		return o.Object()
	case Unknown:
		if isNilObject(o) {
			return nil
		}
		return o
	case IdentityProvider:
		if isNilObject(o) {
			return nil
		}
		if id := o.Identity(); !isNilObject(id) {
			return id
		}
		return nil
	default:
		return nil
	}
}

// isNilObject reports whether v is nil or an interface holding a nil pointer.
func isNilObject(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return rv.IsNil()
	default:
		return false
	}
}
