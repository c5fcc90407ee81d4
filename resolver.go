// resolver.go: version-keyed interface identity table and typed casts
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goxpcom

import (
	"sort"
	"sync"
)

// InterfaceName is the logical name of an interface, independent of the
// ABI revision that implements it.
type InterfaceName string

// Interfaces used by the bootstrap layer itself.
const (
	InterfaceSupports                 InterfaceName = "nsISupports"
	InterfaceInterfaceRequestor       InterfaceName = "nsIInterfaceRequestor"
	InterfaceServiceManager           InterfaceName = "nsIServiceManager"
	InterfaceComponentManager         InterfaceName = "nsIComponentManager"
	InterfaceComponentRegistrar       InterfaceName = "nsIComponentRegistrar"
	InterfaceFactory                  InterfaceName = "nsIFactory"
	InterfaceDirectoryService         InterfaceName = "nsIDirectoryService"
	InterfaceDirectoryServiceProvider InterfaceName = "nsIDirectoryServiceProvider"
	InterfaceFile                     InterfaceName = "nsIFile"
	InterfaceLocalFile                InterfaceName = "nsILocalFile"
)

// Well-known identifiers of the frozen interfaces above.
var (
	IIDSupports                 = MustParseIID("00000000-0000-0000-c000-000000000046")
	IIDInterfaceRequestor       = MustParseIID("033a1470-8b2a-11d3-af88-00a024ffc08c")
	IIDServiceManager           = MustParseIID("8bb35ed9-e332-462d-9155-4a002ab5c958")
	IIDComponentManager         = MustParseIID("a88e5a60-205a-4bb1-94e1-2628daf51eae")
	IIDComponentRegistrar       = MustParseIID("2417cbfe-65ad-48a6-b4b6-eb84db174392")
	IIDFactory                  = MustParseIID("00000001-0000-0000-c000-000000000046")
	IIDDirectoryService         = MustParseIID("57a66a60-d43a-11d3-8cc2-00609792278c")
	IIDDirectoryServiceProvider = MustParseIID("bbf8cab0-d43a-11d3-8cc2-00609792278c")
	IIDFile                     = MustParseIID("c8c0a080-0868-11d3-915f-d9d889d48e3c")
	IIDLocalFile                = MustParseIID("aa610f20-a889-11d3-8c81-000064657374")
)

// AllVersions spans every encodable runtime version. Frozen interfaces keep
// their identifier across all of them.
var AllVersions = CompatibilityRange{Min: 0, Max: 0x99999999}

// InterfaceIdentity binds a logical interface to the identifier it has
// within a range of runtime versions.
type InterfaceIdentity struct {
	Name  InterfaceName
	IID   IID
	Range CompatibilityRange
}

// InterfaceTable maps (logical interface, version range) to identifiers.
// It is safe for concurrent use.
type InterfaceTable struct {
	mu      sync.RWMutex
	entries map[InterfaceName][]InterfaceIdentity
	bases   map[InterfaceName]InterfaceName
}

// NewInterfaceTable creates an empty table.
func NewInterfaceTable() *InterfaceTable {
	return &InterfaceTable{
		entries: make(map[InterfaceName][]InterfaceIdentity),
		bases:   make(map[InterfaceName]InterfaceName),
	}
}

// SetBase records that name derives from base. Every interface derives
// from nsISupports without being recorded.
func (t *InterfaceTable) SetBase(name, base InterfaceName) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bases[name] = base
}

// Extends reports whether name is ancestor or derives from it.
func (t *InterfaceTable) Extends(name, ancestor InterfaceName) bool {
	if name == ancestor || ancestor == InterfaceSupports {
		return true
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	seen := make(map[InterfaceName]bool)
	for cur := name; !seen[cur]; {
		seen[cur] = true
		base, ok := t.bases[cur]
		if !ok {
			return false
		}
		if base == ancestor {
			return true
		}
		cur = base
	}
	return false
}

// Register adds an entry. When ranges of the same name overlap, the entry
// registered last wins.
func (t *InterfaceTable) Register(id InterfaceIdentity) error {
	if id.Range.Min > id.Range.Max {
		return NewInvalidVersionSpanError(id.Range.Min, id.Range.Max)
	}
	if id.IID.IsNil() {
		return NewInvalidIIDError(string(id.Name), nil)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[id.Name] = append(t.entries[id.Name], id)
	return nil
}

// Lookup finds the identity of name valid for version.
func (t *InterfaceTable) Lookup(name InterfaceName, version RuntimeVersion) (InterfaceIdentity, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entries := t.entries[name]
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Range.Contains(version) {
			return entries[i], true
		}
	}
	return InterfaceIdentity{}, false
}

// Names lists registered interface names in lexical order.
func (t *InterfaceTable) Names() []InterfaceName {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]InterfaceName, 0, len(t.entries))
	for name := range t.entries {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// DefaultInterfaceTable returns a new table holding the interfaces used by
// the bootstrap layer. nsIFile and nsILocalFile are bound to the default
// compatibility range, the remaining interfaces are frozen.
func DefaultInterfaceTable() *InterfaceTable {
	t := NewInterfaceTable()
	frozen := []struct {
		name InterfaceName
		iid  IID
	}{
		{InterfaceSupports, IIDSupports},
		{InterfaceInterfaceRequestor, IIDInterfaceRequestor},
		{InterfaceServiceManager, IIDServiceManager},
		{InterfaceComponentManager, IIDComponentManager},
		{InterfaceComponentRegistrar, IIDComponentRegistrar},
		{InterfaceFactory, IIDFactory},
		{InterfaceDirectoryService, IIDDirectoryService},
		{InterfaceDirectoryServiceProvider, IIDDirectoryServiceProvider},
	}
	for _, f := range frozen {
		_ = t.Register(InterfaceIdentity{Name: f.name, IID: f.iid, Range: AllVersions})
	}
	_ = t.Register(InterfaceIdentity{Name: InterfaceFile, IID: IIDFile, Range: DefaultCompatibilityRange})
	_ = t.Register(InterfaceIdentity{Name: InterfaceLocalFile, IID: IIDLocalFile, Range: DefaultCompatibilityRange})
	t.SetBase(InterfaceLocalFile, InterfaceFile)
	return t
}

// InterfaceResolver selects the interface identity valid for a runtime
// version and re-types handles to it.
type InterfaceResolver struct {
	table *InterfaceTable
}

// NewInterfaceResolver creates a resolver over table, or over
// DefaultInterfaceTable when table is nil.
func NewInterfaceResolver(table *InterfaceTable) *InterfaceResolver {
	if table == nil {
		table = DefaultInterfaceTable()
	}
	return &InterfaceResolver{table: table}
}

// Table returns the table backing the resolver.
func (r *InterfaceResolver) Table() *InterfaceTable {
	return r.table
}

// Resolve returns the identity of name for version, or an
// UnsupportedInterfaceError when no entry covers version.
func (r *InterfaceResolver) Resolve(name InterfaceName, version RuntimeVersion) (InterfaceIdentity, error) {
	id, ok := r.table.Lookup(name, version)
	if !ok {
		return InterfaceIdentity{}, NewUnsupportedInterfaceError(name, version)
	}
	return id, nil
}

// Cast re-types h to the logical interface name without querying the native
// object. The caller asserts that the object implements that interface.
// The handle's current interface and name must lie on one inheritance
// chain; a handle without a name, or typed as nsISupports, casts to any
// interface. Anything else is an InterfaceMismatchError.
//
// The reference moves into the returned handle and h becomes inert. On error
// h is left untouched.
func (r *InterfaceResolver) Cast(h *Handle, name InterfaceName, version RuntimeVersion) (*Handle, error) {
	if !h.Live() {
		return nil, NewInvalidObjectError(h)
	}
	id, err := r.Resolve(name, version)
	if err != nil {
		return nil, err
	}
	if from := h.Interface().Name; from != "" && !r.table.Extends(from, name) && !r.table.Extends(name, from) {
		return nil, NewInterfaceMismatchError(from, name)
	}
	moved := h.retype(id)
	if moved == nil {
		return nil, NewInvalidObjectError(h)
	}
	return moved, nil
}
