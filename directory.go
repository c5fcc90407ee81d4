// directory.go: component creation, service lookup and factory registration
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goxpcom

// ComponentRef names a component by class ID or by contract ID.
type ComponentRef struct {
	classID    IID
	contractID string
}

// ByClassID refers to a component by its class ID.
func ByClassID(classID IID) ComponentRef {
	return ComponentRef{classID: classID}
}

// ByContractID refers to a component by its contract ID,
// e.g. "@mozilla.org/file/local;1".
func ByContractID(contractID string) ComponentRef {
	return ComponentRef{contractID: contractID}
}

// ContractID returns the contract ID, or "" for class ID references.
func (c ComponentRef) ContractID() string { return c.contractID }

// ClassID returns the class ID, or NilIID for contract ID references.
func (c ComponentRef) ClassID() IID { return c.classID }

func (c ComponentRef) valid() bool {
	return c.contractID != "" || !c.classID.IsNil()
}

func (c ComponentRef) String() string {
	if c.contractID != "" {
		return c.contractID
	}
	return c.classID.Braced()
}

// ComponentDirectory creates components, looks up services and registers
// factories through the handles of a Ready runtime.
//
// Every returned handle holds one reference that the caller must release.
// A failing native call is a NativeCallError carrying the native result; a
// successful call that yields no object is reported as NS_ERROR_NULL_POINTER.
//
// Example usage:
//
//	dir := rt.Directory()
//	file, err := dir.CreateInstance(goxpcom.ByContractID("@mozilla.org/file/local;1"), goxpcom.InterfaceLocalFile)
//	if err != nil {
//		return err
//	}
//	defer file.Release()
type ComponentDirectory struct {
	load     func(operation string) (*runtimeHandles, error)
	resolver *InterfaceResolver
	queries  *QueryEngine
}

func newComponentDirectory(load func(string) (*runtimeHandles, error), resolver *InterfaceResolver, queries *QueryEngine) *ComponentDirectory {
	return &ComponentDirectory{load: load, resolver: resolver, queries: queries}
}

// prepare loads the runtime handles and resolves iface for the active version.
func (d *ComponentDirectory) prepare(operation string, iface InterfaceName) (*runtimeHandles, InterfaceIdentity, error) {
	h, err := d.load(operation)
	if err != nil {
		return nil, InterfaceIdentity{}, err
	}
	id, err := d.resolver.Resolve(iface, h.active.Version)
	if err != nil {
		return nil, InterfaceIdentity{}, err
	}
	return h, id, nil
}

// CreateInstance creates a new instance of ref through the component manager.
func (d *ComponentDirectory) CreateInstance(ref ComponentRef, iface InterfaceName) (*Handle, error) {
	const op = "nsIComponentManager.CreateInstance"
	h, id, err := d.prepare(op, iface)
	if err != nil {
		return nil, err
	}
	if !ref.valid() {
		return nil, NewNativeCallError(op, ResultInvalidArg)
	}

	var obj Unknown
	var rc Result
	if ref.contractID != "" {
		obj, rc = h.componentManager.CreateInstanceByContractID(ref.contractID, id.IID)
	} else {
		obj, rc = h.componentManager.CreateInstance(ref.classID, id.IID)
	}
	return d.adopt(op, obj, rc, id)
}

// GetService returns the service ref through the service manager.
func (d *ComponentDirectory) GetService(ref ComponentRef, iface InterfaceName) (*Handle, error) {
	const op = "nsIServiceManager.GetService"
	h, id, err := d.prepare(op, iface)
	if err != nil {
		return nil, err
	}
	if !ref.valid() {
		return nil, NewNativeCallError(op, ResultInvalidArg)
	}

	var obj Unknown
	var rc Result
	if ref.contractID != "" {
		obj, rc = h.serviceManager.GetServiceByContractID(ref.contractID, id.IID)
	} else {
		obj, rc = h.serviceManager.GetService(ref.classID, id.IID)
	}
	return d.adopt(op, obj, rc, id)
}

// RegisterFactory registers factory for classID under name and contractID.
func (d *ComponentDirectory) RegisterFactory(classID IID, name, contractID string, factory Factory) error {
	const op = "nsIComponentRegistrar.RegisterFactory"
	h, err := d.load(op)
	if err != nil {
		return err
	}
	if factory == nil || classID.IsNil() {
		return NewNativeCallError(op, ResultInvalidArg)
	}
	if rc := h.componentRegistrar.RegisterFactory(classID, name, contractID, factory); rc.Failed() {
		return NewNativeCallError(op, rc).
			WithContext("class_id", classID.String()).
			WithContext("contract_id", contractID)
	}
	return nil
}

// QueryInterface resolves iface for the active version and queries object
// for it. A nil handle with a nil error means the interface is not there.
func (d *ComponentDirectory) QueryInterface(object any, iface InterfaceName) (*Handle, error) {
	_, id, err := d.prepare("QueryInterface", iface)
	if err != nil {
		return nil, err
	}
	return d.queries.QueryIdentity(object, id)
}

// Cast re-types h to iface for the active version without querying.
func (d *ComponentDirectory) Cast(h *Handle, iface InterfaceName) (*Handle, error) {
	handles, err := d.load("Cast")
	if err != nil {
		return nil, err
	}
	return d.resolver.Cast(h, iface, handles.active.Version)
}

func (d *ComponentDirectory) adopt(op string, obj Unknown, rc Result, id InterfaceIdentity) (*Handle, error) {
	if rc.Failed() {
		if obj != nil {
			obj.Release()
		}
		return nil, NewNativeCallError(op, rc).WithContext("interface", string(id.Name))
	}
	if obj == nil {
		return nil, NewNativeCallError(op, ResultNullPointer).WithContext("interface", string(id.Name))
	}
	return d.queries.adopt(obj, id), nil
}
