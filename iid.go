// iid.go: 128-bit interface and class identifiers
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goxpcom

import (
	"encoding/binary"
	"strings"

	"github.com/google/uuid"
)

// IID identifies an interface or a component class.
type IID uuid.UUID

// NilIID is the all-zero identifier.
var NilIID IID

// ParseIID accepts the canonical form and the braced form used in IDL files,
// e.g. "{00000000-0000-0000-c000-000000000046}".
func ParseIID(s string) (IID, error) {
	u, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return NilIID, NewInvalidIIDError(s, err)
	}
	return IID(u), nil
}

// MustParseIID is ParseIID for constant tables; it panics on error.
func MustParseIID(s string) IID {
	id, err := ParseIID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// IIDFromNative reads a 16-byte nsID in native layout.
func IIDFromNative(b [16]byte) IID {
	var id IID
	binary.BigEndian.PutUint32(id[0:4], binary.LittleEndian.Uint32(b[0:4]))
	binary.BigEndian.PutUint16(id[4:6], binary.LittleEndian.Uint16(b[4:6]))
	binary.BigEndian.PutUint16(id[6:8], binary.LittleEndian.Uint16(b[6:8]))
	copy(id[8:], b[8:])
	return id
}

// NativeLayout returns the in-memory nsID layout: a 32-bit and two 16-bit
// fields in little-endian order followed by eight bytes as written.
func (id IID) NativeLayout() [16]byte {
	var b [16]byte
	binary.LittleEndian.PutUint32(b[0:4], binary.BigEndian.Uint32(id[0:4]))
	binary.LittleEndian.PutUint16(b[4:6], binary.BigEndian.Uint16(id[4:6]))
	binary.LittleEndian.PutUint16(b[6:8], binary.BigEndian.Uint16(id[6:8]))
	copy(b[8:], id[8:])
	return b
}

// IsNil reports whether id is the all-zero identifier.
func (id IID) IsNil() bool {
	return id == NilIID
}

func (id IID) String() string {
	return uuid.UUID(id).String()
}

// Braced renders id the way IDL and registry files write it.
func (id IID) Braced() string {
	return "{" + id.String() + "}"
}
