// native_memory.go: raw access to foreign memory for native calls
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goxpcom

import "unsafe"

const pointerSize = unsafe.Sizeof(uintptr(0))

// maxNativeString is the longest string readCString copies.
const maxNativeString = 1 << 16

// The helpers below operate on memory owned by the native runtime. Callers
// guarantee that the addresses are valid for the accessed size.

func readPointer(addr uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(addr))
}

func writePointer(addr, value uintptr) {
	*(*uintptr)(unsafe.Pointer(addr)) = value
}

func writeUint32(addr uintptr, value uint32) {
	*(*uint32)(unsafe.Pointer(addr)) = value
}

func writeBytes(addr uintptr, data []byte) {
	if len(data) == 0 {
		return
	}
	copy(unsafe.Slice((*byte)(unsafe.Pointer(addr)), len(data)), data)
}

func zeroBytes(addr uintptr, n uintptr) {
	clear(unsafe.Slice((*byte)(unsafe.Pointer(addr)), n))
}

func readIID(addr uintptr) IID {
	var raw [16]byte
	copy(raw[:], unsafe.Slice((*byte)(unsafe.Pointer(addr)), len(raw)))
	return IIDFromNative(raw)
}

func writeIID(addr uintptr, id IID) {
	raw := id.NativeLayout()
	writeBytes(addr, raw[:])
}

// readCString copies a NUL terminated string.
func readCString(addr uintptr) string {
	if addr == 0 {
		return ""
	}
	n := 0
	for n < maxNativeString && *(*byte)(unsafe.Pointer(addr + uintptr(n))) != 0 {
		n++
	}
	return string(unsafe.Slice((*byte)(unsafe.Pointer(addr)), n))
}

// vtableEntry reads slot of the vtable of the object at addr.
func vtableEntry(addr uintptr, slot int) uintptr {
	vtable := readPointer(addr)
	return readPointer(vtable + uintptr(slot)*pointerSize)
}
