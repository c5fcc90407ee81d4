// version.go: encoded runtime versions and compatibility ranges
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goxpcom

import (
	"fmt"
	"strconv"
	"strings"
)

// RuntimeVersion is a four-field runtime version packed into an integer.
//
// Each field is in 0..99 and occupies one byte holding its two decimal digits
// as nibbles, so 1.9.2.99 encodes as 0x01090299. Comparing two encoded values
// numerically compares the versions they encode.
type RuntimeVersion uint32

const (
	// DefaultRuntimeVersion is assumed when no runtime is discovered.
	DefaultRuntimeVersion RuntimeVersion = 0x01080000

	maxVersionField = 99
)

// DefaultCompatibilityRange is the range of runtime versions this layer
// prefers: 1.8.0.0 through 1.9.2.99.
var DefaultCompatibilityRange = CompatibilityRange{Min: 0x01080000, Max: 0x01090299}

// NewRuntimeVersion packs four fields. Any field outside 0..99 is an error.
func NewRuntimeVersion(major, minor, patch, build int) (RuntimeVersion, error) {
	var v RuntimeVersion
	for _, f := range [4]int{major, minor, patch, build} {
		if f < 0 || f > maxVersionField {
			return 0, NewInvalidVersionError(fmt.Sprintf("%d.%d.%d.%d", major, minor, patch, build), nil)
		}
		v = v<<8 | RuntimeVersion((f/10)<<4|f%10)
	}
	return v, nil
}

// MustRuntimeVersion is NewRuntimeVersion for constant inputs; it panics on error.
func MustRuntimeVersion(major, minor, patch, build int) RuntimeVersion {
	v, err := NewRuntimeVersion(major, minor, patch, build)
	if err != nil {
		panic(err)
	}
	return v
}

// ParseRuntimeVersion parses a dotted version with one to four fields.
//
// Missing trailing fields are zero. Within each field, parsing stops at the
// first non-digit, so pre-release suffixes such as "1.9.2.13pre" or "2.0b1"
// are ignored; a field with no leading digit is an error.
func ParseRuntimeVersion(s string) (RuntimeVersion, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, NewInvalidVersionError(s, nil)
	}

	parts := strings.Split(trimmed, ".")
	if len(parts) > 4 {
		return 0, NewInvalidVersionError(s, nil)
	}

	var fields [4]int
	for i, part := range parts {
		end := 0
		for end < len(part) && part[end] >= '0' && part[end] <= '9' {
			end++
		}
		if end == 0 {
			return 0, NewInvalidVersionError(s, nil)
		}
		n, err := strconv.Atoi(part[:end])
		if err != nil {
			return 0, NewInvalidVersionError(s, err)
		}
		fields[i] = n
		// A suffix ends the version: "2.0b1.5" is 2.0.
		if end < len(part) {
			break
		}
	}

	v, err := NewRuntimeVersion(fields[0], fields[1], fields[2], fields[3])
	if err != nil {
		return 0, NewInvalidVersionError(s, err)
	}
	return v, nil
}

// Fields unpacks the version into its four decimal fields.
func (v RuntimeVersion) Fields() (major, minor, patch, build int) {
	field := func(shift uint) int {
		b := int(v>>shift) & 0xFF
		return (b>>4)*10 + b&0x0F
	}
	return field(24), field(16), field(8), field(0)
}

// String renders the version as four dotted fields.
func (v RuntimeVersion) String() string {
	a, b, c, d := v.Fields()
	return fmt.Sprintf("%d.%d.%d.%d", a, b, c, d)
}

// Valid reports whether every nibble of v is a decimal digit.
func (v RuntimeVersion) Valid() bool {
	for shift := uint(0); shift < 32; shift += 4 {
		if (v>>shift)&0x0F > 9 {
			return false
		}
	}
	return true
}

// CompatibilityRange is a closed interval of preferred runtime versions.
type CompatibilityRange struct {
	Min RuntimeVersion
	Max RuntimeVersion
}

// NewCompatibilityRange parses both bounds and rejects an inverted range.
func NewCompatibilityRange(min, max string) (CompatibilityRange, error) {
	lo, err := ParseRuntimeVersion(min)
	if err != nil {
		return CompatibilityRange{}, err
	}
	hi, err := ParseRuntimeVersion(max)
	if err != nil {
		return CompatibilityRange{}, err
	}
	if lo > hi {
		return CompatibilityRange{}, NewInvalidVersionSpanError(lo, hi)
	}
	return CompatibilityRange{Min: lo, Max: hi}, nil
}

// Contains reports whether v lies within the range, bounds included.
func (r CompatibilityRange) Contains(v RuntimeVersion) bool {
	return v >= r.Min && v <= r.Max
}

func (r CompatibilityRange) String() string {
	return "[" + r.Min.String() + ", " + r.Max.String() + "]"
}
