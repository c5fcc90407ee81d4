// version_test.go: runtime version encoding tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goxpcom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRuntimeVersion(t *testing.T) {
	tests := []struct {
		input    string
		expected RuntimeVersion
	}{
		{"1.9.2.99", 0x01090299},
		{"1.8", 0x01080000},
		{"1.9.1", 0x01090100},
		{"1.9.2.13pre", 0x01090213},
		{"2.0b1", 0x02000000},
		{" 1.9.0.5 ", 0x01090005},
		{"10.0", 0x10000000},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, err := ParseRuntimeVersion(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
			assert.True(t, v.Valid())
		})
	}
}

func TestParseRuntimeVersion_Invalid(t *testing.T) {
	for _, input := range []string{"", "abc", "1.2.3.4.5", "1.100", "1..2"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseRuntimeVersion(input)
			require.Error(t, err)
			assert.True(t, IsErrorCode(err, ErrCodeInvalidVersion))
		})
	}
}

func TestRuntimeVersion_OrderingMatchesEncoding(t *testing.T) {
	a := MustRuntimeVersion(1, 9, 0, 99)
	b := MustRuntimeVersion(1, 9, 1, 0)
	c := MustRuntimeVersion(1, 10, 0, 0)

	assert.True(t, a < b)
	assert.True(t, b < c)
	assert.Equal(t, "1.10.0.0", c.String())

	major, minor, patch, build := a.Fields()
	assert.Equal(t, []int{1, 9, 0, 99}, []int{major, minor, patch, build})
}

func TestRuntimeVersion_ValidRejectsNonDecimalNibbles(t *testing.T) {
	assert.False(t, RuntimeVersion(0x010A0000).Valid())
	assert.True(t, DefaultRuntimeVersion.Valid())
}

func TestCompatibilityRange(t *testing.T) {
	r := DefaultCompatibilityRange
	assert.True(t, r.Contains(0x01080000))
	assert.True(t, r.Contains(0x01090299))
	assert.False(t, r.Contains(0x01090300))
	assert.False(t, r.Contains(0x01070000))
	assert.Equal(t, "[1.8.0.0, 1.9.2.99]", r.String())

	parsed, err := NewCompatibilityRange("1.8", "1.9.2.99")
	require.NoError(t, err)
	assert.Equal(t, r, parsed)

	_, err = NewCompatibilityRange("1.9", "1.8")
	require.Error(t, err)
	assert.True(t, IsErrorCode(err, ErrCodeInvalidVersionSpan))
}
