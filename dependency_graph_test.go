// dependency_graph_test.go: library dependency ordering
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

func TestDependencyGraph_LoadOrder(t *testing.T) {
	graph := NewDependencyGraph()
	graph.AddLibrary("xul", []string{"nss3", "js"})
	graph.AddLibrary("nspr4", nil)
	graph.AddLibrary("nss3", []string{"nspr4"})
	graph.AddLibrary("js", []string{"nspr4"})

	order, err := graph.CalculateLoadOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"nspr4", "nss3", "js", "xul"}, order)

	assert.Equal(t, []string{"nss3", "js"}, graph.GetDependencies("xul"))
	assert.ElementsMatch(t, []string{"nss3", "js"}, graph.GetDependents("nspr4"))
	assert.Empty(t, graph.GetDependencies("missing"))
	assert.Empty(t, graph.GetDependents("xul"))
}

func TestDependencyGraph_Redeclare(t *testing.T) {
	graph := NewDependencyGraph()
	graph.AddLibrary("a", []string{"b"})
	graph.AddLibrary("b", nil)
	graph.AddLibrary("a", nil)

	assert.Empty(t, graph.GetDependents("b"), "Old edges are removed")
	order, err := graph.CalculateLoadOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, order, "Redeclaring keeps the original position")
}

func TestDependencyGraph_DuplicateEdges(t *testing.T) {
	graph := NewDependencyGraph()
	graph.AddLibrary("base", nil)
	graph.AddLibrary("top", []string{"base", "base"})

	order, err := graph.CalculateLoadOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"base", "top"}, order)
}

func TestDependencyGraph_Errors(t *testing.T) {
	t.Run("UnknownDependency", func(t *testing.T) {
		graph := NewDependencyGraph()
		graph.AddLibrary("xul", []string{"nspr4"})

		err := graph.ValidateDependencies()
		require.Error(t, err)
		assert.True(t, IsErrorCode(err, ErrCodeLibraryPlan))
		assert.Contains(t, err.Error(), "nspr4")
	})

	t.Run("Cycle", func(t *testing.T) {
		graph := NewDependencyGraph()
		graph.AddLibrary("root", nil)
		graph.AddLibrary("a", []string{"c"})
		graph.AddLibrary("b", []string{"a"})
		graph.AddLibrary("c", []string{"b"})

		_, err := graph.CalculateLoadOrder()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "a, b, c")
		assert.NotContains(t, err.Error(), "root")
	})

	t.Run("SelfDependency", func(t *testing.T) {
		graph := NewDependencyGraph()
		graph.AddLibrary("loop", []string{"loop"})
		assert.Error(t, graph.ValidateDependencies())
	})
}
