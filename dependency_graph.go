// dependency_graph.go: native library dependency graph and load ordering
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goxpcom

import (
	"strings"
	"sync"
)

// DependencyGraph holds native libraries and the libraries each one needs
// loaded before it, and derives a load order from them.
//
// The order is a topological sort (Kahn's algorithm) that always picks the
// earliest declared library among those whose dependencies are satisfied, so
// a manifest already in dependency order comes back unchanged.
//
// Example usage:
//
//	graph := goxpcom.NewDependencyGraph()
//	graph.AddLibrary("nspr4", nil)
//	graph.AddLibrary("nss3", []string{"nspr4"})
//	graph.AddLibrary("xul", []string{"nss3"})
//	order, err := graph.CalculateLoadOrder()
type DependencyGraph struct {
	mu    sync.RWMutex
	order []string
	nodes map[string]*DependencyNode
}

// DependencyNode is a library in the graph.
type DependencyNode struct {
	Name         string   `json:"name"`
	Dependencies []string `json:"dependencies"`
	Dependents   []string `json:"dependents"`
	declared     bool
}

// NewDependencyGraph creates an empty graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{nodes: make(map[string]*DependencyNode)}
}

// AddLibrary declares name with its dependencies. Declaring a library again
// replaces its dependencies but keeps its original position.
func (dg *DependencyGraph) AddLibrary(name string, dependencies []string) {
	dg.mu.Lock()
	defer dg.mu.Unlock()

	node := dg.node(name)
	for _, old := range node.Dependencies {
		dg.nodes[old].Dependents = removeString(dg.nodes[old].Dependents, name)
	}
	if !node.declared {
		node.declared = true
		dg.order = append(dg.order, name)
	}
	node.Dependencies = append([]string(nil), dependencies...)

	for _, dep := range dependencies {
		depNode := dg.node(dep)
		if !containsString(depNode.Dependents, name) {
			depNode.Dependents = append(depNode.Dependents, name)
		}
	}
}

// node returns the node for name, creating an undeclared placeholder.
func (dg *DependencyGraph) node(name string) *DependencyNode {
	n, ok := dg.nodes[name]
	if !ok {
		n = &DependencyNode{Name: name}
		dg.nodes[name] = n
	}
	return n
}

// GetDependencies returns the direct dependencies of name.
func (dg *DependencyGraph) GetDependencies(name string) []string {
	dg.mu.RLock()
	defer dg.mu.RUnlock()
	if n, ok := dg.nodes[name]; ok {
		return append([]string{}, n.Dependencies...)
	}
	return []string{}
}

// GetDependents returns the libraries that directly depend on name.
func (dg *DependencyGraph) GetDependents(name string) []string {
	dg.mu.RLock()
	defer dg.mu.RUnlock()
	if n, ok := dg.nodes[name]; ok {
		return append([]string{}, n.Dependents...)
	}
	return []string{}
}

// ValidateDependencies reports a dependency on an undeclared library or a
// dependency cycle as a LibraryPlanError.
func (dg *DependencyGraph) ValidateDependencies() error {
	_, err := dg.CalculateLoadOrder()
	return err
}

// CalculateLoadOrder returns every declared library after its dependencies.
func (dg *DependencyGraph) CalculateLoadOrder() ([]string, error) {
	dg.mu.RLock()
	defer dg.mu.RUnlock()

	for _, name := range dg.order {
		for _, dep := range dg.nodes[name].Dependencies {
			if !dg.nodes[dep].declared {
				return nil, NewLibraryPlanError("unknown dependency "+dep, name)
			}
		}
	}

	pending := make(map[string]int, len(dg.order))
	for _, name := range dg.order {
		pending[name] = len(uniqueStrings(dg.nodes[name].Dependencies))
	}

	done := make(map[string]bool, len(dg.order))
	loadOrder := make([]string, 0, len(dg.order))
	for len(loadOrder) < len(dg.order) {
		next := ""
		for _, name := range dg.order {
			if !done[name] && pending[name] == 0 {
				next = name
				break
			}
		}
		if next == "" {
			return nil, NewLibraryPlanError("dependency cycle among "+strings.Join(dg.unresolved(done), ", "), "")
		}
		done[next] = true
		loadOrder = append(loadOrder, next)
		for _, dependent := range dg.nodes[next].Dependents {
			pending[dependent]--
		}
	}
	return loadOrder, nil
}

func (dg *DependencyGraph) unresolved(done map[string]bool) []string {
	var names []string
	for _, name := range dg.order {
		if !done[name] {
			names = append(names, name)
		}
	}
	return names
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, item := range list {
		if item != s {
			out = append(out, item)
		}
	}
	return out
}

func uniqueStrings(list []string) []string {
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, item := range list {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	return out
}
