// env_guard.go: scoped mutation of the process working directory
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goxpcom

import "os"

// DirectoryGuard switches the working directory and restores the previous
// one when Restore is called. Restore is idempotent.
//
// Example usage:
//
//	guard, err := EnterDirectory(runtimeDir)
//	if err != nil {
//		return err
//	}
//	defer guard.Restore()
type DirectoryGuard struct {
	previous string
	restored bool
}

// EnterDirectory makes dir the working directory. An empty dir leaves the
// working directory unchanged.
func EnterDirectory(dir string) (*DirectoryGuard, error) {
	previous, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	guard := &DirectoryGuard{previous: previous}
	if dir == "" {
		guard.restored = true
		return guard, nil
	}
	if err := os.Chdir(dir); err != nil {
		return nil, err
	}
	return guard, nil
}

// Previous is the working directory in effect before EnterDirectory.
func (g *DirectoryGuard) Previous() string {
	return g.previous
}

// Restore switches back to the previous working directory.
func (g *DirectoryGuard) Restore() error {
	if g == nil || g.restored {
		return nil
	}
	g.restored = true
	return os.Chdir(g.previous)
}
