// selector.go: compatibility-range ranking of runtime candidates
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goxpcom

import (
	"sort"
	"strconv"
)

// VersionSelector orders runtime candidates by preference.
//
// Candidates inside the compatibility range come first, newest first,
// followed by out-of-range candidates, newest first. Invalid candidates
// never appear in the result.
//
// Example usage:
//
//	selector := goxpcom.NewVersionSelector(goxpcom.DefaultCompatibilityRange)
//	best, err := selector.Preferred(candidates)
//	if err != nil {
//		// no runtime is installed
//	}
type VersionSelector struct {
	compat CompatibilityRange
}

// NewVersionSelector creates a selector for r.
func NewVersionSelector(r CompatibilityRange) *VersionSelector {
	return &VersionSelector{compat: r}
}

// Range returns the compatibility range used for ranking.
func (s *VersionSelector) Range() CompatibilityRange {
	return s.compat
}

// Rank returns the valid candidates in preference order. Candidates with
// equal standing keep their source order. The result is empty, never nil,
// when no candidate is valid.
func (s *VersionSelector) Rank(candidates []RuntimeCandidate) []RuntimeCandidate {
	ranked := make([]RuntimeCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Valid {
			ranked = append(ranked, c)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		inI, inJ := s.compat.Contains(ranked[i].Version), s.compat.Contains(ranked[j].Version)
		if inI != inJ {
			return inI
		}
		return ranked[i].Version > ranked[j].Version
	})
	return ranked
}

// Preferred returns the first ranked candidate, or a DiscoveryError when no
// valid candidate exists.
func (s *VersionSelector) Preferred(candidates []RuntimeCandidate) (RuntimeCandidate, error) {
	ranked := s.Rank(candidates)
	if len(ranked) == 0 {
		return RuntimeCandidate{}, NewDiscoveryError("no valid runtime candidate among "+strconv.Itoa(len(candidates))+" inspected", nil)
	}
	return ranked[0], nil
}
