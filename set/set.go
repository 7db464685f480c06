// Copyright (C) 2025-2026, Indra Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package set implements a generic, insertion-order-agnostic set. No
// other package in this module imports it: audiences, realm membership
// and peer tables are kept in slices, CRDT maps and plain Go maps.
package set

import (
	"golang.org/x/exp/maps"
)

// Set is a set of unique comparable elements.
type Set[T comparable] map[T]struct{}

// Of returns a Set initialized with elts.
func Of[T comparable](elts ...T) Set[T] {
	s := make(Set[T], len(elts))
	s.Add(elts...)
	return s
}

// Add adds elements to the set.
func (s Set[T]) Add(elts ...T) {
	for _, elt := range elts {
		s[elt] = struct{}{}
	}
}

// Contains returns true if the set contains elt.
func (s Set[T]) Contains(elt T) bool {
	_, ok := s[elt]
	return ok
}

// Remove removes elements from the set.
func (s Set[T]) Remove(elts ...T) {
	for _, elt := range elts {
		delete(s, elt)
	}
}

// Len returns the number of elements in the set.
func (s Set[T]) Len() int {
	return len(s)
}

// List returns the elements of the set as a slice in non-deterministic
// order. Callers needing a stable order must sort the result themselves.
func (s Set[T]) List() []T {
	return maps.Keys(s)
}

// Equals returns true if the two sets contain the same elements.
func (s Set[T]) Equals(other Set[T]) bool {
	return maps.Equal(s, other)
}

// Union returns a new set containing all elements from both sets.
func (s Set[T]) Union(other Set[T]) Set[T] {
	result := make(Set[T], max(s.Len(), other.Len()))
	maps.Copy(result, s)
	maps.Copy(result, other)
	return result
}

// Intersection returns a new set containing only elements present in
// both sets.
func (s Set[T]) Intersection(other Set[T]) Set[T] {
	result := make(Set[T])
	small, big := s, other
	if other.Len() < s.Len() {
		small, big = other, s
	}
	for elt := range small {
		if big.Contains(elt) {
			result.Add(elt)
		}
	}
	return result
}

// Clone returns a shallow copy of the set.
func (s Set[T]) Clone() Set[T] {
	result := make(Set[T], s.Len())
	maps.Copy(result, s)
	return result
}
