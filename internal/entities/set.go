package entities

import (
	"cmp"
	"slices"
)

// Set is a small ordered-key set.
type Set[T cmp.Ordered] map[T]struct{}

// NewSet builds a set from items.
func NewSet[T cmp.Ordered](items ...T) Set[T] {
	s := make(Set[T], len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

// Add inserts items.
func (s Set[T]) Add(items ...T) {
	for _, it := range items {
		s[it] = struct{}{}
	}
}

// Has reports membership.
func (s Set[T]) Has(item T) bool {
	_, ok := s[item]
	return ok
}

// Equal reports whether both sets contain the same items.
func (s Set[T]) Equal(other Set[T]) bool {
	if len(s) != len(other) {
		return false
	}
	for it := range s {
		if !other.Has(it) {
			return false
		}
	}
	return true
}

// Difference returns items of s missing from other.
func (s Set[T]) Difference(other Set[T]) Set[T] {
	out := Set[T]{}
	for it := range s {
		if !other.Has(it) {
			out[it] = struct{}{}
		}
	}
	return out
}

// Sorted returns the items in ascending order.
func (s Set[T]) Sorted() []T {
	out := make([]T, 0, len(s))
	for it := range s {
		out = append(out, it)
	}
	slices.Sort(out)
	return out
}

// Clone copies the set.
func (s Set[T]) Clone() Set[T] {
	out := make(Set[T], len(s))
	for it := range s {
		out[it] = struct{}{}
	}
	return out
}
