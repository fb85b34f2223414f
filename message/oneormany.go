// Package message defines the canonical, provider-agnostic chat message and
// content model shared by every completion model adapter.
package message

import "errors"

// ErrEmpty is returned when a OneOrMany is constructed from zero elements.
var ErrEmpty = errors.New("message: at least one element is required")

// OneOrMany is a non-empty ordered sequence. There is no exported way to
// build one with zero elements: NewOneOrMany requires a first element and
// FromSlice validates a slice at construction time, so callers can treat
// First() as total.
type OneOrMany[T any] struct {
	first T
	rest  []T
}

// One wraps a single value.
func One[T any](v T) OneOrMany[T] {
	return OneOrMany[T]{first: v}
}

// NewOneOrMany builds a OneOrMany from a first element plus any number of
// additional elements, preserving order.
func NewOneOrMany[T any](first T, rest ...T) OneOrMany[T] {
	return OneOrMany[T]{first: first, rest: rest}
}

// FromSlice validates that items is non-empty and wraps it, preserving order.
func FromSlice[T any](items []T) (OneOrMany[T], error) {
	var zero OneOrMany[T]
	if len(items) == 0 {
		return zero, ErrEmpty
	}
	return OneOrMany[T]{first: items[0], rest: append([]T(nil), items[1:]...)}, nil
}

// First returns the first element.
func (o OneOrMany[T]) First() T { return o.first }

// Rest returns the elements after the first, possibly empty.
func (o OneOrMany[T]) Rest() []T { return o.rest }

// Len returns the total number of elements (always >= 1).
func (o OneOrMany[T]) Len() int { return 1 + len(o.rest) }

// Slice returns all elements in order as a fresh slice.
func (o OneOrMany[T]) Slice() []T {
	out := make([]T, 0, o.Len())
	out = append(out, o.first)
	out = append(out, o.rest...)
	return out
}

// Append returns a new OneOrMany with v appended.
func (o OneOrMany[T]) Append(v T) OneOrMany[T] {
	rest := make([]T, 0, len(o.rest)+1)
	rest = append(rest, o.rest...)
	rest = append(rest, v)
	return OneOrMany[T]{first: o.first, rest: rest}
}
