// Copyright 2024-2025, Plasma Labs, Inc.
// For license information, see https://github.com/plasmalabs/exitgame/blob/main/LICENSE

// Package option provides a tagged optional value, used wherever a zero
// value would be ambiguous with a legitimately absent one.
package option

// Option wraps a value that may be absent.
type Option[T any] struct {
	value *T
}

// Some wraps an existing value.
func Some[T any](value T) Option[T] {
	return Option[T]{value: &value}
}

// None returns the absent value.
func None[T any]() Option[T] {
	return Option[T]{}
}

func (o Option[T]) IsSome() bool {
	return o.value != nil
}

func (o Option[T]) IsNone() bool {
	return o.value == nil
}

// Unwrap returns the contained value. It panics when called on None;
// callers must check IsNone first.
func (o Option[T]) Unwrap() T {
	return *o.value
}

// UnwrapOr returns the contained value, or fallback when absent.
func (o Option[T]) UnwrapOr(fallback T) T {
	if o.value == nil {
		return fallback
	}
	return *o.value
}
