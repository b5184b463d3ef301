// Package gateway is the client side of the cash desk: a typed HTTP client for
// the parkyard API and a Register that mirrors the server-confirmed cash
// session for an operator's device.
package gateway

import (
	"github.com/parkyard/parkyard/internal/shared"
)

// Result is the outcome of a remote call: either a typed value or a
// classified error. Payloads are parsed into typed values at the boundary.
type Result[T any] struct {
	value T
	err   *shared.Error
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Err builds a failed result.
func Err[T any](kind shared.Kind, message string) Result[T] {
	return Result[T]{err: shared.NewError(kind, string(kind), message)}
}

// Fail wraps any error, keeping its classification when it has one.
func Fail[T any](err error) Result[T] {
	if e, ok := shared.AsError(err); ok {
		return Result[T]{err: e}
	}
	return Err[T](shared.KindInternal, err.Error())
}

// IsOk reports whether the call succeeded.
func (r Result[T]) IsOk() bool {
	return r.err == nil
}

// Value returns the value and whether it is valid.
func (r Result[T]) Value() (T, bool) {
	return r.value, r.err == nil
}

// Err returns the classified error, nil on success.
func (r Result[T]) Err() *shared.Error {
	return r.err
}

// Kind returns the error kind, empty on success.
func (r Result[T]) Kind() shared.Kind {
	if r.err == nil {
		return ""
	}
	return r.err.Kind
}

// Unwrap converts the result to the usual value, error pair.
func (r Result[T]) Unwrap() (T, error) {
	if r.err != nil {
		return r.value, r.err
	}
	return r.value, nil
}
