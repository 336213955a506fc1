// Package result holds the success-or-typed-failure values returned by the
// clinic orchestrators. Business-rule outcomes travel as Results; infrastructure
// faults travel as plain Go errors alongside them.
package result

import "fmt"

// Failure is a stable machine code plus a human readable message.
type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (f Failure) String() string {
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

// Result carries either a value or a Failure.
type Result[T any] struct {
	value   T
	failure *Failure
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Fail builds a failed Result of any value type.
func Fail[T any](code, message string) Result[T] {
	return Result[T]{failure: &Failure{Code: code, Message: message}}
}

// FromFailure wraps an existing failure; a nil failure yields the zero success.
func FromFailure[T any](f *Failure) Result[T] {
	return Result[T]{failure: f}
}

// From converts a value-less failure into a typed Result.
func From[T any](r Empty) Result[T] {
	if r.failure == nil {
		var zero T
		return Ok(zero)
	}
	return Result[T]{failure: r.failure}
}

// IsOK reports whether the operation succeeded.
func (r Result[T]) IsOK() bool { return r.failure == nil }

// Value returns the wrapped value; it is the zero value for a failure.
func (r Result[T]) Value() T { return r.value }

// Failure returns the failure, or nil on success.
func (r Result[T]) Failure() *Failure { return r.failure }

// Code returns the failure code, or "" on success.
func (r Result[T]) Code() string {
	if r.failure == nil {
		return ""
	}
	return r.failure.Code
}

// Empty is the value-less Result returned by cancel and delete operations.
type Empty struct {
	failure *Failure
}

// Success returns a value-less success.
func Success() Empty { return Empty{} }

// Failed returns a value-less failure with the given code.
func Failed(code, message string) Empty {
	return Empty{failure: &Failure{Code: code, Message: message}}
}

// FailedWith wraps an existing failure; a nil failure is a success.
func FailedWith(f *Failure) Empty {
	return Empty{failure: f}
}

// IsOK reports whether the operation succeeded.
func (r Empty) IsOK() bool { return r.failure == nil }

// Failure returns the failure, or nil on success.
func (r Empty) Failure() *Failure { return r.failure }

// Code returns the failure code, or "" on success.
func (r Empty) Code() string {
	if r.failure == nil {
		return ""
	}
	return r.failure.Code
}
