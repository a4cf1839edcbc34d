// Package fn holds the generic building blocks the extraction pipelines
// are composed from.
package fn

import "errors"

var errNilErr = errors.New("fn: failed result without error")

// Result carries either a value or the error that prevented it.
type Result[T any] struct {
	val T
	err error
}

// Ok wraps a value.
func Ok[T any](v T) Result[T] { return Result[T]{val: v} }

// Err wraps a failure. A nil err still yields a failed Result.
func Err[T any](err error) Result[T] {
	if err == nil {
		err = errNilErr
	}
	return Result[T]{err: err}
}

// FromPair turns a (value, error) return into a Result.
func FromPair[T any](v T, err error) Result[T] {
	if err != nil {
		return Err[T](err)
	}
	return Ok(v)
}

func (r Result[T]) IsOk() bool  { return r.err == nil }
func (r Result[T]) IsErr() bool { return r.err != nil }

// Unwrap returns the value and error.
func (r Result[T]) Unwrap() (T, error) { return r.val, r.err }

// Collect gathers values in order, or returns the error of the first
// failed result.
func Collect[T any](results []Result[T]) Result[[]T] {
	out := make([]T, 0, len(results))
	for _, r := range results {
		if r.err != nil {
			return Err[[]T](r.err)
		}
		out = append(out, r.val)
	}
	return Ok(out)
}
