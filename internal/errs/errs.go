// Package errs defines the closed error taxonomy shared by every stage of
// the query engine: tokenizing, parsing, planning, optimizing and
// execution all fail through the same small set of codes so a caller can
// react uniformly regardless of which component raised the error.
package errs

import "fmt"

// Code is one of the six failure categories the engine distinguishes.
type Code int

const (
	// InvalidInput covers malformed SQL, unknown keywords/operators/functions
	// and type-parse failures (e.g. an unrecognized CAST target type).
	InvalidInput Code = iota
	// NotFound covers an unknown table, an unknown column referenced by
	// name, or a stream that was read past exhaustion at a non-optional
	// point.
	NotFound
	// OutOfRange covers an out-of-bounds ColumnIndex or numeric literal
	// overflow during parsing.
	OutOfRange
	// TypeMismatch covers operand type mismatches in binary expressions,
	// non-boolean predicates, and non-numeric aggregate targets.
	TypeMismatch
	// Unimplemented covers requested features outside v1, such as JOINs or
	// an unsupported CAST pair.
	Unimplemented
	// Internal covers invariant violations, unexpected runtime type ids and
	// I/O failures surfaced from the columnar adapter.
	Internal
)

// String returns a lowercase, stable name for the code, used in error
// messages and tests.
func (c Code) String() string {
	switch c {
	case InvalidInput:
		return "invalid_input"
	case NotFound:
		return "not_found"
	case OutOfRange:
		return "out_of_range"
	case TypeMismatch:
		return "type_mismatch"
	case Unimplemented:
		return "unimplemented"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by every fallible function in
// the engine. Op identifies the failing component (e.g. "tokenizer",
// "scan:orders", "expr:Add") so a user-visible failure message can point at
// where things went wrong, per spec.md's error-handling design.
type Error struct {
	Code    Code
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Message)
}

// Unwrap allows errors.Is/errors.As to see through to the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an *Error with no wrapped cause.
func New(code Code, op, message string) *Error {
	return &Error{Code: code, Op: op, Message: message}
}

// Wrap builds an *Error that wraps an existing error as its cause.
func Wrap(code Code, op, message string, err error) *Error {
	return &Error{Code: code, Op: op, Message: message, Err: err}
}

// Is reports whether err is an *Error carrying the given code.
func Is(err error, code Code) bool {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Code == code
	}
	return false
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
