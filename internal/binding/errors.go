package binding

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/roach88/bindery/internal/dom"
)

// Error is returned when applying bindings fails.
//
// Every Error aborts the enclosing ApplyBindings call. There is no partial
// success: handlers that already ran on the failing node keep their
// effects, nothing after them runs.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Binding names the binding being processed, when known.
	Binding string

	// Expression is the source text of that binding, when known.
	Expression string

	// Path lists the bindings on the ordering stack (cycle errors only).
	Path []string

	// Node is the node being bound.
	Node *html.Node

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes binding errors.
type ErrorCode string

const (
	// ErrCodeCyclicDependency indicates bindings on one node order after
	// each other.
	ErrCodeCyclicDependency ErrorCode = "CYCLIC_DEPENDENCY"

	// ErrCodeDoubleBinding indicates provider-discovered bindings were
	// applied to an already bound node.
	ErrCodeDoubleBinding ErrorCode = "DOUBLE_BINDING"

	// ErrCodeConflict indicates two bindings on one node both claimed
	// control of its descendants.
	ErrCodeConflict ErrorCode = "CONFLICT"

	// ErrCodeUnsupported indicates a binding or event the node cannot
	// support.
	ErrCodeUnsupported ErrorCode = "UNSUPPORTED"

	// ErrCodeHandler indicates a handler or binding accessor failed.
	ErrCodeHandler ErrorCode = "HANDLER"

	// ErrCodeInvalidRoot indicates ApplyBindings was given no usable root.
	ErrCodeInvalidRoot ErrorCode = "INVALID_ROOT"
)

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Node != nil {
		fmt.Fprintf(&b, " (node=%s)", dom.Path(e.Node))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// hasCode walks the wrap chain looking for an Error with the given code.
// A HANDLER error may wrap a more specific Error raised by a nested
// ApplyBindings call, so the first Error found is not enough.
func hasCode(err error, code ErrorCode) bool {
	for err != nil {
		var be *Error
		if !errors.As(err, &be) {
			return false
		}
		if be.Code == code {
			return true
		}
		err = be.Err
	}
	return false
}

// IsCycleError reports whether err is or wraps a cyclic dependency error.
func IsCycleError(err error) bool {
	return hasCode(err, ErrCodeCyclicDependency)
}

// IsDoubleBindingError reports whether err is or wraps a double binding
// error.
func IsDoubleBindingError(err error) bool {
	return hasCode(err, ErrCodeDoubleBinding)
}

// IsConflictError reports whether err is or wraps a descendant-control
// conflict.
func IsConflictError(err error) bool {
	return hasCode(err, ErrCodeConflict)
}

// IsUnsupportedError reports whether err is or wraps an unsupported
// binding or event error.
func IsUnsupportedError(err error) bool {
	return hasCode(err, ErrCodeUnsupported)
}

// IsHandlerError reports whether err is or wraps a handler failure.
func IsHandlerError(err error) bool {
	return hasCode(err, ErrCodeHandler)
}

// handlerError annotates a failure raised while processing one binding.
func handlerError(n *html.Node, name, expr string, cause error) *Error {
	if expr == "" {
		expr = "<value>"
	}
	return &Error{
		Code:       ErrCodeHandler,
		Message:    fmt.Sprintf("unable to process binding %q", name+": "+expr),
		Binding:    name,
		Expression: expr,
		Node:       n,
		Err:        cause,
	}
}

// PanicError carries a value recovered from a panicking handler or
// accessor.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	if err, ok := e.Value.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// recovered converts a recovered panic value into an error.
func recovered(v any) error {
	if err, ok := v.(error); ok {
		var be *Error
		if errors.As(err, &be) {
			return err
		}
	}
	return &PanicError{Value: v}
}
