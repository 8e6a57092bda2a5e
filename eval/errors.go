package eval

import (
	"fmt"

	"github.com/sonlang/son/value"
)

// MessageNotUnderstoodError reports that no primitive, SON method,
// value-family selector, or bridge entry matched a send.
type MessageNotUnderstoodError struct {
	Receiver value.Value
	Selector string
}

func (e *MessageNotUnderstoodError) Error() string {
	return fmt.Sprintf("%s does not understand #%s", e.Receiver.Kind.String(), e.Selector)
}

// ArgumentError reports an arity or value-kind mismatch in a send or
// primitive invocation.
type ArgumentError struct {
	Reason string
}

func (e *ArgumentError) Error() string { return e.Reason }

// SonError is the catch-all for semantic failures that are neither a
// variable lookup miss, a message-not-understood, nor an argument
// mismatch: divide-by-zero, ^ outside a method, a local return escaping a
// block, a malformed method-def or block literal, an invalid primitive
// tag, or a wrapped host/bridge failure.
type SonError struct {
	Reason string
}

func (e *SonError) Error() string { return e.Reason }

func sonErrorf(format string, args ...any) *SonError {
	return &SonError{Reason: fmt.Sprintf(format, args...)}
}

func argErrorf(format string, args ...any) *ArgumentError {
	return &ArgumentError{Reason: fmt.Sprintf(format, args...)}
}
