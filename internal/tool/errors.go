package tool

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateTool  = errors.New("tool already registered")
	ErrToolNotFound   = errors.New("tool not found")
	ErrArgumentDecode = errors.New("invalid tool arguments")
	ErrToolExecution  = errors.New("tool execution failed")
)

// CallError reports a failed tool call. Kind is one of the Err* sentinels;
// errors.Is matches both the kind and the cause.
type CallError struct {
	Kind   error
	Tool   string
	CallID string
	Err    error
}

func (e *CallError) Error() string {
	msg := fmt.Sprintf("%v: %s", e.Kind, e.Tool)
	if e.CallID != "" {
		msg += fmt.Sprintf(" (call %s)", e.CallID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CallError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// DecodeError marks err as an argument decoding failure. Tools without a
// Validator use it so the executor reports ErrArgumentDecode rather than
// ErrToolExecution.
func DecodeError(err error) error {
	return fmt.Errorf("%w: %w", ErrArgumentDecode, err)
}
