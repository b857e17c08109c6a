package contract

import (
	"errors"
	"fmt"
)

var (
	ErrModelInvoke = errors.New("model invoke failed")
	ErrValidation  = errors.New("validation failed")
	ErrUnknownTool = errors.New("unknown tool")
	ErrFatalTool   = errors.New("fatal tool error")
)

// ErrorKind classifies a tool failure for the loop's error policy.
type ErrorKind string

const (
	ErrKindValidation ErrorKind = "validation" // never retried, never reaches an adapter
	ErrKindTransient  ErrorKind = "transient"  // retried with backoff, then "source unavailable"
	ErrKindFatal      ErrorKind = "fatal"      // aborts the session
)

// ToolError is the structured error half of a tool invocation result.
type ToolError struct {
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func NewValidationError(format string, args ...any) *ToolError {
	return &ToolError{Kind: ErrKindValidation, Message: fmt.Sprintf(format, args...)}
}

func NewTransientError(format string, args ...any) *ToolError {
	return &ToolError{Kind: ErrKindTransient, Message: fmt.Sprintf(format, args...), Retryable: true}
}

func NewFatalError(format string, args ...any) *ToolError {
	return &ToolError{Kind: ErrKindFatal, Message: fmt.Sprintf(format, args...)}
}

// AsToolError classifies an arbitrary handler error. A *ToolError passes
// through unchanged; context cancellation and deadline are transient;
// anything else defaults to transient so the retry policy gets a chance.
func AsToolError(err error) *ToolError {
	if err == nil {
		return nil
	}
	var te *ToolError
	if errors.As(err, &te) {
		return te
	}
	if errors.Is(err, ErrValidation) {
		return &ToolError{Kind: ErrKindValidation, Message: err.Error()}
	}
	return &ToolError{Kind: ErrKindTransient, Message: err.Error(), Retryable: true}
}
