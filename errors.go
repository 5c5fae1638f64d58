package reactor

import (
	"errors"
	"fmt"
)

// Error represents a structured scheduler error with reactor/trigger context.
type Error struct {
	Op      string    // Operation that failed (e.g., "SCHEDULE", "ADVANCE_TAG")
	Reactor string    // Reactor name (empty if not applicable)
	Trigger string    // Trigger name (empty if not applicable)
	Code    ErrorCode // High-level error category
	Msg     string    // Human-readable message
	Inner   error      // Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string

	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}

	if e.Reactor != "" {
		parts = append(parts, fmt.Sprintf("reactor=%s", e.Reactor))
	}

	if e.Trigger != "" {
		parts = append(parts, fmt.Sprintf("trigger=%s", e.Trigger))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}

	if len(parts) > 0 {
		return fmt.Sprintf("reactor: %s (%s)", msg, parts[0])
	}

	return fmt.Sprintf("reactor: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is provides errors.Is support, including against the legacy SchedulerError constants.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}

	if se, ok := target.(SchedulerError); ok {
		return e.Code == ErrorCode(se)
	}

	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}

	return false
}

// ErrorCode represents high-level error categories.
type ErrorCode string

const (
	ErrCodeInvariantViolation   ErrorCode = "invariant violation"
	ErrCodeAllocationFailed     ErrorCode = "allocation failed"
	ErrCodeQueueFull            ErrorCode = "queue full"
	ErrCodeDropped              ErrorCode = "scheduling dropped"
	ErrCodeFederationDisconnect ErrorCode = "federation disconnected"
	ErrCodeInvalidTrigger       ErrorCode = "invalid trigger"
	ErrCodeRefcountUnderflow    ErrorCode = "token refcount underflow"
	ErrCodeTimeout              ErrorCode = "timeout"
	ErrCodeNotImplemented       ErrorCode = "not implemented"
)

// SchedulerError is a legacy sentinel error type, kept for simple errors.Is
// comparisons against call sites that don't need the full *Error context.
type SchedulerError string

func (e SchedulerError) Error() string {
	return string(e)
}

const (
	ErrLoopTerminated    SchedulerError = "scheduler loop terminated"
	ErrInvalidTrigger    SchedulerError = "invalid trigger"
	ErrStopRequested     SchedulerError = "stop requested"
	ErrRefcountUnderflow SchedulerError = "token refcount underflow"
	ErrAllocationFailed  SchedulerError = "allocation failed"
)

// Error constructors

// NewError creates a new structured error.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{
		Op:   op,
		Code: code,
		Msg:  msg,
	}
}

// NewReactorError creates a new reactor-scoped error.
func NewReactorError(op, reactor string, code ErrorCode, msg string) *Error {
	return &Error{
		Op:      op,
		Reactor: reactor,
		Code:    code,
		Msg:     msg,
	}
}

// NewTriggerError creates a new trigger-scoped error.
func NewTriggerError(op, reactor, trigger string, code ErrorCode, msg string) *Error {
	return &Error{
		Op:      op,
		Reactor: reactor,
		Trigger: trigger,
		Code:    code,
		Msg:     msg,
	}
}

// WrapError wraps an existing error with scheduler context.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}

	if re, ok := inner.(*Error); ok {
		return &Error{
			Op:      op,
			Reactor: re.Reactor,
			Trigger: re.Trigger,
			Code:    re.Code,
			Msg:     re.Msg,
			Inner:   re.Inner,
		}
	}

	code := ErrCodeInvariantViolation
	if se, ok := inner.(SchedulerError); ok {
		code = ErrorCode(se)
	}

	return &Error{
		Op:    op,
		Code:  code,
		Msg:   inner.Error(),
		Inner: inner,
	}
}

// IsCode checks if an error matches a specific error code.
func IsCode(err error, code ErrorCode) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}
