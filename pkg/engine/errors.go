package engine

import (
	"errors"
	"fmt"
)

// ErrorClass classifies an engine failure by where it originated. The
// classification exists for internal handling and tests; by the time a
// failure reaches a TaskResult it has been rendered to text.
type ErrorClass string

const (
	// ErrorClassCondition marks a condition-evaluation failure, such as a
	// spawn or IO error while probing. Distinct from a condition that
	// legitimately evaluates false.
	ErrorClassCondition ErrorClass = "condition"

	// ErrorClassModule marks a business failure inside a module apply:
	// non-zero exit, provisioning rejection, undecodable process output.
	ErrorClassModule ErrorClass = "module"

	// ErrorClassLookup marks a path traversal failure.
	ErrorClassLookup ErrorClass = "lookup"

	// ErrorClassInternal marks driver-level failures.
	ErrorClassInternal ErrorClass = "internal"
)

// EngineError is a classified error with optional context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the failure classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable failure message.
	Message string `json:"message"`

	// Operation is the operation in flight when the failure occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying cause.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}
	if e.Operation != "" {
		return fmt.Sprintf("[%s] %s (operation=%s)", e.Class, msg, e.Operation)
	}
	return fmt.Sprintf("[%s] %s", e.Class, msg)
}

// Unwrap returns the underlying cause for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// WithOperation adds operation context to the error.
func (e *EngineError) WithOperation(op string) *EngineError {
	e.Operation = op
	return e
}

// NewConditionError creates a condition-evaluation error.
func NewConditionError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassCondition, Message: message, Err: err}
}

// NewModuleFailure creates a module-classified EngineError. Module applies
// normally return *ModuleError; this wraps failures raised outside a
// module's own error path.
func NewModuleFailure(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassModule, Message: message, Err: err}
}

// NewInternalError creates a driver-level error.
func NewInternalError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassInternal, Message: message, Err: err}
}

// ClassOf returns the classification of err. Lookup errors classify as
// ErrorClassLookup; errors without a class default to ErrorClassInternal.
func ClassOf(err error) ErrorClass {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class
	}
	var le *LookupError
	if errors.As(err, &le) {
		return ErrorClassLookup
	}
	return ErrorClassInternal
}
