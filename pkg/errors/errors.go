package errors

import (
	"fmt"
)

// ParseError represents a project document that could not be decoded, with
// optional line metadata.
type ParseError struct {
	Path    string
	Line    int
	Message string
	Err     error
}

// NewParseError constructs a ParseError.
func NewParseError(path string, line int, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ParseError{Path: path, Line: line, Message: message, Err: err}
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}

	if e.Line > 0 {
		return fmt.Sprintf("parse error: %s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error: %s: %s", e.Path, e.Message)
}

// Unwrap exposes the underlying error.
func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError captures document field validation issues.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, message string, err error) error {
	return &ValidationError{Field: field, Message: message, Err: err}
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ExecutionError reports a node that did not build, naming the step that
// stopped it when one is known.
type ExecutionError struct {
	NodeID string
	Step   string
	Err    error
}

// NewExecutionError constructs an ExecutionError.
func NewExecutionError(nodeID, step string, err error) error {
	return &ExecutionError{NodeID: nodeID, Step: step, Err: err}
}

func (e *ExecutionError) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.NodeID != "" && e.Step != "":
		return fmt.Sprintf("execution error on node %s (%s): %v", e.NodeID, e.Step, e.Err)
	case e.NodeID != "":
		return fmt.Sprintf("execution error on node %s: %v", e.NodeID, e.Err)
	}
	return fmt.Sprintf("execution error: %v", e.Err)
}

// Unwrap exposes the root error.
func (e *ExecutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
