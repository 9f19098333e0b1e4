package graph

import (
	"errors"
	"fmt"
)

// ErrorCode identifies well-known domain error categories used across the
// graph and build layers.
type ErrorCode string

const (
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeDuplicate    ErrorCode = "DUPLICATE_ID"
	ErrCodeDanglingEdge ErrorCode = "DANGLING_EDGE"
	ErrCodeSelfLoop     ErrorCode = "SELF_LOOP"
	ErrCodeCycle        ErrorCode = "CIRCULAR_DEPENDENCY"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeMissing      ErrorCode = "MISSING_REQUIRED"
	ErrCodeLocked       ErrorCode = "GRAPH_LOCKED"
	ErrCodeCancelled    ErrorCode = "CANCELLED"
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
)

// Sentinel errors usable with errors.Is. Matching compares code and message
// only, so contextual metadata does not affect equality.
var (
	ErrCycleDetected = &DomainError{Code: ErrCodeCycle, Message: "circular dependency detected"}
	ErrGraphLocked   = &DomainError{Code: ErrCodeLocked, Message: "graph is locked by an active build"}
	ErrNodeNotFound  = &DomainError{Code: ErrCodeNotFound, Message: "node not found"}
)

// DomainError represents a typed error enriched with contextual data while
// remaining free from infrastructure dependencies.
type DomainError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if detail := e.detail(); detail != "" {
		msg += " (" + detail + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *DomainError) detail() string {
	switch e.Code {
	case ErrCodeCycle:
		if nodes, ok := e.Context["nodes"].([]string); ok {
			return fmt.Sprintf("nodes %v", nodes)
		}
	case ErrCodeDanglingEdge, ErrCodeSelfLoop:
		from, _ := e.Context["from"].(string)
		to, _ := e.Context["to"].(string)
		return fmt.Sprintf("%s -> %s", from, to)
	}
	if id, ok := e.Context["id"].(string); ok {
		return "id " + id
	}
	if field, ok := e.Context["field"].(string); ok {
		return "field " + field
	}
	return ""
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As usage.
func (e *DomainError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is allows errors.Is comparisons against other DomainError values.
func (e *DomainError) Is(target error) bool {
	var domainErr *DomainError
	if !errors.As(target, &domainErr) {
		return false
	}
	return e.Code == domainErr.Code && e.Message == domainErr.Message
}

// WithContext clones the error with additional contextual metadata.
func (e *DomainError) WithContext(ctx map[string]interface{}) *DomainError {
	if e == nil {
		return nil
	}
	merged := make(map[string]interface{}, len(e.Context)+len(ctx))
	for k, v := range e.Context {
		merged[k] = v
	}
	for k, v := range ctx {
		merged[k] = v
	}
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Cause:   e.Cause,
		Context: merged,
	}
}

// CodeOf returns the ErrorCode of the first DomainError in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code, true
	}
	return "", false
}

// CycleNodes extracts the ids of nodes that participate in a detected cycle.
func CycleNodes(err error) []string {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != ErrCodeCycle {
		return nil
	}
	nodes, _ := domainErr.Context["nodes"].([]string)
	out := make([]string, len(nodes))
	copy(out, nodes)
	return out
}

// NewCycleError reports the nodes lying on at least one cycle.
func NewCycleError(nodes []string) *DomainError {
	ids := make([]string, len(nodes))
	copy(ids, nodes)
	return ErrCycleDetected.WithContext(map[string]interface{}{"nodes": ids})
}

// NewNotFoundError reports an unknown node id.
func NewNotFoundError(id string) *DomainError {
	return ErrNodeNotFound.WithContext(map[string]interface{}{"id": id})
}

func newDomainError(code ErrorCode, message string, cause error, context map[string]interface{}) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: context,
	}
}

func newValidationError(message string, context map[string]interface{}) *DomainError {
	return newDomainError(ErrCodeValidation, message, nil, context)
}

func newDuplicateError(identifier string) *DomainError {
	return newDomainError(ErrCodeDuplicate, "duplicate node identifier", nil, map[string]interface{}{
		"id": identifier,
	})
}

func newMissingFieldError(field string) *DomainError {
	return newDomainError(ErrCodeMissing, "missing required field", nil, map[string]interface{}{
		"field": field,
	})
}

func newDanglingEdgeError(from, to, missing string) *DomainError {
	return newDomainError(ErrCodeDanglingEdge, "edge references unknown node", nil, map[string]interface{}{
		"from":    from,
		"to":      to,
		"missing": missing,
	})
}

func newSelfLoopError(id string) *DomainError {
	return newDomainError(ErrCodeSelfLoop, "edge connects a node to itself", nil, map[string]interface{}{
		"from": id,
		"to":   id,
	})
}
