package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseErrorWrapsUnderlying(t *testing.T) {
	t.Parallel()

	underlying := fmt.Errorf("unexpected token")
	err := NewParseError("project.yaml", 12, underlying)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, "project.yaml", parseErr.Path)
	require.Equal(t, 12, parseErr.Line)
	require.True(t, stdErrors.Is(err, underlying))
	require.Equal(t, "parse error: project.yaml:12: unexpected token", err.Error())
}

func TestParseErrorWithoutLine(t *testing.T) {
	t.Parallel()

	err := NewParseError("project.json", 0, stdErrors.New("eof"))
	require.Equal(t, "parse error: project.json: eof", err.Error())
}

func TestValidationErrorCarriesField(t *testing.T) {
	t.Parallel()

	err := NewValidationError("nodes[1].id", "nodes[1].id failed validation for tag 'node_id'", nil)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "nodes[1].id", validationErr.Field)
	require.Contains(t, err.Error(), "failed validation")
}

func TestExecutionErrorIncludesNodeContext(t *testing.T) {
	t.Parallel()

	underlying := stdErrors.New("exit status 2")
	err := NewExecutionError("zlib", "build", underlying)

	var executionErr *ExecutionError
	require.ErrorAs(t, err, &executionErr)
	require.Equal(t, "zlib", executionErr.NodeID)
	require.Equal(t, "build", executionErr.Step)
	require.True(t, stdErrors.Is(err, underlying))
	require.Equal(t, "execution error on node zlib (build): exit status 2", err.Error())

	require.Equal(t, "execution error on node zlib: exit status 2", NewExecutionError("zlib", "", underlying).Error())
	require.Equal(t, "execution error: exit status 2", NewExecutionError("", "", underlying).Error())
}
