package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool() *FunctionTool {
	return NewFunctionTool(
		"echo",
		"Echo a message back",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"message": map[string]any{"type": "string"},
			},
			"required": []string{"message"},
		},
		func(_ context.Context, args map[string]any) (string, error) {
			return args["message"].(string), nil
		},
	)
}

func TestFunctionToolCall(t *testing.T) {
	out, err := echoTool().Call(context.Background(), map[string]any{"message": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestFunctionToolValidation(t *testing.T) {
	_, err := echoTool().Call(context.Background(), map[string]any{})
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
	assert.Equal(t, "echo", toolErr.Tool)

	// Wrong type is also a validation failure.
	_, err = echoTool().Call(context.Background(), map[string]any{"message": 42})
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
}

func TestFunctionToolExecutionError(t *testing.T) {
	failing := NewFunctionTool("boom", "always fails", map[string]any{"type": "object"},
		func(_ context.Context, _ map[string]any) (string, error) {
			return "", errors.New("backend down")
		})

	_, err := failing.Call(context.Background(), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.Contains(t, toolErr.Message, "backend down")
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry(echoTool())

	_, ok := r.Lookup("echo")
	assert.True(t, ok)

	_, ok = r.Lookup("missing_tool")
	assert.False(t, ok)

	assert.Equal(t, []string{"echo"}, r.Names())

	defs := r.Definitions()
	require.Len(t, defs, 1)
	assert.Equal(t, "echo", defs[0].Name)
	assert.NotEmpty(t, defs[0].Description)
}
