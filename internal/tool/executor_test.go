package tool_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/core/internal/message"
	"github.com/agentcore/core/internal/tool"
)

type failingTool struct{}

func (failingTool) Info() tool.Info {
	return tool.Info{Name: "fails", Description: "always errors"}
}

func (failingTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	return "", errors.New("boom")
}

func TestExecutorExecuteToolCallWrapsFailureAsContent(t *testing.T) {
	r := tool.NewRegistry()
	require.NoError(t, r.Register(failingTool{}))
	exec := tool.NewExecutor(r)

	call := message.ToolCall{ID: "call_1", Function: message.ToolCallFunc{Name: "fails", Arguments: "{}"}}
	msg := exec.ExecuteToolCall(context.Background(), call, "conv-1")

	assert.Equal(t, message.RoleTool, msg.Role)
	assert.Equal(t, "call_1", msg.ToolCallID)
	assert.Contains(t, msg.Content, "Ошибка")
}

func TestExecutorNormalizeFillsMissingType(t *testing.T) {
	call := message.ToolCall{ID: "1", Function: message.ToolCallFunc{Name: "x"}}
	normalized := tool.Normalize(call)
	assert.Equal(t, "function", normalized.Type)
}

func TestExecutorExecuteToolCallsPreservesOrder(t *testing.T) {
	r := tool.NewRegistry()
	require.NoError(t, r.Register(echoTool{}))
	exec := tool.NewExecutor(r)

	calls := []message.ToolCall{
		{ID: "1", Function: message.ToolCallFunc{Name: "echo", Arguments: "first"}},
		{ID: "2", Function: message.ToolCallFunc{Name: "echo", Arguments: "second"}},
	}
	results := exec.ExecuteToolCalls(context.Background(), calls, "conv-1")

	require.Len(t, results, 2)
	assert.Equal(t, "first", results[0].Content)
	assert.Equal(t, "second", results[1].Content)
	assert.Equal(t, "1", results[0].ToolCallID)
	assert.Equal(t, "2", results[1].ToolCallID)
}
