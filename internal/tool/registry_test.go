package tool_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/core/internal/tool"
)

type echoTool struct{}

func (echoTool) Info() tool.Info {
	return tool.Info{Name: "echo", Description: "echoes its input"}
}

func (echoTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	return argsJSON, nil
}

func TestRegistryRegisterAndExecute(t *testing.T) {
	r := tool.NewRegistry()
	require.NoError(t, r.Register(echoTool{}))

	assert.Equal(t, 1, r.Count())
	assert.Equal(t, []string{"echo"}, r.GetToolNames())

	result := r.ExecuteTool(context.Background(), "echo", `{"x":1}`)
	assert.Equal(t, `{"x":1}`, result)
}

func TestRegistryDuplicateNameRejected(t *testing.T) {
	r := tool.NewRegistry()
	require.NoError(t, r.Register(echoTool{}))
	err := r.Register(echoTool{})
	assert.Error(t, err)
}

func TestRegistryUnknownToolReturnsErrorResult(t *testing.T) {
	r := tool.NewRegistry()
	result := r.ExecuteTool(context.Background(), "missing", `{}`)
	assert.Contains(t, result, "Ошибка")
}

func TestRegistryGetAllToolsPreservesRegistrationOrder(t *testing.T) {
	r := tool.NewRegistry()
	require.NoError(t, r.Register(namedTool{"b"}))
	require.NoError(t, r.Register(namedTool{"a"}))

	defs := r.GetAllTools()
	require.Len(t, defs, 2)
	assert.Equal(t, "b", defs[0].Function.Name)
	assert.Equal(t, "a", defs[1].Function.Name)
}

type namedTool struct{ name string }

func (n namedTool) Info() tool.Info {
	return tool.Info{Name: n.name, Description: "test"}
}

func (namedTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	return "", nil
}
