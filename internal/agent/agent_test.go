package agent_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/core/internal/agent"
	"github.com/agentcore/core/internal/compression"
	"github.com/agentcore/core/internal/conversation"
	"github.com/agentcore/core/internal/llm"
	"github.com/agentcore/core/internal/message"
	"github.com/agentcore/core/internal/tool"
)

// scriptedClient returns one canned *llm.Response per call, in order.
type scriptedClient struct {
	responses []*llm.Response
	call      int
}

func (s *scriptedClient) Chat(ctx context.Context, messages []message.Message, tools []llm.ToolDefinition, temperature *float64, conversationID string) (*llm.Response, error) {
	resp := s.responses[s.call]
	if s.call < len(s.responses)-1 {
		s.call++
	}
	return resp, nil
}

func (s *scriptedClient) ChatStream(ctx context.Context, messages []message.Message, tools []llm.ToolDefinition, temperature *float64, conversationID string) (<-chan llm.StreamChunk, <-chan error) {
	panic("not used")
}

func (s *scriptedClient) HealthCheck(ctx context.Context) bool { return true }
func (s *scriptedClient) Close() error                         { return nil }

type echoTool struct{}

func (echoTool) Info() tool.Info {
	return tool.Info{Name: "echo", Description: "echoes input", ParametersSchema: map[string]any{"type": "object"}}
}
func (echoTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	return "ok", nil
}

func newRegistry(t *testing.T) *tool.Registry {
	t.Helper()
	r := tool.NewRegistry()
	require.NoError(t, r.Register(echoTool{}))
	return r
}

func toolCallResponse(name, args string) *llm.Response {
	return &llm.Response{
		Choices: []llm.Choice{{
			Message: message.NewAssistantToolCalls("", []message.ToolCall{
				{ID: "call_1", Type: "function", Function: message.ToolCallFunc{Name: name, Arguments: args}},
			}),
			FinishReason: "tool_calls",
		}},
	}
}

func textResponse(text string) *llm.Response {
	return &llm.Response{Choices: []llm.Choice{{Message: message.NewAssistant(text), FinishReason: "stop"}}}
}

func TestChatSimpleTurn(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{textResponse("hello there")}}
	repo := conversation.NewInMemoryRepository()
	a := agent.New(client, repo, newRegistry(t), nil)

	resp, err := a.Chat(context.Background(), "hi", "c1", conversation.FormatPlain, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.AssistantMessage.Content)
	assert.Nil(t, resp.FirstToolCall)

	history, err := repo.GetHistory(context.Background(), "c1")
	require.NoError(t, err)
	// system, user, assistant
	require.Len(t, history, 3)
	assert.Equal(t, message.RoleUser, history[1].Role)
	assert.Equal(t, "hi", history[1].Content)
}

func TestChatSingleToolRoundTrip(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		toolCallResponse("echo", `{"q":"hi"}`),
		textResponse("done"),
	}}
	repo := conversation.NewInMemoryRepository()
	a := agent.New(client, repo, newRegistry(t), nil)

	resp, err := a.Chat(context.Background(), "use echo", "c1", conversation.FormatPlain, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "done", resp.AssistantMessage.Content)
	require.NotNil(t, resp.FirstToolCall)
	assert.Equal(t, "echo", resp.FirstToolCall.Function.Name)

	history, err := repo.GetHistory(context.Background(), "c1")
	require.NoError(t, err)
	var foundToolResult bool
	for _, m := range history {
		if m.Role == message.RoleTool {
			foundToolResult = true
			assert.Equal(t, "ok", m.Content)
		}
	}
	assert.True(t, foundToolResult)
}

// toolUntilEmptyToolsClient returns a tool call for every request that still
// carries a non-empty tool set, and a terminal text response once the
// caller requests with an empty tool set (the forced final call).
type toolUntilEmptyToolsClient struct{}

func (toolUntilEmptyToolsClient) Chat(ctx context.Context, messages []message.Message, tools []llm.ToolDefinition, temperature *float64, conversationID string) (*llm.Response, error) {
	if len(tools) == 0 {
		return textResponse("final answer"), nil
	}
	return toolCallResponse("echo", `{}`), nil
}

func (toolUntilEmptyToolsClient) ChatStream(ctx context.Context, messages []message.Message, tools []llm.ToolDefinition, temperature *float64, conversationID string) (<-chan llm.StreamChunk, <-chan error) {
	panic("not used")
}
func (toolUntilEmptyToolsClient) HealthCheck(ctx context.Context) bool { return true }
func (toolUntilEmptyToolsClient) Close() error                        { return nil }

func TestChatIterationCapForcing(t *testing.T) {
	client := toolUntilEmptyToolsClient{}
	repo := conversation.NewInMemoryRepository()
	a := agent.New(client, repo, newRegistry(t), nil)
	a.MaxToolIterations = 2

	resp, err := a.Chat(context.Background(), "loop", "c1", conversation.FormatPlain, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "final answer", resp.AssistantMessage.Content)
	assert.Empty(t, resp.AssistantMessage.ToolCalls)

	history, err := repo.GetHistory(context.Background(), "c1")
	require.NoError(t, err)
	toolResults := 0
	for _, m := range history {
		if m.Role == message.RoleTool {
			toolResults++
		}
	}
	assert.Equal(t, 2, toolResults)
}

func TestChatCompressionKicksIn(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{textResponse("summary text"), textResponse("final answer")}}
	repo := conversation.NewInMemoryRepository()
	compressor := compression.NewCompressor(client)
	a := agent.New(client, repo, newRegistry(t), compressor)

	ctx := context.Background()
	settings := conversation.CompressionSettings{Enabled: true, MessageThreshold: 2, KeepRecentMessages: 1, SummaryMaxTokens: 500, SummaryTemperature: 0.3}

	require.NoError(t, repo.InitConversation(ctx, "c1", "sys"))
	require.NoError(t, repo.SetCompressionSettings(ctx, "c1", settings))
	require.NoError(t, repo.AddMessages(ctx, "c1", []message.Message{
		message.NewUser("one"),
		message.NewAssistant("two"),
	}))

	resp, err := a.Chat(ctx, "trigger compression", "c1", conversation.FormatPlain, nil, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, resp.CompressionStats)
	assert.True(t, resp.CompressionStats.Compressed)
}

func TestChatSettingsChangeUpdatesSystemPrompt(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{textResponse("a"), textResponse("b")}}
	repo := conversation.NewInMemoryRepository()
	a := agent.New(client, repo, newRegistry(t), nil)
	ctx := context.Background()

	_, err := a.Chat(ctx, "hi", "c1", conversation.FormatPlain, nil, nil, nil)
	require.NoError(t, err)

	_, err = a.Chat(ctx, "hi again", "c1", conversation.FormatMarkdown, nil, nil, nil)
	require.NoError(t, err)

	history, err := repo.GetHistory(ctx, "c1")
	require.NoError(t, err)
	assert.Contains(t, history[0].Content, "Markdown")
}
