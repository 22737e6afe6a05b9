package agent_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/core/internal/agent"
	"github.com/agentcore/core/internal/conversation"
	"github.com/agentcore/core/internal/llm"
	"github.com/agentcore/core/internal/message"
)

// streamScriptedClient returns one canned stream per call to ChatStream, in
// order. Chat is unused by these tests.
type streamScriptedClient struct {
	streams []func() (<-chan llm.StreamChunk, <-chan error)
	call    int
}

func (s *streamScriptedClient) Chat(ctx context.Context, messages []message.Message, tools []llm.ToolDefinition, temperature *float64, conversationID string) (*llm.Response, error) {
	panic("not used")
}

func (s *streamScriptedClient) ChatStream(ctx context.Context, messages []message.Message, tools []llm.ToolDefinition, temperature *float64, conversationID string) (<-chan llm.StreamChunk, <-chan error) {
	build := s.streams[s.call]
	if s.call < len(s.streams)-1 {
		s.call++
	}
	return build()
}

func (s *streamScriptedClient) HealthCheck(ctx context.Context) bool { return true }
func (s *streamScriptedClient) Close() error                        { return nil }

func chunksStream(chunks ...llm.StreamChunk) func() (<-chan llm.StreamChunk, <-chan error) {
	return func() (<-chan llm.StreamChunk, <-chan error) {
		out := make(chan llm.StreamChunk, len(chunks))
		errs := make(chan error, 1)
		for _, c := range chunks {
			out <- c
		}
		close(out)
		close(errs)
		return out, errs
	}
}

func TestChatStreamToolCallRoundTrip(t *testing.T) {
	client := &streamScriptedClient{streams: []func() (<-chan llm.StreamChunk, <-chan error){
		chunksStream(
			llm.StreamChunk{ContentDelta: "Thinking "},
			llm.StreamChunk{ToolCallDeltas: []llm.ToolCallDelta{{Index: 0, ID: "call_1", Type: "function"}}},
			llm.StreamChunk{ToolCallDeltas: []llm.ToolCallDelta{{Index: 0, Name: "echo"}}},
			llm.StreamChunk{ToolCallDeltas: []llm.ToolCallDelta{{Index: 0, ArgumentsDelta: `{"q":"hi"}`}}, FinishReason: "tool_calls"},
		),
		chunksStream(
			llm.StreamChunk{ContentDelta: "done", FinishReason: "stop"},
		),
	}}
	repo := conversation.NewInMemoryRepository()
	a := agent.New(client, repo, newRegistry(t), nil)

	events := a.ChatStream(context.Background(), "use echo", "c1", conversation.FormatPlain, nil, nil)

	var seen []agent.StreamEvent
	for ev := range events {
		seen = append(seen, ev)
	}

	require.NotEmpty(t, seen)
	assert.Equal(t, agent.EventStart, seen[0].Type)
	assert.Equal(t, agent.EventDone, seen[len(seen)-1].Type)

	var sawContentThinking, sawToolCall, sawProcessing, sawToolResult, sawContentDone bool
	for _, ev := range seen {
		switch ev.Type {
		case agent.EventContent:
			if ev.Content == "Thinking " {
				sawContentThinking = true
			}
			if ev.Content == "done" {
				sawContentDone = true
			}
		case agent.EventToolCall:
			require.NotNil(t, ev.ToolCall)
			assert.Equal(t, "echo", ev.ToolCall.Function.Name)
			sawToolCall = true
		case agent.EventProcessing:
			sawProcessing = true
		case agent.EventToolResult:
			assert.Equal(t, "ok", ev.ToolResult)
			sawToolResult = true
		}
	}
	assert.True(t, sawContentThinking)
	assert.True(t, sawToolCall)
	assert.True(t, sawProcessing)
	assert.True(t, sawToolResult)
	assert.True(t, sawContentDone)

	history, err := repo.GetHistory(context.Background(), "c1")
	require.NoError(t, err)
	var foundToolResult bool
	for _, m := range history {
		if m.Role == message.RoleTool {
			foundToolResult = true
		}
	}
	assert.True(t, foundToolResult)
}

func TestChatStreamCancellationStopsWithoutDone(t *testing.T) {
	blocking := func() (<-chan llm.StreamChunk, <-chan error) {
		out := make(chan llm.StreamChunk)
		errs := make(chan error)
		return out, errs
	}
	client := &streamScriptedClient{streams: []func() (<-chan llm.StreamChunk, <-chan error){blocking}}
	repo := conversation.NewInMemoryRepository()
	a := agent.New(client, repo, newRegistry(t), nil)

	ctx, cancel := context.WithCancel(context.Background())
	events := a.ChatStream(ctx, "hi", "c1", conversation.FormatPlain, nil, nil)

	first := <-events
	assert.Equal(t, agent.EventStart, first.Type)

	cancel()

	timeout := time.After(2 * time.Second)
	for ev := range events {
		assert.NotEqual(t, agent.EventDone, ev.Type)
		select {
		case <-timeout:
			t.Fatal("channel did not close after cancellation")
		default:
		}
	}
}
