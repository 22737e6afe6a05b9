// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package llm defines the contract the Agent uses to talk to an external
// model provider, and the normalized response/streaming shapes every
// provider client must produce regardless of its wire format.
package llm

import (
	"context"

	"github.com/agentcore/core/internal/message"
)

// ToolDefinition is the JSON-Schema-shaped description of a callable tool,
// sent alongside every chat request so the model knows what it can invoke.
type ToolDefinition struct {
	Type     string       `json:"type"` // "function"
	Function FunctionSpec `json:"function"`
}

type FunctionSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Choice mirrors a single completion choice from the provider.
type Choice struct {
	Message      message.Message `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

// Response is the normalized result of a one-shot chat call.
type Response struct {
	Choices []Choice       `json:"choices"`
	Usage   message.Usage  `json:"usage"`
}

// FirstMessage returns the first choice's message, or ErrEmptyResponse
// if the provider returned no choices - the spec's "Provider returns no
// choice" error kind.
func (r *Response) FirstMessage() (message.Message, error) {
	if len(r.Choices) == 0 {
		return message.Message{}, ErrEmptyResponse
	}
	return r.Choices[0].Message, nil
}

// StreamChunk is one incremental event from a streaming chat call. Only the
// fields relevant to the chunk's content are populated.
type StreamChunk struct {
	// ContentDelta is an incremental text fragment, if any.
	ContentDelta string

	// ToolCallDeltas are keyed by the model-assigned integer index so the
	// caller's ToolCallBuilder can assemble fragmented tool calls across
	// chunks (id, name, and arguments may each arrive separately).
	ToolCallDeltas []ToolCallDelta

	// FinishReason is set on the terminal chunk of a choice, e.g.
	// "stop" or "tool_calls".
	FinishReason string

	// Usage is set on the final chunk by providers that report it there.
	Usage *message.Usage
}

// ToolCallDelta is one fragment of a streaming tool call.
type ToolCallDelta struct {
	Index            int
	ID               string
	Type             string
	Name             string
	ArgumentsDelta   string
}

// Client is the contract every provider implementation satisfies. It must
// be safe to call concurrently: turns on different conversations run in
// parallel and may share one Client instance.
type Client interface {
	// Chat performs a single request/response call. temperature is nil when
	// the caller wants the provider's default.
	Chat(ctx context.Context, messages []message.Message, tools []ToolDefinition, temperature *float64, conversationID string) (*Response, error)

	// ChatStream opens a streaming call. The returned channel is closed
	// when the stream ends (normally or via ctx cancellation); a non-nil
	// error reported through the channel's companion error return ends the
	// sequence early. The sequence is finite, ordered, and not restartable.
	ChatStream(ctx context.Context, messages []message.Message, tools []ToolDefinition, temperature *float64, conversationID string) (<-chan StreamChunk, <-chan error)

	// HealthCheck is a cheap liveness probe; it is not used by the agent
	// loop itself.
	HealthCheck(ctx context.Context) bool

	// Close releases any resources (connection pools, etc).
	Close() error
}
