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

package tool

import (
	"context"
	"log/slog"
	"time"

	"github.com/agentcore/core/internal/message"
)

// Executor normalizes model-emitted tool calls and dispatches them against
// a Registry, packaging each result as a tool-role message. Calls within
// one assistant turn execute strictly in order - the model sees their
// results as a sequence, so parallelizing here would change what the
// second call could plausibly assume about the first.
type Executor struct {
	registry *Registry
}

func NewExecutor(registry *Registry) *Executor {
	return &Executor{registry: registry}
}

// Normalize fills in a missing call.Type, which some providers omit on
// streamed tool calls.
func Normalize(call message.ToolCall) message.ToolCall {
	if call.Type == "" {
		call.Type = "function"
	}
	return call
}

// ExecuteToolCall dispatches a single call and wraps the result as a
// tool-role message. It never returns a Go error: a failing tool call
// becomes an error-shaped result string inside the message, matching the
// spec's "exception becomes human-readable content" rule.
func (e *Executor) ExecuteToolCall(ctx context.Context, call message.ToolCall, conversationID string) message.Message {
	call = Normalize(call)

	start := time.Now()
	result := e.registry.ExecuteTool(ctx, call.Function.Name, call.Function.Arguments)
	duration := time.Since(start)

	slog.Debug("tool executed",
		"tool", call.Function.Name,
		"conversation_id", conversationID,
		"duration_ms", duration.Milliseconds(),
	)

	return message.NewTool(call.ID, result)
}

// ExecuteToolCalls runs calls in order, returning tool-role messages in the
// same order. This is the only entry point the agent loop uses; it never
// fans calls out concurrently.
func (e *Executor) ExecuteToolCalls(ctx context.Context, calls []message.ToolCall, conversationID string) []message.Message {
	results := make([]message.Message, 0, len(calls))
	for _, call := range calls {
		results = append(results, e.ExecuteToolCall(ctx, call, conversationID))
	}
	return results
}
