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

package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/agentcore/core/internal/conversation"
	"github.com/agentcore/core/internal/llm"
	"github.com/agentcore/core/internal/message"
	"github.com/agentcore/core/internal/prompt"
	"github.com/agentcore/core/internal/tool"
)

// pendingToolCall accumulates one tool call's fragments, keyed by the
// model-supplied integer index, across a streaming response.
type pendingToolCall struct {
	id        string
	kind      string
	name      string
	arguments strings.Builder
}

func (p *pendingToolCall) ready() bool {
	return p.id != "" && p.name != ""
}

func (p *pendingToolCall) toToolCall() message.ToolCall {
	kind := p.kind
	if kind == "" {
		kind = "function"
	}
	return message.ToolCall{
		ID:   p.id,
		Type: kind,
		Function: message.ToolCallFunc{
			Name:      p.name,
			Arguments: p.arguments.String(),
		},
	}
}

// ChatStream runs a streaming turn per spec.md §4.9, emitting events on the
// returned channel. The channel is closed when the turn ends, whether
// normally (DONE), on error (ERROR), or via ctx cancellation. Cancelling
// ctx interrupts the in-flight LLM stream at its next suspension point;
// tool calls that were only partially assembled are never executed.
func (a *Agent) ChatStream(
	ctx context.Context,
	userMessage string,
	conversationID string,
	format conversation.ResponseFormat,
	collectionSettings *conversation.CollectionSettings,
	temperature *float64,
) <-chan StreamEvent {
	out := make(chan StreamEvent, 16)

	go func() {
		defer close(out)

		messageID := newMessageID()
		emit := func(ev StreamEvent) bool {
			ev.ConversationID = conversationID
			ev.MessageID = messageID
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit(StreamEvent{Type: EventStart}) {
			return
		}

		exists, err := a.Repository.HasConversation(ctx, conversationID)
		if err != nil {
			emit(StreamEvent{Type: EventError, Error: err.Error()})
			return
		}
		systemPrompt := prompt.Build(format, collectionSettings)
		if !exists {
			if err := a.Repository.InitConversation(ctx, conversationID, systemPrompt); err != nil {
				emit(StreamEvent{Type: EventError, Error: err.Error()})
				return
			}
		} else {
			if err := a.Repository.UpdateSystemPrompt(ctx, conversationID, systemPrompt); err != nil {
				emit(StreamEvent{Type: EventError, Error: err.Error()})
				return
			}
		}
		if err := a.Repository.SetFormat(ctx, conversationID, format); err != nil {
			emit(StreamEvent{Type: EventError, Error: err.Error()})
			return
		}
		if collectionSettings != nil {
			if err := a.Repository.SetCollectionSettings(ctx, conversationID, *collectionSettings); err != nil {
				emit(StreamEvent{Type: EventError, Error: err.Error()})
				return
			}
		}

		if err := a.Repository.AddMessage(ctx, conversationID, message.NewUser(userMessage)); err != nil {
			emit(StreamEvent{Type: EventError, Error: err.Error()})
			return
		}

		tools := a.Registry.GetAllTools()
		iter := 0
		forcedFinal := false

		for {
			if ctx.Err() != nil {
				return
			}

			history, err := a.Repository.GetHistory(ctx, conversationID)
			if err != nil {
				emit(StreamEvent{Type: EventError, Error: err.Error()})
				return
			}

			activeTools := tools
			if forcedFinal {
				activeTools = nil
			}

			finished, err := a.runStreamIteration(ctx, history, activeTools, temperature, conversationID, emit)
			if err != nil {
				emit(StreamEvent{Type: EventError, Error: err.Error()})
				return
			}
			if finished || forcedFinal {
				emit(StreamEvent{Type: EventDone})
				return
			}

			iter++
			if iter >= a.maxIterations() {
				emit(StreamEvent{Type: EventProcessing, Notice: "Завершение: формирую итоговый ответ"})
				if err := a.Repository.AddMessage(ctx, conversationID, message.NewUser("Please provide a final summary now without using any tools.")); err != nil {
					emit(StreamEvent{Type: EventError, Error: err.Error()})
					return
				}
				forcedFinal = true
			}
		}
	}()

	return out
}

// runStreamIteration opens one LLM stream, assembles content and tool
// calls, and on stream end either dispatches the tool calls (returning
// finished=false so the outer loop continues) or persists the final
// assistant text and reports finished=true.
func (a *Agent) runStreamIteration(
	ctx context.Context,
	history []message.Message,
	tools []llm.ToolDefinition,
	temperature *float64,
	conversationID string,
	emit func(StreamEvent) bool,
) (finished bool, err error) {
	chunks, errs := a.LLM.ChatStream(ctx, history, tools, temperature, conversationID)

	var content strings.Builder
	pending := make(map[int]*pendingToolCall)
	var finishReason string

loop:
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				break loop
			}
			if chunk.ContentDelta != "" {
				content.WriteString(chunk.ContentDelta)
				if !emit(StreamEvent{Type: EventContent, Content: chunk.ContentDelta}) {
					return false, ctx.Err()
				}
			}
			for _, delta := range chunk.ToolCallDeltas {
				p, ok := pending[delta.Index]
				if !ok {
					p = &pendingToolCall{}
					pending[delta.Index] = p
				}
				if delta.ID != "" {
					p.id = delta.ID
				}
				if delta.Type != "" {
					p.kind = delta.Type
				}
				if delta.Name != "" {
					p.name = delta.Name
				}
				if delta.ArgumentsDelta != "" {
					p.arguments.WriteString(delta.ArgumentsDelta)
				}
			}
			if chunk.FinishReason != "" {
				finishReason = chunk.FinishReason
			}
		case e, ok := <-errs:
			if ok && e != nil {
				return false, fmt.Errorf("agent: stream: %w", e)
			}
		}
	}
	_ = finishReason

	indices := make([]int, 0, len(pending))
	for idx, p := range pending {
		if p.ready() {
			indices = append(indices, idx)
		}
	}
	sort.Ints(indices)

	if len(indices) == 0 {
		finalMsg := message.NewAssistant(content.String())
		if err := a.Repository.AddMessage(ctx, conversationID, finalMsg); err != nil {
			return false, fmt.Errorf("agent: persist final message: %w", err)
		}
		return true, nil
	}

	calls := make([]message.ToolCall, 0, len(indices))
	for _, idx := range indices {
		calls = append(calls, tool.Normalize(pending[idx].toToolCall()))
	}

	assistantMsg := message.NewAssistantToolCalls(content.String(), calls)
	if err := a.Repository.AddMessage(ctx, conversationID, assistantMsg); err != nil {
		return false, fmt.Errorf("agent: add assistant message: %w", err)
	}

	for _, call := range calls {
		if !emit(StreamEvent{Type: EventToolCall, ToolCall: &call}) {
			return false, ctx.Err()
		}
		if !emit(StreamEvent{Type: EventProcessing, Notice: "Выполняется: " + call.Function.Name}) {
			return false, ctx.Err()
		}
		result := a.Executor.ExecuteToolCall(ctx, call, conversationID)
		if !emit(StreamEvent{Type: EventToolResult, ToolResult: result.Content}) {
			return false, ctx.Err()
		}
		if err := a.Repository.AddMessage(ctx, conversationID, result); err != nil {
			return false, fmt.Errorf("agent: add tool result: %w", err)
		}
	}

	return false, nil
}
