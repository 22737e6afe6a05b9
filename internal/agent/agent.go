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

// Package agent implements the turn-taking orchestration loop: reconcile
// settings, build the system prompt, append the user turn, compress history
// if needed, then run a bounded tool-call loop against the LLM until a
// final answer is produced.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/agentcore/core/internal/compression"
	"github.com/agentcore/core/internal/conversation"
	"github.com/agentcore/core/internal/llm"
	"github.com/agentcore/core/internal/message"
	"github.com/agentcore/core/internal/prompt"
	"github.com/agentcore/core/internal/tool"
)

const defaultMaxToolIterations = 5

// ChatResponse is the result of one non-streaming turn.
type ChatResponse struct {
	AssistantMessage message.Message
	ConversationID   string
	TokenUsage       message.Usage
	CompressionStats *compression.Result

	// FirstToolCall is the first tool call observed during the loop, kept
	// for callers that surface a single representative tool call even when
	// the loop ran multiple iterations.
	FirstToolCall *message.ToolCall
}

// Agent composes an LLM client, a conversation repository, a tool registry
// and executor, and an optional history compressor into the turn loop.
type Agent struct {
	LLM               llm.Client
	Repository        conversation.Repository
	Registry          *tool.Registry
	Executor          *tool.Executor
	Compressor        *compression.Compressor
	MaxToolIterations int
}

// New builds an Agent with MaxToolIterations set to the default of 5. A
// MaxToolIterations of 0 or less set afterwards also falls back to 5.
func New(llmClient llm.Client, repo conversation.Repository, registry *tool.Registry, compressor *compression.Compressor) *Agent {
	return &Agent{
		LLM:               llmClient,
		Repository:        repo,
		Registry:          registry,
		Executor:          tool.NewExecutor(registry),
		Compressor:        compressor,
		MaxToolIterations: defaultMaxToolIterations,
	}
}

func (a *Agent) maxIterations() int {
	if a.MaxToolIterations > 0 {
		return a.MaxToolIterations
	}
	return defaultMaxToolIterations
}

// Chat runs one non-streaming turn per spec.md §4.7.
func (a *Agent) Chat(
	ctx context.Context,
	userMessage string,
	conversationID string,
	format conversation.ResponseFormat,
	collectionSettings *conversation.CollectionSettings,
	temperature *float64,
	compressionSettings *conversation.CompressionSettings,
) (*ChatResponse, error) {
	exists, err := a.Repository.HasConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("agent: check conversation: %w", err)
	}

	settingsChanged := false
	if exists {
		prevFormat, err := a.Repository.GetFormat(ctx, conversationID)
		if err != nil {
			return nil, fmt.Errorf("agent: get format: %w", err)
		}
		prevCollection, err := a.Repository.GetCollectionSettings(ctx, conversationID)
		if err != nil {
			return nil, fmt.Errorf("agent: get collection settings: %w", err)
		}
		settingsChanged = prevFormat != format || !collectionEqual(prevCollection, collectionSettings)
	}

	systemPrompt := prompt.Build(format, collectionSettings)

	if !exists {
		if err := a.Repository.InitConversation(ctx, conversationID, systemPrompt); err != nil {
			return nil, fmt.Errorf("agent: init conversation: %w", err)
		}
	} else if settingsChanged {
		if err := a.Repository.UpdateSystemPrompt(ctx, conversationID, systemPrompt); err != nil {
			return nil, fmt.Errorf("agent: update system prompt: %w", err)
		}
	}

	if err := a.Repository.SetFormat(ctx, conversationID, format); err != nil {
		return nil, fmt.Errorf("agent: set format: %w", err)
	}
	if collectionSettings != nil {
		if err := a.Repository.SetCollectionSettings(ctx, conversationID, *collectionSettings); err != nil {
			return nil, fmt.Errorf("agent: set collection settings: %w", err)
		}
	}
	if compressionSettings != nil {
		if err := a.Repository.SetCompressionSettings(ctx, conversationID, *compressionSettings); err != nil {
			return nil, fmt.Errorf("agent: set compression settings: %w", err)
		}
	}

	if err := a.Repository.AddMessage(ctx, conversationID, message.NewUser(userMessage)); err != nil {
		return nil, fmt.Errorf("agent: add user message: %w", err)
	}

	var compressionResult *compression.Result
	if a.Compressor != nil {
		cSettings, err := a.Repository.GetCompressionSettings(ctx, conversationID)
		if err != nil {
			return nil, fmt.Errorf("agent: get compression settings: %w", err)
		}
		history, err := a.Repository.GetHistory(ctx, conversationID)
		if err != nil {
			return nil, fmt.Errorf("agent: get history: %w", err)
		}
		if compression.NeedsCompression(history, cSettings) {
			newHistory, result, err := a.Compressor.Compress(ctx, history, conversationID, cSettings)
			if err != nil {
				return nil, fmt.Errorf("agent: compress history: %w", err)
			}
			if result.Compressed {
				if err := a.Repository.ReplaceHistory(ctx, conversationID, newHistory); err != nil {
					return nil, fmt.Errorf("agent: replace history: %w", err)
				}
				compressionResult = &result
			}
		}
	}

	tools := a.Registry.GetAllTools()
	usage := message.Usage{}
	var firstToolCall *message.ToolCall

	history, err := a.Repository.GetHistory(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("agent: get history: %w", err)
	}
	resp, err := a.LLM.Chat(ctx, history, tools, temperature, conversationID)
	if err != nil {
		return nil, fmt.Errorf("agent: llm chat: %w", err)
	}
	usage.Add(resp.Usage)

	iter := 0
	for len(resp.Choices) > 0 && resp.Choices[0].Message.HasToolCalls() && iter < a.maxIterations() {
		assistantMsg := resp.Choices[0].Message
		if firstToolCall == nil && len(assistantMsg.ToolCalls) > 0 {
			fixed := assistantMsg.ToolCalls[0]
			firstToolCall = &fixed
		}

		normalized := make([]message.ToolCall, len(assistantMsg.ToolCalls))
		for i, c := range assistantMsg.ToolCalls {
			normalized[i] = tool.Normalize(c)
		}
		assistantMsg.ToolCalls = normalized

		if err := a.Repository.AddMessage(ctx, conversationID, assistantMsg); err != nil {
			return nil, fmt.Errorf("agent: add assistant message: %w", err)
		}

		results := a.Executor.ExecuteToolCalls(ctx, normalized, conversationID)
		if err := a.Repository.AddMessages(ctx, conversationID, results); err != nil {
			return nil, fmt.Errorf("agent: add tool results: %w", err)
		}

		history, err = a.Repository.GetHistory(ctx, conversationID)
		if err != nil {
			return nil, fmt.Errorf("agent: get history: %w", err)
		}
		resp, err = a.LLM.Chat(ctx, history, tools, temperature, conversationID)
		if err != nil {
			return nil, fmt.Errorf("agent: llm chat: %w", err)
		}
		usage.Add(resp.Usage)
		iter++
	}

	if len(resp.Choices) > 0 && resp.Choices[0].Message.HasToolCalls() {
		// Iteration cap reached without a natural termination: force one
		// additional tool-less call so the turn still ends in text.
		history, err = a.Repository.GetHistory(ctx, conversationID)
		if err != nil {
			return nil, fmt.Errorf("agent: get history: %w", err)
		}
		resp, err = a.LLM.Chat(ctx, history, nil, temperature, conversationID)
		if err != nil {
			return nil, fmt.Errorf("agent: llm chat: %w", err)
		}
		usage.Add(resp.Usage)
	}

	finalMsg, err := resp.FirstMessage()
	if err != nil {
		return nil, fmt.Errorf("agent: final message: %w", err)
	}
	if err := a.Repository.AddMessage(ctx, conversationID, finalMsg); err != nil {
		return nil, fmt.Errorf("agent: persist final message: %w", err)
	}

	slog.Debug("turn completed", "conversation_id", conversationID, "iterations", iter)

	return &ChatResponse{
		AssistantMessage: finalMsg,
		ConversationID:   conversationID,
		TokenUsage:       usage,
		CompressionStats: compressionResult,
		FirstToolCall:    firstToolCall,
	}, nil
}

func collectionEqual(prev conversation.CollectionSettings, next *conversation.CollectionSettings) bool {
	if next == nil {
		return true
	}
	return prev == *next
}

// newMessageID generates a stable id for one streaming turn.
func newMessageID() string {
	return uuid.NewString()
}
