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

// Package openaicompat implements llm.Client against any OpenAI
// chat-completions-compatible endpoint (OpenAI itself, Azure OpenAI,
// OpenRouter, vLLM, LM Studio, ...) via sashabaranov/go-openai.
package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/agentcore/core/internal/llm"
	"github.com/agentcore/core/internal/message"
)

// Config configures a Client. BaseURL is only needed when talking to a
// compatible endpoint other than api.openai.com.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Client adapts an openai.Client to the llm.Client contract.
type Client struct {
	raw   *openai.Client
	model string
}

func New(cfg Config) *Client {
	oaCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oaCfg.BaseURL = cfg.BaseURL
	}
	oaCfg.HTTPClient = &http.Client{Timeout: 150 * time.Second}
	return &Client{raw: openai.NewClientWithConfig(oaCfg), model: cfg.Model}
}

// wrapError reports a non-2xx response as *llm.APIError and any other
// failure as *llm.TransportError.
func wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &llm.APIError{Provider: "openai", StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &llm.APIError{Provider: "openai", StatusCode: reqErr.HTTPStatusCode, Body: reqErr.Error()}
	}
	return &llm.TransportError{Provider: "openai", Err: err}
}

func toOpenAIMessages(messages []message.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		om := openai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		out = append(out, om)
	}
	return out
}

func toOpenAITools(tools []llm.ToolDefinition) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			},
		})
	}
	return out
}

func fromOpenAIMessage(om openai.ChatCompletionMessage) message.Message {
	if len(om.ToolCalls) == 0 {
		return message.NewAssistant(om.Content)
	}
	calls := make([]message.ToolCall, 0, len(om.ToolCalls))
	for _, tc := range om.ToolCalls {
		calls = append(calls, message.ToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: message.ToolCallFunc{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return message.NewAssistantToolCalls(om.Content, calls)
}

func (c *Client) Chat(ctx context.Context, messages []message.Message, tools []llm.ToolDefinition, temperature *float64, conversationID string) (*llm.Response, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toOpenAIMessages(messages),
		Tools:    toOpenAITools(tools),
		User:     conversationID,
	}
	if temperature != nil {
		req.Temperature = float32(*temperature)
	}

	resp, err := c.raw.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, llm.ErrEmptyResponse
	}

	choices := make([]llm.Choice, 0, len(resp.Choices))
	for _, ch := range resp.Choices {
		choices = append(choices, llm.Choice{
			Message:      fromOpenAIMessage(ch.Message),
			FinishReason: string(ch.FinishReason),
		})
	}

	return &llm.Response{
		Choices: choices,
		Usage: message.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func (c *Client) ChatStream(ctx context.Context, messages []message.Message, tools []llm.ToolDefinition, temperature *float64, conversationID string) (<-chan llm.StreamChunk, <-chan error) {
	out := make(chan llm.StreamChunk, 32)
	errc := make(chan error, 1)

	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toOpenAIMessages(messages),
		Tools:    toOpenAITools(tools),
		Stream:   true,
		User:     conversationID,
	}
	if temperature != nil {
		req.Temperature = float32(*temperature)
	}

	go func() {
		defer close(out)
		defer close(errc)

		stream, err := c.raw.CreateChatCompletionStream(ctx, req)
		if err != nil {
			errc <- wrapError(err)
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				errc <- fmt.Errorf("llm: openai stream recv: %w", err)
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			choice := resp.Choices[0]

			chunk := llm.StreamChunk{
				ContentDelta: choice.Delta.Content,
				FinishReason: string(choice.FinishReason),
			}
			for _, tc := range choice.Delta.ToolCalls {
				idx := 0
				if tc.Index != nil {
					idx = *tc.Index
				}
				chunk.ToolCallDeltas = append(chunk.ToolCallDeltas, llm.ToolCallDelta{
					Index:          idx,
					ID:             tc.ID,
					Type:           "function",
					Name:           tc.Function.Name,
					ArgumentsDelta: tc.Function.Arguments,
				})
			}
			if resp.Usage != nil {
				chunk.Usage = &message.Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				}
			}
			out <- chunk
		}
	}()

	return out, errc
}

func (c *Client) HealthCheck(ctx context.Context) bool {
	_, err := c.raw.ListModels(ctx)
	return err == nil
}

func (c *Client) Close() error { return nil }
