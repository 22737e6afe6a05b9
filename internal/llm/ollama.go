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

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agentcore/core/internal/httpclient"
	"github.com/agentcore/core/internal/message"
)

// OllamaConfig configures an OllamaClient talking to a local or
// self-hosted Ollama daemon.
type OllamaConfig struct {
	Model      string
	BaseURL    string // default http://localhost:11434
	Timeout    time.Duration
	MaxRetries int
}

// OllamaClient speaks Ollama's NDJSON-over-HTTP /api/chat endpoint. Unlike
// Anthropic's SSE framing, every line of the response body is a complete
// JSON object; the final one carries Done=true and the cumulative counts.
type OllamaClient struct {
	cfg  OllamaConfig
	http *httpclient.Client
}

func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = 150 * time.Second
	}
	return &OllamaClient{
		cfg:  cfg,
		http: httpclient.New(httpclient.WithTimeout(cfg.Timeout), httpclient.WithMaxRetries(cfg.MaxRetries)),
	}
}

type ollamaMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type ollamaTool struct {
	Type     string             `json:"type"`
	Function ollamaToolFunction `json:"function"`
}

type ollamaToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type ollamaToolCall struct {
	Type     string                 `json:"type"`
	Function ollamaToolCallFunction `json:"function"`
}

type ollamaToolCallFunction struct {
	Index     int            `json:"index,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
	Tools    []ollamaTool    `json:"tools,omitempty"`
}

type ollamaChunk struct {
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
	Error           string        `json:"error,omitempty"`
}

func (c *OllamaClient) buildRequest(messages []message.Message, tools []ToolDefinition, temperature *float64, stream bool) ollamaRequest {
	converted := make([]ollamaMessage, 0, len(messages))
	for _, m := range messages {
		om := ollamaMessage{Role: string(m.Role), Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, ollamaToolCall{
				Type: "function",
				Function: ollamaToolCallFunction{
					Name:      tc.Function.Name,
					Arguments: parseArgsOrEmpty(tc.Function.Arguments),
				},
			})
		}
		converted = append(converted, om)
	}

	req := ollamaRequest{Model: c.cfg.Model, Messages: converted, Stream: stream}
	if temperature != nil {
		req.Options = &ollamaOptions{Temperature: *temperature}
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, ollamaTool{
			Type: "function",
			Function: ollamaToolFunction{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			},
		})
	}
	return req
}

func (c *OllamaClient) send(ctx context.Context, req ollamaRequest) (*http.Response, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("llm: marshal ollama request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("llm: build ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Provider: "ollama", Err: err}
	}
	return resp, nil
}

func ollamaMessageToMessage(om ollamaMessage) message.Message {
	if len(om.ToolCalls) == 0 {
		return message.NewAssistant(om.Content)
	}
	calls := make([]message.ToolCall, 0, len(om.ToolCalls))
	for i, tc := range om.ToolCalls {
		argsJSON := "{}"
		if data, err := json.Marshal(tc.Function.Arguments); err == nil {
			argsJSON = string(data)
		}
		calls = append(calls, message.ToolCall{
			ID:       fmt.Sprintf("call_%d", i),
			Type:     "function",
			Function: message.ToolCallFunc{Name: tc.Function.Name, Arguments: argsJSON},
		})
	}
	return message.NewAssistantToolCalls(om.Content, calls)
}

func (c *OllamaClient) Chat(ctx context.Context, messages []message.Message, tools []ToolDefinition, temperature *float64, conversationID string) (*Response, error) {
	req := c.buildRequest(messages, tools, temperature, false)
	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("llm: read ollama response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Provider: "ollama", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var oc ollamaChunk
	if err := json.Unmarshal(body, &oc); err != nil {
		return nil, fmt.Errorf("llm: decode ollama response: %w", err)
	}
	if oc.Error != "" {
		return nil, &APIError{Provider: "ollama", StatusCode: resp.StatusCode, Body: oc.Error}
	}

	finish := "stop"
	if len(oc.Message.ToolCalls) > 0 {
		finish = "tool_calls"
	}
	return &Response{
		Choices: []Choice{{Message: ollamaMessageToMessage(oc.Message), FinishReason: finish}},
		Usage: message.Usage{
			PromptTokens:     oc.PromptEvalCount,
			CompletionTokens: oc.EvalCount,
			TotalTokens:      oc.PromptEvalCount + oc.EvalCount,
		},
	}, nil
}

func (c *OllamaClient) ChatStream(ctx context.Context, messages []message.Message, tools []ToolDefinition, temperature *float64, conversationID string) (<-chan StreamChunk, <-chan error) {
	out := make(chan StreamChunk, 32)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		req := c.buildRequest(messages, tools, temperature, true)
		resp, err := c.send(ctx, req)
		if err != nil {
			errc <- err
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			errc <- &APIError{Provider: "ollama", StatusCode: resp.StatusCode, Body: httpclient.ReadErrorBody(resp)}
			return
		}

		// Ollama emits each tool call whole in one chunk rather than as
		// incremental JSON fragments, so each is forwarded as a single delta
		// carrying its complete arguments; nothing is accumulated here.
		reader := bufio.NewReader(resp.Body)

		for {
			select {
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			default:
			}

			line, readErr := reader.ReadBytes('\n')
			line = bytes.TrimSpace(line)
			if len(line) > 0 {
				var chunk ollamaChunk
				if err := json.Unmarshal(line, &chunk); err == nil {
					if chunk.Error != "" {
						errc <- &APIError{Provider: "ollama", Body: chunk.Error}
						return
					}
					if chunk.Message.Content != "" {
						out <- StreamChunk{ContentDelta: chunk.Message.Content}
					}
					for i, tc := range chunk.Message.ToolCalls {
						argsJSON := "{}"
						if data, err := json.Marshal(tc.Function.Arguments); err == nil {
							argsJSON = string(data)
						}
						idx := tc.Function.Index
						if idx == 0 && len(chunk.Message.ToolCalls) > 1 {
							idx = i
						}
						out <- StreamChunk{ToolCallDeltas: []ToolCallDelta{{
							Index:          idx,
							ID:             fmt.Sprintf("call_%d", idx),
							Type:           "function",
							Name:           tc.Function.Name,
							ArgumentsDelta: argsJSON,
						}}}
					}
					if chunk.Done {
						finish := "stop"
						if len(chunk.Message.ToolCalls) > 0 {
							finish = "tool_calls"
						}
						out <- StreamChunk{
							FinishReason: finish,
							Usage: &message.Usage{
								PromptTokens:     chunk.PromptEvalCount,
								CompletionTokens: chunk.EvalCount,
								TotalTokens:      chunk.PromptEvalCount + chunk.EvalCount,
							},
						}
					}
				}
			}

			if readErr != nil {
				if readErr == io.EOF {
					return
				}
				errc <- fmt.Errorf("llm: ollama stream read: %w", readErr)
				return
			}
		}
	}()

	return out, errc
}

func (c *OllamaClient) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *OllamaClient) Close() error { return nil }
