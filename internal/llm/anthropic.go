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
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/agentcore/core/internal/httpclient"
	"github.com/agentcore/core/internal/message"
)

// AnthropicConfig configures an AnthropicClient.
type AnthropicConfig struct {
	APIKey      string
	Model       string
	BaseURL     string // default https://api.anthropic.com
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
}

// AnthropicClient talks the JSON-over-HTTPS chat-completions-shaped
// Anthropic Messages API. It satisfies llm.Client.
type AnthropicClient struct {
	cfg  AnthropicConfig
	http *httpclient.Client
}

func NewAnthropicClient(cfg AnthropicConfig) *AnthropicClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 150 * time.Second
	}
	return &AnthropicClient{
		cfg: cfg,
		http: httpclient.New(
			httpclient.WithTimeout(cfg.Timeout),
			httpclient.WithMaxRetries(cfg.MaxRetries),
			httpclient.WithHeaderParser(parseAnthropicRateLimitHeaders),
		),
	}
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	Stream      bool               `json:"stream"`
	System      string             `json:"system,omitempty"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     *map[string]any `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
	Error      *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type anthropicStreamEvent struct {
	Type         string `json:"type"`
	Index        int    `json:"index"`
	ContentBlock *struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block,omitempty"`
	Delta *struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta,omitempty"`
	Usage *anthropicUsage `json:"usage,omitempty"`
}

// buildRequest converts canonical messages into Anthropic's shape. The
// system message, if present as history[0], is pulled into the top-level
// System field since Anthropic does not accept a system-role message.
func (c *AnthropicClient) buildRequest(messages []message.Message, tools []ToolDefinition, temperature *float64, stream bool) anthropicRequest {
	var system string
	converted := make([]anthropicMessage, 0, len(messages))

	for _, m := range messages {
		switch m.Role {
		case message.RoleSystem:
			if system == "" {
				system = m.Content
			} else {
				system = system + "\n\n" + m.Content
			}
		case message.RoleUser:
			converted = append(converted, anthropicMessage{
				Role:    "user",
				Content: []anthropicContent{{Type: "text", Text: m.Content}},
			})
		case message.RoleTool:
			converted = append(converted, anthropicMessage{
				Role: "user",
				Content: []anthropicContent{{
					Type:      "tool_result",
					ToolUseID: m.ToolCallID,
					Content:   m.Content,
				}},
			})
		case message.RoleAssistant:
			var blocks []anthropicContent
			if m.Content != "" {
				blocks = append(blocks, anthropicContent{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				args := parseArgsOrEmpty(tc.Function.Arguments)
				blocks = append(blocks, anthropicContent{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Function.Name,
					Input: &args,
				})
			}
			converted = append(converted, anthropicMessage{Role: "assistant", Content: blocks})
		}
	}

	req := anthropicRequest{
		Model:       c.cfg.Model,
		Messages:    converted,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: temperature,
		Stream:      stream,
		System:      system,
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, anthropicTool{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			InputSchema: t.Function.Parameters,
		})
	}
	return req
}

func parseArgsOrEmpty(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return map[string]any{}
	}
	return m
}

func (c *AnthropicClient) doRequest(ctx context.Context, body anthropicRequest) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("llm: marshal anthropic request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/messages", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("llm: build anthropic request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Provider: "anthropic", Err: err}
	}
	return resp, nil
}

func (c *AnthropicClient) Chat(ctx context.Context, messages []message.Message, tools []ToolDefinition, temperature *float64, conversationID string) (*Response, error) {
	req := c.buildRequest(messages, tools, temperature, false)

	resp, err := c.doRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Provider: "anthropic", StatusCode: resp.StatusCode, Body: httpclient.ReadErrorBody(resp)}
	}

	var ar anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, fmt.Errorf("llm: decode anthropic response: %w", err)
	}
	if ar.Error != nil {
		return nil, &APIError{Provider: "anthropic", StatusCode: resp.StatusCode, Body: ar.Error.Message}
	}

	msg := anthropicContentToMessage(ar.Content)
	return &Response{
		Choices: []Choice{{Message: msg, FinishReason: ar.StopReason}},
		Usage: message.Usage{
			PromptTokens:     ar.Usage.InputTokens,
			CompletionTokens: ar.Usage.OutputTokens,
			TotalTokens:      ar.Usage.InputTokens + ar.Usage.OutputTokens,
		},
	}, nil
}

func anthropicContentToMessage(blocks []anthropicContent) message.Message {
	var text strings.Builder
	var calls []message.ToolCall
	for _, b := range blocks {
		switch b.Type {
		case "text":
			text.WriteString(b.Text)
		case "tool_use":
			argsJSON := "{}"
			if b.Input != nil {
				if data, err := json.Marshal(*b.Input); err == nil {
					argsJSON = string(data)
				}
			}
			calls = append(calls, message.ToolCall{
				ID:   b.ID,
				Type: "function",
				Function: message.ToolCallFunc{
					Name:      b.Name,
					Arguments: argsJSON,
				},
			})
		}
	}
	if len(calls) > 0 {
		return message.NewAssistantToolCalls(text.String(), calls)
	}
	return message.NewAssistant(text.String())
}

func (c *AnthropicClient) ChatStream(ctx context.Context, messages []message.Message, tools []ToolDefinition, temperature *float64, conversationID string) (<-chan StreamChunk, <-chan error) {
	out := make(chan StreamChunk, 32)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		req := c.buildRequest(messages, tools, temperature, true)
		resp, err := c.doRequest(ctx, req)
		if err != nil {
			errc <- err
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			errc <- &APIError{Provider: "anthropic", StatusCode: resp.StatusCode, Body: httpclient.ReadErrorBody(resp)}
			return
		}

		// index -> in-progress tool_use block (id/name known at block-start,
		// arguments accumulate across delta events).
		blockKind := make(map[int]string)
		blockID := make(map[int]string)
		blockName := make(map[int]string)

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			select {
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			default:
			}

			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "" || payload == "[DONE]" {
				continue
			}

			var ev anthropicStreamEvent
			if err := json.Unmarshal([]byte(payload), &ev); err != nil {
				continue
			}

			switch ev.Type {
			case "content_block_start":
				if ev.ContentBlock != nil {
					blockKind[ev.Index] = ev.ContentBlock.Type
					if ev.ContentBlock.Type == "tool_use" {
						blockID[ev.Index] = ev.ContentBlock.ID
						blockName[ev.Index] = ev.ContentBlock.Name
						out <- StreamChunk{ToolCallDeltas: []ToolCallDelta{{
							Index: ev.Index,
							ID:    ev.ContentBlock.ID,
							Type:  "function",
							Name:  ev.ContentBlock.Name,
						}}}
					}
				}
			case "content_block_delta":
				if ev.Delta == nil {
					continue
				}
				switch blockKind[ev.Index] {
				case "tool_use":
					out <- StreamChunk{ToolCallDeltas: []ToolCallDelta{{
						Index:          ev.Index,
						ArgumentsDelta: ev.Delta.PartialJSON,
					}}}
				default:
					if ev.Delta.Text != "" {
						out <- StreamChunk{ContentDelta: ev.Delta.Text}
					}
				}
			case "message_delta":
				chunk := StreamChunk{}
				if ev.Delta != nil && ev.Delta.StopReason != "" {
					chunk.FinishReason = ev.Delta.StopReason
				}
				if ev.Usage != nil {
					chunk.Usage = &message.Usage{
						CompletionTokens: ev.Usage.OutputTokens,
					}
				}
				if chunk.FinishReason != "" || chunk.Usage != nil {
					out <- chunk
				}
			}
		}
		if err := scanner.Err(); err != nil {
			errc <- fmt.Errorf("llm: anthropic stream read: %w", err)
		}
	}()

	return out, errc
}

func (c *AnthropicClient) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v1/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *AnthropicClient) Close() error { return nil }

func parseAnthropicRateLimitHeaders(h http.Header) httpclient.RateLimitInfo {
	var info httpclient.RateLimitInfo
	if v := h.Get("retry-after"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			info.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	if v := h.Get("anthropic-ratelimit-requests-remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			info.RequestsRemaining = n
		}
	}
	return info
}
