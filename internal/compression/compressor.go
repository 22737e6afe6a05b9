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

// Package compression bounds conversation prompt length by replacing older
// dialogue with a single synthetic summary message once a threshold is hit.
package compression

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/agentcore/core/internal/conversation"
	"github.com/agentcore/core/internal/llm"
	"github.com/agentcore/core/internal/message"
)

const summarizationSystemPrompt = `You are a conversation summarizer. Produce a concise bullet summary of the facts, decisions, and open questions in the conversation below. Do not add information that is not present.

Conversation:
%s

Summary:`

// Result reports what Compress did for one call.
type Result struct {
	Compressed           bool
	OriginalCount         int
	CompressedCount       int
	Summary               string
	EstimatedTokensSaved  int
}

// Stats accumulates a conversation's lifetime compression history.
type Stats struct {
	TotalCompressions    int
	TokensSavedTotal     int
	LastSummary          string
}

// Compressor implements the history-compression strategy: split into a
// system message, a "to compress" prefix, and a recent tail; summarize the
// prefix via an LLM call (falling back to a deterministic synthesis on
// failure); splice the summary back in ahead of the tail.
type Compressor struct {
	client llm.Client

	mu    sync.Mutex
	stats map[string]*Stats
}

// NewCompressor builds a Compressor that calls client for summarization.
func NewCompressor(client llm.Client) *Compressor {
	return &Compressor{client: client, stats: make(map[string]*Stats)}
}

// NeedsCompression reports whether settings.Enabled and the number of
// non-system messages in history has reached MessageThreshold.
func NeedsCompression(history []message.Message, settings conversation.CompressionSettings) bool {
	if !settings.Enabled {
		return false
	}
	return len(dialogue(history)) >= settings.MessageThreshold
}

// Compress replaces the older portion of history with one synthetic
// assistant-role summary message, keeping the most recent
// settings.KeepRecentMessages dialogue messages intact.
func (c *Compressor) Compress(ctx context.Context, history []message.Message, conversationID string, settings conversation.CompressionSettings) ([]message.Message, Result, error) {
	var sys *message.Message
	rest := history
	if len(history) > 0 && history[0].Role == message.RoleSystem {
		s := history[0]
		sys = &s
		rest = history[1:]
	}

	if len(rest) < settings.MessageThreshold {
		return history, Result{}, nil
	}

	keep := settings.KeepRecentMessages
	if keep < 0 || keep > len(rest) {
		keep = len(rest)
	}
	toCompress := rest[:len(rest)-keep]
	recent := rest[len(rest)-keep:]

	if len(toCompress) == 0 {
		return history, Result{}, nil
	}

	summary, err := c.summarize(ctx, toCompress, settings)
	if err != nil {
		slog.Warn("compression: LLM summarization failed, using deterministic fallback", "conversation_id", conversationID, "error", err)
		summary = deterministicSummary(toCompress)
	}

	newHistory := make([]message.Message, 0, 2+len(recent))
	if sys != nil {
		newHistory = append(newHistory, *sys)
	}
	newHistory = append(newHistory, message.NewAssistant(summary))
	newHistory = append(newHistory, recent...)

	originalChars := totalChars(toCompress)
	savedChars := originalChars - len(summary)
	if savedChars < 0 {
		savedChars = 0
	}
	tokensSaved := savedChars / 4

	c.mu.Lock()
	st, ok := c.stats[conversationID]
	if !ok {
		st = &Stats{}
		c.stats[conversationID] = st
	}
	st.TotalCompressions++
	st.TokensSavedTotal += tokensSaved
	st.LastSummary = summary
	c.mu.Unlock()

	return newHistory, Result{
		Compressed:           true,
		OriginalCount:        len(history),
		CompressedCount:      len(newHistory),
		Summary:              summary,
		EstimatedTokensSaved: tokensSaved,
	}, nil
}

// StatsFor returns a snapshot of the per-conversation compression stats.
func (c *Compressor) StatsFor(conversationID string) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.stats[conversationID]; ok {
		return *st
	}
	return Stats{}
}

func (c *Compressor) summarize(ctx context.Context, msgs []message.Message, settings conversation.CompressionSettings) (string, error) {
	var sb strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
	}
	prompt := fmt.Sprintf(summarizationSystemPrompt, sb.String())

	temp := settings.SummaryTemperature
	resp, err := c.client.Chat(ctx, []message.Message{message.NewUser(prompt)}, nil, &temp, "")
	if err != nil {
		return "", err
	}
	result, err := resp.FirstMessage()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Content), nil
}

// deterministicSummary is the fallback when the LLM call fails: a message
// count plus up to three user messages truncated to 100 characters.
func deterministicSummary(msgs []message.Message) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Summary of %d earlier messages.", len(msgs))

	count := 0
	for _, m := range msgs {
		if m.Role != message.RoleUser || count >= 3 {
			continue
		}
		content := m.Content
		if runes := []rune(content); len(runes) > 100 {
			content = string(runes[:100])
		}
		fmt.Fprintf(&sb, " User said: %q.", content)
		count++
	}
	return sb.String()
}

func dialogue(history []message.Message) []message.Message {
	if len(history) > 0 && history[0].Role == message.RoleSystem {
		return history[1:]
	}
	return history
}

func totalChars(msgs []message.Message) int {
	n := 0
	for _, m := range msgs {
		n += len(m.Content)
	}
	return n
}
