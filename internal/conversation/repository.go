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

// Package conversation defines the ConversationRepository contract and its
// three durability tiers: in-memory, KV-TTL (redisrepo), and relational
// (sqlrepo).
package conversation

import (
	"context"
	"time"

	"github.com/agentcore/core/internal/message"
)

// ResponseFormat is the required shape of the assistant's reply.
type ResponseFormat string

const (
	FormatPlain    ResponseFormat = "plain"
	FormatMarkdown ResponseFormat = "markdown"
	FormatJSON     ResponseFormat = "json"
)

// CollectionMode selects a closed set of structured-output templates the
// PromptBuilder expands into a field-enumeration clause.
type CollectionMode string

const (
	CollectionTechnicalSpec     CollectionMode = "technical_spec"
	CollectionDesignBrief       CollectionMode = "design_brief"
	CollectionProjectSummary    CollectionMode = "project_summary"
	CollectionSolveDirect       CollectionMode = "solve_direct"
	CollectionSolveStepByStep   CollectionMode = "solve_step_by_step"
	CollectionSolveExpertPanel  CollectionMode = "solve_expert_panel"
	CollectionCustom            CollectionMode = "custom"
)

// CollectionSettings configures the PromptBuilder's structured-output
// clause.
type CollectionSettings struct {
	Enabled      bool           `json:"enabled"`
	Mode         CollectionMode `json:"mode,omitempty"`
	CustomPrompt string         `json:"custom_prompt,omitempty"`
	ResultTitle  string         `json:"result_title,omitempty"`
}

// CompressionSettings configures the HistoryCompressor for one
// conversation.
type CompressionSettings struct {
	Enabled             bool    `json:"enabled"`
	MessageThreshold    int     `json:"message_threshold"`
	KeepRecentMessages  int     `json:"keep_recent_messages"`
	SummaryMaxTokens    int     `json:"summary_max_tokens"`
	SummaryTemperature  float64 `json:"summary_temperature"`
}

// DefaultCompressionSettings matches spec.md §4.5's defaults.
func DefaultCompressionSettings() CompressionSettings {
	return CompressionSettings{
		Enabled:            true,
		MessageThreshold:   10,
		KeepRecentMessages: 4,
		SummaryMaxTokens:   500,
		SummaryTemperature: 0.3,
	}
}

// Info is a conversation's metadata row, independent of its message
// history.
type Info struct {
	ID                  string              `json:"id"`
	Title               string              `json:"title"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
	Format              ResponseFormat      `json:"format"`
	Collection          CollectionSettings  `json:"collection"`
	Compression         CompressionSettings `json:"compression"`
	MessageCount        int                 `json:"message_count"`
}

// SearchResult is one hit from a cross-conversation content search.
type SearchResult struct {
	ConversationID    string    `json:"conversation_id"`
	ConversationTitle string    `json:"conversation_title"`
	MessageIndex      int       `json:"message_index"`
	Highlight         string    `json:"highlight"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Export is a round-trippable snapshot of one conversation. Tool calls
// inside messages serialize as an embedded JSON string on ExportedMessage
// to avoid a double-schema risk between the export envelope and the
// message's own tool-call shape.
type Export struct {
	Title       string              `json:"title"`
	Format      ResponseFormat      `json:"format"`
	Collection  CollectionSettings  `json:"collection"`
	Compression CompressionSettings `json:"compression"`
	Messages    []ExportedMessage   `json:"messages"`
}

type ExportedMessage struct {
	Role         message.Role `json:"role"`
	Content      string       `json:"content"`
	ToolCallsRaw string       `json:"tool_calls_json,omitempty"`
	ToolCallID   string       `json:"tool_call_id,omitempty"`
}

// Repository is the full ConversationRepository contract. Every
// implementation must guarantee: operations on distinct ids never block
// each other, while operations on the same id observe a serial order.
type Repository interface {
	HasConversation(ctx context.Context, id string) (bool, error)

	// InitConversation is idempotent: a second call on an existing id is a
	// no-op that does not alter history or metadata.
	InitConversation(ctx context.Context, id, systemMessage string) error

	GetHistory(ctx context.Context, id string) ([]message.Message, error)
	AddMessage(ctx context.Context, id string, msg message.Message) error
	AddMessages(ctx context.Context, id string, msgs []message.Message) error

	// UpdateSystemPrompt rewrites history[0] only if that entry is
	// role=system; otherwise it is a silent no-op.
	UpdateSystemPrompt(ctx context.Context, id, systemMessage string) error

	ReplaceHistory(ctx context.Context, id string, history []message.Message) error
	GetMessageCount(ctx context.Context, id string) (int, error)

	GetFormat(ctx context.Context, id string) (ResponseFormat, error)
	SetFormat(ctx context.Context, id string, format ResponseFormat) error

	GetCollectionSettings(ctx context.Context, id string) (CollectionSettings, error)
	SetCollectionSettings(ctx context.Context, id string, settings CollectionSettings) error

	GetCompressionSettings(ctx context.Context, id string) (CompressionSettings, error)
	SetCompressionSettings(ctx context.Context, id string, settings CompressionSettings) error

	CreateConversation(ctx context.Context, title string) (string, error)
	RenameConversation(ctx context.Context, id, title string) error
	DeleteConversation(ctx context.Context, id string) error
	ListConversations(ctx context.Context) ([]Info, error)
	GetConversationInfo(ctx context.Context, id string) (Info, error)

	// SearchMessages scans every conversation's content case-insensitively,
	// returning hits sorted by the owning conversation's updatedAt
	// descending.
	SearchMessages(ctx context.Context, query string) ([]SearchResult, error)

	ExportConversation(ctx context.Context, id string) (*Export, error)
	ImportConversation(ctx context.Context, export Export) (string, error)
}

// ErrNotFound is returned by operations that require an existing
// conversation id.
type ErrNotFound struct {
	ID string
}

func (e *ErrNotFound) Error() string {
	return "conversation: not found: " + e.ID
}
