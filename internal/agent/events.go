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

import "github.com/agentcore/core/internal/message"

// EventType identifies the kind of a streamed turn event.
type EventType string

const (
	EventStart       EventType = "START"
	EventContent     EventType = "CONTENT"
	EventToolCall    EventType = "TOOL_CALL"
	EventProcessing  EventType = "PROCESSING"
	EventToolResult  EventType = "TOOL_RESULT"
	EventDone        EventType = "DONE"
	EventError       EventType = "ERROR"
)

// StreamEvent is one item in the Agent's streaming event sequence. Only the
// fields relevant to Type are populated.
type StreamEvent struct {
	Type           EventType        `json:"type"`
	ConversationID string           `json:"conversationId"`
	MessageID      string           `json:"messageId"`
	Content        string           `json:"content,omitempty"`
	ToolCall       *message.ToolCall `json:"toolCall,omitempty"`
	ToolResult     string           `json:"toolResult,omitempty"`
	Notice         string           `json:"notice,omitempty"`
	Error          string           `json:"error,omitempty"`
}
