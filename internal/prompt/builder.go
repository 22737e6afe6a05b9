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

// Package prompt builds the system prompt handed to the LLM on every turn:
// a persona clause, a response-format clause, and an optional structured
// collection-mode clause.
package prompt

import (
	"fmt"
	"strings"

	"github.com/agentcore/core/internal/conversation"
)

const defaultPersona = "You are a helpful, precise assistant. Answer directly and avoid unnecessary hedging."

// collectionFields is the closed set of field enumerations for every
// collection mode. This is data, not code: each mode maps to the ordered
// list of fields a structured response must contain.
var collectionFields = map[conversation.CollectionMode][]string{
	conversation.CollectionTechnicalSpec:    {"Title", "Overview", "Requirements", "Design", "Risks"},
	conversation.CollectionDesignBrief:      {"Title", "Goals", "Constraints", "Proposed Approach", "Open Questions"},
	conversation.CollectionProjectSummary:   {"Title", "Status", "Highlights", "Blockers", "Next Steps"},
	conversation.CollectionSolveDirect:      {"Answer"},
	conversation.CollectionSolveStepByStep:  {"Steps", "Final Answer"},
	conversation.CollectionSolveExpertPanel: {"Perspective A", "Perspective B", "Perspective C", "Synthesis"},
}

// Build composes the system prompt for a given response format and
// optional collection settings. It is a pure function: identical inputs
// always produce a byte-identical string.
func Build(format conversation.ResponseFormat, collection *conversation.CollectionSettings) string {
	var sb strings.Builder

	persona := defaultPersona
	if collection != nil && collection.CustomPrompt != "" {
		persona = collection.CustomPrompt
	}
	sb.WriteString(persona)

	sb.WriteString("\n\n")
	sb.WriteString(formatClause(format))

	if collection != nil && collection.Enabled {
		sb.WriteString("\n\n")
		sb.WriteString(collectionClause(collection))
	}

	return sb.String()
}

func formatClause(format conversation.ResponseFormat) string {
	switch format {
	case conversation.FormatJSON:
		return "Respond with a single strict JSON object. Do not include any text outside the JSON object."
	case conversation.FormatMarkdown:
		return "Respond using Markdown, with clear headings for each logical section of your answer."
	default:
		return "Respond in plain prose, without any special formatting."
	}
}

func collectionClause(collection *conversation.CollectionSettings) string {
	if collection.Mode == conversation.CollectionCustom {
		title := collection.ResultTitle
		if title == "" {
			title = "Result"
		}
		return fmt.Sprintf("Structure your response under the heading %q, following any field guidance already given above.", title)
	}

	fields, ok := collectionFields[collection.Mode]
	if !ok {
		return ""
	}

	var sb strings.Builder
	title := collection.ResultTitle
	if title == "" {
		title = string(collection.Mode)
	}
	fmt.Fprintf(&sb, "Structure your response as %q with exactly these fields, in order: ", title)
	for i, f := range fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(f)
	}
	sb.WriteString(".")
	return sb.String()
}
