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

// Package tool defines the uniform Tool contract the agent dispatches
// against: name, description, JSON-Schema parameters, and a single
// execute(argsJSON) -> string operation. The returned string is opaque to
// the registry - a human-readable error convention ("Ошибка: ...") is used
// by tools rather than a distinct error channel, matching how the model
// consumes tool results as plain text.
package tool

import "context"

// Info describes a tool's identity and calling convention to both the
// registry and, via ParametersSchema, the LLM provider's tool list.
type Info struct {
	Name        string
	Description string
	// ParametersSchema is a JSON-Schema object (as produced by
	// invopop/jsonschema for declarative tools, or hand-built for explicit
	// ones) describing the single JSON argument object Execute expects.
	ParametersSchema map[string]any
}

// Tool is the uniform contract every registered tool satisfies, whether
// built explicitly or reflected from struct tags by the declarative path.
// Execute must be safe for concurrent invocation unless the tool serializes
// internally.
type Tool interface {
	Info() Info
	Execute(ctx context.Context, argsJSON string) (string, error)
}

// ErrorResult formats a tool failure as the opaque "Ошибка: <msg>" result
// string convention, matching the cyrillic marker spec.md's tool contract
// calls out. It is never returned as a Go error - failures live in the
// result string so the model sees them as conversation content.
func ErrorResult(msg string) string {
	return "Ошибка: " + msg
}
