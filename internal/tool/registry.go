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

package tool

import (
	"context"
	"fmt"

	"github.com/agentcore/core/internal/llm"
	"github.com/agentcore/core/internal/registry"
)

// RegistryError wraps a registry operation failure with enough context to
// log meaningfully, mirroring the component/action/message/err shape the
// teacher uses for its own registry errors.
type RegistryError struct {
	Component string
	Action    string
	Message   string
	Err       error
}

func (e *RegistryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Component, e.Action, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Component, e.Action, e.Message)
}

func (e *RegistryError) Unwrap() error { return e.Err }

func newRegistryError(action, message string, err error) *RegistryError {
	return &RegistryError{Component: "ToolRegistry", Action: action, Message: message, Err: err}
}

// Registry is the process-wide set of registered tools. It is write-once at
// startup: registering a tool while the agent is serving traffic is not a
// supported usage pattern, matching the teacher's ToolRegistry contract.
type Registry struct {
	base *registry.BaseRegistry[Tool]
}

func NewRegistry() *Registry {
	return &Registry{base: registry.NewBaseRegistry[Tool]()}
}

// Register adds a tool under its own name. Registering a duplicate name is
// an error.
func (r *Registry) Register(t Tool) error {
	info := t.Info()
	if info.Name == "" {
		return newRegistryError("Register", "tool name cannot be empty", nil)
	}
	if err := r.base.Register(info.Name, t); err != nil {
		return newRegistryError("Register", fmt.Sprintf("tool %q", info.Name), err)
	}
	return nil
}

// GetAllTools returns the JSON-Schema tool definitions the LLM client sends
// with every chat request, in registration order.
func (r *Registry) GetAllTools() []llm.ToolDefinition {
	tools := r.base.List()
	defs := make([]llm.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		info := t.Info()
		defs = append(defs, llm.ToolDefinition{
			Type: "function",
			Function: llm.FunctionSpec{
				Name:        info.Name,
				Description: info.Description,
				Parameters:  info.ParametersSchema,
			},
		})
	}
	return defs
}

// GetToolNames returns the registered tool names in registration order.
func (r *Registry) GetToolNames() []string {
	return r.base.Names()
}

// ExecuteTool dispatches to the named tool, converting an unknown-name
// lookup into the same "Ошибка: ..." result-string convention the tool
// itself uses for runtime failures, since the registry never returns a
// result as a distinct error channel.
func (r *Registry) ExecuteTool(ctx context.Context, name, argsJSON string) string {
	t, ok := r.base.Get(name)
	if !ok {
		return ErrorResult(fmt.Sprintf("unknown tool %q", name))
	}
	result, err := t.Execute(ctx, argsJSON)
	if err != nil {
		return ErrorResult(err.Error())
	}
	return result
}

func (r *Registry) Count() int { return r.base.Count() }
