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
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// GenerateSchema reflects a Go struct type into the JSON-Schema parameter
// descriptor a declarative tool needs, using the same struct-tag
// conventions the registry's explicit tools document by hand:
//
//	type Args struct {
//	    Query string `json:"query" jsonschema:"required,description=Search query"`
//	    Limit int    `json:"limit,omitempty" jsonschema:"description=Max results,default=10"`
//	}
func GenerateSchema[T any]() (map[string]any, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}

	schema := reflector.Reflect(new(T))

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("tool: marshal schema: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("tool: unmarshal schema: %w", err)
	}
	delete(raw, "$schema")
	delete(raw, "$id")

	if raw["type"] != "object" {
		return raw, nil
	}

	result := map[string]any{
		"type":       "object",
		"properties": raw["properties"],
	}
	if req, ok := raw["required"]; ok {
		result["required"] = req
	}
	return result, nil
}

// Declarative adapts a strongly-typed handler func(ctx, T) (string, error)
// into the registry's Tool contract: arguments arrive as a JSON string,
// Execute unmarshals into T before calling the handler, and the parameter
// schema is derived once at construction time via GenerateSchema[T].
type Declarative[T any] struct {
	name        string
	description string
	schema      map[string]any
	handler     func(ctx context.Context, args T) (string, error)
}

// NewDeclarative builds a Declarative tool. It panics if T's struct tags
// fail to reflect into a schema, since that is a programming error caught
// at registration time, not a runtime condition.
func NewDeclarative[T any](name, description string, handler func(ctx context.Context, args T) (string, error)) *Declarative[T] {
	schema, err := GenerateSchema[T]()
	if err != nil {
		panic(fmt.Sprintf("tool: declarative tool %q: %v", name, err))
	}
	return &Declarative[T]{name: name, description: description, schema: schema, handler: handler}
}

func (d *Declarative[T]) Info() Info {
	return Info{Name: d.name, Description: d.description, ParametersSchema: d.schema}
}

func (d *Declarative[T]) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args T
	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
	}
	return d.handler(ctx, args)
}
