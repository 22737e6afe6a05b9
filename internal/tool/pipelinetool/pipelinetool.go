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

// Package pipelinetool demonstrates chaining tool calls into a small
// search -> summarize -> save workflow, driven entirely by the LLM
// calling one tool at a time rather than any in-process orchestration.
package pipelinetool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentcore/core/internal/llm"
	"github.com/agentcore/core/internal/message"
	"github.com/agentcore/core/internal/rag"
	"github.com/agentcore/core/internal/tool"
)

// Tools bundles the RAG index and an LLM client behind the pipeline_* demo
// tools: search the index, summarize the hits, save the summary to disk.
type Tools struct {
	index   *rag.Index
	llm     llm.Client
	saveDir string
}

func New(index *rag.Index, client llm.Client, saveDir string) *Tools {
	return &Tools{index: index, llm: client, saveDir: saveDir}
}

// Register adds every pipeline_* tool to registry.
func (t *Tools) Register(registry *tool.Registry) error {
	for _, tl := range []tool.Tool{
		t.searchDocs(),
		t.summarize(),
		t.saveToFile(),
	} {
		if err := registry.Register(tl); err != nil {
			return err
		}
	}
	return nil
}

type searchDocsArgs struct {
	Query string `json:"query" jsonschema:"required,description=Search query to run against the indexed documents"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"description=Number of results to return,default=5"`
}

func (t *Tools) searchDocs() tool.Tool {
	return tool.NewDeclarative("pipeline_search_docs", "Searches the indexed documents and returns the matching passages, for feeding into pipeline_summarize.", func(ctx context.Context, args searchDocsArgs) (string, error) {
		topK := args.TopK
		if topK <= 0 {
			topK = 5
		}
		results, err := t.index.Search(args.Query, topK, nil)
		if err != nil {
			return tool.ErrorResult(err.Error()), nil
		}
		if len(results) == 0 {
			return "no matching passages found", nil
		}
		var b strings.Builder
		for i, r := range results {
			fmt.Fprintf(&b, "[%d] (source: %s, score: %.3f)\n%s\n\n", i+1, r.Chunk.Source, r.Score, r.Chunk.Content)
		}
		return b.String(), nil
	})
}

type summarizeArgs struct {
	Text      string `json:"text" jsonschema:"required,description=Text to summarize, typically the output of pipeline_search_docs"`
	MaxPoints int    `json:"max_points,omitempty" jsonschema:"description=Maximum number of bullet points in the summary,default=5"`
}

func (t *Tools) summarize() tool.Tool {
	return tool.NewDeclarative("pipeline_summarize", "Summarizes a block of text into a short bullet list.", func(ctx context.Context, args summarizeArgs) (string, error) {
		maxPoints := args.MaxPoints
		if maxPoints <= 0 {
			maxPoints = 5
		}
		prompt := fmt.Sprintf("Summarize the following text in at most %d bullet points:\n\n%s", maxPoints, args.Text)
		resp, err := t.llm.Chat(ctx, []message.Message{
			{Role: message.RoleUser, Content: prompt},
		}, nil, nil, "")
		if err != nil {
			return tool.ErrorResult(err.Error()), nil
		}
		if len(resp.Choices) == 0 {
			return tool.ErrorResult("llm returned no choices"), nil
		}
		return resp.Choices[0].Message.Content, nil
	})
}

type saveToFileArgs struct {
	Filename string `json:"filename" jsonschema:"required,description=File name to save under (no path separators)"`
	Content  string `json:"content" jsonschema:"required,description=Content to write to the file"`
}

func (t *Tools) saveToFile() tool.Tool {
	return tool.NewDeclarative("pipeline_save_to_file", "Saves text content to a file under the pipeline output directory.", func(ctx context.Context, args saveToFileArgs) (string, error) {
		name := filepath.Base(args.Filename)
		if name == "." || name == string(filepath.Separator) {
			return tool.ErrorResult("invalid filename"), nil
		}
		path := filepath.Join(t.saveDir, name)
		if err := os.MkdirAll(t.saveDir, 0o755); err != nil {
			return tool.ErrorResult(err.Error()), nil
		}
		if err := os.WriteFile(path, []byte(args.Content), 0o644); err != nil {
			return tool.ErrorResult(err.Error()), nil
		}
		return fmt.Sprintf("saved %d bytes to %s", len(args.Content), path), nil
	})
}
