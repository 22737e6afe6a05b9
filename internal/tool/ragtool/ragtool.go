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

// Package ragtool exposes the RAG engine (internal/rag) as agent tools.
package ragtool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentcore/core/internal/rag"
	"github.com/agentcore/core/internal/tool"
)

// Tools bundles the RAG index, chunker, and query service a given agent
// instance shares across its rag_* tools.
type Tools struct {
	index   *rag.Index
	chunker *rag.Chunker
	service *rag.Service
}

func New(index *rag.Index, chunker *rag.Chunker, service *rag.Service) *Tools {
	return &Tools{index: index, chunker: chunker, service: service}
}

// Register adds every RAG tool (the rag_* tools, ask_with_rag and the two
// compare_rag_* tools) to registry.
func (t *Tools) Register(registry *tool.Registry) error {
	for _, tl := range []tool.Tool{
		t.indexDocuments(),
		t.search(),
		t.indexInfo(),
		t.askWithRAG(),
		t.compareAnswers(),
		t.compareWithReranking(),
	} {
		if err := registry.Register(tl); err != nil {
			return err
		}
	}
	return nil
}

type indexDocumentsArgs struct {
	Documents []struct {
		Source  string `json:"source"`
		Content string `json:"content"`
	} `json:"documents" jsonschema:"required,description=Documents to index, each with a source label and text content"`
}

func (t *Tools) indexDocuments() tool.Tool {
	return tool.NewDeclarative("rag_index_documents", "Chunks and indexes documents for later retrieval.", func(ctx context.Context, args indexDocumentsArgs) (string, error) {
		var chunks []rag.Chunk
		for _, d := range args.Documents {
			chunks = append(chunks, t.chunker.Chunk(d.Source, d.Content)...)
		}
		if err := t.index.IndexChunks(chunks); err != nil {
			return tool.ErrorResult(err.Error()), nil
		}
		return fmt.Sprintf("indexed %d documents into %d chunks", len(args.Documents), len(chunks)), nil
	})
}

type searchArgs struct {
	Query        string   `json:"query" jsonschema:"required,description=Search query"`
	TopK         int      `json:"top_k,omitempty" jsonschema:"description=Number of results to return,default=5"`
	MinRelevance *float64 `json:"min_relevance,omitempty" jsonschema:"description=Minimum cosine similarity score to keep a result"`
}

func (t *Tools) search() tool.Tool {
	return tool.NewDeclarative("rag_search", "Searches the RAG index for chunks relevant to a query.", func(ctx context.Context, args searchArgs) (string, error) {
		topK := args.TopK
		if topK <= 0 {
			topK = 5
		}
		results, err := t.index.Search(args.Query, topK, args.MinRelevance)
		if err != nil {
			return tool.ErrorResult(err.Error()), nil
		}
		data, err := json.Marshal(results)
		if err != nil {
			return tool.ErrorResult(err.Error()), nil
		}
		return string(data), nil
	})
}

type indexInfoArgs struct{}

func (t *Tools) indexInfo() tool.Tool {
	return tool.NewDeclarative("rag_index_info", "Reports the number of chunks currently in the RAG index.", func(ctx context.Context, _ indexInfoArgs) (string, error) {
		return fmt.Sprintf("chunks=%d", t.index.Count()), nil
	})
}

type askWithRAGArgs struct {
	Question     string   `json:"question" jsonschema:"required,description=Question to answer using indexed documents"`
	TopK         int      `json:"top_k,omitempty" jsonschema:"description=Number of chunks to retrieve,default=5"`
	MinRelevance *float64 `json:"min_relevance,omitempty"`
}

func (t *Tools) askWithRAG() tool.Tool {
	return tool.NewDeclarative("ask_with_rag", "Answers a question using retrieval-augmented generation over the indexed documents.", func(ctx context.Context, args askWithRAGArgs) (string, error) {
		topK := args.TopK
		if topK <= 0 {
			topK = 5
		}
		result, err := t.service.QueryWithRAG(ctx, args.Question, topK, args.MinRelevance)
		if err != nil {
			return tool.ErrorResult(err.Error()), nil
		}
		return result.Answer, nil
	})
}

type compareArgs struct {
	Question     string   `json:"question" jsonschema:"required,description=Question to answer both ways"`
	TopK         int      `json:"top_k,omitempty" jsonschema:"default=5"`
	MinRelevance *float64 `json:"min_relevance,omitempty"`
}

func (t *Tools) compareAnswers() tool.Tool {
	return tool.NewDeclarative("compare_rag_answers", "Answers a question both with and without retrieval augmentation, for side-by-side comparison.", func(ctx context.Context, args compareArgs) (string, error) {
		topK := args.TopK
		if topK <= 0 {
			topK = 5
		}
		withRAG, withoutRAG, err := t.service.CompareAnswers(ctx, args.Question, topK, args.MinRelevance)
		if err != nil {
			return tool.ErrorResult(err.Error()), nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "With RAG:\n%s\n\nWithout RAG:\n%s", withRAG.Answer, withoutRAG.Answer)
		return b.String(), nil
	})
}

func (t *Tools) compareWithReranking() tool.Tool {
	return tool.NewDeclarative("compare_rag_with_reranking", "Answers a question with plain retrieval and with reranked retrieval, for side-by-side comparison.", func(ctx context.Context, args compareArgs) (string, error) {
		topK := args.TopK
		if topK <= 0 {
			topK = 5
		}
		plain, reranked, err := t.service.CompareWithReranking(ctx, args.Question, topK, args.MinRelevance)
		if err != nil {
			return tool.ErrorResult(err.Error()), nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Plain:\n%s\n\nReranked:\n%s", plain.Answer, reranked.Answer)
		return b.String(), nil
	})
}
