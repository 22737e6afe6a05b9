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

package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agentcore/core/internal/llm"
	"github.com/agentcore/core/internal/message"
)

const ragSystemPrompt = "You answer questions using only the provided context sources. " +
	"If the context does not contain the answer, say so plainly."

// QueryResult is the outcome of a single RAG-backed (or RAG-free) question.
type QueryResult struct {
	Answer            string    `json:"answer"`
	UsedRAG           bool      `json:"used_rag"`
	FoundChunks       int       `json:"found_chunks"`
	RelevanceScores   []float64 `json:"relevance_scores,omitempty"`
	Sources           []string  `json:"sources,omitempty"`
	DurationMs        int64     `json:"duration_ms"`
	PromptTokens      int       `json:"prompt_tokens,omitempty"`
	CompletionTokens  int       `json:"completion_tokens,omitempty"`
}

// Service composes an Index and Reranker with an LLM client to answer
// questions with or without retrieval augmentation.
type Service struct {
	index    *Index
	reranker *Reranker
	client   llm.Client
}

func NewService(index *Index, client llm.Client) *Service {
	return &Service{index: index, reranker: NewReranker(), client: client}
}

// QueryWithRAG retrieves topK chunks (filtered by minRelevance), builds a
// context-enriched user message, and answers with the LLM.
func (s *Service) QueryWithRAG(ctx context.Context, question string, topK int, minRelevance *float64) (*QueryResult, error) {
	start := time.Now()

	results, err := s.index.Search(question, topK, minRelevance)
	if err != nil {
		return nil, fmt.Errorf("rag: search: %w", err)
	}

	prompt := buildContextPrompt(question, results)
	resp, err := s.client.Chat(ctx, []message.Message{
		message.NewSystem(ragSystemPrompt),
		message.NewUser(prompt),
	}, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("rag: chat: %w", err)
	}
	answerMsg, err := resp.FirstMessage()
	if err != nil {
		return nil, err
	}

	return &QueryResult{
		Answer:           answerMsg.Content,
		UsedRAG:          len(results) > 0,
		FoundChunks:      len(results),
		RelevanceScores:  scores(results),
		Sources:          sources(results),
		DurationMs:       time.Since(start).Milliseconds(),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// QueryWithoutRAG answers the question directly, with no retrieval step.
func (s *Service) QueryWithoutRAG(ctx context.Context, question string) (*QueryResult, error) {
	start := time.Now()

	resp, err := s.client.Chat(ctx, []message.Message{
		message.NewUser(question),
	}, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("rag: chat: %w", err)
	}
	answerMsg, err := resp.FirstMessage()
	if err != nil {
		return nil, err
	}

	return &QueryResult{
		Answer:           answerMsg.Content,
		UsedRAG:          false,
		DurationMs:       time.Since(start).Milliseconds(),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// CompareAnswers runs QueryWithRAG and QueryWithoutRAG sequentially and
// returns both results side by side.
func (s *Service) CompareAnswers(ctx context.Context, question string, topK int, minRelevance *float64) (withRAG, withoutRAG *QueryResult, err error) {
	withRAG, err = s.QueryWithRAG(ctx, question, topK, minRelevance)
	if err != nil {
		return nil, nil, err
	}
	withoutRAG, err = s.QueryWithoutRAG(ctx, question)
	if err != nil {
		return nil, nil, err
	}
	return withRAG, withoutRAG, nil
}

// CompareWithReranking runs plain RAG and reranked RAG sequentially,
// returning both results side by side.
func (s *Service) CompareWithReranking(ctx context.Context, question string, topK int, minRelevance *float64) (plain, reranked *QueryResult, err error) {
	plain, err = s.QueryWithRAG(ctx, question, topK, minRelevance)
	if err != nil {
		return nil, nil, err
	}

	start := time.Now()
	results, err := s.index.Search(question, topK*2, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("rag: search: %w", err)
	}
	results = s.reranker.ProcessResults(question, results, minRelevance, true)
	if len(results) > topK {
		results = results[:topK]
	}

	prompt := buildContextPrompt(question, results)
	resp, err := s.client.Chat(ctx, []message.Message{
		message.NewSystem(ragSystemPrompt),
		message.NewUser(prompt),
	}, nil, nil, "")
	if err != nil {
		return nil, nil, fmt.Errorf("rag: chat: %w", err)
	}
	answerMsg, err := resp.FirstMessage()
	if err != nil {
		return nil, nil, err
	}

	reranked = &QueryResult{
		Answer:           answerMsg.Content,
		UsedRAG:          len(results) > 0,
		FoundChunks:      len(results),
		RelevanceScores:  scores(results),
		Sources:          sources(results),
		DurationMs:       time.Since(start).Milliseconds(),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	return plain, reranked, nil
}

func buildContextPrompt(question string, results []Result) string {
	if len(results) == 0 {
		return question
	}
	var b strings.Builder
	b.WriteString("Context:\n")
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] (score=%.3f, source=%s)\n%s\n\n", i+1, r.Score, r.Chunk.Source, r.Chunk.Content)
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}

func scores(results []Result) []float64 {
	out := make([]float64, len(results))
	for i, r := range results {
		out[i] = r.Score
	}
	return out
}

func sources(results []Result) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range results {
		if _, ok := seen[r.Chunk.Source]; ok {
			continue
		}
		seen[r.Chunk.Source] = struct{}{}
		out = append(out, r.Chunk.Source)
	}
	return out
}
