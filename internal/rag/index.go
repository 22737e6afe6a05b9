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
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"
)

// Result is one scored hit from Index.Search, reused as the RAG query
// service's per-chunk result shape.
type Result struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// entry is one persisted index row: a chunk's fields flattened alongside
// its embedding, per the closed on-disk entry shape
// {id, source, content, embedding}.
type entry struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Content   string    `json:"content"`
	Embedding []float64 `json:"embedding"`
}

func entryFromChunk(c Chunk, embedding []float64) entry {
	return entry{ID: c.ID, Source: c.Source, Content: c.Content, Embedding: embedding}
}

func (e entry) chunk() Chunk {
	return Chunk{ID: e.ID, Source: e.Source, Content: e.Content}
}

// modelState is the embedder's fit state, persisted alongside entries so a
// reloaded index can search without a re-index pass. The remaining
// top-level indexFile fields form the closed on-disk format; model is an
// addition on top of it.
type modelState struct {
	Vocabulary map[string]int `json:"vocabulary"`
	IDF        []float64      `json:"idf"`
}

type indexFile struct {
	Entries         []entry    `json:"entries"`
	VectorDimension int        `json:"vectorDimension"`
	TotalDocuments  int        `json:"totalDocuments"`
	CreatedAt       time.Time  `json:"createdAt"`
	Model           modelState `json:"model"`
}

// Index is the in-process vector store: many-reader/one-writer, guarded by
// a RWMutex since search traffic vastly outnumbers indexing operations.
type Index struct {
	mu       sync.RWMutex
	embedder *Embedder
	entries  []entry
	mirror   Mirror
}

// Mirror is an optional write-through sink for indexed chunks (e.g. a
// Qdrant collection). Index calls it best-effort: IndexChunks logs a
// mirror failure and still returns nil.
type Mirror interface {
	Upsert(chunks []Chunk, embeddings [][]float64) error
}

func NewIndex() *Index {
	return &Index{embedder: NewEmbedder()}
}

// WithMirror attaches an optional write-through mirror.
func (idx *Index) WithMirror(m Mirror) *Index {
	idx.mirror = m
	return idx
}

// IndexChunks fits the embedder on the given chunks' contents and stores
// each chunk with its embedding, replacing any prior contents.
func (idx *Index) IndexChunks(chunks []Chunk) error {
	docs := make([]string, len(chunks))
	for i, c := range chunks {
		docs[i] = c.Content
	}

	idx.mu.Lock()
	idx.embedder.Fit(docs)
	entries := make([]entry, len(chunks))
	for i, c := range chunks {
		entries[i] = entryFromChunk(c, idx.embedder.Embed(c.Content))
	}
	idx.entries = entries
	idx.mu.Unlock()

	if idx.mirror != nil {
		embeddings := make([][]float64, len(entries))
		for i, e := range entries {
			embeddings[i] = e.Embedding
		}
		if err := idx.mirror.Upsert(chunks, embeddings); err != nil {
			slog.Warn("rag: mirror upsert failed", "error", err)
		}
	}
	return nil
}

// Search embeds query, scores it against every entry by cosine similarity,
// filters by minRelevance (inclusive, when non-nil), sorts descending by
// score with a stable insertion-order tie-break, and returns the first
// topK results.
func (idx *Index) Search(query string, topK int, minRelevance *float64) ([]Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.embedder.Dimension() == 0 {
		return nil, nil
	}
	qvec := idx.embedder.Embed(query)

	results := make([]Result, 0, len(idx.entries))
	for _, e := range idx.entries {
		score, err := CosineSimilarity(qvec, e.Embedding)
		if err != nil {
			return nil, err
		}
		if minRelevance != nil && score < *minRelevance {
			continue
		}
		results = append(results, Result{Chunk: e.chunk(), Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Clear empties the index.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = nil
	idx.embedder = NewEmbedder()
}

// Count returns the number of indexed chunks.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Save persists entries and the embedder's fit model (vocabulary + IDF) to
// file as JSON, so Load can restore a searchable index without re-indexing
// the original documents.
func (idx *Index) Save(path string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	data := indexFile{
		Entries:         idx.entries,
		VectorDimension: idx.embedder.Dimension(),
		TotalDocuments:  len(idx.entries),
		CreatedAt:       time.Now(),
		Model: modelState{
			Vocabulary: idx.embedder.vocabulary,
			IDF:        idx.embedder.idf,
		},
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("rag: marshal index: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("rag: write index file: %w", err)
	}
	return nil
}

// Load restores entries and the embedder model from a file written by Save.
func (idx *Index) Load(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("rag: read index file: %w", err)
	}
	var data indexFile
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("rag: unmarshal index: %w", err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = data.Entries
	idx.embedder = &Embedder{vocabulary: data.Model.Vocabulary, idf: data.Model.IDF}
	return nil
}
