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

// Package rag implements the retrieval-augmented-generation engine: an
// overlapping-window chunker, a TF-IDF embedder, a cosine-similarity index,
// a threshold reranker, and the query service that wires them to an LLM
// client.
package rag

import "fmt"

// Chunk is one overlapping window of a source document.
type Chunk struct {
	ID      string `json:"id"`
	Source  string `json:"source"`
	Content string `json:"content"`
}

// Chunker splits document content into overlapping windows.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker builds a Chunker windowing on byte length. Defaults
// (size=500, overlap=50) match the spec's ~500/~50 character windows.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 500
	}
	if overlap < 0 || overlap >= size {
		overlap = 50
	}
	return &Chunker{size: size, overlap: overlap}
}

// Chunk splits content into overlapping windows of size bytes with
// overlap bytes shared between consecutive windows. A document shorter
// than size is returned as a single chunk.
func (c *Chunker) Chunk(source, content string) []Chunk {
	if len(content) <= c.size {
		return []Chunk{{ID: chunkID(source, 0), Source: source, Content: content}}
	}

	var chunks []Chunk
	step := c.size - c.overlap
	if step <= 0 {
		step = c.size
	}

	idx := 0
	for start := 0; start < len(content); start += step {
		end := start + c.size
		if end > len(content) {
			end = len(content)
		}
		chunks = append(chunks, Chunk{
			ID:      chunkID(source, idx),
			Source:  source,
			Content: content[start:end],
		})
		idx++
		if end == len(content) {
			break
		}
	}
	return chunks
}

func chunkID(source string, index int) string {
	return fmt.Sprintf("%s#%d", source, index)
}
