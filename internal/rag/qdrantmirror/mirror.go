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

// Package qdrantmirror optionally mirrors indexed RAG chunks into a Qdrant
// collection. It is a pure write-through cache: search answers always come
// from the in-process cosine index, never from Qdrant, so a mirror outage
// degrades durability of the external copy but never query correctness.
package qdrantmirror

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/agentcore/core/internal/rag"
)

// Config points at a running Qdrant instance.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// Mirror implements rag.Mirror against a Qdrant collection.
type Mirror struct {
	client     *qdrant.Client
	collection string
}

func New(cfg Config) (*Mirror, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrantmirror: connect to %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &Mirror{client: client, collection: cfg.Collection}, nil
}

var _ rag.Mirror = (*Mirror)(nil)

// Upsert pushes chunks and their embeddings into the configured
// collection, creating it on first use sized to the embedding dimension.
func (m *Mirror) Upsert(chunks []rag.Chunk, embeddings [][]float64) error {
	if len(chunks) == 0 {
		return nil
	}
	ctx := context.Background()

	exists, err := m.client.CollectionExists(ctx, m.collection)
	if err != nil {
		return fmt.Errorf("qdrantmirror: check collection %q: %w", m.collection, err)
	}
	if !exists {
		err = m.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: m.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(len(embeddings[0])),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("qdrantmirror: create collection %q: %w", m.collection, err)
		}
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, c := range chunks {
		vec := make([]float32, len(embeddings[i]))
		for j, v := range embeddings[i] {
			vec[j] = float32(v)
		}
		idVal, err := qdrant.NewValue(c.ID)
		if err != nil {
			return fmt.Errorf("qdrantmirror: chunk id %q: %w", c.ID, err)
		}
		sourceVal, err := qdrant.NewValue(c.Source)
		if err != nil {
			return fmt.Errorf("qdrantmirror: chunk source %q: %w", c.Source, err)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(i)),
			Vectors: qdrant.NewVectors(vec...),
			Payload: map[string]*qdrant.Value{
				"chunk_id": idVal,
				"source":   sourceVal,
			},
		})
	}

	_, err = m.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: m.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrantmirror: upsert points: %w", err)
	}
	return nil
}
