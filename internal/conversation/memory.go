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

package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/agentcore/core/internal/message"
)

type conversationData struct {
	mu          sync.RWMutex
	history     []message.Message
	title       string
	createdAt   time.Time
	updatedAt   time.Time
	format      ResponseFormat
	collection  CollectionSettings
	compression CompressionSettings
}

// InMemoryRepository is a map-of-structs implementation with per-id
// locking: operations on distinct ids never block each other, while
// operations on the same id serialize through that id's own mutex.
type InMemoryRepository struct {
	mu            sync.RWMutex
	conversations map[string]*conversationData
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{conversations: make(map[string]*conversationData)}
}

func (r *InMemoryRepository) get(id string) (*conversationData, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conversations[id]
	return c, ok
}

func (r *InMemoryRepository) HasConversation(ctx context.Context, id string) (bool, error) {
	_, ok := r.get(id)
	return ok, nil
}

func (r *InMemoryRepository) InitConversation(ctx context.Context, id, systemMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.conversations[id]; exists {
		return nil
	}
	now := time.Now()
	r.conversations[id] = &conversationData{
		history:     []message.Message{message.NewSystem(systemMessage)},
		title:       id,
		createdAt:   now,
		updatedAt:   now,
		format:      FormatPlain,
		compression: DefaultCompressionSettings(),
	}
	return nil
}

func (r *InMemoryRepository) GetHistory(ctx context.Context, id string) ([]message.Message, error) {
	c, ok := r.get(id)
	if !ok {
		return nil, &ErrNotFound{ID: id}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]message.Message, len(c.history))
	copy(out, c.history)
	return out, nil
}

func (r *InMemoryRepository) AddMessage(ctx context.Context, id string, msg message.Message) error {
	return r.AddMessages(ctx, id, []message.Message{msg})
}

func (r *InMemoryRepository) AddMessages(ctx context.Context, id string, msgs []message.Message) error {
	c, ok := r.get(id)
	if !ok {
		return &ErrNotFound{ID: id}
	}
	if len(msgs) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, msgs...)
	c.updatedAt = time.Now()
	return nil
}

func (r *InMemoryRepository) UpdateSystemPrompt(ctx context.Context, id, systemMessage string) error {
	c, ok := r.get(id)
	if !ok {
		return &ErrNotFound{ID: id}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.history) == 0 || c.history[0].Role != message.RoleSystem {
		return nil
	}
	c.history[0] = message.NewSystem(systemMessage)
	c.updatedAt = time.Now()
	return nil
}

func (r *InMemoryRepository) ReplaceHistory(ctx context.Context, id string, history []message.Message) error {
	c, ok := r.get(id)
	if !ok {
		return &ErrNotFound{ID: id}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append([]message.Message(nil), history...)
	c.updatedAt = time.Now()
	return nil
}

func (r *InMemoryRepository) GetMessageCount(ctx context.Context, id string) (int, error) {
	c, ok := r.get(id)
	if !ok {
		return 0, &ErrNotFound{ID: id}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.history), nil
}

func (r *InMemoryRepository) GetFormat(ctx context.Context, id string) (ResponseFormat, error) {
	c, ok := r.get(id)
	if !ok {
		return "", &ErrNotFound{ID: id}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.format, nil
}

func (r *InMemoryRepository) SetFormat(ctx context.Context, id string, format ResponseFormat) error {
	c, ok := r.get(id)
	if !ok {
		return &ErrNotFound{ID: id}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.format = format
	c.updatedAt = time.Now()
	return nil
}

func (r *InMemoryRepository) GetCollectionSettings(ctx context.Context, id string) (CollectionSettings, error) {
	c, ok := r.get(id)
	if !ok {
		return CollectionSettings{}, &ErrNotFound{ID: id}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.collection, nil
}

func (r *InMemoryRepository) SetCollectionSettings(ctx context.Context, id string, settings CollectionSettings) error {
	c, ok := r.get(id)
	if !ok {
		return &ErrNotFound{ID: id}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.collection = settings
	c.updatedAt = time.Now()
	return nil
}

func (r *InMemoryRepository) GetCompressionSettings(ctx context.Context, id string) (CompressionSettings, error) {
	c, ok := r.get(id)
	if !ok {
		return CompressionSettings{}, &ErrNotFound{ID: id}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.compression, nil
}

func (r *InMemoryRepository) SetCompressionSettings(ctx context.Context, id string, settings CompressionSettings) error {
	c, ok := r.get(id)
	if !ok {
		return &ErrNotFound{ID: id}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.compression = settings
	c.updatedAt = time.Now()
	return nil
}

func (r *InMemoryRepository) CreateConversation(ctx context.Context, title string) (string, error) {
	id := uuid.NewString()
	if title == "" {
		title = id
	}
	r.mu.Lock()
	now := time.Now()
	r.conversations[id] = &conversationData{
		title:       title,
		createdAt:   now,
		updatedAt:   now,
		format:      FormatPlain,
		compression: DefaultCompressionSettings(),
	}
	r.mu.Unlock()
	return id, nil
}

func (r *InMemoryRepository) RenameConversation(ctx context.Context, id, title string) error {
	c, ok := r.get(id)
	if !ok {
		return &ErrNotFound{ID: id}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.title = title
	c.updatedAt = time.Now()
	return nil
}

func (r *InMemoryRepository) DeleteConversation(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conversations[id]; !ok {
		return &ErrNotFound{ID: id}
	}
	delete(r.conversations, id)
	return nil
}

func (r *InMemoryRepository) ListConversations(ctx context.Context) ([]Info, error) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.conversations))
	for id := range r.conversations {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	infos := make([]Info, 0, len(ids))
	for _, id := range ids {
		info, err := r.GetConversationInfo(ctx, id)
		if err != nil {
			continue
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].UpdatedAt.After(infos[j].UpdatedAt) })
	return infos, nil
}

func (r *InMemoryRepository) GetConversationInfo(ctx context.Context, id string) (Info, error) {
	c, ok := r.get(id)
	if !ok {
		return Info{}, &ErrNotFound{ID: id}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Info{
		ID:           id,
		Title:        c.title,
		CreatedAt:    c.createdAt,
		UpdatedAt:    c.updatedAt,
		Format:       c.format,
		Collection:   c.collection,
		Compression:  c.compression,
		MessageCount: len(c.history),
	}, nil
}

func (r *InMemoryRepository) SearchMessages(ctx context.Context, query string) ([]SearchResult, error) {
	if query == "" {
		return nil, nil
	}
	lowerQuery := strings.ToLower(query)

	r.mu.RLock()
	type snapshot struct {
		id      string
		title   string
		updated time.Time
		history []message.Message
	}
	snapshots := make([]snapshot, 0, len(r.conversations))
	for id, c := range r.conversations {
		c.mu.RLock()
		snapshots = append(snapshots, snapshot{id: id, title: c.title, updated: c.updatedAt, history: append([]message.Message(nil), c.history...)})
		c.mu.RUnlock()
	}
	r.mu.RUnlock()

	var results []SearchResult
	for _, s := range snapshots {
		for i, m := range s.history {
			lowerContent := strings.ToLower(m.Content)
			idx := strings.Index(lowerContent, lowerQuery)
			if idx < 0 {
				continue
			}
			results = append(results, SearchResult{
				ConversationID:    s.id,
				ConversationTitle: s.title,
				MessageIndex:      i,
				Highlight:         highlight(m.Content, idx, len(query)),
				UpdatedAt:         s.updated,
			})
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].UpdatedAt.After(results[j].UpdatedAt) })
	return results, nil
}

// highlight returns a ±30 character window around the match at byte offset
// idx of length matchLen within content.
func highlight(content string, idx, matchLen int) string {
	const window = 30
	start := idx
	for n := 0; n < window && start > 0; n++ {
		_, size := utf8.DecodeLastRuneInString(content[:start])
		start -= size
	}
	end := idx + matchLen
	if end > len(content) {
		end = len(content)
	}
	for n := 0; n < window && end < len(content); n++ {
		_, size := utf8.DecodeRuneInString(content[end:])
		end += size
	}
	return content[start:end]
}

func (r *InMemoryRepository) ExportConversation(ctx context.Context, id string) (*Export, error) {
	c, ok := r.get(id)
	if !ok {
		return nil, &ErrNotFound{ID: id}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	exported := &Export{
		Title:       c.title,
		Format:      c.format,
		Collection:  c.collection,
		Compression: c.compression,
	}
	for _, m := range c.history {
		em := ExportedMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID}
		if len(m.ToolCalls) > 0 {
			data, err := json.Marshal(m.ToolCalls)
			if err != nil {
				return nil, fmt.Errorf("conversation: marshal tool calls: %w", err)
			}
			em.ToolCallsRaw = string(data)
		}
		exported.Messages = append(exported.Messages, em)
	}
	return exported, nil
}

func (r *InMemoryRepository) ImportConversation(ctx context.Context, export Export) (string, error) {
	id, err := r.CreateConversation(ctx, export.Title)
	if err != nil {
		return "", err
	}

	history := make([]message.Message, 0, len(export.Messages))
	for _, em := range export.Messages {
		m := message.Message{Role: em.Role, Content: em.Content, ToolCallID: em.ToolCallID}
		if em.ToolCallsRaw != "" {
			if err := json.Unmarshal([]byte(em.ToolCallsRaw), &m.ToolCalls); err != nil {
				return "", fmt.Errorf("conversation: unmarshal tool calls: %w", err)
			}
		}
		history = append(history, m)
	}

	if err := r.ReplaceHistory(ctx, id, history); err != nil {
		return "", err
	}
	if err := r.SetFormat(ctx, id, export.Format); err != nil {
		return "", err
	}
	if err := r.SetCollectionSettings(ctx, id, export.Collection); err != nil {
		return "", err
	}
	if err := r.SetCompressionSettings(ctx, id, export.Compression); err != nil {
		return "", err
	}
	return id, nil
}

var _ Repository = (*InMemoryRepository)(nil)
