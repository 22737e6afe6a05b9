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

// Package redisrepo implements conversation.Repository against Redis,
// storing each conversation's history and metadata as JSON blobs with a
// refreshing TTL - the key-value-store-with-TTL tier the contract requires.
package redisrepo

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
	"github.com/redis/go-redis/v9"

	"github.com/agentcore/core/internal/conversation"
	"github.com/agentcore/core/internal/message"
)

const defaultTTL = 24 * time.Hour

type record struct {
	Title       string                           `json:"title"`
	CreatedAt   time.Time                        `json:"created_at"`
	UpdatedAt   time.Time                        `json:"updated_at"`
	Format      conversation.ResponseFormat      `json:"format"`
	Collection  conversation.CollectionSettings  `json:"collection"`
	Compression conversation.CompressionSettings `json:"compression"`
	History     []message.Message                `json:"history"`
}

// keyedMutex hands out one *sync.Mutex per key, creating it on first use.
// It serializes operations on the same conversation id without forcing
// unrelated conversations to contend on a single lock.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key and returns the function that releases it.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Repository stores conversation state under conv:{id}:history keys,
// refreshing the TTL on every mutating operation. Each mutator holds
// locks for the full load-modify-save cycle so concurrent turns on the
// same conversation serialize instead of racing on the saved blob.
type Repository struct {
	client redis.UniversalClient
	ttl    time.Duration
	locks  *keyedMutex
}

func New(client redis.UniversalClient, ttl time.Duration) *Repository {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Repository{client: client, ttl: ttl, locks: newKeyedMutex()}
}

func key(id string) string {
	return fmt.Sprintf("conv:%s:history", id)
}

const indexKey = "conv:index"

func (r *Repository) load(ctx context.Context, id string) (*record, error) {
	raw, err := r.client.Get(ctx, key(id)).Bytes()
	if err == redis.Nil {
		return nil, &conversation.ErrNotFound{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("redisrepo: get %s: %w", id, err)
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("redisrepo: unmarshal %s: %w", id, err)
	}
	return &rec, nil
}

func (r *Repository) save(ctx context.Context, id string, rec *record) error {
	rec.UpdatedAt = time.Now()
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redisrepo: marshal %s: %w", id, err)
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, key(id), raw, r.ttl)
	pipe.SAdd(ctx, indexKey, id)
	pipe.Expire(ctx, indexKey, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redisrepo: save %s: %w", id, err)
	}
	return nil
}

func (r *Repository) HasConversation(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Exists(ctx, key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("redisrepo: exists %s: %w", id, err)
	}
	return n > 0, nil
}

func (r *Repository) InitConversation(ctx context.Context, id, systemMessage string) error {
	defer r.locks.Lock(id)()

	exists, err := r.HasConversation(ctx, id)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	now := time.Now()
	rec := &record{
		Title:       id,
		CreatedAt:   now,
		UpdatedAt:   now,
		Format:      conversation.FormatPlain,
		Compression: conversation.DefaultCompressionSettings(),
		History:     []message.Message{message.NewSystem(systemMessage)},
	}
	return r.save(ctx, id, rec)
}

func (r *Repository) GetHistory(ctx context.Context, id string) ([]message.Message, error) {
	rec, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.History, nil
}

func (r *Repository) AddMessage(ctx context.Context, id string, msg message.Message) error {
	return r.AddMessages(ctx, id, []message.Message{msg})
}

func (r *Repository) AddMessages(ctx context.Context, id string, msgs []message.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	defer r.locks.Lock(id)()

	rec, err := r.load(ctx, id)
	if err != nil {
		return err
	}
	rec.History = append(rec.History, msgs...)
	return r.save(ctx, id, rec)
}

func (r *Repository) UpdateSystemPrompt(ctx context.Context, id, systemMessage string) error {
	defer r.locks.Lock(id)()

	rec, err := r.load(ctx, id)
	if err != nil {
		return err
	}
	if len(rec.History) == 0 || rec.History[0].Role != message.RoleSystem {
		return nil
	}
	rec.History[0] = message.NewSystem(systemMessage)
	return r.save(ctx, id, rec)
}

func (r *Repository) ReplaceHistory(ctx context.Context, id string, history []message.Message) error {
	defer r.locks.Lock(id)()

	rec, err := r.load(ctx, id)
	if err != nil {
		return err
	}
	rec.History = append([]message.Message(nil), history...)
	return r.save(ctx, id, rec)
}

func (r *Repository) GetMessageCount(ctx context.Context, id string) (int, error) {
	rec, err := r.load(ctx, id)
	if err != nil {
		return 0, err
	}
	return len(rec.History), nil
}

func (r *Repository) GetFormat(ctx context.Context, id string) (conversation.ResponseFormat, error) {
	rec, err := r.load(ctx, id)
	if err != nil {
		return "", err
	}
	return rec.Format, nil
}

func (r *Repository) SetFormat(ctx context.Context, id string, format conversation.ResponseFormat) error {
	defer r.locks.Lock(id)()
	rec, err := r.load(ctx, id)
	if err != nil {
		return err
	}
	rec.Format = format
	return r.save(ctx, id, rec)
}

func (r *Repository) GetCollectionSettings(ctx context.Context, id string) (conversation.CollectionSettings, error) {
	rec, err := r.load(ctx, id)
	if err != nil {
		return conversation.CollectionSettings{}, err
	}
	return rec.Collection, nil
}

func (r *Repository) SetCollectionSettings(ctx context.Context, id string, settings conversation.CollectionSettings) error {
	defer r.locks.Lock(id)()
	rec, err := r.load(ctx, id)
	if err != nil {
		return err
	}
	rec.Collection = settings
	return r.save(ctx, id, rec)
}

func (r *Repository) GetCompressionSettings(ctx context.Context, id string) (conversation.CompressionSettings, error) {
	rec, err := r.load(ctx, id)
	if err != nil {
		return conversation.CompressionSettings{}, err
	}
	return rec.Compression, nil
}

func (r *Repository) SetCompressionSettings(ctx context.Context, id string, settings conversation.CompressionSettings) error {
	defer r.locks.Lock(id)()
	rec, err := r.load(ctx, id)
	if err != nil {
		return err
	}
	rec.Compression = settings
	return r.save(ctx, id, rec)
}

func (r *Repository) CreateConversation(ctx context.Context, title string) (string, error) {
	id := uuid.NewString()
	if title == "" {
		title = id
	}
	now := time.Now()
	rec := &record{
		Title:       title,
		CreatedAt:   now,
		UpdatedAt:   now,
		Format:      conversation.FormatPlain,
		Compression: conversation.DefaultCompressionSettings(),
	}
	if err := r.save(ctx, id, rec); err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository) RenameConversation(ctx context.Context, id, title string) error {
	defer r.locks.Lock(id)()
	rec, err := r.load(ctx, id)
	if err != nil {
		return err
	}
	rec.Title = title
	return r.save(ctx, id, rec)
}

// DeleteConversation removes the conversation's key immediately and drops
// it from the index set, matching the decision that deletion cascades to
// the TTL-backed entry without waiting for natural expiry.
func (r *Repository) DeleteConversation(ctx context.Context, id string) error {
	defer r.locks.Lock(id)()

	exists, err := r.HasConversation(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return &conversation.ErrNotFound{ID: id}
	}
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key(id))
	pipe.SRem(ctx, indexKey, id)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redisrepo: delete %s: %w", id, err)
	}
	return nil
}

func (r *Repository) ids(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redisrepo: list index: %w", err)
	}
	return ids, nil
}

func (r *Repository) ListConversations(ctx context.Context) ([]conversation.Info, error) {
	ids, err := r.ids(ctx)
	if err != nil {
		return nil, err
	}
	var infos []conversation.Info
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

func (r *Repository) GetConversationInfo(ctx context.Context, id string) (conversation.Info, error) {
	rec, err := r.load(ctx, id)
	if err != nil {
		return conversation.Info{}, err
	}
	return conversation.Info{
		ID:           id,
		Title:        rec.Title,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
		Format:       rec.Format,
		Collection:   rec.Collection,
		Compression:  rec.Compression,
		MessageCount: len(rec.History),
	}, nil
}

func (r *Repository) SearchMessages(ctx context.Context, query string) ([]conversation.SearchResult, error) {
	if query == "" {
		return nil, nil
	}
	ids, err := r.ids(ctx)
	if err != nil {
		return nil, err
	}
	lowerQuery := strings.ToLower(query)

	var results []conversation.SearchResult
	for _, id := range ids {
		rec, err := r.load(ctx, id)
		if err != nil {
			continue
		}
		for i, m := range rec.History {
			idx := strings.Index(strings.ToLower(m.Content), lowerQuery)
			if idx < 0 {
				continue
			}
			results = append(results, conversation.SearchResult{
				ConversationID:    id,
				ConversationTitle: rec.Title,
				MessageIndex:      i,
				Highlight:         highlight(m.Content, idx, len(query)),
				UpdatedAt:         rec.UpdatedAt,
			})
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].UpdatedAt.After(results[j].UpdatedAt) })
	return results, nil
}

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

func (r *Repository) ExportConversation(ctx context.Context, id string) (*conversation.Export, error) {
	rec, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	exported := &conversation.Export{
		Title:       rec.Title,
		Format:      rec.Format,
		Collection:  rec.Collection,
		Compression: rec.Compression,
	}
	for _, m := range rec.History {
		em := conversation.ExportedMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID}
		if len(m.ToolCalls) > 0 {
			data, err := json.Marshal(m.ToolCalls)
			if err != nil {
				return nil, fmt.Errorf("redisrepo: marshal tool calls: %w", err)
			}
			em.ToolCallsRaw = string(data)
		}
		exported.Messages = append(exported.Messages, em)
	}
	return exported, nil
}

func (r *Repository) ImportConversation(ctx context.Context, export conversation.Export) (string, error) {
	id, err := r.CreateConversation(ctx, export.Title)
	if err != nil {
		return "", err
	}

	history := make([]message.Message, 0, len(export.Messages))
	for _, em := range export.Messages {
		m := message.Message{Role: em.Role, Content: em.Content, ToolCallID: em.ToolCallID}
		if em.ToolCallsRaw != "" {
			if err := json.Unmarshal([]byte(em.ToolCallsRaw), &m.ToolCalls); err != nil {
				return "", fmt.Errorf("redisrepo: unmarshal tool calls: %w", err)
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

var _ conversation.Repository = (*Repository)(nil)
