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

// Package sqlrepo implements conversation.Repository against
// database/sql, supporting PostgreSQL, MySQL, and SQLite selected at
// runtime by a dialect string. Schema: conversations(...) and
// messages(..., ordinal) with ordinal establishing order within a
// conversation; ReplaceHistory is a transactional delete-then-insert.
package sqlrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/agentcore/core/internal/conversation"
	"github.com/agentcore/core/internal/message"
)

const (
	createConversationsTableSQL = `
CREATE TABLE IF NOT EXISTS conversations (
    id VARCHAR(255) PRIMARY KEY,
    title VARCHAR(255) NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    response_format VARCHAR(32) NOT NULL,
    collection_mode VARCHAR(64),
    collection_custom_prompt TEXT,
    collection_result_title VARCHAR(255),
    collection_enabled BOOLEAN NOT NULL DEFAULT FALSE,
    compression_json TEXT
);
`
	createMessagesTableSQL = `
CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id VARCHAR(255) NOT NULL,
    ordinal INTEGER NOT NULL,
    role VARCHAR(32) NOT NULL,
    content TEXT,
    tool_calls_json TEXT,
    tool_call_id VARCHAR(255),
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, ordinal);
`
)

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

// Repository is a database/sql-backed conversation.Repository. dialect
// selects both the schema's autoincrement syntax and the query
// placeholder style ($N for postgres, ? otherwise).
type Repository struct {
	db      *sql.DB
	dialect string
	locks   *keyedMutex
}

// New opens (creating tables if absent) a SQL-backed repository. dialect
// must be one of "postgres", "mysql", "sqlite".
func New(db *sql.DB, dialect string) (*Repository, error) {
	switch dialect {
	case "postgres", "mysql", "sqlite":
	default:
		return nil, fmt.Errorf("sqlrepo: unsupported dialect %q", dialect)
	}

	r := &Repository{db: db, dialect: dialect, locks: newKeyedMutex()}
	if err := r.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repository) ensureSchema(ctx context.Context) error {
	conversationsSQL := createConversationsTableSQL
	messagesSQL := createMessagesTableSQL
	if r.dialect == "postgres" {
		messagesSQL = strings.Replace(messagesSQL, "INTEGER PRIMARY KEY AUTOINCREMENT", "SERIAL PRIMARY KEY", 1)
	} else if r.dialect == "mysql" {
		messagesSQL = strings.Replace(messagesSQL, "INTEGER PRIMARY KEY AUTOINCREMENT", "INTEGER PRIMARY KEY AUTO_INCREMENT", 1)
	}

	for _, stmt := range []string{conversationsSQL, messagesSQL} {
		for _, part := range strings.Split(stmt, ";") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if _, err := r.db.ExecContext(ctx, part); err != nil {
				return fmt.Errorf("sqlrepo: ensure schema: %w", err)
			}
		}
	}
	return nil
}

// ph returns the n-th placeholder (1-indexed) in this dialect's style.
func (r *Repository) ph(n int) string {
	if r.dialect == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (r *Repository) HasConversation(ctx context.Context, id string) (bool, error) {
	query := fmt.Sprintf("SELECT 1 FROM conversations WHERE id = %s", r.ph(1))
	var x int
	err := r.db.QueryRowContext(ctx, query, id).Scan(&x)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlrepo: has conversation: %w", err)
	}
	return true, nil
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
	if err := r.insertConversationRow(ctx, id, id); err != nil {
		return err
	}
	return r.insertMessages(ctx, id, 0, []message.Message{message.NewSystem(systemMessage)})
}

func (r *Repository) insertConversationRow(ctx context.Context, id, title string) error {
	compressionJSON, err := json.Marshal(conversation.DefaultCompressionSettings())
	if err != nil {
		return fmt.Errorf("sqlrepo: marshal compression settings: %w", err)
	}
	now := time.Now()
	query := fmt.Sprintf(`INSERT INTO conversations
		(id, title, created_at, updated_at, response_format, collection_mode, collection_custom_prompt, collection_result_title, collection_enabled, compression_json)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		r.ph(1), r.ph(2), r.ph(3), r.ph(4), r.ph(5), r.ph(6), r.ph(7), r.ph(8), r.ph(9), r.ph(10))
	_, err = r.db.ExecContext(ctx, query, id, title, now, now, string(conversation.FormatPlain), "", "", "", false, string(compressionJSON))
	if err != nil {
		return fmt.Errorf("sqlrepo: insert conversation: %w", err)
	}
	return nil
}

func (r *Repository) insertMessages(ctx context.Context, id string, startOrdinal int, msgs []message.Message) error {
	for i, m := range msgs {
		var toolCallsJSON string
		if len(m.ToolCalls) > 0 {
			data, err := json.Marshal(m.ToolCalls)
			if err != nil {
				return fmt.Errorf("sqlrepo: marshal tool calls: %w", err)
			}
			toolCallsJSON = string(data)
		}
		query := fmt.Sprintf(`INSERT INTO messages
			(conversation_id, ordinal, role, content, tool_calls_json, tool_call_id, created_at)
			VALUES (%s, %s, %s, %s, %s, %s, %s)`,
			r.ph(1), r.ph(2), r.ph(3), r.ph(4), r.ph(5), r.ph(6), r.ph(7))
		_, err := r.db.ExecContext(ctx, query, id, startOrdinal+i, string(m.Role), m.Content, toolCallsJSON, m.ToolCallID, time.Now())
		if err != nil {
			return fmt.Errorf("sqlrepo: insert message: %w", err)
		}
	}
	return r.touch(ctx, id)
}

func (r *Repository) touch(ctx context.Context, id string) error {
	query := fmt.Sprintf("UPDATE conversations SET updated_at = %s WHERE id = %s", r.ph(1), r.ph(2))
	_, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("sqlrepo: touch conversation: %w", err)
	}
	return nil
}

func (r *Repository) GetHistory(ctx context.Context, id string) ([]message.Message, error) {
	query := fmt.Sprintf("SELECT role, content, tool_calls_json, tool_call_id FROM messages WHERE conversation_id = %s ORDER BY ordinal ASC", r.ph(1))
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("sqlrepo: get history: %w", err)
	}
	defer rows.Close()

	var history []message.Message
	for rows.Next() {
		var role, content, toolCallsJSON, toolCallID string
		if err := rows.Scan(&role, &content, &toolCallsJSON, &toolCallID); err != nil {
			return nil, fmt.Errorf("sqlrepo: scan message: %w", err)
		}
		m := message.Message{Role: message.Role(role), Content: content, ToolCallID: toolCallID}
		if toolCallsJSON != "" {
			if err := json.Unmarshal([]byte(toolCallsJSON), &m.ToolCalls); err != nil {
				return nil, fmt.Errorf("sqlrepo: unmarshal tool calls: %w", err)
			}
		}
		history = append(history, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(history) == 0 {
		exists, err := r.HasConversation(ctx, id)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, &conversation.ErrNotFound{ID: id}
		}
	}
	return history, nil
}

func (r *Repository) AddMessage(ctx context.Context, id string, msg message.Message) error {
	return r.AddMessages(ctx, id, []message.Message{msg})
}

func (r *Repository) AddMessages(ctx context.Context, id string, msgs []message.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	defer r.locks.Lock(id)()

	count, err := r.GetMessageCount(ctx, id)
	if err != nil {
		return err
	}
	return r.insertMessages(ctx, id, count, msgs)
}

func (r *Repository) UpdateSystemPrompt(ctx context.Context, id, systemMessage string) error {
	defer r.locks.Lock(id)()

	history, err := r.GetHistory(ctx, id)
	if err != nil {
		return err
	}
	if len(history) == 0 || history[0].Role != message.RoleSystem {
		return nil
	}
	history[0] = message.NewSystem(systemMessage)
	return r.replaceHistory(ctx, id, history)
}

// ReplaceHistory is a transactional delete-then-insert: every message row
// for id is removed and the new history inserted, all inside one
// transaction so a reader never observes a partial history.
func (r *Repository) ReplaceHistory(ctx context.Context, id string, history []message.Message) error {
	defer r.locks.Lock(id)()
	return r.replaceHistory(ctx, id, history)
}

// replaceHistory is ReplaceHistory's unlocked core, callable from other
// methods that already hold id's lock.
func (r *Repository) replaceHistory(ctx context.Context, id string, history []message.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlrepo: begin tx: %w", err)
	}
	defer tx.Rollback()

	deleteQuery := fmt.Sprintf("DELETE FROM messages WHERE conversation_id = %s", r.ph(1))
	if _, err := tx.ExecContext(ctx, deleteQuery, id); err != nil {
		return fmt.Errorf("sqlrepo: delete messages: %w", err)
	}

	for i, m := range history {
		var toolCallsJSON string
		if len(m.ToolCalls) > 0 {
			data, err := json.Marshal(m.ToolCalls)
			if err != nil {
				return fmt.Errorf("sqlrepo: marshal tool calls: %w", err)
			}
			toolCallsJSON = string(data)
		}
		insertQuery := fmt.Sprintf(`INSERT INTO messages
			(conversation_id, ordinal, role, content, tool_calls_json, tool_call_id, created_at)
			VALUES (%s, %s, %s, %s, %s, %s, %s)`,
			r.ph(1), r.ph(2), r.ph(3), r.ph(4), r.ph(5), r.ph(6), r.ph(7))
		if _, err := tx.ExecContext(ctx, insertQuery, id, i, string(m.Role), m.Content, toolCallsJSON, m.ToolCallID, time.Now()); err != nil {
			return fmt.Errorf("sqlrepo: insert message: %w", err)
		}
	}

	updateQuery := fmt.Sprintf("UPDATE conversations SET updated_at = %s WHERE id = %s", r.ph(1), r.ph(2))
	if _, err := tx.ExecContext(ctx, updateQuery, time.Now(), id); err != nil {
		return fmt.Errorf("sqlrepo: touch conversation: %w", err)
	}

	return tx.Commit()
}

func (r *Repository) GetMessageCount(ctx context.Context, id string) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM messages WHERE conversation_id = %s", r.ph(1))
	var count int
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&count); err != nil {
		return 0, fmt.Errorf("sqlrepo: count messages: %w", err)
	}
	return count, nil
}

func (r *Repository) GetFormat(ctx context.Context, id string) (conversation.ResponseFormat, error) {
	info, err := r.GetConversationInfo(ctx, id)
	if err != nil {
		return "", err
	}
	return info.Format, nil
}

func (r *Repository) SetFormat(ctx context.Context, id string, format conversation.ResponseFormat) error {
	defer r.locks.Lock(id)()
	query := fmt.Sprintf("UPDATE conversations SET response_format = %s, updated_at = %s WHERE id = %s", r.ph(1), r.ph(2), r.ph(3))
	_, err := r.db.ExecContext(ctx, query, string(format), time.Now(), id)
	if err != nil {
		return fmt.Errorf("sqlrepo: set format: %w", err)
	}
	return nil
}

func (r *Repository) GetCollectionSettings(ctx context.Context, id string) (conversation.CollectionSettings, error) {
	info, err := r.GetConversationInfo(ctx, id)
	if err != nil {
		return conversation.CollectionSettings{}, err
	}
	return info.Collection, nil
}

func (r *Repository) SetCollectionSettings(ctx context.Context, id string, settings conversation.CollectionSettings) error {
	defer r.locks.Lock(id)()
	query := fmt.Sprintf(`UPDATE conversations SET collection_mode = %s, collection_custom_prompt = %s,
		collection_result_title = %s, collection_enabled = %s, updated_at = %s WHERE id = %s`,
		r.ph(1), r.ph(2), r.ph(3), r.ph(4), r.ph(5), r.ph(6))
	_, err := r.db.ExecContext(ctx, query, string(settings.Mode), settings.CustomPrompt, settings.ResultTitle, settings.Enabled, time.Now(), id)
	if err != nil {
		return fmt.Errorf("sqlrepo: set collection settings: %w", err)
	}
	return nil
}

func (r *Repository) GetCompressionSettings(ctx context.Context, id string) (conversation.CompressionSettings, error) {
	info, err := r.GetConversationInfo(ctx, id)
	if err != nil {
		return conversation.CompressionSettings{}, err
	}
	return info.Compression, nil
}

func (r *Repository) SetCompressionSettings(ctx context.Context, id string, settings conversation.CompressionSettings) error {
	defer r.locks.Lock(id)()
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("sqlrepo: marshal compression settings: %w", err)
	}
	query := fmt.Sprintf("UPDATE conversations SET compression_json = %s, updated_at = %s WHERE id = %s", r.ph(1), r.ph(2), r.ph(3))
	_, err = r.db.ExecContext(ctx, query, string(data), time.Now(), id)
	if err != nil {
		return fmt.Errorf("sqlrepo: set compression settings: %w", err)
	}
	return nil
}

func (r *Repository) CreateConversation(ctx context.Context, title string) (string, error) {
	id := uuid.NewString()
	if title == "" {
		title = id
	}
	if err := r.insertConversationRow(ctx, id, title); err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository) RenameConversation(ctx context.Context, id, title string) error {
	defer r.locks.Lock(id)()
	query := fmt.Sprintf("UPDATE conversations SET title = %s, updated_at = %s WHERE id = %s", r.ph(1), r.ph(2), r.ph(3))
	_, err := r.db.ExecContext(ctx, query, title, time.Now(), id)
	if err != nil {
		return fmt.Errorf("sqlrepo: rename conversation: %w", err)
	}
	return nil
}

func (r *Repository) DeleteConversation(ctx context.Context, id string) error {
	defer r.locks.Lock(id)()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlrepo: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM messages WHERE conversation_id = %s", r.ph(1)), id); err != nil {
		return fmt.Errorf("sqlrepo: delete messages: %w", err)
	}
	result, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM conversations WHERE id = %s", r.ph(1)), id)
	if err != nil {
		return fmt.Errorf("sqlrepo: delete conversation: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return &conversation.ErrNotFound{ID: id}
	}
	return tx.Commit()
}

func (r *Repository) ListConversations(ctx context.Context) ([]conversation.Info, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM conversations`)
	if err != nil {
		return nil, fmt.Errorf("sqlrepo: list conversations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	infos := make([]conversation.Info, 0, len(ids))
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
	query := fmt.Sprintf(`SELECT title, created_at, updated_at, response_format, collection_mode,
		collection_custom_prompt, collection_result_title, collection_enabled, compression_json
		FROM conversations WHERE id = %s`, r.ph(1))

	var (
		title, format, mode, customPrompt, resultTitle, compressionJSON string
		createdAt, updatedAt                                            time.Time
		enabled                                                         bool
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&title, &createdAt, &updatedAt, &format, &mode, &customPrompt, &resultTitle, &enabled, &compressionJSON)
	if err == sql.ErrNoRows {
		return conversation.Info{}, &conversation.ErrNotFound{ID: id}
	}
	if err != nil {
		return conversation.Info{}, fmt.Errorf("sqlrepo: get conversation info: %w", err)
	}

	var compression conversation.CompressionSettings
	if compressionJSON != "" {
		if err := json.Unmarshal([]byte(compressionJSON), &compression); err != nil {
			return conversation.Info{}, fmt.Errorf("sqlrepo: unmarshal compression settings: %w", err)
		}
	}

	count, err := r.GetMessageCount(ctx, id)
	if err != nil {
		return conversation.Info{}, err
	}

	return conversation.Info{
		ID:        id,
		Title:     title,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		Format:    conversation.ResponseFormat(format),
		Collection: conversation.CollectionSettings{
			Enabled:      enabled,
			Mode:         conversation.CollectionMode(mode),
			CustomPrompt: customPrompt,
			ResultTitle:  resultTitle,
		},
		Compression:  compression,
		MessageCount: count,
	}, nil
}

func (r *Repository) SearchMessages(ctx context.Context, query string) ([]conversation.SearchResult, error) {
	if query == "" {
		return nil, nil
	}
	sqlQuery := fmt.Sprintf(`SELECT m.conversation_id, c.title, m.ordinal, m.content, c.updated_at
		FROM messages m JOIN conversations c ON m.conversation_id = c.id
		WHERE LOWER(m.content) LIKE %s ORDER BY c.updated_at DESC`, r.ph(1))

	rows, err := r.db.QueryContext(ctx, sqlQuery, "%"+strings.ToLower(query)+"%")
	if err != nil {
		return nil, fmt.Errorf("sqlrepo: search messages: %w", err)
	}
	defer rows.Close()

	var results []conversation.SearchResult
	lowerQuery := strings.ToLower(query)
	for rows.Next() {
		var convID, title, content string
		var ordinal int
		var updatedAt time.Time
		if err := rows.Scan(&convID, &title, &ordinal, &content, &updatedAt); err != nil {
			return nil, err
		}
		idx := strings.Index(strings.ToLower(content), lowerQuery)
		if idx < 0 {
			continue
		}
		results = append(results, conversation.SearchResult{
			ConversationID:    convID,
			ConversationTitle: title,
			MessageIndex:      ordinal,
			Highlight:         highlight(content, idx, len(query)),
			UpdatedAt:         updatedAt,
		})
	}
	return results, rows.Err()
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
	info, err := r.GetConversationInfo(ctx, id)
	if err != nil {
		return nil, err
	}
	history, err := r.GetHistory(ctx, id)
	if err != nil {
		return nil, err
	}

	exported := &conversation.Export{
		Title:       info.Title,
		Format:      info.Format,
		Collection:  info.Collection,
		Compression: info.Compression,
	}
	for _, m := range history {
		em := conversation.ExportedMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID}
		if len(m.ToolCalls) > 0 {
			data, err := json.Marshal(m.ToolCalls)
			if err != nil {
				return nil, fmt.Errorf("sqlrepo: marshal tool calls: %w", err)
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
				return "", fmt.Errorf("sqlrepo: unmarshal tool calls: %w", err)
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
