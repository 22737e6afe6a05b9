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

package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/agentcore/core/internal/agent"
	"github.com/agentcore/core/internal/compression"
	"github.com/agentcore/core/internal/config"
	"github.com/agentcore/core/internal/conversation"
	"github.com/agentcore/core/internal/conversation/redisrepo"
	"github.com/agentcore/core/internal/conversation/sqlrepo"
	"github.com/agentcore/core/internal/llm"
	"github.com/agentcore/core/internal/llm/openaicompat"
	"github.com/agentcore/core/internal/observability"
	"github.com/agentcore/core/internal/rag"
	"github.com/agentcore/core/internal/rag/qdrantmirror"
	"github.com/agentcore/core/internal/reminder"
	"github.com/agentcore/core/internal/reminder/sqlstore"
	"github.com/agentcore/core/internal/tool"
	"github.com/agentcore/core/internal/tool/pipelinetool"
	"github.com/agentcore/core/internal/tool/ragtool"
	"github.com/agentcore/core/internal/tool/remindertool"
	"github.com/agentcore/core/internal/tool/systemtool"
)

// ServeCmd starts the HTTP/SSE server backed by the agent core.
type ServeCmd struct {
	Config string `short:"c" required:"" help:"Path to config file." type:"path"`
}

func (c *ServeCmd) Run() error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return fmt.Errorf("serve: load config: %w", err)
	}
	if err := observability.SetDefault(cfg.Logging); err != nil {
		return fmt.Errorf("serve: configure logging: %w", err)
	}

	llmClient, err := buildLLMClient(cfg.LLM)
	if err != nil {
		return fmt.Errorf("serve: build llm client: %w", err)
	}
	defer llmClient.Close()

	repo, err := buildRepository(cfg.Storage)
	if err != nil {
		return fmt.Errorf("serve: build repository: %w", err)
	}

	reminderStore, err := buildReminderStore(cfg.Reminder)
	if err != nil {
		return fmt.Errorf("serve: build reminder store: %w", err)
	}

	scheduler := reminder.NewScheduler(reminderStore, time.Duration(cfg.Reminder.CheckIntervalMinutes)*time.Minute)
	scheduler.Start()
	defer scheduler.Stop()

	index := rag.NewIndex()
	if err := index.Load(cfg.RAG.IndexPath); err != nil {
		slog.Warn("rag index not loaded, starting empty", "path", cfg.RAG.IndexPath, "error", err)
	}
	if cfg.RAG.QdrantEnabled {
		mirror, err := qdrantmirror.New(qdrantmirror.Config{
			Host:       cfg.RAG.QdrantHost,
			Port:       cfg.RAG.QdrantPort,
			Collection: cfg.RAG.QdrantCollection,
		})
		if err != nil {
			return fmt.Errorf("serve: build qdrant mirror: %w", err)
		}
		index.WithMirror(mirror)
	}
	chunker := rag.NewChunker(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	ragService := rag.NewService(index, llmClient)
	defer func() {
		if err := index.Save(cfg.RAG.IndexPath); err != nil {
			slog.Error("failed to persist rag index", "error", err)
		}
	}()

	registry := tool.NewRegistry()
	if err := registry.Register(systemtool.NewCurrentTime()); err != nil {
		return fmt.Errorf("serve: register system tools: %w", err)
	}
	if err := remindertool.New(reminderStore, scheduler).Register(registry); err != nil {
		return fmt.Errorf("serve: register reminder tools: %w", err)
	}
	if err := ragtool.New(index, chunker, ragService).Register(registry); err != nil {
		return fmt.Errorf("serve: register rag tools: %w", err)
	}
	if err := pipelinetool.New(index, llmClient, cfg.RAG.PipelineDir).Register(registry); err != nil {
		return fmt.Errorf("serve: register pipeline tools: %w", err)
	}

	compressor := compression.NewCompressor(llmClient)
	ag := agent.New(llmClient, repo, registry, compressor)

	srv := newHTTPServer(ag)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()

	if changes, err := config.Watch(ctx, c.Config); err != nil {
		slog.Warn("config watch disabled", "error", err)
	} else {
		go func() {
			for newCfg := range changes {
				if err := observability.SetDefault(newCfg.Logging); err != nil {
					slog.Error("failed to apply reloaded logging config", "error", err)
					continue
				}
				slog.Info("reloaded logging config", "level", newCfg.Logging.Level, "format", newCfg.Logging.Format)
			}
		}()
	}

	httpServer := &http.Server{Addr: cfg.Server.Address, Handler: srv}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	slog.Info("agentcored listening", "address", cfg.Server.Address)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func buildLLMClient(cfg config.LLMConfig) (llm.Client, error) {
	switch cfg.Provider {
	case "anthropic":
		return llm.NewAnthropicClient(llm.AnthropicConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		}), nil
	case "ollama":
		return llm.NewOllamaClient(llm.OllamaConfig{
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		}), nil
	case "openai-compatible":
		return openaicompat.New(openaicompat.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

func buildRepository(cfg config.StorageConfig) (conversation.Repository, error) {
	switch cfg.Selector {
	case "memory":
		return conversation.NewInMemoryRepository(), nil
	case "kv-ttl":
		opts, err := redis.ParseURL(cfg.KVURL)
		if err != nil {
			return nil, fmt.Errorf("parse kv_url: %w", err)
		}
		client := redis.NewClient(opts)
		ttl := time.Duration(cfg.KVTTLHours) * time.Hour
		return redisrepo.New(client, ttl), nil
	case "sql":
		db, err := sql.Open(driverName(cfg.SQLDialect), cfg.SQLURL)
		if err != nil {
			return nil, fmt.Errorf("open sql db: %w", err)
		}
		db.SetMaxOpenConns(cfg.SQLPoolSize)
		return sqlrepo.New(db, cfg.SQLDialect)
	default:
		return nil, fmt.Errorf("unsupported storage selector %q", cfg.Selector)
	}
}

func buildReminderStore(cfg config.ReminderConfig) (reminder.Store, error) {
	switch cfg.Selector {
	case "file":
		return reminder.NewFileStore(cfg.StorePath)
	case "sql":
		db, err := sql.Open(driverName(cfg.SQLDialect), cfg.SQLURL)
		if err != nil {
			return nil, fmt.Errorf("open reminder sql db: %w", err)
		}
		return sqlstore.New(db, cfg.SQLDialect)
	default:
		return nil, fmt.Errorf("unsupported reminder selector %q", cfg.Selector)
	}
}

func driverName(dialect string) string {
	switch dialect {
	case "postgres":
		return "postgres"
	case "mysql":
		return "mysql"
	default:
		return "sqlite3"
	}
}

// chatRequest/chatResponseBody mirror spec.md's client-facing JSON shapes.
type chatRequest struct {
	Message             string                          `json:"message"`
	ConversationID       string                          `json:"conversationId,omitempty"`
	ResponseFormat       conversation.ResponseFormat     `json:"responseFormat,omitempty"`
	CollectionSettings   *conversation.CollectionSettings `json:"collectionSettings,omitempty"`
	Temperature          *float64                        `json:"temperature,omitempty"`
	CompressionSettings  *conversation.CompressionSettings `json:"compressionSettings,omitempty"`
}

type chatResponseBody struct {
	Message          string                `json:"message"`
	ConversationID   string                `json:"conversationId"`
	TokenUsage       interface{}           `json:"tokenUsage,omitempty"`
	CompressionStats *compression.Result   `json:"compressionStats,omitempty"`
}

func newHTTPServer(ag *agent.Agent) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Post("/chat", func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.ConversationID == "" {
			req.ConversationID = newConversationID()
		}
		if req.ResponseFormat == "" {
			req.ResponseFormat = conversation.FormatPlain
		}

		resp, err := ag.Chat(r.Context(), req.Message, req.ConversationID, req.ResponseFormat, req.CollectionSettings, req.Temperature, req.CompressionSettings)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatResponseBody{
			Message:          resp.AssistantMessage.Content,
			ConversationID:   resp.ConversationID,
			TokenUsage:       resp.TokenUsage,
			CompressionStats: resp.CompressionStats,
		})
	})

	r.Post("/chat/stream", func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.ConversationID == "" {
			req.ConversationID = newConversationID()
		}
		if req.ResponseFormat == "" {
			req.ResponseFormat = conversation.FormatPlain
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		events := ag.ChatStream(r.Context(), req.Message, req.ConversationID, req.ResponseFormat, req.CollectionSettings, req.Temperature)
		for ev := range events {
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	})

	return r
}

func newConversationID() string {
	return fmt.Sprintf("conv-%d", time.Now().UnixNano())
}
