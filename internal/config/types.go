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

// Package config holds the process configuration: YAML on disk, overlaid
// with environment variable substitution, validated per-struct before use.
package config

import "fmt"

// Config is the root configuration document.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	LLM         LLMConfig         `yaml:"llm"`
	Storage     StorageConfig     `yaml:"storage"`
	Reminder    ReminderConfig    `yaml:"reminder"`
	Compression CompressionConfig `yaml:"compression"`
	RAG         RAGConfig         `yaml:"rag"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig controls the HTTP/SSE listener cmd/agentcored's serve
// subcommand binds.
type ServerConfig struct {
	Address string `yaml:"address"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
}

func (c *ServerConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("server.address is required")
	}
	return nil
}

// LLMConfig selects and configures the LLMClient implementation.
type LLMConfig struct {
	// Provider selects between LLMClient variants: "openai-compatible",
	// "anthropic", or "ollama" (chat-completions vs. local-NDJSON shape).
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
}

func (c *LLMConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "openai-compatible"
	}
}

func (c *LLMConfig) Validate() error {
	switch c.Provider {
	case "openai-compatible", "anthropic", "ollama":
	default:
		return fmt.Errorf("llm.provider: unsupported value %q", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.Provider != "ollama" && c.BaseURL == "" {
		return fmt.Errorf("llm.base_url is required for provider %q", c.Provider)
	}
	return nil
}

// StorageConfig selects and configures the conversation.Repository
// implementation.
type StorageConfig struct {
	// Selector chooses the repository tier: "memory", "kv-ttl", or "sql".
	Selector string `yaml:"selector"`

	KVURL     string `yaml:"kv_url"`
	KVTTLHours int   `yaml:"kv_ttl_hours"`

	SQLDialect  string `yaml:"sql_dialect"`
	SQLURL      string `yaml:"sql_url"`
	SQLUser     string `yaml:"sql_user"`
	SQLPassword string `yaml:"sql_password"`
	SQLPoolSize int    `yaml:"sql_pool_size"`
}

func (c *StorageConfig) SetDefaults() {
	if c.Selector == "" {
		c.Selector = "memory"
	}
	if c.KVTTLHours == 0 {
		c.KVTTLHours = 24
	}
	if c.SQLPoolSize == 0 {
		c.SQLPoolSize = 10
	}
}

func (c *StorageConfig) Validate() error {
	switch c.Selector {
	case "memory":
	case "kv-ttl":
		if c.KVURL == "" {
			return fmt.Errorf("storage.kv_url is required when storage.selector is kv-ttl")
		}
	case "sql":
		if c.SQLURL == "" {
			return fmt.Errorf("storage.sql_url is required when storage.selector is sql")
		}
		switch c.SQLDialect {
		case "postgres", "mysql", "sqlite":
		default:
			return fmt.Errorf("storage.sql_dialect: unsupported value %q", c.SQLDialect)
		}
	default:
		return fmt.Errorf("storage.selector: unsupported value %q", c.Selector)
	}
	return nil
}

// ReminderConfig configures the reminder store and scheduler.
type ReminderConfig struct {
	// StorePath is the JSON reminder repository file path. Ignored when
	// Selector is "sql".
	StorePath string `yaml:"store_path"`
	Selector  string `yaml:"selector"`

	SQLDialect string `yaml:"sql_dialect"`
	SQLURL     string `yaml:"sql_url"`

	CheckIntervalMinutes int `yaml:"check_interval_minutes"`
}

func (c *ReminderConfig) SetDefaults() {
	if c.Selector == "" {
		c.Selector = "file"
	}
	if c.StorePath == "" {
		c.StorePath = "./reminders.json"
	}
	if c.CheckIntervalMinutes == 0 {
		c.CheckIntervalMinutes = 5
	}
}

func (c *ReminderConfig) Validate() error {
	switch c.Selector {
	case "file":
	case "sql":
		if c.SQLURL == "" {
			return fmt.Errorf("reminder.sql_url is required when reminder.selector is sql")
		}
	default:
		return fmt.Errorf("reminder.selector: unsupported value %q", c.Selector)
	}
	if c.CheckIntervalMinutes <= 0 {
		return fmt.Errorf("reminder.check_interval_minutes must be positive")
	}
	return nil
}

// CompressionConfig holds the YAML compression section. It is defaulted and
// validated on load, but nothing reads it afterwards: new conversations
// start from conversation.DefaultCompressionSettings, not from this section.
type CompressionConfig struct {
	Enabled            bool    `yaml:"enabled"`
	MessageThreshold   int     `yaml:"message_threshold"`
	KeepRecentMessages int     `yaml:"keep_recent_messages"`
	SummaryMaxTokens   int     `yaml:"summary_max_tokens"`
	SummaryTemperature float64 `yaml:"summary_temperature"`
}

func (c *CompressionConfig) SetDefaults() {
	if c.MessageThreshold == 0 {
		c.MessageThreshold = 20
	}
	if c.KeepRecentMessages == 0 {
		c.KeepRecentMessages = 6
	}
	if c.SummaryMaxTokens == 0 {
		c.SummaryMaxTokens = 500
	}
}

func (c *CompressionConfig) Validate() error {
	if c.KeepRecentMessages >= c.MessageThreshold {
		return fmt.Errorf("compression.keep_recent_messages must be less than compression.message_threshold")
	}
	return nil
}

// RAGConfig configures the chunker, the persisted index, the pipeline demo
// tools' save directory, and an optional Qdrant write-through mirror.
type RAGConfig struct {
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	IndexPath    string `yaml:"index_path"`
	PipelineDir  string `yaml:"pipeline_dir"`

	QdrantEnabled    bool   `yaml:"qdrant_enabled"`
	QdrantHost       string `yaml:"qdrant_host"`
	QdrantPort       int    `yaml:"qdrant_port"`
	QdrantCollection string `yaml:"qdrant_collection"`
}

func (c *RAGConfig) SetDefaults() {
	if c.ChunkSize == 0 {
		c.ChunkSize = 500
	}
	if c.ChunkOverlap == 0 {
		c.ChunkOverlap = 50
	}
	if c.IndexPath == "" {
		c.IndexPath = "./rag-index.json"
	}
	if c.PipelineDir == "" {
		c.PipelineDir = "./pipeline-output"
	}
	if c.QdrantPort == 0 {
		c.QdrantPort = 6334
	}
	if c.QdrantCollection == "" {
		c.QdrantCollection = "agentcore"
	}
}

func (c *RAGConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("rag.chunk_size must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("rag.chunk_overlap must be non-negative and less than rag.chunk_size")
	}
	if c.QdrantEnabled && c.QdrantHost == "" {
		return fmt.Errorf("rag.qdrant_host is required when rag.qdrant_enabled is true")
	}
	return nil
}

// LoggingConfig configures the process-wide slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}
}

func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Level)
	}
	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Format)
	}
	return nil
}

// SetDefaults fills every section's defaults.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.LLM.SetDefaults()
	c.Storage.SetDefaults()
	c.Reminder.SetDefaults()
	c.Compression.SetDefaults()
	c.RAG.SetDefaults()
	c.Logging.SetDefaults()
}

// Validate validates every section, returning the first error encountered.
func (c *Config) Validate() error {
	for _, v := range []interface{ Validate() error }{
		&c.Server, &c.LLM, &c.Storage, &c.Reminder, &c.Compression, &c.RAG, &c.Logging,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
