package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Logging     LoggingConfig    `toml:"logging"`
	Embedding   EmbeddingConfig  `toml:"embedding"`
	Completion  CompletionConfig `toml:"completion"`
	Ingest      IngestConfig     `toml:"ingest"`
	Chat        ChatConfig       `toml:"chat"`
	Search      SearchConfig     `toml:"search"`
	Processing  ProcessingConfig `toml:"processing"`
	WebSocket   WebSocketConfig  `toml:"websocket"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
	Blobs  BlobConfig   `toml:"blobs"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// BlobConfig configures the filesystem blob store for uploaded files
type BlobConfig struct {
	Dir string `toml:"dir"` // Directory for uploaded document files
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
}

// EmbeddingConfig configures the remote embedding provider
type EmbeddingConfig struct {
	BaseURL       string  `toml:"base_url"`        // Provider base URL
	APIKey        string  `toml:"api_key"`         // Provider API key (or COLLOQUY_EMBEDDING_API_KEY)
	Model         string  `toml:"model"`           // e.g. "text-embedding-004"
	Dimension     int     `toml:"dimension"`       // Expected vector dimension (default 768)
	MaxInputChars int     `toml:"max_input_chars"` // Truncate text before sending (default 8000)
	MaxRetries    int     `toml:"max_retries"`     // Attempts on 5xx before giving up (default 3)
	Timeout       string  `toml:"timeout"`         // HTTP timeout, e.g. "30s"
	RateLimit     float64 `toml:"rate_limit"`      // Requests per second (default 5)
}

// CompletionConfig configures the streaming completion provider
type CompletionConfig struct {
	BaseURL string `toml:"base_url"` // OpenAI-compatible gateway base URL
	APIKey  string `toml:"api_key"`  // Gateway API key (or COLLOQUY_COMPLETION_API_KEY)
	Model   string `toml:"model"`    // e.g. "google/gemini-2.5-flash"
	Timeout string `toml:"timeout"`  // HTTP timeout for the full stream, e.g. "5m"
}

// IngestConfig configures the document ingestion pipeline
type IngestConfig struct {
	ChunkSize     int `toml:"chunk_size"`      // Target chunk window in characters (default 1000)
	ChunkOverlap  int `toml:"chunk_overlap"`   // Overlap between adjacent chunks (default 200)
	MinTextLength int `toml:"min_text_length"` // Reject extractions shorter than this (default 50)
}

// ChatConfig configures grounded chat retrieval
type ChatConfig struct {
	MatchThreshold float64 `toml:"match_threshold"` // Similarity floor for retrieval (default 0.3)
	MatchCount     int     `toml:"match_count"`     // Candidates fetched pre-filter (default 10)
	ContextLimit   int     `toml:"context_limit"`   // Excerpts included in the prompt (default 5)
}

// SearchConfig contains defaults for the user-facing search endpoint
type SearchConfig struct {
	MatchThreshold float64 `toml:"match_threshold"` // Default similarity floor (default 0.5)
	MatchCount     int     `toml:"match_count"`     // Default result cap (default 5)
}

// ProcessingConfig configures the background retry scheduler
type ProcessingConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron schedule with seconds field
	Limit    int    `toml:"limit"`    // Max documents to retry per run
}

// WebSocketConfig configures the document status event feed
type WebSocketConfig struct {
	Enabled        bool `toml:"enabled"`
	MaxConnections int  `toml:"max_connections"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/colloquy.db",
				ResetOnStartup: false,
			},
			Blobs: BlobConfig{
				Dir: "./data/blobs",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
		Embedding: EmbeddingConfig{
			BaseURL:       "https://generativelanguage.googleapis.com",
			Model:         "text-embedding-004",
			Dimension:     768,
			MaxInputChars: 8000,
			MaxRetries:    3,
			Timeout:       "30s",
			RateLimit:     5,
		},
		Completion: CompletionConfig{
			BaseURL: "https://ai.gateway.lovable.dev",
			Model:   "google/gemini-2.5-flash",
			Timeout: "5m",
		},
		Ingest: IngestConfig{
			ChunkSize:     1000,
			ChunkOverlap:  200,
			MinTextLength: 50,
		},
		Chat: ChatConfig{
			MatchThreshold: 0.3,
			MatchCount:     10,
			ContextLimit:   5,
		},
		Search: SearchConfig{
			MatchThreshold: 0.5,
			MatchCount:     5,
		},
		Processing: ProcessingConfig{
			Enabled:  false,
			Schedule: "0 */15 * * * *",
			Limit:    10,
		},
		WebSocket: WebSocketConfig{
			Enabled:        true,
			MaxConnections: 32,
		},
	}
}

// LoadFromFile loads configuration from a single TOML file
func LoadFromFile(path string) (*Config, error) {
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple TOML files.
// Later files override earlier ones; environment variables override all files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("COLLOQUY_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("COLLOQUY_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("COLLOQUY_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if badgerPath := os.Getenv("COLLOQUY_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if blobDir := os.Getenv("COLLOQUY_BLOB_DIR"); blobDir != "" {
		config.Storage.Blobs.Dir = blobDir
	}

	if level := os.Getenv("COLLOQUY_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if key := os.Getenv("COLLOQUY_EMBEDDING_API_KEY"); key != "" {
		config.Embedding.APIKey = key
	}
	if url := os.Getenv("COLLOQUY_EMBEDDING_BASE_URL"); url != "" {
		config.Embedding.BaseURL = url
	}
	if model := os.Getenv("COLLOQUY_EMBEDDING_MODEL"); model != "" {
		config.Embedding.Model = model
	}
	if dim := os.Getenv("COLLOQUY_EMBEDDING_DIMENSION"); dim != "" {
		if d, err := strconv.Atoi(dim); err == nil {
			config.Embedding.Dimension = d
		}
	}

	if key := os.Getenv("COLLOQUY_COMPLETION_API_KEY"); key != "" {
		config.Completion.APIKey = key
	}
	if url := os.Getenv("COLLOQUY_COMPLETION_BASE_URL"); url != "" {
		config.Completion.BaseURL = url
	}
	if model := os.Getenv("COLLOQUY_COMPLETION_MODEL"); model != "" {
		config.Completion.Model = model
	}
}

// Validate checks the configuration for invalid combinations
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)",
			c.Ingest.ChunkOverlap, c.Ingest.ChunkSize)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if _, err := time.ParseDuration(c.Embedding.Timeout); err != nil {
		return fmt.Errorf("invalid embedding timeout %q: %w", c.Embedding.Timeout, err)
	}
	if _, err := time.ParseDuration(c.Completion.Timeout); err != nil {
		return fmt.Errorf("invalid completion timeout %q: %w", c.Completion.Timeout, err)
	}
	return nil
}
