// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.docuchat/config.yaml or ./config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - LLM: Ollama host, chat model, temperature
//   - Embeddings: embedder model, chunk size, chunk overlap
//   - Retrieval: top-k depth, similarity score threshold
//   - Storage: PostgreSQL connection (see storage.go)
//   - Server: HTTP listen address for the chat UI
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidModelName indicates the chat model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidChunking indicates chunk size/overlap values are inconsistent.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidTopK indicates the retrieval depth is out of range.
	ErrInvalidTopK = errors.New("invalid retrieval top-k")

	// ErrInvalidScoreThreshold indicates the similarity threshold is out of range.
	ErrInvalidScoreThreshold = errors.New("invalid score threshold")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidListenAddr indicates the HTTP listen address is invalid.
	ErrInvalidListenAddr = errors.New("invalid listen address")

	// ErrInvalidDataDir indicates the data directory path is invalid.
	ErrInvalidDataDir = errors.New("invalid data directory")

	// ErrInvalidHistoryWindow indicates the history window is out of range.
	ErrInvalidHistoryWindow = errors.New("invalid history window")
)

// Defaults for the local-first stack. The chat and embedder models match
// what `docuchat setup` pulls into Ollama on first run.
const (
	DefaultModelName     = "llama3.1"
	DefaultEmbedderModel = "nomic-embed-text"
	DefaultOllamaHost    = "http://localhost:11434"
	DefaultListenAddr    = "127.0.0.1:8501"
	DefaultDataDir       = "data"

	// DefaultMaxHistoryMessages bounds the conversation window passed to
	// the model and used for follow-up question rephrasing.
	DefaultMaxHistoryMessages = 10

	// MaxAllowedHistoryMessages is the absolute maximum to prevent OOM.
	MaxAllowedHistoryMessages = 1000
)

// Config stores application configuration.
type Config struct {
	// LLM configuration
	ModelName   string  `mapstructure:"model_name" json:"model_name"` // Ollama model identifier (e.g. "llama3.1")
	Temperature float32 `mapstructure:"temperature" json:"temperature"`
	OllamaHost  string  `mapstructure:"ollama_host" json:"ollama_host"`

	// Embedding and chunking configuration
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`
	ChunkSize     int    `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap  int    `mapstructure:"chunk_overlap" json:"chunk_overlap"`

	// Retrieval configuration
	RetrievalTopK  int     `mapstructure:"retrieval_top_k" json:"retrieval_top_k"`
	ScoreThreshold float32 `mapstructure:"score_threshold" json:"score_threshold"`

	// Conversation history window
	MaxHistoryMessages int `mapstructure:"max_history_messages" json:"max_history_messages"`

	// Storage configuration (see storage.go for helpers)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"-"`
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Server configuration
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`

	// Filesystem layout
	DataDir string `mapstructure:"data_dir" json:"data_dir"`
}

// RawDir returns the directory documents are ingested from.
func (c *Config) RawDir() string {
	return filepath.Join(c.DataDir, "raw")
}

// ProcessedDir returns the directory for post-ingestion artifacts.
func (c *Config) ProcessedDir() string {
	return filepath.Join(c.DataDir, "processed")
}

// Default returns a Config populated with the built-in defaults,
// without touching the filesystem or environment.
func Default() *Config {
	return &Config{
		ModelName:          DefaultModelName,
		Temperature:        0.7,
		OllamaHost:         DefaultOllamaHost,
		EmbedderModel:      DefaultEmbedderModel,
		ChunkSize:          1000,
		ChunkOverlap:       200,
		RetrievalTopK:      4,
		ScoreThreshold:     0.7,
		MaxHistoryMessages: DefaultMaxHistoryMessages,
		PostgresHost:       "localhost",
		PostgresPort:       5432,
		PostgresUser:       "docuchat",
		PostgresPassword:   "docuchat_dev_password",
		PostgresDBName:     "docuchat",
		PostgresSSLMode:    "disable",
		ListenAddr:         DefaultListenAddr,
		DataDir:            DefaultDataDir,
	}
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".docuchat")

	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL takes precedence over individual postgres_* settings
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// LLM defaults
	viper.SetDefault("model_name", DefaultModelName)
	viper.SetDefault("temperature", 0.7)
	viper.SetDefault("ollama_host", DefaultOllamaHost)

	// Embedding defaults
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("chunk_size", 1000)
	viper.SetDefault("chunk_overlap", 200)

	// Retrieval defaults
	viper.SetDefault("retrieval_top_k", 4)
	viper.SetDefault("score_threshold", 0.7)

	// Conversation defaults
	viper.SetDefault("max_history_messages", DefaultMaxHistoryMessages)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "docuchat")
	viper.SetDefault("postgres_password", "docuchat_dev_password")
	viper.SetDefault("postgres_db_name", "docuchat")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Server defaults
	viper.SetDefault("listen_addr", DefaultListenAddr)

	// Filesystem defaults
	viper.SetDefault("data_dir", DefaultDataDir)
}

// bindEnvVariables binds environment variable overrides explicitly.
func bindEnvVariables() {
	// Hardcoded strings can't fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("model_name", "DOCUCHAT_MODEL")
	mustBind("embedder_model", "DOCUCHAT_EMBEDDER_MODEL")
	mustBind("ollama_host", "OLLAMA_HOST")
	mustBind("listen_addr", "DOCUCHAT_LISTEN_ADDR")
	mustBind("data_dir", "DOCUCHAT_DATA_DIR")
	mustBind("postgres_password", "DOCUCHAT_POSTGRES_PASSWORD")

	// NOTE: DATABASE_URL is parsed separately in parseDatabaseURL()
	// because it maps one variable onto several postgres_* fields.
}
