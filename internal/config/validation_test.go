package config

import (
	"errors"
	"strings"
	"testing"
)

// validConfig returns a configuration that passes all validation checks.
// Tests mutate single fields to trigger specific sentinel errors.
func validConfig() *Config {
	return &Config{
		ModelName:          "llama3.1",
		Temperature:        0.7,
		OllamaHost:         "http://localhost:11434",
		EmbedderModel:      "nomic-embed-text",
		ChunkSize:          1000,
		ChunkOverlap:       200,
		RetrievalTopK:      4,
		ScoreThreshold:     0.7,
		MaxHistoryMessages: 10,
		PostgresHost:       "localhost",
		PostgresPort:       5432,
		PostgresUser:       "docuchat",
		PostgresPassword:   "docuchat_dev_password",
		PostgresDBName:     "docuchat",
		PostgresSSLMode:    "disable",
		ListenAddr:         "127.0.0.1:8501",
		DataDir:            "data",
	}
}

func TestValidate_Valid(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidate_NilConfig(t *testing.T) {
	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("expected ErrConfigNil, got %v", err)
	}
}

func TestValidate_SentinelErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "empty model name",
			mutate:  func(c *Config) { c.ModelName = "" },
			wantErr: ErrInvalidModelName,
		},
		{
			name:    "temperature too high",
			mutate:  func(c *Config) { c.Temperature = 2.5 },
			wantErr: ErrInvalidTemperature,
		},
		{
			name:    "negative temperature",
			mutate:  func(c *Config) { c.Temperature = -0.1 },
			wantErr: ErrInvalidTemperature,
		},
		{
			name:    "empty ollama host",
			mutate:  func(c *Config) { c.OllamaHost = "" },
			wantErr: ErrInvalidOllamaHost,
		},
		{
			name:    "ollama host without scheme",
			mutate:  func(c *Config) { c.OllamaHost = "localhost:11434" },
			wantErr: ErrInvalidOllamaHost,
		},
		{
			name:    "empty embedder model",
			mutate:  func(c *Config) { c.EmbedderModel = "" },
			wantErr: ErrInvalidEmbedderModel,
		},
		{
			name:    "chunk size too small",
			mutate:  func(c *Config) { c.ChunkSize = 50 },
			wantErr: ErrInvalidChunking,
		},
		{
			name:    "overlap not smaller than chunk size",
			mutate:  func(c *Config) { c.ChunkOverlap = 1000 },
			wantErr: ErrInvalidChunking,
		},
		{
			name:    "negative overlap",
			mutate:  func(c *Config) { c.ChunkOverlap = -1 },
			wantErr: ErrInvalidChunking,
		},
		{
			name:    "top-k zero",
			mutate:  func(c *Config) { c.RetrievalTopK = 0 },
			wantErr: ErrInvalidTopK,
		},
		{
			name:    "top-k too large",
			mutate:  func(c *Config) { c.RetrievalTopK = 51 },
			wantErr: ErrInvalidTopK,
		},
		{
			name:    "score threshold above one",
			mutate:  func(c *Config) { c.ScoreThreshold = 1.5 },
			wantErr: ErrInvalidScoreThreshold,
		},
		{
			name:    "history window too small",
			mutate:  func(c *Config) { c.MaxHistoryMessages = 1 },
			wantErr: ErrInvalidHistoryWindow,
		},
		{
			name:    "empty postgres host",
			mutate:  func(c *Config) { c.PostgresHost = "" },
			wantErr: ErrInvalidPostgresHost,
		},
		{
			name:    "postgres port out of range",
			mutate:  func(c *Config) { c.PostgresPort = 70000 },
			wantErr: ErrInvalidPostgresPort,
		},
		{
			name:    "empty database name",
			mutate:  func(c *Config) { c.PostgresDBName = "" },
			wantErr: ErrInvalidPostgresDBName,
		},
		{
			name:    "listen addr without port",
			mutate:  func(c *Config) { c.ListenAddr = "localhost" },
			wantErr: ErrInvalidListenAddr,
		},
		{
			name:    "empty data dir",
			mutate:  func(c *Config) { c.DataDir = "" },
			wantErr: ErrInvalidDataDir,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestPostgresConnectionString_QuotesPassword(t *testing.T) {
	cfg := validConfig()
	cfg.PostgresPassword = "pass word's"

	dsn := cfg.PostgresConnectionString()
	if want := `password='pass word\'s'`; !strings.Contains(dsn, want) {
		t.Errorf("expected DSN to contain %q, got %q", want, dsn)
	}
}

func TestPostgresURL_EncodesCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.PostgresPassword = "p@ss/word"

	u := cfg.PostgresURL()
	if strings.Contains(u, "p@ss/word") {
		t.Errorf("expected special characters to be URL-encoded, got %q", u)
	}
	if !strings.HasPrefix(u, "postgres://") {
		t.Errorf("expected postgres scheme, got %q", u)
	}
}
