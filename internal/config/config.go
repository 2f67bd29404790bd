// Package config loads runtime configuration from the environment, with
// an optional .env file for development.
package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/localrag/folderrag-mcp/pkg/types"
)

// Config holds all runtime settings. Every field reads from the
// FOLDERRAG_ environment namespace, e.g. FOLDERRAG_DATA_DIR.
type Config struct {
	// DataDir holds the SQLite database and the vector index files
	DataDir string `envconfig:"DATA_DIR" default:"./folderrag-data"`

	// IndexKind selects the vector index backend: flat, hnsw, or ivf
	IndexKind string `envconfig:"INDEX_KIND" default:"flat"`

	ChunkSize    int `envconfig:"CHUNK_SIZE" default:"800"`
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"150"`

	// EmbeddingProvider is resolved by the embedder factory when empty
	EmbeddingProvider string `envconfig:"EMBEDDING_PROVIDER"`
	EmbeddingModel    string `envconfig:"EMBEDDING_MODEL"`

	// TopK is the default search result limit
	TopK int `envconfig:"TOP_K" default:"10"`

	// Workers bounds indexing concurrency; 0 means one per CPU
	Workers int `envconfig:"WORKERS" default:"0"`

	Debug bool `envconfig:"DEBUG" default:"false"`
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("FOLDERRAG", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad is Load for main functions.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", types.ErrConfiguration, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunk overlap cannot be negative, got %d", types.ErrConfiguration, c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d",
			types.ErrConfiguration, c.ChunkOverlap, c.ChunkSize)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("%w: top-k must be positive, got %d", types.ErrConfiguration, c.TopK)
	}
	return nil
}
