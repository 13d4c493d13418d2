package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port               string `yaml:"port"`
	CorsAllowedOrigins string `yaml:"cors_allowed_origins"`
	BodyLimitMB        int    `yaml:"body_limit_mb"`
}

// SessionConfig configures the session lifecycle manager.
type SessionConfig struct {
	IdleTimeoutSecs   int `yaml:"idle_timeout_secs"`
	SweepIntervalSecs int `yaml:"sweep_interval_secs"`
	CallTimeoutSecs   int `yaml:"call_timeout_secs"`
}

// IdleTimeout returns the configured idle timeout as a duration.
func (c SessionConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSecs) * time.Second
}

// SweepInterval returns the configured sweep cadence as a duration.
func (c SessionConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSecs) * time.Second
}

// CallTimeout bounds each remote vector-store call.
func (c SessionConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSecs) * time.Second
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL       string `yaml:"url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// GeminiConfig configures a Gemini API client (embedding or generation).
type GeminiConfig struct {
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// HashingConfig configures the local feature-hashing embedder.
type HashingConfig struct {
	Dimension int `yaml:"dimension"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type    string         `yaml:"type"`
	Gemini  *GeminiConfig  `yaml:"gemini,omitempty"`
	Hashing *HashingConfig `yaml:"hashing,omitempty"`
}

// ExtractiveConfig configures the local extractive answerer.
type ExtractiveConfig struct {
	MaxSentences int `yaml:"max_sentences"`
}

// GeneratorConfig selects and configures the answer generator.
type GeneratorConfig struct {
	Type       string            `yaml:"type"`
	Gemini     *GeminiConfig     `yaml:"gemini,omitempty"`
	Extractive *ExtractiveConfig `yaml:"extractive,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// RetrievalConfig configures similarity search.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// LogConfig configures the application logger.
type LogConfig struct {
	FilePath   string `yaml:"file_path"`
	Production bool   `yaml:"production"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server      ServerConfig      `yaml:"server"`
	Session     SessionConfig     `yaml:"session"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Log         LogConfig         `yaml:"log"`
}

// Load reads a config from the given path. A missing file yields defaults,
// so a zero-config run works against the in-process store.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8000"
	}
	if cfg.Server.CorsAllowedOrigins == "" {
		cfg.Server.CorsAllowedOrigins = "*"
	}
	if cfg.Server.BodyLimitMB == 0 {
		cfg.Server.BodyLimitMB = 10
	}
	if cfg.Session.IdleTimeoutSecs == 0 {
		cfg.Session.IdleTimeoutSecs = 900
	}
	if cfg.Session.SweepIntervalSecs == 0 {
		cfg.Session.SweepIntervalSecs = 30
	}
	if cfg.Session.CallTimeoutSecs == 0 {
		cfg.Session.CallTimeoutSecs = 30
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	if cfg.VectorStore.Type == "qdrant" && cfg.VectorStore.Qdrant != nil {
		if cfg.VectorStore.Qdrant.APIKeyEnv == "" {
			cfg.VectorStore.Qdrant.APIKeyEnv = "QDRANT_API_KEY"
		}
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "hashing"
	}
	if cfg.Embedder.Type == "gemini" {
		if cfg.Embedder.Gemini == nil {
			cfg.Embedder.Gemini = &GeminiConfig{}
		}
		applyGeminiDefaults(cfg.Embedder.Gemini, "text-embedding-004")
	}
	if cfg.Generator.Type == "" {
		cfg.Generator.Type = "extractive"
	}
	if cfg.Generator.Type == "gemini" {
		if cfg.Generator.Gemini == nil {
			cfg.Generator.Gemini = &GeminiConfig{}
		}
		applyGeminiDefaults(cfg.Generator.Gemini, "gemini-2.5-flash")
	}
	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = 1000
	}
	if cfg.Chunker.Overlap == 0 {
		cfg.Chunker.Overlap = 200
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Log.FilePath == "" {
		cfg.Log.FilePath = "insightai.log"
	}
}

func applyGeminiDefaults(g *GeminiConfig, model string) {
	if g.APIKeyEnv == "" {
		g.APIKeyEnv = "GOOGLE_API_KEY"
	}
	if g.Model == "" {
		g.Model = model
	}
	if g.TimeoutSecs == 0 {
		g.TimeoutSecs = 30
	}
}

// applyEnvOverrides lets deployment env vars win over file values.
func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("APP_PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.CorsAllowedOrigins = v
	}
	if v := os.Getenv("QDRANT_URL"); v != "" {
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{APIKeyEnv: "QDRANT_API_KEY"}
		}
		cfg.VectorStore.Type = "qdrant"
		cfg.VectorStore.Qdrant.URL = v
	}
}
