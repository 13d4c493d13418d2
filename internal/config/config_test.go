package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "*", cfg.Server.CorsAllowedOrigins)
	assert.Equal(t, 15*time.Minute, cfg.Session.IdleTimeout())
	assert.Equal(t, 30*time.Second, cfg.Session.SweepInterval())
	assert.Equal(t, 30*time.Second, cfg.Session.CallTimeout())
	assert.Equal(t, "memory", cfg.VectorStore.Type)
	assert.Equal(t, "hashing", cfg.Embedder.Type)
	assert.Equal(t, "extractive", cfg.Generator.Type)
	assert.Equal(t, 1000, cfg.Chunker.Size)
	assert.Equal(t, 200, cfg.Chunker.Overlap)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, "insightai.log", cfg.Log.FilePath)
}

func TestLoadFileValuesWin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
server:
  port: "9001"
session:
  idle_timeout_secs: 60
  sweep_interval_secs: 5
vector_store:
  type: qdrant
  qdrant:
    url: http://qdrant:6334
embedder:
  type: gemini
chunker:
  size: 500
  overlap: 50
retrieval:
  top_k: 5
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9001", cfg.Server.Port)
	assert.Equal(t, time.Minute, cfg.Session.IdleTimeout())
	assert.Equal(t, 5*time.Second, cfg.Session.SweepInterval())
	// Unset fields still get defaults.
	assert.Equal(t, 30*time.Second, cfg.Session.CallTimeout())

	require.NotNil(t, cfg.VectorStore.Qdrant)
	assert.Equal(t, "http://qdrant:6334", cfg.VectorStore.Qdrant.URL)
	assert.Equal(t, "QDRANT_API_KEY", cfg.VectorStore.Qdrant.APIKeyEnv)

	require.NotNil(t, cfg.Embedder.Gemini)
	assert.Equal(t, "GOOGLE_API_KEY", cfg.Embedder.Gemini.APIKeyEnv)
	assert.Equal(t, "text-embedding-004", cfg.Embedder.Gemini.Model)

	assert.Equal(t, 500, cfg.Chunker.Size)
	assert.Equal(t, 50, cfg.Chunker.Overlap)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a mapping"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "7777")
	t.Setenv("QDRANT_URL", "http://remote:6334")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "7777", cfg.Server.Port)
	assert.Equal(t, "qdrant", cfg.VectorStore.Type)
	require.NotNil(t, cfg.VectorStore.Qdrant)
	assert.Equal(t, "http://remote:6334", cfg.VectorStore.Qdrant.URL)
	assert.Equal(t, "QDRANT_API_KEY", cfg.VectorStore.Qdrant.APIKeyEnv)
}
