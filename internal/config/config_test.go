package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalJSON = `{
	"database": {"driver": "sqlite", "path": "/tmp/tierdoc.db"},
	"ai": {
		"summarizer": [{"provider": "ollama", "model": "mistral"}],
		"embedder": [{"provider": "ollama", "model": "all-minilm"}]
	}
}`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.json", minimalJSON))
	require.NoError(t, err)
	require.Equal(t, "info", cfg.LogConfig.Level)
	require.Equal(t, "sqlite", cfg.VectorStore.Type)
	require.Equal(t, DefaultSummaryIndex, cfg.VectorStore.SummaryIndex)
	require.Equal(t, DefaultChunkIndex, cfg.VectorStore.ChunkIndex)
	require.Equal(t, DefaultThreshold, cfg.Ingest.Threshold)
	require.Equal(t, DefaultWorkers, cfg.Ingest.Workers)
	require.Equal(t, DefaultTopSummary, cfg.Server.TopSummary)
	require.Equal(t, DefaultTopChunks, cfg.Server.TopChunks)
	require.Equal(t, "local", cfg.Source.Type)
	require.Equal(t, DefaultAITimeout, cfg.AI.Timeout)
}

func TestLoadTOML(t *testing.T) {
	content := `
[database]
driver = "postgres"
host = "localhost"

[vector_store]
embedding_dim = 384
num_candidates = 50

[ingest]
threshold = 500

[[ai.summarizer]]
provider = "gemini"
model = "gemini-2.0-flash"

[[ai.embedder]]
provider = "gemini"
model = "text-embedding-004"
`
	cfg, err := Load(writeConfig(t, "config.toml", content))
	require.NoError(t, err)
	require.Equal(t, "pgvector", cfg.VectorStore.Type)
	require.Equal(t, 5432, cfg.Database.Port)
	require.Equal(t, 384, cfg.VectorStore.EmbeddingDim)
	require.Equal(t, 50, cfg.VectorStore.NumCandidates)
	require.Equal(t, 500, cfg.Ingest.Threshold)
	require.Equal(t, "gemini", cfg.AI.Summarizer[0].Provider)
}

func TestLoadInjectsAPIKeyFromEnv(t *testing.T) {
	t.Setenv(apiKeyEnv, "secret-key")
	content := `{
		"database": {"driver": "sqlite", "path": "x.db"},
		"ai": {
			"summarizer": [{"provider": "openai", "model": "gpt-4o-mini", "data": {"api_key": "explicit"}}],
			"embedder": [{"provider": "openai", "model": "text-embedding-3-small"}]
		}
	}`
	cfg, err := Load(writeConfig(t, "config.json", content))
	require.NoError(t, err)
	summarizer := cfg.AI.Summarizer[0].Data.(map[string]interface{})
	require.Equal(t, "explicit", summarizer["api_key"])
	embedder := cfg.AI.Embedder[0].Data.(map[string]interface{})
	require.Equal(t, "secret-key", embedder["api_key"])
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "missing embedder",
			content: `{"database": {"driver": "sqlite", "path": "x.db"}, "ai": {"summarizer": [{"provider": "ollama"}]}}`,
		},
		{
			name:    "postgres without host",
			content: `{"database": {"driver": "postgres"}, "ai": {"summarizer": [{"provider": "ollama"}], "embedder": [{"provider": "ollama"}]}}`,
		},
		{
			name:    "mismatched vector store",
			content: `{"database": {"driver": "sqlite", "path": "x.db"}, "vector_store": {"type": "pgvector"}, "ai": {"summarizer": [{"provider": "ollama"}], "embedder": [{"provider": "ollama"}]}}`,
		},
		{
			name:    "bad index name",
			content: `{"database": {"driver": "sqlite", "path": "x.db"}, "vector_store": {"summary_index": "drop table;"}, "ai": {"summarizer": [{"provider": "ollama"}], "embedder": [{"provider": "ollama"}]}}`,
		},
		{
			name:    "same index names",
			content: `{"database": {"driver": "sqlite", "path": "x.db"}, "vector_store": {"summary_index": "a", "chunk_index": "a"}, "ai": {"summarizer": [{"provider": "ollama"}], "embedder": [{"provider": "ollama"}]}}`,
		},
		{
			name:    "reserved index name",
			content: `{"database": {"driver": "sqlite", "path": "x.db"}, "vector_store": {"summary_index": "embedding_cache"}, "ai": {"summarizer": [{"provider": "ollama"}], "embedder": [{"provider": "ollama"}]}}`,
		},
		{
			name:    "negative retries",
			content: `{"database": {"driver": "sqlite", "path": "x.db"}, "ai": {"max_retries": -1, "summarizer": [{"provider": "ollama"}], "embedder": [{"provider": "ollama"}]}}`,
		},
		{
			name:    "s3 without bucket",
			content: `{"database": {"driver": "sqlite", "path": "x.db"}, "source": {"type": "s3"}, "ai": {"summarizer": [{"provider": "ollama"}], "embedder": [{"provider": "ollama"}]}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "config.json", tt.content))
			require.Error(t, err)
		})
	}
}

func TestValidIndexName(t *testing.T) {
	require.True(t, ValidIndexName("summary"))
	require.True(t, ValidIndexName("chunks_v2"))
	require.False(t, ValidIndexName("Summary"))
	require.False(t, ValidIndexName("1chunks"))
	require.False(t, ValidIndexName("chunks; drop"))
	require.False(t, ValidIndexName(""))
	require.False(t, ValidIndexName("embedding_cache"))
	require.False(t, ValidIndexName("schema_migrations"))
	require.False(t, ValidIndexName("vector_collections"))
}

func TestLoadMaxRetries(t *testing.T) {
	tests := []struct {
		name    string
		retries string
		want    int
	}{
		{name: "unset uses default", retries: "", want: DefaultMaxRetries},
		{name: "zero disables retries", retries: `"max_retries": 0,`, want: 0},
		{name: "explicit value", retries: `"max_retries": 5,`, want: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := `{"database": {"driver": "sqlite", "path": "x.db"}, "ai": {` + tt.retries +
				` "summarizer": [{"provider": "ollama"}], "embedder": [{"provider": "ollama"}]}}`
			cfg, err := Load(writeConfig(t, "config.json", content))
			require.NoError(t, err)
			require.Equal(t, tt.want, cfg.AI.Retries())
		})
	}
}
