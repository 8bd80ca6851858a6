package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/xxxsen/common/logger"
)

const (
	DefaultThreshold     = 700
	DefaultWorkers       = 4
	DefaultSummaryIndex  = "summary"
	DefaultChunkIndex    = "chunks"
	DefaultTopSummary    = 3
	DefaultTopChunks     = 10
	DefaultAITimeout     = 120
	DefaultMaxRetries    = 3
	DefaultRetryBaseMs   = 500
	DefaultCacheMaxAge   = 30
	DefaultPort          = 8080
	apiKeyEnv            = "TIERDOC_AI_API_KEY"
	defaultEmbedCacheTTL = 120
)

var indexNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

type Config struct {
	LogConfig   logger.LogConfig  `json:"log_config"`
	Database    DatabaseConfig    `json:"database"`
	VectorStore VectorStoreConfig `json:"vector_store"`
	AI          AIConfig          `json:"ai"`
	Ingest      IngestConfig      `json:"ingest"`
	Source      SourceConfig      `json:"source"`
	Server      ServerConfig      `json:"server"`
	Schedule    ScheduleConfig    `json:"schedule"`
}

type DatabaseConfig struct {
	Driver   string `json:"driver"`
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
	Path     string `json:"path"`
}

type VectorStoreConfig struct {
	Type           string `json:"type"`
	SummaryIndex   string `json:"summary_index"`
	ChunkIndex     string `json:"chunk_index"`
	EmbeddingDim   int    `json:"embedding_dim"`
	NumCandidates  int    `json:"num_candidates"`
	HNSWM          int    `json:"hnsw_m"`
	EFConstruction int    `json:"ef_construction"`
}

type ProviderConfig struct {
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
}

type AIConfig struct {
	Timeout              int              `json:"timeout"`
	MaxInputChars        int              `json:"max_input_chars"`
	MaxRetries           *int             `json:"max_retries"`
	RetryBaseMillis      int              `json:"retry_base_ms"`
	Summarizer           []ProviderConfig `json:"summarizer"`
	Embedder             []ProviderConfig `json:"embedder"`
	EmbedCacheSize       int              `json:"embed_cache_size"`
	EmbedCacheTTLMinutes int              `json:"embed_cache_ttl_minutes"`
	EmbedDBCache         bool             `json:"embed_db_cache"`
}

type IngestConfig struct {
	Threshold int `json:"threshold"`
	Workers   int `json:"workers"`
}

type SourceConfig struct {
	Type string   `json:"type"`
	Dir  string   `json:"dir"`
	S3   S3Config `json:"s3"`
}

type S3Config struct {
	Endpoint     string `json:"endpoint"`
	Region       string `json:"region"`
	Bucket       string `json:"bucket"`
	Prefix       string `json:"prefix"`
	SecretID     string `json:"secret_id"`
	SecretKey    string `json:"secret_key"`
	UsePathStyle bool   `json:"use_path_style"`
}

type ServerConfig struct {
	Port                  int      `json:"port"`
	JWTSecret             string   `json:"jwt_secret"`
	TopSummary            int      `json:"top_summary"`
	TopChunks             int      `json:"top_chunks"`
	CORSOrigins           []string `json:"cors_origins"`
	AdminRateLimitSeconds int      `json:"admin_rate_limit_seconds"`
}

type ScheduleConfig struct {
	ReingestCron     string `json:"reingest_cron"`
	CacheCleanupCron string `json:"cache_cleanup_cron"`
	CacheMaxAgeDays  int    `json:"cache_max_age_days"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		raw, err = tomlToJSON(raw)
		if err != nil {
			return nil, err
		}
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	applyEnv(&cfg)
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// tomlToJSON lets TOML files share the json tags of the config structs.
func tomlToJSON(raw []byte) ([]byte, error) {
	var tree map[string]interface{}
	if _, err := toml.Decode(string(raw), &tree); err != nil {
		return nil, fmt.Errorf("decode toml config: %w", err)
	}
	data, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("encode toml config: %w", err)
	}
	return data, nil
}

func applyEnv(cfg *Config) {
	key := strings.TrimSpace(os.Getenv(apiKeyEnv))
	if key == "" {
		return
	}
	inject := func(items []ProviderConfig) {
		for i := range items {
			data, ok := items[i].Data.(map[string]interface{})
			if !ok || data == nil {
				data = map[string]interface{}{}
			}
			if v, _ := data["api_key"].(string); v == "" {
				data["api_key"] = key
			}
			items[i].Data = data
		}
	}
	inject(cfg.AI.Summarizer)
	inject(cfg.AI.Embedder)
}

func (c *Config) normalize() error {
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	switch c.Database.Driver {
	case "postgres":
		if c.Database.DSN == "" && c.Database.Host == "" {
			return fmt.Errorf("database.dsn or database.host is required for postgres")
		}
		if c.Database.Port == 0 {
			c.Database.Port = 5432
		}
		if c.VectorStore.Type == "" {
			c.VectorStore.Type = "pgvector"
		}
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
		if c.VectorStore.Type == "" {
			c.VectorStore.Type = "sqlite"
		}
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite")
	}
	if err := c.VectorStore.normalize(c.Database.Driver); err != nil {
		return err
	}
	if len(c.AI.Summarizer) == 0 {
		return fmt.Errorf("ai.summarizer requires at least one provider")
	}
	if len(c.AI.Embedder) == 0 {
		return fmt.Errorf("ai.embedder requires at least one provider")
	}
	if c.AI.Timeout <= 0 {
		c.AI.Timeout = DefaultAITimeout
	}
	switch {
	case c.AI.MaxRetries == nil:
		retries := DefaultMaxRetries
		c.AI.MaxRetries = &retries
	case *c.AI.MaxRetries < 0:
		return fmt.Errorf("ai.max_retries must not be negative")
	}
	if c.AI.RetryBaseMillis <= 0 {
		c.AI.RetryBaseMillis = DefaultRetryBaseMs
	}
	if c.AI.EmbedCacheSize > 0 && c.AI.EmbedCacheTTLMinutes <= 0 {
		c.AI.EmbedCacheTTLMinutes = defaultEmbedCacheTTL
	}
	if c.Ingest.Threshold <= 0 {
		c.Ingest.Threshold = DefaultThreshold
	}
	if c.Ingest.Workers <= 0 {
		c.Ingest.Workers = DefaultWorkers
	}
	if c.Source.Type == "" {
		c.Source.Type = "local"
	}
	switch c.Source.Type {
	case "local":
	case "s3":
		if c.Source.S3.Bucket == "" {
			return fmt.Errorf("source.s3.bucket is required for s3 source")
		}
	default:
		return fmt.Errorf("source.type must be local or s3")
	}
	if c.Server.Port <= 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.TopSummary <= 0 {
		c.Server.TopSummary = DefaultTopSummary
	}
	if c.Server.TopChunks <= 0 {
		c.Server.TopChunks = DefaultTopChunks
	}
	if c.Schedule.CacheMaxAgeDays <= 0 {
		c.Schedule.CacheMaxAgeDays = DefaultCacheMaxAge
	}
	return nil
}

func (v *VectorStoreConfig) normalize(driver string) error {
	v.Type = strings.ToLower(strings.TrimSpace(v.Type))
	switch {
	case v.Type == "pgvector" && driver != "postgres":
		return fmt.Errorf("vector_store.type pgvector requires database.driver postgres")
	case v.Type == "sqlite" && driver != "sqlite":
		return fmt.Errorf("vector_store.type sqlite requires database.driver sqlite")
	case v.Type != "pgvector" && v.Type != "sqlite":
		return fmt.Errorf("vector_store.type must be pgvector or sqlite")
	}
	if v.SummaryIndex == "" {
		v.SummaryIndex = DefaultSummaryIndex
	}
	if v.ChunkIndex == "" {
		v.ChunkIndex = DefaultChunkIndex
	}
	for _, name := range []string{v.SummaryIndex, v.ChunkIndex} {
		if !ValidIndexName(name) {
			return fmt.Errorf("invalid index name: %q", name)
		}
	}
	if v.SummaryIndex == v.ChunkIndex {
		return fmt.Errorf("vector_store.summary_index and chunk_index must differ")
	}
	if v.EmbeddingDim < 0 {
		return fmt.Errorf("vector_store.embedding_dim must not be negative")
	}
	return nil
}

// reservedTables are internal tables a collection must never replace.
var reservedTables = map[string]bool{
	"embedding_cache":    true,
	"schema_migrations":  true,
	"vector_collections": true,
}

// ValidIndexName reports whether name is usable as an unquoted table name
// that does not collide with an internal table.
func ValidIndexName(name string) bool {
	return indexNamePattern.MatchString(name) && !reservedTables[name]
}

// Retries is the number of extra attempts per AI call. Zero disables retries.
func (a AIConfig) Retries() int {
	if a.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *a.MaxRetries
}
