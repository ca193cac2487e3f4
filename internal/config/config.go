package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the fusedex API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Rerank    RerankConfig    `yaml:"rerank"`
	Cache     CacheConfig     `yaml:"cache"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Auth      AuthConfig      `yaml:"auth"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds dense embedding provider settings.
type EmbeddingConfig struct {
	APIKey        string `yaml:"api_key"`
	BaseURL       string `yaml:"base_url"`
	Model         string `yaml:"model"`
	Dimensions    int    `yaml:"dimensions"`
	MaxInputChars int    `yaml:"max_input_chars"` // oversized primary_text is chunked
}

// RetrievalConfig holds fan-out and fusion settings.
type RetrievalConfig struct {
	RRFK           int                `yaml:"rrf_k"`
	Weights        map[string]float64 `yaml:"weights"` // per-source fusion weights
	PortTimeoutSec int                `yaml:"port_timeout_sec"`
	DefaultTopK    int                `yaml:"default_top_k"`
	MaxTopK        int                `yaml:"max_top_k"`
	NeuralURL      string             `yaml:"neural_url"` // empty disables the neural-sparse port
}

// RerankConfig holds cross-encoder reranker settings.
type RerankConfig struct {
	URL        string `yaml:"url"` // empty disables reranking
	TimeoutSec int    `yaml:"timeout_sec"`
	TopN       int    `yaml:"top_n"` // candidates sent to the scorer, >= top_k
}

// CacheConfig holds fused-result cache settings.
type CacheConfig struct {
	Driver    string `yaml:"driver"` // redis, memory (default: redis)
	TTLSec    int    `yaml:"ttl_sec"`
	LocalSize int    `yaml:"local_size"` // memory driver only
}

// IngestionConfig holds the asynchronous write pipeline settings.
type IngestionConfig struct {
	Workers         int `yaml:"workers"`
	ChunkSize       int `yaml:"chunk_size"`    // characters
	ChunkOverlap    int `yaml:"chunk_overlap"` // characters
	BatchSize       int `yaml:"batch_size"`
	MaxAttempts     int `yaml:"max_attempts"`
	BackoffBaseMS   int `yaml:"backoff_base_ms"`
	JobRetentionSec int `yaml:"job_retention_sec"`
	WaitPollSec     int `yaml:"wait_poll_sec"` // upper bound for wait=true polling
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	Collections []string `yaml:"collections"` // indexes are ensured at startup
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Embedding.MaxInputChars <= 0 {
		c.Embedding.MaxInputChars = 8192
	}
	if c.Retrieval.RRFK <= 0 {
		c.Retrieval.RRFK = 60
	}
	if len(c.Retrieval.Weights) == 0 {
		c.Retrieval.Weights = map[string]float64{"dense": 1.0, "lexical": 1.0, "neural": 1.0}
	}
	if c.Retrieval.PortTimeoutSec <= 0 {
		c.Retrieval.PortTimeoutSec = 5
	}
	if c.Retrieval.DefaultTopK <= 0 {
		c.Retrieval.DefaultTopK = 10
	}
	if c.Retrieval.MaxTopK <= 0 {
		c.Retrieval.MaxTopK = 100
	}
	if c.Rerank.TimeoutSec <= 0 {
		c.Rerank.TimeoutSec = 5
	}
	if c.Rerank.TopN <= 0 {
		c.Rerank.TopN = 50
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = "redis"
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 300
	}
	if c.Cache.LocalSize <= 0 {
		c.Cache.LocalSize = 4096
	}
	if c.Ingestion.Workers <= 0 {
		c.Ingestion.Workers = 4
	}
	if c.Ingestion.ChunkSize <= 0 {
		c.Ingestion.ChunkSize = c.Embedding.MaxInputChars
	}
	if c.Ingestion.ChunkOverlap < 0 {
		c.Ingestion.ChunkOverlap = 0
	}
	if c.Ingestion.ChunkOverlap == 0 {
		c.Ingestion.ChunkOverlap = c.Ingestion.ChunkSize / 10
	}
	if c.Ingestion.BatchSize <= 0 {
		c.Ingestion.BatchSize = 64
	}
	if c.Ingestion.MaxAttempts <= 0 {
		c.Ingestion.MaxAttempts = 3
	}
	if c.Ingestion.BackoffBaseMS <= 0 {
		c.Ingestion.BackoffBaseMS = 200
	}
	if c.Ingestion.JobRetentionSec <= 0 {
		c.Ingestion.JobRetentionSec = 24 * 3600
	}
	if c.Ingestion.WaitPollSec <= 0 {
		c.Ingestion.WaitPollSec = 10
	}
	if len(c.Storage.Collections) == 0 {
		c.Storage.Collections = []string{"default"}
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	for source, w := range c.Retrieval.Weights {
		if w < 0 {
			return fmt.Errorf("retrieval.weights.%s must be non-negative, got %f", source, w)
		}
	}
	switch c.Cache.Driver {
	case "redis", "memory":
	default:
		return fmt.Errorf("cache.driver must be \"redis\" or \"memory\", got %q", c.Cache.Driver)
	}
	if c.Ingestion.ChunkOverlap >= c.Ingestion.ChunkSize {
		return fmt.Errorf(
			"ingestion.chunk_overlap (%d) must be smaller than chunk_size (%d)",
			c.Ingestion.ChunkOverlap, c.Ingestion.ChunkSize,
		)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
