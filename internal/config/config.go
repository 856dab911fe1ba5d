package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/docindex/internal/domain"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	DefaultProvider     = "gemini"
	DefaultModel        = "text-embedding-004"
	DefaultBaseURL      = "https://generativelanguage.googleapis.com/v1beta/openai/"
	DefaultPDFToText    = "pdftotext"
)

// Config holds the docindex configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Index     IndexConfig     `yaml:"index"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Cache     CacheConfig     `yaml:"cache"`
	Parsing   ParsingConfig   `yaml:"parsing"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeoutSec  int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec int      `yaml:"write_timeout_sec"`
	ShutdownSec     int      `yaml:"shutdown_timeout_sec"`
	MaxUploadMB     int      `yaml:"max_upload_mb"`
	APIKeys         []string `yaml:"api_keys"` // empty = auth disabled
}

// IndexConfig holds the persistent index location.
type IndexConfig struct {
	Path string `yaml:"path"`
}

// ChunkingConfig holds splitter settings, in characters.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider"`
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	Model             string  `yaml:"model"`
	Dimensions        int     `yaml:"dimensions"`          // 0 = learn from first response
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unlimited
	Burst             int     `yaml:"burst"`
	MaxRetries        int     `yaml:"max_retries"`
	BatchSize         int     `yaml:"batch_size"`
	TimeoutSec        int     `yaml:"timeout_sec"`
}

// CacheConfig holds the optional Redis/Valkey embedding cache settings.
type CacheConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	TTLHours         int      `yaml:"ttl_hours"` // 0 = no expiry
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// ParsingConfig holds document parser settings.
type ParsingConfig struct {
	PDFToTextPath string `yaml:"pdftotext_path"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit YAML file.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", configPath, err)
	}
	return cfg, nil
}

// Parse expands env variables in data, decodes it and applies defaults and validation.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w: %w", domain.ErrConfiguration, err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadDotEnv loads variables from .env files into the process environment.
// Missing files are skipped; variables already set are not overridden.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
// Chunk overlap defaults only together with chunk size, so an explicit zero overlap is kept.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxUploadMB <= 0 {
		c.HTTP.MaxUploadMB = 32
	}
	if c.Chunking.ChunkSize <= 0 && c.Chunking.ChunkOverlap == 0 {
		c.Chunking.ChunkSize = DefaultChunkSize
		c.Chunking.ChunkOverlap = DefaultChunkOverlap
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = DefaultProvider
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = DefaultModel
	}
	if c.Embedding.BaseURL == "" {
		c.Embedding.BaseURL = DefaultBaseURL
	}
	if c.Embedding.Burst <= 0 {
		c.Embedding.Burst = 1
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 100
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 30
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 5
	}
	if c.Parsing.PDFToTextPath == "" {
		c.Parsing.PDFToTextPath = DefaultPDFToText
	}
}

// Validate checks the configuration for correctness. Errors wrap domain.ErrConfiguration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Index.Path) == "" {
		return invalid("index.path is required")
	}
	if c.Chunking.ChunkSize <= 0 {
		return invalid("chunking.chunk_size must be positive, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return invalid("chunking.chunk_overlap must be in [0, %d), got %d",
			c.Chunking.ChunkSize, c.Chunking.ChunkOverlap)
	}
	if c.Embedding.Dimensions < 0 {
		return invalid("embedding.dimensions must be non-negative, got %d", c.Embedding.Dimensions)
	}
	if c.Embedding.RequestsPerSecond < 0 {
		return invalid("embedding.requests_per_second must be non-negative, got %g",
			c.Embedding.RequestsPerSecond)
	}
	if c.Embedding.MaxRetries < 0 {
		return invalid("embedding.max_retries must be non-negative, got %d", c.Embedding.MaxRetries)
	}
	if c.Cache.Enabled && len(c.Cache.Addrs) == 0 {
		return invalid("cache.addrs is required when cache is enabled")
	}
	if c.Cache.TTLHours < 0 {
		return invalid("cache.ttl_hours must be non-negative, got %d", c.Cache.TTLHours)
	}
	return nil
}

// ValidateServe checks settings only the HTTP server needs.
func (c *Config) ValidateServe() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return invalid("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), domain.ErrConfiguration)
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
