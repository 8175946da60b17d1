// Package config loads RustRAG configuration from defaults, YAML files and
// the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	rerrors "github.com/Michaol/RustRAG/internal/errors"
)

// Project configuration file names, in lookup order.
const (
	ProjectConfigName    = ".rustrag.yaml"
	ProjectConfigNameAlt = ".rustrag.yml"
)

// Config is the complete RustRAG configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Index      IndexConfig      `yaml:"index" json:"index"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// PathsConfig selects what gets indexed.
type PathsConfig struct {
	// Documents are directories indexed when no directory is given.
	Documents []string `yaml:"documents" json:"documents"`
	// Exclude holds gitignore-style patterns skipped by the walker.
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// IndexConfig configures storage and chunking.
type IndexConfig struct {
	DBPath    string `yaml:"db_path" json:"db_path"`
	ChunkSize int    `yaml:"chunk_size" json:"chunk_size"`
	// WatchDebounce is the quiet period before a watch-triggered re-sync.
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`
}

// SearchConfig configures query defaults.
type SearchConfig struct {
	TopK int `yaml:"top_k" json:"top_k"`
}

// EmbeddingsConfig selects and configures the embedding backend.
type EmbeddingsConfig struct {
	Provider    string `yaml:"provider" json:"provider"`
	Model       string `yaml:"model" json:"model"`
	Dimensions  int    `yaml:"dimensions" json:"dimensions"`
	BatchSize   int    `yaml:"batch_size" json:"batch_size"`
	Concurrency int    `yaml:"concurrency" json:"concurrency"`
	Timeout     string `yaml:"timeout" json:"timeout"`
	CacheSize   int    `yaml:"cache_size" json:"cache_size"`

	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`

	OpenAIBaseURL string `yaml:"openai_base_url" json:"openai_base_url"`
	// OpenAIAPIKeyEnv names the environment variable holding the API key.
	// The key itself is never stored in configuration files.
	OpenAIAPIKeyEnv string `yaml:"openai_api_key_env" json:"openai_api_key_env"`
}

// LoggingConfig configures the file logger.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	FilePath  string `yaml:"file_path" json:"file_path"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// defaultExcludePatterns are always excluded.
var defaultExcludePatterns = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/target/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/*.min.js",
}

var validProviders = map[string]bool{"mock": true, "static": true, "ollama": true, "openai": true}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Documents: []string{"./"},
			Exclude:   append([]string(nil), defaultExcludePatterns...),
		},
		Index: IndexConfig{
			DBPath:        "./vectors.db",
			ChunkSize:     500,
			WatchDebounce: "500ms",
		},
		Search: SearchConfig{
			TopK: 5,
		},
		Embeddings: EmbeddingsConfig{
			Provider:        "static",
			Model:           "multilingual-e5-small",
			Dimensions:      384,
			BatchSize:       32,
			Concurrency:     4,
			Timeout:         "60s",
			CacheSize:       1000,
			OpenAIAPIKeyEnv: "OPENAI_API_KEY",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// UserConfigPath returns the user configuration file:
// $XDG_CONFIG_HOME/rustrag/config.yaml, else ~/.config/rustrag/config.yaml.
func UserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "rustrag", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "rustrag", "config.yaml")
	}
	return filepath.Join(home, ".config", "rustrag", "config.yaml")
}

// Load builds the configuration for dir. Later sources win:
//  1. Defaults
//  2. User config (UserConfigPath)
//  3. Project config (.rustrag.yaml or .rustrag.yml in dir)
//  4. RUSTRAG_* environment variables
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := UserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	for _, name := range []string{ProjectConfigName, ProjectConfigNameAlt} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			if err := cfg.loadYAML(path); err != nil {
				return nil, err
			}
			break
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return rerrors.New(rerrors.ErrCodeConfigNotFound, fmt.Sprintf("read config %s", path), err)
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return rerrors.ConfigError(fmt.Sprintf("parse config %s", path), err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith copies non-zero values from other into c. Exclude patterns are
// appended to the defaults rather than replacing them.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if len(other.Paths.Documents) > 0 {
		c.Paths.Documents = other.Paths.Documents
	}
	if len(other.Paths.Exclude) > 0 {
		c.Paths.Exclude = append(c.Paths.Exclude, other.Paths.Exclude...)
	}

	if other.Index.DBPath != "" {
		c.Index.DBPath = other.Index.DBPath
	}
	if other.Index.ChunkSize != 0 {
		c.Index.ChunkSize = other.Index.ChunkSize
	}
	if other.Index.WatchDebounce != "" {
		c.Index.WatchDebounce = other.Index.WatchDebounce
	}

	if other.Search.TopK != 0 {
		c.Search.TopK = other.Search.TopK
	}

	e, o := &c.Embeddings, other.Embeddings
	if o.Provider != "" {
		e.Provider = o.Provider
	}
	if o.Model != "" {
		e.Model = o.Model
	}
	if o.Dimensions != 0 {
		e.Dimensions = o.Dimensions
	}
	if o.BatchSize != 0 {
		e.BatchSize = o.BatchSize
	}
	if o.Concurrency != 0 {
		e.Concurrency = o.Concurrency
	}
	if o.Timeout != "" {
		e.Timeout = o.Timeout
	}
	if o.CacheSize != 0 {
		e.CacheSize = o.CacheSize
	}
	if o.OllamaHost != "" {
		e.OllamaHost = o.OllamaHost
	}
	if o.OpenAIBaseURL != "" {
		e.OpenAIBaseURL = o.OpenAIBaseURL
	}
	if o.OpenAIAPIKeyEnv != "" {
		e.OpenAIAPIKeyEnv = o.OpenAIAPIKeyEnv
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.FilePath != "" {
		c.Logging.FilePath = other.Logging.FilePath
	}
	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxFiles != 0 {
		c.Logging.MaxFiles = other.Logging.MaxFiles
	}
}

// applyEnvOverrides applies RUSTRAG_* variables. Unparseable numbers are
// ignored so Validate reports the effective value.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RUSTRAG_DB_PATH"); v != "" {
		c.Index.DBPath = v
	}
	if v := os.Getenv("RUSTRAG_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Index.ChunkSize = n
		}
	}
	if v := os.Getenv("RUSTRAG_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.TopK = n
		}
	}
	if v := os.Getenv("RUSTRAG_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("RUSTRAG_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("RUSTRAG_EMBEDDINGS_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Embeddings.Dimensions = n
		}
	}
	if v := os.Getenv("RUSTRAG_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("RUSTRAG_OPENAI_BASE_URL"); v != "" {
		c.Embeddings.OpenAIBaseURL = v
	}
	if v := os.Getenv("RUSTRAG_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate reports the first invalid setting as a config error.
func (c *Config) Validate() error {
	switch {
	case c.Index.ChunkSize <= 0:
		return rerrors.ConfigError(fmt.Sprintf("index.chunk_size must be positive, got %d", c.Index.ChunkSize), nil)
	case c.Index.DBPath == "":
		return rerrors.ConfigError("index.db_path must not be empty", nil)
	case c.Search.TopK <= 0:
		return rerrors.ConfigError(fmt.Sprintf("search.top_k must be positive, got %d", c.Search.TopK), nil)
	case c.Embeddings.Dimensions <= 0:
		return rerrors.ConfigError(fmt.Sprintf("embeddings.dimensions must be positive, got %d", c.Embeddings.Dimensions), nil)
	case c.Embeddings.BatchSize < 0:
		return rerrors.ConfigError(fmt.Sprintf("embeddings.batch_size must be non-negative, got %d", c.Embeddings.BatchSize), nil)
	case !validProviders[strings.ToLower(c.Embeddings.Provider)]:
		return rerrors.ConfigError(fmt.Sprintf("embeddings.provider must be mock, static, ollama or openai, got %q", c.Embeddings.Provider), nil)
	case !validLevels[strings.ToLower(c.Logging.Level)]:
		return rerrors.ConfigError(fmt.Sprintf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level), nil)
	}

	if _, err := c.WatchDebounce(); err != nil {
		return err
	}
	if _, err := c.EmbeddingTimeout(); err != nil {
		return err
	}
	return nil
}

// WatchDebounce parses Index.WatchDebounce.
func (c *Config) WatchDebounce() (time.Duration, error) {
	return parseDuration("index.watch_debounce", c.Index.WatchDebounce)
}

// EmbeddingTimeout parses Embeddings.Timeout.
func (c *Config) EmbeddingTimeout() (time.Duration, error) {
	return parseDuration("embeddings.timeout", c.Embeddings.Timeout)
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, rerrors.ConfigError(fmt.Sprintf("%s must be a non-negative duration, got %q", field, s), err)
	}
	return d, nil
}

// OpenAIAPIKey reads the API key from the configured environment variable.
func (c *Config) OpenAIAPIKey() string {
	if c.Embeddings.OpenAIAPIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Embeddings.OpenAIAPIKeyEnv)
}

// ResolveDBPath returns the database path, joined to root when relative.
func (c *Config) ResolveDBPath(root string) string {
	if filepath.IsAbs(c.Index.DBPath) || c.Index.DBPath == ":memory:" {
		return c.Index.DBPath
	}
	return filepath.Join(root, c.Index.DBPath)
}

// FindProjectRoot walks up from startDir to the first directory holding a
// .git directory or a project config file. It returns the absolute
// startDir when none is found.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", rerrors.IOError("resolve project root", err)
	}

	for dir := absDir; ; {
		if dirExists(filepath.Join(dir, ".git")) ||
			fileExists(filepath.Join(dir, ProjectConfigName)) ||
			fileExists(filepath.Join(dir, ProjectConfigNameAlt)) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return absDir, nil
		}
		dir = parent
	}
}

// WriteYAML writes the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return rerrors.InternalError("marshal config", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return rerrors.IOError(fmt.Sprintf("write config %s", path), err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
