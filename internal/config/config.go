// Package config loads DevStream settings from defaults, an optional
// config file and DEVSTREAM_* environment variables, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/fulvian/devstream/internal/assembler"
	"github.com/fulvian/devstream/internal/embedder"
	"github.com/fulvian/devstream/internal/retry"
	"github.com/fulvian/devstream/internal/searcher"
	"github.com/fulvian/devstream/pkg/types"
)

const (
	// DefaultConfigDir is the per-user configuration directory
	DefaultConfigDir = ".devstream"
	// DefaultConfigName is the config file name without extension
	DefaultConfigName = "config"
	// EnvPrefix prefixes every environment override
	EnvPrefix = "DEVSTREAM"
)

// Config is the complete runtime configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Search    SearchConfig    `mapstructure:"search"`
	Context   ContextConfig   `mapstructure:"context"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
}

// DatabaseConfig locates the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// EmbeddingConfig selects and tunes the embedding provider
type EmbeddingConfig struct {
	Provider  string        `mapstructure:"provider"`
	Model     string        `mapstructure:"model"`
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url"`
	Dimension int           `mapstructure:"dimension"`
	CacheSize int           `mapstructure:"cache_size"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// SearchConfig holds hybrid search defaults
type SearchConfig struct {
	SemanticWeight      float64 `mapstructure:"semantic_weight"`
	KeywordWeight       float64 `mapstructure:"keyword_weight"`
	FullTextWeight      float64 `mapstructure:"full_text_weight"`
	MaxResults          int     `mapstructure:"max_results"`
	MinRelevance        float64 `mapstructure:"min_relevance"`
	CandidateMultiplier int     `mapstructure:"candidate_multiplier"`
	TrackAccess         bool    `mapstructure:"track_access"`
}

// ContextConfig holds context assembly defaults
type ContextConfig struct {
	TokenBudget          int     `mapstructure:"token_budget"`
	Strategy             string  `mapstructure:"strategy"`
	MixedRelevanceWeight float64 `mapstructure:"mixed_relevance_weight"`
	MixedRecencyWeight   float64 `mapstructure:"mixed_recency_weight"`
	CharsPerToken        int     `mapstructure:"chars_per_token"`
	MetadataOverhead     int     `mapstructure:"metadata_overhead"`
}

// RetryConfig is the backoff policy for storage and embedding calls
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
	Multiplier  float64       `mapstructure:"multiplier"`
}

// LogConfig configures the process logger
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// HTTPConfig configures the HTTP API server
type HTTPConfig struct {
	Addr   string `mapstructure:"addr"`
	APIKey string `mapstructure:"api_key"`
}

// Load reads configuration. An explicit path must exist; without one the
// loader looks for config.{yaml,json,toml} in the working directory and
// in ~/.devstream, and falls back to defaults when none is found.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName(DefaultConfigName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, DefaultConfigDir))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	v.SetDefault("database.path", filepath.Join(home, DefaultConfigDir, "memory.db"))

	v.SetDefault("embedding.provider", "")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.dimension", 0)
	v.SetDefault("embedding.cache_size", embedder.DefaultCacheSize)
	v.SetDefault("embedding.timeout", embedder.DefaultTimeout)

	v.SetDefault("search.semantic_weight", types.DefaultSemanticWeight)
	v.SetDefault("search.keyword_weight", types.DefaultKeywordWeight)
	v.SetDefault("search.full_text_weight", types.DefaultFullTextWeight)
	v.SetDefault("search.max_results", types.DefaultMaxResults)
	v.SetDefault("search.min_relevance", 0.0)
	v.SetDefault("search.candidate_multiplier", searcher.DefaultCandidateMultiplier)
	v.SetDefault("search.track_access", true)

	v.SetDefault("context.token_budget", 2000)
	v.SetDefault("context.strategy", string(types.PrioritizeMixed))
	v.SetDefault("context.mixed_relevance_weight", assembler.DefaultMixedRelevanceWeight)
	v.SetDefault("context.mixed_recency_weight", assembler.DefaultMixedRecencyWeight)
	v.SetDefault("context.chars_per_token", assembler.CharsPerToken)
	v.SetDefault("context.metadata_overhead", assembler.MetadataOverheadTokens)

	v.SetDefault("retry.max_attempts", retry.DefaultMaxAttempts)
	v.SetDefault("retry.base_delay", retry.DefaultBaseDelay)
	v.SetDefault("retry.max_delay", retry.DefaultMaxDelay)
	v.SetDefault("retry.multiplier", retry.DefaultMultiplier)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("http.addr", "127.0.0.1:8765")
	v.SetDefault("http.api_key", "")
}

// Validate checks value ranges across all sections
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}

	switch strings.ToLower(c.Embedding.Provider) {
	case "", embedder.ProviderJina, embedder.ProviderOpenAI, embedder.ProviderOllama, embedder.ProviderLocal:
	default:
		return fmt.Errorf("embedding.provider must be one of jina, openai, ollama, local; got %q", c.Embedding.Provider)
	}
	if c.Embedding.CacheSize < 1 {
		return fmt.Errorf("embedding.cache_size must be at least 1, got %d", c.Embedding.CacheSize)
	}

	query := c.DefaultQuery("validate")
	if err := query.Validate(); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if c.Search.CandidateMultiplier < 1 {
		return fmt.Errorf("search.candidate_multiplier must be at least 1, got %d", c.Search.CandidateMultiplier)
	}

	if c.Context.TokenBudget < 0 {
		return fmt.Errorf("context.token_budget: %w", types.ErrInvalidTokenBudget)
	}
	if _, err := types.ParsePrioritizationStrategy(c.Context.Strategy); err != nil {
		return fmt.Errorf("context.strategy: %w", err)
	}
	if c.Context.MixedRelevanceWeight < 0 || c.Context.MixedRecencyWeight < 0 {
		return errors.New("context mixed weights must be non-negative")
	}
	if c.Context.CharsPerToken < 1 {
		return fmt.Errorf("context.chars_per_token must be at least 1, got %d", c.Context.CharsPerToken)
	}
	if c.Context.MetadataOverhead < 0 {
		return fmt.Errorf("context.metadata_overhead must be non-negative, got %d", c.Context.MetadataOverhead)
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be at least 1, got %.2f", c.Retry.Multiplier)
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// RetryPolicy converts the retry section
func (c *Config) RetryPolicy() retry.Config {
	return retry.Config{
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   c.Retry.BaseDelay,
		MaxDelay:    c.Retry.MaxDelay,
		Multiplier:  c.Retry.Multiplier,
	}
}

// EmbedderConfig converts the embedding section
func (c *Config) EmbedderConfig() embedder.Config {
	return embedder.Config{
		Provider:  c.Embedding.Provider,
		APIKey:    c.Embedding.APIKey,
		BaseURL:   c.Embedding.BaseURL,
		Model:     c.Embedding.Model,
		Dimension: c.Embedding.Dimension,
		Timeout:   c.Embedding.Timeout,
		Retry:     c.RetryPolicy(),
	}
}

// SearcherOptions converts the search section
func (c *Config) SearcherOptions(logger *zerolog.Logger) searcher.Options {
	return searcher.Options{
		CacheSize:           c.Embedding.CacheSize,
		CandidateMultiplier: c.Search.CandidateMultiplier,
		Retry:               c.RetryPolicy(),
		TrackAccess:         c.Search.TrackAccess,
		Logger:              logger,
	}
}

// AssemblerOptions converts the context section
func (c *Config) AssemblerOptions(logger *zerolog.Logger) assembler.Options {
	return assembler.Options{
		Estimator:            assembler.NewEstimator(c.Context.CharsPerToken, c.Context.MetadataOverhead),
		MixedRelevanceWeight: c.Context.MixedRelevanceWeight,
		MixedRecencyWeight:   c.Context.MixedRecencyWeight,
		BaseQuery:            c.DefaultQuery(""),
		Logger:               logger,
	}
}

// DefaultQuery builds a query for text with the configured search defaults
func (c *Config) DefaultQuery(text string) types.SearchQuery {
	return types.SearchQuery{
		Text:              text,
		MaxResults:        c.Search.MaxResults,
		SemanticWeight:    c.Search.SemanticWeight,
		KeywordWeight:     c.Search.KeywordWeight,
		FullTextWeight:    c.Search.FullTextWeight,
		MinRelevanceScore: c.Search.MinRelevance,
	}
}

// DefaultStrategy returns the configured prioritization strategy
func (c *Config) DefaultStrategy() types.PrioritizationStrategy {
	return types.PrioritizationStrategy(c.Context.Strategy)
}
