// Package config loads application configuration from file and environment
// and owns global logger initialization.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Firecrawl  FirecrawlConfig  `yaml:"firecrawl" mapstructure:"firecrawl"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Google     GoogleConfig     `yaml:"google" mapstructure:"google"`
	Collect    CollectConfig    `yaml:"collect" mapstructure:"collect"`
	Extract    ExtractConfig    `yaml:"extract" mapstructure:"extract"`
	Reconcile  ReconcileConfig  `yaml:"reconcile" mapstructure:"reconcile"`
	Competitor CompetitorConfig `yaml:"competitor" mapstructure:"competitor"`
	Run        RunConfig        `yaml:"run" mapstructure:"run"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// JinaConfig holds Jina search/reader settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// FirecrawlConfig holds Firecrawl settings (fetch fallback only).
type FirecrawlConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// GoogleConfig holds Google Places API settings.
type GoogleConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// CollectConfig bounds the evidence collector.
type CollectConfig struct {
	MaxResults     int     `yaml:"max_results" mapstructure:"max_results"`
	FollowTop      int     `yaml:"follow_top" mapstructure:"follow_top"`
	MaxConcurrent  int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	RatePerSecond  float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	MaxRetries     int     `yaml:"max_retries" mapstructure:"max_retries"`
	BackoffBaseMS  int     `yaml:"backoff_base_ms" mapstructure:"backoff_base_ms"`
	BackoffCapMS   int     `yaml:"backoff_cap_ms" mapstructure:"backoff_cap_ms"`
	BackoffFactor  float64 `yaml:"backoff_factor" mapstructure:"backoff_factor"`
	MaxEvidenceLen int     `yaml:"max_evidence_len" mapstructure:"max_evidence_len"`
}

// ExtractConfig configures LLM extraction.
type ExtractConfig struct {
	PromptBudget int `yaml:"prompt_budget" mapstructure:"prompt_budget"`
}

// ReconcileConfig configures field reconciliation thresholds.
type ReconcileConfig struct {
	AcceptThreshold float64 `yaml:"accept_threshold" mapstructure:"accept_threshold"`
	AgreementFloor  float64 `yaml:"agreement_floor" mapstructure:"agreement_floor"`
}

// CompetitorConfig bounds the competitor evaluator fan-out.
type CompetitorConfig struct {
	MaxProductTerms int `yaml:"max_product_terms" mapstructure:"max_product_terms"`
	MaxVerify       int `yaml:"max_verify" mapstructure:"max_verify"`
}

// RunConfig configures orchestrator-level behavior.
type RunConfig struct {
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Timeout returns the global run deadline.
func (r RunConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSecs) * time.Second
}

// StoreConfig configures the run store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ENRICH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "enrich.db")
	v.SetDefault("batch.max_concurrent", 5)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v2")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("google.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("collect.max_results", 5)
	v.SetDefault("collect.follow_top", 2)
	v.SetDefault("collect.max_concurrent", 8)
	v.SetDefault("collect.rate_per_second", 4.0)
	v.SetDefault("collect.max_retries", 3)
	v.SetDefault("collect.backoff_base_ms", 1000)
	v.SetDefault("collect.backoff_cap_ms", 10000)
	v.SetDefault("collect.backoff_factor", 2.0)
	v.SetDefault("collect.max_evidence_len", 20000)
	v.SetDefault("extract.prompt_budget", 4000)
	v.SetDefault("reconcile.accept_threshold", 0.3)
	v.SetDefault("reconcile.agreement_floor", 0.9)
	v.SetDefault("competitor.max_product_terms", 5)
	v.SetDefault("competitor.max_verify", 8)
	v.SetDefault("run.timeout_secs", 300)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
