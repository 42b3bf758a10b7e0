package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Engine    EngineConfig    `yaml:"engine" mapstructure:"engine"`
	Verify    VerifyConfig    `yaml:"verify" mapstructure:"verify"`
	Profiles  ProfilesConfig  `yaml:"profiles" mapstructure:"profiles"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// CacheConfig configures the transcription cache backend.
type CacheConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	TTLHours    int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// AnthropicConfig holds Anthropic API settings and the tier → model mapping.
type AnthropicConfig struct {
	Key            string  `yaml:"key" mapstructure:"key"`
	FastModel      string  `yaml:"fast_model" mapstructure:"fast_model"`
	AccurateModel  string  `yaml:"accurate_model" mapstructure:"accurate_model"`
	MaxTokens      int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// EngineConfig configures escalation and streaming behavior.
type EngineConfig struct {
	EscalationThreshold   float64 `yaml:"escalation_threshold" mapstructure:"escalation_threshold"`
	LargeDocBytes         int64   `yaml:"large_doc_bytes" mapstructure:"large_doc_bytes"`
	SmallDocBytes         int64   `yaml:"small_doc_bytes" mapstructure:"small_doc_bytes"`
	ChunkSize             int     `yaml:"chunk_size" mapstructure:"chunk_size"`
	PreprocessConcurrency int     `yaml:"preprocess_concurrency" mapstructure:"preprocess_concurrency"`
	RetryAttempts         int     `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// VerifyConfig configures the secondary-model verification pass.
type VerifyConfig struct {
	Enabled         bool    `yaml:"enabled" mapstructure:"enabled"`
	SampleChars     int     `yaml:"sample_chars" mapstructure:"sample_chars"`
	HeuristicWeight float64 `yaml:"heuristic_weight" mapstructure:"heuristic_weight"`
}

// ProfileConfig overrides one profile's policy knobs.
type ProfileConfig struct {
	MaxImageDim       int     `yaml:"max_image_dim" mapstructure:"max_image_dim"`
	SpanSize          int     `yaml:"span_size" mapstructure:"span_size"`
	MinQualityScore   float64 `yaml:"min_quality_score" mapstructure:"min_quality_score"`
	CarryContextChars int     `yaml:"carry_context_chars" mapstructure:"carry_context_chars"`
}

// ProfilesConfig holds per-profile policy overrides.
type ProfilesConfig struct {
	Economy  ProfileConfig `yaml:"economy" mapstructure:"economy"`
	Balanced ProfileConfig `yaml:"balanced" mapstructure:"balanced"`
	Accuracy ProfileConfig `yaml:"accuracy" mapstructure:"accuracy"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TRANSCRIBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("cache.driver", "sqlite")
	v.SetDefault("cache.path", "transcribe-cache.db")
	v.SetDefault("cache.ttl_hours", 336)
	v.SetDefault("anthropic.fast_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.accurate_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("anthropic.requests_per_sec", 2.0)
	v.SetDefault("engine.escalation_threshold", 0.55)
	v.SetDefault("engine.large_doc_bytes", 10*1024*1024)
	v.SetDefault("engine.small_doc_bytes", 2*1024*1024)
	v.SetDefault("engine.chunk_size", 512)
	v.SetDefault("engine.preprocess_concurrency", 3)
	v.SetDefault("engine.retry_attempts", 2)
	v.SetDefault("verify.enabled", true)
	v.SetDefault("verify.sample_chars", 4000)
	v.SetDefault("verify.heuristic_weight", 0.78)
	v.SetDefault("profiles.economy.max_image_dim", 1280)
	v.SetDefault("profiles.economy.span_size", 1)
	v.SetDefault("profiles.economy.min_quality_score", 0.62)
	v.SetDefault("profiles.economy.carry_context_chars", 280)
	v.SetDefault("profiles.balanced.max_image_dim", 1600)
	v.SetDefault("profiles.balanced.span_size", 1)
	v.SetDefault("profiles.balanced.min_quality_score", 0.72)
	v.SetDefault("profiles.balanced.carry_context_chars", 360)
	v.SetDefault("profiles.accuracy.max_image_dim", 2048)
	v.SetDefault("profiles.accuracy.span_size", 1)
	v.SetDefault("profiles.accuracy.min_quality_score", 0.80)
	v.SetDefault("profiles.accuracy.carry_context_chars", 480)

	// Read config file (optional)
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
