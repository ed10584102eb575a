package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/philhumber/wineApp-sub000/internal/cost"
	"github.com/philhumber/wineApp-sub000/internal/llm"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Identify   IdentifyConfig   `yaml:"identify" mapstructure:"identify"`
	Enrich     EnrichConfig     `yaml:"enrich" mapstructure:"enrich"`
	Resilience ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
	Pricing    cost.Rates       `yaml:"pricing" mapstructure:"pricing"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the cache backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	HaikuModel  string `yaml:"haiku_model" mapstructure:"haiku_model"`
	SonnetModel string `yaml:"sonnet_model" mapstructure:"sonnet_model"`
	OpusModel   string `yaml:"opus_model" mapstructure:"opus_model"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// IdentifyConfig configures the identification pipeline.
type IdentifyConfig struct {
	EscalationThreshold float64 `yaml:"escalation_threshold" mapstructure:"escalation_threshold"`
	CallTimeoutSecs     int     `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
}

// EnrichConfig configures the enrichment pipeline.
type EnrichConfig struct {
	AutoAcceptConfidence float64 `yaml:"auto_accept_confidence" mapstructure:"auto_accept_confidence"`
	AliasFile            string  `yaml:"alias_file" mapstructure:"alias_file"`
	CallTimeoutSecs      int     `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
}

// ResilienceConfig configures circuit breaking, retries, and client-side
// rate limiting.
type ResilienceConfig struct {
	FailureThreshold int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	CooldownSecs     int     `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
	RetryMaxAttempts int     `yaml:"retry_max_attempts" mapstructure:"retry_max_attempts"`
	AnthropicRPS     float64 `yaml:"anthropic_rps" mapstructure:"anthropic_rps"`
	PerplexityRPS    float64 `yaml:"perplexity_rps" mapstructure:"perplexity_rps"`
	RateBurst        int     `yaml:"rate_burst" mapstructure:"rate_burst"`
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

// Tiers maps the configured Anthropic models onto the identification tier
// ladder, cheapest first.
func (c *Config) Tiers() llm.TierMap {
	return llm.TierMap{
		1: {Provider: "anthropic", Model: c.Anthropic.HaikuModel},
		2: {Provider: "anthropic", Model: c.Anthropic.SonnetModel},
		3: {Provider: "anthropic", Model: c.Anthropic.OpusModel},
	}
}

// IdentifyCallTimeout returns the per-call deadline for identification.
func (c *Config) IdentifyCallTimeout() time.Duration {
	return time.Duration(c.Identify.CallTimeoutSecs) * time.Second
}

// EnrichCallTimeout returns the per-call deadline for enrichment.
func (c *Config) EnrichCallTimeout() time.Duration {
	return time.Duration(c.Enrich.CallTimeoutSecs) * time.Second
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("WINEAPP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "winecellar.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.sonnet_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.opus_model", "claude-opus-4-6")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("identify.escalation_threshold", 0.6)
	v.SetDefault("identify.call_timeout_secs", 60)
	v.SetDefault("enrich.auto_accept_confidence", 0.9)
	v.SetDefault("enrich.call_timeout_secs", 90)
	v.SetDefault("resilience.failure_threshold", 5)
	v.SetDefault("resilience.cooldown_secs", 30)
	v.SetDefault("resilience.retry_max_attempts", 2)
	v.SetDefault("resilience.anthropic_rps", 5)
	v.SetDefault("resilience.perplexity_rps", 2)
	v.SetDefault("resilience.rate_burst", 5)

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

	if len(cfg.Pricing.Anthropic) == 0 {
		cfg.Pricing = cost.DefaultRates()
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
