// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// IsProduction reports whether production behaviour (release-mode router,
// JSON logs) is selected.
func (a AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

type ServerConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
	MaxBodyBytes    int64  `mapstructure:"max_body_bytes"`
}

// Address returns the host:port pair the HTTP server binds to.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GeminiConfig holds settings for the LLM service.
type GeminiConfig struct {
	APIKey          string  `mapstructure:"api_key"`
	BaseURL         string  `mapstructure:"base_url"`
	Model           string  `mapstructure:"model"`
	Temperature     float64 `mapstructure:"temperature"`
	TopP            float64 `mapstructure:"top_p"`
	MaxOutputTokens int     `mapstructure:"max_output_tokens"`
}

// Configured reports whether an API credential is available.
func (g GeminiConfig) Configured() bool {
	return g.APIKey != ""
}

// AnalysisConfig holds the limits and resilience settings of the analyze endpoint.
type AnalysisConfig struct {
	MaxTranscriptChars   int    `mapstructure:"max_transcript_chars"`
	TruncateChars        int    `mapstructure:"truncate_chars"`
	RetryTruncateChars   int    `mapstructure:"retry_truncate_chars"`
	ChunkChars           int    `mapstructure:"chunk_chars"`
	MaxAttempts          int    `mapstructure:"max_attempts"`
	AttemptTimeout       int    `mapstructure:"attempt_timeout"` // milliseconds
	BackoffFactor        int    `mapstructure:"backoff_factor"`  // milliseconds
	DefaultMerchantLabel string `mapstructure:"default_merchant_label"`
}

// CacheConfig configures the optional Redis result cache. An empty address disables it.
type CacheConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TTL      int    `mapstructure:"ttl"` // milliseconds
}

// Enabled reports whether a Redis address was configured.
func (c CacheConfig) Enabled() bool {
	return c.Address != ""
}

// TracingConfig configures span export. An empty endpoint keeps tracing in no-op mode.
type TracingConfig struct {
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
