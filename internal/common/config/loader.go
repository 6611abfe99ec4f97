// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml (optional), the environment overlay
// configs/config.<env>.yaml (optional) and environment variables.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // overlay is optional

	return finish(v, env)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v, os.Getenv("APP_ENVIRONMENT"))
}

func finish(v *viper.Viper, env string) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = env
	}

	overrideFromEnv(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			// Existing environment wins over the file.
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideFromEnv applies the well-known deployment variables on top of
// whatever the files provided.
func overrideFromEnv(cfg *Config) {
	if val := os.Getenv("GEMINI_API_KEY"); val != "" {
		cfg.Gemini.APIKey = val
	}
	if val := os.Getenv("PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Server.Port = port
		}
	}
	if val := os.Getenv("APP_ENVIRONMENT"); val != "" {
		cfg.App.Environment = val
	}
	if val := os.Getenv("REDIS_ADDRESS"); val != "" {
		cfg.Cache.Address = val
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Cache.Password = val
	}
	if val := os.Getenv("JAEGER_ENDPOINT"); val != "" {
		cfg.Tracing.JaegerEndpoint = val
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "funnel-coach"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5001
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30000
	}
	if cfg.Server.WriteTimeout == 0 {
		// two 5 minute attempts plus backoff
		cfg.Server.WriteTimeout = 660000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 5 * 1024 * 1024
	}

	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = "gemini-2.5-flash-preview-05-20"
	}
	if cfg.Gemini.TopP == 0 {
		cfg.Gemini.TopP = 0.1
	}
	if cfg.Gemini.MaxOutputTokens == 0 {
		cfg.Gemini.MaxOutputTokens = 5000
	}

	if cfg.Analysis.MaxTranscriptChars == 0 {
		cfg.Analysis.MaxTranscriptChars = 100000
	}
	if cfg.Analysis.TruncateChars == 0 {
		cfg.Analysis.TruncateChars = 30000
	}
	if cfg.Analysis.RetryTruncateChars == 0 {
		cfg.Analysis.RetryTruncateChars = 15000
	}
	if cfg.Analysis.ChunkChars == 0 {
		cfg.Analysis.ChunkChars = 25000
	}
	if cfg.Analysis.MaxAttempts == 0 {
		cfg.Analysis.MaxAttempts = 2
	}
	if cfg.Analysis.AttemptTimeout == 0 {
		cfg.Analysis.AttemptTimeout = 300000
	}
	if cfg.Analysis.BackoffFactor == 0 {
		cfg.Analysis.BackoffFactor = 1000
	}
	if cfg.Analysis.DefaultMerchantLabel == "" {
		cfg.Analysis.DefaultMerchantLabel = "Customer"
	}

	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 3600000
	}
	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = 1.0
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		if cfg.App.IsProduction() {
			cfg.Logging.Format = "json"
		} else {
			cfg.Logging.Format = "console"
		}
	}
}

// validateConfig validates critical configuration fields. A missing Gemini key
// is not an error: the server starts and reports the service as not configured.
func validateConfig(cfg *Config) error {
	switch cfg.App.Environment {
	case "development", "production":
	default:
		return fmt.Errorf("app.environment must be development or production, got %q", cfg.App.Environment)
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", cfg.Server.Port)
	}
	if cfg.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}

	a := cfg.Analysis
	if a.MaxTranscriptChars < 0 || a.TruncateChars < 0 || a.RetryTruncateChars < 0 || a.ChunkChars < 0 {
		return fmt.Errorf("analysis size limits must be positive")
	}
	if a.TruncateChars > a.MaxTranscriptChars {
		return fmt.Errorf("analysis.truncate_chars (%d) exceeds analysis.max_transcript_chars (%d)", a.TruncateChars, a.MaxTranscriptChars)
	}
	if a.RetryTruncateChars > a.TruncateChars {
		return fmt.Errorf("analysis.retry_truncate_chars (%d) exceeds analysis.truncate_chars (%d)", a.RetryTruncateChars, a.TruncateChars)
	}
	if a.MaxAttempts < 1 {
		return fmt.Errorf("analysis.max_attempts must be at least 1")
	}
	if a.AttemptTimeout < 0 || a.BackoffFactor < 0 {
		return fmt.Errorf("analysis timings must be positive")
	}

	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be within [0,1]")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
