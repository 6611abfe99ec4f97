// internal/workers/coaching/analyze-transcript/config.go
package analyzetranscript

import (
	"time"

	"funnel-coach/internal/common/config"
	"funnel-coach/internal/common/validation"
)

type Config struct {
	MaxBodyBytes       int64
	MaxTranscriptChars int
	TruncateChars      int
	RetryTruncateChars int
	ChunkChars         int
	MaxAttempts        int
	AttemptTimeout     time.Duration
	BackoffFactor      time.Duration
	DefaultMerchant    string
}

// LoadConfig derives the handler settings from the application config.
func LoadConfig(cfg *config.Config) *Config {
	a := cfg.Analysis
	return &Config{
		MaxBodyBytes:       cfg.Server.MaxBodyBytes,
		MaxTranscriptChars: a.MaxTranscriptChars,
		TruncateChars:      a.TruncateChars,
		RetryTruncateChars: a.RetryTruncateChars,
		ChunkChars:         a.ChunkChars,
		MaxAttempts:        a.MaxAttempts,
		AttemptTimeout:     config.GetDuration(a.AttemptTimeout),
		BackoffFactor:      config.GetDuration(a.BackoffFactor),
		DefaultMerchant:    a.DefaultMerchantLabel,
	}
}

func (c *Config) limits() validation.Limits {
	return validation.Limits{
		MaxBodyBytes:       c.MaxBodyBytes,
		MaxTranscriptChars: c.MaxTranscriptChars,
		DefaultMerchant:    c.DefaultMerchant,
	}
}
