package refine

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config holds refiner configuration
type Config struct {
	Provider   string // llm, local or script; empty picks llm when an API key is set
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	ScriptPath string
	CacheSize  int // 0 disables the response cache
	Retry      RetryConfig
}

// DetectProvider returns the provider New would use for cfg
func DetectProvider(cfg Config) string {
	if cfg.Provider != "" {
		return strings.ToLower(cfg.Provider)
	}
	if cfg.APIKey != "" {
		return ProviderLLM
	}
	return ProviderLocal
}

// New creates the configured refiner wrapped with caching and retry
func New(cfg Config, logger *zap.Logger) (Refiner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var base Refiner
	switch provider := DetectProvider(cfg); provider {
	case ProviderLLM:
		llm, err := NewLLMRefiner(LLMConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		base = llm
	case ProviderLocal:
		base = NewLocalRefiner()
	case ProviderScript:
		script, err := LoadScript(cfg.ScriptPath)
		if err != nil {
			return nil, err
		}
		base = NewScriptedRefiner(script)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	r := base
	if cfg.CacheSize > 0 {
		r = WithCache(r, NewCache(cfg.CacheSize))
	}
	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryConfig()
	}
	r = WithRetry(r, retry, logger)

	logger.Info("refiner ready",
		zap.String("provider", r.Provider()),
		zap.Int("cache_size", cfg.CacheSize),
		zap.Int("max_attempts", retry.MaxAttempts))
	return r, nil
}
