// internal/analysis/orchestrator/factory.go
package orchestrator

import (
	"usability-workers/internal/analysis/imagepreprocessor"
	"usability-workers/internal/analysis/modelinvoker"
	"usability-workers/internal/analysis/promptbuilder"
	"usability-workers/internal/common/config"
	"usability-workers/internal/common/database"
	"usability-workers/internal/common/logger"
)

// BuildDependencies selects mocked or real backends from the analysis
// config. cache may be nil; when set, real image compression is cached.
func BuildDependencies(cfg *config.Config, cache *database.RedisClient, log logger.Logger) Dependencies {
	deps := Dependencies{Builder: promptbuilder.NewBasicBuilder()}

	if cfg.Analysis.UseMockedServices {
		log.Info("using mocked analysis backends", nil)
		deps.Preprocessor = imagepreprocessor.NewMockedPreprocessor(log)
		deps.Invoker = modelinvoker.NewMockedInvoker(log)
		return deps
	}

	var pre imagepreprocessor.Preprocessor = imagepreprocessor.NewTinifyPreprocessor(&imagepreprocessor.Config{
		BaseURL:     cfg.APIs.Tinify.BaseURL,
		APIKey:      cfg.APIs.Tinify.APIKey,
		Timeout:     config.GetDuration(cfg.APIs.Tinify.Timeout),
		JPEGQuality: cfg.Analysis.JPEGQuality,
	}, log)
	if cache != nil {
		pre = imagepreprocessor.NewCachedPreprocessor(pre, cache.Client, cache.CacheTTL(), log)
	}
	deps.Preprocessor = pre

	deps.Invoker = modelinvoker.NewOpenAIInvoker(&modelinvoker.Config{
		BaseURL:   cfg.APIs.OpenAI.BaseURL,
		APIKey:    cfg.APIs.OpenAI.APIKey,
		Timeout:   config.GetDuration(cfg.APIs.OpenAI.Timeout),
		MaxTokens: cfg.APIs.OpenAI.MaxTokens,
	}, log)
	return deps
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TargetSize: imagepreprocessor.Size{
			Width:  cfg.Analysis.TargetWidth,
			Height: cfg.Analysis.TargetHeight,
		},
		DefaultModelID: cfg.Analysis.DefaultModelID,
	}
}

// NewFromConfig builds an orchestrator wired to the configured backends.
func NewFromConfig(cfg *config.Config, cache *database.RedisClient, log logger.Logger, options ...Option) *Orchestrator {
	return New(BuildDependencies(cfg, cache, log), OptionsFromConfig(cfg), log, options...)
}
