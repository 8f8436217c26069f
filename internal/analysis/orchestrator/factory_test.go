// internal/analysis/orchestrator/factory_test.go
package orchestrator

import (
	"testing"

	"usability-workers/internal/analysis/imagepreprocessor"
	"usability-workers/internal/analysis/modelinvoker"
	"usability-workers/internal/common/config"
	"usability-workers/internal/common/database"
	"usability-workers/internal/common/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
)

func createTestConfig(mocked bool) *config.Config {
	cfg := &config.Config{}
	cfg.Analysis.UseMockedServices = mocked
	cfg.Analysis.DefaultModelID = "gpt-4-vision-preview"
	cfg.Analysis.TargetWidth = 240
	cfg.Analysis.TargetHeight = 518
	cfg.Analysis.JPEGQuality = 85
	cfg.APIs.OpenAI.APIKey = "sk-test"
	cfg.APIs.OpenAI.Timeout = 100000
	cfg.APIs.Tinify.APIKey = "tiny-test"
	cfg.APIs.Tinify.Timeout = 60000
	cfg.Database.Redis.CacheTTL = 60000
	return cfg
}

func TestBuildDependencies_Mocked(t *testing.T) {
	deps := BuildDependencies(createTestConfig(true), nil, logger.NewNoOpLogger())

	assert.IsType(t, &imagepreprocessor.MockedPreprocessor{}, deps.Preprocessor)
	assert.IsType(t, &modelinvoker.MockedInvoker{}, deps.Invoker)
	assert.NotNil(t, deps.Builder)
}

func TestBuildDependencies_Real(t *testing.T) {
	deps := BuildDependencies(createTestConfig(false), nil, logger.NewNoOpLogger())

	assert.IsType(t, &imagepreprocessor.TinifyPreprocessor{}, deps.Preprocessor)
	assert.IsType(t, &modelinvoker.OpenAIInvoker{}, deps.Invoker)
}

func TestBuildDependencies_RealWithCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := createTestConfig(false)
	cache := database.NewRedis(config.RedisConfig{Address: mr.Addr(), CacheTTL: cfg.Database.Redis.CacheTTL})
	defer cache.Close()

	deps := BuildDependencies(cfg, cache, logger.NewNoOpLogger())

	assert.IsType(t, &imagepreprocessor.CachedPreprocessor{}, deps.Preprocessor)
}

func TestNewFromConfig_Options(t *testing.T) {
	cfg := createTestConfig(true)
	cfg.Analysis.TargetWidth = 0

	o := NewFromConfig(cfg, nil, logger.NewNoOpLogger())

	assert.Equal(t, imagepreprocessor.DefaultTargetSize, o.opts.TargetSize)
	assert.Equal(t, "gpt-4-vision-preview", o.opts.DefaultModelID)
	assert.Equal(t, PhaseIdle, o.State().Phase)
}
