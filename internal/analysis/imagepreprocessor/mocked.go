// internal/analysis/imagepreprocessor/mocked.go
package imagepreprocessor

import (
	"context"
	"time"

	"usability-workers/internal/common/logger"
)

// MockedPreprocessorDelay simulates the round trip to the compression service.
const MockedPreprocessorDelay = 3 * time.Second

// MockedPreprocessor returns its input unchanged after a fixed delay.
type MockedPreprocessor struct {
	delay  time.Duration
	logger logger.Logger
}

type MockOption func(*MockedPreprocessor)

func WithMockDelay(d time.Duration) MockOption {
	return func(m *MockedPreprocessor) { m.delay = d }
}

func NewMockedPreprocessor(log logger.Logger, opts ...MockOption) *MockedPreprocessor {
	m := &MockedPreprocessor{
		delay:  MockedPreprocessorDelay,
		logger: log.With(map[string]interface{}{"component": "image-preprocessor", "provider": "mock"}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MockedPreprocessor) Process(ctx context.Context, image []byte, target Size) ([]byte, error) {
	m.logger.Debug("mock compression started", map[string]interface{}{"bytes": len(image), "target": target.String()})

	timer := time.NewTimer(m.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}
	return image, nil
}
