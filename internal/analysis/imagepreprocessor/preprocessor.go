// internal/analysis/imagepreprocessor/preprocessor.go
package imagepreprocessor

import (
	"context"
	"fmt"
	"time"
)

// Size is a resize target in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DefaultTargetSize fits an iPhone 13 screenshot (ratio 2.16).
var DefaultTargetSize = Size{Width: 240, Height: 518}

func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Preprocessor compresses and resizes a screenshot before it is sent to the model.
type Preprocessor interface {
	Process(ctx context.Context, image []byte, target Size) ([]byte, error)
}

// Config configures the Tinify client.
type Config struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	JPEGQuality int
}

const (
	DefaultBaseURL     = "https://api.tinify.com"
	DefaultTimeout     = 60 * time.Second
	DefaultJPEGQuality = 85

	shrinkPath = "/shrink"
)

func DefaultConfig() *Config {
	return &Config{
		BaseURL:     DefaultBaseURL,
		Timeout:     DefaultTimeout,
		JPEGQuality: DefaultJPEGQuality,
	}
}
