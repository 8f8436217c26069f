// internal/analysis/modelinvoker/invoker.go
package modelinvoker

import (
	"context"
	"time"
)

// Request is one chat completion call. Base64Image is empty when no
// screenshot accompanies the prompt.
type Request struct {
	ModelID       string
	Base64Image   string
	SystemContent string
	UserContent   string
}

func (r Request) HasImage() bool {
	return r.Base64Image != ""
}

// Response is the terminal success value of an analysis.
type Response struct {
	Text       string
	TokenCount int
}

// Invoker sends a Request to a language model.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (*Response, error)
}

// Config configures the OpenAI chat-completions client.
type Config struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	MaxTokens int
}

const (
	DefaultBaseURL   = "https://api.openai.com"
	DefaultTimeout   = 100 * time.Second
	DefaultMaxTokens = 3000

	chatCompletionsPath = "/v1/chat/completions"
)

func DefaultConfig() *Config {
	return &Config{
		BaseURL:   DefaultBaseURL,
		Timeout:   DefaultTimeout,
		MaxTokens: DefaultMaxTokens,
	}
}
