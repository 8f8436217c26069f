// internal/analysis/modelinvoker/openai.go
package modelinvoker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	apperrors "usability-workers/internal/common/errors"
	apphttp "usability-workers/internal/common/http"
	"usability-workers/internal/common/logger"
)

const serviceName = "openai"

// FallbackText is returned when a well-formed response carries no choices.
const FallbackText = "Failed Parse"

// OpenAIInvoker calls the OpenAI chat-completions endpoint.
type OpenAIInvoker struct {
	config *Config
	client *apphttp.Client
	logger logger.Logger
}

func NewOpenAIInvoker(config *Config, log logger.Logger) *OpenAIInvoker {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = DefaultMaxTokens
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	return &OpenAIInvoker{
		config: config,
		client: apphttp.NewClient(config.Timeout),
		logger: log.With(map[string]interface{}{"component": "model-invoker", "provider": serviceName}),
	}
}

func (i *OpenAIInvoker) Invoke(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(i.buildRequestBody(req))
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, i.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+i.config.APIKey)

	i.logger.Debug("calling chat completions", map[string]interface{}{
		"model":    req.ModelID,
		"hasImage": req.HasImage(),
		"bytes":    len(body),
	})

	resp, err := i.client.Do(httpReq)
	if errors.Is(err, apphttp.ErrBodyTooLarge) {
		i.logger.Error("chat completions response too large", map[string]interface{}{"error": err.Error()})
		return nil, apperrors.NewResponseDecodeError(err)
	}
	if err != nil {
		i.logger.Error("chat completions request failed", map[string]interface{}{"error": err.Error()})
		return nil, apperrors.NewTransportError(serviceName, err)
	}

	if resp.StatusCode != http.StatusOK {
		details := apiErrorMessage(resp.Body)
		i.logger.Warn("chat completions returned non-200", map[string]interface{}{
			"status":  resp.StatusCode,
			"details": details,
		})
		return nil, apperrors.NewHTTPStatusError(serviceName, resp.StatusCode, details)
	}

	completion, err := decodeChatCompletion(resp.Body)
	if err != nil {
		i.logger.Error("chat completion decode failed", map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	text := FallbackText
	if len(completion.Choices) > 0 {
		text = completion.Choices[0].Message.Content
	}

	i.logger.Info("chat completion received", map[string]interface{}{
		"id":          completion.ID,
		"model":       completion.Model,
		"totalTokens": completion.Usage.TotalTokens,
		"choices":     len(completion.Choices),
	})

	return &Response{
		Text:       text,
		TokenCount: completion.Usage.TotalTokens,
	}, nil
}

func (i *OpenAIInvoker) endpoint() string {
	return strings.TrimRight(i.config.BaseURL, "/") + chatCompletionsPath
}

func (i *OpenAIInvoker) buildRequestBody(req Request) chatRequest {
	system := chatMessage{Role: "system", Content: req.SystemContent}
	user := chatMessage{Role: "user", Content: req.UserContent}

	if req.HasImage() {
		user.Content = []contentPart{
			{Type: "text", Text: req.UserContent},
			{Type: "image_url", ImageURL: &imageURL{
				URL:    "data:image/jpeg;base64," + req.Base64Image,
				Detail: "low",
			}},
		}
	}

	return chatRequest{
		Model:     req.ModelID,
		Messages:  []chatMessage{system, user},
		MaxTokens: i.config.MaxTokens,
	}
}

// decodeChatCompletion validates body against the response schema before
// decoding it, so missing fields surface as decode errors instead of zero values.
func decodeChatCompletion(body []byte) (*chatCompletion, error) {
	result, err := chatCompletionSchema.Validate(body)
	if err != nil {
		return nil, apperrors.NewResponseDecodeError(err)
	}
	if !result.Valid {
		return nil, apperrors.NewResponseDecodeError(fmt.Errorf("schema mismatch: %s", result.Error()))
	}

	var completion chatCompletion
	if err := json.Unmarshal(body, &completion); err != nil {
		return nil, apperrors.NewResponseDecodeError(err)
	}
	return &completion, nil
}

func apiErrorMessage(body []byte) string {
	var apiErr apiErrorBody
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}
	if len(body) > 512 {
		return string(body[:512])
	}
	return string(body)
}
