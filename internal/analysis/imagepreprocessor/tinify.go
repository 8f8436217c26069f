// internal/analysis/imagepreprocessor/tinify.go
package imagepreprocessor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	apperrors "usability-workers/internal/common/errors"
	apphttp "usability-workers/internal/common/http"
	"usability-workers/internal/common/logger"
)

const serviceName = "tinify"

// TinifyPreprocessor uploads a screenshot to the Tinify shrink endpoint and
// then asks for a "fit" resize of the compressed output.
type TinifyPreprocessor struct {
	config *Config
	client *apphttp.Client
	logger logger.Logger
}

type resizeRequest struct {
	Resize resizeOptions `json:"resize"`
}

type resizeOptions struct {
	Method string `json:"method"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func NewTinifyPreprocessor(config *Config, log logger.Logger) *TinifyPreprocessor {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.JPEGQuality <= 0 || config.JPEGQuality > 100 {
		config.JPEGQuality = DefaultJPEGQuality
	}
	return &TinifyPreprocessor{
		config: config,
		client: apphttp.NewClient(config.Timeout),
		logger: log.With(map[string]interface{}{"component": "image-preprocessor", "provider": serviceName}),
	}
}

func (p *TinifyPreprocessor) Process(ctx context.Context, image []byte, target Size) ([]byte, error) {
	if !target.Valid() {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("target size %s must be positive", target))
	}

	jpegData, err := NormalizeJPEG(image, p.config.JPEGQuality)
	if err != nil {
		p.logger.Warn("image conversion failed", map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	location, err := p.shrink(ctx, jpegData)
	if err != nil {
		return nil, err
	}

	return p.resize(ctx, location, target)
}

func (p *TinifyPreprocessor) shrink(ctx context.Context, jpegData []byte) (string, error) {
	endpoint := p.shrinkURL()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jpegData))
	if err != nil {
		return "", fmt.Errorf("build shrink request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth("api", p.config.APIKey)

	p.logger.Debug("uploading image for compression", map[string]interface{}{"bytes": len(jpegData)})

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Error("shrink request failed", map[string]interface{}{"error": err.Error()})
		return "", apperrors.NewTransportError(serviceName, err)
	}
	if resp.StatusCode != http.StatusCreated {
		p.logger.Warn("shrink returned unexpected status", map[string]interface{}{"status": resp.StatusCode})
		return "", apperrors.NewHTTPStatusError(serviceName, resp.StatusCode, tinifyErrorMessage(resp.Body))
	}

	location, err := resolveLocation(endpoint, resp.Header.Get("Location"))
	if err != nil {
		p.logger.Warn("shrink response has no usable location", map[string]interface{}{"error": err.Error()})
		return "", err
	}
	return location, nil
}

func (p *TinifyPreprocessor) resize(ctx context.Context, location string, target Size) ([]byte, error) {
	body, err := json.Marshal(resizeRequest{Resize: resizeOptions{
		Method: "fit",
		Width:  target.Width,
		Height: target.Height,
	}})
	if err != nil {
		return nil, fmt.Errorf("encode resize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, location, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build resize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth("api", p.config.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Error("resize request failed", map[string]interface{}{"error": err.Error()})
		return nil, apperrors.NewTransportError(serviceName, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		p.logger.Warn("resize returned unexpected status", map[string]interface{}{"status": resp.StatusCode})
		return nil, apperrors.NewHTTPStatusError(serviceName, resp.StatusCode, tinifyErrorMessage(resp.Body))
	}

	p.logger.Info("image compressed", map[string]interface{}{
		"target": target.String(),
		"bytes":  len(resp.Body),
	})
	return resp.Body, nil
}

func (p *TinifyPreprocessor) shrinkURL() string {
	return strings.TrimRight(p.config.BaseURL, "/") + shrinkPath
}

// resolveLocation turns the shrink Location header into an absolute URL.
func resolveLocation(base, location string) (string, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return "", apperrors.NewMissingResizeLocationError("Location header is empty")
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", apperrors.NewMissingResizeLocationError(err.Error())
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", apperrors.NewMissingResizeLocationError(err.Error())
	}
	return baseURL.ResolveReference(ref).String(), nil
}

func tinifyErrorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error + ": " + payload.Message
	}
	if len(body) > 256 {
		return string(body[:256])
	}
	return string(body)
}
