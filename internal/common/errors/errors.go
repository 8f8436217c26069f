// Package errors provides the error taxonomy shared by the analysis pipeline
// and its BPMN integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode identifies the kind of a pipeline failure.
type ErrorCode string

const (
	ErrCodeImageConversion       ErrorCode = "IMAGE_CONVERSION_FAILED"
	ErrCodeHTTPStatus            ErrorCode = "HTTP_STATUS_ERROR"
	ErrCodeMissingResizeLocation ErrorCode = "MISSING_RESIZE_LOCATION"
	ErrCodeResponseDecode        ErrorCode = "RESPONSE_DECODE_FAILED"
	ErrCodeInvalidInput          ErrorCode = "INVALID_INPUT"
	ErrCodeAlreadyRunning        ErrorCode = "ALREADY_RUNNING"
	ErrCodeInternal              ErrorCode = "INTERNAL_ERROR"
)

// NoResponseStatus is the status code reported when no HTTP response was received.
const NoResponseStatus = -1

// StandardError is a structured application error.
type StandardError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	StatusCode int                    `json:"statusCode,omitempty"`
	Retryable  bool                   `json:"retryable"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Code == ErrCodeHTTPStatus {
		return fmt.Sprintf("StandardError[%s %d]: %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches on the error code, so the sentinels below work with errors.Is.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrImageConversion       = &StandardError{Code: ErrCodeImageConversion}
	ErrHTTPStatus            = &StandardError{Code: ErrCodeHTTPStatus}
	ErrMissingResizeLocation = &StandardError{Code: ErrCodeMissingResizeLocation}
	ErrResponseDecode        = &StandardError{Code: ErrCodeResponseDecode}
	ErrInvalidInput          = &StandardError{Code: ErrCodeInvalidInput}
	ErrAlreadyRunning        = &StandardError{Code: ErrCodeAlreadyRunning, Message: "an analysis is already running"}
)

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError is thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for job fail/throw variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewImageConversionError reports bytes that could not be decoded as an image.
func NewImageConversionError(err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &StandardError{
		Code:      ErrCodeImageConversion,
		Message:   "Image data could not be converted to JPEG",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewHTTPStatusError reports a non-success status. Use NoResponseStatus when
// the request never produced a response.
func NewHTTPStatusError(service string, statusCode int, details string) *StandardError {
	return &StandardError{
		Code:       ErrCodeHTTPStatus,
		Message:    fmt.Sprintf("%s returned HTTP status %d", service, statusCode),
		Details:    details,
		StatusCode: statusCode,
		Retryable:  isRetryableStatus(statusCode),
		Metadata:   map[string]interface{}{"service": service},
		Timestamp:  time.Now().UTC(),
	}
}

// NewTransportError wraps a failure that happened before any HTTP response.
func NewTransportError(service string, err error) *StandardError {
	e := NewHTTPStatusError(service, NoResponseStatus, err.Error())
	e.Message = fmt.Sprintf("%s request failed without a response", service)
	e.cause = err
	return e
}

// NewMissingResizeLocationError reports a shrink response without a usable Location.
func NewMissingResizeLocationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMissingResizeLocation,
		Message:   "Compression service returned no resize location",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewResponseDecodeError reports a 200 body that did not match the expected schema.
func NewResponseDecodeError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeResponseDecode,
		Message:   "Model response could not be decoded",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInvalidInputError reports a caller mistake caught before any I/O.
func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Invalid analysis input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func isRetryableStatus(code int) bool {
	return code == NoResponseStatus || code == 429 || code >= 500
}

// ==========================
// 4. Inspection & Rendering
// ==========================

// AsStandardError unwraps err to a *StandardError when possible.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HTTPStatusCode returns the status carried by an HTTP status error.
func HTTPStatusCode(err error) (int, bool) {
	stdErr, ok := AsStandardError(err)
	if !ok || stdErr.Code != ErrCodeHTTPStatus {
		return 0, false
	}
	return stdErr.StatusCode, true
}

// CodeOf returns the error code, or ErrCodeInternal for foreign errors.
func CodeOf(err error) ErrorCode {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// UserMessage renders err as the text shown for a failed analysis.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	stdErr, ok := AsStandardError(err)
	if !ok {
		return fmt.Sprintf("An unexpected error occurred: %s", err.Error())
	}

	switch stdErr.Code {
	case ErrCodeHTTPStatus:
		if stdErr.StatusCode == NoResponseStatus {
			return fmt.Sprintf("App Error HTTP %d: the server could not be reached.", stdErr.StatusCode)
		}
		return fmt.Sprintf("App Error HTTP %d", stdErr.StatusCode)
	case ErrCodeImageConversion:
		return "App Error: the image could not be converted."
	case ErrCodeMissingResizeLocation:
		return "App Error: the image resize URL could not be extracted."
	case ErrCodeResponseDecode:
		return "App Error: the model response could not be read."
	case ErrCodeInvalidInput:
		if stdErr.Details != "" {
			return fmt.Sprintf("Invalid input: %s", stdErr.Details)
		}
		return "Invalid input."
	default:
		if stdErr.Message != "" {
			return stdErr.Message
		}
		return string(stdErr.Code)
	}
}

// ==========================
// 5. BPMN Conversion
// ==========================

// GetRetryCount returns the job retries recommended for a code.
func GetRetryCount(stdErr *StandardError) int {
	if stdErr == nil || !stdErr.Retryable {
		return 0
	}
	if stdErr.Code == ErrCodeHTTPStatus {
		return 2
	}
	return 1
}

// ConvertToBPMNError converts a StandardError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		"userMessage":       UserMessage(stdErr),
	}
	if stdErr.Code == ErrCodeHTTPStatus {
		vars["httpStatus"] = stdErr.StatusCode
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        GetRetryCount(stdErr),
		ErrorVariables: vars,
	}
}

// GetErrorCategory groups codes for dashboards.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "IMAGE") || strings.Contains(codeStr, "RESIZE"):
		return "IMAGE"
	case strings.Contains(codeStr, "HTTP"):
		return "TRANSPORT"
	case strings.Contains(codeStr, "DECODE"):
		return "MODEL"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
