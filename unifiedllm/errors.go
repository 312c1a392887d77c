package unifiedllm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"github.com/openai/openai-go"
)

// ErrorCode is the classified category of a transport failure.
type ErrorCode string

const (
	CodeTimeout    ErrorCode = "timeout"
	CodeNetwork    ErrorCode = "network"
	CodeBadRequest ErrorCode = "bad_request"
	CodeAuth       ErrorCode = "auth"
	CodeNotFound   ErrorCode = "not_found"
	CodeRateLimit  ErrorCode = "rate_limit"
	CodeServer     ErrorCode = "server"
	CodeMalformed  ErrorCode = "malformed"
	CodeUnknown    ErrorCode = "unknown"
)

// APIErrorInfo is the classified form of a transport failure. Status is 0
// when the raw error carried no HTTP status.
type APIErrorInfo struct {
	Status    int       `json:"status,omitempty"`
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
}

// APIError is the only error type the transport returns to callers.
type APIError struct {
	Info  APIErrorInfo
	Cause error
}

func (e *APIError) Error() string {
	return e.Info.Message
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the classified failure may succeed on retry.
func (e *APIError) Retryable() bool {
	return e.Info.Retryable
}

// AsAPIError returns err as an *APIError, classifying it if it is not one
// already. A nil error yields nil.
func AsAPIError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &APIError{Info: Classify(err), Cause: err}
}

// HTTPStatusError carries an HTTP status recovered by an adapter whose
// backend library only reports it inside an error string.
type HTTPStatusError struct {
	StatusCode int
	Message    string
	Cause      error
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

func (e *HTTPStatusError) Unwrap() error {
	return e.Cause
}

// Classify maps a raw failure into an APIErrorInfo. It never fails and
// depends only on the error value.
func Classify(err error) APIErrorInfo {
	if err == nil {
		return APIErrorInfo{Code: CodeUnknown, Message: "unknown error"}
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Info
	}

	status := statusOf(err)
	text := err.Error()
	lower := strings.ToLower(text)

	switch {
	case isTimeout(err, lower):
		return APIErrorInfo{
			Status:    status,
			Code:      CodeTimeout,
			Message:   "Request timed out or was aborted before the API responded.",
			Retryable: true,
		}
	case isNetwork(err, lower):
		return APIErrorInfo{
			Status:    status,
			Code:      CodeNetwork,
			Message:   "Network error: could not reach the API. Check your internet connection and the configured base URL (GROK_BASE_URL).",
			Retryable: true,
		}
	}

	switch {
	case status == 400:
		return APIErrorInfo{
			Status:  status,
			Code:    CodeBadRequest,
			Message: "Bad request (400). The request was rejected; this can also mean the API key is invalid. Details: " + text,
		}
	case status == 401:
		return APIErrorInfo{
			Status:  status,
			Code:    CodeAuth,
			Message: "Authentication failed (401). Update the apiKey in ~/.grok/user-settings.json or set the GROK_API_KEY environment variable.",
		}
	case status == 403:
		return APIErrorInfo{
			Status:  status,
			Code:    CodeAuth,
			Message: "Access denied (403). The API key lacks permission for this request or the account is blocked.",
		}
	case status == 404:
		return APIErrorInfo{
			Status:  status,
			Code:    CodeNotFound,
			Message: "Not found (404). The model or endpoint does not exist. Check the model name and base URL.",
		}
	case status == 429:
		return APIErrorInfo{
			Status:    status,
			Code:      CodeRateLimit,
			Message:   "Rate limit exceeded (429). Retrying with backoff...",
			Retryable: true,
		}
	case status >= 500:
		return APIErrorInfo{
			Status:    status,
			Code:      CodeServer,
			Message:   fmt.Sprintf("Server error (%d). The API is having trouble. Retrying...", status),
			Retryable: true,
		}
	}

	if isMalformed(err, lower) {
		return APIErrorInfo{
			Status:    status,
			Code:      CodeMalformed,
			Message:   "Received a malformed response from the API. Retrying...",
			Retryable: true,
		}
	}

	return APIErrorInfo{Status: status, Code: CodeUnknown, Message: text}
}

type statusCoder interface {
	StatusCode() int
}

// statusOf reads the HTTP status from whichever carrier the error exposes.
func statusOf(err error) int {
	var oaErr *openai.Error
	if errors.As(err, &oaErr) {
		return oaErr.StatusCode
	}
	var httpErr *HTTPStatusError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	var coder statusCoder
	if errors.As(err, &coder) {
		return coder.StatusCode()
	}
	return 0
}

func isTimeout(err error, lower string) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "timed out") ||
		strings.Contains(lower, "aborted")
}

var networkPhrases = []string{
	"fetch failed",
	"network",
	"bad port",
	"cannot connect",
	"connection refused",
	"connection reset",
	"no such host",
	"econnrefused",
	"enotfound",
	"econnreset",
}

func isNetwork(err error, lower string) bool {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	for _, phrase := range networkPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func isMalformed(err error, lower string) bool {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return true
	}
	return strings.Contains(lower, "malformed") ||
		strings.Contains(lower, "unexpected token") ||
		strings.Contains(lower, "parse error") ||
		strings.Contains(lower, "unexpected end of json")
}
