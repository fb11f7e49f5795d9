package blogapi

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrSlugRequired  = errors.New("post slug is required")
	ErrTokenRequired = errors.New("auth token is required")
	// ErrResponseTooLarge 响应体超过读取上限，不做截断解码
	ErrResponseTooLarge = errors.New("api response exceeds the size limit")
)

// APIError is a non-2xx answer from the blog API. Message is the server's text.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// IsUnauthorized reports whether the API rejected the caller's token.
func IsUnauthorized(err error) bool {
	code := StatusCode(err)
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

// StatusCode extracts the HTTP status from an APIError, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func newAPIError(status int, statusText string, message string) *APIError {
	if message == "" {
		message = statusText
	}
	if message == "" {
		message = fmt.Sprintf("request failed with status %d", status)
	}
	return &APIError{StatusCode: status, Message: message}
}
