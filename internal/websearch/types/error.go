package types

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// Configuration errors
	ErrInvalidProviderID   = errors.New("invalid provider ID")
	ErrInvalidProviderName = errors.New("invalid provider name")
	ErrInvalidAPIHost      = errors.New("invalid API host")
	ErrMissingAPIKey       = errors.New("missing API key")

	// Request errors
	ErrEmptyQuery        = errors.New("empty search query")
	ErrQueryTooLong      = errors.New("query too long")
	ErrInvalidSearchType = errors.New("invalid search type")

	// Response errors
	ErrInvalidResponse = errors.New("invalid response from provider")
)

// Upstream error codes
const (
	CodeRequestFailed = "REQUEST_FAILED"
	CodeDecodeFailed  = "DECODE_FAILED"
	CodeTimeout       = "TIMEOUT"
)

// UpstreamError is a non-2xx response or a transport failure from the search provider.
// Status is 0 when no response was received.
type UpstreamError struct {
	Provider ProviderID
	Status   int
	Code     string
	Details  string
	Err      error
	// Header holds the response headers of a non-2xx reply
	Header http.Header
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Provider, e.Code, e.Details, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Code, e.Details)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// HTTPCode returns the error code used for a non-2xx upstream status
func HTTPCode(status int) string {
	return fmt.Sprintf("HTTP_%d", status)
}

// IsRateLimited reports whether err is an upstream 429
func IsRateLimited(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Status == http.StatusTooManyRequests
}
