package reddit

import (
	"errors"
	"fmt"
)

// ErrAuthExpired marks a 401: the cached token was rejected and has been
// invalidated. Transient; the next attempt fetches a fresh token.
var ErrAuthExpired = errors.New("access token rejected")

// ErrRateLimited marks a 429 after its backoff wait. Transient.
var ErrRateLimited = errors.New("rate limited")

// CredentialError reports a failed or malformed token exchange.
type CredentialError struct {
	Status int
	Reason string
}

func (e *CredentialError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("obtain access token (%d): %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("obtain access token: %s", e.Reason)
}

// ServerError reports a 5xx response. Transient.
type ServerError struct {
	Status int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: %d", e.Status)
}

// RequestError reports a non-success status that is not worth retrying.
// Body is truncated to 500 characters.
type RequestError struct {
	Status int
	Body   string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request failed (%d): %s", e.Status, e.Body)
}

// ExhaustedError reports that the attempt ceiling was reached. Last is
// the most recent failure observed.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

func truncateBody(body []byte) string {
	const maxLen = 500
	if len(body) > maxLen {
		return string(body[:maxLen])
	}
	return string(body)
}
