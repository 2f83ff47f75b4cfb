package news

import (
	"errors"
	"fmt"
)

// ErrMissingAPIKey is returned when no NEWS_API_KEY is configured.
var ErrMissingAPIKey = errors.New("NEWS_API_KEY is not set")

// Field-level causes wrapped by NormalizationError.
var (
	ErrMissingField = errors.New("missing required field")
	ErrInvalidField = errors.New("invalid field")
)

// TransportError reports that the news API could not be reached or
// answered with a non-success status.
type TransportError struct {
	StatusCode int
	Body       []byte
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("news api request failed: %v", e.Err)
	}
	return fmt.Sprintf("news api returned status %d: %s", e.StatusCode, truncate(string(e.Body), 200))
}

func (e *TransportError) Unwrap() error { return e.Err }

// EnvelopeError reports a response body without the expected results array.
type EnvelopeError struct {
	Err error
}

func (e *EnvelopeError) Error() string {
	return fmt.Sprintf("unexpected response envelope: %v", e.Err)
}

func (e *EnvelopeError) Unwrap() error { return e.Err }

// NormalizationError reports a record that could not be mapped to an article.
type NormalizationError struct {
	Record RawArticle
	Field  string
	Err    error
}

func (e *NormalizationError) Error() string {
	id := e.Record.Identifier(-1)
	if e.Field == "" {
		return fmt.Sprintf("normalize %s: %v", id, e.Err)
	}
	return fmt.Sprintf("normalize %s: %s: %v", id, e.Field, e.Err)
}

func (e *NormalizationError) Unwrap() error { return e.Err }

// PersistenceError reports a normalized article the store rejected.
type PersistenceError struct {
	Record string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Record, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
