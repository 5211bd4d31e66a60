// Package docerrors defines the error kinds surfaced across the service:
// config resolution, rate limiting, upstream API calls, search, and
// ingestion. Each kind is found with errors.As. Unwrap returns the wrapped
// cause when one is set and the kind's sentinel otherwise, so errors.Is
// matches the sentinel only for an error built without a cause.
package docerrors

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig is what ConfigError.Unwrap returns when Err is nil.
	ErrConfig = errors.New("config error")
	// ErrRateLimit is the sentinel wrapped by every RateLimitError.
	ErrRateLimit = errors.New("rate limit exceeded")
	// ErrAPI is what ApiError.Unwrap returns when Err is nil.
	ErrAPI = errors.New("upstream api error")
	// ErrSearch is what SearchError.Unwrap returns when Err is nil.
	ErrSearch = errors.New("search error")
	// ErrIngestion is what IngestionError.Unwrap returns when Err is nil.
	ErrIngestion = errors.New("ingestion error")
)

// ConfigError reports an invalid or unresolvable product/language configuration.
type ConfigError struct {
	Product string
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Product != "" {
		return fmt.Sprintf("config error [%s.%s]: %s", e.Product, e.Field, e.Message)
	}
	return fmt.Sprintf("config error [%s]: %s", e.Field, e.Message)
}

func (e *ConfigError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrConfig
}

func NewConfigError(product, field, message string, err error) *ConfigError {
	return &ConfigError{Product: product, Field: field, Message: message, Err: err}
}

// RateLimitError reports that a caller exceeded its configured request or
// token budget, with a suggested retry delay.
type RateLimitError struct {
	Scope      string
	Message    string
	RetryAfter float64 // seconds
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded [%s]: %s (retry after %.2fs)", e.Scope, e.Message, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimit
}

func NewRateLimitError(scope, message string, retryAfter float64) *RateLimitError {
	return &RateLimitError{Scope: scope, Message: message, RetryAfter: retryAfter}
}

func IsRateLimitError(err error) bool {
	var rle *RateLimitError
	return errors.As(err, &rle)
}

// ApiError reports a failure from an upstream embedding or rerank provider.
type ApiError struct {
	Provider   string
	StatusCode int
	Message    string
	Retryable  bool
	Err        error
}

func (e *ApiError) Error() string {
	return fmt.Sprintf("api error [%s status=%d retryable=%v]: %s", e.Provider, e.StatusCode, e.Retryable, e.Message)
}

func (e *ApiError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrAPI
}

func NewAPIError(provider string, statusCode int, message string, retryable bool, err error) *ApiError {
	return &ApiError{Provider: provider, StatusCode: statusCode, Message: message, Retryable: retryable, Err: err}
}

// SearchError reports a failure within query validation, dispatch, or fusion.
type SearchError struct {
	Component string
	Operation string
	Message   string
	Query     string
	Err       error
}

func (e *SearchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s (query: %q): %v", e.Component, e.Operation, e.Message, e.Query, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s (query: %q)", e.Component, e.Operation, e.Message, e.Query)
}

func (e *SearchError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrSearch
}

func NewSearchError(component, operation, message, query string, err error) *SearchError {
	return &SearchError{Component: component, Operation: operation, Message: message, Query: query, Err: err}
}

// IngestionError reports a failure while loading, chunking, embedding, or
// upserting a document during indexing.
type IngestionError struct {
	Stage    string
	DocID    string
	ChunkID  string
	Message  string
	Err      error
	Fatal    bool // true if the whole indexing run should halt
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingestion error [%s doc=%s chunk=%s fatal=%v]: %s: %v", e.Stage, e.DocID, e.ChunkID, e.Fatal, e.Message, e.Err)
}

func (e *IngestionError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrIngestion
}

func NewIngestionError(stage, docID, chunkID, message string, fatal bool, err error) *IngestionError {
	return &IngestionError{Stage: stage, DocID: docID, ChunkID: chunkID, Message: message, Fatal: fatal, Err: err}
}
