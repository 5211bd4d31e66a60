package httpclient

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRetryableErrorMessageIncludesRetryAfter(t *testing.T) {
	err := &RetryableError{StatusCode: 429, Message: "rate limited", RetryAfter: 2 * time.Second}
	if got := err.Error(); !strings.Contains(got, "429") || !strings.Contains(got, "retry after") {
		t.Errorf("Error() = %q, want status and retry-after", got)
	}
}

func TestRetryableErrorMessageOmitsRetryAfterWhenZero(t *testing.T) {
	err := &RetryableError{StatusCode: 500, Message: "server error"}
	if got := err.Error(); strings.Contains(got, "retry after") {
		t.Errorf("Error() = %q, should not mention retry-after", got)
	}
}

func TestRetryableErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &RetryableError{StatusCode: 503, Err: cause}
	if !errors.Is(err, cause) {
		t.Error("errors.Is() should find the wrapped cause")
	}
}

func TestRetryableErrorIsRetryable(t *testing.T) {
	err := &RetryableError{StatusCode: 429}
	if !err.IsRetryable() {
		t.Error("IsRetryable() = false, want true")
	}
}
