package httpclient

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestDoSucceedsOnFirstAttempt(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(WithMaxRetries(3), WithBaseDelay(time.Millisecond), WithMaxDelay(5*time.Millisecond))
	req, _ := http.NewRequest(http.MethodPost, srv.URL, nil)

	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	defer resp.Body.Close()

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoRetriesOnConservativeStatus(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(WithMaxRetries(5), WithBaseDelay(time.Millisecond), WithMaxDelay(5*time.Millisecond))
	req, _ := http.NewRequest(http.MethodPost, srv.URL, nil)

	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	defer resp.Body.Close()

	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoSurfacesRetryableErrorAfterMaxRetries(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(WithMaxRetries(2), WithBaseDelay(time.Millisecond), WithMaxDelay(5*time.Millisecond))
	req, _ := http.NewRequest(http.MethodPost, srv.URL, nil)

	_, err := c.Do(req)
	if err == nil {
		t.Fatal("Do() expected error after exhausting retries")
	}

	re, ok := err.(*RetryableError)
	if !ok {
		t.Fatalf("Do() error type = %T, want *RetryableError", err)
	}
	if re.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want %d", re.StatusCode, http.StatusTooManyRequests)
	}
	if calls != 3 { // initial attempt + 2 retries
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoDoesNotRetryNonRetryableStatus(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(WithMaxRetries(5), WithBaseDelay(time.Millisecond))
	req, _ := http.NewRequest(http.MethodPost, srv.URL, nil)

	resp, err := c.Do(req)
	if err == nil {
		t.Fatal("Do() expected error for 400 response")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Errorf("resp = %+v, want StatusCode %d", resp, http.StatusBadRequest)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on 400)", calls)
	}
}

func TestDoReplaysRequestBodyAcrossRetries(t *testing.T) {
	calls := 0
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		buf := make([]byte, 32)
		n, _ := r.Body.Read(buf)
		bodies = append(bodies, string(buf[:n]))
		if calls < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(WithMaxRetries(3), WithBaseDelay(time.Millisecond), WithMaxDelay(5*time.Millisecond))
	req, _ := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader(`{"model":"voyage-code-3"}`))

	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	defer resp.Body.Close()

	for i, b := range bodies {
		if b != `{"model":"voyage-code-3"}` {
			t.Errorf("bodies[%d] = %q, want original body replayed", i, b)
		}
	}
}

func TestWithHeaderParserFeedsSmartRetryDelay(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(WithMaxRetries(2), WithBaseDelay(time.Millisecond), WithHeaderParser(ParseOpenAIHeaders))
	req, _ := http.NewRequest(http.MethodPost, srv.URL, nil)

	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	defer resp.Body.Close()

	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

