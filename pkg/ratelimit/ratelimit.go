// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ratelimit implements a true sliding-window limiter over a
// configurable window (default 60s) tracking requests and tokens. Unlike a
// fixed-window bucket, entries are individually timestamped and evicted
// lazily as they age past the window, so the effective limit never resets
// in a visible step at a window boundary.
package ratelimit

import (
	"container/list"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/docbridge/mcp-docs/pkg/docerrors"
)

// Scope identifies what a Limiter's budget is attributed to (e.g. a single
// Voyage API key shared across the whole process).
type Scope string

const (
	ScopeEmbedder Scope = "embedder"
	ScopeRerank   Scope = "rerank"
)

const DefaultWindow = 60 * time.Second

type entry struct {
	at     time.Time
	tokens int64
}

// CheckResult reports the outcome of a Check/CheckAndRecord call.
type CheckResult struct {
	Allowed        bool
	Reason         string
	CurrentRequest int64
	CurrentTokens  int64
	RetryAfter     time.Duration
}

// Limiter is a sliding-log limiter over requests and tokens for one scope.
// It is safe for concurrent use; all mutation is serialized by mu.
type Limiter struct {
	scope        Scope
	window       time.Duration
	requestLimit int64
	tokenLimit   int64

	mu      sync.Mutex
	entries *list.List // of entry, oldest first

	// warnSometimes throttles the "approaching limit" warning so a hot
	// caller near its ceiling doesn't flood the log.
	warnSometimes rate.Sometimes
	onApproachingLimit func(scope Scope, pct float64)
}

// New constructs a Limiter for scope with the given per-window request and
// token ceilings. A zero ceiling means that dimension is unlimited.
func New(scope Scope, window time.Duration, requestLimit, tokenLimit int64) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		scope:         scope,
		window:        window,
		requestLimit:  requestLimit,
		tokenLimit:    tokenLimit,
		entries:       list.New(),
		warnSometimes: rate.Sometimes{Interval: 5 * time.Second},
	}
}

// OnApproachingLimit registers a callback invoked (at most every 5s) when a
// check crosses 80% of either ceiling.
func (l *Limiter) OnApproachingLimit(fn func(scope Scope, pct float64)) {
	l.onApproachingLimit = fn
}

// evictLocked drops entries older than the window. Caller must hold l.mu.
func (l *Limiter) evictLocked(now time.Time) {
	cutoff := now.Add(-l.window)
	for e := l.entries.Front(); e != nil; {
		next := e.Next()
		en := e.Value.(entry)
		if en.at.Before(cutoff) {
			l.entries.Remove(e)
		} else {
			break
		}
		e = next
	}
}

func (l *Limiter) totalsLocked() (requests int64, tokens int64) {
	for e := l.entries.Front(); e != nil; e = e.Next() {
		en := e.Value.(entry)
		requests++
		tokens += en.tokens
	}
	return
}

func (l *Limiter) retryAfterLocked(now time.Time) time.Duration {
	front := l.entries.Front()
	if front == nil {
		return 0
	}
	earliest := front.Value.(entry).at
	remaining := earliest.Add(l.window).Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	// Ceil to whole seconds per spec.
	secs := math.Ceil(remaining.Seconds())
	return time.Duration(secs) * time.Second
}

// Check reports whether a request costing tokens would be allowed right
// now, without recording it.
func (l *Limiter) Check(tokens int64) *CheckResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.checkLocked(tokens, time.Now())
}

func (l *Limiter) checkLocked(tokens int64, now time.Time) *CheckResult {
	l.evictLocked(now)
	curReq, curTok := l.totalsLocked()

	result := &CheckResult{Allowed: true, CurrentRequest: curReq, CurrentTokens: curTok}

	exceedsRequests := l.requestLimit > 0 && curReq+1 > l.requestLimit
	exceedsTokens := l.tokenLimit > 0 && curTok+tokens > l.tokenLimit

	if exceedsRequests || exceedsTokens {
		result.Allowed = false
		result.RetryAfter = l.retryAfterLocked(now)
		if exceedsRequests {
			result.Reason = "request rate limit exceeded"
		} else {
			result.Reason = "token rate limit exceeded"
		}
		return result
	}

	if l.onApproachingLimit != nil {
		l.maybeWarn(curReq, curTok)
	}

	return result
}

func (l *Limiter) maybeWarn(curReq, curTok int64) {
	reqPct, tokPct := 0.0, 0.0
	if l.requestLimit > 0 {
		reqPct = float64(curReq) / float64(l.requestLimit)
	}
	if l.tokenLimit > 0 {
		tokPct = float64(curTok) / float64(l.tokenLimit)
	}
	pct := math.Max(reqPct, tokPct)
	if pct < 0.8 {
		return
	}
	l.warnSometimes.Do(func() {
		l.onApproachingLimit(l.scope, pct)
	})
}

// Record appends an entry for tokens at the current time, without checking
// whether it was allowed.
func (l *Limiter) Record(tokens int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	l.evictLocked(now)
	l.entries.PushBack(entry{at: now, tokens: tokens})
}

// CheckAndRecord atomically checks and, if allowed, records the request.
// On denial it returns a *docerrors.RateLimitError and records nothing.
func (l *Limiter) CheckAndRecord(tokens int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	result := l.checkLocked(tokens, now)
	if !result.Allowed {
		return docerrors.NewRateLimitError(string(l.scope), result.Reason, result.RetryAfter.Seconds())
	}
	l.entries.PushBack(entry{at: now, tokens: tokens})
	return nil
}
