// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil executes JSON GET requests against rate-limited APIs.
// A single attempt is classified into a tagged Outcome; Execute drives the
// retry state machine over those outcomes with capped exponential backoff.
// Credential rotation is left to callers, which rebuild the request for
// each attempt.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pdiddy/scopus-harvest/internal/metrics"
)

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 10 << 20

// ErrRetryExhausted is returned when a call uses up its attempt budget.
var ErrRetryExhausted = errors.New("retry attempts exhausted")

// retryableStatus lists the statuses treated as transient: credential
// problems (401, 403), throttling (429) and upstream availability (5xx).
var retryableStatus = map[int]bool{
	http.StatusUnauthorized:        true,
	http.StatusForbidden:           true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// IsRetryableStatus reports whether status is in the retryable set.
func IsRetryableStatus(status int) bool { return retryableStatus[status] }

// OutcomeKind tags the result of one attempt.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeRetryable
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Outcome is the classified result of a single attempt. Body is set only
// on success; Err is set for every other kind.
type Outcome struct {
	Kind       OutcomeKind
	StatusCode int
	Body       []byte
	Err        error
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Body)
}

// Attempt describes one GET request. Callers build a fresh Attempt per
// try so each one can carry the credential current at that moment.
type Attempt struct {
	// Op labels the call in logs and metrics (e.g. "search", "detail").
	Op       string
	Endpoint string
	Header   http.Header
	Params   url.Values
	// Number is the zero-based attempt index within the call's budget.
	Number int
	// Validate, when set, checks a well-formed 2xx body. An error makes
	// the attempt retryable, like a malformed body.
	Validate func(body []byte) error
}

// URL returns the endpoint with the encoded query parameters.
func (a Attempt) URL() string {
	if len(a.Params) == 0 {
		return a.Endpoint
	}
	return a.Endpoint + "?" + a.Params.Encode()
}

// Response is the body of a successful call.
type Response struct {
	StatusCode int
	Body       []byte
	// Attempts is how many attempts the call took, including the successful one.
	Attempts int
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Config holds the executor settings.
type Config struct {
	// BackoffBase is multiplied by 2^attempt to get the wait before a retry.
	BackoffBase time.Duration
	// BackoffCap bounds a single wait. Zero disables the cap.
	BackoffCap time.Duration
	// RequestsPerSecond, when positive, paces every attempt through a
	// token bucket with a burst of one.
	RequestsPerSecond float64
	// UserAgent is set on requests that do not carry one.
	UserAgent string
}

// Executor issues classified GET attempts and retries them.
type Executor struct {
	client  *http.Client
	cfg     Config
	limiter *rate.Limiter
	logger  zerolog.Logger

	// sleep waits for d or until ctx is done. Tests replace it.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor returns an executor that sends requests through client.
func NewExecutor(client *http.Client, cfg Config, logger zerolog.Logger) *Executor {
	e := &Executor{
		client: client,
		cfg:    cfg,
		logger: logger,
		sleep:  SleepContext,
	}
	if cfg.RequestsPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return e
}

// Backoff returns the wait before the retry that follows the given
// zero-based retry index: base·2^attempt, capped.
func (e *Executor) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := math.Pow(2, float64(attempt)) * float64(e.cfg.BackoffBase)
	if e.cfg.BackoffCap > 0 && d >= float64(e.cfg.BackoffCap) {
		return e.cfg.BackoffCap
	}
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Wait blocks for Backoff(attempt) and records the retry. It returns
// ctx.Err() if the context ends first.
func (e *Executor) Wait(ctx context.Context, op string, attempt int) error {
	d := e.Backoff(attempt)
	metrics.Retries.WithLabelValues(op).Inc()
	metrics.BackoffSeconds.WithLabelValues(op).Observe(d.Seconds())
	e.logger.Debug().
		Str("op", op).
		Int("attempt", attempt).
		Dur("backoff", d).
		Msg("retrying after backoff")
	return e.sleep(ctx, d)
}

// Do performs a single attempt and classifies it. It never retries.
func (e *Executor) Do(ctx context.Context, a Attempt) Outcome {
	out := e.do(ctx, a)
	metrics.Attempts.WithLabelValues(a.Op, out.Kind.String()).Inc()
	if out.Kind != OutcomeSuccess {
		e.logger.Debug().
			Str("op", a.Op).
			Int("attempt", a.Number).
			Int("status_code", out.StatusCode).
			Str("outcome", out.Kind.String()).
			Err(out.Err).
			Msg("attempt failed")
	}
	return out
}

func (e *Executor) do(ctx context.Context, a Attempt) Outcome {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return Outcome{Kind: OutcomeFatal, Err: fmt.Errorf("rate limiter wait: %w", err)}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL(), nil)
	if err != nil {
		return Outcome{Kind: OutcomeFatal, Err: fmt.Errorf("creating request: %w", err)}
	}
	for k, vs := range a.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("User-Agent") == "" && e.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", e.cfg.UserAgent)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{Kind: OutcomeFatal, Err: ctx.Err()}
		}
		return Outcome{Kind: OutcomeRetryable, Err: fmt.Errorf("%s request: %w", a.Op, err)}
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &StatusError{Op: a.Op, StatusCode: resp.StatusCode, Body: snippet(body)}
		if IsRetryableStatus(resp.StatusCode) {
			return Outcome{Kind: OutcomeRetryable, StatusCode: resp.StatusCode, Err: serr}
		}
		return Outcome{Kind: OutcomeFatal, StatusCode: resp.StatusCode, Err: serr}
	}

	if readErr != nil {
		if ctx.Err() != nil {
			return Outcome{Kind: OutcomeFatal, StatusCode: resp.StatusCode, Err: ctx.Err()}
		}
		return Outcome{Kind: OutcomeRetryable, StatusCode: resp.StatusCode, Err: fmt.Errorf("reading %s response: %w", a.Op, readErr)}
	}
	if !json.Valid(body) {
		return Outcome{Kind: OutcomeRetryable, StatusCode: resp.StatusCode, Err: fmt.Errorf("parsing %s response: malformed JSON body", a.Op)}
	}
	if a.Validate != nil {
		if err := a.Validate(body); err != nil {
			return Outcome{Kind: OutcomeRetryable, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected %s response shape: %w", a.Op, err)}
		}
	}
	return Outcome{Kind: OutcomeSuccess, StatusCode: resp.StatusCode, Body: body}
}

// Execute runs one logical call of at most budget attempts. build is
// invoked once per attempt with the zero-based attempt number. A success
// returns immediately; a fatal outcome returns its error without spending
// the remaining budget; retryable outcomes wait Backoff(n) and try again.
// When the budget is spent the error wraps ErrRetryExhausted and the last
// attempt's error.
func (e *Executor) Execute(ctx context.Context, budget int, build func(n int) Attempt) (*Response, error) {
	if budget < 1 {
		budget = 1
	}

	var (
		last Outcome
		op   string
	)
	for n := 0; n < budget; n++ {
		if n > 0 {
			if err := e.Wait(ctx, op, n-1); err != nil {
				return nil, err
			}
		}

		a := build(n)
		a.Number = n
		op = a.Op

		last = e.Do(ctx, a)
		switch last.Kind {
		case OutcomeSuccess:
			if n > 0 {
				e.logger.Info().Str("op", op).Int("attempts", n+1).Msg("request succeeded after retry")
			}
			return &Response{StatusCode: last.StatusCode, Body: last.Body, Attempts: n + 1}, nil
		case OutcomeFatal:
			return nil, last.Err
		}
	}

	metrics.Exhausted.WithLabelValues(op).Inc()
	e.logger.Warn().
		Str("op", op).
		Int("max_attempts", budget).
		Err(last.Err).
		Msg("retry attempts exhausted")
	return nil, fmt.Errorf("%s: %w after %d attempts: %w", op, ErrRetryExhausted, budget, last.Err)
}

// SleepContext waits for d or until ctx is done, returning ctx.Err() in
// the latter case. Non-positive durations return immediately.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// snippet trims a response body for inclusion in an error message.
func snippet(body []byte) string {
	const limit = 200
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit]) + "..."
}
