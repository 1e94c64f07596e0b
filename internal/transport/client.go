// Package transport implements the generic HTTP fetch used by every poller:
// per-host rate limiting, retry with exponential backoff and jitter, and a
// hard per-source deadline, per spec §4.B.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/seismicfusion/eqfusion/internal/domain"
	"github.com/seismicfusion/eqfusion/internal/observability"
)

// RetryPolicy configures the backoff schedule for one source.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration // default 1s
	CapDelay   time.Duration // default 30s
	Timeout    time.Duration // total per-source deadline
}

// DefaultRetryPolicy applies spec §4.B's defaults, overriding MaxRetries and
// Timeout with the values from the source registry entry.
func DefaultRetryPolicy(maxRetries int, timeout time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxRetries: maxRetries,
		BaseDelay:  time.Second,
		CapDelay:   30 * time.Second,
		Timeout:    timeout,
	}
}

// RetryOverride holds config-driven overrides (spec §6's
// retry.max_attempts/retry.base_ms/retry.cap_ms/timeout_ms options) for a
// RetryPolicy otherwise built from a registry source's tuned values. A nil
// field leaves the registry's own value in force, so a zero-value
// RetryOverride is a complete no-op.
type RetryOverride struct {
	MaxRetries *int
	BaseDelay  *time.Duration
	CapDelay   *time.Duration
	Timeout    *time.Duration
}

// Apply layers o onto base, returning a policy with every set field in o
// substituted in place of base's.
func (o RetryOverride) Apply(base RetryPolicy) RetryPolicy {
	if o.MaxRetries != nil {
		base.MaxRetries = *o.MaxRetries
	}
	if o.BaseDelay != nil {
		base.BaseDelay = *o.BaseDelay
	}
	if o.CapDelay != nil {
		base.CapDelay = *o.CapDelay
	}
	if o.Timeout != nil {
		base.Timeout = *o.Timeout
	}
	return base
}

// Client performs rate-limited, retrying HTTP fetches. The per-host token
// bucket is the only shared mutable state in the whole core (spec §5), and
// it must be constructed once and injected, never held as a package
// singleton.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
	clock      clockwork.Clock

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewClient creates a transport client. httpClient may be nil, in which case
// a new zero-value http.Client is used with per-request context deadlines.
// metrics may be nil, in which case per-attempt counters are skipped.
func NewClient(httpClient *http.Client, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		metrics:    metrics,
		clock:      clockwork.NewRealClock(),
		limiters:   make(map[string]*rate.Limiter),
	}
}

// SetClock overrides the clock used for attempt timestamps and jitter
// sleeps, for deterministic tests.
func (c *Client) SetClock(clk clockwork.Clock) {
	c.clock = clk
}

// limiterFor returns (creating if needed) the token bucket for source,
// sized so one token refills every minPollInterval.
func (c *Client) limiterFor(source string, minPollInterval time.Duration) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	if l, ok := c.limiters[source]; ok {
		return l
	}
	every := minPollInterval
	if every <= 0 {
		every = time.Second
	}
	l := rate.NewLimiter(rate.Every(every), 1)
	c.limiters[source] = l
	return l
}

// Fetch performs one rate-limited, retried HTTP GET against url, honoring
// policy.Timeout as a hard total deadline and policy.MaxRetries as the retry
// budget for network errors and HTTP 5xx/429 responses. Any other 4xx status
// is returned immediately without retry.
func (c *Client) Fetch(ctx context.Context, source, url string, minPollInterval time.Duration, policy RetryPolicy) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, policy.Timeout)
	defer cancel()

	limiter := c.limiterFor(source, minPollInterval)

	bo := &backoff.ExponentialBackOff{
		InitialInterval:     policy.BaseDelay,
		RandomizationFactor: 0.2,
		Multiplier:          2,
		MaxInterval:         policy.CapDelay,
		MaxElapsedTime:      0, // we bound attempts ourselves, not elapsed time
		Clock:               c.clock,
	}
	bo.Reset()

	var lastErr *domain.FetchError

	for attempt := 1; attempt <= policy.MaxRetries+1; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			c.recordFailure(source, domain.FetchTimeout)
			return nil, &domain.FetchError{Source: source, Kind: domain.FetchTimeout, Attempt: attempt, Err: err}
		}

		start := c.clock.Now()
		body, kind, err := c.attempt(ctx, url)
		latency := c.clock.Now().Sub(start)

		if err == nil {
			c.logger.Info("fetch attempt", "source", source, "attempt", attempt, "latency_ms", latency.Milliseconds(), "outcome", "ok")
			return body, nil
		}

		c.logger.Warn("fetch attempt", "source", source, "attempt", attempt, "latency_ms", latency.Milliseconds(), "outcome", kind, "error", err)
		lastErr = &domain.FetchError{Source: source, Kind: kind, Attempt: attempt, Err: err}

		if ctx.Err() != nil {
			c.recordFailure(source, domain.FetchTimeout)
			return nil, &domain.FetchError{Source: source, Kind: domain.FetchTimeout, Attempt: attempt, Err: ctx.Err()}
		}
		if !retryable(kind) {
			c.recordFailure(source, kind)
			return nil, lastErr
		}
		if attempt == policy.MaxRetries+1 {
			break
		}

		delay := bo.NextBackOff()
		if delay == backoff.Stop {
			break
		}
		if !sleepWithContext(ctx, c.clock, delay) {
			c.recordFailure(source, domain.FetchTimeout)
			return nil, &domain.FetchError{Source: source, Kind: domain.FetchTimeout, Attempt: attempt, Err: ctx.Err()}
		}
		if c.metrics != nil {
			c.metrics.FetchRetries.WithLabelValues(source).Inc()
		}
	}

	c.recordFailure(source, lastErr.Kind)
	return nil, lastErr
}

// recordFailure increments the fetch-failures counter once a fetch has
// definitively failed (retries exhausted, or a non-retryable outcome).
func (c *Client) recordFailure(source string, kind domain.FetchErrorKind) {
	if c.metrics != nil {
		c.metrics.FetchFailures.WithLabelValues(source, string(kind)).Inc()
	}
}

func retryable(kind domain.FetchErrorKind) bool {
	switch kind {
	case domain.FetchNetwork, domain.FetchHTTP5xx, domain.FetchRateLimited:
		return true
	default:
		return false
	}
}

func (c *Client) attempt(ctx context.Context, url string) ([]byte, domain.FetchErrorKind, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, domain.FetchNetwork, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, domain.FetchTimeout, err
		}
		return nil, domain.FetchNetwork, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.FetchNetwork, fmt.Errorf("read body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, domain.FetchRateLimited, fmt.Errorf("status %d", resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, domain.FetchHTTP5xx, fmt.Errorf("status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, domain.FetchHTTP4xx, fmt.Errorf("status %d", resp.StatusCode)
	}

	return body, "", nil
}

// sleepWithContext sleeps for d on clk, adding up to ±20% jitter already
// baked into d by the backoff generator, returning false if ctx is
// cancelled first. Using the injected clock (rather than time.NewTimer)
// keeps retry backoff controllable by SetClock in tests.
func sleepWithContext(ctx context.Context, clk clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-clk.After(d):
		return true
	}
}
