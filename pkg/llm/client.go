package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"ai-study-portal-be/internal/pkg/logger"
	"ai-study-portal-be/internal/pkg/metrics"
)

const (
	DefaultAttemptTimeout = 30 * time.Second
	DefaultRetryBackoff   = 500 * time.Millisecond

	// maxAttempts is the first call plus exactly one retry
	maxAttempts = 2
)

// ClientConfig bounds provider calls. A zero AttemptTimeout falls back to
// DefaultAttemptTimeout; a zero RetryBackoff retries immediately.
type ClientConfig struct {
	AttemptTimeout time.Duration
	RetryBackoff   time.Duration
}

// Client is the generation client used by the orchestrator. It bounds every
// attempt with a timeout and retries a transient failure exactly once.
type Client struct {
	provider LLMProvider
	cfg      ClientConfig
	logger   logger.ILogger
	metrics  *metrics.Metrics
}

func NewClient(provider LLMProvider, cfg ClientConfig, log logger.ILogger, m *metrics.Metrics) *Client {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	if cfg.RetryBackoff < 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Client{provider: provider, cfg: cfg, logger: log, metrics: m}
}

func (c *Client) ProviderName() string {
	return c.provider.Name()
}

// Generate returns the raw provider text, possibly blank, or an *UpstreamError
func (c *Client) Generate(ctx context.Context, prompt string, opts ...Option) (string, error) {
	var lastErr *UpstreamError

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", TransportError(c.provider.Name(), ctx.Err())
			case <-time.After(c.cfg.RetryBackoff):
			}
		}

		text, err := c.attempt(ctx, prompt, opts)
		if err == nil {
			return text, nil
		}
		lastErr = err

		c.logger.Warn("LLM", "Provider attempt failed", map[string]interface{}{
			"provider":  c.provider.Name(),
			"attempt":   attempt,
			"status":    err.StatusCode,
			"reason":    err.Reason,
			"retryable": err.Retryable,
		})

		if !err.Retryable || ctx.Err() != nil {
			break
		}
	}

	return "", lastErr
}

func (c *Client) attempt(ctx context.Context, prompt string, opts []Option) (string, *UpstreamError) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
	defer cancel()

	start := time.Now()
	text, err := c.provider.Generate(attemptCtx, prompt, opts...)
	elapsed := time.Since(start)

	if err == nil {
		// a blank answer is still an answer; the interpreter decides what it means
		outcome := "ok"
		if strings.TrimSpace(text) == "" {
			outcome = "empty"
		}
		c.metrics.ObserveProviderCall(c.provider.Name(), outcome, elapsed)
		return text, nil
	}

	ue := c.classify(attemptCtx, ctx, err)
	outcome := "error"
	if ue.Retryable {
		outcome = "retryable_error"
	}
	c.metrics.ObserveProviderCall(c.provider.Name(), outcome, elapsed)
	return "", ue
}

// classify normalises whatever the provider returned into an UpstreamError.
// A deadline hit on the attempt context (but not the caller's) is a retryable timeout.
func (c *Client) classify(attemptCtx, parent context.Context, err error) *UpstreamError {
	if parent.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return TransportError(c.provider.Name(), context.DeadlineExceeded)
	}

	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return TransportError(c.provider.Name(), err)
	}
	return ResponseError(c.provider.Name(), "provider failure")
}
