package llm

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedProvider struct {
	calls   atomic.Int32
	results []func(ctx context.Context) (string, error)
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Chat(ctx context.Context, history []Message, options ...Option) (string, error) {
	return p.Generate(ctx, history[len(history)-1].Content, options...)
}

func (p *scriptedProvider) Generate(ctx context.Context, prompt string, options ...Option) (string, error) {
	n := int(p.calls.Add(1)) - 1
	if n >= len(p.results) {
		n = len(p.results) - 1
	}
	return p.results[n](ctx)
}

func reply(text string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return text, nil }
}

func fail(err error) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return "", err }
}

func block() func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
}

func TestClientGenerate(t *testing.T) {
	tests := []struct {
		name       string
		results    []func(context.Context) (string, error)
		wantText   string
		wantCalls  int32
		wantStatus int
		wantReason string
	}{
		{
			name:      "first attempt succeeds",
			results:   []func(context.Context) (string, error){reply("hello")},
			wantText:  "hello",
			wantCalls: 1,
		},
		{
			name:      "5xx retried once then succeeds",
			results:   []func(context.Context) (string, error){fail(StatusError("scripted", http.StatusBadGateway)), reply("ok")},
			wantText:  "ok",
			wantCalls: 2,
		},
		{
			name:       "5xx twice surfaces the error",
			results:    []func(context.Context) (string, error){fail(StatusError("scripted", http.StatusServiceUnavailable))},
			wantCalls:  2,
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "4xx is not retried",
			results:    []func(context.Context) (string, error){fail(StatusError("scripted", http.StatusUnauthorized))},
			wantCalls:  1,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "rate limit is not retried",
			results:    []func(context.Context) (string, error){fail(StatusError("scripted", http.StatusTooManyRequests))},
			wantCalls:  1,
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "missing credential fails at first use",
			results:    []func(context.Context) (string, error){fail(MissingCredentialError("scripted"))},
			wantCalls:  1,
			wantReason: ReasonMissingCredential,
		},
		{
			name:       "plain errors become non-retryable failures",
			results:    []func(context.Context) (string, error){fail(errors.New("socket closed"))},
			wantCalls:  1,
			wantReason: "provider failure",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &scriptedProvider{results: tt.results}
			c := NewClient(p, ClientConfig{AttemptTimeout: time.Second}, nil, nil)

			text, err := c.Generate(context.Background(), "prompt")

			assert.Equal(t, tt.wantCalls, p.calls.Load())
			if tt.wantText != "" {
				require.NoError(t, err)
				assert.Equal(t, tt.wantText, text)
				return
			}

			var ue *UpstreamError
			require.ErrorAs(t, err, &ue)
			if tt.wantStatus != 0 {
				assert.Equal(t, tt.wantStatus, ue.StatusCode)
			}
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, ue.Reason)
			}
		})
	}
}

func TestClientPassesBlankTextThrough(t *testing.T) {
	for _, blank := range []string{"", "  \n"} {
		p := &scriptedProvider{results: []func(context.Context) (string, error){reply(blank)}}
		c := NewClient(p, ClientConfig{AttemptTimeout: time.Second}, nil, nil)

		text, err := c.Generate(context.Background(), "prompt")

		require.NoError(t, err)
		assert.Equal(t, blank, text)
		assert.Equal(t, int32(1), p.calls.Load())
	}
}

func TestClientAttemptTimeoutRetriesOnce(t *testing.T) {
	p := &scriptedProvider{results: []func(context.Context) (string, error){block()}}
	c := NewClient(p, ClientConfig{AttemptTimeout: 20 * time.Millisecond, RetryBackoff: 5 * time.Millisecond}, nil, nil)

	_, err := c.Generate(context.Background(), "prompt")

	assert.Equal(t, int32(2), p.calls.Load())
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, ReasonTimeout, ue.Reason)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestClientStopsWhenCallerCancels(t *testing.T) {
	p := &scriptedProvider{results: []func(context.Context) (string, error){block()}}
	c := NewClient(p, ClientConfig{AttemptTimeout: time.Second, RetryBackoff: time.Second}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := c.Generate(ctx, "prompt")
	require.Error(t, err)
	assert.Equal(t, int32(1), p.calls.Load())
	assert.False(t, IsRetryable(err))
}

func TestUpstreamErrorMessage(t *testing.T) {
	err := StatusError("gemini", http.StatusInternalServerError)
	assert.Equal(t, "gemini upstream error (status 500): Internal Server Error", err.Error())
	assert.True(t, err.Retryable)

	assert.Equal(t, "ollama upstream error: credential not configured", MissingCredentialError("ollama").Error())
	assert.False(t, IsRetryable(errors.New("other")))
}
