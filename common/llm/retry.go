package llm

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/openai/openai-go"
)

type retryingClient struct {
	next   AgentClient
	policy retrypolicy.RetryPolicy[*AgentResponse]
}

// WithRetry retries rate limits, provider 5xx responses and network errors
// with exponential backoff.
func WithRetry(next AgentClient, maxRetries int) AgentClient {
	policy := retrypolicy.NewBuilder[*AgentResponse]().
		HandleIf(func(_ *AgentResponse, err error) bool {
			return IsRetryable(context.Background(), err)
		}).
		WithMaxRetries(maxRetries).
		WithBackoff(time.Second, 20*time.Second).
		WithJitterFactor(0.2).
		ReturnLastFailure().
		Build()
	return &retryingClient{next: next, policy: policy}
}

func (c *retryingClient) ChatWithTools(ctx context.Context, req AgentRequest) (*AgentResponse, error) {
	return failsafe.With[*AgentResponse](c.policy).
		WithContext(ctx).
		Get(func() (*AgentResponse, error) {
			return c.next.ChatWithTools(ctx, req)
		})
}

func (c *retryingClient) Model() string {
	return c.next.Model()
}

func IsRetryable(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	status := 0
	var openaiErr *openai.Error
	var anthropicErr *anthropic.Error
	switch {
	case errors.As(err, &openaiErr):
		status = openaiErr.StatusCode
	case errors.As(err, &anthropicErr):
		status = anthropicErr.StatusCode
	}

	switch {
	case status == 0:
		slog.WarnContext(ctx, "llm network error, will retry", "error", err)
		return true
	case status == http.StatusTooManyRequests:
		slog.WarnContext(ctx, "llm rate limited, will retry", "status_code", status)
		return true
	case status >= 500:
		slog.WarnContext(ctx, "llm server error, will retry", "status_code", status)
		return true
	default:
		slog.ErrorContext(ctx, "llm client error, not retryable", "status_code", status)
		return false
	}
}
