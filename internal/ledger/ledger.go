// Package ledger talks to the Autumn usage ledger that meters AI credits and
// decides log-retention tiers.
//
// When no secret key is configured every check is allowed and nothing is
// reserved, so self-hosted installs run unmetered.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/janburzinski/notra/common/logger"
	"github.com/janburzinski/notra/core/config"
	"github.com/janburzinski/notra/internal/metrics"
)

const (
	FeatureAICredits        = "ai_credits"
	FeatureLogRetention30   = "log_retention_30_days"
	FeatureLogRetention90   = "log_retention_90_days"
	DefaultRetentionDays    = 7
	UnmeteredRetentionDays  = 30
	contentGenerationAmount = 1
)

// Reservation is the outcome of reserving credit for one run.
// Reserved is true only when the ledger actually recorded usage, which is
// the only case that needs a refund.
type Reservation struct {
	Allowed  bool     `json:"allowed"`
	Reserved bool     `json:"reserved"`
	Balance  *float64 `json:"balance,omitempty"`
}

// APIError is a non-2xx answer from the ledger.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ledger: status %d: %s", e.StatusCode, e.Body)
}

type Gateway struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
	executor   failsafe.Executor[*http.Response]
	// reserveExecutor only retries requests that never reached the ledger,
	// since a check with send_event records usage.
	reserveExecutor failsafe.Executor[*http.Response]
	logger     *slog.Logger
}

func New(cfg config.LedgerConfig, log *slog.Logger) *Gateway {
	if log == nil {
		log = slog.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	retry := retrypolicy.NewBuilder[*http.Response]().
		WithBackoff(200*time.Millisecond, 2*time.Second).
		WithMaxRetries(max(cfg.MaxRetries, 0)).
		WithJitterFactor(0.1).
		HandleIf(shouldRetry).
		ReturnLastFailure().
		Build()

	unsent := retrypolicy.NewBuilder[*http.Response]().
		WithBackoff(200*time.Millisecond, 2*time.Second).
		WithMaxRetries(max(cfg.MaxRetries, 0)).
		WithJitterFactor(0.1).
		HandleIf(notSent).
		ReturnLastFailure().
		Build()

	return &Gateway{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		secretKey:       cfg.SecretKey,
		httpClient:      &http.Client{Timeout: timeout},
		executor:        failsafe.With[*http.Response](retry),
		reserveExecutor: failsafe.With[*http.Response](unsent),
		logger:          log,
	}
}

func (g *Gateway) Enabled() bool {
	return g != nil && g.secretKey != ""
}

type checkRequest struct {
	CustomerID      string `json:"customer_id"`
	FeatureID       string `json:"feature_id"`
	RequiredBalance int    `json:"required_balance,omitempty"`
	SendEvent       bool   `json:"send_event,omitempty"`
}

type checkResponse struct {
	Allowed bool     `json:"allowed"`
	Balance *float64 `json:"balance"`
}

type trackRequest struct {
	CustomerID string `json:"customer_id"`
	FeatureID  string `json:"feature_id"`
	Value      int    `json:"value"`
}

// Reserve checks and records one unit of featureID for the customer.
// A denied check is not an error. Transport and ledger failures are.
func (g *Gateway) Reserve(ctx context.Context, customerID, featureID string) (Reservation, error) {
	if !g.Enabled() {
		return Reservation{Allowed: true, Reserved: false}, nil
	}

	var resp checkResponse
	err := g.send(ctx, g.reserveExecutor, "/v1/check", checkRequest{
		CustomerID:      customerID,
		FeatureID:       featureID,
		RequiredBalance: contentGenerationAmount,
		SendEvent:       true,
	}, &resp)
	metrics.RecordCreditOperation("reserve", err)
	if err != nil {
		return Reservation{}, fmt.Errorf("check %s: %w", featureID, err)
	}

	return Reservation{Allowed: resp.Allowed, Reserved: resp.Allowed, Balance: resp.Balance}, nil
}

// Refund compensates a reservation. It never fails the caller; errors are
// logged and counted.
func (g *Gateway) Refund(ctx context.Context, customerID, featureID string) {
	if !g.Enabled() {
		return
	}

	err := g.post(ctx, "/v1/track", trackRequest{
		CustomerID: customerID,
		FeatureID:  featureID,
		Value:      0,
	}, nil)
	metrics.RecordCreditOperation("refund", err)
	if err != nil {
		g.logger.WarnContext(ctx, "credit refund failed",
			"organization_id", customerID,
			"feature_id", featureID,
			"error", err)
	}
}

// RetentionDays resolves how long run logs are kept for the customer.
// It always returns a usable value.
func (g *Gateway) RetentionDays(ctx context.Context, customerID string) int {
	if !g.Enabled() {
		return UnmeteredRetentionDays
	}

	tiers := []struct {
		feature string
		days    int
	}{
		{FeatureLogRetention90, 90},
		{FeatureLogRetention30, 30},
	}

	for _, tier := range tiers {
		var resp checkResponse
		err := g.post(ctx, "/v1/check", checkRequest{CustomerID: customerID, FeatureID: tier.feature}, &resp)
		metrics.RecordCreditOperation("retention", err)
		if err != nil {
			g.logger.WarnContext(ctx, "retention check failed, using default",
				"organization_id", customerID,
				"feature_id", tier.feature,
				"error", err)
			return DefaultRetentionDays
		}
		if resp.Allowed {
			return tier.days
		}
	}

	return DefaultRetentionDays
}

func (g *Gateway) post(ctx context.Context, path string, body, out any) error {
	return g.send(ctx, g.executor, path, body, out)
}

func (g *Gateway) send(ctx context.Context, executor failsafe.Executor[*http.Response], path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "notra.ledger"})

	resp, err := executor.WithContext(ctx).Get(func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+g.secretKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := g.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			defer resp.Body.Close()
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return nil, &APIError{StatusCode: resp.StatusCode, Body: logger.Truncate(string(data), 200)}
		}
		return resp, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// shouldRetry retries transport errors, 429 and 5xx. Canceled contexts and
// other ledger answers are final.
func shouldRetry(_ *http.Response, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return true
}

// notSent retries only dial failures, where the request provably never
// reached the ledger.
func notSent(_ *http.Response, err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
