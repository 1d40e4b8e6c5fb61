// Package partner calls the marketplace procurement API to approve accounts
// and entitlements observed on the event stream.
package partner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/nimbusworks/tenantgate/internal/config"
	"go.uber.org/zap"
)

// API approves procurement resources. Approvals are idempotent on the
// partner side, which is what makes the retry policy safe.
type API interface {
	ApproveAccount(ctx context.Context, accountID string) error
	ApproveEntitlement(ctx context.Context, orderID string) error
}

// New returns the HTTP implementation, or a noop when no base URL is
// configured.
func New(cfg config.Config, log *zap.Logger) API {
	if cfg.PartnerAPIBaseURL == "" {
		log.Named("partner").Info("partner API not configured, approvals disabled")
		return noopAPI{}
	}
	return &httpAPI{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: cfg.PartnerAPIBaseURL,
		log:     log.Named("partner"),
	}
}

type noopAPI struct{}

func (noopAPI) ApproveAccount(context.Context, string) error     { return nil }
func (noopAPI) ApproveEntitlement(context.Context, string) error { return nil }

type httpAPI struct {
	http    *http.Client
	baseURL string
	log     *zap.Logger
}

func (a *httpAPI) ApproveAccount(ctx context.Context, accountID string) error {
	return a.approve(ctx, fmt.Sprintf("%s/accounts/%s:approve", a.baseURL, url.PathEscape(accountID)))
}

func (a *httpAPI) ApproveEntitlement(ctx context.Context, orderID string) error {
	return a.approve(ctx, fmt.Sprintf("%s/entitlements/%s:approve", a.baseURL, url.PathEscape(orderID)))
}

func (a *httpAPI) approve(ctx context.Context, endpoint string) error {
	operation := func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader([]byte("{}")))
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := a.http.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

		switch {
		case resp.StatusCode < 300:
			return struct{}{}, nil
		case resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests:
			return struct{}{}, fmt.Errorf("approval returned %d", resp.StatusCode)
		default:
			return struct{}{}, backoff.Permanent(fmt.Errorf("approval rejected with %d", resp.StatusCode))
		}
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(3),
	)
	if err != nil {
		a.log.Warn("approval failed", zap.String("endpoint", endpoint), zap.Error(err))
	}
	return err
}
