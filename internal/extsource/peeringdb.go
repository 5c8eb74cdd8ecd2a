package extsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/richtraceroute/enrichmentd/internal/errs"
	"github.com/richtraceroute/enrichmentd/internal/metrics"
)

const (
	peeringDBIXURL    = "https://www.peeringdb.com/api/ix"
	peeringDBIXLANURL = "https://www.peeringdb.com/api/ixlan"
	peeringDBIXPFXURL = "https://www.peeringdb.com/api/ixpfx"

	peeringDBMaxRetries    = 3
	peeringDBBackoffFactor = 3
	peeringDBRequestTotal  = 30 * time.Second
)

var peeringDBRetryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// PeeringDBClient queries the ix/ixlan/ixpfx endpoints with a bounded
// retry policy: up to 3 retries on 429/500/502/503/504, exponential
// backoff with factor 3 between attempts, and a 30s total timeout per
// request attempt. A limiter throttles outbound calls so a burst of
// retries across endpoints doesn't itself trip PeeringDB's rate limiting.
type PeeringDBClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger

	ixURL, ixlanURL, ixpfxURL string
	minBackoff                time.Duration
}

// NewPeeringDBClient builds a client allowing at most 2 requests/second,
// enough headroom for the 3-endpoint-per-refresh workload without
// hammering PeeringDB during retries.
func NewPeeringDBClient(logger *zap.Logger) *PeeringDBClient {
	return &PeeringDBClient{
		httpClient: &http.Client{Timeout: peeringDBRequestTotal},
		limiter:    rate.NewLimiter(rate.Limit(2), 2),
		logger:     logger,
		ixURL:      peeringDBIXURL,
		ixlanURL:   peeringDBIXLANURL,
		ixpfxURL:   peeringDBIXPFXURL,
		minBackoff: peeringDBBackoffFactor * time.Second,
	}
}

// NewTestPeeringDBClient builds a client pointed at arbitrary URLs with a
// shortened backoff, for use by other packages' tests that need a real
// PeeringDBClient against an httptest server.
func NewTestPeeringDBClient(logger *zap.Logger, ixURL, ixlanURL, ixpfxURL string, minBackoff time.Duration) *PeeringDBClient {
	c := NewPeeringDBClient(logger)
	c.ixURL = ixURL
	c.ixlanURL = ixlanURL
	c.ixpfxURL = ixpfxURL
	c.minBackoff = minBackoff
	return c
}

type peeringDBResponse struct {
	Data []json.RawMessage `json:"data"`
}

// IXData returns the raw "ix" list.
func (c *PeeringDBClient) IXData(ctx context.Context) ([]json.RawMessage, error) {
	return c.query(ctx, c.ixURL)
}

// IXLANData returns the raw "ixlan" list.
func (c *PeeringDBClient) IXLANData(ctx context.Context) ([]json.RawMessage, error) {
	return c.query(ctx, c.ixlanURL)
}

// IXPFXData returns the raw "ixpfx" list.
func (c *PeeringDBClient) IXPFXData(ctx context.Context) ([]json.RawMessage, error) {
	return c.query(ctx, c.ixpfxURL)
}

func (c *PeeringDBClient) query(ctx context.Context, url string) ([]json.RawMessage, error) {
	var result []json.RawMessage
	err := metrics.TimeCtx(ctx, metrics.ExternalSourceDuration.WithLabelValues("peeringdb"), func(ctx context.Context) error {
		body, err := c.getWithRetry(ctx, url)
		if err != nil {
			return err
		}
		var parsed peeringDBResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return fmt.Errorf("decode %s: %w", url, err)
		}
		result = parsed.Data
		return nil
	})
	if err != nil {
		metrics.ExternalSourceErrorsTotal.WithLabelValues("peeringdb").Inc()
		c.logger.Debug("peeringdb query failed", zap.String("url", url), zap.Error(err))
		return nil, errs.NewExternalSourceError("peeringdb", err)
	}
	return result, nil
}

func (c *PeeringDBClient) getWithRetry(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= peeringDBMaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.minBackoff * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if peeringDBRetryableStatus[resp.StatusCode] {
			resp.Body.Close()
			lastErr = fmt.Errorf("retryable status %d from %s", resp.StatusCode, url)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
		}

		defer resp.Body.Close()
		return io.ReadAll(resp.Body)
	}

	return nil, lastErr
}
