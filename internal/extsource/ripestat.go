// Package extsource wraps the two HTTPS dependencies enrichment relies on:
// RIPEstat's prefix-overview endpoint (origin ASN/holder lookups) and
// PeeringDB's ix/ixlan/ixpfx endpoints (IXP prefix discovery). Both wrap
// their HTTP calls in a timing metric and report any failure as an
// *errs.ExternalSourceError: the enricher treats it as "no data" for that
// host, while the IXP updater abandons the current refresh pass.
package extsource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/richtraceroute/enrichmentd/internal/errs"
	"github.com/richtraceroute/enrichmentd/internal/ipinfo"
	"github.com/richtraceroute/enrichmentd/internal/metrics"
)

const ripeStatBaseURL = "https://stat.ripe.net/data/prefix-overview/data.json"

// RIPEStatClient queries the prefix-overview service for a resource's
// announced prefix and origin ASNs.
type RIPEStatClient struct {
	httpClient *http.Client
	logger     *zap.Logger
	baseURL    string
}

// NewRIPEStatClient builds a client with no per-request retry: the
// original project does not wrap prefix-overview calls in the PeeringDB
// retry/backoff strategy, only a plain request, so a single attempt per
// lookup is faithful here.
func NewRIPEStatClient(logger *zap.Logger) *RIPEStatClient {
	return &RIPEStatClient{
		httpClient: &http.Client{},
		logger:     logger,
		baseURL:    ripeStatBaseURL,
	}
}

type ripeStatResponse struct {
	Status string `json:"status"`
	Data   struct {
		Resource string `json:"resource"`
		ASNs     []struct {
			ASN    int64  `json:"asn"`
			Holder string `json:"holder"`
		} `json:"asns"`
	} `json:"data"`
}

// PrefixOverview resolves the origin ASNs announcing ip's covering prefix.
// A non-"ok" status, an HTTP failure, or any decode error all yield
// (nil, err) where err wraps errs.ExternalSourceError; callers treat that
// identically to "no data available".
func (c *RIPEStatClient) PrefixOverview(ctx context.Context, ip string) (*ipinfo.IPDBInfo, error) {
	var result *ipinfo.IPDBInfo
	err := metrics.TimeCtx(ctx, metrics.ExternalSourceDuration.WithLabelValues("ripestat"), func(ctx context.Context) error {
		url := fmt.Sprintf("%s?resource=%s", c.baseURL, ip)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		var parsed ripeStatResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return err
		}

		if parsed.Status != "ok" {
			return fmt.Errorf("ripestat status %q for %s", parsed.Status, ip)
		}

		origins := make([]ipinfo.Origin, 0, len(parsed.Data.ASNs))
		for _, a := range parsed.Data.ASNs {
			origins = append(origins, ipinfo.Origin{ASN: a.ASN, Holder: a.Holder})
		}

		result = &ipinfo.IPDBInfo{
			Prefix:  parsed.Data.Resource,
			Origins: origins,
		}
		return nil
	})
	if err != nil {
		metrics.ExternalSourceErrorsTotal.WithLabelValues("ripestat").Inc()
		c.logger.Debug("ripestat query failed", zap.String("ip", ip), zap.Error(err))
		return nil, errs.NewExternalSourceError("ripestat", err)
	}
	return result, nil
}
