package store

import (
	"context"
	"fmt"
	"time"

	"github.com/richtraceroute/enrichmentd/internal/ipinfo"
	"github.com/richtraceroute/enrichmentd/internal/metrics"
)

// UpdateHostEnrichment records the result of enriching a single host: its
// resolved IP/name (if any) and, when the IP matched a cached IP-info
// entry, that entry's origin ASNs and IXP membership. Origins/IXP rows are
// fully replaced (delete then recreate) rather than diffed, matching the
// IP-info prefix writer's own pattern and keeping "what this host now
// knows" trivially correct even when origins change between enrichments.
func (s *Store) UpdateHostEnrichment(ctx context.Context, hostID string, ip, name *string, origins []ipinfo.Origin, ixp *ipinfo.IXPNetwork) error {
	start := time.Now()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE hosts SET ip = $2, name = $3, enriched = true
		WHERE id = $1`,
		hostID, ip, name,
	)
	if err != nil {
		return fmt.Errorf("update host %s: %w", hostID, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM host_origins WHERE host_id = $1`, hostID); err != nil {
		return fmt.Errorf("clear host origins %s: %w", hostID, err)
	}
	for _, o := range origins {
		if _, err := tx.Exec(ctx, `
			INSERT INTO host_origins (host_id, asn, holder) VALUES ($1, $2, $3)`,
			hostID, o.ASN, o.Holder,
		); err != nil {
			return fmt.Errorf("insert host origin %s/%d: %w", hostID, o.ASN, err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM host_ixp_networks WHERE host_id = $1`, hostID); err != nil {
		return fmt.Errorf("clear host ixp %s: %w", hostID, err)
	}
	if ixp != nil {
		if _, err := tx.Exec(ctx, `
			INSERT INTO host_ixp_networks (host_id, lan_name, ix_name, ix_description)
			VALUES ($1, $2, $3, $4)`,
			hostID, ixp.LANName, ixp.IXName, ixp.IXDescription,
		); err != nil {
			return fmt.Errorf("insert host ixp %s: %w", hostID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	metrics.DBWriteDuration.WithLabelValues("update_host_enrichment").Observe(time.Since(start).Seconds())
	return nil
}
