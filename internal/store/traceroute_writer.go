package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/richtraceroute/enrichmentd/internal/errs"
	"github.com/richtraceroute/enrichmentd/internal/metrics"
	"github.com/richtraceroute/enrichmentd/internal/traceroute"
)

// CreateTraceroute persists a freshly parsed traceroute: the traceroute
// row itself, and one hosts row per hop host (hops with no replies leave
// no rows, which is how "no hop N hosts" is represented downstream).
func (s *Store) CreateTraceroute(ctx context.Context, tr *traceroute.Traceroute, parserName string) error {
	start := time.Now()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO traceroutes (id, raw, parser_name, created_at, last_seen_at, parsed)
		VALUES ($1, $2, $3, $4, $4, true)`,
		tr.ID, tr.Raw, parserName, tr.Created,
	)
	if err != nil {
		return fmt.Errorf("insert traceroute: %w", err)
	}

	for _, hop := range tr.Hops {
		for _, host := range hop.Hosts {
			_, err := tx.Exec(ctx, `
				INSERT INTO hosts (id, traceroute_id, hop_number, original_host)
				VALUES ($1, $2, $3, $4)`,
				host.ID, tr.ID, hop.HopNumber, host.OriginalHost,
			)
			if err != nil {
				return fmt.Errorf("insert host %s: %w", host.ID, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	metrics.DBWriteDuration.WithLabelValues("create_traceroute").Observe(time.Since(start).Seconds())
	return nil
}

// MarkEnrichmentCompleted flips a traceroute's enriched flag once every
// host it contains has been processed by an Enricher.
func (s *Store) MarkEnrichmentCompleted(ctx context.Context, tracerouteID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE traceroutes SET enriched = true, enrichment_completed_at = $2
		WHERE id = $1`,
		tracerouteID, at,
	)
	if err != nil {
		return fmt.Errorf("mark enrichment completed: %w", err)
	}
	return nil
}

// MarkEnrichmentStarted records when enrichment of a traceroute started;
// later calls leave the first recorded time in place.
func (s *Store) MarkEnrichmentStarted(ctx context.Context, tracerouteID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE traceroutes SET enrichment_started_at = $2
		WHERE id = $1 AND enrichment_started_at IS NULL`,
		tracerouteID, at,
	)
	if err != nil {
		return fmt.Errorf("mark enrichment started: %w", err)
	}
	return nil
}

// GetTraceroute loads a traceroute with all of its hops and hosts. Only
// the hosts rows are read: each host's origins and IXP membership are not
// loaded and stay empty.
func (s *Store) GetTraceroute(ctx context.Context, id string) (*traceroute.Traceroute, error) {
	tr := &traceroute.Traceroute{ID: id}

	row := s.pool.QueryRow(ctx, `
		SELECT raw, created_at, last_seen_at, parsed, enriched, enrichment_started_at, enrichment_completed_at
		FROM traceroutes WHERE id = $1`, id)

	if err := row.Scan(&tr.Raw, &tr.Created, &tr.LastSeen, &tr.Parsed, &tr.Enriched, &tr.EnrichmentStarted, &tr.EnrichmentCompleted); err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("get traceroute %s: %w", id, errs.ErrTracerouteNotFound)
		}
		return nil, fmt.Errorf("get traceroute %s: %w", id, err)
	}

	hostsByHop, err := s.loadHosts(ctx, id)
	if err != nil {
		return nil, err
	}

	for hopN := 1; hopN <= len(hostsByHop); hopN++ {
		tr.Hops = append(tr.Hops, &traceroute.Hop{
			TracerouteID: id,
			HopNumber:    hopN,
			Hosts:        hostsByHop[hopN],
		})
	}

	return tr, nil
}

func (s *Store) loadHosts(ctx context.Context, tracerouteID string) (map[int][]*traceroute.Host, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, hop_number, original_host, avg_rtt, min_rtt, max_rtt, loss, host(ip), name, enriched
		FROM hosts WHERE traceroute_id = $1
		ORDER BY hop_number, id`, tracerouteID)
	if err != nil {
		return nil, fmt.Errorf("query hosts: %w", err)
	}
	defer rows.Close()

	byHop := make(map[int][]*traceroute.Host)
	maxHop := 0

	for rows.Next() {
		h := &traceroute.Host{}
		var ip *string
		if err := rows.Scan(&h.ID, &h.HopNumber, &h.OriginalHost, &h.AvgRTT, &h.MinRTT, &h.MaxRTT, &h.Loss, &ip, &h.Name, &h.Enriched); err != nil {
			return nil, fmt.Errorf("scan host: %w", err)
		}
		h.IP = ip
		byHop[h.HopNumber] = append(byHop[h.HopNumber], h)
		if h.HopNumber > maxHop {
			maxHop = h.HopNumber
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hosts: %w", err)
	}

	for hopN := 1; hopN <= maxHop; hopN++ {
		if _, ok := byHop[hopN]; !ok {
			byHop[hopN] = nil
		}
	}

	return byHop, nil
}
