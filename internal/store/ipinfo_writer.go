package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/richtraceroute/enrichmentd/internal/ipinfo"
	"github.com/richtraceroute/enrichmentd/internal/metrics"
)

// SaveIPInfo upserts the prefix row and fully replaces its children
// (origins, IXP network), mirroring the original project's
// IPInfo_Prefix.create_from_ipdbinfo: get-or-create the prefix, then
// delete and recreate every child row rather than attempt a diff. This
// keeps the write idempotent regardless of how many ASNs or whether IXP
// membership changed since the last lookup.
func (s *Store) SaveIPInfo(ctx context.Context, info ipinfo.IPDBInfo) error {
	start := time.Now()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO ip_info_prefixes (prefix, last_updated)
		VALUES ($1, now())
		ON CONFLICT (prefix) DO UPDATE SET last_updated = now()`,
		info.Prefix,
	)
	if err != nil {
		return fmt.Errorf("upsert ip info prefix %s: %w", info.Prefix, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM ip_info_origins WHERE prefix = $1`, info.Prefix); err != nil {
		return fmt.Errorf("clear ip info origins %s: %w", info.Prefix, err)
	}
	for _, o := range info.Origins {
		if _, err := tx.Exec(ctx, `
			INSERT INTO ip_info_origins (prefix, asn, holder) VALUES ($1, $2, $3)`,
			info.Prefix, o.ASN, o.Holder,
		); err != nil {
			return fmt.Errorf("insert ip info origin %s/%d: %w", info.Prefix, o.ASN, err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM ip_info_ixp_networks WHERE prefix = $1`, info.Prefix); err != nil {
		return fmt.Errorf("clear ip info ixp %s: %w", info.Prefix, err)
	}
	if info.IXPNetwork != nil {
		if _, err := tx.Exec(ctx, `
			INSERT INTO ip_info_ixp_networks (prefix, lan_name, ix_name, ix_description)
			VALUES ($1, $2, $3, $4)`,
			info.Prefix, info.IXPNetwork.LANName, info.IXPNetwork.IXName, info.IXPNetwork.IXDescription,
		); err != nil {
			return fmt.Errorf("insert ip info ixp %s: %w", info.Prefix, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	metrics.DBWriteDuration.WithLabelValues("save_ip_info").Observe(time.Since(start).Seconds())
	return nil
}

// LoadAllIPInfo reads every cached prefix, for the trie warm-up an
// Enricher performs on startup.
func (s *Store) LoadAllIPInfo(ctx context.Context) ([]ipinfo.IPDBInfo, []time.Time, error) {
	rows, err := s.pool.Query(ctx, `SELECT prefix, last_updated FROM ip_info_prefixes`)
	if err != nil {
		return nil, nil, fmt.Errorf("query ip info prefixes: %w", err)
	}
	defer rows.Close()

	var prefixes []string
	var updated []time.Time
	for rows.Next() {
		var p string
		var u time.Time
		if err := rows.Scan(&p, &u); err != nil {
			return nil, nil, fmt.Errorf("scan ip info prefix: %w", err)
		}
		prefixes = append(prefixes, p)
		updated = append(updated, u)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate ip info prefixes: %w", err)
	}

	infos := make([]ipinfo.IPDBInfo, 0, len(prefixes))
	for _, p := range prefixes {
		info, err := s.loadIPInfoChildren(ctx, p)
		if err != nil {
			return nil, nil, err
		}
		infos = append(infos, info)
	}
	return infos, updated, nil
}

func (s *Store) loadIPInfoChildren(ctx context.Context, prefix string) (ipinfo.IPDBInfo, error) {
	info := ipinfo.IPDBInfo{Prefix: prefix}

	rows, err := s.pool.Query(ctx, `SELECT asn, holder FROM ip_info_origins WHERE prefix = $1 ORDER BY asn`, prefix)
	if err != nil {
		return info, fmt.Errorf("query ip info origins %s: %w", prefix, err)
	}
	for rows.Next() {
		var o ipinfo.Origin
		if err := rows.Scan(&o.ASN, &o.Holder); err != nil {
			rows.Close()
			return info, fmt.Errorf("scan ip info origin %s: %w", prefix, err)
		}
		info.Origins = append(info.Origins, o)
	}
	rows.Close()

	var ixp ipinfo.IXPNetwork
	row := s.pool.QueryRow(ctx, `SELECT lan_name, ix_name, ix_description FROM ip_info_ixp_networks WHERE prefix = $1`, prefix)
	switch err := row.Scan(&ixp.LANName, &ixp.IXName, &ixp.IXDescription); err {
	case nil:
		info.IXPNetwork = &ixp
	case pgx.ErrNoRows:
	default:
		return info, fmt.Errorf("scan ip info ixp %s: %w", prefix, err)
	}

	return info, nil
}
