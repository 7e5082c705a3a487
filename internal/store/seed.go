package store

import (
	"context"
	"fmt"

	"github.com/lib/pq"
)

// DemoTenantID is the tenant used by `assess seed` and local development.
const DemoTenantID = "00000000-0000-0000-0000-000000000001"

// SeedDemo loads a small estate into the inventory for the demo tenant:
// a three-tier application plus a pair of orphaned servers. Idempotent.
func (s *Store) SeedDemo(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	assets := []struct {
		name, hostname, ip, os, osVersion, env, app, owner, status string
		cpu, memMB, diskGB                                         int
		tags                                                       []string
	}{
		{"Web frontend", "web-01", "10.0.1.10", "Ubuntu", "22.04", "production", "storefront", "platform-team", "active", 4, 8192, 100, []string{"web", "tier:frontend"}},
		{"App server", "app-01", "10.0.1.20", "RHEL", "8.6", "production", "storefront", "platform-team", "active", 8, 16384, 200, []string{"app", "tier:middle"}},
		{"Orders DB", "db-01", "10.0.1.30", "RHEL", "7.9", "production", "storefront", "dba-team", "active", 16, 65536, 2000, []string{"db", "tier:data"}},
		{"Legacy reports", "rpt-01", "10.0.2.15", "Windows Server", "2008 R2", "production", "reporting", "", "active", 4, 8192, 500, []string{"legacy"}},
		{"Dev sandbox", "dev-99", "10.0.9.99", "Ubuntu", "20.04", "development", "", "", "unknown", 2, 4096, 50, nil},
	}

	hostToID := make(map[string]string, len(assets))
	for _, a := range assets {
		var assetID string
		err := tx.QueryRowContext(ctx,
			`INSERT INTO assess.assets
			     (tenant_id, name, hostname, ip_address, os, os_version, environment,
			      cpu_cores, memory_mb, storage_gb, application, owner, status, tags)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			 ON CONFLICT (tenant_id, hostname, ip_address) DO UPDATE SET name = EXCLUDED.name
			 RETURNING asset_id::text`,
			DemoTenantID, a.name, a.hostname, a.ip, a.os, a.osVersion, a.env,
			a.cpu, a.memMB, a.diskGB, a.app, a.owner, a.status, pq.Array(a.tags)).Scan(&assetID)
		if err != nil {
			return fmt.Errorf("failed to seed asset %s: %w", a.hostname, err)
		}
		hostToID[a.hostname] = assetID
	}

	deps := []struct{ src, dst, depType string }{
		{"web-01", "app-01", "application"},
		{"app-01", "db-01", "data"},
		{"rpt-01", "db-01", "data"},
	}
	for _, d := range deps {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO assess.asset_dependencies (tenant_id, source_asset_id, target_asset_id, dep_type)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (tenant_id, source_asset_id, target_asset_id, dep_type) DO NOTHING`,
			DemoTenantID, hostToID[d.src], hostToID[d.dst], d.depType)
		if err != nil {
			return fmt.Errorf("failed to seed dependency %s -> %s: %w", d.src, d.dst, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit demo seed: %w", err)
	}
	return nil
}
