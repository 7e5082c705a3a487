// Package inventory manages the canonical asset inventory and the analyses
// computed over it: dependency graphs, technical-debt findings, readiness
// scores, and migration recommendations.
package inventory

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"ai-force-assess/internal/store"
)

// Repository is the persistence boundary for inventory data. The Postgres
// implementation backs production; the memory implementation backs mock mode
// and tests.
type Repository interface {
	UpsertAssets(ctx context.Context, assets []store.Asset) ([]store.Asset, error)
	GetAsset(ctx context.Context, tenantID, assetID string) (*store.Asset, error)
	ListAssets(ctx context.Context, tenantID string, filter AssetFilter) ([]store.Asset, error)
	SaveDependencies(ctx context.Context, deps []store.AssetDependency) error
	ListDependencies(ctx context.Context, tenantID string) ([]store.AssetDependency, error)
	ReplaceTechDebtFindings(ctx context.Context, tenantID, assetID string, findings []store.TechDebtFinding) error
	ListTechDebtFindings(ctx context.Context, tenantID string) ([]store.TechDebtFinding, error)
	ReplaceRecommendation(ctx context.Context, rec store.Recommendation) error
	ListRecommendations(ctx context.Context, tenantID string) ([]store.Recommendation, error)
}

// AssetFilter narrows ListAssets results.
type AssetFilter struct {
	Environment string
	Application string
	Status      string
	BatchID     string
}

// PostgresRepository implements Repository on the assess schema.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository wraps an existing connection.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// assetRow mirrors assess.assets for sqlx scanning. Tags need pq.StringArray,
// which the public Asset type does not expose.
type assetRow struct {
	AssetID      string         `db:"asset_id"`
	TenantID     string         `db:"tenant_id"`
	BatchID      *string        `db:"batch_id"`
	Name         string         `db:"name"`
	Hostname     string         `db:"hostname"`
	IPAddress    string         `db:"ip_address"`
	OS           string         `db:"os"`
	OSVersion    string         `db:"os_version"`
	Environment  string         `db:"environment"`
	CPUCores     int            `db:"cpu_cores"`
	MemoryMB     int            `db:"memory_mb"`
	StorageGB    int            `db:"storage_gb"`
	Application  string         `db:"application"`
	Owner        string         `db:"owner"`
	Location     string         `db:"location"`
	Status       string         `db:"status"`
	Tags         pq.StringArray `db:"tags"`
	Attributes   store.JSONBMap `db:"attributes"`
	Completeness float64        `db:"completeness"`
	CreatedAt    sql.NullTime   `db:"created_at"`
	UpdatedAt    sql.NullTime   `db:"updated_at"`
}

func (r assetRow) toAsset() store.Asset {
	a := store.Asset{
		AssetID:      r.AssetID,
		TenantID:     r.TenantID,
		BatchID:      r.BatchID,
		Name:         r.Name,
		Hostname:     r.Hostname,
		IPAddress:    r.IPAddress,
		OS:           r.OS,
		OSVersion:    r.OSVersion,
		Environment:  r.Environment,
		CPUCores:     r.CPUCores,
		MemoryMB:     r.MemoryMB,
		StorageGB:    r.StorageGB,
		Application:  r.Application,
		Owner:        r.Owner,
		Location:     r.Location,
		Status:       r.Status,
		Tags:         []string(r.Tags),
		Attributes:   r.Attributes,
		Completeness: r.Completeness,
	}
	if r.CreatedAt.Valid {
		a.CreatedAt = r.CreatedAt.Time
	}
	if r.UpdatedAt.Valid {
		a.UpdatedAt = r.UpdatedAt.Time
	}
	return a
}

const assetColumns = `asset_id::text AS asset_id, tenant_id::text AS tenant_id, batch_id::text AS batch_id,
	name, hostname, ip_address, os, os_version, environment,
	cpu_cores, memory_mb, storage_gb, application, owner, location, status,
	tags, attributes, completeness, created_at, updated_at`

// UpsertAssets writes assets keyed on (tenant, hostname, ip) and returns the
// stored rows with their database-assigned asset IDs.
func (r *PostgresRepository) UpsertAssets(ctx context.Context, assets []store.Asset) ([]store.Asset, error) {
	if len(assets) == 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	out := make([]store.Asset, 0, len(assets))
	for _, a := range assets {
		var row assetRow
		err := tx.GetContext(ctx, &row,
			`INSERT INTO assess.assets
			     (tenant_id, batch_id, name, hostname, ip_address, os, os_version, environment,
			      cpu_cores, memory_mb, storage_gb, application, owner, location, status,
			      tags, attributes, completeness)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
			 ON CONFLICT (tenant_id, hostname, ip_address) DO UPDATE SET
			     batch_id = EXCLUDED.batch_id,
			     name = EXCLUDED.name,
			     os = EXCLUDED.os,
			     os_version = EXCLUDED.os_version,
			     environment = EXCLUDED.environment,
			     cpu_cores = EXCLUDED.cpu_cores,
			     memory_mb = EXCLUDED.memory_mb,
			     storage_gb = EXCLUDED.storage_gb,
			     application = EXCLUDED.application,
			     owner = EXCLUDED.owner,
			     location = EXCLUDED.location,
			     status = EXCLUDED.status,
			     tags = EXCLUDED.tags,
			     attributes = EXCLUDED.attributes,
			     completeness = EXCLUDED.completeness,
			     updated_at = now()
			 RETURNING `+assetColumns,
			a.TenantID, a.BatchID, a.Name, a.Hostname, a.IPAddress, a.OS, a.OSVersion, a.Environment,
			a.CPUCores, a.MemoryMB, a.StorageGB, a.Application, a.Owner, a.Location, a.Status,
			pq.Array(a.Tags), a.Attributes, a.Completeness)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert asset %s: %w", a.Hostname, err)
		}
		out = append(out, row.toAsset())
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit asset upsert: %w", err)
	}
	return out, nil
}

// GetAsset loads one asset scoped to the tenant.
func (r *PostgresRepository) GetAsset(ctx context.Context, tenantID, assetID string) (*store.Asset, error) {
	var row assetRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+assetColumns+`
	     FROM assess.assets
	     WHERE tenant_id = $1 AND asset_id = $2`,
		tenantID, assetID)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load asset: %w", err)
	}
	a := row.toAsset()
	return &a, nil
}

// ListAssets returns the tenant's inventory, filtered and ordered by hostname.
func (r *PostgresRepository) ListAssets(ctx context.Context, tenantID string, filter AssetFilter) ([]store.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assess.assets WHERE tenant_id = $1`
	args := []interface{}{tenantID}

	addFilter := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		query += fmt.Sprintf(" AND %s = $%d", column, len(args))
	}
	addFilter("environment", filter.Environment)
	addFilter("application", filter.Application)
	addFilter("status", filter.Status)
	addFilter("batch_id::text", filter.BatchID)
	query += ` ORDER BY hostname ASC`

	var rows []assetRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}

	assets := make([]store.Asset, 0, len(rows))
	for _, row := range rows {
		assets = append(assets, row.toAsset())
	}
	return assets, nil
}

// SaveDependencies inserts dependency edges, ignoring duplicates.
func (r *PostgresRepository) SaveDependencies(ctx context.Context, deps []store.AssetDependency) error {
	if len(deps) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, d := range deps {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO assess.asset_dependencies (tenant_id, source_asset_id, target_asset_id, dep_type)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (tenant_id, source_asset_id, target_asset_id, dep_type) DO NOTHING`,
			d.TenantID, d.SourceAssetID, d.TargetAssetID, d.DepType)
		if err != nil {
			return fmt.Errorf("failed to insert dependency: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit dependencies: %w", err)
	}
	return nil
}

// ListDependencies returns every dependency edge for a tenant.
func (r *PostgresRepository) ListDependencies(ctx context.Context, tenantID string) ([]store.AssetDependency, error) {
	var deps []store.AssetDependency
	err := r.db.SelectContext(ctx, &deps,
		`SELECT dependency_id::text AS dependency_id, tenant_id::text AS tenant_id,
		        source_asset_id::text AS source_asset_id, target_asset_id::text AS target_asset_id,
		        dep_type, created_at
	     FROM assess.asset_dependencies
	     WHERE tenant_id = $1
	     ORDER BY created_at ASC`,
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dependencies: %w", err)
	}
	return deps, nil
}

// ReplaceTechDebtFindings swaps an asset's findings for a fresh analysis run.
func (r *PostgresRepository) ReplaceTechDebtFindings(ctx context.Context, tenantID, assetID string, findings []store.TechDebtFinding) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM assess.tech_debt_findings WHERE tenant_id = $1 AND asset_id = $2`,
		tenantID, assetID)
	if err != nil {
		return fmt.Errorf("failed to clear prior findings: %w", err)
	}

	for _, f := range findings {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO assess.tech_debt_findings (tenant_id, asset_id, category, severity, description, score)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			tenantID, assetID, f.Category, f.Severity, f.Description, f.Score)
		if err != nil {
			return fmt.Errorf("failed to insert tech debt finding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tech debt findings: %w", err)
	}
	return nil
}

// ListTechDebtFindings returns all findings for a tenant, highest score first.
func (r *PostgresRepository) ListTechDebtFindings(ctx context.Context, tenantID string) ([]store.TechDebtFinding, error) {
	var findings []store.TechDebtFinding
	err := r.db.SelectContext(ctx, &findings,
		`SELECT finding_id::text AS finding_id, tenant_id::text AS tenant_id, asset_id::text AS asset_id,
		        category, severity, description, score, created_at
	     FROM assess.tech_debt_findings
	     WHERE tenant_id = $1
	     ORDER BY score DESC, created_at ASC`,
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tech debt findings: %w", err)
	}
	return findings, nil
}

// ReplaceRecommendation upserts the single current recommendation per asset.
func (r *PostgresRepository) ReplaceRecommendation(ctx context.Context, rec store.Recommendation) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM assess.recommendations WHERE tenant_id = $1 AND asset_id = $2`,
		rec.TenantID, rec.AssetID)
	if err != nil {
		return fmt.Errorf("failed to clear prior recommendation: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO assess.recommendations (tenant_id, asset_id, strategy, rationale, readiness, generated_by)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.TenantID, rec.AssetID, rec.Strategy, rec.Rationale, rec.Readiness, rec.GeneratedBy)
	if err != nil {
		return fmt.Errorf("failed to insert recommendation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit recommendation: %w", err)
	}
	return nil
}

// ListRecommendations returns all current recommendations for a tenant.
func (r *PostgresRepository) ListRecommendations(ctx context.Context, tenantID string) ([]store.Recommendation, error) {
	var recs []store.Recommendation
	err := r.db.SelectContext(ctx, &recs,
		`SELECT recommendation_id::text AS recommendation_id, tenant_id::text AS tenant_id,
		        asset_id::text AS asset_id, strategy, rationale, readiness, generated_by, created_at
	     FROM assess.recommendations
	     WHERE tenant_id = $1
	     ORDER BY readiness DESC, created_at ASC`,
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recommendations: %w", err)
	}
	return recs, nil
}
