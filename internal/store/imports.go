package store

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateImportBatch inserts an import batch and returns its ID.
func (s *Store) CreateImportBatch(ctx context.Context, batch *ImportBatch) (string, error) {
	var batchID string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO assess.import_batches
		     (tenant_id, flow_id, source_name, format, record_count, status, raw_columns, raw_rows)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING batch_id::text`,
		batch.TenantID, batch.FlowID, batch.SourceName, batch.Format,
		batch.RecordCount, batch.Status, batch.RawColumns, batch.RawRows).Scan(&batchID)
	if err != nil {
		return "", fmt.Errorf("failed to create import batch: %w", err)
	}
	return batchID, nil
}

// GetImportBatch loads a batch scoped to the tenant.
func (s *Store) GetImportBatch(ctx context.Context, tenantID, batchID string) (*ImportBatch, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT batch_id::text, tenant_id::text, flow_id::text, source_name, format,
		        record_count, status, raw_columns, raw_rows, created_at, updated_at
	     FROM assess.import_batches
	     WHERE tenant_id = $1 AND batch_id = $2`,
		tenantID, batchID)

	var b ImportBatch
	err := row.Scan(&b.BatchID, &b.TenantID, &b.FlowID, &b.SourceName, &b.Format,
		&b.RecordCount, &b.Status, &b.RawColumns, &b.RawRows, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load import batch: %w", err)
	}
	return &b, nil
}

// UpdateImportBatchStatus advances the batch lifecycle
// (received -> mapped -> cleansed -> loaded).
func (s *Store) UpdateImportBatchStatus(ctx context.Context, tenantID, batchID, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE assess.import_batches
	     SET status = $1, updated_at = now()
	     WHERE tenant_id = $2 AND batch_id = $3`,
		status, tenantID, batchID)
	if err != nil {
		return fmt.Errorf("failed to update import batch status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveFieldMappings upserts mapping suggestions for a batch. An existing
// mapping for the same source column is replaced; manual confirmations win
// over re-generated suggestions.
func (s *Store) SaveFieldMappings(ctx context.Context, mappings []FieldMapping) error {
	if len(mappings) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, m := range mappings {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO assess.field_mappings
			     (tenant_id, batch_id, source_column, canonical_field, confidence, method, confirmed)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (batch_id, source_column) DO UPDATE
			     SET canonical_field = EXCLUDED.canonical_field,
			         confidence = EXCLUDED.confidence,
			         method = EXCLUDED.method,
			         confirmed = assess.field_mappings.confirmed OR EXCLUDED.confirmed`,
			m.TenantID, m.BatchID, m.SourceColumn, m.CanonicalField, m.Confidence, m.Method, m.Confirmed)
		if err != nil {
			return fmt.Errorf("failed to upsert field mapping for %q: %w", m.SourceColumn, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit field mappings: %w", err)
	}
	return nil
}

// GetFieldMappings returns the mappings for a batch ordered by source column.
func (s *Store) GetFieldMappings(ctx context.Context, tenantID, batchID string) ([]FieldMapping, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT mapping_id::text, tenant_id::text, batch_id::text, source_column,
		        canonical_field, confidence, method, confirmed, created_at
	     FROM assess.field_mappings
	     WHERE tenant_id = $1 AND batch_id = $2
	     ORDER BY source_column ASC`,
		tenantID, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load field mappings: %w", err)
	}
	defer rows.Close()

	var mappings []FieldMapping
	for rows.Next() {
		var m FieldMapping
		if err := rows.Scan(&m.MappingID, &m.TenantID, &m.BatchID, &m.SourceColumn,
			&m.CanonicalField, &m.Confidence, &m.Method, &m.Confirmed, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan field mapping: %w", err)
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

// SaveCleansingFindings records the cleansing pipeline's output for a batch.
func (s *Store) SaveCleansingFindings(ctx context.Context, findings []CleansingFinding) error {
	if len(findings) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, f := range findings {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO assess.cleansing_findings
			     (tenant_id, batch_id, hostname, field, action, before_value, after_value, rule)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			f.TenantID, f.BatchID, f.Hostname, f.Field, f.Action, f.BeforeValue, f.AfterValue, f.Rule)
		if err != nil {
			return fmt.Errorf("failed to insert cleansing finding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cleansing findings: %w", err)
	}
	return nil
}

// ListCleansingFindings returns findings for a batch, oldest first.
func (s *Store) ListCleansingFindings(ctx context.Context, tenantID, batchID string) ([]CleansingFinding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT finding_id::text, tenant_id::text, batch_id::text, hostname, field,
		        action, before_value, after_value, rule, created_at
	     FROM assess.cleansing_findings
	     WHERE tenant_id = $1 AND batch_id = $2
	     ORDER BY created_at ASC`,
		tenantID, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cleansing findings: %w", err)
	}
	defer rows.Close()

	var findings []CleansingFinding
	for rows.Next() {
		var f CleansingFinding
		if err := rows.Scan(&f.FindingID, &f.TenantID, &f.BatchID, &f.Hostname, &f.Field,
			&f.Action, &f.BeforeValue, &f.AfterValue, &f.Rule, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cleansing finding: %w", err)
		}
		findings = append(findings, f)
	}
	return findings, rows.Err()
}
