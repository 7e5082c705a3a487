package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// childTableFor maps a flow type to its child table, if it has one.
// Assessment, planning, and decommission flows live on the master row only.
func childTableFor(flowType string) (string, bool) {
	switch flowType {
	case "discovery":
		return `assess.discovery_flows`, true
	case "collection":
		return `assess.collection_flows`, true
	default:
		return "", false
	}
}

// CreateMasterFlow inserts the master row and, for flow types that have one,
// the child row in a single transaction. The caller supplies FlowID; the
// surrogate id is generated by the database and never returned.
func (s *Store) CreateMasterFlow(ctx context.Context, rec *MasterFlowRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO assess.master_flows
		     (flow_id, tenant_id, client_account_id, flow_type, flow_name, current_phase, status, phase_state, execution_plan)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.FlowID, rec.TenantID, rec.ClientAccountID, rec.FlowType, rec.FlowName,
		rec.CurrentPhase, rec.Status, rec.PhaseState, rec.ExecutionPlan)
	if err != nil {
		return fmt.Errorf("failed to insert master flow: %w", err)
	}

	if table, ok := childTableFor(rec.FlowType); ok {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO `+table+` (flow_id, tenant_id, current_phase, status)
			 VALUES ($1, $2, $3, $4)`,
			rec.FlowID, rec.TenantID, rec.CurrentPhase, rec.Status)
		if err != nil {
			return fmt.Errorf("failed to insert child flow row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit flow creation: %w", err)
	}
	return nil
}

const masterFlowColumns = `flow_id::text, tenant_id::text, client_account_id::text, flow_type, flow_name,
	       current_phase, status, phase_state, execution_plan, last_error,
	       created_at, updated_at, last_activity`

func scanMasterFlow(row interface{ Scan(...interface{}) error }) (*MasterFlowRecord, error) {
	var rec MasterFlowRecord
	err := row.Scan(&rec.FlowID, &rec.TenantID, &rec.ClientAccountID, &rec.FlowType, &rec.FlowName,
		&rec.CurrentPhase, &rec.Status, &rec.PhaseState, &rec.ExecutionPlan, &rec.LastError,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.LastActivity)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetMasterFlow loads a flow by its business key, scoped to the tenant.
func (s *Store) GetMasterFlow(ctx context.Context, tenantID, flowID string) (*MasterFlowRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+masterFlowColumns+`
	     FROM assess.master_flows
	     WHERE tenant_id = $1 AND flow_id = $2`,
		tenantID, flowID)

	rec, err := scanMasterFlow(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load master flow: %w", err)
	}
	return rec, nil
}

// ListMasterFlows returns all flows for a tenant, optionally filtered by
// flow type, newest first.
func (s *Store) ListMasterFlows(ctx context.Context, tenantID, flowType string) ([]MasterFlowRecord, error) {
	query := `SELECT ` + masterFlowColumns + `
	     FROM assess.master_flows
	     WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if flowType != "" {
		query += ` AND flow_type = $2`
		args = append(args, flowType)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list master flows: %w", err)
	}
	defer rows.Close()

	var flows []MasterFlowRecord
	for rows.Next() {
		rec, err := scanMasterFlow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan master flow: %w", err)
		}
		flows = append(flows, *rec)
	}
	return flows, rows.Err()
}

// UpdateFlowPhase writes the new phase/status to the master row, mirrors the
// two columns onto the child row, and appends the transition to the phase
// history, all in one transaction. The master row is the source of truth;
// the mirror exists only so legacy child-table readers stay consistent.
func (s *Store) UpdateFlowPhase(ctx context.Context, t *PhaseTransitionRecord, flowType string, phaseState JSONBMap, lastError *string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE assess.master_flows
	     SET current_phase = $1, status = $2, phase_state = COALESCE($3, phase_state),
	         last_error = $4, updated_at = now(), last_activity = now()
	     WHERE tenant_id = $5 AND flow_id = $6`,
		t.ToPhase, t.ToStatus, phaseState, lastError, t.TenantID, t.FlowID)
	if err != nil {
		return fmt.Errorf("failed to update master flow: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if table, ok := childTableFor(flowType); ok {
		_, err = tx.ExecContext(ctx,
			`UPDATE `+table+`
		     SET current_phase = $1, status = $2, updated_at = now()
		     WHERE tenant_id = $3 AND flow_id = $4`,
			t.ToPhase, t.ToStatus, t.TenantID, t.FlowID)
		if err != nil {
			return fmt.Errorf("failed to mirror phase onto child flow: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO assess.flow_phase_history
		     (flow_id, tenant_id, from_phase, to_phase, from_status, to_status, reason, actor)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.FlowID, t.TenantID, t.FromPhase, t.ToPhase, t.FromStatus, t.ToStatus, t.Reason, t.Actor)
	if err != nil {
		return fmt.Errorf("failed to append phase history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit phase update: %w", err)
	}
	return nil
}

// GetPhaseHistory returns the transition log for a flow, oldest first.
func (s *Store) GetPhaseHistory(ctx context.Context, tenantID, flowID string) ([]PhaseTransitionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT flow_id::text, tenant_id::text, from_phase, to_phase, from_status, to_status, reason, actor, created_at
	     FROM assess.flow_phase_history
	     WHERE tenant_id = $1 AND flow_id = $2
	     ORDER BY created_at ASC`,
		tenantID, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load phase history: %w", err)
	}
	defer rows.Close()

	var history []PhaseTransitionRecord
	for rows.Next() {
		var t PhaseTransitionRecord
		if err := rows.Scan(&t.FlowID, &t.TenantID, &t.FromPhase, &t.ToPhase,
			&t.FromStatus, &t.ToStatus, &t.Reason, &t.Actor, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan phase history row: %w", err)
		}
		history = append(history, t)
	}
	return history, rows.Err()
}

// AttachBatchToFlow links an import batch to a discovery flow's child row.
func (s *Store) AttachBatchToFlow(ctx context.Context, tenantID, flowID, batchID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE assess.discovery_flows
	     SET batch_id = $1, updated_at = now()
	     WHERE tenant_id = $2 AND flow_id = $3`,
		batchID, tenantID, flowID)
	if err != nil {
		return fmt.Errorf("failed to attach batch to flow: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AttachQuestionnaireToFlow links a questionnaire to a collection flow's child row.
func (s *Store) AttachQuestionnaireToFlow(ctx context.Context, tenantID, flowID, questionnaireID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE assess.collection_flows
	     SET questionnaire_id = $1, updated_at = now()
	     WHERE tenant_id = $2 AND flow_id = $3`,
		questionnaireID, tenantID, flowID)
	if err != nil {
		return fmt.Errorf("failed to attach questionnaire to flow: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetChildFlow loads the child row for a discovery or collection flow.
func (s *Store) GetChildFlow(ctx context.Context, tenantID, flowID, flowType string) (*ChildFlowRecord, error) {
	table, ok := childTableFor(flowType)
	if !ok {
		return nil, fmt.Errorf("flow type %q has no child table", flowType)
	}

	extra := `batch_id::text`
	if flowType == "collection" {
		extra = `questionnaire_id::text`
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT flow_id::text, tenant_id::text, current_phase, status, `+extra+`, created_at, updated_at
	     FROM `+table+`
	     WHERE tenant_id = $1 AND flow_id = $2`,
		tenantID, flowID)

	var rec ChildFlowRecord
	var ref *string
	err := row.Scan(&rec.FlowID, &rec.TenantID, &rec.CurrentPhase, &rec.Status, &ref, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load child flow: %w", err)
	}
	if flowType == "collection" {
		rec.QuestionnaireID = ref
	} else {
		rec.BatchID = ref
	}
	return &rec, nil
}

// DeleteFlow removes the master row; child rows cascade.
func (s *Store) DeleteFlow(ctx context.Context, tenantID, flowID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM assess.master_flows WHERE tenant_id = $1 AND flow_id = $2`,
		tenantID, flowID)
	if err != nil {
		return fmt.Errorf("failed to delete flow: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CleanupStaleFlows deletes terminal flows whose last activity predates the
// retention cutoff. Returns the number of master rows removed.
func (s *Store) CleanupStaleFlows(ctx context.Context, tenantID string, olderThan time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM assess.master_flows
	     WHERE tenant_id = $1
	       AND status IN ('completed', 'failed', 'cancelled')
	       AND last_activity < now() - $2::interval`,
		tenantID, fmt.Sprintf("%d seconds", int64(olderThan.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup stale flows: %w", err)
	}
	return res.RowsAffected()
}

// SaveCrewRun inserts a crew run record and returns its ID.
func (s *Store) SaveCrewRun(ctx context.Context, run *CrewRun) (string, error) {
	var runID string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO assess.crew_runs
		     (tenant_id, flow_id, phase, crew, status, prompt_chars, raw_response, error, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING run_id::text`,
		run.TenantID, run.FlowID, run.Phase, run.Crew, run.Status,
		run.PromptChars, run.RawResponse, run.Error, run.StartedAt, run.FinishedAt).Scan(&runID)
	if err != nil {
		return "", fmt.Errorf("failed to save crew run: %w", err)
	}
	return runID, nil
}
