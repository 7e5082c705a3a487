package store

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateQuestionnaire inserts an adaptive questionnaire and returns its ID.
func (s *Store) CreateQuestionnaire(ctx context.Context, q *Questionnaire) (string, error) {
	var questionnaireID string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO assess.adaptive_questionnaires
		     (tenant_id, flow_id, batch_id, status, questions)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING questionnaire_id::text`,
		q.TenantID, q.FlowID, q.BatchID, q.Status, q.Questions).Scan(&questionnaireID)
	if err != nil {
		return "", fmt.Errorf("failed to create questionnaire: %w", err)
	}
	return questionnaireID, nil
}

// GetQuestionnaire loads a questionnaire scoped to the tenant.
func (s *Store) GetQuestionnaire(ctx context.Context, tenantID, questionnaireID string) (*Questionnaire, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT questionnaire_id::text, tenant_id::text, flow_id::text, batch_id::text,
		        status, questions, created_at, updated_at
	     FROM assess.adaptive_questionnaires
	     WHERE tenant_id = $1 AND questionnaire_id = $2`,
		tenantID, questionnaireID)

	var q Questionnaire
	err := row.Scan(&q.QuestionnaireID, &q.TenantID, &q.FlowID, &q.BatchID,
		&q.Status, &q.Questions, &q.CreatedAt, &q.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load questionnaire: %w", err)
	}
	return &q, nil
}

// UpdateQuestionnaireStatus moves a questionnaire through its lifecycle
// (open -> in_progress -> complete).
func (s *Store) UpdateQuestionnaireStatus(ctx context.Context, tenantID, questionnaireID, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE assess.adaptive_questionnaires
	     SET status = $1, updated_at = now()
	     WHERE tenant_id = $2 AND questionnaire_id = $3`,
		status, tenantID, questionnaireID)
	if err != nil {
		return fmt.Errorf("failed to update questionnaire status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveQuestionnaireResponse upserts one answer. Re-answering a question
// replaces the previous answer.
func (s *Store) SaveQuestionnaireResponse(ctx context.Context, r *QuestionnaireResponse) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assess.questionnaire_responses
		     (tenant_id, questionnaire_id, question_id, asset_id, answer, answered_by)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (questionnaire_id, question_id) DO UPDATE
		     SET answer = EXCLUDED.answer,
		         answered_by = EXCLUDED.answered_by,
		         created_at = now()`,
		r.TenantID, r.QuestionnaireID, r.QuestionID, r.AssetID, r.Answer, r.AnsweredBy)
	if err != nil {
		return fmt.Errorf("failed to save questionnaire response: %w", err)
	}
	return nil
}

// ListQuestionnaireResponses returns all answers for a questionnaire.
func (s *Store) ListQuestionnaireResponses(ctx context.Context, tenantID, questionnaireID string) ([]QuestionnaireResponse, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT response_id::text, tenant_id::text, questionnaire_id::text, question_id,
		        asset_id::text, answer, answered_by, created_at
	     FROM assess.questionnaire_responses
	     WHERE tenant_id = $1 AND questionnaire_id = $2
	     ORDER BY created_at ASC`,
		tenantID, questionnaireID)
	if err != nil {
		return nil, fmt.Errorf("failed to load questionnaire responses: %w", err)
	}
	defer rows.Close()

	var responses []QuestionnaireResponse
	for rows.Next() {
		var r QuestionnaireResponse
		if err := rows.Scan(&r.ResponseID, &r.TenantID, &r.QuestionnaireID, &r.QuestionID,
			&r.AssetID, &r.Answer, &r.AnsweredBy, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan questionnaire response: %w", err)
		}
		responses = append(responses, r)
	}
	return responses, rows.Err()
}
