// Package mocks provides an in-memory flow store for development and tests.
// Fixture files under the configured data path pre-populate it; everything
// written at runtime stays in memory.
package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ai-force-assess/internal/store"
)

// MockStore mirrors the behavior of the Postgres store without a database.
type MockStore struct {
	mu sync.RWMutex

	flows          map[string]*store.MasterFlowRecord // tenant|flowID
	children       map[string]*store.ChildFlowRecord  // tenant|flowID
	history        map[string][]store.PhaseTransitionRecord
	batches        map[string]*store.ImportBatch   // tenant|batchID
	mappings       map[string][]store.FieldMapping // tenant|batchID
	findings       map[string][]store.CleansingFinding
	questionnaires map[string]*store.Questionnaire // tenant|questionnaireID
	responses      map[string][]store.QuestionnaireResponse
	crewRuns       []store.CrewRun
}

// NewMockStore builds a store, loading any fixture files found under
// dataPath. A missing or empty directory is fine.
func NewMockStore(dataPath string) *MockStore {
	m := &MockStore{
		flows:          make(map[string]*store.MasterFlowRecord),
		children:       make(map[string]*store.ChildFlowRecord),
		history:        make(map[string][]store.PhaseTransitionRecord),
		batches:        make(map[string]*store.ImportBatch),
		mappings:       make(map[string][]store.FieldMapping),
		findings:       make(map[string][]store.CleansingFinding),
		questionnaires: make(map[string]*store.Questionnaire),
		responses:      make(map[string][]store.QuestionnaireResponse),
	}
	m.loadFixtures(dataPath)
	return m
}

func key(tenantID, id string) string {
	return tenantID + "|" + id
}

func (m *MockStore) loadFixtures(dataPath string) {
	if dataPath == "" {
		return
	}

	var flows []store.MasterFlowRecord
	if loadFixture(filepath.Join(dataPath, "master_flows.json"), &flows) {
		for i := range flows {
			f := flows[i]
			m.flows[key(f.TenantID, f.FlowID)] = &f
		}
		log.Printf("mock store: loaded %d master flows", len(flows))
	}

	var batches []store.ImportBatch
	if loadFixture(filepath.Join(dataPath, "import_batches.json"), &batches) {
		for i := range batches {
			b := batches[i]
			m.batches[key(b.TenantID, b.BatchID)] = &b
		}
		log.Printf("mock store: loaded %d import batches", len(batches))
	}
}

func loadFixture(path string, target interface{}) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, target); err != nil {
		log.Printf("mock store: skipping malformed fixture %s: %v", path, err)
		return false
	}
	return true
}

// Close is a no-op.
func (m *MockStore) Close() error { return nil }

// InitDB is a no-op; there is no database to initialize.
func (m *MockStore) InitDB(ctx context.Context) error { return nil }

// --- Flow operations ---

func (m *MockStore) CreateMasterFlow(ctx context.Context, rec *store.MasterFlowRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(rec.TenantID, rec.FlowID)
	if _, exists := m.flows[k]; exists {
		return fmt.Errorf("flow %s already exists", rec.FlowID)
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.LastActivity = now
	cp := *rec
	m.flows[k] = &cp

	if rec.FlowType == "discovery" || rec.FlowType == "collection" {
		m.children[k] = &store.ChildFlowRecord{
			FlowID:       rec.FlowID,
			TenantID:     rec.TenantID,
			CurrentPhase: rec.CurrentPhase,
			Status:       rec.Status,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}
	return nil
}

func (m *MockStore) GetMasterFlow(ctx context.Context, tenantID, flowID string) (*store.MasterFlowRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.flows[key(tenantID, flowID)]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *MockStore) ListMasterFlows(ctx context.Context, tenantID, flowType string) ([]store.MasterFlowRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []store.MasterFlowRecord
	for _, f := range m.flows {
		if f.TenantID != tenantID {
			continue
		}
		if flowType != "" && f.FlowType != flowType {
			continue
		}
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MockStore) UpdateFlowPhase(ctx context.Context, t *store.PhaseTransitionRecord, flowType string, phaseState store.JSONBMap, lastError *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(t.TenantID, t.FlowID)
	f, ok := m.flows[k]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now().UTC()
	f.CurrentPhase = t.ToPhase
	f.Status = t.ToStatus
	f.LastError = lastError
	if phaseState != nil {
		f.PhaseState = phaseState
	}
	f.UpdatedAt = now
	f.LastActivity = now

	if child, ok := m.children[k]; ok {
		child.CurrentPhase = t.ToPhase
		child.Status = t.ToStatus
		child.UpdatedAt = now
	}

	rec := *t
	rec.CreatedAt = now
	m.history[k] = append(m.history[k], rec)
	return nil
}

func (m *MockStore) GetPhaseHistory(ctx context.Context, tenantID, flowID string) ([]store.PhaseTransitionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.history[key(tenantID, flowID)]
	out := make([]store.PhaseTransitionRecord, len(history))
	copy(out, history)
	return out, nil
}

func (m *MockStore) AttachBatchToFlow(ctx context.Context, tenantID, flowID, batchID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	child, ok := m.children[key(tenantID, flowID)]
	if !ok {
		return store.ErrNotFound
	}
	child.BatchID = &batchID
	child.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MockStore) AttachQuestionnaireToFlow(ctx context.Context, tenantID, flowID, questionnaireID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	child, ok := m.children[key(tenantID, flowID)]
	if !ok {
		return store.ErrNotFound
	}
	child.QuestionnaireID = &questionnaireID
	child.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MockStore) GetChildFlow(ctx context.Context, tenantID, flowID, flowType string) (*store.ChildFlowRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	child, ok := m.children[key(tenantID, flowID)]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *child
	return &cp, nil
}

func (m *MockStore) DeleteFlow(ctx context.Context, tenantID, flowID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(tenantID, flowID)
	if _, ok := m.flows[k]; !ok {
		return store.ErrNotFound
	}
	delete(m.flows, k)
	delete(m.children, k)
	delete(m.history, k)
	return nil
}

func (m *MockStore) CleanupStaleFlows(ctx context.Context, tenantID string, olderThan time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	var removed int64
	for k, f := range m.flows {
		if f.TenantID != tenantID {
			continue
		}
		switch f.Status {
		case "completed", "failed", "cancelled":
		default:
			continue
		}
		if f.LastActivity.After(cutoff) {
			continue
		}
		delete(m.flows, k)
		delete(m.children, k)
		delete(m.history, k)
		removed++
	}
	return removed, nil
}

func (m *MockStore) SaveCrewRun(ctx context.Context, run *store.CrewRun) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	m.crewRuns = append(m.crewRuns, *run)
	return run.RunID, nil
}

// --- Import operations ---

func (m *MockStore) CreateImportBatch(ctx context.Context, batch *store.ImportBatch) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch.BatchID = uuid.New().String()
	now := time.Now().UTC()
	batch.CreatedAt = now
	batch.UpdatedAt = now
	cp := *batch
	m.batches[key(batch.TenantID, batch.BatchID)] = &cp
	return batch.BatchID, nil
}

func (m *MockStore) GetImportBatch(ctx context.Context, tenantID, batchID string) (*store.ImportBatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.batches[key(tenantID, batchID)]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *MockStore) UpdateImportBatchStatus(ctx context.Context, tenantID, batchID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.batches[key(tenantID, batchID)]
	if !ok {
		return store.ErrNotFound
	}
	b.Status = status
	b.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MockStore) SaveFieldMappings(ctx context.Context, mappings []store.FieldMapping) error {
	if len(mappings) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, fm := range mappings {
		k := key(fm.TenantID, fm.BatchID)
		replaced := false
		for i, existing := range m.mappings[k] {
			if existing.SourceColumn == fm.SourceColumn {
				fm.MappingID = existing.MappingID
				fm.Confirmed = fm.Confirmed || existing.Confirmed
				fm.CreatedAt = existing.CreatedAt
				m.mappings[k][i] = fm
				replaced = true
				break
			}
		}
		if !replaced {
			fm.MappingID = uuid.New().String()
			fm.CreatedAt = time.Now().UTC()
			m.mappings[k] = append(m.mappings[k], fm)
		}
	}
	return nil
}

func (m *MockStore) GetFieldMappings(ctx context.Context, tenantID, batchID string) ([]store.FieldMapping, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mappings := m.mappings[key(tenantID, batchID)]
	out := make([]store.FieldMapping, len(mappings))
	copy(out, mappings)
	sort.Slice(out, func(i, j int) bool { return out[i].SourceColumn < out[j].SourceColumn })
	return out, nil
}

func (m *MockStore) SaveCleansingFindings(ctx context.Context, findings []store.CleansingFinding) error {
	if len(findings) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, f := range findings {
		f.FindingID = uuid.New().String()
		f.CreatedAt = time.Now().UTC()
		k := key(f.TenantID, f.BatchID)
		m.findings[k] = append(m.findings[k], f)
	}
	return nil
}

func (m *MockStore) ListCleansingFindings(ctx context.Context, tenantID, batchID string) ([]store.CleansingFinding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	findings := m.findings[key(tenantID, batchID)]
	out := make([]store.CleansingFinding, len(findings))
	copy(out, findings)
	return out, nil
}

// --- Questionnaire operations ---

func (m *MockStore) CreateQuestionnaire(ctx context.Context, q *store.Questionnaire) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q.QuestionnaireID = uuid.New().String()
	now := time.Now().UTC()
	q.CreatedAt = now
	q.UpdatedAt = now
	cp := *q
	m.questionnaires[key(q.TenantID, q.QuestionnaireID)] = &cp
	return q.QuestionnaireID, nil
}

func (m *MockStore) GetQuestionnaire(ctx context.Context, tenantID, questionnaireID string) (*store.Questionnaire, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q, ok := m.questionnaires[key(tenantID, questionnaireID)]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *q
	return &cp, nil
}

func (m *MockStore) UpdateQuestionnaireStatus(ctx context.Context, tenantID, questionnaireID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.questionnaires[key(tenantID, questionnaireID)]
	if !ok {
		return store.ErrNotFound
	}
	q.Status = status
	q.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MockStore) SaveQuestionnaireResponse(ctx context.Context, r *store.QuestionnaireResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(r.TenantID, r.QuestionnaireID)
	for i, existing := range m.responses[k] {
		if existing.QuestionID == r.QuestionID {
			r.ResponseID = existing.ResponseID
			r.CreatedAt = existing.CreatedAt
			m.responses[k][i] = *r
			return nil
		}
	}
	r.ResponseID = uuid.New().String()
	r.CreatedAt = time.Now().UTC()
	m.responses[k] = append(m.responses[k], *r)
	return nil
}

func (m *MockStore) ListQuestionnaireResponses(ctx context.Context, tenantID, questionnaireID string) ([]store.QuestionnaireResponse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	responses := m.responses[key(tenantID, questionnaireID)]
	out := make([]store.QuestionnaireResponse, len(responses))
	copy(out, responses)
	return out, nil
}
