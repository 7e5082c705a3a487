// Package datastore abstracts persistence behind a single interface so the
// server and CLI can run against PostgreSQL or an in-memory mock store.
package datastore

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"ai-force-assess/internal/inventory"
	"ai-force-assess/internal/mocks"
	"ai-force-assess/internal/store"
)

// DataStore defines every data access operation the platform needs. Both the
// PostgreSQL adapter and the mock adapter implement it.
type DataStore interface {
	// Lifecycle
	Close() error
	InitDB(ctx context.Context) error

	// Flow operations
	CreateMasterFlow(ctx context.Context, rec *store.MasterFlowRecord) error
	GetMasterFlow(ctx context.Context, tenantID, flowID string) (*store.MasterFlowRecord, error)
	ListMasterFlows(ctx context.Context, tenantID, flowType string) ([]store.MasterFlowRecord, error)
	UpdateFlowPhase(ctx context.Context, t *store.PhaseTransitionRecord, flowType string, phaseState store.JSONBMap, lastError *string) error
	GetPhaseHistory(ctx context.Context, tenantID, flowID string) ([]store.PhaseTransitionRecord, error)
	GetChildFlow(ctx context.Context, tenantID, flowID, flowType string) (*store.ChildFlowRecord, error)
	AttachBatchToFlow(ctx context.Context, tenantID, flowID, batchID string) error
	AttachQuestionnaireToFlow(ctx context.Context, tenantID, flowID, questionnaireID string) error
	DeleteFlow(ctx context.Context, tenantID, flowID string) error
	CleanupStaleFlows(ctx context.Context, tenantID string, olderThan time.Duration) (int64, error)
	SaveCrewRun(ctx context.Context, run *store.CrewRun) (string, error)

	// Import operations
	CreateImportBatch(ctx context.Context, batch *store.ImportBatch) (string, error)
	GetImportBatch(ctx context.Context, tenantID, batchID string) (*store.ImportBatch, error)
	UpdateImportBatchStatus(ctx context.Context, tenantID, batchID, status string) error
	SaveFieldMappings(ctx context.Context, mappings []store.FieldMapping) error
	GetFieldMappings(ctx context.Context, tenantID, batchID string) ([]store.FieldMapping, error)
	SaveCleansingFindings(ctx context.Context, findings []store.CleansingFinding) error
	ListCleansingFindings(ctx context.Context, tenantID, batchID string) ([]store.CleansingFinding, error)

	// Questionnaire operations
	CreateQuestionnaire(ctx context.Context, q *store.Questionnaire) (string, error)
	GetQuestionnaire(ctx context.Context, tenantID, questionnaireID string) (*store.Questionnaire, error)
	UpdateQuestionnaireStatus(ctx context.Context, tenantID, questionnaireID, status string) error
	SaveQuestionnaireResponse(ctx context.Context, r *store.QuestionnaireResponse) error
	ListQuestionnaireResponses(ctx context.Context, tenantID, questionnaireID string) ([]store.QuestionnaireResponse, error)

	// Inventory returns the asset repository bound to the same backend.
	Inventory() inventory.Repository
}

// Type selects the backing implementation.
type Type string

const (
	// PostgresStore uses a real PostgreSQL database
	PostgresStore Type = "postgres"
	// MockStore uses in-memory data with optional JSON fixtures
	MockStore Type = "mock"
)

// Config holds configuration for data store creation
type Config struct {
	Type             Type
	ConnectionString string
	MockDataPath     string
}

// NewDataStore creates a data store based on configuration.
func NewDataStore(config Config) (DataStore, error) {
	switch config.Type {
	case PostgresStore:
		return newPostgresStore(config.ConnectionString)
	case MockStore:
		return newMockStore(config.MockDataPath), nil
	default:
		return nil, &UnsupportedStoreTypeError{Type: string(config.Type)}
	}
}

// UnsupportedStoreTypeError is returned when an unsupported store type is requested
type UnsupportedStoreTypeError struct {
	Type string
}

func (e *UnsupportedStoreTypeError) Error() string {
	return "unsupported store type: " + e.Type
}

// postgresAdapter pairs the plain database/sql store with the sqlx inventory
// repository over one connection pool.
type postgresAdapter struct {
	*store.Store
	inv *inventory.PostgresRepository
}

func newPostgresStore(connectionString string) (DataStore, error) {
	s, err := store.NewStore(connectionString)
	if err != nil {
		return nil, err
	}
	db := sqlx.NewDb(s.DB(), "postgres")
	return &postgresAdapter{
		Store: s,
		inv:   inventory.NewPostgresRepository(db),
	}, nil
}

func (p *postgresAdapter) Inventory() inventory.Repository {
	return p.inv
}

// mockAdapter pairs the in-memory flow store with the in-memory inventory.
type mockAdapter struct {
	*mocks.MockStore
	inv *inventory.MemoryRepository
}

func newMockStore(mockDataPath string) DataStore {
	return &mockAdapter{
		MockStore: mocks.NewMockStore(mockDataPath),
		inv:       inventory.NewMemoryRepository(),
	}
}

func (m *mockAdapter) Inventory() inventory.Repository {
	return m.inv
}
