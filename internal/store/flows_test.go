package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

const (
	testTenant = "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"
	testFlow   = "bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb"
)

func TestCreateMasterFlow_DiscoveryInsertsChildRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	s := &Store{db: db}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO assess.master_flows`)).
		WithArgs(testFlow, testTenant, nil, "discovery", "Initial discovery",
			"import", "created", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO assess.discovery_flows`)).
		WithArgs(testFlow, testTenant, "import", "created").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec := &MasterFlowRecord{
		FlowID:       testFlow,
		TenantID:     testTenant,
		FlowType:     "discovery",
		FlowName:     "Initial discovery",
		CurrentPhase: "import",
		Status:       "created",
	}
	if err := s.CreateMasterFlow(context.Background(), rec); err != nil {
		t.Fatalf("CreateMasterFlow returned error: %v", err)
	}

	if mockErr := mock.ExpectationsWereMet(); mockErr != nil {
		t.Fatalf("unmet sqlmock expectations: %v", mockErr)
	}
}

func TestCreateMasterFlow_AssessmentHasNoChildRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	s := &Store{db: db}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO assess.master_flows`)).
		WithArgs(testFlow, testTenant, nil, "assessment", "",
			"dependency_analysis", "created", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec := &MasterFlowRecord{
		FlowID:       testFlow,
		TenantID:     testTenant,
		FlowType:     "assessment",
		CurrentPhase: "dependency_analysis",
		Status:       "created",
	}
	if err := s.CreateMasterFlow(context.Background(), rec); err != nil {
		t.Fatalf("CreateMasterFlow returned error: %v", err)
	}

	if mockErr := mock.ExpectationsWereMet(); mockErr != nil {
		t.Fatalf("unmet sqlmock expectations: %v", mockErr)
	}
}

func TestUpdateFlowPhase_MirrorsChildAndAppendsHistory(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	s := &Store{db: db}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE assess.master_flows`)).
		WithArgs("field_mapping", "running", sqlmock.AnyArg(), nil, testTenant, testFlow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE assess.discovery_flows`)).
		WithArgs("field_mapping", "running", testTenant, testFlow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO assess.flow_phase_history`)).
		WithArgs(testFlow, testTenant, "import", "field_mapping", "running", "running",
			"import complete", "system").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	transition := &PhaseTransitionRecord{
		FlowID:     testFlow,
		TenantID:   testTenant,
		FromPhase:  "import",
		ToPhase:    "field_mapping",
		FromStatus: "running",
		ToStatus:   "running",
		Reason:     "import complete",
		Actor:      "system",
	}
	if err := s.UpdateFlowPhase(context.Background(), transition, "discovery", nil, nil); err != nil {
		t.Fatalf("UpdateFlowPhase returned error: %v", err)
	}

	if mockErr := mock.ExpectationsWereMet(); mockErr != nil {
		t.Fatalf("unmet sqlmock expectations: %v", mockErr)
	}
}

func TestUpdateFlowPhase_UnknownFlowReturnsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	s := &Store{db: db}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE assess.master_flows`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	transition := &PhaseTransitionRecord{
		FlowID:     testFlow,
		TenantID:   testTenant,
		FromPhase:  "import",
		ToPhase:    "field_mapping",
		FromStatus: "running",
		ToStatus:   "running",
	}
	err = s.UpdateFlowPhase(context.Background(), transition, "discovery", nil, nil)
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetMasterFlow_ScopedToTenant(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	s := &Store{db: db}

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"flow_id", "tenant_id", "client_account_id", "flow_type", "flow_name",
		"current_phase", "status", "phase_state", "execution_plan", "last_error",
		"created_at", "updated_at", "last_activity",
	}).AddRow(testFlow, testTenant, nil, "discovery", "Initial discovery",
		"import", "running", nil, nil, nil, now, now, now)

	mock.ExpectQuery(`SELECT .+ FROM assess\.master_flows\s+WHERE tenant_id = \$1 AND flow_id = \$2`).
		WithArgs(testTenant, testFlow).
		WillReturnRows(rows)

	rec, err := s.GetMasterFlow(context.Background(), testTenant, testFlow)
	if err != nil {
		t.Fatalf("GetMasterFlow returned error: %v", err)
	}
	if rec.FlowID != testFlow {
		t.Errorf("unexpected flow id: %s", rec.FlowID)
	}
	if rec.CurrentPhase != "import" || rec.Status != "running" {
		t.Errorf("unexpected phase/status: %s/%s", rec.CurrentPhase, rec.Status)
	}

	if mockErr := mock.ExpectationsWereMet(); mockErr != nil {
		t.Fatalf("unmet sqlmock expectations: %v", mockErr)
	}
}

func TestGetPhaseHistory_ReturnsOrderedResults(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	s := &Store{db: db}

	t1 := time.Now().Add(-2 * time.Minute).Truncate(time.Second)
	t2 := t1.Add(1 * time.Minute)

	rows := sqlmock.NewRows([]string{
		"flow_id", "tenant_id", "from_phase", "to_phase", "from_status", "to_status",
		"reason", "actor", "created_at",
	}).
		AddRow(testFlow, testTenant, "", "import", "", "created", "flow created", "user", t1).
		AddRow(testFlow, testTenant, "import", "field_mapping", "created", "running", "", "system", t2)

	mock.ExpectQuery(`SELECT .+ FROM assess\.flow_phase_history`).
		WithArgs(testTenant, testFlow).
		WillReturnRows(rows)

	history, err := s.GetPhaseHistory(context.Background(), testTenant, testFlow)
	if err != nil {
		t.Fatalf("GetPhaseHistory returned error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 transitions, got %d", len(history))
	}
	if history[0].ToPhase != "import" || history[1].ToPhase != "field_mapping" {
		t.Errorf("unexpected order: %s then %s", history[0].ToPhase, history[1].ToPhase)
	}

	if mockErr := mock.ExpectationsWereMet(); mockErr != nil {
		t.Fatalf("unmet sqlmock expectations: %v", mockErr)
	}
}
