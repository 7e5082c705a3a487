package store

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

const testBatch = "cccccccc-cccc-cccc-cccc-cccccccccccc"

func TestCreateImportBatch_ReturnsGeneratedID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	s := &Store{db: db}

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO assess.import_batches`)).
		WithArgs(testTenant, nil, "cmdb-export.csv", "csv", 120, "received", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"batch_id"}).AddRow(testBatch))

	batch := &ImportBatch{
		TenantID:    testTenant,
		SourceName:  "cmdb-export.csv",
		Format:      "csv",
		RecordCount: 120,
		Status:      "received",
		RawColumns:  JSONBStringArray{"Host Name", "ipAddress", "OS"},
	}
	batchID, err := s.CreateImportBatch(context.Background(), batch)
	if err != nil {
		t.Fatalf("CreateImportBatch returned error: %v", err)
	}
	if batchID != testBatch {
		t.Errorf("unexpected batch id: %s", batchID)
	}

	if mockErr := mock.ExpectationsWereMet(); mockErr != nil {
		t.Fatalf("unmet sqlmock expectations: %v", mockErr)
	}
}

func TestSaveFieldMappings_UpsertsEachMapping(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	s := &Store{db: db}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO assess.field_mappings`)).
		WithArgs(testTenant, testBatch, "Host Name", "hostname", 0.95, "normalized", false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO assess.field_mappings`)).
		WithArgs(testTenant, testBatch, "ipAddress", "ip_address", 1.0, "synonym", false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mappings := []FieldMapping{
		{TenantID: testTenant, BatchID: testBatch, SourceColumn: "Host Name", CanonicalField: "hostname", Confidence: 0.95, Method: "normalized"},
		{TenantID: testTenant, BatchID: testBatch, SourceColumn: "ipAddress", CanonicalField: "ip_address", Confidence: 1.0, Method: "synonym"},
	}
	if err := s.SaveFieldMappings(context.Background(), mappings); err != nil {
		t.Fatalf("SaveFieldMappings returned error: %v", err)
	}

	if mockErr := mock.ExpectationsWereMet(); mockErr != nil {
		t.Fatalf("unmet sqlmock expectations: %v", mockErr)
	}
}

func TestSaveFieldMappings_EmptySliceIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	s := &Store{db: db}
	if err := s.SaveFieldMappings(context.Background(), nil); err != nil {
		t.Fatalf("SaveFieldMappings returned error: %v", err)
	}
	if mockErr := mock.ExpectationsWereMet(); mockErr != nil {
		t.Fatalf("unexpected database calls: %v", mockErr)
	}
}

func TestGetImportBatch_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	s := &Store{db: db}

	mock.ExpectQuery(`SELECT .+ FROM assess\.import_batches`).
		WithArgs(testTenant, testBatch).
		WillReturnRows(sqlmock.NewRows([]string{"batch_id"}))

	_, err = s.GetImportBatch(context.Background(), testTenant, testBatch)
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
