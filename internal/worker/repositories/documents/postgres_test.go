package documents

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dmitrijs2005/absnotary/internal/common"
	"github.com/dmitrijs2005/absnotary/internal/worker/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var documentColumnNames = []string{
	"id", "owner_id", "file_name", "file_hash", "file_path", "kind", "status",
	"transaction_hash", "token_id", "asset_url", "asset_metadata_url",
	"signed_json_path", "signed_pdf_path", "error_message", "created_at", "updated_at",
}

func documentRow(id string, status models.DocStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(documentColumnNames).AddRow(
		id, "owner-1", "contract.pdf", "0xdeadbeef", "/data/contract.pdf", "HASH", string(status),
		nil, nil, nil, nil, nil, nil, nil, now, now,
	)
}

func TestGet_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+.*\s+FROM\s+documents\s+WHERE\s+id\s*=\s*\$1\s*$`
	mock.ExpectQuery(q).
		WithArgs("doc-1").
		WillReturnRows(documentRow("doc-1", models.StatusPending))

	got, err := repo.Get(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.ID != "doc-1" || got.Status != models.StatusPending {
		t.Fatalf("unexpected document: %+v", got)
	}
	if got.TransactionHash != "" || got.TokenID != nil {
		t.Fatalf("expected empty optional fields, got %+v", got)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+.*\s+FROM\s+documents`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreate_AssignsIDAndPendingStatus(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*INSERT\s+INTO\s+documents\s*\(id,\s*owner_id,\s*file_name,\s*file_hash,\s*file_path,\s*kind,\s*status\)`
	mock.ExpectQuery(q).
		WithArgs(sqlmock.AnyArg(), "owner-1", "contract.pdf", "0xdeadbeef", "/data/contract.pdf", models.KindHash, models.StatusPending).
		WillReturnRows(documentRow("generated-id", models.StatusPending))

	doc := &models.Document{
		OwnerID:  "owner-1",
		FileName: "contract.pdf",
		FileHash: "0xdeadbeef",
		FilePath: "/data/contract.pdf",
		Kind:     models.KindHash,
	}
	got, err := repo.Create(context.Background(), doc)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != "generated-id" {
		t.Fatalf("unexpected document: %+v", got)
	}
	if doc.ID == "" {
		t.Fatal("expected an id to be assigned")
	}
}

func TestUpdate_PatchesOnlyProvidedFields(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+documents\s+SET\s+status\s*=\s*\$1,\s*transaction_hash\s*=\s*\$2,\s*updated_at\s*=\s*now\(\)\s+WHERE\s+id\s*=\s*\$3\s+RETURNING`
	rows := documentRow("doc-1", models.StatusProcessing)
	mock.ExpectQuery(q).
		WithArgs(models.StatusProcessing, "0x111", "doc-1").
		WillReturnRows(rows)

	status := models.StatusProcessing
	tx := "0x111"
	got, err := repo.Update(context.Background(), "doc-1", models.DocumentUpdate{
		Status:          &status,
		TransactionHash: &tx,
	})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if got.ID != "doc-1" {
		t.Fatalf("unexpected document: %+v", got)
	}
}

func TestUpdate_EmptyPatchFallsBackToGet(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+.*\s+FROM\s+documents\s+WHERE\s+id\s*=\s*\$1\s*$`).
		WithArgs("doc-1").
		WillReturnRows(documentRow("doc-1", models.StatusPending))

	got, err := repo.Update(context.Background(), "doc-1", models.DocumentUpdate{})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if got.ID != "doc-1" {
		t.Fatalf("unexpected document: %+v", got)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^UPDATE\s+documents\s+SET`).
		WillReturnError(sql.ErrNoRows)

	status := models.StatusError
	_, err := repo.Update(context.Background(), "missing", models.DocumentUpdate{Status: &status})
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBeginProcessing_WinsRace(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*UPDATE\s+documents\s+SET\s+status\s*=\s*\$1,\s*updated_at\s*=\s*now\(\)\s+WHERE\s+id\s*=\s*\$2\s+AND\s+status\s*=\s*\$3\s*$`
	mock.ExpectExec(q).
		WithArgs(models.StatusProcessing, "doc-1", models.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	won, err := repo.BeginProcessing(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("BeginProcessing error: %v", err)
	}
	if !won {
		t.Fatal("expected transition to be won")
	}
}

func TestBeginProcessing_LosesRace(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^\s*UPDATE\s+documents\s+SET\s+status`).
		WithArgs(models.StatusProcessing, "doc-1", models.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	won, err := repo.BeginProcessing(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("BeginProcessing error: %v", err)
	}
	if won {
		t.Fatal("expected transition to be lost")
	}
}

func TestBeginProcessing_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^\s*UPDATE\s+documents\s+SET\s+status`).
		WillReturnError(errors.New("db down"))

	_, err := repo.BeginProcessing(context.Background(), "doc-1")
	if err == nil {
		t.Fatal("expected an error")
	}
}
