// Package documents provides the PostgreSQL-backed repository for
// notarization documents.
package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/absnotary/internal/common"
	"github.com/dmitrijs2005/absnotary/internal/dbx"
	"github.com/dmitrijs2005/absnotary/internal/worker/models"
)

// PostgresRepository implements document storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const documentColumns = `id, owner_id, file_name, file_hash, file_path, kind, status,
	transaction_hash, token_id, asset_url, asset_metadata_url,
	signed_json_path, signed_pdf_path, error_message, created_at, updated_at`

func scanDocument(row interface{ Scan(...any) error }) (*models.Document, error) {
	var d models.Document
	var txHash, assetURL, assetMetaURL, jsonPath, pdfPath, errMsg sql.NullString
	var tokenID sql.NullInt64

	err := row.Scan(
		&d.ID, &d.OwnerID, &d.FileName, &d.FileHash, &d.FilePath, &d.Kind, &d.Status,
		&txHash, &tokenID, &assetURL, &assetMetaURL,
		&jsonPath, &pdfPath, &errMsg, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.TransactionHash = txHash.String
	if tokenID.Valid {
		v := tokenID.Int64
		d.TokenID = &v
	}
	d.AssetURL = assetURL.String
	d.AssetMetadataURL = assetMetaURL.String
	d.SignedJSONPath = jsonPath.String
	d.SignedPDFPath = pdfPath.String
	d.ErrorMessage = errMsg.String

	return &d, nil
}

// Get fetches a document by id, or common.ErrNotFound.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`

	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("select document: %w", err)
	}
	return doc, nil
}

// Create inserts a new PENDING document and returns the stored record.
// A missing ID is assigned.
func (r *PostgresRepository) Create(ctx context.Context, doc *models.Document) (*models.Document, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Status == "" {
		doc.Status = models.StatusPending
	}

	query := `
		INSERT INTO documents (id, owner_id, file_name, file_hash, file_path, kind, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + documentColumns

	created, err := scanDocument(r.db.QueryRowContext(ctx, query,
		doc.ID, doc.OwnerID, doc.FileName, doc.FileHash, doc.FilePath, doc.Kind, doc.Status))
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	return created, nil
}

// Update applies the non-nil fields of patch and returns the updated row,
// or common.ErrNotFound when the document does not exist.
func (r *PostgresRepository) Update(ctx context.Context, id string, patch models.DocumentUpdate) (*models.Document, error) {
	sets := make([]string, 0, 8)
	args := make([]any, 0, 9)

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.TransactionHash != nil {
		add("transaction_hash", *patch.TransactionHash)
	}
	if patch.TokenID != nil {
		add("token_id", *patch.TokenID)
	}
	if patch.AssetURL != nil {
		add("asset_url", *patch.AssetURL)
	}
	if patch.AssetMetadataURL != nil {
		add("asset_metadata_url", *patch.AssetMetadataURL)
	}
	if patch.SignedJSONPath != nil {
		add("signed_json_path", *patch.SignedJSONPath)
	}
	if patch.SignedPDFPath != nil {
		add("signed_pdf_path", *patch.SignedPDFPath)
	}
	if patch.ErrorMessage != nil {
		add("error_message", *patch.ErrorMessage)
	}

	if len(sets) == 0 {
		return r.Get(ctx, id)
	}

	sets = append(sets, "updated_at = now()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE documents SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), documentColumns)

	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("update document: %w", err)
	}
	return doc, nil
}

// BeginProcessing performs the conditional PENDING → PROCESSING transition.
func (r *PostgresRepository) BeginProcessing(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE documents SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3`

	res, err := r.db.ExecContext(ctx, query, models.StatusProcessing, id, models.StatusPending)
	if err != nil {
		return false, fmt.Errorf("begin processing: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}
