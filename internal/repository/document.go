// Package repository wraps all SQL used throughout the api and worker. Every
// tenant-facing method takes the company id explicitly; absence of rows maps
// to the model sentinel errors so callers never see pgx internals.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/osoriodev/ragbase/internal/model"
)

// DocumentRepository persists documents.
type DocumentRepository struct {
	pool *pgxpool.Pool
}

// NewDocumentRepository constructs a repository.
func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

const documentColumns = `id, company_id, file_name, file_type, storage_path, metadata, status, chunk_count, uploaded_at, updated_at`

// Create inserts a document in status uploaded.
func (r *DocumentRepository) Create(ctx context.Context, doc *model.Document) error {
	now := time.Now().UTC()
	if doc.Status == "" {
		doc.Status = model.StatusUploaded
	}
	if doc.Metadata == nil {
		doc.Metadata = map[string]any{}
	}
	doc.UploadedAt = now
	doc.UpdatedAt = now
	_, err := r.pool.Exec(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, doc.ID, doc.CompanyID, doc.FileName, doc.FileType, doc.StoragePath,
		doc.Metadata, doc.Status, doc.ChunkCount, doc.UploadedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// Get returns a document by id without tenant scoping. The worker path uses
// it; request handlers must use GetForCompany instead.
func (r *DocumentRepository) Get(ctx context.Context, id string) (*model.Document, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id=$1`, id)
	return scanDocument(row)
}

// GetForCompany returns a document by id scoped to the owning company. A
// document owned by another tenant is reported the same way as a missing one.
func (r *DocumentRepository) GetForCompany(ctx context.Context, id, companyID string) (*model.Document, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+documentColumns+` FROM documents WHERE id=$1 AND company_id=$2
	`, id, companyID)
	return scanDocument(row)
}

// ListByCompany returns all of a company's documents, newest first.
func (r *DocumentRepository) ListByCompany(ctx context.Context, companyID string) ([]model.Document, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+documentColumns+` FROM documents WHERE company_id=$1 ORDER BY uploaded_at DESC
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("select documents: %w", err)
	}
	defer rows.Close()

	docs := []model.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// ListIDsByCompany returns the ids of all documents a company owns.
func (r *DocumentRepository) ListIDsByCompany(ctx context.Context, companyID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM documents WHERE company_id=$1`, companyID)
	if err != nil {
		return nil, fmt.Errorf("select document ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan document id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountByCompany returns how many documents a company currently has.
func (r *DocumentRepository) CountByCompany(ctx context.Context, companyID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents WHERE company_id=$1`, companyID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

// Update changes mutable fields of a tenant's document. Nil arguments leave
// the column untouched.
func (r *DocumentRepository) Update(ctx context.Context, id, companyID string, fileName *string, metadata map[string]any, status *model.DocumentStatus) (*model.Document, error) {
	now := time.Now().UTC()
	tag, err := r.pool.Exec(ctx, `
		UPDATE documents
		SET file_name = COALESCE($1, file_name),
			metadata = COALESCE($2, metadata),
			status = COALESCE($3, status),
			updated_at = $4
		WHERE id=$5 AND company_id=$6
	`, fileName, metadata, status, now, id, companyID)
	if err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, model.ErrDocumentNotFound
	}
	return r.GetForCompany(ctx, id, companyID)
}

// SetStatus transitions the document status and refreshes updated_at.
func (r *DocumentRepository) SetStatus(ctx context.Context, id string, status model.DocumentStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE documents SET status=$1, updated_at=$2 WHERE id=$3
	`, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrDocumentNotFound
	}
	return nil
}

// MarkError sets status error and records the cause in document metadata.
func (r *DocumentRepository) MarkError(ctx context.Context, id, message string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE documents
		SET status=$1,
			metadata = jsonb_set(metadata, '{error}', to_jsonb($2::text)),
			updated_at=$3
		WHERE id=$4
	`, model.StatusError, message, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrDocumentNotFound
	}
	return nil
}

// MarkProcessed sets the terminal success status and the derived chunk count.
func (r *DocumentRepository) MarkProcessed(ctx context.Context, id string, chunkCount int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE documents SET status=$1, chunk_count=$2, updated_at=$3 WHERE id=$4
	`, model.StatusProcessed, chunkCount, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrDocumentNotFound
	}
	return nil
}

// Delete removes a tenant's document after its chunks, so chunks never
// outlive the document.
func (r *DocumentRepository) Delete(ctx context.Context, id, companyID string) error {
	if _, err := r.GetForCompany(ctx, id, companyID); err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, `DELETE FROM document_chunks WHERE document_id=$1`, id); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE id=$1 AND company_id=$2`, id, companyID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrDocumentNotFound
	}
	return nil
}

func scanDocument(row pgx.Row) (*model.Document, error) {
	var doc model.Document
	err := row.Scan(&doc.ID, &doc.CompanyID, &doc.FileName, &doc.FileType, &doc.StoragePath,
		&doc.Metadata, &doc.Status, &doc.ChunkCount, &doc.UploadedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return &doc, nil
}
