package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/osoriodev/ragbase/internal/model"
)

// ChunkRepository persists document chunks.
type ChunkRepository struct {
	pool *pgxpool.Pool
}

// NewChunkRepository constructs a repository.
func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{pool: pool}
}

const chunkColumns = `id, document_id, chunk_index, content, metadata, embedding_id, created_at`

// InsertBatch writes chunks in index order using a single batched round trip.
func (r *ChunkRepository) InsertBatch(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for i := range chunks {
		if chunks[i].CreatedAt.IsZero() {
			chunks[i].CreatedAt = now
		}
		if chunks[i].Metadata == nil {
			chunks[i].Metadata = map[string]any{}
		}
		batch.Queue(`
			INSERT INTO document_chunks (`+chunkColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, chunks[i].ID, chunks[i].DocumentID, chunks[i].Index, chunks[i].Content,
			chunks[i].Metadata, chunks[i].EmbeddingID, chunks[i].CreatedAt)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert chunks: %w", err)
	}
	return nil
}

// DeleteByDocument removes every chunk of a document. Used by reprocessing
// cleanup before a fresh pass writes replacements.
func (r *ChunkRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM document_chunks WHERE document_id=$1`, documentID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

// ListByDocument returns a document's chunks ordered by chunk_index.
func (r *ChunkRepository) ListByDocument(ctx context.Context, documentID string) ([]model.Chunk, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+chunkColumns+` FROM document_chunks WHERE document_id=$1 ORDER BY chunk_index
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("select chunks: %w", err)
	}
	return collectChunks(rows)
}

// ListByDocuments returns all chunks belonging to any of the given documents,
// in stable retrieval order.
func (r *ChunkRepository) ListByDocuments(ctx context.Context, documentIDs []string) ([]model.Chunk, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+chunkColumns+` FROM document_chunks
		WHERE document_id = ANY($1)
		ORDER BY document_id, chunk_index
	`, documentIDs)
	if err != nil {
		return nil, fmt.Errorf("select chunks: %w", err)
	}
	return collectChunks(rows)
}

// CountByDocument returns how many chunk rows a document has.
func (r *ChunkRepository) CountByDocument(ctx context.Context, documentID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM document_chunks WHERE document_id=$1`, documentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return count, nil
}

func collectChunks(rows pgx.Rows) ([]model.Chunk, error) {
	defer rows.Close()
	chunks := []model.Chunk{}
	for rows.Next() {
		var c model.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Content, &c.Metadata, &c.EmbeddingID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}
