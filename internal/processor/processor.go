// Package processor orchestrates the document processing pipeline: download,
// text extraction, chunking, chunk persistence, and status tracking. The
// status machine is uploaded → processing → processed|error; processed and
// error are terminal for an attempt, and a fresh Process call may re-enter
// processing from either.
package processor

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/osoriodev/ragbase/internal/chunker"
	"github.com/osoriodev/ragbase/internal/model"
)

// chunkBatchSize bounds how many chunk rows go into one insert round trip.
const chunkBatchSize = 50

// DocumentStore is the slice of the document repository the processor needs.
type DocumentStore interface {
	Get(ctx context.Context, id string) (*model.Document, error)
	SetStatus(ctx context.Context, id string, status model.DocumentStatus) error
	MarkError(ctx context.Context, id, message string) error
	MarkProcessed(ctx context.Context, id string, chunkCount int) error
}

// ChunkStore persists and clears chunk rows.
type ChunkStore interface {
	InsertBatch(ctx context.Context, chunks []model.Chunk) error
	DeleteByDocument(ctx context.Context, documentID string) error
}

// BlobDownloader fetches raw file bytes by storage path.
type BlobDownloader interface {
	Download(ctx context.Context, storagePath string) ([]byte, error)
}

// TextExtractor turns file bytes of a declared type into plain text.
type TextExtractor interface {
	Supported(fileType string) bool
	Extract(data []byte, fileType string) (string, error)
}

// Processor runs the processing pipeline for one document at a time. All
// collaborators are injected so tests can substitute fakes.
type Processor struct {
	docs      DocumentStore
	chunks    ChunkStore
	blobs     BlobDownloader
	extractor TextExtractor
	splitter  *chunker.Chunker
	log       zerolog.Logger
}

// New constructs a Processor.
func New(docs DocumentStore, chunks ChunkStore, blobs BlobDownloader, extractor TextExtractor, splitter *chunker.Chunker, log zerolog.Logger) *Processor {
	return &Processor{
		docs:      docs,
		chunks:    chunks,
		blobs:     blobs,
		extractor: extractor,
		splitter:  splitter,
		log:       log.With().Str("component", "processor").Logger(),
	}
}

// Result summarizes a successful processing pass.
type Result struct {
	DocumentID string
	ChunkCount int
}

// Process runs the full pipeline for the document. Failures after the
// processing transition are converted into a terminal error status with the
// cause recorded in document metadata, and are still returned to the caller
// so the queue boundary can log them and tests can observe them.
func (p *Processor) Process(ctx context.Context, documentID string) (*Result, error) {
	doc, err := p.docs.Get(ctx, documentID)
	if err != nil {
		p.log.Warn().Str("document_id", documentID).Err(err).Msg("document lookup failed")
		return nil, err
	}

	// A known-bad input must never appear in progress, so the file type is
	// validated before the processing transition.
	if !p.extractor.Supported(doc.FileType) {
		message := fmt.Sprintf("Invalid file type: %s", doc.FileType)
		if markErr := p.docs.MarkError(ctx, documentID, message); markErr != nil {
			p.log.Error().Str("document_id", documentID).Err(markErr).Msg("mark error failed")
		}
		return nil, fmt.Errorf("%w: %s", model.ErrUnsupportedFileType, doc.FileType)
	}

	if err := p.docs.SetStatus(ctx, documentID, model.StatusProcessing); err != nil {
		return nil, p.fail(ctx, documentID, fmt.Errorf("set processing: %w", err))
	}

	data, err := p.blobs.Download(ctx, doc.StoragePath)
	if err != nil {
		return nil, p.fail(ctx, documentID, err)
	}

	text, err := p.extractor.Extract(data, doc.FileType)
	if err != nil {
		return nil, p.fail(ctx, documentID, err)
	}

	records := p.splitter.Split(text)
	chunks := make([]model.Chunk, len(records))
	for i, rec := range records {
		chunks[i] = model.Chunk{
			ID:         uuid.NewString(),
			DocumentID: documentID,
			Index:      rec.Index,
			Content:    rec.Content,
			Metadata: map[string]any{
				"start_char": rec.StartChar,
				"end_char":   rec.EndChar,
				"length":     rec.Length(),
			},
		}
	}

	// Reprocessing replaces chunks rather than appending duplicates: clear
	// any rows from a previous pass before writing the new ones.
	if err := p.chunks.DeleteByDocument(ctx, documentID); err != nil {
		return nil, p.fail(ctx, documentID, err)
	}
	for start := 0; start < len(chunks); start += chunkBatchSize {
		end := start + chunkBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := p.chunks.InsertBatch(ctx, chunks[start:end]); err != nil {
			return nil, p.fail(ctx, documentID, err)
		}
	}

	if err := p.docs.MarkProcessed(ctx, documentID, len(chunks)); err != nil {
		return nil, p.fail(ctx, documentID, err)
	}

	p.log.Info().Str("document_id", documentID).Int("chunks", len(chunks)).Msg("document processed")
	return &Result{DocumentID: documentID, ChunkCount: len(chunks)}, nil
}

// fail records the cause on the document and hands the error back.
func (p *Processor) fail(ctx context.Context, documentID string, err error) error {
	p.log.Error().Str("document_id", documentID).Err(err).Msg("processing failed")
	if markErr := p.docs.MarkError(ctx, documentID, err.Error()); markErr != nil {
		p.log.Error().Str("document_id", documentID).Err(markErr).Msg("mark error failed")
	}
	return err
}
