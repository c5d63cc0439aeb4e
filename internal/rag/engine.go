// Package rag implements the query pipeline: resolve the tenant's documents,
// match chunks against the query text, synthesize an answer from the matches,
// and record the interaction.
package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/osoriodev/ragbase/internal/model"
)

// DefaultMaxResults caps matches when the caller does not ask for a limit.
const DefaultMaxResults = 5

// NoDocumentsAnswer is the fixed answer for tenants with no documents. The
// answer generator is not called in that case.
const NoDocumentsAnswer = "No documents found"

// DocumentFinder resolves the document ids a company owns.
type DocumentFinder interface {
	ListIDsByCompany(ctx context.Context, companyID string) ([]string, error)
}

// ChunkFinder loads chunk rows for a set of documents.
type ChunkFinder interface {
	ListByDocuments(ctx context.Context, documentIDs []string) ([]model.Chunk, error)
}

// AnswerGenerator synthesizes an answer from the query and matched chunks.
// It must never receive chunks from a different tenant than the query's, and
// it returns a fixed diagnostic string for zero chunks instead of failing.
type AnswerGenerator interface {
	Generate(ctx context.Context, query string, chunks []model.Chunk) (string, error)
}

// QueryLogStore records completed query attempts.
type QueryLogStore interface {
	Insert(ctx context.Context, entry *model.QueryLog) error
}

// Engine ties retrieval, generation, and logging together.
type Engine struct {
	docs      DocumentFinder
	chunks    ChunkFinder
	generator AnswerGenerator
	logs      QueryLogStore
	log       zerolog.Logger
}

// New constructs an Engine.
func New(docs DocumentFinder, chunks ChunkFinder, generator AnswerGenerator, logs QueryLogStore, log zerolog.Logger) *Engine {
	return &Engine{
		docs:      docs,
		chunks:    chunks,
		generator: generator,
		logs:      logs,
		log:       log.With().Str("component", "rag").Logger(),
	}
}

// Metadata describes how a query was served.
type Metadata struct {
	ProcessingTime string `json:"processing_time"`
	TotalChunks    int    `json:"total_chunks"`
	ReturnedChunks int    `json:"returned_chunks"`
}

// Result is the combined outcome of one query.
type Result struct {
	Query          string        `json:"query"`
	RelevantChunks []model.Chunk `json:"relevant_chunks"`
	Answer         string        `json:"answer"`
	Metadata       Metadata      `json:"metadata"`
}

// Query answers queryText against the tenant's chunks. A chunk is relevant
// when the query appears as a case-insensitive literal substring of its
// content; at most maxResults matches are kept, in retrieval order. Logging
// failures never fail the query.
func (e *Engine) Query(ctx context.Context, tenant model.TenantContext, queryText string, maxResults int) (*Result, error) {
	start := time.Now()
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	docIDs, err := e.docs.ListIDsByCompany(ctx, tenant.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	if len(docIDs) == 0 {
		return &Result{
			Query:          queryText,
			RelevantChunks: []model.Chunk{},
			Answer:         NoDocumentsAnswer,
			Metadata:       e.metadata(start, 0, 0),
		}, nil
	}

	allChunks, err := e.chunks.ListByDocuments(ctx, docIDs)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}

	needle := strings.ToLower(queryText)
	relevant := []model.Chunk{}
	for _, chunk := range allChunks {
		if len(relevant) >= maxResults {
			break
		}
		if strings.Contains(strings.ToLower(chunk.Content), needle) {
			relevant = append(relevant, chunk)
		}
	}

	answer, err := e.generator.Generate(ctx, queryText, relevant)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrAnswerGeneration, err)
	}

	result := &Result{
		Query:          queryText,
		RelevantChunks: relevant,
		Answer:         answer,
		Metadata:       e.metadata(start, len(allChunks), len(relevant)),
	}
	e.logQuery(ctx, tenant, result)
	return result, nil
}

func (e *Engine) metadata(start time.Time, total, returned int) Metadata {
	return Metadata{
		ProcessingTime: fmt.Sprintf("%.2fs", time.Since(start).Seconds()),
		TotalChunks:    total,
		ReturnedChunks: returned,
	}
}

// logQuery records the interaction best-effort: a logging failure is reported
// through the logger and swallowed so it cannot fail the query response.
func (e *Engine) logQuery(ctx context.Context, tenant model.TenantContext, result *Result) {
	entry := &model.QueryLog{
		ID:        uuid.NewString(),
		CompanyID: tenant.CompanyID,
		UserID:    tenant.UserID,
		Query:     result.Query,
		Response:  result.Answer,
		Metadata: map[string]any{
			"chunks_returned": len(result.RelevantChunks),
			"processing_time": result.Metadata.ProcessingTime,
		},
	}
	if err := e.logs.Insert(ctx, entry); err != nil {
		e.log.Warn().Str("company_id", tenant.CompanyID).Err(err).Msg("query log insert failed")
	}
}
