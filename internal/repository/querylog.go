package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/osoriodev/ragbase/internal/model"
)

// QueryLogRepository persists RAG query logs. Rows are write-once; the
// service never updates or deletes them.
type QueryLogRepository struct {
	pool *pgxpool.Pool
}

// NewQueryLogRepository constructs a repository.
func NewQueryLogRepository(pool *pgxpool.Pool) *QueryLogRepository {
	return &QueryLogRepository{pool: pool}
}

const queryLogColumns = `id, company_id, user_id, query, response, relevance_score, metadata, created_at`

// Insert writes one query log row.
func (r *QueryLogRepository) Insert(ctx context.Context, entry *model.QueryLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Metadata == nil {
		entry.Metadata = map[string]any{}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO query_logs (`+queryLogColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.CompanyID, entry.UserID, entry.Query, entry.Response,
		entry.RelevanceScore, entry.Metadata, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert query log: %w", err)
	}
	return nil
}

// ListByCompany returns a company's query logs, newest first.
func (r *QueryLogRepository) ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]model.QueryLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+queryLogColumns+` FROM query_logs
		WHERE company_id=$1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, companyID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("select query logs: %w", err)
	}
	return collectQueryLogs(rows)
}

// ListAll returns query logs across all tenants, newest first. Admin only.
func (r *QueryLogRepository) ListAll(ctx context.Context, limit, offset int) ([]model.QueryLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+queryLogColumns+` FROM query_logs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("select query logs: %w", err)
	}
	return collectQueryLogs(rows)
}

func collectQueryLogs(rows pgx.Rows) ([]model.QueryLog, error) {
	defer rows.Close()
	logs := []model.QueryLog{}
	for rows.Next() {
		var (
			l        model.QueryLog
			response *string
		)
		if err := rows.Scan(&l.ID, &l.CompanyID, &l.UserID, &l.Query, &response,
			&l.RelevanceScore, &l.Metadata, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan query log: %w", err)
		}
		if response != nil {
			l.Response = *response
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
