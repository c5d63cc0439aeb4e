package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/osoriodev/ragbase/internal/model"
)

// SubscriptionRepository persists subscriptions.
type SubscriptionRepository struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepository constructs a repository.
func NewSubscriptionRepository(pool *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{pool: pool}
}

const subscriptionColumns = `id, company_id, plan_type, max_documents, max_queries, start_date, end_date`

// Create inserts a subscription.
func (r *SubscriptionRepository) Create(ctx context.Context, sub *model.Subscription) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, sub.ID, sub.CompanyID, sub.PlanType, sub.MaxDocuments, sub.MaxQueries, sub.StartDate, sub.EndDate)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

// LatestByCompany returns the company's most recently started subscription,
// which is the one this service treats as active.
func (r *SubscriptionRepository) LatestByCompany(ctx context.Context, companyID string) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.pool.QueryRow(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE company_id=$1
		ORDER BY start_date DESC
		LIMIT 1
	`, companyID).Scan(&sub.ID, &sub.CompanyID, &sub.PlanType, &sub.MaxDocuments,
		&sub.MaxQueries, &sub.StartDate, &sub.EndDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNoActiveSubscription
		}
		return nil, fmt.Errorf("select subscription: %w", err)
	}
	return &sub, nil
}

// Update changes plan, limits, or validity window of a subscription.
func (r *SubscriptionRepository) Update(ctx context.Context, sub *model.Subscription) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE subscriptions
		SET plan_type=$1, max_documents=$2, max_queries=$3, end_date=$4
		WHERE id=$5
	`, sub.PlanType, sub.MaxDocuments, sub.MaxQueries, sub.EndDate, sub.ID)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNoActiveSubscription
	}
	return nil
}
