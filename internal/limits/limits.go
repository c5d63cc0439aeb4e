// Package limits enforces per-tenant subscription quotas before mutating
// operations.
package limits

import (
	"context"
	"fmt"

	"github.com/osoriodev/ragbase/internal/model"
)

// SubscriptionFinder resolves a company's active subscription.
type SubscriptionFinder interface {
	LatestByCompany(ctx context.Context, companyID string) (*model.Subscription, error)
}

// DocumentCounter counts a company's current documents.
type DocumentCounter interface {
	CountByCompany(ctx context.Context, companyID string) (int, error)
}

// Limiter checks resource usage against subscription quotas.
type Limiter struct {
	subs SubscriptionFinder
	docs DocumentCounter
}

// New constructs a Limiter.
func New(subs SubscriptionFinder, docs DocumentCounter) *Limiter {
	return &Limiter{subs: subs, docs: docs}
}

// CheckDocumentLimit verifies the company may create one more document. The
// active subscription is the most recently started one. The count-then-compare
// is a best-effort check, not atomic with the subsequent insert: two
// concurrent uploads can both pass and jointly exceed the limit by one. That
// weaker consistency is accepted here on purpose.
//
// On success the subscription is returned so callers can reuse fields such as
// MaxQueries without a second lookup.
func (l *Limiter) CheckDocumentLimit(ctx context.Context, companyID string) (*model.Subscription, error) {
	sub, err := l.subs.LatestByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	count, err := l.docs.CountByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	if count >= sub.MaxDocuments {
		return nil, fmt.Errorf("%w (max: %d)", model.ErrLimitReached, sub.MaxDocuments)
	}
	return sub, nil
}
