package model

import "time"

// PlanType enumerates subscription tiers.
type PlanType string

const (
	PlanFree       PlanType = "free"
	PlanPro        PlanType = "pro"
	PlanEnterprise PlanType = "enterprise"
)

// Subscription caps a company's resource usage. MaxDocuments and MaxQueries
// are strictly positive. At most one subscription is considered active per
// company: the most recently started one.
type Subscription struct {
	ID           string    `json:"id"`
	CompanyID    string    `json:"company_id"`
	PlanType     PlanType  `json:"plan_type"`
	MaxDocuments int       `json:"max_documents"`
	MaxQueries   int       `json:"max_queries"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
}

// QueryLog records one completed RAG query attempt. Rows are immutable once
// written and are never deleted by the service.
type QueryLog struct {
	ID             string         `json:"id"`
	CompanyID      string         `json:"company_id"`
	UserID         string         `json:"user_id"`
	Query          string         `json:"query"`
	Response       string         `json:"response"`
	RelevanceScore *float64       `json:"relevance_score,omitempty"`
	Metadata       map[string]any `json:"metadata"`
	CreatedAt      time.Time      `json:"created_at"`
}
