package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/osoriodev/ragbase/internal/model"
)

type createSubscriptionRequest struct {
	CompanyID    string     `json:"company_id"`
	PlanType     string     `json:"plan_type"`
	MaxDocuments int        `json:"max_documents"`
	MaxQueries   int        `json:"max_queries"`
	StartDate    *time.Time `json:"start_date"`
	EndDate      *time.Time `json:"end_date"`
}

type updateSubscriptionRequest struct {
	PlanType     string     `json:"plan_type"`
	MaxDocuments int        `json:"max_documents"`
	MaxQueries   int        `json:"max_queries"`
	EndDate      *time.Time `json:"end_date"`
}

// handleSubscriptions creates subscriptions (admin only) or returns the
// caller's active one. Creating is how a tenant's quota gate becomes
// satisfiable at all: without a subscription every document registration is
// rejected.
func (s *Server) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateSubscription(w, r)
	case http.MethodGet:
		s.handleActiveSubscription(w, r)
	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r)
	if !tenant.IsAdmin() {
		respondError(w, http.StatusForbidden, "admin access required")
		return
	}
	var req createSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CompanyID == "" {
		respondError(w, http.StatusBadRequest, "company_id is required")
		return
	}
	plan, ok := parsePlan(req.PlanType)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid plan_type")
		return
	}
	if req.MaxDocuments <= 0 || req.MaxQueries <= 0 {
		respondError(w, http.StatusBadRequest, "limits must be positive")
		return
	}

	start := time.Now().UTC()
	if req.StartDate != nil {
		start = req.StartDate.UTC()
	}
	end := start.AddDate(1, 0, 0)
	if req.EndDate != nil {
		end = req.EndDate.UTC()
	}
	sub := &model.Subscription{
		ID:           uuid.NewString(),
		CompanyID:    req.CompanyID,
		PlanType:     plan,
		MaxDocuments: req.MaxDocuments,
		MaxQueries:   req.MaxQueries,
		StartDate:    start,
		EndDate:      end,
	}
	if err := s.subs.Create(r.Context(), sub); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, sub)
}

// handleActiveSubscription returns the caller's active subscription, the most
// recently started one.
func (s *Server) handleActiveSubscription(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r)
	sub, err := s.subs.LatestByCompany(r.Context(), tenant.CompanyID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sub)
}

// handleSubscriptionRoute updates an existing subscription's plan, limits, or
// end date. Admin only.
func (s *Server) handleSubscriptionRoute(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/subscriptions/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPut {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tenant := tenantFrom(r)
	if !tenant.IsAdmin() {
		respondError(w, http.StatusForbidden, "admin access required")
		return
	}
	var req updateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	plan, ok := parsePlan(req.PlanType)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid plan_type")
		return
	}
	if req.MaxDocuments <= 0 || req.MaxQueries <= 0 {
		respondError(w, http.StatusBadRequest, "limits must be positive")
		return
	}
	// PUT replaces the mutable fields wholesale, so the end date is required
	// rather than defaulted to the zero timestamp.
	if req.EndDate == nil {
		respondError(w, http.StatusBadRequest, "end_date is required")
		return
	}
	sub := &model.Subscription{
		ID:           id,
		PlanType:     plan,
		MaxDocuments: req.MaxDocuments,
		MaxQueries:   req.MaxQueries,
		EndDate:      req.EndDate.UTC(),
	}
	if err := s.subs.Update(r.Context(), sub); err != nil {
		if errors.Is(err, model.ErrNoActiveSubscription) {
			respondError(w, http.StatusNotFound, "Subscription not found")
			return
		}
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Subscription updated successfully"})
}

func parsePlan(plan string) (model.PlanType, bool) {
	switch model.PlanType(strings.ToLower(plan)) {
	case model.PlanFree:
		return model.PlanFree, true
	case model.PlanPro:
		return model.PlanPro, true
	case model.PlanEnterprise:
		return model.PlanEnterprise, true
	default:
		return "", false
	}
}
