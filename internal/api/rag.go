package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

type queryRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

// handleRAGQuery runs retrieval and answer generation over the tenant's
// processed documents.
func (s *Server) handleRAGQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tenant := tenantFrom(r)
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	result, err := s.engine.Query(r.Context(), tenant, req.Query, req.MaxResults)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleQueryLogs lists the caller's query history. Admins see logs across
// all companies.
func (s *Server) handleQueryLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tenant := tenantFrom(r)
	limit := queryInt(r, "limit", defaultLogPageSize)
	offset := queryInt(r, "offset", 0)
	if tenant.IsAdmin() {
		logs, err := s.queryLogs.ListAll(r.Context(), limit, offset)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, logs)
		return
	}
	logs, err := s.queryLogs.ListByCompany(r.Context(), tenant.CompanyID, limit, offset)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, logs)
}

const defaultLogPageSize = 50

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}
