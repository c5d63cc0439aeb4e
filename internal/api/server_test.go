package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osoriodev/ragbase/internal/auth"
	"github.com/osoriodev/ragbase/internal/model"
)

func TestWithAuth(t *testing.T) {
	tokens := auth.NewTokenService([]byte("test-secret"))
	s := &Server{tokens: tokens, log: zerolog.Nop()}

	var captured model.TenantContext
	handler := s.withAuth(func(w http.ResponseWriter, r *http.Request) {
		captured = tenantFrom(r)
		w.WriteHeader(http.StatusOK)
	})

	t.Run("valid token passes tenant through", func(t *testing.T) {
		token, err := tokens.Issue(auth.Claims{
			Subject:   "user-1",
			UserID:    "user-1",
			CompanyID: "company-1",
			Role:      "member",
		}, time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/documents", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "company-1", captured.CompanyID)
		assert.Equal(t, "user-1", captured.UserID)
	})

	t.Run("missing header rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/documents", nil)
		rec := httptest.NewRecorder()
		handler(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("tampered token rejected", func(t *testing.T) {
		token, err := tokens.Issue(auth.Claims{CompanyID: "company-1"}, time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/documents", nil)
		req.Header.Set("Authorization", "Bearer "+token+"x")
		rec := httptest.NewRecorder()
		handler(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRespondDomainError(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{model.ErrDocumentNotFound, http.StatusNotFound},
		{model.ErrNoActiveSubscription, http.StatusForbidden},
		{fmt.Errorf("%w (max: 10)", model.ErrLimitReached), http.StatusForbidden},
		{model.ErrUnsupportedFileType, http.StatusBadRequest},
		{model.ErrAnswerGeneration, http.StatusBadGateway},
		{model.ErrStorageUnavailable, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		respondDomainError(rec, tc.err)
		assert.Equalf(t, tc.status, rec.Code, "error %v", tc.err)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	}
}

func TestTypeFromName(t *testing.T) {
	assert.Equal(t, "pdf", typeFromName("report.PDF"))
	assert.Equal(t, "docx", typeFromName("notes.docx"))
	assert.Equal(t, "", typeFromName("noextension"))
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/query-logs?limit=20&offset=-3&junk=x", nil)
	assert.Equal(t, 20, queryInt(req, "limit", 50))
	assert.Equal(t, 0, queryInt(req, "offset", 0))
	assert.Equal(t, 50, queryInt(req, "missing", 50))
	assert.Equal(t, 50, queryInt(req, "junk", 50))
}

func TestCORSPreflight(t *testing.T) {
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler should not run for OPTIONS")
	}))
	req := httptest.NewRequest(http.MethodOptions, "/documents", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
