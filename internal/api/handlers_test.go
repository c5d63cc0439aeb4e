package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osoriodev/ragbase/internal/limits"
	"github.com/osoriodev/ragbase/internal/model"
)

type fakeDocs struct {
	docs map[string]*model.Document
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{docs: map[string]*model.Document{}}
}

func (f *fakeDocs) Create(_ context.Context, doc *model.Document) error {
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeDocs) GetForCompany(_ context.Context, id, companyID string) (*model.Document, error) {
	doc, ok := f.docs[id]
	if !ok || doc.CompanyID != companyID {
		return nil, model.ErrDocumentNotFound
	}
	return doc, nil
}

func (f *fakeDocs) ListByCompany(_ context.Context, companyID string) ([]model.Document, error) {
	out := []model.Document{}
	for _, doc := range f.docs {
		if doc.CompanyID == companyID {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (f *fakeDocs) Update(_ context.Context, id, companyID string, _ *string, _ map[string]any, _ *model.DocumentStatus) (*model.Document, error) {
	return f.GetForCompany(context.Background(), id, companyID)
}

func (f *fakeDocs) Delete(_ context.Context, id, companyID string) error {
	if _, err := f.GetForCompany(context.Background(), id, companyID); err != nil {
		return err
	}
	delete(f.docs, id)
	return nil
}

type fakeChunks struct {
	chunks []model.Chunk
	total  int
}

func (f *fakeChunks) ListByDocument(_ context.Context, _ string) ([]model.Chunk, error) {
	return f.chunks, nil
}

func (f *fakeChunks) CountByDocument(_ context.Context, _ string) (int, error) {
	return f.total, nil
}

type fakeSubs struct {
	created []*model.Subscription
	updated *model.Subscription
	known   map[string]bool
	latest  *model.Subscription
}

func (f *fakeSubs) Create(_ context.Context, sub *model.Subscription) error {
	f.created = append(f.created, sub)
	f.latest = sub
	return nil
}

func (f *fakeSubs) Update(_ context.Context, sub *model.Subscription) error {
	if !f.known[sub.ID] {
		return model.ErrNoActiveSubscription
	}
	f.updated = sub
	return nil
}

func (f *fakeSubs) LatestByCompany(_ context.Context, _ string) (*model.Subscription, error) {
	if f.latest == nil {
		return nil, model.ErrNoActiveSubscription
	}
	return f.latest, nil
}

type fakeBlobs struct{}

func (fakeBlobs) Upload(context.Context, string, io.Reader, int64, string) error { return nil }
func (fakeBlobs) Delete(context.Context, string) error                           { return nil }
func (fakeBlobs) PublicURL(storagePath string) string {
	return "http://blobs.local/documents/" + storagePath
}

type fixedCount int

func (c fixedCount) CountByCompany(context.Context, string) (int, error) { return int(c), nil }

func authedRequest(method, target string, body io.Reader, tenant model.TenantContext) *http.Request {
	req := httptest.NewRequest(method, target, body)
	return req.WithContext(context.WithValue(req.Context(), tenantKey{}, tenant))
}

func TestCreateSubscription(t *testing.T) {
	admin := model.TenantContext{CompanyID: "admin-co", UserID: "root", Role: model.RoleAdmin}
	member := model.TenantContext{CompanyID: "company-1", UserID: "user-1", Role: "member"}

	t.Run("non-admin rejected", func(t *testing.T) {
		subs := &fakeSubs{}
		s := &Server{subs: subs, log: zerolog.Nop()}
		body := strings.NewReader(`{"company_id":"company-1","plan_type":"free","max_documents":10,"max_queries":100}`)
		rec := httptest.NewRecorder()
		s.handleSubscriptions(rec, authedRequest(http.MethodPost, "/subscriptions", body, member))

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Empty(t, subs.created)
	})

	t.Run("admin creates and quota gate opens", func(t *testing.T) {
		subs := &fakeSubs{}
		s := &Server{subs: subs, log: zerolog.Nop()}
		body := strings.NewReader(`{"company_id":"company-1","plan_type":"pro","max_documents":10,"max_queries":100}`)
		rec := httptest.NewRecorder()
		s.handleSubscriptions(rec, authedRequest(http.MethodPost, "/subscriptions", body, admin))

		require.Equal(t, http.StatusCreated, rec.Code)
		require.Len(t, subs.created, 1)
		sub := subs.created[0]
		assert.Equal(t, "company-1", sub.CompanyID)
		assert.Equal(t, model.PlanPro, sub.PlanType)
		assert.Equal(t, 10, sub.MaxDocuments)
		assert.NotEmpty(t, sub.ID)
		assert.Equal(t, sub.StartDate.AddDate(1, 0, 0), sub.EndDate)

		// Before the create, no document could pass the limiter at all;
		// afterwards a tenant with headroom gets through.
		limiter := limits.New(subs, fixedCount(3))
		got, err := limiter.CheckDocumentLimit(context.Background(), "company-1")
		require.NoError(t, err)
		assert.Equal(t, sub.ID, got.ID)
	})

	t.Run("invalid plan rejected", func(t *testing.T) {
		subs := &fakeSubs{}
		s := &Server{subs: subs, log: zerolog.Nop()}
		body := strings.NewReader(`{"company_id":"company-1","plan_type":"platinum","max_documents":10,"max_queries":100}`)
		rec := httptest.NewRecorder()
		s.handleSubscriptions(rec, authedRequest(http.MethodPost, "/subscriptions", body, admin))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, subs.created)
	})

	t.Run("caller reads its active subscription", func(t *testing.T) {
		subs := &fakeSubs{latest: &model.Subscription{ID: "sub-1", CompanyID: "company-1", PlanType: model.PlanFree}}
		s := &Server{subs: subs, log: zerolog.Nop()}
		rec := httptest.NewRecorder()
		s.handleSubscriptions(rec, authedRequest(http.MethodGet, "/subscriptions", nil, member))

		require.Equal(t, http.StatusOK, rec.Code)
		var got model.Subscription
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "sub-1", got.ID)
	})
}

func TestUpdateSubscription(t *testing.T) {
	admin := model.TenantContext{CompanyID: "admin-co", UserID: "root", Role: model.RoleAdmin}
	end := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	payload := `{"plan_type":"enterprise","max_documents":500,"max_queries":5000,"end_date":"2027-01-01T00:00:00Z"}`

	t.Run("unknown id is 404", func(t *testing.T) {
		subs := &fakeSubs{known: map[string]bool{}}
		s := &Server{subs: subs, log: zerolog.Nop()}
		rec := httptest.NewRecorder()
		s.handleSubscriptionRoute(rec, authedRequest(http.MethodPut, "/subscriptions/missing", strings.NewReader(payload), admin))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("replaces plan and limits", func(t *testing.T) {
		subs := &fakeSubs{known: map[string]bool{"sub-1": true}}
		s := &Server{subs: subs, log: zerolog.Nop()}
		rec := httptest.NewRecorder()
		s.handleSubscriptionRoute(rec, authedRequest(http.MethodPut, "/subscriptions/sub-1", strings.NewReader(payload), admin))

		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, subs.updated)
		assert.Equal(t, model.PlanEnterprise, subs.updated.PlanType)
		assert.Equal(t, 500, subs.updated.MaxDocuments)
		assert.Equal(t, end, subs.updated.EndDate)
	})

	t.Run("missing end_date rejected", func(t *testing.T) {
		subs := &fakeSubs{known: map[string]bool{"sub-1": true}}
		s := &Server{subs: subs, log: zerolog.Nop()}
		body := strings.NewReader(`{"plan_type":"pro","max_documents":10,"max_queries":100}`)
		rec := httptest.NewRecorder()
		s.handleSubscriptionRoute(rec, authedRequest(http.MethodPut, "/subscriptions/sub-1", body, admin))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Nil(t, subs.updated)
	})
}

func TestHandleChunksReportsTotal(t *testing.T) {
	tenant := model.TenantContext{CompanyID: "company-1", UserID: "user-1", Role: "member"}
	docs := newFakeDocs()
	require.NoError(t, docs.Create(context.Background(), &model.Document{ID: "doc-1", CompanyID: "company-1"}))
	chunks := &fakeChunks{
		chunks: []model.Chunk{
			{ID: "c-0", DocumentID: "doc-1", Index: 0, Content: "alpha"},
			{ID: "c-1", DocumentID: "doc-1", Index: 1, Content: "beta"},
		},
		total: 2,
	}
	s := &Server{docs: docs, chunks: chunks, log: zerolog.Nop()}

	rec := httptest.NewRecorder()
	s.handleChunks(rec, authedRequest(http.MethodGet, "/documents/doc-1/chunks", nil, tenant), "doc-1")

	require.Equal(t, http.StatusOK, rec.Code)
	var got chunksResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "doc-1", got.DocumentID)
	assert.Equal(t, 2, got.TotalChunks)
	require.Len(t, got.Chunks, 2)
	assert.Equal(t, "alpha", got.Chunks[0].Content)
}

func TestHandleDocumentIncludesDownloadURL(t *testing.T) {
	tenant := model.TenantContext{CompanyID: "company-1", UserID: "user-1", Role: "member"}
	docs := newFakeDocs()
	require.NoError(t, docs.Create(context.Background(), &model.Document{
		ID:          "doc-1",
		CompanyID:   "company-1",
		FileName:    "report.pdf",
		StoragePath: "companies/company-1/doc-1.pdf",
	}))
	s := &Server{docs: docs, store: fakeBlobs{}, log: zerolog.Nop()}

	rec := httptest.NewRecorder()
	s.handleDocument(rec, authedRequest(http.MethodGet, "/documents/doc-1", nil, tenant), "doc-1")

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "http://blobs.local/documents/companies/company-1/doc-1.pdf", got["download_url"])
}
