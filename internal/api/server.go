// Package api exposes the HTTP surface: document registration and upload,
// processing triggers, RAG queries, and query-log visibility. Every handler
// operates under the TenantContext extracted from the bearer token.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/osoriodev/ragbase/internal/auth"
	"github.com/osoriodev/ragbase/internal/config"
	"github.com/osoriodev/ragbase/internal/dispatch"
	"github.com/osoriodev/ragbase/internal/limits"
	"github.com/osoriodev/ragbase/internal/model"
	"github.com/osoriodev/ragbase/internal/rag"
)

// BlobStore is the slice of the object store the api needs.
type BlobStore interface {
	Upload(ctx context.Context, storagePath string, reader io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, storagePath string) error
	PublicURL(storagePath string) string
}

// DocumentStore is the slice of the document repository the handlers use.
type DocumentStore interface {
	Create(ctx context.Context, doc *model.Document) error
	GetForCompany(ctx context.Context, id, companyID string) (*model.Document, error)
	ListByCompany(ctx context.Context, companyID string) ([]model.Document, error)
	Update(ctx context.Context, id, companyID string, fileName *string, metadata map[string]any, status *model.DocumentStatus) (*model.Document, error)
	Delete(ctx context.Context, id, companyID string) error
}

// ChunkStore serves chunk reads for the document chunk listing.
type ChunkStore interface {
	ListByDocument(ctx context.Context, documentID string) ([]model.Chunk, error)
	CountByDocument(ctx context.Context, documentID string) (int, error)
}

// QueryLogStore serves query-log reads.
type QueryLogStore interface {
	ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]model.QueryLog, error)
	ListAll(ctx context.Context, limit, offset int) ([]model.QueryLog, error)
}

// SubscriptionStore manages the subscription lifecycle.
type SubscriptionStore interface {
	Create(ctx context.Context, sub *model.Subscription) error
	Update(ctx context.Context, sub *model.Subscription) error
	LatestByCompany(ctx context.Context, companyID string) (*model.Subscription, error)
}

// Server wires configuration and collaborators into HTTP routes.
type Server struct {
	cfg        *config.Config
	docs       DocumentStore
	chunks     ChunkStore
	subs       SubscriptionStore
	queryLogs  QueryLogStore
	limiter    *limits.Limiter
	engine     *rag.Engine
	store      BlobStore
	dispatcher dispatch.Dispatcher
	tokens     *auth.TokenService
	log        zerolog.Logger
	server     *http.Server
	once       sync.Once
}

// New constructs a Server.
func New(cfg *config.Config, docs DocumentStore, chunks ChunkStore, subs SubscriptionStore,
	queryLogs QueryLogStore, limiter *limits.Limiter, engine *rag.Engine,
	store BlobStore, dispatcher dispatch.Dispatcher, tokens *auth.TokenService, log zerolog.Logger) *Server {
	return &Server{
		cfg:        cfg,
		docs:       docs,
		chunks:     chunks,
		subs:       subs,
		queryLogs:  queryLogs,
		limiter:    limiter,
		engine:     engine,
		store:      store,
		dispatcher: dispatcher,
		tokens:     tokens,
		log:        log.With().Str("component", "api").Logger(),
	}
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", s.handleHealth)
		mux.HandleFunc("/documents", s.withAuth(s.handleDocuments))
		mux.HandleFunc("/documents/", s.withAuth(s.handleDocumentRoute))
		mux.HandleFunc("/subscriptions", s.withAuth(s.handleSubscriptions))
		mux.HandleFunc("/subscriptions/", s.withAuth(s.handleSubscriptionRoute))
		mux.HandleFunc("/rag/query", s.withAuth(s.handleRAGQuery))
		mux.HandleFunc("/query-logs", s.withAuth(s.handleQueryLogs))
		s.server = &http.Server{
			Addr:    s.cfg.Address,
			Handler: corsMiddleware(s.loggingMiddleware(mux)),
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.log.Info().Str("address", s.cfg.Address).Msg("api listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateDocument(w, r)
	case http.MethodGet:
		s.handleListDocuments(w, r)
	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleDocumentRoute(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/documents/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	if parts[0] == "upload" && len(parts) == 1 {
		s.handleUpload(w, r)
		return
	}
	id := parts[0]
	if len(parts) == 1 {
		s.handleDocument(w, r, id)
		return
	}
	switch parts[1] {
	case "process":
		s.handleProcess(w, r, id)
	case "chunks":
		s.handleChunks(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

// tenantKey is the context key the auth middleware stores the TenantContext
// under.
type tenantKey struct{}

// withAuth verifies the bearer token and injects the TenantContext.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := s.tokens.Verify(token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		ctx := context.WithValue(r.Context(), tenantKey{}, claims.TenantContext())
		next(w, r.WithContext(ctx))
	}
}

// tenantFrom pulls the TenantContext the middleware stored.
func tenantFrom(r *http.Request) model.TenantContext {
	tenant, _ := r.Context().Value(tenantKey{}).(model.TenantContext)
	return tenant
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, map[string]string{"detail": detail})
}

// respondDomainError maps the error taxonomy onto stable status codes so
// clients can tell quota from bad input from missing resources.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrDocumentNotFound):
		respondError(w, http.StatusNotFound, "Document not found")
	case errors.Is(err, model.ErrNoActiveSubscription):
		respondError(w, http.StatusForbidden, "No active subscription found")
	case errors.Is(err, model.ErrLimitReached):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, model.ErrUnsupportedFileType):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrAnswerGeneration), errors.Is(err, model.ErrStorageUnavailable):
		respondError(w, http.StatusBadGateway, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
