package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Synergy-kakaotrack/moa-be/internal/digest"
	"github.com/Synergy-kakaotrack/moa-be/internal/draft"
	"github.com/Synergy-kakaotrack/moa-be/internal/model"
	"github.com/Synergy-kakaotrack/moa-be/internal/store"
)

// maxRequestBody is the maximum allowed request body size (1 MB).
const maxRequestBody int64 = 1 << 20

// userHeader identifies the caller on every request.
const userHeader = "X-User-Id"

// Error codes returned in the "code" field of error bodies.
const (
	codeHeaderMissing  = "REQUIRED_HEADER_MISSING"
	codeInvalidHeader  = "INVALID_HEADER_VALUE"
	codeInvalidRequest = "INVALID_REQUEST"
	codeInvalidJSON    = "INVALID_JSON"
	codeInvalidQuery   = "INVALID_QUERY_PARAM"
	codeNotFound       = "PROJECT_NOT_FOUND"
	codeScrapNotFound  = "SCRAP_NOT_FOUND"
	codeDraftNotFound  = "DRAFT_NOT_FOUND"
	codeDraftExpired   = "DRAFT_EXPIRED"
	codeInternal       = "INTERNAL_ERROR"
)

// DigestService reads and refreshes digests.
type DigestService interface {
	Get(ctx context.Context, key model.SubjectKey) (*digest.View, error)
	Refresh(ctx context.Context, key model.SubjectKey, prompt string) (*digest.View, error)
}

// DraftService runs the capture-then-confirm workflow.
type DraftService interface {
	Create(ctx context.Context, ownerID string, req draft.CreateRequest) (*model.Draft, error)
	Latest(ctx context.Context, ownerID string) (*model.Draft, error)
	Commit(ctx context.Context, ownerID, draftID string, req draft.CommitRequest) (*model.Scrap, error)
	Delete(ctx context.Context, ownerID, draftID string) error
}

// Server holds the HTTP handlers and dependencies.
type Server struct {
	store      store.Repository
	digests    DigestService
	drafts     DraftService
	corsOrigin string
	logger     *slog.Logger
	mux        *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithCORSOrigin sets the allowed CORS origin (default "*").
func WithCORSOrigin(origin string) Option {
	return func(s *Server) {
		if origin != "" {
			s.corsOrigin = origin
		}
	}
}

// WithLogger sets the logger used for internal errors.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithDrafts enables the /api/drafts endpoints.
func WithDrafts(d DraftService) Option {
	return func(s *Server) { s.drafts = d }
}

// New creates a new API server.
func New(repo store.Repository, digests DigestService, opts ...Option) *Server {
	srv := &Server{
		store:      repo,
		digests:    digests,
		corsOrigin: "*",
		logger:     slog.Default(),
		mux:        http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(srv)
	}
	srv.routes()
	return srv
}

// Handler returns the root http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.cors(limitBody(jsonContent(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.Handle("POST /api/projects", requireUser(s.handleCreateProject))
	s.mux.Handle("GET /api/projects/{projectId}", requireUser(s.handleGetProject))
	s.mux.Handle("POST /api/projects/{projectId}/scraps", requireUser(s.handleCreateScrap))

	s.mux.Handle("GET /api/projects/{projectId}/digest", requireUser(s.handleGetProjectDigest))
	s.mux.Handle("POST /api/projects/{projectId}/digest:refresh", requireUser(s.handleRefreshProjectDigest))
	s.mux.Handle("GET /api/projects/{projectId}/stages/{stage}/digest", requireUser(s.handleGetStageDigest))
	s.mux.Handle("POST /api/projects/{projectId}/stages/{stage}/digest:refresh", requireUser(s.handleRefreshStageDigest))

	s.mux.Handle("GET /api/scraps", requireUser(s.handleListScraps))
	s.mux.Handle("GET /api/scraps/recent-context", requireUser(s.handleRecentContext))
	s.mux.Handle("GET /api/scraps/{scrapId}", requireUser(s.handleGetScrap))

	if s.drafts != nil {
		s.mux.Handle("POST /api/drafts", requireUser(s.handleCreateDraft))
		s.mux.Handle("GET /api/drafts/latest", requireUser(s.handleLatestDraft))
		s.mux.Handle("POST /api/drafts/{draftId}/commit", requireUser(s.handleCommitDraft))
		s.mux.Handle("DELETE /api/drafts/{draftId}", requireUser(s.handleDeleteDraft))
	}
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// cors sets CORS headers for the configured origin.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+userHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// limitBody restricts the request body to maxRequestBody bytes.
func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		next.ServeHTTP(w, r)
	})
}

func jsonContent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

type userKey struct{}

// requireUser rejects requests without a usable X-User-Id header.
func requireUser(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := r.Header[http.CanonicalHeaderKey(userHeader)]
		if !ok || len(raw) == 0 {
			writeError(w, http.StatusBadRequest, codeHeaderMissing, userHeader+" header is required")
			return
		}
		id := strings.TrimSpace(raw[0])
		if id == "" || strings.Contains(id, "|") {
			writeError(w, http.StatusBadRequest, codeInvalidHeader, userHeader+" header is invalid")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, id)))
	})
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userKey{}).(string)
	return id
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"code": code, "error": msg})
}
