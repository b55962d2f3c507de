package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Synergy-kakaotrack/moa-be/internal/digest"
	"github.com/Synergy-kakaotrack/moa-be/internal/model"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ---------------------------------------------------------------------------
// POST /api/projects
// ---------------------------------------------------------------------------

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidJSON, "invalid JSON body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "name is required")
		return
	}

	p := model.NewProject(uuid.New().String(), userID(r), req.Name, strings.TrimSpace(req.Description))
	if err := s.store.CreateProject(r.Context(), p); err != nil {
		s.internalError(w, "create project", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// ---------------------------------------------------------------------------
// GET /api/projects/{projectId}
// ---------------------------------------------------------------------------

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProject(r.Context(), userID(r), r.PathValue("projectId"))
	if err != nil {
		s.serviceError(w, "get project", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ---------------------------------------------------------------------------
// POST /api/projects/{projectId}/scraps
// ---------------------------------------------------------------------------

type createScrapRequest struct {
	Stage      string     `json:"stage"`
	Subtitle   string     `json:"subtitle"`
	Memo       string     `json:"memo"`
	RawHTML    string     `json:"raw_html"`
	CapturedAt *time.Time `json:"captured_at"`
}

func (s *Server) handleCreateScrap(w http.ResponseWriter, r *http.Request) {
	var req createScrapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidJSON, "invalid JSON body")
		return
	}
	req.Stage = strings.TrimSpace(req.Stage)
	if err := model.ValidateStage(req.Stage); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Subtitle) == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "subtitle is required")
		return
	}

	owner, projectID := userID(r), r.PathValue("projectId")
	if _, err := s.store.GetProject(r.Context(), owner, projectID); err != nil {
		s.serviceError(w, "get project", err)
		return
	}

	capturedAt := time.Now().UTC()
	if req.CapturedAt != nil {
		capturedAt = req.CapturedAt.UTC()
	}
	sc := model.Scrap{
		ID:         uuid.New().String(),
		OwnerID:    owner,
		ProjectID:  projectID,
		Stage:      req.Stage,
		Subtitle:   strings.TrimSpace(req.Subtitle),
		Memo:       req.Memo,
		RawHTML:    req.RawHTML,
		CapturedAt: capturedAt,
	}
	if err := s.store.CreateScrap(r.Context(), sc); err != nil {
		s.internalError(w, "create scrap", err)
		return
	}
	writeJSON(w, http.StatusCreated, sc)
}

// ---------------------------------------------------------------------------
// Digests
// ---------------------------------------------------------------------------

type refreshRequest struct {
	Prompt string `json:"prompt"`
}

func (s *Server) handleGetProjectDigest(w http.ResponseWriter, r *http.Request) {
	key := model.ProjectKey(userID(r), r.PathValue("projectId"))
	v, err := s.digests.Get(r.Context(), key)
	if err != nil {
		s.serviceError(w, "get digest", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleRefreshProjectDigest(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, codeInvalidJSON, "invalid JSON body")
		return
	}
	key := model.ProjectKey(userID(r), r.PathValue("projectId"))
	s.refresh(w, r, key, req.Prompt)
}

func (s *Server) handleGetStageDigest(w http.ResponseWriter, r *http.Request) {
	key := model.StageKey(userID(r), r.PathValue("projectId"), r.PathValue("stage"))
	v, err := s.digests.Get(r.Context(), key)
	if err != nil {
		s.serviceError(w, "get stage digest", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleRefreshStageDigest(w http.ResponseWriter, r *http.Request) {
	key := model.StageKey(userID(r), r.PathValue("projectId"), r.PathValue("stage"))
	s.refresh(w, r, key, "")
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request, key model.SubjectKey, prompt string) {
	v, err := s.digests.Refresh(r.Context(), key, prompt)
	if err != nil {
		s.serviceError(w, "refresh digest", err)
		return
	}
	writeJSON(w, refreshStatus(v), v)
}

// refreshStatus is 200 for every settled attempt; only a busy key is 409.
func refreshStatus(v *digest.View) int {
	if v.Conflict() {
		return http.StatusConflict
	}
	return http.StatusOK
}

// ---------------------------------------------------------------------------
// Error mapping
// ---------------------------------------------------------------------------

func (s *Server) serviceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidKey), errors.Is(err, model.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "project not found")
	case errors.Is(err, model.ErrDraftNotFound):
		writeError(w, http.StatusNotFound, codeDraftNotFound, "draft not found")
	case errors.Is(err, model.ErrDraftExpired):
		writeError(w, http.StatusGone, codeDraftExpired, "draft expired")
	default:
		s.internalError(w, op, err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error("request failed", "op", op, "error", err)
	writeError(w, http.StatusInternalServerError, codeInternal, "failed to "+op)
}
