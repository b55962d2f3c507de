package api

import (
	"encoding/json"
	"net/http"

	"github.com/Synergy-kakaotrack/moa-be/internal/draft"
)

// ---------------------------------------------------------------------------
// POST /api/drafts
// ---------------------------------------------------------------------------

func (s *Server) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	var req draft.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidJSON, "invalid JSON body")
		return
	}
	d, err := s.drafts.Create(r.Context(), userID(r), req)
	if err != nil {
		s.serviceError(w, "create draft", err)
		return
	}
	w.Header().Set("Location", "/api/drafts/"+d.ID)
	writeJSON(w, http.StatusCreated, d)
}

// ---------------------------------------------------------------------------
// GET /api/drafts/latest
// ---------------------------------------------------------------------------

func (s *Server) handleLatestDraft(w http.ResponseWriter, r *http.Request) {
	d, err := s.drafts.Latest(r.Context(), userID(r))
	if err != nil {
		s.serviceError(w, "get latest draft", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ---------------------------------------------------------------------------
// POST /api/drafts/{draftId}/commit
// ---------------------------------------------------------------------------

func (s *Server) handleCommitDraft(w http.ResponseWriter, r *http.Request) {
	var req draft.CommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidJSON, "invalid JSON body")
		return
	}
	sc, err := s.drafts.Commit(r.Context(), userID(r), r.PathValue("draftId"), req)
	if err != nil {
		s.serviceError(w, "commit draft", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"scrap_id": sc.ID})
}

// ---------------------------------------------------------------------------
// DELETE /api/drafts/{draftId}
// ---------------------------------------------------------------------------

func (s *Server) handleDeleteDraft(w http.ResponseWriter, r *http.Request) {
	if err := s.drafts.Delete(r.Context(), userID(r), r.PathValue("draftId")); err != nil {
		s.internalError(w, "delete draft", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
