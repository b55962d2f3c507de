package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/Synergy-kakaotrack/moa-be/internal/model"
)

const (
	defaultPageSize    = 50
	maxPageSize        = 100
	recentContextLimit = 3
)

type scrapPage struct {
	Items      []model.Scrap `json:"items"`
	NextCursor *string       `json:"next_cursor"`
}

type scrapDetail struct {
	model.Scrap
	Content       string `json:"content"`
	ContentFormat string `json:"content_format"`
}

// ---------------------------------------------------------------------------
// GET /api/scraps?project_id=&stage=&cursor=&limit=
// ---------------------------------------------------------------------------

func (s *Server) handleListScraps(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	projectID := strings.TrimSpace(q.Get("project_id"))
	if projectID == "" {
		writeError(w, http.StatusBadRequest, codeInvalidQuery, "project_id is required")
		return
	}
	stage := strings.TrimSpace(q.Get("stage"))
	if err := model.ValidateStage(stage); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidQuery, err.Error())
		return
	}
	limit, err := pageSize(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidQuery, err.Error())
		return
	}
	after, err := decodeCursor(q.Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidQuery, "cursor is invalid")
		return
	}

	owner := userID(r)
	if _, err := s.store.GetProject(r.Context(), owner, projectID); err != nil {
		s.serviceError(w, "get project", err)
		return
	}

	// One extra row tells whether another page exists.
	rows, err := s.store.ListScraps(r.Context(), owner, projectID, stage, after, limit+1)
	if err != nil {
		s.internalError(w, "list scraps", err)
		return
	}
	page := scrapPage{Items: rows}
	if len(rows) > limit {
		page.Items = rows[:limit]
		last := page.Items[limit-1]
		next := encodeCursor(model.ScrapCursor{CapturedAt: last.CapturedAt, ID: last.ID})
		page.NextCursor = &next
	}
	if page.Items == nil {
		page.Items = []model.Scrap{}
	}
	writeJSON(w, http.StatusOK, page)
}

func pageSize(raw string) (int, error) {
	if raw == "" {
		return defaultPageSize, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxPageSize {
		return 0, errors.New("limit must be between 1 and " + strconv.Itoa(maxPageSize))
	}
	return n, nil
}

// encodeCursor renders a keyset position as URL-safe base64 JSON.
func encodeCursor(c model.ScrapCursor) string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

// decodeCursor returns nil for an empty cursor.
func decodeCursor(raw string) (*model.ScrapCursor, error) {
	if raw == "" {
		return nil, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(raw, "="))
	if err != nil {
		return nil, err
	}
	var c model.ScrapCursor
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	if c.ID == "" || c.CapturedAt.IsZero() {
		return nil, errors.New("incomplete cursor")
	}
	return &c, nil
}

// ---------------------------------------------------------------------------
// GET /api/scraps/{scrapId}
// ---------------------------------------------------------------------------

func (s *Server) handleGetScrap(w http.ResponseWriter, r *http.Request) {
	sc, err := s.store.GetScrap(r.Context(), userID(r), r.PathValue("scrapId"))
	if errors.Is(err, model.ErrNotFound) {
		writeError(w, http.StatusNotFound, codeScrapNotFound, "scrap not found")
		return
	}
	if err != nil {
		s.internalError(w, "get scrap", err)
		return
	}
	d := scrapDetail{Scrap: *sc, Content: sc.RawHTML, ContentFormat: "HTML"}
	if sc.RawHTML == "" {
		d.ContentFormat = "NONE"
	}
	writeJSON(w, http.StatusOK, d)
}

// ---------------------------------------------------------------------------
// GET /api/scraps/recent-context
// ---------------------------------------------------------------------------

func (s *Server) handleRecentContext(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.RecentContexts(r.Context(), userID(r), recentContextLimit)
	if err != nil {
		s.internalError(w, "recent context", err)
		return
	}
	if items == nil {
		items = []model.ProjectContext{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
