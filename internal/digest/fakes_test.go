package digest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Synergy-kakaotrack/moa-be/internal/model"
)

// memStore is an in-memory ProjectStore, SourceReader and DigestStore.
type memStore struct {
	mu       sync.Mutex
	projects map[string]model.Project
	scraps   []model.Scrap
	digests  map[string]*model.Digest
	nextID   int

	// insertHook runs before InsertDigest touches the map.
	insertHook func(key model.SubjectKey)
}

func newMemStore() *memStore {
	return &memStore{projects: map[string]model.Project{}, digests: map[string]*model.Digest{}}
}

func (s *memStore) CreateProject(_ context.Context, p model.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
	return nil
}

func (s *memStore) GetProject(_ context.Context, ownerID, projectID string) (*model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok || p.OwnerID != ownerID {
		return nil, model.ErrNotFound
	}
	return &p, nil
}

func (s *memStore) addScrap(key model.SubjectKey, stage, subtitle, html string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.scraps = append(s.scraps, model.Scrap{
		ID: fmt.Sprintf("s%d", s.nextID), OwnerID: key.OwnerID, ProjectID: key.ProjectID,
		Stage: stage, Subtitle: subtitle, RawHTML: html, CapturedAt: at,
	})
}

func (s *memStore) matching(key model.SubjectKey) []model.Scrap {
	var out []model.Scrap
	for _, sc := range s.scraps {
		if sc.OwnerID != key.OwnerID || sc.ProjectID != key.ProjectID {
			continue
		}
		if key.IsStage() && sc.Stage != key.Stage {
			continue
		}
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CapturedAt.After(out[j].CapturedAt) })
	return out
}

func (s *memStore) LatestCapturedAt(_ context.Context, key model.SubjectKey) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.matching(key)
	if len(m) == 0 {
		return nil, nil
	}
	t := m[0].CapturedAt
	return &t, nil
}

func (s *memStore) RecentScraps(_ context.Context, key model.SubjectKey, limit int) ([]model.ScrapInput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ScrapInput
	for i, sc := range s.matching(key) {
		if i == limit {
			break
		}
		out = append(out, model.ScrapInput{
			ID: sc.ID, Stage: sc.Stage, Subtitle: sc.Subtitle, Memo: sc.Memo, Text: sc.RawHTML, CapturedAt: sc.CapturedAt,
		})
	}
	return out, nil
}

func (s *memStore) FindDigest(_ context.Context, key model.SubjectKey) (*model.Digest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.digests[key.String()]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *memStore) InsertDigest(_ context.Context, key model.SubjectKey, w model.DigestWrite) (*model.Digest, error) {
	if s.insertHook != nil {
		s.insertHook(key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.digests[key.String()]; ok {
		return nil, model.ErrDuplicate
	}
	s.nextID++
	wm := w.Watermark
	text := w.Text
	d := &model.Digest{
		ID: fmt.Sprintf("d%d", s.nextID), OwnerID: key.OwnerID, ProjectID: key.ProjectID, Stage: key.Stage,
		Variant: w.Variant, PromptText: w.PromptText, Text: &text, SourceWatermark: &wm,
		CreatedAt: wm, UpdatedAt: wm,
	}
	s.digests[key.String()] = d
	cp := *d
	return &cp, nil
}

func (s *memStore) UpdateDigest(_ context.Context, id string, w model.DigestWrite) (*model.Digest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.digests {
		if d.ID != id {
			continue
		}
		text := w.Text
		d.Variant, d.PromptText, d.Text = w.Variant, w.PromptText, &text
		if d.SourceWatermark == nil || d.SourceWatermark.Before(w.Watermark) {
			wm := w.Watermark
			d.SourceWatermark = &wm
		}
		cp := *d
		return &cp, nil
	}
	return nil, model.ErrNotFound
}

func (s *memStore) digestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.digests)
}

// fakeGenerator counts calls and delegates to fn.
type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	last  model.GenerateRequest
	fn    func(ctx context.Context, req model.GenerateRequest) (string, error)
}

func (g *fakeGenerator) Generate(ctx context.Context, req model.GenerateRequest) (string, error) {
	g.mu.Lock()
	g.calls++
	g.last = req
	fn := g.fn
	g.mu.Unlock()
	if fn == nil {
		return "## digest", nil
	}
	return fn(ctx, req)
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// identityNormalizer leaves text untouched.
type identityNormalizer struct{}

func (identityNormalizer) Normalize(raw string) string { return raw }
