// Package draft turns a captured selection into a scrap in two steps: a
// recommended destination first, the user's confirmed one on commit.
package draft

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Synergy-kakaotrack/moa-be/internal/model"
	"github.com/Synergy-kakaotrack/moa-be/internal/store"
)

// Recommender suggests where a selection belongs.
type Recommender interface {
	Recommend(ctx context.Context, in model.RecommendInput) (model.Recommendation, error)
}

// Projects lists and resolves the caller's projects.
type Projects interface {
	store.ProjectLister
	GetProject(ctx context.Context, ownerID, projectID string) (*model.Project, error)
}

// ContextReader returns where the caller saved last.
type ContextReader interface {
	RecentContexts(ctx context.Context, ownerID string, limit int) ([]model.ProjectContext, error)
}

// Options tunes a Service.
type Options struct {
	TTL              time.Duration
	RecommendTimeout time.Duration
}

// DefaultOptions returns the production settings.
func DefaultOptions() Options {
	return Options{TTL: model.DraftTTL, RecommendTimeout: 10 * time.Second}
}

// Deps are the collaborators of a Service. Logger and Now are optional.
type Deps struct {
	Projects    Projects
	Contexts    ContextReader
	Drafts      store.DraftStore
	Recommender Recommender
	Logger      *slog.Logger
	Now         func() time.Time
}

// Service runs the draft workflow.
type Service struct {
	projects Projects
	contexts ContextReader
	drafts   store.DraftStore
	rec      Recommender
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Service. Zero fields in opts take their DefaultOptions values.
func New(deps Deps, opts Options) *Service {
	def := DefaultOptions()
	if opts.TTL <= 0 {
		opts.TTL = def.TTL
	}
	if opts.RecommendTimeout <= 0 {
		opts.RecommendTimeout = def.RecommendTimeout
	}
	s := &Service{
		projects: deps.Projects,
		contexts: deps.Contexts,
		drafts:   deps.Drafts,
		rec:      deps.Recommender,
		opts:     opts,
		logger:   deps.Logger,
		now:      deps.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CreateRequest is a captured selection.
type CreateRequest struct {
	Content     string `json:"content_plain"`
	AISource    string `json:"ai_source"`
	AISourceURL string `json:"ai_source_url"`
}

// Create stores a draft with a recommended destination. A recommender
// failure never fails the request: the draft falls back to the recent
// context.
func (s *Service) Create(ctx context.Context, ownerID string, req CreateRequest) (*model.Draft, error) {
	content, err := required(req.Content, "content_plain")
	if err != nil {
		return nil, err
	}
	source, err := required(req.AISource, "ai_source")
	if err != nil {
		return nil, err
	}
	sourceURL, err := required(req.AISourceURL, "ai_source_url")
	if err != nil {
		return nil, err
	}

	in, err := s.recommendInput(ctx, ownerID, content, source, sourceURL)
	if err != nil {
		return nil, err
	}

	recCtx, cancel := context.WithTimeout(ctx, s.opts.RecommendTimeout)
	rec, err := s.rec.Recommend(recCtx, in)
	cancel()
	if err != nil {
		rec = Fallback(in)
		s.logger.Warn("draft recommendation failed, using fallback",
			"owner", ownerID,
			"method", rec.Method,
			"error", err,
		)
	}

	now := s.now().UTC()
	d := model.Draft{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		ContentPlain: content,
		AISource:     source,
		AISourceURL:  sourceURL,
		ProjectID:    rec.ProjectID,
		Stage:        rec.Stage,
		Subtitle:     rec.Subtitle,
		RecMethod:    rec.Method,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.opts.TTL),
	}
	if err := s.drafts.CreateDraft(ctx, d); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}
	return &d, nil
}

func (s *Service) recommendInput(ctx context.Context, ownerID, content, source, sourceURL string) (model.RecommendInput, error) {
	projects, err := s.projects.ListProjects(ctx, ownerID)
	if err != nil {
		return model.RecommendInput{}, fmt.Errorf("list projects: %w", err)
	}
	recent, err := s.contexts.RecentContexts(ctx, ownerID, 1)
	if err != nil {
		return model.RecommendInput{}, fmt.Errorf("recent context: %w", err)
	}

	in := model.RecommendInput{
		Content:     content,
		AISource:    source,
		AISourceURL: sourceURL,
		Stages:      model.FixedStages,
	}
	for _, p := range projects {
		in.Projects = append(in.Projects, model.ProjectOption{ID: p.ID, Name: p.Name})
	}
	if len(recent) > 0 {
		in.Recent = &model.RecentContext{ProjectID: recent[0].ProjectID, Stage: recent[0].LastStage}
	}
	return in, nil
}

// Fallback recommends without a model: the recent project and stage when
// usable, otherwise the first project and stage. It never suggests a subtitle.
func Fallback(in model.RecommendInput) model.Recommendation {
	var rec model.Recommendation
	if in.Recent != nil && in.HasProject(in.Recent.ProjectID) {
		id := in.Recent.ProjectID
		rec.ProjectID = &id
	} else if len(in.Projects) > 0 {
		id := in.Projects[0].ID
		rec.ProjectID = &id
	}

	rec.Stage = model.FixedStages[0]
	if len(in.Stages) > 0 {
		rec.Stage = in.Stages[0]
	}
	if in.Recent != nil && model.IsFixedStage(in.Recent.Stage) {
		rec.Stage = in.Recent.Stage
	}

	rec.Method = model.RecFallbackRecent
	if rec.ProjectID == nil {
		rec.Method = model.RecNone
	}
	return rec
}

// Latest returns the caller's newest unexpired draft.
func (s *Service) Latest(ctx context.Context, ownerID string) (*model.Draft, error) {
	return s.drafts.LatestDraft(ctx, ownerID, s.now())
}

// CommitRequest is the destination the user confirmed.
type CommitRequest struct {
	ProjectID       string `json:"project_id"`
	Stage           string `json:"stage"`
	Subtitle        string `json:"subtitle"`
	Memo            string `json:"memo"`
	RawHTML         string `json:"raw_html"`
	AISource        string `json:"ai_source"`
	AISourceURL     string `json:"ai_source_url"`
	UserRecProject  bool   `json:"user_rec_project"`
	UserRecStage    bool   `json:"user_rec_stage"`
	UserRecSubtitle bool   `json:"user_rec_subtitle"`
}

// Commit stores the scrap and removes the draft atomically. Source fields
// left blank are taken from the draft.
func (s *Service) Commit(ctx context.Context, ownerID, draftID string, req CommitRequest) (*model.Scrap, error) {
	d, err := s.drafts.GetDraft(ctx, ownerID, draftID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if d.Expired(now) {
		return nil, model.ErrDraftExpired
	}

	projectID, err := required(req.ProjectID, "project_id")
	if err != nil {
		return nil, err
	}
	stage := strings.TrimSpace(req.Stage)
	if !model.IsFixedStage(stage) {
		return nil, fmt.Errorf("%w: stage %q is not one of %s", model.ErrInvalidRequest, stage, strings.Join(model.FixedStages, ", "))
	}
	subtitle, err := required(req.Subtitle, "subtitle")
	if err != nil {
		return nil, err
	}
	if _, err := required(req.RawHTML, "raw_html"); err != nil {
		return nil, err
	}
	if _, err := s.projects.GetProject(ctx, ownerID, projectID); err != nil {
		return nil, err
	}

	sc := model.Scrap{
		ID:              uuid.NewString(),
		OwnerID:         ownerID,
		ProjectID:       projectID,
		Stage:           stage,
		Subtitle:        subtitle,
		Memo:            strings.TrimSpace(req.Memo),
		RawHTML:         req.RawHTML,
		AISource:        orDefault(req.AISource, d.AISource),
		AISourceURL:     orDefault(req.AISourceURL, d.AISourceURL),
		RecMethod:       d.RecMethod,
		UserRecProject:  req.UserRecProject,
		UserRecStage:    req.UserRecStage,
		UserRecSubtitle: req.UserRecSubtitle,
		CapturedAt:      now,
	}
	if err := s.drafts.CommitDraft(ctx, draftID, sc); err != nil {
		if errors.Is(err, model.ErrDraftNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("commit draft: %w", err)
	}
	return &sc, nil
}

// Delete discards a draft. Missing drafts are not an error.
func (s *Service) Delete(ctx context.Context, ownerID, draftID string) error {
	return s.drafts.DeleteDraft(ctx, ownerID, draftID)
}

func required(v, field string) (string, error) {
	t := strings.TrimSpace(v)
	if t == "" {
		return "", fmt.Errorf("%w: %s is required", model.ErrInvalidRequest, field)
	}
	return t, nil
}

func orDefault(v, def string) string {
	if t := strings.TrimSpace(v); t != "" {
		return t
	}
	return def
}
