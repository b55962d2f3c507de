// Package digest decides when a project or stage digest must be regenerated
// and coordinates the regeneration.
package digest

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

// Generator produces digest text from a request.
type Generator interface {
	Generate(ctx context.Context, req model.GenerateRequest) (string, error)
}

// Normalizer turns a scrap's captured HTML into plain text.
type Normalizer interface {
	Normalize(raw string) string
}

// Options tunes a Coordinator.
type Options struct {
	ProjectInputLimit int
	StageInputLimit   int
	GenerateTimeout   time.Duration
	// StageVariantMatch makes stage digests compare variant and prompt before
	// skipping as up to date, the same way project digests always do.
	StageVariantMatch bool
}

// DefaultOptions returns the production settings.
func DefaultOptions() Options {
	return Options{
		ProjectInputLimit: 50,
		StageInputLimit:   20,
		GenerateTimeout:   15 * time.Second,
		StageVariantMatch: true,
	}
}

// Deps are the collaborators of a Coordinator.
type Deps struct {
	Projects   store.ProjectStore
	Sources    store.SourceReader
	Digests    store.DigestStore
	Generator  Generator
	Normalizer Normalizer
	Locks      *KeyLocks
	Status     *StatusCache
	Logger     *slog.Logger
	Now        func() time.Time
}

// Coordinator runs refresh attempts, at most one per subject key at a time.
type Coordinator struct {
	projects store.ProjectStore
	sources  store.SourceReader
	digests  store.DigestStore
	writer   *Writer
	gen      Generator
	norm     Normalizer
	locks    *KeyLocks
	status   *StatusCache
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Coordinator. Locks, Status, Logger and Now are optional.
// Zero limits and timeout in opts take their DefaultOptions values.
func New(deps Deps, opts Options) *Coordinator {
	def := DefaultOptions()
	if opts.ProjectInputLimit <= 0 {
		opts.ProjectInputLimit = def.ProjectInputLimit
	}
	if opts.StageInputLimit <= 0 {
		opts.StageInputLimit = def.StageInputLimit
	}
	if opts.GenerateTimeout <= 0 {
		opts.GenerateTimeout = def.GenerateTimeout
	}
	c := &Coordinator{
		projects: deps.Projects,
		sources:  deps.Sources,
		digests:  deps.Digests,
		gen:      deps.Generator,
		norm:     deps.Normalizer,
		locks:    deps.Locks,
		status:   deps.Status,
		opts:     opts,
		logger:   deps.Logger,
		now:      deps.Now,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.locks == nil {
		c.locks = NewKeyLocks()
	}
	if c.status == nil {
		c.status = NewStatusCache(DefaultStatusTTL, c.now)
	}
	c.writer = NewWriter(deps.Digests, c.logger)
	return c
}

// Get returns the current digest for key with its freshness and the last
// refresh outcome, if one is still cached.
func (c *Coordinator) Get(ctx context.Context, key model.SubjectKey) (*View, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	project, err := c.projects.GetProject(ctx, key.OwnerID, key.ProjectID)
	if err != nil {
		return nil, err
	}
	existing, err := c.findDigest(ctx, key)
	if err != nil {
		return nil, err
	}
	latest, err := c.sources.LatestCapturedAt(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("latest captured at: %w", err)
	}

	v := newView(project, key, existing, latest, model.VariantDefault)
	if o, ok := c.status.Get(key.String()); ok {
		v.Meta.Refresh = &o
	}
	return v, nil
}

// Refresh regenerates the digest for key when its sources moved on or the
// request differs from what is stored. A blank prompt asks for the default
// digest; anything else asks for a custom project digest.
//
// Skips, provider failures and lock conflicts are reported in the returned
// view's Meta.Refresh. Only invalid input, missing projects and storage
// failures come back as errors.
func (c *Coordinator) Refresh(ctx context.Context, key model.SubjectKey, prompt string) (*View, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	prompt = strings.TrimSpace(prompt)
	variant := model.VariantDefault
	if prompt != "" {
		if key.IsStage() {
			return nil, fmt.Errorf("%w: stage digests do not take a custom prompt", model.ErrInvalidRequest)
		}
		variant = model.VariantCustom
	}

	attempt := model.Outcome{AttemptID: uuid.NewString()}

	release, ok := c.locks.TryAcquire(key.String())
	if !ok {
		return c.conflict(ctx, key, variant, attempt)
	}
	defer release()

	attempt.AttemptedAt = c.now()
	v, err := c.refresh(ctx, key, variant, prompt, attempt)
	if err != nil {
		return nil, err
	}
	c.status.Put(key.String(), *v.Meta.Refresh)
	return v, nil
}

func (c *Coordinator) refresh(ctx context.Context, key model.SubjectKey, variant model.Variant, prompt string, attempt model.Outcome) (*View, error) {
	project, err := c.projects.GetProject(ctx, key.OwnerID, key.ProjectID)
	if err != nil {
		return nil, err
	}
	existing, err := c.findDigest(ctx, key)
	if err != nil {
		return nil, err
	}
	latest, err := c.sources.LatestCapturedAt(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("latest captured at: %w", err)
	}

	finish := func(d *model.Digest, o model.Outcome) *View {
		v := newView(project, key, d, latest, variant)
		v.Meta.Refresh = &o
		return v
	}
	skip := func(reason model.Reason, msg string) *View {
		attempt.Status = model.RefreshSkipped
		attempt.Reason = reason
		attempt.Message = msg
		return finish(existing, attempt)
	}

	if latest == nil {
		return skip(model.ReasonNoScraps, "no scraps to summarize"), nil
	}
	if existing.HasText() && !model.IsOutdated(existing.SourceWatermark, latest) && c.sameRequest(key, existing, variant, prompt) {
		return skip(model.ReasonNotOutdated, "digest is up to date"), nil
	}

	records, err := c.loadInput(ctx, key)
	if err != nil {
		return nil, err
	}
	if !meaningful(records) {
		return skip(model.ReasonNoMeaningfulInput, "scraps have no usable content"), nil
	}

	genCtx, cancel := context.WithTimeout(ctx, c.opts.GenerateTimeout)
	text, err := c.gen.Generate(genCtx, model.GenerateRequest{
		Key:         key,
		ProjectName: project.Name,
		Variant:     variant,
		Prompt:      prompt,
		Records:     records,
	})
	cancel()
	if errors.Is(err, model.ErrEmptyInput) {
		return skip(model.ReasonNoMeaningfulInput, "scraps have no usable content"), nil
	}
	if err != nil {
		reason, hint := classifyFailure(err)
		attempt.Status = model.RefreshFailed
		attempt.Reason = reason
		attempt.RetryAfter = hint
		attempt.Message = failureMessage(reason, err)
		c.logger.Error("digest refresh failed",
			"key", key.String(),
			"attempt_id", attempt.AttemptID,
			"scraps", len(records),
			"reason", reason,
			"error", err,
		)
		return finish(existing, attempt), nil
	}

	dw := model.DigestWrite{Variant: variant, Text: text, Watermark: *latest}
	if variant == model.VariantCustom {
		dw.PromptText = &prompt
	}
	saved, err := c.writer.Upsert(ctx, key, dw)
	if err != nil {
		return nil, fmt.Errorf("save digest: %w", err)
	}

	attempt.Status = model.RefreshSuccess
	c.logger.Debug("digest refreshed", "key", key.String(), "attempt_id", attempt.AttemptID, "scraps", len(records))
	return finish(saved, attempt), nil
}

// conflict answers a refresh that found the key busy. The outcome is not
// cached: the attempt holding the lock will publish its own.
func (c *Coordinator) conflict(ctx context.Context, key model.SubjectKey, variant model.Variant, attempt model.Outcome) (*View, error) {
	project, err := c.projects.GetProject(ctx, key.OwnerID, key.ProjectID)
	if err != nil {
		return nil, err
	}
	existing, err := c.findDigest(ctx, key)
	if err != nil {
		return nil, err
	}
	latest, err := c.sources.LatestCapturedAt(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("latest captured at: %w", err)
	}

	attempt.Status = model.RefreshConflict
	attempt.Reason = model.ReasonInProgress
	attempt.Message = "a refresh for this digest is already in progress"
	attempt.AttemptedAt = c.now()

	v := newView(project, key, existing, latest, variant)
	v.Meta.Refresh = &attempt
	return v, nil
}

func (c *Coordinator) findDigest(ctx context.Context, key model.SubjectKey) (*model.Digest, error) {
	d, err := c.digests.FindDigest(ctx, key)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find digest: %w", err)
	}
	return d, nil
}

// sameRequest reports whether the stored digest answers the same question.
func (c *Coordinator) sameRequest(key model.SubjectKey, d *model.Digest, variant model.Variant, prompt string) bool {
	if key.IsStage() && !c.opts.StageVariantMatch {
		return true
	}
	if d.Variant != variant {
		return false
	}
	if variant != model.VariantCustom {
		return true
	}
	stored := ""
	if d.PromptText != nil {
		stored = strings.TrimSpace(*d.PromptText)
	}
	return stored == prompt
}

func (c *Coordinator) loadInput(ctx context.Context, key model.SubjectKey) ([]model.ScrapInput, error) {
	limit := c.opts.ProjectInputLimit
	if key.IsStage() {
		limit = c.opts.StageInputLimit
	}
	records, err := c.sources.RecentScraps(ctx, key, limit)
	if err != nil {
		return nil, fmt.Errorf("recent scraps: %w", err)
	}
	for i := range records {
		records[i].Text = c.norm.Normalize(records[i].Text)
	}
	return records, nil
}

func meaningful(records []model.ScrapInput) bool {
	for _, r := range records {
		if strings.TrimSpace(r.Text) != "" || strings.TrimSpace(r.Subtitle) != "" || strings.TrimSpace(r.Memo) != "" {
			return true
		}
	}
	return false
}
