package store

import (
	"context"
	"time"

	"github.com/Synergy-kakaotrack/moa-be/internal/model"
)

// ProjectStore provides access to projects.
type ProjectStore interface {
	CreateProject(ctx context.Context, p model.Project) error
	GetProject(ctx context.Context, ownerID, projectID string) (*model.Project, error)
}

// ScrapStore provides write access to source records.
type ScrapStore interface {
	CreateScrap(ctx context.Context, s model.Scrap) error
}

// ProjectLister lists an owner's projects.
type ProjectLister interface {
	ListProjects(ctx context.Context, ownerID string) ([]model.Project, error)
}

// ScrapReader serves the scrap browsing endpoints.
type ScrapReader interface {
	ListScraps(ctx context.Context, ownerID, projectID, stage string, after *model.ScrapCursor, limit int) ([]model.Scrap, error)
	GetScrap(ctx context.Context, ownerID, scrapID string) (*model.Scrap, error)
	RecentContexts(ctx context.Context, ownerID string, limit int) ([]model.ProjectContext, error)
}

// DraftStore persists drafts and turns committed ones into scraps.
type DraftStore interface {
	CreateDraft(ctx context.Context, d model.Draft) error
	LatestDraft(ctx context.Context, ownerID string, now time.Time) (*model.Draft, error)
	GetDraft(ctx context.Context, ownerID, draftID string) (*model.Draft, error)
	DeleteDraft(ctx context.Context, ownerID, draftID string) error
	CommitDraft(ctx context.Context, draftID string, sc model.Scrap) error
}

// SourceReader answers the staleness and input-assembly questions about scraps.
type SourceReader interface {
	LatestCapturedAt(ctx context.Context, key model.SubjectKey) (*time.Time, error)
	RecentScraps(ctx context.Context, key model.SubjectKey, limit int) ([]model.ScrapInput, error)
}

// TargetLister enumerates recently active stage subjects for the bulk sweep.
type TargetLister interface {
	RecentStageTargets(ctx context.Context, since time.Time, limit int) ([]model.SubjectKey, error)
}

// DigestStore provides access to digest artifacts.
type DigestStore interface {
	FindDigest(ctx context.Context, key model.SubjectKey) (*model.Digest, error)
	InsertDigest(ctx context.Context, key model.SubjectKey, w model.DigestWrite) (*model.Digest, error)
	UpdateDigest(ctx context.Context, id string, w model.DigestWrite) (*model.Digest, error)
}

// Repository combines everything the API layer needs.
type Repository interface {
	ProjectStore
	ScrapStore
	ScrapReader
	SourceReader
	DigestStore
}
