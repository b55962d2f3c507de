package model

import (
	"slices"
	"time"
)

// DraftTTL is how long an uncommitted draft stays usable.
const DraftTTL = time.Hour

// FixedStages are the work stages a recommendation may choose from, in
// display order. The first one is the fallback.
var FixedStages = []string{"기획", "조사&분석", "설계", "구현", "테스트", "기타"}

// IsFixedStage reports whether stage is one of FixedStages.
func IsFixedStage(stage string) bool {
	return slices.Contains(FixedStages, stage)
}

// RecMethod records how a draft's recommendation was produced.
type RecMethod string

// RecMethod constants
const (
	RecLLM            RecMethod = "LLM"
	RecFallbackRecent RecMethod = "FALLBACK_RECENT"
	RecNone           RecMethod = "NONE"
)

// Draft is a captured selection waiting for the user to confirm where it goes.
type Draft struct {
	ID           string    `json:"draft_id"`
	OwnerID      string    `json:"-"`
	ContentPlain string    `json:"-"`
	AISource     string    `json:"ai_source"`
	AISourceURL  string    `json:"ai_source_url"`
	ProjectID    *string   `json:"project_id"`
	Stage        string    `json:"stage"`
	Subtitle     *string   `json:"subtitle"`
	RecMethod    RecMethod `json:"rec_method"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the draft can no longer be committed at now.
func (d *Draft) Expired(now time.Time) bool {
	return d.ExpiresAt.Before(now)
}

// Recommendation is a suggested destination for a draft.
type Recommendation struct {
	ProjectID *string   `json:"project_id"`
	Stage     string    `json:"stage"`
	Subtitle  *string   `json:"subtitle"`
	Method    RecMethod `json:"-"`
}

// ProjectOption is a project the recommender may pick.
type ProjectOption struct {
	ID   string `json:"project_id"`
	Name string `json:"title"`
}

// RecentContext is the owner's most recent save, used to bias recommendations.
type RecentContext struct {
	ProjectID string `json:"project_id"`
	Stage     string `json:"stage"`
}

// RecommendInput is everything a recommender sees for one draft.
type RecommendInput struct {
	Content     string
	AISource    string
	AISourceURL string
	Projects    []ProjectOption
	Recent      *RecentContext
	Stages      []string
}

// HasProject reports whether id is one of the options.
func (in RecommendInput) HasProject(id string) bool {
	for _, p := range in.Projects {
		if p.ID == id {
			return true
		}
	}
	return false
}
