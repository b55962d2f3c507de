package model

import "time"

// Project is a user's workspace; scraps and digests hang off it.
type Project struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewProject creates a Project stamped with the current time.
func NewProject(id, ownerID, name, description string) Project {
	now := time.Now().UTC()
	return Project{
		ID:          id,
		OwnerID:     ownerID,
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Scrap is one captured source record.
type Scrap struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	ProjectID   string    `json:"project_id"`
	Stage       string    `json:"stage"`
	Subtitle    string    `json:"subtitle"`
	Memo        string    `json:"memo,omitempty"`
	RawHTML     string    `json:"-"`
	AISource    string    `json:"ai_source,omitempty"`
	AISourceURL string    `json:"ai_source_url,omitempty"`
	RecMethod   RecMethod `json:"rec_method"`
	CapturedAt  time.Time `json:"captured_at"`

	// Set when the user overrode the recommended value at commit time.
	UserRecProject  bool `json:"user_rec_project"`
	UserRecStage    bool `json:"user_rec_stage"`
	UserRecSubtitle bool `json:"user_rec_subtitle"`
}

// ScrapCursor marks the last row of a scrap list page. Pages are ordered by
// capture time then id, both descending.
type ScrapCursor struct {
	CapturedAt time.Time `json:"last_captured_at"`
	ID         string    `json:"last_scrap_id"`
}

// ProjectContext is where the owner last saved into one project.
type ProjectContext struct {
	ProjectID      string    `json:"project_id"`
	ProjectName    string    `json:"project_name"`
	LastStage      string    `json:"last_stage"`
	LastCapturedAt time.Time `json:"last_captured_at"`
}

// ScrapInput is the slice of a scrap that feeds digest generation. Text holds
// raw HTML as loaded and plain text once normalized.
type ScrapInput struct {
	ID         string
	Stage      string
	Subtitle   string
	Memo       string
	Text       string
	CapturedAt time.Time
}
