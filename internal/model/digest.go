package model

import (
	"strings"
	"time"
)

// Variant selects the flavor of a digest.
type Variant string

// Variant constants
const (
	VariantDefault Variant = "DEFAULT"
	VariantCustom  Variant = "CUSTOM"
)

// Digest is the persisted artifact for one subject key.
type Digest struct {
	ID              string     `json:"id"`
	OwnerID         string     `json:"owner_id"`
	ProjectID       string     `json:"project_id"`
	Stage           string     `json:"stage,omitempty"`
	Variant         Variant    `json:"variant"`
	PromptText      *string    `json:"prompt_text,omitempty"`
	Text            *string    `json:"text,omitempty"`
	SourceWatermark *time.Time `json:"source_watermark,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Key returns the subject key the digest belongs to.
func (d *Digest) Key() SubjectKey {
	return SubjectKey{OwnerID: d.OwnerID, ProjectID: d.ProjectID, Stage: d.Stage}
}

// HasText reports whether the digest carries generated text.
func (d *Digest) HasText() bool {
	return d != nil && d.Text != nil && strings.TrimSpace(*d.Text) != ""
}

// DigestWrite is the payload of one successful generation.
type DigestWrite struct {
	Variant    Variant
	PromptText *string
	Text       string
	Watermark  time.Time
}

// IsOutdated compares a stored watermark with the newest source timestamp.
// No sources means nothing to be behind; sources without a watermark means the
// digest has never reflected them.
func IsOutdated(watermark, latest *time.Time) bool {
	if latest == nil {
		return false
	}
	if watermark == nil {
		return true
	}
	return latest.After(*watermark)
}

// GenerateRequest is everything a generator needs for one digest. Records
// arrive newest first, already normalized to plain text.
type GenerateRequest struct {
	Key         SubjectKey
	ProjectName string
	Variant     Variant
	Prompt      string
	Records     []ScrapInput
}
