package digest

import (
	"time"

	"github.com/Synergy-kakaotrack/moa-be/internal/model"
)

// FormatVersion is the digest format version reported to clients.
const FormatVersion = 1

// ProjectRef names the project a view belongs to.
type ProjectRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Meta describes the freshness of a digest and the last refresh attempt.
type Meta struct {
	Exists                bool           `json:"exists"`
	Outdated              bool           `json:"outdated"`
	SourceLastCapturedAt  *time.Time     `json:"source_last_captured_at"`
	LatestScrapCapturedAt *time.Time     `json:"latest_scrap_captured_at"`
	UpdatedAt             *time.Time     `json:"updated_at"`
	Version               int            `json:"version"`
	Refresh               *model.Outcome `json:"refresh,omitempty"`
}

// View is what read and refresh callers get back for one subject key.
type View struct {
	Project ProjectRef    `json:"project"`
	Stage   string        `json:"stage,omitempty"`
	Kind    model.Variant `json:"digest_kind"`
	Digest  *string       `json:"digest"`
	Meta    Meta          `json:"meta"`
}

// Conflict reports whether the view answers a refresh that lost the key lock.
func (v *View) Conflict() bool {
	return v.Meta.Refresh != nil && v.Meta.Refresh.Status == model.RefreshConflict
}

func newView(p *model.Project, key model.SubjectKey, d *model.Digest, latest *time.Time, kind model.Variant) *View {
	v := &View{
		Project: ProjectRef{ID: p.ID, Name: p.Name},
		Stage:   key.Stage,
		Kind:    kind,
		Meta: Meta{
			LatestScrapCapturedAt: latest,
			Version:               FormatVersion,
		},
	}
	if d == nil {
		v.Meta.Outdated = latest != nil
		return v
	}

	v.Kind = d.Variant
	v.Digest = d.Text
	updated := d.UpdatedAt
	v.Meta.Exists = true
	v.Meta.SourceLastCapturedAt = d.SourceWatermark
	v.Meta.UpdatedAt = &updated
	if d.HasText() {
		v.Meta.Outdated = model.IsOutdated(d.SourceWatermark, latest)
	} else {
		v.Meta.Outdated = latest != nil
	}
	return v
}
