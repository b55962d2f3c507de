package model

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// keySeparator may not appear in any key component.
const keySeparator = "|"

// MaxStageLength is the longest stage label accepted, in runes.
const MaxStageLength = 30

// SubjectKey identifies one refreshable digest: a whole project when Stage is
// empty, or a single work stage of that project.
type SubjectKey struct {
	OwnerID   string `json:"owner_id"`
	ProjectID string `json:"project_id"`
	Stage     string `json:"stage,omitempty"`
}

// ProjectKey returns the key of a project-wide digest.
func ProjectKey(ownerID, projectID string) SubjectKey {
	return SubjectKey{OwnerID: ownerID, ProjectID: projectID}
}

// StageKey returns the key of a stage-scoped digest.
func StageKey(ownerID, projectID, stage string) SubjectKey {
	return SubjectKey{OwnerID: ownerID, ProjectID: projectID, Stage: stage}
}

// IsStage reports whether the key is stage-scoped.
func (k SubjectKey) IsStage() bool {
	return k.Stage != ""
}

// String renders the key for locking and caching. The leading shape tag keeps
// project keys and stage keys from ever colliding.
func (k SubjectKey) String() string {
	if k.IsStage() {
		return strings.Join([]string{"s", k.OwnerID, k.ProjectID, k.Stage}, keySeparator)
	}
	return strings.Join([]string{"p", k.OwnerID, k.ProjectID}, keySeparator)
}

// Validate checks that every component is usable inside a key string.
func (k SubjectKey) Validate() error {
	if strings.TrimSpace(k.OwnerID) == "" {
		return fmt.Errorf("%w: owner id is required", ErrInvalidKey)
	}
	if strings.TrimSpace(k.ProjectID) == "" {
		return fmt.Errorf("%w: project id is required", ErrInvalidKey)
	}
	if strings.Contains(k.OwnerID, keySeparator) || strings.Contains(k.ProjectID, keySeparator) {
		return fmt.Errorf("%w: ids may not contain %q", ErrInvalidKey, keySeparator)
	}
	if k.IsStage() {
		return ValidateStage(k.Stage)
	}
	return nil
}

// ValidateStage checks a stage label.
func ValidateStage(stage string) error {
	if strings.TrimSpace(stage) == "" {
		return fmt.Errorf("%w: stage is required", ErrInvalidKey)
	}
	if strings.Contains(stage, keySeparator) {
		return fmt.Errorf("%w: stage may not contain %q", ErrInvalidKey, keySeparator)
	}
	if utf8.RuneCountInString(stage) > MaxStageLength {
		return fmt.Errorf("%w: stage longer than %d characters", ErrInvalidKey, MaxStageLength)
	}
	return nil
}
