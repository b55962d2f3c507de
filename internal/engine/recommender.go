package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Synergy-kakaotrack/moa-be/internal/model"
)

const (
	recommendContentLimit = 2000
	subtitleLimit         = 120
)

// ErrBadRecommendation reports model output that cannot be turned into a
// usable recommendation.
var ErrBadRecommendation = errors.New("unusable recommendation")

// DraftRecommender asks a ModelClient where a captured selection belongs.
type DraftRecommender struct {
	client  ModelClient
	prompts *Prompts
}

// NewDraftRecommender creates a recommender. A nil prompts uses the embedded set.
func NewDraftRecommender(client ModelClient, prompts *Prompts) *DraftRecommender {
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	return &DraftRecommender{client: client, prompts: prompts}
}

type recommendResult struct {
	ProjectID any     `json:"project_id"`
	Stage     string  `json:"stage"`
	Subtitle  *string `json:"subtitle"`
}

// Recommend returns a project, stage and subtitle for in. The stage is always
// one of in.Stages and the project, when set, one of in.Projects.
func (r *DraftRecommender) Recommend(ctx context.Context, in model.RecommendInput) (model.Recommendation, error) {
	if len(in.Stages) == 0 {
		return model.Recommendation{}, fmt.Errorf("%w: no stages to choose from", model.ErrInvalidRequest)
	}

	prompt, err := r.prompts.renderRecommend(in)
	if err != nil {
		return model.Recommendation{}, err
	}
	raw, err := r.client.Complete(ctx, prompt)
	if err != nil {
		return model.Recommendation{}, err
	}
	res, err := parseRecommendation(raw)
	if err != nil {
		return model.Recommendation{}, err
	}

	projectID, err := pickProject(in, projectIDString(res.ProjectID))
	if err != nil {
		return model.Recommendation{}, err
	}
	return model.Recommendation{
		ProjectID: projectID,
		Stage:     pickStage(in, res.Stage),
		Subtitle:  cleanSubtitle(res.Subtitle),
		Method:    model.RecLLM,
	}, nil
}

// parseRecommendation decodes the outermost JSON object in raw, ignoring any
// chatter or code fence around it.
func parseRecommendation(raw string) (recommendResult, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return recommendResult{}, fmt.Errorf("%w: no JSON object in %q", ErrBadRecommendation, truncateRunes(raw, 200))
	}
	var res recommendResult
	if err := json.Unmarshal([]byte(raw[start:end+1]), &res); err != nil {
		return recommendResult{}, fmt.Errorf("%w: %v", ErrBadRecommendation, err)
	}
	return res, nil
}

func projectIDString(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return ""
	}
}

// pickProject keeps the model's choice when it is a real option, then falls
// back to the recent project, then to the only project.
func pickProject(in model.RecommendInput, suggested string) (*string, error) {
	if len(in.Projects) == 0 {
		return nil, nil
	}
	if suggested != "" && in.HasProject(suggested) {
		return &suggested, nil
	}
	if in.Recent != nil && in.HasProject(in.Recent.ProjectID) {
		id := in.Recent.ProjectID
		return &id, nil
	}
	if len(in.Projects) == 1 {
		id := in.Projects[0].ID
		return &id, nil
	}
	return nil, fmt.Errorf("%w: project %q is not one of the options", ErrBadRecommendation, suggested)
}

func pickStage(in model.RecommendInput, suggested string) string {
	suggested = strings.TrimSpace(suggested)
	for _, s := range in.Stages {
		if s == suggested {
			return s
		}
	}
	if in.Recent != nil {
		recent := strings.TrimSpace(in.Recent.Stage)
		for _, s := range in.Stages {
			if s == recent {
				return s
			}
		}
	}
	return in.Stages[0]
}

func cleanSubtitle(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	t = truncateRunes(t, subtitleLimit)
	return &t
}
