package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Synergy-kakaotrack/moa-be/internal/model"
)

func recommendInput() model.RecommendInput {
	return model.RecommendInput{
		Content:     "Compare three onboarding wireframes for the mobile app",
		AISource:    "chatgpt",
		AISourceURL: "https://chat.example.com/c/1",
		Projects: []model.ProjectOption{
			{ID: "p1", Name: "Moa"},
			{ID: "p2", Name: "Side project"},
		},
		Recent: &model.RecentContext{ProjectID: "p2", Stage: "구현"},
		Stages: model.FixedStages,
	}
}

func TestRecommend_UsesModelChoice(t *testing.T) {
	client := &recordingClient{answer: "```json\n{\"project_id\": \"p1\", \"stage\": \"설계\", \"subtitle\": \"  온보딩 와이어프레임 비교 \"}\n```"}
	r := NewDraftRecommender(client, nil)

	rec, err := r.Recommend(context.Background(), recommendInput())
	require.NoError(t, err)
	require.NotNil(t, rec.ProjectID)
	assert.Equal(t, "p1", *rec.ProjectID)
	assert.Equal(t, "설계", rec.Stage)
	require.NotNil(t, rec.Subtitle)
	assert.Equal(t, "온보딩 와이어프레임 비교", *rec.Subtitle)
	assert.Equal(t, model.RecLLM, rec.Method)

	assert.Contains(t, client.prompt, `fixedStages=["기획","조사&분석","설계","구현","테스트","기타"]`)
	assert.Contains(t, client.prompt, `recentContext={"project_id":"p2","stage":"구현"}`)
	assert.Contains(t, client.prompt, `"project_id":"p1","title":"Moa"`)
	assert.Contains(t, client.prompt, "scrapText=\"Compare three onboarding")
}

func TestRecommend_Normalizes(t *testing.T) {
	tests := []struct {
		name        string
		answer      string
		in          func(*model.RecommendInput)
		wantProject *string
		wantStage   string
		wantErr     bool
	}{
		{
			name:        "unknown project falls back to recent",
			answer:      `{"project_id": "p9", "stage": "설계", "subtitle": null}`,
			wantProject: ptr("p2"),
			wantStage:   "설계",
		},
		{
			name:        "invalid stage falls back to recent stage",
			answer:      `{"project_id": "p1", "stage": "deploy", "subtitle": "x"}`,
			wantProject: ptr("p1"),
			wantStage:   "구현",
		},
		{
			name:        "invalid stage without recent uses first stage",
			answer:      `{"project_id": "p1", "stage": "", "subtitle": "x"}`,
			in:          func(in *model.RecommendInput) { in.Recent = nil },
			wantProject: ptr("p1"),
			wantStage:   "기획",
		},
		{
			name:        "no projects means no project",
			answer:      `{"project_id": "p1", "stage": "테스트", "subtitle": "x"}`,
			in:          func(in *model.RecommendInput) { in.Projects = nil; in.Recent = nil },
			wantProject: nil,
			wantStage:   "테스트",
		},
		{
			name:        "single project is chosen when model returns null",
			answer:      `{"project_id": null, "stage": "기타", "subtitle": "x"}`,
			in:          func(in *model.RecommendInput) { in.Projects = in.Projects[:1]; in.Recent = nil },
			wantProject: ptr("p1"),
			wantStage:   "기타",
		},
		{
			name:        "numeric project id",
			answer:      `{"project_id": 42, "stage": "기타", "subtitle": "x"}`,
			in:          func(in *model.RecommendInput) { in.Projects = []model.ProjectOption{{ID: "42", Name: "n"}, {ID: "43", Name: "m"}} },
			wantProject: ptr("42"),
			wantStage:   "기타",
		},
		{
			name:    "ambiguous project without recent",
			answer:  `{"project_id": null, "stage": "기타", "subtitle": "x"}`,
			in:      func(in *model.RecommendInput) { in.Recent = nil },
			wantErr: true,
		},
		{
			name:    "no JSON",
			answer:  "I think this belongs to the design stage.",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := recommendInput()
			if tt.in != nil {
				tt.in(&in)
			}
			rec, err := NewDraftRecommender(&recordingClient{answer: tt.answer}, nil).Recommend(context.Background(), in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrBadRecommendation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantProject, rec.ProjectID)
			assert.Equal(t, tt.wantStage, rec.Stage)
		})
	}
}

func TestRecommend_BlankSubtitleIsNil(t *testing.T) {
	client := &recordingClient{answer: `{"project_id": "p1", "stage": "설계", "subtitle": "   "}`}
	rec, err := NewDraftRecommender(client, nil).Recommend(context.Background(), recommendInput())
	require.NoError(t, err)
	assert.Nil(t, rec.Subtitle)
}

func TestRecommend_ClientError(t *testing.T) {
	client := &recordingClient{err: &APIError{StatusCode: 503}}
	_, err := NewDraftRecommender(client, nil).Recommend(context.Background(), recommendInput())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 503, apiErr.StatusCode)
}

func TestRecommend_NoStages(t *testing.T) {
	in := recommendInput()
	in.Stages = nil
	client := &recordingClient{}
	_, err := NewDraftRecommender(client, nil).Recommend(context.Background(), in)
	assert.ErrorIs(t, err, model.ErrInvalidRequest)
	assert.Empty(t, client.prompt, "model should not be called")
}

func TestStubModelClient_Recommend(t *testing.T) {
	in := recommendInput()
	in.Content = strings.Repeat("가", 40)
	rec, err := NewDraftRecommender(&StubModelClient{}, nil).Recommend(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, rec.Subtitle)
	assert.Equal(t, strings.Repeat("가", 25), *rec.Subtitle)
	require.NotNil(t, rec.ProjectID)
	assert.Equal(t, "p2", *rec.ProjectID)
	assert.Equal(t, "구현", rec.Stage)
}

func ptr(s string) *string { return &s }
