package engine

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/Synergy-kakaotrack/moa-be/internal/model"
)

//go:embed prompts.yaml
var defaultPromptsYAML []byte

// Prompts holds the parsed digest and draft templates.
type Prompts struct {
	StageDefault   string `yaml:"stage_default"`
	ProjectDefault string `yaml:"project_default"`
	ProjectCustom  string `yaml:"project_custom"`
	DraftRecommend string `yaml:"draft_recommend"`

	stageDefault   *template.Template
	projectDefault *template.Template
	projectCustom  *template.Template
	draftRecommend *template.Template
}

// LoadPrompts parses a YAML document of templates. Every template is required.
func LoadPrompts(data []byte) (*Prompts, error) {
	var p Prompts
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}

	for _, t := range []struct {
		name string
		src  string
		dst  **template.Template
	}{
		{"stage_default", p.StageDefault, &p.stageDefault},
		{"project_default", p.ProjectDefault, &p.projectDefault},
		{"project_custom", p.ProjectCustom, &p.projectCustom},
		{"draft_recommend", p.DraftRecommend, &p.draftRecommend},
	} {
		if strings.TrimSpace(t.src) == "" {
			return nil, fmt.Errorf("prompt %q is missing", t.name)
		}
		tmpl, err := template.New(t.name).Option("missingkey=error").Parse(t.src)
		if err != nil {
			return nil, fmt.Errorf("prompt %q: %w", t.name, err)
		}
		*t.dst = tmpl
	}
	return &p, nil
}

// DefaultPrompts returns the embedded templates. It panics if they do not
// parse, which only a broken build can cause.
func DefaultPrompts() *Prompts {
	p, err := LoadPrompts(defaultPromptsYAML)
	if err != nil {
		panic(fmt.Sprintf("engine: embedded prompts: %v", err))
	}
	return p
}

type promptData struct {
	ProjectName string
	Stage       string
	Prompt      string
	Records     string
}

func (p *Prompts) template(req model.GenerateRequest) *template.Template {
	switch {
	case req.Key.IsStage():
		return p.stageDefault
	case req.Variant == model.VariantCustom:
		return p.projectCustom
	default:
		return p.projectDefault
	}
}

func (p *Prompts) render(req model.GenerateRequest, records string) (string, error) {
	var sb strings.Builder
	err := p.template(req).Execute(&sb, promptData{
		ProjectName: req.ProjectName,
		Stage:       req.Key.Stage,
		Prompt:      strings.TrimSpace(req.Prompt),
		Records:     records,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return sb.String(), nil
}

type recommendData struct {
	Projects    string
	Recent      string
	Stages      string
	AISource    string
	AISourceURL string
	Content     string
}

func (p *Prompts) renderRecommend(in model.RecommendInput) (string, error) {
	projects := in.Projects
	if projects == nil {
		projects = []model.ProjectOption{}
	}
	data := recommendData{
		Projects:    jsonText(projects),
		Recent:      jsonText(in.Recent),
		Stages:      jsonText(in.Stages),
		AISource:    jsonText(in.AISource),
		AISourceURL: jsonText(in.AISourceURL),
		Content:     jsonText(truncateRunes(strings.TrimSpace(in.Content), recommendContentLimit)),
	}
	var sb strings.Builder
	if err := p.draftRecommend.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return sb.String(), nil
}

// jsonText marshals values that are always encodable, leaving & < > as is so
// stage names reach the model verbatim.
func jsonText(v any) string {
	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
	return strings.TrimSuffix(sb.String(), "\n")
}
