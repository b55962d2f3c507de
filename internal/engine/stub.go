package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// StubModelClient returns a deterministic Markdown digest, or a draft
// recommendation for recommend prompts (for development/testing).
type StubModelClient struct{}

func (m *StubModelClient) Complete(_ context.Context, prompt string) (string, error) {
	if strings.Contains(prompt, "\nscrapText=") {
		return stubRecommendation(prompt), nil
	}
	records := strings.Count(prompt, "- captured ")
	var subtitles []string
	for _, line := range strings.Split(prompt, "\n") {
		if s, ok := strings.CutPrefix(strings.TrimSpace(line), "[subtitle] "); ok {
			subtitles = append(subtitles, s)
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Digest (%d records)\n\n", records)
	for _, s := range subtitles {
		fmt.Fprintf(&sb, "- %s\n", s)
	}
	sb.WriteString("\nNext: review the latest records.")
	return sb.String(), nil
}

// stubRecommendation leaves project and stage to the fallbacks and uses the
// start of the selection as subtitle.
func stubRecommendation(prompt string) string {
	var content string
	for _, line := range strings.Split(prompt, "\n") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(line), "scrapText="); ok {
			json.Unmarshal([]byte(v), &content)
		}
	}
	subtitle := []rune(strings.Join(strings.Fields(content), " "))
	if len(subtitle) > 25 {
		subtitle = subtitle[:25]
	}
	return jsonText(map[string]any{"project_id": nil, "stage": "", "subtitle": string(subtitle)})
}
