package engine

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Synergy-kakaotrack/moa-be/internal/model"
)

const (
	recordTextLimit = 800
	recordLimit     = 1000
	recordsLimit    = 12000
)

var kst = time.FixedZone("KST", 9*60*60)

// DigestGenerator turns a window of scraps into digest Markdown through a
// ModelClient.
type DigestGenerator struct {
	client  ModelClient
	prompts *Prompts
}

// NewDigestGenerator creates a generator. A nil prompts uses the embedded set.
func NewDigestGenerator(client ModelClient, prompts *Prompts) *DigestGenerator {
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	return &DigestGenerator{client: client, prompts: prompts}
}

// Generate renders the prompt for req, calls the model and cleans its answer.
// It returns model.ErrEmptyInput when no record has usable content and
// model.ErrEmptyOutput when the model answers with nothing.
func (g *DigestGenerator) Generate(ctx context.Context, req model.GenerateRequest) (string, error) {
	records := renderRecords(req.Records)
	if records == "" {
		return "", model.ErrEmptyInput
	}

	prompt, err := g.prompts.render(req, records)
	if err != nil {
		return "", err
	}

	raw, err := g.client.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}

	out := normalizeOutput(raw)
	if out == "" {
		return "", model.ErrEmptyOutput
	}
	return out, nil
}

// renderRecords lays records out oldest first. Records arrive newest first.
func renderRecords(records []model.ScrapInput) string {
	var blocks []string
	for i := len(records) - 1; i >= 0; i-- {
		if b := renderRecord(records[i]); b != "" {
			blocks = append(blocks, b)
		}
	}
	if len(blocks) == 0 {
		return ""
	}
	return truncateRunes(strings.Join(blocks, "\n\n"), recordsLimit)
}

func renderRecord(r model.ScrapInput) string {
	subtitle := strings.TrimSpace(r.Subtitle)
	memo := strings.TrimSpace(r.Memo)
	text := strings.TrimSpace(r.Text)
	if subtitle == "" && memo == "" && text == "" {
		return ""
	}

	var lines []string
	lines = append(lines, "- captured "+r.CapturedAt.In(kst).Format("2006-01-02 15:04"))
	if s := strings.TrimSpace(r.Stage); s != "" {
		lines = append(lines, "[stage] "+s)
	}
	if subtitle != "" {
		lines = append(lines, "[subtitle] "+subtitle)
	}
	if memo != "" {
		lines = append(lines, "[memo] "+memo)
	}
	if text != "" {
		lines = append(lines, "[text] "+truncateRunes(text, recordTextLimit))
	}
	return truncateRunes(strings.Join(lines, "\n"), recordLimit)
}

var fence = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\\n(.*?)\\n?```$")

// normalizeOutput trims the answer and unwraps a surrounding code fence.
func normalizeOutput(s string) string {
	s = strings.TrimSpace(s)
	if m := fence.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	return s
}

// truncateRunes truncates s to maxRunes runes (Unicode-safe).
func truncateRunes(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxRunes]) + "..."
}

