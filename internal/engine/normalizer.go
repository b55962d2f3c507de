package engine

import (
	"html"
	nurl "net/url"
	"regexp"
	"strings"

	"github.com/go-shiori/go-readability"
)

// DefaultMaxTextLength is the rune budget of one normalized scrap.
const DefaultMaxTextLength = 1500

// pageURL is a placeholder base for relative links; scraps carry no URL.
var pageURL = &nurl.URL{Scheme: "https", Host: "scrap.local"}

// HTMLNormalizer converts captured HTML fragments into plain text.
type HTMLNormalizer struct {
	maxLen int
}

// NewHTMLNormalizer creates a normalizer that clamps output to maxLen runes.
func NewHTMLNormalizer(maxLen int) *HTMLNormalizer {
	if maxLen <= 0 {
		maxLen = DefaultMaxTextLength
	}
	return &HTMLNormalizer{maxLen: maxLen}
}

// Normalize extracts readable text from raw HTML. Input without markup is
// only whitespace-collapsed.
func (n *HTMLNormalizer) Normalize(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	var text string
	if strings.Contains(raw, "<") {
		text = n.extract(raw)
	} else {
		text = html.UnescapeString(raw)
	}

	text = collapseSpace(text)
	return truncateRunes(text, n.maxLen)
}

// extract prefers readability and falls back to tag stripping for fragments
// it rejects or empties.
func (n *HTMLNormalizer) extract(raw string) string {
	article, err := readability.FromReader(strings.NewReader(raw), pageURL)
	if err == nil {
		if text := strings.TrimSpace(article.TextContent); text != "" && len(text) >= len(strings.TrimSpace(stripTags(raw)))/2 {
			return text
		}
	}
	return stripTags(raw)
}

var (
	scriptOrStyle = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	anyTag        = regexp.MustCompile(`(?s)<[^>]*>`)
	whitespace    = regexp.MustCompile(`\s+`)
)

func stripTags(s string) string {
	s = scriptOrStyle.ReplaceAllString(s, " ")
	s = anyTag.ReplaceAllString(s, " ")
	return html.UnescapeString(s)
}

func collapseSpace(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
