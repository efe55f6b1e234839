package outlook

import (
	"regexp"
	"strings"

	"github.com/jaytaylor/html2text"
)

var blankRuns = regexp.MustCompile(`\n{3,}`)

// CleanBody converts an HTML mail body to plain text suitable for prompting.
// Conversion failures fall back to the raw input so a malformed body never
// blocks processing.
func CleanBody(html string) string {
	text, err := html2text.FromString(html, html2text.Options{
		TextOnly: true,
	})
	if err != nil {
		return html
	}
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
