package application

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

const maxExcerptLength = 200

var (
	ugcPolicy   = bluemonday.UGCPolicy()
	stripPolicy = bluemonday.StrictPolicy()

	blockTagRegex = regexp.MustCompile(`(?i)<(/?(?:p|div|h[1-6]|li|ul|ol|br|blockquote|pre|tr|td|th)\b)`)
)

// SanitizeContent removes markup that is unsafe to render back to readers.
func SanitizeContent(content string) string {
	return strings.TrimSpace(ugcPolicy.Sanitize(content))
}

// Excerpt returns the first maxExcerptLength characters of content as plain text,
// cut at a word boundary.
func Excerpt(content string) string {
	// Pad block tags so adjacent paragraphs do not run their words together
	text := html.UnescapeString(stripPolicy.Sanitize(blockTagRegex.ReplaceAllString(content, " <$1")))
	excerpt := strings.Join(strings.Fields(text), " ")

	if len(excerpt) > maxExcerptLength {
		excerpt = excerpt[:maxExcerptLength]
		if lastSpace := strings.LastIndexAny(excerpt, " \t"); lastSpace > 0 {
			excerpt = excerpt[:lastSpace]
		}
		excerpt = strings.ToValidUTF8(excerpt, "") + "..."
	}

	return excerpt
}
