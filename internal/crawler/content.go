package crawler

import (
	"regexp"
	"strings"
)

var (
	titleTagPattern = regexp.MustCompile(`(?is)<title>(.*?)</title>`)
	tagPattern      = regexp.MustCompile(`(?s)<[^>]*>`)
)

// extractTitleAndBody pulls a best-effort title and plain-text body out of
// fetched rwml/html-ish markup for indexing.
func extractTitleAndBody(raw []byte) (title, body string) {
	text := string(raw)
	if m := titleTagPattern.FindStringSubmatch(text); m != nil {
		title = strings.TrimSpace(m[1])
	}
	body = strings.TrimSpace(tagPattern.ReplaceAllString(text, " "))
	return title, body
}
