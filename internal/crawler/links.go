package crawler

import "regexp"

// hrefPattern matches anchor href attributes in rwml markup, which follows
// HTML's attribute syntax per spec §6's document root layout
// (`<page>.rwml # static markup`).
var hrefPattern = regexp.MustCompile(`(?i)href\s*=\s*["']([^"']+)["']`)

// ExtractLinks returns every href target found in body, resolved against
// baseURL (spec §4.9: "relative paths are resolved against the request
// URL").
func ExtractLinks(baseURL string, body []byte) []string {
	matches := hrefPattern.FindAllSubmatch(body, -1)
	var out []string
	for _, m := range matches {
		href := string(m[1])
		if href == "" || href[0] == '#' {
			continue
		}
		resolved, err := Resolve(baseURL, href)
		if err != nil {
			continue
		}
		out = append(out, resolved)
	}
	return out
}
