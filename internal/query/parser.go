package query

import (
	"strings"

	"github.com/rednetexplorer/core/internal/searchindex"
)

// Parse implements spec §4.8's informal grammar:
//
//	query      := clause ( ws clause )*
//	clause     := ('-' | 'NOT ')? term_or_phrase | 'OR' | filter
//	filter     := field ':' value          field ∈ {site, type, title}
//	phrase     := '"' … '"'
func Parse(raw string) Query {
	var q Query
	group := Group{}
	negateNext := false

	for _, tok := range splitRespectingQuotes(raw) {
		switch {
		case strings.EqualFold(tok, "OR"):
			if len(group.Clauses) > 0 {
				q.Groups = append(q.Groups, group)
				group = Group{}
			}
			negateNext = false

		case strings.EqualFold(tok, "NOT"):
			negateNext = true

		case isFilter(tok):
			applyFilter(&q.Filters, tok)
			negateNext = false

		case strings.HasPrefix(tok, `"`):
			phrase := strings.Trim(tok, `"`)
			words := searchindex.Tokenize(phrase)
			if len(words) > 0 {
				group.Clauses = append(group.Clauses, Clause{Words: words, Phrase: true, Negated: negateNext})
			}
			negateNext = false

		case strings.HasPrefix(tok, "-") && len(tok) > 1:
			words := searchindex.Tokenize(tok[1:])
			if len(words) > 0 {
				group.Clauses = append(group.Clauses, Clause{Words: words, Negated: true})
			}
			negateNext = false

		default:
			words := searchindex.Tokenize(tok)
			if len(words) > 0 {
				group.Clauses = append(group.Clauses, Clause{Words: words, Negated: negateNext})
			}
			negateNext = false
		}
	}

	if len(group.Clauses) > 0 {
		q.Groups = append(q.Groups, group)
	}
	return q
}

var filterFields = []string{"site:", "type:", "title:"}

func isFilter(tok string) bool {
	for _, f := range filterFields {
		if strings.HasPrefix(strings.ToLower(tok), f) {
			return true
		}
	}
	return false
}

func applyFilter(f *Filters, tok string) {
	idx := strings.Index(tok, ":")
	field := strings.ToLower(tok[:idx])
	value := strings.Trim(tok[idx+1:], `"`)
	switch field {
	case "site":
		f.Site = strings.ToLower(value)
	case "type":
		f.Type = strings.ToLower(value)
	case "title":
		f.Title = strings.ToLower(value)
	}
}

// splitRespectingQuotes splits raw on whitespace, keeping quoted substrings
// (including their quotes) as single tokens and allowing a quoted phrase to
// directly follow a field prefix (title:"foo bar").
func splitRespectingQuotes(raw string) []string {
	var out []string
	var cur strings.Builder
	inQuotes := false

	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}

	for _, r := range raw {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			cur.WriteRune(r)
		case !inQuotes && (r == ' ' || r == '\t' || r == '\n'):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}
