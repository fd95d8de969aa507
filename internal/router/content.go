package router

import "strings"

// EntryKind classifies a resolved document-root lookup (spec §4.6 step 3).
type EntryKind int

const (
	EntryNotFound EntryKind = iota
	EntryStatic
	EntryDynamic
)

// Entry is what a DocumentRoot.Resolve call returns for a request path.
type Entry struct {
	Kind        EntryKind
	ContentType string
	StaticBody  []byte
	Script      string
}

// DocumentRoot resolves a request path to content within one registered
// site (spec §4.6 step 3: "Looks up the path in the site's document root").
type DocumentRoot interface {
	Resolve(path string) Entry
}

// dynamicExtensions are treated as handler scripts rather than static
// bytes (spec §4.6: "`.rwml` / `.lua` / static").
var dynamicExtensions = map[string]bool{
	".rwml": true,
	".lua":  true,
}

var indexCandidates = []string{"index.rwml", "index.lua"}

// contentTypeFor derives a response content-type header from a file
// extension (spec §4.6 step 4: "content-type header derived from the
// extension").
func contentTypeFor(path string) string {
	switch {
	case strings.HasSuffix(path, ".rwml"):
		return "text/rwml"
	case strings.HasSuffix(path, ".lua"):
		return "application/x-lua"
	case strings.HasSuffix(path, ".html"):
		return "text/html"
	case strings.HasSuffix(path, ".css"):
		return "text/css"
	case strings.HasSuffix(path, ".js"):
		return "application/javascript"
	case strings.HasSuffix(path, ".json"):
		return "application/json"
	case strings.HasSuffix(path, ".png"):
		return "image/png"
	case strings.HasSuffix(path, ".txt"):
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

// MapRoot is an in-memory DocumentRoot, the common case for a node serving
// a small hand-authored site.
type MapRoot struct {
	Files map[string][]byte // path -> raw bytes (scripts stored as source text)
}

// NewMapRoot constructs an empty MapRoot.
func NewMapRoot() *MapRoot {
	return &MapRoot{Files: make(map[string][]byte)}
}

// Resolve implements DocumentRoot per spec §4.6 step 3's policy order:
// exact file match, then directory index, then not-found.
func (m *MapRoot) Resolve(path string) Entry {
	if body, ok := m.Files[path]; ok {
		return entryFor(path, body)
	}

	dir := strings.TrimSuffix(path, "/")
	for _, candidate := range indexCandidates {
		indexPath := dir + "/" + candidate
		if body, ok := m.Files[indexPath]; ok {
			return entryFor(indexPath, body)
		}
	}

	return Entry{Kind: EntryNotFound}
}

func entryFor(path string, body []byte) Entry {
	for ext := range dynamicExtensions {
		if strings.HasSuffix(path, ext) {
			return Entry{Kind: EntryDynamic, ContentType: contentTypeFor(path), Script: string(body)}
		}
	}
	return Entry{Kind: EntryStatic, ContentType: contentTypeFor(path), StaticBody: body}
}
