// Package section implements the tiered document-section engine: parsing a
// markdown document into addressable sections, extracting and replacing
// individual sections by id, building the editable subset for a user's tier,
// and merging edited subsets back into the full document.
//
// Every operation treats the document as an immutable value: it returns a new
// document string and never mutates its input. Sections are a derived view of
// one parse of one document; callers must not hold them across an edit.
package section

import (
	"regexp"
	"strings"

	"github.com/brandforge/guidegen/internal/catalog"
)

// FallbackID is the id of the synthetic section produced when a document
// contains no level-1/2 headings.
const FallbackID = "document"

// Section is one heading-delimited span of a document.
type Section struct {
	ID      string       `json:"id"`
	Title   string       `json:"title"`
	Content string       `json:"content"`
	Level   int          `json:"level"` // 1 or 2; 0 for the synthetic no-heading section
	MinTier catalog.Tier `json:"-"`
	Matched bool         `json:"-"` // true when the heading matched a catalog entry

	// Byte span in the source document, from the heading line to the start
	// of the next section (or end of document).
	start, end int
}

// Markdown reconstructs the section's markdown: heading line, blank line,
// content. The synthetic no-heading section reconstructs as bare content.
func (s Section) Markdown() string {
	if s.Level == 0 {
		return s.Content
	}
	marker := strings.Repeat("#", s.Level)
	if s.Content == "" {
		return marker + " " + s.Title
	}
	return marker + " " + s.Title + "\n\n" + s.Content
}

// Engine parses and edits documents against a fixed catalog. The catalog is
// passed in at construction so parsing stays deterministic and free of
// process-wide state.
type Engine struct {
	cat         *catalog.Catalog
	customLimit int
}

func NewEngine(cat *catalog.Catalog, customLimit int) *Engine {
	if customLimit <= 0 {
		customLimit = 5
	}
	return &Engine{cat: cat, customLimit: customLimit}
}

var slugStripRe = regexp.MustCompile(`[^a-z0-9 -]`)
var slugDashRe = regexp.MustCompile(`-+`)

// Slugify lowercases a heading title, strips non-alphanumerics, turns spaces
// into hyphens and collapses runs of hyphens. May return the empty string.
func Slugify(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = slugStripRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, " ", "-")
	s = slugDashRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
