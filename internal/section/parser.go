package section

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/brandforge/guidegen/internal/catalog"
)

// Only level-1/2 headings open a new section; deeper headings are body
// content.
var headingRe = regexp.MustCompile(`^(#{1,2})\s+(.*)$`)

// Parse splits a document into its ordered list of sections.
//
// Empty or whitespace-only input yields nil. A document with no level-1/2
// heading yields a single synthetic section carrying the full trimmed text.
// Heading titles are matched against the catalog (first match wins) to assign
// canonical ids and minimum tiers; unmatched headings get a slugified id with
// a positional fallback when slugification yields nothing. Parsing the same
// document twice yields identical ids.
func (e *Engine) Parse(doc string) []Section {
	if strings.TrimSpace(doc) == "" {
		return nil
	}

	type headingMark struct {
		start     int // offset of the heading line
		bodyStart int // offset just past the heading line
		level     int
		title     string
	}
	var heads []headingMark

	for offset := 0; offset < len(doc); {
		lineEnd := strings.IndexByte(doc[offset:], '\n')
		var line string
		var next int
		if lineEnd < 0 {
			line = doc[offset:]
			next = len(doc)
		} else {
			line = doc[offset : offset+lineEnd]
			next = offset + lineEnd + 1
		}
		if m := headingRe.FindStringSubmatch(line); m != nil {
			heads = append(heads, headingMark{
				start:     offset,
				bodyStart: next,
				level:     len(m[1]),
				title:     strings.TrimSpace(m[2]),
			})
		}
		offset = next
	}

	if len(heads) == 0 {
		return []Section{{
			ID:      FallbackID,
			Content: strings.TrimSpace(doc),
			MinTier: catalog.TierStarter,
			start:   0,
			end:     len(doc),
		}}
	}

	secs := make([]Section, 0, len(heads))
	seen := make(map[string]bool, len(heads))
	for i, h := range heads {
		end := len(doc)
		if i+1 < len(heads) {
			end = heads[i+1].start
		}

		sec := Section{
			Title:   h.title,
			Content: trimBlankLines(doc[h.bodyStart:end]),
			Level:   h.level,
			MinTier: catalog.TierStarter,
			start:   h.start,
			end:     end,
		}

		if entry, ok := e.cat.Match(h.title); ok {
			sec.ID = entry.ID
			sec.MinTier = entry.MinTier
			sec.Matched = true
		} else {
			sec.ID = Slugify(h.title)
		}
		if sec.ID == "" {
			sec.ID = fmt.Sprintf("section-%d", i)
		}
		// Distinct headings must never share an id within one parse.
		if seen[sec.ID] {
			sec.ID = fmt.Sprintf("%s-%d", sec.ID, i)
		}
		seen[sec.ID] = true

		secs = append(secs, sec)
	}
	return secs
}

// trimBlankLines removes leading and trailing blank lines without touching
// interior whitespace or the indentation of the first content line.
func trimBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	end := len(lines)
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}
