package section

import "strings"

// GetSection returns the reconstructed markdown of the section with the given
// id, or the empty string when the id is absent or the document is empty.
func (e *Engine) GetSection(doc, id string) string {
	for _, sec := range e.Parse(doc) {
		if sec.ID == id {
			return sec.Markdown()
		}
	}
	return ""
}

// ReplaceSection substitutes the exact byte span owned by the section with
// the given markdown (trimmed), preserving every byte before and after the
// span. An absent id is a no-op returning the original document: callers may
// race with a stale section id after a concurrent edit, and skipping beats
// corrupting an in-progress document.
func (e *Engine) ReplaceSection(doc, id, markdown string) string {
	secs := e.Parse(doc)

	// A document that parses to only the synthetic no-heading section is
	// replaced wholesale.
	if len(secs) == 1 && secs[0].Level == 0 && secs[0].ID == id {
		return strings.TrimSpace(markdown)
	}

	for _, sec := range secs {
		if sec.ID != id {
			continue
		}
		replacement := strings.TrimSpace(markdown)
		var b strings.Builder
		b.Grow(len(doc) - (sec.end - sec.start) + len(replacement) + 2)
		b.WriteString(doc[:sec.start])
		b.WriteString(replacement)
		if sec.end < len(doc) {
			// Keep the following heading on its own line, separated by a
			// blank line so the replacement's last paragraph stays closed.
			b.WriteString("\n\n")
		}
		b.WriteString(doc[sec.end:])
		return b.String()
	}
	return doc
}
