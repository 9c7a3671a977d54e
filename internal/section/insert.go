package section

import "strings"

// MaxCustomTitleLen caps user-authored section titles.
const MaxCustomTitleLen = 60

// InsertCustomSection appends a user-authored `##` section to the end of the
// document. An empty title is a no-op, as is any call once the document
// already holds the configured ceiling of non-catalog sections. Repeated
// identical titles are not deduplicated; that is the caller's concern.
func (e *Engine) InsertCustomSection(doc, title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return doc
	}
	if runes := []rune(title); len(runes) > MaxCustomTitleLen {
		title = strings.TrimSpace(string(runes[:MaxCustomTitleLen]))
	}

	custom := 0
	for _, sec := range e.Parse(doc) {
		if sec.Level > 0 && !sec.Matched {
			custom++
		}
	}
	if custom >= e.customLimit {
		return doc
	}

	heading := "## " + title
	if strings.TrimSpace(doc) == "" {
		return heading + "\n"
	}
	return strings.TrimRight(doc, "\n") + "\n\n" + heading + "\n"
}
