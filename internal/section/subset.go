package section

import (
	"strings"

	"github.com/brandforge/guidegen/internal/catalog"
)

// BuildEditableSubset filters the parsed sections down to those the user may
// edit, dropping the cover placeholder and any section above the user's
// tier, and concatenates their markdown in original order. It returns the
// subset document and the ordered ids of the sections it contains; the same
// id list must be handed back to MergeEditableIntoFull.
func (e *Engine) BuildEditableSubset(secs []Section, userTier catalog.Tier) (string, []string) {
	var parts []string
	var ids []string
	for _, sec := range secs {
		if sec.ID == catalog.CoverID {
			continue
		}
		if !userTier.AtLeast(sec.MinTier) {
			continue
		}
		parts = append(parts, sec.Markdown())
		ids = append(ids, sec.ID)
	}
	return strings.Join(parts, "\n\n"), ids
}

// MergeEditableIntoFull re-parses the edited subset and folds each of its
// sections back into the full document, replacing the unlocked ids strictly
// in their original order. Order matters: ReplaceSection recomputes heading
// offsets against the current fold state.
//
// The edit surface is free text, so the subset can legally come back with a
// different heading count than it was built with. The merge replaces
// min(len(unlockedIDs), parsed sections) positions and leaves everything
// else untouched; it returns the replaced count so callers can log the drift.
func (e *Engine) MergeEditableIntoFull(full, editedSubset string, unlockedIDs []string) (string, int) {
	edited := e.Parse(editedSubset)

	n := len(unlockedIDs)
	if len(edited) < n {
		n = len(edited)
	}

	merged := full
	for i := 0; i < n; i++ {
		merged = e.ReplaceSection(merged, unlockedIDs[i], edited[i].Markdown())
	}
	return merged, n
}
