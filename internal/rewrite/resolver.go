package rewrite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/brandforge/guidegen/internal/catalog"
	"github.com/brandforge/guidegen/internal/section"
)

// State tracks a single submission. Submissions are not persisted; each
// request runs the full submitted -> success|failed arc in one call.
type State string

const (
	StateSubmitted State = "submitted"
	StateSuccess   State = "success"
	StateFailed    State = "failed"
)

// Precondition failures, rejected before any external call. These are
// user-facing validation errors, distinct from service failures.
var (
	ErrEmptyInstruction  = errors.New("rewrite instruction is empty")
	ErrNoSectionSelected = errors.New("no section selected")
	ErrInFlight          = errors.New("a rewrite submission is already in flight")
)

// Request describes one user-initiated rewrite.
type Request struct {
	Scope       Scope  `json:"scope"`
	Instruction string `json:"instruction"`
	SectionID   string `json:"section_id,omitempty"`
	Selection   string `json:"selection,omitempty"`
}

// Outcome is the result of a successful submission.
type Outcome struct {
	Document string `json:"-"`     // the updated full document
	Scope    Scope  `json:"scope"` // effective scope after any fallback
	State    State  `json:"state"`
}

// Resolver decides what text a rewrite instruction applies to, submits it to
// the external service, and splices the replacement back into the document.
// Any failure leaves the document completely unchanged.
type Resolver struct {
	engine *section.Engine
	client Rewriter
	stats  *Stats
	log    *slog.Logger

	// inFlight holds the ids of documents with a rewrite currently running.
	// The guard is per document so users working on different guides never
	// serialize against each other.
	inFlight sync.Map
}

func NewResolver(engine *section.Engine, client Rewriter, stats *Stats, log *slog.Logger) *Resolver {
	return &Resolver{engine: engine, client: client, stats: stats, log: log}
}

// Stats exposes the rolling rewrite call statistics.
func (r *Resolver) Stats() *Stats {
	return r.stats
}

// Submit runs one rewrite request against the given full document and
// returns the new document value for the caller to persist. Overlapping
// submissions against the same document are rejected with ErrInFlight rather
// than queued; submissions for different documents run independently. The
// resolver performs no internal retries.
func (r *Resolver) Submit(ctx context.Context, docID, doc string, req Request) (Outcome, error) {
	if strings.TrimSpace(req.Instruction) == "" {
		return Outcome{}, ErrEmptyInstruction
	}

	scope := req.Scope
	// An empty selection at submission time silently falls back to section
	// scope instead of submitting an empty request.
	if scope == ScopeSelection && strings.TrimSpace(req.Selection) == "" {
		scope = ScopeSection
	}

	var target string
	switch scope {
	case ScopeDocument:
		target = doc
	case ScopeSection, ScopeSelection:
		if req.SectionID == "" || req.SectionID == catalog.CoverID {
			return Outcome{}, ErrNoSectionSelected
		}
		if scope == ScopeSection {
			target = r.engine.GetSection(doc, req.SectionID)
			if target == "" {
				return Outcome{}, ErrNoSectionSelected
			}
		} else {
			target = req.Selection
		}
	default:
		return Outcome{}, fmt.Errorf("unknown rewrite scope %q", req.Scope)
	}

	if _, loaded := r.inFlight.LoadOrStore(docID, struct{}{}); loaded {
		return Outcome{}, ErrInFlight
	}
	defer r.inFlight.Delete(docID)

	r.log.Info("rewrite submitted", "doc_id", docID, "scope", scope, "section_id", req.SectionID, "target_len", len(target))

	start := time.Now()
	content, err := r.client.Rewrite(ctx, req.Instruction, target, scope)
	elapsed := time.Since(start)
	if err != nil {
		r.stats.Record(elapsed.Milliseconds(), false)
		r.log.Warn("rewrite failed", "scope", scope, "error", err)
		return Outcome{}, fmt.Errorf("rewrite: %w", err)
	}
	r.stats.Record(elapsed.Milliseconds(), true)

	out := Outcome{Scope: scope, State: StateSuccess}
	switch scope {
	case ScopeDocument:
		out.Document = strings.TrimSpace(content)
	case ScopeSection:
		out.Document = r.engine.ReplaceSection(doc, req.SectionID, content)
	case ScopeSelection:
		// The service rewrote only the selected fragment; the replacement
		// lands as the originating section's new content. Surgical in-place
		// splicing of the fragment is the edit surface's job, not ours.
		out.Document = r.engine.ReplaceSection(doc, req.SectionID, r.wrapAsSection(doc, req.SectionID, content))
	}
	return out, nil
}

// wrapAsSection rebuilds the originating section's heading over the rewritten
// body so a headingless fragment cannot erase the section boundary.
func (r *Resolver) wrapAsSection(doc, id, body string) string {
	if strings.HasPrefix(strings.TrimSpace(body), "#") {
		return body
	}
	for _, sec := range r.engine.Parse(doc) {
		if sec.ID == id {
			rebuilt := sec
			rebuilt.Content = strings.TrimSpace(body)
			return rebuilt.Markdown()
		}
	}
	return body
}
