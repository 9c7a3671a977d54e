package rewrite

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandforge/guidegen/internal/catalog"
	"github.com/brandforge/guidegen/internal/section"
)

const testDoc = "## Cover\n\nCover art.\n\n## About Brand\n\nThis is about the brand.\n\n## Brand Voice\n\nVoice traits here.\n"

// fakeRewriter records the last call and returns canned output.
type fakeRewriter struct {
	mu              sync.Mutex
	lastInstruction string
	lastTarget      string
	lastScope       Scope
	callCount       atomic.Int32

	reply string
	err   error
	block chan struct{} // when set, Rewrite waits until it is closed
}

func (f *fakeRewriter) Rewrite(ctx context.Context, instruction, target string, scope Scope) (string, error) {
	f.mu.Lock()
	f.lastInstruction = instruction
	f.lastTarget = target
	f.lastScope = scope
	f.mu.Unlock()
	f.callCount.Add(1)
	if f.block != nil {
		<-f.block
	}
	return f.reply, f.err
}

func (f *fakeRewriter) calls() int {
	return int(f.callCount.Load())
}

func newTestResolver(fake *fakeRewriter) *Resolver {
	engine := section.NewEngine(catalog.Default(), 5)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewResolver(engine, fake, NewStats(time.Hour), log)
}

func TestSubmit_DocumentScope(t *testing.T) {
	fake := &fakeRewriter{reply: "## About Brand\n\nEntirely rewritten guide."}
	r := newTestResolver(fake)

	out, err := r.Submit(context.Background(), "doc1", testDoc, Request{
		Scope:       ScopeDocument,
		Instruction: "make it punchier",
	})
	require.NoError(t, err)
	assert.Equal(t, ScopeDocument, out.Scope)
	assert.Equal(t, StateSuccess, out.State)
	assert.Equal(t, testDoc, fake.lastTarget, "document scope targets the whole document")
	assert.Equal(t, "## About Brand\n\nEntirely rewritten guide.", out.Document)
}

func TestSubmit_SectionScope(t *testing.T) {
	fake := &fakeRewriter{reply: "## About Brand\n\nSharper about copy."}
	r := newTestResolver(fake)

	out, err := r.Submit(context.Background(), "doc1", testDoc, Request{
		Scope:       ScopeSection,
		Instruction: "tighten this up",
		SectionID:   "about",
	})
	require.NoError(t, err)
	assert.Equal(t, "## About Brand\n\nThis is about the brand.", fake.lastTarget)

	engine := section.NewEngine(catalog.Default(), 5)
	secs := engine.Parse(out.Document)
	require.Len(t, secs, 3)
	assert.Equal(t, "Sharper about copy.", secs[1].Content)
	assert.Equal(t, "Cover art.", secs[0].Content, "untargeted sections stay put")
	assert.Equal(t, "Voice traits here.", secs[2].Content)
}

func TestSubmit_SelectionScope(t *testing.T) {
	fake := &fakeRewriter{reply: "A bolder fragment."}
	r := newTestResolver(fake)

	out, err := r.Submit(context.Background(), "doc1", testDoc, Request{
		Scope:       ScopeSelection,
		Instruction: "make it bolder",
		SectionID:   "brand-voice",
		Selection:   "Voice traits",
	})
	require.NoError(t, err)
	assert.Equal(t, ScopeSelection, out.Scope)
	assert.Equal(t, "Voice traits", fake.lastTarget, "selection scope targets the captured text")

	engine := section.NewEngine(catalog.Default(), 5)
	secs := engine.Parse(out.Document)
	require.Len(t, secs, 3)
	// The returned fragment becomes the originating section's content, under
	// the original heading.
	assert.Equal(t, "Brand Voice", secs[2].Title)
	assert.Equal(t, "A bolder fragment.", secs[2].Content)
}

func TestSubmit_EmptySelectionFallsBackToSection(t *testing.T) {
	fake := &fakeRewriter{reply: "## Brand Voice\n\nFallback rewrite."}
	r := newTestResolver(fake)

	out, err := r.Submit(context.Background(), "doc1", testDoc, Request{
		Scope:       ScopeSelection,
		Instruction: "rewrite it",
		SectionID:   "brand-voice",
		Selection:   "   ",
	})
	require.NoError(t, err)
	assert.Equal(t, ScopeSection, out.Scope, "empty selection silently degrades to section scope")
	assert.Equal(t, ScopeSection, fake.lastScope)
	assert.Equal(t, "## Brand Voice\n\nVoice traits here.", fake.lastTarget)
}

func TestSubmit_Preconditions(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{
			name:    "empty instruction",
			req:     Request{Scope: ScopeDocument, Instruction: "  "},
			wantErr: ErrEmptyInstruction,
		},
		{
			name:    "cover section",
			req:     Request{Scope: ScopeSection, Instruction: "x", SectionID: catalog.CoverID},
			wantErr: ErrNoSectionSelected,
		},
		{
			name:    "no section id",
			req:     Request{Scope: ScopeSection, Instruction: "x"},
			wantErr: ErrNoSectionSelected,
		},
		{
			name:    "stale section id",
			req:     Request{Scope: ScopeSection, Instruction: "x", SectionID: "gone"},
			wantErr: ErrNoSectionSelected,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeRewriter{reply: "anything"}
			r := newTestResolver(fake)
			_, err := r.Submit(context.Background(), "doc1", testDoc, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, fake.calls(), "precondition failures must not reach the service")
		})
	}
}

func TestSubmit_ServiceFailureLeavesDocumentUnchanged(t *testing.T) {
	fake := &fakeRewriter{err: errors.New("upstream timed out")}
	r := newTestResolver(fake)

	out, err := r.Submit(context.Background(), "doc1", testDoc, Request{
		Scope:       ScopeSection,
		Instruction: "rewrite",
		SectionID:   "about",
	})
	require.Error(t, err)
	assert.Empty(t, out.Document)
	assert.Equal(t, 1, fake.calls(), "the resolver must not retry on its own")
}

func TestSubmit_RejectsOverlappingSubmission(t *testing.T) {
	fake := &fakeRewriter{reply: "## About Brand\n\nDone.", block: make(chan struct{})}
	r := newTestResolver(fake)

	done := make(chan error, 1)
	go func() {
		_, err := r.Submit(context.Background(), "doc1", testDoc, Request{
			Scope: ScopeSection, Instruction: "slow", SectionID: "about",
		})
		done <- err
	}()

	// Wait for the first submission to be in flight.
	require.Eventually(t, func() bool { return fake.calls() == 1 }, time.Second, time.Millisecond)

	_, err := r.Submit(context.Background(), "doc1", testDoc, Request{
		Scope: ScopeSection, Instruction: "overlap", SectionID: "about",
	})
	assert.ErrorIs(t, err, ErrInFlight)

	close(fake.block)
	require.NoError(t, <-done)
}

func TestSubmit_DifferentDocumentsRunIndependently(t *testing.T) {
	fake := &fakeRewriter{reply: "## About Brand\n\nDone.", block: make(chan struct{})}
	r := newTestResolver(fake)

	done := make(chan error, 1)
	go func() {
		_, err := r.Submit(context.Background(), "doc1", testDoc, Request{
			Scope: ScopeSection, Instruction: "slow", SectionID: "about",
		})
		done <- err
	}()

	require.Eventually(t, func() bool { return fake.calls() == 1 }, time.Second, time.Millisecond)

	// A rewrite on another document must not be rejected while doc1 is busy.
	done2 := make(chan error, 1)
	go func() {
		_, err := r.Submit(context.Background(), "doc2", testDoc, Request{
			Scope: ScopeSection, Instruction: "fast", SectionID: "about",
		})
		done2 <- err
	}()

	// Both submissions reaching the service proves doc2 was not turned away.
	require.Eventually(t, func() bool { return fake.calls() == 2 }, time.Second, time.Millisecond)

	close(fake.block)
	require.NoError(t, <-done)
	require.NoError(t, <-done2)
}

func TestStats_RecordsOutcomes(t *testing.T) {
	fake := &fakeRewriter{reply: "## About Brand\n\nOk."}
	r := newTestResolver(fake)

	_, err := r.Submit(context.Background(), "doc1", testDoc, Request{
		Scope: ScopeSection, Instruction: "x", SectionID: "about",
	})
	require.NoError(t, err)

	fake.err = errors.New("boom")
	_, err = r.Submit(context.Background(), "doc1", testDoc, Request{
		Scope: ScopeSection, Instruction: "x", SectionID: "about",
	})
	require.Error(t, err)

	snap := r.Stats().Snapshot()
	assert.Equal(t, 2, snap.Count)
	assert.Equal(t, 1, snap.Failures)
}
