package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandforge/guidegen/internal/catalog"
	"github.com/brandforge/guidegen/internal/config"
	"github.com/brandforge/guidegen/internal/importer"
	"github.com/brandforge/guidegen/internal/rewrite"
	"github.com/brandforge/guidegen/internal/section"
	"github.com/brandforge/guidegen/internal/store"
)

const testAPIKey = "test-key"

type scriptedRewriter struct {
	reply string
	err   error
}

func (f *scriptedRewriter) Rewrite(ctx context.Context, instruction, target string, scope rewrite.Scope) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newTestServer(t *testing.T, rw rewrite.Rewriter) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := section.NewEngine(catalog.Default(), 5)
	if rw == nil {
		rw = &scriptedRewriter{reply: "rewritten"}
	}
	resolver := rewrite.NewResolver(engine, rw, rewrite.NewStats(time.Minute), log)

	pipe := importer.NewPipeline(st, log, 1, 4, time.Minute, false)
	pipe.Start(context.Background())
	t.Cleanup(pipe.Stop)

	cfg := config.Config{
		APIKey:         testAPIKey,
		MaxUploadBytes: 1 << 20,
	}
	return NewServer(st, engine, resolver, pipe, log, cfg), st
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func createTestDocument(t *testing.T, srv *Server, content string) string {
	t.Helper()
	w := doJSON(t, srv, http.MethodPost, "/api/documents", map[string]string{
		"user_id": "u1",
		"title":   "Acme Brand Guide",
		"content": content,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var doc store.Document
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	require.NotEmpty(t, doc.ID)
	return doc.ID
}

const testGuide = "# Cover\n\nAcme Inc.\n\n## About\n\nWe make tools.\n\n## Brand Voice\n\nFriendly and direct."

func TestAuthRequired(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/documents?user_id=u1", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req.Header.Set("Authorization", "Bearer wrong-key")
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealthIsPublic(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDocumentLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	id := createTestDocument(t, srv, testGuide)

	w := doJSON(t, srv, http.MethodGet, "/api/documents/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var doc store.Document
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, testGuide, doc.Content)

	w = doJSON(t, srv, http.MethodDelete, "/api/documents/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/api/documents/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateDocument_RequiresUserID(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	w := doJSON(t, srv, http.MethodPost, "/api/documents", map[string]string{"title": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListSections_LockState(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	id := createTestDocument(t, srv, testGuide)

	w := doJSON(t, srv, http.MethodGet, "/api/documents/"+id+"/sections", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Tier     string        `json:"tier"`
		Sections []sectionView `json:"sections"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "starter", resp.Tier)
	require.Len(t, resp.Sections, 3)

	byID := map[string]sectionView{}
	for _, sec := range resp.Sections {
		byID[sec.ID] = sec
	}
	assert.True(t, byID["cover"].Locked, "cover is never editable")
	assert.False(t, byID["about"].Locked)
	assert.True(t, byID["brand-voice"].Locked, "pro section locked for starter user")
}

func TestListSections_UnlockedAfterTierUpgrade(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	id := createTestDocument(t, srv, testGuide)

	w := doJSON(t, srv, http.MethodPut, "/api/users/u1/tier", map[string]string{"tier": "pro"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/api/documents/"+id+"/sections", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Sections []sectionView `json:"sections"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	for _, sec := range resp.Sections {
		if sec.ID == "brand-voice" {
			assert.False(t, sec.Locked)
		}
	}
}

func TestSetTier_RejectsUnknownName(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	w := doJSON(t, srv, http.MethodPut, "/api/users/u1/tier", map[string]string{"tier": "platinum"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInsertSection(t *testing.T) {
	srv, st := newTestServer(t, nil)
	id := createTestDocument(t, srv, testGuide)

	w := doJSON(t, srv, http.MethodPost, "/api/documents/"+id+"/sections", map[string]string{
		"title": "Packaging Notes",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Inserted bool `json:"inserted"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Inserted)

	doc, err := st.GetDocument(context.Background(), id)
	require.NoError(t, err)
	assert.Contains(t, doc.Content, "## Packaging Notes")
}

func TestInsertSection_EmptyTitleIsNoOp(t *testing.T) {
	srv, st := newTestServer(t, nil)
	id := createTestDocument(t, srv, testGuide)

	w := doJSON(t, srv, http.MethodPost, "/api/documents/"+id+"/sections", map[string]string{
		"title": "   ",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Inserted bool `json:"inserted"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Inserted)

	doc, err := st.GetDocument(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, testGuide, doc.Content)
}

func TestEditableRoundTrip(t *testing.T) {
	srv, st := newTestServer(t, nil)
	id := createTestDocument(t, srv, testGuide)

	w := doJSON(t, srv, http.MethodGet, "/api/documents/"+id+"/editable", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sub struct {
		Content    string   `json:"content"`
		SectionIDs []string `json:"section_ids"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sub))
	assert.Equal(t, []string{"about"}, sub.SectionIDs)
	assert.NotContains(t, sub.Content, "Cover")
	assert.NotContains(t, sub.Content, "Brand Voice")

	edited := strings.Replace(sub.Content, "We make tools.", "We craft tools.", 1)
	w = doJSON(t, srv, http.MethodPut, "/api/documents/"+id+"/editable", map[string]any{
		"content":     edited,
		"section_ids": sub.SectionIDs,
	})
	require.Equal(t, http.StatusOK, w.Code)
	var merged struct {
		Replaced int `json:"replaced"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &merged))
	assert.Equal(t, 1, merged.Replaced)

	doc, err := st.GetDocument(context.Background(), id)
	require.NoError(t, err)
	assert.Contains(t, doc.Content, "We craft tools.")
	assert.Contains(t, doc.Content, "# Cover", "locked sections survive the merge")
	assert.Contains(t, doc.Content, "Friendly and direct.")
}

func TestMergeEditable_IgnoresLockedSectionIDs(t *testing.T) {
	srv, st := newTestServer(t, nil)
	id := createTestDocument(t, srv, testGuide)

	// A starter user naming the pro-gated brand-voice section must not be
	// able to overwrite it through the merge.
	w := doJSON(t, srv, http.MethodPut, "/api/documents/"+id+"/editable", map[string]any{
		"content":     "## Brand Voice\n\nHijacked.",
		"section_ids": []string{"brand-voice"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	var merged struct {
		Replaced int `json:"replaced"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &merged))
	assert.Equal(t, 0, merged.Replaced)

	doc, err := st.GetDocument(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, testGuide, doc.Content)
}

func TestRewrite_SectionScope(t *testing.T) {
	srv, st := newTestServer(t, &scriptedRewriter{reply: "## About\n\nWe build sturdy tools."})
	id := createTestDocument(t, srv, testGuide)

	w := doJSON(t, srv, http.MethodPost, "/api/documents/"+id+"/rewrite", map[string]string{
		"scope":       "section",
		"instruction": "make it punchier",
		"section_id":  "about",
	})
	require.Equal(t, http.StatusOK, w.Code)

	doc, err := st.GetDocument(context.Background(), id)
	require.NoError(t, err)
	assert.Contains(t, doc.Content, "We build sturdy tools.")
	assert.NotContains(t, doc.Content, "We make tools.")
}

func TestRewrite_PreconditionsReturn422(t *testing.T) {
	srv, st := newTestServer(t, nil)
	id := createTestDocument(t, srv, testGuide)

	cases := []struct {
		name string
		body map[string]string
	}{
		{"empty instruction", map[string]string{"scope": "document", "instruction": "  "}},
		{"no section id", map[string]string{"scope": "section", "instruction": "fix"}},
		{"cover targeted", map[string]string{"scope": "section", "instruction": "fix", "section_id": "cover"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, srv, http.MethodPost, "/api/documents/"+id+"/rewrite", tc.body)
			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		})
	}

	doc, err := st.GetDocument(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, testGuide, doc.Content, "rejected submissions leave the document unchanged")
}

func TestRewrite_ServiceFailureReturns502(t *testing.T) {
	srv, st := newTestServer(t, &scriptedRewriter{
		err: &rewrite.ServiceError{StatusCode: 529, Message: "overloaded"},
	})
	id := createTestDocument(t, srv, testGuide)

	w := doJSON(t, srv, http.MethodPost, "/api/documents/"+id+"/rewrite", map[string]string{
		"scope":       "document",
		"instruction": "tighten everything",
	})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	doc, err := st.GetDocument(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, testGuide, doc.Content)
}

func TestRewriteStats(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedRewriter{reply: "done"})
	id := createTestDocument(t, srv, testGuide)

	w := doJSON(t, srv, http.MethodPost, "/api/documents/"+id+"/rewrite", map[string]string{
		"scope":       "document",
		"instruction": "shorten",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/api/stats/rewrite", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snap rewrite.StatsSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, 1, snap.Count)
	assert.Equal(t, 0, snap.Failures)
}

func TestPreview(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	id := createTestDocument(t, srv, testGuide)

	w := doJSON(t, srv, http.MethodGet, "/api/documents/"+id+"/preview", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "<h2>About</h2>")

	w = doJSON(t, srv, http.MethodGet, "/api/documents/"+id+"/preview?view=editable&user_id=u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<h2>About</h2>")
	assert.NotContains(t, w.Body.String(), "Cover")
}

func TestImportFlow(t *testing.T) {
	srv, st := newTestServer(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("user_id", "u1"))
	fw, err := mw.CreateFormFile("file", "guide.md")
	require.NoError(t, err)
	_, err = fw.Write([]byte("# Imported Guide\n\nSome content.\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents/import", &buf)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code)

	var accepted struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	require.NotEmpty(t, accepted.JobID)

	var snap importer.Snapshot
	require.Eventually(t, func() bool {
		resp := doJSON(t, srv, http.MethodGet, "/api/imports/"+accepted.JobID, nil)
		if resp.Code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(resp.Body.Bytes(), &snap); err != nil {
			return false
		}
		return snap.Status == importer.StatusCompleted || snap.Status == importer.StatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, importer.StatusCompleted, snap.Status)
	doc, err := st.GetDocument(context.Background(), snap.DocID)
	require.NoError(t, err)
	assert.Contains(t, doc.Content, "# Imported Guide")
}

func TestImport_UnsupportedFormat(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("user_id", "u1"))
	fw, err := mw.CreateFormFile("file", "guide.xlsx")
	require.NoError(t, err)
	_, err = fw.Write([]byte("nope"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents/import", &buf)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}
