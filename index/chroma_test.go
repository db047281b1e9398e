package index

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"newspulse/errs"
	"newspulse/retry"
	"newspulse/types"
)

// fakeChroma emulates the subset of the Chroma v2 REST API the store uses.
type fakeChroma struct {
	mu   sync.Mutex
	docs map[string]fakeDoc
	fail map[string]int // path suffix -> remaining failures
	mux  *http.ServeMux
}

type fakeDoc struct {
	document string
	metadata map[string]any
	vector   []float64
}

func newFakeChroma() *fakeChroma {
	f := &fakeChroma{docs: make(map[string]fakeDoc), fail: make(map[string]int)}
	mux := http.NewServeMux()
	base := "/api/v2/tenants/default_tenant/databases/default_database"

	mux.HandleFunc(base+"/collections/", func(w http.ResponseWriter, r *http.Request) {
		// GET collection by name during setup
		json.NewEncoder(w).Encode(map[string]any{"id": "col1"})
	})
	mux.HandleFunc(base+"/collections", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": "col1"})
	})
	mux.HandleFunc(base+"/collections/col1/upsert", f.withFailures("/upsert", f.handleUpsert))
	mux.HandleFunc(base+"/collections/col1/get", f.withFailures("/get", f.handleGet))
	mux.HandleFunc(base+"/collections/col1/query", f.withFailures("/query", f.handleQuery))
	mux.HandleFunc(base+"/collections/col1/delete", f.withFailures("/delete", f.handleDelete))
	mux.HandleFunc(base+"/collections/col1/count", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		json.NewEncoder(w).Encode(len(f.docs))
	})
	f.mux = mux
	return f
}

func (f *fakeChroma) withFailures(path string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		remaining := f.fail[path]
		if remaining > 0 {
			f.fail[path] = remaining - 1
			f.mu.Unlock()
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		f.mu.Unlock()
		next(w, r)
	}
}

func (f *fakeChroma) handleUpsert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs        []string         `json:"ids"`
		Embeddings [][]float64      `json:"embeddings"`
		Documents  []string         `json:"documents"`
		Metadatas  []map[string]any `json:"metadatas"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.IDs) == 0 || len(req.Embeddings) != len(req.IDs) {
		http.Error(w, "ids/embeddings mismatch", http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, id := range req.IDs {
		doc := fakeDoc{vector: req.Embeddings[i]}
		if i < len(req.Documents) {
			doc.document = req.Documents[i]
		}
		if i < len(req.Metadatas) {
			doc.metadata = req.Metadatas[i]
		}
		f.docs[id] = doc
	}
	w.WriteHeader(http.StatusCreated)
}

func (f *fakeChroma) handleGet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	resp := struct {
		IDs       []string         `json:"ids"`
		Documents []string         `json:"documents"`
		Metadatas []map[string]any `json:"metadatas"`
	}{IDs: []string{}, Documents: []string{}, Metadatas: []map[string]any{}}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range req.IDs {
		if doc, ok := f.docs[id]; ok {
			resp.IDs = append(resp.IDs, id)
			resp.Documents = append(resp.Documents, doc.document)
			resp.Metadatas = append(resp.Metadatas, doc.metadata)
		}
	}
	json.NewEncoder(w).Encode(resp)
}

// handleQuery returns documents in insertion order with distances taken from
// metadata key "_test_distance" so tests control ordering inputs.
func (f *fakeChroma) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req map[string]any
	json.NewDecoder(r.Body).Decode(&req)
	f.mu.Lock()

	var ids []string
	var distances []float64
	var documents []string
	var metadatas []map[string]any
	for id, doc := range f.docs {
		ids = append(ids, id)
		d := 0.5
		if v, ok := doc.metadata["_test_distance"].(float64); ok {
			d = v
		}
		distances = append(distances, d)
		documents = append(documents, doc.document)
		metadatas = append(metadatas, doc.metadata)
	}
	f.mu.Unlock()

	if n, ok := req["n_results"].(float64); ok && len(ids) > int(n) {
		ids = ids[:int(n)]
		distances = distances[:int(n)]
		documents = documents[:int(n)]
		metadatas = metadatas[:int(n)]
	}

	json.NewEncoder(w).Encode(map[string]any{
		"ids":       [][]string{ids},
		"distances": [][]float64{distances},
		"documents": [][]string{documents},
		"metadatas": [][]map[string]any{metadatas},
	})
}

func (f *fakeChroma) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	json.NewDecoder(r.Body).Decode(&req)
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range req.IDs {
		delete(f.docs, id)
	}
	w.WriteHeader(http.StatusOK)
}

func newTestStore(t *testing.T, f *fakeChroma) (*ChromaStore, func()) {
	t.Helper()
	server := httptest.NewServer(f.mux)
	store, err := NewChromaStore(ChromaConfig{
		Collection: "news-articles",
		BaseURL:    server.URL + "/api/v2",
	}, retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 1, Jitter: 0})
	if err != nil {
		server.Close()
		t.Fatalf("new store: %v", err)
	}
	return store, server.Close
}

func testRecord(fp string) types.ProcessedArticle {
	return types.ProcessedArticle{
		Fingerprint:  fp,
		SourceURL:    "https://example.com/" + fp,
		Title:        "Title " + fp,
		Body:         "Body " + fp,
		Author:       "Reporter",
		PublishedAt:  time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		FetchedAt:    time.Date(2026, 8, 2, 8, 0, 0, 0, time.UTC),
		Summary:      "Summary " + fp,
		Topics:       []string{"economy", "rates"},
		EmbedVersion: "v1",
		Vector:       types.Vector{0.1, 0.2, 0.3},
	}
}

func TestUpsertGetRoundTrip(t *testing.T) {
	f := newFakeChroma()
	store, closeFn := newTestStore(t, f)
	defer closeFn()
	ctx := context.Background()

	rec := testRecord("fp1")
	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := store.Get(ctx, "fp1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected record, got nil")
	}
	if got.Title != rec.Title || got.Summary != rec.Summary || got.Body != rec.Body {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.EmbedVersion != "v1" {
		t.Fatalf("embed version lost: %q", got.EmbedVersion)
	}
	if len(got.Topics) != 2 || got.Topics[0] != "economy" {
		t.Fatalf("topics mismatch: %v", got.Topics)
	}
	if !got.PublishedAt.Equal(rec.PublishedAt) {
		t.Fatalf("published_at mismatch: %v", got.PublishedAt)
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	f := newFakeChroma()
	store, closeFn := newTestStore(t, f)
	defer closeFn()
	ctx := context.Background()

	rec := testRecord("fp1")
	for i := 0; i < 3; i++ {
		if err := store.Upsert(ctx, rec); err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record after repeated upserts, got %d", count)
	}
}

func TestGetAbsentReturnsNil(t *testing.T) {
	f := newFakeChroma()
	store, closeFn := newTestStore(t, f)
	defer closeFn()

	got, err := store.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for absent fingerprint, got %+v", got)
	}
}

func TestQueryOrdersBySimilarityThenRecency(t *testing.T) {
	f := newFakeChroma()
	store, closeFn := newTestStore(t, f)
	defer closeFn()
	ctx := context.Background()

	newer := testRecord("newer")
	newer.PublishedAt = time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	older := testRecord("older")
	older.PublishedAt = time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	closest := testRecord("closest")

	for _, rec := range []types.ProcessedArticle{newer, older, closest} {
		if err := store.Upsert(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}
	// Same distance for the tied pair, smaller for the closest.
	f.mu.Lock()
	for id, doc := range f.docs {
		d := 0.4
		if id == "closest" {
			d = 0.1
		}
		doc.metadata["_test_distance"] = d
		f.docs[id] = doc
	}
	f.mu.Unlock()

	matches, err := store.Query(ctx, types.Vector{0.1, 0.2, 0.3}, 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}
	if matches[0].Fingerprint != "closest" {
		t.Fatalf("expected closest first, got %s", matches[0].Fingerprint)
	}
	if matches[1].Fingerprint != "newer" || matches[2].Fingerprint != "older" {
		t.Fatalf("tie not broken by recency: %s, %s", matches[1].Fingerprint, matches[2].Fingerprint)
	}
	if s := matches[0].Similarity; s < 0.89 || s > 0.91 {
		t.Fatalf("expected similarity 0.9, got %f", s)
	}
}

func TestQueryEmptyIndex(t *testing.T) {
	f := newFakeChroma()
	store, closeFn := newTestStore(t, f)
	defer closeFn()

	matches, err := store.Query(context.Background(), types.Vector{0.1}, 5)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected no matches, got %d", len(matches))
	}
}

func TestDeleteRemovesRecord(t *testing.T) {
	f := newFakeChroma()
	store, closeFn := newTestStore(t, f)
	defer closeFn()
	ctx := context.Background()

	if err := store.Upsert(ctx, testRecord("fp1")); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, "fp1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := store.Get(ctx, "fp1")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("record still present after delete")
	}
}

func TestTransientServerErrorsAreRetried(t *testing.T) {
	f := newFakeChroma()
	store, closeFn := newTestStore(t, f)
	defer closeFn()

	f.mu.Lock()
	f.fail["/upsert"] = 2
	f.mu.Unlock()

	if err := store.Upsert(context.Background(), testRecord("fp1")); err != nil {
		t.Fatalf("expected retries to absorb 5xx responses, got %v", err)
	}
}

func TestExhaustedRetriesSurfaceStoreUnavailable(t *testing.T) {
	f := newFakeChroma()
	store, closeFn := newTestStore(t, f)
	defer closeFn()

	f.mu.Lock()
	f.fail["/upsert"] = 10
	f.mu.Unlock()

	err := store.Upsert(context.Background(), testRecord("fp1"))
	if !errors.Is(err, errs.ErrStoreUnavailable) {
		t.Fatalf("expected StoreUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Fatalf("expected retry exhaustion in error, got %q", err)
	}
}
