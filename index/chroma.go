package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"newspulse/errs"
	"newspulse/retry"
	"newspulse/types"
)

// ChromaConfig holds connection settings for the Chroma v2 REST API.
type ChromaConfig struct {
	Host       string
	Port       int
	Collection string
	// BaseURL overrides Host/Port when set (used against test servers).
	BaseURL string
}

// ChromaStore implements Store on a Chroma collection. Chroma reports
// cosine distance; similarity = 1 - distance.
type ChromaStore struct {
	baseURL      string
	tenant       string
	database     string
	collectionID string
	httpClient   *http.Client
	policy       retry.Policy
}

// NewChromaStore connects to Chroma and ensures the collection exists.
func NewChromaStore(cfg ChromaConfig, policy retry.Policy) (*ChromaStore, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://%s:%d/api/v2", cfg.Host, cfg.Port)
	}

	s := &ChromaStore{
		baseURL:    baseURL,
		tenant:     "default_tenant",
		database:   "default_database",
		httpClient: &http.Client{Timeout: 30 * time.Second},
		policy:     policy,
	}

	collectionID, err := s.getOrCreateCollection(cfg.Collection)
	if err != nil {
		return nil, fmt.Errorf("get or create collection: %w", err)
	}
	s.collectionID = collectionID
	return s, nil
}

func (s *ChromaStore) getOrCreateCollection(name string) (string, error) {
	url := fmt.Sprintf("%s/tenants/%s/databases/%s/collections/%s", s.baseURL, s.tenant, s.database, name)
	resp, err := s.httpClient.Get(url)
	if err == nil && resp.StatusCode == http.StatusOK {
		defer resp.Body.Close()
		var result struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return "", err
		}
		log.Printf("index: using existing collection %s", name)
		return result.ID, nil
	}
	if resp != nil {
		resp.Body.Close()
	}

	log.Printf("index: creating collection %s", name)
	createURL := fmt.Sprintf("%s/tenants/%s/databases/%s/collections", s.baseURL, s.tenant, s.database)
	payload := map[string]any{
		"name":          name,
		"get_or_create": true,
		"configuration": map[string]any{
			"hnsw": map[string]any{"space": "cosine"},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	resp, err = s.httpClient.Post(createURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("create collection (status %d): %s", resp.StatusCode, string(raw))
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.ID, nil
}

func (s *ChromaStore) collectionURL() string {
	return fmt.Sprintf("%s/tenants/%s/databases/%s/collections/%s", s.baseURL, s.tenant, s.database, s.collectionID)
}

// Upsert inserts or overwrites the record keyed by its fingerprint.
func (s *ChromaStore) Upsert(ctx context.Context, rec types.ProcessedArticle) error {
	if rec.Fingerprint == "" {
		return errors.New("record has no fingerprint")
	}
	if len(rec.Vector) == 0 {
		return errors.New("record has no vector")
	}

	payload := map[string]any{
		"ids":        []string{rec.Fingerprint},
		"embeddings": []types.Vector{rec.Vector},
		"documents":  []string{rec.Body},
		"metadatas":  []map[string]any{recordMetadata(rec)},
	}
	return s.post(ctx, "/upsert", payload, nil)
}

// Get fetches the record for a fingerprint; nil when absent.
func (s *ChromaStore) Get(ctx context.Context, fp string) (*types.ProcessedArticle, error) {
	payload := map[string]any{
		"ids":     []string{fp},
		"include": []string{"metadatas", "documents"},
	}

	var result struct {
		IDs       []string         `json:"ids"`
		Documents []string         `json:"documents"`
		Metadatas []map[string]any `json:"metadatas"`
	}
	if err := s.post(ctx, "/get", payload, &result); err != nil {
		return nil, err
	}
	if len(result.IDs) == 0 {
		return nil, nil
	}

	doc := ""
	if len(result.Documents) > 0 {
		doc = result.Documents[0]
	}
	var meta map[string]any
	if len(result.Metadatas) > 0 {
		meta = result.Metadatas[0]
	}

	rec := recordFromMetadata(result.IDs[0], doc, meta)
	return &rec, nil
}

// Query runs a nearest-neighbor search and orders the matches by descending
// similarity, ties broken by more recent publish timestamp.
func (s *ChromaStore) Query(ctx context.Context, vector types.Vector, topK int) ([]Match, error) {
	payload := map[string]any{
		"query_embeddings": []types.Vector{vector},
		"n_results":        topK,
		"include":          []string{"metadatas", "documents", "distances"},
	}

	var result struct {
		IDs       [][]string         `json:"ids"`
		Distances [][]float64        `json:"distances"`
		Documents [][]string         `json:"documents"`
		Metadatas [][]map[string]any `json:"metadatas"`
	}
	if err := s.post(ctx, "/query", payload, &result); err != nil {
		return nil, err
	}
	if len(result.IDs) == 0 || len(result.IDs[0]) == 0 {
		return []Match{}, nil
	}

	ids := result.IDs[0]
	matches := make([]Match, 0, len(ids))
	for i, id := range ids {
		m := Match{Fingerprint: id}
		if len(result.Distances) > 0 && i < len(result.Distances[0]) {
			m.Similarity = 1 - result.Distances[0][i]
		}
		doc := ""
		if len(result.Documents) > 0 && i < len(result.Documents[0]) {
			doc = result.Documents[0][i]
		}
		var meta map[string]any
		if len(result.Metadatas) > 0 && i < len(result.Metadatas[0]) {
			meta = result.Metadatas[0][i]
		}
		m.Record = recordFromMetadata(id, doc, meta)
		matches = append(matches, m)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Record.PublishedAt.After(matches[j].Record.PublishedAt)
	})
	return matches, nil
}

// Delete removes the record for a fingerprint.
func (s *ChromaStore) Delete(ctx context.Context, fp string) error {
	return s.post(ctx, "/delete", map[string]any{"ids": []string{fp}}, nil)
}

// Count reports how many records the collection holds.
func (s *ChromaStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.collectionURL()+"/count", nil)
		if err != nil {
			return err
		}
		resp, err := s.httpClient.Do(req)
		if err != nil {
			return errs.Transient(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return statusError(resp)
		}
		return json.NewDecoder(resp.Body).Decode(&count)
	}, errs.IsTransient)
	if err != nil {
		return 0, errs.StoreUnavailable(err)
	}
	return count, nil
}

// post sends a JSON request to a collection endpoint with retries. Network
// failures and 5xx responses are retried; other statuses are terminal.
func (s *ChromaStore) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	err = s.policy.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.collectionURL()+path, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return errs.Transient(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			return statusError(resp)
		}
		if out == nil {
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}, errs.IsTransient)
	if err != nil {
		return errs.StoreUnavailable(err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	err := fmt.Errorf("chroma status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	if resp.StatusCode >= 500 {
		return errs.Transient(err)
	}
	return err
}

// Metadata layout stored next to each vector. Chroma metadata holds scalars
// only, so topics are comma-joined and timestamps are RFC3339 strings.
func recordMetadata(rec types.ProcessedArticle) map[string]any {
	meta := map[string]any{
		"title":         rec.Title,
		"url":           rec.SourceURL,
		"summary":       rec.Summary,
		"embed_version": rec.EmbedVersion,
		"published_at":  rec.PublishedAt.Format(time.RFC3339),
		"fetched_at":    rec.FetchedAt.Format(time.RFC3339),
	}
	if rec.Author != "" {
		meta["author"] = rec.Author
	}
	if len(rec.Topics) > 0 {
		meta["topics"] = strings.Join(rec.Topics, ", ")
	}
	return meta
}

func recordFromMetadata(fp, document string, meta map[string]any) types.ProcessedArticle {
	rec := types.ProcessedArticle{
		Fingerprint: fp,
		Body:        document,
	}
	if meta == nil {
		return rec
	}

	rec.Title = metaString(meta, "title")
	rec.SourceURL = metaString(meta, "url")
	rec.Author = metaString(meta, "author")
	rec.Summary = metaString(meta, "summary")
	rec.EmbedVersion = metaString(meta, "embed_version")
	rec.PublishedAt = metaTime(meta, "published_at")
	rec.FetchedAt = metaTime(meta, "fetched_at")
	if topics := metaString(meta, "topics"); topics != "" {
		rec.Topics = strings.Split(topics, ", ")
	}
	return rec
}

func metaString(meta map[string]any, key string) string {
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}

func metaTime(meta map[string]any, key string) time.Time {
	if v, ok := meta[key].(string); ok {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			return ts
		}
	}
	return time.Time{}
}
