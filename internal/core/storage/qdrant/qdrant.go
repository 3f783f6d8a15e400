// Package qdrant is a minimal REST adapter to Qdrant implementing
// storage.VectorStore. REST rather than the gRPC SDK because the aggregation
// path depends on the points/scroll endpoint with payload range filters, and
// the deployed collections were built over the same HTTP surface.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/salescope-lab/salescope/internal/core/storage"
)

type Store struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

func New(cfg Config) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Store{
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// Search runs a similarity query. Newer Qdrant versions moved search to
// points/query; the adapter tries points/search first and falls back, so it
// works against both.
func (s *Store) Search(ctx context.Context, collection string, vector []float64, limit int) ([]storage.ScoredRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	body := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}

	var resp searchResponse
	err := s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/search", s.baseURL, collection), body, &resp)
	if err != nil {
		err = s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/query", s.baseURL, collection), body, &resp)
	}
	if err != nil {
		return nil, err
	}

	points := resp.points()
	out := make([]storage.ScoredRecord, 0, len(points))
	for _, p := range points {
		rec := storage.ScoredRecord{Score: p.Score, Payload: p.Payload}
		if p.Payload == nil {
			rec.Payload = storage.Record{}
		}
		if p.ID != nil {
			rec.ID = fmt.Sprintf("%v", p.ID)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Scroll fetches one page of records matching the filter. The returned offset
// is opaque; nil means the store reported no further pages.
func (s *Store) Scroll(ctx context.Context, collection string, filter storage.Filter, limit int, offset any) ([]storage.Record, any, error) {
	body := map[string]any{
		"limit":        limit,
		"with_payload": true,
	}
	if !filter.IsZero() {
		body["filter"] = encodeFilter(filter)
	}
	if offset != nil {
		body["offset"] = offset
	}

	var resp scrollResponse
	if err := s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/scroll", s.baseURL, collection), body, &resp); err != nil {
		return nil, nil, err
	}

	points, next := resp.page()
	records := make([]storage.Record, 0, len(points))
	for _, p := range points {
		if p.Payload != nil {
			records = append(records, p.Payload)
		} else {
			records = append(records, storage.Record{})
		}
	}
	return records, next, nil
}

func (s *Store) Upsert(ctx context.Context, collection string, points []storage.Point) error {
	body := map[string]any{"points": encodePoints(points)}
	url := fmt.Sprintf("%s/collections/%s/points?wait=true", s.baseURL, collection)
	return s.putJSON(ctx, url, body)
}

// EnsureCollection creates the collection with cosine distance if missing.
// Qdrant answers 200 when the collection already exists with the same schema.
func (s *Store) EnsureCollection(ctx context.Context, collection string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid vector dimension %d", dimension)
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return s.putJSON(ctx, fmt.Sprintf("%s/collections/%s", s.baseURL, collection), body)
}

func (s *Store) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/collections", s.baseURL), nil)
	if err != nil {
		return err
	}
	s.setHeaders(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: qdrant ping returned %s", storage.ErrUnavailable, resp.Status)
	}
	return nil
}

type rawPoint struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload storage.Record `json:"payload"`
}

// searchResponse tolerates both historical result shapes: a bare list
// (points/search) and an object with a points array (points/query).
type searchResponse struct {
	Result json.RawMessage `json:"result"`
}

func (r searchResponse) points() []rawPoint {
	var list []rawPoint
	if err := json.Unmarshal(r.Result, &list); err == nil {
		return list
	}
	var wrapped struct {
		Points []rawPoint `json:"points"`
	}
	if err := json.Unmarshal(r.Result, &wrapped); err == nil {
		return wrapped.Points
	}
	return nil
}

// scrollPage holds one page of scroll output. Deployments disagree on which
// key carries the continuation cursor, so all three spellings are read.
type scrollPage struct {
	Points         []rawPoint `json:"points"`
	NextPage       any        `json:"next_page"`
	NextPageOffset any        `json:"next_page_offset"`
	Offset         any        `json:"offset"`
}

// scrollResponse tolerates the same shape drift as searchResponse: the page
// may arrive wrapped in a result object, as a bare result list, or with the
// points and cursor at the top level.
type scrollResponse struct {
	Result json.RawMessage `json:"result"`
	scrollPage
}

func (r scrollResponse) page() ([]rawPoint, any) {
	points := r.Points
	next := firstCursor(r.NextPage, r.NextPageOffset, r.Offset)

	if len(r.Result) > 0 && string(r.Result) != "null" {
		var wrapped scrollPage
		if err := json.Unmarshal(r.Result, &wrapped); err == nil {
			if wrapped.Points != nil {
				points = wrapped.Points
			}
			if c := firstCursor(wrapped.NextPage, wrapped.NextPageOffset, wrapped.Offset); c != nil {
				next = c
			}
		} else {
			var list []rawPoint
			if json.Unmarshal(r.Result, &list) == nil {
				points = list
			}
		}
	}
	return points, next
}

func firstCursor(candidates ...any) any {
	for _, c := range candidates {
		if c != nil {
			return c
		}
	}
	return nil
}

func encodeFilter(f storage.Filter) map[string]any {
	must := make([]map[string]any, 0, len(f.Ranges)+len(f.Matches))
	for _, r := range f.Ranges {
		rng := map[string]any{}
		if r.GTE != "" {
			rng["gte"] = r.GTE
		}
		if r.LTE != "" {
			rng["lte"] = r.LTE
		}
		must = append(must, map[string]any{"key": r.Key, "range": rng})
	}
	for _, m := range f.Matches {
		must = append(must, map[string]any{"key": m.Key, "match": map[string]any{"value": m.Value}})
	}
	return map[string]any{"must": must}
}

func encodePoints(points []storage.Point) []map[string]any {
	out := make([]map[string]any, len(points))
	for i, p := range points {
		out[i] = map[string]any{
			"id":      p.ID,
			"vector":  p.Vector,
			"payload": p.Payload,
		}
	}
	return out
}

func (s *Store) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
}

func (s *Store) postJSON(ctx context.Context, url string, body any, out any) error {
	return s.doJSON(ctx, http.MethodPost, url, body, out)
}

func (s *Store) putJSON(ctx context.Context, url string, body any) error {
	return s.doJSON(ctx, http.MethodPut, url, body, nil)
}

func (s *Store) doJSON(ctx context.Context, method, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: qdrant %s %s returned %s", storage.ErrUnavailable, method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
