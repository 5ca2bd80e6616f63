package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tallyhq/tally/pkg/types"
)

// DefaultTimeout bounds every remote call. A call that never resolves counts
// as a network failure, not a hung replay.
const DefaultTimeout = 10 * time.Second

// HTTPStore talks to the remote record store over JSON/HTTP.
//
//	POST   {base}/{collection}         -> 201 {"id": "...", "payload": {...}}
//	PUT    {base}/{collection}/{id}    -> 204
//	DELETE {base}/{collection}/{id}    -> 204
//	GET    {base}/{collection}?k=v     -> 200 [{...}, ...]
type HTTPStore struct {
	baseURL string
	client  *http.Client
}

// NewHTTPStore creates a client for the given base URL. A non-positive
// timeout falls back to DefaultTimeout.
func NewHTTPStore(baseURL string, timeout time.Duration) *HTTPStore {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPStore{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Check reports whether the remote store answers at all. Any HTTP response
// counts as reachable; only transport failures do not.
func (s *HTTPStore) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.baseURL, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: probe %s: %v", types.ErrNetwork, s.baseURL, err)
	}
	resp.Body.Close()
	return nil
}

type createResponse struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

func (s *HTTPStore) Create(ctx context.Context, collection types.EntityType, payload []byte) (types.CanonicalID, []byte, error) {
	body, err := s.do(ctx, http.MethodPost, s.collectionURL(collection, ""), payload)
	if err != nil {
		return "", nil, err
	}

	var resp createResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", nil, fmt.Errorf("%w: decode create response: %v", types.ErrNetwork, err)
	}
	if resp.ID == "" {
		return "", nil, fmt.Errorf("%w: create response missing id", types.ErrValidation)
	}
	return types.CanonicalID(resp.ID), resp.Payload, nil
}

func (s *HTTPStore) Update(ctx context.Context, collection types.EntityType, id types.CanonicalID, payload []byte) error {
	_, err := s.do(ctx, http.MethodPut, s.collectionURL(collection, id.String()), payload)
	return err
}

func (s *HTTPStore) Delete(ctx context.Context, collection types.EntityType, id types.CanonicalID) error {
	_, err := s.do(ctx, http.MethodDelete, s.collectionURL(collection, id.String()), nil)
	return err
}

func (s *HTTPStore) Query(ctx context.Context, collection types.EntityType, filters map[string]string) ([][]byte, error) {
	u := s.collectionURL(collection, "")
	if len(filters) > 0 {
		q := url.Values{}
		for k, v := range filters {
			q.Set(k, v)
		}
		u += "?" + q.Encode()
	}

	body, err := s.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	var docs []json.RawMessage
	if err := json.Unmarshal(body, &docs); err != nil {
		return nil, fmt.Errorf("%w: decode query response: %v", types.ErrNetwork, err)
	}
	out := make([][]byte, len(docs))
	for i, d := range docs {
		out[i] = []byte(d)
	}
	return out, nil
}

func (s *HTTPStore) collectionURL(collection types.EntityType, id string) string {
	u := fmt.Sprintf("%s/%s", s.baseURL, collection)
	if id != "" {
		u += "/" + id
	}
	return u
}

// do executes a request and classifies the outcome: transport errors and 5xx
// responses are network failures, 4xx responses are validation failures.
func (s *HTTPStore) do(ctx context.Context, method, u string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", types.ErrNetwork, method, u, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", types.ErrNetwork, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s %s: %w", method, u, types.ErrNotFound)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, fmt.Errorf("%w: %s %s: status %d: %s", types.ErrValidation, method, u, resp.StatusCode, body)
	default:
		return nil, fmt.Errorf("%w: %s %s: status %d", types.ErrNetwork, method, u, resp.StatusCode)
	}
}
