package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SupabaseStore talks to the Supabase Storage REST API with the project's
// service-role key.
type SupabaseStore struct {
	baseURL    string
	serviceKey string
	bucket     string
	httpClient *http.Client
}

// APIError is a non-2xx response from the storage API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("storage API returned %d: %s", e.StatusCode, e.Message)
}

// NewSupabaseStore creates a SupabaseStore for the given project URL and bucket.
func NewSupabaseStore(projectURL, serviceKey, bucket string) *SupabaseStore {
	return &SupabaseStore{
		baseURL:    strings.TrimRight(projectURL, "/") + "/storage/v1",
		serviceKey: serviceKey,
		bucket:     bucket,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Put uploads data under key. Existing objects are never overwritten.
func (s *SupabaseStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	endpoint := fmt.Sprintf("%s/object/%s/%s", s.baseURL, url.PathEscape(s.bucket), escapeKey(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create storage request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeOrDefault(contentType))
	req.Header.Set("x-upsert", "false")

	if err := s.do(req, nil); err != nil {
		return fmt.Errorf("supabase put %s: %w", key, err)
	}
	return nil
}

// Delete removes the object at key. The API answers 200 with an empty list
// when nothing matched, which is reported as ErrNotFound.
func (s *SupabaseStore) Delete(ctx context.Context, key string) error {
	payload, err := json.Marshal(map[string][]string{"prefixes": {key}})
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/object/%s", s.baseURL, url.PathEscape(s.bucket))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create storage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var removed []json.RawMessage
	if err := s.do(req, &removed); err != nil {
		return fmt.Errorf("supabase delete %s: %w", key, err)
	}
	if len(removed) == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SupabaseStore) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("apikey", s.serviceKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(body, resp.Status)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode storage response: %w", err)
	}
	return nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func errorMessage(body []byte, fallback string) string {
	var e struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Error != "" {
			return e.Error
		}
	}
	return fallback
}
