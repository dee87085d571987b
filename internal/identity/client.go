// Package identity forwards signup, login and logout to the Supabase auth
// (GoTrue) REST API.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kiranshivaraju/ednaflow/pkg/models"
)

// ErrNotConfigured is returned when the project URL or anon key is missing.
var ErrNotConfigured = errors.New("identity provider not configured")

// APIError is an error reported by the identity provider.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsClientError reports whether the provider rejected the request itself
// (bad credentials, weak password, unknown token) rather than failing.
func (e *APIError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// Client talks to the hosted identity provider's REST API.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
}

// NewClient constructs a client for the given Supabase project URL.
func NewClient(projectURL, anonKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(projectURL, "/"),
		anonKey:    anonKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// SignUp registers a user and returns the provider's user object. When the
// project auto-confirms email the provider answers with a full session; only
// its user is returned.
func (c *Client) SignUp(ctx context.Context, email, password string) (json.RawMessage, error) {
	payload := map[string]string{"email": email, "password": password}
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodPost, "/auth/v1/signup", "", payload, &raw); err != nil {
		return nil, err
	}

	var withSession struct {
		AccessToken string          `json:"access_token"`
		User        json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(raw, &withSession); err == nil && withSession.AccessToken != "" && len(withSession.User) > 0 {
		return withSession.User, nil
	}
	return raw, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*models.Session, error) {
	payload := map[string]string{"email": email, "password": password}
	var session models.Session
	if err := c.doJSON(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", payload, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Logout revokes every session belonging to the token's user.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.doJSON(ctx, http.MethodPost, "/auth/v1/logout?scope=global", accessToken, nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, payload any, out any) error {
	if c.baseURL == "" || c.anonKey == "" {
		return ErrNotConfigured
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("identity request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding identity response: %w", err)
	}
	return nil
}

// decodeAPIError reads the several error shapes GoTrue has used over time.
func decodeAPIError(resp *http.Response) error {
	var errResp struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
		Error            string `json:"error"`
		ErrorCode        string `json:"error_code"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 8192)).Decode(&errResp)

	msg := firstNonEmpty(errResp.Msg, errResp.ErrorDescription, errResp.Message, errResp.Error, resp.Status)
	code := firstNonEmpty(errResp.ErrorCode, errResp.Error)
	return &APIError{StatusCode: resp.StatusCode, Message: msg, Code: code}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
