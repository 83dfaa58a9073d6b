package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/makkenzo/key-service-api/internal/handler/dto"
)

const DefaultServer = "http://localhost:8000"

// APIError is a non-2xx answer from the key service.
type APIError struct {
	StatusCode int
	Body       dto.APIErrorResponse
}

func (e *APIError) Error() string {
	if e.Body.Message != "" {
		return fmt.Sprintf("server returned %d %s: %s", e.StatusCode, e.Body.Code, e.Body.Message)
	}
	return fmt.Sprintf("server returned %d", e.StatusCode)
}

// IsStatus reports whether err is an APIError carrying the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

type Client struct {
	client     *retryablehttp.Client
	once       *retryablehttp.Client
	baseURL    *url.URL
	adminToken string
}

type Option func(*Client)

func WithAdminToken(token string) Option {
	return func(c *Client) { c.adminToken = token }
}

func WithRetryMax(n int) Option {
	return func(c *Client) { c.client.RetryMax = n }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client.HTTPClient = hc }
}

// New returns a client for the key service at server. An empty server means
// DefaultServer.
func New(server string, opts ...Option) (*Client, error) {
	if server == "" {
		server = DefaultServer
	}
	u, err := url.Parse(strings.TrimRight(server, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server address %q: %w", server, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server address %q: scheme must be http or https", server)
	}

	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 1500 * time.Millisecond
	rc.RetryMax = 3
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = nil

	c := &Client{client: rc, baseURL: u}
	for _, opt := range opts {
		opt(c)
	}

	// POST creates a key or consumes a use, so it is sent at most once.
	once := retryablehttp.NewClient()
	once.HTTPClient = rc.HTTPClient
	once.RetryMax = 0
	once.ErrorHandler = retryablehttp.PassthroughErrorHandler
	once.Logger = nil
	c.once = once

	return c, nil
}

func (c *Client) CreateKey(ctx context.Context, req *dto.CreateKeyRequest) (*dto.CreateKeyResponse, error) {
	var out dto.CreateKeyResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/keys", req, true, http.StatusCreated, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ValidateKey(ctx context.Context, token string) (*dto.ValidateKeyResponse, error) {
	var out dto.ValidateKeyResponse
	body := dto.ValidateKeyRequest{Key: token}
	if err := c.do(ctx, http.MethodPost, "/api/v1/keys/validate", body, false, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetKey(ctx context.Context, token string) (*dto.KeyResponse, error) {
	var out dto.KeyResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/keys/"+url.PathEscape(token), nil, false, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RevokeKey(ctx context.Context, token string) (*dto.RevokeKeyResponse, error) {
	var out dto.RevokeKeyResponse
	if err := c.do(ctx, http.MethodDelete, "/api/v1/keys/"+url.PathEscape(token), nil, true, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListKeys(ctx context.Context) ([]dto.KeyResponse, error) {
	var out []dto.KeyResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/keys", nil, true, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Stats(ctx context.Context) (*dto.StatsResponse, error) {
	var out dto.StatsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/stats", nil, true, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health returns the decoded /healthz body. A 503 is returned as an APIError
// alongside the body.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	out := map[string]any{}
	err := c.do(ctx, http.MethodGet, "/healthz", nil, false, http.StatusOK, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body any, admin bool, want int, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error marshaling body: %w", err)
		}
		payload = b
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL.String()+path, payload)
	if err != nil {
		return fmt.Errorf("error building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin && c.adminToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.adminToken)
	}

	rc := c.client
	if method == http.MethodPost {
		rc = c.once
	}
	resp, err := rc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != want {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(raw, &apiErr.Body)
		if out != nil && len(raw) > 0 {
			_ = json.Unmarshal(raw, out)
		}
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}
