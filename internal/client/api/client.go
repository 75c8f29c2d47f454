// Package api is the HTTP client of the sync server.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iudanet/booksync/internal/syncerr"
	"github.com/iudanet/booksync/pkg/api"
)

// DefaultTimeout is the per-request timeout of the HTTP client.
const DefaultTimeout = 30 * time.Second

// StatusError is an error response the client should not retry.
type StatusError struct {
	Message    string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
	version     string
}

// Option configures a Client.
type Option func(*Client)

// WithAccessToken sets the bearer token sent with every request.
func WithAccessToken(token string) Option {
	return func(c *Client) {
		c.accessToken = token
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithClientVersion sets the version reported on upload.
func WithClientVersion(v string) Option {
	return func(c *Client) {
		c.version = v
	}
}

// NewClient создает новый API клиент
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Ограничиваем количество редиректов
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upload отправляет пакет изменений
func (c *Client) Upload(ctx context.Context, req api.UploadRequest) (*api.UploadResponse, error) {
	if req.ClientVersion == "" {
		req.ClientVersion = c.version
	}
	var resp api.UploadResponse
	if err := c.doRequest(ctx, http.MethodPost, "/sync/upload", req, &resp); err != nil {
		return nil, fmt.Errorf("upload request failed: %w", err)
	}
	return &resp, nil
}

// Download получает страницу изменений с сервера
func (c *Client) Download(ctx context.Context, req api.DownloadRequest) (*api.DownloadResponse, error) {
	var resp api.DownloadResponse
	if err := c.doRequest(ctx, http.MethodPost, "/sync/download", req, &resp); err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	return &resp, nil
}

// Conflicts lists pending conflicts of the caller's tenant, optionally of one entity type.
func (c *Client) Conflicts(ctx context.Context, entityType string) (*api.ConflictsResponse, error) {
	path := "/sync/conflicts"
	if entityType != "" {
		path += "?" + url.Values{"entity_type": {entityType}}.Encode()
	}
	var resp api.ConflictsResponse
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("conflicts request failed: %w", err)
	}
	return &resp, nil
}

// Resolve разрешает конфликт
func (c *Client) Resolve(ctx context.Context, req api.ResolveRequest) (*api.ResolveResponse, error) {
	var resp api.ResolveResponse
	if err := c.doRequest(ctx, http.MethodPost, "/sync/conflicts/resolve", req, &resp); err != nil {
		return nil, fmt.Errorf("resolve request failed: %w", err)
	}
	return &resp, nil
}

// Batch uploads several packages in one request.
func (c *Client) Batch(ctx context.Context, req api.BatchRequest) (*api.BatchResponse, error) {
	var resp api.BatchResponse
	if err := c.doRequest(ctx, http.MethodPost, "/sync/batch", req, &resp); err != nil {
		return nil, fmt.Errorf("batch request failed: %w", err)
	}
	return &resp, nil
}

// History returns one page of sync history.
func (c *Client) History(ctx context.Context, req api.HistoryRequest) (*api.HistoryResponse, error) {
	var resp api.HistoryResponse
	if err := c.doRequest(ctx, http.MethodPost, "/sync/history", req, &resp); err != nil {
		return nil, fmt.Errorf("history request failed: %w", err)
	}
	return &resp, nil
}

// Status returns the server-side sync summary of the caller's tenant.
func (c *Client) Status(ctx context.Context) (*api.StatusResponse, error) {
	var resp api.StatusResponse
	if err := c.doRequest(ctx, http.MethodGet, "/sync/status", nil, &resp); err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return &resp, nil
}

// Health проверяет состояние сервера. A down server answers 503 with a body, which is returned too.
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var resp api.HealthResponse
	err := c.doRequest(ctx, http.MethodGet, "/sync/health", nil, &resp)
	if err != nil {
		var te *syncerr.TransportError
		if errors.As(err, &te) && te.StatusCode == http.StatusServiceUnavailable && resp.Status != "" {
			return &resp, nil
		}
		return nil, fmt.Errorf("health request failed: %w", err)
	}
	return &resp, nil
}

// errorBody covers both ErrorResponse and a rejected UploadResult.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Errors  []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (b errorBody) reasons() []string {
	var out []string
	if b.Error != "" {
		out = append(out, b.Error)
	}
	if b.Message != "" {
		out = append(out, b.Message)
	}
	for _, e := range b.Errors {
		out = append(out, e.Message)
	}
	return out
}

// doRequest выполняет HTTP запрос
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// отмена вызывающим не транспортная ошибка
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &syncerr.TransportError{Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &syncerr.TransportError{Err: fmt.Errorf("failed to read response body: %w", err), StatusCode: resp.StatusCode}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, respBody, result)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// decodeError maps an error response onto the sync error taxonomy.
func decodeError(code int, body []byte, result any) error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	reasons := eb.reasons()
	if len(reasons) == 0 {
		reasons = []string{strings.TrimSpace(string(body))}
	}
	msg := strings.Join(reasons, "; ")

	switch {
	case code == http.StatusBadRequest:
		return syncerr.NewValidationError(reasons...)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &syncerr.AuthorizationError{Reason: msg}
	case code == http.StatusTooManyRequests || code >= 500:
		// health отдает тело и при 503
		if result != nil {
			_ = json.Unmarshal(body, result)
		}
		return &syncerr.TransportError{Err: errors.New(msg), StatusCode: code}
	default:
		return &StatusError{StatusCode: code, Message: msg}
	}
}
