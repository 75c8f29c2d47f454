package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/booksync/internal/models"
	"github.com/iudanet/booksync/internal/syncerr"
	"github.com/iudanet/booksync/pkg/api"
)

// TestNewClient проверяет создание нового клиента
func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080/", WithAccessToken("tok"), WithClientVersion("1.2.3"))

	assert.NotNil(t, client)
	assert.Equal(t, "http://localhost:8080", client.baseURL)
	assert.Equal(t, "tok", client.accessToken)
	assert.Equal(t, "1.2.3", client.version)
	assert.Equal(t, DefaultTimeout, client.httpClient.Timeout)

	hc := &http.Client{Timeout: time.Second}
	client = NewClient("http://x", WithHTTPClient(hc))
	assert.Same(t, hc, client.httpClient)
}

// TestClient_Upload проверяет успешную загрузку пакета
func TestClient_Upload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/sync/upload", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var req api.UploadRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tenant-1", req.TenantID)
		assert.Equal(t, "p-1", req.Package.PackageID)
		assert.Equal(t, "0.9.0", req.ClientVersion)

		_ = json.NewEncoder(w).Encode(models.UploadResult{
			PackageID:  "p-1",
			Processed:  1,
			Successful: 1,
			Success:    true,
			Outcomes: []models.EntityOutcome{
				{EntityType: models.EntityTypeAccount, LocalID: "a-1", RemoteID: "r-1", Status: models.StatusSuccess},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, WithAccessToken("tok"), WithClientVersion("0.9.0"))
	resp, err := client.Upload(context.Background(), api.UploadRequest{
		TenantID: "tenant-1",
		Package:  &models.SyncPackage{PackageID: "p-1", TenantID: "tenant-1"},
	})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	require.Len(t, resp.Outcomes, 1)
	assert.Equal(t, "r-1", resp.Outcomes[0].RemoteID)
}

// TestClient_ErrorMapping проверяет классификацию ошибок сервера
func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		check        func(t *testing.T, err error)
		responseBody any
		name         string
		statusCode   int
	}{
		{
			name:         "rejected package",
			statusCode:   http.StatusBadRequest,
			responseBody: models.UploadResult{Errors: []models.SyncError{{Kind: models.ErrorKindValidation, Message: "checksum mismatch"}}},
			check: func(t *testing.T, err error) {
				var ve *syncerr.ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, []string{"checksum mismatch"}, ve.Reasons)
			},
		},
		{
			name:         "unauthorized",
			statusCode:   http.StatusUnauthorized,
			responseBody: api.ErrorResponse{Error: "invalid token"},
			check: func(t *testing.T, err error) {
				assert.True(t, syncerr.IsAuthorization(err))
				assert.Contains(t, err.Error(), "invalid token")
			},
		},
		{
			name:         "forbidden",
			statusCode:   http.StatusForbidden,
			responseBody: api.ErrorResponse{Error: "tenant does not match token"},
			check: func(t *testing.T, err error) {
				assert.True(t, syncerr.IsAuthorization(err))
			},
		},
		{
			name:         "server error",
			statusCode:   http.StatusInternalServerError,
			responseBody: api.ErrorResponse{Error: "upload failed"},
			check: func(t *testing.T, err error) {
				var te *syncerr.TransportError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, http.StatusInternalServerError, te.StatusCode)
			},
		},
		{
			name:         "rate limited",
			statusCode:   http.StatusTooManyRequests,
			responseBody: api.ErrorResponse{Error: "rate limit exceeded"},
			check: func(t *testing.T, err error) {
				assert.True(t, syncerr.IsTransport(err))
			},
		},
		{
			name:         "conflict already resolved",
			statusCode:   http.StatusConflict,
			responseBody: api.ErrorResponse{Error: "conflict already resolved"},
			check: func(t *testing.T, err error) {
				assert.True(t, IsStatus(err, http.StatusConflict))
				assert.False(t, syncerr.IsTransport(err))
			},
		},
		{
			name:         "plain text body",
			statusCode:   http.StatusNotFound,
			responseBody: "404 page not found",
			check: func(t *testing.T, err error) {
				assert.True(t, IsStatus(err, http.StatusNotFound))
				assert.Contains(t, err.Error(), "404 page not found")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				if s, ok := tt.responseBody.(string); ok {
					_, _ = w.Write([]byte(s))
					return
				}
				_ = json.NewEncoder(w).Encode(tt.responseBody)
			}))
			defer server.Close()

			client := NewClient(server.URL)
			_, err := client.Upload(context.Background(), api.UploadRequest{TenantID: "tenant-1"})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestClient_NetworkErrorIsTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	client := NewClient(addr)
	_, err := client.Download(context.Background(), api.DownloadRequest{TenantID: "tenant-1"})
	require.Error(t, err)
	assert.True(t, syncerr.IsTransport(err))
}

func TestClient_CancelledContextIsNotTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(server.URL).Status(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, syncerr.IsTransport(err))
}

func TestClient_DownloadAndConflicts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sync/download", func(w http.ResponseWriter, r *http.Request) {
		var req api.DownloadRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "c-1", req.SinceCursor)
		assert.Equal(t, 50, req.MaxEntities)
		_ = json.NewEncoder(w).Encode(api.DownloadResponse{
			Package:    &models.SyncPackage{PackageID: "d-1"},
			NextCursor: "c-2",
			HasMore:    true,
		})
	})
	mux.HandleFunc("/sync/conflicts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Invoice", r.URL.Query().Get("entity_type"))
		_ = json.NewEncoder(w).Encode(api.ConflictsResponse{
			Conflicts: []*models.ConflictRecord{{ConflictID: "cf-1", EntityType: "Invoice"}},
			Total:     1,
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(server.URL)
	ctx := context.Background()

	page, err := client.Download(ctx, api.DownloadRequest{TenantID: "tenant-1", SinceCursor: "c-1", MaxEntities: 50})
	require.NoError(t, err)
	assert.Equal(t, "c-2", page.NextCursor)
	assert.True(t, page.HasMore)

	conflicts, err := client.Conflicts(ctx, "Invoice")
	require.NoError(t, err)
	require.Equal(t, 1, conflicts.Total)
	assert.Equal(t, "cf-1", conflicts.Conflicts[0].ConflictID)
}

func TestClient_ResolveBatchHistoryStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sync/conflicts/resolve", func(w http.ResponseWriter, r *http.Request) {
		var req api.ResolveRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, models.StrategyRemoteWins, req.Strategy)
		_ = json.NewEncoder(w).Encode(api.ResolveResponse{
			Conflict: &models.ConflictRecord{ConflictID: req.ConflictID, Status: models.ConflictResolved},
		})
	})
	mux.HandleFunc("/sync/batch", func(w http.ResponseWriter, r *http.Request) {
		var req api.BatchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(api.BatchResponse{TotalPackages: len(req.Packages), Success: true})
	})
	mux.HandleFunc("/sync/history", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(api.HistoryResponse{Total: 3, Page: 1, PageSize: 2})
	})
	mux.HandleFunc("/sync/status", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(api.StatusResponse{TenantID: "tenant-1", PendingConflicts: 2})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(server.URL)
	ctx := context.Background()

	resolved, err := client.Resolve(ctx, api.ResolveRequest{ConflictID: "cf-1", TenantID: "tenant-1", Strategy: models.StrategyRemoteWins})
	require.NoError(t, err)
	assert.Equal(t, models.ConflictResolved, resolved.Conflict.Status)

	batch, err := client.Batch(ctx, api.BatchRequest{TenantID: "tenant-1", Packages: []*models.SyncPackage{{}, {}}})
	require.NoError(t, err)
	assert.Equal(t, 2, batch.TotalPackages)

	history, err := client.History(ctx, api.HistoryRequest{TenantID: "tenant-1", Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, history.Total)

	status, err := client.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.PendingConflicts)
}

func TestClient_HealthDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sync/health", r.URL.Path)
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(api.HealthResponse{Status: "down", StoreUp: false})
	}))
	defer server.Close()

	resp, err := NewClient(server.URL).Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "down", resp.Status)
	assert.False(t, resp.StoreUp)
}
