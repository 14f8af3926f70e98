package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/browserstudio/internal/auth"
	"github.com/user/browserstudio/internal/config"
	"github.com/user/browserstudio/internal/recording"
	"github.com/user/browserstudio/internal/registry"
)

func newTestServer(t *testing.T, authMgr *auth.Manager) *Server {
	t.Helper()
	cfg := &config.Config{Server: config.ServerConfig{Host: "127.0.0.1", Port: 9222, Timeout: 30}}
	reg := registry.New(context.Background(), zap.NewNop(), nil, nil)
	rec := recording.New(zap.NewNop(), t.TempDir(), recording.NewFfmpegEncoder())
	return New(cfg, zap.NewNop(), reg, rec, authMgr, "ws://127.0.0.1:9223/devtools/browser/abc")
}

func TestHealthHandler(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "healthy", body.Status)
}

func TestWSEndpointHandler(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body wsEndpointResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ws://127.0.0.1:9223/devtools/browser/abc", body.WSEndpoint)
}

func TestListPages_Empty(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/pages", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Empty(t, body.Pages)
}

func TestCreatePage_EmptyNameRejected(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/pages", strings.NewReader(`{"name":""}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreatePage_InvalidJSONRejected(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/pages", strings.NewReader(`not json`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemovePage_NotFound(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodDelete, "/pages/missing", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConsoleLogs_NotFound(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/pages/missing/console", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecordingStatus_NotFound(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/pages/missing/recording/status", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecordingStop_NotFound(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/pages/missing/recording/stop", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVideo_NotFound(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/pages/missing/video", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMutatingRoutes_RequireAuthWhenEnabled(t *testing.T) {
	mgr, err := auth.NewManager("a-test-secret-at-least-32-bytes!", zap.NewNop())
	require.NoError(t, err)
	srv := newTestServer(t, mgr)

	req := httptest.NewRequest(http.MethodPost, "/pages", strings.NewReader(`{"name":"p1"}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReadRoutes_DoNotRequireAuthWhenEnabled(t *testing.T) {
	mgr, err := auth.NewManager("a-test-secret-at-least-32-bytes!", zap.NewNop())
	require.NoError(t, err)
	srv := newTestServer(t, mgr)

	req := httptest.NewRequest(http.MethodGet, "/pages", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
