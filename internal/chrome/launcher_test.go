package chrome

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFetchWSEndpoint_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/json/version", r.URL.Path)
		_ = json.NewEncoder(w).Encode(versionInfo{WebSocketDebuggerURL: "ws://127.0.0.1:9223/devtools/browser/abc"})
	}))
	defer srv.Close()

	endpoint, err := fetchWSEndpoint(srv.URL, 1, 0)
	require.NoError(t, err)
	require.Equal(t, "ws://127.0.0.1:9223/devtools/browser/abc", endpoint)
}

func TestFetchWSEndpoint_EmptyFieldRetriesThenFails(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(versionInfo{})
	}))
	defer srv.Close()

	_, err := fetchWSEndpoint(srv.URL, 3, time.Millisecond)
	require.Error(t, err)
	require.Equal(t, 3, calls)
}

func TestFetchWSEndpoint_RecoversAfterInitialFailure(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			_ = json.NewEncoder(w).Encode(versionInfo{})
			return
		}
		_ = json.NewEncoder(w).Encode(versionInfo{WebSocketDebuggerURL: "ws://127.0.0.1:9223/devtools/browser/xyz"})
	}))
	defer srv.Close()

	endpoint, err := fetchWSEndpoint(srv.URL, 5, time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, "ws://127.0.0.1:9223/devtools/browser/xyz", endpoint)
}

func TestBuildAllocatorOptions_ReturnsOptions(t *testing.T) {
	opts := buildAllocatorOptions(LaunchConfig{DebugPort: 9223, Headless: true, NoSandbox: true})
	require.NotEmpty(t, opts)
}
