package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaphLorr/vacation-dashboard-gemini/internal/activeindex"
	"github.com/RaphLorr/vacation-dashboard-gemini/internal/config"
	"github.com/RaphLorr/vacation-dashboard-gemini/internal/engine"
	"github.com/RaphLorr/vacation-dashboard-gemini/internal/store"
	"github.com/RaphLorr/vacation-dashboard-gemini/internal/synccursor"
	"github.com/RaphLorr/vacation-dashboard-gemini/internal/wecom"
)

type noopCallback struct{}

func (noopCallback) ServeVerify(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }
func (noopCallback) ServeEvent(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("success"))
}

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		SyncInterval:        "@every 1h",
		StatusCheckInterval: "@every 1h",
	}
	leaveStore, err := store.Open(filepath.Join(dir, "leave.json"))
	require.NoError(t, err)
	activeStore, err := activeindex.Open(filepath.Join(dir, "active.json"), 0)
	require.NoError(t, err)
	cursorStore, err := synccursor.Open(filepath.Join(dir, "cursor.json"), 0)
	require.NoError(t, err)
	client := wecom.New("http://localhost:0", "corp", "secret", nil, zerolog.Nop())

	e, err := engine.New(cfg, zerolog.Nop(), client, leaveStore, activeStore, cursorStore)
	require.NoError(t, err)
	return e
}

func TestRouter_HealthzAndControlStatus(t *testing.T) {
	eng := newTestEngine(t)
	r := NewRouter(eng, noopCallback{}, zerolog.Nop())
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp2, err := http.Get(srv.URL + "/control/status")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)

	var status map[string]any
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&status))
	assert.Contains(t, status, "lockHeld")
}

func TestRouter_CallbackRoutesDelegateToHandler(t *testing.T) {
	eng := newTestEngine(t)
	r := NewRouter(eng, noopCallback{}, zerolog.Nop())
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/callback", "application/octet-stream", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_CursorResetSucceeds(t *testing.T) {
	eng := newTestEngine(t)
	r := NewRouter(eng, noopCallback{}, zerolog.Nop())
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/control/cursor/reset", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
