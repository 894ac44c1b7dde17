package preview

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

	"git.home.luguber.info/inful/adocbuilder/internal/config"
	"git.home.luguber.info/inful/adocbuilder/internal/history"
	"git.home.luguber.info/inful/adocbuilder/internal/orchestrator"
)

func newTestServer(t *testing.T, state *buildState) *Server {
	t.Helper()
	return NewServer("127.0.0.1:0", &config.Config{}, state)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, &buildState{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestStatusEndpoint(t *testing.T) {
	state := &buildState{}
	state.record(&orchestrator.Result{
		InvocationID: "inv-1",
		Mode:         "in_process",
		Backends:     []string{"html5", "pdf"},
		Duration:     1200 * time.Millisecond,
	}, nil)

	srv := newTestServer(t, state)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Healthy)
	assert.True(t, got.HasGoodBuild)
	assert.Equal(t, 1, got.Rebuilds)
	assert.Equal(t, "in_process", got.Mode)
	assert.Equal(t, []string{"html5", "pdf"}, got.Backends)
	assert.EqualValues(t, 1200, got.DurationMS)
}

func TestStatusEndpointReportsFailure(t *testing.T) {
	state := &buildState{}
	state.record(nil, errors.New("conversion exploded"))

	srv := newTestServer(t, state)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.False(t, got.Healthy)
	assert.False(t, got.HasGoodBuild)
	assert.Contains(t, got.LastError, "conversion exploded")
}

func TestHistoryEndpoint(t *testing.T) {
	store, err := history.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Record(context.Background(), history.Invocation{
		ID:        "inv-1",
		Mode:      "in_process",
		Backends:  []string{"html5"},
		Status:    "success",
		StartedAt: time.Now(),
	}))

	srv := newTestServer(t, &buildState{}).WithHistory(store)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []history.Invocation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "inv-1", got[0].ID)
}

func TestHistoryEndpointDisabled(t *testing.T) {
	srv := newTestServer(t, &buildState{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
