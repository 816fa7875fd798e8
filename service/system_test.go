package service

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(http.MethodGet, "/health", nil, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, HealthResp{Status: "ok", Service: "site-test", Version: "test"}, decode[HealthResp](t, w))

	sqlDB, err := e.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	w = e.do(http.MethodGet, "/health", nil, "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "unavailable", decode[HealthResp](t, w).Status)
}

func TestTables(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(http.MethodGet, "/tables", nil, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Tables []string `json:"tables"`
	}](t, w)
	assert.Contains(t, body.Tables, "project")
	assert.Contains(t, body.Tables, "users")

	cfg := testConfig()
	cfg.Server.DebugRoutes = false
	e = newTestEnvWith(t, cfg, nil)
	w = e.do(http.MethodGet, "/tables", nil, "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestEnv(t)
	e.do(http.MethodGet, "/health", nil, "", "")

	w := e.do(http.MethodGet, "/metrics", nil, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "site_http_request_duration_seconds")
}
