package statusapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kardelitaitu/testnet-spammer/internal/metricsink"
)

func testRow() metricsink.Row {
	return metricsink.Row{ID: "r1", WalletAddress: "0xabc", TaskName: "t", Status: metricsink.StatusSuccess, Timestamp: time.Now()}
}

type fakeStats struct {
	healthy, locked, depth int
	dropped                uint64
}

func (f fakeStats) HealthyProxyCount() int  { return f.healthy }
func (f fakeStats) LockedLeaseCount() int   { return f.locked }
func (f fakeStats) MetricsQueueDepth() int  { return f.depth }
func (f fakeStats) MetricsDropped() uint64  { return f.dropped }

func TestServer_Healthz(t *testing.T) {
	s := New(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestServer_Stats(t *testing.T) {
	s := New(fakeStats{healthy: 3, locked: 1, depth: 7, dropped: 2}, nil)
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp statsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.HealthyProxies)
	assert.Equal(t, 1, resp.LockedLeases)
	assert.Equal(t, 7, resp.QueueDepth)
	assert.Equal(t, uint64(2), resp.Dropped)
}

func TestServer_StatsWithNilProvider(t *testing.T) {
	s := New(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_MetricsEndpointServesPrometheusFormat(t *testing.T) {
	s := New(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_BroadcastWithNoClientsDoesNotPanic(t *testing.T) {
	s := New(nil, nil)
	assert.NotPanics(t, func() {
		s.Broadcast(testRow())
	})
}
