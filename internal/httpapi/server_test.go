package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sastik/logserver/internal/aggregate"
	"github.com/sastik/logserver/internal/broadcast"
	"github.com/sastik/logserver/internal/coldstore"
	"github.com/sastik/logserver/internal/hotstore"
	"github.com/sastik/logserver/internal/query"
	"github.com/sastik/logserver/internal/record"
)

func newTestServer(t *testing.T) (*Server, *coldstore.Store, *hotstore.Store) {
	t.Helper()
	cold, err := coldstore.Open("file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { cold.Close() })

	hot := hotstore.New(time.Hour, 0)
	qr := query.New(hot, cold, 48*time.Hour, false, nil)
	agg := aggregate.New(hot, cold)
	bcast := broadcast.New(nil)

	health := map[string]HealthChecker{
		"database": func(ctx context.Context) bool { return cold.Ping(ctx) == nil },
	}
	s := New(Config{}, qr, agg, cold, hot, bcast, health, func() time.Time { return time.Now().Add(-48 * time.Hour) }, nil)
	return s, cold, hot
}

func TestHandleLogByIDNotFound(t *testing.T) {
	s, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/logs/does-not-exist", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleLogByIDFoundInCold(t *testing.T) {
	s, cold, _ := newTestServer(t)
	ts := time.Now().UTC()
	rec := record.Record{CorrelationID: "11111111-1111-1111-1111-111111111111", Timestamp: ts, APIName: "a", ServiceName: "b", LogLevel: record.LevelInfo, IngestedAt: ts}
	require.NoError(t, cold.UpsertBatch(context.Background(), []record.Record{rec}))

	req := httptest.NewRequest(http.MethodGet, "/logs/"+rec.CorrelationID, nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
}

func TestHandleLogsQueryBadLimit(t *testing.T) {
	s, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/logs?limit=notanumber", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleHealth(t *testing.T) {
	s, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	data := env.Data.(map[string]interface{})
	assert.Equal(t, "healthy", data["status"])
}

func TestHandleMetrics(t *testing.T) {
	s, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "# HELP")
}

func TestHandleOverview(t *testing.T) {
	s, cold, _ := newTestServer(t)
	ts := time.Now().Add(-time.Hour).UTC()
	require.NoError(t, cold.UpsertBatch(context.Background(), []record.Record{
		{CorrelationID: "1", Timestamp: ts, APIName: "a", ServiceName: "b", LogLevel: record.LevelInfo, HasError: record.HasErrorFalse, IngestedAt: ts},
	}))

	req := httptest.NewRequest(http.MethodGet, "/analytics/overview?start_date="+ts.Add(-time.Hour).Format(time.RFC3339)+"&end_date="+time.Now().Format(time.RFC3339), nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}
