package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cookify/internal/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "metrics.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db.SQL)
}

func TestDailyUsage(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.RecordCall("/recipes/search", "GET", 200, 120*time.Millisecond))
	require.NoError(t, s.RecordCall("/recipes/search", "GET", 401, 80*time.Millisecond))
	require.NoError(t, s.RecordCall("/chat", "POST", 0, 40*time.Millisecond))
	require.NoError(t, s.Record(CallMetric{
		Endpoint: "/users", Method: "GET", Status: 200, LatencyMS: 10,
		Timestamp: time.Now().AddDate(0, 0, -3),
	}))

	usage, err := s.GetDailyUsage(1)
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, time.Now().UTC().Format("2006-01-02"), usage[0].Date)
	assert.Equal(t, 3, usage[0].Calls)
	assert.Equal(t, 2, usage[0].Failures)
	assert.Equal(t, int64(80), usage[0].AvgLatencyMS)

	usage, err = s.GetDailyUsage(7)
	require.NoError(t, err)
	assert.Len(t, usage, 2)
}

func TestEndpointUsage(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RecordCall("/chat", "POST", 200, 0))
	require.NoError(t, s.RecordCall("/chat", "POST", 502, 0))
	require.NoError(t, s.RecordCall("/users", "GET", 200, 0))

	usage, err := s.GetEndpointUsage(1)
	require.NoError(t, err)
	require.Len(t, usage, 2)
	assert.Equal(t, EndpointUsage{Endpoint: "/chat", Calls: 2, Failures: 1}, usage[0])
}

func TestCleanup(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Record(CallMetric{Endpoint: "/users", Method: "GET", Status: 200, Timestamp: time.Now().AddDate(0, 0, -40)}))
	require.NoError(t, s.Record(CallMetric{Endpoint: "/users", Method: "GET", Status: 200, Timestamp: time.Now().AddDate(0, 0, -35)}))
	require.NoError(t, s.RecordCall("/users", "GET", 200, 0))

	removed, err := s.Cleanup(30)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	usage, err := s.GetDailyUsage(60)
	require.NoError(t, err)
	require.Len(t, usage, 1)
}

func TestGetSysHealth(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), make([]byte, 2048), 0600))

	h := GetSysHealth(dir)
	assert.Equal(t, "2.0 KiB", h.DataDiskSize)
	assert.Positive(t, h.Goroutines)
	assert.NotEmpty(t, h.Alloc)
}
