package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/model"
)

func TestRefreshMetrics_Observe(t *testing.T) {
	m := NewRefreshMetrics()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	m.ObserveRun(model.RefreshRun{Trigger: model.TriggerSchedule, Result: model.RefreshCompleted, StartedAt: start, FinishedAt: start.Add(3 * time.Second), DuplicateCount: 4, DroppedCount: 1})
	m.ObserveRun(model.RefreshRun{Trigger: model.TriggerSchedule, Result: model.RefreshCompleted, StartedAt: start, FinishedAt: start.Add(time.Second)})
	m.ObserveAdapter("youtube_api", model.Failure(model.ReasonQuotaExceeded), 200*time.Millisecond)
	m.ObserveSnapshot(model.NewCacheSnapshot(make([]model.VideoRecord, 7), start, "youtube_api"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.runs.WithLabelValues("schedule", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.adapterFetches.WithLabelValues("youtube_api", "failure")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.duplicates))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.records))
	assert.Equal(t, float64(start.Unix()), testutil.ToFloat64(m.lastUpdated))
}

func TestRefreshMetrics_Handler(t *testing.T) {
	m := NewRefreshMetrics()
	m.ObserveSnapshot(model.NewCacheSnapshot(make([]model.VideoRecord, 3), time.Now(), "x"))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "shorts_planner_snapshot_records 3")
	assert.Contains(t, string(body), "go_goroutines")
}
