package youtube

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	adapter, err := NewYouTubeClient(context.Background(), &Config{RequestsPerSecond: 1000, Concurrency: 2},
		option.WithEndpoint(srv.URL+"/"),
		option.WithAPIKey("test-key"),
	)
	require.NoError(t, err)
	c := adapter.(*Client)
	c.retryGap = 0
	return c
}

func TestClient_FetchMostPopular(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/youtube/v3/videos", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "mostPopular", q.Get("chart"))
		assert.Equal(t, "50", q.Get("maxResults"))
		region := q.Get("regionCode")
		cat := q.Get("videoCategoryId")

		w.Header().Set("Content-Type", "application/json")
		if cat == "99" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"chart not found","errors":[{"reason":"videoChartNotFound"}]}}`))
			return
		}
		_, _ = fmt.Fprintf(w, `{"items":[
			{"id":"shared","snippet":{"title":"부업 꿀팁","channelTitle":"ch","publishedAt":"2025-01-01T00:00:00Z","categoryId":"22",
			  "thumbnails":{"default":{"url":"d.jpg"},"high":{"url":"h.jpg"}}},
			 "statistics":{"viewCount":"1200000","likeCount":"5000","commentCount":"300"},
			 "contentDetails":{"duration":"PT45S"}},
			{"id":"%s-%s","snippet":{"title":"video %s %s"},"contentDetails":{"duration":"PT3M"}}
		]}`, region, cat, region, cat)
	})

	items, outcome := c.Fetch(context.Background(), 100, model.FetchParams{RegionCodes: []string{"KR"}, CategoryIDs: []string{"10", "99"}})

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	// shared once, plus KR- and KR-10
	require.Len(t, items, 3)
	assert.Equal(t, model.OutcomePartialSuccess, outcome.Kind)

	var shared model.RawItem
	for _, it := range items {
		if it.ID == "shared" {
			shared = it
		}
	}
	require.NotNil(t, shared.ViewCount)
	assert.Equal(t, int64(1_200_000), *shared.ViewCount)
	assert.Equal(t, int64(5000), *shared.LikeCount)
	assert.Equal(t, "PT45S", shared.Duration)
	assert.Equal(t, "h.jpg", shared.ThumbnailURL)
	assert.Equal(t, "KR", shared.RegionCode)
	assert.Equal(t, "https://www.youtube.com/watch?v=shared", shared.URL)
}

func TestClient_TargetCapsResult(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		cat := r.URL.Query().Get("videoCategoryId")
		_, _ = fmt.Fprintf(w, `{"items":[{"id":"a%s","snippet":{"title":"a"}},{"id":"b%s","snippet":{"title":"b"}}]}`, cat, cat)
	})

	items, outcome := c.Fetch(context.Background(), 3, model.FetchParams{RegionCodes: []string{"US"}, CategoryIDs: []string{"1", "2"}})

	assert.Len(t, items, 3)
	assert.Equal(t, model.Success(), outcome)
}

func TestClient_QuotaExceeded(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"quota","errors":[{"reason":"quotaExceeded","domain":"youtube.quota"}]}}`))
	})

	items, outcome := c.Fetch(context.Background(), 10, model.FetchParams{RegionCodes: []string{"KR"}, CategoryIDs: []string{"10"}})

	assert.Empty(t, items)
	assert.True(t, outcome.Failed())
	assert.Contains(t, outcome.Reason, model.ReasonQuotaExceeded)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"items":[{"id":"x","snippet":{"title":"t"}}]}`))
	})
	c.maxRetries = 2

	items, outcome := c.Fetch(context.Background(), 1, model.FetchParams{RegionCodes: []string{"JP"}, CategoryIDs: []string{"10"}})

	require.Len(t, items, 1)
	assert.Equal(t, model.Success(), outcome)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_NotConfigured(t *testing.T) {
	adapter, err := NewYouTubeClient(context.Background(), &Config{})
	require.NoError(t, err)

	items, outcome := adapter.Fetch(context.Background(), 10, model.FetchParams{})

	assert.Nil(t, items)
	assert.Equal(t, model.Failure(model.ReasonNotConfigured), outcome)
	assert.Equal(t, AdapterName, adapter.Name())
}

func TestClient_KeywordSearchRunsBeforeCharts(t *testing.T) {
	var searches int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/youtube/v3/search":
			atomic.AddInt32(&searches, 1)
			assert.Equal(t, "부업", q.Get("q"))
			assert.Equal(t, "video", q.Get("type"))
			assert.Equal(t, "viewCount", q.Get("order"))
			assert.Equal(t, "ko", q.Get("relevanceLanguage"))
			assert.Equal(t, "2025-01-02T00:00:00Z", q.Get("publishedAfter"))
			_, _ = w.Write([]byte(`{"items":[{"id":{"kind":"youtube#video","videoId":"s1"}},{"id":{"kind":"youtube#video","videoId":"s2"}},{"id":{"kind":"youtube#channel"}}]}`))
		case q.Get("id") != "":
			assert.Equal(t, "s1,s2", q.Get("id"))
			assert.Empty(t, q.Get("chart"))
			_, _ = w.Write([]byte(`{"items":[
				{"id":"s1","snippet":{"title":"부업 브이로그"},"statistics":{"viewCount":"900000","likeCount":"100"}},
				{"id":"s2","snippet":{"title":"재테크 루틴"},"statistics":{"viewCount":"400000"}}
			]}`))
		default:
			assert.Equal(t, "mostPopular", q.Get("chart"))
			_, _ = w.Write([]byte(`{"items":[{"id":"chart1","snippet":{"title":"chart video"}}]}`))
		}
	})
	c.now = func() time.Time { return time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC) }

	items, outcome := c.Fetch(context.Background(), 2, model.FetchParams{
		RegionCodes: []string{"KR"},
		CategoryIDs: []string{"10"},
		Keywords:    []string{"부업", "  "},
	})

	assert.Equal(t, model.Success(), outcome)
	assert.Equal(t, int32(1), atomic.LoadInt32(&searches))
	require.Len(t, items, 2)
	assert.Equal(t, "s1", items[0].ID)
	assert.Equal(t, "s2", items[1].ID)
	require.NotNil(t, items[0].ViewCount)
	assert.Equal(t, int64(900_000), *items[0].ViewCount)
}

func TestClient_KeywordSearchFailureKeepsCharts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/youtube/v3/search" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"bad request","errors":[{"reason":"invalidSearchFilter"}]}}`))
			return
		}
		_, _ = w.Write([]byte(`{"items":[{"id":"chart1","snippet":{"title":"chart video"}}]}`))
	})

	items, outcome := c.Fetch(context.Background(), 1, model.FetchParams{
		RegionCodes: []string{"KR"},
		CategoryIDs: []string{"10"},
		Keywords:    []string{"side hustle"},
	})

	require.Len(t, items, 1)
	assert.Equal(t, "chart1", items[0].ID)
	assert.Equal(t, model.OutcomePartialSuccess, outcome.Kind)
}

func TestClient_Configured(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	assert.True(t, c.Configured())

	adapter, err := NewYouTubeClient(context.Background(), &Config{})
	require.NoError(t, err)
	assert.False(t, adapter.(*Client).Configured())
}

func TestClient_JobsUseConfiguredKeywordsUnlessOverridden(t *testing.T) {
	c := &Client{regions: []string{"KR"}, categories: []string{"10"}, keywords: []string{"재테크"}}

	jobs := c.jobs(model.FetchParams{})
	assert.Equal(t, []chartJob{{keyword: "재테크"}, {region: "KR"}, {region: "KR", category: "10"}}, jobs)

	jobs = c.jobs(model.FetchParams{Keywords: []string{"cooking"}})
	assert.Equal(t, chartJob{keyword: "cooking"}, jobs[0])
	assert.Len(t, jobs, 3)
}
