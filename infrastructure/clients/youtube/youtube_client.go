package youtube

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/model"
	"github.com/Methodus-dev/methodus-shorts-planner/domain/repository"
	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/logger"
)

const (
	AdapterName     = "youtube_api"
	maxResults      = 50
	defaultRPS      = 5
	defaultRetryGap = 500 * time.Millisecond
	searchLookback  = 90 * 24 * time.Hour
	searchLanguage  = "ko"
)

var (
	defaultRegions    = []string{"KR", "US", "JP"}
	defaultCategories = []string{"10", "20", "28", "27", "24", "26", "25", "17", "23", "22"}
	videoParts        = []string{"snippet", "statistics", "contentDetails"}
)

// Client pulls the mostPopular chart and keyword searches from the YouTube Data API
type Client struct {
	service     *youtube.Service
	now         func() time.Time
	limiter     *rate.Limiter
	maxRetries  int
	retryGap    time.Duration
	concurrency int
	regions     []string
	categories  []string
	keywords    []string
}

// Config represents YouTube API configuration
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AccessToken  string
	RefreshToken string
	APIKey       string

	RegionCodes       []string
	CategoryIDs       []string
	SearchKeywords    []string
	RequestsPerSecond float64
	MaxRetries        int
	Concurrency       int
}

// NewYouTubeClient creates the API adapter. Without credentials the adapter still exists but
// every fetch reports not_configured, so failover moves on to the next source.
func NewYouTubeClient(ctx context.Context, config *Config, opts ...option.ClientOption) (repository.ISourceAdapter, error) {
	c := &Client{
		maxRetries:  config.MaxRetries,
		retryGap:    defaultRetryGap,
		now:         time.Now,
		concurrency: config.Concurrency,
		regions:     config.RegionCodes,
		categories:  config.CategoryIDs,
		keywords:    config.SearchKeywords,
	}
	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRPS
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	if c.concurrency <= 0 {
		c.concurrency = 1
	}
	if len(c.regions) == 0 {
		c.regions = defaultRegions
	}
	if len(c.categories) == 0 {
		c.categories = defaultCategories
	}

	switch {
	case len(opts) > 0:
		// explicit client options (tests, custom endpoints)
	case (config.AccessToken == "" || config.RefreshToken == "") && config.APIKey != "":
		// API key only mode (read-only), enough for public charts
		opts = append(opts, option.WithAPIKey(config.APIKey))
	case config.ClientID != "" && config.RefreshToken != "":
		oauth2Config := &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       []string{youtube.YoutubeReadonlyScope},
			Endpoint:     google.Endpoint,
		}
		token := &oauth2.Token{
			AccessToken:  config.AccessToken,
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
			Expiry:       time.Now().Add(-1 * time.Minute), // Force refresh on first use
		}
		opts = append(opts, option.WithHTTPClient(oauth2Config.Client(ctx, token)))
	default:
		logger.GetLogger().Warn("YouTube API credentials missing; API adapter disabled")
		return c, nil
	}

	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}
	c.service = service
	return c, nil
}

func (c *Client) Name() string { return AdapterName }

// Configured reports whether the client holds credentials to reach the API.
func (c *Client) Configured() bool { return c.service != nil }

// chartJob is one API listing: a keyword search when keyword is set, otherwise a chart.
type chartJob struct {
	region   string
	category string
	keyword  string
}

// Fetch runs keyword searches first, then walks the mostPopular chart per region and
// category, until target videos are collected.
func (c *Client) Fetch(ctx context.Context, target int, params model.FetchParams) ([]model.RawItem, model.FetchOutcome) {
	if c.service == nil {
		return nil, model.Failure(model.ReasonNotConfigured)
	}

	jobs := c.jobs(params)
	results := make([][]model.RawItem, len(jobs))
	errs := make([]error, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	var mu sync.Mutex
	quotaHit := false
	for i, job := range jobs {
		g.Go(func() error {
			mu.Lock()
			stop := quotaHit
			mu.Unlock()
			if stop {
				return nil
			}
			fetch := c.fetchChart
			if job.keyword != "" {
				fetch = c.searchKeyword
			}
			items, err := fetch(gctx, job)
			if err != nil {
				errs[i] = err
				if errorReason(err) == model.ReasonQuotaExceeded {
					mu.Lock()
					quotaHit = true
					mu.Unlock()
				}
				return nil
			}
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]struct{})
	var out []model.RawItem
	var firstErr error
	failed := 0
	for i := range jobs {
		if errs[i] != nil {
			failed++
			if firstErr == nil {
				firstErr = errs[i]
			}
			continue
		}
		for _, it := range results[i] {
			if _, ok := seen[it.ID]; ok {
				continue
			}
			seen[it.ID] = struct{}{}
			out = append(out, it)
		}
	}
	if target > 0 && len(out) > target {
		out = out[:target]
	}

	if len(out) == 0 && firstErr != nil {
		return nil, model.FailureFromError(errorReason(firstErr), firstErr)
	}
	outcome := model.OutcomeForCount(len(out), target)
	if failed > 0 && !outcome.Failed() {
		outcome = model.PartialSuccess(fmt.Sprintf("%d of %d charts failed: %s", failed, len(jobs), errorReason(firstErr)))
	}
	return out, outcome
}

func (c *Client) jobs(params model.FetchParams) []chartJob {
	regions := params.RegionCodes
	if len(regions) == 0 {
		regions = c.regions
	}
	categories := params.CategoryIDs
	if len(categories) == 0 {
		categories = c.categories
	}
	keywords := params.Keywords
	if len(keywords) == 0 {
		keywords = c.keywords
	}
	jobs := make([]chartJob, 0, len(keywords)+len(regions)*(len(categories)+1))
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			jobs = append(jobs, chartJob{keyword: kw})
		}
	}
	for _, r := range regions {
		jobs = append(jobs, chartJob{region: r})
		for _, cat := range categories {
			jobs = append(jobs, chartJob{region: r, category: cat})
		}
	}
	return jobs
}

func (c *Client) fetchChart(ctx context.Context, job chartJob) ([]model.RawItem, error) {
	var resp *youtube.VideoListResponse
	err := c.retry(ctx, func() error {
		call := c.service.Videos.List(videoParts).
			Chart("mostPopular").
			RegionCode(job.region).
			MaxResults(maxResults).
			Context(ctx)
		if job.category != "" {
			call = call.VideoCategoryId(job.category)
		}
		r, err := call.Do()
		resp = r
		return err
	})
	if err != nil {
		if chartUnavailable(err) {
			// not every category has a chart in every region
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list chart %s/%s: %w", job.region, job.category, err)
	}
	return convertVideos(resp.Items, job.region), nil
}

// searchKeyword finds the most viewed recent videos for a keyword, then loads their
// statistics in one videos.list call.
func (c *Client) searchKeyword(ctx context.Context, job chartJob) ([]model.RawItem, error) {
	var ids []string
	err := c.retry(ctx, func() error {
		r, err := c.service.Search.List([]string{"id"}).
			Q(job.keyword).
			Type("video").
			Order("viewCount").
			PublishedAfter(c.now().Add(-searchLookback).UTC().Format(time.RFC3339)).
			RelevanceLanguage(searchLanguage).
			MaxResults(maxResults).
			Context(ctx).
			Do()
		if err != nil {
			return err
		}
		ids = ids[:0]
		for _, item := range r.Items {
			if item != nil && item.Id != nil && item.Id.VideoId != "" {
				ids = append(ids, item.Id.VideoId)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search %q: %w", job.keyword, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var resp *youtube.VideoListResponse
	err = c.retry(ctx, func() error {
		r, err := c.service.Videos.List(videoParts).Id(strings.Join(ids, ",")).Context(ctx).Do()
		resp = r
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get video details for %q: %w", job.keyword, err)
	}
	return convertVideos(resp.Items, ""), nil
}

// retry runs op under the rate limiter with exponential backoff on transient API errors.
func (c *Client) retry(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryGap
	retries := c.maxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.Retry(func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		err := op()
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(retries)), ctx))
}

func convertVideos(videos []*youtube.Video, region string) []model.RawItem {
	items := make([]model.RawItem, 0, len(videos))
	for _, v := range videos {
		if v == nil || v.Snippet == nil {
			continue
		}
		items = append(items, convertToRawItem(v, region))
	}
	return items
}

// convertToRawItem converts a YouTube API video to the adapter-neutral shape
func convertToRawItem(video *youtube.Video, region string) model.RawItem {
	item := model.RawItem{
		ID:          video.Id,
		Title:       video.Snippet.Title,
		Description: video.Snippet.Description,
		ChannelName: video.Snippet.ChannelTitle,
		PublishedAt: video.Snippet.PublishedAt,
		Tags:        video.Snippet.Tags,
		CategoryID:  video.Snippet.CategoryId,
		RegionCode:  region,
		URL:         "https://www.youtube.com/watch?v=" + video.Id,
	}
	if video.Statistics != nil {
		views := int64(video.Statistics.ViewCount)
		likes := int64(video.Statistics.LikeCount)
		comments := int64(video.Statistics.CommentCount)
		item.ViewCount = &views
		item.LikeCount = &likes
		item.CommentCount = &comments
	}
	if video.ContentDetails != nil {
		item.Duration = video.ContentDetails.Duration
	}
	if t := video.Snippet.Thumbnails; t != nil {
		switch {
		case t.High != nil:
			item.ThumbnailURL = t.High.Url
		case t.Medium != nil:
			item.ThumbnailURL = t.Medium.Url
		case t.Default != nil:
			item.ThumbnailURL = t.Default.Url
		}
	}
	return item
}

func retryable(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func chartUnavailable(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	if gerr.Code == http.StatusNotFound {
		return true
	}
	for _, e := range gerr.Errors {
		if e.Reason == "videoChartNotFound" || e.Reason == "invalidVideoCategoryId" {
			return true
		}
	}
	return false
}

// errorReason maps API errors onto fetch outcome reasons.
func errorReason(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return model.ReasonTimeout
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		for _, e := range gerr.Errors {
			switch e.Reason {
			case "quotaExceeded", "dailyLimitExceeded":
				return model.ReasonQuotaExceeded
			case "rateLimitExceeded", "userRateLimitExceeded":
				return model.ReasonRateLimited
			}
		}
		switch {
		case gerr.Code == http.StatusTooManyRequests:
			return model.ReasonRateLimited
		case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden:
			return model.ReasonNotConfigured
		case gerr.Code >= 500:
			return model.ReasonNetwork
		}
		return model.ReasonParseFailure
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.ReasonTimeout
	}
	return model.ReasonNetwork
}
