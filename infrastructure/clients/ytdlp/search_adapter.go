package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/model"
	"github.com/Methodus-dev/methodus-shorts-planner/domain/repository"
	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/logger"
)

const (
	AdapterName       = "ytdlp_search"
	defaultBinary     = "yt-dlp"
	searchConcurrency = 3
)

var errNotInstalled = errors.New("yt-dlp not installed")

// Runner executes a command and returns stdout and stderr.
type Runner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

type Config struct {
	Binary          string
	KoreanKeywords  []string
	EnglishKeywords []string
	KoreanShare     float64
}

// SearchAdapter runs yt-dlp keyword searches and treats the hits as trend candidates.
type SearchAdapter struct {
	cfg Config
	run Runner
}

func NewSearchAdapter(cfg Config, run Runner) repository.ISourceAdapter {
	if cfg.Binary == "" {
		cfg.Binary = defaultBinary
	}
	if cfg.KoreanShare <= 0 || cfg.KoreanShare > 1 {
		cfg.KoreanShare = 0.6
	}
	if run == nil {
		run = execRunner
	}
	return &SearchAdapter{cfg: cfg, run: run}
}

func (a *SearchAdapter) Name() string { return AdapterName }

type searchJob struct {
	keyword string
	count   int
}

// plan splits target across keywords. Explicit keywords share the target evenly;
// otherwise Korean keywords get KoreanShare of it and English keywords the rest.
func (a *SearchAdapter) plan(target int, keywords []string) []searchJob {
	if target <= 0 {
		target = 50
	}
	perKeyword := func(n, k int) int {
		if k == 0 || n <= 0 {
			return 0
		}
		return int(math.Ceil(float64(n) / float64(k)))
	}
	var jobs []searchJob
	add := func(kws []string, n int) {
		c := perKeyword(n, len(kws))
		if c == 0 {
			return
		}
		for _, k := range kws {
			jobs = append(jobs, searchJob{keyword: k, count: c})
		}
	}
	if len(keywords) > 0 {
		add(keywords, target)
		return jobs
	}
	korean := int(math.Round(float64(target) * a.cfg.KoreanShare))
	add(a.cfg.KoreanKeywords, korean)
	add(a.cfg.EnglishKeywords, target-korean)
	return jobs
}

func (a *SearchAdapter) Fetch(ctx context.Context, target int, params model.FetchParams) ([]model.RawItem, model.FetchOutcome) {
	jobs := a.plan(target, params.Keywords)
	if len(jobs) == 0 {
		return nil, model.Failure(model.ReasonNotConfigured)
	}

	results := make([][]model.RawItem, len(jobs))
	var mu sync.Mutex
	var errs []error
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(searchConcurrency)
	for i, job := range jobs {
		g.Go(func() error {
			items, err := a.search(gctx, job)
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				if errors.Is(err, errNotInstalled) {
					// no point running the remaining searches
					return err
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
	for _, items := range results {
		for _, it := range items {
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

	if len(out) == 0 && len(errs) > 0 {
		return nil, model.FailureFromError(errorReason(errs[0]), errs[0])
	}
	outcome := model.OutcomeForCount(len(out), target)
	if len(errs) > 0 && !outcome.Failed() {
		outcome = model.PartialSuccess(fmt.Sprintf("%d of %d searches failed: %s", len(errs), len(jobs), errorReason(errs[0])))
	}
	return out, outcome
}

func (a *SearchAdapter) search(ctx context.Context, job searchJob) ([]model.RawItem, error) {
	query := fmt.Sprintf("ytsearch%d:%s", job.count, job.keyword)
	stdout, stderr, err := a.run(ctx, a.cfg.Binary, "--flat-playlist", "-J", "--no-warnings", query)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, errNotInstalled
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := strings.TrimSpace(string(stderr))
		return nil, fmt.Errorf("yt-dlp search %q failed: %w: %s", job.keyword, err, msg)
	}
	items, err := ParseSearchOutput(stdout)
	if err != nil {
		return nil, err
	}
	logger.GetLogger().WithFields(map[string]interface{}{
		"keyword": job.keyword,
		"items":   len(items),
	}).Debug("yt-dlp search finished")
	return items, nil
}

type searchPlaylist struct {
	Entries []searchEntry `json:"entries"`
}

type searchEntry struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	URL         string           `json:"url"`
	Description string           `json:"description"`
	Duration    *float64         `json:"duration"`
	ViewCount   *int64           `json:"view_count"`
	LikeCount   *int64           `json:"like_count"`
	Channel     string           `json:"channel"`
	Uploader    string           `json:"uploader"`
	UploadDate  string           `json:"upload_date"`
	Timestamp   *int64           `json:"timestamp"`
	Thumbnail   string           `json:"thumbnail"`
	Thumbnails  []entryThumbnail `json:"thumbnails"`
}

type entryThumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ParseSearchOutput converts `yt-dlp -J` playlist JSON into raw items.
func ParseSearchOutput(data []byte) ([]model.RawItem, error) {
	var playlist searchPlaylist
	if err := json.Unmarshal(data, &playlist); err != nil {
		return nil, fmt.Errorf("parse yt-dlp output: %w", err)
	}
	items := make([]model.RawItem, 0, len(playlist.Entries))
	for _, e := range playlist.Entries {
		if e.ID == "" {
			continue
		}
		url := e.URL
		if !strings.HasPrefix(url, "http") {
			url = "https://www.youtube.com/watch?v=" + e.ID
		}
		items = append(items, model.RawItem{
			ID:              e.ID,
			Title:           e.Title,
			Description:     e.Description,
			ChannelName:     coalesce(e.Channel, e.Uploader),
			ThumbnailURL:    bestThumbnail(e),
			URL:             url,
			ViewCount:       e.ViewCount,
			LikeCount:       e.LikeCount,
			DurationSeconds: e.Duration,
			PublishedAt:     e.UploadDate,
			Timestamp:       e.Timestamp,
		})
	}
	return items, nil
}

func bestThumbnail(e searchEntry) string {
	if e.Thumbnail != "" {
		return e.Thumbnail
	}
	var best entryThumbnail
	for _, t := range e.Thumbnails {
		if best.URL == "" || t.Width*t.Height > best.Width*best.Height {
			best = t
		}
	}
	return best.URL
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, errNotInstalled):
		return model.ReasonNotConfigured
	case errors.Is(err, context.DeadlineExceeded):
		return model.ReasonTimeout
	case strings.Contains(err.Error(), "parse yt-dlp output"):
		return model.ReasonParseFailure
	case isRateLimited(err.Error()):
		return model.ReasonRateLimited
	default:
		return model.ReasonNetwork
	}
}

func isRateLimited(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "429") ||
		strings.Contains(lower, "too many requests") ||
		strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "rate-limit")
}
