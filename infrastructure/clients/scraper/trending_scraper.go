package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-querystring/query"
	"github.com/tidwall/gjson"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/model"
	"github.com/Methodus-dev/methodus-shorts-planner/domain/repository"
	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/logger"
)

const (
	AdapterName    = "trending_page"
	initialDataKey = "ytInitialData"
	maxPageBytes   = 8 << 20
)

var (
	errNoInitialData = errors.New("ytInitialData not found")
	errBadStatus     = errors.New("unexpected status")
)

// rendererKeys are the objects on the trending page that describe one video.
var rendererKeys = []string{"videoRenderer", "gridVideoRenderer", "reelItemRenderer"}

type Config struct {
	URL            string
	UserAgent      string
	AcceptLanguage string
	Timeout        time.Duration
}

// pageQuery is encoded onto the trending URL
type pageQuery struct {
	Region   string `url:"gl,omitempty"`
	Language string `url:"hl,omitempty"`
	Persist  int    `url:"persist_gl,omitempty"`
}

// TrendingScraper reads the public trending page and pulls videos out of its embedded ytInitialData.
type TrendingScraper struct {
	cfg    Config
	client *http.Client
}

func NewTrendingScraper(cfg Config, client *http.Client) repository.ISourceAdapter {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if cfg.URL == "" {
		cfg.URL = "https://www.youtube.com/feed/trending"
	}
	return &TrendingScraper{cfg: cfg, client: client}
}

func (s *TrendingScraper) Name() string { return AdapterName }

// Fetch loads one trending page per region (or the default page) and merges the results.
func (s *TrendingScraper) Fetch(ctx context.Context, target int, params model.FetchParams) ([]model.RawItem, model.FetchOutcome) {
	regions := params.RegionCodes
	if len(regions) == 0 {
		regions = []string{""}
	}

	seen := make(map[string]struct{})
	var out []model.RawItem
	var firstErr error
	failed := 0
	for _, region := range regions {
		if target > 0 && len(out) >= target {
			break
		}
		items, err := s.fetchPage(ctx, region)
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			logger.GetLogger().WithField("region", region).WithField("error", err).Warn("Trending page fetch failed")
			continue
		}
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

	if len(out) == 0 && firstErr != nil {
		return nil, model.FailureFromError(errorReason(firstErr), firstErr)
	}
	outcome := model.OutcomeForCount(len(out), target)
	if failed > 0 && !outcome.Failed() {
		outcome = model.PartialSuccess(fmt.Sprintf("%d of %d pages failed: %s", failed, len(regions), errorReason(firstErr)))
	}
	return out, outcome
}

func (s *TrendingScraper) pageURL(region string) (string, error) {
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("invalid trending url: %w", err)
	}
	q := pageQuery{Region: region}
	if region != "" {
		q.Persist = 1
		if region == "KR" {
			q.Language = "ko"
		}
	}
	v, err := query.Values(q)
	if err != nil {
		return "", fmt.Errorf("failed to encode query: %w", err)
	}
	existing := u.Query()
	for k, vals := range v {
		existing[k] = vals
	}
	u.RawQuery = existing.Encode()
	return u.String(), nil
}

func (s *TrendingScraper) fetchPage(ctx context.Context, region string) ([]model.RawItem, error) {
	pageURL, err := s.pageURL(region)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if s.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", s.cfg.UserAgent)
	}
	if s.cfg.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", s.cfg.AcceptLanguage)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trending page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode}
	}

	return ParseTrendingPage(io.LimitReader(resp.Body, maxPageBytes), region)
}

// ParseTrendingPage extracts videos from a trending page document.
func ParseTrendingPage(r io.Reader, region string) ([]model.RawItem, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var raw json.RawMessage
	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := sel.Text()
		if !strings.Contains(text, initialDataKey) {
			return true
		}
		if data, ok := extractInitialData(text); ok {
			raw = data
			return false
		}
		return true
	})
	if raw == nil {
		return nil, errNoInitialData
	}

	var items []model.RawItem
	walkRenderers(gjson.ParseBytes(raw), func(v gjson.Result) {
		if it, ok := rendererToItem(v, region); ok {
			items = append(items, it)
		}
	})
	return items, nil
}

// extractInitialData decodes the JSON object assigned to ytInitialData in a script body.
// Both `var ytInitialData = {...};` and `window["ytInitialData"] = {...};` occur.
func extractInitialData(script string) (json.RawMessage, bool) {
	idx := strings.Index(script, initialDataKey)
	for idx >= 0 {
		rest := script[idx+len(initialDataKey):]
		eq := strings.Index(rest, "=")
		if eq >= 0 {
			body := strings.TrimLeft(rest[eq+1:], " \t\r\n")
			if strings.HasPrefix(body, "{") {
				var raw json.RawMessage
				if err := json.NewDecoder(strings.NewReader(body)).Decode(&raw); err == nil {
					return raw, true
				}
			}
		}
		next := strings.Index(rest, initialDataKey)
		if next < 0 {
			break
		}
		idx += len(initialDataKey) + next
	}
	return nil, false
}

// walkRenderers visits every video renderer object regardless of page layout
// (richGridRenderer, sectionListRenderer, shelves).
func walkRenderers(node gjson.Result, visit func(gjson.Result)) {
	switch {
	case node.IsObject():
		node.ForEach(func(key, value gjson.Result) bool {
			if isRendererKey(key.String()) && value.IsObject() {
				visit(value)
				return true
			}
			walkRenderers(value, visit)
			return true
		})
	case node.IsArray():
		node.ForEach(func(_, value gjson.Result) bool {
			walkRenderers(value, visit)
			return true
		})
	}
}

func isRendererKey(k string) bool {
	for _, r := range rendererKeys {
		if k == r {
			return true
		}
	}
	return false
}

func rendererToItem(v gjson.Result, region string) (model.RawItem, bool) {
	id := v.Get("videoId").String()
	title := firstNonEmpty(v, "title.runs.0.text", "title.simpleText", "headline.simpleText")
	if id == "" || title == "" {
		return model.RawItem{}, false
	}
	return model.RawItem{
		ID:           id,
		Title:        title,
		URL:          "https://www.youtube.com/watch?v=" + id,
		ChannelName:  firstNonEmpty(v, "ownerText.runs.0.text", "shortBylineText.runs.0.text", "longBylineText.runs.0.text"),
		ViewText:     firstNonEmpty(v, "viewCountText.simpleText", "viewCountText.runs.0.text", "shortViewCountText.simpleText"),
		ThumbnailURL: v.Get("thumbnail.thumbnails|@reverse|0.url").String(),
		Duration:     firstNonEmpty(v, "lengthText.simpleText", "thumbnailOverlays.0.thumbnailOverlayTimeStatusRenderer.text.simpleText"),
		Description:  v.Get("descriptionSnippet.runs.0.text").String(),
		RegionCode:   region,
	}, true
}

func firstNonEmpty(v gjson.Result, paths ...string) string {
	for _, p := range paths {
		if s := strings.TrimSpace(v.Get(p).String()); s != "" {
			return s
		}
	}
	return ""
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%v: %d", errBadStatus, e.code)
}

func (e *statusError) Unwrap() error { return errBadStatus }

func errorReason(err error) string {
	var se *statusError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return model.ReasonTimeout
	case errors.Is(err, errNoInitialData):
		return model.ReasonParseFailure
	case errors.As(err, &se) && se.code == http.StatusTooManyRequests:
		return model.ReasonRateLimited
	default:
		return model.ReasonNetwork
	}
}
