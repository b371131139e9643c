package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/dto"
	"github.com/Methodus-dev/methodus-shorts-planner/domain/model"
	"github.com/Methodus-dev/methodus-shorts-planner/domain/repository"
	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/filecsv"
	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/logger"
)

const (
	DefaultQueryLimit   = 20
	DefaultKeywordLimit = 20
	hotCategoryCount    = 3
	recentRunLimit      = 10
)

// Data origin reported with every query.
const (
	SourceLive   = "live"
	SourceCached = "cached"
	SourceNoData = "no_data"
)

// ErrInvalidQuery is returned for filter values outside the known vocabulary.
var ErrInvalidQuery = errors.New("invalid query")

var timeFilters = map[string]time.Duration{
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

var regionLabels = map[model.Region]string{
	model.RegionDomestic: "국내",
	model.RegionForeign:  "해외",
}

var languageLabels = map[model.Language]string{
	model.LanguageKorean:   "한국어",
	model.LanguageJapanese: "日本語",
	model.LanguageChinese:  "中文",
	model.LanguageEnglish:  "English",
	model.LanguageOther:    "기타",
}

// ITrendUseCase serves the planner's read side and the refresh controls.
type ITrendUseCase interface {
	GetTrending(ctx context.Context, req *dto.TrendQueryRequest) (*dto.TrendQueryResponse, error)
	GetFilterOptions(ctx context.Context) *dto.FilterOptionsResponse
	GetKeywordTrends(ctx context.Context, limit int) *dto.KeywordTrendsResponse
	Refresh(ctx context.Context, force, wait bool) model.TriggerResult
	Status(ctx context.Context) *dto.TrendStatusResponse
	ExportCSV(ctx context.Context, req *dto.TrendQueryRequest, w io.Writer) error
}

type TrendUseCase struct {
	scheduler *RefreshScheduler
	history   repository.IRefreshHistory // optional
}

func NewTrendUseCase(scheduler *RefreshScheduler) ITrendUseCase {
	return &TrendUseCase{scheduler: scheduler}
}

// NewTrendUseCaseWithHistory creates the use case with refresh history for status reports
func NewTrendUseCaseWithHistory(scheduler *RefreshScheduler, history repository.IRefreshHistory) ITrendUseCase {
	return (&TrendUseCase{scheduler: scheduler}).WithHistory(history)
}

func (u *TrendUseCase) WithHistory(history repository.IRefreshHistory) *TrendUseCase {
	u.history = history
	return u
}

// GetTrending answers from the current snapshot. A stale or empty snapshot starts a
// background refresh; the caller still gets the data on hand immediately.
func (u *TrendUseCase) GetTrending(ctx context.Context, req *dto.TrendQueryRequest) (*dto.TrendQueryResponse, error) {
	if req == nil {
		req = &dto.TrendQueryRequest{}
	}
	filters, key, limit, err := parseQuery(req)
	if err != nil {
		return nil, err
	}

	snap := u.scheduler.Snapshot()
	now := u.scheduler.Now()

	meta := dto.TrendQueryMeta{LastUpdated: snap.LastUpdated, Origin: snap.Source}
	switch {
	case snap.IsEmpty():
		meta.Source = SourceNoData
		meta.Refreshing = u.triggerStale(ctx)
	case u.scheduler.IsStale(now):
		meta.Source = SourceCached
		meta.Refreshing = u.triggerStale(ctx)
	default:
		meta.Source = SourceLive
	}

	videos, total := Query(snap.Records, filters, key, limit, now)
	meta.Count = len(videos)
	meta.TotalCount = total
	return &dto.TrendQueryResponse{Videos: videos, Meta: meta}, nil
}

func (u *TrendUseCase) triggerStale(ctx context.Context) bool {
	res := u.scheduler.Trigger(ctx, model.TriggerStale, false)
	switch res.Status {
	case model.TriggerStarted, model.TriggerAlreadyRunning:
		return true
	case model.TriggerFailed:
		logger.GetLogger().WithField("reason", res.Reason).Warn("Stale snapshot but refresh could not start")
	}
	return false
}

func parseQuery(req *dto.TrendQueryRequest) (model.QueryFilters, model.SortKey, int, error) {
	f := model.QueryFilters{MinScore: req.MinScore, PreferDomestic: req.PreferDomestic}

	if req.Category != "" && req.Category != "all" {
		c := model.Category(req.Category)
		if !c.Valid() {
			return f, "", 0, fmt.Errorf("%w: unknown category %q", ErrInvalidQuery, req.Category)
		}
		f.Category = c
	}
	if req.Region != "" && req.Region != "all" {
		r := model.Region(req.Region)
		if _, ok := regionLabels[r]; !ok {
			return f, "", 0, fmt.Errorf("%w: unknown region %q", ErrInvalidQuery, req.Region)
		}
		f.Region = r
	}
	if req.Language != "" && req.Language != "all" {
		l := model.Language(req.Language)
		if _, ok := languageLabels[l]; !ok {
			return f, "", 0, fmt.Errorf("%w: unknown language %q", ErrInvalidQuery, req.Language)
		}
		f.Language = l
	}
	switch req.Type {
	case "", "all":
	case string(model.VideoTypeShort), string(model.VideoTypeLong):
		f.Type = model.VideoType(req.Type)
	default:
		return f, "", 0, fmt.Errorf("%w: unknown type %q", ErrInvalidQuery, req.Type)
	}
	if req.TimeFilter != "" && req.TimeFilter != "all" {
		d, ok := timeFilters[req.TimeFilter]
		if !ok {
			return f, "", 0, fmt.Errorf("%w: unknown time filter %q", ErrInvalidQuery, req.TimeFilter)
		}
		f.Within = d
	}
	if f.MinScore < 0 || f.MinScore > maxTrendScore {
		return f, "", 0, fmt.Errorf("%w: min_score must be within 0-100", ErrInvalidQuery)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	return f, ParseSortKey(req.SortBy), limit, nil
}

func (u *TrendUseCase) GetFilterOptions(_ context.Context) *dto.FilterOptionsResponse {
	snap := u.scheduler.Snapshot()

	present := make(map[model.Category]bool)
	for _, r := range snap.Records {
		present[r.Category] = true
	}
	var categories []dto.FilterOption
	for _, c := range model.AllCategories {
		if len(present) == 0 || present[c] {
			categories = append(categories, dto.FilterOption{Value: string(c), Label: c.Label()})
		}
	}

	regions := make([]dto.FilterOption, 0, len(model.AllRegions))
	for _, r := range model.AllRegions {
		regions = append(regions, dto.FilterOption{Value: string(r), Label: regionLabels[r]})
	}
	languages := make([]dto.FilterOption, 0, len(model.AllLanguages))
	for _, l := range model.AllLanguages {
		languages = append(languages, dto.FilterOption{Value: string(l), Label: languageLabels[l]})
	}

	return &dto.FilterOptionsResponse{
		Categories: categories,
		Regions:    regions,
		Languages:  languages,
		SortOptions: []dto.FilterOption{
			{Value: string(model.SortByTrendScore), Label: "트렌드 점수"},
			{Value: string(model.SortByViews), Label: "조회수"},
			{Value: string(model.SortByCrawledAt), Label: "최신순"},
		},
		VideoTypes: []dto.FilterOption{
			{Value: "all", Label: "전체"},
			{Value: string(model.VideoTypeShort), Label: "쇼츠"},
			{Value: string(model.VideoTypeLong), Label: "롱폼"},
		},
		TimeFilters: []dto.FilterOption{
			{Value: "all", Label: "전체 기간"},
			{Value: "24h", Label: "24시간"},
			{Value: "7d", Label: "7일"},
			{Value: "30d", Label: "30일"},
		},
		TrendScore: dto.ScoreRange{Min: 1, Max: maxTrendScore, Default: 50},
	}
}

// GetKeywordTrends ranks keywords by how many cached videos carry them.
func (u *TrendUseCase) GetKeywordTrends(_ context.Context, limit int) *dto.KeywordTrendsResponse {
	if limit <= 0 {
		limit = DefaultKeywordLimit
	}
	snap := u.scheduler.Snapshot()

	keywordCounts := make(map[string]int)
	categoryCounts := make(map[model.Category]int)
	for _, r := range snap.Records {
		for _, k := range r.Keywords {
			if k == fallbackKeyword {
				continue
			}
			keywordCounts[k]++
		}
		categoryCounts[r.Category]++
	}

	keywords := make([]dto.KeywordCount, 0, len(keywordCounts))
	for k, n := range keywordCounts {
		keywords = append(keywords, dto.KeywordCount{Keyword: k, Count: n})
	}
	sort.Slice(keywords, func(i, j int) bool {
		if keywords[i].Count != keywords[j].Count {
			return keywords[i].Count > keywords[j].Count
		}
		return keywords[i].Keyword < keywords[j].Keyword
	})
	if len(keywords) > limit {
		keywords = keywords[:limit]
	}

	hot := make([]dto.CategoryCount, 0, len(categoryCounts))
	for _, c := range model.AllCategories {
		if n := categoryCounts[c]; n > 0 {
			hot = append(hot, dto.CategoryCount{Category: c, Label: c.Label(), Count: n})
		}
	}
	sort.SliceStable(hot, func(i, j int) bool { return hot[i].Count > hot[j].Count })
	if len(hot) > hotCategoryCount {
		hot = hot[:hotCategoryCount]
	}

	return &dto.KeywordTrendsResponse{
		Keywords:      keywords,
		HotCategories: hot,
		TotalVideos:   len(snap.Records),
		AnalyzedAt:    u.scheduler.Now(),
	}
}

// Refresh requests a refresh. With wait the caller blocks until the run ends.
func (u *TrendUseCase) Refresh(ctx context.Context, force, wait bool) model.TriggerResult {
	trigger := model.TriggerStale
	if force {
		trigger = model.TriggerForce
	}
	if wait {
		return u.scheduler.RefreshNow(ctx, trigger, force)
	}
	return u.scheduler.Trigger(ctx, trigger, force)
}

func (u *TrendUseCase) Status(ctx context.Context) *dto.TrendStatusResponse {
	st := u.scheduler.Status()
	now := u.scheduler.Now()
	cfg := u.scheduler.Config()

	res := &dto.TrendStatusResponse{RefreshStatus: st, Age: "never", NextCheck: "now"}
	if st.RecordCount > 0 && !st.LastUpdated.IsZero() {
		res.Age = humanize.RelTime(st.LastUpdated, now, "ago", "from now")
		if !st.Stale {
			res.NextCheck = humanize.RelTime(st.LastUpdated.Add(cfg.StalenessThreshold), now, "ago", "from now")
		}
	}

	if u.history != nil {
		runs, err := u.history.Recent(ctx, recentRunLimit)
		if err != nil {
			logger.GetLogger().WithField("error", err).Warn("Failed loading refresh history")
		} else {
			res.RecentRuns = runs
		}
	}
	return res
}

// ExportCSV writes the cached view as CSV. Unlike GetTrending it never starts a refresh.
func (u *TrendUseCase) ExportCSV(_ context.Context, req *dto.TrendQueryRequest, w io.Writer) error {
	if req == nil {
		req = &dto.TrendQueryRequest{}
	}
	filters, key, limit, err := parseQuery(req)
	if err != nil {
		return err
	}
	videos, _ := Query(u.scheduler.Snapshot().Records, filters, key, limit, u.scheduler.Now())
	if err := filecsv.WriteTrends(w, videos); err != nil {
		return fmt.Errorf("failed to export trends: %w", err)
	}
	return nil
}
