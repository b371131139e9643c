package usecase

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/model"
)

const (
	MaxKeywords     = 10
	maxHashtags     = 3
	fallbackKeyword = "트렌드"
	hangulThreshold = 5
	kanaThreshold   = 3
	hanThreshold    = 5
)

type categoryRule struct {
	category model.Category
	pattern  *regexp.Regexp
}

// Order matters: the first matching rule wins.
var categoryRules = []categoryRule{
	{model.CategorySideIncome, regexp.MustCompile(`(?i)부업|사이드|n잡|투잡|창업|사업|스타트업|side.?hustle|business|startup|entrepreneur`)},
	{model.CategoryFinance, regexp.MustCompile(`(?i)재테크|돈|수익|벌기|투자|주식|부동산|코인|money|earn|stock|invest|crypto`)},
	{model.CategoryTech, regexp.MustCompile(`(?i)\bAI\b|chatgpt|인공지능|개발|코딩|프로그래밍|artificial|coding|programming|developer`)},
	{model.CategoryMarketing, regexp.MustCompile(`(?i)마케팅|SNS|인스타|틱톡|marketing|instagram|tiktok`)},
	{model.CategorySelfImprovement, regexp.MustCompile(`(?i)자기계발|루틴|습관|동기부여|motivation|routine|habit|productivity`)},
	{model.CategoryEducation, regexp.MustCompile(`(?i)공부|학습|영어|강의|study|learn|english|lecture`)},
	{model.CategoryFood, regexp.MustCompile(`(?i)요리|레시피|먹방|음식|cook|recipe|food`)},
	{model.CategoryGaming, regexp.MustCompile(`(?i)게임|배그|롤토체스|마인크래프트|\bgame|gaming|minecraft`)},
	{model.CategoryFitness, regexp.MustCompile(`(?i)운동|헬스|다이어트|축구|야구|workout|fitness|diet|gym`)},
	{model.CategoryMusic, regexp.MustCompile(`(?i)노래|음악|뮤비|music|song|\bMV\b`)},
	{model.CategoryEntertainment, regexp.MustCompile(`(?i)예능|드라마|영화|웃긴|코미디|movie|drama|funny|comedy`)},
	{model.CategoryVlog, regexp.MustCompile(`(?i)브이로그|일상|vlog|daily`)},
}

type keywordRule struct {
	keyword string
	pattern *regexp.Regexp
}

var keywordRules = []keywordRule{
	{"부업", regexp.MustCompile(`(?i)부업|사이드|n잡|투잡|side.?hustle`)},
	{"재테크", regexp.MustCompile(`(?i)재테크|돈|수익|벌기|money|earn`)},
	{"투자", regexp.MustCompile(`(?i)투자|주식|부동산|코인|stock|invest`)},
	{"AI", regexp.MustCompile(`(?i)\bAI\b|chatgpt|인공지능|artificial`)},
	{"개발", regexp.MustCompile(`(?i)개발|코딩|프로그래밍|coding|programming|\bdev\b`)},
	{"마케팅", regexp.MustCompile(`(?i)마케팅|SNS|인스타|틱톡|marketing|instagram|tiktok`)},
	{"창업", regexp.MustCompile(`(?i)창업|사업|스타트업|business|startup|entrepreneur`)},
	{"자기계발", regexp.MustCompile(`(?i)자기계발|루틴|습관|동기부여|motivation|routine|habit`)},
	{"요리", regexp.MustCompile(`(?i)요리|레시피|먹방|음식|cook|recipe|food`)},
	{"게임", regexp.MustCompile(`(?i)게임|배그|\bgame|gaming`)},
	{"운동", regexp.MustCompile(`(?i)운동|헬스|다이어트|workout|fitness|diet`)},
	{"공부", regexp.MustCompile(`(?i)공부|학습|영어|study|learn|english`)},
	{"브이로그", regexp.MustCompile(`(?i)브이로그|일상|vlog|daily`)},
	{"리뷰", regexp.MustCompile(`(?i)리뷰|추천|비교|review|recommend`)},
	{"꿀팁", regexp.MustCompile(`(?i)꿀팁|비법|방법|노하우|\btips?\b|trick|hack`)},
}

var hashtagPattern = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)

// Classify returns rec enriched with language, region, category, keywords and trend score.
// The result depends only on the record's own fields.
func Classify(rec model.VideoRecord) model.VideoRecord {
	rec.Language = DetectLanguage(rec.Title)
	rec.Region = RegionFor(rec.Language)
	rec.Category = ClassifyCategory(rec.Title)
	rec.Keywords = ExtractKeywords(rec.Title)
	rec.TrendScore = TrendScore(rec)
	return rec
}

// ClassifyBatch classifies records in place order.
func ClassifyBatch(records []model.VideoRecord) []model.VideoRecord {
	out := make([]model.VideoRecord, len(records))
	for i := range records {
		out[i] = Classify(records[i])
	}
	return out
}

type scriptCounts struct {
	hangul, kana, han, latin int
}

func countScripts(s string) scriptCounts {
	var c scriptCounts
	for _, r := range s {
		switch {
		case r >= 0xAC00 && r <= 0xD7A3:
			c.hangul++
		case r >= 0x3040 && r <= 0x30FF:
			c.kana++
		case r >= 0x4E00 && r <= 0x9FFF:
			c.han++
		case (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z'):
			c.latin++
		}
	}
	return c
}

// DetectLanguage guesses the title language from script counts.
// Korean wins early so a few Latin characters (channel names, hashtags) do not flip short Korean titles.
func DetectLanguage(title string) model.Language {
	c := countScripts(title)
	switch {
	case c.hangul >= hangulThreshold:
		return model.LanguageKorean
	case c.kana >= kanaThreshold:
		return model.LanguageJapanese
	case c.han >= hanThreshold && c.hangul == 0 && c.kana == 0:
		return model.LanguageChinese
	}

	// Highest count wins; ties resolve in this order.
	ranked := []struct {
		lang  model.Language
		count int
	}{
		{model.LanguageKorean, c.hangul},
		{model.LanguageJapanese, c.kana},
		{model.LanguageChinese, c.han},
		{model.LanguageEnglish, c.latin},
	}
	best := model.LanguageOther
	bestCount := 0
	for _, r := range ranked {
		if r.count > bestCount {
			best, bestCount = r.lang, r.count
		}
	}
	return best
}

func RegionFor(lang model.Language) model.Region {
	if lang == model.LanguageKorean {
		return model.RegionDomestic
	}
	return model.RegionForeign
}

func ClassifyCategory(title string) model.Category {
	for _, rule := range categoryRules {
		if rule.pattern.MatchString(title) {
			return rule.category
		}
	}
	return model.CategoryGeneral
}

// ExtractKeywords returns topic labels matched in the title followed by hashtags.
func ExtractKeywords(title string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, MaxKeywords)
	add := func(k string) {
		key := strings.ToLower(k)
		if _, ok := seen[key]; ok || len(out) >= MaxKeywords {
			return
		}
		seen[key] = struct{}{}
		out = append(out, k)
	}

	for _, rule := range keywordRules {
		if rule.pattern.MatchString(title) {
			add(rule.keyword)
		}
	}

	tags := 0
	for _, m := range hashtagPattern.FindAllStringSubmatch(title, -1) {
		if tags >= maxHashtags {
			break
		}
		if utf8.RuneCountInString(m[1]) <= 2 {
			continue
		}
		add(m[1])
		tags++
	}

	if len(out) == 0 {
		return []string{fallbackKeyword}
	}
	return out
}
