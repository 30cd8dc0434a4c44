package biz

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	ctypes "github.com/lk2023060901/serp-gateway/internal/compat/types"
	apperrors "github.com/lk2023060901/serp-gateway/internal/pkg/errors"
	"github.com/lk2023060901/serp-gateway/internal/pkg/logger"
	"github.com/lk2023060901/serp-gateway/internal/pkg/metrics"
	"github.com/lk2023060901/serp-gateway/internal/websearch/types"
)

// Endpoint names used for logging and metrics
const (
	EndpointKeywordResearch = "keyword_research"
	EndpointSerpAnalysis    = "serp_analysis"
)

// Task costs
const (
	CostKeywordResearch = 0.003
	CostSerpAnalysis    = 0.002
)

const (
	defaultRelatedLimit = 100
	defaultDevice       = "desktop"
	seDomain            = "google.com"
	datetimeLayout      = "2006-01-02 15:04:05 -07:00"
)

var (
	pathKeywordResearch = []string{"v3", "keywords_data", "google", "keyword_research", "live"}
	pathSerpAnalysis    = []string{"v3", "serp", "google", "organic", "live", "advanced"}
)

var (
	ErrKeywordRequired = errors.New("keyword is required")
	ErrEmptyPayload    = errors.New("upstream returned an empty payload")
	ErrTranslation     = errors.New("translation failed")
)

// Searcher is the gateway operation the translator depends on
type Searcher interface {
	Search(ctx context.Context, params types.SearchParams) (*types.SearchResult, error)
}

// Translator 将网关搜索结果转换为兼容协议的任务信封
type Translator struct {
	searcher Searcher
	logger   *logger.Logger
	metrics  *metrics.Metrics

	now   func() time.Time
	newID func() string
}

// NewTranslator 创建转换器
func NewTranslator(s Searcher, log *logger.Logger, m *metrics.Metrics) *Translator {
	return &Translator{
		searcher: s,
		logger:   logger.OrGlobal(log).Named("compat"),
		metrics:  m,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// KeywordResearch 关键词研究：估算搜索量、难度与相关词
func (t *Translator) KeywordResearch(ctx context.Context, req *ctypes.KeywordResearchRequest) *ctypes.Envelope {
	return t.run(ctx, EndpointKeywordResearch, pathKeywordResearch, CostKeywordResearch, req,
		func(ctx context.Context) (interface{}, error) {
			return t.keywordResearch(ctx, req)
		})
}

// SerpAnalysis 自然搜索结果分析
func (t *Translator) SerpAnalysis(ctx context.Context, req *ctypes.SerpAnalysisRequest) *ctypes.Envelope {
	return t.run(ctx, EndpointSerpAnalysis, pathSerpAnalysis, CostSerpAnalysis, req,
		func(ctx context.Context) (interface{}, error) {
			return t.serpAnalysis(ctx, req)
		})
}

// Reject returns a failure envelope for a request that could not be decoded
func (t *Translator) Reject(ctx context.Context, endpoint string, err error) *ctypes.Envelope {
	t.logger.WithContext(ctx).Warn("rejected compat request", zap.String("endpoint", endpoint), zap.Error(err))
	env := t.failure(t.now(), err)
	t.metrics.RecordTranslation(endpoint, env.StatusCode)
	return env
}

// run executes fn and wraps its result or failure in an envelope. It never panics.
func (t *Translator) run(
	ctx context.Context,
	endpoint string,
	path []string,
	cost float64,
	data interface{},
	fn func(ctx context.Context) (interface{}, error),
) (env *ctypes.Envelope) {
	start := t.now()
	log := t.logger.WithContext(ctx).With(zap.String("endpoint", endpoint))

	defer func() {
		if r := recover(); r != nil {
			log.Error("translation panic", zap.Any("panic", r), zap.Stack("stack"))
			env = t.failure(start, fmt.Errorf("%w: %v", ErrTranslation, r))
		}
		t.metrics.RecordTranslation(endpoint, env.StatusCode)
	}()

	result, err := fn(ctx)
	if err != nil {
		log.Warn("translation failed", zap.Error(err))
		return t.failure(start, err)
	}

	elapsed := formatElapsed(t.now().Sub(start))
	return &ctypes.Envelope{
		Version:       ctypes.APIVersion,
		StatusCode:    ctypes.StatusOK,
		StatusMessage: ctypes.StatusMessageOK,
		Time:          elapsed,
		Cost:          cost,
		TasksCount:    1,
		TasksError:    0,
		Tasks: []ctypes.Task{{
			ID:            t.newID(),
			StatusCode:    ctypes.StatusOK,
			StatusMessage: ctypes.StatusMessageOK,
			Time:          elapsed,
			Cost:          cost,
			ResultCount:   1,
			Path:          path,
			Data:          data,
			Result:        []interface{}{result},
		}},
	}
}

func (t *Translator) failure(start time.Time, err error) *ctypes.Envelope {
	return &ctypes.Envelope{
		Version:       ctypes.APIVersion,
		StatusCode:    ctypes.StatusError,
		StatusMessage: errorMessage(err),
		Time:          formatElapsed(t.now().Sub(start)),
		Cost:          0,
		TasksCount:    1,
		TasksError:    1,
		Tasks:         []ctypes.Task{},
	}
}

func (t *Translator) keywordResearch(ctx context.Context, req *ctypes.KeywordResearchRequest) (*ctypes.KeywordResult, error) {
	if req == nil {
		return nil, ErrKeywordRequired
	}
	keyword := strings.TrimSpace(req.SeedKeyword())
	if keyword == "" {
		return nil, ErrKeywordRequired
	}

	loc := ResolveLocation(req.LocationName, req.LocationCode)
	lang := ResolveLanguage(req.LanguageName, req.LanguageCode)

	res, err := t.searcher.Search(ctx, types.SearchParams{
		Q:   keyword,
		GL:  loc.GL,
		HL:  lang.Code,
		Num: depthToNum(req.Depth),
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, ErrEmptyPayload
	}

	difficulty := KeywordDifficulty(res.Organic)
	related := relatedKeywords(res, keyword)

	return &ctypes.KeywordResult{
		Keyword:                 keyword,
		LocationCode:            loc.Code,
		LocationName:            loc.Name,
		LanguageCode:            lang.Code,
		LanguageName:            lang.Name,
		SearchVolume:            EstimateSearchVolume(res),
		SearchVolumeIsEstimated: true,
		KeywordDifficulty:       difficulty,
		CPC:                     nil,
		Competition:             float64(difficulty) / 100,
		CompetitionLevel:        CompetitionLevel(difficulty),
		RelatedKeywords:         paginate(related, req.Offset, req.Limit),
		RelatedKeywordsTotal:    len(related),
	}, nil
}

func (t *Translator) serpAnalysis(ctx context.Context, req *ctypes.SerpAnalysisRequest) (*ctypes.SerpResult, error) {
	if req == nil {
		return nil, ErrKeywordRequired
	}
	keyword := strings.TrimSpace(req.Keyword)
	if keyword == "" {
		return nil, ErrKeywordRequired
	}

	loc := ResolveLocation(req.LocationName, req.LocationCode)
	lang := ResolveLanguage(req.LanguageName, req.LanguageCode)
	num := depthToNum(req.Depth)

	res, err := t.searcher.Search(ctx, types.SearchParams{
		Q:   keyword,
		GL:  loc.GL,
		HL:  lang.Code,
		Num: num,
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, ErrEmptyPayload
	}

	items := make([]ctypes.SerpItem, 0, len(res.Organic))
	for i, o := range res.Organic {
		rankAbsolute := o.Position
		if rankAbsolute <= 0 {
			rankAbsolute = i + 1
		}
		item := ctypes.SerpItem{
			Type:              "organic",
			RankGroup:         i + 1,
			RankAbsolute:      rankAbsolute,
			Domain:            Domain(o.Link),
			Title:             o.Title,
			URL:               o.Link,
			Description:       o.Snippet,
			Highlighted:       Highlighted(keyword, o.Title, o.Snippet),
			IsFeaturedSnippet: res.AnswerBox != nil && sameURL(res.AnswerBox.Link, o.Link),
		}
		for _, sl := range o.Sitelinks {
			item.Links = append(item.Links, ctypes.SerpLink{Type: "link_element", Title: sl.Title, URL: sl.Link})
		}
		items = append(items, item)
	}

	itemTypes := []string{}
	if len(items) > 0 {
		itemTypes = append(itemTypes, "organic")
	}

	relatedSearches := make([]string, 0, len(res.RelatedSearches))
	for _, rs := range res.RelatedSearches {
		if q := strings.TrimSpace(rs.Query); q != "" {
			relatedSearches = append(relatedSearches, q)
		}
	}

	return &ctypes.SerpResult{
		Keyword:         keyword,
		Type:            "organic",
		SeDomain:        seDomain,
		LocationCode:    loc.Code,
		LocationName:    loc.Name,
		LanguageCode:    lang.Code,
		LanguageName:    lang.Name,
		Device:          normalizeDevice(req.Device),
		CheckURL:        checkURL(keyword, loc.GL, lang.Code, num),
		Datetime:        t.now().UTC().Format(datetimeLayout),
		ItemTypes:       itemTypes,
		ItemsCount:      len(items),
		Items:           items,
		RelatedSearches: relatedSearches,
	}, nil
}

// relatedKeywords collects related searches then people-also-ask questions,
// dropping duplicates and the seed itself.
func relatedKeywords(res *types.SearchResult, seed string) []string {
	seen := map[string]struct{}{strings.ToLower(seed): {}}
	out := []string{}
	add := func(s string) {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	for _, rs := range res.RelatedSearches {
		add(rs.Query)
	}
	for _, q := range res.PeopleAlsoAsk {
		add(q.Question)
	}
	return out
}

func paginate(list []string, offset, limit int) []string {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultRelatedLimit
	}
	if offset >= len(list) {
		return []string{}
	}
	end := offset + limit
	if end > len(list) {
		end = len(list)
	}
	return list[offset:end]
}

func depthToNum(depth int) int {
	switch {
	case depth <= 0:
		return types.DefaultNum
	case depth > types.MaxNum:
		return types.MaxNum
	default:
		return depth
	}
}

func normalizeDevice(device string) string {
	if strings.EqualFold(strings.TrimSpace(device), "mobile") {
		return "mobile"
	}
	return defaultDevice
}

func checkURL(q, gl, hl string, num int) string {
	v := url.Values{}
	v.Set("q", q)
	v.Set("gl", gl)
	v.Set("hl", hl)
	v.Set("num", strconv.Itoa(num))
	return "https://www." + seDomain + "/search?" + v.Encode()
}

func formatElapsed(d time.Duration) string {
	return fmt.Sprintf("%.4f sec.", d.Seconds())
}

// errorMessage renders err for the envelope status_message
func errorMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return apperrors.FormatError(appErr.Code, apperrors.GetDetails(err))
	}
	return err.Error()
}
