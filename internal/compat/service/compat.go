package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/lk2023060901/serp-gateway/internal/compat/biz"
	ctypes "github.com/lk2023060901/serp-gateway/internal/compat/types"
	"github.com/lk2023060901/serp-gateway/internal/pkg/logger"
)

const maxBodySize = 1 << 20

var (
	errInvalidJSON = errors.New("invalid JSON body")
	errEmptyBody   = errors.New("request body must be a task object or a non-empty array of tasks")
)

// CompatService 兼容协议 HTTP 服务，所有响应均为 HTTP 200
type CompatService struct {
	translator *biz.Translator
	logger     *logger.Logger
}

// NewCompatService 创建兼容协议服务
func NewCompatService(t *biz.Translator, log *logger.Logger) *CompatService {
	return &CompatService{
		translator: t,
		logger:     logger.OrGlobal(log).Named("compat-service"),
	}
}

// RegisterRoutes 注册兼容协议路由，r 通常为 /v3
func (s *CompatService) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/keywords_data/google/keyword_research/live", s.KeywordResearch)
	r.POST("/serp/google/organic/live/advanced", s.SerpAnalysis)
}

// KeywordResearch 关键词研究
func (s *CompatService) KeywordResearch(c *gin.Context) {
	var req ctypes.KeywordResearchRequest
	if err := decodeTask(c, &req); err != nil {
		c.JSON(http.StatusOK, s.translator.Reject(c.Request.Context(), biz.EndpointKeywordResearch, err))
		return
	}
	c.JSON(http.StatusOK, s.translator.KeywordResearch(c.Request.Context(), &req))
}

// SerpAnalysis SERP 分析
func (s *CompatService) SerpAnalysis(c *gin.Context) {
	var req ctypes.SerpAnalysisRequest
	if err := decodeTask(c, &req); err != nil {
		c.JSON(http.StatusOK, s.translator.Reject(c.Request.Context(), biz.EndpointSerpAnalysis, err))
		return
	}
	c.JSON(http.StatusOK, s.translator.SerpAnalysis(c.Request.Context(), &req))
}

// decodeTask reads a task object or the first element of a task array
func decodeTask(c *gin.Context, dest interface{}) error {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if !gjson.ValidBytes(raw) {
		return errInvalidJSON
	}

	doc := gjson.ParseBytes(raw)
	switch {
	case doc.IsArray():
		tasks := doc.Array()
		if len(tasks) == 0 || !tasks[0].IsObject() {
			return errEmptyBody
		}
		raw = []byte(tasks[0].Raw)
	case !doc.IsObject():
		return errEmptyBody
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode task: %w", err)
	}
	return nil
}
