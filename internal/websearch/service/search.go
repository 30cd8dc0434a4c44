package service

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/lk2023060901/serp-gateway/internal/pkg/errors"
	"github.com/lk2023060901/serp-gateway/internal/pkg/logger"
	"github.com/lk2023060901/serp-gateway/internal/pkg/response"
	"github.com/lk2023060901/serp-gateway/internal/websearch/biz"
	"github.com/lk2023060901/serp-gateway/internal/websearch/types"
)

type searchFunc func(ctx context.Context, params types.SearchParams) (*types.SearchResult, error)

// SearchService 原生搜索 HTTP 服务
type SearchService struct {
	gw     *biz.SearchGateway
	logger *logger.Logger
}

// NewSearchService 创建搜索服务
func NewSearchService(gw *biz.SearchGateway, log *logger.Logger) *SearchService {
	return &SearchService{
		gw:     gw,
		logger: logger.OrGlobal(log).Named("search-service"),
	}
}

// RegisterRoutes 注册原生搜索路由
func (s *SearchService) RegisterRoutes(r *gin.RouterGroup) {
	search := r.Group("/search")
	{
		search.POST("", s.Search)
		search.POST("/:type", s.SearchByType)
	}
}

// Search 网页搜索，type 字段可选
func (s *SearchService) Search(c *gin.Context) {
	var req types.SearchParams
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrSearchInvalidParams, err.Error())
		return
	}
	s.run(c, s.gw.Search, req)
}

// SearchByType 垂直搜索：images|videos|news|places|scholar
func (s *SearchService) SearchByType(c *gin.Context) {
	searchType, ok := types.ParseSearchType(c.Param("type"))
	if !ok {
		response.ErrorWithCode(c, apperrors.ErrSearchInvalidParams, "unsupported search type: "+c.Param("type"))
		return
	}

	var req types.SearchParams
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrSearchInvalidParams, err.Error())
		return
	}

	fns := map[types.SearchType]searchFunc{
		types.SearchTypeWeb:     s.gw.Search,
		types.SearchTypeImages:  s.gw.SearchImages,
		types.SearchTypeVideos:  s.gw.SearchVideos,
		types.SearchTypeNews:    s.gw.SearchNews,
		types.SearchTypePlaces:  s.gw.SearchPlaces,
		types.SearchTypeScholar: s.gw.SearchScholar,
	}
	s.run(c, fns[searchType], req)
}

func (s *SearchService) run(c *gin.Context, fn searchFunc, req types.SearchParams) {
	result, err := fn(c.Request.Context(), req)
	if err != nil {
		s.logger.WithContext(c.Request.Context()).Warn("search failed",
			zap.String("query", strings.TrimSpace(req.Q)),
			zap.Int("code", apperrors.ExtractCode(err)),
			zap.Error(err),
		)
		response.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
