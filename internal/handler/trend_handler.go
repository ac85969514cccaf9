package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hitoshi/healthtrends/internal/middleware"
	"github.com/hitoshi/healthtrends/internal/model"
)

// defaultTrendLimit はブログのプレビュー表示で使う既定の取得件数。
const defaultTrendLimit = 3

// TrendLister はトレンド記事の読み取りインターフェース。
type TrendLister interface {
	ListRandom(ctx context.Context, filter model.TrendFilter) ([]model.HealthTrend, error)
}

// TrendHandler はトレンド記事の読み取りAPIのハンドラー。
type TrendHandler struct {
	repo     TrendLister
	maxLimit int
	logger   *slog.Logger
}

// NewTrendHandler はTrendHandlerを生成する。
// maxLimitは1回に返す最大件数で、通常は保持上限と同じ値を渡す。
func NewTrendHandler(repo TrendLister, maxLimit int, logger *slog.Logger) *TrendHandler {
	if maxLimit < defaultTrendLimit {
		maxLimit = defaultTrendLimit
	}
	return &TrendHandler{repo: repo, maxLimit: maxLimit, logger: logger}
}

// trendResponse はトレンド記事1件のレスポンス。
type trendResponse struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Link         string  `json:"link"`
	ImageURL     *string `json:"image_url"`
	Category     string  `json:"category"`
	ShortSummary string  `json:"short_summary"`
}

// trendListResponse はトレンド記事一覧のレスポンス。
type trendListResponse struct {
	Trends []trendResponse `json:"trends"`
	Count  int             `json:"count"`
}

// ListTrends はGET /api/trends?limit=&category= を処理する。
// 公開済みの記事からランダムにlimit件を返す。limitは最大件数で切り詰める。
func (h *TrendHandler) ListTrends(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := defaultTrendLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidLimitError(raw, h.maxLimit))
			return
		}
		limit = min(n, h.maxLimit)
	}

	filter := model.TrendFilter{Limit: limit}
	if raw := q.Get("category"); raw != "" {
		c, ok := model.ParseCategory(raw)
		if !ok {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidCategoryError(raw))
			return
		}
		filter.Category = c
	}

	trends, err := h.repo.ListRandom(r.Context(), filter)
	if err != nil {
		h.logger.Error("トレンド記事の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	resp := trendListResponse{Trends: make([]trendResponse, 0, len(trends)), Count: len(trends)}
	for _, t := range trends {
		item := trendResponse{
			ID:           t.ID,
			Title:        t.Title,
			Description:  t.Description,
			Link:         t.Link,
			Category:     string(t.Category),
			ShortSummary: t.ShortSummary,
		}
		if t.ImageURL != "" {
			imageURL := t.ImageURL
			item.ImageURL = &imageURL
		}
		resp.Trends = append(resp.Trends, item)
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}
