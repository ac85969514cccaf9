package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/healthtrends/internal/middleware"
	"github.com/hitoshi/healthtrends/internal/worker/ingest"
)

// PipelineRunner はトリガーから取り込みパイプラインを1回実行するインターフェース。
type PipelineRunner interface {
	Run(ctx context.Context) (*ingest.Result, error)
}

// TriggerHandler はスケジューラから呼ばれるパイプライン起動エンドポイントのハンドラー。
// クエリパラメータsecretがサーバーの共有シークレットと一致した場合のみ実行する。
type TriggerHandler struct {
	runner PipelineRunner
	secret []byte
	logger *slog.Logger
}

// NewTriggerHandler はTriggerHandlerを生成する。
// secretが空の場合はすべてのリクエストを拒否する。
func NewTriggerHandler(runner PipelineRunner, secret string, logger *slog.Logger) *TriggerHandler {
	return &TriggerHandler{runner: runner, secret: []byte(secret), logger: logger}
}

// Trigger はGET|POST /daily-health-scraper?secret=... を処理する。
//
//	401 {"error":"Unauthorized"}  シークレット不一致（パイプラインは実行しない）
//	200 {"message":"..."}         実行成功
//	409 {"error":"..."}           別の実行が進行中
//	500 {"error":"..."}           実行失敗
func (h *TriggerHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r.URL.Query().Get("secret")) {
		h.logger.Warn("トリガーの認証に失敗しました",
			slog.String("remote_addr", r.RemoteAddr),
		)
		middleware.WriteSimpleError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	// クライアントが切断しても実行は途中で止めない
	res, err := h.runner.Run(context.WithoutCancel(r.Context()))
	if err != nil {
		if errors.Is(err, ingest.ErrRunInProgress) {
			middleware.WriteSimpleError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error("トリガーからのパイプライン実行に失敗しました",
			slog.String("error", err.Error()),
		)
		middleware.WriteSimpleError(w, http.StatusInternalServerError, err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"message": res.Message()})
}

// authorized はシークレットを定数時間で比較する。
// サーバー側のシークレットが未設定の場合は常に拒否する。
func (h *TriggerHandler) authorized(given string) bool {
	if len(h.secret) == 0 || given == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(given), h.secret) == 1
}
