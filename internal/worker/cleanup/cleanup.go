// Package cleanup はトレンド記事の保持件数を上限内に保つジョブを提供する。
// 上限を超えた分を挿入日時の古い順に削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/healthtrends/internal/metrics"
)

// DefaultRetentionCap は保持する記事数のデフォルト上限。
const DefaultRetentionCap = 60

// Store は保持件数の調整に必要な永続化操作のインターフェース。
// repository.TrendRepositoryが満たす。
type Store interface {
	ListIDsByInsertedAt(ctx context.Context) ([]string, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
}

// RetentionJob は保持上限を超えた古い記事の削除ジョブ。
// 削除対象がなければ何もしないため、何度実行しても結果は同じ。
type RetentionJob struct {
	store    Store
	recorder metrics.Recorder
	logger   *slog.Logger
	Cap      int // 保持する記事数の上限（デフォルト: 60）
}

// NewRetentionJob は新しいRetentionJobを生成する。
// retentionCapが0以下の場合はDefaultRetentionCapを使用する。
func NewRetentionJob(store Store, retentionCap int, recorder metrics.Recorder, logger *slog.Logger) *RetentionJob {
	if retentionCap <= 0 {
		retentionCap = DefaultRetentionCap
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &RetentionJob{
		store:    store,
		recorder: recorder,
		logger:   logger,
		Cap:      retentionCap,
	}
}

// Run は全記事を古い順に並べ、上限を超えた先頭の count - Cap 件を削除して削除件数を返す。
func (j *RetentionJob) Run(ctx context.Context) (int, error) {
	start := time.Now()

	ids, err := j.store.ListIDsByInsertedAt(ctx)
	if err != nil {
		j.logger.Error("保持件数の確認に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_cap", j.Cap),
		)
		return 0, fmt.Errorf("記事IDの取得に失敗: %w", err)
	}

	excess := len(ids) - j.Cap
	if excess <= 0 {
		j.logger.Info("記事クリーンアップジョブが完了しました",
			slog.Int("deleted_count", 0),
			slog.Int("total", len(ids)),
			slog.Int("retention_cap", j.Cap),
			slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
		)
		return 0, nil
	}

	deleted, err := j.store.DeleteByIDs(ctx, ids[:excess])
	if err != nil {
		j.logger.Error("記事クリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("excess", excess),
			slog.Int("retention_cap", j.Cap),
		)
		return 0, fmt.Errorf("古い記事の削除に失敗: %w", err)
	}

	j.recorder.RecordTrendsPruned(int(deleted))
	j.logger.Info("記事クリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Int("total", len(ids)),
		slog.Int("retention_cap", j.Cap),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return int(deleted), nil
}
