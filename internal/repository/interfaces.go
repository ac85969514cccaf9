// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/healthtrends/internal/model"
)

// ErrLockHeld は別の実行がパイプラインのロックを保持していることを示す。
var ErrLockHeld = errors.New("pipeline lock is held by another run")

// TrendRepository はhealth_trendsテーブルの永続化インターフェース。
// 記事の同一性はlinkで判定する。
type TrendRepository interface {
	// UpsertBatch はrowsを1トランザクションでUPSERTし、書き込んだリンク数を返す。
	// 同じlinkが複数含まれる場合は1件にまとめる。
	UpsertBatch(ctx context.Context, rows []model.EnrichedArticle) (int, error)

	// ListIDsByInsertedAt は全行のIDをinserted_at昇順（同時刻はid昇順）で返す。
	ListIDsByInsertedAt(ctx context.Context) ([]string, error)

	// DeleteByIDs は指定IDの行を削除し、削除件数を返す。
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)

	// Count は全行数を返す。
	Count(ctx context.Context) (int, error)

	// ListRandom は公開済みの行からランダムにfilter.Limit件を返す。
	ListRandom(ctx context.Context, filter model.TrendFilter) ([]model.HealthTrend, error)
}

// RunLocker はパイプラインの重複実行を防ぐロック。
type RunLocker interface {
	// TryLock はロックの取得を試み、成功すれば解放関数を返す。
	// 他の実行が保持中の場合はErrLockHeldを返す。
	TryLock(ctx context.Context) (release func(), err error)
}
