package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// DefaultLockKey はパイプライン実行用のアドバイザリロックのキー。
const DefaultLockKey int64 = 0x6874_7265_6e64 // "htrend"

// PostgresAdvisoryLock はセッションレベルのアドバイザリロックによるRunLocker。
// ロックは専用の接続に紐づくため、解放まで接続を保持する。
type PostgresAdvisoryLock struct {
	db     *sql.DB
	key    int64
	logger *slog.Logger
}

var _ RunLocker = (*PostgresAdvisoryLock)(nil)

// NewPostgresAdvisoryLock はPostgresAdvisoryLockを生成する。
func NewPostgresAdvisoryLock(db *sql.DB, key int64, logger *slog.Logger) *PostgresAdvisoryLock {
	return &PostgresAdvisoryLock{db: db, key: key, logger: logger}
}

// TryLock はpg_try_advisory_lockでロックの取得を試みる。待機はしない。
func (l *PostgresAdvisoryLock) TryLock(ctx context.Context) (func(), error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("ロック用の接続取得に失敗しました: %w", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, l.key).Scan(&acquired); err != nil {
		conn.Close()
		return nil, fmt.Errorf("アドバイザリロックの取得に失敗しました: %w", err)
	}
	if !acquired {
		conn.Close()
		return nil, ErrLockHeld
	}

	release := func() {
		// 呼び出し元のcontextがキャンセル済みでも解放する
		if _, err := conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, l.key); err != nil {
			l.logger.Warn("アドバイザリロックの解放に失敗しました",
				slog.String("error", err.Error()),
			)
		}
		conn.Close()
	}
	return release, nil
}
