package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Runner はパイプラインを1回実行するインターフェース。
type Runner interface {
	Run(ctx context.Context) (*Result, error)
}

// Scheduler は一定間隔でパイプラインを実行する。
// 外部のcronを使わない構成向け。
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// intervalが0以下の場合は24時間を使用する。
func NewScheduler(runner Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Scheduler{runner: runner, interval: interval, logger: logger}
}

// Start は起動直後に1回実行し、以降はintervalごとに実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("取り込みスケジューラを開始しました",
		slog.Duration("interval", s.interval),
	)

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("取り込みスケジューラを停止しました")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if _, err := s.runner.Run(ctx); err != nil {
		if errors.Is(err, ErrRunInProgress) {
			s.logger.Warn("前回の実行が進行中のためスキップしました")
			return
		}
		s.logger.Error("取り込みサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}
