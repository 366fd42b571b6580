package campaign

import (
	"context"
	"time"

	"smallbiznis-referral/pkg/config"
	"smallbiznis-referral/pkg/task"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Scheduler enqueues one dispatch task per interval. asynq.Unique keeps a
// slow worker from piling up runs.
type Scheduler struct {
	enqueuer  task.Enqueuer
	interval  time.Duration
	batchSize int
}

func NewScheduler(cfg *config.Config, enqueuer task.Enqueuer) *Scheduler {
	interval := cfg.Dispatch.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{enqueuer: enqueuer, interval: interval, batchSize: cfg.Dispatch.BatchSize}
}

func StartScheduler(lc fx.Lifecycle, s *Scheduler) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				s.run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}

func (s *Scheduler) run(ctx context.Context) {
	zap.L().Info("[Scheduler] campaign dispatch scheduler started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			zap.L().Warn("[Scheduler] stopped")
			return
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	t, err := NewDispatchTask(DispatchPayload{BatchSize: s.batchSize})
	if err != nil {
		zap.L().Error("[Scheduler] failed to build dispatch task", zap.Error(err))
		return
	}

	info, err := s.enqueuer.Enqueue(ctx, t, asynq.Unique(s.interval))
	if err != nil {
		zap.L().Warn("[Scheduler] dispatch task not enqueued", zap.Error(err))
		return
	}
	zap.L().Debug("[Scheduler] dispatch task enqueued", zap.String("task_id", info.ID))
}
