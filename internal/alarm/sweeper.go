package alarm

import (
	"context"
	"log/slog"
	"time"

	"github.com/Tomlord1122/todolist/internal/domain"
)

// Source lists todos whose expiry falls within [from, to).
type Source interface {
	ListAlarmsBetween(ctx context.Context, from, to time.Time) ([]domain.Todo, error)
}

// Sweeper periodically loads todos that expire soon and hands them to the scheduler,
// so alarms survive restarts and cover todos created before the process started.
type Sweeper struct {
	source    Source
	scheduler *Scheduler
	interval  time.Duration
	horizon   time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewSweeper(source Source, scheduler *Scheduler, interval, horizon time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		source:    source,
		scheduler: scheduler,
		interval:  interval,
		horizon:   horizon,
		logger:    logger,
		now:       time.Now,
	}
}

// Run sweeps once immediately and then on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.SweepOnce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("alarm sweep failed", "error", err)
		}
		return
	}
	if n > 0 {
		s.logger.Info("alarm sweep scheduled reminders", "count", n, "pending", s.scheduler.Pending())
	}
}

// SweepOnce schedules every eligible todo that expires within the horizon.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	now := s.now()
	todos, err := s.source.ListAlarmsBetween(ctx, now, now.Add(s.horizon))
	if err != nil {
		return 0, err
	}
	return s.scheduler.Sync(todos), nil
}
