package scheduler

import (
	"context"
	"fmt"
	"time"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	"github.com/go-co-op/gocron/v2"
)

type reconciler interface {
	Reconcile(ctx context.Context) ([]models.CounterDrift, error)
}

// Scheduler runs background maintenance on a gocron scheduler.
type Scheduler struct {
	inner   gocron.Scheduler
	logger  *logger.Logger
	timeout time.Duration
}

func New(log *logger.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{inner: s, logger: log, timeout: time.Minute}, nil
}

// ScheduleReconcile runs r every interval. A run still in progress when the
// next one is due causes that tick to be skipped.
func (s *Scheduler) ScheduleReconcile(r reconciler, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("reconcile interval must be positive, got %s", interval)
	}
	j, err := s.inner.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { s.runReconcile(r) }),
		gocron.WithName("reconcile-slot-counters"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule reconcile: %w", err)
	}
	s.logger.Info("SCHEDULER", fmt.Sprintf("Job %s (%s) every %s", j.Name(), j.ID(), interval))
	return nil
}

func (s *Scheduler) runReconcile(r reconciler) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	drifts, err := r.Reconcile(ctx)
	if err != nil {
		s.logger.Error("SCHEDULER", fmt.Sprintf("Reconcile failed: %v", err))
		return
	}
	if len(drifts) > 0 {
		s.logger.Warn("SCHEDULER", fmt.Sprintf("Reconcile repaired %d counters", len(drifts)))
	}
}

func (s *Scheduler) Jobs() int {
	return len(s.inner.Jobs())
}

func (s *Scheduler) Start() {
	s.inner.Start()
}

func (s *Scheduler) Shutdown() error {
	return s.inner.Shutdown()
}
