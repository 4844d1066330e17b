package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Job: периодическая задача. Ошибка только логируется.
type Job func(ctx context.Context) error

type Scheduler struct {
	cron    *cron.Cron
	logger  *log.Logger
	timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a scheduler whose jobs each get at most timeout to finish.
// Specs use the standard five-field format or descriptors such as "@every 5m".
func New(logger *log.Logger, timeout time.Duration) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	cronLogger := cron.PrintfLogger(logger)
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		)),
		logger:  logger,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (s *Scheduler) AddJob(spec, name string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() { s.run(name, job) })
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	return nil
}

func (s *Scheduler) run(name string, job Job) {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	if err := job(ctx); err != nil {
		s.logger.Printf("job %s failed: %v", name, err)
		return
	}
	s.logger.Printf("job %s done in %s", name, time.Since(start).Round(time.Millisecond))
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
