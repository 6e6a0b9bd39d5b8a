package jobs

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"mediashare/internal/metrics"
	"mediashare/internal/tasks"
)

// Enqueuer publishes maintenance tasks for the worker.
type Enqueuer interface {
	Enqueue(ctx context.Context, task tasks.Task) (string, error)
}

// Scheduler runs periodic work. Remote jobs are enqueued for cmd/worker; local jobs run
// in process.
type Scheduler struct {
	cron  *cron.Cron
	queue Enqueuer
	clock clock.Clock
	log   zerolog.Logger
}

func NewScheduler(queue Enqueuer, clk clock.Clock, log zerolog.Logger) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	return &Scheduler{
		cron:  cron.New(cron.WithSeconds()),
		queue: queue,
		clock: clk,
		log:   log,
	}
}

// ScheduleCleanup enqueues an orphan sweep on spec. Without a queue there is no worker
// to run it and nothing is scheduled.
func (s *Scheduler) ScheduleCleanup(spec string) error {
	if s.queue == nil {
		s.log.Warn().Msg("no task queue configured; orphan sweep disabled")
		return nil
	}
	_, err := s.cron.AddFunc(spec, func() {
		if _, err := s.EnqueueCleanup(context.Background()); err != nil {
			s.log.Error().Err(err).Msg("enqueue cleanup failed")
		}
	})
	return err
}

// ScheduleLocal runs fn in process on spec.
func (s *Scheduler) ScheduleLocal(spec, name string, fn func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		err := fn(ctx)
		metrics.RecordTask(name, err)
		if err != nil {
			s.log.Error().Err(err).Str("job", name).Msg("scheduled job failed")
		}
	})
	return err
}

func (s *Scheduler) EnqueueCleanup(ctx context.Context) (string, error) {
	task := tasks.New(tasks.TypeCleanup, s.clock.Now())
	entryID, err := s.queue.Enqueue(ctx, task)
	if err != nil {
		return "", err
	}
	s.log.Info().Str("task_id", task.ID).Str("entry_id", entryID).Msg("cleanup task enqueued")
	return task.ID, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn().Msg("scheduler stop timed out with jobs still running")
	}
}
