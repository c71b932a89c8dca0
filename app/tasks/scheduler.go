package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rishabhpatre/ai-news-agent/app/metrics"
	"github.com/rishabhpatre/ai-news-agent/app/pipeline"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

var ErrRunInProgress = errors.New("a digest run is already queued or running")

const (
	defaultQueueSize   = 300
	defaultTaskTimeout = 5 * time.Minute
	maxRetryDelay      = 30 * time.Second
)

type SchedulerConfig struct {
	Schedule    string         // cron expression, empty disables the timer
	Location    *time.Location // defaults to time.Local
	RunOnStart  bool
	WorkerCount int
	TaskTimeout time.Duration
	RetryDelay  time.Duration // base of the exponential retry backoff
}

type Scheduler struct {
	runner      Runner
	archive     Archive
	publisher   Publisher
	metrics     *metrics.Collector
	cron        *cron.Cron
	runOnStart  bool
	workerCount int
	taskTimeout time.Duration
	retryDelay  time.Duration
	running     atomic.Bool
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
}

// NewScheduler validates the cron expression up front. archive and publisher may be
// nil, in which case the matching step is skipped.
func NewScheduler(config SchedulerConfig, runner Runner, archive Archive, publisher Publisher, m *metrics.Collector) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		runner:      runner,
		archive:     archive,
		publisher:   publisher,
		metrics:     m,
		runOnStart:  config.RunOnStart,
		workerCount: max(config.WorkerCount, 1),
		taskTimeout: config.TaskTimeout,
		retryDelay:  config.RetryDelay,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, defaultQueueSize),
	}
	if s.taskTimeout <= 0 {
		s.taskTimeout = defaultTaskTimeout
	}
	if s.retryDelay <= 0 {
		s.retryDelay = time.Second
	}

	loc := config.Location
	if loc == nil {
		loc = time.Local
	}
	s.cron = cron.New(cron.WithLocation(loc))

	if config.Schedule != "" {
		if _, err := s.cron.AddFunc(config.Schedule, func() {
			if _, err := s.TriggerRun("cron"); err != nil {
				slog.Warn("Scheduled run skipped", "error", err)
			}
		}); err != nil {
			cancel()
			return nil, fmt.Errorf("invalid schedule %q: %w", config.Schedule, err)
		}
	}

	return s, nil
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.cron.Start()
	for _, entry := range s.cron.Entries() {
		slog.Info("Digest run scheduled", "next", entry.Next.Format(time.RFC3339))
	}

	if s.runOnStart {
		if _, err := s.TriggerRun("startup"); err != nil {
			slog.Warn("Failed to enqueue startup run", "error", err)
		}
	}
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// TriggerRun enqueues a digest run unless one is already pending. It
// returns the id of the queued task.
func (s *Scheduler) TriggerRun(trigger string) (string, error) {
	if !s.running.CompareAndSwap(false, true) {
		return "", ErrRunInProgress
	}

	task := NewRunDigestTask(trigger, s.runner, s.archive)
	if s.publisher != nil {
		task.ThenPublish(s.EnqueueTask, func(d *pipeline.Digest) TaskInterface {
			return NewPublishDigestTask(d, s.publisher, s.metrics)
		})
	}

	if err := s.EnqueueTask(task); err != nil {
		s.running.Store(false)
		return "", err
	}

	slog.Debug("Digest run enqueued", "trigger", trigger, "id", task.ID)
	return task.ID, nil
}

// Running reports whether a digest run is queued or in flight.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, s.taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		s.finish(task)
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		s.finish(task)
		return
	}

	task.IncrementRetryCount()
	retryDelay := s.backoff(task.GetRetryCount())

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(retryDelay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
			s.finish(task)
		case <-timer.C:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
				s.finish(task)
			}
		}
	}()
}

func (s *Scheduler) backoff(retry int) time.Duration {
	delay := s.retryDelay
	for i := 1; i < retry && delay < maxRetryDelay; i++ {
		delay *= 2
	}
	return min(delay, maxRetryDelay)
}

func (s *Scheduler) finish(task TaskInterface) {
	if task.GetType() == TaskTypeRunDigest {
		s.running.Store(false)
	}
}
