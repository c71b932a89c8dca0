package tasks

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rishabhpatre/ai-news-agent/app/metrics"
	"github.com/rishabhpatre/ai-news-agent/app/pipeline"
)

type fakeRunner struct {
	calls atomic.Int32
	err   error
}

func (f *fakeRunner) Run(ctx context.Context) (*pipeline.Digest, error) {
	n := f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.Digest{ID: "digest-" + string(rune('0'+n)), GeneratedAt: time.Now().UTC()}, nil
}

type fakeArchive struct {
	mu       sync.Mutex
	failures int
	saved    []string
	done     chan string
}

func (f *fakeArchive) SaveDigest(ctx context.Context, d *pipeline.Digest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("database is locked")
	}
	f.saved = append(f.saved, d.ID)
	if f.done != nil {
		f.done <- d.ID
	}
	return nil
}

type fakePublisher struct {
	err  error
	done chan string
}

func (f *fakePublisher) Publish(ctx context.Context, d *pipeline.Digest) error {
	if f.err != nil {
		return f.err
	}
	f.done <- d.ID
	return nil
}

func waitFor(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for task")
		return ""
	}
}

func testConfig() SchedulerConfig {
	return SchedulerConfig{WorkerCount: 2, RetryDelay: 10 * time.Millisecond}
}

func TestTriggerRunArchivesAndPublishes(t *testing.T) {
	runner := &fakeRunner{}
	archive := &fakeArchive{done: make(chan string, 1)}
	publisher := &fakePublisher{done: make(chan string, 1)}

	s, err := NewScheduler(testConfig(), runner, archive, publisher, nil)
	if err != nil {
		t.Fatal(err)
	}
	s.Start()
	defer s.Stop()

	id, err := s.TriggerRun("test")
	if err != nil {
		t.Fatalf("Expected run to be enqueued, got %v", err)
	}
	if id == "" {
		t.Error("Expected task id")
	}

	saved := waitFor(t, archive.done)
	published := waitFor(t, publisher.done)
	if saved != published {
		t.Errorf("Expected the archived digest to be published, got %s and %s", saved, published)
	}
	if runner.calls.Load() != 1 {
		t.Errorf("Expected 1 pipeline run, got %d", runner.calls.Load())
	}
}

func TestTriggerRunRejectsConcurrentRuns(t *testing.T) {
	s, err := NewScheduler(testConfig(), &fakeRunner{}, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	// Workers are not started, so the first run stays queued.
	if _, err := s.TriggerRun("first"); err != nil {
		t.Fatalf("Expected first run to be enqueued, got %v", err)
	}
	if !s.Running() {
		t.Error("Expected a run to be pending")
	}
	if _, err := s.TriggerRun("second"); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("Expected ErrRunInProgress, got %v", err)
	}
}

func TestRunReleasedAfterCompletion(t *testing.T) {
	archive := &fakeArchive{done: make(chan string, 2)}
	s, err := NewScheduler(testConfig(), &fakeRunner{}, archive, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	s.Start()
	defer s.Stop()

	if _, err := s.TriggerRun("first"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, archive.done)

	deadline := time.Now().Add(5 * time.Second)
	for s.Running() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := s.TriggerRun("second"); err != nil {
		t.Errorf("Expected a new run after completion, got %v", err)
	}
}

func TestArchiveFailureRetriesWithoutRerun(t *testing.T) {
	runner := &fakeRunner{}
	archive := &fakeArchive{failures: 1, done: make(chan string, 1)}

	s, err := NewScheduler(testConfig(), runner, archive, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	s.Start()
	defer s.Stop()

	if _, err := s.TriggerRun("test"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, archive.done)

	if runner.calls.Load() != 1 {
		t.Errorf("Expected the digest to be reused on retry, got %d pipeline runs", runner.calls.Load())
	}
}

func TestInvalidSchedule(t *testing.T) {
	config := testConfig()
	config.Schedule = "every morning"

	_, err := NewScheduler(config, &fakeRunner{}, nil, nil, nil)
	if err == nil {
		t.Fatal("Expected error for invalid cron expression")
	}
	if !strings.Contains(err.Error(), "every morning") {
		t.Errorf("Expected schedule in error, got %v", err)
	}
}

func TestValidScheduleRegistersEntry(t *testing.T) {
	config := testConfig()
	config.Schedule = "0 7 * * *"
	config.Location = time.UTC

	s, err := NewScheduler(config, &fakeRunner{}, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	if len(s.cron.Entries()) != 1 {
		t.Errorf("Expected 1 cron entry, got %d", len(s.cron.Entries()))
	}
}

func TestBackoff(t *testing.T) {
	s := &Scheduler{retryDelay: time.Second}

	tests := []struct {
		retry int
		want  time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{6, 30 * time.Second},
		{40, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := s.backoff(tt.retry); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.retry, got, tt.want)
		}
	}
}

func TestEnqueueAfterStop(t *testing.T) {
	s, err := NewScheduler(testConfig(), &fakeRunner{}, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	s.Start()
	s.Stop()

	if _, err := s.TriggerRun("late"); err == nil {
		t.Error("Expected error enqueueing after stop")
	}
	if s.Running() {
		t.Error("Expected failed trigger to release the run slot")
	}
}

func TestRunDigestTaskError(t *testing.T) {
	task := NewRunDigestTask("test", &fakeRunner{err: context.Canceled}, nil)

	err := task.Execute(context.Background())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected wrapped runner error, got %v", err)
	}
	if task.Digest() != nil {
		t.Error("Expected no digest after failed run")
	}
	if task.GetType() != TaskTypeRunDigest || task.GetMaxRetries() != 1 {
		t.Errorf("Unexpected task metadata: %s / %d", task.GetType(), task.GetMaxRetries())
	}
}

func TestPublishDigestTaskMetrics(t *testing.T) {
	m := metrics.NewCollector()
	digest := &pipeline.Digest{ID: "d-1"}

	ok := NewPublishDigestTask(digest, &fakePublisher{done: make(chan string, 1)}, m)
	if err := ok.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if ok.GetSubject() != "d-1" {
		t.Errorf("Expected digest id as subject, got %s", ok.GetSubject())
	}

	failing := NewPublishDigestTask(digest, &fakePublisher{err: errors.New("connection refused")}, m)
	if err := failing.Execute(context.Background()); err == nil {
		t.Fatal("Expected publish error")
	}

	if got := testutil.ToFloat64(m.Publishes.WithLabelValues("success")); got != 1 {
		t.Errorf("Expected 1 successful publish, got %v", got)
	}
	if got := testutil.ToFloat64(m.Publishes.WithLabelValues("failure")); got != 1 {
		t.Errorf("Expected 1 failed publish, got %v", got)
	}
}

func TestTaskRetryAccounting(t *testing.T) {
	task := NewTask(TaskTypePublishDigest, "d-1")
	if task.ID == "" {
		t.Error("Expected generated id")
	}
	for i := 0; i < DefaultMaxRetries; i++ {
		if !task.CanRetry() {
			t.Fatalf("Expected retry %d to be allowed", i+1)
		}
		task.IncrementRetryCount()
	}
	if task.CanRetry() {
		t.Error("Expected retries to be exhausted")
	}
	if task.GetDuration() != 0 {
		t.Error("Expected zero duration before start")
	}
}
