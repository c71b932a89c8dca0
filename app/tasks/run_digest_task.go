package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rishabhpatre/ai-news-agent/app/pipeline"
)

// RunDigestTask runs the pipeline, archives the digest and hands it to the
// publish task. A digest that was produced but not archived is kept on the
// task, so a retry only repeats the archive step.
type RunDigestTask struct {
	Task
	runner   Runner
	archive  Archive
	enqueuer func(TaskInterface) error
	newPub   func(*pipeline.Digest) TaskInterface
	digest   *pipeline.Digest
}

func NewRunDigestTask(trigger string, runner Runner, archive Archive) *RunDigestTask {
	t := &RunDigestTask{
		Task:    NewTask(TaskTypeRunDigest, trigger),
		runner:  runner,
		archive: archive,
	}
	// Sources are retried inside the run.
	t.MaxRetries = 1
	return t
}

// ThenPublish makes a successful run enqueue a follow-up task built by newTask.
func (t *RunDigestTask) ThenPublish(enqueue func(TaskInterface) error, newTask func(*pipeline.Digest) TaskInterface) {
	t.enqueuer = enqueue
	t.newPub = newTask
}

func (t *RunDigestTask) Digest() *pipeline.Digest {
	return t.digest
}

func (t *RunDigestTask) Execute(ctx context.Context) error {
	if t.digest == nil {
		digest, err := t.runner.Run(ctx)
		if err != nil {
			return fmt.Errorf("failed to run digest pipeline: %w", err)
		}
		t.digest = digest
	}

	if t.archive != nil {
		if err := t.archive.SaveDigest(ctx, t.digest); err != nil {
			return fmt.Errorf("failed to archive digest %s: %w", t.digest.ID, err)
		}
	}

	if t.enqueuer != nil && t.newPub != nil {
		if err := t.enqueuer(t.newPub(t.digest)); err != nil {
			slog.Warn("Failed to enqueue PublishDigestTask", "digest", t.digest.ID, "error", err)
		}
	}

	slog.Info("Task completed",
		"type", "RunDigest",
		"trigger", t.Subject,
		"digest", t.digest.ID,
		"highlighted", t.digest.Highlighted(),
		"failures", len(t.digest.Failures),
		"duration", t.GetDuration())

	return nil
}
