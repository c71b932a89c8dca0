package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rishabhpatre/ai-news-agent/app/metrics"
	"github.com/rishabhpatre/ai-news-agent/app/pipeline"
)

type PublishDigestTask struct {
	Task
	digest    *pipeline.Digest
	publisher Publisher
	metrics   *metrics.Collector
}

func NewPublishDigestTask(digest *pipeline.Digest, publisher Publisher, m *metrics.Collector) *PublishDigestTask {
	return &PublishDigestTask{
		Task:      NewTask(TaskTypePublishDigest, digest.ID),
		digest:    digest,
		publisher: publisher,
		metrics:   m,
	}
}

func (t *PublishDigestTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	err := t.publisher.Publish(ctx, t.digest)
	if t.metrics != nil {
		t.metrics.ObservePublish(err)
	}
	if err != nil {
		return fmt.Errorf("failed to publish digest: %w", err)
	}

	slog.Info("Task completed",
		"type", "PublishDigest",
		"digest", t.digest.ID,
		"duration", t.GetDuration())

	return nil
}
