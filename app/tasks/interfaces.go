package tasks

import (
	"context"

	"github.com/rishabhpatre/ai-news-agent/app/database"
	"github.com/rishabhpatre/ai-news-agent/app/pipeline"
	"github.com/rishabhpatre/ai-news-agent/app/publish"
)

// TaskSchedulerInterface is what the API needs from the scheduler.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	TriggerRun(trigger string) (string, error)
}

// Runner produces one digest per call.
type Runner interface {
	Run(ctx context.Context) (*pipeline.Digest, error)
}

type Archive interface {
	SaveDigest(ctx context.Context, d *pipeline.Digest) error
}

type Publisher interface {
	Publish(ctx context.Context, d *pipeline.Digest) error
}

var (
	_ Runner    = (*pipeline.Pipeline)(nil)
	_ Archive   = (database.DigestStore)(nil)
	_ Publisher = (*publish.Publisher)(nil)
)
