package database

import (
	"context"

	"github.com/rishabhpatre/ai-news-agent/app/item"
	"github.com/rishabhpatre/ai-news-agent/app/pipeline"
)

// DigestStore is the archive as seen by the task worker and the API.
type DigestStore interface {
	SaveDigest(ctx context.Context, d *pipeline.Digest) error
	GetDigest(ctx context.Context, id string) (*pipeline.Digest, error)
	LatestDigest(ctx context.Context) (*pipeline.Digest, error)
	ListDigests(ctx context.Context, limit int) ([]DigestSummary, error)
	SourceFailureCounts(ctx context.Context, digests int) ([]SourceFailures, error)
	DigestFailures(ctx context.Context, digestID string) ([]item.Failure, error)
}

var _ DigestStore = (*DigestRepository)(nil)
