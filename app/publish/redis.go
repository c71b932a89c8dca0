package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rishabhpatre/ai-news-agent/app/pipeline"
)

const DefaultTTL = 7 * 24 * time.Hour

// Publisher hands finished digests to downstream renderers through Redis:
// the newest digest is kept under a key and announced on a channel.
type Publisher struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// NewPublisher connects to Redis and verifies the connection.
func NewPublisher(ctx context.Context, opts Options) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     4,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Connected to Redis", "addr", opts.Addr, "prefix", opts.Prefix)

	return newPublisher(client, opts), nil
}

func newPublisher(client *redis.Client, opts Options) *Publisher {
	p := &Publisher{client: client, prefix: opts.Prefix, ttl: opts.TTL}
	if p.prefix == "" {
		p.prefix = "ai-news"
	}
	if p.ttl <= 0 {
		p.ttl = DefaultTTL
	}
	return p
}

func (p *Publisher) LatestKey() string {
	return p.prefix + ":latest"
}

func (p *Publisher) DigestKey(id string) string {
	return fmt.Sprintf("%s:digest:%s", p.prefix, id)
}

func (p *Publisher) Channel() string {
	return p.prefix + ":digests"
}

// Publish stores the digest under its own key and the latest key, then
// announces its id. The writes go out in one transaction.
func (p *Publisher) Publish(ctx context.Context, d *pipeline.Digest) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal digest %s: %w", d.ID, err)
	}

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, p.DigestKey(d.ID), data, p.ttl)
		pipe.Set(ctx, p.LatestKey(), data, p.ttl)
		pipe.Publish(ctx, p.Channel(), d.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish digest %s: %w", d.ID, err)
	}

	slog.Debug("Digest published", "digest", d.ID, "key", p.LatestKey(), "channel", p.Channel())
	return nil
}

func (p *Publisher) Close() error {
	return p.client.Close()
}
