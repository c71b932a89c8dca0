package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rishabhpatre/ai-news-agent/app/item"
	"github.com/rishabhpatre/ai-news-agent/app/pipeline"
)

// DigestSummary is a digest without its sections.
type DigestSummary struct {
	ID          string         `json:"id"`
	GeneratedAt time.Time      `json:"generated_at"`
	Highlighted int            `json:"highlighted"`
	Stats       pipeline.Stats `json:"stats"`
}

// SourceFailures counts how often a source failed over the inspected digests.
type SourceFailures struct {
	Source     string `json:"source"`
	Failures   int    `json:"failures"`
	LastReason string `json:"last_reason"`
}

// DigestRepository handles database operations for digests
type DigestRepository struct {
	db *DB
}

func NewDigestRepository(db *DB) *DigestRepository {
	return &DigestRepository{db: db}
}

// SaveDigest stores a digest and its source failures. Saving the same digest
// again is a no-op.
func (r *DigestRepository) SaveDigest(ctx context.Context, d *pipeline.Digest) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal digest: %w", err)
	}
	stats, err := json.Marshal(d.Stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO digests (id, generated_at, highlighted, stats, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`, d.ID, d.GeneratedAt.UTC().UnixMilli(), d.Highlighted(), string(stats), string(payload), time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert digest: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	for _, f := range d.Failures {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO digest_failures (digest_id, source, reason)
			VALUES (?, ?, ?)
		`, d.ID, f.SourceID, f.Reason)
		if err != nil {
			return fmt.Errorf("failed to insert failure for %s: %w", f.SourceID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit digest: %w", err)
	}
	return nil
}

// GetDigest returns nil when no digest has the given id.
func (r *DigestRepository) GetDigest(ctx context.Context, id string) (*pipeline.Digest, error) {
	row := r.db.QueryRowContext(ctx, `SELECT payload FROM digests WHERE id = ?`, id)
	return scanDigest(row)
}

// LatestDigest returns nil when the archive is empty.
func (r *DigestRepository) LatestDigest(ctx context.Context) (*pipeline.Digest, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT payload FROM digests
		ORDER BY generated_at DESC, created_at DESC
		LIMIT 1
	`)
	return scanDigest(row)
}

func scanDigest(row *sql.Row) (*pipeline.Digest, error) {
	var payload string
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get digest: %w", err)
	}

	var d pipeline.Digest
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		return nil, fmt.Errorf("failed to decode digest: %w", err)
	}
	return &d, nil
}

// ListDigests returns the newest digests first.
func (r *DigestRepository) ListDigests(ctx context.Context, limit int) ([]DigestSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, generated_at, highlighted, stats
		FROM digests
		ORDER BY generated_at DESC, created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query digests: %w", err)
	}
	defer rows.Close()

	summaries := []DigestSummary{}
	for rows.Next() {
		var (
			s           DigestSummary
			generatedAt int64
			stats       string
		)
		if err := rows.Scan(&s.ID, &generatedAt, &s.Highlighted, &stats); err != nil {
			return nil, fmt.Errorf("failed to scan digest: %w", err)
		}
		if err := json.Unmarshal([]byte(stats), &s.Stats); err != nil {
			return nil, fmt.Errorf("failed to decode stats of %s: %w", s.ID, err)
		}
		s.GeneratedAt = time.UnixMilli(generatedAt).UTC()
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating digests: %w", err)
	}
	return summaries, nil
}

// SourceFailureCounts aggregates failures over the newest `digests` digests,
// most failing source first.
func (r *DigestRepository) SourceFailureCounts(ctx context.Context, digests int) ([]SourceFailures, error) {
	rows, err := r.db.QueryContext(ctx, `
		WITH recent AS (
			SELECT id, generated_at FROM digests ORDER BY generated_at DESC LIMIT ?
		)
		SELECT f.source, COUNT(*) AS failures,
			(SELECT f2.reason FROM digest_failures f2
			 JOIN recent r2 ON r2.id = f2.digest_id
			 WHERE f2.source = f.source
			 ORDER BY r2.generated_at DESC LIMIT 1) AS last_reason
		FROM digest_failures f
		JOIN recent r ON r.id = f.digest_id
		GROUP BY f.source
		ORDER BY failures DESC, f.source ASC
	`, digests)
	if err != nil {
		return nil, fmt.Errorf("failed to query source failures: %w", err)
	}
	defer rows.Close()

	counts := []SourceFailures{}
	for rows.Next() {
		var c SourceFailures
		if err := rows.Scan(&c.Source, &c.Failures, &c.LastReason); err != nil {
			return nil, fmt.Errorf("failed to scan source failures: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source failures: %w", err)
	}
	return counts, nil
}

// DigestFailures lists the failures recorded for one digest, by source.
func (r *DigestRepository) DigestFailures(ctx context.Context, digestID string) ([]item.Failure, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT source, reason FROM digest_failures
		WHERE digest_id = ?
		ORDER BY source
	`, digestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query failures: %w", err)
	}
	defer rows.Close()

	var failures []item.Failure
	for rows.Next() {
		var f item.Failure
		if err := rows.Scan(&f.SourceID, &f.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}
