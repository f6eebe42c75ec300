package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/papersift/internal/core/domain"
	"github.com/vietddude/papersift/internal/infra/storage"
)

// FailedRecord is the payload kept for a record whose classification failed.
type FailedRecord struct {
	RunID      string    `json:"run_id"`
	RecordID   string    `json:"record_id"`
	Title      string    `json:"title"`
	Error      string    `json:"error"`
	Attempts   int       `json:"attempts"`
	Credential string    `json:"credential"`
	FailedAt   time.Time `json:"failed_at"`
}

// FailedRecordRepo keeps a queue of failed records in Redis, ordered by
// attempts. A later success for the same record removes it.
type FailedRecordRepo struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ storage.ResultMirror = (*FailedRecordRepo)(nil)

// NewFailedRecordRepo creates a new Redis-backed failed record repository.
func NewFailedRecordRepo(client *Client, ttl time.Duration) *FailedRecordRepo {
	if ttl <= 0 {
		ttl = defaultProgressTTL
	}
	return &FailedRecordRepo{rdb: client.rdb, ttl: ttl}
}

// Name identifies the sink.
func (r *FailedRecordRepo) Name() string { return "redis_failed" }

// Save adds a failed result to the queue, or resolves it on success.
func (r *FailedRecordRepo) Save(
	ctx context.Context,
	runID string,
	rec domain.Record,
	res domain.ClassificationResult,
) error {
	if res.Succeeded {
		return r.MarkResolved(ctx, res.RecordID)
	}

	data, err := json.Marshal(FailedRecord{
		RunID:      runID,
		RecordID:   res.RecordID,
		Title:      rec.Title,
		Error:      res.ErrorDetail,
		Attempts:   res.Attempts,
		Credential: res.CredentialSuffix,
		FailedAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal failed record: %w", err)
	}

	// Store the data
	if err := r.rdb.Set(ctx, failedRecordKey(res.RecordID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set failed record: %w", err)
	}

	// Score = attempts, fewer attempts sort first
	if err := r.rdb.ZAdd(ctx, failedQueueKey(), redis.Z{
		Score:  float64(res.Attempts),
		Member: res.RecordID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to add to queue: %w", err)
	}

	return nil
}

// MarkResolved removes a record from the queue.
func (r *FailedRecordRepo) MarkResolved(ctx context.Context, recordID string) error {
	if err := r.rdb.ZRem(ctx, failedQueueKey(), recordID).Err(); err != nil {
		return fmt.Errorf("failed to remove from queue: %w", err)
	}
	if err := r.rdb.Del(ctx, failedRecordKey(recordID)).Err(); err != nil {
		return fmt.Errorf("failed to delete failed record: %w", err)
	}
	return nil
}

// GetAll retrieves all failed records still present.
func (r *FailedRecordRepo) GetAll(ctx context.Context) ([]*FailedRecord, error) {
	ids, err := r.rdb.ZRange(ctx, failedQueueKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange failed: %w", err)
	}

	records := make([]*FailedRecord, 0, len(ids))
	for _, id := range ids {
		data, err := r.rdb.Get(ctx, failedRecordKey(id)).Bytes()
		if err == redis.Nil {
			// Data expired but id still queued
			r.rdb.ZRem(ctx, failedQueueKey(), id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get failed record: %w", err)
		}

		var fr FailedRecord
		if err := json.Unmarshal(data, &fr); err != nil {
			continue
		}
		records = append(records, &fr)
	}

	return records, nil
}

// Count returns the number of queued failed records.
func (r *FailedRecordRepo) Count(ctx context.Context) (int, error) {
	count, err := r.rdb.ZCard(ctx, failedQueueKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard failed: %w", err)
	}
	return int(count), nil
}
