package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/vietddude/papersift/internal/pipeline/scheduler"
)

const defaultProgressTTL = 7 * 24 * time.Hour

// ProgressPublisher mirrors run counters into Redis so other processes can
// follow a run. It implements scheduler.Reporter.
type ProgressPublisher struct {
	client *Client
	ttl    time.Duration
}

var _ scheduler.Reporter = (*ProgressPublisher)(nil)

// NewProgressPublisher creates a publisher. A zero ttl uses one week.
func NewProgressPublisher(client *Client, ttl time.Duration) *ProgressPublisher {
	if ttl <= 0 {
		ttl = defaultProgressTTL
	}
	return &ProgressPublisher{client: client, ttl: ttl}
}

// Report records one completion.
func (p *ProgressPublisher) Report(ctx context.Context, prog scheduler.Progress) error {
	key := runKey(prog.RunID)
	done := doneKey(prog.RunID)

	pipe := p.client.rdb.TxPipeline()
	pipe.HSet(ctx, key, "total", prog.Total)
	pipe.HIncrBy(ctx, key, "completed", 1)
	switch {
	case !prog.Row.Succeeded():
		pipe.HIncrBy(ctx, key, "failed", 1)
	case prog.Row.IsPositive():
		pipe.HIncrBy(ctx, key, "positive", 1)
	}
	pipe.HSet(ctx, key, "updated_at", time.Now().Unix())
	pipe.SAdd(ctx, done, prog.Row.RecordID())
	pipe.Expire(ctx, key, p.ttl)
	pipe.Expire(ctx, done, p.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish progress: %w", err)
	}
	return nil
}

// RunStats is the published state of one run.
type RunStats struct {
	Total     int
	Completed int
	Positive  int
	Failed    int
	UpdatedAt time.Time
}

// RunStats reads back the counters of runID.
func (p *ProgressPublisher) RunStats(ctx context.Context, runID string) (RunStats, error) {
	vals, err := p.client.rdb.HGetAll(ctx, runKey(runID)).Result()
	if err != nil {
		return RunStats{}, fmt.Errorf("hgetall failed: %w", err)
	}

	atoi := func(k string) int {
		n, _ := strconv.Atoi(vals[k])
		return n
	}
	stats := RunStats{
		Total:     atoi("total"),
		Completed: atoi("completed"),
		Positive:  atoi("positive"),
		Failed:    atoi("failed"),
	}
	if ts := atoi("updated_at"); ts > 0 {
		stats.UpdatedAt = time.Unix(int64(ts), 0)
	}
	return stats, nil
}

// IsDone reports whether recordID completed in runID.
func (p *ProgressPublisher) IsDone(ctx context.Context, runID, recordID string) (bool, error) {
	ok, err := p.client.rdb.SIsMember(ctx, doneKey(runID), recordID).Result()
	if err != nil {
		return false, fmt.Errorf("sismember failed: %w", err)
	}
	return ok, nil
}
