package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/qinqiang2000/redflush-matcher/model"
	"github.com/redis/go-redis/v9"
)

// BillMatcher is satisfied by both SKUCentricMatcher and
// InvoiceCentricMatcher.
type BillMatcher interface {
	MatchBill(ctx context.Context, billID int64) (model.MatchStats, error)
}

// RedisLocker takes a best-effort per-bill lock so two concurrent driver
// processes never match the same bill at once. Absence of a Locker on
// Driver disables locking entirely; it is never required for correctness
// in a single-process deployment.
type RedisLocker struct {
	Client *redis.Client
	TTL    time.Duration
}

// NewRedisLocker mirrors the simple connect-and-ping construction used
// elsewhere in the retrieved pack for a redis.Client wrapper.
func NewRedisLocker(redisURL string, ttl time.Duration) (*RedisLocker, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisLocker{Client: client, TTL: ttl}, nil
}

// Acquire takes the lock for billID. ok is false when another process
// already holds it; the caller should skip the bill in that case.
func (l *RedisLocker) Acquire(ctx context.Context, billID int64) (ok bool, unlock func(), err error) {
	key := fmt.Sprintf("redflush:lock:bill:%d", billID)
	acquired, err := l.Client.SetNX(ctx, key, 1, l.TTL).Result()
	if err != nil {
		return false, func() {}, fmt.Errorf("acquire lock for bill %d: %w", billID, err)
	}
	if !acquired {
		return false, func() {}, nil
	}
	return true, func() { l.Client.Del(context.Background(), key) }, nil
}

func (l *RedisLocker) Close() error { return l.Client.Close() }

// Driver iterates bill ids, invokes the configured matcher, and collects
// MatchStats (C8).
type Driver struct {
	Matcher BillMatcher
	Logger  *slog.Logger
	Locker  *RedisLocker // optional
}

func (d *Driver) runOne(ctx context.Context, billID int64, skipMissing bool, logger *slog.Logger) (*model.MatchStats, error) {
	if d.Locker != nil {
		acquired, unlock, err := d.Locker.Acquire(ctx, billID)
		if err != nil {
			return nil, err
		}
		if !acquired {
			logger.Warn("bill_locked_elsewhere", "bill_id", billID)
			return nil, nil
		}
		defer unlock()
	}

	stats, err := d.Matcher.MatchBill(ctx, billID)
	if err != nil {
		if skipMissing && errors.Is(err, ErrMissingBill) {
			logger.Info("bill_skipped_missing", "bill_id", billID)
			return nil, nil
		}
		return nil, err
	}
	return &stats, nil
}

// RunBatch matches every bill id in order. When skipMissing is true (the
// v1/SKU-centric contract), a missing bill is logged and skipped rather
// than aborting the batch; when false (v2/invoice-centric), any per-bill
// error aborts the remainder and is returned.
func (d *Driver) RunBatch(ctx context.Context, billIDs []int64, skipMissing bool) ([]model.MatchStats, error) {
	runID := uuid.NewString()
	logger := d.Logger.With("run_id", runID)
	logger.Info("batch_started", "bill_count", len(billIDs))

	var allStats []model.MatchStats
	for _, id := range billIDs {
		stats, err := d.runOne(ctx, id, skipMissing, logger)
		if err != nil {
			return allStats, fmt.Errorf("bill %d: %w", id, err)
		}
		if stats != nil {
			allStats = append(allStats, *stats)
		}
	}

	logger.Info("batch_finished", "matched_count", len(allStats))
	return allStats, nil
}
