// Package snapshot persists the last computed total balance per user so
// the next session can display a placeholder before the first live
// aggregation lands. The snapshot is never authoritative.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/autogcm/rewards-ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const keyPrefix = "rewards:balance"

// Store reads and writes per-user balance snapshots in redis.
type Store struct {
	redis redis.Cmdable
	ttl   time.Duration
}

func NewStore(redis redis.Cmdable, ttl time.Duration) *Store {
	return &Store{redis: redis, ttl: ttl}
}

// Seed returns the cached total for the user, and whether one existed.
// Read failures are treated as a miss; the placeholder is cosmetic.
func (s *Store) Seed(ctx context.Context, userID uuid.UUID) (decimal.Decimal, bool) {
	if s == nil || s.redis == nil {
		return decimal.Zero, false
	}
	val, err := s.redis.Get(ctx, snapshotKey(userID)).Result()
	if err != nil {
		if err != redis.Nil {
			zap.L().Warn("balance snapshot read failed", zap.Error(err), zap.String("user_id", userID.String()))
		}
		return decimal.Zero, false
	}
	total, err := domain.ParsePoints(val)
	if err != nil {
		zap.L().Warn("balance snapshot corrupt", zap.Error(err), zap.String("user_id", userID.String()))
		return decimal.Zero, false
	}
	return total, true
}

// Save overwrites the snapshot after a successful aggregation, whether
// or not the value changed. Best effort.
func (s *Store) Save(ctx context.Context, userID uuid.UUID, total decimal.Decimal) {
	if s == nil || s.redis == nil {
		return
	}
	if err := s.redis.Set(ctx, snapshotKey(userID), domain.FormatPoints(total), s.ttl).Err(); err != nil {
		zap.L().Warn("balance snapshot write failed", zap.Error(err), zap.String("user_id", userID.String()))
	}
}

func snapshotKey(userID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", keyPrefix, userID)
}
