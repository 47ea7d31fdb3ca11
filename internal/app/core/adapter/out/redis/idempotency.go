package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
)

const (
	keyPrefix  = "idempotency:"
	lockPrefix = "idempotency:lock:"
)

// IdempotencyRepository 以 Redis 保存 Idempotency-Key 的回應
type IdempotencyRepository struct {
	client redis.UniversalClient
}

func NewIdempotencyRepository(client redis.UniversalClient) *IdempotencyRepository {
	return &IdempotencyRepository{client: client}
}

// Get 找不到 (cache miss) 時回傳 nil, nil
func (r *IdempotencyRepository) Get(ctx context.Context, key string) (*usecase.CachedResponse, error) {
	val, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get idempotency key: %w", err)
	}

	var resp usecase.CachedResponse
	if err := json.Unmarshal(val, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached response: %w", err)
	}
	return &resp, nil
}

// Save 以 SET NX 寫入，同一個 key 只保留第一次的回應
func (r *IdempotencyRepository) Save(ctx context.Context, key string, response usecase.CachedResponse, ttl time.Duration) error {
	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	if err := r.client.SetNX(ctx, keyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save idempotency key: %w", err)
	}
	return nil
}

// Lock 以 SET NX 取得處理中標記，ttl 到期後自動釋放
func (r *IdempotencyRepository) Lock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, lockPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to lock idempotency key: %w", err)
	}
	return ok, nil
}

// Unlock 釋放處理中標記
func (r *IdempotencyRepository) Unlock(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, lockPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to unlock idempotency key: %w", err)
	}
	return nil
}

var _ usecase.IdempotencyRepository = (*IdempotencyRepository)(nil)
