package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

type (
	// QueueService wraps the redis list operations the relay uses to hold
	// messages for recipients that are offline.
	QueueService struct {
		rdb *redis.Client
	}
)

func NewQueue(rdb *redis.Client) *QueueService {
	return &QueueService{
		rdb: rdb,
	}
}

func (r *QueueService) RPush(ctx context.Context, key string, value ...any) error {
	return r.rdb.RPush(ctx, key, value...).Err()
}

func (r *QueueService) LRange(ctx context.Context, key string) ([]string, error) {
	return r.rdb.LRange(ctx, key, 0, -1).Result()
}

func (r *QueueService) Del(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, key).Err()
}
