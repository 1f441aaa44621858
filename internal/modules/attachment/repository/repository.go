package repository

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const pendingDeletesKey = "pending:attachment_deletes"

// PendingDeleteRepository remembers attachment ids whose deletion failed so a
// later sweep can retry them.
type PendingDeleteRepository interface {
	Add(ctx context.Context, ids ...string) error
	List(ctx context.Context) ([]string, error)
	Remove(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

type redisPendingDeleteRepository struct {
	rdb *redis.Client
}

func NewPendingDeleteRepository(rdb *redis.Client) PendingDeleteRepository {
	return &redisPendingDeleteRepository{rdb: rdb}
}

func (r *redisPendingDeleteRepository) Add(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	members := make([]any, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	return r.rdb.SAdd(ctx, pendingDeletesKey, members...).Err()
}

func (r *redisPendingDeleteRepository) List(ctx context.Context) ([]string, error) {
	return r.rdb.SMembers(ctx, pendingDeletesKey).Result()
}

func (r *redisPendingDeleteRepository) Remove(ctx context.Context, id string) error {
	return r.rdb.SRem(ctx, pendingDeletesKey, id).Err()
}

func (r *redisPendingDeleteRepository) Count(ctx context.Context) (int64, error) {
	return r.rdb.SCard(ctx, pendingDeletesKey).Result()
}
