package refresh

import (
	"context"
	"encoding/json"
	"time"

	apperrors "github.com/jrsteele09/go-daybook/internal/errors"
	redis "github.com/redis/go-redis/v9"
)

var _ Repo = (*RedisRepo)(nil)

// RedisRepo is a Repo shared by every server instance, so a token rotated on
// one instance cannot be replayed against another.
type RedisRepo struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisRepo(rdb *redis.Client, prefix string) *RedisRepo {
	if prefix == "" {
		prefix = "daybook:"
	}
	return &RedisRepo{rdb: rdb, prefix: prefix}
}

func (r *RedisRepo) keyToken(token string) string { return r.prefix + "refresh:" + token }
func (r *RedisRepo) keyUser(userID string) string { return r.prefix + "refresh-user:" + userID }

func (r *RedisRepo) Upsert(ctx context.Context, rt *StoredRefreshToken) error {
	data, err := json.Marshal(rt)
	if err != nil {
		return err
	}
	var ttl time.Duration
	if !rt.ExpiresAt.IsZero() {
		if ttl = time.Until(rt.ExpiresAt); ttl <= 0 {
			ttl = time.Second
		}
	}
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, r.keyToken(rt.Token), data, ttl)
	pipe.SAdd(ctx, r.keyUser(rt.UserID), rt.Token)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisRepo) Get(ctx context.Context, token string) (*StoredRefreshToken, error) {
	raw, err := r.rdb.Get(ctx, r.keyToken(token)).Bytes()
	return r.decode(raw, err)
}

func (r *RedisRepo) Take(ctx context.Context, token string) (*StoredRefreshToken, error) {
	raw, err := r.rdb.GetDel(ctx, r.keyToken(token)).Bytes()
	rt, err := r.decode(raw, err)
	if err != nil {
		return nil, err
	}
	if err := r.rdb.SRem(ctx, r.keyUser(rt.UserID), token).Err(); err != nil {
		return nil, err
	}
	return rt, nil
}

func (r *RedisRepo) Delete(ctx context.Context, token string) error {
	_, err := r.Take(ctx, token)
	return err
}

func (r *RedisRepo) DeleteByUserID(ctx context.Context, userID string) error {
	key := r.keyUser(userID)
	tokens, err := r.rdb.SMembers(ctx, key).Result()
	if err != nil && err != redis.Nil {
		return err
	}
	pipe := r.rdb.TxPipeline()
	for _, t := range tokens {
		pipe.Del(ctx, r.keyToken(t))
	}
	pipe.Del(ctx, key)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisRepo) decode(raw []byte, err error) (*StoredRefreshToken, error) {
	if err == redis.Nil {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rt := &StoredRefreshToken{}
	if err := json.Unmarshal(raw, rt); err != nil {
		return nil, err
	}
	return rt, nil
}
