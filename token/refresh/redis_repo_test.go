package refresh_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	apperrors "github.com/jrsteele09/go-daybook/internal/errors"
	"github.com/jrsteele09/go-daybook/token/refresh"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func setupRedisRepo(t *testing.T) *refresh.RedisRepo {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return refresh.NewRedisRepo(rdb, "test:")
}

func TestRedisRepo_UpsertGetTake(t *testing.T) {
	ctx := context.Background()
	repo := setupRedisRepo(t)

	rt := &refresh.StoredRefreshToken{
		Token:     "abc",
		UserID:    "user-1",
		SessionID: "session-1",
		Iat:       time.Now().UTC().Truncate(time.Second),
		ExpiresAt: time.Now().Add(time.Hour).UTC().Truncate(time.Second),
	}
	require.NoError(t, repo.Upsert(ctx, rt))

	got, err := repo.Get(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, "session-1", got.SessionID)

	taken, err := repo.Take(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, "user-1", taken.UserID)

	_, err = repo.Take(ctx, "abc")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRedisRepo_DeleteByUserID(t *testing.T) {
	ctx := context.Background()
	repo := setupRedisRepo(t)

	for _, tok := range []string{"a", "b"} {
		require.NoError(t, repo.Upsert(ctx, &refresh.StoredRefreshToken{Token: tok, UserID: "user-1", Iat: time.Now()}))
	}
	require.NoError(t, repo.Upsert(ctx, &refresh.StoredRefreshToken{Token: "c", UserID: "user-2", Iat: time.Now()}))

	require.NoError(t, repo.DeleteByUserID(ctx, "user-1"))

	_, err := repo.Get(ctx, "a")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = repo.Get(ctx, "b")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = repo.Get(ctx, "c")
	require.NoError(t, err)
}
