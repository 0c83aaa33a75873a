package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	appErrors "github.com/noah-isme/ci-results-api/pkg/errors"
)

func newCacheRepo(t *testing.T) (*CacheRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheRepository(client, nil), mr
}

func TestCacheRepositoryRoundTripKeepsTypes(t *testing.T) {
	repo, _ := newCacheRepo(t)
	ctx := context.Background()
	id := primitive.NewObjectID()
	created := primitive.NewDateTimeFromTime(time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC))

	require.NoError(t, repo.Set(ctx, "bisect:boot:1", []bson.M{{"_id": id, "created_on": created}}, time.Minute))

	var got []bson.M
	require.NoError(t, repo.Get(ctx, "bisect:boot:1", &got))
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0]["_id"])
	assert.Equal(t, created, got[0]["created_on"])
}

func TestCacheRepositoryMissAndExpiry(t *testing.T) {
	repo, mr := newCacheRepo(t)
	ctx := context.Background()

	var got []bson.M
	assert.ErrorIs(t, repo.Get(ctx, "absent", &got), appErrors.ErrCacheMiss)

	require.NoError(t, repo.Set(ctx, "short", []bson.M{{"a": "b"}}, time.Second))
	mr.FastForward(2 * time.Second)
	assert.ErrorIs(t, repo.Get(ctx, "short", &got), appErrors.ErrCacheMiss)
}

func TestCacheRepositoryDeleteByPattern(t *testing.T) {
	repo, mr := newCacheRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Set(ctx, "bisect:boot:1", "x", time.Minute))
	require.NoError(t, repo.Set(ctx, "bisect:boot:2", "y", time.Minute))
	require.NoError(t, repo.Set(ctx, "bisect:build:1", "z", time.Minute))

	require.NoError(t, repo.DeleteByPattern(ctx, "bisect:boot:*"))
	assert.False(t, mr.Exists("bisect:boot:1"))
	assert.False(t, mr.Exists("bisect:boot:2"))
	assert.True(t, mr.Exists("bisect:build:1"))
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	var got string
	assert.ErrorIs(t, repo.Get(context.Background(), "k", &got), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(context.Background(), "k", "v", time.Minute))
}
