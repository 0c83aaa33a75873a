package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/noah-isme/ci-results-api/internal/repository"
)

func newTestCache(t *testing.T) *CacheService {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheService(repository.NewCacheRepository(client, nil), nil, time.Minute, nil, true)
}

func TestBisectRejectsUnknownCollection(t *testing.T) {
	svc := NewBisectService(&stubTasks{}, nil, time.Minute, nil)

	_, _, err := svc.Bisect(context.Background(), "foo", primitive.NewObjectID().Hex())
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
	assert.Contains(t, err.Error(), "foo")
}

func TestBisectRequiresValidID(t *testing.T) {
	svc := NewBisectService(&stubTasks{}, nil, time.Minute, nil)

	_, _, err := svc.Bisect(context.Background(), "boot", "")
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
	_, _, err = svc.Bisect(context.Background(), "boot", "zzz")
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
}

func TestBisectCachesSuccessfulResults(t *testing.T) {
	id := primitive.NewObjectID()
	tasks := &stubTasks{status: http.StatusOK, result: []bson.M{{"bad_commit": "abc", "good_commit": "def"}}}
	svc := NewBisectService(tasks, newTestCache(t), time.Minute, nil)

	status, result, err := svc.Bisect(context.Background(), "boot", id.Hex())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, result, 1)
	assert.Equal(t, []string{"bisect_boot"}, tasks.submitted)
	assert.Equal(t, []interface{}{"boot", id}, tasks.args[0])

	status, result, err = svc.Bisect(context.Background(), "boot", id.Hex())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "abc", result[0]["bad_commit"])
	assert.Len(t, tasks.submitted, 1)
}

func TestBisectDoesNotCacheFailures(t *testing.T) {
	tasks := &stubTasks{status: http.StatusNotFound}
	svc := NewBisectService(tasks, newTestCache(t), time.Minute, nil)
	id := primitive.NewObjectID().Hex()

	status, _, err := svc.Bisect(context.Background(), "build", id)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, status)
	_, _, err = svc.Bisect(context.Background(), "build", id)
	require.NoError(t, err)
	assert.Equal(t, []string{"bisect_build", "bisect_build"}, tasks.submitted)
}
