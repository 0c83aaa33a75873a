package cache

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ci-results-api/pkg/config"
)

func TestNewRedisConnects(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port, found := strings.Cut(mr.Addr(), ":")
	require.True(t, found)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	client, err := NewRedis(context.Background(), config.RedisConfig{Host: host, Port: p}, "")
	require.NoError(t, err)
	defer client.Close() //nolint:errcheck

	assert.Equal(t, mr.Addr(), client.Options().Addr)
}

func TestOptionsNamesClient(t *testing.T) {
	opts := Options(config.RedisConfig{Host: "redis", Port: 6380, DB: 2}, "ci-results-worker")
	assert.Equal(t, "redis:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, "ci-results-worker", opts.ClientName)
}

func TestNewRedisFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port, _ := strings.Cut(mr.Addr(), ":")
	p, _ := strconv.Atoi(port)
	mr.Close()

	_, err := NewRedis(context.Background(), config.RedisConfig{Host: host, Port: p}, "worker")
	assert.Error(t, err)
}
