package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg, err := fromViper(v)
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, TokenBackendMongo, cfg.Auth.TokenBackend)
	assert.Equal(t, 16, cfg.Dispatcher.Workers)
	assert.Equal(t, 60*time.Second, cfg.Tasks.AwaitTimeout)
	assert.Equal(t, "ci", cfg.Tasks.Queue)
	assert.True(t, cfg.Bisect.CacheEnabled)
}

func TestOverridesAndValidation(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("TOKEN_BACKEND", "Postgres")
	v.Set("TASKS_AWAIT_TIMEOUT", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg, err := fromViper(v)
	require.NoError(t, err)
	assert.Equal(t, TokenBackendPostgres, cfg.Auth.TokenBackend)
	assert.Equal(t, 60*time.Second, cfg.Tasks.AwaitTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)

	v.Set("TOKEN_BACKEND", "sqlite")
	_, err = fromViper(v)
	assert.Error(t, err)

	v.Set("TOKEN_BACKEND", "mongo")
	v.Set("DISPATCHER_WORKERS", 0)
	_, err = fromViper(v)
	assert.Error(t, err)
}
