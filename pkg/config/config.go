package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Token store backends.
const (
	TokenBackendMongo    = "mongo"
	TokenBackendPostgres = "postgres"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string
	Version   string

	Mongo      MongoConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Dispatcher DispatcherConfig
	Tasks      TasksConfig
	Auth       AuthConfig
	Bisect     BisectConfig
	CORS       CORSConfig
	Log        LogConfig
}

// MongoConfig points at the document store holding results and tokens.
type MongoConfig struct {
	URI            string
	Database       string
	MaxPoolSize    uint64
	ConnectTimeout time.Duration
	EnsureIndexes  bool
}

// DatabaseConfig configures the optional Postgres token store.
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// DispatcherConfig sizes the request worker pool.
type DispatcherConfig struct {
	Workers   int
	QueueSize int
}

// TasksConfig governs the task queue shared by the API and the task worker.
type TasksConfig struct {
	Queue        string
	AwaitTimeout time.Duration
	ResultTTL    time.Duration
	PollTimeout  time.Duration
	Concurrency  int
	MaxRetries   int
	RetryDelay   time.Duration
	MetricsPort  int
}

// AuthConfig controls how tokens are stored and read from requests.
type AuthConfig struct {
	TokenBackend    string
	TokenHeader     string
	AllowQueryToken bool
}

// BisectConfig tunes bisection results.
type BisectConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
	MaxDepth     int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.Version = v.GetString("APP_VERSION")

	cfg.Mongo = MongoConfig{
		URI:            v.GetString("MONGO_URI"),
		Database:       v.GetString("MONGO_DATABASE"),
		MaxPoolSize:    v.GetUint64("MONGO_MAX_POOL_SIZE"),
		ConnectTimeout: parseDuration(v.GetString("MONGO_CONNECT_TIMEOUT"), 10*time.Second),
		EnsureIndexes:  v.GetBool("MONGO_ENSURE_INDEXES"),
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Dispatcher = DispatcherConfig{
		Workers:   v.GetInt("DISPATCHER_WORKERS"),
		QueueSize: v.GetInt("DISPATCHER_QUEUE_SIZE"),
	}

	cfg.Tasks = TasksConfig{
		Queue:        v.GetString("TASKS_QUEUE"),
		AwaitTimeout: parseDuration(v.GetString("TASKS_AWAIT_TIMEOUT"), 60*time.Second),
		ResultTTL:    parseDuration(v.GetString("TASKS_RESULT_TTL"), time.Hour),
		PollTimeout:  parseDuration(v.GetString("TASKS_POLL_TIMEOUT"), 5*time.Second),
		Concurrency:  v.GetInt("TASKS_WORKER_CONCURRENCY"),
		MaxRetries:   v.GetInt("TASKS_WORKER_RETRIES"),
		RetryDelay:   parseDuration(v.GetString("TASKS_RETRY_DELAY"), 2*time.Second),
		MetricsPort:  v.GetInt("TASKS_WORKER_METRICS_PORT"),
	}

	cfg.Auth = AuthConfig{
		TokenBackend:    strings.ToLower(v.GetString("TOKEN_BACKEND")),
		TokenHeader:     v.GetString("TOKEN_HEADER"),
		AllowQueryToken: v.GetBool("AUTH_ALLOW_QUERY_TOKEN"),
	}

	cfg.Bisect = BisectConfig{
		CacheEnabled: v.GetBool("BISECT_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("BISECT_CACHE_TTL"), 15*time.Minute),
		MaxDepth:     v.GetInt("BISECT_MAX_DEPTH"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Auth.TokenBackend {
	case TokenBackendMongo, TokenBackendPostgres:
	default:
		return fmt.Errorf("unsupported TOKEN_BACKEND %q", c.Auth.TokenBackend)
	}
	if c.Dispatcher.Workers <= 0 {
		return fmt.Errorf("DISPATCHER_WORKERS must be positive, got %d", c.Dispatcher.Workers)
	}
	if c.Mongo.URI == "" || c.Mongo.Database == "" {
		return errors.New("MONGO_URI and MONGO_DATABASE are required")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8888)
	v.SetDefault("API_PREFIX", "")
	v.SetDefault("APP_VERSION", "dev")

	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "ci-results")
	v.SetDefault("MONGO_MAX_POOL_SIZE", 100)
	v.SetDefault("MONGO_CONNECT_TIMEOUT", "10s")
	v.SetDefault("MONGO_ENSURE_INDEXES", true)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "ci_results")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("DISPATCHER_WORKERS", 16)
	v.SetDefault("DISPATCHER_QUEUE_SIZE", 64)

	v.SetDefault("TASKS_QUEUE", "ci")
	v.SetDefault("TASKS_AWAIT_TIMEOUT", "60s")
	v.SetDefault("TASKS_RESULT_TTL", "1h")
	v.SetDefault("TASKS_POLL_TIMEOUT", "5s")
	v.SetDefault("TASKS_WORKER_CONCURRENCY", 4)
	v.SetDefault("TASKS_WORKER_RETRIES", 3)
	v.SetDefault("TASKS_RETRY_DELAY", "2s")
	v.SetDefault("TASKS_WORKER_METRICS_PORT", 9102)

	v.SetDefault("TOKEN_BACKEND", TokenBackendMongo)
	v.SetDefault("TOKEN_HEADER", "Authorization")
	v.SetDefault("AUTH_ALLOW_QUERY_TOKEN", false)

	v.SetDefault("BISECT_CACHE_ENABLED", true)
	v.SetDefault("BISECT_CACHE_TTL", "15m")
	v.SetDefault("BISECT_MAX_DEPTH", 50)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

// isMissingFile reports the error viper returns when an explicit config file
// path does not exist.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
