package worker

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/noah-isme/ci-results-api/internal/models"
	"github.com/noah-isme/ci-results-api/internal/query"
	"github.com/noah-isme/ci-results-api/internal/repository"
	"github.com/noah-isme/ci-results-api/pkg/config"
	"github.com/noah-isme/ci-results-api/pkg/database"
	"github.com/noah-isme/ci-results-api/pkg/taskqueue"
)

// Store is the document access tasks need.
type Store interface {
	Find(ctx context.Context, q *query.Query) ([]bson.M, error)
	FindOne(ctx context.Context, collection string, filter, projection bson.M) (bson.M, error)
	Insert(ctx context.Context, doc models.Document) (primitive.ObjectID, error)
}

// StoreResolver returns the store a task message points at.
type StoreResolver interface {
	Resolve(ctx context.Context, opts taskqueue.StoreOptions) (Store, error)
}

// MongoStores connects to the stores named by task messages, one client per
// URI, and falls back to the worker's own store when a message names none.
type MongoStores struct {
	defaults config.MongoConfig
	logger   *zap.Logger
	observer repository.QueryObserver

	mu      sync.Mutex
	clients map[string]*mongo.Client
}

// NewMongoStores builds a resolver. defaults supplies pool settings and the
// fallback URI and database.
func NewMongoStores(defaults config.MongoConfig, logger *zap.Logger, observer repository.QueryObserver) *MongoStores {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MongoStores{defaults: defaults, logger: logger, observer: observer, clients: make(map[string]*mongo.Client)}
}

// Resolve returns a repository on the database named by opts.
func (s *MongoStores) Resolve(ctx context.Context, opts taskqueue.StoreOptions) (Store, error) {
	cfg := s.defaults
	if opts.URI != "" {
		cfg.URI = opts.URI
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	client, ok := s.clients[cfg.URI]
	if !ok {
		c, _, err := database.NewMongo(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("resolve store: %w", err)
		}
		s.clients[cfg.URI] = c
		client = c
		s.logger.Info("task store connected", zap.String("database", cfg.Database))
	}
	return repository.NewDocumentRepository(client.Database(cfg.Database), s.logger, s.observer), nil
}

// Close disconnects every client.
func (s *MongoStores) Close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for uri, client := range s.clients {
		if err := client.Disconnect(ctx); err != nil {
			s.logger.Warn("failed to disconnect task store", zap.Error(err))
		}
		delete(s.clients, uri)
	}
}
