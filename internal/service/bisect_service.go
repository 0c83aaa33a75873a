package service

import (
	"context"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/noah-isme/ci-results-api/internal/models"
	appErrors "github.com/noah-isme/ci-results-api/pkg/errors"
)

// BisectNotFoundMessage is reported when the document to bisect is missing,
// whatever its collection.
const BisectNotFoundMessage = "Boot report not found"

var bisectCollections = map[string]string{
	models.CollectionBoot:  "bisect_boot",
	models.CollectionBuild: "bisect_build",
}

// BisectTaskName returns the task bisecting collection.
func BisectTaskName(collection string) (string, bool) {
	task, ok := bisectCollections[collection]
	return task, ok
}

// BisectService runs bisections on the task queue and caches their results.
type BisectService struct {
	tasks  TaskSubmitter
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewBisectService builds a bisect service. cache may be nil.
func NewBisectService(tasks TaskSubmitter, cache *CacheService, ttl time.Duration, logger *zap.Logger) *BisectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BisectService{tasks: tasks, cache: cache, ttl: ttl, logger: logger}
}

// Bisect returns the task status and result for the document id of
// collection. Only successful results are cached.
func (s *BisectService) Bisect(ctx context.Context, collection, rawID string) (int, []bson.M, error) {
	task, ok := BisectTaskName(collection)
	if !ok {
		return 0, nil, appErrors.Validationf("Invalid bisect collection: %s", collection)
	}
	id, err := parseID(rawID)
	if err != nil {
		return 0, nil, err
	}

	key := CacheKey("bisect", collection, id.Hex())
	var cached []bson.M
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return http.StatusOK, cached, nil
	}

	status, result, err := s.tasks.Call(ctx, task, collection, id)
	if err != nil {
		return 0, nil, err
	}
	if status == http.StatusOK {
		_ = s.cache.Set(ctx, key, result, s.ttl)
	}
	s.logger.Debug("bisect finished", zap.String("collection", collection), zap.String("id", id.Hex()), zap.Int("status", status))
	return status, result, nil
}
