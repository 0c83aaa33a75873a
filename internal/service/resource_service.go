package service

import (
	"context"
	"net/url"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/noah-isme/ci-results-api/internal/models"
	"github.com/noah-isme/ci-results-api/internal/query"
	appErrors "github.com/noah-isme/ci-results-api/pkg/errors"
	"github.com/noah-isme/ci-results-api/pkg/taskqueue"
)

// DocumentStore is the subset of the document store the services need.
type DocumentStore interface {
	Find(ctx context.Context, q *query.Query) ([]bson.M, error)
	Count(ctx context.Context, collection string, filter bson.M) (int64, error)
	FindOne(ctx context.Context, collection string, filter, projection bson.M) (bson.M, error)
	Insert(ctx context.Context, doc models.Document) (primitive.ObjectID, error)
	Update(ctx context.Context, collection string, id primitive.ObjectID, set bson.M) error
	Delete(ctx context.Context, collection string, id primitive.ObjectID) error
}

// TaskSubmitter hands work to the task queue.
type TaskSubmitter interface {
	Submit(ctx context.Context, task string, args ...interface{}) (taskqueue.Handle, error)
	Call(ctx context.Context, task string, args ...interface{}) (int, []bson.M, error)
}

// ListResult is one page of documents plus the number of matches.
type ListResult struct {
	Documents []bson.M
	Count     int64
	Limit     int64
}

// CreateResult reports where a new document went. Exactly one of ID and
// TaskID is set: TaskID when the document was handed to an import task.
type CreateResult struct {
	ID     primitive.ObjectID
	TaskID string
}

// ResourceService implements the generic REST verbs over registered resources.
type ResourceService struct {
	store      DocumentStore
	tasks      TaskSubmitter
	translator *query.Translator
	validator  *validator.Validate
	now        func() time.Time
	logger     *zap.Logger
	bisects    *CacheService
}

// NewResourceService builds a resource service.
func NewResourceService(store DocumentStore, tasks TaskSubmitter, translator *query.Translator, v *validator.Validate, logger *zap.Logger) *ResourceService {
	if translator == nil {
		translator = query.NewTranslator(nil)
	}
	if v == nil {
		v = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResourceService{store: store, tasks: tasks, translator: translator, validator: v, now: time.Now, logger: logger}
}

// InvalidateBisects makes writes to a bisectable collection drop the cached
// bisections of that collection.
func (s *ResourceService) InvalidateBisects(cache *CacheService) *ResourceService {
	s.bisects = cache
	return s
}

func (s *ResourceService) dropBisects(ctx context.Context, res models.Resource) {
	if _, ok := BisectTaskName(res.Collection); !ok {
		return
	}
	// A stale entry only lives until its TTL, so failures are logged and ignored.
	if err := s.bisects.Invalidate(ctx, CacheKey("bisect", res.Collection, "*")); err != nil {
		s.logger.Warn("bisect cache not invalidated", zap.String("collection", res.Collection), zap.Error(err))
	}
}

// List translates params and returns the matching page. Counting and fetching
// are two separate store calls: under concurrent writes the count may not
// match the documents returned.
func (s *ResourceService) List(ctx context.Context, res models.Resource, params url.Values) (*ListResult, error) {
	q, err := s.translator.Translate(res, params)
	if err != nil {
		return nil, err
	}
	count, err := s.store.Count(ctx, q.Collection, q.Filter)
	if err != nil {
		return nil, err
	}
	docs, err := s.store.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	return &ListResult{Documents: docs, Count: count, Limit: q.Limit}, nil
}

// Get returns one document by id. Filters and projection in params apply.
func (s *ResourceService) Get(ctx context.Context, res models.Resource, rawID string, params url.Values) (bson.M, error) {
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}
	q, err := s.translator.Translate(res, params)
	if err != nil {
		return nil, err
	}
	q.Filter["_id"] = id
	doc, err := s.store.FindOne(ctx, q.Collection, q.Filter, q.Projection)
	if err != nil {
		return nil, notFound(err, "Resource '"+rawID+"' not found")
	}
	return doc, nil
}

// Create decodes and validates a payload, then either inserts it or hands it
// to the resource's import task.
func (s *ResourceService) Create(ctx context.Context, res models.Resource, raw []byte) (*CreateResult, error) {
	doc := res.New()
	if err := decodePayload(s.validator, raw, doc); err != nil {
		return nil, err
	}
	doc.SetCreatedOn(s.now().UTC())

	if res.ImportTask != "" {
		h, err := s.tasks.Submit(ctx, res.ImportTask, doc.ToWire())
		if err != nil {
			return nil, err
		}
		s.logger.Debug("import submitted", zap.String("resource", res.Name), zap.String("task_id", h.ID))
		return &CreateResult{TaskID: h.ID}, nil
	}

	id, err := s.store.Insert(ctx, doc)
	if err != nil {
		return nil, err
	}
	return &CreateResult{ID: id}, nil
}

// Update sets the fields the payload carries. Stored fields the payload
// leaves out are kept; an optional field sent empty is left unchanged.
func (s *ResourceService) Update(ctx context.Context, res models.Resource, rawID string, raw []byte) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	doc := res.New()
	if err := decodePayload(s.validator, raw, doc); err != nil {
		return err
	}
	sent, err := payloadKeys(raw)
	if err != nil {
		return err
	}
	set := doc.ToWire()
	for key := range set {
		if _, ok := sent[key]; !ok {
			delete(set, key)
		}
	}
	delete(set, "_id")
	delete(set, "created_on")
	if err := s.store.Update(ctx, res.Collection, id, set); err != nil {
		return notFound(err, "Resource '"+rawID+"' not found")
	}
	s.dropBisects(ctx, res)
	return nil
}

// Delete removes a document by id.
func (s *ResourceService) Delete(ctx context.Context, res models.Resource, rawID string) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, res.Collection, id); err != nil {
		return notFound(err, "Resource '"+rawID+"' not found")
	}
	s.dropBisects(ctx, res)
	return nil
}

// CountEntry is the number of matches in one collection.
type CountEntry struct {
	Collection string `bson:"collection"`
	Count      int64  `bson:"count"`
}

// CountAll counts the matches of params in every countable collection whose
// allow-list accepts all the supplied filter keys.
func (s *ResourceService) CountAll(ctx context.Context, params url.Values) ([]CountEntry, int64, error) {
	resources := models.CountableResources()
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if query.IsReserved(key) {
			continue
		}
		accepted := false
		for _, res := range resources {
			if res.Allows(key) {
				accepted = true
				break
			}
		}
		if !accepted {
			return nil, 0, appErrors.Validationf("Invalid query key: %s", key)
		}
	}

	entries := make([]CountEntry, 0, len(resources))
	var total int64
	for _, res := range resources {
		if len(query.UnknownKeys(res, params)) > 0 {
			continue
		}
		n, err := s.count(ctx, res, params)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, CountEntry{Collection: res.Name, Count: n})
		total += n
	}
	return entries, total, nil
}

// CountOne counts the matches of params in a single collection.
func (s *ResourceService) CountOne(ctx context.Context, name string, params url.Values) (int64, error) {
	res, ok := models.LookupResource(name)
	if !ok || !res.Countable {
		return 0, appErrors.Validationf("Invalid collection: %s", name)
	}
	if unknown := query.UnknownKeys(res, params); len(unknown) > 0 {
		return 0, appErrors.Validationf("Invalid query key: %s", unknown[0])
	}
	return s.count(ctx, res, params)
}

func (s *ResourceService) count(ctx context.Context, res models.Resource, params url.Values) (int64, error) {
	filter, err := s.translator.Filter(res, params)
	if err != nil {
		return 0, err
	}
	return s.store.Count(ctx, res.Collection, filter)
}
