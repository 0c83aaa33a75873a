package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/noah-isme/ci-results-api/internal/models"
	"github.com/noah-isme/ci-results-api/internal/query"
	appErrors "github.com/noah-isme/ci-results-api/pkg/errors"
)

// QueryObserver receives store query latencies.
type QueryObserver interface {
	ObserveStoreQuery(collection, operation string, duration time.Duration)
}

// DocumentRepository reads and writes result documents in MongoDB.
type DocumentRepository struct {
	db       *mongo.Database
	logger   *zap.Logger
	observer QueryObserver
}

// NewDocumentRepository wraps a database handle.
func NewDocumentRepository(db *mongo.Database, logger *zap.Logger, observer QueryObserver) *DocumentRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentRepository{db: db, logger: logger, observer: observer}
}

// Database exposes the underlying handle.
func (r *DocumentRepository) Database() *mongo.Database {
	return r.db
}

func (r *DocumentRepository) observe(collection, op string, start time.Time) {
	if r.observer != nil {
		r.observer.ObserveStoreQuery(collection, op, time.Since(start))
	}
}

// Find returns every document matching q.
func (r *DocumentRepository) Find(ctx context.Context, q *query.Query) ([]bson.M, error) {
	defer r.observe(q.Collection, "find", time.Now())

	cur, err := r.db.Collection(q.Collection).Find(ctx, nonNilFilter(q.Filter), FindOptions(q))
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", q.Collection, err)
	}
	docs := make([]bson.M, 0)
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", q.Collection, err)
	}
	return docs, nil
}

// Count returns the number of documents matching filter.
func (r *DocumentRepository) Count(ctx context.Context, collection string, filter bson.M) (int64, error) {
	defer r.observe(collection, "count", time.Now())

	n, err := r.db.Collection(collection).CountDocuments(ctx, nonNilFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

// FindOne returns the first document matching filter.
func (r *DocumentRepository) FindOne(ctx context.Context, collection string, filter, projection bson.M) (bson.M, error) {
	defer r.observe(collection, "find_one", time.Now())

	opts := options.FindOne()
	if len(projection) > 0 {
		opts.SetProjection(projection)
	}
	var doc bson.M
	err := r.db.Collection(collection).FindOne(ctx, nonNilFilter(filter), opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appErrors.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("find one %s: %w", collection, err)
	}
	return doc, nil
}

// Insert stores doc and returns its identifier.
func (r *DocumentRepository) Insert(ctx context.Context, doc models.Document) (primitive.ObjectID, error) {
	collection := doc.CollectionName()
	defer r.observe(collection, "insert", time.Now())

	wire := doc.ToWire()
	res, err := r.db.Collection(collection).InsertOne(ctx, wire)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("insert %s: %w", collection, err)
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, fmt.Errorf("insert %s: unexpected id type %T", collection, res.InsertedID)
	}
	return id, nil
}

// Update applies set to the document with id.
func (r *DocumentRepository) Update(ctx context.Context, collection string, id primitive.ObjectID, set bson.M) error {
	defer r.observe(collection, "update", time.Now())

	res, err := r.db.Collection(collection).UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update %s: %w", collection, err)
	}
	if res.MatchedCount == 0 {
		return appErrors.ErrDocumentNotFound
	}
	return nil
}

// Delete removes the document with id.
func (r *DocumentRepository) Delete(ctx context.Context, collection string, id primitive.ObjectID) error {
	defer r.observe(collection, "delete", time.Now())

	res, err := r.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete %s: %w", collection, err)
	}
	if res.DeletedCount == 0 {
		return appErrors.ErrDocumentNotFound
	}
	return nil
}

// Ping checks connectivity to the primary.
func (r *DocumentRepository) Ping(ctx context.Context) error {
	return r.db.Client().Ping(ctx, readpref.Primary())
}

// EnsureIndexes creates the indexes list and bisect queries rely on.
func (r *DocumentRepository) EnsureIndexes(ctx context.Context) error {
	for collection, indexes := range IndexModels() {
		if _, err := r.db.Collection(collection).Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("create indexes on %s: %w", collection, err)
		}
		r.logger.Debug("indexes ensured", zap.String("collection", collection), zap.Int("count", len(indexes)))
	}
	return nil
}

// IndexModels lists the indexes per collection.
func IndexModels() map[string][]mongo.IndexModel {
	createdDesc := mongo.IndexModel{Keys: bson.D{{Key: "created_on", Value: -1}}}
	return map[string][]mongo.IndexModel{
		models.CollectionJob:   {createdDesc},
		models.CollectionBuild: {createdDesc, {Keys: bson.D{{Key: "defconfig_full", Value: 1}, {Key: "arch", Value: 1}, {Key: "created_on", Value: -1}}}},
		models.CollectionBoot: {createdDesc, {Keys: bson.D{
			{Key: "board", Value: 1},
			{Key: "defconfig_full", Value: 1},
			{Key: "lab_name", Value: 1},
			{Key: "arch", Value: 1},
			{Key: "created_on", Value: -1},
		}}},
		models.CollectionTest:   {createdDesc},
		models.CollectionBisect: {createdDesc, {Keys: bson.D{{Key: "document_id", Value: 1}}}},
		models.CollectionToken: {{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
	}
}

// FindOptions converts the shaping part of a query into driver options.
func FindOptions(q *query.Query) *options.FindOptions {
	opts := options.Find()
	if len(q.Projection) > 0 {
		opts.SetProjection(q.Projection)
	}
	if len(q.Sort) > 0 {
		opts.SetSort(q.Sort)
	}
	if q.Skip > 0 {
		opts.SetSkip(q.Skip)
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}
	return opts
}

func nonNilFilter(filter bson.M) bson.M {
	if filter == nil {
		return bson.M{}
	}
	return filter
}
