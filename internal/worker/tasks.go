package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/noah-isme/ci-results-api/internal/models"
	"github.com/noah-isme/ci-results-api/internal/query"
	appErrors "github.com/noah-isme/ci-results-api/pkg/errors"
	"github.com/noah-isme/ci-results-api/pkg/taskqueue"
)

// Task names.
const (
	TaskBisectBoot  = "bisect_boot"
	TaskBisectBuild = "bisect_build"
	TaskImportBoot  = "import_boot"
	TaskImportBuild = "import_build"
)

const defaultMaxDepth = 50

// bisectKeys are the fields an older document must share with the failed
// one to count as the same configuration.
var bisectKeys = map[string][]string{
	models.CollectionBoot:  {"job", "board", "defconfig_full", "lab_name", "arch"},
	models.CollectionBuild: {"job", "defconfig_full", "arch"},
}

var bisectFields = bson.M{
	"_id": 1, "created_on": 1, "git_branch": 1, "git_commit": 1, "kernel": 1, "status": 1,
}

// Tasks implements the task functions run by the task worker.
type Tasks struct {
	stores   StoreResolver
	maxDepth int64
	now      func() time.Time
	logger   *zap.Logger
}

// NewTasks builds the task set. maxDepth bounds how many older documents a
// bisection walks.
func NewTasks(stores StoreResolver, maxDepth int, logger *zap.Logger) *Tasks {
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tasks{stores: stores, maxDepth: int64(maxDepth), now: time.Now, logger: logger}
}

// Register binds every task to w.
func (t *Tasks) Register(w *taskqueue.Worker) {
	w.Register(TaskBisectBoot, t.Bisect(models.CollectionBoot))
	w.Register(TaskBisectBuild, t.Bisect(models.CollectionBuild))
	w.Register(TaskImportBoot, t.Import(func() models.Stampable { return &models.Boot{} }))
	w.Register(TaskImportBuild, t.Import(func() models.Stampable { return &models.Build{} }))
}

// Bisect returns the task walking back from a failed document of collection
// to the most recent passing one with the same configuration. Its arguments
// are the collection name and the document id.
func (t *Tasks) Bisect(collection string) taskqueue.TaskFunc {
	return func(ctx context.Context, msg taskqueue.Message) (taskqueue.Outcome, error) {
		id, ok := bisectTarget(msg.Args)
		if !ok {
			return taskqueue.Outcome{Status: http.StatusBadRequest}, nil
		}
		store, err := t.stores.Resolve(ctx, msg.Store)
		if err != nil {
			return taskqueue.Outcome{}, err
		}

		start, err := store.FindOne(ctx, collection, bson.M{"_id": id}, nil)
		if err != nil {
			if errors.Is(err, appErrors.ErrDocumentNotFound) {
				return taskqueue.Outcome{Status: http.StatusNotFound}, nil
			}
			return taskqueue.Outcome{}, err
		}
		if start["status"] == models.StatusPass {
			return taskqueue.Outcome{Status: http.StatusBadRequest}, nil
		}

		filter := bson.M{}
		for _, key := range bisectKeys[collection] {
			if v, ok := start[key]; ok {
				filter[key] = v
			}
		}
		if created, ok := start["created_on"]; ok {
			filter["created_on"] = bson.M{"$lt": created}
		}
		older, err := store.Find(ctx, &query.Query{
			Collection: collection,
			Filter:     filter,
			Projection: bisectFields,
			Sort:       bson.D{{Key: "created_on", Value: -1}},
			Limit:      t.maxDepth,
		})
		if err != nil {
			return taskqueue.Outcome{}, err
		}

		result := buildBisect(collection, id, start, older)
		result.SetCreatedOn(t.now().UTC())
		bisectID, err := store.Insert(ctx, result)
		if err != nil {
			return taskqueue.Outcome{}, err
		}
		result.SetID(bisectID)

		t.logger.Debug("bisection done",
			zap.String("collection", collection),
			zap.String("document_id", id.Hex()),
			zap.Int("walked", len(older)),
			zap.Bool("found_good", result.GoodCommit != ""))
		return taskqueue.Outcome{Status: http.StatusOK, Result: []bson.M{result.ToWire()}}, nil
	}
}

func bisectTarget(args bson.A) (primitive.ObjectID, bool) {
	if len(args) < 2 {
		return primitive.NilObjectID, false
	}
	switch v := args[1].(type) {
	case primitive.ObjectID:
		return v, true
	case string:
		id, err := primitive.ObjectIDFromHex(v)
		return id, err == nil
	default:
		return primitive.NilObjectID, false
	}
}

func buildBisect(collection string, id primitive.ObjectID, start bson.M, older []bson.M) *models.Bisect {
	b := &models.Bisect{
		Type:          collection,
		DocumentID:    id,
		Job:           stringField(start, "job"),
		Board:         stringField(start, "board"),
		DefconfigFull: stringField(start, "defconfig_full"),
		Lab:           stringField(start, "lab_name"),
		Arch:          stringField(start, "arch"),
		BadCommit:     stringField(start, "git_commit"),
		BisectData:    []bson.M{summary(start)},
	}
	for _, doc := range older {
		b.BisectData = append(b.BisectData, summary(doc))
		if doc["status"] == models.StatusPass {
			b.GoodCommit = stringField(doc, "git_commit")
			break
		}
	}
	return b
}

func summary(doc bson.M) bson.M {
	out := bson.M{}
	for key := range bisectFields {
		if v, ok := doc[key]; ok {
			out[key] = v
		}
	}
	return out
}

func stringField(doc bson.M, key string) string {
	s, _ := doc[key].(string)
	return s
}

// Import returns the task inserting the document carried as its first
// argument.
func (t *Tasks) Import(newDoc func() models.Stampable) taskqueue.TaskFunc {
	return func(ctx context.Context, msg taskqueue.Message) (taskqueue.Outcome, error) {
		if len(msg.Args) < 1 {
			return taskqueue.Outcome{Status: http.StatusBadRequest}, nil
		}
		doc := newDoc()
		if err := decodeArg(msg.Args[0], doc); err != nil {
			t.logger.Warn("rejecting import", zap.String("task_id", msg.ID), zap.Error(err))
			return taskqueue.Outcome{Status: http.StatusBadRequest}, nil
		}
		if created, ok := doc.ToWire()["created_on"]; !ok || created == nil {
			doc.SetCreatedOn(t.now().UTC())
		}

		store, err := t.stores.Resolve(ctx, msg.Store)
		if err != nil {
			return taskqueue.Outcome{}, err
		}
		id, err := store.Insert(ctx, doc)
		if err != nil {
			return taskqueue.Outcome{}, err
		}
		return taskqueue.Outcome{Status: http.StatusCreated, Result: []bson.M{{"_id": id}}}, nil
	}
}

func decodeArg(arg interface{}, dest interface{}) error {
	raw, err := bson.Marshal(arg)
	if err != nil {
		return fmt.Errorf("encode import argument: %w", err)
	}
	if err := bson.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode import argument: %w", err)
	}
	return nil
}
