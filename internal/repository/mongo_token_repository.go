package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/noah-isme/ci-results-api/internal/models"
	appErrors "github.com/noah-isme/ci-results-api/pkg/errors"
)

// MongoTokenRepository persists tokens in the api-token collection.
type MongoTokenRepository struct {
	coll *mongo.Collection
}

// NewMongoTokenRepository builds a token repository on db.
func NewMongoTokenRepository(db *mongo.Database) *MongoTokenRepository {
	return &MongoTokenRepository{coll: db.Collection(models.CollectionToken)}
}

// FindByValue returns the token whose opaque value is value.
func (r *MongoTokenRepository) FindByValue(ctx context.Context, value string) (*models.Token, error) {
	return r.findOne(ctx, bson.M{"token": value})
}

// FindByID returns the token with id.
func (r *MongoTokenRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Token, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoTokenRepository) findOne(ctx context.Context, filter bson.M) (*models.Token, error) {
	var token models.Token
	if err := r.coll.FindOne(ctx, filter).Decode(&token); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appErrors.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("find token: %w", err)
	}
	return &token, nil
}

// List returns tokens matching filter, newest first.
func (r *MongoTokenRepository) List(ctx context.Context, filter models.TokenFilter) ([]models.Token, error) {
	cur, err := r.coll.Find(ctx, tokenFilterDoc(filter), options.Find().SetSort(bson.D{{Key: "created_on", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	tokens := make([]models.Token, 0)
	if err := cur.All(ctx, &tokens); err != nil {
		return nil, fmt.Errorf("decode tokens: %w", err)
	}
	return tokens, nil
}

// Create inserts token and assigns its identifier.
func (r *MongoTokenRepository) Create(ctx context.Context, token *models.Token) error {
	if token.ID.IsZero() {
		token.ID = primitive.NewObjectID()
	}
	if _, err := r.coll.InsertOne(ctx, token.ToWire()); err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// Update replaces the stored token fields, keeping its value and creation date.
func (r *MongoTokenRepository) Update(ctx context.Context, token *models.Token) error {
	set := token.ToWire()
	delete(set, "_id")
	delete(set, "token")
	delete(set, "created_on")
	update := bson.M{"$set": set}
	if token.ExpiresOn == nil {
		update["$unset"] = bson.M{"expires_on": ""}
	}
	res, err := r.coll.UpdateByID(ctx, token.ID, update)
	if err != nil {
		return fmt.Errorf("update token: %w", err)
	}
	if res.MatchedCount == 0 {
		return appErrors.ErrDocumentNotFound
	}
	return nil
}

// Delete removes the token with id.
func (r *MongoTokenRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	if res.DeletedCount == 0 {
		return appErrors.ErrDocumentNotFound
	}
	return nil
}

func tokenFilterDoc(f models.TokenFilter) bson.M {
	doc := bson.M{}
	if !f.ID.IsZero() {
		doc["_id"] = f.ID
	}
	if f.Email != "" {
		doc["email"] = f.Email
	}
	if f.Username != "" {
		doc["username"] = f.Username
	}
	return doc
}
