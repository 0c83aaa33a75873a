package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/noah-isme/ci-results-api/internal/models"
	"github.com/noah-isme/ci-results-api/internal/query"
)

func TestFindOptionsFromQuery(t *testing.T) {
	q := &query.Query{
		Collection: models.CollectionBoot,
		Projection: bson.M{"board": 1, "_id": 0},
		Sort:       bson.D{{Key: "created_on", Value: -1}},
		Skip:       5,
		Limit:      10,
	}
	opts := FindOptions(q)
	require.NotNil(t, opts.Skip)
	require.NotNil(t, opts.Limit)
	assert.EqualValues(t, 5, *opts.Skip)
	assert.EqualValues(t, 10, *opts.Limit)
	assert.Equal(t, q.Projection, opts.Projection)
	assert.Equal(t, q.Sort, opts.Sort)
}

func TestFindOptionsZeroLimitIsUncapped(t *testing.T) {
	opts := FindOptions(&query.Query{Collection: models.CollectionJob})
	assert.Nil(t, opts.Limit)
	assert.Nil(t, opts.Skip)
	assert.Nil(t, opts.Projection)
	assert.Nil(t, opts.Sort)
}

func TestIndexModelsCoverResources(t *testing.T) {
	idx := IndexModels()
	for _, res := range models.CountableResources() {
		assert.NotEmpty(t, idx[res.Collection], res.Collection)
	}
	tokenIdx := idx[models.CollectionToken]
	require.Len(t, tokenIdx, 1)
	require.NotNil(t, tokenIdx[0].Options)
	require.NotNil(t, tokenIdx[0].Options.Unique)
	assert.True(t, *tokenIdx[0].Options.Unique)
}
