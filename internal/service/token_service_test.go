package service

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/noah-isme/ci-results-api/internal/models"
	appErrors "github.com/noah-isme/ci-results-api/pkg/errors"
)

type memoryTokenRepo struct {
	byID map[primitive.ObjectID]*models.Token
}

func newMemoryTokenRepo() *memoryTokenRepo {
	return &memoryTokenRepo{byID: make(map[primitive.ObjectID]*models.Token)}
}

func (r *memoryTokenRepo) FindByValue(ctx context.Context, value string) (*models.Token, error) {
	for _, tok := range r.byID {
		if tok.Token == value {
			return tok, nil
		}
	}
	return nil, appErrors.ErrDocumentNotFound
}

func (r *memoryTokenRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Token, error) {
	tok, ok := r.byID[id]
	if !ok {
		return nil, appErrors.ErrDocumentNotFound
	}
	return tok, nil
}

func (r *memoryTokenRepo) List(ctx context.Context, filter models.TokenFilter) ([]models.Token, error) {
	var out []models.Token
	for _, tok := range r.byID {
		if filter.Email != "" && tok.Email != filter.Email {
			continue
		}
		out = append(out, *tok)
	}
	return out, nil
}

func (r *memoryTokenRepo) Create(ctx context.Context, token *models.Token) error {
	if token.ID.IsZero() {
		token.ID = primitive.NewObjectID()
	}
	stored := *token
	r.byID[token.ID] = &stored
	return nil
}

func (r *memoryTokenRepo) Update(ctx context.Context, token *models.Token) error {
	if _, ok := r.byID[token.ID]; !ok {
		return appErrors.ErrDocumentNotFound
	}
	stored := *token
	r.byID[token.ID] = &stored
	return nil
}

func (r *memoryTokenRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, ok := r.byID[id]; !ok {
		return appErrors.ErrDocumentNotFound
	}
	delete(r.byID, id)
	return nil
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	require.Error(t, err)
	return appErrors.FromError(err).Status
}

func TestTokenServiceCreateNormalizesAndAssignsValue(t *testing.T) {
	repo := newMemoryTokenRepo()
	svc := NewTokenService(repo, nil, nil)
	svc.newValue = func() string { return "generated" }

	tok, err := svc.Create(context.Background(), []byte(`{"email":"lab@example.com","properties":{"admin":1}}`))
	require.NoError(t, err)
	assert.Equal(t, "generated", tok.Token)
	assert.False(t, tok.ID.IsZero())
	assert.False(t, tok.CreatedOn.IsZero())
	assert.Equal(t, 1, tok.Capabilities.Read)
	assert.Equal(t, 1, tok.Capabilities.CreateToken)
	assert.Zero(t, tok.Capabilities.Superuser)

	stored, err := repo.FindByValue(context.Background(), "generated")
	require.NoError(t, err)
	assert.Equal(t, tok.ID, stored.ID)
}

func TestTokenServiceCreateRejectsBadPayloads(t *testing.T) {
	svc := NewTokenService(newMemoryTokenRepo(), nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, []byte(`{"email":`))
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	_, err = svc.Create(ctx, []byte(``))
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	_, err = svc.Create(ctx, []byte(`{"token":"chosen-by-client"}`))
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, err))

	_, err = svc.Create(ctx, []byte(`{"properties":{"read":2}}`))
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, err))

	_, err = svc.Create(ctx, []byte(`{"email":"not-an-email"}`))
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, err))

	_, err = svc.Create(ctx, []byte(`{"properties":{"read":1,"ip_restricted":1}}`))
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, err))
}

func TestTokenServiceUpdateKeepsValue(t *testing.T) {
	repo := newMemoryTokenRepo()
	svc := NewTokenService(repo, nil, nil)
	ctx := context.Background()

	tok, err := svc.Create(ctx, []byte(`{"username":"lab","properties":{"read":1}}`))
	require.NoError(t, err)

	require.NoError(t, svc.Update(ctx, tok.ID.Hex(), []byte(`{"username":"lab","expired":true,"properties":{"read":1}}`)))
	stored, err := repo.FindByID(ctx, tok.ID)
	require.NoError(t, err)
	assert.True(t, stored.Expired)
	assert.Equal(t, tok.Token, stored.Token)

	err = svc.Update(ctx, primitive.NewObjectID().Hex(), []byte(`{}`))
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestTokenServiceGetDeleteAndList(t *testing.T) {
	repo := newMemoryTokenRepo()
	svc := NewTokenService(repo, nil, nil)
	ctx := context.Background()

	tok, err := svc.Create(ctx, []byte(`{"email":"a@example.com","properties":{"read":1}}`))
	require.NoError(t, err)

	doc, err := svc.Get(ctx, tok.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, tok.ID, doc["_id"])

	docs, err := svc.List(ctx, url.Values{"email": {"a@example.com"}})
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	_, err = svc.List(ctx, url.Values{"board": {"x"}})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	_, err = svc.Get(ctx, "not-an-id")
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	_, err = svc.Get(ctx, "")
	assert.ErrorIs(t, err, appErrors.ErrMissingID)

	require.NoError(t, svc.Delete(ctx, tok.ID.Hex()))
	err = svc.Delete(ctx, tok.ID.Hex())
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}
