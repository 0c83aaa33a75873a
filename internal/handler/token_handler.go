package handler

import (
	"context"
	"net/http"
	"net/url"
	"path"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/noah-isme/ci-results-api/internal/models"
	"github.com/noah-isme/ci-results-api/pkg/dispatch"
	appErrors "github.com/noah-isme/ci-results-api/pkg/errors"
	"github.com/noah-isme/ci-results-api/pkg/response"
)

// TokenService manages API tokens.
type TokenService interface {
	List(ctx context.Context, params url.Values) ([]bson.M, error)
	Get(ctx context.Context, rawID string) (bson.M, error)
	Create(ctx context.Context, raw []byte) (*models.Token, error)
	Update(ctx context.Context, rawID string, raw []byte) error
	Delete(ctx context.Context, rawID string) error
}

// TokenHandler serves /token. Every verb requires an admin token.
type TokenHandler struct {
	service    TokenService
	auth       Authorizer
	dispatcher *dispatch.Dispatcher
	basePath   string
}

// NewTokenHandler constructs a token handler.
func NewTokenHandler(svc TokenService, auth Authorizer, d *dispatch.Dispatcher, basePath string) *TokenHandler {
	return &TokenHandler{service: svc, auth: auth, dispatcher: d, basePath: basePath}
}

func (h *TokenHandler) serve(c *gin.Context, needsID bool, body func(ctx context.Context, id string) (*response.Envelope, error)) {
	req := authRequest(c, true)
	id := pathID(c)
	h.dispatcher.Serve(c, func(ctx context.Context) (*response.Envelope, error) {
		if _, err := h.auth.Authorize(ctx, req); err != nil {
			return nil, err
		}
		if needsID && id == "" {
			return nil, appErrors.ErrMissingID
		}
		return body(ctx, id)
	})
}

// List godoc
// @Summary List tokens or fetch one
// @Tags Tokens
// @Produce json
// @Param id path string false "Token document ID"
// @Param email query string false "Filter by email"
// @Param username query string false "Filter by username"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /token/{id} [get]
func (h *TokenHandler) List(c *gin.Context) {
	params := c.Request.URL.Query()
	h.serve(c, false, func(ctx context.Context, id string) (*response.Envelope, error) {
		if id != "" {
			doc, err := h.service.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			return response.OK(doc, 1), nil
		}
		docs, err := h.service.List(ctx, params)
		if err != nil {
			return nil, err
		}
		return response.OK(docs, int64(len(docs))), nil
	})
}

// Create godoc
// @Summary Create a token
// @Tags Tokens
// @Accept json
// @Produce json
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /token [post]
func (h *TokenHandler) Create(c *gin.Context) {
	raw, bodyErr := readJSONBody(c)
	h.serve(c, false, func(ctx context.Context, id string) (*response.Envelope, error) {
		if bodyErr != nil {
			return nil, bodyErr
		}
		token, err := h.service.Create(ctx, raw)
		if err != nil {
			return nil, err
		}
		env := response.New(http.StatusCreated)
		_ = env.SetResult(bson.M{"_id": token.ID, "token": token.Token})
		_ = env.SetHeader("Location", path.Join(h.basePath, models.ResourceToken.Name, token.ID.Hex()))
		return env, nil
	})
}

// Update godoc
// @Summary Update a token
// @Tags Tokens
// @Accept json
// @Produce json
// @Param id path string true "Token document ID"
// @Success 200 {object} response.Envelope
// @Router /token/{id} [put]
func (h *TokenHandler) Update(c *gin.Context) {
	raw, bodyErr := readJSONBody(c)
	h.serve(c, true, func(ctx context.Context, id string) (*response.Envelope, error) {
		if bodyErr != nil {
			return nil, bodyErr
		}
		if err := h.service.Update(ctx, id, raw); err != nil {
			return nil, err
		}
		return response.New(http.StatusOK), nil
	})
}

// Delete godoc
// @Summary Delete a token
// @Tags Tokens
// @Produce json
// @Param id path string true "Token document ID"
// @Success 200 {object} response.Envelope
// @Router /token/{id} [delete]
func (h *TokenHandler) Delete(c *gin.Context) {
	h.serve(c, true, func(ctx context.Context, id string) (*response.Envelope, error) {
		if err := h.service.Delete(ctx, id); err != nil {
			return nil, err
		}
		return response.New(http.StatusOK), nil
	})
}
