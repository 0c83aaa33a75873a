package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/noah-isme/ci-results-api/internal/service"
	"github.com/noah-isme/ci-results-api/pkg/dispatch"
	"github.com/noah-isme/ci-results-api/pkg/response"
	"github.com/noah-isme/ci-results-api/pkg/taskqueue"
)

// BisectService runs bisections.
type BisectService interface {
	Bisect(ctx context.Context, collection, rawID string) (int, []bson.M, error)
}

// BisectHandler serves /bisect/:collection/:id.
type BisectHandler struct {
	service    BisectService
	auth       Authorizer
	dispatcher *dispatch.Dispatcher
}

// NewBisectHandler constructs a bisect handler.
func NewBisectHandler(svc BisectService, auth Authorizer, d *dispatch.Dispatcher) *BisectHandler {
	return &BisectHandler{service: svc, auth: auth, dispatcher: d}
}

// Bisect godoc
// @Summary Bisect a failed boot or build
// @Description Walks older results of the same configuration until the last passing one. GET and POST behave the same.
// @Tags Bisect
// @Produce json
// @Param collection path string true "Collection" Enums(boot, build)
// @Param id path string true "Failed document ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 504 {object} response.Envelope
// @Router /bisect/{collection}/{id} [get]
func (h *BisectHandler) Bisect(c *gin.Context) {
	req := authRequest(c, false)
	collection := c.Param("collection")
	id := strings.Trim(c.Param("id"), "/")

	h.dispatcher.Serve(c, func(ctx context.Context) (*response.Envelope, error) {
		if _, err := h.auth.Authorize(ctx, req); err != nil {
			return nil, err
		}
		status, result, err := h.service.Bisect(ctx, collection, id)
		if err != nil {
			return nil, err
		}
		return taskqueue.ResultEnvelope(status, result, service.BisectNotFoundMessage), nil
	})
}
