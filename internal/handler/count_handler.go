package handler

import (
	"context"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ci-results-api/internal/service"
	"github.com/noah-isme/ci-results-api/pkg/dispatch"
	"github.com/noah-isme/ci-results-api/pkg/response"
)

// CountService counts documents across collections.
type CountService interface {
	CountAll(ctx context.Context, params url.Values) ([]service.CountEntry, int64, error)
	CountOne(ctx context.Context, name string, params url.Values) (int64, error)
}

// CountHandler serves /count.
type CountHandler struct {
	service    CountService
	auth       Authorizer
	dispatcher *dispatch.Dispatcher
}

// NewCountHandler constructs a count handler.
func NewCountHandler(svc CountService, auth Authorizer, d *dispatch.Dispatcher) *CountHandler {
	return &CountHandler{service: svc, auth: auth, dispatcher: d}
}

// Count godoc
// @Summary Count documents
// @Description Without a collection, counts every collection whose filters accept all the supplied keys.
// @Tags Count
// @Produce json
// @Param collection path string false "Collection" Enums(job, build, boot, test)
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /count/{collection} [get]
func (h *CountHandler) Count(c *gin.Context) {
	req := authRequest(c, false)
	collection := c.Param("collection")
	params := c.Request.URL.Query()

	h.dispatcher.Serve(c, func(ctx context.Context) (*response.Envelope, error) {
		if _, err := h.auth.Authorize(ctx, req); err != nil {
			return nil, err
		}
		if collection != "" {
			n, err := h.service.CountOne(ctx, collection, params)
			if err != nil {
				return nil, err
			}
			return response.OK(service.CountEntry{Collection: collection, Count: n}, n), nil
		}
		entries, total, err := h.service.CountAll(ctx, params)
		if err != nil {
			return nil, err
		}
		return response.OK(entries, total), nil
	})
}
