package handler

import (
	"context"
	"net/http"
	"net/url"
	"path"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/noah-isme/ci-results-api/internal/models"
	"github.com/noah-isme/ci-results-api/internal/service"
	"github.com/noah-isme/ci-results-api/pkg/dispatch"
	appErrors "github.com/noah-isme/ci-results-api/pkg/errors"
	"github.com/noah-isme/ci-results-api/pkg/response"
)

// ResourceService is the document API a resource handler exposes.
type ResourceService interface {
	List(ctx context.Context, res models.Resource, params url.Values) (*service.ListResult, error)
	Get(ctx context.Context, res models.Resource, rawID string, params url.Values) (bson.M, error)
	Create(ctx context.Context, res models.Resource, raw []byte) (*service.CreateResult, error)
	Update(ctx context.Context, res models.Resource, rawID string, raw []byte) error
	Delete(ctx context.Context, res models.Resource, rawID string) error
}

// ResourceHandler serves the REST verbs of one registered resource.
type ResourceHandler struct {
	resource   models.Resource
	service    ResourceService
	auth       Authorizer
	dispatcher *dispatch.Dispatcher
	basePath   string
}

// NewResourceHandler constructs a handler for res mounted under basePath.
func NewResourceHandler(res models.Resource, svc ResourceService, auth Authorizer, d *dispatch.Dispatcher, basePath string) *ResourceHandler {
	return &ResourceHandler{resource: res, service: svc, auth: auth, dispatcher: d, basePath: basePath}
}

// guard runs the checks every verb shares: authorization, then verb support,
// then the id requirement.
func (h *ResourceHandler) guard(ctx context.Context, req service.AuthRequest, id string, needsID bool) error {
	if _, err := h.auth.Authorize(ctx, req); err != nil {
		return err
	}
	if !h.resource.Supports(req.Method) {
		return appErrors.ErrNotImplemented
	}
	if needsID && id == "" {
		return appErrors.ErrMissingID
	}
	return nil
}

// List godoc
// @Summary List or fetch documents of a resource
// @Tags Resources
// @Produce json
// @Param resource path string true "Resource name" Enums(job, build, boot, test)
// @Param id path string false "Document ID"
// @Param field query []string false "Fields to include"
// @Param nfield query []string false "Fields to exclude"
// @Param sort query []string false "Sort fields"
// @Param sort_order query int false "1 ascending, -1 descending"
// @Param skip query int false "Documents to skip"
// @Param limit query int false "Maximum documents"
// @Param date_range query int false "Days back from today"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /{resource}/{id} [get]
func (h *ResourceHandler) List(c *gin.Context) {
	req := authRequest(c, false)
	id := pathID(c)
	params := c.Request.URL.Query()

	h.dispatcher.Serve(c, func(ctx context.Context) (*response.Envelope, error) {
		if err := h.guard(ctx, req, id, false); err != nil {
			return nil, err
		}
		if id != "" {
			doc, err := h.service.Get(ctx, h.resource, id, params)
			if err != nil {
				return nil, err
			}
			return response.OK(doc, 1), nil
		}
		page, err := h.service.List(ctx, h.resource, params)
		if err != nil {
			return nil, err
		}
		env := response.OK(page.Documents, page.Count)
		if page.Limit > 0 {
			_ = env.SetLimit(page.Limit)
		}
		return env, nil
	})
}

// Create godoc
// @Summary Create a document
// @Description boot and build reports are imported asynchronously and answer 202 with the task id.
// @Tags Resources
// @Accept json
// @Produce json
// @Param resource path string true "Resource name" Enums(job, build, boot, test)
// @Success 201 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /{resource} [post]
func (h *ResourceHandler) Create(c *gin.Context) {
	req := authRequest(c, false)
	id := pathID(c)
	raw, bodyErr := readJSONBody(c)

	h.dispatcher.Serve(c, func(ctx context.Context) (*response.Envelope, error) {
		if err := h.guard(ctx, req, id, false); err != nil {
			return nil, err
		}
		if bodyErr != nil {
			return nil, bodyErr
		}
		out, err := h.service.Create(ctx, h.resource, raw)
		if err != nil {
			return nil, err
		}
		if out.TaskID != "" {
			env := response.New(http.StatusAccepted)
			_ = env.SetResult(bson.M{"task_id": out.TaskID})
			return env, nil
		}
		env := response.New(http.StatusCreated)
		_ = env.SetResult(bson.M{"_id": out.ID})
		_ = env.SetHeader("Location", path.Join(h.basePath, h.resource.Name, out.ID.Hex()))
		return env, nil
	})
}

// Update godoc
// @Summary Update a document
// @Tags Resources
// @Accept json
// @Produce json
// @Param resource path string true "Resource name" Enums(job, test)
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 501 {object} response.Envelope
// @Router /{resource}/{id} [put]
func (h *ResourceHandler) Update(c *gin.Context) {
	req := authRequest(c, false)
	id := pathID(c)
	raw, bodyErr := readJSONBody(c)

	h.dispatcher.Serve(c, func(ctx context.Context) (*response.Envelope, error) {
		if err := h.guard(ctx, req, id, true); err != nil {
			return nil, err
		}
		if bodyErr != nil {
			return nil, bodyErr
		}
		if err := h.service.Update(ctx, h.resource, id, raw); err != nil {
			return nil, err
		}
		return response.New(http.StatusOK), nil
	})
}

// Delete godoc
// @Summary Delete a document
// @Tags Resources
// @Produce json
// @Param resource path string true "Resource name" Enums(job, build, boot, test)
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /{resource}/{id} [delete]
func (h *ResourceHandler) Delete(c *gin.Context) {
	req := authRequest(c, false)
	id := pathID(c)

	h.dispatcher.Serve(c, func(ctx context.Context) (*response.Envelope, error) {
		if err := h.guard(ctx, req, id, true); err != nil {
			return nil, err
		}
		if err := h.service.Delete(ctx, h.resource, id); err != nil {
			return nil, err
		}
		return response.New(http.StatusOK), nil
	})
}

// Unsupported answers verbs no resource implements. The token is still
// checked first.
func (h *ResourceHandler) Unsupported(c *gin.Context) {
	req := authRequest(c, false)
	id := pathID(c)

	h.dispatcher.Serve(c, func(ctx context.Context) (*response.Envelope, error) {
		if err := h.guard(ctx, req, id, false); err != nil {
			return nil, err
		}
		return nil, appErrors.ErrNotImplemented
	})
}
