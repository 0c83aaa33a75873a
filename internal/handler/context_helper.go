package handler

import (
	"context"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ci-results-api/internal/middleware"
	"github.com/noah-isme/ci-results-api/internal/models"
	"github.com/noah-isme/ci-results-api/internal/service"
	appErrors "github.com/noah-isme/ci-results-api/pkg/errors"
)

// Authorizer checks a request's token against its method.
type Authorizer interface {
	Authorize(ctx context.Context, req service.AuthRequest) (*models.Token, error)
}

// authRequest captures what the token check needs from the gin context so the
// check can run on a dispatcher worker.
func authRequest(c *gin.Context, tokenManagement bool) service.AuthRequest {
	return service.AuthRequest{
		Token:           middleware.TokenFromContext(c),
		Method:          c.Request.Method,
		RemoteIP:        c.ClientIP(),
		TokenManagement: tokenManagement,
	}
}

// readJSONBody returns the raw body when the request declares a JSON content
// type, and a 415 otherwise.
func readJSONBody(c *gin.Context) ([]byte, error) {
	mediaType, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return nil, appErrors.ErrUnsupportedMediaType
	}
	raw, err := c.GetRawData()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "Unable to read request body")
	}
	return raw, nil
}

// pathID returns the :id path parameter, or "" on collection routes.
func pathID(c *gin.Context) string {
	return c.Param("id")
}
