package requestid

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func serve(req *http.Request) (*httptest.ResponseRecorder, string, string) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	var fromGin, fromCtx string
	r.GET("/count", func(c *gin.Context) {
		fromGin = Value(c)
		fromCtx = FromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w, fromGin, fromCtx
}

func TestMiddlewareGeneratesID(t *testing.T) {
	w, fromGin, fromCtx := serve(httptest.NewRequest(http.MethodGet, "/count", nil))

	assert.Len(t, fromGin, 26)
	assert.Equal(t, fromGin, fromCtx)
	assert.Equal(t, fromGin, w.Header().Get(Header))
}

func TestMiddlewareKeepsCallerID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/count", nil)
	req.Header.Set(Header, "lab-42")
	w, fromGin, fromCtx := serve(req)

	assert.Equal(t, "lab-42", fromGin)
	assert.Equal(t, "lab-42", fromCtx)
	assert.Equal(t, "lab-42", w.Header().Get(Header))
}
