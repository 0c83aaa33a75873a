package handler

import (
	"github.com/gin-gonic/gin"
)

// Routes groups the handlers mounted by Register.
type Routes struct {
	Resources []*ResourceHandler
	Count     *CountHandler
	Token     *TokenHandler
	Bisect    *BisectHandler
	Metrics   *MetricsHandler
}

// Register mounts the API on group. Every resource gets every verb so that
// unsupported ones answer 501 from the handler rather than 404.
func Register(group *gin.RouterGroup, routes Routes) {
	for _, h := range routes.Resources {
		base := "/" + h.resource.Name
		group.GET(base, h.List)
		group.HEAD(base, h.List)
		group.GET(base+"/:id", h.List)
		group.HEAD(base+"/:id", h.List)
		group.POST(base, h.Create)
		group.PUT(base, h.Update)
		group.PUT(base+"/:id", h.Update)
		group.DELETE(base, h.Delete)
		group.DELETE(base+"/:id", h.Delete)
		group.PATCH(base, h.Unsupported)
		group.PATCH(base+"/:id", h.Unsupported)
	}

	if h := routes.Count; h != nil {
		group.GET("/count", h.Count)
		group.GET("/count/:collection", h.Count)
	}

	if h := routes.Token; h != nil {
		group.GET("/token", h.List)
		group.GET("/token/:id", h.List)
		group.POST("/token", h.Create)
		group.PUT("/token", h.Update)
		group.PUT("/token/:id", h.Update)
		group.DELETE("/token", h.Delete)
		group.DELETE("/token/:id", h.Delete)
	}

	if h := routes.Bisect; h != nil {
		group.GET("/bisect/:collection/*id", h.Bisect)
		group.POST("/bisect/:collection/*id", h.Bisect)
	}

	if h := routes.Metrics; h != nil {
		group.GET("/health", h.Health)
		group.GET("/ready", h.Ready)
		group.GET("/version", h.Version)
		group.GET("/metrics", h.Prometheus)
	}
}
