package api

import (
	"github.com/gin-gonic/gin"
)

// NewRouter constructs a Gin engine with all routes registered.
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	RegisterSearchRoutes(r, deps)
	RegisterIngestRoutes(r, deps)
	RegisterHealthRoutes(r, deps)
	return r
}
