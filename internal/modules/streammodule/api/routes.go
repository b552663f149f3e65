package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the stream module's routes.
//
//	/               - index page with the sample player
//	/run            - start a stream (GET or POST)
//	/stop           - finalize a stream (GET or POST)
//	/api/v1/stream
//	├── /profiles       - representation catalog
//	├── /processes      - running engine processes
//	├── /dispatches     - recent engine requests, or one output's with ?output=
//	└── /dispatches/:id - one engine request
func RegisterRoutes(router *gin.Engine, handler *APIHandler) {
	router.GET("/", handler.Index)

	router.GET("/run", handler.Run)
	router.POST("/run", handler.Run)
	router.GET("/stop", handler.Stop)
	router.POST("/stop", handler.Stop)

	v1 := router.Group("/api/v1/stream")
	{
		v1.GET("/profiles", handler.ListProfiles)
		v1.GET("/processes", handler.ListProcesses)
		v1.GET("/dispatches", handler.ListDispatches)
		v1.GET("/dispatches/:id", handler.GetDispatch)
	}
}
