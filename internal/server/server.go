// Package server builds the gin router and hosts the stream module.
package server

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/streamctl/internal/config"
	"github.com/mantonx/streamctl/internal/middleware"
)

//go:embed templates/*.html
var templateFS embed.FS

// RouteRegistrar is implemented by modules that expose HTTP routes
type RouteRegistrar interface {
	RegisterRoutes(router *gin.Engine)
}

// SetupRouter configures the main router and registers every module's routes
func SetupRouter(cfg *config.Config, logger hclog.Logger, modules ...RouteRegistrar) (*gin.Engine, error) {
	r := gin.New()
	httpLogger := logger.Named("http")
	r.Use(middleware.RequestLogger(httpLogger), middleware.ErrorLogger(httpLogger), gin.Recovery())

	if cfg.Server.EnableCORS {
		r.Use(middleware.CORS())
	}

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	r.SetHTMLTemplate(tmpl)

	r.Static(cfg.Server.StaticURL, cfg.Server.StaticDir)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	for _, m := range modules {
		m.RegisterRoutes(r)
	}

	return r, nil
}
