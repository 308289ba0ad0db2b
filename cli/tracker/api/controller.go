package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

type Controller struct {
	Handler *Handler
	Router  *gin.Engine

	mu     sync.Mutex
	server *http.Server
}

// NewController собирает маршруты API. gatherer может быть nil, тогда /metrics не регистрируется.
func NewController(handler *Handler, gatherer prometheus.Gatherer) *Controller {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	tracking := router.Group("/tracking")
	{
		tracking.GET("", handler.GetTracking)
		tracking.POST("/start", handler.StartTracking)
		tracking.POST("/stop", handler.StopTracking)
		tracking.POST("/checkpoint", handler.AddCheckpoint)
		tracking.POST("/save", handler.SaveRoute)
		tracking.POST("/discard", handler.Discard)
		tracking.POST("/locate", handler.Locate)
		tracking.POST("/view/:id", handler.ViewRoute)
		tracking.DELETE("/view", handler.ClearView)
	}

	routes := router.Group("/routes")
	{
		routes.GET("", handler.GetRoutes)
		routes.POST("/refresh", handler.RefreshRoutes)
		routes.POST("/sync", handler.SyncRoutes)
		routes.GET("/:id", handler.GetRoute)
		routes.PATCH("/:id", handler.RenameRoute)
		routes.DELETE("/:id", handler.DeleteRoute)
	}

	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return &Controller{Handler: handler, Router: router}
}

// Run блокируется до остановки сервера через Shutdown
func (c *Controller) Run(port int32) error {
	server := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: c.Router}
	c.mu.Lock()
	c.server = server
	c.mu.Unlock()
	log.WithField("port", port).Info("API запущен")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	server := c.server
	c.mu.Unlock()
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.WithFields(log.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		}).Debug("Запрос API")
	}
}
