package http

import (
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/offlinereader/internal/metrics"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// The reader routes are registered last because the interceptor claims
// every unknown path and forwards it to the server.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Optional dependencies are passed on only when set, so controllers never
	// see a typed nil behind an interface.
	var queue TaskQueue
	if cfg.TaskClient != nil {
		queue = cfg.TaskClient
	}
	var jobs JobStatusReader
	if cfg.SettingsStore != nil {
		jobs = cfg.SettingsStore
	}
	var next NextRunner
	if cfg.Scheduler != nil {
		next = cfg.Scheduler
	}
	var store HealthStore
	if cfg.Database != nil {
		store = cfg.Database
	}

	health := NewHealthController(store, cfg.Version)

	// Health endpoints
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	local := router.Group("/local")
	local.GET("/status", health.LocalStatus)

	// Book cache endpoints
	if cfg.Database != nil && cfg.Orchestrator != nil && cfg.Engine != nil {
		booksController := NewBooksController(cfg.Database, cfg.Orchestrator, cfg.Engine, queue)
		local.GET("/books", booksController.ListBooks)
		local.GET("/books/:id", booksController.GetBook)
		local.POST("/books/:id/download", booksController.DownloadBook)
		local.DELETE("/books/:id", booksController.DeleteBook)
	}

	// Outbox endpoints
	if cfg.Database != nil && cfg.Outbox != nil {
		outboxController := NewOutboxController(cfg.Database, cfg.Outbox)
		local.GET("/outbox", outboxController.ListItems)
		local.POST("/outbox", outboxController.EnqueueItem)
		local.POST("/outbox/flush", outboxController.Flush)
	}

	// Maintenance endpoints
	if cfg.Engine != nil {
		maintenanceController := NewMaintenanceController(cfg.Engine, jobs, next)
		local.GET("/maintenance", maintenanceController.Status)
		local.POST("/maintenance/run", maintenanceController.Run)
	}

	// Static asset cache endpoints
	if cfg.Assets != nil {
		assetsController := NewAssetsController(cfg.Assets)
		local.GET("/assets", assetsController.Status)
		local.DELETE("/assets/*path", assetsController.Invalidate)
	}

	// Task management endpoints
	if queue != nil {
		tasksController := NewTasksController(queue)
		local.GET("/tasks/types", tasksController.ListTaskTypes)
		local.GET("/tasks/:id", tasksController.GetTaskStatus)
		local.POST("/tasks/:type/run", tasksController.RunTask)
	}

	// Reader routes and passthrough
	if cfg.Interceptor != nil {
		cfg.Interceptor.RegisterRoutes(router)
	}

	return router
}
