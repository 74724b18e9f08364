package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/offlinereader/internal/assets"
	"github.com/mrlokans/offlinereader/internal/config"
	"github.com/mrlokans/offlinereader/internal/database"
	"github.com/mrlokans/offlinereader/internal/download"
	http_controllers "github.com/mrlokans/offlinereader/internal/http"
	"github.com/mrlokans/offlinereader/internal/maintenance"
	"github.com/mrlokans/offlinereader/internal/offline"
	"github.com/mrlokans/offlinereader/internal/outbox"
	"github.com/mrlokans/offlinereader/internal/remote"
	"github.com/mrlokans/offlinereader/internal/scheduler"
	"github.com/mrlokans/offlinereader/internal/settingsstore"
	"github.com/mrlokans/offlinereader/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// App holds the components shared by the server and the one-shot commands.
type App struct {
	Config       *config.Config
	DB           *database.Database
	Engine       *maintenance.Engine
	Remote       *remote.Client
	Orchestrator *download.Orchestrator
	Outbox       *outbox.Manager
	Settings     *settingsstore.SettingsStore
}

// NewApp opens the store and connects the remote client. A failed login is
// logged, not returned: the server may simply be unreachable right now.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	db := database.New(cfg.Database.Path)
	if err := db.Open(ctx); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	client := remote.NewClient(cfg.Remote.URL, remote.WithTimeout(cfg.Remote.Timeout))
	if cfg.Remote.Password != "" {
		if err := client.Login(ctx, cfg.Remote.Password); err != nil {
			log.Printf("WARNING: login to %s failed: %v", cfg.Remote.URL, err)
		} else {
			log.Printf("Logged in to %s", cfg.Remote.URL)
		}
	}

	engine := maintenance.NewEngine(db)

	return &App{
		Config:       cfg,
		DB:           db,
		Engine:       engine,
		Remote:       client,
		Orchestrator: download.NewOrchestrator(db, engine, client),
		Outbox:       outbox.NewManager(db, client),
		Settings:     settingsstore.New(db),
	}, nil
}

// Close releases the store.
func (a *App) Close() error {
	return a.DB.Close()
}

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		fmt.Printf("Starting server at %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
		// service connections
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Call shutdown callback first (e.g., to stop task queue)
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting offline reader v%s", version)

	app, err := NewApp(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	// Finish removals interrupted by a previous crash before serving anything.
	if result, err := app.Engine.RunCleanup(context.Background()); err != nil {
		log.Printf("WARNING: startup cleanup failed: %v", err)
	} else {
		log.Printf("Startup cleanup: %d expired, %d evicted", result.Expired, result.Evicted)
	}

	assetCache, err := assets.NewCache(cfg.Assets.Dir, cfg.Remote.URL)
	if err != nil {
		log.Fatalf("Failed to initialize asset cache: %v", err)
	}
	log.Printf("Asset cache initialized at %s", assetCache.CacheDir())

	interceptor, err := offline.NewInterceptor(app.DB, assetCache, cfg.Remote.URL,
		offline.WithHTTPClient(app.Remote.HTTPClient()),
	)
	if err != nil {
		log.Fatalf("Failed to initialize reader proxy: %v", err)
	}

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.Config{
			Workers:         cfg.Tasks.Workers,
			ReleaseAfter:    cfg.Tasks.ReleaseAfter,
			CleanupInterval: cfg.Tasks.CleanupInterval,
		})
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}

		taskClient.Register(
			tasks.NewDownloadBookQueue(app.Orchestrator),
			tasks.NewFlushOutboxQueue(app.Outbox),
		)

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
	}

	maintenanceScheduler := scheduler.NewMaintenanceScheduler(app.Outbox, app.Engine, app.Settings, scheduler.Config{
		SyncEnabled:     cfg.Sync.Enabled,
		SyncSchedule:    cfg.Sync.Schedule,
		CleanupSchedule: cfg.Sync.CleanupSchedule,
	})
	if err := maintenanceScheduler.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start maintenance scheduler: %v", err)
	}

	router := http_controllers.NewRouter(http_controllers.RouterConfig{
		Database:      app.DB,
		Engine:        app.Engine,
		Orchestrator:  app.Orchestrator,
		Outbox:        app.Outbox,
		Interceptor:   interceptor,
		Assets:        assetCache,
		SettingsStore: app.Settings,
		Scheduler:     maintenanceScheduler,
		TaskClient:    taskClient,
		Version:       version,
	})

	// Shutdown callback for graceful cleanup
	onShutdown := func(ctx context.Context) {
		maintenanceScheduler.Stop()
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
			if err := taskClient.Close(); err != nil {
				log.Printf("Failed to close task database: %v", err)
			}
		}
	}

	Serve(router, cfg, onShutdown)

	if err := app.Close(); err != nil {
		log.Printf("Failed to close database: %v", err)
	}
}
