package http

import (
	"github.com/mrlokans/offlinereader/internal/assets"
	"github.com/mrlokans/offlinereader/internal/database"
	"github.com/mrlokans/offlinereader/internal/download"
	"github.com/mrlokans/offlinereader/internal/maintenance"
	"github.com/mrlokans/offlinereader/internal/offline"
	"github.com/mrlokans/offlinereader/internal/outbox"
	"github.com/mrlokans/offlinereader/internal/scheduler"
	"github.com/mrlokans/offlinereader/internal/settingsstore"
	"github.com/mrlokans/offlinereader/internal/tasks"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Database     *database.Database
	Engine       *maintenance.Engine
	Orchestrator *download.Orchestrator
	Outbox       *outbox.Manager

	// Reader routes; when nil only the local API is served
	Interceptor *offline.Interceptor

	// Static asset cache (optional)
	Assets *assets.Cache

	// Last job outcomes (optional)
	SettingsStore *settingsstore.SettingsStore

	// Periodic jobs (optional)
	Scheduler *scheduler.MaintenanceScheduler

	// Task queue client (optional)
	TaskClient *tasks.Client

	// Application info
	Version string
}
