package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/offlinereader/internal/assets"
	"github.com/mrlokans/offlinereader/internal/database"
	"github.com/mrlokans/offlinereader/internal/download"
	"github.com/mrlokans/offlinereader/internal/http"
	"github.com/mrlokans/offlinereader/internal/maintenance"
	"github.com/mrlokans/offlinereader/internal/offline"
	"github.com/mrlokans/offlinereader/internal/outbox"
	"github.com/mrlokans/offlinereader/internal/remote"
	"github.com/mrlokans/offlinereader/internal/scheduler"
	"github.com/mrlokans/offlinereader/internal/settingsstore"
	"github.com/mrlokans/offlinereader/internal/tasks"
)

// =============================================================================
// Persistent Store
// =============================================================================

var _ maintenance.Store = (*database.Database)(nil)
var _ download.Store = (*database.Database)(nil)
var _ outbox.Store = (*database.Database)(nil)
var _ offline.Store = (*database.Database)(nil)
var _ settingsstore.Settings = (*database.Database)(nil)
var _ http.BookStore = (*database.Database)(nil)
var _ http.OutboxLister = (*database.Database)(nil)
var _ http.HealthStore = (*database.Database)(nil)

// =============================================================================
// Remote Server
// =============================================================================

var _ download.Fetcher = (*remote.Client)(nil)
var _ outbox.Remote = (*remote.Client)(nil)

// =============================================================================
// Cache Services
// =============================================================================

var _ download.Maintainer = (*maintenance.Engine)(nil)
var _ scheduler.Cleaner = (*maintenance.Engine)(nil)
var _ http.Cleaner = (*maintenance.Engine)(nil)
var _ http.BookRemover = (*maintenance.Engine)(nil)
var _ offline.AssetCache = (*assets.Cache)(nil)
var _ http.AssetStore = (*assets.Cache)(nil)

// Downloader implementations
var _ tasks.Downloader = (*download.Orchestrator)(nil)
var _ http.Downloader = (*download.Orchestrator)(nil)

// Flusher implementations
var _ tasks.Flusher = (*outbox.Manager)(nil)
var _ scheduler.Flusher = (*outbox.Manager)(nil)
var _ http.OutboxService = (*outbox.Manager)(nil)

// =============================================================================
// Background Work
// =============================================================================

var _ http.TaskQueue = (*tasks.Client)(nil)
var _ http.JobStatusReader = (*settingsstore.SettingsStore)(nil)
var _ http.NextRunner = (*scheduler.MaintenanceScheduler)(nil)
var _ scheduler.StatusRecorder = (*settingsstore.SettingsStore)(nil)
