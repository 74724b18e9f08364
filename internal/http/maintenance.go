package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/offlinereader/internal/maintenance"
	"github.com/mrlokans/offlinereader/internal/settingsstore"
)

// MaintenanceStatus describes the cache policies and the periodic jobs.
type MaintenanceStatus struct {
	TTLHours int                                           `json:"ttl_hours"`
	MaxBooks int                                           `json:"max_books"`
	LastRuns map[settingsstore.Job]settingsstore.JobStatus `json:"last_runs"`
	NextRuns map[settingsstore.Job]time.Time               `json:"next_runs,omitempty"`
}

// MaintenanceController runs cleanup on demand and reports job state.
type MaintenanceController struct {
	cleaner   Cleaner
	jobs      JobStatusReader
	scheduler NextRunner
}

// NewMaintenanceController creates a MaintenanceController. jobs and scheduler may be nil.
func NewMaintenanceController(cleaner Cleaner, jobs JobStatusReader, scheduler NextRunner) *MaintenanceController {
	return &MaintenanceController{
		cleaner:   cleaner,
		jobs:      jobs,
		scheduler: scheduler,
	}
}

// Run handles POST /local/maintenance/run
func (mc *MaintenanceController) Run(c *gin.Context) {
	result, err := mc.cleaner.RunCleanup(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "run maintenance")
		return
	}
	c.JSON(http.StatusOK, result)
}

// Status handles GET /local/maintenance
func (mc *MaintenanceController) Status(c *gin.Context) {
	status := MaintenanceStatus{
		TTLHours: int(maintenance.TTL / time.Hour),
		MaxBooks: maintenance.MaxBooks,
		LastRuns: make(map[settingsstore.Job]settingsstore.JobStatus),
	}

	if mc.jobs != nil {
		for _, job := range []settingsstore.Job{settingsstore.JobSync, settingsstore.JobCleanup} {
			status.LastRuns[job] = mc.jobs.GetJobStatus(c.Request.Context(), job)
		}
	}
	if mc.scheduler != nil {
		status.NextRuns = mc.scheduler.NextRuns()
	}

	c.JSON(http.StatusOK, status)
}
