package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/offlinereader/internal/maintenance"
)

type HealthResponse struct {
	Status  string            `json:"status"`
	Time    string            `json:"time"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks"`
}

// StatusResponse summarizes what the local cache currently holds.
type StatusResponse struct {
	Version       string `json:"version,omitempty"`
	Time          string `json:"time"`
	Books         int64  `json:"books"`
	MaxBooks      int    `json:"max_books"`
	OutboxPending int64  `json:"outbox_pending"`
}

type HealthController struct {
	db      HealthStore
	version string
}

func NewHealthController(db HealthStore, version string) *HealthController {
	return &HealthController{
		db:      db,
		version: version,
	}
}

func (h *HealthController) Status(c *gin.Context) {
	checks := make(map[string]string)
	status := "healthy"

	// Check database connectivity
	if h.db != nil {
		if err := h.db.Open(c.Request.Context()); err != nil {
			checks["database"] = "error: " + err.Error()
			status = "unhealthy"
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "not configured"
	}

	health := HealthResponse{
		Status:  status,
		Time:    time.Now().Format(time.RFC3339),
		Version: h.version,
		Checks:  checks,
	}

	statusCode := http.StatusOK
	if status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.IndentedJSON(statusCode, health)
}

// LocalStatus handles GET /local/status
func (h *HealthController) LocalStatus(c *gin.Context) {
	resp := StatusResponse{
		Version:  h.version,
		Time:     time.Now().Format(time.RFC3339),
		MaxBooks: maintenance.MaxBooks,
	}

	if h.db == nil {
		c.JSON(http.StatusOK, resp)
		return
	}

	books, err := h.db.CountBooks(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "count books")
		return
	}
	pending, err := h.db.CountOutboxItems(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "count outbox")
		return
	}
	resp.Books = books
	resp.OutboxPending = pending

	c.JSON(http.StatusOK, resp)
}
