package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/offlinereader/internal/entities"
	"github.com/mrlokans/offlinereader/internal/outbox"
)

// EnqueueRequest is the body of POST /local/outbox.
type EnqueueRequest struct {
	Type    string          `json:"type" binding:"required"`
	BookID  string          `json:"book_id"`
	Payload json.RawMessage `json:"payload"`
}

// OutboxController exposes the pending mutation queue.
type OutboxController struct {
	store   OutboxLister
	service OutboxService
}

func NewOutboxController(store OutboxLister, service OutboxService) *OutboxController {
	return &OutboxController{store: store, service: service}
}

// ListItems handles GET /local/outbox
func (oc *OutboxController) ListItems(c *gin.Context) {
	items, err := oc.store.GetAllOutboxItems(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "list outbox")
		return
	}
	if items == nil {
		items = []entities.OutboxItem{}
	}

	c.JSON(http.StatusOK, gin.H{
		"items":    items,
		"count":    len(items),
		"flushing": oc.service.IsFlushing(),
	})
}

// EnqueueItem handles POST /local/outbox
func (oc *OutboxController) EnqueueItem(c *gin.Context) {
	var req EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}

	item, err := oc.service.Enqueue(c.Request.Context(), entities.OutboxType(req.Type), req.BookID, req.Payload)
	if err != nil {
		if errors.Is(err, outbox.ErrUnknownMutation) || errors.Is(err, outbox.ErrInvalidMutation) {
			respondBadRequest(c, err.Error())
			return
		}
		respondInternalError(c, err, "enqueue outbox item")
		return
	}

	respondCreated(c, item)
}

// Flush handles POST /local/outbox/flush
func (oc *OutboxController) Flush(c *gin.Context) {
	result, err := oc.service.FlushOutbox(c.Request.Context())
	if errors.Is(err, outbox.ErrFlushInProgress) {
		respondError(c, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		respondInternalError(c, err, "flush outbox")
		return
	}

	c.JSON(http.StatusOK, result)
}
