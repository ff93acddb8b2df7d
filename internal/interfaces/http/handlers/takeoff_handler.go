package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/KeyQTO/internal/application/takeoff"
	"github.com/turtacn/KeyQTO/internal/infrastructure/drawing"
	"github.com/turtacn/KeyQTO/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyQTO/pkg/errors"
)

// RequestPublisher queues takeoff requests for the worker.
type RequestPublisher interface {
	PublishRequested(ctx context.Context, req *takeoff.RunRequest) (string, error)
}

// TakeoffHandler serves /api/v1/takeoffs.
type TakeoffHandler struct {
	svc      takeoff.Service
	queue    RequestPublisher
	maxBytes int64
	logger   logging.Logger
}

// NewTakeoffHandler returns a handler over svc.  queue may be nil, in which
// case asynchronous submissions are refused.
func NewTakeoffHandler(svc takeoff.Service, queue RequestPublisher, maxBytes int64, logger logging.Logger) *TakeoffHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &TakeoffHandler{svc: svc, queue: queue, maxBytes: maxBytes, logger: logger}
}

// QueuedResponse acknowledges an asynchronous submission.
type QueuedResponse struct {
	EventID string `json:"event_id"`
	Status  string `json:"status"`
}

// ListResponse is a page of takeoffs.
type ListResponse struct {
	Items  []*takeoff.Takeoff `json:"items"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

// Create handles POST /api/v1/takeoffs.  The body is an annotation document
// or a bare annotation array.  The name query parameter overrides the
// document name.  With async=true the request is queued and 202 returned.
func (h *TakeoffHandler) Create(c *gin.Context) {
	doc, err := drawing.Decode(c.Request.Body, h.maxBytes)
	if err != nil {
		writeError(c, err)
		return
	}
	for _, s := range doc.Skipped {
		h.logger.Warn("annotation skipped",
			logging.Int("index", s.Index),
			logging.String("content", s.Content),
			logging.String("reason", s.Reason))
	}
	req := &takeoff.RunRequest{
		Name:        doc.Name,
		Source:      doc.Source,
		Annotations: doc.Annotations,
		Warnings:    doc.Warnings(),
	}
	if name := strings.TrimSpace(c.Query("name")); name != "" {
		req.Name = name
	}

	if async, _ := strconv.ParseBool(c.Query("async")); async {
		h.enqueue(c, req)
		return
	}

	t, err := h.svc.Run(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Location", "/api/v1/takeoffs/"+t.ID)
	c.JSON(http.StatusCreated, t)
}

func (h *TakeoffHandler) enqueue(c *gin.Context, req *takeoff.RunRequest) {
	if h.queue == nil {
		writeError(c, errors.New(errors.ErrCodeServiceUnavailable, "asynchronous takeoffs are not enabled"))
		return
	}
	id, err := h.queue.PublishRequested(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	h.logger.Info("takeoff queued",
		logging.String("event_id", id),
		logging.String("name", req.Name),
		logging.Int("annotations", len(req.Annotations)))
	c.JSON(http.StatusAccepted, QueuedResponse{EventID: id, Status: "queued"})
}

// Get handles GET /api/v1/takeoffs/:id.
func (h *TakeoffHandler) Get(c *gin.Context) {
	t, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// List handles GET /api/v1/takeoffs.
func (h *TakeoffHandler) List(c *gin.Context) {
	limit, offset := parsePagination(c)
	items, err := h.svc.List(c.Request.Context(), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	if items == nil {
		items = []*takeoff.Takeoff{}
	}
	c.JSON(http.StatusOK, ListResponse{Items: items, Limit: limit, Offset: offset})
}

//Personal.AI order the ending
