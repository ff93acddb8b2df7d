package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/KeyQTO/internal/application/reporting"
	"github.com/turtacn/KeyQTO/internal/application/takeoff"
	"github.com/turtacn/KeyQTO/pkg/errors"
)

// DownloadLinker presigns exported report objects.
type DownloadLinker interface {
	DownloadURL(ctx context.Context, id string, f reporting.Format) (string, error)
}

// TakeoffReader loads stored takeoffs.
type TakeoffReader interface {
	Get(ctx context.Context, id string) (*takeoff.Takeoff, error)
}

// ReportHandler renders and links takeoff reports.
type ReportHandler struct {
	takeoffs TakeoffReader
	renderer *reporting.Renderer
	links    DownloadLinker
}

// NewReportHandler returns a report handler.  links may be nil when exports
// are disabled.
func NewReportHandler(takeoffs TakeoffReader, renderer *reporting.Renderer, links DownloadLinker) *ReportHandler {
	if renderer == nil {
		renderer = reporting.NewRenderer()
	}
	return &ReportHandler{takeoffs: takeoffs, renderer: renderer, links: links}
}

// DownloadResponse carries a presigned report URL.
type DownloadResponse struct {
	URL    string `json:"url"`
	Format string `json:"format"`
}

// Render handles GET /api/v1/takeoffs/:id/report?format=.
func (h *ReportHandler) Render(c *gin.Context) {
	f, err := reporting.ParseFormat(c.Query("format"))
	if err != nil {
		writeError(c, err)
		return
	}
	t, err := h.takeoffs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	body, err := h.renderer.RenderBytes(t, f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="`+t.ID+"."+f.Extension()+`"`)
	c.Data(http.StatusOK, f.ContentType(), body)
}

// Download handles GET /api/v1/takeoffs/:id/download?format=.
func (h *ReportHandler) Download(c *gin.Context) {
	if h.links == nil {
		writeError(c, errors.New(errors.ErrCodeServiceUnavailable, "report export is not enabled"))
		return
	}
	f, err := reporting.ParseFormat(c.Query("format"))
	if err != nil {
		writeError(c, err)
		return
	}
	url, err := h.links.DownloadURL(c.Request.Context(), c.Param("id"), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, DownloadResponse{URL: url, Format: string(f)})
}

//Personal.AI order the ending
