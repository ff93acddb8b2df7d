package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/KeyQTO/internal/infrastructure/pricing"
	"github.com/turtacn/KeyQTO/pkg/errors"
)

// PriceTable is the read side of *pricing.PriceBook.
type PriceTable interface {
	Entries() []pricing.Entry
	Match(label string) (pricing.Match, bool)
	Currency() string
	Version() int64
	LoadedAt() time.Time
}

// PriceHandler serves /api/v1/prices.
type PriceHandler struct {
	table PriceTable
}

func NewPriceHandler(table PriceTable) *PriceHandler {
	return &PriceHandler{table: table}
}

// PriceListResponse is the loaded price table.
type PriceListResponse struct {
	Currency string          `json:"currency,omitempty"`
	Version  int64           `json:"version"`
	LoadedAt time.Time       `json:"loaded_at"`
	Items    []pricing.Entry `json:"items"`
}

// MatchResponse explains how a label was priced.
type MatchResponse struct {
	Label    string  `json:"label"`
	Key      string  `json:"key"`
	Strategy string  `json:"strategy"`
	Unit     string  `json:"unit"`
	Price    float64 `json:"unit_price"`
}

// List handles GET /api/v1/prices.
func (h *PriceHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, PriceListResponse{
		Currency: h.table.Currency(),
		Version:  h.table.Version(),
		LoadedAt: h.table.LoadedAt(),
		Items:    h.table.Entries(),
	})
}

// Match handles GET /api/v1/prices/match?label=.
func (h *PriceHandler) Match(c *gin.Context) {
	label := strings.TrimSpace(c.Query("label"))
	if label == "" {
		writeError(c, errors.InvalidParam("label is required"))
		return
	}
	m, ok := h.table.Match(label)
	if !ok {
		writeError(c, errors.Newf(errors.ErrCodePriceNotFound, "no price for %q", label))
		return
	}
	c.JSON(http.StatusOK, MatchResponse{
		Label:    label,
		Key:      m.Key,
		Strategy: string(m.Strategy),
		Unit:     m.Item.Unit,
		Price:    m.Item.UnitPrice,
	})
}

//Personal.AI order the ending
