package client

import "time"

// Position is a point in drawing coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Annotation is one text label extracted from a drawing.
type Annotation struct {
	Content  string   `json:"content"`
	Layer    string   `json:"layer"`
	Position Position `json:"position"`
	Kind     string   `json:"kind,omitempty"`
}

// TakeoffRequest submits the annotations of one drawing.
type TakeoffRequest struct {
	Name        string       `json:"name"`
	Source      string       `json:"source,omitempty"`
	Annotations []Annotation `json:"annotations"`
}

// PriceItem is the unit price applied to a component.
type PriceItem struct {
	Unit        string  `json:"unit"`
	UnitPrice   float64 `json:"unit_price"`
	Description string  `json:"description"`
}

// Component is one recognised building element.
type Component struct {
	ID            string     `json:"id"`
	Category      string     `json:"category"`
	Kind          string     `json:"kind"`
	Family        string     `json:"family"`
	Grade         string     `json:"grade,omitempty"`
	Code          string     `json:"code,omitempty"`
	Unit          string     `json:"unit"`
	SourceText    string     `json:"source_text"`
	Layer         string     `json:"layer"`
	Position      Position   `json:"position"`
	Confidence    float64    `json:"confidence"`
	Status        string     `json:"status"`
	AnomalyReason string     `json:"anomaly_reason,omitempty"`
	Quantity      int        `json:"quantity"`
	Length        float64    `json:"length"`
	Width         float64    `json:"width"`
	Height        float64    `json:"height"`
	Diameter      float64    `json:"diameter"`
	GrossArea     float64    `json:"gross_area"`
	GrossVolume   float64    `json:"gross_volume"`
	FormworkArea  float64    `json:"formwork_area"`
	SteelWeight   float64    `json:"steel_weight"`
	Area          float64    `json:"area"`
	Volume        float64    `json:"volume"`
	Price         *PriceItem `json:"price,omitempty"`
	Cost          float64    `json:"cost"`
}

// TypeStats aggregates the components of one category.
type TypeStats struct {
	Category       string  `json:"category"`
	Code           string  `json:"code,omitempty"`
	Kind           string  `json:"kind"`
	Family         string  `json:"family"`
	Unit           string  `json:"unit"`
	Count          int     `json:"count"`
	Quantity       int     `json:"quantity"`
	Volume         float64 `json:"volume"`
	Area           float64 `json:"area"`
	FormworkArea   float64 `json:"formwork_area"`
	SteelWeight    float64 `json:"steel_weight"`
	Cost           float64 `json:"cost"`
	MeanConfidence float64 `json:"mean_confidence"`
	Abnormal       int     `json:"abnormal"`
}

// MaterialLine totals one material grade.
type MaterialLine struct {
	Family string  `json:"family"`
	Grade  string  `json:"grade"`
	Unit   string  `json:"unit"`
	Amount float64 `json:"amount"`
}

// Summary is the bill of quantities of a takeoff.
type Summary struct {
	ByType            map[string]*TypeStats `json:"by_type"`
	Materials         []MaterialLine        `json:"materials"`
	TotalComponents   int                   `json:"total_components"`
	ValidCount        int                   `json:"valid_count"`
	PendingCount      int                   `json:"pending_count"`
	AbnormalCount     int                   `json:"abnormal_count"`
	AverageConfidence float64               `json:"average_confidence"`
	TotalVolume       float64               `json:"total_volume"`
	TotalArea         float64               `json:"total_area"`
	TotalFormwork     float64               `json:"total_formwork"`
	TotalSteelWeight  float64               `json:"total_steel_weight"`
	TotalCost         float64               `json:"total_cost"`
}

// Takeoff is a completed takeoff.  The deduction report is kept as raw
// JSON fields the SDK does not interpret.
type Takeoff struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Source         string        `json:"source,omitempty"`
	Labels         int           `json:"labels"`
	Components     []*Component  `json:"components"`
	Summary        *Summary      `json:"summary"`
	ExportLocation string        `json:"export_location,omitempty"`
	Warnings       []string      `json:"warnings,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	Duration       time.Duration `json:"duration"`
}

// Queued acknowledges an asynchronous submission.
type Queued struct {
	EventID string `json:"event_id"`
	Status  string `json:"status"`
}

// TakeoffPage is one page of List.
type TakeoffPage struct {
	Items  []*Takeoff `json:"items"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// Download is a presigned report link.
type Download struct {
	URL    string `json:"url"`
	Format string `json:"format"`
}

// PriceEntry is one row of the price table.
type PriceEntry struct {
	Label       string  `json:"label"`
	Unit        string  `json:"unit"`
	UnitPrice   float64 `json:"unit_price"`
	Description string  `json:"description"`
}

// PriceTable is the loaded price table.
type PriceTable struct {
	Currency string       `json:"currency,omitempty"`
	Version  int64        `json:"version"`
	LoadedAt time.Time    `json:"loaded_at"`
	Items    []PriceEntry `json:"items"`
}

// PriceMatch explains how a label was priced.
type PriceMatch struct {
	Label     string  `json:"label"`
	Key       string  `json:"key"`
	Strategy  string  `json:"strategy"`
	Unit      string  `json:"unit"`
	UnitPrice float64 `json:"unit_price"`
}

// ComponentCheck is the readiness of one dependency.
type ComponentCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Health is the readiness probe result.
type Health struct {
	Status     string                    `json:"status"`
	Version    string                    `json:"version,omitempty"`
	Components map[string]ComponentCheck `json:"components,omitempty"`
}

//Personal.AI order the ending
