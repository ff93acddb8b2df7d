// Package component provides the central domain model of a quantity takeoff:
// the Component recognised from one drawing annotation, its raw dimensions,
// the measures derived from them, and the spatial relation policy used by the
// deduction engine.
//
// Raw dimensions (Quantity, Length, Width, Height, Diameter) are written once
// during recognition.  Gross measures are derived from them by Measure; the
// net Area and Volume start equal to the gross measures and are only lowered
// by the deduction engine, which always restarts from the gross values.
package component

import (
	"math"

	"github.com/google/uuid"
)

// ─────────────────────────────────────────────────────────────────────────────
// Enumerations
// ─────────────────────────────────────────────────────────────────────────────

// Kind is the structural role of a component.  It is assigned once at
// classification time and is mutually exclusive: a component belongs to
// exactly one deduction partition.
type Kind string

const (
	KindColumn     Kind = "column"
	KindBeam       Kind = "beam"
	KindSlab       Kind = "slab"
	KindWall       Kind = "wall"
	KindDoor       Kind = "door"
	KindWindow     Kind = "window"
	KindRebar      Kind = "rebar"
	KindFoundation Kind = "foundation"
	KindOther      Kind = "other"
)

// IsOpening reports whether k is a door or window.
func (k Kind) IsOpening() bool { return k == KindDoor || k == KindWindow }

// Family is the coarse material family used by the material summary.
type Family string

const (
	FamilyConcrete      Family = "concrete"
	FamilyReinforcement Family = "reinforcement"
	FamilyMasonry       Family = "masonry"
	FamilyOpening       Family = "opening"
	FamilyOther         Family = "other"
)

// Status is the review state of a recognised component.
type Status string

const (
	StatusPending            Status = "pending"
	StatusValid              Status = "valid"
	StatusAnomalousDimension Status = "anomalous_dimension"
)

// Anomaly reasons recorded alongside StatusAnomalousDimension.
const (
	ReasonSize         = "size"
	ReasonSpan         = "span"
	ReasonThickness    = "thickness"
	ReasonVerification = "verification"
)

// Units used by categories and price items.
const (
	UnitCubicMetre  = "m³"
	UnitSquareMetre = "m²"
	UnitMetre       = "m"
	UnitTonne       = "t"
	UnitKilogram    = "kg"
	UnitPiece       = "ea"
)

// RebarKgPerMetreFactor is the per-metre rebar mass factor: a bar of
// diameter d millimetres weighs RebarKgPerMetreFactor × d² kilograms per metre.
const RebarKgPerMetreFactor = 0.00617

// ─────────────────────────────────────────────────────────────────────────────
// Value objects
// ─────────────────────────────────────────────────────────────────────────────

// Position is a point in drawing space, in metres.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Distance returns the Euclidean distance between p and q.
func (p Position) Distance(q Position) float64 {
	dx, dy, dz := p.X-q.X, p.Y-q.Y, p.Z-q.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// PriceItem is one row of the external price table.  It is never mutated by
// the takeoff core.
type PriceItem struct {
	Unit        string  `json:"unit" yaml:"unit"`
	UnitPrice   float64 `json:"unit_price" yaml:"unit_price"`
	Description string  `json:"description" yaml:"description"`
}

// AnnotationKind is the drawing entity type an annotation was scraped from.
type AnnotationKind string

const (
	AnnotationText      AnnotationKind = "text"
	AnnotationMText     AnnotationKind = "mtext"
	AnnotationAttribute AnnotationKind = "attribute"
	AnnotationDimension AnnotationKind = "dimension"
	AnnotationLeader    AnnotationKind = "leader"
)

// TextAnnotation is a raw text label produced by the drawing-extraction
// collaborator.
type TextAnnotation struct {
	Content  string         `json:"content"`
	Layer    string         `json:"layer"`
	Position Position       `json:"position"`
	Kind     AnnotationKind `json:"kind,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Component
// ─────────────────────────────────────────────────────────────────────────────

// Component is a structural element instance inferred from one annotation.
type Component struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Kind     Kind   `json:"kind"`
	Family   Family `json:"family"`
	Grade    string `json:"grade,omitempty"`
	Code     string `json:"code,omitempty"`
	Unit     string `json:"unit"`

	SourceText string   `json:"source_text"`
	Layer      string   `json:"layer"`
	Position   Position `json:"position"`

	Confidence    float64 `json:"confidence"`
	Status        Status  `json:"status"`
	AnomalyReason string  `json:"anomaly_reason,omitempty"`

	// Raw dimensions, metres.  Zero means unknown.
	Quantity int     `json:"quantity"`
	Length   float64 `json:"length"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Diameter float64 `json:"diameter"`

	// Gross measures derived from raw dimensions.
	GrossArea    float64 `json:"gross_area"`
	GrossVolume  float64 `json:"gross_volume"`
	FormworkArea float64 `json:"formwork_area"`
	SteelWeight  float64 `json:"steel_weight"`

	// Net measures after deduction.
	Area   float64 `json:"area"`
	Volume float64 `json:"volume"`

	Price *PriceItem `json:"price,omitempty"`
	Cost  float64    `json:"cost"`
}

// New returns a Pending component with quantity 1 and the given seed
// confidence.
func New(category string, kind Kind, seedConfidence float64) *Component {
	return &Component{
		ID:         uuid.NewString(),
		Category:   category,
		Kind:       kind,
		Family:     FamilyOther,
		Unit:       UnitPiece,
		Quantity:   1,
		Confidence: seedConfidence,
		Status:     StatusPending,
	}
}

// AdjustConfidence adds delta to the confidence score.
func (c *Component) AdjustConfidence(delta float64) {
	c.Confidence += delta
}

// ClampConfidence bounds the confidence score to [0, 1].
func (c *Component) ClampConfidence() {
	c.Confidence = math.Max(0, math.Min(1, c.Confidence))
}

// MarkAnomalous sets StatusAnomalousDimension with reason.
func (c *Component) MarkAnomalous(reason string) {
	c.Status = StatusAnomalousDimension
	c.AnomalyReason = reason
}

// PromoteIfConfident moves a Pending component to Valid once its confidence
// reaches threshold.  Other states are left alone.
func (c *Component) PromoteIfConfident(threshold float64) {
	if c.Status == StatusPending && c.Confidence >= threshold {
		c.Status = StatusValid
	}
}

// IsAbnormal reports whether the component carries an anomaly status.
func (c *Component) IsAbnormal() bool { return c.Status == StatusAnomalousDimension }

// CrossSection is the single-element plan section Length × Width, without
// the quantity multiplier.
func (c *Component) CrossSection() float64 {
	if c.Length <= 0 || c.Width <= 0 {
		return 0
	}
	return c.Length * c.Width
}

func (c *Component) qty() float64 {
	if c.Quantity < 1 {
		return 1
	}
	return float64(c.Quantity)
}

// Measure derives the gross measures from the raw dimensions and resets the
// net measures to them.  It is safe to call repeatedly.
func (c *Component) Measure() {
	q := c.qty()
	l, w, h := c.Length, c.Width, c.Height

	c.GrossArea, c.GrossVolume, c.FormworkArea, c.SteelWeight = 0, 0, 0, 0
	if l > 0 && w > 0 {
		c.GrossArea = l * w * q
		if h > 0 {
			c.GrossVolume = l * w * h * q
		}
	}

	if l > 0 && w > 0 && h > 0 {
		switch c.Kind {
		case KindColumn, KindFoundation:
			c.FormworkArea = 2 * (l + w) * h * q
		case KindBeam:
			c.FormworkArea = (w + 2*h) * l * q
		case KindWall:
			c.FormworkArea = 2 * l * h * q
		}
	}
	if c.Kind == KindSlab {
		c.FormworkArea = c.GrossArea
	}

	if c.Family == FamilyReinforcement && c.Diameter > 0 && l > 0 {
		c.SteelWeight = RebarWeightPerMetre(c.Diameter) * l * q
	}

	c.ResetDeductions()
}

// Remeasure restores the gross measures before deduction.  A component with
// raw dimensions is measured from them.  Otherwise a directly set Area or
// Volume is adopted as the gross measure the first time it is seen.
func (c *Component) Remeasure() {
	if c.hasDimensions() {
		c.Measure()
		return
	}
	if c.GrossArea == 0 && c.GrossVolume == 0 {
		c.GrossArea, c.GrossVolume = c.Area, c.Volume
	}
	c.ResetDeductions()
}

func (c *Component) hasDimensions() bool {
	if c.Length > 0 && c.Width > 0 {
		return true
	}
	return c.Family == FamilyReinforcement && c.Diameter > 0 && c.Length > 0
}

// ResetDeductions restores the net measures to the gross measures.
func (c *Component) ResetDeductions() {
	c.Area = c.GrossArea
	c.Volume = c.GrossVolume
}

// RefreshCost recomputes Cost from the attached price and the net measures.
// Without a price the cost is zero.
func (c *Component) RefreshCost() {
	if c.Price == nil {
		c.Cost = 0
		return
	}
	c.Cost = c.Price.UnitPrice * c.BillableAmount(c.Price.Unit)
}

// BillableAmount returns the measure that unit is priced against.
func (c *Component) BillableAmount(unit string) float64 {
	switch unit {
	case UnitCubicMetre, "m3":
		return c.Volume
	case UnitSquareMetre, "m2":
		return c.Area
	case UnitTonne:
		return c.SteelWeight / 1000
	case UnitKilogram:
		return c.SteelWeight
	case UnitMetre:
		return c.Length * c.qty()
	default:
		return c.qty()
	}
}

// RebarWeightPerMetre returns the mass in kg of one metre of bar with the
// given diameter in metres.
func RebarWeightPerMetre(diameter float64) float64 {
	d := diameter * 1000
	return RebarKgPerMetreFactor * d * d
}

//Personal.AI order the ending
