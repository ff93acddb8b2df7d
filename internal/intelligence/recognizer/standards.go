package recognizer

import (
	"github.com/turtacn/KeyQTO/internal/domain/component"
)

// Plausibility constants.
const (
	// PlausibilityPenalty is subtracted for each violated range.
	PlausibilityPenalty = 0.1

	// ValidThreshold is the confidence at which a Pending component becomes
	// Valid.
	ValidThreshold = 0.8
)

// DimensionField selects the raw dimension a plausibility range applies to.
type DimensionField string

const (
	FieldLength DimensionField = "length"
	FieldWidth  DimensionField = "width"
	FieldHeight DimensionField = "height"
)

func (f DimensionField) value(c *component.Component) float64 {
	switch f {
	case FieldLength:
		return c.Length
	case FieldWidth:
		return c.Width
	case FieldHeight:
		return c.Height
	}
	return 0
}

// PlausibleRange is a code-typical range for one dimension of one kind.
type PlausibleRange struct {
	Kind   component.Kind
	Field  DimensionField
	Min    float64
	Max    float64
	Reason string
}

// DefaultRanges returns the built-in plausibility table.
func DefaultRanges() []PlausibleRange {
	return []PlausibleRange{
		{Kind: component.KindColumn, Field: FieldWidth, Min: 0.2, Max: 1.0, Reason: component.ReasonSize},
		{Kind: component.KindBeam, Field: FieldLength, Min: 2.0, Max: 20.0, Reason: component.ReasonSpan},
		{Kind: component.KindSlab, Field: FieldHeight, Min: 0.08, Max: 0.3, Reason: component.ReasonThickness},
	}
}

// CheckOutcome is the effect of the plausibility check on one component.
type CheckOutcome struct {
	Delta      float64
	Violations []string
}

// StandardsChecker flags dimensions outside code-typical ranges.
type StandardsChecker struct {
	ranges         []PlausibleRange
	validThreshold float64
}

// NewStandardsChecker builds a checker over ranges.  A nil slice selects
// DefaultRanges; a non-positive threshold selects ValidThreshold.
func NewStandardsChecker(ranges []PlausibleRange, validThreshold float64) *StandardsChecker {
	if ranges == nil {
		ranges = DefaultRanges()
	}
	if validThreshold <= 0 {
		validThreshold = ValidThreshold
	}
	return &StandardsChecker{ranges: ranges, validThreshold: validThreshold}
}

// Check evaluates c without modifying it.  Unknown (zero) dimensions are
// never penalised.
func (s *StandardsChecker) Check(c *component.Component) CheckOutcome {
	var out CheckOutcome
	for _, r := range s.ranges {
		if r.Kind != c.Kind {
			continue
		}
		v := r.Field.value(c)
		if v <= 0 {
			continue
		}
		if v < r.Min || v > r.Max {
			out.Delta -= PlausibilityPenalty
			out.Violations = append(out.Violations, r.Reason)
		}
	}
	return out
}

// ApplyStandardsCheck applies Check to c and then promotes a still-Pending
// component to Valid when its confidence reaches the threshold.
func (s *StandardsChecker) ApplyStandardsCheck(c *component.Component) {
	if c == nil {
		return
	}
	out := s.Check(c)
	c.AdjustConfidence(out.Delta)
	for _, reason := range out.Violations {
		c.MarkAnomalous(reason)
	}
	c.PromoteIfConfident(s.validThreshold)
}

// ValidThreshold returns the promotion threshold in use.
func (s *StandardsChecker) ValidThreshold() float64 { return s.validThreshold }

//Personal.AI order the ending
