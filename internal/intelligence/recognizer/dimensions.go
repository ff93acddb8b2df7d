package recognizer

import (
	"regexp"
	"strconv"

	"github.com/turtacn/KeyQTO/internal/domain/component"
	"github.com/turtacn/KeyQTO/internal/infrastructure/monitoring/logging"
)

// Confidence deltas contributed by dimension extraction.
const (
	QuantityBonus = 0.05
	LinearBonus   = 0.03
	DiameterBonus = 0.02
)

// mmPerMetre converts drawing millimetres to stored metres.
const mmPerMetre = 1000.0

// Dimensions is the raw result of parsing one label.  Zero fields were not
// found.
type Dimensions struct {
	Quantity int
	Length   float64
	Width    float64
	Height   float64
	Diameter float64

	// Thickness comes from a 厚/h=/t= token.  It is a wall's width and any
	// other component's height.
	Thickness float64

	HasQuantity bool
	HasLinear   bool
	HasDiameter bool
}

// ConfidenceDelta is the confidence contributed by the parsed fields.
func (d Dimensions) ConfidenceDelta() float64 {
	var delta float64
	if d.HasQuantity {
		delta += QuantityBonus
	}
	if d.HasLinear {
		delta += LinearBonus
	}
	if d.HasDiameter {
		delta += DiameterBonus
	}
	return delta
}

// DimensionExtractor parses quantity, linear dimensions and bar diameter from
// annotation text.  Source text is in millimetres.
type DimensionExtractor struct {
	logger logging.Logger

	quantityRe       *regexp.Regexp
	quantityPrefixRe *regexp.Regexp
	linearRe         *regexp.Regexp
	thicknessRe      *regexp.Regexp
	thicknessSufRe   *regexp.Regexp
	lengthRe         *regexp.Regexp
	diameterRe       *regexp.Regexp
}

// NewDimensionExtractor compiles the extraction patterns.
func NewDimensionExtractor(logger logging.Logger) *DimensionExtractor {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &DimensionExtractor{
		logger:           logger,
		quantityRe:       regexp.MustCompile(`(\d+)\s*(?:根|个|块|樘|处|件|榀|道|套|(?i:pcs|nos|ea)\b)`),
		quantityPrefixRe: regexp.MustCompile(`(?i)(?:qty|数量)\s*[:=]?\s*(\d+)`),
		linearRe:         regexp.MustCompile(`(\d+(?:\.\d+)?)\s*[×xX*]\s*(\d+(?:\.\d+)?)(?:\s*[×xX*]\s*(\d+(?:\.\d+)?))?`),
		thicknessRe:      regexp.MustCompile(`(?:厚度?|(?:^|[^A-Za-z])[hHtT]\s*=|(?i:thk)\.?)\s*(\d+(?:\.\d+)?)`),
		thicknessSufRe:   regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:mm)?\s*厚`),
		lengthRe:         regexp.MustCompile(`(?:^|[^A-Za-z])[lL]\s*=\s*(\d+(?:\.\d+)?)`),
		diameterRe:       regexp.MustCompile(`(?:[ΦφØø]|%%[cC]|\b(?i:dia)\.?)\s*(\d+(?:\.\d+)?)`),
	}
}

// Parse extracts dimensions from text without touching any component.
func (e *DimensionExtractor) Parse(text string) Dimensions {
	var d Dimensions

	if n, ok := e.parseQuantity(text); ok {
		d.Quantity = n
		d.HasQuantity = true
	}

	if m := e.linearRe.FindStringSubmatch(text); m != nil {
		vals := make([]float64, 0, 3)
		for _, g := range m[1:] {
			if g == "" {
				continue
			}
			v, ok := e.millimetres(g, text)
			if !ok {
				break
			}
			vals = append(vals, v)
		}
		if len(vals) >= 2 {
			d.Length, d.Width = vals[0], vals[1]
			if len(vals) == 3 {
				d.Height = vals[2]
			}
			d.HasLinear = true
		}
	}

	if d.Height == 0 {
		for _, re := range []*regexp.Regexp{e.thicknessRe, e.thicknessSufRe} {
			m := re.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			if v, ok := e.millimetres(m[1], text); ok {
				d.Thickness = v
				d.HasLinear = true
				break
			}
		}
	}
	if d.Length == 0 {
		if m := e.lengthRe.FindStringSubmatch(text); m != nil {
			if v, ok := e.millimetres(m[1], text); ok {
				d.Length = v
				d.HasLinear = true
			}
		}
	}

	if m := e.diameterRe.FindStringSubmatch(text); m != nil {
		if v, ok := e.millimetres(m[1], text); ok {
			d.Diameter = v
			d.HasDiameter = true
		}
	}

	return d
}

// ExtractDimensions parses text and writes the result into c, adding the
// extraction confidence bonuses.  Fields that were not found keep their
// current value.
func (e *DimensionExtractor) ExtractDimensions(text string, c *component.Component) {
	if c == nil {
		return
	}
	d := e.Parse(text)
	if d.HasQuantity {
		c.Quantity = d.Quantity
	}
	if d.Length > 0 {
		c.Length = d.Length
	}
	if d.Width > 0 {
		c.Width = d.Width
	}
	if d.Height > 0 {
		c.Height = d.Height
	}
	if d.Thickness > 0 {
		if c.Kind == component.KindWall {
			c.Width = d.Thickness
		} else {
			c.Height = d.Thickness
		}
	}
	if d.Diameter > 0 {
		c.Diameter = d.Diameter
	}
	c.AdjustConfidence(d.ConfidenceDelta())
}

func (e *DimensionExtractor) parseQuantity(text string) (int, bool) {
	for _, re := range []*regexp.Regexp{e.quantityPrefixRe, e.quantityRe} {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			e.logger.Debug("quantity token ignored", logging.String("token", m[1]), logging.String("text", text))
			continue
		}
		return n, true
	}
	return 0, false
}

func (e *DimensionExtractor) millimetres(token, text string) (float64, bool) {
	v, err := strconv.ParseFloat(token, 64)
	if err != nil || v <= 0 {
		e.logger.Debug("dimension token ignored", logging.String("token", token), logging.String("text", text))
		return 0, false
	}
	return v / mmPerMetre, true
}

//Personal.AI order the ending
