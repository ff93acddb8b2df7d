// Package reporting renders takeoff results for people and spreadsheets: a
// Markdown bill of quantities, CSV line items, a CSV material table and a
// CSV component listing.
package reporting

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"text/template"

	"github.com/turtacn/KeyQTO/internal/application/takeoff"
	"github.com/turtacn/KeyQTO/pkg/errors"
)

// Format selects the report rendering.
type Format string

const (
	FormatMarkdown   Format = "markdown"
	FormatLinesCSV   Format = "csv"
	FormatMaterials  Format = "materials_csv"
	FormatComponents Format = "components_csv"
	FormatJSON       Format = "json"
)

// ParseFormat maps a user-supplied name to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", "markdown", "text":
		return FormatMarkdown, nil
	case "csv", "lines", "lines_csv":
		return FormatLinesCSV, nil
	case "materials", "materials_csv":
		return FormatMaterials, nil
	case "components", "components_csv":
		return FormatComponents, nil
	case "json":
		return FormatJSON, nil
	}
	return "", errors.Newf(errors.CodeInvalidParam, "unknown report format %q", s)
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatLinesCSV, FormatMaterials, FormatComponents:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json"
	}
	return "text/markdown; charset=utf-8"
}

// Extension returns the file extension of f, without the dot.
func (f Format) Extension() string {
	switch f {
	case FormatLinesCSV, FormatMaterials, FormatComponents:
		return "csv"
	case FormatJSON:
		return "json"
	}
	return "md"
}

// Renderer renders takeoffs.  It is safe for concurrent use.
type Renderer struct {
	summary *template.Template
}

// NewRenderer parses the report templates.
func NewRenderer() *Renderer {
	return &Renderer{summary: parseSummaryTemplate()}
}

// Render writes t to w in format f.
func (r *Renderer) Render(w io.Writer, t *takeoff.Takeoff, f Format) error {
	if t == nil || t.Summary == nil {
		return errors.New(errors.CodeInvalidParam, "takeoff has no summary")
	}
	var err error
	switch f {
	case FormatMarkdown:
		err = r.summary.Execute(w, newView(t))
	case FormatLinesCSV:
		err = writeLines(w, t)
	case FormatMaterials:
		err = writeMaterials(w, t)
	case FormatComponents:
		err = writeComponents(w, t)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(t)
	default:
		return errors.Newf(errors.CodeInvalidParam, "unknown report format %q", f)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeTakeoffExportFailed, "failed to render report").WithDetail(string(f))
	}
	return nil
}

// RenderBytes renders t into memory.
func (r *Renderer) RenderBytes(t *takeoff.Takeoff, f Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, t, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func ff(v float64, decimals int) string { return strconv.FormatFloat(v, 'f', decimals, 64) }

func writeLines(w io.Writer, t *takeoff.Takeoff) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"code", "category", "kind", "family", "unit", "count", "quantity",
		"volume_m3", "area_m2", "formwork_m2", "steel_kg", "cost", "mean_confidence", "abnormal"})
	for _, l := range t.Summary.Lines() {
		_ = cw.Write([]string{
			l.Code, l.Category, l.Kind, l.Family, l.Unit,
			strconv.Itoa(l.Count), strconv.Itoa(l.Quantity),
			ff(l.Volume, 3), ff(l.Area, 3), ff(l.FormworkArea, 3), ff(l.SteelWeight, 3),
			ff(l.Cost, 2), ff(l.MeanConfidence, 3), strconv.Itoa(l.Abnormal),
		})
	}
	cw.Flush()
	return cw.Error()
}

func writeMaterials(w io.Writer, t *takeoff.Takeoff) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"family", "grade", "amount", "unit"})
	for _, m := range t.Summary.Materials {
		_ = cw.Write([]string{m.Family, m.Grade, ff(m.Amount, 3), m.Unit})
	}
	cw.Flush()
	return cw.Error()
}

func writeComponents(w io.Writer, t *takeoff.Takeoff) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"id", "category", "code", "grade", "layer", "source_text", "status", "reason",
		"confidence", "quantity", "length_m", "width_m", "height_m", "diameter_m",
		"gross_area_m2", "area_m2", "gross_volume_m3", "volume_m3", "steel_kg", "cost"})
	for _, c := range t.Components {
		if c == nil {
			continue
		}
		_ = cw.Write([]string{
			c.ID, c.Category, c.Code, c.Grade, c.Layer, c.SourceText, string(c.Status), c.AnomalyReason,
			ff(c.Confidence, 2), strconv.Itoa(c.Quantity),
			ff(c.Length, 3), ff(c.Width, 3), ff(c.Height, 3), ff(c.Diameter, 3),
			ff(c.GrossArea, 3), ff(c.Area, 3), ff(c.GrossVolume, 3), ff(c.Volume, 3),
			ff(c.SteelWeight, 3), ff(c.Cost, 2),
		})
	}
	cw.Flush()
	return cw.Error()
}
