package reporting

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/turtacn/KeyQTO/internal/application/takeoff"
)

// summaryTemplate renders the bill of quantities as Markdown.
const summaryTemplate = `# Quantity takeoff: {{ .Name }}

- ID: {{ .ID }}
{{- if .Source }}
- Source: {{ .Source }}
{{- end }}
- Generated: {{ formatDate .CreatedAt }}
- Labels: {{ .Labels }}, components: {{ .Summary.TotalComponents }} (valid {{ .Summary.ValidCount }}, pending {{ .Summary.PendingCount }}, abnormal {{ .Summary.AbnormalCount }})

## Bill of quantities

| Code | Category | Unit | Count | Qty | Volume (m³) | Area (m²) | Formwork (m²) | Steel (kg) | Cost |
|---|---|---|---:|---:|---:|---:|---:|---:|---:|
{{- range .Lines }}
| {{ .Code }} | {{ .Category }} | {{ .Unit }} | {{ .Count }} | {{ .Quantity }} | {{ num .Volume 3 }} | {{ num .Area 3 }} | {{ num .FormworkArea 3 }} | {{ num .SteelWeight 3 }} | {{ num .Cost 2 }} |
{{- end }}
| | **Total** | | {{ .Summary.TotalComponents }} | | {{ num .Summary.TotalVolume 3 }} | {{ num .Summary.TotalArea 3 }} | {{ num .Summary.TotalFormwork 3 }} | {{ num .Summary.TotalSteelWeight 3 }} | {{ num .Summary.TotalCost 2 }} |

## Materials

| Family | Grade | Amount | Unit |
|---|---|---:|---|
{{- range .Summary.Materials }}
| {{ .Family }} | {{ .Grade }} | {{ num .Amount 3 }} | {{ .Unit }} |
{{- end }}
{{ with .Deduction }}
## Deductions

- Slabs adjusted: {{ .SlabsAdjusted }}, area deducted: {{ num .AreaDeducted 3 }} m²
- Walls adjusted: {{ .WallsAdjusted }}, volume removed: {{ num .VolumeRemoved 3 }} m³
- Beam-column joints: {{ len .Joints }}, overlap volume: {{ num .JointVolume 3 }} m³
{{ end }}
{{- if .Abnormal }}
## Components flagged for review

| Category | Label | Reason | Confidence |
|---|---|---|---:|
{{- range .Abnormal }}
| {{ .Category }} | {{ cell .SourceText }} | {{ .AnomalyReason }} | {{ num .Confidence 2 }} |
{{- end }}
{{ end }}
{{- if .Warnings }}
## Warnings
{{ range .Warnings }}
- {{ . }}
{{- end }}
{{ end -}}
`

var funcs = template.FuncMap{
	"num": func(v float64, decimals int) string {
		return fmt.Sprintf("%.*f", decimals, v)
	},
	"formatDate": func(t time.Time) string {
		return t.UTC().Format(time.RFC3339)
	},
	"cell": func(s string) string {
		return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ")
	},
}

// view is the data bound to summaryTemplate.
type view struct {
	*takeoff.Takeoff
	Lines    []takeoff.TypeStats
	Abnormal []abnormalRow
}

type abnormalRow struct {
	Category      string
	SourceText    string
	AnomalyReason string
	Confidence    float64
}

func newView(t *takeoff.Takeoff) view {
	v := view{Takeoff: t, Lines: t.Summary.Lines()}
	for _, c := range t.Components {
		if c != nil && c.IsAbnormal() {
			v.Abnormal = append(v.Abnormal, abnormalRow{
				Category:      c.Category,
				SourceText:    c.SourceText,
				AnomalyReason: c.AnomalyReason,
				Confidence:    c.Confidence,
			})
		}
	}
	return v
}

func parseSummaryTemplate() *template.Template {
	return template.Must(template.New("summary").Funcs(funcs).Parse(summaryTemplate))
}
