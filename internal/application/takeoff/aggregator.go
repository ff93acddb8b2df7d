package takeoff

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/turtacn/KeyQTO/internal/domain/component"
)

// Rounding precision of reported figures.
const (
	measurePrecision = 3
	costPrecision    = 2
)

// TypeStats is the roll-up of every component of one category.
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

// MaterialLine is the consumption of one material grade.
type MaterialLine struct {
	Family string  `json:"family"`
	Grade  string  `json:"grade"`
	Unit   string  `json:"unit"`
	Amount float64 `json:"amount"`
}

// QuantitySummary is the bill of quantities of one takeoff.
type QuantitySummary struct {
	ByType    map[string]*TypeStats `json:"by_type"`
	Materials []MaterialLine        `json:"materials"`

	TotalComponents int `json:"total_components"`
	ValidCount      int `json:"valid_count"`
	PendingCount    int `json:"pending_count"`
	AbnormalCount   int `json:"abnormal_count"`

	AverageConfidence float64 `json:"average_confidence"`

	TotalVolume      float64 `json:"total_volume"`
	TotalArea        float64 `json:"total_area"`
	TotalFormwork    float64 `json:"total_formwork"`
	TotalSteelWeight float64 `json:"total_steel_weight"`
	TotalCost        float64 `json:"total_cost"`
}

type typeAccumulator struct {
	stats                                           *TypeStats
	volumes, areas, formwork, steel, costs, confids []float64
}

type materialKey struct {
	family component.Family
	grade  string
}

// Summarize rolls comps up by category and by material.  Per-category
// volumes and areas are rounded to three decimals and costs to two.  Totals
// are summed from the unrounded component values and rounded the same way.
func Summarize(comps []*component.Component) *QuantitySummary {
	s := &QuantitySummary{ByType: make(map[string]*TypeStats)}

	acc := make(map[string]*typeAccumulator)
	materials := make(map[materialKey]float64)
	var volumes, areas, formwork, steel, costs, confids []float64

	for _, c := range comps {
		if c == nil {
			continue
		}
		s.TotalComponents++
		switch c.Status {
		case component.StatusValid:
			s.ValidCount++
		case component.StatusAnomalousDimension:
			s.AbnormalCount++
		default:
			s.PendingCount++
		}

		a, ok := acc[c.Category]
		if !ok {
			a = &typeAccumulator{stats: &TypeStats{
				Category: c.Category,
				Code:     c.Code,
				Kind:     string(c.Kind),
				Family:   string(c.Family),
				Unit:     c.Unit,
			}}
			acc[c.Category] = a
		}
		a.stats.Count++
		a.stats.Quantity += max(c.Quantity, 1)
		if c.IsAbnormal() {
			a.stats.Abnormal++
		}
		a.volumes = append(a.volumes, c.Volume)
		a.areas = append(a.areas, c.Area)
		a.formwork = append(a.formwork, c.FormworkArea)
		a.steel = append(a.steel, c.SteelWeight)
		a.costs = append(a.costs, c.Cost)
		a.confids = append(a.confids, c.Confidence)

		volumes = append(volumes, c.Volume)
		areas = append(areas, c.Area)
		formwork = append(formwork, c.FormworkArea)
		steel = append(steel, c.SteelWeight)
		costs = append(costs, c.Cost)
		confids = append(confids, c.Confidence)

		if key, amount, ok := materialUsage(c); ok {
			materials[key] += amount
		}
	}

	for category, a := range acc {
		st := a.stats
		st.Volume = scalar.Round(floats.Sum(a.volumes), measurePrecision)
		st.Area = scalar.Round(floats.Sum(a.areas), measurePrecision)
		st.FormworkArea = scalar.Round(floats.Sum(a.formwork), measurePrecision)
		st.SteelWeight = scalar.Round(floats.Sum(a.steel), measurePrecision)
		st.Cost = scalar.Round(floats.Sum(a.costs), costPrecision)
		st.MeanConfidence = scalar.Round(floats.Sum(a.confids)/float64(len(a.confids)), measurePrecision)
		s.ByType[category] = st
	}

	s.TotalVolume = scalar.Round(floats.Sum(volumes), measurePrecision)
	s.TotalArea = scalar.Round(floats.Sum(areas), measurePrecision)
	s.TotalFormwork = scalar.Round(floats.Sum(formwork), measurePrecision)
	s.TotalSteelWeight = scalar.Round(floats.Sum(steel), measurePrecision)
	s.TotalCost = scalar.Round(floats.Sum(costs), costPrecision)
	if len(confids) > 0 {
		s.AverageConfidence = scalar.Round(floats.Sum(confids)/float64(len(confids)), measurePrecision)
	}

	s.Materials = make([]MaterialLine, 0, len(materials))
	for key, amount := range materials {
		s.Materials = append(s.Materials, MaterialLine{
			Family: string(key.family),
			Grade:  key.grade,
			Unit:   materialUnit(key.family),
			Amount: scalar.Round(amount, measurePrecision),
		})
	}
	sort.Slice(s.Materials, func(i, j int) bool {
		fi, fj := familyRank(s.Materials[i].Family), familyRank(s.Materials[j].Family)
		if fi != fj {
			return fi < fj
		}
		return s.Materials[i].Grade < s.Materials[j].Grade
	})
	return s
}

// materialUsage returns the material consumed by c: concrete and masonry by
// volume, reinforcement by weight in tonnes, openings by area.
func materialUsage(c *component.Component) (materialKey, float64, bool) {
	key := materialKey{family: c.Family, grade: c.Grade}
	switch c.Family {
	case component.FamilyConcrete, component.FamilyMasonry:
		if key.grade == "" {
			key.grade = "unspecified"
		}
		return key, c.Volume, c.Volume > 0
	case component.FamilyReinforcement:
		if key.grade == "" {
			key.grade = "unspecified"
		}
		return key, c.SteelWeight / 1000, c.SteelWeight > 0
	case component.FamilyOpening:
		key.grade = string(c.Kind)
		return key, c.Area, c.Area > 0
	}
	return key, 0, false
}

func materialUnit(f component.Family) string {
	switch f {
	case component.FamilyReinforcement:
		return component.UnitTonne
	case component.FamilyOpening:
		return component.UnitSquareMetre
	}
	return component.UnitCubicMetre
}

func familyRank(f string) int {
	switch component.Family(f) {
	case component.FamilyConcrete:
		return 0
	case component.FamilyReinforcement:
		return 1
	case component.FamilyMasonry:
		return 2
	case component.FamilyOpening:
		return 3
	}
	return 4
}

// Lines returns the per-category statistics as a flat table ordered by item
// code and then category.
func (s *QuantitySummary) Lines() []TypeStats {
	out := make([]TypeStats, 0, len(s.ByType))
	for _, st := range s.ByType {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Code != out[j].Code {
			return out[i].Code < out[j].Code
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// Material returns the amount recorded for family and grade.
func (s *QuantitySummary) Material(family component.Family, grade string) (MaterialLine, bool) {
	for _, m := range s.Materials {
		if m.Family == string(family) && m.Grade == grade {
			return m, true
		}
	}
	return MaterialLine{}, false
}

//Personal.AI order the ending
