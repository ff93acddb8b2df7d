package takeoff

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/KeyQTO/internal/domain/component"
)

func graded(category, grade string, kind component.Kind, family component.Family, l, w, h float64) *component.Component {
	c := measured(category, kind, l, w, h, origin())
	c.Family = family
	c.Grade = grade
	c.Status = component.StatusValid
	c.Measure()
	return c
}

func TestSummarize_ByType(t *testing.T) {
	a := graded("C30 concrete column", "C30", component.KindColumn, component.FamilyConcrete, 0.6, 0.6, 3)
	b := graded("C30 concrete column", "C30", component.KindColumn, component.FamilyConcrete, 0.5, 0.5, 3)
	b.Confidence = 0.8
	a.Price = &component.PriceItem{Unit: component.UnitCubicMetre, UnitPrice: 333.333}
	a.RefreshCost()

	s := Summarize([]*component.Component{a, b})

	require.Contains(t, s.ByType, "C30 concrete column")
	st := s.ByType["C30 concrete column"]
	assert.Equal(t, 2, st.Count)
	assert.Equal(t, 2, st.Quantity)
	assert.InDelta(t, 1.83, st.Volume, 1e-9)
	assert.InDelta(t, 0.61, st.Area, 1e-9)
	assert.Equal(t, 360.0, st.Cost)
	assert.InDelta(t, 0.85, st.MeanConfidence, 1e-9)
	assert.Equal(t, component.UnitPiece, st.Unit)
}

func TestSummarize_Rounding(t *testing.T) {
	c := graded("concrete slab", "", component.KindSlab, component.FamilyConcrete, 1, 1, 0.12345)
	c.Price = &component.PriceItem{Unit: component.UnitSquareMetre, UnitPrice: 10.006}
	c.RefreshCost()

	s := Summarize([]*component.Component{c})
	st := s.ByType["concrete slab"]

	assert.Equal(t, 0.123, st.Volume)
	assert.Equal(t, 1.0, st.Area)
	assert.Equal(t, 10.01, st.Cost)
	assert.Equal(t, 0.123, s.TotalVolume)
	assert.Equal(t, 10.01, s.TotalCost)
}

func TestSummarize_StatusCounts(t *testing.T) {
	valid := graded("concrete column", "", component.KindColumn, component.FamilyConcrete, 0.4, 0.4, 3)
	abnormal := graded("concrete beam", "", component.KindBeam, component.FamilyConcrete, 0.3, 0.6, 0)
	abnormal.MarkAnomalous(component.ReasonSpan)
	pending := graded("door", "", component.KindDoor, component.FamilyOpening, 1, 2.1, 0)
	pending.Status = component.StatusPending

	s := Summarize([]*component.Component{valid, abnormal, pending, nil})

	assert.Equal(t, 3, s.TotalComponents)
	assert.Equal(t, 1, s.ValidCount)
	assert.Equal(t, 1, s.AbnormalCount)
	assert.Equal(t, 1, s.PendingCount)
	assert.Equal(t, 1, s.ByType["concrete beam"].Abnormal)
	assert.InDelta(t, 0.9, s.AverageConfidence, 1e-9)
}

func TestSummarize_Materials(t *testing.T) {
	c30col := graded("C30 concrete column", "C30", component.KindColumn, component.FamilyConcrete, 0.6, 0.6, 3)
	c30slab := graded("C30 concrete slab", "C30", component.KindSlab, component.FamilyConcrete, 10, 10, 0.12)
	c35 := graded("C35 concrete column", "C35", component.KindColumn, component.FamilyConcrete, 0.5, 0.5, 3)
	brick := graded("brick masonry wall", "", component.KindWall, component.FamilyMasonry, 10, 0.24, 3)
	door := graded("door", "", component.KindDoor, component.FamilyOpening, 1, 2.1, 0)

	rebar := component.New("HRB400 rebar", component.KindRebar, 0.95)
	rebar.Family = component.FamilyReinforcement
	rebar.Grade = "HRB400"
	rebar.Diameter, rebar.Length, rebar.Quantity = 0.012, 6, 10
	rebar.Measure()

	s := Summarize([]*component.Component{c30col, c30slab, c35, brick, door, rebar})

	m, ok := s.Material(component.FamilyConcrete, "C30")
	require.True(t, ok)
	assert.InDelta(t, 13.08, m.Amount, 1e-9)
	assert.Equal(t, component.UnitCubicMetre, m.Unit)

	m, ok = s.Material(component.FamilyConcrete, "C35")
	require.True(t, ok)
	assert.InDelta(t, 0.75, m.Amount, 1e-9)

	m, ok = s.Material(component.FamilyReinforcement, "HRB400")
	require.True(t, ok)
	assert.Equal(t, component.UnitTonne, m.Unit)
	assert.InDelta(t, 0.053, m.Amount, 1e-9)

	m, ok = s.Material(component.FamilyMasonry, "unspecified")
	require.True(t, ok)
	assert.InDelta(t, 7.2, m.Amount, 1e-9)

	m, ok = s.Material(component.FamilyOpening, "door")
	require.True(t, ok)
	assert.InDelta(t, 2.1, m.Amount, 1e-9)
	assert.Equal(t, component.UnitSquareMetre, m.Unit)

	families := make([]string, 0, len(s.Materials))
	for _, line := range s.Materials {
		families = append(families, line.Family+"/"+line.Grade)
	}
	assert.Equal(t, []string{
		"concrete/C30", "concrete/C35", "reinforcement/HRB400", "masonry/unspecified", "opening/door",
	}, families)
}

func TestSummarize_VolumeConservation(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	categories := []string{"concrete column", "concrete beam", "concrete slab", "concrete wall"}
	kinds := []component.Kind{component.KindColumn, component.KindBeam, component.KindSlab, component.KindWall}

	var comps []*component.Component
	var raw float64
	for i := 0; i < 200; i++ {
		k := rng.Intn(len(kinds))
		c := measured(categories[k], kinds[k], 0.1+rng.Float64()*9, 0.1+rng.Float64(), 0.1+rng.Float64()*3,
			component.Position{X: rng.Float64() * 40, Y: rng.Float64() * 40})
		comps = append(comps, c)
	}
	_, err := newEngine().Apply(context.Background(), comps)
	require.NoError(t, err)
	for _, c := range comps {
		raw += c.Volume
	}

	s := Summarize(comps)

	var byType float64
	for _, st := range s.ByType {
		byType += st.Volume
	}
	assert.InDelta(t, raw, byType, 0.0005*float64(len(s.ByType)))
	assert.InDelta(t, raw, s.TotalVolume, 0.0005)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.TotalComponents)
	assert.Empty(t, s.ByType)
	assert.Empty(t, s.Materials)
	assert.Empty(t, s.Lines())
}

func TestQuantitySummary_LinesOrdered(t *testing.T) {
	col := graded("concrete column", "", component.KindColumn, component.FamilyConcrete, 0.4, 0.4, 3)
	col.Code = "010502001"
	c30 := graded("C30 concrete column", "C30", component.KindColumn, component.FamilyConcrete, 0.4, 0.4, 3)
	c30.Code = "010502001"
	door := graded("door", "", component.KindDoor, component.FamilyOpening, 1, 2.1, 0)
	door.Code = "010801001"
	slab := graded("concrete slab", "", component.KindSlab, component.FamilyConcrete, 5, 5, 0.12)
	slab.Code = "010505003"

	lines := Summarize([]*component.Component{door, slab, col, c30}).Lines()

	require.Len(t, lines, 4)
	assert.Equal(t, "C30 concrete column", lines[0].Category)
	assert.Equal(t, "concrete column", lines[1].Category)
	assert.Equal(t, "concrete slab", lines[2].Category)
	assert.Equal(t, "door", lines[3].Category)
}

//Personal.AI order the ending
