package takeoff

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/KeyQTO/internal/domain/component"
	"github.com/turtacn/KeyQTO/internal/intelligence/recognizer"
	"github.com/turtacn/KeyQTO/internal/testutil"
	"github.com/turtacn/KeyQTO/pkg/errors"
)

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func measured(category string, kind component.Kind, l, w, h float64, at component.Position) *component.Component {
	c := component.New(category, kind, 0.9)
	c.Family = component.FamilyConcrete
	c.Layer = "S-STRU"
	c.Length, c.Width, c.Height = l, w, h
	c.Position = at
	c.Measure()
	return c
}

func origin() component.Position { return component.Position{} }

func near(dx float64) component.Position { return component.Position{X: dx} }

type recordingDeductionMetrics struct {
	mu      sync.Mutex
	amounts map[string]float64
	stages  []string
}

func (m *recordingDeductionMetrics) RecordDeduction(rule string, amount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.amounts == nil {
		m.amounts = map[string]float64{}
	}
	m.amounts[rule] += amount
}

func (m *recordingDeductionMetrics) ObserveStage(stage string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages = append(m.stages, stage)
}

func newEngine() *Engine { return NewEngine(DefaultDeductionConfig(), nil, nil) }

// ---------------------------------------------------------------------------
// Slab rule
// ---------------------------------------------------------------------------

func TestApply_SlabMinusColumn(t *testing.T) {
	slab := measured("C30 concrete slab", component.KindSlab, 10, 10, 0.12, origin())
	col := measured("concrete column", component.KindColumn, 0.6, 0.6, 3, near(1))

	report, err := newEngine().Apply(context.Background(), []*component.Component{slab, col})

	require.NoError(t, err)
	assert.InDelta(t, 99.64, slab.Area, 1e-9)
	assert.InDelta(t, 11.957, slab.Volume, 5e-4)
	assert.InDelta(t, 11.9568, slab.Volume, 1e-9)
	assert.Equal(t, 1, report.SlabsAdjusted)
	require.Len(t, report.Deductions, 1)
	assert.Equal(t, RuleSlabColumn, report.Deductions[0].Rule)
	assert.Equal(t, col.ID, report.Deductions[0].SourceID)
	assert.InDelta(t, 0.36, report.AreaDeducted, 1e-9)

	assert.InDelta(t, 0.36, col.Area, 1e-9, "sources are not modified")
}

func TestApply_UnmeasuredComponents(t *testing.T) {
	slab := component.New("C30 concrete slab", component.KindSlab, 0.9)
	slab.Family = component.FamilyConcrete
	slab.Layer = "S-STRU"
	slab.Length, slab.Width, slab.Height = 10, 10, 0.12
	slab.Area = 100
	col := measured("concrete column", component.KindColumn, 0.6, 0.6, 3, near(1))

	_, err := newEngine().Apply(context.Background(), []*component.Component{slab, col})

	require.NoError(t, err)
	assert.InDelta(t, 100, slab.GrossArea, 1e-9)
	assert.InDelta(t, 99.64, slab.Area, 1e-9)
	assert.InDelta(t, 11.9568, slab.Volume, 1e-9)
}

func TestApply_DirectAreaWithoutDimensions(t *testing.T) {
	slab := component.New("concrete slab", component.KindSlab, 0.9)
	slab.Layer = "S-STRU"
	slab.Area, slab.Volume = 100, 12
	col := measured("concrete column", component.KindColumn, 0.6, 0.6, 3, near(1))
	comps := []*component.Component{slab, col}

	for i := 0; i < 2; i++ {
		_, err := newEngine().Apply(context.Background(), comps)
		require.NoError(t, err)
		assert.InDelta(t, 99.64, slab.Area, 1e-9)
		assert.InDelta(t, 11.9568, slab.Volume, 1e-9)
	}
}

func TestApply_ColumnSectionBoundary(t *testing.T) {
	tests := []struct {
		name     string
		l, w     float64
		deducted bool
	}{
		{"exactly 0.3 is kept", 0.5, 0.6, false},
		{"just below 0.3 is kept", 0.5, 0.59, false},
		{"just above 0.3 is deducted", 0.5, 0.61, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slab := measured("concrete slab", component.KindSlab, 10, 10, 0.12, origin())
			col := measured("concrete column", component.KindColumn, tt.l, tt.w, 3, near(1))

			_, err := newEngine().Apply(context.Background(), []*component.Component{slab, col})

			require.NoError(t, err)
			if tt.deducted {
				assert.InDelta(t, 100-tt.l*tt.w, slab.Area, 1e-9)
			} else {
				assert.InDelta(t, 100, slab.Area, 1e-9)
				assert.InDelta(t, 12, slab.Volume, 1e-9)
			}
		})
	}
}

func TestApply_SlabMinusWallAndQuantity(t *testing.T) {
	slab := measured("concrete slab", component.KindSlab, 10, 10, 0.12, origin())
	slab.Quantity = 2
	slab.Measure()
	wall := measured("concrete shear wall", component.KindWall, 4, 0.2, 3, near(2))

	_, err := newEngine().Apply(context.Background(), []*component.Component{slab, wall})

	require.NoError(t, err)
	assert.InDelta(t, 200-0.8*2, slab.Area, 1e-9)
	assert.InDelta(t, (200-1.6)*0.12, slab.Volume, 1e-9)
}

func TestApply_SlabClampedAtZero(t *testing.T) {
	slab := measured("concrete slab", component.KindSlab, 1, 1, 0.12, origin())
	wall := measured("concrete shear wall", component.KindWall, 10, 0.3, 3, near(1))

	_, err := newEngine().Apply(context.Background(), []*component.Component{slab, wall})

	require.NoError(t, err)
	assert.Zero(t, slab.Area)
	assert.Zero(t, slab.Volume)
}

func TestApply_UnrelatedColumnIgnored(t *testing.T) {
	slab := measured("concrete slab", component.KindSlab, 10, 10, 0.12, origin())
	far := measured("concrete column", component.KindColumn, 0.6, 0.6, 3, near(30))
	otherLayer := measured("concrete column", component.KindColumn, 0.6, 0.6, 3, near(3))
	otherLayer.Layer = "A-ARCH"

	report, err := newEngine().Apply(context.Background(), []*component.Component{slab, far, otherLayer})

	require.NoError(t, err)
	assert.InDelta(t, 100, slab.Area, 1e-9)
	assert.Zero(t, report.SlabsAdjusted)
}

func TestApply_BelowToleranceSkipped(t *testing.T) {
	slab := measured("concrete slab", component.KindSlab, 10, 10, 0.12, origin())
	wall := measured("concrete wall", component.KindWall, 0.02, 0.02, 3, near(1))

	report, err := newEngine().Apply(context.Background(), []*component.Component{slab, wall})

	require.NoError(t, err)
	assert.InDelta(t, 100, slab.Area, 1e-9)
	assert.Empty(t, report.Deductions)
}

// ---------------------------------------------------------------------------
// Wall rule
// ---------------------------------------------------------------------------

func TestApply_WallMinusDoor(t *testing.T) {
	wall := measured("concrete wall", component.KindWall, 40, 0.2, 3, origin())
	door := measured("door", component.KindDoor, 0.9, 2.0, 0, near(1))
	door.Family = component.FamilyOpening

	report, err := newEngine().Apply(context.Background(), []*component.Component{wall, door})

	require.NoError(t, err)
	assert.InDelta(t, 24, wall.GrossVolume, 1e-9)
	assert.InDelta(t, 23.64, wall.Volume, 1e-9)
	assert.InDelta(t, 8, wall.Area, 1e-9, "wall area is untouched")
	assert.Equal(t, 1, report.WallsAdjusted)
	assert.InDelta(t, 0.36, report.VolumeRemoved, 1e-9)
}

func TestApply_WallThicknessFromLabel(t *testing.T) {
	wall := component.New("concrete shear wall", component.KindWall, 0.9)
	wall.Layer = "S-STRU"
	recognizer.NewDimensionExtractor(nil).ExtractDimensions("剪力墙 Q1 200厚", wall)
	wall.Length, wall.Height = 40, 3
	door := measured("door", component.KindDoor, 0.9, 2.0, 0, near(1))
	door.Family = component.FamilyOpening

	report, err := newEngine().Apply(context.Background(), []*component.Component{wall, door})

	require.NoError(t, err)
	assert.InDelta(t, 0.2, wall.Width, 1e-9)
	assert.InDelta(t, 23.64, wall.Volume, 1e-9)
	assert.Equal(t, 1, report.WallsAdjusted)
}

func TestApply_OpeningAreaBoundary(t *testing.T) {
	tests := []struct {
		name     string
		l, w     float64
		deducted bool
	}{
		{"exactly 0.3 is kept", 0.5, 0.6, false},
		{"above 0.3 is deducted", 0.6, 0.6, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wall := measured("concrete wall", component.KindWall, 40, 0.2, 3, origin())
			win := measured("window", component.KindWindow, tt.l, tt.w, 0, near(1))

			_, err := newEngine().Apply(context.Background(), []*component.Component{wall, win})

			require.NoError(t, err)
			if tt.deducted {
				assert.InDelta(t, 24-tt.l*tt.w*0.2, wall.Volume, 1e-9)
			} else {
				assert.InDelta(t, 24, wall.Volume, 1e-9)
			}
		})
	}
}

func TestApply_WallOpeningQuantity(t *testing.T) {
	wall := measured("concrete wall", component.KindWall, 40, 0.2, 3, origin())
	door := component.New("door", component.KindDoor, 0.9)
	door.Layer = "S-STRU"
	door.Length, door.Width, door.Quantity = 0.9, 2.0, 2
	door.Position = near(1)
	door.Measure()

	_, err := newEngine().Apply(context.Background(), []*component.Component{wall, door})

	require.NoError(t, err)
	assert.InDelta(t, 24-3.6*0.2*2, wall.Volume, 1e-9)
}

// ---------------------------------------------------------------------------
// Joints
// ---------------------------------------------------------------------------

func TestApply_BeamColumnJointReportedOnly(t *testing.T) {
	beam := measured("concrete beam", component.KindBeam, 6, 0.3, 0.6, origin())
	col := measured("concrete column", component.KindColumn, 0.5, 0.5, 3, near(1))

	report, err := newEngine().Apply(context.Background(), []*component.Component{beam, col})

	require.NoError(t, err)
	require.Len(t, report.Joints, 1)
	assert.InDelta(t, 0.18*3, report.Joints[0].Volume, 1e-9)
	assert.InDelta(t, 0.54, report.JointVolume, 1e-9)
	assert.InDelta(t, 1.08, beam.Volume, 1e-9)
	assert.InDelta(t, 0.75, col.Volume, 1e-9)
}

func TestJointVolume(t *testing.T) {
	beam := measured("concrete beam", component.KindBeam, 2, 0.3, 0.6, origin())
	col := measured("concrete column", component.KindColumn, 0.4, 0.4, 3, origin())
	assert.InDelta(t, 0.16*2, JointVolume(beam, col), 1e-9)

	flat := measured("concrete beam", component.KindBeam, 2, 0.3, 0, origin())
	assert.Zero(t, JointVolume(flat, col), "unknown beam depth means no overlap")

	blank := measured("concrete column", component.KindColumn, 0, 0, 0, origin())
	assert.Zero(t, JointVolume(beam, blank))
}

// ---------------------------------------------------------------------------
// Engine properties
// ---------------------------------------------------------------------------

func buildingFixture() []*component.Component {
	slab := measured("C30 concrete slab", component.KindSlab, 10, 10, 0.12, origin())
	col := measured("C30 concrete column", component.KindColumn, 0.6, 0.6, 3, near(1))
	wall := measured("concrete wall", component.KindWall, 40, 0.2, 3, near(2))
	door := measured("door", component.KindDoor, 0.9, 2.0, 0, near(3))
	beam := measured("concrete beam", component.KindBeam, 6, 0.3, 0.6, near(1.5))
	column2 := measured("concrete column", component.KindColumn, 0.3, 0.3, 3, near(4))
	slab.Price = &component.PriceItem{Unit: component.UnitCubicMetre, UnitPrice: 450}
	return []*component.Component{slab, col, wall, door, beam, column2}
}

func snapshot(comps []*component.Component) [][2]float64 {
	out := make([][2]float64, len(comps))
	for i, c := range comps {
		out[i] = [2]float64{c.Area, c.Volume}
	}
	return out
}

func TestApply_Idempotent(t *testing.T) {
	comps := buildingFixture()
	e := newEngine()

	first, err := e.Apply(context.Background(), comps)
	require.NoError(t, err)
	once := snapshot(comps)
	costOnce := comps[0].Cost

	second, err := e.Apply(context.Background(), comps)
	require.NoError(t, err)

	assert.Equal(t, once, snapshot(comps))
	assert.Equal(t, first.Deductions, second.Deductions)
	assert.Equal(t, first.Joints, second.Joints)
	assert.InDelta(t, costOnce, comps[0].Cost, 1e-9)
}

func TestApply_Monotonic(t *testing.T) {
	comps := buildingFixture()

	_, err := newEngine().Apply(context.Background(), comps)
	require.NoError(t, err)

	for _, c := range comps {
		assert.LessOrEqual(t, c.Area, c.GrossArea+1e-12, c.Category)
		assert.LessOrEqual(t, c.Volume, c.GrossVolume+1e-12, c.Category)
		assert.GreaterOrEqual(t, c.Area, 0.0)
		assert.GreaterOrEqual(t, c.Volume, 0.0)
	}
}

func TestApply_RefreshesCost(t *testing.T) {
	comps := buildingFixture()
	slab := comps[0]
	slab.RefreshCost()
	assert.InDelta(t, 12*450, slab.Cost, 1e-9)

	_, err := newEngine().Apply(context.Background(), comps)
	require.NoError(t, err)

	assert.InDelta(t, slab.Volume*450, slab.Cost, 1e-9)
	assert.Less(t, slab.Cost, 12*450.0)
}

func TestApply_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := newEngine().Apply(ctx, buildingFixture())

	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, errors.IsCode(err, errors.CodeCancelled))
	assert.True(t, stderrors.Is(err, context.Canceled))
}

func TestApply_EmptyAndNil(t *testing.T) {
	report, err := newEngine().Apply(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, report.Deductions)

	report, err = newEngine().Apply(context.Background(), []*component.Component{nil})
	require.NoError(t, err)
	assert.Empty(t, report.Joints)
}

func TestApply_MetricsAndLogging(t *testing.T) {
	m := &recordingDeductionMetrics{}
	log := testutil.NewMockLogger()
	e := NewEngine(DefaultDeductionConfig(), log, m)

	_, err := e.Apply(context.Background(), buildingFixture())

	require.NoError(t, err)
	assert.Equal(t, []string{"deduction"}, m.stages)
	assert.InDelta(t, 0.36, m.amounts[string(RuleSlabColumn)], 1e-9)
	assert.Greater(t, m.amounts[string(RuleWallOpening)], 0.0)
	assert.True(t, log.HasMessage("info", "deduction complete"))
	assert.True(t, log.HasMessage("debug", "beam-column joint"))
}

func TestNewEngine_ZeroConfigUsesDefaults(t *testing.T) {
	e := NewEngine(DeductionConfig{}, nil, nil)
	assert.Equal(t, DefaultDeductionConfig(), e.config)
}

//Personal.AI order the ending
