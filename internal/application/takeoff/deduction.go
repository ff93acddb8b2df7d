// Package takeoff holds the cross-component stages of a quantity takeoff:
// the deduction engine that removes double-counted overlap between related
// components, the aggregator that rolls components up into a bill of
// quantities, and the service that orchestrates a full run.
package takeoff

import (
	"context"
	"math"
	"time"

	"github.com/turtacn/KeyQTO/internal/domain/component"
	"github.com/turtacn/KeyQTO/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyQTO/pkg/errors"
)

// ============================================================================
// Configuration
// ============================================================================

// DeductionConfig holds the deduction thresholds.
type DeductionConfig struct {
	// Tolerance is the smallest accumulated deduction that is applied, and
	// the smallest slab area or wall volume that is considered at all.
	Tolerance float64 `json:"tolerance" yaml:"tolerance"`

	// MinColumnSection is the column plan section (m²) a slab deduction
	// requires.  The comparison is strict.
	MinColumnSection float64 `json:"min_column_section" yaml:"min_column_section"`

	// MinOpeningArea is the opening area (m²) a wall deduction requires.
	// The comparison is strict.
	MinOpeningArea float64 `json:"min_opening_area" yaml:"min_opening_area"`

	// CellSize is the spatial index cell edge in metres.
	CellSize float64 `json:"cell_size" yaml:"cell_size"`
}

// DefaultDeductionConfig returns production defaults.
func DefaultDeductionConfig() DeductionConfig {
	return DeductionConfig{
		Tolerance:        0.001,
		MinColumnSection: 0.3,
		MinOpeningArea:   0.3,
		CellSize:         component.SameLayerRadius,
	}
}

// ============================================================================
// Report
// ============================================================================

// DeductionRule names one deduction rule.
type DeductionRule string

const (
	RuleSlabColumn      DeductionRule = "slab_column"
	RuleSlabWall        DeductionRule = "slab_wall"
	RuleWallOpening     DeductionRule = "wall_opening"
	RuleBeamColumnJoint DeductionRule = "beam_column_joint"
)

// Deduction is one amount removed from a target by one related source.
type Deduction struct {
	Rule           DeductionRule `json:"rule"`
	TargetID       string        `json:"target_id"`
	TargetCategory string        `json:"target_category"`
	SourceID       string        `json:"source_id"`
	SourceCategory string        `json:"source_category"`
	Measure        string        `json:"measure"` // "area" or "volume"
	Amount         float64       `json:"amount"`
}

// JointOverlap is the shared volume of a related beam and column.  It is
// reported only; neither member is modified.
type JointOverlap struct {
	BeamID   string  `json:"beam_id"`
	ColumnID string  `json:"column_id"`
	Volume   float64 `json:"volume"`
}

// DeductionReport describes the outcome of one Engine.Apply call.
type DeductionReport struct {
	Deductions    []Deduction    `json:"deductions"`
	Joints        []JointOverlap `json:"joints"`
	SlabsAdjusted int            `json:"slabs_adjusted"`
	WallsAdjusted int            `json:"walls_adjusted"`
	AreaDeducted  float64        `json:"area_deducted"`
	VolumeRemoved float64        `json:"volume_removed"`
	JointVolume   float64        `json:"joint_volume"`
}

// ============================================================================
// Engine
// ============================================================================

// DeductionMetrics records deduction telemetry.
type DeductionMetrics interface {
	RecordDeduction(rule string, amount float64)
	ObserveStage(stage string, d time.Duration)
}

// Engine applies the deduction rules to a recognised component set.
type Engine struct {
	config  DeductionConfig
	logger  logging.Logger
	metrics DeductionMetrics
}

// NewEngine constructs an Engine.  Zero thresholds fall back to the
// defaults; logger and metrics may be nil.
func NewEngine(cfg DeductionConfig, logger logging.Logger, metrics DeductionMetrics) *Engine {
	def := DefaultDeductionConfig()
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = def.Tolerance
	}
	if cfg.MinColumnSection <= 0 {
		cfg.MinColumnSection = def.MinColumnSection
	}
	if cfg.MinOpeningArea <= 0 {
		cfg.MinOpeningArea = def.MinOpeningArea
	}
	if cfg.CellSize <= 0 {
		cfg.CellSize = def.CellSize
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if metrics == nil {
		metrics = noopDeductionMetrics{}
	}
	return &Engine{config: cfg, logger: logger, metrics: metrics}
}

// partition groups components by their exclusive Kind.
type partition struct {
	slabs, walls, columns, beams, openings []*component.Component
}

func partitionByKind(comps []*component.Component) partition {
	var p partition
	for _, c := range comps {
		if c == nil {
			continue
		}
		switch {
		case c.Kind == component.KindSlab:
			p.slabs = append(p.slabs, c)
		case c.Kind == component.KindWall:
			p.walls = append(p.walls, c)
		case c.Kind == component.KindColumn:
			p.columns = append(p.columns, c)
		case c.Kind == component.KindBeam:
			p.beams = append(p.beams, c)
		case c.Kind.IsOpening():
			p.openings = append(p.openings, c)
		}
	}
	return p
}

// Apply remeasures every component from its raw dimensions and then applies
// the deduction rules.  Calling Apply again on the same set yields the
// same measures.  Costs are refreshed from the net measures.  The only error
// is cancellation of ctx, in which case measures may be partially deducted
// and a later Apply restores a consistent state.
func (e *Engine) Apply(ctx context.Context, comps []*component.Component) (*DeductionReport, error) {
	start := time.Now()
	defer func() { e.metrics.ObserveStage("deduction", time.Since(start)) }()

	for _, c := range comps {
		if c != nil {
			c.Remeasure()
		}
	}

	p := partitionByKind(comps)
	report := &DeductionReport{Deductions: []Deduction{}, Joints: []JointOverlap{}}

	if err := e.checkCancelled(ctx, "slab"); err != nil {
		return nil, err
	}
	if len(p.slabs) > 0 && (len(p.columns) > 0 || len(p.walls) > 0) {
		sources := make([]*component.Component, 0, len(p.columns)+len(p.walls))
		sources = append(sources, p.columns...)
		sources = append(sources, p.walls...)
		idx := component.NewSpatialIndex(e.config.CellSize)
		idx.Build(sources)
		for _, slab := range p.slabs {
			if err := e.checkCancelled(ctx, "slab"); err != nil {
				return nil, err
			}
			e.deductSlab(slab, idx, report)
		}
	}

	if err := e.checkCancelled(ctx, "wall"); err != nil {
		return nil, err
	}
	if len(p.walls) > 0 && len(p.openings) > 0 {
		idx := component.NewSpatialIndex(e.config.CellSize)
		idx.Build(p.openings)
		for _, wall := range p.walls {
			if err := e.checkCancelled(ctx, "wall"); err != nil {
				return nil, err
			}
			e.deductWall(wall, idx, report)
		}
	}

	if err := e.checkCancelled(ctx, "joint"); err != nil {
		return nil, err
	}
	if len(p.beams) > 0 && len(p.columns) > 0 {
		idx := component.NewSpatialIndex(e.config.CellSize)
		idx.Build(p.columns)
		for _, beam := range p.beams {
			e.recordJoints(beam, idx, report)
		}
	}

	for _, c := range comps {
		if c != nil {
			c.RefreshCost()
		}
	}

	e.logger.Info("deduction complete",
		logging.Int("components", len(comps)),
		logging.Int("slabs_adjusted", report.SlabsAdjusted),
		logging.Int("walls_adjusted", report.WallsAdjusted),
		logging.Int("joints", len(report.Joints)),
		logging.Float64("area_deducted", report.AreaDeducted),
		logging.Float64("volume_removed", report.VolumeRemoved),
		logging.Duration("elapsed", time.Since(start)))
	return report, nil
}

func (e *Engine) checkCancelled(ctx context.Context, group string) error {
	if err := ctx.Err(); err != nil {
		e.logger.Warn("deduction cancelled", logging.String("group", group), logging.Err(err))
		return errors.Wrap(err, errors.CodeCancelled, "deduction cancelled")
	}
	return nil
}

// deductSlab removes the plan area of related columns and walls from slab.
func (e *Engine) deductSlab(slab *component.Component, idx *component.SpatialIndex, report *DeductionReport) {
	if slab.Area <= e.config.Tolerance {
		return
	}
	slabQty := float64(slab.Quantity)
	if slabQty < 1 {
		slabQty = 1
	}

	var total float64
	var pending []Deduction
	for _, i := range idx.Related(slab) {
		src := idx.At(i)
		var rule DeductionRule
		var amount float64
		switch src.Kind {
		case component.KindColumn:
			section := src.CrossSection()
			if section <= e.config.MinColumnSection {
				continue
			}
			rule, amount = RuleSlabColumn, section*slabQty
		case component.KindWall:
			section := src.CrossSection()
			if section <= 0 {
				continue
			}
			rule, amount = RuleSlabWall, section*slabQty
		default:
			continue
		}
		total += amount
		pending = append(pending, Deduction{
			Rule:           rule,
			TargetID:       slab.ID,
			TargetCategory: slab.Category,
			SourceID:       src.ID,
			SourceCategory: src.Category,
			Measure:        "area",
			Amount:         amount,
		})
	}
	if total < e.config.Tolerance {
		return
	}

	before := slab.Area
	slab.Area = math.Max(0, slab.Area-total)
	switch {
	case slab.Height > 0:
		slab.Volume = slab.Area * slab.Height
	case slab.GrossArea > 0:
		slab.Volume = slab.GrossVolume * slab.Area / slab.GrossArea
	}

	report.SlabsAdjusted++
	report.AreaDeducted += before - slab.Area
	report.Deductions = append(report.Deductions, pending...)
	for _, d := range pending {
		e.metrics.RecordDeduction(string(d.Rule), d.Amount)
	}
	e.logger.Debug("slab deduction applied",
		logging.String("slab", slab.ID),
		logging.String("category", slab.Category),
		logging.Int("sources", len(pending)),
		logging.Float64("deducted", total),
		logging.Float64("area", slab.Area),
		logging.Float64("volume", slab.Volume))
}

// deductWall removes the volume of related door and window openings from
// wall.  The wall area is left unchanged.
func (e *Engine) deductWall(wall *component.Component, idx *component.SpatialIndex, report *DeductionReport) {
	if wall.Volume <= e.config.Tolerance {
		return
	}

	var total float64
	var pending []Deduction
	for _, i := range idx.Related(wall) {
		opening := idx.At(i)
		if opening.Area <= e.config.MinOpeningArea {
			continue
		}
		qty := float64(opening.Quantity)
		if qty < 1 {
			qty = 1
		}
		amount := opening.Area * wall.Width * qty
		if amount <= 0 {
			continue
		}
		total += amount
		pending = append(pending, Deduction{
			Rule:           RuleWallOpening,
			TargetID:       wall.ID,
			TargetCategory: wall.Category,
			SourceID:       opening.ID,
			SourceCategory: opening.Category,
			Measure:        "volume",
			Amount:         amount,
		})
	}
	if total < e.config.Tolerance {
		return
	}

	before := wall.Volume
	wall.Volume = math.Max(0, wall.Volume-total)

	report.WallsAdjusted++
	report.VolumeRemoved += before - wall.Volume
	report.Deductions = append(report.Deductions, pending...)
	for _, d := range pending {
		e.metrics.RecordDeduction(string(d.Rule), d.Amount)
	}
	e.logger.Debug("wall deduction applied",
		logging.String("wall", wall.ID),
		logging.String("category", wall.Category),
		logging.Int("openings", len(pending)),
		logging.Float64("deducted", total),
		logging.Float64("volume", wall.Volume))
}

// recordJoints reports the overlap of beam with every related column.
func (e *Engine) recordJoints(beam *component.Component, idx *component.SpatialIndex, report *DeductionReport) {
	for _, i := range idx.Related(beam) {
		col := idx.At(i)
		v := JointVolume(beam, col)
		if v <= 0 {
			continue
		}
		report.Joints = append(report.Joints, JointOverlap{BeamID: beam.ID, ColumnID: col.ID, Volume: v})
		report.JointVolume += v
		e.metrics.RecordDeduction(string(RuleBeamColumnJoint), v)
		e.logger.Debug("beam-column joint",
			logging.String("beam", beam.ID),
			logging.String("column", col.ID),
			logging.Float64("volume", v))
	}
}

// JointVolume is the beam-column overlap
//
//	min(beam.W·beam.H, col.L·col.W) × min(beam.L, col.H)
func JointVolume(beam, col *component.Component) float64 {
	section := math.Min(beam.Width*beam.Height, col.Length*col.Width)
	depth := math.Min(beam.Length, col.Height)
	if section <= 0 || depth <= 0 {
		return 0
	}
	return section * depth
}

type noopDeductionMetrics struct{}

func (noopDeductionMetrics) RecordDeduction(string, float64)    {}
func (noopDeductionMetrics) ObserveStage(string, time.Duration) {}
