package component

import (
	"math"
	"sort"
)

// Spatial relation thresholds, metres.
const (
	// SameLayerRadius is the distance below which two components on the same
	// layer are related.
	SameLayerRadius = 5.0

	// CrossLayerRadius is the distance below which two components on
	// different layers are related, provided they are also vertically close.
	CrossLayerRadius = 2.0

	// CrossLayerMaxDZ bounds the vertical separation of cross-layer relations.
	CrossLayerMaxDZ = 1.0
)

// Related reports whether a and b interact for deduction purposes.  It is a
// proximity proxy for solid intersection:
//
//	(same layer AND d < 5.0) OR (d < 2.0 AND |Δz| < 1.0)
func Related(a, b *Component) bool {
	if a == nil || b == nil {
		return false
	}
	d := a.Position.Distance(b.Position)
	if a.Layer == b.Layer && d < SameLayerRadius {
		return true
	}
	return d < CrossLayerRadius && math.Abs(a.Position.Z-b.Position.Z) < CrossLayerMaxDZ
}

// ─────────────────────────────────────────────────────────────────────────────
// SpatialIndex
// ─────────────────────────────────────────────────────────────────────────────

// SpatialIndex buckets components into a regular planar grid so that related
// candidates can be found without a full pairwise scan.  Candidates from the
// 3×3 neighbourhood are refined with Related, so results are identical to a
// brute-force scan as long as CellSize ≥ SameLayerRadius.
type SpatialIndex struct {
	CellSize float64
	Grid     map[int64][]int // cell ID → component indices
	items    []*Component
}

// NewSpatialIndex creates an index with the given cell size.  Sizes below
// SameLayerRadius are raised to it.
func NewSpatialIndex(cellSize float64) *SpatialIndex {
	if cellSize < SameLayerRadius {
		cellSize = SameLayerRadius
	}
	return &SpatialIndex{
		CellSize: cellSize,
		Grid:     make(map[int64][]int),
	}
}

// Build populates the index from comps, replacing any previous content.
// Indices returned by Related refer to positions in comps.
func (si *SpatialIndex) Build(comps []*Component) {
	si.items = comps
	si.Grid = make(map[int64][]int, len(comps))
	for i, c := range comps {
		cx, cy := si.cellCoords(c.Position)
		id := cellID(cx, cy)
		si.Grid[id] = append(si.Grid[id], i)
	}
}

// Len returns the number of indexed components.
func (si *SpatialIndex) Len() int { return len(si.items) }

// At returns the indexed component at i.
func (si *SpatialIndex) At(i int) *Component { return si.items[i] }

// Related returns, in ascending index order, the indexed components related
// to target.  target itself is never returned.
func (si *SpatialIndex) Related(target *Component) []int {
	if target == nil || len(si.items) == 0 {
		return nil
	}
	cx, cy := si.cellCoords(target.Position)

	var out []int
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for _, idx := range si.Grid[cellID(cx+dx, cy+dy)] {
				other := si.items[idx]
				if other == target {
					continue
				}
				if Related(target, other) {
					out = append(out, idx)
				}
			}
		}
	}
	sort.Ints(out)
	return out
}

func (si *SpatialIndex) cellCoords(p Position) (int64, int64) {
	return int64(math.Floor(p.X / si.CellSize)), int64(math.Floor(p.Y / si.CellSize))
}

// cellID maps signed cell coordinates to a unique key: zigzag encoding
// followed by Szudzik's pairing function.
func cellID(cellX, cellY int64) int64 {
	a := zigzag(cellX)
	b := zigzag(cellY)
	if a >= b {
		return a*a + a + b
	}
	return a + b*b
}

func zigzag(v int64) int64 {
	if v >= 0 {
		return 2 * v
	}
	return -2*v - 1
}

//Personal.AI order the ending
