package world

import "math"

// SpatialGrid is a uniform-cell spatial index over 3D positions. One grid
// exists per zone instance and is accessed only from the zone goroutine —
// no locks.
//
// Invariant: every inserted GUID lives in exactly one cell, and that
// cell's key equals the key derived from the GUID's recorded position.
type SpatialGrid struct {
	cellSize  float32
	cells     map[gridKey]map[GUID]struct{}
	positions map[GUID]Vec3
}

type gridKey struct {
	cx, cy, cz int32
}

// DefaultCellSize is the grid cell edge in world units.
const DefaultCellSize float32 = 50.0

func NewSpatialGrid(cellSize float32) *SpatialGrid {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	return &SpatialGrid{
		cellSize:  cellSize,
		cells:     make(map[gridKey]map[GUID]struct{}),
		positions: make(map[GUID]Vec3),
	}
}

func (g *SpatialGrid) key(p Vec3) gridKey {
	return gridKey{
		cx: int32(math.Floor(float64(p.X / g.cellSize))),
		cy: int32(math.Floor(float64(p.Y / g.cellSize))),
		cz: int32(math.Floor(float64(p.Z / g.cellSize))),
	}
}

// Insert places a GUID at a position. Inserting an existing GUID moves it.
func (g *SpatialGrid) Insert(guid GUID, p Vec3) {
	if _, ok := g.positions[guid]; ok {
		g.Update(guid, p)
		return
	}
	k := g.key(p)
	cell := g.cells[k]
	if cell == nil {
		cell = make(map[GUID]struct{})
		g.cells[k] = cell
	}
	cell[guid] = struct{}{}
	g.positions[guid] = p
}

// Update moves a GUID to a new position, changing cells only when the cell
// key changes.
func (g *SpatialGrid) Update(guid GUID, p Vec3) {
	old, ok := g.positions[guid]
	if !ok {
		g.Insert(guid, p)
		return
	}
	oldK, newK := g.key(old), g.key(p)
	g.positions[guid] = p
	if oldK == newK {
		return
	}
	g.removeFromCell(guid, oldK)
	cell := g.cells[newK]
	if cell == nil {
		cell = make(map[GUID]struct{})
		g.cells[newK] = cell
	}
	cell[guid] = struct{}{}
}

// Remove takes a GUID out of the grid.
func (g *SpatialGrid) Remove(guid GUID) {
	p, ok := g.positions[guid]
	if !ok {
		return
	}
	g.removeFromCell(guid, g.key(p))
	delete(g.positions, guid)
}

func (g *SpatialGrid) removeFromCell(guid GUID, k gridKey) {
	cell := g.cells[k]
	if cell != nil {
		delete(cell, guid)
		if len(cell) == 0 {
			delete(g.cells, k)
		}
	}
}

// Position returns the recorded position of a GUID.
func (g *SpatialGrid) Position(guid GUID) (Vec3, bool) {
	p, ok := g.positions[guid]
	return p, ok
}

// Len returns the number of indexed GUIDs.
func (g *SpatialGrid) Len() int { return len(g.positions) }

// EntitiesInRange returns all GUIDs within radius of center: candidate
// cells come from the bounding box of the sphere, then an exact squared
// distance test filters them.
func (g *SpatialGrid) EntitiesInRange(center Vec3, radius float32) []GUID {
	if radius < 0 {
		return nil
	}
	lo := g.key(Vec3{center.X - radius, center.Y - radius, center.Z - radius})
	hi := g.key(Vec3{center.X + radius, center.Y + radius, center.Z + radius})
	rSq := float64(radius) * float64(radius)

	var result []GUID
	for cx := lo.cx; cx <= hi.cx; cx++ {
		for cy := lo.cy; cy <= hi.cy; cy++ {
			for cz := lo.cz; cz <= hi.cz; cz++ {
				for guid := range g.cells[gridKey{cx, cy, cz}] {
					if g.positions[guid].DistSq(center) <= rSq {
						result = append(result, guid)
					}
				}
			}
		}
	}
	return result
}

// CheckConsistency verifies that every GUID sits in the cell derived from
// its recorded position. A mismatch is an invariant breach: the owning
// worker treats it as fatal.
func (g *SpatialGrid) CheckConsistency() bool {
	total := 0
	for k, cell := range g.cells {
		for guid := range cell {
			p, ok := g.positions[guid]
			if !ok || g.key(p) != k {
				return false
			}
			total++
		}
	}
	return total == len(g.positions)
}
