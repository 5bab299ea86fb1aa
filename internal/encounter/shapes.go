package encounter

import (
	"math"

	"github.com/nexusgo/server/internal/world"
)

// InShape tests whether a point lies inside a telegraph shape at impact.
// Geometry is planar (X/Y); origin is the shape anchor, rotation the facing
// in radians. elapsed (seconds since display) only matters for waves.
//
// Parameter layout per shape:
//
//	circle:    [radius]
//	cone:      [angle_degrees, length]
//	line:      [width, length]
//	donut:     [inner_radius, outer_radius]
//	cross:     [width, length]
//	room_wide: []
//	wave:      [width, speed]
func InShape(shape string, params []float32, origin world.Vec3, rotation float32, point world.Vec3, elapsed float64) bool {
	dx := float64(point.X - origin.X)
	dy := float64(point.Y - origin.Y)
	dist := math.Hypot(dx, dy)

	p := func(i int) float64 {
		if i < len(params) {
			return float64(params[i])
		}
		return 0
	}

	switch shape {
	case ShapeCircle:
		return dist <= p(0)
	case ShapeCone:
		length := p(1)
		if dist > length || dist == 0 {
			return dist == 0
		}
		half := p(0) * math.Pi / 180 / 2
		angle := math.Abs(normalizeAngle(math.Atan2(dy, dx) - float64(rotation)))
		return angle <= half
	case ShapeLine:
		forward, lateral := localFrame(dx, dy, rotation)
		return forward >= 0 && forward <= p(1) && math.Abs(lateral) <= p(0)/2
	case ShapeDonut:
		return dist >= p(0) && dist <= p(1)
	case ShapeCross:
		forward, lateral := localFrame(dx, dy, rotation)
		arm := func(f, l float64) bool {
			return math.Abs(f) <= p(1) && math.Abs(l) <= p(0)/2
		}
		return arm(forward, lateral) || arm(lateral, forward)
	case ShapeRoomWide:
		return true
	case ShapeWave:
		ring := p(1) * elapsed
		return math.Abs(dist-ring) <= p(0)/2
	default:
		return false
	}
}

// localFrame rotates the delta into the shape's local frame: forward along
// the facing, lateral perpendicular to it.
func localFrame(dx, dy float64, rotation float32) (forward, lateral float64) {
	sin, cos := math.Sincos(float64(rotation))
	forward = dx*cos + dy*sin
	lateral = -dx*sin + dy*cos
	return forward, lateral
}

func normalizeAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// EntitiesInShape filters candidates down to those inside the shape.
func EntitiesInShape(shape string, params []float32, origin world.Vec3, rotation float32, cands []Candidate, elapsed float64) []Candidate {
	var out []Candidate
	for _, c := range cands {
		if InShape(shape, params, origin, rotation, c.Pos, elapsed) {
			out = append(out, c)
		}
	}
	return out
}
