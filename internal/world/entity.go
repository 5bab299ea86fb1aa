package world

import "math"

// Vec3 is a position in zone-local space.
type Vec3 struct {
	X, Y, Z float32
}

// DistSq returns the squared 3D distance to another position.
func (v Vec3) DistSq(o Vec3) float64 {
	dx := float64(v.X - o.X)
	dy := float64(v.Y - o.Y)
	dz := float64(v.Z - o.Z)
	return dx*dx + dy*dy + dz*dz
}

// Dist returns the 3D distance to another position.
func (v Vec3) Dist(o Vec3) float64 {
	return math.Sqrt(v.DistSq(o))
}

// Entity is a runtime object placed in the world. All mutation goes through
// the owning ZoneInstance; snapshots returned to other goroutines are value
// copies.
type Entity struct {
	GUID        GUID
	Type        EntityType
	Position    Vec3
	Faction     int32
	Level       int32
	Health      int32
	MaxHealth   int32
	Name        string
	DisplayInfo int32
	CreatureID  int64 // template ref, creatures only
}

// Alive reports whether the entity has health remaining.
func (e *Entity) Alive() bool { return e.Health > 0 }

// HealthPct returns health as a 0..100 percentage.
func (e *Entity) HealthPct() float64 {
	if e.MaxHealth <= 0 {
		return 0
	}
	return float64(e.Health) / float64(e.MaxHealth) * 100
}

// ClampHealth enforces 0 <= health <= max_health.
func (e *Entity) ClampHealth() {
	if e.Health < 0 {
		e.Health = 0
	}
	if e.Health > e.MaxHealth {
		e.Health = e.MaxHealth
	}
}
