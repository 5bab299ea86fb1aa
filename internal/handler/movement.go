package handler

import (
	"math"

	"github.com/nexusgo/server/internal/net"
	"github.com/nexusgo/server/internal/net/packet"
	"github.com/nexusgo/server/internal/world"
)

// maxMoveDelta bounds how far one movement packet may displace a player.
// Larger jumps are clamped to the boundary, silently — the client is
// corrected by the echoed broadcast rather than disconnected.
const maxMoveDelta = 50.0

// HandleMove processes a position update.
// Format: [f x][f y][f z][f speed]
func HandleMove(sess *net.Session, r *packet.Reader, deps *Deps) error {
	target := world.Vec3{X: r.ReadF(), Y: r.ReadF(), Z: r.ReadF()}
	speed := r.ReadF()

	zone, ok := deps.zoneOf(sess)
	if !ok {
		return nil
	}
	guid := world.GUID(sess.PlayerGUID)

	cur, ok := zone.GetEntity(guid)
	if !ok {
		return nil
	}
	pos := clampMove(cur.Position, target)

	zone.UpdateEntityPosition(guid, pos)
	zone.Broadcast(packet.ServerEntityMove{
		GUID:  uint64(guid),
		X:     pos.X,
		Y:     pos.Y,
		Z:     pos.Z,
		Speed: speed,
	}.Encode())

	// Duel boundary tracking runs off the live position stream.
	if deps.Duels != nil {
		deps.Duels.UpdatePosition(guid, pos)
	}
	return nil
}

// clampMove limits the displacement from cur toward target to maxMoveDelta.
func clampMove(cur, target world.Vec3) world.Vec3 {
	dist := cur.Dist(target)
	if dist <= maxMoveDelta {
		return target
	}
	scale := float32(maxMoveDelta / math.Max(dist, 1e-9))
	return world.Vec3{
		X: cur.X + (target.X-cur.X)*scale,
		Y: cur.Y + (target.Y-cur.Y)*scale,
		Z: cur.Z + (target.Z-cur.Z)*scale,
	}
}
