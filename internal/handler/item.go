package handler

import (
	"github.com/nexusgo/server/internal/net"
	"github.com/nexusgo/server/internal/net/packet"
)

// validLocation whitelists the drag-drop location tags a client may name.
func validLocation(loc uint16) bool {
	switch loc {
	case packet.LocEquipped, packet.LocBag, packet.LocBank, packet.LocTrade:
		return true
	default:
		return false
	}
}

// HandleItemMove acknowledges an inventory move.
// Format: [q item_guid][q dragdrop]
func HandleItemMove(sess *net.Session, r *packet.Reader, deps *Deps) error {
	itemGUID := r.ReadQ()
	dd := r.ReadQ()
	loc := packet.DragDropLocation(dd)
	slot := packet.DragDropSlot(dd)

	if !validLocation(loc) {
		return nil // malformed request, drop silently
	}

	sess.Send(packet.ServerItemMove{
		ItemGUID: itemGUID,
		Location: loc,
		Slot:     slot,
	}.Encode())
	return nil
}

// HandleItemSwap acknowledges a two-item slot exchange.
// Format: [q from_guid][q from_dragdrop][q to_guid][q to_dragdrop]
func HandleItemSwap(sess *net.Session, r *packet.Reader, deps *Deps) error {
	fromGUID := r.ReadQ()
	fromDD := r.ReadQ()
	toGUID := r.ReadQ()
	toDD := r.ReadQ()

	from := packet.ItemDragDrop{
		ItemGUID: fromGUID,
		Location: packet.DragDropLocation(fromDD),
		Slot:     packet.DragDropSlot(fromDD),
	}
	to := packet.ItemDragDrop{
		ItemGUID: toGUID,
		Location: packet.DragDropLocation(toDD),
		Slot:     packet.DragDropSlot(toDD),
	}
	if !validLocation(from.Location) || !validLocation(to.Location) {
		return nil
	}

	// Each item takes the other's place.
	sess.Send(packet.ServerItemSwap{
		From: packet.ItemDragDrop{ItemGUID: from.ItemGUID, Location: to.Location, Slot: to.Slot},
		To:   packet.ItemDragDrop{ItemGUID: to.ItemGUID, Location: from.Location, Slot: from.Slot},
	}.Encode())
	return nil
}
