package packet

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// HandlerFunc is the callback signature for packet handlers.
// The session pointer is passed as an opaque interface to avoid import cycles.
type HandlerFunc func(sess any, r *Reader) error

type handlerEntry struct {
	name          string
	fn            HandlerFunc
	connType      ConnType
	allowedStages map[Stage]bool
}

// DispatchStats counts the dispatch failure classes for later analysis.
// A received opcode with no table entry is unknown; a table entry with no
// bound handler is unhandled; a handler returning an error is a handler
// error. None of the three closes the connection.
type DispatchStats struct {
	mu        sync.Mutex
	Unknown   map[uint16]uint64
	Unhandled map[uint16]uint64
	Errors    map[uint16]uint64
}

func newDispatchStats() *DispatchStats {
	return &DispatchStats{
		Unknown:   make(map[uint16]uint64),
		Unhandled: make(map[uint16]uint64),
		Errors:    make(map[uint16]uint64),
	}
}

func (s *DispatchStats) record(m map[uint16]uint64, opcode uint16) {
	s.mu.Lock()
	m[opcode]++
	s.mu.Unlock()
}

// Count returns (unknown, unhandled, errors) totals for one opcode.
func (s *DispatchStats) Count(opcode uint16) (uint64, uint64, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Unknown[opcode], s.Unhandled[opcode], s.Errors[opcode]
}

// Registry maps opcodes to handlers with connection-type and stage gating.
type Registry struct {
	handlers map[uint16]*handlerEntry
	stats    *DispatchStats
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[uint16]*handlerEntry),
		stats:    newDispatchStats(),
		log:      log,
	}
}

func (reg *Registry) Stats() *DispatchStats { return reg.stats }

// Register maps an opcode to a handler, restricted to one connection type
// and the given session stages. A nil fn declares the opcode as known but
// unhandled (kept in the table for dispatch accounting).
func (reg *Registry) Register(opcode uint16, name string, ct ConnType, stages []Stage, fn HandlerFunc) {
	allowed := make(map[Stage]bool, len(stages))
	for _, s := range stages {
		allowed[s] = true
	}
	reg.handlers[opcode] = &handlerEntry{
		name:          name,
		fn:            fn,
		connType:      ct,
		allowedStages: allowed,
	}
}

// Dispatch finds the handler for the opcode in data[0:2], validates the
// connection type and session stage, and calls the handler. All failure
// classes are recorded but never fatal for the session.
func (reg *Registry) Dispatch(sess any, ct ConnType, stage Stage, data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("short packet: %d bytes", len(data))
	}
	r := NewReader(data)
	opcode := r.Opcode()

	reg.log.Debug("收到封包",
		zap.Uint16("opcode", opcode),
		zap.Int("size", len(data)),
		zap.String("stage", stage.String()),
	)

	entry, ok := reg.handlers[opcode]
	if !ok {
		reg.stats.record(reg.stats.Unknown, opcode)
		reg.log.Debug("未知操作碼", zap.Uint16("opcode", opcode), zap.String("conn", ct.String()))
		return nil
	}
	if entry.fn == nil {
		reg.stats.record(reg.stats.Unhandled, opcode)
		reg.log.Debug("未處理操作碼", zap.Uint16("opcode", opcode), zap.String("name", entry.name))
		return nil
	}
	if entry.connType != ct {
		reg.log.Warn("操作碼不屬於此連線類型",
			zap.Uint16("opcode", opcode),
			zap.String("conn", ct.String()),
		)
		return nil // drop, not fatal
	}
	if !entry.allowedStages[stage] {
		reg.log.Warn("操作碼在此階段不允許",
			zap.Uint16("opcode", opcode),
			zap.String("name", entry.name),
			zap.String("stage", stage.String()),
		)
		return nil // out-of-stage packets are dropped
	}

	if err := reg.safeCall(entry, sess, r, opcode); err != nil {
		reg.stats.record(reg.stats.Errors, opcode)
		reg.log.Error("處理器錯誤",
			zap.Uint16("opcode", opcode),
			zap.String("name", entry.name),
			zap.Error(err),
		)
	}
	return nil
}

// safeCall executes a handler with panic recovery so a single bad packet
// cannot crash the connection.
func (reg *Registry) safeCall(entry *handlerEntry, sess any, r *Reader, opcode uint16) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("處理器 panic 已恢復",
				zap.Uint16("opcode", opcode),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("handler panic for opcode %d: %v", opcode, rec)
		}
	}()
	return entry.fn(sess, r)
}
