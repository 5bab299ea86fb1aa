package net

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/nexusgo/server/internal/net/packet"
)

// Session represents a single client connection. Network I/O runs in
// dedicated goroutines; handlers run on the dispatch goroutine draining
// InQueue, so per-session fields below are only touched there.
type Session struct {
	ID       uint64
	ConnType packet.ConnType
	conn     net.Conn

	stage atomic.Int32 // packet.Stage stored as int32

	InQueue  chan []byte // dispatch goroutine reads packets from here
	OutQueue chan []byte // writer goroutine reads from here

	IP          string
	AccountName string
	CharName    string
	CharacterID int32
	PlayerGUID  uint64
	RealmID     int32

	// Current zone shard; written by the enter-world and transfer
	// handlers on the dispatch goroutine.
	ZoneID     int32
	InstanceID int32

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	// Per-second packet rate limiter (readLoop goroutine only, no lock needed)
	pktPerSec  int // max packets/sec (0 = unlimited)
	pktCount   int
	pktResetAt int64

	writeTimeout time.Duration

	log *zap.Logger
}

// SessionOptions carries the queue and timing knobs from config.
type SessionOptions struct {
	InQueueSize  int
	OutQueueSize int
	PktPerSec    int
	WriteTimeout time.Duration
}

func NewSession(conn net.Conn, id uint64, ct packet.ConnType, opts SessionOptions, log *zap.Logger) *Session {
	s := &Session{
		ID:           id,
		ConnType:     ct,
		conn:         conn,
		InQueue:      make(chan []byte, opts.InQueueSize),
		OutQueue:     make(chan []byte, opts.OutQueueSize),
		IP:           conn.RemoteAddr().String(),
		closeCh:      make(chan struct{}),
		pktPerSec:    opts.PktPerSec,
		writeTimeout: opts.WriteTimeout,
		log:          log.With(zap.Uint64("session", id)),
	}
	s.stage.Store(int32(packet.StageUnauthenticated))
	return s
}

func (s *Session) Stage() packet.Stage {
	return packet.Stage(s.stage.Load())
}

func (s *Session) SetStage(st packet.Stage) {
	s.stage.Store(int32(st))
}

// Start launches the reader and writer goroutines.
func (s *Session) Start() {
	go s.readLoop()
	go s.writeLoop()
}

// Send queues a packet for the writer goroutine. Non-blocking: a full
// OutQueue means the client cannot keep up, and the session is
// disconnected rather than letting one slow reader stall a zone.
func (s *Session) Send(data []byte) {
	if s.closed.Load() {
		return
	}
	select {
	case s.OutQueue <- data:
	default:
		s.log.Warn("輸出佇列已滿，斷開慢速連線")
		s.Close()
	}
}

// Close shuts down the session.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.SetStage(packet.StageDisconnecting)
		close(s.closeCh)
		s.conn.Close()
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// readLoop runs in its own goroutine. It reads frames from the TCP
// connection and pushes them onto InQueue for the dispatch goroutine.
func (s *Session) readLoop() {
	defer s.Close()

	for {
		select {
		case <-s.closeCh:
			return
		default:
		}

		payload, err := ReadFrame(s.conn)
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("讀取錯誤", zap.Error(err))
			}
			return
		}

		// Per-second packet rate limiter
		if s.pktPerSec > 0 {
			now := time.Now().Unix()
			if now != s.pktResetAt {
				s.pktCount = 0
				s.pktResetAt = now
			}
			s.pktCount++
			if s.pktCount > s.pktPerSec {
				s.log.Warn("封包速率超限，斷開連線", zap.Int("pps", s.pktCount))
				return
			}
		}

		// Block until InQueue has space or the session closes. The
		// readLoop goroutine is per-session, so blocking here only
		// stalls this client — movement packets must not be dropped.
		select {
		case s.InQueue <- payload:
		case <-s.closeCh:
			return
		}
	}
}

// writeLoop runs in its own goroutine. It reads packets from OutQueue and
// writes them as framed data to the TCP connection.
func (s *Session) writeLoop() {
	defer s.Close()

	for {
		select {
		case data := <-s.OutQueue:
			if !s.writeOnePacket(data) {
				return
			}
		case <-s.closeCh:
			return
		}
	}
}

func (s *Session) writeOnePacket(data []byte) bool {
	s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if err := WriteFrame(s.conn, data); err != nil {
		if !s.closed.Load() {
			s.log.Debug("寫入錯誤", zap.Error(err))
		}
		return false
	}
	return true
}
