package net

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/nexusgo/server/internal/net/packet"
)

// Server accepts TCP connections for one listener category (auth, realm
// or world) and dispatches each session's packets through the registry.
type Server struct {
	listener net.Listener
	connType packet.ConnType
	registry *packet.Registry
	opts     SessionOptions

	nextID   atomic.Uint64
	sessions sync.Map // session ID → *Session

	// OnClose, when set, runs after a session's dispatch loop exits.
	// The world server uses it to despawn the player and save state.
	OnClose func(*Session)

	log     *zap.Logger
	closeCh chan struct{}
	wg      sync.WaitGroup
}

func NewServer(bindAddr string, ct packet.ConnType, reg *packet.Registry, opts SessionOptions, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: ln,
		connType: ct,
		registry: reg,
		opts:     opts,
		log:      log.With(zap.String("listener", ct.String())),
		closeCh:  make(chan struct{}),
	}, nil
}

// AcceptLoop runs in its own goroutine. It accepts connections, creates
// sessions, and launches their I/O and dispatch goroutines.
func (s *Server) AcceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return // server shutting down
			default:
			}
			s.log.Error("連線接受失敗", zap.Error(err))
			continue
		}

		id := s.nextID.Add(1)
		sess := NewSession(conn, id, s.connType, s.opts, s.log)
		sess.Start()
		s.sessions.Store(id, sess)

		s.log.Info(fmt.Sprintf("玩家連線  session=%d  ip=%s", id, sess.IP))

		s.wg.Add(1)
		go s.dispatchLoop(sess)
	}
}

// dispatchLoop drains a session's InQueue through the registry until the
// session dies. Handlers run here, one packet at a time per session.
func (s *Server) dispatchLoop(sess *Session) {
	defer s.wg.Done()
	defer func() {
		sess.Close()
		s.sessions.Delete(sess.ID)
		if s.OnClose != nil {
			s.OnClose(sess)
		}
		s.log.Info(fmt.Sprintf("玩家離線  session=%d  ip=%s", sess.ID, sess.IP))
	}()

	for {
		select {
		case data := <-sess.InQueue:
			if err := s.registry.Dispatch(sess, s.connType, sess.Stage(), data); err != nil {
				// Only malformed frames reach here; handler errors are
				// accounted inside the registry.
				s.log.Warn("封包分派失敗", zap.Uint64("session", sess.ID), zap.Error(err))
				return
			}
		case <-sess.closeCh:
			return
		}
	}
}

// Session looks up a live session by ID.
func (s *Server) Session(id uint64) (*Session, bool) {
	v, ok := s.sessions.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// Each walks the live sessions; used for realm-wide broadcasts.
func (s *Server) Each(fn func(*Session)) {
	s.sessions.Range(func(_, v any) bool {
		fn(v.(*Session))
		return true
	})
}

// Addr returns the listener's address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Shutdown stops accepting, closes every session, and waits for the
// dispatch loops to drain.
func (s *Server) Shutdown() {
	close(s.closeCh)
	s.listener.Close()
	s.sessions.Range(func(_, v any) bool {
		v.(*Session).Close()
		return true
	})
	s.wg.Wait()
}
