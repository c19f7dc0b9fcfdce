package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"silver-moon/server/internal/lobby"
	"silver-moon/server/internal/telemetry"
	"silver-moon/server/logging"
	loggingNetwork "silver-moon/server/logging/network"
)

const (
	writeWait      = 5 * time.Second
	maxMessageSize = 64 * 1024
)

// session binds one websocket connection to at most one lobby membership.
// It implements lobby.Outbox: lobbies enqueue frames without blocking and a
// single writer goroutine drains them onto the socket.
type session struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	limiter   *rate.Limiter
	publisher logging.Publisher
	metrics   telemetry.Metrics

	// Owned by the read loop.
	lobby    *lobby.Lobby
	playerID string
}

var _ lobby.Outbox = (*session)(nil)

func newSession(id string, conn *websocket.Conn, queue int, limiter *rate.Limiter, publisher logging.Publisher, metrics telemetry.Metrics) *session {
	return &session{
		id:        id,
		conn:      conn,
		send:      make(chan []byte, queue),
		done:      make(chan struct{}),
		limiter:   limiter,
		publisher: publisher,
		metrics:   metrics,
	}
}

// Send enqueues a frame for the writer. A full queue drops the frame rather
// than stalling the caller.
func (s *session) Send(data []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- data:
		return true
	default:
		loggingNetwork.SendDropped(context.Background(), s.publisher, s.id, loggingNetwork.DropPayload{Bytes: len(data)})
		return false
	}
}

// Close stops the writer and closes the socket, which in turn ends the read
// loop. It is safe to call more than once.
func (s *session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// allow reports whether the inbound budget admits another frame.
func (s *session) allow() bool {
	if s.limiter == nil {
		return true
	}
	return s.limiter.Allow()
}

func (s *session) writePump() {
	defer s.conn.Close()
	for {
		select {
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case data := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.Close()
				return
			}
		}
	}
}
