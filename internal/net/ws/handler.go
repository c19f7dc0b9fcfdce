package ws

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"silver-moon/server/internal/lobby"
	"silver-moon/server/internal/net/proto"
	"silver-moon/server/internal/telemetry"
	"silver-moon/server/logging"
	loggingNetwork "silver-moon/server/logging/network"
)

const defaultSendQueue = 64

type HandlerConfig struct {
	Logger    telemetry.Logger
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
	// InputRate and InputBurst bound inbound frames per connection. A zero
	// rate disables limiting.
	InputRate  float64
	InputBurst int
	SendQueue  int
}

type Handler struct {
	registry  *lobby.Registry
	logger    telemetry.Logger
	publisher logging.Publisher
	metrics   telemetry.Metrics
	limit     rate.Limit
	burst     int
	sendQueue int
	upgrader  websocket.Upgrader
}

func NewHandler(registry *lobby.Registry, cfg HandlerConfig) *Handler {
	h := &Handler{
		registry:  registry,
		logger:    cfg.Logger,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		limit:     rate.Limit(cfg.InputRate),
		burst:     cfg.InputBurst,
		sendQueue: cfg.SendQueue,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *nethttp.Request) bool {
				return true
			},
		},
	}
	if h.logger == nil {
		h.logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	if h.publisher == nil {
		h.publisher = logging.NopPublisher()
	}
	if h.metrics == nil {
		h.metrics = telemetry.NopMetrics()
	}
	if h.sendQueue <= 0 {
		h.sendQueue = defaultSendQueue
	}
	if h.burst <= 0 {
		h.burst = 1
	}
	return h
}

// Handle upgrades the request and serves the connection until it closes.
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}
	h.Serve(conn, r.RemoteAddr)
}

// Serve runs the read loop for an upgraded connection. Any membership held by
// the connection is released when the loop ends.
func (h *Handler) Serve(conn *websocket.Conn, remoteAddr string) {
	var limiter *rate.Limiter
	if h.limit > 0 {
		limiter = rate.NewLimiter(h.limit, h.burst)
	}
	s := newSession(uuid.NewString(), conn, h.sendQueue, limiter, h.publisher, h.metrics)
	go s.writePump()

	h.metrics.Add(telemetry.ConnectionsOpen, 1)
	loggingNetwork.ConnectionOpened(context.Background(), h.publisher, s.id, loggingNetwork.ConnectionPayload{RemoteAddr: remoteAddr})

	conn.SetReadLimit(maxMessageSize)
	reason := "closed"
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				reason = err.Error()
			}
			break
		}
		h.metrics.Add(telemetry.MessagesIn, 1)

		if !s.allow() {
			h.metrics.Add(telemetry.MessagesLimited, 1)
			loggingNetwork.RateLimited(context.Background(), h.publisher, s.id, s.extra())
			continue
		}

		msg, err := proto.Decode(payload)
		if err != nil {
			h.metrics.Add(telemetry.MessagesDropped, 1)
			loggingNetwork.MessageRejected(context.Background(), h.publisher, s.id, loggingNetwork.RejectedPayload{Reason: err.Error(), Bytes: len(payload)})
			continue
		}
		h.route(s, msg)
	}

	extra := s.extra()
	h.leave(s)
	s.Close()
	loggingNetwork.ConnectionClosed(context.Background(), h.publisher, s.id, loggingNetwork.ConnectionPayload{RemoteAddr: remoteAddr, Reason: reason}, extra)
}

func (h *Handler) route(s *session, msg proto.Message) {
	switch m := msg.(type) {
	case proto.CreateLobby:
		h.createLobby(s, m)
	case proto.JoinLobby:
		h.joinLobby(s, m)
	case proto.SetReady:
		if s.lobby != nil {
			s.lobby.SetReady(s.playerID, m.Ready)
		}
	case proto.StartRun:
		h.startRun(s)
	case proto.Input:
		if s.lobby != nil && m.Payload != nil {
			s.lobby.ApplyInput(s.playerID, m.Payload)
		}
	case proto.Pause:
		if s.lobby == nil {
			return
		}
		if err := s.lobby.Pause(s.playerID, m.Action); err != nil && !errors.Is(err, lobby.ErrUnknownAction) {
			h.logger.Printf("pause %q ignored for %s in %s: %v", m.Action, s.playerID, s.lobby.Code(), err)
		}
	}
}

func (h *Handler) createLobby(s *session, m proto.CreateLobby) {
	h.leave(s)
	profile := withPlayerID(m.Profile)
	l := h.registry.Create(profile.PlayerID, lobby.Settings{
		Mode:       m.Mode,
		DungeonID:  profile.DungeonID,
		Difficulty: profile.Difficulty,
	})
	if _, err := l.Join(profile, s); err != nil {
		h.logger.Printf("host %s could not join new lobby %s: %v", profile.PlayerID, l.Code(), err)
		h.registry.RemoveIfEmpty(l.Code())
		return
	}
	s.lobby = l
	s.playerID = profile.PlayerID

	if l.Mode() == lobby.ModeSolo {
		if err := l.StartRun(profile.PlayerID); err != nil {
			h.logger.Printf("solo start failed for %s: %v", l.Code(), err)
		}
	}
}

// joinLobby binds the session to the lobby named by m. The current
// membership is only given up once the new join has succeeded.
func (h *Handler) joinLobby(s *session, m proto.JoinLobby) {
	profile := withPlayerID(m.Profile)
	l, err := h.registry.Find(m.Code)
	if err == nil && l == s.lobby {
		h.sendJoinError(s, l.Code(), s.playerID, lobby.ErrDuplicatePlayer)
		return
	}
	if err == nil {
		_, err = l.Join(profile, s)
	}
	if err != nil {
		h.sendJoinError(s, m.Code, profile.PlayerID, err)
		return
	}
	h.leave(s)
	s.lobby = l
	s.playerID = profile.PlayerID
}

func (h *Handler) sendJoinError(s *session, code, playerID string, err error) {
	message := fmt.Sprintf("Lobby %s not found", code)
	if errors.Is(err, lobby.ErrDuplicatePlayer) {
		message = fmt.Sprintf("Player %s is already in lobby %s", playerID, code)
	}
	data, encErr := proto.EncodeJoinError(message)
	if encErr != nil {
		h.logger.Printf("failed to encode join_error: %v", encErr)
		return
	}
	s.Send(data)
}

func (h *Handler) startRun(s *session) {
	if s.lobby == nil {
		return
	}
	err := s.lobby.StartRun(s.playerID)
	if err == nil {
		return
	}
	message, deny := lobby.DenialMessage(err)
	if !deny {
		return
	}
	data, encErr := proto.EncodeStartDenied(message)
	if encErr != nil {
		h.logger.Printf("failed to encode start_denied: %v", encErr)
		return
	}
	s.Send(data)
}

// leave detaches the session from its lobby, ghosting a live player, and
// drops the lobby once nobody is left.
func (h *Handler) leave(s *session) {
	if s.lobby == nil {
		return
	}
	l := s.lobby
	s.lobby = nil
	if l.Disconnect(s.playerID) == 0 {
		h.registry.RemoveIfEmpty(l.Code())
	}
	s.playerID = ""
}

func (s *session) extra() map[string]any {
	if s.lobby == nil {
		return nil
	}
	return map[string]any{"lobby": s.lobby.Code(), "player": s.playerID}
}

func withPlayerID(profile proto.Profile) proto.Profile {
	if profile.PlayerID == "" {
		profile.PlayerID = uuid.NewString()
	}
	return profile
}
