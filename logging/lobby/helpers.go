package lobby

import (
	"context"

	"silver-moon/server/logging"
)

const (
	// EventCreated is emitted when a new lobby code is allocated.
	EventCreated logging.EventType = "lobby.created"
	// EventJoined is emitted when a member joins a lobby.
	EventJoined logging.EventType = "lobby.joined"
	// EventLeft is emitted when a member's connection is detached.
	EventLeft logging.EventType = "lobby.left"
	// EventHostMigrated is emitted when host duty passes to another member.
	EventHostMigrated logging.EventType = "lobby.host_migrated"
	// EventRunStarted is emitted when a run begins.
	EventRunStarted logging.EventType = "lobby.run_started"
	// EventStartDenied is emitted when a start request fails validation.
	EventStartDenied logging.EventType = "lobby.start_denied"
	// EventPlayerGhosted is emitted when a disconnect turns a player into a ghost.
	EventPlayerGhosted logging.EventType = "lobby.player_ghosted"
	// EventPaused is emitted for an accepted pause action.
	EventPaused logging.EventType = "lobby.paused"
	// EventDestroyed is emitted when the last member leaves.
	EventDestroyed logging.EventType = "lobby.destroyed"
	// EventTickFailed is emitted when stepping a lobby panics.
	EventTickFailed logging.EventType = "lobby.tick_failed"
)

type CreatedPayload struct {
	Mode string `json:"mode"`
}

type JoinedPayload struct {
	Name      string `json:"name"`
	Spectator bool   `json:"spectator"`
	Members   int    `json:"members"`
}

type LeftPayload struct {
	Reason  string `json:"reason"`
	Members int    `json:"members"`
}

type HostMigratedPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type RunStartedPayload struct {
	DungeonID  string `json:"dungeonId"`
	Difficulty string `json:"difficulty"`
	Players    int    `json:"players"`
}

type StartDeniedPayload struct {
	Reason string `json:"reason"`
}

type PausedPayload struct {
	Action string `json:"action"`
}

type DestroyedPayload struct {
	Reason string `json:"reason"`
}

type TickFailedPayload struct {
	Panic string `json:"panic"`
}

// LobbyRef identifies a lobby as an event actor or target.
func LobbyRef(code string) logging.EntityRef {
	return logging.EntityRef{ID: code, Kind: logging.EntityKindLobby}
}

// PlayerRef identifies a lobby member.
func PlayerRef(id string) logging.EntityRef {
	return logging.EntityRef{ID: id, Kind: logging.EntityKindPlayer}
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, severity logging.Severity, tick uint64, actor logging.EntityRef, code string, payload any) {
	logging.Emit(ctx, pub, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{LobbyRef(code)},
		Severity: severity,
		Category: logging.CategoryLobby,
		Payload:  payload,
		Extra:    map[string]any{"lobby": code},
	})
}

// Created publishes a lobby creation.
func Created(ctx context.Context, pub logging.Publisher, host, code string, payload CreatedPayload) {
	publish(ctx, pub, EventCreated, logging.SeverityInfo, 0, PlayerRef(host), code, payload)
}

// Joined publishes a membership change.
func Joined(ctx context.Context, pub logging.Publisher, tick uint64, player, code string, payload JoinedPayload) {
	publish(ctx, pub, EventJoined, logging.SeverityInfo, tick, PlayerRef(player), code, payload)
}

// Left publishes a member detaching from the lobby.
func Left(ctx context.Context, pub logging.Publisher, tick uint64, player, code string, payload LeftPayload) {
	publish(ctx, pub, EventLeft, logging.SeverityInfo, tick, PlayerRef(player), code, payload)
}

// HostMigrated publishes a host hand-off.
func HostMigrated(ctx context.Context, pub logging.Publisher, tick uint64, code string, payload HostMigratedPayload) {
	publish(ctx, pub, EventHostMigrated, logging.SeverityInfo, tick, PlayerRef(payload.To), code, payload)
}

// RunStarted publishes the start of a run.
func RunStarted(ctx context.Context, pub logging.Publisher, host, code string, payload RunStartedPayload) {
	publish(ctx, pub, EventRunStarted, logging.SeverityInfo, 0, PlayerRef(host), code, payload)
}

// StartDenied publishes a rejected start request.
func StartDenied(ctx context.Context, pub logging.Publisher, player, code string, payload StartDeniedPayload) {
	publish(ctx, pub, EventStartDenied, logging.SeverityDebug, 0, PlayerRef(player), code, payload)
}

// PlayerGhosted publishes a mid-run disconnect.
func PlayerGhosted(ctx context.Context, pub logging.Publisher, tick uint64, player, code string) {
	publish(ctx, pub, EventPlayerGhosted, logging.SeverityInfo, tick, PlayerRef(player), code, nil)
}

// Paused publishes an accepted pause action.
func Paused(ctx context.Context, pub logging.Publisher, tick uint64, player, code string, payload PausedPayload) {
	publish(ctx, pub, EventPaused, logging.SeverityInfo, tick, PlayerRef(player), code, payload)
}

// Destroyed publishes a lobby removal.
func Destroyed(ctx context.Context, pub logging.Publisher, tick uint64, code string, payload DestroyedPayload) {
	publish(ctx, pub, EventDestroyed, logging.SeverityInfo, tick, LobbyRef(code), code, payload)
}

// TickFailed publishes a recovered panic from a lobby step.
func TickFailed(ctx context.Context, pub logging.Publisher, tick uint64, code string, payload TickFailedPayload) {
	publish(ctx, pub, EventTickFailed, logging.SeverityError, tick, LobbyRef(code), code, payload)
}
