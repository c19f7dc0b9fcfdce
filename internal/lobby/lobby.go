package lobby

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"silver-moon/server/internal/content"
	"silver-moon/server/internal/net/proto"
	"silver-moon/server/internal/sim"
	"silver-moon/server/internal/telemetry"
	"silver-moon/server/logging"
	loggingLobby "silver-moon/server/logging/lobby"
)

const (
	ModeHost = "host"
	ModeSolo = "solo"

	DefaultDungeonID  = "d1"
	DefaultDifficulty = "standard"
)

// Outbox is the send side of a member's connection. Send must not block;
// it reports false when the frame was dropped.
type Outbox interface {
	Send(data []byte) bool
	Close()
}

// Settings configure a lobby at creation time.
type Settings struct {
	Mode       string
	DungeonID  string
	Difficulty string
}

// NormalizeMode maps any mode other than solo to host.
func NormalizeMode(mode string) string {
	if strings.EqualFold(strings.TrimSpace(mode), ModeSolo) {
		return ModeSolo
	}
	return ModeHost
}

// Member is one connected client of a lobby. It never carries transport
// state; outboxes live in a separate table keyed by player id.
type Member struct {
	ID          string
	Name        string
	Ready       bool
	Spectator   bool
	CharacterID string
	Djinn       []sim.DjinnSlot
}

// JoinResult reports the role a joiner was given.
type JoinResult struct {
	Host      bool
	Spectator bool
}

// Lobby is one party's shared state. Every exported method holds the lobby
// lock for its whole duration, so handlers and ticks never interleave.
type Lobby struct {
	mu sync.Mutex

	code       string
	mode       string
	hostID     string
	inRun      bool
	dungeonID  string
	difficulty string

	members  map[string]*Member
	order    []string
	sessions map[string]Outbox

	room       *sim.Room
	content    *content.Store
	publisher  logging.Publisher
	metrics    telemetry.Metrics
	logger     telemetry.Logger
	rng        *rand.Rand
	clock      func() time.Time
	lastActive time.Time
	closed     bool
}

type lobbyDeps struct {
	content   *content.Store
	publisher logging.Publisher
	metrics   telemetry.Metrics
	logger    telemetry.Logger
	rng       *rand.Rand
	clock     func() time.Time
}

func newLobby(code, hostID string, settings Settings, deps lobbyDeps) *Lobby {
	dungeonID := settings.DungeonID
	if dungeonID == "" {
		dungeonID = DefaultDungeonID
	}
	difficulty := settings.Difficulty
	if difficulty == "" {
		difficulty = DefaultDifficulty
	}
	return &Lobby{
		code:       code,
		mode:       NormalizeMode(settings.Mode),
		hostID:     hostID,
		dungeonID:  dungeonID,
		difficulty: difficulty,
		members:    make(map[string]*Member),
		sessions:   make(map[string]Outbox),
		content:    deps.content,
		publisher:  deps.publisher,
		metrics:    deps.metrics,
		logger:     deps.logger,
		rng:        deps.rng,
		clock:      deps.clock,
		lastActive: deps.clock(),
	}
}

// Code returns the lobby's room code.
func (l *Lobby) Code() string {
	return l.code
}

func (l *Lobby) Mode() string {
	return l.mode
}

func (l *Lobby) HostID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hostID
}

func (l *Lobby) InRun() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inRun
}

// Len reports the number of connected members.
func (l *Lobby) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.members)
}

// Member returns a copy of a member.
func (l *Lobby) Member(id string) (Member, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	member, ok := l.members[id]
	if !ok {
		return Member{}, false
	}
	copied := *member
	copied.Djinn = append([]sim.DjinnSlot(nil), member.Djinn...)
	return copied, true
}

// Snapshot returns the current room state, or false before the first run.
func (l *Lobby) Snapshot() (sim.Snapshot, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.room == nil {
		return sim.Snapshot{}, false
	}
	return l.room.Snapshot(), true
}

// View returns the membership view sent in lobby_update frames.
func (l *Lobby) View() proto.LobbyView {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.viewLocked()
}

func (l *Lobby) viewLocked() proto.LobbyView {
	view := proto.LobbyView{
		Code:       l.code,
		HostID:     l.hostID,
		InRun:      l.inRun,
		DungeonID:  l.dungeonID,
		Difficulty: l.difficulty,
		Players:    make([]proto.MemberView, 0, len(l.order)),
	}
	for _, id := range l.order {
		member := l.members[id]
		view.Players = append(view.Players, proto.MemberView{
			ID:          member.ID,
			Name:        member.Name,
			Ready:       member.Ready,
			Spectator:   member.Spectator,
			CharacterID: member.CharacterID,
		})
	}
	return view
}

// Join adds a member bound to out. The first member becomes host and is
// ready immediately. Anyone joining while a run is in progress becomes a
// spectator for good.
func (l *Lobby) Join(profile proto.Profile, out Outbox) (JoinResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return JoinResult{}, ErrClosed
	}
	if _, exists := l.members[profile.PlayerID]; exists {
		return JoinResult{}, ErrDuplicatePlayer
	}
	l.touchLocked()

	if !l.inRun {
		if profile.DungeonID != "" {
			l.dungeonID = profile.DungeonID
		}
		if profile.Difficulty != "" {
			l.difficulty = profile.Difficulty
		}
	}

	if len(l.members) == 0 {
		l.hostID = profile.PlayerID
	}
	host := l.hostID == profile.PlayerID
	spectator := l.inRun

	name := profile.Name
	if name == "" {
		name = "Guest-" + l.code
		if host {
			name = "Player-" + l.code
		}
	}

	l.members[profile.PlayerID] = &Member{
		ID:          profile.PlayerID,
		Name:        name,
		Ready:       host || spectator,
		Spectator:   spectator,
		CharacterID: l.content.CharacterOrDefault(profile.CharacterID),
		Djinn:       l.knownDjinn(sim.NormalizeLoadout(profile.Djinn)),
	}
	l.order = append(l.order, profile.PlayerID)
	if out != nil {
		l.sessions[profile.PlayerID] = out
	}

	loggingLobby.Joined(context.Background(), l.publisher, l.tickLocked(), profile.PlayerID, l.code, loggingLobby.JoinedPayload{Name: name, Spectator: spectator, Members: len(l.members)})

	if data, err := proto.EncodeJoinedLobby(l.code, host, spectator); err == nil {
		l.sendLocked(profile.PlayerID, data)
	}
	l.broadcastViewLocked()
	if spectator && l.room != nil {
		if data, err := proto.EncodeSnapshot(l.room.Snapshot(), l.viewLocked()); err == nil {
			l.sendLocked(profile.PlayerID, data)
		}
	}
	return JoinResult{Host: host, Spectator: spectator}, nil
}

// SetReady toggles a participant's ready flag. Spectators are always ready
// and the call is a no-op for them.
func (l *Lobby) SetReady(playerID string, ready bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	member, ok := l.members[playerID]
	if !ok {
		return ErrNotMember
	}
	l.touchLocked()
	if member.Spectator {
		return nil
	}
	member.Ready = ready
	l.broadcastViewLocked()
	return nil
}

// StartRun begins a run on behalf of playerID. On success every member gets
// run_started followed by lobby_update.
func (l *Lobby) StartRun(playerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.members[playerID]; !ok {
		return ErrNotMember
	}
	l.touchLocked()
	if err := l.canStartLocked(playerID); err != nil {
		if msg, deny := DenialMessage(err); deny {
			loggingLobby.StartDenied(context.Background(), l.publisher, playerID, l.code, loggingLobby.StartDeniedPayload{Reason: msg})
		}
		return err
	}

	recruits := make([]sim.Recruit, 0, len(l.order))
	for _, id := range l.order {
		member := l.members[id]
		if member.Spectator {
			continue
		}
		recruits = append(recruits, sim.Recruit{
			ID:          member.ID,
			Name:        member.Name,
			CharacterID: member.CharacterID,
			Djinn:       member.Djinn,
		})
	}

	l.room = sim.NewRoom(sim.Settings{
		Code:       l.code,
		Mode:       l.mode,
		DungeonID:  l.dungeonID,
		Difficulty: l.difficulty,
	}, sim.Deps{Content: l.content, Publisher: l.publisher, RNG: l.rng})
	l.room.Begin(recruits)
	l.inRun = true
	l.metrics.Add(telemetry.RunsStarted, 1)

	loggingLobby.RunStarted(context.Background(), l.publisher, playerID, l.code, loggingLobby.RunStartedPayload{DungeonID: l.dungeonID, Difficulty: l.difficulty, Players: len(recruits)})

	view := l.viewLocked()
	if data, err := proto.EncodeRunStarted(l.room.Snapshot(), view); err == nil {
		l.broadcastLocked(data)
	} else {
		l.logger.Printf("failed to encode run_started for %s: %v", l.code, err)
	}
	l.broadcastViewLocked()
	return nil
}

func (l *Lobby) canStartLocked(playerID string) error {
	if playerID != l.hostID {
		return ErrNotHost
	}
	if l.inRun {
		return ErrAlreadyRunning
	}
	participants := 0
	for _, id := range l.order {
		member := l.members[id]
		if member.Spectator {
			continue
		}
		participants++
		if !member.Ready {
			return ErrNotReady
		}
	}
	if participants == 0 {
		return ErrNoParticipants
	}
	return nil
}

// ApplyInput forwards an input to the room. Inputs outside a run, from
// spectators or from ghosted ids are dropped and reported as false.
func (l *Lobby) ApplyInput(playerID string, input sim.Input) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.inRun || l.room == nil || input == nil {
		return false
	}
	if _, ok := l.members[playerID]; !ok {
		return false
	}
	l.touchLocked()
	return l.room.ApplyInput(playerID, input)
}

// Pause applies a server-side pause action. Only participants of a running
// lobby may pause.
func (l *Lobby) Pause(playerID, action string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	member, ok := l.members[playerID]
	if !ok {
		return ErrNotMember
	}
	if !l.inRun || l.room == nil {
		return ErrNotRunning
	}
	if member.Spectator {
		return ErrSpectator
	}
	switch action {
	case proto.PauseRestartRoom:
		l.room.RestartRoom(playerID)
	case proto.PauseAbandonRun:
		l.room.AbandonRun(playerID)
	default:
		return ErrUnknownAction
	}
	l.touchLocked()
	loggingLobby.Paused(context.Background(), l.publisher, l.room.Tick(), playerID, l.code, loggingLobby.PausedPayload{Action: action})
	return nil
}

// Disconnect removes a member. A live player is turned into a ghost, host
// duty passes to the earliest remaining member, and the rest are told. It
// returns the number of members left; at zero the lobby is closed.
func (l *Lobby) Disconnect(playerID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.members[playerID]; !ok {
		return len(l.members)
	}
	delete(l.members, playerID)
	delete(l.sessions, playerID)
	l.order = removeID(l.order, playerID)
	tick := l.tickLocked()

	if l.inRun && l.room != nil && l.room.Ghost(playerID) {
		loggingLobby.PlayerGhosted(context.Background(), l.publisher, tick, playerID, l.code)
	}
	loggingLobby.Left(context.Background(), l.publisher, tick, playerID, l.code, loggingLobby.LeftPayload{Reason: "disconnect", Members: len(l.members)})

	if playerID == l.hostID && len(l.order) > 0 {
		l.hostID = l.order[0]
		loggingLobby.HostMigrated(context.Background(), l.publisher, tick, l.code, loggingLobby.HostMigratedPayload{From: playerID, To: l.hostID})
	}

	if len(l.members) == 0 {
		l.closed = true
		return 0
	}
	l.broadcastViewLocked()
	return len(l.members)
}

// Step advances a running lobby by one tick and sends the snapshot to every
// member. It reports whether a step happened.
func (l *Lobby) Step() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.inRun || l.room == nil || l.closed {
		return false
	}
	l.room.Step()
	data, err := proto.EncodeSnapshot(l.room.Snapshot(), l.viewLocked())
	if err != nil {
		l.logger.Printf("failed to encode snapshot for %s: %v", l.code, err)
		return true
	}
	sent := l.broadcastLocked(data)
	l.metrics.Add(telemetry.SnapshotsSent, uint64(sent))
	return true
}

// idleSince reports when the lobby last saw member activity.
func (l *Lobby) idleSince() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastActive
}

// shutdown closes every outbox and marks the lobby closed. Members are
// dropped without ghost conversion.
func (l *Lobby) shutdown() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	for _, id := range l.order {
		if out, ok := l.sessions[id]; ok {
			out.Close()
		}
	}
	l.members = make(map[string]*Member)
	l.sessions = make(map[string]Outbox)
	l.order = nil
}

func (l *Lobby) touchLocked() {
	l.lastActive = l.clock()
}

func (l *Lobby) tickLocked() uint64 {
	if l.room == nil {
		return 0
	}
	return l.room.Tick()
}

func (l *Lobby) broadcastViewLocked() {
	data, err := proto.EncodeLobbyUpdate(l.viewLocked())
	if err != nil {
		l.logger.Printf("failed to encode lobby_update for %s: %v", l.code, err)
		return
	}
	l.broadcastLocked(data)
}

// broadcastLocked sends data to every member in join order and returns the
// number of frames accepted.
func (l *Lobby) broadcastLocked(data []byte) int {
	sent := 0
	for _, id := range l.order {
		if l.sendLocked(id, data) {
			sent++
		}
	}
	return sent
}

func (l *Lobby) sendLocked(playerID string, data []byte) bool {
	out, ok := l.sessions[playerID]
	if !ok {
		return false
	}
	if !out.Send(data) {
		l.metrics.Add(telemetry.SendsDropped, 1)
		return false
	}
	return true
}

// knownDjinn drops loadout entries the catalog does not define.
func (l *Lobby) knownDjinn(slots []sim.DjinnSlot) []sim.DjinnSlot {
	out := slots[:0]
	for _, slot := range slots {
		if _, ok := l.content.Djinn(slot.ID); ok {
			out = append(out, slot)
		}
	}
	return out
}

func removeID(ids []string, id string) []string {
	for i, candidate := range ids {
		if candidate == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
