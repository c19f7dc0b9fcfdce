package sim

import (
	"context"
	"math"
	"math/rand"

	"silver-moon/server/logging"
	loggingSimulation "silver-moon/server/logging/simulation"
)

// Settings are the lobby-level parameters a run is started with.
type Settings struct {
	Code       string
	Mode       string
	DungeonID  string
	Difficulty string
}

// Room is the authoritative state of one party's run. It is not safe for
// concurrent use; the owning lobby serialises every call.
type Room struct {
	deps     Deps
	settings Settings
	tileSize float64

	roomIndex          int
	objectiveProgress  int
	objectiveRequired  int
	bossPhase          int
	bossHP             int
	bossCharge         int
	bossChargeRequired int
	tick               uint64

	players     map[string]*Player
	playerOrder []string
	ghosts      map[string]*Ghost
	ghostOrder  []string

	traces *Trail[Trace]
	inputs *Trail[InputRecord]
}

// NewRoom constructs a room with every counter at its initial value.
func NewRoom(settings Settings, deps Deps) *Room {
	deps = deps.withDefaults()
	r := &Room{
		deps:     deps,
		settings: settings,
		tileSize: deps.Content.TileSize(),
		players:  make(map[string]*Player),
		ghosts:   make(map[string]*Ghost),
		traces:   NewTrail[Trace](TraceWindow),
		inputs:   NewTrail[InputRecord](InputWindow),
	}
	r.resetProgress()
	r.recalcBossChargeRequired()
	return r
}

func (r *Room) resetProgress() {
	r.roomIndex = 0
	r.objectiveProgress = 0
	r.objectiveRequired = objectiveRequirement(0)
	r.bossPhase = 0
	r.bossHP = BossMaxHP
	r.bossCharge = 0
}

// Begin resets the run and spawns one player per recruit on distinct cells.
// Any previous players and ghosts are discarded.
func (r *Room) Begin(recruits []Recruit) {
	r.resetProgress()
	r.tick = 0
	r.traces.Reset()
	r.inputs.Reset()
	r.players = make(map[string]*Player, len(recruits))
	r.playerOrder = r.playerOrder[:0]
	r.ghosts = make(map[string]*Ghost)
	r.ghostOrder = r.ghostOrder[:0]

	occupied := make(map[[2]int]struct{}, len(recruits))
	for _, recruit := range recruits {
		if _, exists := r.players[recruit.ID]; exists {
			continue
		}
		cx, cy := r.spawnCell(occupied)
		occupied[[2]int{cx, cy}] = struct{}{}
		x, y := r.cellToWorld(cx, cy)
		r.players[recruit.ID] = &Player{
			ID:          recruit.ID,
			Name:        recruit.Name,
			CellX:       cx,
			CellY:       cy,
			X:           x,
			Y:           y,
			TargetX:     x,
			TargetY:     y,
			HP:          StartingHP,
			CharacterID: recruit.CharacterID,
			Djinn:       NormalizeLoadout(recruit.Djinn),
		}
		r.playerOrder = append(r.playerOrder, recruit.ID)
	}
	r.recalcBossChargeRequired()
}

func (r *Room) intn(n int) int {
	if r.deps.RNG != nil {
		return r.deps.RNG.Intn(n)
	}
	return rand.Intn(n)
}

// spawnCell draws a free cell from the spawn square, falling back to the
// whole arena once the square is crowded.
func (r *Room) spawnCell(occupied map[[2]int]struct{}) (int, int) {
	span := SpawnMax - SpawnMin + 1
	for attempt := 0; attempt < span*span*2; attempt++ {
		cx := SpawnMin + r.intn(span)
		cy := SpawnMin + r.intn(span)
		if _, taken := occupied[[2]int{cx, cy}]; !taken {
			return cx, cy
		}
	}
	free := make([][2]int, 0)
	for cy := ArenaMin; cy <= ArenaMax; cy++ {
		for cx := ArenaMin; cx <= ArenaMax; cx++ {
			if _, taken := occupied[[2]int{cx, cy}]; !taken {
				free = append(free, [2]int{cx, cy})
			}
		}
	}
	if len(free) == 0 {
		return SpawnMin + r.intn(span), SpawnMin + r.intn(span)
	}
	cell := free[r.intn(len(free))]
	return cell[0], cell[1]
}

func (r *Room) cellToWorld(cx, cy int) (float64, float64) {
	return float64(cx) * r.tileSize, float64(cy) * r.tileSize
}

func (r *Room) recalcBossChargeRequired() {
	active := len(r.players) + len(r.ghosts)
	required := int(math.Ceil(float64(active) / 2))
	r.bossChargeRequired = clampInt(required, 1, MaxBossCharge)
}

// HasPlayer reports whether id owns a live player entity.
func (r *Room) HasPlayer(id string) bool {
	_, ok := r.players[id]
	return ok
}

// HasGhost reports whether id has been converted to a ghost.
func (r *Room) HasGhost(id string) bool {
	_, ok := r.ghosts[id]
	return ok
}

// Tick returns the monotonic tick counter.
func (r *Room) Tick() uint64 {
	return r.tick
}

// Ghost converts a live player into a ghost at its last position. It
// returns false when id has no live player.
func (r *Room) Ghost(id string) bool {
	player, ok := r.players[id]
	if !ok {
		return false
	}
	delete(r.players, id)
	r.playerOrder = removeID(r.playerOrder, id)
	r.ghosts[id] = &Ghost{
		ID:   id,
		Name: player.Name + " (ghost)",
		X:    player.X,
		Y:    player.Y,
		AI:   GhostAI,
	}
	r.ghostOrder = append(r.ghostOrder, id)
	r.recalcBossChargeRequired()
	return true
}

// RestartRoom clears the current room's objective progress, and the boss
// charge when in the boss room.
func (r *Room) RestartRoom(by string) {
	r.objectiveProgress = 0
	if r.roomIndex == BossRoomIndex {
		r.bossCharge = 0
	}
	loggingSimulation.RunReset(context.Background(), r.deps.Publisher, r.tick, playerRef(by), loggingSimulation.RunResetPayload{Action: "restart-room"}, r.extra())
}

// AbandonRun rewinds room, objective and boss counters to their initial
// values. Players, ghosts and the tick counter are kept.
func (r *Room) AbandonRun(by string) {
	r.resetProgress()
	loggingSimulation.RunReset(context.Background(), r.deps.Publisher, r.tick, playerRef(by), loggingSimulation.RunResetPayload{Action: "abandon-run"}, r.extra())
}

// ApplyInput records and applies one input for a live player. Inputs for
// unknown or ghosted ids are dropped and reported as false.
func (r *Room) ApplyInput(playerID string, input Input) bool {
	player, ok := r.players[playerID]
	if !ok || input == nil {
		return false
	}
	r.inputs.Push(InputRecord{Tick: r.tick, PlayerID: playerID, Type: input.Kind(), Input: input})

	switch in := input.(type) {
	case MoveInput:
		r.applyMove(player, in)
	case VerbInput:
		r.applyVerb(player, in)
	case DjinnInput:
		r.applyDjinn(player, in)
	case SummonInput:
		r.applySummon(player, in)
	case ContributeInput:
		r.applyContribute(player)
	}
	return true
}

func (r *Room) applyMove(player *Player, in MoveInput) {
	dx, dy := in.Dir.Delta()
	player.CellX = clampInt(player.CellX+dx, ArenaMin, ArenaMax)
	player.CellY = clampInt(player.CellY+dy, ArenaMin, ArenaMax)
	player.TargetX, player.TargetY = r.cellToWorld(player.CellX, player.CellY)
	player.Buffer = append([]string(nil), in.Buffer...)
}

func (r *Room) applyVerb(player *Player, in VerbInput) {
	r.traces.Push(Trace{T: r.tick, By: player.ID, Verb: in.Verb, Cell: append([]int(nil), in.Cell...)})

	if r.roomIndex < BossRoomIndex {
		if _, counts := objectiveVerbs[in.Verb]; counts {
			r.objectiveProgress = min(r.objectiveRequired, r.objectiveProgress+1)
		}
		return
	}

	if r.deps.Content.IsSpotlightVerb(r.settings.DungeonID, in.Verb) && r.bossCharge >= r.bossChargeRequired {
		r.bossHP = max(0, r.bossHP-BossHitDamage)
		r.bossCharge = 0
		r.traces.Push(Trace{T: r.tick, By: player.ID, BossHit: true, Verb: in.Verb})
		loggingSimulation.BossHit(context.Background(), r.deps.Publisher, r.tick, playerRef(player.ID), loggingSimulation.BossHitPayload{Verb: in.Verb, HP: r.bossHP, Phase: r.bossPhase}, r.extra())
	}
	// A depleted final phase is terminal; nothing further happens.
	if r.bossHP == 0 && r.bossPhase < BossFinalPhase {
		r.bossPhase++
		r.bossHP = BossMaxHP
		r.bossCharge = 0
		loggingSimulation.BossPhaseAdvanced(context.Background(), r.deps.Publisher, r.tick, loggingSimulation.BossPhasePayload{Phase: r.bossPhase}, r.extra())
	}
}

func (r *Room) applyDjinn(player *Player, in DjinnInput) {
	for i := range player.Djinn {
		if player.Djinn[i].ID != in.ID {
			continue
		}
		if player.Djinn[i].State == DjinnSet {
			player.Djinn[i].State = DjinnStandby
		}
		return
	}
}

func (r *Room) applySummon(player *Player, in SummonInput) {
	summon, ok := r.deps.Content.Summon(in.ID)
	if !ok || player.standbyCount() < summon.CostStandby {
		return
	}
	remaining := summon.CostStandby
	for i := range player.Djinn {
		if remaining == 0 {
			break
		}
		if player.Djinn[i].State == DjinnStandby {
			player.Djinn[i].State = DjinnSet
			remaining--
		}
	}
	player.StatPenaltyTicks = SummonPenaltyTicks
	r.traces.Push(Trace{T: r.tick, By: player.ID, Summon: summon.Name})
	loggingSimulation.SummonCast(context.Background(), r.deps.Publisher, r.tick, playerRef(player.ID), loggingSimulation.SummonPayload{SummonID: summon.ID, Name: summon.Name, Cost: summon.CostStandby}, r.extra())
}

func (r *Room) applyContribute(player *Player) {
	if r.roomIndex >= BossRoomIndex {
		r.bossCharge = min(r.bossChargeRequired, r.bossCharge+1)
		r.traces.Push(Trace{T: r.tick, By: player.ID, BossCharge: r.bossCharge})
		return
	}

	r.objectiveProgress = min(r.objectiveRequired, r.objectiveProgress+1)
	if r.objectiveProgress < r.objectiveRequired {
		return
	}
	from := r.roomIndex
	r.roomIndex = min(BossRoomIndex, r.roomIndex+1)
	r.objectiveProgress = 0
	r.objectiveRequired = objectiveRequirement(r.roomIndex)
	loggingSimulation.RoomAdvanced(context.Background(), r.deps.Publisher, r.tick, playerRef(player.ID), loggingSimulation.RoomAdvancedPayload{From: from, To: r.roomIndex, Required: r.objectiveRequired}, r.extra())
}

// Step advances the simulation by one fixed tick.
func (r *Room) Step() {
	r.tick++
	r.recalcBossChargeRequired()

	for _, id := range r.playerOrder {
		player := r.players[id]
		player.TargetX, player.TargetY = r.cellToWorld(player.CellX, player.CellY)
		player.X = approach(player.X, player.TargetX, MoveStep)
		player.Y = approach(player.Y, player.TargetY, MoveStep)
		if math.Abs(player.TargetX-player.X) < SnapEpsilon {
			player.X = player.TargetX
		}
		if math.Abs(player.TargetY-player.Y) < SnapEpsilon {
			player.Y = player.TargetY
		}
		if player.StatPenaltyTicks > 0 {
			player.StatPenaltyTicks--
		}
	}

	if len(r.playerOrder) == 0 {
		return
	}
	anchor := r.players[r.playerOrder[0]]
	for _, id := range r.ghostOrder {
		ghost := r.ghosts[id]
		ghost.X += sign(anchor.X-ghost.X) * GhostDriftStep
		ghost.Y += sign(anchor.Y-ghost.Y) * GhostDriftStep
	}
}

func (r *Room) extra() map[string]any {
	return map[string]any{"lobby": r.settings.Code}
}

func playerRef(id string) logging.EntityRef {
	return logging.EntityRef{ID: id, Kind: logging.EntityKindPlayer}
}

func approach(current, target, step float64) float64 {
	delta := target - current
	return current + sign(delta)*math.Min(math.Abs(delta), step)
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func removeID(ids []string, id string) []string {
	for i, candidate := range ids {
		if candidate == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
