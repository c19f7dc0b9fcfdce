package sim

// Snapshot is the serialisable view of a room broadcast to clients.
type Snapshot struct {
	Code               string        `json:"code"`
	Mode               string        `json:"mode"`
	DungeonID          string        `json:"dungeonId"`
	Difficulty         string        `json:"difficulty"`
	RoomIndex          int           `json:"roomIndex"`
	ObjectiveProgress  int           `json:"objectiveProgress"`
	ObjectiveRequired  int           `json:"objectiveRequired"`
	BossPhase          int           `json:"bossPhase"`
	BossHP             int           `json:"bossHP"`
	BossCharge         int           `json:"bossCharge"`
	BossChargeRequired int           `json:"bossChargeRequired"`
	BossSpotlightVerbs []string      `json:"bossSpotlightVerbs"`
	Players            []Player      `json:"players"`
	Ghosts             []Ghost       `json:"ghosts"`
	Tick               uint64        `json:"tick"`
	Traces             []Trace       `json:"traces"`
	InputLog           []InputRecord `json:"inputLog"`
}

// Snapshot copies the current state. The result shares nothing mutable with
// the room.
func (r *Room) Snapshot() Snapshot {
	snap := Snapshot{
		Code:               r.settings.Code,
		Mode:               r.settings.Mode,
		DungeonID:          r.settings.DungeonID,
		Difficulty:         r.settings.Difficulty,
		RoomIndex:          r.roomIndex,
		ObjectiveProgress:  r.objectiveProgress,
		ObjectiveRequired:  r.objectiveRequired,
		BossPhase:          r.bossPhase,
		BossHP:             r.bossHP,
		BossCharge:         r.bossCharge,
		BossChargeRequired: r.bossChargeRequired,
		BossSpotlightVerbs: r.deps.Content.SpotlightVerbs(r.settings.DungeonID),
		Players:            make([]Player, 0, len(r.playerOrder)),
		Ghosts:             make([]Ghost, 0, len(r.ghostOrder)),
		Tick:               r.tick,
		Traces:             r.traces.Last(TraceWindow),
		InputLog:           r.inputs.Last(InputWindow),
	}
	for _, id := range r.playerOrder {
		snap.Players = append(snap.Players, r.players[id].clone())
	}
	for _, id := range r.ghostOrder {
		snap.Ghosts = append(snap.Ghosts, *r.ghosts[id])
	}
	return snap
}

// Player returns a copy of a live player.
func (r *Room) Player(id string) (Player, bool) {
	player, ok := r.players[id]
	if !ok {
		return Player{}, false
	}
	return player.clone(), true
}
