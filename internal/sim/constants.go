package sim

const (
	// TickRate is the fixed simulation rate in ticks per second.
	TickRate = 20

	// ArenaMin and ArenaMax bound player cells on both axes.
	ArenaMin = -6
	ArenaMax = 6

	// SpawnMin and SpawnMax bound the initial cell draw on both axes.
	SpawnMin = -2
	SpawnMax = 1

	StartingHP     = 100
	BossMaxHP      = 100
	BossHitDamage  = 12
	BossFinalPhase = 1
	BossRoomIndex  = 2
	MaxBossCharge  = 4

	// SummonPenaltyTicks is the stat penalty window after a summon.
	SummonPenaltyTicks = TickRate * 20

	MoveStep       = 0.25
	SnapEpsilon    = 0.001
	GhostDriftStep = 0.1

	TraceWindow = 20
	InputWindow = 50

	// GhostAI describes the intended ghost behaviour. Only the drift toward
	// the first live player is implemented.
	GhostAI = "stay-near-party/avoid-hazards/contribute-nearest-objective"
)

// objectiveVerbs advance the room objective outside the boss room.
var objectiveVerbs = map[string]struct{}{
	"reveal": {},
	"pound":  {},
	"growth": {},
}

// objectiveRequirement returns the contributions needed to clear roomIndex.
func objectiveRequirement(roomIndex int) int {
	switch roomIndex {
	case 0:
		return 2
	case 1:
		return 3
	default:
		return 4
	}
}
