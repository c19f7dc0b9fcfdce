package sim

// DjinnState is the stance of a djinn in a loadout.
type DjinnState string

const (
	DjinnSet     DjinnState = "set"
	DjinnStandby DjinnState = "standby"
)

// DjinnSlot is one entry of a player's ordered djinn loadout.
type DjinnSlot struct {
	ID    string     `json:"id"`
	State DjinnState `json:"state"`
}

// NormalizeLoadout copies a client-supplied loadout, coercing anything other
// than standby to set.
func NormalizeLoadout(slots []DjinnSlot) []DjinnSlot {
	out := make([]DjinnSlot, 0, len(slots))
	for _, slot := range slots {
		if slot.ID == "" {
			continue
		}
		if slot.State != DjinnStandby {
			slot.State = DjinnSet
		}
		out = append(out, slot)
	}
	return out
}

func cloneLoadout(slots []DjinnSlot) []DjinnSlot {
	if slots == nil {
		return []DjinnSlot{}
	}
	return append([]DjinnSlot(nil), slots...)
}

// Player is a live participant. It carries no transport state.
type Player struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	CellX            int         `json:"cellX"`
	CellY            int         `json:"cellY"`
	X                float64     `json:"x"`
	Y                float64     `json:"y"`
	TargetX          float64     `json:"targetX"`
	TargetY          float64     `json:"targetY"`
	HP               int         `json:"hp"`
	CharacterID      string      `json:"characterId"`
	Djinn            []DjinnSlot `json:"djinn"`
	StatPenaltyTicks int         `json:"statPenaltyTicks"`
	Buffer           []string    `json:"buffer,omitempty"`
}

func (p *Player) standbyCount() int {
	count := 0
	for _, slot := range p.Djinn {
		if slot.State == DjinnStandby {
			count++
		}
	}
	return count
}

func (p Player) clone() Player {
	p.Djinn = cloneLoadout(p.Djinn)
	if p.Buffer != nil {
		p.Buffer = append([]string(nil), p.Buffer...)
	}
	return p
}

// Ghost is the residue of a player who disconnected mid-run.
type Ghost struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	AI   string  `json:"ai"`
}

// Recruit describes a lobby member entering the run as a player.
type Recruit struct {
	ID          string
	Name        string
	CharacterID string
	Djinn       []DjinnSlot
}

// Trace is a short-lived record of a notable event.
type Trace struct {
	T          uint64 `json:"t"`
	By         string `json:"by"`
	Verb       string `json:"verb,omitempty"`
	Cell       []int  `json:"cell,omitempty"`
	BossHit    bool   `json:"bossHit,omitempty"`
	BossCharge int    `json:"bossCharge,omitempty"`
	Summon     string `json:"summon,omitempty"`
}
