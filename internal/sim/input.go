package sim

// InputKind tags the variant carried by an input message.
type InputKind string

const (
	InputMove       InputKind = "move"
	InputVerb       InputKind = "verb"
	InputDjinn      InputKind = "djinn"
	InputSummon     InputKind = "summon"
	InputContribute InputKind = "contribute"
)

// Input is the closed set of player intents. Only the variants in this file
// implement it.
type Input interface {
	Kind() InputKind
	isInput()
}

// Direction is a cardinal step on the cell grid.
type Direction string

const (
	DirUp    Direction = "up"
	DirDown  Direction = "down"
	DirLeft  Direction = "left"
	DirRight Direction = "right"
)

// Delta returns the cell offset for the direction. Unknown directions yield
// a zero offset.
func (d Direction) Delta() (int, int) {
	switch d {
	case DirUp:
		return 0, -1
	case DirDown:
		return 0, 1
	case DirLeft:
		return -1, 0
	case DirRight:
		return 1, 0
	default:
		return 0, 0
	}
}

// MoveInput steps the player's cell by one unit.
type MoveInput struct {
	Dir    Direction `json:"dir"`
	Buffer []string  `json:"buffer,omitempty"`
}

// VerbInput performs a field verb on a cell.
type VerbInput struct {
	Verb string `json:"verb"`
	Cell []int  `json:"cell,omitempty"`
}

// DjinnInput unleashes a set djinn, moving it to standby.
type DjinnInput struct {
	ID string `json:"id"`
}

// SummonInput spends standby djinn on a summon.
type SummonInput struct {
	ID string `json:"id"`
}

// ContributeInput pushes the current room objective or boss charge.
type ContributeInput struct{}

func (MoveInput) Kind() InputKind       { return InputMove }
func (VerbInput) Kind() InputKind       { return InputVerb }
func (DjinnInput) Kind() InputKind      { return InputDjinn }
func (SummonInput) Kind() InputKind     { return InputSummon }
func (ContributeInput) Kind() InputKind { return InputContribute }

func (MoveInput) isInput()       {}
func (VerbInput) isInput()       {}
func (DjinnInput) isInput()      {}
func (SummonInput) isInput()     {}
func (ContributeInput) isInput() {}

// InputRecord is one entry of the audit trail of raw inputs.
type InputRecord struct {
	Tick     uint64    `json:"tick"`
	PlayerID string    `json:"playerId"`
	Type     InputKind `json:"type"`
	Input    Input     `json:"input"`
}
