package proto

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"silver-moon/server/internal/sim"
)

var (
	// ErrMalformed reports an inbound frame that is not a JSON object with a
	// string type tag.
	ErrMalformed = errors.New("proto: malformed message")
	// ErrUnknownType reports a well-formed frame with an unrecognised tag.
	ErrUnknownType = errors.New("proto: unknown message type")
)

// Client message type identifiers.
const (
	TypeCreateLobby = "create_lobby"
	TypeJoinLobby   = "join_lobby"
	TypeSetReady    = "set_ready"
	TypeStartRun    = "start_run"
	TypeInput       = "input"
	TypePause       = "pause"
)

// Server message type identifiers.
const (
	TypeJoinedLobby = "joined_lobby"
	TypeJoinError   = "join_error"
	TypeLobbyUpdate = "lobby_update"
	TypeStartDenied = "start_denied"
	TypeRunStarted  = "run_started"
	TypeSnapshot    = "snapshot"
)

// Pause actions the server acts on. "resume" is handled by the client alone.
const (
	PauseRestartRoom = "restart-room"
	PauseAbandonRun  = "abandon-run"
)

// Message is the closed set of decoded inbound frames.
type Message interface {
	MessageType() string
	isMessage()
}

// Profile is the identity and loadout a client presents when creating or
// joining a lobby.
type Profile struct {
	PlayerID    string
	Name        string
	CharacterID string
	Djinn       []sim.DjinnSlot
	DungeonID   string
	Difficulty  string
}

type CreateLobby struct {
	Mode string
	Profile
}

type JoinLobby struct {
	Code string
	Profile
}

type SetReady struct {
	Ready bool
}

type StartRun struct{}

// Input carries a decoded player intent. Payload is nil when the inner type
// tag is unknown; such inputs are dropped by the receiver.
type Input struct {
	Payload sim.Input
}

type Pause struct {
	Action string
}

func (CreateLobby) MessageType() string { return TypeCreateLobby }
func (JoinLobby) MessageType() string   { return TypeJoinLobby }
func (SetReady) MessageType() string    { return TypeSetReady }
func (StartRun) MessageType() string    { return TypeStartRun }
func (Input) MessageType() string       { return TypeInput }
func (Pause) MessageType() string       { return TypePause }

func (CreateLobby) isMessage() {}
func (JoinLobby) isMessage()   {}
func (SetReady) isMessage()    {}
func (StartRun) isMessage()    {}
func (Input) isMessage()       {}
func (Pause) isMessage()       {}

// ClientMessage is the flat wire shape of every inbound frame.
type ClientMessage struct {
	Type        string          `json:"type"`
	Mode        string          `json:"mode,omitempty"`
	Code        string          `json:"code,omitempty"`
	PlayerID    string          `json:"playerId,omitempty"`
	Name        string          `json:"name,omitempty"`
	CharacterID string          `json:"characterId,omitempty"`
	Djinn       []sim.DjinnSlot `json:"djinn,omitempty"`
	DungeonID   string          `json:"dungeonId,omitempty"`
	Difficulty  string          `json:"difficulty,omitempty"`
	Ready       bool            `json:"ready,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Action      string          `json:"action,omitempty"`
}

type inputPayload struct {
	Type   string          `json:"type"`
	Dir    string          `json:"dir"`
	Buffer json.RawMessage `json:"buffer"`
	Verb   string          `json:"verb"`
	Cell   []float64       `json:"cell"`
	ID     string          `json:"id"`
}

// Decode parses one inbound frame into its tagged variant.
func Decode(data []byte) (Message, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return msg.Message()
}

// Message converts the flat wire shape into its tagged variant.
func (m ClientMessage) Message() (Message, error) {
	switch m.Type {
	case TypeCreateLobby:
		return CreateLobby{Mode: m.Mode, Profile: m.profile()}, nil
	case TypeJoinLobby:
		return JoinLobby{Code: NormalizeCode(m.Code), Profile: m.profile()}, nil
	case TypeSetReady:
		return SetReady{Ready: m.Ready}, nil
	case TypeStartRun:
		return StartRun{}, nil
	case TypeInput:
		payload, err := DecodeInput(m.Payload)
		if err != nil {
			return nil, err
		}
		return Input{Payload: payload}, nil
	case TypePause:
		return Pause{Action: m.Action}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}
}

func (m ClientMessage) profile() Profile {
	return Profile{
		PlayerID:    strings.TrimSpace(m.PlayerID),
		Name:        strings.TrimSpace(m.Name),
		CharacterID: m.CharacterID,
		Djinn:       sim.NormalizeLoadout(m.Djinn),
		DungeonID:   m.DungeonID,
		Difficulty:  m.Difficulty,
	}
}

// DecodeInput parses an input payload. Unknown inner tags decode to a nil
// input without error; a payload that is not an object is malformed.
func DecodeInput(raw json.RawMessage) (sim.Input, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("%w: missing input payload", ErrMalformed)
	}
	var payload inputPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: input payload: %v", ErrMalformed, err)
	}
	switch sim.InputKind(payload.Type) {
	case sim.InputMove:
		return sim.MoveInput{Dir: sim.Direction(payload.Dir), Buffer: decodeBuffer(payload.Buffer)}, nil
	case sim.InputVerb:
		return sim.VerbInput{Verb: payload.Verb, Cell: decodeCell(payload.Cell)}, nil
	case sim.InputDjinn:
		return sim.DjinnInput{ID: payload.ID}, nil
	case sim.InputSummon:
		return sim.SummonInput{ID: payload.ID}, nil
	case sim.InputContribute:
		return sim.ContributeInput{}, nil
	default:
		return nil, nil
	}
}

// decodeBuffer keeps a client key buffer when it is a list of strings and
// drops it otherwise.
func decodeBuffer(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var keys []string
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil
	}
	return keys
}

func decodeCell(values []float64) []int {
	if len(values) == 0 {
		return nil
	}
	cell := make([]int, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		cell = append(cell, int(math.Round(v)))
	}
	return cell
}

// NormalizeCode uppercases and trims a room code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// MemberView is one entry of the lobby membership list sent to clients.
type MemberView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Ready       bool   `json:"ready"`
	Spectator   bool   `json:"spectator"`
	CharacterID string `json:"characterId,omitempty"`
}

// LobbyView is the membership and readiness view of a lobby.
type LobbyView struct {
	Code       string       `json:"code"`
	HostID     string       `json:"hostId"`
	InRun      bool         `json:"inRun"`
	DungeonID  string       `json:"dungeonId"`
	Difficulty string       `json:"difficulty"`
	Players    []MemberView `json:"players"`
}

// LobbySummary is the diagnostic listing entry served over HTTP.
type LobbySummary struct {
	Code    string          `json:"code"`
	InRun   bool            `json:"inRun"`
	HostID  string          `json:"hostId"`
	Players []MemberSummary `json:"players"`
}

type MemberSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Ready     bool   `json:"ready"`
	Spectator bool   `json:"spectator"`
}

// Summary trims a lobby view down to the listing shape.
func (v LobbyView) Summary() LobbySummary {
	players := make([]MemberSummary, 0, len(v.Players))
	for _, p := range v.Players {
		players = append(players, MemberSummary{ID: p.ID, Name: p.Name, Ready: p.Ready, Spectator: p.Spectator})
	}
	return LobbySummary{Code: v.Code, InRun: v.InRun, HostID: v.HostID, Players: players}
}

type JoinedLobby struct {
	Type      string `json:"type"`
	Code      string `json:"code"`
	Host      bool   `json:"host"`
	Spectator bool   `json:"spectator"`
}

type JoinError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type LobbyUpdate struct {
	Type  string    `json:"type"`
	Lobby LobbyView `json:"lobby"`
}

type StartDenied struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// StateMessage carries a room snapshot with the membership view. It is used
// for both run_started and snapshot frames.
type StateMessage struct {
	Type  string       `json:"type"`
	State sim.Snapshot `json:"state"`
	Lobby LobbyView    `json:"lobby"`
}

func EncodeJoinedLobby(code string, host, spectator bool) ([]byte, error) {
	return json.Marshal(JoinedLobby{Type: TypeJoinedLobby, Code: code, Host: host, Spectator: spectator})
}

func EncodeJoinError(message string) ([]byte, error) {
	return json.Marshal(JoinError{Type: TypeJoinError, Message: message})
}

func EncodeLobbyUpdate(view LobbyView) ([]byte, error) {
	return json.Marshal(LobbyUpdate{Type: TypeLobbyUpdate, Lobby: view})
}

func EncodeStartDenied(message string) ([]byte, error) {
	return json.Marshal(StartDenied{Type: TypeStartDenied, Message: message})
}

func EncodeRunStarted(state sim.Snapshot, view LobbyView) ([]byte, error) {
	return json.Marshal(StateMessage{Type: TypeRunStarted, State: state, Lobby: view})
}

func EncodeSnapshot(state sim.Snapshot, view LobbyView) ([]byte, error) {
	return json.Marshal(StateMessage{Type: TypeSnapshot, State: state, Lobby: view})
}
