package lobby

import "errors"

var (
	ErrNotFound        = errors.New("lobby: not found")
	ErrClosed          = errors.New("lobby: closed")
	ErrDuplicatePlayer = errors.New("lobby: player already joined")
	ErrNotMember       = errors.New("lobby: not a member")
	ErrNotHost         = errors.New("lobby: only the host can start the run")
	ErrNotReady        = errors.New("lobby: all non-spectator players must be ready")
	ErrNoParticipants  = errors.New("lobby: no participating players")
	ErrAlreadyRunning  = errors.New("lobby: run already in progress")
	ErrNotRunning      = errors.New("lobby: no run in progress")
	ErrSpectator       = errors.New("lobby: spectators cannot act on the run")
	ErrUnknownAction   = errors.New("lobby: unknown pause action")
)

// DenialMessage maps a start failure to the text sent in start_denied. It
// returns false for failures that are answered with silence.
func DenialMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrNotHost):
		return "Only the host can start the run.", true
	case errors.Is(err, ErrNotReady):
		return "All non-spectator players must be ready.", true
	case errors.Is(err, ErrNoParticipants):
		return "At least one player must be participating.", true
	default:
		return "", false
	}
}
