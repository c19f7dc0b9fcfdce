package lobby

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
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
	// CodeAlphabet omits glyphs that are easy to confuse (I, O, 0, 1).
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	CodeLength   = 5
)

// Config wires a registry's collaborators. Zero values fall back to the
// embedded content catalog, a no-op publisher and the wall clock.
type Config struct {
	Content   *content.Store
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
	Logger    telemetry.Logger
	// Rand seeds room codes and per-lobby spawn randomness.
	Rand *rand.Rand
	// Codes overrides room code generation.
	Codes func() string
	Clock func() time.Time
}

// Registry maps room codes to lobbies. The registry lock is never acquired
// while a lobby lock is held.
type Registry struct {
	mu      sync.RWMutex
	lobbies map[string]*Lobby

	content   *content.Store
	publisher logging.Publisher
	metrics   telemetry.Metrics
	logger    telemetry.Logger
	rng       *rand.Rand
	codes     func() string
	clock     func() time.Time
}

func NewRegistry(cfg Config) *Registry {
	r := &Registry{
		lobbies:   make(map[string]*Lobby),
		content:   cfg.Content,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		rng:       cfg.Rand,
		codes:     cfg.Codes,
		clock:     cfg.Clock,
	}
	if r.content == nil {
		r.content = content.MustDefault()
	}
	if r.publisher == nil {
		r.publisher = logging.NopPublisher()
	}
	if r.metrics == nil {
		r.metrics = telemetry.NopMetrics()
	}
	if r.logger == nil {
		r.logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	if r.rng == nil {
		r.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if r.codes == nil {
		r.codes = r.randomCode
	}
	if r.clock == nil {
		r.clock = time.Now
	}
	return r
}

// randomCode draws a code from CodeAlphabet. Callers hold r.mu.
func (r *Registry) randomCode() string {
	buf := make([]byte, CodeLength)
	for i := range buf {
		buf[i] = CodeAlphabet[r.rng.Intn(len(CodeAlphabet))]
	}
	return string(buf)
}

// Create registers a new lobby owned by hostID under a fresh code. Drawn
// codes that are already taken are redrawn.
func (r *Registry) Create(hostID string, settings Settings) *Lobby {
	r.mu.Lock()
	code := r.codes()
	for {
		if _, taken := r.lobbies[code]; !taken && code != "" {
			break
		}
		code = r.codes()
	}
	l := newLobby(code, hostID, settings, lobbyDeps{
		content:   r.content,
		publisher: r.publisher,
		metrics:   r.metrics,
		logger:    r.logger,
		rng:       rand.New(rand.NewSource(r.rng.Int63())),
		clock:     r.clock,
	})
	r.lobbies[code] = l
	count := len(r.lobbies)
	r.mu.Unlock()

	r.metrics.Add(telemetry.LobbiesCreated, 1)
	r.metrics.Store(telemetry.LobbiesActive, uint64(count))
	loggingLobby.Created(context.Background(), r.publisher, hostID, code, loggingLobby.CreatedPayload{Mode: l.Mode()})
	return l
}

// Find looks a lobby up by code. The code is trimmed and uppercased first.
func (r *Registry) Find(code string) (*Lobby, error) {
	code = proto.NormalizeCode(code)
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.lobbies[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	return l, nil
}

// RemoveIfEmpty deletes the lobby once it has no members. It reports whether
// the lobby was removed.
func (r *Registry) RemoveIfEmpty(code string) bool {
	r.mu.Lock()
	l, ok := r.lobbies[code]
	if !ok || l.Len() > 0 {
		r.mu.Unlock()
		return false
	}
	delete(r.lobbies, code)
	count := len(r.lobbies)
	r.mu.Unlock()

	r.metrics.Add(telemetry.LobbiesDestroyed, 1)
	r.metrics.Store(telemetry.LobbiesActive, uint64(count))
	loggingLobby.Destroyed(context.Background(), r.publisher, 0, code, loggingLobby.DestroyedPayload{Reason: "empty"})
	return true
}

// Len reports the number of registered lobbies.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.lobbies)
}

// snapshot copies the registered lobbies in code order so that callers can
// lock each lobby without holding the registry lock.
func (r *Registry) snapshot() []*Lobby {
	r.mu.RLock()
	lobbies := make([]*Lobby, 0, len(r.lobbies))
	for _, l := range r.lobbies {
		lobbies = append(lobbies, l)
	}
	r.mu.RUnlock()
	sort.Slice(lobbies, func(i, j int) bool { return lobbies[i].code < lobbies[j].code })
	return lobbies
}

// List returns the diagnostic summary of every lobby.
func (r *Registry) List() []proto.LobbySummary {
	lobbies := r.snapshot()
	out := make([]proto.LobbySummary, 0, len(lobbies))
	for _, l := range lobbies {
		out = append(out, l.View().Summary())
	}
	return out
}

// Tick steps every running lobby once. A panic inside one lobby is logged
// and does not prevent the others from stepping. It returns the number of
// lobbies stepped.
func (r *Registry) Tick() int {
	stepped := 0
	for _, l := range r.snapshot() {
		if r.stepLobby(l) {
			stepped++
		}
	}
	return stepped
}

func (r *Registry) stepLobby(l *Lobby) (stepped bool) {
	defer func() {
		if recovered := recover(); recovered != nil {
			r.metrics.Add(telemetry.TickPanics, 1)
			r.logger.Printf("lobby %s tick panicked: %v", l.code, recovered)
			loggingLobby.TickFailed(context.Background(), r.publisher, 0, l.code, loggingLobby.TickFailedPayload{Panic: fmt.Sprint(recovered)})
			stepped = false
		}
	}()
	return l.Step()
}

// Run drives Tick at the simulation rate until ctx ends. A positive
// idleTimeout also reaps lobbies without activity for that long.
func (r *Registry) Run(ctx context.Context, idleTimeout time.Duration) {
	ticker := time.NewTicker(time.Second / sim.TickRate)
	defer ticker.Stop()

	var reap <-chan time.Time
	if idleTimeout > 0 {
		reapTicker := time.NewTicker(reapInterval(idleTimeout))
		defer reapTicker.Stop()
		reap = reapTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick()
		case now := <-reap:
			if n := r.ReapIdle(now, idleTimeout); n > 0 {
				r.logger.Printf("reaped %d idle lobbies", n)
			}
		}
	}
}

func reapInterval(idleTimeout time.Duration) time.Duration {
	interval := idleTimeout / 4
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}

// ReapIdle closes and removes every lobby whose last activity is older than
// maxIdle. It returns the number of lobbies removed.
func (r *Registry) ReapIdle(now time.Time, maxIdle time.Duration) int {
	if maxIdle <= 0 {
		return 0
	}
	reaped := 0
	for _, l := range r.snapshot() {
		if now.Sub(l.idleSince()) < maxIdle {
			continue
		}
		r.mu.Lock()
		current, ok := r.lobbies[l.code]
		if !ok || current != l {
			r.mu.Unlock()
			continue
		}
		delete(r.lobbies, l.code)
		count := len(r.lobbies)
		r.mu.Unlock()

		reaped++
		l.shutdown()
		r.metrics.Add(telemetry.LobbiesDestroyed, 1)
		r.metrics.Store(telemetry.LobbiesActive, uint64(count))
		loggingLobby.Destroyed(context.Background(), r.publisher, 0, l.code, loggingLobby.DestroyedPayload{Reason: "idle"})
	}
	return reaped
}
