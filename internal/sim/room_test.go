package sim

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"silver-moon/server/internal/content"
	"silver-moon/server/logging"
	loggingSimulation "silver-moon/server/logging/simulation"
	"silver-moon/server/logging/sinks"
)

type recordingPublisher struct {
	events []logging.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event logging.Event) {
	p.events = append(p.events, event)
}

func testCatalog() content.Catalog {
	return content.Catalog{
		TileSize: 1,
		Summons: []content.Summon{
			{ID: "s1", Name: "Venus", CostStandby: 1},
			{ID: "s3", Name: "Cybele", CostStandby: 3},
		},
		Dungeons: []content.Dungeon{
			{ID: "d1", Name: "Sol Sanctum", Verbs: []string{"push_pull", "pound", "reveal"}},
		},
	}
}

func newTestRoom(t *testing.T, ids ...string) (*Room, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	room := NewRoom(Settings{Code: "ABCDE", Mode: "host", DungeonID: "d1", Difficulty: "standard"}, Deps{
		Content:   content.New(testCatalog()),
		Publisher: pub,
		RNG:       rand.New(rand.NewSource(7)),
	})
	recruits := make([]Recruit, 0, len(ids))
	for _, id := range ids {
		recruits = append(recruits, Recruit{
			ID:   id,
			Name: "name-" + id,
			Djinn: []DjinnSlot{
				{ID: "flint", State: DjinnSet},
				{ID: "forge", State: DjinnSet},
				{ID: "gust", State: DjinnSet},
			},
		})
	}
	room.Begin(recruits)
	return room, pub
}

func TestBeginSpawnsDistinctCellsInsideSpawnSquare(t *testing.T) {
	room, _ := newTestRoom(t, "a", "b", "c", "d", "e", "f")
	seen := make(map[[2]int]bool)
	for _, player := range room.Snapshot().Players {
		if player.CellX < SpawnMin || player.CellX > SpawnMax || player.CellY < SpawnMin || player.CellY > SpawnMax {
			t.Fatalf("player %s spawned outside spawn square: (%d,%d)", player.ID, player.CellX, player.CellY)
		}
		cell := [2]int{player.CellX, player.CellY}
		if seen[cell] {
			t.Fatalf("player %s shares spawn cell %v", player.ID, cell)
		}
		seen[cell] = true
		if player.X != float64(player.CellX) || player.TargetY != float64(player.CellY) {
			t.Fatalf("expected world position derived from cell, got %+v", player)
		}
		if player.HP != StartingHP {
			t.Fatalf("expected starting hp %d, got %d", StartingHP, player.HP)
		}
	}
	if len(seen) != 6 {
		t.Fatalf("expected 6 players, got %d", len(seen))
	}
}

func TestBeginOverflowsSpawnSquareWithoutSharingCells(t *testing.T) {
	ids := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		ids = append(ids, string(rune('a'+i)))
	}
	room, _ := newTestRoom(t, ids...)
	seen := make(map[[2]int]bool)
	for _, player := range room.Snapshot().Players {
		cell := [2]int{player.CellX, player.CellY}
		if seen[cell] {
			t.Fatalf("expected distinct cells even past the spawn square, duplicate %v", cell)
		}
		seen[cell] = true
	}
}

func TestMoveStaysInsideArena(t *testing.T) {
	room, _ := newTestRoom(t, "a")
	rng := rand.New(rand.NewSource(42))
	dirs := []Direction{DirUp, DirDown, DirLeft, DirRight, "sideways"}
	for i := 0; i < 500; i++ {
		room.ApplyInput("a", MoveInput{Dir: dirs[rng.Intn(len(dirs))]})
		player, _ := room.Player("a")
		if player.CellX < ArenaMin || player.CellX > ArenaMax || player.CellY < ArenaMin || player.CellY > ArenaMax {
			t.Fatalf("cell escaped arena after %d moves: (%d,%d)", i+1, player.CellX, player.CellY)
		}
	}
	for i := 0; i < 20; i++ {
		room.ApplyInput("a", MoveInput{Dir: DirLeft})
	}
	player, _ := room.Player("a")
	if player.CellX != ArenaMin {
		t.Fatalf("expected cell clamped to %d, got %d", ArenaMin, player.CellX)
	}
}

func TestMoveIgnoresUnknownDirectionButLogsInput(t *testing.T) {
	room, _ := newTestRoom(t, "a")
	before, _ := room.Player("a")
	room.ApplyInput("a", MoveInput{Dir: "diagonal"})
	after, _ := room.Player("a")
	if before.CellX != after.CellX || before.CellY != after.CellY {
		t.Fatalf("expected unknown direction to be a no-op")
	}
	log := room.Snapshot().InputLog
	if len(log) != 1 || log[0].Type != InputMove || log[0].PlayerID != "a" {
		t.Fatalf("expected move to be recorded in input log, got %+v", log)
	}
}

func TestStepInterpolatesTowardTarget(t *testing.T) {
	room, _ := newTestRoom(t, "a")
	start, _ := room.Player("a")
	room.ApplyInput("a", MoveInput{Dir: DirRight, Buffer: []string{"right"}})

	moved, _ := room.Player("a")
	if moved.X != start.X {
		t.Fatalf("expected position to stay put until ticked")
	}
	if moved.TargetX != start.X+1 {
		t.Fatalf("expected target one tile to the right, got %v", moved.TargetX)
	}
	if len(moved.Buffer) != 1 || moved.Buffer[0] != "right" {
		t.Fatalf("expected move buffer to be recorded, got %v", moved.Buffer)
	}

	room.Step()
	stepped, _ := room.Player("a")
	if math.Abs(stepped.X-(start.X+MoveStep)) > 1e-9 {
		t.Fatalf("expected x to advance by %v, got %v", MoveStep, stepped.X-start.X)
	}
	for i := 0; i < 3; i++ {
		room.Step()
	}
	arrived, _ := room.Player("a")
	if arrived.X != arrived.TargetX {
		t.Fatalf("expected player to snap onto target, got x=%v target=%v", arrived.X, arrived.TargetX)
	}
	if room.Tick() != 4 {
		t.Fatalf("expected tick counter 4, got %d", room.Tick())
	}
}

func TestContributeAdvancesRoomsSequentially(t *testing.T) {
	room, pub := newTestRoom(t, "a")
	expectations := []struct {
		room     int
		required int
		steps    int
	}{
		{room: 0, required: 2, steps: 2},
		{room: 1, required: 3, steps: 3},
	}
	for _, exp := range expectations {
		snap := room.Snapshot()
		if snap.RoomIndex != exp.room || snap.ObjectiveRequired != exp.required {
			t.Fatalf("expected room %d requiring %d, got room %d requiring %d", exp.room, exp.required, snap.RoomIndex, snap.ObjectiveRequired)
		}
		for i := 0; i < exp.steps-1; i++ {
			room.ApplyInput("a", ContributeInput{})
			if room.Snapshot().RoomIndex != exp.room {
				t.Fatalf("room advanced early at contribution %d", i+1)
			}
		}
		room.ApplyInput("a", ContributeInput{})
		snap = room.Snapshot()
		if snap.RoomIndex != exp.room+1 || snap.ObjectiveProgress != 0 {
			t.Fatalf("expected advance to room %d with reset progress, got %+v", exp.room+1, snap)
		}
	}
	final := room.Snapshot()
	if final.ObjectiveRequired != 4 {
		t.Fatalf("expected boss room requirement 4, got %d", final.ObjectiveRequired)
	}

	advanced := 0
	for _, event := range pub.events {
		if event.Type == loggingSimulation.EventRoomAdvanced {
			advanced++
		}
	}
	if advanced != 2 {
		t.Fatalf("expected 2 room advanced events, got %d", advanced)
	}
}

func TestObjectiveVerbsCapProgressWithoutAdvancing(t *testing.T) {
	room, _ := newTestRoom(t, "a")
	for i := 0; i < 5; i++ {
		room.ApplyInput("a", VerbInput{Verb: "reveal", Cell: []int{1, 2}})
		snap := room.Snapshot()
		if snap.ObjectiveProgress > snap.ObjectiveRequired {
			t.Fatalf("progress %d exceeded requirement %d", snap.ObjectiveProgress, snap.ObjectiveRequired)
		}
	}
	snap := room.Snapshot()
	if snap.RoomIndex != 0 || snap.ObjectiveProgress != 2 {
		t.Fatalf("expected capped progress in room 0, got room=%d progress=%d", snap.RoomIndex, snap.ObjectiveProgress)
	}
	room.ApplyInput("a", VerbInput{Verb: "swap"})
	if room.Snapshot().ObjectiveProgress != 2 {
		t.Fatalf("expected non-objective verb to leave progress alone")
	}
	if len(snap.Traces) != 5 || snap.Traces[0].Verb != "reveal" || len(snap.Traces[0].Cell) != 2 {
		t.Fatalf("expected verb traces with cells, got %+v", snap.Traces)
	}

	room.ApplyInput("a", ContributeInput{})
	if room.Snapshot().RoomIndex != 1 {
		t.Fatalf("expected contribute at full progress to advance the room")
	}
}

func enterBossRoom(t *testing.T, room *Room, id string) {
	t.Helper()
	for room.Snapshot().RoomIndex < BossRoomIndex {
		room.ApplyInput(id, ContributeInput{})
	}
}

func TestBossHitWithFullCharge(t *testing.T) {
	room, pub := newTestRoom(t, "a", "b", "c")
	enterBossRoom(t, room, "a")
	room.Step()

	snap := room.Snapshot()
	if snap.BossChargeRequired != 2 {
		t.Fatalf("expected charge requirement 2 for three players, got %d", snap.BossChargeRequired)
	}
	for i := 0; i < 5; i++ {
		room.ApplyInput("b", ContributeInput{})
	}
	snap = room.Snapshot()
	if snap.BossCharge != snap.BossChargeRequired || snap.ObjectiveProgress != 0 {
		t.Fatalf("expected charge capped at requirement without touching objective, got %+v", snap)
	}

	traces := len(snap.Traces)
	room.ApplyInput("a", VerbInput{Verb: snap.BossSpotlightVerbs[0]})
	snap = room.Snapshot()
	if snap.BossHP != 88 {
		t.Fatalf("expected boss hp 88, got %d", snap.BossHP)
	}
	if snap.BossCharge != 0 {
		t.Fatalf("expected boss charge reset, got %d", snap.BossCharge)
	}
	hits := 0
	for _, trace := range snap.Traces[traces:] {
		if trace.BossHit {
			hits++
		}
	}
	if hits != 1 {
		t.Fatalf("expected exactly one boss hit trace, got %d", hits)
	}
	found := false
	for _, event := range pub.events {
		if event.Type == loggingSimulation.EventBossHit {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected boss hit event to be published")
	}
}

func TestBossIgnoresUnchargedOrNonSpotlightVerbs(t *testing.T) {
	room, _ := newTestRoom(t, "a")
	enterBossRoom(t, room, "a")
	room.ApplyInput("a", VerbInput{Verb: "pound"})
	if room.Snapshot().BossHP != BossMaxHP {
		t.Fatalf("expected uncharged verb to miss")
	}
	room.ApplyInput("a", ContributeInput{})
	room.ApplyInput("a", VerbInput{Verb: "freeze"})
	snap := room.Snapshot()
	if snap.BossHP != BossMaxHP || snap.BossCharge != 1 {
		t.Fatalf("expected non-spotlight verb to keep charge and hp, got %+v", snap)
	}
	if snap.ObjectiveProgress != 0 {
		t.Fatalf("expected boss room verbs not to touch objective progress")
	}
}

func TestBossPhaseTransitionAndTerminalState(t *testing.T) {
	room, _ := newTestRoom(t, "a")
	enterBossRoom(t, room, "a")

	hit := func() {
		room.ApplyInput("a", ContributeInput{})
		room.ApplyInput("a", VerbInput{Verb: "pound"})
	}
	for i := 0; i < 9; i++ {
		hit()
	}
	snap := room.Snapshot()
	if snap.BossPhase != 1 || snap.BossHP != BossMaxHP || snap.BossCharge != 0 {
		t.Fatalf("expected phase 1 with restored hp, got phase=%d hp=%d charge=%d", snap.BossPhase, snap.BossHP, snap.BossCharge)
	}
	for i := 0; i < 12; i++ {
		hit()
	}
	snap = room.Snapshot()
	if snap.BossPhase != 1 || snap.BossHP != 0 {
		t.Fatalf("expected terminal phase 1 at 0 hp, got phase=%d hp=%d", snap.BossPhase, snap.BossHP)
	}
	hit()
	if after := room.Snapshot(); after.BossHP != 0 || after.BossPhase != 1 {
		t.Fatalf("expected terminal state to be stable, got %+v", after)
	}
}

func TestDjinnDemotesOnlySetEntries(t *testing.T) {
	room, _ := newTestRoom(t, "a")
	room.ApplyInput("a", DjinnInput{ID: "forge"})
	room.ApplyInput("a", DjinnInput{ID: "forge"})
	room.ApplyInput("a", DjinnInput{ID: "unknown"})
	player, _ := room.Player("a")
	want := []DjinnState{DjinnSet, DjinnStandby, DjinnSet}
	for i, slot := range player.Djinn {
		if slot.State != want[i] {
			t.Fatalf("unexpected djinn state at %d: got %s want %s", i, slot.State, want[i])
		}
	}
}

func TestSummonRequiresEnoughStandby(t *testing.T) {
	room, _ := newTestRoom(t, "a")

	room.ApplyInput("a", SummonInput{ID: "s1"})
	player, _ := room.Player("a")
	if player.StatPenaltyTicks != 0 {
		t.Fatalf("expected summon without standby djinn to fail")
	}

	room.ApplyInput("a", DjinnInput{ID: "flint"})
	room.ApplyInput("a", DjinnInput{ID: "gust"})
	room.ApplyInput("a", SummonInput{ID: "s3"})
	player, _ = room.Player("a")
	if player.StatPenaltyTicks != 0 || player.standbyCount() != 2 {
		t.Fatalf("expected cost-3 summon to fail with 2 standby, got %+v", player)
	}

	room.ApplyInput("a", SummonInput{ID: "s1"})
	player, _ = room.Player("a")
	if player.StatPenaltyTicks != SummonPenaltyTicks {
		t.Fatalf("expected penalty window %d, got %d", SummonPenaltyTicks, player.StatPenaltyTicks)
	}
	want := []DjinnState{DjinnSet, DjinnSet, DjinnStandby}
	for i, slot := range player.Djinn {
		if slot.State != want[i] {
			t.Fatalf("expected first standby djinn restored only, slot %d got %s want %s", i, slot.State, want[i])
		}
	}
	traces := room.Snapshot().Traces
	if traces[len(traces)-1].Summon != "Venus" {
		t.Fatalf("expected summon trace, got %+v", traces[len(traces)-1])
	}

	room.Step()
	player, _ = room.Player("a")
	if player.StatPenaltyTicks != SummonPenaltyTicks-1 {
		t.Fatalf("expected penalty countdown, got %d", player.StatPenaltyTicks)
	}

	room.ApplyInput("a", SummonInput{ID: "missing"})
	if p, _ := room.Player("a"); p.standbyCount() != 1 {
		t.Fatalf("expected unknown summon to change nothing")
	}
}

func TestBossChargeRequiredTracksParticipants(t *testing.T) {
	cases := []struct {
		players int
		ghosts  int
		want    int
	}{
		{players: 1, want: 1},
		{players: 2, want: 1},
		{players: 3, want: 2},
		{players: 2, ghosts: 3, want: 3},
		{players: 5, ghosts: 5, want: 4},
		{players: 0, ghosts: 1, want: 1},
	}
	for _, tc := range cases {
		ids := make([]string, 0, tc.players+tc.ghosts)
		for i := 0; i < tc.players+tc.ghosts; i++ {
			ids = append(ids, string(rune('a'+i)))
		}
		room, _ := newTestRoom(t, ids...)
		for _, id := range ids[:tc.ghosts] {
			room.Ghost(id)
		}
		room.Step()
		if got := room.Snapshot().BossChargeRequired; got != tc.want {
			t.Fatalf("players=%d ghosts=%d: expected %d, got %d", tc.players, tc.ghosts, tc.want, got)
		}
	}
}

func TestGhostConversionIsExclusive(t *testing.T) {
	room, _ := newTestRoom(t, "a", "b")
	before, _ := room.Player("a")
	if !room.Ghost("a") {
		t.Fatalf("expected ghost conversion to succeed")
	}
	if room.Ghost("a") {
		t.Fatalf("expected second conversion to fail")
	}
	if room.HasPlayer("a") || !room.HasGhost("a") {
		t.Fatalf("expected a to be a ghost only")
	}
	snap := room.Snapshot()
	if len(snap.Players) != 1 || len(snap.Ghosts) != 1 {
		t.Fatalf("expected one player and one ghost, got %d/%d", len(snap.Players), len(snap.Ghosts))
	}
	ghost := snap.Ghosts[0]
	if ghost.ID != "a" || ghost.X != before.X || ghost.Y != before.Y || ghost.Name != "name-a (ghost)" || ghost.AI != GhostAI {
		t.Fatalf("unexpected ghost: %+v", ghost)
	}
	if room.ApplyInput("a", ContributeInput{}) {
		t.Fatalf("expected input from ghosted id to be dropped")
	}
	if len(room.Snapshot().InputLog) != 0 {
		t.Fatalf("expected dropped input not to be logged")
	}
}

func TestGhostDriftsTowardFirstPlayer(t *testing.T) {
	room, _ := newTestRoom(t, "a", "b")
	room.Ghost("b")
	anchor, _ := room.Player("a")
	ghost := room.Snapshot().Ghosts[0]
	room.Step()
	moved := room.Snapshot().Ghosts[0]
	wantX := ghost.X + sign(anchor.X-ghost.X)*GhostDriftStep
	wantY := ghost.Y + sign(anchor.Y-ghost.Y)*GhostDriftStep
	if math.Abs(moved.X-wantX) > 1e-9 || math.Abs(moved.Y-wantY) > 1e-9 {
		t.Fatalf("expected ghost drift to (%v,%v), got (%v,%v)", wantX, wantY, moved.X, moved.Y)
	}

	room.Ghost("a")
	stuck := room.Snapshot().Ghosts[0]
	room.Step()
	if after := room.Snapshot().Ghosts[0]; after.X != stuck.X || after.Y != stuck.Y {
		t.Fatalf("expected ghosts to hold position without live players")
	}
}

func TestPauseActionsResetInPlace(t *testing.T) {
	room, pub := newTestRoom(t, "a")
	enterBossRoom(t, room, "a")
	room.ApplyInput("a", ContributeInput{})
	room.RestartRoom("a")
	snap := room.Snapshot()
	if snap.RoomIndex != BossRoomIndex || snap.BossCharge != 0 {
		t.Fatalf("expected restart-room to clear boss charge only, got %+v", snap)
	}

	room.Step()
	room.AbandonRun("a")
	snap = room.Snapshot()
	if snap.RoomIndex != 0 || snap.ObjectiveRequired != 2 || snap.BossHP != BossMaxHP || snap.BossPhase != 0 {
		t.Fatalf("expected abandon-run to rewind counters, got %+v", snap)
	}
	if len(snap.Players) != 1 || snap.Tick != 1 {
		t.Fatalf("expected players and tick to survive abandon-run, got %+v", snap)
	}
	resets := 0
	for _, event := range pub.events {
		if event.Type == loggingSimulation.EventRunReset {
			resets++
		}
	}
	if resets != 2 {
		t.Fatalf("expected 2 run reset events, got %d", resets)
	}
}

func TestSnapshotWindowsAndIsolation(t *testing.T) {
	room, _ := newTestRoom(t, "a")
	for i := 0; i < InputWindow+10; i++ {
		room.ApplyInput("a", VerbInput{Verb: "tether"})
	}
	snap := room.Snapshot()
	if len(snap.Traces) != TraceWindow {
		t.Fatalf("expected %d traces, got %d", TraceWindow, len(snap.Traces))
	}
	if len(snap.InputLog) != InputWindow {
		t.Fatalf("expected %d input records, got %d", InputWindow, len(snap.InputLog))
	}
	snap.Players[0].Djinn[0].State = DjinnStandby
	if player, _ := room.Player("a"); player.Djinn[0].State != DjinnSet {
		t.Fatalf("expected snapshot mutation not to leak into room state")
	}
}

func TestRoomPublishesThroughMemorySink(t *testing.T) {
	sink := sinks.NewMemorySink()
	router, err := logging.NewRouter(nil, logging.Config{BufferSize: 16, MinimumSeverity: logging.SeverityDebug}, []logging.NamedSink{{Name: "memory", Sink: sink}})
	if err != nil {
		t.Fatalf("failed to construct router: %v", err)
	}
	room := NewRoom(Settings{Code: "ZZZZZ", DungeonID: "d1"}, Deps{Content: content.New(testCatalog()), Publisher: router})
	room.Begin([]Recruit{{ID: "a"}})
	room.ApplyInput("a", ContributeInput{})
	room.ApplyInput("a", ContributeInput{})
	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("failed to close router: %v", err)
	}
	events := sink.Events()
	if len(events) != 1 || events[0].Type != loggingSimulation.EventRoomAdvanced {
		t.Fatalf("expected one room advanced event, got %+v", events)
	}
	if events[0].Extra["lobby"] != "ZZZZZ" {
		t.Fatalf("expected lobby code in event extras, got %+v", events[0].Extra)
	}
}
