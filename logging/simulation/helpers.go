package simulation

import (
	"context"

	"silver-moon/server/logging"
)

const (
	// EventRoomAdvanced is emitted when a party clears a room objective.
	EventRoomAdvanced logging.EventType = "simulation.room_advanced"
	// EventBossHit is emitted when a spotlight verb lands on a charged boss.
	EventBossHit logging.EventType = "simulation.boss_hit"
	// EventBossPhaseAdvanced is emitted when the boss enters its second phase.
	EventBossPhaseAdvanced logging.EventType = "simulation.boss_phase_advanced"
	// EventSummonCast is emitted when a player spends standby djinn on a summon.
	EventSummonCast logging.EventType = "simulation.summon_cast"
	// EventRunReset is emitted when a pause action rewinds run progress.
	EventRunReset logging.EventType = "simulation.run_reset"
)

// RoomAdvancedPayload captures the room transition.
type RoomAdvancedPayload struct {
	From     int `json:"from"`
	To       int `json:"to"`
	Required int `json:"required"`
}

// BossHitPayload captures boss state after a hit.
type BossHitPayload struct {
	Verb  string `json:"verb"`
	HP    int    `json:"hp"`
	Phase int    `json:"phase"`
}

// BossPhasePayload captures the phase the boss entered.
type BossPhasePayload struct {
	Phase int `json:"phase"`
}

// SummonPayload captures the summon spent.
type SummonPayload struct {
	SummonID string `json:"summonId"`
	Name     string `json:"name"`
	Cost     int    `json:"cost"`
}

// RunResetPayload captures which pause action reset progress.
type RunResetPayload struct {
	Action string `json:"action"`
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, severity logging.Severity, tick uint64, actor logging.EntityRef, payload any, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    actor,
		Severity: severity,
		Category: logging.CategorySimulation,
		Payload:  payload,
		Extra:    extra,
	})
}

// RoomAdvanced publishes a room transition.
func RoomAdvanced(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload RoomAdvancedPayload, extra map[string]any) {
	publish(ctx, pub, EventRoomAdvanced, logging.SeverityInfo, tick, actor, payload, extra)
}

// BossHit publishes a landed boss hit.
func BossHit(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload BossHitPayload, extra map[string]any) {
	publish(ctx, pub, EventBossHit, logging.SeverityInfo, tick, actor, payload, extra)
}

// BossPhaseAdvanced publishes a boss phase change.
func BossPhaseAdvanced(ctx context.Context, pub logging.Publisher, tick uint64, payload BossPhasePayload, extra map[string]any) {
	publish(ctx, pub, EventBossPhaseAdvanced, logging.SeverityInfo, tick, logging.EntityRef{Kind: logging.EntityKindWorld}, payload, extra)
}

// SummonCast publishes a successful summon.
func SummonCast(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SummonPayload, extra map[string]any) {
	publish(ctx, pub, EventSummonCast, logging.SeverityDebug, tick, actor, payload, extra)
}

// RunReset publishes a pause-driven progress reset.
func RunReset(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload RunResetPayload, extra map[string]any) {
	publish(ctx, pub, EventRunReset, logging.SeverityInfo, tick, actor, payload, extra)
}
