package game

import (
	"time"
)

// EnemySnapshot is an immutable copy of one enemy.
type EnemySnapshot struct {
	ID        string  `json:"id"`
	Archetype string  `json:"archetype,omitempty"`
	Behavior  string  `json:"behavior,omitempty"`
	Position  Vec2    `json:"position"`
	Health    float64 `json:"health"`
	MaxHealth float64 `json:"maxHealth"`
}

// RewardOffer is the set of rewards waiting for the player's choice.
type RewardOffer struct {
	Wave       int               `json:"wave"`
	Candidates []RewardCandidate `json:"candidates"`
}

// Outcome describes a finished encounter.
type Outcome struct {
	Won          bool       `json:"won"`
	Reason       FailReason `json:"reason,omitempty"`
	Wave         int        `json:"wave"`
	WavesCleared int        `json:"wavesCleared"`
	TotalKills   int        `json:"totalKills"`
	Elapsed      float64    `json:"elapsed"`
}

// Snapshot is an immutable view of the session, produced once per tick.
// Readers may hold on to it; nothing inside is shared with the live simulation.
type Snapshot struct {
	Sequence    uint64          `json:"sequence"`
	Timestamp   time.Time       `json:"timestamp"`
	TickNumber  uint64          `json:"tickNumber"`
	Elapsed     float64         `json:"elapsed"`
	Wave        WaveState       `json:"wave"`
	Hero        HeroState       `json:"hero"`
	Enemies     []EnemySnapshot `json:"enemies"`
	Projectiles []Projectile    `json:"projectiles"`
	Offer       *RewardOffer    `json:"offer,omitempty"`
	Outcome     *Outcome        `json:"outcome,omitempty"`
	Spawned     int             `json:"spawned"`
	TotalKills  int             `json:"totalKills"`
}

// buildSnapshot copies session state. Caller holds the session lock.
func (s *Session) buildSnapshot() *Snapshot {
	s.snapSeq++
	snap := &Snapshot{
		Sequence:    s.snapSeq,
		Timestamp:   time.Now(),
		TickNumber:  s.tickNum,
		Elapsed:     s.waves.Elapsed(),
		Wave:        s.waves.State(),
		Hero:        s.hero.State(),
		Enemies:     make([]EnemySnapshot, 0, s.registry.Len()),
		Projectiles: s.projectiles.Snapshot(),
		Spawned:     s.director.Spawned(),
		TotalKills:  s.waves.TotalKills(),
	}

	s.registry.Each(func(h EnemyHandle) bool {
		if !h.Alive() {
			return true
		}
		es := EnemySnapshot{
			ID:        h.ID(),
			Position:  h.Position(),
			Health:    h.Health(),
			MaxHealth: h.MaxHealth(),
		}
		if c, ok := h.(*Combatant); ok {
			es.Archetype = c.Archetype()
			es.Behavior = c.Kind().String()
		}
		snap.Enemies = append(snap.Enemies, es)
		return true
	})

	if s.offer != nil {
		offer := RewardOffer{Wave: s.offer.Wave, Candidates: append([]RewardCandidate(nil), s.offer.Candidates...)}
		snap.Offer = &offer
	}
	if s.outcome != nil {
		outcome := *s.outcome
		snap.Outcome = &outcome
	}
	return snap
}
