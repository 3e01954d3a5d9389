package game

import (
	"math"

	"wave-arena/internal/config"
)

// HeroID identifies the player avatar in events and cooldown keys.
const HeroID = "hero"

// PlayerHealthSource is read by the wave controller each tick.
type PlayerHealthSource interface {
	Health() float64
}

// Hero is the player avatar. It fights on its own: it keeps a nearest-enemy
// target, swings when the target is in reach and unleashes its special when
// energy is full. External commands only steer where it walks.
type Hero struct {
	pos       Vec2
	spawn     Vec2
	health    float64
	maxHealth float64
	energy    float64
	maxEnergy float64
	alive     bool

	healthRegen   float64
	energyRegen   float64
	moveSpeed     float64
	attackDamage  float64
	attackRange   float64
	specialDamage float64
	specialRadius float64
	energyPerHit  float64

	moveTarget    Vec2
	hasMoveTarget bool

	targeter *Targeter
	actions  ActionController

	lifecycle EncounterLifecycle

	hits     int
	specials int
}

// NewHero creates a hero at the configured spawn point.
func NewHero(cfg config.HeroConfig, combat config.CombatConfig, resolver *CombatResolver) *Hero {
	h := &Hero{
		targeter: NewTargeter(resolver, combat.RetargetInterval, combat.SearchRadius),
	}
	h.Reset(cfg)
	return h
}

// SetLifecycle sets who is told when the hero dies.
func (h *Hero) SetLifecycle(l EncounterLifecycle) {
	h.lifecycle = l
}

// Reset restores base stats, full health and the spawn position.
func (h *Hero) Reset(cfg config.HeroConfig) {
	h.spawn = Vec2{cfg.X, cfg.Y}
	h.pos = h.spawn
	h.maxHealth = math.Max(1, cfg.MaxHealth)
	h.health = h.maxHealth
	h.maxEnergy = math.Max(0, cfg.MaxEnergy)
	h.energy = 0
	h.alive = true

	h.healthRegen = cfg.HealthRegen
	h.energyRegen = cfg.EnergyRegen
	h.moveSpeed = cfg.MoveSpeed
	h.attackDamage = cfg.AttackDamage
	h.attackRange = cfg.AttackRange
	h.specialDamage = cfg.SpecialDamage
	h.specialRadius = cfg.SpecialRadius
	h.energyPerHit = cfg.EnergyPerHit

	h.actions = ActionController{
		NormalCooldown:  math.Max(config.MinInterval, cfg.AttackCooldown),
		SpecialCost:     cfg.SpecialCost,
		SpecialDuration: cfg.SpecialDuration,
	}
	h.hasMoveTarget = false
	h.targeter.Clear()
	h.hits = 0
	h.specials = 0
}

// ConfigureTargeting applies new retarget settings without touching stats.
func (h *Hero) ConfigureTargeting(combat config.CombatConfig) {
	h.targeter.Configure(combat.RetargetInterval, combat.SearchRadius)
}

func (h *Hero) ID() string          { return HeroID }
func (h *Hero) Position() Vec2      { return h.pos }
func (h *Hero) Alive() bool         { return h.alive }
func (h *Hero) Health() float64     { return h.health }
func (h *Hero) MaxHealth() float64  { return h.maxHealth }
func (h *Hero) Energy() float64     { return h.energy }
func (h *Hero) Target() EnemyHandle { return h.targeter.Target() }

// TakeDamage clamps health at zero. The killing call notifies the lifecycle.
func (h *Hero) TakeDamage(amount float64) bool {
	if !h.alive || amount <= 0 {
		return false
	}
	h.health -= amount
	if h.health > 0 {
		return false
	}
	h.health = 0
	h.alive = false
	h.actions.Reset()
	h.hasMoveTarget = false
	if h.lifecycle != nil {
		h.lifecycle.OnPlayerDeath()
	}
	return true
}

// Heal restores health up to max. Dead heroes stay dead.
func (h *Hero) Heal(amount float64) {
	if !h.alive || amount <= 0 {
		return
	}
	h.health = math.Min(h.maxHealth, h.health+amount)
}

// MoveTo makes the hero walk to p instead of chasing its target.
func (h *Hero) MoveTo(p Vec2) {
	h.moveTarget = p
	h.hasMoveTarget = true
}

// StopMoving hands movement back to target chasing.
func (h *Hero) StopMoving() {
	h.hasMoveTarget = false
}

// Update runs one step of regeneration, movement, targeting and attacks.
func (h *Hero) Update(dt float64, resolver *CombatResolver) {
	if !h.alive {
		return
	}

	h.Heal(h.healthRegen * dt)
	h.gainEnergy(h.energyRegen * dt)

	target := h.targeter.Update(dt, h.pos)
	h.move(dt, target)

	h.actions.Advance(dt)
	inReach := target != nil && h.pos.Dist(target.Position()) <= h.attackRange

	switch h.actions.Decide(h.energy, target != nil, inReach) {
	case ActionSpecial:
		h.energy = 0
		h.specials++
		resolver.StrikeArea(h, h.pos, h.specialRadius, h.specialDamage)
	case ActionNormal:
		if applied, _ := resolver.Strike(h, target, h.attackDamage); applied {
			h.hits++
			h.gainEnergy(h.energyPerHit)
		}
	}
}

func (h *Hero) move(dt float64, target EnemyHandle) {
	step := h.moveSpeed * dt
	if step <= 0 {
		return
	}
	if h.hasMoveTarget {
		h.pos = h.pos.MoveTowards(h.moveTarget, step)
		if h.pos == h.moveTarget {
			h.hasMoveTarget = false
		}
		return
	}
	if target == nil {
		return
	}
	// close in until the target is just inside reach
	dist := h.pos.Dist(target.Position())
	if gap := dist - h.attackRange*0.9; gap > 0 {
		h.pos = h.pos.MoveTowards(target.Position(), math.Min(step, gap))
	}
}

func (h *Hero) gainEnergy(amount float64) {
	if amount <= 0 {
		return
	}
	h.energy = math.Min(h.maxEnergy, h.energy+amount)
}

// Apply implements RewardApplier. Placeholders apply nothing.
func (h *Hero) Apply(c RewardCandidate) {
	switch c.Kind {
	case RewardAttackPower:
		h.attackDamage = math.Max(1, h.attackDamage+c.Magnitude)
	case RewardAttackSpeed:
		h.actions.NormalCooldown = math.Max(config.MinInterval, h.actions.NormalCooldown*(1-c.Magnitude))
	case RewardMovementSpeed:
		h.moveSpeed = math.Max(0, h.moveSpeed*(1+c.Magnitude))
	case RewardMaxHP:
		h.maxHealth = math.Max(1, h.maxHealth+c.Magnitude)
		h.health = math.Min(h.maxHealth, math.Max(h.health+c.Magnitude, 0))
	case RewardHPRegen:
		h.healthRegen += c.Magnitude
	case RewardEnergyRegen:
		h.energyRegen += c.Magnitude
	}
}

// HeroState is a read-only copy of the hero for snapshots.
type HeroState struct {
	Position       Vec2        `json:"position"`
	Health         float64     `json:"health"`
	MaxHealth      float64     `json:"maxHealth"`
	Energy         float64     `json:"energy"`
	MaxEnergy      float64     `json:"maxEnergy"`
	Alive          bool        `json:"alive"`
	AttackDamage   float64     `json:"attackDamage"`
	AttackCooldown float64     `json:"attackCooldown"`
	MoveSpeed      float64     `json:"moveSpeed"`
	HealthRegen    float64     `json:"healthRegen"`
	EnergyRegen    float64     `json:"energyRegen"`
	TargetID       string      `json:"targetId,omitempty"`
	Action         ActionTimer `json:"action"`
	Hits           int         `json:"hits"`
	Specials       int         `json:"specials"`
}

// State returns a copy of the hero's current stats.
func (h *Hero) State() HeroState {
	s := HeroState{
		Position:       h.pos,
		Health:         h.health,
		MaxHealth:      h.maxHealth,
		Energy:         h.energy,
		MaxEnergy:      h.maxEnergy,
		Alive:          h.alive,
		AttackDamage:   h.attackDamage,
		AttackCooldown: h.actions.NormalCooldown,
		MoveSpeed:      h.moveSpeed,
		HealthRegen:    h.healthRegen,
		EnergyRegen:    h.energyRegen,
		Action:         h.actions.Current(),
		Hits:           h.hits,
		Specials:       h.specials,
	}
	if t := h.targeter.Target(); t != nil && t.Alive() {
		s.TargetID = t.ID()
	}
	return s
}
