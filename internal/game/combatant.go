package game

import (
	"math"

	"wave-arena/internal/config"
)

// Damageable is anything the combat resolver can hurt.
type Damageable interface {
	ID() string
	Alive() bool
	Position() Vec2
	// TakeDamage reduces health and reports whether this call killed the target.
	TakeDamage(amount float64) bool
}

// EnemyHandle is a spawned enemy as seen by the wave controller and resolver.
type EnemyHandle interface {
	Damageable
	Health() float64
	MaxHealth() float64
	// ScaleMaxHealth multiplies max health and refills current health.
	ScaleMaxHealth(mult float64)
	// Destroy removes the enemy without a kill being credited.
	Destroy()
}

// BehaviorKind selects an enemy's per-tick strategy.
type BehaviorKind uint8

const (
	BehaviorContact BehaviorKind = iota // chase and deal contact damage
	BehaviorRanged                      // keep distance and shoot
)

func (k BehaviorKind) String() string {
	switch k {
	case BehaviorContact:
		return "contact"
	case BehaviorRanged:
		return "ranged"
	default:
		return "unknown"
	}
}

// ParseBehavior maps a config name to a kind, defaulting to contact.
func ParseBehavior(s string) BehaviorKind {
	if s == "ranged" {
		return BehaviorRanged
	}
	return BehaviorContact
}

// Combatant is the single enemy representation. Melee and ranged enemies differ
// only in Kind and the stats that kind reads.
type Combatant struct {
	id        string
	archetype string
	kind      BehaviorKind
	pos       Vec2
	health    float64
	maxHealth float64
	alive     bool
	destroyed bool

	speed float64

	// contact
	contactDamage float64
	contactRange  float64

	// ranged
	attackRange      float64
	minDistance      float64
	attackCooldown   float64
	cooldownLeft     float64
	projectileSpeed  float64
	projectileDamage float64
	projectileLife   float64
}

// NewCombatant creates a live enemy from an archetype at pos.
func NewCombatant(id string, a config.EnemyArchetype, pos Vec2) *Combatant {
	hp := math.Max(1, a.Health)
	return &Combatant{
		id:               id,
		archetype:        a.Name,
		kind:             ParseBehavior(a.Behavior),
		pos:              pos,
		health:           hp,
		maxHealth:        hp,
		alive:            true,
		speed:            a.Speed,
		contactDamage:    a.ContactDamage,
		contactRange:     a.ContactRange,
		attackRange:      a.AttackRange,
		minDistance:      a.MinDistance,
		attackCooldown:   a.AttackCooldown,
		projectileSpeed:  a.ProjectileSpeed,
		projectileDamage: a.ProjectileDmg,
		projectileLife:   a.ProjectileLife,
	}
}

func (c *Combatant) ID() string             { return c.id }
func (c *Combatant) Archetype() string      { return c.archetype }
func (c *Combatant) Kind() BehaviorKind     { return c.kind }
func (c *Combatant) Position() Vec2         { return c.pos }
func (c *Combatant) Health() float64        { return c.health }
func (c *Combatant) MaxHealth() float64     { return c.maxHealth }
func (c *Combatant) Alive() bool            { return c.alive && !c.destroyed }
func (c *Combatant) SetPosition(p Vec2)     { c.pos = p }
func (c *Combatant) Destroyed() bool        { return c.destroyed }
func (c *Combatant) ContactDamage() float64 { return c.contactDamage }

// TakeDamage clamps health at zero. Only the call that crosses zero returns true.
func (c *Combatant) TakeDamage(amount float64) bool {
	if !c.Alive() || amount <= 0 {
		return false
	}
	c.health -= amount
	if c.health > 0 {
		return false
	}
	c.health = 0
	c.alive = false
	return true
}

// ScaleMaxHealth sets max health to max(1, ceil(max*mult)) and refills.
func (c *Combatant) ScaleMaxHealth(mult float64) {
	c.maxHealth = math.Max(1, math.Ceil(c.maxHealth*math.Max(0.01, mult)))
	c.health = c.maxHealth
}

func (c *Combatant) Destroy() {
	c.destroyed = true
}
