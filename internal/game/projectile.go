package game

import (
	"fmt"
)

// Projectile is a shot travelling in a straight line until it hits the hero or expires.
type Projectile struct {
	ID       string  `json:"id"`
	OwnerID  string  `json:"ownerId"`
	Position Vec2    `json:"position"`
	Velocity Vec2    `json:"velocity"`
	Damage   float64 `json:"damage"`
	Life     float64 `json:"life"` // seconds left

	owner Damageable
}

// Projectile system constants
const (
	MaxProjectiles   = 128 // Hard cap; further shots are dropped
	ProjectileRadius = 0.25
	HeroRadius       = 0.5
)

// ProjectileSystem owns every live projectile.
type ProjectileSystem struct {
	list   []*Projectile
	nextID uint64
	capped uint64
}

// NewProjectileSystem creates an empty projectile system.
func NewProjectileSystem() *ProjectileSystem {
	return &ProjectileSystem{list: make([]*Projectile, 0, MaxProjectiles)}
}

// Fire launches a projectile from owner toward target. Returns nil when capped
// or when there is no direction to fire in.
func (ps *ProjectileSystem) Fire(owner Damageable, target Vec2, speed, damage, life float64) *Projectile {
	if len(ps.list) >= MaxProjectiles {
		ps.capped++
		return nil
	}
	from := owner.Position()
	dir := target.Sub(from).Normalize()
	if dir == (Vec2{}) || speed <= 0 || life <= 0 {
		return nil
	}

	ps.nextID++
	p := &Projectile{
		ID:       fmt.Sprintf("proj-%d", ps.nextID),
		OwnerID:  owner.ID(),
		Position: from,
		Velocity: dir.Scale(speed),
		Damage:   damage,
		Life:     life,
		owner:    owner,
	}
	ps.list = append(ps.list, p)
	return p
}

// Update moves projectiles, strikes the target on contact and drops spent ones.
// Returns how many hit.
func (ps *ProjectileSystem) Update(dt float64, target Damageable, resolver *CombatResolver) int {
	hits := 0
	kept := ps.list[:0]
	for _, p := range ps.list {
		p.Position = p.Position.Add(p.Velocity.Scale(dt))
		p.Life -= dt

		if target != nil && target.Alive() && p.Position.Dist(target.Position()) <= ProjectileRadius+HeroRadius {
			if applied, _ := resolver.Strike(p.owner, target, p.Damage); applied {
				hits++
			}
			continue
		}
		if p.Life <= 0 {
			continue
		}
		kept = append(kept, p)
	}
	clear(ps.list[len(kept):])
	ps.list = kept
	return hits
}

// Len returns the number of live projectiles.
func (ps *ProjectileSystem) Len() int { return len(ps.list) }

// Snapshot returns copies of the live projectiles.
func (ps *ProjectileSystem) Snapshot() []Projectile {
	out := make([]Projectile, len(ps.list))
	for i, p := range ps.list {
		out[i] = *p
		out[i].owner = nil
	}
	return out
}

// Clear removes every projectile.
func (ps *ProjectileSystem) Clear() {
	clear(ps.list)
	ps.list = ps.list[:0]
}
