package game

import (
	"math"

	"wave-arena/internal/config"
)

// contactKey identifies a contact cooldown. defender is empty when cooldowns are
// tracked per attacker.
type contactKey struct {
	attacker string
	defender string
}

// cooldownPruneInterval is how often expired contact cooldowns are forgotten.
const cooldownPruneInterval = 1.0

// CombatResolver finds targets and applies damage. Contact damage is rate
// limited through ContactCooldown entries; direct strikes are not.
// Time is the resolver's own simulation clock, advanced by the session each tick.
type CombatResolver struct {
	registry *Registry
	bus      *EventBus

	contactInterval float64
	scope           string

	now         float64
	lastPrune   float64
	nextAllowed map[contactKey]float64

	// OnKill is called once per enemy death, after the EnemyKilled event.
	OnKill func(victim EnemyHandle, killerID string)

	kills int
}

// NewCombatResolver creates a resolver scanning registry and publishing on bus.
func NewCombatResolver(cfg config.CombatConfig, registry *Registry, bus *EventBus) *CombatResolver {
	r := &CombatResolver{
		registry:    registry,
		bus:         bus,
		nextAllowed: make(map[contactKey]float64),
	}
	r.Configure(cfg)
	return r
}

// Configure swaps the contact settings. Existing cooldowns keep their deadlines.
func (r *CombatResolver) Configure(cfg config.CombatConfig) {
	r.contactInterval = math.Max(config.MinInterval, cfg.ContactInterval)
	r.scope = cfg.ContactScope
}

// Advance moves the resolver clock forward.
func (r *CombatResolver) Advance(dt float64) {
	if dt <= 0 {
		return
	}
	r.now += dt
	if r.now-r.lastPrune >= cooldownPruneInterval {
		r.lastPrune = r.now
		for k, next := range r.nextAllowed {
			if next <= r.now {
				delete(r.nextAllowed, k)
			}
		}
	}
}

// Now returns the resolver clock in seconds.
func (r *CombatResolver) Now() float64 { return r.now }

// Kills returns the number of enemy deaths resolved since the last Reset.
func (r *CombatResolver) Kills() int { return r.kills }

// Reset clears every cooldown and rewinds the clock.
func (r *CombatResolver) Reset() {
	r.now = 0
	r.lastPrune = 0
	r.kills = 0
	clear(r.nextAllowed)
}

// Forget drops every cooldown involving id.
func (r *CombatResolver) Forget(id string) {
	for k := range r.nextAllowed {
		if k.attacker == id || k.defender == id {
			delete(r.nextAllowed, k)
		}
	}
}

// FindNearest returns the closest live enemy within radius of origin, or nil.
// Ties go to the first enemy in registry order.
func (r *CombatResolver) FindNearest(origin Vec2, radius float64) EnemyHandle {
	if r.registry == nil {
		return nil
	}

	var best EnemyHandle
	bestDist := math.Inf(1)
	r.registry.Each(func(h EnemyHandle) bool {
		if !h.Alive() {
			return true
		}
		d := origin.Dist(h.Position())
		if d <= radius && d < bestDist {
			best = h
			bestDist = d
		}
		return true
	})
	return best
}

// CanContact reports whether attacker may deal contact damage to defender now.
func (r *CombatResolver) CanContact(attacker, defender Damageable) bool {
	return r.now >= r.nextAllowed[r.key(attacker, defender)]
}

// ApplyDamage deals contact damage, at most once per contact interval for the
// pair (or for the attacker, under attacker scope). Calls inside the interval
// are silent no-ops. A dead defender consumes no cooldown.
func (r *CombatResolver) ApplyDamage(attacker, defender Damageable, amount float64) (applied, died bool) {
	if defender == nil || !defender.Alive() {
		return false, false
	}

	key := r.key(attacker, defender)
	if r.now < r.nextAllowed[key] {
		return false, false
	}
	r.nextAllowed[key] = r.now + r.contactInterval

	return true, r.land(attacker, defender, amount)
}

// Strike deals damage with no contact cooldown. Used for weapon swings and projectiles.
func (r *CombatResolver) Strike(attacker, defender Damageable, amount float64) (applied, died bool) {
	if defender == nil || !defender.Alive() {
		return false, false
	}
	return true, r.land(attacker, defender, amount)
}

// StrikeArea strikes every live enemy within radius of center and returns how many were hit.
func (r *CombatResolver) StrikeArea(attacker Damageable, center Vec2, radius, amount float64) int {
	if r.registry == nil {
		return 0
	}

	// collect first: a kill may trigger subscribers that touch the registry
	var victims []EnemyHandle
	r.registry.Each(func(h EnemyHandle) bool {
		if h.Alive() && center.Dist(h.Position()) <= radius {
			victims = append(victims, h)
		}
		return true
	})

	hits := 0
	for _, v := range victims {
		if applied, _ := r.Strike(attacker, v, amount); applied {
			hits++
		}
	}
	return hits
}

func (r *CombatResolver) key(attacker, defender Damageable) contactKey {
	k := contactKey{attacker: idOf(attacker)}
	if r.scope != config.ContactScopeAttacker {
		k.defender = idOf(defender)
	}
	return k
}

func (r *CombatResolver) land(attacker, defender Damageable, amount float64) bool {
	died := defender.TakeDamage(amount)
	attackerID := idOf(attacker)

	r.publish(EventTypeDamage, attackerID, DamagePayload{
		AttackerID: attackerID,
		DefenderID: defender.ID(),
		Amount:     amount,
		Died:       died,
	})

	if !died {
		return false
	}
	if enemy, ok := defender.(EnemyHandle); ok {
		r.kills++
		r.Forget(enemy.ID())
		r.publish(EventTypeEnemyKilled, "combat", EnemyKilledPayload{
			EnemyID:  enemy.ID(),
			KillerID: attackerID,
		})
		if r.OnKill != nil {
			r.OnKill(enemy, attackerID)
		}
	}
	return true
}

func (r *CombatResolver) publish(t EventType, source string, payload any) {
	if r.bus != nil {
		r.bus.Publish(t, source, payload)
	}
}

func idOf(d Damageable) string {
	if d == nil {
		return ""
	}
	return d.ID()
}
