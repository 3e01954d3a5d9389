package game

import "math"

// Targeter caches an attacker's nearest enemy. The cache is refreshed when the
// retarget interval elapses, or right away when the target dies or leaves the radius.
// Apart from the first scan after creation or Clear, having no target never
// forces an early scan.
type Targeter struct {
	resolver *CombatResolver
	interval float64
	radius   float64

	elapsed  float64
	current  EnemyHandle
	searches int
	primed   bool
}

// NewTargeter creates a targeter refreshing every interval seconds within radius.
func NewTargeter(resolver *CombatResolver, interval, radius float64) *Targeter {
	t := &Targeter{resolver: resolver}
	t.Configure(interval, radius)
	return t
}

// Configure changes the cadence and search radius.
func (t *Targeter) Configure(interval, radius float64) {
	t.interval = math.Max(0.01, interval)
	t.radius = math.Max(0, radius)
}

// Update advances the cadence timer and returns the current target, which may be nil.
func (t *Targeter) Update(dt float64, origin Vec2) EnemyHandle {
	t.elapsed += dt
	if t.elapsed >= t.interval {
		t.elapsed = 0
		t.refresh(origin)
	} else if !t.primed || (t.current != nil && !t.valid(origin)) {
		t.refresh(origin)
	}
	return t.current
}

// Target returns the cached target without refreshing.
func (t *Targeter) Target() EnemyHandle { return t.current }

// Searches returns how many registry scans have run. Useful to check the cadence.
func (t *Targeter) Searches() int { return t.searches }

// Clear drops the cached target and restarts the cadence.
func (t *Targeter) Clear() {
	t.current = nil
	t.elapsed = 0
	t.primed = false
}

func (t *Targeter) valid(origin Vec2) bool {
	if t.current == nil || !t.current.Alive() {
		return false
	}
	return origin.Dist(t.current.Position()) <= t.radius
}

func (t *Targeter) refresh(origin Vec2) {
	t.searches++
	t.primed = true
	t.current = t.resolver.FindNearest(origin, t.radius)
}
