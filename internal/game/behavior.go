package game

// behaviorEnv is what an enemy strategy may touch during its step.
type behaviorEnv struct {
	hero        *Hero
	resolver    *CombatResolver
	projectiles *ProjectileSystem
}

// behaviorFunc advances one enemy by dt.
type behaviorFunc func(c *Combatant, env *behaviorEnv, dt float64)

// behaviors is the strategy table keyed by BehaviorKind.
var behaviors = map[BehaviorKind]behaviorFunc{
	BehaviorContact: contactBehavior,
	BehaviorRanged:  rangedBehavior,
}

// stepEnemy dispatches c to its strategy. Unknown kinds stand still.
func stepEnemy(c *Combatant, env *behaviorEnv, dt float64) {
	if !c.Alive() || env.hero == nil || !env.hero.Alive() {
		return
	}
	if fn, ok := behaviors[c.kind]; ok {
		fn(c, env, dt)
	}
}

// contactBehavior chases the hero and deals contact damage while touching it.
// The resolver's contact cooldown paces the damage.
func contactBehavior(c *Combatant, env *behaviorEnv, dt float64) {
	heroPos := env.hero.Position()
	dist := c.pos.Dist(heroPos)

	if dist > c.contactRange {
		c.pos = c.pos.MoveTowards(heroPos, c.speed*dt)
		dist = c.pos.Dist(heroPos)
	}
	if dist <= c.contactRange {
		env.resolver.ApplyDamage(c, env.hero, c.contactDamage)
	}
}

// rangedBehavior keeps the hero between minDistance and attackRange and fires
// a projectile whenever its cooldown allows and the hero is in range.
func rangedBehavior(c *Combatant, env *behaviorEnv, dt float64) {
	heroPos := env.hero.Position()
	dist := c.pos.Dist(heroPos)
	step := c.speed * dt

	switch {
	case dist > c.attackRange:
		c.pos = c.pos.MoveTowards(heroPos, step)
	case dist < c.minDistance:
		away := c.pos.Sub(heroPos).Normalize()
		if away == (Vec2{}) {
			away = Vec2{X: 1}
		}
		c.pos = c.pos.Add(away.Scale(step))
	}

	if c.cooldownLeft > 0 {
		c.cooldownLeft -= dt
	}
	if c.cooldownLeft > 0 || c.pos.Dist(heroPos) > c.attackRange {
		return
	}
	if env.projectiles.Fire(c, heroPos, c.projectileSpeed, c.projectileDamage, c.projectileLife) != nil {
		c.cooldownLeft = c.attackCooldown
	}
}
