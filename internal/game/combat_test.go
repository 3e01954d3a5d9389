package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wave-arena/internal/config"
)

func grunt(id string, pos Vec2) *Combatant {
	return NewCombatant(id, config.EnemyArchetype{Name: "grunt", Behavior: "contact", Health: 30, Speed: 2, ContactDamage: 10, ContactRange: 1}, pos)
}

func newResolver(scope string) (*CombatResolver, *Registry, *EventBus) {
	reg := NewRegistry()
	bus := NewEventBus()
	cfg := config.DefaultCombat()
	cfg.ContactScope = scope
	return NewCombatResolver(cfg, reg, bus), reg, bus
}

func TestFindNearest(t *testing.T) {
	r, reg, _ := newResolver(config.ContactScopePair)

	far := grunt("far", Vec2{10, 0})
	tieA := grunt("tie-a", Vec2{0, 3})
	tieB := grunt("tie-b", Vec2{3, 0})
	dead := grunt("dead", Vec2{1, 0})
	dead.TakeDamage(100)
	for _, c := range []*Combatant{far, tieA, tieB, dead} {
		require.True(t, reg.Add(c))
	}

	got := r.FindNearest(Vec2{}, 30)
	require.NotNil(t, got)
	assert.Equal(t, "tie-a", got.ID(), "ties go to the earliest registered")

	assert.Nil(t, r.FindNearest(Vec2{}, 2.9), "nothing alive inside the radius")

	got = r.FindNearest(Vec2{11, 0}, 30)
	require.NotNil(t, got)
	assert.Equal(t, "far", got.ID())

	tieA.Destroy()
	got = r.FindNearest(Vec2{}, 30)
	require.NotNil(t, got)
	assert.Equal(t, "tie-b", got.ID(), "destroyed enemies are skipped")

	empty := NewCombatResolver(config.DefaultCombat(), nil, nil)
	assert.Nil(t, empty.FindNearest(Vec2{}, 30))
}

func TestApplyDamagePairCooldown(t *testing.T) {
	r, _, _ := newResolver(config.ContactScopePair)
	attacker := grunt("a", Vec2{})
	v1 := grunt("v1", Vec2{})
	v2 := grunt("v2", Vec2{})

	applied, _ := r.ApplyDamage(attacker, v1, 5)
	assert.True(t, applied)
	applied, _ = r.ApplyDamage(attacker, v1, 5)
	assert.False(t, applied, "inside the contact interval")
	assert.False(t, r.CanContact(attacker, v1))

	applied, _ = r.ApplyDamage(attacker, v2, 5)
	assert.True(t, applied, "a different defender has its own cooldown")

	r.Advance(0.49)
	applied, _ = r.ApplyDamage(attacker, v1, 5)
	assert.False(t, applied)

	r.Advance(0.01)
	assert.True(t, r.CanContact(attacker, v1))
	applied, _ = r.ApplyDamage(attacker, v1, 5)
	assert.True(t, applied)
	assert.Equal(t, 20.0, v1.Health())
}

func TestApplyDamageAttackerCooldown(t *testing.T) {
	r, _, _ := newResolver(config.ContactScopeAttacker)
	attacker := grunt("a", Vec2{})
	v1 := grunt("v1", Vec2{})
	v2 := grunt("v2", Vec2{})

	applied, _ := r.ApplyDamage(attacker, v1, 5)
	assert.True(t, applied)
	applied, _ = r.ApplyDamage(attacker, v2, 5)
	assert.False(t, applied, "attacker scope shares one cooldown across defenders")

	r.Advance(0.5)
	applied, _ = r.ApplyDamage(attacker, v2, 5)
	assert.True(t, applied)
}

func TestApplyDamageDeadDefenderKeepsCooldownFree(t *testing.T) {
	r, _, _ := newResolver(config.ContactScopePair)
	attacker := grunt("a", Vec2{})
	victim := grunt("v", Vec2{})
	victim.Destroy()

	applied, died := r.ApplyDamage(attacker, victim, 5)
	assert.False(t, applied)
	assert.False(t, died)
	assert.True(t, r.CanContact(attacker, victim))
}

func TestStrikeKillPublishesOnce(t *testing.T) {
	r, reg, bus := newResolver(config.ContactScopePair)
	events := recordEvents(bus, EventTypeEnemyKilled, EventTypeDamage)

	var killed []string
	r.OnKill = func(victim EnemyHandle, killerID string) {
		killed = append(killed, victim.ID()+"/"+killerID)
	}

	hero := NewHero(config.DefaultHero(), config.DefaultCombat(), r)
	enemy := grunt("e", Vec2{})
	reg.Add(enemy)

	applied, died := r.Strike(hero, enemy, 20)
	assert.True(t, applied)
	assert.False(t, died)
	applied, died = r.Strike(hero, enemy, 20)
	assert.True(t, applied)
	assert.True(t, died)
	applied, _ = r.Strike(hero, enemy, 20)
	assert.False(t, applied, "dead enemies take no more hits")

	assert.Equal(t, 2, events.count(EventTypeDamage))
	kills := events.of(EventTypeEnemyKilled)
	require.Len(t, kills, 1)
	assert.Equal(t, EnemyKilledPayload{EnemyID: "e", KillerID: HeroID}, kills[0].Payload)
	assert.Equal(t, []string{"e/" + HeroID}, killed)
	assert.Equal(t, 1, r.Kills())
}

func TestStrikeArea(t *testing.T) {
	r, reg, _ := newResolver(config.ContactScopePair)
	hero := NewHero(config.DefaultHero(), config.DefaultCombat(), r)

	near := grunt("near", Vec2{1, 0})
	edge := grunt("edge", Vec2{0, 3})
	out := grunt("out", Vec2{4, 0})
	for _, c := range []*Combatant{near, edge, out} {
		reg.Add(c)
	}

	assert.Equal(t, 2, r.StrikeArea(hero, Vec2{}, 3, 40))
	assert.False(t, near.Alive())
	assert.False(t, edge.Alive())
	assert.True(t, out.Alive())
	assert.Equal(t, 2, r.Kills())
}

func TestResolverResetAndForget(t *testing.T) {
	r, _, _ := newResolver(config.ContactScopePair)
	a := grunt("a", Vec2{})
	b := grunt("b", Vec2{})

	r.ApplyDamage(a, b, 1)
	r.Forget("b")
	assert.True(t, r.CanContact(a, b))

	r.Advance(2)
	r.ApplyDamage(a, b, 1)
	r.Reset()
	assert.Zero(t, r.Now())
	assert.True(t, r.CanContact(a, b))
}

func TestTargeterCadence(t *testing.T) {
	r, reg, _ := newResolver(config.ContactScopePair)
	first := grunt("first", Vec2{5, 0})
	reg.Add(first)

	tg := NewTargeter(r, 0.45, 30)
	got := tg.Update(0.1, Vec2{})
	require.NotNil(t, got)
	assert.Equal(t, "first", got.ID())
	assert.Equal(t, 1, tg.Searches())

	// a closer enemy is only noticed on the next cadence tick
	reg.Add(grunt("closer", Vec2{1, 0}))
	for i := 0; i < 3; i++ {
		assert.Equal(t, "first", tg.Update(0.1, Vec2{}).ID())
	}
	assert.Equal(t, 1, tg.Searches())

	got = tg.Update(0.1, Vec2{})
	assert.Equal(t, "closer", got.ID())
	assert.Equal(t, 2, tg.Searches())
}

func TestTargeterRetargetsWhenTargetDies(t *testing.T) {
	r, reg, _ := newResolver(config.ContactScopePair)
	a := grunt("a", Vec2{1, 0})
	b := grunt("b", Vec2{2, 0})
	reg.Add(a)
	reg.Add(b)

	tg := NewTargeter(r, 10, 30)
	assert.Equal(t, "a", tg.Update(0, Vec2{}).ID())

	a.TakeDamage(100)
	assert.Equal(t, "b", tg.Update(0, Vec2{}).ID(), "dead target triggers an immediate search")

	b.SetPosition(Vec2{100, 0})
	assert.Nil(t, tg.Update(0, Vec2{}), "target out of radius is dropped")

	tg.Clear()
	assert.Nil(t, tg.Target())
}

func TestTargeterIdleScansFollowCadence(t *testing.T) {
	r, reg, _ := newResolver(config.ContactScopePair)
	tg := NewTargeter(r, 0.15, 30)

	// 1.5 simulated seconds at 100 ticks per second with nothing to find
	for i := 0; i < 150; i++ {
		assert.Nil(t, tg.Update(0.01, Vec2{}))
	}
	assert.GreaterOrEqual(t, tg.Searches(), 9)
	assert.LessOrEqual(t, tg.Searches(), 12, "an empty field is scanned once per interval, not once per tick")

	// an enemy appearing later is picked up on the next interval
	reg.Add(grunt("late", Vec2{3, 0}))
	var got EnemyHandle
	for i := 0; i < 16 && got == nil; i++ {
		got = tg.Update(0.01, Vec2{})
	}
	require.NotNil(t, got)
	assert.Equal(t, "late", got.ID())
}

func TestTargeterClearScansOnNextUpdate(t *testing.T) {
	r, reg, _ := newResolver(config.ContactScopePair)
	tg := NewTargeter(r, 10, 30)
	assert.Nil(t, tg.Update(0.01, Vec2{}))
	assert.Equal(t, 1, tg.Searches())

	reg.Add(grunt("a", Vec2{1, 0}))
	assert.Nil(t, tg.Update(0.01, Vec2{}), "still waiting for the interval")

	tg.Clear()
	require.NotNil(t, tg.Update(0.01, Vec2{}))
	assert.Equal(t, 2, tg.Searches())
}

func TestActionControllerSpecialPreemptsNormal(t *testing.T) {
	ac := ActionController{NormalCooldown: 0.5, SpecialCost: 100, SpecialDuration: 0.8}

	assert.Equal(t, ActionNone, ac.Decide(100, false, false), "nothing without a target")
	assert.Equal(t, ActionSpecial, ac.Decide(100, true, true))
	assert.True(t, ac.Busy())
	assert.Equal(t, ActionNone, ac.Decide(100, true, true), "one action at a time")

	assert.Equal(t, ActionNone, ac.Advance(0.5))
	assert.Equal(t, ActionSpecial, ac.Advance(0.3))
	assert.False(t, ac.Busy())

	assert.Equal(t, ActionNormal, ac.Decide(10, true, true))
	assert.Equal(t, ActionNone, ac.Decide(10, true, true))
	assert.Equal(t, ActionNormal, ac.Advance(0.5))
	assert.Equal(t, ActionNormal, ac.Decide(10, true, true), "cooldown elapses with the swing")

	ac.Reset()
	assert.False(t, ac.Busy())
	assert.Equal(t, ActionSpecial, ac.Decide(150, true, true))
}

func TestActionControllerSpecialNeedsOnlyATarget(t *testing.T) {
	ac := ActionController{NormalCooldown: 0.5, SpecialCost: 100, SpecialDuration: 0.25}

	assert.Equal(t, ActionNone, ac.Decide(10, true, false), "the normal needs the target in reach")
	assert.Equal(t, ActionSpecial, ac.Decide(100, true, false), "the special fires at any acquired target")
}

func TestActionControllerSpecialRestartsNormalCooldown(t *testing.T) {
	ac := ActionController{NormalCooldown: 0.5, SpecialCost: 100, SpecialDuration: 0.25}

	require.Equal(t, ActionSpecial, ac.Decide(100, true, true))
	assert.Equal(t, ActionSpecial, ac.Advance(0.25))
	assert.Equal(t, ActionNone, ac.Decide(0, true, true), "the normal waits a full cooldown from the special")

	ac.Advance(0.25)
	assert.Equal(t, ActionNormal, ac.Decide(0, true, true))
}

func TestActionControllerNormalCooldown(t *testing.T) {
	ac := ActionController{NormalCooldown: 0.5}

	swings := 0
	for i := 0; i < 100; i++ {
		ac.Advance(0.125)
		if ac.Decide(0, true, true) == ActionNormal {
			swings++
		}
	}
	// one swing every four ticks over 12.5 simulated seconds
	assert.Equal(t, 25, swings)
}

func TestCombatantScaleAndDamage(t *testing.T) {
	c := grunt("c", Vec2{})
	c.ScaleMaxHealth(1.44)
	assert.Equal(t, 44.0, c.MaxHealth())
	assert.Equal(t, 44.0, c.Health())

	assert.False(t, c.TakeDamage(0))
	assert.False(t, c.TakeDamage(40))
	assert.True(t, c.TakeDamage(10))
	assert.Zero(t, c.Health())
	assert.False(t, c.TakeDamage(10), "only the killing blow reports death")

	d := grunt("d", Vec2{})
	d.Destroy()
	assert.False(t, d.Alive())
	assert.True(t, d.Destroyed())
}

func TestRegistrySweepAndClear(t *testing.T) {
	reg := NewRegistry()
	a, b, c := grunt("a", Vec2{}), grunt("b", Vec2{}), grunt("c", Vec2{})
	assert.True(t, reg.Add(a))
	assert.False(t, reg.Add(a), "duplicate IDs are ignored")
	assert.False(t, reg.Add(nil))
	reg.Add(b)
	reg.Add(c)

	b.TakeDamage(100)
	assert.Equal(t, 2, reg.AliveCount())
	assert.Equal(t, 1, reg.Sweep())

	var order []string
	reg.Each(func(h EnemyHandle) bool {
		order = append(order, h.ID())
		return true
	})
	assert.Equal(t, []string{"a", "c"}, order)
	_, ok := reg.Get("b")
	assert.False(t, ok)

	assert.Equal(t, 2, reg.Clear())
	assert.True(t, a.Destroyed())
	assert.Zero(t, reg.Len())
}

func TestContactBehaviorChasesAndHits(t *testing.T) {
	r, reg, _ := newResolver(config.ContactScopePair)
	hero := NewHero(config.DefaultHero(), config.DefaultCombat(), r)
	env := &behaviorEnv{hero: hero, resolver: r, projectiles: NewProjectileSystem()}

	c := grunt("g", Vec2{3, 0})
	reg.Add(c)

	stepEnemy(c, env, 0.5)
	assert.InDelta(t, 2.0, c.Position().X, 1e-9)
	assert.Equal(t, 100.0, hero.Health())

	stepEnemy(c, env, 0.5)
	assert.InDelta(t, 1.0, c.Position().X, 1e-9)
	assert.Equal(t, 90.0, hero.Health())

	stepEnemy(c, env, 0.1)
	assert.Equal(t, 90.0, hero.Health(), "contact cooldown paces the damage")

	r.Advance(0.5)
	stepEnemy(c, env, 0.1)
	assert.Equal(t, 80.0, hero.Health())
}

func TestRangedBehaviorKeepsDistanceAndFires(t *testing.T) {
	r, _, _ := newResolver(config.ContactScopePair)
	hero := NewHero(config.DefaultHero(), config.DefaultCombat(), r)
	projectiles := NewProjectileSystem()
	env := &behaviorEnv{hero: hero, resolver: r, projectiles: projectiles}

	spitter := NewCombatant("s", config.EnemyArchetype{
		Name: "spitter", Behavior: "ranged", Health: 50, Speed: 3,
		AttackRange: 5, MinDistance: 3, AttackCooldown: 2,
		ProjectileSpeed: 8, ProjectileDmg: 8, ProjectileLife: 2,
	}, Vec2{1, 0})
	assert.Equal(t, BehaviorRanged, spitter.Kind())

	stepEnemy(spitter, env, 0.5)
	assert.InDelta(t, 2.5, spitter.Position().X, 1e-9, "backs away when too close")
	assert.Equal(t, 1, projectiles.Len())

	stepEnemy(spitter, env, 0.5)
	assert.Equal(t, 1, projectiles.Len(), "waits for its attack cooldown")

	hits := projectiles.Update(0.25, hero, r)
	assert.Equal(t, 1, hits)
	assert.Equal(t, 92.0, hero.Health())
	assert.Zero(t, projectiles.Len())
}

func TestProjectilesExpire(t *testing.T) {
	r, _, _ := newResolver(config.ContactScopePair)
	hero := NewHero(config.DefaultHero(), config.DefaultCombat(), r)
	shooter := grunt("s", Vec2{0, 5})
	ps := NewProjectileSystem()

	require.NotNil(t, ps.Fire(shooter, Vec2{0, 10}, 1, 5, 0.5))
	assert.Nil(t, ps.Fire(shooter, Vec2{0, 5}, 1, 5, 0.5), "no direction to fire in")

	assert.Zero(t, ps.Update(0.3, hero, r), "moving away from the hero")
	assert.Equal(t, 1, ps.Len())
	ps.Update(0.3, hero, r)
	assert.Zero(t, ps.Len())
	assert.Equal(t, 100.0, hero.Health())
}

func TestHeroFightsNearestEnemy(t *testing.T) {
	r, reg, _ := newResolver(config.ContactScopePair)
	cfg := config.DefaultHero()
	hero := NewHero(cfg, config.DefaultCombat(), r)

	enemy := grunt("e", Vec2{5, 0})
	reg.Add(enemy)

	for i := 0; i < 60 && enemy.Alive(); i++ {
		hero.Update(0.1, r)
	}
	assert.False(t, enemy.Alive())
	assert.InDelta(t, cfg.AttackRange*0.9, hero.Position().Dist(Vec2{5, 0}), 1e-6, "stops just inside reach")
	assert.Equal(t, 2, hero.State().Hits)
	assert.Equal(t, 20.0, hero.Energy())
}

func TestHeroSpecialFiresAtAcquiredTarget(t *testing.T) {
	r, reg, _ := newResolver(config.ContactScopePair)
	cfg := config.DefaultHero()
	hero := NewHero(cfg, config.DefaultCombat(), r)
	hero.gainEnergy(cfg.SpecialCost)

	far := grunt("far", Vec2{10, 0})
	reg.Add(far)

	hero.Update(0.1, r)
	assert.Equal(t, 1, hero.State().Specials, "energy is spent before the target is in reach")
	assert.Zero(t, hero.Energy())
	assert.Equal(t, 30.0, far.Health(), "the burst is centred on the hero")
}

func TestHeroMoveCommandOverridesChase(t *testing.T) {
	r, reg, _ := newResolver(config.ContactScopePair)
	hero := NewHero(config.DefaultHero(), config.DefaultCombat(), r)
	reg.Add(grunt("e", Vec2{20, 0}))

	hero.MoveTo(Vec2{0, 2})
	hero.Update(1, r)
	assert.Equal(t, Vec2{0, 2}, hero.Position())

	hero.StopMoving()
	hero.Update(1, r)
	assert.Greater(t, hero.Position().X, 0.0, "chases again once released")
}

func TestHeroDeathNotifiesLifecycleOnce(t *testing.T) {
	r, _, _ := newResolver(config.ContactScopePair)
	hero := NewHero(config.DefaultHero(), config.DefaultCombat(), r)
	lc := &fakeLifecycle{}
	hero.SetLifecycle(lc)

	assert.False(t, hero.TakeDamage(60))
	assert.True(t, hero.TakeDamage(60))
	assert.False(t, hero.TakeDamage(60))
	assert.Zero(t, hero.Health())
	assert.False(t, hero.Alive())
	assert.Equal(t, 1, lc.deaths)

	hero.Heal(50)
	assert.Zero(t, hero.Health(), "dead heroes stay dead")

	hero.Reset(config.DefaultHero())
	assert.True(t, hero.Alive())
	assert.Equal(t, 100.0, hero.Health())
}
