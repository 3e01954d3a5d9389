package game

import (
	"fmt"
	"log"
	"math"
	"math/rand/v2"

	"wave-arena/internal/config"
)

// paddingEpsilon keeps the padded spawn rectangle from collapsing to a line.
const paddingEpsilon = 0.01

// EnemyFactory creates an enemy at a position.
type EnemyFactory interface {
	Spawn(pos Vec2) EnemyHandle
}

// PositionSource locates the player for ring placement.
type PositionSource interface {
	Position() Vec2
}

// Placement picks spawn positions. ok is false when no position can be produced.
type Placement interface {
	Place(rng *rand.Rand, player PositionSource) (pos Vec2, ok bool)
}

// BoundedArea places enemies uniformly inside Rect, inset by Padding on each side.
type BoundedArea struct {
	Rect    config.Rect
	Padding float64
}

func (a BoundedArea) Place(rng *rand.Rand, _ PositionSource) (Vec2, bool) {
	x := uniformInset(rng, a.Rect.MinX, a.Rect.MaxX, a.Padding)
	y := uniformInset(rng, a.Rect.MinY, a.Rect.MaxY, a.Padding)
	return Vec2{x, y}, true
}

// uniformInset samples [lo+pad, hi-pad] with pad clamped to half the extent minus epsilon.
func uniformInset(rng *rand.Rand, lo, hi, pad float64) float64 {
	if hi < lo {
		lo, hi = hi, lo
	}
	pad = math.Max(0, math.Min(pad, (hi-lo)/2-paddingEpsilon))
	lo, hi = lo+pad, hi-pad
	return lo + rng.Float64()*(hi-lo)
}

// Ring places enemies at a uniform angle and a uniform radius around the player.
type Ring struct {
	MinRadius float64
	MaxRadius float64
}

func (r Ring) Place(rng *rand.Rand, player PositionSource) (Vec2, bool) {
	if player == nil {
		return Vec2{}, false
	}
	angle := rng.Float64() * 2 * math.Pi
	radius := r.MinRadius + rng.Float64()*(r.MaxRadius-r.MinRadius)
	offset := Vec2{math.Cos(angle), math.Sin(angle)}.Scale(radius)
	return player.Position().Add(offset), true
}

// PlacementFromConfig builds the placement policy selected by cfg.Mode.
func PlacementFromConfig(cfg config.SpawnConfig) Placement {
	if cfg.Mode == config.PlacementArea {
		return BoundedArea{Rect: cfg.Area, Padding: cfg.Padding}
	}
	return Ring{MinRadius: cfg.MinRadius, MaxRadius: cfg.MaxRadius}
}

// SpawnDirector places enemies, creates them through the factory, scales their
// health for the wave and registers them.
type SpawnDirector struct {
	placement Placement
	factory   EnemyFactory
	player    PositionSource
	registry  *Registry
	bus       *EventBus
	rng       *rand.Rand
	waveCfg   config.WaveConfig

	spawned      int
	warnedNoPos  bool
	warnedNoFact bool
}

// NewSpawnDirector wires a director. factory or player may be nil; spawning then degrades to a no-op.
func NewSpawnDirector(placement Placement, factory EnemyFactory, player PositionSource, registry *Registry, bus *EventBus, rng *rand.Rand, waveCfg config.WaveConfig) *SpawnDirector {
	return &SpawnDirector{
		placement: placement,
		factory:   factory,
		player:    player,
		registry:  registry,
		bus:       bus,
		rng:       rng,
		waveCfg:   waveCfg,
	}
}

// Configure swaps placement and scaling settings.
func (d *SpawnDirector) Configure(placement Placement, waveCfg config.WaveConfig) {
	d.placement = placement
	d.waveCfg = waveCfg
}

// SetFactory replaces the enemy factory.
func (d *SpawnDirector) SetFactory(f EnemyFactory) {
	d.factory = f
	d.warnedNoFact = false
}

// Spawned returns how many enemies this director has created.
func (d *SpawnDirector) Spawned() int { return d.spawned }

// SpawnOne creates one enemy for waveIndex. Returns false when nothing was spawned.
func (d *SpawnDirector) SpawnOne(waveIndex int) bool {
	if d.factory == nil {
		if !d.warnedNoFact {
			log.Printf("⚠️ Spawn skipped: no enemy factory")
			d.warnedNoFact = true
		}
		return false
	}

	pos, ok := d.placement.Place(d.rng, d.player)
	if !ok {
		if !d.warnedNoPos {
			log.Printf("⚠️ Spawn skipped: no player to place around")
			d.warnedNoPos = true
		}
		return false
	}
	d.warnedNoPos = false

	enemy := d.factory.Spawn(pos)
	if enemy == nil {
		return false
	}
	enemy.ScaleMaxHealth(HealthMultiplier(d.waveCfg, waveIndex))
	if !d.registry.Add(enemy) {
		enemy.Destroy()
		return false
	}
	d.spawned++

	archetype := ""
	if c, ok := enemy.(*Combatant); ok {
		archetype = c.Archetype()
	}
	if d.bus != nil {
		d.bus.Publish(EventTypeEnemySpawned, "spawner", EnemySpawnedPayload{
			EnemyID:   enemy.ID(),
			Archetype: archetype,
			Position:  enemy.Position(),
			MaxHealth: enemy.MaxHealth(),
		})
	}
	return true
}

// ArchetypeFactory is the default EnemyFactory. It picks an archetype by weight
// and builds a Combatant from it.
type ArchetypeFactory struct {
	archetypes []config.EnemyArchetype
	weights    []float64
	rng        *rand.Rand
	nextID     uint64
}

// NewArchetypeFactory returns nil when there are no archetypes to build from.
func NewArchetypeFactory(archetypes []config.EnemyArchetype, rng *rand.Rand) *ArchetypeFactory {
	if len(archetypes) == 0 {
		return nil
	}
	f := &ArchetypeFactory{
		archetypes: append([]config.EnemyArchetype(nil), archetypes...),
		weights:    make([]float64, len(archetypes)),
		rng:        rng,
	}
	for i, a := range archetypes {
		f.weights[i] = a.Weight
	}
	return f
}

func (f *ArchetypeFactory) Spawn(pos Vec2) EnemyHandle {
	f.nextID++
	a := f.archetypes[weightedIndex(f.weights, f.rng)]
	return NewCombatant(fmt.Sprintf("enemy-%d", f.nextID), a, pos)
}
