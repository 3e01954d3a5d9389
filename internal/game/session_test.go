package game

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wave-arena/internal/config"
)

const testDT = 1.0 / 30

// quickEncounter is a short run the hero wins comfortably: grunts only, two
// kills per wave, two waves.
func quickEncounter() config.EncounterConfig {
	cfg := config.DefaultEncounter()
	cfg.Wave.BaseKillRequirement = 2
	cfg.Wave.ExtraKillsPerWave = 0
	cfg.Wave.MaxWaves = 2
	cfg.Spawn.Enemies = cfg.Spawn.Enemies[:1]
	cfg.Spawn.MinRadius = 3
	cfg.Spawn.MaxRadius = 4
	cfg.Hero.MaxHealth = 1000
	cfg.Hero.AttackDamage = 1000
	return cfg
}

func newTestSession(t *testing.T, cfg config.EncounterConfig, opts SessionOptions) *Session {
	t.Helper()
	if opts.Seed == 0 {
		opts.Seed = 1234
	}
	s := NewSession(cfg, opts)
	t.Cleanup(s.Close)
	return s
}

// stepUntil steps s until cond holds or maxSeconds of simulated time pass.
func stepUntil(s *Session, maxSeconds float64, cond func(*Snapshot) bool) bool {
	for i := 0; i < int(maxSeconds/testDT); i++ {
		s.Step(testDT)
		if cond(s.Snapshot()) {
			return true
		}
	}
	return false
}

func TestSessionBeginsAfterStartDelay(t *testing.T) {
	s := newTestSession(t, quickEncounter(), SessionOptions{})
	s.Begin()

	for i := 0; i < 3; i++ {
		s.Step(0.5)
	}
	snap := s.Snapshot()
	assert.False(t, snap.Wave.Active)
	assert.Equal(t, 1, snap.Wave.NextWave)
	assert.InDelta(t, 0.5, snap.Wave.NextWaveDelay, 1e-9)

	s.Step(0.5)
	snap = s.Snapshot()
	assert.True(t, snap.Wave.Active)
	assert.Equal(t, 1, snap.Wave.Index)
	assert.Equal(t, 2, snap.Wave.KillTarget)
	assert.Equal(t, uint64(4), snap.TickNumber)
}

func TestSessionFullRunIsWon(t *testing.T) {
	s := newTestSession(t, quickEncounter(), SessionOptions{})
	events := recordEvents(s.Bus(), EventTypeRewardOffered, EventTypeRewardApplied, EventTypeEncounterOver)
	s.Begin()

	require.True(t, stepUntil(s, 40, func(snap *Snapshot) bool { return snap.Offer != nil }), "wave 1 never completed")
	offer, ok := s.Offer()
	require.True(t, ok)
	assert.Equal(t, 1, offer.Wave)
	assert.Len(t, offer.Candidates, 3)
	assert.Equal(t, PhaseCompleted, s.Snapshot().Wave.Phase)
	assert.Empty(t, s.Snapshot().Enemies, "completion clears the field")

	before := s.Snapshot().Hero
	require.NoError(t, s.SelectReward(0))
	_, ok = s.Offer()
	assert.False(t, ok)
	applied := events.of(EventTypeRewardApplied)
	require.Len(t, applied, 1)
	assert.Equal(t, offer.Candidates[0], applied[0].Payload.(RewardAppliedPayload).Candidate)
	if !offer.Candidates[0].IsPlaceholder() {
		assert.NotEqual(t, before, s.Snapshot().Hero, "the reward changed the hero")
	}

	require.True(t, stepUntil(s, 60, func(snap *Snapshot) bool { return snap.Outcome != nil }), "encounter never ended")
	out := s.Snapshot().Outcome
	assert.True(t, out.Won)
	assert.Equal(t, 2, out.WavesCleared)
	assert.Equal(t, 4, out.TotalKills)
	assert.Equal(t, PhaseOver, s.Snapshot().Wave.Phase)

	assert.Equal(t, 1, events.count(EventTypeRewardOffered), "no offer after the last wave")
	assert.Equal(t, 1, events.count(EventTypeEncounterOver))
	assert.ErrorIs(t, s.SelectReward(0), ErrNoPendingOffer)
}

func TestSessionRewardErrors(t *testing.T) {
	s := newTestSession(t, quickEncounter(), SessionOptions{})
	assert.ErrorIs(t, s.SelectReward(0), ErrNoPendingOffer)
	assert.ErrorIs(t, s.SkipReward(), ErrNoPendingOffer)

	s.Begin()
	require.True(t, stepUntil(s, 40, func(snap *Snapshot) bool { return snap.Offer != nil }))

	assert.ErrorIs(t, s.SelectReward(-1), ErrInvalidSlot)
	assert.ErrorIs(t, s.SelectReward(3), ErrInvalidSlot)
	_, ok := s.Offer()
	assert.True(t, ok, "a bad slot keeps the offer open")

	require.NoError(t, s.SkipReward())
	require.True(t, stepUntil(s, 2, func(snap *Snapshot) bool { return snap.Wave.Index == 2 && snap.Wave.Active }))
}

func TestSessionHeroDeathEndsEncounter(t *testing.T) {
	cfg := quickEncounter()
	cfg.Hero.MaxHealth = 1
	cfg.Hero.AttackDamage = 0
	s := newTestSession(t, cfg, SessionOptions{})
	events := recordEvents(s.Bus(), EventTypePlayerDied, EventTypeWaveFailed)
	s.Begin()

	require.True(t, stepUntil(s, 40, func(snap *Snapshot) bool { return snap.Outcome != nil }))
	out := s.Snapshot().Outcome
	assert.False(t, out.Won)
	assert.Equal(t, FailReasonPlayerDead, out.Reason)
	assert.Equal(t, 1, out.Wave)
	assert.False(t, s.Snapshot().Hero.Alive)

	assert.Equal(t, 1, events.count(EventTypePlayerDied))
	failed := events.of(EventTypeWaveFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, FailReasonPlayerDead, failed[0].Payload.(WaveFailedPayload).Reason)
}

func TestSessionRestart(t *testing.T) {
	cfg := quickEncounter()
	cfg.Hero.MaxHealth = 1
	cfg.Hero.AttackDamage = 0
	s := newTestSession(t, cfg, SessionOptions{})
	events := recordEvents(s.Bus(), EventTypeEncounterReset, EventTypeWaveStarted)
	s.Begin()
	require.True(t, stepUntil(s, 40, func(snap *Snapshot) bool { return snap.Outcome != nil }))

	s.Restart()
	snap := s.Snapshot()
	assert.Nil(t, snap.Outcome)
	assert.Nil(t, snap.Offer)
	assert.True(t, snap.Hero.Alive)
	assert.Equal(t, 1.0, snap.Hero.Health)
	assert.Equal(t, Vec2{}, snap.Hero.Position)
	assert.Equal(t, PhaseIdle, snap.Wave.Phase)
	assert.Equal(t, 1, snap.Wave.NextWave)
	assert.Empty(t, snap.Enemies)
	assert.Zero(t, snap.TotalKills)
	assert.Equal(t, 1, events.count(EventTypeEncounterReset))

	require.True(t, stepUntil(s, 3, func(snap *Snapshot) bool { return snap.Wave.Active }))
	assert.Equal(t, 1, s.Snapshot().Wave.Index)
	assert.Equal(t, 2, events.count(EventTypeWaveStarted))
}

func TestSessionStagedConfigAppliesAtWaveStart(t *testing.T) {
	s := newTestSession(t, quickEncounter(), SessionOptions{})
	s.Begin()

	staged := quickEncounter()
	staged.Wave.BaseKillRequirement = 7
	staged.Hero.MaxHealth = 5
	s.StageConfig(staged)
	assert.Equal(t, 2, s.Config().Wave.BaseKillRequirement, "nothing changes before the wave starts")

	require.True(t, stepUntil(s, 3, func(snap *Snapshot) bool { return snap.Wave.Active }))
	assert.Equal(t, 7, s.Snapshot().Wave.KillTarget)
	assert.Equal(t, 7, s.Config().Wave.BaseKillRequirement)
	assert.Equal(t, 1000.0, s.Snapshot().Hero.MaxHealth, "hero stats wait for a restart")

	s.Restart()
	assert.Equal(t, 5.0, s.Snapshot().Hero.MaxHealth)
}

type countingFactory struct{ n int }

func (f *countingFactory) Spawn(pos Vec2) EnemyHandle {
	f.n++
	return NewCombatant("custom-"+string(rune('a'+f.n)), config.EnemyArchetype{Name: "custom", Health: 10}, pos)
}

func TestSessionUsesCustomFactory(t *testing.T) {
	factory := &countingFactory{}
	s := newTestSession(t, quickEncounter(), SessionOptions{Factory: factory})
	s.Begin()

	require.True(t, stepUntil(s, 4, func(snap *Snapshot) bool { return snap.Spawned > 0 }))
	assert.Equal(t, 1, factory.n)
	require.NotEmpty(t, s.Snapshot().Enemies)
	assert.Equal(t, "custom", s.Snapshot().Enemies[0].Archetype)
}

func TestSessionDoWaitsForTick(t *testing.T) {
	var ticks atomic.Int64
	s := newTestSession(t, quickEncounter(), SessionOptions{
		TickRate: 100,
		OnTick:   func(time.Duration) { ticks.Add(1) },
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// nothing ticks yet, so the command waits
	short, cancelShort := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancelShort()
	assert.ErrorIs(t, s.Do(short, Command{Kind: CommandSkipReward}), context.DeadlineExceeded)

	s.Start()
	s.Start()
	assert.ErrorIs(t, s.Do(ctx, Command{Kind: CommandSelectReward}), ErrNoPendingOffer)
	require.NoError(t, s.Do(ctx, Command{Kind: CommandMoveHero, Target: Vec2{X: 1}}))
	require.NoError(t, s.Do(ctx, Command{Kind: CommandRestart}))
	s.Stop()
	s.Stop()

	assert.Positive(t, ticks.Load())
	// the timed-out skip is still applied on the first tick
	assert.Equal(t, uint64(4), s.QueueStats().Processed)
}

func TestSessionSnapshotsAreImmutable(t *testing.T) {
	s := newTestSession(t, quickEncounter(), SessionOptions{})
	s.Begin()
	first := s.Snapshot()
	seq := first.Sequence

	require.True(t, stepUntil(s, 5, func(snap *Snapshot) bool { return len(snap.Enemies) > 0 }))
	assert.Equal(t, seq, first.Sequence)
	assert.Empty(t, first.Enemies)
	assert.Greater(t, s.Snapshot().Sequence, seq)
}

func TestSessionCloseReleasesBus(t *testing.T) {
	bus := NewEventBus()
	s := NewSession(quickEncounter(), SessionOptions{Seed: 1, Bus: bus})
	assert.Positive(t, bus.Len())

	s.Close()
	assert.Zero(t, bus.Len())

	calls := 0
	bus.Subscribe(func(Event) { calls++ })
	bus.Publish(EventTypeTimerTick, "test", nil)
	assert.Equal(t, 1, calls, "a shared bus stays open")
}

func TestSessionSeedIsDeterministic(t *testing.T) {
	run := func() *Snapshot {
		s := NewSession(quickEncounter(), SessionOptions{Seed: 99})
		defer s.Close()
		s.Begin()
		for i := 0; i < 300; i++ {
			s.Step(testDT)
		}
		return s.Snapshot()
	}
	a, b := run(), run()
	assert.Equal(t, a.Enemies, b.Enemies)
	assert.Equal(t, a.Hero, b.Hero)
	assert.Equal(t, a.Wave, b.Wave)
}
