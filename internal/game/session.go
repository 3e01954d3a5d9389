package game

import (
	"context"
	"errors"
	"log"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"wave-arena/internal/config"
)

var (
	// ErrNoPendingOffer is returned when a reward is chosen while none is on offer.
	ErrNoPendingOffer = errors.New("no reward offer pending")
	// ErrInvalidSlot is returned for a reward slot outside the offer.
	ErrInvalidSlot = errors.New("invalid reward slot")
)

// SessionOptions tunes a session beyond its encounter config.
type SessionOptions struct {
	Seed      uint64       // 0 picks a time-based seed
	TickRate  int          // ticks per second for Start; defaults to 30
	Factory   EnemyFactory // nil builds enemies from the configured archetypes
	Bus       *EventBus    // nil creates a private bus
	QueueSize int          // command buffer; defaults to DefaultCommandBuffer

	// OnTick, when set, is called after every Step with its duration, outside the lock.
	OnTick func(time.Duration)
}

// Session is one encounter with all of its collaborators. It owns the bus
// subscriptions it makes and releases them in Close.
//
// Everything runs on the tick: Step (or the Start loop) takes the session lock,
// applies queued commands and advances the simulation. Bus handlers are called
// on that goroutine with the lock held, so they must not call back into the session.
type Session struct {
	mu sync.Mutex

	cfg    config.EncounterConfig
	staged *config.EncounterConfig
	seed   uint64
	rng    *rand.Rand

	bus         *EventBus
	ownBus      bool
	registry    *Registry
	resolver    *CombatResolver
	director    *SpawnDirector
	pool        *RewardPool
	waves       *WaveController
	hero        *Hero
	projectiles *ProjectileSystem
	env         behaviorEnv
	commands    *CommandQueue

	customFactory bool

	offer   *RewardOffer
	outcome *Outcome

	tickNum  uint64
	snapSeq  uint64
	snapshot atomic.Pointer[Snapshot]
	subs     []*Subscription

	tickRate int
	onTick   func(time.Duration)
	running  bool
	stopChan chan struct{}
	loopDone chan struct{}
}

// sessionHooks adapts the session to the collaborator interfaces the wave
// controller and hero call back into. They run inside the tick.
type sessionHooks struct{ s *Session }

// NewSession wires a session. It stays idle until Begin.
func NewSession(cfg config.EncounterConfig, opts SessionOptions) *Session {
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	tickRate := opts.TickRate
	if tickRate <= 0 {
		tickRate = 30
	}

	s := &Session{
		cfg:         cfg,
		seed:        seed,
		rng:         rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		bus:         opts.Bus,
		registry:    NewRegistry(),
		projectiles: NewProjectileSystem(),
		commands:    NewCommandQueue(opts.QueueSize),
		tickRate:    tickRate,
		onTick:      opts.OnTick,
	}
	if s.bus == nil {
		s.bus = NewEventBus()
		s.ownBus = true
	}
	hooks := sessionHooks{s}

	s.resolver = NewCombatResolver(cfg.Combat, s.registry, s.bus)
	s.hero = NewHero(cfg.Hero, cfg.Combat, s.resolver)
	s.hero.SetLifecycle(hooks)
	s.env = behaviorEnv{hero: s.hero, resolver: s.resolver, projectiles: s.projectiles}

	var factory EnemyFactory
	if opts.Factory != nil {
		factory = opts.Factory
		s.customFactory = true
	} else if f := NewArchetypeFactory(cfg.Spawn.Enemies, s.rng); f != nil {
		factory = f
	}
	s.director = NewSpawnDirector(PlacementFromConfig(cfg.Spawn), factory, s.hero, s.registry, s.bus, s.rng, cfg.Wave)
	s.pool = NewRewardPool(cfg.Reward, s.rng)

	s.waves = NewWaveController(WaveDeps{
		Config:      cfg.Wave,
		Slots:       cfg.Reward.Slots,
		Bus:         s.bus,
		Registry:    s.registry,
		Spawner:     s.director,
		Rewards:     s.pool,
		Player:      s.hero,
		Presenter:   hooks,
		Lifecycle:   hooks,
		BeforeStart: s.applyStaged,
	})

	s.subs = append(s.subs,
		s.bus.Subscribe(s.onWaveStarted, EventTypeWaveStarted),
		s.bus.Subscribe(s.onWaveEnded, EventTypeWaveCompleted, EventTypeWaveFailed),
		s.bus.Subscribe(s.onEncounterOver, EventTypeEncounterOver),
	)

	s.snapshot.Store(s.buildSnapshot())
	return s
}

// Bus returns the session's event bus.
func (s *Session) Bus() *EventBus { return s.bus }

// Seed returns the seed of the session's random source.
func (s *Session) Seed() uint64 { return s.seed }

// Config returns the encounter config in effect.
func (s *Session) Config() config.EncounterConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Begin schedules wave 1 after the start delay.
func (s *Session) Begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waves.Schedule(1, s.cfg.Wave.StartDelay)
	s.publishSnapshot()
}

// Start runs Step on a ticker until Stop.
func (s *Session) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.loopDone = make(chan struct{})
	stop, done := s.stopChan, s.loopDone
	s.mu.Unlock()

	interval := time.Second / time.Duration(s.tickRate)
	dt := 1.0 / float64(s.tickRate)

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Step(dt)
			case <-stop:
				return
			}
		}
	}()

	log.Printf("🎮 Session started at %d TPS (seed %d)", s.tickRate, s.seed)
}

// Stop halts the ticker loop and waits for the current tick to finish.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	done := s.loopDone
	s.mu.Unlock()

	<-done
	log.Println("🛑 Session stopped")
}

// Close stops the loop and releases every bus subscription the session made.
func (s *Session) Close() {
	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.waves.Close()
	for _, sub := range s.subs {
		s.bus.Unsubscribe(sub)
	}
	s.subs = nil
	if s.ownBus {
		s.bus.Close()
	}
}

// Step advances the encounter by dt seconds.
func (s *Session) Step(dt float64) {
	start := time.Now()
	s.mu.Lock()
	s.step(dt)
	s.mu.Unlock()

	if s.onTick != nil {
		s.onTick(time.Since(start))
	}
}

func (s *Session) step(dt float64) {
	if dt < 0 {
		dt = 0
	}
	s.tickNum++
	s.bus.SetTick(s.tickNum)

	s.commands.Drain(s.apply)
	s.resolver.Advance(dt)

	if s.waves.State().Active {
		s.hero.Update(dt, s.resolver)
		s.registry.Each(func(h EnemyHandle) bool {
			if c, ok := h.(*Combatant); ok {
				stepEnemy(c, &s.env, dt)
			}
			return true
		})
		s.projectiles.Update(dt, s.hero, s.resolver)
		s.registry.Sweep()
	}

	s.waves.Tick(dt)
	s.publishSnapshot()
}

func (s *Session) publishSnapshot() {
	s.snapshot.Store(s.buildSnapshot())
}

// Snapshot returns the latest immutable snapshot without locking.
func (s *Session) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// Submit queues a command for the next tick.
func (s *Session) Submit(cmd Command) error {
	if !s.commands.Enqueue(cmd) {
		return ErrQueueFull
	}
	return nil
}

// Do queues a command and waits for the tick that applies it.
func (s *Session) Do(ctx context.Context, cmd Command) error {
	cmd.Reply = make(chan error, 1)
	if err := s.Submit(cmd); err != nil {
		return err
	}
	select {
	case err := <-cmd.Reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QueueStats returns the command queue counters.
func (s *Session) QueueStats() QueueStats {
	return s.commands.Stats()
}

func (s *Session) apply(cmd Command) error {
	switch cmd.Kind {
	case CommandSelectReward:
		return s.selectReward(cmd.Slot)
	case CommandSkipReward:
		return s.skipReward()
	case CommandRestart:
		s.restart()
		return nil
	case CommandMoveHero:
		s.hero.MoveTo(cmd.Target)
		return nil
	case CommandStopHero:
		s.hero.StopMoving()
		return nil
	default:
		return errors.New("unknown command")
	}
}

// SelectReward applies the reward in slot and schedules the next wave.
func (s *Session) SelectReward(slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.selectReward(slot)
	s.publishSnapshot()
	return err
}

// SkipReward declines the offer and schedules the next wave.
func (s *Session) SkipReward() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.skipReward()
	s.publishSnapshot()
	return err
}

// Restart resets the hero and wave state and schedules wave 1 again.
func (s *Session) Restart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restart()
	s.publishSnapshot()
}

// MoveHero steers the hero toward p.
func (s *Session) MoveHero(p Vec2) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hero.MoveTo(p)
}

// Offer returns the pending reward offer, if any.
func (s *Session) Offer() (RewardOffer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offer == nil {
		return RewardOffer{}, false
	}
	return RewardOffer{Wave: s.offer.Wave, Candidates: append([]RewardCandidate(nil), s.offer.Candidates...)}, true
}

// StageConfig holds cfg until the next wave starts. Hero stats change only on Restart.
func (s *Session) StageConfig(cfg config.EncounterConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged = &cfg
	log.Printf("📝 Config staged for the next wave")
}

func (s *Session) selectReward(slot int) error {
	if s.offer == nil {
		return ErrNoPendingOffer
	}
	if slot < 0 || slot >= len(s.offer.Candidates) {
		return ErrInvalidSlot
	}
	c := s.offer.Candidates[slot]
	if !c.IsPlaceholder() {
		s.hero.Apply(c)
	}
	log.Printf("🎁 Reward picked after wave %d: %s", s.offer.Wave, c.Name)
	s.bus.Publish(EventTypeRewardApplied, "session", RewardAppliedPayload{Wave: s.offer.Wave, Candidate: c})

	s.offer = nil
	return s.waves.BeginNextWave()
}

func (s *Session) skipReward() error {
	if s.offer == nil {
		return ErrNoPendingOffer
	}
	s.bus.Publish(EventTypeRewardApplied, "session", RewardAppliedPayload{Wave: s.offer.Wave, Skipped: true})

	s.offer = nil
	return s.waves.BeginNextWave()
}

func (s *Session) restart() {
	s.applyStaged(0)
	s.waves.Reset()
	s.hero.Reset(s.cfg.Hero)
	s.resolver.Reset()
	s.projectiles.Clear()
	s.offer = nil
	s.outcome = nil

	log.Printf("🔁 Encounter restarted")
	s.bus.Publish(EventTypeEncounterReset, "session", nil)
	s.waves.Schedule(1, s.cfg.Wave.StartDelay)
}

// applyStaged swaps in a staged config. Runs at wave start and on restart.
func (s *Session) applyStaged(index int) {
	if s.staged == nil {
		return
	}
	cfg := *s.staged
	s.staged = nil
	s.cfg = cfg

	s.waves.SetConfig(cfg.Wave)
	s.waves.SetSlots(cfg.Reward.Slots)
	s.director.Configure(PlacementFromConfig(cfg.Spawn), cfg.Wave)
	if !s.customFactory {
		if f := NewArchetypeFactory(cfg.Spawn.Enemies, s.rng); f != nil {
			s.director.SetFactory(f)
		}
	}
	s.resolver.Configure(cfg.Combat)
	s.hero.ConfigureTargeting(cfg.Combat)
	s.pool.Configure(cfg.Reward)

	if index > 0 {
		log.Printf("🔄 Reloaded config applied at wave %d", index)
	}
}

func (s *Session) onWaveStarted(Event) {
	s.resolver.Reset()
	s.projectiles.Clear()
}

func (s *Session) onWaveEnded(Event) {
	s.projectiles.Clear()
	s.hero.StopMoving()
}

func (s *Session) onEncounterOver(e Event) {
	p, ok := e.Payload.(EncounterOverPayload)
	if !ok {
		return
	}
	s.offer = nil
	s.outcome = &Outcome{
		Won:          p.Won,
		Reason:       p.Reason,
		Wave:         p.Wave,
		WavesCleared: p.WavesCleared,
		TotalKills:   p.TotalKills,
		Elapsed:      p.Elapsed,
	}
}

func (h sessionHooks) OnPlayerDeath() {
	wave := h.s.waves.State().Index
	log.Printf("☠️ Hero down in wave %d", wave)
	h.s.bus.Publish(EventTypePlayerDied, "session", PlayerDiedPayload{Wave: wave})
}

func (h sessionHooks) OnEncounterComplete() {
	log.Printf("🎉 All %d waves cleared", h.s.waves.WavesCleared())
}

func (h sessionHooks) PresentRewards(wave int, candidates []RewardCandidate) {
	h.s.offer = &RewardOffer{Wave: wave, Candidates: candidates}
}
