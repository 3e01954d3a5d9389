package game

import (
	"errors"
	"log"

	"wave-arena/internal/config"
)

var (
	// ErrNotBetweenWaves is returned when the next wave is requested outside the reward phase.
	ErrNotBetweenWaves = errors.New("no completed wave awaiting the next one")
	// ErrEncounterOver is returned for requests that need a running encounter.
	ErrEncounterOver = errors.New("encounter is over")
)

// EncounterLifecycle is told when the run ends.
type EncounterLifecycle interface {
	OnPlayerDeath()
	OnEncounterComplete()
}

// RewardPresenter shows drawn rewards to the player. It answers later through
// WaveController.BeginNextWave, usually after applying the chosen reward.
type RewardPresenter interface {
	PresentRewards(wave int, candidates []RewardCandidate)
}

// Spawner is the part of SpawnDirector the controller drives.
type Spawner interface {
	SpawnOne(waveIndex int) bool
}

// RewardDrawer is the part of RewardPool the controller uses.
type RewardDrawer interface {
	Draw(count int) []RewardCandidate
}

// Phase is the controller's coarse state.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseActive
	PhaseCompleted
	PhaseFailed
	PhaseOver
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseActive:
		return "active"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	case PhaseOver:
		return "over"
	default:
		return "unknown"
	}
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// WaveState is owned by WaveController; everyone else gets copies.
type WaveState struct {
	Index         int     `json:"index"`
	TimeRemaining float64 `json:"timeRemaining"`
	KillCount     int     `json:"killCount"`
	KillTarget    int     `json:"killTarget"`
	SpawnInterval float64 `json:"spawnInterval"`
	Active        bool    `json:"active"`
	Ended         bool    `json:"ended"`
	Phase         Phase   `json:"phase"`

	// Countdown to the next StartWave, when one is scheduled.
	NextWave      int     `json:"nextWave,omitempty"`
	NextWaveDelay float64 `json:"nextWaveDelay,omitempty"`
}

// WaveDeps bundles the controller's collaborators.
type WaveDeps struct {
	Config    config.WaveConfig
	Slots     int
	Bus       *EventBus
	Registry  *Registry
	Spawner   Spawner
	Rewards   RewardDrawer
	Player    PlayerHealthSource
	Presenter RewardPresenter
	Lifecycle EncounterLifecycle

	// BeforeStart runs at the top of every StartWave, before scaling is computed.
	BeforeStart func(index int)
}

// WaveController is the encounter state machine. It is driven by Tick and
// consumes kill notifications from the bus.
type WaveController struct {
	deps  WaveDeps
	cfg   config.WaveConfig
	state WaveState

	spawnTimer float64
	pending    bool
	nextIndex  int

	wavesCleared int
	totalKills   int
	elapsed      float64

	killSub *Subscription
}

// NewWaveController creates an idle controller and subscribes it to EnemyKilled events.
func NewWaveController(deps WaveDeps) *WaveController {
	wc := &WaveController{deps: deps, cfg: deps.Config}
	if wc.deps.Slots <= 0 {
		wc.deps.Slots = 3
	}
	if deps.Bus != nil {
		wc.killSub = deps.Bus.Subscribe(func(Event) { wc.OnEnemyKilled() }, EventTypeEnemyKilled)
	}
	return wc
}

// Close unsubscribes from the bus.
func (wc *WaveController) Close() {
	if wc.deps.Bus != nil {
		wc.deps.Bus.Unsubscribe(wc.killSub)
		wc.killSub = nil
	}
}

// SetConfig replaces the wave settings. Takes effect at the next StartWave.
func (wc *WaveController) SetConfig(cfg config.WaveConfig) { wc.cfg = cfg }

// Config returns the wave settings in use.
func (wc *WaveController) Config() config.WaveConfig { return wc.cfg }

// SetSlots changes how many rewards are drawn per offer.
func (wc *WaveController) SetSlots(n int) {
	if n > 0 {
		wc.deps.Slots = n
	}
}

// State returns a copy of the wave state.
func (wc *WaveController) State() WaveState { return wc.state }

// WavesCleared returns how many waves were completed in this encounter.
func (wc *WaveController) WavesCleared() int { return wc.wavesCleared }

// TotalKills returns kills counted toward any wave in this encounter.
func (wc *WaveController) TotalKills() int { return wc.totalKills }

// Elapsed returns the simulated seconds since the encounter began.
func (wc *WaveController) Elapsed() float64 { return wc.elapsed }

// Schedule starts wave index after delay seconds of Tick time.
func (wc *WaveController) Schedule(index int, delay float64) {
	wc.pending = true
	wc.nextIndex = max(index, 1)
	wc.state.NextWave = wc.nextIndex
	wc.state.NextWaveDelay = max(delay, 0)
}

// BeginNextWave schedules the wave after the one just completed, after the next-wave delay.
func (wc *WaveController) BeginNextWave() error {
	if wc.state.Phase == PhaseOver {
		return ErrEncounterOver
	}
	if wc.state.Phase != PhaseCompleted || wc.pending {
		return ErrNotBetweenWaves
	}
	wc.Schedule(wc.nextIndex, wc.cfg.NextWaveDelay)
	return nil
}

// Reset returns to Idle with nothing scheduled and an empty registry.
func (wc *WaveController) Reset() {
	wc.sweep()
	wc.state = WaveState{}
	wc.spawnTimer = 0
	wc.pending = false
	wc.nextIndex = 0
	wc.wavesCleared = 0
	wc.totalKills = 0
	wc.elapsed = 0
}

// StartWave begins wave index immediately. An index past MaxWaves ends the encounter instead.
func (wc *WaveController) StartWave(index int) {
	index = max(index, 1)
	wc.pending = false
	wc.state.NextWave = 0
	wc.state.NextWaveDelay = 0

	if wc.deps.BeforeStart != nil {
		wc.deps.BeforeStart(index)
	}

	if index > wc.cfg.MaxWaves {
		wc.state.Index = index - 1
		wc.finishEncounter(true, 0)
		return
	}

	wc.sweep()
	wc.state = WaveState{
		Index:         index,
		TimeRemaining: wc.cfg.Duration,
		KillCount:     0,
		KillTarget:    KillTarget(wc.cfg, index),
		SpawnInterval: SpawnInterval(wc.cfg, index),
		Active:        true,
		Ended:         false,
		Phase:         PhaseActive,
	}
	wc.spawnTimer = 0

	log.Printf("🌊 Wave %d started: %d kills in %.0fs", index, wc.state.KillTarget, wc.state.TimeRemaining)
	wc.publish(EventTypeWaveStarted, WaveStartedPayload{
		Wave:          index,
		KillTarget:    wc.state.KillTarget,
		Duration:      wc.state.TimeRemaining,
		SpawnInterval: wc.state.SpawnInterval,
	})
	wc.publish(EventTypeKillCountChanged, KillCountPayload{Current: 0, Required: wc.state.KillTarget})
}

// Tick advances a scheduled start or the active wave by dt seconds.
func (wc *WaveController) Tick(dt float64) {
	if dt < 0 {
		dt = 0
	}
	if wc.pending || wc.state.Active {
		wc.elapsed += dt
	}

	if wc.pending {
		wc.state.NextWaveDelay -= dt
		if wc.state.NextWaveDelay <= 0 {
			wc.StartWave(wc.nextIndex)
		}
		return
	}

	s := &wc.state
	if !s.Active || s.Ended {
		return
	}

	s.TimeRemaining = max(s.TimeRemaining-dt, 0)
	wc.publish(EventTypeTimerTick, TimerPayload{TimeRemaining: s.TimeRemaining})

	if wc.deps.Player != nil && wc.deps.Player.Health() <= 0 {
		wc.failWave(FailReasonPlayerDead)
		return
	}
	if s.KillCount >= s.KillTarget {
		wc.completeWave()
		return
	}
	if s.TimeRemaining <= 0 {
		wc.failWave(FailReasonTimeUp)
		return
	}

	wc.spawnTimer -= dt
	if wc.spawnTimer <= 0 {
		if wc.deps.Spawner != nil {
			wc.deps.Spawner.SpawnOne(s.Index)
		}
		wc.spawnTimer = s.SpawnInterval
	}
}

// OnEnemyKilled counts a kill toward the active wave. Kills outside an active
// wave are ignored.
func (wc *WaveController) OnEnemyKilled() {
	s := &wc.state
	if !s.Active || s.Ended {
		return
	}
	s.KillCount++
	wc.totalKills++
	wc.publish(EventTypeKillCountChanged, KillCountPayload{Current: s.KillCount, Required: s.KillTarget})
}

func (wc *WaveController) completeWave() {
	s := &wc.state
	if s.Ended {
		return
	}
	s.Active = false
	s.Ended = true
	s.Phase = PhaseCompleted
	wc.wavesCleared = s.Index

	log.Printf("✅ Wave %d completed with %d kills", s.Index, s.KillCount)
	wc.publish(EventTypeWaveCompleted, WaveCompletedPayload{Wave: s.Index, Kills: s.KillCount})
	wc.sweep()

	if s.Index >= wc.cfg.MaxWaves {
		wc.finishEncounter(true, 0)
		return
	}

	wc.nextIndex = s.Index + 1

	var candidates []RewardCandidate
	if wc.deps.Rewards != nil {
		candidates = wc.deps.Rewards.Draw(wc.deps.Slots)
	}
	wc.publish(EventTypeRewardOffered, RewardOfferedPayload{Wave: s.Index, Candidates: candidates})

	if wc.deps.Presenter == nil {
		log.Printf("⚠️ No reward presenter, continuing to wave %d", wc.nextIndex)
		_ = wc.BeginNextWave()
		return
	}
	wc.deps.Presenter.PresentRewards(s.Index, candidates)
}

func (wc *WaveController) failWave(reason FailReason) {
	s := &wc.state
	if s.Ended {
		return
	}
	s.Active = false
	s.Ended = true
	s.Phase = PhaseFailed

	log.Printf("💀 Wave %d failed: %s (%d/%d kills)", s.Index, reason, s.KillCount, s.KillTarget)
	wc.publish(EventTypeWaveFailed, WaveFailedPayload{Reason: reason, Wave: s.Index, Kills: s.KillCount})
	wc.sweep()

	// PlayerDead was already reported by whoever owns the health
	if reason == FailReasonTimeUp && wc.deps.Lifecycle != nil {
		wc.deps.Lifecycle.OnPlayerDeath()
	}
	wc.finishEncounter(false, reason)
}

func (wc *WaveController) finishEncounter(won bool, reason FailReason) {
	wc.state.Active = false
	wc.state.Ended = true
	wc.state.Phase = PhaseOver
	wc.pending = false

	if won {
		log.Printf("🏆 Encounter complete: %d waves, %d kills", wc.wavesCleared, wc.totalKills)
	}
	wc.publish(EventTypeEncounterOver, EncounterOverPayload{
		Won:          won,
		Reason:       reason,
		Wave:         wc.state.Index,
		WavesCleared: wc.wavesCleared,
		TotalKills:   wc.totalKills,
		Elapsed:      wc.elapsed,
	})
	if won && wc.deps.Lifecycle != nil {
		wc.deps.Lifecycle.OnEncounterComplete()
	}
}

// sweep destroys every registered enemy.
func (wc *WaveController) sweep() {
	if wc.deps.Registry != nil {
		wc.deps.Registry.Clear()
	}
}

func (wc *WaveController) publish(t EventType, payload any) {
	if wc.deps.Bus != nil {
		wc.deps.Bus.Publish(t, "wave", payload)
	}
}
