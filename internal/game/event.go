package game

import (
	"time"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeWaveStarted
	EventTypeWaveCompleted
	EventTypeWaveFailed
	EventTypeKillCountChanged
	EventTypeTimerTick
	EventTypeEncounterOver
	EventTypeEnemySpawned
	EventTypeEnemyKilled
	EventTypeDamage
	EventTypePlayerDied
	EventTypeRewardOffered
	EventTypeRewardApplied
	EventTypeEncounterReset
)

// EventVersion for backwards compatibility of the journal
const EventVersion uint8 = 1

// Event is what the bus fans out and the journal records.
type Event struct {
	Version   uint8     `json:"version"`
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"` // Unix nano
	Sequence  uint64    `json:"sequence"`  // Monotonic per bus
	TickNum   uint64    `json:"tickNum"`   // Session tick this occurred in
	Source    string    `json:"source"`    // Emitting component (for rate limiting)
	Payload   any       `json:"payload"`
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeWaveStarted:
		return "wave_started"
	case EventTypeWaveCompleted:
		return "wave_completed"
	case EventTypeWaveFailed:
		return "wave_failed"
	case EventTypeKillCountChanged:
		return "kill_count_changed"
	case EventTypeTimerTick:
		return "timer_tick"
	case EventTypeEncounterOver:
		return "encounter_over"
	case EventTypeEnemySpawned:
		return "enemy_spawned"
	case EventTypeEnemyKilled:
		return "enemy_killed"
	case EventTypeDamage:
		return "damage"
	case EventTypePlayerDied:
		return "player_died"
	case EventTypeRewardOffered:
		return "reward_offered"
	case EventTypeRewardApplied:
		return "reward_applied"
	case EventTypeEncounterReset:
		return "encounter_reset"
	default:
		return "unknown"
	}
}

// MarshalText encodes the type by name so journals stay readable.
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// FailReason says why a wave was lost.
type FailReason uint8

const (
	FailReasonPlayerDead FailReason = iota + 1
	FailReasonTimeUp
)

func (r FailReason) String() string {
	switch r {
	case FailReasonPlayerDead:
		return "player_dead"
	case FailReasonTimeUp:
		return "time_up"
	default:
		return "unknown"
	}
}

func (r FailReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Typed payloads for different event types

type WaveStartedPayload struct {
	Wave          int     `json:"wave"`
	KillTarget    int     `json:"killTarget"`
	Duration      float64 `json:"duration"`
	SpawnInterval float64 `json:"spawnInterval"`
}

type WaveCompletedPayload struct {
	Wave  int `json:"wave"`
	Kills int `json:"kills"`
}

type WaveFailedPayload struct {
	Reason FailReason `json:"reason"`
	Wave   int        `json:"wave"`
	Kills  int        `json:"kills"`
}

type KillCountPayload struct {
	Current  int `json:"current"`
	Required int `json:"required"`
}

type TimerPayload struct {
	TimeRemaining float64 `json:"timeRemaining"`
}

// EncounterOverPayload closes an encounter, won or lost.
type EncounterOverPayload struct {
	Won          bool       `json:"won"`
	Reason       FailReason `json:"reason,omitempty"`
	Wave         int        `json:"wave"`
	WavesCleared int        `json:"wavesCleared"`
	TotalKills   int        `json:"totalKills"`
	Elapsed      float64    `json:"elapsed"`
}

type EnemySpawnedPayload struct {
	EnemyID   string  `json:"enemyId"`
	Archetype string  `json:"archetype"`
	Position  Vec2    `json:"position"`
	MaxHealth float64 `json:"maxHealth"`
}

type EnemyKilledPayload struct {
	EnemyID  string `json:"enemyId"`
	KillerID string `json:"killerId"`
}

type DamagePayload struct {
	AttackerID string  `json:"attackerId"`
	DefenderID string  `json:"defenderId"`
	Amount     float64 `json:"amount"`
	Died       bool    `json:"died"`
}

type PlayerDiedPayload struct {
	Wave int `json:"wave"`
}

type RewardOfferedPayload struct {
	Wave       int               `json:"wave"`
	Candidates []RewardCandidate `json:"candidates"`
}

type RewardAppliedPayload struct {
	Wave      int             `json:"wave"`
	Candidate RewardCandidate `json:"candidate"`
	Skipped   bool            `json:"skipped"`
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, tickNum uint64, source string, payload any) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		Source:    source,
		Payload:   payload,
	}
}
