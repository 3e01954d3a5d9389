package game

import (
	"errors"
	"log"
	"sync/atomic"
	"time"
)

// ErrQueueFull is returned when a command is dropped because the queue is saturated.
var ErrQueueFull = errors.New("command queue full")

// CommandKind identifies an external request to the session.
type CommandKind uint8

const (
	CommandSelectReward CommandKind = iota + 1
	CommandSkipReward
	CommandRestart
	CommandMoveHero
	CommandStopHero
)

func (k CommandKind) String() string {
	switch k {
	case CommandSelectReward:
		return "select_reward"
	case CommandSkipReward:
		return "skip_reward"
	case CommandRestart:
		return "restart"
	case CommandMoveHero:
		return "move_hero"
	case CommandStopHero:
		return "stop_hero"
	default:
		return "unknown"
	}
}

// Command is applied by the session at the start of its next tick.
type Command struct {
	Kind       CommandKind
	Slot       int  // CommandSelectReward
	Target     Vec2 // CommandMoveHero
	ReceivedAt time.Time

	// Reply, when set, receives the outcome. It must be buffered.
	Reply chan error
}

// CommandQueue buffers commands from HTTP handlers and other goroutines so the
// session can apply them on its own tick, never mid-update.
type CommandQueue struct {
	commands chan Command

	enqueued    atomic.Uint64
	processed   atomic.Uint64
	dropped     atomic.Uint64
	avgWaitTime atomic.Int64 // nanoseconds, exponential moving average
}

// DefaultCommandBuffer is the queue capacity used when none is given.
const DefaultCommandBuffer = 256

// NewCommandQueue creates a queue holding up to size commands.
func NewCommandQueue(size int) *CommandQueue {
	if size <= 0 {
		size = DefaultCommandBuffer
	}
	return &CommandQueue{commands: make(chan Command, size)}
}

// Enqueue adds a command without blocking. Returns false if the queue is full.
func (q *CommandQueue) Enqueue(cmd Command) bool {
	cmd.ReceivedAt = time.Now()

	select {
	case q.commands <- cmd:
		q.enqueued.Add(1)
		return true
	default:
		dropped := q.dropped.Add(1)
		if dropped%100 == 1 {
			log.Printf("⚠️ CommandQueue full, dropped %s (total dropped: %d)", cmd.Kind, dropped)
		}
		return false
	}
}

// Drain applies every command queued so far. Commands enqueued while draining
// wait for the next call.
func (q *CommandQueue) Drain(apply func(Command) error) int {
	n := len(q.commands)
	for i := 0; i < n; i++ {
		cmd := <-q.commands
		q.updateAvgWaitTime(time.Since(cmd.ReceivedAt))

		err := apply(cmd)
		if cmd.Reply != nil {
			select {
			case cmd.Reply <- err:
			default:
			}
		}
		q.processed.Add(1)
	}
	return n
}

// updateAvgWaitTime updates exponential moving average
func (q *CommandQueue) updateAvgWaitTime(waitTime time.Duration) {
	current := q.avgWaitTime.Load()
	// alpha = 0.1
	q.avgWaitTime.Store((current*9 + waitTime.Nanoseconds()) / 10)
}

// Stats returns current queue statistics
func (q *CommandQueue) Stats() QueueStats {
	return QueueStats{
		Enqueued:      q.enqueued.Load(),
		Processed:     q.processed.Load(),
		Dropped:       q.dropped.Load(),
		Pending:       uint64(len(q.commands)),
		BufferSize:    uint64(cap(q.commands)),
		AvgWaitTimeMs: float64(q.avgWaitTime.Load()) / 1e6,
	}
}

// QueueStats holds queue metrics
type QueueStats struct {
	Enqueued      uint64  `json:"enqueued"`
	Processed     uint64  `json:"processed"`
	Dropped       uint64  `json:"dropped"`
	Pending       uint64  `json:"pending"`
	BufferSize    uint64  `json:"buffer_size"`
	AvgWaitTimeMs float64 `json:"avg_wait_time_ms"`
}
