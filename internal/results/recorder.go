package results

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"wave-arena/internal/game"
)

const (
	// DefaultRecorderBuffer is the number of finished runs waiting to be saved.
	DefaultRecorderBuffer = 32
	saveTimeout           = 5 * time.Second
)

// Recorder turns EncounterOver events into stored RunResults. The bus handler
// only enqueues; Run does the saving on its own goroutine so the tick never
// waits on the database.
type Recorder struct {
	store Store
	seed  uint64
	queue chan RunResult

	bus *game.EventBus
	sub *game.Subscription

	saved   atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// RecorderStats holds recorder counters.
type RecorderStats struct {
	Saved   uint64 `json:"saved"`
	Dropped uint64 `json:"dropped"`
	Failed  uint64 `json:"failed"`
	Pending int    `json:"pending"`
}

// NewRecorder creates a recorder tagging every result with seed.
func NewRecorder(store Store, seed uint64, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = DefaultRecorderBuffer
	}
	return &Recorder{
		store: store,
		seed:  seed,
		queue: make(chan RunResult, buffer),
	}
}

// Attach subscribes to EncounterOver on bus.
func (r *Recorder) Attach(bus *game.EventBus) {
	r.bus = bus
	r.sub = bus.Subscribe(r.handle, game.EventTypeEncounterOver)
}

// Detach removes the bus subscription.
func (r *Recorder) Detach() {
	if r.bus != nil {
		r.bus.Unsubscribe(r.sub)
		r.sub = nil
	}
}

func (r *Recorder) handle(e game.Event) {
	p, ok := e.Payload.(game.EncounterOverPayload)
	if !ok {
		return
	}
	res := RunResult{
		Seed:         r.seed,
		Won:          p.Won,
		FinalWave:    p.Wave,
		WavesCleared: p.WavesCleared,
		TotalKills:   p.TotalKills,
		Elapsed:      p.Elapsed,
		FinishedAt:   time.Unix(0, e.Timestamp),
	}
	if !p.Won {
		res.Reason = p.Reason.String()
	}

	select {
	case r.queue <- res:
	default:
		r.dropped.Add(1)
		log.Printf("⚠️ Run result dropped: recorder queue full")
	}
}

// Run saves queued results until ctx is done, then flushes what is left.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case res := <-r.queue:
			r.save(ctx, res)
		case <-ctx.Done():
			r.flush(context.WithoutCancel(ctx))
			return nil
		}
	}
}

func (r *Recorder) flush(ctx context.Context) {
	for {
		select {
		case res := <-r.queue:
			r.save(ctx, res)
		default:
			return
		}
	}
}

func (r *Recorder) save(ctx context.Context, res RunResult) {
	ctx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()

	stored, err := r.store.Save(ctx, res)
	if err != nil {
		r.failed.Add(1)
		log.Printf("⚠️ Failed to save run result: %v", err)
		return
	}
	r.saved.Add(1)
	log.Printf("💾 Run #%d saved: %d waves, %d kills", stored.ID, stored.WavesCleared, stored.TotalKills)
}

// Stats returns recorder counters.
func (r *Recorder) Stats() RecorderStats {
	return RecorderStats{
		Saved:   r.saved.Load(),
		Dropped: r.dropped.Load(),
		Failed:  r.failed.Load(),
		Pending: len(r.queue),
	}
}
