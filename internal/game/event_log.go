package game

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	JournalBufferSize      = 1024                   // Circular buffer size
	MaxJournalEventsPerSec = 5000                   // Global rate limit
	MaxEventsPerSource     = 1000                   // Per-source rate limit per second
	JournalFlushSize       = 64                     // Events per batch write
	JournalFlushInterval   = 100 * time.Millisecond // How often to flush
	SourceLimiterCleanup   = 5 * time.Minute        // Idle time before a source limiter is dropped
)

// EventLog journals bus events as newline-delimited JSON.
// Emission is bounded and rate-limited; a noisy source is throttled before it can starve the rest.
type EventLog struct {
	// Circular buffer; writeHead and readHead are sequence numbers, guarded by bufMu
	bufMu     sync.Mutex
	buffer    [JournalBufferSize]Event
	writeHead uint64
	readHead  uint64

	globalLimiter  *rate.Limiter
	sourceLimiters sync.Map // map[string]*sourceLimiterEntry

	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	file   *os.File
	fileMu sync.Mutex

	sub *Subscription
	bus *EventBus

	dropped atomic.Uint64
	total   atomic.Uint64
	written atomic.Uint64
}

type sourceLimiterEntry struct {
	limiter  *rate.Limiter
	lastUsed atomic.Int64 // unix nano
}

// JournalStats is a point-in-time view of the journal counters.
type JournalStats struct {
	Total   uint64 `json:"total"`
	Dropped uint64 `json:"dropped"`
	Written uint64 `json:"written"`
	Pending uint64 `json:"pending"`
	Running bool   `json:"running"`
}

// NewEventLog creates a stopped journal.
func NewEventLog() *EventLog {
	return &EventLog{
		globalLimiter: rate.NewLimiter(MaxJournalEventsPerSec, MaxJournalEventsPerSec/10),
		stopChan:      make(chan struct{}),
	}
}

// Start opens filePath for append and launches the writer. An empty path keeps
// counting events without writing them anywhere.
func (el *EventLog) Start(filePath string) error {
	if el.running.Load() {
		return nil
	}

	if filePath != "" {
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("opening event journal %s: %w", filePath, err)
		}
		el.file = file
	}

	el.running.Store(true)
	el.writerWg.Add(2)
	go el.writerLoop()
	go el.cleanupLoop()
	return nil
}

// Attach subscribes the journal to every event on bus.
func (el *EventLog) Attach(bus *EventBus) {
	el.bus = bus
	el.sub = bus.Subscribe(func(e Event) { el.Emit(e) })
}

// Detach unsubscribes from the bus given to Attach. The journal keeps running.
func (el *EventLog) Detach() {
	if el.bus != nil {
		el.bus.Unsubscribe(el.sub)
		el.bus, el.sub = nil, nil
	}
}

// Stop detaches from the bus, flushes what is buffered and closes the file.
func (el *EventLog) Stop() {
	el.stopOnce.Do(func() {
		el.Detach()
		el.running.Store(false)
		close(el.stopChan)
		el.writerWg.Wait()

		el.fileMu.Lock()
		if el.file != nil {
			el.file.Close()
		}
		el.fileMu.Unlock()
	})
}

// Emit buffers an event. Returns false if it was rate limited or the journal is stopped.
func (el *EventLog) Emit(event Event) bool {
	if !el.running.Load() {
		return false
	}

	// source first, so a throttled source never spends the global burst
	if event.Source != "" && !el.sourceLimiter(event.Source).Allow() {
		el.dropped.Add(1)
		return false
	}
	if !el.globalLimiter.Allow() {
		el.dropped.Add(1)
		return false
	}

	el.bufMu.Lock()
	el.writeHead++
	if el.writeHead-el.readHead > JournalBufferSize {
		// overwrite the oldest entry
		el.readHead++
		el.dropped.Add(1)
	}
	el.buffer[el.writeHead%JournalBufferSize] = event
	el.bufMu.Unlock()

	el.total.Add(1)
	return true
}

func (el *EventLog) sourceLimiter(source string) *rate.Limiter {
	now := time.Now().UnixNano()
	if v, ok := el.sourceLimiters.Load(source); ok {
		e := v.(*sourceLimiterEntry)
		e.lastUsed.Store(now)
		return e.limiter
	}

	entry := &sourceLimiterEntry{
		limiter: rate.NewLimiter(MaxEventsPerSource, MaxEventsPerSource/10),
	}
	entry.lastUsed.Store(now)
	actual, _ := el.sourceLimiters.LoadOrStore(source, entry)
	return actual.(*sourceLimiterEntry).limiter
}

func (el *EventLog) writerLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(JournalFlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, JournalFlushSize)
	for {
		select {
		case <-el.stopChan:
			for {
				batch = el.collectBatch(batch[:0])
				if len(batch) == 0 {
					return
				}
				el.flushBatch(batch)
			}
		case <-ticker.C:
			batch = el.collectBatch(batch[:0])
			if len(batch) > 0 {
				el.flushBatch(batch)
			}
		}
	}
}

func (el *EventLog) cleanupLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(SourceLimiterCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-el.stopChan:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-SourceLimiterCleanup).UnixNano()
			el.sourceLimiters.Range(func(key, value any) bool {
				if value.(*sourceLimiterEntry).lastUsed.Load() < cutoff {
					el.sourceLimiters.Delete(key)
				}
				return true
			})
		}
	}
}

// collectBatch reads up to JournalFlushSize events in sequence order.
func (el *EventLog) collectBatch(batch []Event) []Event {
	el.bufMu.Lock()
	defer el.bufMu.Unlock()

	for el.readHead < el.writeHead && len(batch) < JournalFlushSize {
		el.readHead++
		batch = append(batch, el.buffer[el.readHead%JournalBufferSize])
	}
	return batch
}

func (el *EventLog) flushBatch(batch []Event) {
	el.fileMu.Lock()
	defer el.fileMu.Unlock()

	if el.file == nil {
		return
	}

	for _, event := range batch {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		data = append(data, '\n')
		if _, err := el.file.Write(data); err != nil {
			return
		}
		el.written.Add(1)
	}
}

// Stats returns the journal counters.
func (el *EventLog) Stats() JournalStats {
	el.bufMu.Lock()
	pending := el.writeHead - el.readHead
	el.bufMu.Unlock()

	return JournalStats{
		Total:   el.total.Load(),
		Dropped: el.dropped.Load(),
		Written: el.written.Load(),
		Pending: pending,
		Running: el.running.Load(),
	}
}
