package results

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrClosed is returned by a store after Close.
var ErrClosed = errors.New("results store closed")

// RunResult is the record of one finished encounter.
type RunResult struct {
	ID           int64     `json:"id"`
	Seed         uint64    `json:"seed"`
	Won          bool      `json:"won"`
	Reason       string    `json:"reason,omitempty"`
	FinalWave    int       `json:"finalWave"`
	WavesCleared int       `json:"wavesCleared"`
	TotalKills   int       `json:"totalKills"`
	Elapsed      float64   `json:"elapsed"`
	FinishedAt   time.Time `json:"finishedAt"`
}

// Store persists run results.
type Store interface {
	// Save stores r and returns it with its assigned ID.
	Save(ctx context.Context, r RunResult) (RunResult, error)
	// Top returns up to n results, best first.
	Top(ctx context.Context, n int) ([]RunResult, error)
	Close()
}

// Better reports whether a ranks above b: more waves cleared, then more kills,
// then the faster run, then the earlier one.
func Better(a, b RunResult) bool {
	if a.WavesCleared != b.WavesCleared {
		return a.WavesCleared > b.WavesCleared
	}
	if a.TotalKills != b.TotalKills {
		return a.TotalKills > b.TotalKills
	}
	if a.Elapsed != b.Elapsed {
		return a.Elapsed < b.Elapsed
	}
	return a.FinishedAt.Before(b.FinishedAt)
}

// MemoryStore keeps results in process. Used when no database is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	results []RunResult
	nextID  int64
	closed  bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Save(_ context.Context, r RunResult) (RunResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return RunResult{}, ErrClosed
	}
	m.nextID++
	r.ID = m.nextID
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now()
	}
	m.results = append(m.results, r)
	return r, nil
}

func (m *MemoryStore) Top(_ context.Context, n int) ([]RunResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	if n <= 0 {
		return []RunResult{}, nil
	}

	ranked := append([]RunResult(nil), m.results...)
	sort.SliceStable(ranked, func(i, j int) bool { return Better(ranked[i], ranked[j]) })
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked, nil
}

// Len returns how many results are stored.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.results)
}

func (m *MemoryStore) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}
