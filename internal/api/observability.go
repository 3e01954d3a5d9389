package api

import (
	"context"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wave-arena/internal/game"
)

// Metrics keep bounded label sets: no per-enemy or per-client labels.
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wave_arena_tick_duration_seconds",
		Help:    "Time spent in one simulation tick",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05},
	})

	wavesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wave_arena_waves_started_total",
		Help: "Waves started",
	})

	wavesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wave_arena_waves_completed_total",
		Help: "Waves completed by reaching the kill target",
	})

	wavesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wave_arena_waves_failed_total",
		Help: "Waves failed",
	}, []string{"reason"}) // "player_dead", "time_up"

	encountersFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wave_arena_encounters_finished_total",
		Help: "Encounters that reached a final outcome",
	}, []string{"outcome"}) // "won", "lost"

	enemiesSpawned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wave_arena_enemies_spawned_total",
		Help: "Enemies spawned",
	})

	enemiesKilled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wave_arena_enemies_killed_total",
		Help: "Enemies killed",
	})

	rewardsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wave_arena_rewards_total",
		Help: "Reward offers resolved",
	}, []string{"choice"}) // "picked", "skipped"

	currentWave = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wave_arena_current_wave",
		Help: "Index of the current or last wave",
	})

	enemiesAlive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wave_arena_enemies_alive",
		Help: "Enemies alive in the latest snapshot",
	})

	heroHealth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wave_arena_hero_health",
		Help: "Hero health in the latest snapshot",
	})

	commandsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wave_arena_commands_pending",
		Help: "Commands waiting for the next tick",
	})

	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter, origin or auth check",
	}, []string{"reason"}) // "rate_limit", "origin", "auth", "ws_ip_limit", "ws_total_limit"

	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"}) // endpoint is the route pattern, not the URL

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total WebSocket messages broadcast",
	})
)

// ObservabilityConfig configures the debug server
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string // keep on loopback
	BasicAuthUser string // Optional basic auth
	BasicAuthPass string
}

// DefaultObservabilityConfig returns safe defaults
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// NewDebugServer builds the pprof and /metrics server, or returns nil when disabled.
// Non-loopback addresses are forced to 127.0.0.1 unless ALLOW_DEBUG_EXTERNAL=true.
func NewDebugServer(cfg ObservabilityConfig) *http.Server {
	if !cfg.Enabled {
		log.Println("📊 Debug server disabled")
		return nil
	}

	if !isLoopback(cfg.ListenAddr) && os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
		log.Println("⚠️ Debug server forced to localhost for security")
		cfg.ListenAddr = DefaultObservabilityConfig().ListenAddr
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	var handler http.Handler = mux
	if cfg.BasicAuthUser != "" {
		handler = basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass, mux)
	}

	return &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// RunDebugServer serves srv until ctx is done. A nil server blocks until ctx is done.
func RunDebugServer(ctx context.Context, srv *http.Server) error {
	if srv == nil {
		<-ctx.Done()
		return nil
	}
	log.Printf("📊 Debug server starting on %s", srv.Addr)
	log.Printf("   - pprof:   http://%s/debug/pprof/", srv.Addr)
	log.Printf("   - metrics: http://%s/metrics", srv.Addr)
	return serveUntilDone(ctx, srv)
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || !secureEqual(u, user) || !secureEqual(p, pass) {
			w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// MetricsRecorder feeds encounter events into the Prometheus counters.
type MetricsRecorder struct {
	bus *game.EventBus
	sub *game.Subscription
}

// NewMetricsRecorder subscribes to bus. Its handler only touches atomics, so it is safe on the tick.
func NewMetricsRecorder(bus *game.EventBus) *MetricsRecorder {
	m := &MetricsRecorder{bus: bus}
	m.sub = bus.Subscribe(m.handle,
		game.EventTypeWaveStarted,
		game.EventTypeWaveCompleted,
		game.EventTypeWaveFailed,
		game.EventTypeEncounterOver,
		game.EventTypeEnemySpawned,
		game.EventTypeEnemyKilled,
		game.EventTypeRewardApplied,
	)
	return m
}

// Close removes the bus subscription.
func (m *MetricsRecorder) Close() {
	m.bus.Unsubscribe(m.sub)
}

func (m *MetricsRecorder) handle(e game.Event) {
	switch p := e.Payload.(type) {
	case game.WaveStartedPayload:
		wavesStarted.Inc()
		currentWave.Set(float64(p.Wave))
	case game.WaveCompletedPayload:
		wavesCompleted.Inc()
	case game.WaveFailedPayload:
		wavesFailed.WithLabelValues(p.Reason.String()).Inc()
	case game.EncounterOverPayload:
		if p.Won {
			encountersFinished.WithLabelValues("won").Inc()
		} else {
			encountersFinished.WithLabelValues("lost").Inc()
		}
	case game.EnemySpawnedPayload:
		enemiesSpawned.Inc()
	case game.EnemyKilledPayload:
		enemiesKilled.Inc()
	case game.RewardAppliedPayload:
		if p.Skipped {
			rewardsApplied.WithLabelValues("skipped").Inc()
		} else {
			rewardsApplied.WithLabelValues("picked").Inc()
		}
	}
}

// SampleSnapshot sets the gauges from the latest snapshot.
func SampleSnapshot(snap *game.Snapshot, queue game.QueueStats) {
	if snap == nil {
		return
	}
	currentWave.Set(float64(snap.Wave.Index))
	enemiesAlive.Set(float64(len(snap.Enemies)))
	heroHealth.Set(snap.Hero.Health)
	commandsPending.Set(float64(queue.Pending))
}

// RunSampler samples the session gauges every interval until ctx is done.
func RunSampler(ctx context.Context, session SessionController, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			SampleSnapshot(session.Snapshot(), session.QueueStats())
		}
	}
}

// RegisterJournalMetrics exposes the event journal counters. Call once per process.
func RegisterJournalMetrics(journal JournalStatsSource) {
	promauto.NewCounterFunc(prometheus.CounterOpts{
		Name: "event_log_total",
		Help: "Total events offered to the journal",
	}, func() float64 { return float64(journal.Stats().Total) })

	promauto.NewCounterFunc(prometheus.CounterOpts{
		Name: "event_log_dropped_total",
		Help: "Journal events dropped due to rate limiting or a full buffer",
	}, func() float64 { return float64(journal.Stats().Dropped) })
}

// RecordTick records tick timing for metrics
func RecordTick(duration time.Duration) {
	tickDuration.Observe(duration.Seconds())
}

// RecordConnectionRejected increments the rejection counter.
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
}

// UpdateWSConnections updates WebSocket connection count
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages increments WebSocket message counter
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}
