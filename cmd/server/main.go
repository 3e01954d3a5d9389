package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"wave-arena/internal/api"
	"wave-arena/internal/config"
	"wave-arena/internal/game"
	"wave-arena/internal/results"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	configPath := flag.String("config", getEnvWithDefault("CONFIG_PATH", "wave-arena.yaml"), "path to the YAML config file")
	seed := flag.Uint64("seed", 0, "random seed (0 picks one from the clock)")
	flag.Parse()

	log.Println("🌊 ================================")
	log.Println("🌊  WAVE ARENA - ENCOUNTER SERVER")
	log.Println("🌊 ================================")

	if err := run(*configPath, *seed); err != nil {
		log.Fatalf("❌ %v", err)
	}
	log.Println("✅ Shutdown complete")
}

func run(configPath string, seed uint64) error {
	appConfig, warnings, err := config.Load(configPath)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		log.Printf("⚠️ Config: %s", w)
	}
	serverCfg := appConfig.Server
	waveCfg := appConfig.Encounter.Wave
	log.Printf("🎮 Config: %d TPS, %d waves of %.0fs, %d base kills, %s spawns",
		serverCfg.TickRate, waveCfg.MaxWaves, waveCfg.Duration, waveCfg.BaseKillRequirement, appConfig.Encounter.Spawn.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session := game.NewSession(appConfig.Encounter, game.SessionOptions{
		Seed:     seed,
		TickRate: serverCfg.TickRate,
		OnTick:   api.RecordTick,
	})
	defer session.Close()
	bus := session.Bus()

	// Event journal
	journal := game.NewEventLog()
	if appConfig.EventLogPath != "" {
		if err := journal.Start(appConfig.EventLogPath); err != nil {
			log.Printf("⚠️ Event log disabled: %v", err)
		} else {
			journal.Attach(bus)
			api.RegisterJournalMetrics(journal)
			log.Printf("📝 Event log: %s", appConfig.EventLogPath)
			defer journal.Stop()
		}
	}

	metrics := api.NewMetricsRecorder(bus)
	defer metrics.Close()

	store, err := openStore(ctx, appConfig.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	recorder := results.NewRecorder(store, session.Seed(), results.DefaultRecorderBuffer)
	recorder.Attach(bus)
	defer recorder.Detach()

	server := api.NewServer(api.ServerConfig{
		Session:     session,
		Bus:         bus,
		Results:     store,
		Journal:     journal,
		AdminToken:  serverCfg.AdminToken,
		CORSOrigins: serverCfg.CORS,
	})
	defer server.Stop()

	debugSrv := api.NewDebugServer(api.ObservabilityConfig{
		Enabled:    appConfig.Debug.Enabled,
		ListenAddr: appConfig.Debug.ListenAddr,
	})

	session.Begin()
	session.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx, fmt.Sprintf(":%d", serverCfg.Port))
	})
	g.Go(func() error {
		return api.RunDebugServer(gctx, debugSrv)
	})
	g.Go(func() error {
		return recorder.Run(gctx)
	})
	g.Go(func() error {
		return api.RunSampler(gctx, session, time.Second)
	})
	if appConfig.HotReload {
		g.Go(func() error {
			return watchConfig(gctx, configPath, session)
		})
	}

	log.Printf("🌐 API: http://localhost:%d/api/state", serverCfg.Port)
	err = g.Wait()
	log.Println("🛑 Shutting down...")
	session.Stop()
	return err
}

// openStore connects to PostgreSQL when a DSN is configured, else keeps results in memory.
func openStore(ctx context.Context, dbCfg config.DatabaseConfig) (results.Store, error) {
	if dbCfg.DSN == "" {
		log.Println("💾 Results kept in memory (no DATABASE_URL)")
		return results.NewMemoryStore(), nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := results.RunMigrations(connectCtx, dbCfg.DSN); err != nil {
		return nil, err
	}
	store, err := results.NewPostgresStore(connectCtx, dbCfg.DSN)
	if err != nil {
		return nil, err
	}
	log.Println("💾 Results stored in PostgreSQL")
	return store, nil
}

// watchConfig stages every valid reload on the session. A missing config file
// disables reloading without stopping the server.
func watchConfig(ctx context.Context, path string, session *game.Session) error {
	watcher, err := config.NewWatcher(path)
	if err != nil {
		log.Printf("⚠️ Config hot reload disabled: %v", err)
		<-ctx.Done()
		return nil
	}
	defer watcher.Close()
	log.Printf("👀 Watching %s for changes", path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case r, ok := <-watcher.Updates:
			if !ok {
				return errors.New("config watcher stopped")
			}
			if r.Err != nil {
				log.Printf("⚠️ Config reload rejected: %v", r.Err)
				continue
			}
			for _, w := range r.Warnings {
				log.Printf("⚠️ Config: %s", w)
			}
			session.StageConfig(r.Encounter)
		}
	}
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
