// Command simulate plays whole encounters headless, at fixed steps and as fast
// as the CPU allows, choosing rewards with a fixed policy. It prints one line
// per run and a ranking of the runs.
//
//	go run ./cmd/simulate -runs 10 -policy random -seed 42
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"wave-arena/internal/config"
	"wave-arena/internal/game"
	"wave-arena/internal/results"
)

type options struct {
	configPath string
	seed       uint64
	runs       int
	policy     string
	journal    string
	tickRate   int
	maxSeconds float64
	quiet      bool
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("💡 No .env file found, using environment variables only")
	}

	var opts options
	flag.StringVar(&opts.configPath, "config", "wave-arena.yaml", "path to the YAML config file")
	flag.Uint64Var(&opts.seed, "seed", 1, "seed of the first run; run i uses seed+i")
	flag.IntVar(&opts.runs, "runs", 1, "number of encounters to play")
	flag.StringVar(&opts.policy, "policy", "first", "reward policy: first, random or skip")
	flag.StringVar(&opts.journal, "journal", "", "write the event journal of every run to this file")
	flag.IntVar(&opts.tickRate, "tick-rate", 30, "simulation steps per simulated second")
	flag.Float64Var(&opts.maxSeconds, "max-seconds", 3600, "give up a run after this much simulated time")
	flag.BoolVar(&opts.quiet, "quiet", false, "silence per-event logging")
	flag.Parse()

	if err := run(opts); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func run(opts options) error {
	appConfig, warnings, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		log.Printf("⚠️ Config: %s", w)
	}

	policy, err := parsePolicy(opts.policy)
	if err != nil {
		return err
	}
	if opts.runs < 1 {
		opts.runs = 1
	}
	if opts.tickRate < 1 {
		opts.tickRate = 30
	}

	var journal *game.EventLog
	if opts.journal != "" {
		journal = game.NewEventLog()
		if err := journal.Start(opts.journal); err != nil {
			return err
		}
		defer func() {
			journal.Stop()
			stats := journal.Stats()
			fmt.Printf("journal: %d written, %d dropped -> %s\n", stats.Written, stats.Dropped, opts.journal)
		}()
	}

	if opts.quiet {
		log.SetOutput(io.Discard)
		defer log.SetOutput(os.Stderr)
	}

	store := results.NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	for i := 0; i < opts.runs; i++ {
		seed := opts.seed + uint64(i)
		res := simulate(appConfig.Encounter, seed, opts, policy, journal)
		saved, err := store.Save(ctx, res)
		if err != nil {
			return err
		}
		fmt.Println(formatResult(saved))
	}

	if opts.runs > 1 {
		top, err := store.Top(ctx, min(opts.runs, 5))
		if err != nil {
			return err
		}
		fmt.Println("best runs:")
		for rank, r := range top {
			fmt.Printf("  %d. %s\n", rank+1, formatResult(r))
		}
	}
	return nil
}

// rewardPolicy picks an offer slot, or -1 to skip.
type rewardPolicy func(rng *rand.Rand, offer game.RewardOffer) int

func parsePolicy(name string) (rewardPolicy, error) {
	switch strings.ToLower(name) {
	case "first":
		return func(_ *rand.Rand, offer game.RewardOffer) int {
			for i, c := range offer.Candidates {
				if !c.IsPlaceholder() {
					return i
				}
			}
			return -1
		}, nil
	case "random":
		return func(rng *rand.Rand, offer game.RewardOffer) int {
			if len(offer.Candidates) == 0 {
				return -1
			}
			return rng.IntN(len(offer.Candidates))
		}, nil
	case "skip":
		return func(*rand.Rand, game.RewardOffer) int { return -1 }, nil
	default:
		return nil, fmt.Errorf("unknown reward policy %q", name)
	}
}

func simulate(cfg config.EncounterConfig, seed uint64, opts options, policy rewardPolicy, journal *game.EventLog) results.RunResult {
	session := game.NewSession(cfg, game.SessionOptions{Seed: seed, TickRate: opts.tickRate})
	defer session.Close()

	if journal != nil {
		journal.Attach(session.Bus())
	}

	var outcome *game.EncounterOverPayload
	sub := session.Bus().Subscribe(func(e game.Event) {
		if p, ok := e.Payload.(game.EncounterOverPayload); ok {
			outcome = &p
		}
	}, game.EventTypeEncounterOver)
	defer session.Bus().Unsubscribe(sub)

	policyRng := rand.New(rand.NewPCG(seed, 0x5eed))
	dt := 1.0 / float64(opts.tickRate)
	maxSteps := int(opts.maxSeconds * float64(opts.tickRate))

	session.Begin()
	for step := 0; step < maxSteps && outcome == nil; step++ {
		session.Step(dt)

		offer, ok := session.Offer()
		if !ok {
			continue
		}
		slot := policy(policyRng, offer)
		if slot < 0 {
			logIfErr(session.SkipReward())
			continue
		}
		logIfErr(session.SelectReward(slot))
	}

	if journal != nil {
		// the next run re-attaches to its own bus
		journal.Detach()
	}

	res := results.RunResult{Seed: seed}
	if outcome == nil {
		snap := session.Snapshot()
		res.Reason = "timeout"
		res.FinalWave = snap.Wave.Index
		res.TotalKills = snap.TotalKills
		res.Elapsed = snap.Elapsed
		return res
	}
	res.Won = outcome.Won
	if !outcome.Won {
		res.Reason = outcome.Reason.String()
	}
	res.FinalWave = outcome.Wave
	res.WavesCleared = outcome.WavesCleared
	res.TotalKills = outcome.TotalKills
	res.Elapsed = outcome.Elapsed
	return res
}

func formatResult(r results.RunResult) string {
	status := "lost (" + r.Reason + ")"
	if r.Won {
		status = "won"
	}
	return fmt.Sprintf("seed %-6d %-18s reached wave %d, %d cleared, %d kills, %.1fs",
		r.Seed, status, r.FinalWave, r.WavesCleared, r.TotalKills, r.Elapsed)
}

func logIfErr(err error) {
	if err != nil {
		log.Printf("⚠️ Reward choice failed: %v", err)
	}
}
