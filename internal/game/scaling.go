package game

import (
	"math"

	"wave-arena/internal/config"
)

// Difficulty scaling per wave index n (1-based). Indices below 1 are treated as 1.

// KillTarget returns base + (n-1)*extra.
func KillTarget(cfg config.WaveConfig, n int) int {
	n = max(n, 1)
	return cfg.BaseKillRequirement + (n-1)*max(cfg.ExtraKillsPerWave, 0)
}

// SpawnInterval returns max(min, base - (n-1)*decrease), never below config.MinInterval.
func SpawnInterval(cfg config.WaveConfig, n int) float64 {
	n = max(n, 1)
	interval := cfg.BaseSpawnInterval - float64(n-1)*math.Max(cfg.SpawnIntervalDecrease, 0)
	return math.Max(math.Max(cfg.MinSpawnInterval, config.MinInterval), interval)
}

// HealthMultiplier returns growth^(n-1).
func HealthMultiplier(cfg config.WaveConfig, n int) float64 {
	n = max(n, 1)
	return math.Pow(math.Max(cfg.HealthGrowth, 1), float64(n-1))
}
