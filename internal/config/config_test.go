package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, warnings, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Empty(t, warnings)

	def := Default()
	assert.Equal(t, def.Encounter.Wave, cfg.Encounter.Wave)
	assert.Equal(t, 30.0, cfg.Encounter.Wave.Duration)
	assert.Equal(t, 30, cfg.Encounter.Wave.BaseKillRequirement)
	assert.Equal(t, 5, cfg.Encounter.Wave.MaxWaves)
	assert.Equal(t, 3, cfg.Encounter.Reward.Slots)
	assert.Len(t, cfg.Encounter.Reward.Catalog, 6)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arena.yaml")
	data := `
encounter:
  wave:
    duration: 45
    base_kill_requirement: 10
    max_waves: 3
  spawn:
    mode: area
    padding: 1.5
  reward:
    slots: 4
    allow_duplicates: false
    catalog:
      - name: Whetstone
        kind: attack_power
        magnitude: 2
        rarity: common
        weight_override: 7
      - name: Nothing Special
        kind: max_hp
        magnitude: 5
        rarity: rare
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, warnings, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	w := cfg.Encounter.Wave
	assert.Equal(t, 45.0, w.Duration)
	assert.Equal(t, 10, w.BaseKillRequirement)
	assert.Equal(t, 3, w.MaxWaves)
	// untouched keys keep their defaults
	assert.Equal(t, 5, w.ExtraKillsPerWave)
	assert.Equal(t, 1.2, w.HealthGrowth)

	assert.Equal(t, PlacementArea, cfg.Encounter.Spawn.Mode)
	assert.Equal(t, 1.5, cfg.Encounter.Spawn.Padding)

	r := cfg.Encounter.Reward
	assert.Equal(t, 4, r.Slots)
	assert.False(t, r.AllowDuplicates)
	require.Len(t, r.Catalog, 2)
	require.NotNil(t, r.Catalog[0].WeightOverride)
	assert.Equal(t, 7.0, *r.Catalog[0].WeightOverride)
	assert.Nil(t, r.Catalog[1].WeightOverride)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("encounter: [unclosed"), 0o644))

	_, _, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arena.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0o644))

	t.Setenv("PORT", "9090")
	t.Setenv("MAX_WAVES", "7")
	t.Setenv("DATABASE_URL", "postgres://localhost/arena")
	t.Setenv("DISABLE_DEBUG_SERVER", "true")

	cfg, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 7, cfg.Encounter.Wave.MaxWaves)
	assert.Equal(t, "postgres://localhost/arena", cfg.Database.DSN)
	assert.False(t, cfg.Debug.Enabled)
}

func TestLoadEncounter_KeepsEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arena.yaml")
	require.NoError(t, os.WriteFile(path, []byte("encounter:\n  wave:\n    max_waves: 4\n    base_kill_requirement: 12\n"), 0o644))

	t.Setenv("MAX_WAVES", "2")
	t.Setenv("WAVE_DURATION", "90")

	startup, _, err := Load(path)
	require.NoError(t, err)

	reloaded, _, err := LoadEncounter(path)
	require.NoError(t, err)
	assert.Equal(t, startup.Encounter.Wave, reloaded.Wave, "a reload sees the same env as startup")
	assert.Equal(t, 2, reloaded.Wave.MaxWaves)
	assert.Equal(t, 90.0, reloaded.Wave.Duration)
	assert.Equal(t, 12, reloaded.Wave.BaseKillRequirement)
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*EncounterConfig)
		check  func(*testing.T, EncounterConfig)
	}{
		{
			name:   "negative duration clamps to minimum",
			mutate: func(c *EncounterConfig) { c.Wave.Duration = -5 },
			check: func(t *testing.T, c EncounterConfig) {
				assert.Equal(t, MinWaveDuration, c.Wave.Duration)
			},
		},
		{
			name: "zero spawn intervals clamp to minimum",
			mutate: func(c *EncounterConfig) {
				c.Wave.BaseSpawnInterval = 0
				c.Wave.MinSpawnInterval = 0
			},
			check: func(t *testing.T, c EncounterConfig) {
				assert.Equal(t, MinInterval, c.Wave.MinSpawnInterval)
				assert.Equal(t, MinInterval, c.Wave.BaseSpawnInterval)
			},
		},
		{
			name: "base interval below floor is raised",
			mutate: func(c *EncounterConfig) {
				c.Wave.BaseSpawnInterval = 0.2
				c.Wave.MinSpawnInterval = 0.3
			},
			check: func(t *testing.T, c EncounterConfig) {
				assert.Equal(t, 0.3, c.Wave.BaseSpawnInterval)
			},
		},
		{
			name:   "contact interval clamps",
			mutate: func(c *EncounterConfig) { c.Combat.ContactInterval = -1 },
			check: func(t *testing.T, c EncounterConfig) {
				assert.Equal(t, MinInterval, c.Combat.ContactInterval)
			},
		},
		{
			name:   "retarget interval clamps",
			mutate: func(c *EncounterConfig) { c.Combat.RetargetInterval = 0 },
			check: func(t *testing.T, c EncounterConfig) {
				assert.Equal(t, MinInterval, c.Combat.RetargetInterval)
			},
		},
		{
			name:   "ring radii reordered",
			mutate: func(c *EncounterConfig) { c.Spawn.MinRadius, c.Spawn.MaxRadius = 10, 4 },
			check: func(t *testing.T, c EncounterConfig) {
				assert.Equal(t, 10.0, c.Spawn.MaxRadius)
			},
		},
		{
			name:   "unknown placement mode falls back to ring",
			mutate: func(c *EncounterConfig) { c.Spawn.Mode = "spiral" },
			check: func(t *testing.T, c EncounterConfig) {
				assert.Equal(t, PlacementRing, c.Spawn.Mode)
			},
		},
		{
			name: "non-positive counts clamp",
			mutate: func(c *EncounterConfig) {
				c.Wave.MaxWaves = 0
				c.Wave.BaseKillRequirement = -3
				c.Reward.Slots = 0
			},
			check: func(t *testing.T, c EncounterConfig) {
				assert.Equal(t, 1, c.Wave.MaxWaves)
				assert.Equal(t, 1, c.Wave.BaseKillRequirement)
				assert.Equal(t, 3, c.Reward.Slots)
			},
		},
		{
			name:   "shrinking health growth clamps to one",
			mutate: func(c *EncounterConfig) { c.Wave.HealthGrowth = 0.5 },
			check: func(t *testing.T, c EncounterConfig) {
				assert.Equal(t, 1.0, c.Wave.HealthGrowth)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultEncounter()
			tt.mutate(&cfg)
			warnings := cfg.Sanitize()
			tt.check(t, cfg)
			assert.NotEmpty(t, warnings)
		})
	}
}

func TestSanitize_DefaultsAreClean(t *testing.T) {
	cfg := DefaultEncounter()
	assert.Empty(t, cfg.Sanitize())
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arena.yaml")
	require.NoError(t, os.WriteFile(path, []byte("encounter:\n  wave:\n    max_waves: 2\n"), 0o644))

	w, err := NewWatcher(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("encounter:\n  wave:\n    max_waves: 9\n"), 0o644))

	select {
	case r := <-w.Updates:
		require.NoError(t, r.Err)
		assert.Equal(t, 9, r.Encounter.Wave.MaxWaves)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload observed")
	}
}

func TestWatcher_CloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arena.yaml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

	w, err := NewWatcher(path)
	require.NoError(t, err)
	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())

	_, open := <-w.Updates
	assert.False(t, open)
}
