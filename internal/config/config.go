// Package config provides centralized configuration management.
// Defaults live here; a YAML file and environment variables override them.
//
// Load order: defaults -> YAML file (optional) -> environment -> Sanitize.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// WAVE CONFIGURATION
// =============================================================================

// WaveConfig holds wave pacing and difficulty scaling. All times are seconds.
type WaveConfig struct {
	Duration              float64 `yaml:"duration"`                // Seconds per wave before TimeUp
	BaseKillRequirement   int     `yaml:"base_kill_requirement"`   // Kills needed on wave 1
	ExtraKillsPerWave     int     `yaml:"extra_kills_per_wave"`    // Added per wave after the first
	BaseSpawnInterval     float64 `yaml:"base_spawn_interval"`     // Spawn cadence on wave 1
	MinSpawnInterval      float64 `yaml:"min_spawn_interval"`      // Floor for the spawn cadence
	SpawnIntervalDecrease float64 `yaml:"spawn_interval_decrease"` // Cadence reduction per wave
	HealthGrowth          float64 `yaml:"health_growth"`           // Enemy max health multiplier base
	MaxWaves              int     `yaml:"max_waves"`               // Encounter ends after this wave
	StartDelay            float64 `yaml:"start_delay"`             // Delay before the first wave
	NextWaveDelay         float64 `yaml:"next_wave_delay"`         // Delay after a reward is chosen
}

// DefaultWave returns the default wave configuration.
func DefaultWave() WaveConfig {
	return WaveConfig{
		Duration:              30,
		BaseKillRequirement:   30,
		ExtraKillsPerWave:     5,
		BaseSpawnInterval:     1.0,
		MinSpawnInterval:      0.3,
		SpawnIntervalDecrease: 0.1,
		HealthGrowth:          1.2,
		MaxWaves:              5,
		StartDelay:            2.0,
		NextWaveDelay:         1.0,
	}
}

// =============================================================================
// SPAWN CONFIGURATION
// =============================================================================

// Placement modes for spawned enemies.
const (
	PlacementArea = "area" // Uniform inside a padded rectangle
	PlacementRing = "ring" // Uniform ring around the player
)

// Rect is an axis-aligned rectangle in world units.
type Rect struct {
	MinX float64 `yaml:"min_x"`
	MinY float64 `yaml:"min_y"`
	MaxX float64 `yaml:"max_x"`
	MaxY float64 `yaml:"max_y"`
}

// EnemyArchetype describes one kind of enemy the default factory can create.
type EnemyArchetype struct {
	Name     string  `yaml:"name"`
	Behavior string  `yaml:"behavior"` // "contact" or "ranged"
	Weight   float64 `yaml:"weight"`   // Relative pick weight
	Health   float64 `yaml:"health"`
	Speed    float64 `yaml:"speed"`

	// Contact behavior
	ContactDamage float64 `yaml:"contact_damage"`
	ContactRange  float64 `yaml:"contact_range"`

	// Ranged behavior
	AttackRange     float64 `yaml:"attack_range"`
	MinDistance     float64 `yaml:"min_distance"`
	AttackCooldown  float64 `yaml:"attack_cooldown"`
	ProjectileSpeed float64 `yaml:"projectile_speed"`
	ProjectileDmg   float64 `yaml:"projectile_damage"`
	ProjectileLife  float64 `yaml:"projectile_lifetime"`
}

// SpawnConfig holds enemy placement settings.
type SpawnConfig struct {
	Mode      string           `yaml:"mode"`
	Area      Rect             `yaml:"area"`
	Padding   float64          `yaml:"padding"`
	MinRadius float64          `yaml:"min_radius"`
	MaxRadius float64          `yaml:"max_radius"`
	Enemies   []EnemyArchetype `yaml:"enemies"`
}

// DefaultSpawn returns the default spawn configuration.
func DefaultSpawn() SpawnConfig {
	return SpawnConfig{
		Mode:      PlacementRing,
		Area:      Rect{MinX: -20, MinY: -12, MaxX: 20, MaxY: 12},
		Padding:   0.5,
		MinRadius: 8,
		MaxRadius: 12,
		Enemies: []EnemyArchetype{
			{
				Name:          "grunt",
				Behavior:      "contact",
				Weight:        80,
				Health:        30,
				Speed:         2.5,
				ContactDamage: 10,
				ContactRange:  0.8,
			},
			{
				Name:            "spitter",
				Behavior:        "ranged",
				Weight:          20,
				Health:          50,
				Speed:           3,
				AttackRange:     5,
				MinDistance:     3,
				AttackCooldown:  2,
				ProjectileSpeed: 10,
				ProjectileDmg:   5,
				ProjectileLife:  5,
			},
		},
	}
}

// =============================================================================
// COMBAT CONFIGURATION
// =============================================================================

// Contact cooldown scopes.
const (
	ContactScopePair     = "pair"     // One cooldown per attacker/defender pair
	ContactScopeAttacker = "attacker" // One cooldown per attacker (area contact)
)

// CombatConfig holds damage pacing and targeting settings.
type CombatConfig struct {
	ContactInterval  float64 `yaml:"contact_interval"`
	ContactScope     string  `yaml:"contact_scope"`
	RetargetInterval float64 `yaml:"retarget_interval"`
	SearchRadius     float64 `yaml:"search_radius"`
}

// DefaultCombat returns the default combat configuration.
func DefaultCombat() CombatConfig {
	return CombatConfig{
		ContactInterval:  0.5,
		ContactScope:     ContactScopePair,
		RetargetInterval: 0.15,
		SearchRadius:     30,
	}
}

// =============================================================================
// HERO CONFIGURATION
// =============================================================================

// HeroConfig holds the player avatar's base stats.
type HeroConfig struct {
	X               float64 `yaml:"x"`
	Y               float64 `yaml:"y"`
	MaxHealth       float64 `yaml:"max_health"`
	MaxEnergy       float64 `yaml:"max_energy"`
	HealthRegen     float64 `yaml:"health_regen"` // Per second
	EnergyRegen     float64 `yaml:"energy_regen"` // Per second
	MoveSpeed       float64 `yaml:"move_speed"`
	AttackDamage    float64 `yaml:"attack_damage"`
	AttackCooldown  float64 `yaml:"attack_cooldown"` // Also the swing duration
	AttackRange     float64 `yaml:"attack_range"`
	SpecialCost     float64 `yaml:"special_cost"`
	SpecialDamage   float64 `yaml:"special_damage"`
	SpecialRadius   float64 `yaml:"special_radius"`
	SpecialDuration float64 `yaml:"special_duration"`
	EnergyPerHit    float64 `yaml:"energy_per_hit"`
}

// DefaultHero returns the default hero configuration.
func DefaultHero() HeroConfig {
	return HeroConfig{
		MaxHealth:       100,
		MaxEnergy:       100,
		MoveSpeed:       5,
		AttackDamage:    15,
		AttackCooldown:  0.5,
		AttackRange:     1.6,
		SpecialCost:     100,
		SpecialDamage:   40,
		SpecialRadius:   3,
		SpecialDuration: 0.8,
		EnergyPerHit:    10,
	}
}

// =============================================================================
// REWARD CONFIGURATION
// =============================================================================

// RarityWeights maps each rarity tier to its draw weight.
type RarityWeights struct {
	Common    float64 `yaml:"common"`
	Uncommon  float64 `yaml:"uncommon"`
	Rare      float64 `yaml:"rare"`
	Epic      float64 `yaml:"epic"`
	Legendary float64 `yaml:"legendary"`
}

// RewardEntry is one catalog item as written in the config file.
type RewardEntry struct {
	Name           string   `yaml:"name"`
	Description    string   `yaml:"description"`
	Kind           string   `yaml:"kind"`
	Magnitude      float64  `yaml:"magnitude"`
	Rarity         string   `yaml:"rarity"`
	WeightOverride *float64 `yaml:"weight_override,omitempty"` // Used when set and >= 0
}

// RewardConfig holds the reward catalog and draw options.
type RewardConfig struct {
	Slots           int           `yaml:"slots"`
	AllowDuplicates bool          `yaml:"allow_duplicates"`
	Weights         RarityWeights `yaml:"weights"`
	Catalog         []RewardEntry `yaml:"catalog"`
}

// DefaultReward returns the default reward configuration.
func DefaultReward() RewardConfig {
	return RewardConfig{
		Slots:           3,
		AllowDuplicates: true,
		Weights: RarityWeights{
			Common:    100,
			Uncommon:  60,
			Rare:      25,
			Epic:      10,
			Legendary: 3,
		},
		Catalog: []RewardEntry{
			{Name: "Sharpened Edge", Description: "+5 attack damage", Kind: "attack_power", Magnitude: 5, Rarity: "common"},
			{Name: "Quick Hands", Description: "-15% attack cooldown", Kind: "attack_speed", Magnitude: 0.15, Rarity: "uncommon"},
			{Name: "Light Boots", Description: "+15% move speed", Kind: "movement_speed", Magnitude: 0.15, Rarity: "common"},
			{Name: "Vitality", Description: "+25 max health", Kind: "max_hp", Magnitude: 25, Rarity: "common"},
			{Name: "Regrowth", Description: "+1 health per second", Kind: "hp_regen", Magnitude: 1, Rarity: "rare"},
			{Name: "Focus", Description: "+5 energy per second", Kind: "energy_regen", Magnitude: 5, Rarity: "epic"},
		},
	}
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server and simulation loop settings.
type ServerConfig struct {
	Port       int      `yaml:"port"`
	TickRate   int      `yaml:"tick_rate"` // Simulation steps per second
	AdminToken string   `yaml:"admin_token"`
	CORS       []string `yaml:"cors_origins"`
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:     3000,
		TickRate: 30,
	}
}

// DebugConfig controls the localhost-only observability server.
type DebugConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// DefaultDebug returns the default debug server configuration.
func DefaultDebug() DebugConfig {
	return DebugConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// DatabaseConfig holds the optional run-results database.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // Empty keeps results in memory
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// EncounterConfig bundles everything the simulation core consumes.
type EncounterConfig struct {
	Wave   WaveConfig   `yaml:"wave"`
	Spawn  SpawnConfig  `yaml:"spawn"`
	Combat CombatConfig `yaml:"combat"`
	Hero   HeroConfig   `yaml:"hero"`
	Reward RewardConfig `yaml:"reward"`
}

// DefaultEncounter returns the default encounter configuration.
func DefaultEncounter() EncounterConfig {
	return EncounterConfig{
		Wave:   DefaultWave(),
		Spawn:  DefaultSpawn(),
		Combat: DefaultCombat(),
		Hero:   DefaultHero(),
		Reward: DefaultReward(),
	}
}

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Server       ServerConfig    `yaml:"server"`
	Debug        DebugConfig     `yaml:"debug"`
	Database     DatabaseConfig  `yaml:"database"`
	Encounter    EncounterConfig `yaml:"encounter"`
	EventLogPath string          `yaml:"event_log_path"`
	HotReload    bool            `yaml:"hot_reload"`
}

// Default returns the complete default configuration.
func Default() AppConfig {
	return AppConfig{
		Server:       DefaultServer(),
		Debug:        DefaultDebug(),
		Encounter:    DefaultEncounter(),
		EventLogPath: "events.jsonl",
		HotReload:    true,
	}
}

// Load returns the complete configuration: defaults, then the YAML file at path
// (a missing file keeps the defaults), then environment overrides. The result
// is sanitized; the returned warnings describe every value that was clamped.
func Load(path string) (AppConfig, []string, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, nil, err
		}
	}

	applyEnv(&cfg)
	warnings := cfg.Encounter.Sanitize()
	warnings = append(warnings, cfg.Server.sanitize()...)
	return cfg, warnings, nil
}

// LoadEncounter reads only the encounter section of a config file, with the
// same env overrides as Load. Used by hot reload, which never touches
// server-level settings.
func LoadEncounter(path string) (EncounterConfig, []string, error) {
	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		return cfg.Encounter, nil, err
	}
	applyEnv(&cfg)
	warnings := cfg.Encounter.Sanitize()
	return cfg.Encounter, warnings, nil
}

func loadFile(path string, cfg *AppConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// applyEnv applies environment variable overrides. Environment wins over the file.
func applyEnv(cfg *AppConfig) {
	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Server.Port = p
	}
	if tr := getEnvInt("TICK_RATE", 0); tr > 0 {
		cfg.Server.TickRate = tr
	}
	if tok := os.Getenv("ADMIN_TOKEN"); tok != "" {
		cfg.Server.AdminToken = tok
	}
	if os.Getenv("DISABLE_DEBUG_SERVER") == "true" {
		cfg.Debug.Enabled = false
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if p := os.Getenv("EVENT_LOG_PATH"); p != "" {
		cfg.EventLogPath = p
	}
	if os.Getenv("HOT_RELOAD") == "false" {
		cfg.HotReload = false
	}

	w := &cfg.Encounter.Wave
	if v := getEnvFloat("WAVE_DURATION", -1); v >= 0 {
		w.Duration = v
	}
	if v := getEnvInt("MAX_WAVES", 0); v > 0 {
		w.MaxWaves = v
	}
	if v := getEnvInt("BASE_KILL_REQUIREMENT", 0); v > 0 {
		w.BaseKillRequirement = v
	}
	if m := os.Getenv("SPAWN_MODE"); m != "" {
		cfg.Encounter.Spawn.Mode = m
	}
}

// =============================================================================
// SANITIZING
// =============================================================================

// Safe minima for durations and intervals. Anything below is clamped at load time.
const (
	MinInterval      = 0.05
	MinWaveDuration  = 1.0
	radiusEpsilon    = 0.01
	defaultSlotCount = 3
)

// Sanitize clamps invalid values to safe ones and reports what changed.
func (c *EncounterConfig) Sanitize() []string {
	var warnings []string
	warn := func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	w := &c.Wave
	if w.Duration < MinWaveDuration || math.IsNaN(w.Duration) {
		warn("wave.duration %.3f clamped to %.2f", w.Duration, MinWaveDuration)
		w.Duration = MinWaveDuration
	}
	if w.BaseKillRequirement < 1 {
		warn("wave.base_kill_requirement %d clamped to 1", w.BaseKillRequirement)
		w.BaseKillRequirement = 1
	}
	if w.ExtraKillsPerWave < 0 {
		warn("wave.extra_kills_per_wave %d clamped to 0", w.ExtraKillsPerWave)
		w.ExtraKillsPerWave = 0
	}
	if w.MinSpawnInterval < MinInterval || math.IsNaN(w.MinSpawnInterval) {
		warn("wave.min_spawn_interval %.3f clamped to %.2f", w.MinSpawnInterval, MinInterval)
		w.MinSpawnInterval = MinInterval
	}
	if w.BaseSpawnInterval < w.MinSpawnInterval || math.IsNaN(w.BaseSpawnInterval) {
		warn("wave.base_spawn_interval %.3f raised to min_spawn_interval %.3f", w.BaseSpawnInterval, w.MinSpawnInterval)
		w.BaseSpawnInterval = w.MinSpawnInterval
	}
	if w.SpawnIntervalDecrease < 0 || math.IsNaN(w.SpawnIntervalDecrease) {
		warn("wave.spawn_interval_decrease %.3f clamped to 0", w.SpawnIntervalDecrease)
		w.SpawnIntervalDecrease = 0
	}
	if w.HealthGrowth < 1 || math.IsNaN(w.HealthGrowth) {
		warn("wave.health_growth %.3f clamped to 1", w.HealthGrowth)
		w.HealthGrowth = 1
	}
	if w.MaxWaves < 1 {
		warn("wave.max_waves %d clamped to 1", w.MaxWaves)
		w.MaxWaves = 1
	}
	if w.StartDelay < 0 {
		w.StartDelay = 0
	}
	if w.NextWaveDelay < 0 {
		w.NextWaveDelay = 0
	}

	s := &c.Spawn
	if s.Mode != PlacementArea && s.Mode != PlacementRing {
		warn("spawn.mode %q unknown, using %q", s.Mode, PlacementRing)
		s.Mode = PlacementRing
	}
	if s.Area.MaxX < s.Area.MinX {
		s.Area.MinX, s.Area.MaxX = s.Area.MaxX, s.Area.MinX
	}
	if s.Area.MaxY < s.Area.MinY {
		s.Area.MinY, s.Area.MaxY = s.Area.MaxY, s.Area.MinY
	}
	if s.Padding < 0 {
		s.Padding = 0
	}
	if s.MinRadius < 0 {
		s.MinRadius = 0
	}
	if s.MaxRadius < s.MinRadius {
		warn("spawn.max_radius %.2f below min_radius %.2f, raised", s.MaxRadius, s.MinRadius)
		s.MaxRadius = s.MinRadius
	}
	for i := range s.Enemies {
		e := &s.Enemies[i]
		if e.Health < 1 {
			e.Health = 1
		}
		if e.Weight < 0 {
			e.Weight = 0
		}
		if e.AttackCooldown < MinInterval {
			e.AttackCooldown = MinInterval
		}
		if e.ProjectileLife < MinInterval {
			e.ProjectileLife = MinInterval
		}
	}

	cb := &c.Combat
	if cb.ContactInterval < MinInterval || math.IsNaN(cb.ContactInterval) {
		warn("combat.contact_interval %.3f clamped to %.2f", cb.ContactInterval, MinInterval)
		cb.ContactInterval = MinInterval
	}
	if cb.RetargetInterval < MinInterval || math.IsNaN(cb.RetargetInterval) {
		warn("combat.retarget_interval %.3f clamped to %.2f", cb.RetargetInterval, MinInterval)
		cb.RetargetInterval = MinInterval
	}
	if cb.ContactScope != ContactScopePair && cb.ContactScope != ContactScopeAttacker {
		cb.ContactScope = ContactScopePair
	}
	if cb.SearchRadius < radiusEpsilon {
		warn("combat.search_radius %.3f clamped to %.2f", cb.SearchRadius, radiusEpsilon)
		cb.SearchRadius = radiusEpsilon
	}

	h := &c.Hero
	if h.MaxHealth < 1 {
		h.MaxHealth = 1
	}
	if h.MaxEnergy < 0 {
		h.MaxEnergy = 0
	}
	if h.AttackCooldown < MinInterval {
		warn("hero.attack_cooldown %.3f clamped to %.2f", h.AttackCooldown, MinInterval)
		h.AttackCooldown = MinInterval
	}

	r := &c.Reward
	if r.Slots < 1 {
		warn("reward.slots %d clamped to %d", r.Slots, defaultSlotCount)
		r.Slots = defaultSlotCount
	}

	return warnings
}

func (s *ServerConfig) sanitize() []string {
	var warnings []string
	if s.TickRate < 1 {
		warnings = append(warnings, fmt.Sprintf("server.tick_rate %d clamped to 30", s.TickRate))
		s.TickRate = 30
	}
	if s.Port <= 0 {
		s.Port = 3000
	}
	return warnings
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
