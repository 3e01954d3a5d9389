package game

import (
	"fmt"
	"log"
	"math/rand/v2"
	"strings"

	"wave-arena/internal/config"
)

// Rarity is an ordered reward tier.
type Rarity uint8

const (
	RarityCommon Rarity = iota
	RarityUncommon
	RarityRare
	RarityEpic
	RarityLegendary
	rarityCount
)

func (r Rarity) String() string {
	switch r {
	case RarityCommon:
		return "common"
	case RarityUncommon:
		return "uncommon"
	case RarityRare:
		return "rare"
	case RarityEpic:
		return "epic"
	case RarityLegendary:
		return "legendary"
	default:
		return "unknown"
	}
}

func (r Rarity) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// ParseRarity maps a config name to a tier.
func ParseRarity(s string) (Rarity, error) {
	for r := RarityCommon; r < rarityCount; r++ {
		if strings.EqualFold(s, r.String()) {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown rarity %q", s)
}

// RewardKind is the effect a reward has on the hero.
type RewardKind uint8

const (
	RewardNone RewardKind = iota // placeholder, applies nothing
	RewardAttackPower
	RewardAttackSpeed
	RewardMovementSpeed
	RewardMaxHP
	RewardHPRegen
	RewardEnergyRegen
	rewardKindCount
)

func (k RewardKind) String() string {
	switch k {
	case RewardNone:
		return "none"
	case RewardAttackPower:
		return "attack_power"
	case RewardAttackSpeed:
		return "attack_speed"
	case RewardMovementSpeed:
		return "movement_speed"
	case RewardMaxHP:
		return "max_hp"
	case RewardHPRegen:
		return "hp_regen"
	case RewardEnergyRegen:
		return "energy_regen"
	default:
		return "unknown"
	}
}

func (k RewardKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// ParseRewardKind maps a config name to a kind. "none" is rejected: placeholders
// are produced by the pool, never configured.
func ParseRewardKind(s string) (RewardKind, error) {
	for k := RewardAttackPower; k < rewardKindCount; k++ {
		if strings.EqualFold(s, k.String()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown reward kind %q", s)
}

// RewardCandidate is one entry offered to the player after a wave.
type RewardCandidate struct {
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Kind           RewardKind `json:"kind"`
	Magnitude      float64    `json:"magnitude"`
	Rarity         Rarity     `json:"rarity"`
	WeightOverride *float64   `json:"weightOverride,omitempty"`
}

// IsPlaceholder reports whether c is the "no reward" filler.
func (c RewardCandidate) IsPlaceholder() bool {
	return c.Kind == RewardNone
}

// PlaceholderReward fills slots the catalog cannot.
func PlaceholderReward() RewardCandidate {
	return RewardCandidate{Name: "No Upgrade", Description: "Nothing left to offer", Kind: RewardNone}
}

// RewardApplier receives the candidate the player picked.
type RewardApplier interface {
	Apply(c RewardCandidate)
}

// RewardPool draws reward candidates with weights taken from their rarity tier.
type RewardPool struct {
	catalog         []RewardCandidate
	tierWeights     [rarityCount]float64
	allowDuplicates bool
	rng             *rand.Rand
}

// NewRewardPool builds a pool from config.
func NewRewardPool(cfg config.RewardConfig, rng *rand.Rand) *RewardPool {
	p := &RewardPool{rng: rng}
	p.Configure(cfg)
	return p
}

// Configure replaces the catalog and weights. Catalog entries with an unknown
// kind or rarity are skipped with a warning.
func (p *RewardPool) Configure(cfg config.RewardConfig) {
	p.allowDuplicates = cfg.AllowDuplicates
	p.tierWeights[RarityCommon] = cfg.Weights.Common
	p.tierWeights[RarityUncommon] = cfg.Weights.Uncommon
	p.tierWeights[RarityRare] = cfg.Weights.Rare
	p.tierWeights[RarityEpic] = cfg.Weights.Epic
	p.tierWeights[RarityLegendary] = cfg.Weights.Legendary

	p.catalog = p.catalog[:0]
	for _, e := range cfg.Catalog {
		kind, err := ParseRewardKind(e.Kind)
		if err != nil {
			log.Printf("⚠️ Reward %q skipped: %v", e.Name, err)
			continue
		}
		rarity, err := ParseRarity(e.Rarity)
		if err != nil {
			log.Printf("⚠️ Reward %q skipped: %v", e.Name, err)
			continue
		}
		p.catalog = append(p.catalog, RewardCandidate{
			Name:           e.Name,
			Description:    e.Description,
			Kind:           kind,
			Magnitude:      e.Magnitude,
			Rarity:         rarity,
			WeightOverride: e.WeightOverride,
		})
	}
}

// NewRewardPoolFromCatalog builds a pool from already-typed candidates.
func NewRewardPoolFromCatalog(catalog []RewardCandidate, weights [5]float64, allowDuplicates bool, rng *rand.Rand) *RewardPool {
	p := &RewardPool{
		catalog:         append([]RewardCandidate(nil), catalog...),
		allowDuplicates: allowDuplicates,
		rng:             rng,
	}
	copy(p.tierWeights[:], weights[:])
	return p
}

// Catalog returns a copy of the pool's entries.
func (p *RewardPool) Catalog() []RewardCandidate {
	return append([]RewardCandidate(nil), p.catalog...)
}

// Weight returns the effective draw weight of c: its override when set and
// non-negative, else its tier weight. Negative results count as zero.
func (p *RewardPool) Weight(c RewardCandidate) float64 {
	w := 0.0
	if c.WeightOverride != nil && *c.WeightOverride >= 0 {
		w = *c.WeightOverride
	} else if c.Rarity < rarityCount {
		w = p.tierWeights[c.Rarity]
	}
	if w < 0 {
		return 0
	}
	return w
}

// Draw returns count candidates. Without duplicates each catalog entry appears
// at most once and exhausted slots get placeholders; an empty catalog yields
// placeholders only.
func (p *RewardPool) Draw(count int) []RewardCandidate {
	if count <= 0 {
		return nil
	}

	out := make([]RewardCandidate, 0, count)
	remaining := append([]RewardCandidate(nil), p.catalog...)

	for len(out) < count {
		if len(remaining) == 0 {
			out = append(out, PlaceholderReward())
			continue
		}

		weights := make([]float64, len(remaining))
		for i, c := range remaining {
			weights[i] = p.Weight(c)
		}
		idx := weightedIndex(weights, p.rng)
		out = append(out, remaining[idx])

		if !p.allowDuplicates {
			remaining = append(remaining[:idx], remaining[idx+1:]...)
		}
	}
	return out
}

// weightedIndex picks an index proportionally to weights. Zero-weight entries
// are never chosen unless every weight is zero, in which case the pick is uniform.
func weightedIndex(weights []float64, rng *rand.Rand) int {
	total := 0.0
	last := -1
	for i, w := range weights {
		if w > 0 {
			total += w
			last = i
		}
	}
	if total <= 0 {
		return rng.IntN(len(weights))
	}

	r := rng.Float64() * total
	acc := 0.0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		acc += w
		if acc >= r {
			return i
		}
	}
	// floating-point edge at the upper boundary
	return last
}
