package threat

import (
	"math"

	"github.com/signalsfoundry/defense-coordinator/model"
)

// LethalityPerDart is the expected damage delivered by one interceptor dart.
const LethalityPerDart = 20.0

// Base danger values per hostile category. Wildlife is scored from body size
// instead of a flat base.
const (
	baseConstruct       = 40.0
	baseHighTechFaction = 30.0
	baseLowTechFaction  = 18.0
	baseUnknown         = 10.0

	wildlifePerBodySize      = 8.0
	wildlifeAggressionFactor = 1.5

	rangedWeaponFactor   = 1.2
	highTierWeaponFactor = 1.3
	shieldFactor         = 2.0
)

// Scorer computes a numeric danger rating per hostile and converts it into an
// interceptor dart requirement.
type Scorer struct {
	// Lethality is the per-dart damage used when sizing assignments.
	// Zero means LethalityPerDart.
	Lethality float64
}

func NewScorer() *Scorer {
	return &Scorer{Lethality: LethalityPerDart}
}

// Score rates how dangerous a hostile currently is. Dead or missing hostiles
// score zero.
func (s *Scorer) Score(h *model.Hostile) float64 {
	if !h.Valid() {
		return 0
	}

	var base float64
	switch h.Category {
	case model.CategoryConstruct:
		base = baseConstruct
	case model.CategoryHighTechFaction:
		base = baseHighTechFaction
	case model.CategoryLowTechFaction:
		base = baseLowTechFaction
	case model.CategoryWildlife:
		base = wildlifePerBodySize * h.BodySize
		if h.Aggressive {
			base *= wildlifeAggressionFactor
		}
	default:
		base = baseUnknown
	}

	score := base * h.HealthFraction()

	if h.HasRangedWeapon {
		score *= rangedWeaponFactor
		if h.HighTierWeapon {
			score *= highTierWeaponFactor
		}
	}

	score *= 1.0 + clamp01(h.ArmorRating)

	if h.ShieldActive {
		score *= shieldFactor
	}

	return score
}

// DartsNeeded returns how many interceptor darts the hostile warrants. Any
// valid hostile warrants at least one.
func (s *Scorer) DartsNeeded(h *model.Hostile) int {
	if !h.Valid() {
		return 0
	}
	lethality := s.Lethality
	if lethality <= 0 {
		lethality = LethalityPerDart
	}
	n := int(math.Ceil(s.Score(h) / lethality))
	if n < 1 {
		n = 1
	}
	return n
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
