package threat

import (
	"math"
	"testing"

	"github.com/signalsfoundry/defense-coordinator/model"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScoreCategoryOrdering(t *testing.T) {
	s := NewScorer()
	mk := func(cat model.HostileCategory) *model.Hostile {
		return &model.Hostile{ID: "h", Category: cat, Health: 100, MaxHealth: 100, BodySize: 1}
	}

	construct := s.Score(mk(model.CategoryConstruct))
	highTech := s.Score(mk(model.CategoryHighTechFaction))
	lowTech := s.Score(mk(model.CategoryLowTechFaction))
	wildlife := s.Score(mk(model.CategoryWildlife))

	if !(construct > highTech && highTech > lowTech && lowTech > wildlife) {
		t.Fatalf("expected construct > highTech > lowTech > wildlife, got %v %v %v %v",
			construct, highTech, lowTech, wildlife)
	}
}

func TestScoreWildlifeScalesWithBodyAndAggression(t *testing.T) {
	s := NewScorer()
	calm := &model.Hostile{ID: "boar", Category: model.CategoryWildlife,
		Health: 50, MaxHealth: 50, BodySize: 1}
	big := &model.Hostile{ID: "thrumbo", Category: model.CategoryWildlife,
		Health: 50, MaxHealth: 50, BodySize: 4}
	mad := &model.Hostile{ID: "mad-boar", Category: model.CategoryWildlife,
		Health: 50, MaxHealth: 50, BodySize: 1, Aggressive: true}

	if !almostEqual(s.Score(big), 4*s.Score(calm)) {
		t.Fatalf("body size should scale wildlife score linearly: %v vs %v", s.Score(big), s.Score(calm))
	}
	if !almostEqual(s.Score(mad), 1.5*s.Score(calm)) {
		t.Fatalf("aggression should scale wildlife score by 1.5: %v vs %v", s.Score(mad), s.Score(calm))
	}
}

func TestScoreModifiers(t *testing.T) {
	s := NewScorer()
	base := &model.Hostile{ID: "raider", Category: model.CategoryLowTechFaction,
		Health: 100, MaxHealth: 100}
	plain := s.Score(base)

	armed := *base
	armed.HasRangedWeapon = true
	if !almostEqual(s.Score(&armed), plain*1.2) {
		t.Fatalf("ranged weapon should scale by 1.2")
	}

	sniper := armed
	sniper.HighTierWeapon = true
	if !almostEqual(s.Score(&sniper), plain*1.2*1.3) {
		t.Fatalf("high-tier weapon should further scale by 1.3")
	}

	shielded := *base
	shielded.ShieldActive = true
	if !almostEqual(s.Score(&shielded), plain*2.0) {
		t.Fatalf("active shield should double the score")
	}

	hurt := *base
	hurt.Health = 25
	if !almostEqual(s.Score(&hurt), plain*0.25) {
		t.Fatalf("score should scale with health fraction")
	}
}

func TestScoreArmorClamped(t *testing.T) {
	s := NewScorer()
	base := &model.Hostile{ID: "raider", Category: model.CategoryHighTechFaction,
		Health: 100, MaxHealth: 100}
	plain := s.Score(base)

	plated := *base
	plated.ArmorRating = 0.5
	if !almostEqual(s.Score(&plated), plain*1.5) {
		t.Fatalf("armor 0.5 should scale by 1.5")
	}

	overArmored := *base
	overArmored.ArmorRating = 7.0
	if !almostEqual(s.Score(&overArmored), plain*2.0) {
		t.Fatalf("armor factor must clamp at 2.0, got %v (plain %v)", s.Score(&overArmored), plain)
	}
}

func TestDartsNeeded(t *testing.T) {
	s := NewScorer()

	// High-tech raider at full health with an active shield: 30 * 2 = 60,
	// three darts at 20 lethality each.
	shielded := &model.Hostile{ID: "raider", Category: model.CategoryHighTechFaction,
		Health: 100, MaxHealth: 100, ShieldActive: true}
	if got := s.DartsNeeded(shielded); got != 3 {
		t.Fatalf("expected 3 darts for score 60, got %d", got)
	}

	// Even a trivial target needs at least one dart.
	squirrel := &model.Hostile{ID: "squirrel", Category: model.CategoryWildlife,
		Health: 1, MaxHealth: 10, BodySize: 0.2}
	if got := s.DartsNeeded(squirrel); got != 1 {
		t.Fatalf("expected minimum of 1 dart, got %d", got)
	}

	// Dead targets need none.
	dead := &model.Hostile{ID: "dead", Category: model.CategoryConstruct,
		Health: 0, MaxHealth: 100, Dead: true}
	if got := s.DartsNeeded(dead); got != 0 {
		t.Fatalf("expected 0 darts for dead target, got %d", got)
	}
}
