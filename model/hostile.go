package model

// HostileCategory classifies a hostile for threat scoring purposes.
type HostileCategory int

const (
	// CategoryUnknown is the zero value; scored conservatively low.
	CategoryUnknown HostileCategory = iota
	// CategoryConstruct covers autonomous constructs and hostile robots.
	CategoryConstruct
	// CategoryHighTechFaction covers raiders from high-tech factions.
	CategoryHighTechFaction
	// CategoryLowTechFaction covers raiders from low-tech factions.
	CategoryLowTechFaction
	// CategoryWildlife covers aggressive or provoked wild animals.
	CategoryWildlife
)

func (c HostileCategory) String() string {
	switch c {
	case CategoryConstruct:
		return "CONSTRUCT"
	case CategoryHighTechFaction:
		return "HIGH_TECH_FACTION"
	case CategoryLowTechFaction:
		return "LOW_TECH_FACTION"
	case CategoryWildlife:
		return "WILDLIFE"
	default:
		return "UNKNOWN"
	}
}

// Hostile is a hostile actor as seen by the defense layer. Cross-references
// are by ID only; the world arena owns the record.
type Hostile struct {
	ID       TargetID
	Category HostileCategory
	Position Vec2

	Health    float64
	MaxHealth float64

	// ArmorRating is the average armor rating across worn apparel, 0..1+.
	ArmorRating float64

	HasRangedWeapon bool
	HighTierWeapon  bool
	ShieldActive    bool

	// BodySize and Aggressive only influence wildlife scoring.
	BodySize   float64
	Aggressive bool

	Dead bool
}

// Valid reports whether the hostile is still a legitimate interception target.
func (h *Hostile) Valid() bool {
	return h != nil && !h.Dead
}

// HealthFraction returns current health as a 0..1 fraction of max health.
func (h *Hostile) HealthFraction() float64 {
	if h == nil || h.MaxHealth <= 0 {
		return 0
	}
	f := h.Health / h.MaxHealth
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
