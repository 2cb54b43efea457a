package core

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/defense-coordinator/kb"
	"github.com/signalsfoundry/defense-coordinator/model"
)

// Scenario is the loaded scenario content. Sites, relays, and hostiles are
// already in the world when LoadScenario returns; pools and sensors come back
// as specs so the caller can wire them into its coordinator and engine.
type Scenario struct {
	HostSite model.SiteID

	SiteIDs    []model.SiteID
	RelayIDs   []model.RelayID
	HostileIDs []model.TargetID

	Pools       []PoolSpec
	Sensors     []SensorSpec
	Auxiliaries []AuxiliarySpec
}

// PoolSpec describes one interceptor pool to register with the coordinator.
type PoolSpec struct {
	ID       model.PoolID
	Site     model.SiteID
	Position model.Vec2
	Capacity int
	Priority int
}

// SensorSpec describes one fixed detection tower.
type SensorSpec struct {
	ID       model.SensorID
	Position model.Vec2
	Range    float64
}

// AuxiliarySpec describes a remote designation network whose sightings are
// only honored while its home site is connected to the coordinator.
type AuxiliarySpec struct {
	ID      model.SensorID
	Site    model.SiteID
	Targets []model.TargetID
}

// wire shapes stay unexported so the file format can evolve independently of
// the in-memory model.
type scenarioYAML struct {
	HostSite    string          `yaml:"host_site"`
	Sites       []siteYAML      `yaml:"sites"`
	Relays      []relayYAML     `yaml:"relays"`
	Pools       []poolYAML      `yaml:"pools"`
	Sensors     []sensorYAML    `yaml:"sensors"`
	Auxiliaries []auxiliaryYAML `yaml:"auxiliaries"`
	Hostiles    []hostileYAML   `yaml:"hostiles"`
}

type siteYAML struct {
	ID               string  `yaml:"id"`
	Name             string  `yaml:"name"`
	X                float64 `yaml:"x"`
	Y                float64 `yaml:"y"`
	Powered          *bool   `yaml:"powered"` // optional; defaults to true
	HostsCoordinator bool    `yaml:"hosts_coordinator"`
}

type relayYAML struct {
	ID      string   `yaml:"id"`
	Site    string   `yaml:"site"`
	Powered *bool    `yaml:"powered"` // optional; defaults to true
	Peers   []string `yaml:"peers"`
}

type poolYAML struct {
	ID       string  `yaml:"id"`
	Site     string  `yaml:"site"`
	X        float64 `yaml:"x"`
	Y        float64 `yaml:"y"`
	Capacity int     `yaml:"capacity"`
	Priority int     `yaml:"priority"`
}

type sensorYAML struct {
	ID    string  `yaml:"id"`
	X     float64 `yaml:"x"`
	Y     float64 `yaml:"y"`
	Range float64 `yaml:"range"`
}

type auxiliaryYAML struct {
	ID      string   `yaml:"id"`
	Site    string   `yaml:"site"`
	Targets []string `yaml:"targets"`
}

type hostileYAML struct {
	ID         string  `yaml:"id"`
	Category   string  `yaml:"category"`
	X          float64 `yaml:"x"`
	Y          float64 `yaml:"y"`
	Health     float64 `yaml:"health"`
	MaxHealth  float64 `yaml:"max_health"`
	Armor      float64 `yaml:"armor"`
	Ranged     bool    `yaml:"ranged"`
	HighTier   bool    `yaml:"high_tier_weapon"`
	Shield     bool    `yaml:"shield"`
	BodySize   float64 `yaml:"body_size"`
	Aggressive bool    `yaml:"aggressive"`
}

// LoadScenario reads a YAML scenario from r and populates the world with
// sites, relays, and hostiles. Pool and sensor specs are returned for the
// caller to wire. Structural problems (empty IDs, unknown site references)
// fail the load; the world's own invariants catch duplicates.
func LoadScenario(world *kb.World, r io.Reader) (*Scenario, error) {
	if world == nil {
		return nil, fmt.Errorf("load scenario: world is nil")
	}

	var payload scenarioYAML
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("load scenario: decode failed: %w", err)
	}

	result := &Scenario{HostSite: model.SiteID(payload.HostSite)}

	for _, js := range payload.Sites {
		if js.ID == "" {
			return nil, fmt.Errorf("load scenario: site with empty id")
		}
		powered := true
		if js.Powered != nil {
			powered = *js.Powered
		}
		site := &model.Site{
			ID:               model.SiteID(js.ID),
			Name:             js.Name,
			Position:         model.Vec2{X: js.X, Y: js.Y},
			Powered:          powered,
			HostsCoordinator: js.HostsCoordinator,
		}
		if err := world.AddSite(site); err != nil {
			return nil, fmt.Errorf("load scenario: site %s: %w", js.ID, err)
		}
		if site.HostsCoordinator && result.HostSite == "" {
			result.HostSite = site.ID
		}
		result.SiteIDs = append(result.SiteIDs, site.ID)
	}

	for _, jr := range payload.Relays {
		if jr.ID == "" {
			return nil, fmt.Errorf("load scenario: relay with empty id")
		}
		powered := true
		if jr.Powered != nil {
			powered = *jr.Powered
		}
		peers := make([]model.RelayID, 0, len(jr.Peers))
		for _, p := range jr.Peers {
			peers = append(peers, model.RelayID(p))
		}
		relay := &model.Relay{
			ID:      model.RelayID(jr.ID),
			SiteID:  model.SiteID(jr.Site),
			Powered: powered,
			Peers:   peers,
		}
		if err := world.AddRelay(relay); err != nil {
			return nil, fmt.Errorf("load scenario: relay %s: %w", jr.ID, err)
		}
		result.RelayIDs = append(result.RelayIDs, relay.ID)
	}

	for _, jp := range payload.Pools {
		if jp.ID == "" {
			return nil, fmt.Errorf("load scenario: pool with empty id")
		}
		if jp.Capacity <= 0 {
			return nil, fmt.Errorf("load scenario: pool %s has capacity %d", jp.ID, jp.Capacity)
		}
		result.Pools = append(result.Pools, PoolSpec{
			ID:       model.PoolID(jp.ID),
			Site:     model.SiteID(jp.Site),
			Position: model.Vec2{X: jp.X, Y: jp.Y},
			Capacity: jp.Capacity,
			Priority: jp.Priority,
		})
	}

	for _, js := range payload.Sensors {
		if js.ID == "" {
			return nil, fmt.Errorf("load scenario: sensor with empty id")
		}
		result.Sensors = append(result.Sensors, SensorSpec{
			ID:       model.SensorID(js.ID),
			Position: model.Vec2{X: js.X, Y: js.Y},
			Range:    js.Range,
		})
	}

	for _, ja := range payload.Auxiliaries {
		if ja.ID == "" {
			return nil, fmt.Errorf("load scenario: auxiliary with empty id")
		}
		targets := make([]model.TargetID, 0, len(ja.Targets))
		for _, tg := range ja.Targets {
			targets = append(targets, model.TargetID(tg))
		}
		result.Auxiliaries = append(result.Auxiliaries, AuxiliarySpec{
			ID:      model.SensorID(ja.ID),
			Site:    model.SiteID(ja.Site),
			Targets: targets,
		})
	}

	for _, jh := range payload.Hostiles {
		if jh.ID == "" {
			return nil, fmt.Errorf("load scenario: hostile with empty id")
		}
		maxHealth := jh.MaxHealth
		if maxHealth <= 0 {
			maxHealth = jh.Health
		}
		health := jh.Health
		if health <= 0 {
			health = maxHealth
		}
		h := &model.Hostile{
			ID:              model.TargetID(jh.ID),
			Category:        categoryFromString(jh.Category),
			Position:        model.Vec2{X: jh.X, Y: jh.Y},
			Health:          health,
			MaxHealth:       maxHealth,
			ArmorRating:     jh.Armor,
			HasRangedWeapon: jh.Ranged,
			HighTierWeapon:  jh.HighTier,
			ShieldActive:    jh.Shield,
			BodySize:        jh.BodySize,
			Aggressive:      jh.Aggressive,
		}
		if err := world.AddHostile(h); err != nil {
			return nil, fmt.Errorf("load scenario: hostile %s: %w", jh.ID, err)
		}
		result.HostileIDs = append(result.HostileIDs, h.ID)
	}

	if result.HostSite == "" {
		return nil, fmt.Errorf("load scenario: no coordinator host site declared")
	}
	return result, nil
}

// categoryFromString maps the YAML category string to a HostileCategory.
// Unknown or empty values fall back to CategoryUnknown, which scores
// conservatively low rather than failing the load.
func categoryFromString(s string) model.HostileCategory {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "construct", "mechanoid", "robot":
		return model.CategoryConstruct
	case "high_tech", "high-tech", "hightech", "pirate":
		return model.CategoryHighTechFaction
	case "low_tech", "low-tech", "lowtech", "tribal":
		return model.CategoryLowTechFaction
	case "wildlife", "animal", "beast":
		return model.CategoryWildlife
	default:
		return model.CategoryUnknown
	}
}
