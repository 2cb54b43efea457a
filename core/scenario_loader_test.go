package core

import (
	"strings"
	"testing"

	"github.com/signalsfoundry/defense-coordinator/kb"
	"github.com/signalsfoundry/defense-coordinator/model"
)

const sampleScenario = `
sites:
  - id: base
    name: Main Base
    hosts_coordinator: true
  - id: outpost
    name: East Outpost
    x: 120
    y: 40
relays:
  - id: relay-base
    site: base
    peers: [relay-outpost]
  - id: relay-outpost
    site: outpost
    peers: [relay-base]
pools:
  - id: pool-1
    site: base
    x: 2
    y: 3
    capacity: 8
sensors:
  - id: tower-north
    x: 0
    y: 50
    range: 40
auxiliaries:
  - id: outpost-spotters
    site: outpost
    targets: [raider-1]
hostiles:
  - id: raider-1
    category: high_tech
    x: 60
    y: 10
    health: 80
    max_health: 100
    ranged: true
    shield: true
  - id: thrumbo-1
    category: wildlife
    x: 90
    y: 90
    health: 400
    body_size: 4.0
    aggressive: true
`

func TestLoadScenario(t *testing.T) {
	world := kb.NewWorld()
	sc, err := LoadScenario(world, strings.NewReader(sampleScenario))
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}

	if sc.HostSite != "base" {
		t.Fatalf("HostSite = %q, want base", sc.HostSite)
	}
	if len(sc.SiteIDs) != 2 || len(sc.RelayIDs) != 2 || len(sc.HostileIDs) != 2 {
		t.Fatalf("loaded counts: sites=%d relays=%d hostiles=%d",
			len(sc.SiteIDs), len(sc.RelayIDs), len(sc.HostileIDs))
	}

	if len(sc.Pools) != 1 {
		t.Fatalf("pools = %d, want 1", len(sc.Pools))
	}
	pool := sc.Pools[0]
	if pool.ID != "pool-1" || pool.Site != "base" || pool.Capacity != 8 {
		t.Fatalf("pool spec = %+v", pool)
	}
	if pool.Position != (model.Vec2{X: 2, Y: 3}) {
		t.Fatalf("pool position = %+v", pool.Position)
	}

	if len(sc.Sensors) != 1 || sc.Sensors[0].Range != 40 {
		t.Fatalf("sensor specs = %+v", sc.Sensors)
	}

	if len(sc.Auxiliaries) != 1 {
		t.Fatalf("auxiliary specs = %+v", sc.Auxiliaries)
	}
	aux := sc.Auxiliaries[0]
	if aux.Site != "outpost" || len(aux.Targets) != 1 || aux.Targets[0] != "raider-1" {
		t.Fatalf("auxiliary spec = %+v", aux)
	}

	raider := world.Hostile("raider-1")
	if raider == nil {
		t.Fatalf("raider-1 not loaded")
	}
	if raider.Category != model.CategoryHighTechFaction {
		t.Fatalf("raider category = %v", raider.Category)
	}
	if !raider.HasRangedWeapon || !raider.ShieldActive {
		t.Fatalf("raider modifiers lost: %+v", raider)
	}
	if raider.Health != 80 || raider.MaxHealth != 100 {
		t.Fatalf("raider health = %v/%v", raider.Health, raider.MaxHealth)
	}

	beast := world.Hostile("thrumbo-1")
	if beast.Category != model.CategoryWildlife || !beast.Aggressive {
		t.Fatalf("beast = %+v", beast)
	}
	// max_health omitted: defaults to health.
	if beast.MaxHealth != 400 {
		t.Fatalf("beast max health = %v, want 400", beast.MaxHealth)
	}
}

func TestLoadScenarioDefaultsPoweredTrue(t *testing.T) {
	world := kb.NewWorld()
	sc, err := LoadScenario(world, strings.NewReader(sampleScenario))
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}

	oracle := &ConnectivityOracle{World: world, HostSite: sc.HostSite}
	if !oracle.IsConnected("outpost") {
		t.Fatalf("outpost should be connected with default-powered sites and relays")
	}
}

func TestLoadScenarioRejectsMissingHostSite(t *testing.T) {
	world := kb.NewWorld()
	_, err := LoadScenario(world, strings.NewReader(`
sites:
  - id: lonely
`))
	if err == nil || !strings.Contains(err.Error(), "host site") {
		t.Fatalf("expected host site error, got %v", err)
	}
}

func TestLoadScenarioRejectsBadPoolCapacity(t *testing.T) {
	world := kb.NewWorld()
	_, err := LoadScenario(world, strings.NewReader(`
sites:
  - id: base
    hosts_coordinator: true
pools:
  - id: pool-1
    site: base
    capacity: 0
`))
	if err == nil || !strings.Contains(err.Error(), "capacity") {
		t.Fatalf("expected capacity error, got %v", err)
	}
}

func TestCategoryFromStringTolerance(t *testing.T) {
	cases := map[string]model.HostileCategory{
		"construct": model.CategoryConstruct,
		"Mechanoid": model.CategoryConstruct,
		"pirate":    model.CategoryHighTechFaction,
		"tribal":    model.CategoryLowTechFaction,
		"beast":     model.CategoryWildlife,
		"":          model.CategoryUnknown,
		"gremlin":   model.CategoryUnknown,
	}
	for in, want := range cases {
		if got := categoryFromString(in); got != want {
			t.Fatalf("categoryFromString(%q) = %v, want %v", in, got, want)
		}
	}
}
