package core

import (
	"strings"
	"testing"

	"github.com/signalsfoundry/defense-coordinator/kb"
	"github.com/signalsfoundry/defense-coordinator/model"
)

// buildRelayWorld creates a base site hosting the coordinator, an outpost, and
// a powered relay chain base → mid → outpost.
func buildRelayWorld(t *testing.T) *kb.World {
	t.Helper()
	w := kb.NewWorld()

	sites := []*model.Site{
		{ID: "base", Powered: true, HostsCoordinator: true},
		{ID: "waypoint", Powered: true},
		{ID: "outpost", Powered: true},
	}
	for _, s := range sites {
		if err := w.AddSite(s); err != nil {
			t.Fatalf("AddSite(%s): %v", s.ID, err)
		}
	}

	relays := []*model.Relay{
		{ID: "r-base", SiteID: "base", Powered: true, Peers: []model.RelayID{"r-mid"}},
		{ID: "r-mid", SiteID: "waypoint", Powered: true, Peers: []model.RelayID{"r-base", "r-out"}},
		{ID: "r-out", SiteID: "outpost", Powered: true, Peers: []model.RelayID{"r-mid"}},
	}
	for _, r := range relays {
		if err := w.AddRelay(r); err != nil {
			t.Fatalf("AddRelay(%s): %v", r.ID, err)
		}
	}
	return w
}

func TestHostSiteConnectedIffPowered(t *testing.T) {
	w := buildRelayWorld(t)
	oracle := NewConnectivityOracle(w, "base")

	if !oracle.IsConnected("base") {
		t.Fatalf("powered host site should be connected")
	}

	if err := w.SetSitePowered("base", false); err != nil {
		t.Fatalf("SetSitePowered: %v", err)
	}
	if oracle.IsConnected("base") {
		t.Fatalf("unpowered host site should be disconnected")
	}
	if msg := oracle.StatusMessage("base"); !strings.Contains(msg, "unpowered") {
		t.Fatalf("unexpected status message: %q", msg)
	}
}

func TestRemoteSiteViaRelayChain(t *testing.T) {
	w := buildRelayWorld(t)
	oracle := NewConnectivityOracle(w, "base")

	if !oracle.IsConnected("outpost") {
		t.Fatalf("outpost should be reachable via relay chain: %s", oracle.StatusMessage("outpost"))
	}

	// Unpowering the mid relay severs the path even though the local relay
	// is still powered.
	if err := w.SetRelayPowered("r-mid", false); err != nil {
		t.Fatalf("SetRelayPowered: %v", err)
	}
	if oracle.IsConnected("outpost") {
		t.Fatalf("outpost should be unreachable with mid relay unpowered")
	}
	if msg := oracle.StatusMessage("outpost"); !strings.Contains(msg, "no relay path") {
		t.Fatalf("unexpected status message: %q", msg)
	}
}

func TestRemoteSiteLocalRelayUnpowered(t *testing.T) {
	w := buildRelayWorld(t)
	oracle := NewConnectivityOracle(w, "base")

	if err := w.SetRelayPowered("r-out", false); err != nil {
		t.Fatalf("SetRelayPowered: %v", err)
	}
	if oracle.IsConnected("outpost") {
		t.Fatalf("outpost should be disconnected with local relay unpowered")
	}
	if msg := oracle.StatusMessage("outpost"); !strings.Contains(msg, "local relay unpowered") {
		t.Fatalf("unexpected status message: %q", msg)
	}
}

func TestCoordinatorPowerGatesRemoteSites(t *testing.T) {
	w := buildRelayWorld(t)
	oracle := NewConnectivityOracle(w, "base")

	if err := w.SetSitePowered("base", false); err != nil {
		t.Fatalf("SetSitePowered: %v", err)
	}
	if oracle.IsConnected("outpost") {
		t.Fatalf("remote site should be disconnected while coordinator is unpowered")
	}
}

func TestUnknownSiteIsDisconnected(t *testing.T) {
	w := buildRelayWorld(t)
	oracle := NewConnectivityOracle(w, "base")

	if oracle.IsConnected("atlantis") {
		t.Fatalf("unknown site should never be connected")
	}
}

// No caching: flipping power back restores connectivity on the next query.
func TestConnectivityReflectsCurrentState(t *testing.T) {
	w := buildRelayWorld(t)
	oracle := NewConnectivityOracle(w, "base")

	if err := w.SetRelayPowered("r-mid", false); err != nil {
		t.Fatalf("SetRelayPowered: %v", err)
	}
	if oracle.IsConnected("outpost") {
		t.Fatalf("expected disconnect after power loss")
	}
	if err := w.SetRelayPowered("r-mid", true); err != nil {
		t.Fatalf("SetRelayPowered: %v", err)
	}
	if !oracle.IsConnected("outpost") {
		t.Fatalf("expected reconnect after power restore")
	}
}
