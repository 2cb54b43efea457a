package core

import (
	"fmt"

	"github.com/signalsfoundry/defense-coordinator/kb"
	"github.com/signalsfoundry/defense-coordinator/model"
)

// ConnectivityOracle answers whether a site is linked to the coordinating
// authority, either directly (it hosts the coordinator) or through the relay
// network. It is a pure query over current world state: results are never
// cached across ticks, so power flips take effect immediately.
type ConnectivityOracle struct {
	World *kb.World

	// HostSite is the site hosting the coordinator.
	HostSite model.SiteID
}

func NewConnectivityOracle(world *kb.World, host model.SiteID) *ConnectivityOracle {
	return &ConnectivityOracle{World: world, HostSite: host}
}

// IsConnected reports whether the given site is linked to the coordinator.
// The host site is connected iff the coordinator is powered. A remote site is
// connected iff the coordinator is powered, a relay path of powered relays
// reaches the site, and a powered local relay exists there.
func (o *ConnectivityOracle) IsConnected(site model.SiteID) bool {
	connected, _ := o.evaluate(site)
	return connected
}

// StatusMessage returns a short operator-facing explanation of the site's
// connectivity state.
func (o *ConnectivityOracle) StatusMessage(site model.SiteID) string {
	_, msg := o.evaluate(site)
	return msg
}

func (o *ConnectivityOracle) evaluate(site model.SiteID) (bool, string) {
	if o == nil || o.World == nil {
		return false, "connectivity oracle not configured"
	}

	host := o.World.Site(o.HostSite)
	if host == nil {
		return false, "coordinator site not found"
	}
	if !host.Powered {
		return false, "coordinator unpowered"
	}
	if site == o.HostSite {
		return true, "connected (coordinator site)"
	}

	target := o.World.Site(site)
	if target == nil {
		return false, fmt.Sprintf("unknown site %q", site)
	}

	locals := o.World.RelaysAtSite(site)
	if len(locals) == 0 {
		return false, "no relay installed at site"
	}
	poweredLocal := false
	for _, r := range locals {
		if r.Powered {
			poweredLocal = true
			break
		}
	}
	if !poweredLocal {
		return false, "local relay unpowered"
	}

	if !o.relayPathExists(o.HostSite, site) {
		return false, "no relay path to coordinator"
	}
	return true, "connected (via relay)"
}

// relayPathExists walks the relay graph from the origin site looking for a
// powered relay at the destination site. Only powered relays carry traffic.
func (o *ConnectivityOracle) relayPathExists(from, to model.SiteID) bool {
	start := o.World.RelaysAtSite(from)
	if len(start) == 0 {
		return false
	}

	visited := make(map[model.RelayID]bool)
	queue := make([]*model.Relay, 0, len(start))
	for _, r := range start {
		if r.Powered {
			visited[r.ID] = true
			queue = append(queue, r)
		}
	}

	for len(queue) > 0 {
		r := queue[0]
		queue = queue[1:]

		if r.SiteID == to {
			return true
		}
		for _, peerID := range r.Peers {
			if visited[peerID] {
				continue
			}
			peer := o.World.Relay(peerID)
			if peer == nil || !peer.Powered {
				continue
			}
			visited[peerID] = true
			queue = append(queue, peer)
		}
	}
	return false
}
