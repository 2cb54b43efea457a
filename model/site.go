package model

// Site is a defended location. It either hosts the coordinating authority
// directly or is serviced remotely through the relay network.
type Site struct {
	ID       SiteID
	Name     string
	Position Vec2

	// Powered reports whether the site's installations have power this tick.
	Powered bool

	// HostsCoordinator marks the site where the coordinating authority lives.
	HostsCoordinator bool
}

// Relay is a connectivity node extending the coordinator's reach. Relays form
// an undirected graph via Peers; a remote site is reachable when a path of
// powered relays leads from the coordinator's site to a powered relay at the
// remote site.
type Relay struct {
	ID      RelayID
	SiteID  SiteID
	Powered bool
	Peers   []RelayID
}
