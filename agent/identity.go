// Package agent drives the agent process: periodic liveness reporting,
// deployment polling, and synchronous deployment execution.
package agent

import "github.com/jameskwon07/deploymaster/domain"

// Identity is the immutable identity of this agent process, created once at
// startup. The registry upserts by Name, so the same identity always maps
// to the same registry record.
type Identity struct {
	Name      string
	Platform  domain.Platform
	Version   string
	IPAddress string
}

// Session holds the mutable per-process registration state: the id assigned
// by the registry. It is passed by reference into the runtime loop; the id
// issued at registration is reused for every poll and for unregistration,
// never re-derived.
type Session struct {
	ID string
}
