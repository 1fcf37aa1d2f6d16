// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package area

import (
	"github.com/llnl/griddyn/bus"
	"github.com/llnl/griddyn/device"
	"github.com/llnl/griddyn/kernel"
)

// modelCloner is satisfied by anything capable of producing a structural
// deep copy of itself.
type modelCloner interface {
	Clone() kernel.Model
}

// terminalRewirer is satisfied by a Link whose terminals were cleared by
// Clone and need resolving against the new tree.
type terminalRewirer interface {
	SetTerminals(from, to *bus.Bus)
	PendingTerminalIDs() (fromID, toID int)
	ID() int
}

// Clone returns a structural deep copy of the area and its full subtree --
// sub-areas, buses (and their generators/loads), links, and relays,
// preserving each child's position in its list. The copy is not usable
// on its own: every weak
// reference a child's Clone left unresolved (a link's terminal buses, a
// bus's incident-link list, a relay's monitored current source) still
// needs a single UpdateObjectLinkages(root) pass before the clone is
// assembled or stepped.
func (a *Area) Clone() kernel.Model {
	c := &Area{
		Object:    a.Object.CloneBase(),
		nameIndex: make(map[string]kernel.Sizeable),
		network:   a.network,
	}
	for _, sub := range a.areas {
		nc, ok := sub.Clone().(*Area)
		if !ok {
			continue
		}
		c.AddArea(nc)
	}
	for _, b := range a.buses {
		nb, ok := b.Clone().(*bus.Bus)
		if !ok {
			continue
		}
		c.AddBus(nb)
	}
	for _, l := range a.links {
		mc, ok := l.(modelCloner)
		if !ok {
			continue
		}
		nl, ok := mc.Clone().(Link)
		if !ok {
			continue
		}
		c.AddLink(nl)
	}
	for _, r := range a.relays {
		mc, ok := r.(modelCloner)
		if !ok {
			continue
		}
		nr, ok := mc.Clone().(Relay)
		if !ok {
			continue
		}
		c.AddRelay(nr)
	}
	return c
}

// UpdateObjectLinkages walks a freshly cloned area's subtree and rewrites
// every weak reference so it points into the new tree instead of the
// source tree. It must be run exactly once, on the root Clone
// returned, before the clone is assembled: a Link's terminal buses, a
// Bus's incident-link list, and a Relay's monitored current source are all
// left unset by Clone and are rebuilt here purely from object ids found
// within the new tree, a single index-rewrite pass over the cloned
// arena. An id that cannot be resolved (the reference pointed outside
// this subtree, or at something Clone could not copy) raises
// ObjectUpdateFailure.
func UpdateObjectLinkages(root *Area) error {
	busByID := make(map[int]*bus.Bus)
	var rewirers []terminalRewirer
	var relays []*device.Relay

	var collect func(ar *Area)
	collect = func(ar *Area) {
		for _, b := range ar.buses {
			busByID[b.ID()] = b
		}
		for _, l := range ar.links {
			if tr, ok := l.(terminalRewirer); ok {
				rewirers = append(rewirers, tr)
			}
		}
		for _, r := range ar.relays {
			if dr, ok := r.(*device.Relay); ok {
				relays = append(relays, dr)
			}
		}
		for _, sub := range ar.areas {
			collect(sub)
		}
	}
	collect(root)

	for _, tr := range rewirers {
		fromID, toID := tr.PendingTerminalIDs()
		fromBus, okFrom := busByID[fromID]
		toBus, okTo := busByID[toID]
		if !okFrom || !okTo {
			return kernel.Newf(kernel.ObjectUpdateFailure, "updateObjectLinkages: link %d references unresolved bus id %d/%d", tr.ID(), fromID, toID)
		}
		tr.SetTerminals(fromBus, toBus)
	}

	// Incident-link lists are weak and were left empty by Bus.Clone; rebuild
	// them now that every link's terminals are resolved.
	var rebuildIncidence func(ar *Area)
	rebuildIncidence = func(ar *Area) {
		for _, l := range ar.links {
			il, ok := l.(bus.IncidentLink)
			if !ok {
				continue
			}
			from, to := l.FromBus(), l.ToBus()
			if from != nil {
				from.AddLink(il)
			}
			if to != nil && to != from {
				to.AddLink(il)
			}
		}
		for _, sub := range ar.areas {
			rebuildIncidence(sub)
		}
	}
	rebuildIncidence(root)

	for _, r := range relays {
		id, ok := r.PendingMonitorID()
		if !ok {
			continue
		}
		var resolved device.CurrentSource
		for _, tr := range rewirers {
			if tr.ID() != id {
				continue
			}
			if cs, ok := tr.(device.CurrentSource); ok {
				resolved = cs
			}
			break
		}
		if resolved == nil {
			return kernel.Newf(kernel.ObjectUpdateFailure, "updateObjectLinkages: relay %q monitor id %d not found in cloned tree", r.Name(), id)
		}
		r.SetMonitor(resolved)
	}
	return nil
}
