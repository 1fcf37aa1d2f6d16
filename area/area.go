// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package area implements the hierarchical composite object
// and the assembly pipeline (ListMaintainer) that walks it.
package area

import (
	"github.com/llnl/griddyn/bus"
	"github.com/llnl/griddyn/kernel"
)

// Link is the subset of link.Link's contract an Area needs to own it
// directly (as opposed to a bus's weak incident-link references): full
// Model participation plus the network-partition primitives followNetwork
// needs. Declared here rather than imported from package link to avoid a
// link->area import cycle (an Area owns Links, a Link never references an
// Area).
type Link interface {
	kernel.Model
	TerminalOpen(busID int) bool
	FlowAt(busID int) (p, q float64)
	FromBus() *bus.Bus
	ToBus() *bus.Bus
}

// Relay is the subset of device.Relay's contract an Area needs.
type Relay interface {
	kernel.Model
}

// Area is the composite object: a tree of sub-areas, buses, links, and
// relays, with a flattened primaryObjects view used by the assembly
// pipeline.
type Area struct {
	kernel.Object

	areas  []*Area
	buses  []*bus.Bus
	links  []Link
	relays []Relay

	nameIndex map[string]kernel.Sizeable

	network int // count of distinct network partitions found by followNetwork

	suppressAlerts bool
	pendingAlerts  []pendingAlert

	cache kernel.Cache
}

type pendingAlert struct {
	source int
	code   kernel.AlertCode
}

// Alert intercepts upward propagation while an adjustment walk is in
// flight: structural rebuilds happen at pass boundaries, never mid-walk,
// so alerts raised by adjusting children are queued and replayed when the
// walk exits (see PowerFlowAdjust).
func (a *Area) Alert(source int, code kernel.AlertCode) {
	if a.suppressAlerts {
		a.pendingAlerts = append(a.pendingAlerts, pendingAlert{source, code})
		return
	}
	a.Object.Alert(source, code)
}

// New returns an empty area.
func New(id int, name string) *Area {
	a := &Area{Object: kernel.NewObject(id, name), nameIndex: make(map[string]kernel.Sizeable)}
	a.Flags().Set(kernel.FlagEnabled)
	return a
}

// AddArea attaches a sub-area, installing the weak parent-alert
// reference.
func (a *Area) AddArea(child *Area) {
	child.SetParent(a)
	a.areas = append(a.areas, child)
	a.nameIndex[child.Name()] = child
	a.Alert(child.ID(), kernel.ObjectCountIncrease)
}

// AddBus attaches a bus.
func (a *Area) AddBus(b *bus.Bus) {
	b.SetParent(a)
	a.buses = append(a.buses, b)
	a.nameIndex[b.Name()] = b
	a.Alert(b.ID(), kernel.ObjectCountIncrease)
}

// AddLink attaches a link, owned directly by the area; buses hold only
// weak references to their incident links.
func (a *Area) AddLink(l Link) {
	a.links = append(a.links, l)
	a.nameIndex[linkName(l)] = l
	a.Alert(0, kernel.ObjectCountIncrease)
}

// AddRelay attaches a relay.
func (a *Area) AddRelay(r Relay) {
	a.relays = append(a.relays, r)
	a.Alert(0, kernel.ObjectCountIncrease)
}

func linkName(l Link) string {
	if n, ok := l.(interface{ Name() string }); ok {
		return n.Name()
	}
	return ""
}

// Areas/Buses/Links/Relays expose the direct-child lists.
func (a *Area) Areas() []*Area   { return a.areas }
func (a *Area) Buses() []*bus.Bus { return a.buses }
func (a *Area) Links() []Link    { return a.links }
func (a *Area) RelaysList() []Relay { return a.relays }

// FindByName resolves a direct child by name; it
// does not recurse into sub-areas, matching gridDyn's per-level lookup
// scope.
func (a *Area) FindByName(name string) (kernel.Sizeable, bool) {
	s, ok := a.nameIndex[name]
	return s, ok
}

// userIdentified is the optional lookup surface FindByUserID matches on.
type userIdentified interface {
	UserID() int
}

// FindByUserID resolves a direct child of the given kind ("area", "bus",
// "link", "relay") by its user-assigned id.
func (a *Area) FindByUserID(kind string, id int) (kernel.Sizeable, bool) {
	for _, child := range a.childrenOfKind(kind) {
		if u, ok := child.(userIdentified); ok && u.UserID() == id {
			return child, true
		}
	}
	return nil, false
}

// GetSubObject returns the index-th direct child of the given kind, in
// insertion order.
func (a *Area) GetSubObject(kind string, index int) (kernel.Sizeable, bool) {
	children := a.childrenOfKind(kind)
	if index < 0 || index >= len(children) {
		return nil, false
	}
	return children[index], true
}

func (a *Area) childrenOfKind(kind string) []kernel.Sizeable {
	var out []kernel.Sizeable
	switch kind {
	case "area":
		for _, sub := range a.areas {
			out = append(out, sub)
		}
	case "bus":
		for _, b := range a.buses {
			out = append(out, b)
		}
	case "link":
		for _, l := range a.links {
			out = append(out, l)
		}
	case "relay":
		for _, r := range a.relays {
			out = append(out, r)
		}
	}
	return out
}

// Remove detaches a direct child by name, releasing the area's owning
// reference. A name present in the index but missing from every typed
// list means the bookkeeping went inconsistent; that returns
// ObjectRemoveFailure and leaves the index entry for a later rebuild.
func (a *Area) Remove(name string) error {
	child, ok := a.nameIndex[name]
	if !ok {
		return kernel.Newf(kernel.UnrecognizedObject, "area %q owns no object named %q", a.Name(), name)
	}
	for i, sub := range a.areas {
		if kernel.Sizeable(sub) == child {
			a.areas = append(a.areas[:i], a.areas[i+1:]...)
			return a.removed(name)
		}
	}
	for i, b := range a.buses {
		if kernel.Sizeable(b) == child {
			a.buses = append(a.buses[:i], a.buses[i+1:]...)
			return a.removed(name)
		}
	}
	for i, l := range a.links {
		if kernel.Sizeable(l) == child {
			a.links = append(a.links[:i], a.links[i+1:]...)
			return a.removed(name)
		}
	}
	for i, r := range a.relays {
		if kernel.Sizeable(r) == child {
			a.relays = append(a.relays[:i], a.relays[i+1:]...)
			return a.removed(name)
		}
	}
	return kernel.Newf(kernel.ObjectRemoveFailure, "area %q: object %q is indexed but missing from its list", a.Name(), name)
}

func (a *Area) removed(name string) error {
	delete(a.nameIndex, name)
	a.Alert(0, kernel.ObjectCountDecrease)
	return nil
}

// PrimaryObjects flattens this area's direct buses, links, relays, and
// sub-areas into the single list the ListMaintainer classifies; it
// does not recurse beyond one level since each sub-area
// maintains its own ListMaintainer independently.
func (a *Area) PrimaryObjects() []kernel.Sizeable {
	out := make([]kernel.Sizeable, 0, len(a.buses)+len(a.links)+len(a.relays)+len(a.areas))
	for _, b := range a.buses {
		out = append(out, b)
	}
	for _, l := range a.links {
		out = append(out, l)
	}
	for _, r := range a.relays {
		out = append(out, r)
	}
	for _, sub := range a.areas {
		out = append(out, sub)
	}
	return out
}
