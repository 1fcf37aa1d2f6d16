// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package area

import (
	"strconv"

	"github.com/katalvlaran/lvlath/bfs"
	"github.com/katalvlaran/lvlath/core"

	"github.com/llnl/griddyn/bus"
	"github.com/llnl/griddyn/kernel"
)

// AllBuses collects every bus in this area and its sub-areas, in insertion
// order; the driver's assembly and recording passes walk the tree through
// it.
func (a *Area) AllBuses() []*bus.Bus { return a.allBuses() }

// AllLinks collects every link in this area and its sub-areas.
func (a *Area) AllLinks() []Link { return a.allLinks() }

// allBuses collects every bus in this area and its sub-areas.
func (a *Area) allBuses() []*bus.Bus {
	out := append([]*bus.Bus(nil), a.buses...)
	for _, sub := range a.areas {
		out = append(out, sub.allBuses()...)
	}
	return out
}

// allLinks collects every link in this area and its sub-areas.
func (a *Area) allLinks() []Link {
	out := append([]Link(nil), a.links...)
	for _, sub := range a.areas {
		out = append(out, sub.allLinks()...)
	}
	return out
}

func vertexID(busID int) string { return strconv.Itoa(busID) }

// followNetwork builds an incidence graph (buses as vertices, non-open
// links as edges) and labels each connected component with a distinct
// network number via repeated BFS from an unvisited vertex -- the
// concrete algorithm is
// lvlath/core.Graph + lvlath/bfs.BFS rather than a hand-rolled walk. Runs
// over the whole tree rooted at a (including sub-areas), since network
// partitions are a property of the electrical topology, not of area
// boundaries.
func (a *Area) followNetwork() error {
	g := core.NewGraph()
	all := a.allBuses()
	byID := make(map[string]*bus.Bus, len(all))
	for _, b := range all {
		if err := g.AddVertex(vertexID(b.ID())); err != nil {
			return err
		}
		byID[vertexID(b.ID())] = b
	}
	for _, l := range a.allLinks() {
		from, to := l.FromBus(), l.ToBus()
		if l.TerminalOpen(from.ID()) || l.TerminalOpen(to.ID()) {
			continue // an open terminal does not couple the two buses electrically
		}
		if _, err := g.AddEdge(vertexID(from.ID()), vertexID(to.ID()), 1); err != nil {
			return err
		}
	}

	network := 0
	visited := make(map[string]bool, len(all))
	for _, b := range all {
		id := vertexID(b.ID())
		if visited[id] {
			continue
		}
		res, err := bfs.BFS(g, id)
		if err != nil {
			return err
		}
		network++
		for _, v := range res.Order {
			visited[v] = true
			if bb, ok := byID[v]; ok {
				bb.Network = network
			}
		}
	}
	a.network = network
	return nil
}

// checkNetwork runs followNetwork if it has not yet been run this cycle,
// then verifies every partition contains at least one slack bus. hasSlack
// is supplied by the driver, which alone knows which bus.Type each bus
// was configured with.
func (a *Area) checkNetwork(hasSlack func(network int) bool) error {
	if a.network == 0 {
		if err := a.followNetwork(); err != nil {
			return err
		}
	}
	for n := 1; n <= a.network; n++ {
		if !hasSlack(n) {
			return kernel.Newf(kernel.NoSlackBusFound, "network partition %d has no slack bus", n)
		}
	}
	return nil
}

// CheckNetwork is the full checkNetwork algorithm, run before
// every power flow: disabled/incapable buses are disconnected, followNetwork
// relabels the remaining topology, and each resulting partition is resolved
// to a slack bus -- an existing SLK, a PV+afix pair treated as one, the
// largest-capacity PV promoted to SLK, or (per the area's NoAutoDisconnect
// flag) the partition is disconnected rather than failing the whole solve.
// Returns the number of buses that were disconnected because their
// partition lacked a slack and a promotion candidate.
func (a *Area) CheckNetwork() (disconnected int, err error) {
	for _, b := range a.allBuses() {
		if !b.IsEnabled() || b.Disconnected {
			b.Disconnected = true
		}
	}
	a.network = 0
	if err := a.followNetwork(); err != nil {
		return 0, err
	}

	byNetwork := make(map[int][]*bus.Bus)
	for _, b := range a.allBuses() {
		if b.Disconnected {
			continue
		}
		byNetwork[b.Network] = append(byNetwork[b.Network], b)
	}

	noAutoDisconnect := a.Flags().Has(kernel.FlagNoAutoDisconnect)

	active := 0
	for _, members := range byNetwork {
		active += len(members)
	}
	if active == 0 {
		// a tree with nothing connectable has no partition to resolve a
		// slack for; whether that is an error is the same policy question
		// as an unresolvable partition
		if noAutoDisconnect {
			return disconnected, kernel.Newf(kernel.NoSlackBusFound, "no connectable bus in the tree and auto-disconnect is disabled")
		}
		return disconnected, nil
	}

	for n := 1; n <= a.network; n++ {
		members := byNetwork[n]
		if len(members) == 0 {
			continue // every bus in this component was already disconnected above
		}
		if resolved := resolveSlack(members); resolved {
			continue
		}
		if noAutoDisconnect {
			return disconnected, kernel.Newf(kernel.NoSlackBusFound, "network partition %d has no slack bus and auto-disconnect is disabled", n)
		}
		for _, b := range members {
			b.Disconnect()
		}
		disconnected += len(members)
	}
	return disconnected, nil
}

// resolveSlack applies the per-partition resolution order: an
// existing SLK bus is sufficient; otherwise a PV bus paired with a separate
// afix bus is treated as one; otherwise the PV bus with the largest
// generation capacity is promoted to SLK. Returns false only when none of
// the three apply, leaving the caller to enforce the disconnect/fail policy.
func resolveSlack(members []*bus.Bus) bool {
	var hasPV, hasAfix bool
	var bestPV *bus.Bus
	var bestCapacity float64
	for _, b := range members {
		switch b.Kind {
		case bus.SLK:
			return true
		case bus.Afix:
			hasAfix = true
		case bus.PV:
			hasPV = true
			if c := b.GenCapacity(); bestPV == nil || c > bestCapacity {
				bestPV, bestCapacity = b, c
			}
		}
	}
	if hasPV && hasAfix {
		return true
	}
	if bestPV != nil {
		bestPV.Kind = bus.SLK
		return true
	}
	return false
}
