// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bus

import "github.com/llnl/griddyn/kernel"

// UpdateLocalCache is a no-op if sD's sequence ID matches the cached one;
// otherwise it re-reads V/theta/f and sums incident-link flows and attached
// generator/load power.
func (b *Bus) UpdateLocalCache(inputs []float64, sD *kernel.StateData, mode kernel.Mode) {
	if b.cache.Fresh(sD.SeqID) {
		return
	}
	if mode.ExtendedState {
		rec := b.Offsets().Record(mode)
		loc := kernel.GetLocations(mode, rec)
		if loc.AlgLoc != kernel.KNullLocation {
			b.sumPload = sD.State[loc.AlgLoc]
			b.sumQload = sD.State[loc.AlgLoc+1]
		}
	}

	b.sumPgen, b.sumQgen = 0, 0
	for _, g := range b.generators {
		if !g.IsEnabled() {
			continue
		}
		b.sumPgen += g.RealPower(b.V, b.Theta, b.Freq)
		b.sumQgen += g.ReactivePower(b.V, b.Theta, b.Freq)
	}

	if !mode.ExtendedState {
		b.sumPload, b.sumQload = 0, 0
		for _, l := range b.loads {
			if !l.IsEnabled() {
				continue
			}
			b.sumPload += l.RealPower(b.V, b.Theta, b.Freq)
			b.sumQload += l.ReactivePower(b.V, b.Theta, b.Freq)
		}
	}

	b.sumPlink, b.sumQlink = 0, 0
	for _, l := range b.links {
		if l.TerminalOpen(b.ID()) {
			continue
		}
		p, q := l.FlowAt(b.ID())
		b.sumPlink += p
		b.sumQlink += q
	}
}

// Injections returns the bus's net (generation - load) power pair from the
// last cache refresh, the quantity the persisted-state boundary records
// per bus.
func (b *Bus) Injections() (p, q float64) {
	return b.sumPgen - b.sumPload, b.sumQgen - b.sumQload
}

// PowerBalance returns the bus's current nodal-balance residual pair,
// which a converged power flow closes at every connected bus:
// sum(gen) - sum(load) - sum(link flow) == 0 within tolerance.
func (b *Bus) PowerBalance() (dp, dq float64) {
	return b.sumPgen - b.sumPload - b.sumPlink, b.sumQgen - b.sumQload - b.sumQlink
}
