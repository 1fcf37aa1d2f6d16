// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bus

import "github.com/llnl/griddyn/kernel"

// parameterSettable is the optional mutation surface PropagatePower needs
// on the one unfixed device it assigns power to.
type parameterSettable interface {
	Set(name string, value float64) error
}

// PropagatePower closes the bus's power balance through its one unfixed
// attached object: the enabled-load and closed-link draw at the present
// operating point is summed and the single enabled, settable generator
// absorbs it as its dispatch. Pfixed/Qfixed are not read.
// makeSlack additionally promotes the bus to SLK so a following power flow
// treats the assignment as a boundary condition. A bus with zero or more
// than one unfixed object is over- or under-determined; the call returns
// without changes in that case.
func (b *Bus) PropagatePower(makeSlack bool) error {
	var free parameterSettable
	nFree := 0
	for _, g := range b.generators {
		if !g.IsEnabled() {
			continue
		}
		nFree++
		if s, ok := g.(parameterSettable); ok {
			free = s
		}
	}
	if nFree != 1 || free == nil {
		return nil
	}

	var sumP, sumQ float64
	for _, l := range b.loads {
		if !l.IsEnabled() {
			continue
		}
		sumP += l.RealPower(b.V, b.Theta, b.Freq)
		sumQ += l.ReactivePower(b.V, b.Theta, b.Freq)
	}
	for _, l := range b.links {
		if l.TerminalOpen(b.ID()) {
			continue
		}
		p, q := l.FlowAt(b.ID())
		sumP += p
		sumQ += q
	}

	if err := free.Set("p", sumP); err != nil {
		return err
	}
	if err := free.Set("q", sumQ); err != nil {
		return err
	}
	if makeSlack {
		b.Kind = SLK
	}
	b.Alert(b.ID(), kernel.VoltageControlChange)
	return nil
}
