// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bus

import "github.com/llnl/griddyn/kernel"

// SubObjects returns the bus's owned children: generators and loads.
// Incident links are weak references used only for flow aggregation --
// they are owned and sized by the enclosing area, not by the bus.
func (b *Bus) SubObjects() []kernel.Sizeable {
	subs := make([]kernel.Sizeable, 0, len(b.generators)+len(b.loads))
	for _, g := range b.generators {
		subs = append(subs, g)
	}
	for _, l := range b.loads {
		subs = append(subs, l)
	}
	return subs
}

// LocalSizes returns the bus's own algebraic/differential contribution:
// two extra algebraic states (the aggregate P,Q that feed
// updateLocalCache's extended-mode load sums), zero otherwise.
func (b *Bus) LocalSizes(mode kernel.Mode) kernel.LocalSize {
	if mode.ExtendedState {
		return kernel.LocalSize{Alg: 2}
	}
	return kernel.LocalSize{}
}
