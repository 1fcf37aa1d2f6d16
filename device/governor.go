// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package device

// Governor is a first-order droop governor: mechanical power responds to a
// speed deviation through a droop gain and a single lag time constant,
// matching the classical TGOV1-family shape referenced by the
// Generator sub-tree.
type Governor struct {
	Droop float64 // R, pu speed/pu power
	Tg    float64 // governor lag time constant, s
	Pref  float64 // reference mechanical power, pu

	pm float64 // current mechanical power output, pu (the governor's one state)
}

// NewGovernor returns a governor with the given droop and lag constant.
func NewGovernor(droop, tg float64) *Governor {
	return &Governor{Droop: droop, Tg: tg}
}

// Pmech returns the governor's current mechanical-power output.
func (g *Governor) Pmech() float64 { return g.pm }

// SetPmech forces the governor's internal state (used at initialization,
// when the mechanical power is set from the converged power-flow dispatch
// rather than integrated forward).
func (g *Governor) SetPmech(p float64) { g.pm = p }

// Derivative returns d(pm)/dt given the current speed deviation omega (pu):
// a first-order lag driving pm toward Pref - omega/Droop.
func (g *Governor) Derivative(omega float64) float64 {
	target := g.Pref - omega/g.Droop
	return (target - g.pm) / g.Tg
}
