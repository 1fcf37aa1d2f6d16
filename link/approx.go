// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package link implements the connecting-branch model object:
// an AC line between two bus terminals with nine selectable flow-
// approximation levels, fault-branch splitting, and an adjustable
// transformer built on top of the same admittance core.
package link

import (
	"math"

	"github.com/llnl/griddyn/kernel"
)

// Level names the nine approximation levels. Each is a
// distinct combination of the kernel.Approx bits (decoupled, small-angle,
// simplified) plus the two standalone levels (fast-decoupled, linear/DC)
// that are not expressible as a combination of the other three.
type Level int

const (
	Full Level = iota
	Decoupled
	SmallAngle
	SmallAngleDecoupled
	Simplified
	SimplifiedDecoupled
	SimplifiedSmallAngle
	FastDecoupled
	Linear
)

// Approx converts a named Level into the kernel's bitset form (used by
// kernel.Mode.Approx when a solver mode pins a particular branch to one
// approximation regardless of the branch's own default).
func (l Level) Approx() kernel.Approx {
	switch l {
	case Decoupled:
		return kernel.ApproxDecoupled
	case SmallAngle:
		return kernel.ApproxSmallAngle
	case SmallAngleDecoupled:
		return kernel.ApproxSmallAngle | kernel.ApproxDecoupled
	case Simplified:
		return kernel.ApproxSimplified
	case SimplifiedDecoupled:
		return kernel.ApproxSimplified | kernel.ApproxDecoupled
	case SimplifiedSmallAngle:
		return kernel.ApproxSimplified | kernel.ApproxSmallAngle
	case FastDecoupled:
		return kernel.ApproxFastDecoupled
	case Linear:
		return kernel.ApproxLinear
	}
	return 0
}

// admittance holds the series (g,b) and shunt charging susceptance (bc, per
// end) derived from R/X/B, possibly degraded by the active approximation.
type admittance struct {
	g, b, bc float64
}

// seriesAdmittance computes g+jb from the branch's R/X, applying the
// approximation's simplifications: "decoupled" and "simplified" both drop
// the series resistance (treat the branch as lossless) since the classical
// fast-decoupled/simplified power-flow formulations assume R << X.
func seriesAdmittance(r, x, b float64, a kernel.Approx) admittance {
	if a&(kernel.ApproxDecoupled|kernel.ApproxSimplified|kernel.ApproxFastDecoupled) != 0 {
		r = 0
	}
	denom := r*r + x*x
	if denom == 0 {
		return admittance{g: 0, b: 0, bc: b / 2}
	}
	return admittance{g: r / denom, b: -x / denom, bc: b / 2}
}

// angleTrig returns (sin, cos) of the angle difference d, using the
// small-angle linearization (sin(d)~=d, cos(d)~=1) when requested.
func angleTrig(d float64, a kernel.Approx) (s, c float64) {
	if a&kernel.ApproxSmallAngle != 0 {
		return d, 1
	}
	return math.Sin(d), math.Cos(d)
}

// flows evaluates the from-end (P1,Q1) and to-end (P2,Q2) injections of a
// pi-section branch, the from-side voltage referred through the tap as
// V1/t (so the self term scales by 1/t^2 and the mutual term V1*V2/t),
// per the nine-level approximation table:
//   - Linear: the DC power-flow form, P only, proportional to angle
//     difference over reactance, Q always zero.
//   - FastDecoupled: P uses only the b term (no g cross-coupling), Q uses
//     only the v^2*b term; matches the classical B'/B'' decoupling.
//   - Decoupled/Simplified (and their small-angle variants): handled by
//     seriesAdmittance/angleTrig above; the general formula below then
//     applies with the degraded g/b/trig inputs.
func flows(v1, th1, v2, th2, tap, r, x, b float64, a kernel.Approx) (p1, q1, p2, q2 float64) {
	v1 /= tap
	if a&kernel.ApproxLinear != 0 {
		p1 = (th1 - th2) / x
		p2 = -p1
		return
	}
	y := seriesAdmittance(r, x, b, a)
	d12 := th1 - th2
	s12, c12 := angleTrig(d12, a)
	s21, c21 := -s12, c12

	if a&kernel.ApproxFastDecoupled != 0 {
		p1 = -v1 * v2 * y.b * s12
		q1 = -v1 * v1 * (y.b + y.bc)
		p2 = -v2 * v1 * y.b * s21
		q2 = -v2 * v2 * (y.b + y.bc)
		return
	}

	p1 = v1*v1*y.g - v1*v2*(y.g*c12+y.b*s12)
	q1 = -v1*v1*(y.b+y.bc) - v1*v2*(y.g*s12-y.b*c12)
	p2 = v2*v2*y.g - v2*v1*(y.g*c21+y.b*s21)
	q2 = -v2*v2*(y.b+y.bc) - v2*v1*(y.g*s21-y.b*c21)
	return
}

// linkDeriv is the partial-derivative table matched to flows: the
// sensitivity of each terminal injection to the four terminal quantities,
// under the same approximation bits the flows were computed with. Field
// naming reads d<flow>d<variable> with 1 = from end, 2 = to end.
type linkDeriv struct {
	dP1dV1, dP1dV2, dP1dTh1, dP1dTh2 float64
	dQ1dV1, dQ1dV2, dQ1dTh1, dQ1dTh2 float64
	dP2dV1, dP2dV2, dP2dTh1, dP2dTh2 float64
	dQ2dV1, dQ2dV2, dQ2dTh1, dQ2dTh2 float64
}

// angleTrigDeriv returns d(sin)/dd and d(cos)/dd under the same
// linearization angleTrig applies: the small-angle forms sin(d)~=d,
// cos(d)~=1 differentiate to 1 and 0.
func angleTrigDeriv(d float64, a kernel.Approx) (ds, dc float64) {
	if a&kernel.ApproxSmallAngle != 0 {
		return 1, 0
	}
	return math.Cos(d), -math.Sin(d)
}

// derivs evaluates the derivative-calculator matched to flows for the same
// nine approximation levels: every branch below differentiates exactly the
// expression its twin in flows evaluates, so a finite difference on the
// computed flows reproduces this table to rounding error. The from-side
// voltage is referred through the tap as u = V1/t, so every dV1
// sensitivity carries a final 1/t.
func derivs(v1, th1, v2, th2, tap, r, x, b float64, a kernel.Approx) (d linkDeriv) {
	u := v1 / tap
	if a&kernel.ApproxLinear != 0 {
		d.dP1dTh1, d.dP1dTh2 = 1/x, -1/x
		d.dP2dTh1, d.dP2dTh2 = -1/x, 1/x
		return
	}
	y := seriesAdmittance(r, x, b, a)
	dd := th1 - th2
	s, _ := angleTrig(dd, a)
	ds, dc := angleTrigDeriv(dd, a)

	if a&kernel.ApproxFastDecoupled != 0 {
		d.dP1dV1 = -v2 * y.b * s / tap
		d.dP1dV2 = -u * y.b * s
		dP1dd := -u * v2 * y.b * ds
		d.dP1dTh1, d.dP1dTh2 = dP1dd, -dP1dd

		d.dQ1dV1 = -2 * u * (y.b + y.bc) / tap

		d.dP2dV1 = v2 * y.b * s / tap
		d.dP2dV2 = u * y.b * s
		dP2dd := u * v2 * y.b * ds
		d.dP2dTh1, d.dP2dTh2 = dP2dd, -dP2dd

		d.dQ2dV2 = -2 * v2 * (y.b + y.bc)
		return
	}

	_, c := angleTrig(dd, a)
	k1 := y.g*c + y.b*s // couples the from-end real power
	k2 := y.g*s - y.b*c // couples the from-end reactive power
	k3 := y.g*c - y.b*s // couples the to-end real power
	k4 := y.g*s + y.b*c // couples the to-end reactive power
	dk1 := y.g*dc + y.b*ds
	dk2 := y.g*ds - y.b*dc
	dk3 := y.g*dc - y.b*ds
	dk4 := y.g*ds + y.b*dc

	d.dP1dV1 = (2*u*y.g - v2*k1) / tap
	d.dP1dV2 = -u * k1
	dP1dd := -u * v2 * dk1
	d.dP1dTh1, d.dP1dTh2 = dP1dd, -dP1dd

	d.dQ1dV1 = (-2*u*(y.b+y.bc) - v2*k2) / tap
	d.dQ1dV2 = -u * k2
	dQ1dd := -u * v2 * dk2
	d.dQ1dTh1, d.dQ1dTh2 = dQ1dd, -dQ1dd

	d.dP2dV1 = -v2 * k3 / tap
	d.dP2dV2 = 2*v2*y.g - u*k3
	dP2dd := -v2 * u * dk3
	d.dP2dTh1, d.dP2dTh2 = dP2dd, -dP2dd

	d.dQ2dV1 = v2 * k4 / tap
	d.dQ2dV2 = -2*v2*(y.b+y.bc) + u*k4
	dQ2dd := v2 * u * dk4
	d.dQ2dTh1, d.dQ2dTh2 = dQ2dd, -dQ2dd
	return
}
