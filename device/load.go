// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package device

import "github.com/llnl/griddyn/kernel"

// Load is a constant P/I/Z (ZIP) load: real and reactive power are each a
// sum of a constant-power, constant-current, and constant-impedance term
// evaluated at the bus's per-unit voltage.
type Load struct {
	Leaf

	P, Q   float64 // constant-power terms, pu
	Ip, Iq float64 // constant-current terms, pu
	Yp, Yq float64 // constant-impedance terms, pu

	baseKV float64
}

// NewLoad returns a disabled-by-default-false Load with zero ZIP terms.
func NewLoad(id int, name string) *Load {
	l := &Load{Leaf: Leaf{Object: kernel.NewObject(id, name)}}
	l.Flags().Set(kernel.FlagEnabled)
	return l
}

// RealPower evaluates the ZIP real-power draw at voltage v (theta, f
// unused by a constant-frequency-independent load).
func (l *Load) RealPower(v, theta, f float64) float64 {
	return l.P + l.Ip*v + l.Yp*v*v
}

// ReactivePower evaluates the ZIP reactive-power draw at voltage v.
func (l *Load) ReactivePower(v, theta, f float64) float64 {
	return l.Q + l.Iq*v + l.Yq*v*v
}

// SetBaseVoltage records the bus's base kV, for devices (none here, yet
// present for interface symmetry with generators that do convert) that
// need it to translate a nameplate rating into pu.
func (l *Load) SetBaseVoltage(kv float64) { l.baseKV = kv }

// JacobianElements writes the ZIP draw's voltage sensitivity into the
// owning bus's nodal rows. inputLocs carries the four locations the bus
// assembly hands every attached device: [rowP, rowQ, colTheta, colV],
// with KNullLocation entries skipped. The draw enters the balance with a
// minus sign; the constant-power terms contribute nothing.
func (l *Load) JacobianElements(inputs []float64, sD *kernel.StateData, matrixData kernel.JacobianSink, inputLocs []int, mode kernel.Mode) error {
	if matrixData == nil || len(inputLocs) < 4 {
		return nil
	}
	rowP, rowQ, colV := inputLocs[0], inputLocs[1], inputLocs[3]
	if colV == kernel.KNullLocation || len(inputs) == 0 {
		return nil
	}
	v := inputs[0]
	if rowP != kernel.KNullLocation {
		if d := l.Ip + 2*l.Yp*v; d != 0 {
			matrixData.Put(rowP, colV, -d)
		}
	}
	if rowQ != kernel.KNullLocation {
		if d := l.Iq + 2*l.Yq*v; d != 0 {
			matrixData.Put(rowQ, colV, -d)
		}
	}
	return nil
}

// Get implements the closed-match unit-free getter for ZIP parameters.
func (l *Load) Get(name, unit string) (float64, error) {
	switch name {
	case "p":
		return kernel.GetUnit(l.P, "pu", unit)
	case "q":
		return kernel.GetUnit(l.Q, "pu", unit)
	case "ip":
		return l.Ip, nil
	case "iq":
		return l.Iq, nil
	case "yp":
		return l.Yp, nil
	case "yq":
		return l.Yq, nil
	}
	return 0, kernel.Newf(kernel.UnrecognizedParameter, "load %q has no parameter %q", l.Name(), name)
}

// Set implements the closed-match setter; no ZIP coefficient has a domain
// restriction narrower than "any real number" so only the name match can
// fail here.
func (l *Load) Set(name string, value float64) error {
	switch name {
	case "p":
		l.P = value
	case "q":
		l.Q = value
	case "ip":
		l.Ip = value
	case "iq":
		l.Iq = value
	case "yp":
		l.Yp = value
	case "yq":
		l.Yq = value
	default:
		return kernel.Newf(kernel.UnrecognizedParameter, "load %q has no parameter %q", l.Name(), name)
	}
	return nil
}

// Clone returns a structural deep copy of the load).
func (l *Load) Clone() kernel.Model {
	return &Load{
		Leaf:   Leaf{Object: l.Object.CloneBase()},
		P:      l.P,
		Q:      l.Q,
		Ip:     l.Ip,
		Iq:     l.Iq,
		Yp:     l.Yp,
		Yq:     l.Yq,
		baseKV: l.baseKV,
	}
}

// CompositeLoad distributes bus voltage/frequency across a set of inner
// loads weighted by a fraction each: the composite's own
// RealPower/ReactivePower are the fraction-weighted sum of its inner
// loads' contributions.
type CompositeLoad struct {
	Leaf

	inner     []*Load
	fractions []float64
}

// NewCompositeLoad returns an empty composite; use AddComponent to attach
// inner loads.
func NewCompositeLoad(id int, name string) *CompositeLoad {
	c := &CompositeLoad{Leaf: Leaf{Object: kernel.NewObject(id, name)}}
	c.Flags().Set(kernel.FlagEnabled)
	return c
}

// AddComponent attaches an inner load with the given blend fraction.
// Fractions are not required to sum to 1: the composite reports the raw
// weighted sum, leaving any "other" residual component implicit.
func (c *CompositeLoad) AddComponent(inner *Load, fraction float64) {
	c.inner = append(c.inner, inner)
	c.fractions = append(c.fractions, fraction)
}

// RealPower is the fraction-weighted sum of each inner load's real power.
func (c *CompositeLoad) RealPower(v, theta, f float64) float64 {
	var sum float64
	for i, ld := range c.inner {
		sum += c.fractions[i] * ld.RealPower(v, theta, f)
	}
	return sum
}

// ReactivePower is the fraction-weighted sum of each inner load's reactive power.
func (c *CompositeLoad) ReactivePower(v, theta, f float64) float64 {
	var sum float64
	for i, ld := range c.inner {
		sum += c.fractions[i] * ld.ReactivePower(v, theta, f)
	}
	return sum
}

// scaledSink forwards Put with a constant blend factor applied, so an
// inner load's partials arrive fraction-weighted exactly like its power.
type scaledSink struct {
	inner  kernel.JacobianSink
	factor float64
}

func (s scaledSink) Put(i, j int, val float64) { s.inner.Put(i, j, val*s.factor) }

// JacobianElements forwards to each inner load through a fraction-scaling
// sink, mirroring the weighted sum RealPower/ReactivePower report.
func (c *CompositeLoad) JacobianElements(inputs []float64, sD *kernel.StateData, matrixData kernel.JacobianSink, inputLocs []int, mode kernel.Mode) error {
	if matrixData == nil {
		return nil
	}
	for i, ld := range c.inner {
		if err := ld.JacobianElements(inputs, sD, scaledSink{matrixData, c.fractions[i]}, inputLocs, mode); err != nil {
			return err
		}
	}
	return nil
}

// SubObjects overrides Leaf: a composite load's inner loads size and
// offset alongside it.
func (c *CompositeLoad) SubObjects() []kernel.Sizeable {
	subs := make([]kernel.Sizeable, len(c.inner))
	for i, ld := range c.inner {
		subs[i] = ld
	}
	return subs
}

// Clone returns a structural deep copy, including a fresh copy of every
// inner load "structural deep copy of owned
// sub-objects").
func (c *CompositeLoad) Clone() kernel.Model {
	n := &CompositeLoad{
		Leaf:      Leaf{Object: c.Object.CloneBase()},
		fractions: append([]float64(nil), c.fractions...),
	}
	for _, ld := range c.inner {
		n.inner = append(n.inner, ld.Clone().(*Load))
	}
	return n
}
