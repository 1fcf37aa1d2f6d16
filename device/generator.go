// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package device

import (
	"math"
	"math/cmplx"

	"github.com/llnl/griddyn/kernel"
)

// Generator is a classical constant-voltage-behind-reactance swing/PV
// source with an attached Governor and Exciter. In power-flow
// mode it injects its setpoint (Pset, Qset) directly; in dynamic mode it
// carries two differential states of its own (rotor angle delta, speed
// deviation omega) plus whatever its Governor/Exciter contribute.
type Generator struct {
	Leaf

	Pset, Qset float64 // pu dispatch, set by power-flow adjustment
	Xd         float64 // pu transient reactance
	H          float64 // inertia constant, s
	D          float64 // damping coefficient, pu
	E          float64 // internal EMF magnitude when no exciter governs it

	Swing bool // true => angle reference (slack) machine

	Governor *Governor
	Exciter  Exciter

	delta, omega float64 // dynamic states: rotor angle (rad), speed deviation (pu)

	baseKV float64
}

// NewGenerator returns a generator with default inertia/damping.
func NewGenerator(id int, name string) *Generator {
	g := &Generator{Leaf: Leaf{Object: kernel.NewObject(id, name)}, H: 5, D: 1, Xd: 0.3, E: 1}
	g.Flags().Set(kernel.FlagEnabled)
	g.Flags().Set(kernel.FlagHasDynStates)
	g.Flags().Set(kernel.FlagHasPowerflowAdjustments)
	return g
}

// RealPower returns the generator's real-power injection. During dynamic
// simulation this is the classical machine's electrical power output,
// E*V*sin(delta-theta)/Xd; during power flow (no dynamic init yet) it is
// simply the dispatch setpoint.
func (g *Generator) RealPower(v, theta, f float64) float64 {
	if !g.Flags().Has(kernel.FlagInitializedForDyn) {
		return g.Pset
	}
	efd := g.efd()
	return efd * v * math.Sin(g.delta-theta) / g.Xd
}

// ReactivePower returns the generator's reactive-power injection, by the
// same split as RealPower.
func (g *Generator) ReactivePower(v, theta, f float64) float64 {
	if !g.Flags().Has(kernel.FlagInitializedForDyn) {
		return g.Qset
	}
	efd := g.efd()
	return (efd*v*math.Cos(g.delta-theta) - v*v) / g.Xd
}

// Capacity reports the generator's real-power dispatch as a proxy for its
// upward capacity, used by an area's checkNetwork to pick which PV machine
// to promote to slack when a network partition has none: the kernel has
// no separate Pmax rating, so the present Pset dispatch stands in for
// it.
func (g *Generator) Capacity() float64 { return g.Pset }

func (g *Generator) efd() float64 {
	if g.Exciter != nil {
		return g.Exciter.Efd()
	}
	return g.E
}

// SetBaseVoltage records the bus's base kV for per-unit bookkeeping.
func (g *Generator) SetBaseVoltage(kv float64) { g.baseKV = kv }

// LocalSizes reports two differential states (delta, omega) in dynamic
// mode, none in power-flow-only mode.
func (g *Generator) LocalSizes(mode kernel.Mode) kernel.LocalSize {
	if mode.Dynamic {
		return kernel.LocalSize{Diff: 2, Jac: 6}
	}
	return kernel.LocalSize{}
}

// DynInitializeA marks the generator as dynamics-enabled and primes the
// governor's mechanical power from the converged power-flow dispatch.
func (g *Generator) DynInitializeA(t0 float64, flags uint32) error {
	g.Flags().Set(kernel.FlagInitializedForDyn)
	if g.Governor != nil {
		g.Governor.SetPmech(g.Pset)
	}
	return nil
}

// DynInitializeB back-solves the machine's internal EMF and rotor angle
// from the converged terminal conditions (inputs = the owning bus's
// (V, theta, f)) so the electrical output at t0 equals the power-flow
// dispatch exactly and the swing equation starts at equilibrium:
// E*exp(j*delta) = V*exp(j*theta) + j*Xd*conj((P+jQ)/V*exp(j*theta)).
func (g *Generator) DynInitializeB(inputs []float64, desiredOut []string) ([]string, error) {
	if len(inputs) < 2 {
		return nil, kernel.Newf(kernel.InvalidParameterValue, "generator %q: dynamic initialization requires bus (V, theta) inputs", g.Name())
	}
	v, theta := inputs[0], inputs[1]
	if v <= 0 {
		return nil, kernel.Newf(kernel.InvalidParameterValue, "generator %q: cannot initialize against bus voltage %v", g.Name(), v)
	}
	vc := complex(v*math.Cos(theta), v*math.Sin(theta))
	s := complex(g.Pset, g.Qset)
	i := cmplx.Conj(s / vc)
	e := vc + complex(0, g.Xd)*i
	g.E = cmplx.Abs(e)
	g.delta = cmplx.Phase(e)
	g.omega = 0
	if g.Exciter != nil {
		g.Exciter.SetEfd(g.E)
	}
	if g.Governor != nil {
		g.Governor.Pref = g.Pset
		g.Governor.SetPmech(g.Pset)
	}
	return []string{"delta", "omega"}, nil
}

// Derivative fills deriv at this generator's differential offsets with the
// classical swing-equation right-hand side, using inputs[0:3] = (V, theta,
// f) from the owning bus.
func (g *Generator) Derivative(inputs []float64, sD *kernel.StateData, deriv []float64, mode kernel.Mode) error {
	if !mode.Dynamic {
		return nil
	}
	rec := g.Offsets().Record(mode)
	loc := kernel.GetLocations(mode, rec)
	if loc.DiffLoc == kernel.KNullLocation {
		return nil
	}
	v, theta := inputs[0], inputs[1]
	pe := g.RealPower(v, theta, inputs[2])
	pm := g.Pset
	if g.Governor != nil {
		pm = g.Governor.Pmech()
	}
	omega0 := 2 * math.Pi * 60
	deriv[loc.DiffLoc] = g.omega * omega0
	deriv[loc.DiffLoc+1] = (pm - pe - g.D*g.omega) / (2 * g.H)
	return nil
}

// JacobianElements writes the machine's injection sensitivities into the
// owning bus's nodal rows. inputLocs carries the four locations the bus
// assembly hands every attached device: [rowP, rowQ, colTheta, colV],
// with KNullLocation entries skipped. During power flow the dispatch is a
// constant and the machine couples nothing; once dynamically initialized,
// the classical-model injection Pe = E*V*sin(delta-theta)/Xd,
// Qe = (E*V*cos(delta-theta) - V^2)/Xd couples both nodal rows to the
// terminal angle and magnitude. The rotor-angle column belongs to the
// differential half of the problem and stays on the driver's numerical
// path.
func (g *Generator) JacobianElements(inputs []float64, sD *kernel.StateData, matrixData kernel.JacobianSink, inputLocs []int, mode kernel.Mode) error {
	if matrixData == nil || len(inputLocs) < 4 || len(inputs) < 2 {
		return nil
	}
	if !g.Flags().Has(kernel.FlagInitializedForDyn) {
		return nil
	}
	rowP, rowQ, colTh, colV := inputLocs[0], inputLocs[1], inputLocs[2], inputLocs[3]
	v, theta := inputs[0], inputs[1]
	efd := g.efd()
	sn := math.Sin(g.delta - theta)
	cs := math.Cos(g.delta - theta)

	put := func(row, col int, val float64) {
		if row == kernel.KNullLocation || col == kernel.KNullLocation || val == 0 {
			return
		}
		matrixData.Put(row, col, val)
	}
	put(rowP, colV, efd*sn/g.Xd)
	put(rowP, colTh, -efd*v*cs/g.Xd)
	put(rowQ, colV, (efd*cs-2*v)/g.Xd)
	put(rowQ, colTh, efd*v*sn/g.Xd)
	return nil
}

// SetState installs (delta, omega) from the solver's state buffer.
func (g *Generator) SetState(t float64, state, dstate []float64) error {
	g.SetTime(t)
	if len(state) >= 2 {
		g.delta, g.omega = state[0], state[1]
	}
	return nil
}

// Guess reproduces SetState's inputs.
func (g *Generator) Guess(t float64, state, dstate []float64) error {
	if len(state) >= 2 {
		state[0], state[1] = g.delta, g.omega
	}
	return nil
}

// GetVariableType reports both of the generator's own states as differential.
func (g *Generator) GetVariableType(mode kernel.Mode) []kernel.VariableType {
	if !mode.Dynamic {
		return nil
	}
	return []kernel.VariableType{kernel.VarDifferential, kernel.VarDifferential}
}

// PowerFlowAdjust always reports NoChange: Qset is not adjusted here
// (clamping is left to the bus type). A non-swing generator at
// AdjustLowVoltageCheck or above returns an InvalidParameterValue error
// when the bus voltage it is given is not positive.
func (g *Generator) PowerFlowAdjust(inputs []float64, flags uint32, level kernel.AdjustLevel) (kernel.ChangeCode, error) {
	if g.Swing || level < kernel.AdjustLowVoltageCheck {
		return kernel.NoChange, nil
	}
	v := inputs[0]
	if v <= 0 {
		return kernel.NoChange, kernel.Newf(kernel.InvalidParameterValue, "generator %q: non-positive bus voltage %v during adjust", g.Name(), v)
	}
	return kernel.NoChange, nil
}

// GetStateName appends names for delta/omega.
func (g *Generator) GetStateName(names *[]string, mode kernel.Mode, prefix string) {
	if mode.Dynamic {
		*names = append(*names, prefix+g.Name()+".delta", prefix+g.Name()+".omega")
	}
}

// FindIndex resolves "delta"/"omega" to this generator's offsets.
func (g *Generator) FindIndex(field string, mode kernel.Mode) (int, bool) {
	rec := g.Offsets().Record(mode)
	switch field {
	case "delta":
		return rec.DiffOffset, true
	case "omega":
		return rec.DiffOffset + 1, true
	}
	return 0, false
}

// Clone returns a structural deep copy, including its own Governor (a
// plain value type, copied by value) and Exciter (copied when its concrete
// type is known; otherwise shared by reference, since the exciters this
// kernel ships carry no tree identity of their own to collide on).
func (g *Generator) Clone() kernel.Model {
	n := &Generator{
		Leaf:   Leaf{Object: g.Object.CloneBase()},
		Pset:   g.Pset,
		Qset:   g.Qset,
		Xd:     g.Xd,
		H:      g.H,
		D:      g.D,
		E:      g.E,
		Swing:  g.Swing,
		delta:  g.delta,
		omega:  g.omega,
		baseKV: g.baseKV,
	}
	if g.Governor != nil {
		gov := *g.Governor
		n.Governor = &gov
	}
	n.Exciter = cloneExciter(g.Exciter)
	return n
}

// cloneExciter copies an Exciter's value state when its concrete type is
// known to this package, recursing through ExciterWrapper's forwarding
// shim; an exciter of an unrecognized concrete type is shared by reference
// rather than dropped, since Generator.Clone has no unrecognized-object
// error path to report through.
func cloneExciter(e Exciter) Exciter {
	switch v := e.(type) {
	case nil:
		return nil
	case *SimpleAVR:
		c := *v
		return &c
	case *ExciterWrapper:
		return &ExciterWrapper{Inner: cloneExciter(v.Inner)}
	default:
		return e
	}
}

// Get implements the closed-match unit-free getter.
func (g *Generator) Get(name, unit string) (float64, error) {
	switch name {
	case "p", "pset":
		return kernel.GetUnit(g.Pset, "pu", unit)
	case "q", "qset":
		return kernel.GetUnit(g.Qset, "pu", unit)
	case "xd":
		return g.Xd, nil
	case "h":
		return g.H, nil
	case "delta":
		return kernel.GetUnit(g.delta, "rad", unit)
	}
	return 0, kernel.Newf(kernel.UnrecognizedParameter, "generator %q has no parameter %q", g.Name(), name)
}

// Set implements the closed-match setter.
func (g *Generator) Set(name string, value float64) error {
	switch name {
	case "p", "pset":
		g.Pset = value
	case "q", "qset":
		g.Qset = value
	case "xd":
		if value <= 0 {
			return kernel.Newf(kernel.InvalidParameterValue, "generator %q: xd must be > 0 (got %v)", g.Name(), value)
		}
		g.Xd = value
	case "h":
		if value <= 0 {
			return kernel.Newf(kernel.InvalidParameterValue, "generator %q: h must be > 0 (got %v)", g.Name(), value)
		}
		g.H = value
	default:
		return kernel.Newf(kernel.UnrecognizedParameter, "generator %q has no parameter %q", g.Name(), name)
	}
	return nil
}
