// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bus

import "github.com/llnl/griddyn/kernel"

// PFlowInitializeA propagates phase-A initialization to attached
// sub-devices (sizing and flag propagation).
func (b *Bus) PFlowInitializeA(t0 float64, flags uint32) error {
	b.Flags().Set(kernel.FlagInitializedForPflow)
	for _, g := range b.generators {
		if err := g.PFlowInitializeA(t0, flags); err != nil {
			return err
		}
	}
	for _, l := range b.loads {
		if err := l.PFlowInitializeA(t0, flags); err != nil {
			return err
		}
	}
	return nil
}

// PFlowInitializeB runs numerical initialization using the bus's own
// current outputs as neighbour information for sub-devices.
func (b *Bus) PFlowInitializeB() error {
	for _, g := range b.generators {
		if err := g.PFlowInitializeB(); err != nil {
			return err
		}
	}
	for _, l := range b.loads {
		if err := l.PFlowInitializeB(); err != nil {
			return err
		}
	}
	return nil
}

// DynInitializeA propagates dynamic phase-A initialization.
func (b *Bus) DynInitializeA(t0 float64, flags uint32) error {
	b.Flags().Set(kernel.FlagInitializedForDyn)
	for _, g := range b.generators {
		if err := g.DynInitializeA(t0, flags); err != nil {
			return err
		}
	}
	for _, l := range b.loads {
		if err := l.DynInitializeA(t0, flags); err != nil {
			return err
		}
	}
	return nil
}

// DynInitializeB forwards to sub-devices with the bus's own output vector
// as their input.
func (b *Bus) DynInitializeB(inputs []float64, desiredOut []string) ([]string, error) {
	var set []string
	outs := b.Outputs()
	in := outs[:]
	for _, g := range b.generators {
		fs, err := g.DynInitializeB(in, desiredOut)
		if err != nil {
			return nil, err
		}
		set = append(set, fs...)
	}
	for _, l := range b.loads {
		fs, err := l.DynInitializeB(in, desiredOut)
		if err != nil {
			return nil, err
		}
		set = append(set, fs...)
	}
	return set, nil
}

// Residual delegates to each enabled sub-device, passing the bus's output
// vector as their inputs and their output locations for coupling, then
// writes the nodal balance into the bus's own (possibly null)
// destination location.
func (b *Bus) Residual(inputs []float64, sD *kernel.StateData, resid []float64, mode kernel.Mode) error {
	b.UpdateLocalCache(inputs, sD, mode)
	outs := b.Outputs()
	in := outs[:]
	for _, g := range b.generators {
		if !g.IsEnabled() {
			continue
		}
		if err := g.Residual(in, sD, resid, mode); err != nil {
			return err
		}
	}
	for _, l := range b.loads {
		if !l.IsEnabled() {
			continue
		}
		if err := l.Residual(in, sD, resid, mode); err != nil {
			return err
		}
	}
	rec := b.Offsets().Record(mode)
	loc := kernel.GetLocations(mode, rec)
	if loc.DestLoc != kernel.KNullLocation && mode.ExtendedState {
		dp, dq := b.PowerBalance()
		resid[loc.DestLoc] += dp
		resid[loc.DestLoc+1] += dq
	}
	return nil
}

// Derivative forwards to sub-devices; a standard bus has no differential
// states of its own to contribute.
func (b *Bus) Derivative(inputs []float64, sD *kernel.StateData, deriv []float64, mode kernel.Mode) error {
	outs := b.Outputs()
	in := outs[:]
	for _, g := range b.generators {
		if g.IsEnabled() {
			if err := g.Derivative(in, sD, deriv, mode); err != nil {
				return err
			}
		}
	}
	for _, l := range b.loads {
		if l.IsEnabled() {
			if err := l.Derivative(in, sD, deriv, mode); err != nil {
				return err
			}
		}
	}
	return nil
}

// JacobianElements assembles the bus's own nodal-row couplings by
// delegating to every enabled attached device. inputLocs carries the four
// locations the enclosing assembly assigned this bus:
// [rowP, rowQ, colTheta, colV], any of which may be KNullLocation (a held
// slack quantity, a bus outside the problem). Incident-link couplings are
// not assembled here -- links are area-owned and contribute their own
// partials at both terminals through Link.JacobianElements.
func (b *Bus) JacobianElements(inputs []float64, sD *kernel.StateData, matrixData kernel.JacobianSink, inputLocs []int, mode kernel.Mode) error {
	if matrixData == nil || len(inputLocs) < 4 {
		return nil
	}
	outs := b.Outputs()
	in := outs[:]
	for _, g := range b.generators {
		if g.IsEnabled() {
			if err := g.JacobianElements(in, sD, matrixData, inputLocs, mode); err != nil {
				return err
			}
		}
	}
	for _, l := range b.loads {
		if l.IsEnabled() {
			if err := l.JacobianElements(in, sD, matrixData, inputLocs, mode); err != nil {
				return err
			}
		}
	}
	return nil
}

// AlgebraicUpdate forwards to sub-devices.
func (b *Bus) AlgebraicUpdate(inputs []float64, sD *kernel.StateData, update []float64, mode kernel.Mode, alpha float64) error {
	outs := b.Outputs()
	in := outs[:]
	for _, g := range b.generators {
		if g.IsEnabled() {
			if err := g.AlgebraicUpdate(in, sD, update, mode, alpha); err != nil {
				return err
			}
		}
	}
	return nil
}

// RootTest writes no roots: the bus and its attached generators and loads
// declare none (protection attaches to the area as a Relay instead).
func (b *Bus) RootTest(inputs []float64, sD *kernel.StateData, roots []float64, mode kernel.Mode) error {
	return nil
}

// RootTrigger is a no-op for a bus with no roots of its own.
func (b *Bus) RootTrigger(rootIndex int, t float64, inputs []float64, sD *kernel.StateData) (kernel.ChangeCode, error) {
	return kernel.NoChange, nil
}

// RootCheck reports no roots pending.
func (b *Bus) RootCheck(sD *kernel.StateData, mode kernel.Mode) (bool, error) { return false, nil }

// SetState installs the extended-mode auxiliary states, if present.
func (b *Bus) SetState(t float64, state, dstate []float64) error {
	b.SetTime(t)
	if len(state) >= 2 {
		b.extAuxAlg[0], b.extAuxAlg[1] = state[0], state[1]
	}
	return nil
}

// Guess reproduces SetState's inputs bit-for-bit (round-trip property,
// ).
func (b *Bus) Guess(t float64, state, dstate []float64) error {
	if len(state) >= 2 {
		state[0], state[1] = b.extAuxAlg[0], b.extAuxAlg[1]
	}
	return nil
}

// GetTols returns per-state absolute/relative tolerances.
func (b *Bus) GetTols(mode kernel.Mode) (atol, rtol []float64) {
	n := b.StateSize(mode)
	atol = make([]float64, n)
	rtol = make([]float64, n)
	for i := range atol {
		atol[i], rtol[i] = b.Atol, 1e-8
	}
	return
}

// GetVariableType reports every bus state as algebraic (a bus never owns a
// differential state directly).
func (b *Bus) GetVariableType(mode kernel.Mode) []kernel.VariableType {
	n := b.StateSize(mode)
	out := make([]kernel.VariableType, n)
	for i := range out {
		out[i] = kernel.VarAlgebraic
	}
	return out
}

// GetConstraints returns no bound constraints for a standard bus.
func (b *Bus) GetConstraints(mode kernel.Mode) []float64 { return nil }

// GetOutputs returns the bus's (V, theta, f) output tuple.
func (b *Bus) GetOutputs(inputs []float64, sD *kernel.StateData, mode kernel.Mode) []float64 {
	b.UpdateLocalCache(inputs, sD, mode)
	outs := b.Outputs()
	return outs[:]
}

// GetOutputLocs returns (kNull, kNull, kNull): a standard bus's outputs are
// not themselves solver-managed state locations.
func (b *Bus) GetOutputLocs(mode kernel.Mode) []int {
	locs := b.OutputLocs()
	return locs[:]
}

// PowerFlowAdjust runs each enabled attached generator's own adjustment and
// returns the maximum change code observed; loads are not adjusted.
func (b *Bus) PowerFlowAdjust(inputs []float64, flags uint32, level kernel.AdjustLevel) (kernel.ChangeCode, error) {
	max := kernel.NoChange
	outs := b.Outputs()
	in := outs[:]
	for _, g := range b.generators {
		if !g.IsEnabled() {
			continue
		}
		cc, err := g.PowerFlowAdjust(in, flags, level)
		if err != nil {
			return max, err
		}
		max = max.Max(cc)
	}
	return max, nil
}

// StateSize is the bus's own + sub-device state size in mode.
func (b *Bus) StateSize(mode kernel.Mode) int { return b.AlgSize(mode) + b.DiffSize(mode) }

// AlgSize returns the subtree algebraic size cached by the offset table.
func (b *Bus) AlgSize(mode kernel.Mode) int { return b.Offsets().Record(mode).AlgSize }

// DiffSize returns the subtree differential size cached by the offset table.
func (b *Bus) DiffSize(mode kernel.Mode) int { return b.Offsets().Record(mode).DiffSize }

// RootSize returns the subtree root count cached by the offset table.
func (b *Bus) RootSize(mode kernel.Mode) int {
	rec := b.Offsets().Record(mode)
	return rec.AlgRoots + rec.DiffRoots
}

// JacSize returns the subtree Jacobian nonzero count cached by the offset table.
func (b *Bus) JacSize(mode kernel.Mode) int { return b.Offsets().Record(mode).JacSize }

// GetStateName appends names for the bus's own states (if any) and
// recurses into sub-devices with a derived prefix.
func (b *Bus) GetStateName(names *[]string, mode kernel.Mode, prefix string) {
	if mode.ExtendedState {
		*names = append(*names, prefix+b.Name()+".Pload", prefix+b.Name()+".Qload")
	}
	for _, g := range b.generators {
		g.GetStateName(names, mode, prefix+b.Name()+".")
	}
	for _, l := range b.loads {
		l.GetStateName(names, mode, prefix+b.Name()+".")
	}
}

// FindIndex looks up a named state among the bus's own states, then its
// sub-devices.
func (b *Bus) FindIndex(field string, mode kernel.Mode) (int, bool) {
	rec := b.Offsets().Record(mode)
	if mode.ExtendedState {
		switch field {
		case "Pload":
			return rec.AlgOffset, true
		case "Qload":
			return rec.AlgOffset + 1, true
		}
	}
	for _, g := range b.generators {
		if idx, ok := g.FindIndex(field, mode); ok {
			return idx, true
		}
	}
	for _, l := range b.loads {
		if idx, ok := l.FindIndex(field, mode); ok {
			return idx, true
		}
	}
	return 0, false
}
