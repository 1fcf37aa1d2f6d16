// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package device implements the sub-device model objects:
// generators, loads, relays, and scheduled sources. Each attaches to a bus
// via the bus.Device/bus.IncidentLink contracts and participates in
// assembly through kernel.Model.
package device

import "github.com/llnl/griddyn/kernel"

// Leaf is the shared base every sub-device here embeds: a kernel.Object
// plus the trivial parts of kernel.Model common to a device with no
// children of its own (SubObjects is always empty, sizing is purely local).
// Concrete devices override GetStateName/FindIndex/LocalSizes and whichever
// of Residual/Derivative/JacobianElements/RootTest they actually need;
// Leaf's versions are safe no-op defaults for devices with no states or
// roots (e.g. a constant-power Load).
type Leaf struct {
	kernel.Object
}

// SubObjects is always empty: a leaf device owns no children.
func (l *Leaf) SubObjects() []kernel.Sizeable { return nil }

// LocalSizes defaults to zero; concrete devices with their own states
// override this.
func (l *Leaf) LocalSizes(mode kernel.Mode) kernel.LocalSize { return kernel.LocalSize{} }

func (l *Leaf) PFlowInitializeA(t0 float64, flags uint32) error { return nil }
func (l *Leaf) PFlowInitializeB() error                         { return nil }
func (l *Leaf) DynInitializeA(t0 float64, flags uint32) error   { return nil }
func (l *Leaf) DynInitializeB(inputs []float64, desiredOut []string) ([]string, error) {
	return nil, nil
}

func (l *Leaf) Residual(inputs []float64, sD *kernel.StateData, resid []float64, mode kernel.Mode) error {
	return nil
}
func (l *Leaf) Derivative(inputs []float64, sD *kernel.StateData, deriv []float64, mode kernel.Mode) error {
	return nil
}
// JacobianElements defaults to no entries, right only for a device whose
// injection is constant in every solver quantity (a Source, a Relay);
// devices with real couplings (Load, Generator, CompositeLoad) override
// it and write their partials through the bus-assigned
// [rowP, rowQ, colTheta, colV] location convention.
func (l *Leaf) JacobianElements(inputs []float64, sD *kernel.StateData, matrixData kernel.JacobianSink, inputLocs []int, mode kernel.Mode) error {
	return nil
}
func (l *Leaf) AlgebraicUpdate(inputs []float64, sD *kernel.StateData, update []float64, mode kernel.Mode, alpha float64) error {
	return nil
}

func (l *Leaf) RootTest(inputs []float64, sD *kernel.StateData, roots []float64, mode kernel.Mode) error {
	return nil
}
func (l *Leaf) RootTrigger(rootIndex int, t float64, inputs []float64, sD *kernel.StateData) (kernel.ChangeCode, error) {
	return kernel.NoChange, nil
}
func (l *Leaf) RootCheck(sD *kernel.StateData, mode kernel.Mode) (bool, error) { return false, nil }

func (l *Leaf) SetState(t float64, state, dstate []float64) error { l.SetTime(t); return nil }
func (l *Leaf) Guess(t float64, state, dstate []float64) error    { return nil }

func (l *Leaf) GetTols(mode kernel.Mode) (atol, rtol []float64) {
	n := l.StateSize(mode)
	atol = make([]float64, n)
	rtol = make([]float64, n)
	for i := range atol {
		atol[i], rtol[i] = 1e-8, 1e-6
	}
	return
}

func (l *Leaf) GetVariableType(mode kernel.Mode) []kernel.VariableType {
	n := l.StateSize(mode)
	out := make([]kernel.VariableType, n)
	for i := range out {
		out[i] = kernel.VarAlgebraic
	}
	return out
}

func (l *Leaf) GetConstraints(mode kernel.Mode) []float64 { return nil }

func (l *Leaf) GetOutputs(inputs []float64, sD *kernel.StateData, mode kernel.Mode) []float64 { return nil }
func (l *Leaf) GetOutputLocs(mode kernel.Mode) []int                                          { return nil }

func (l *Leaf) PowerFlowAdjust(inputs []float64, flags uint32, level kernel.AdjustLevel) (kernel.ChangeCode, error) {
	return kernel.NoChange, nil
}

func (l *Leaf) UpdateLocalCache(inputs []float64, sD *kernel.StateData, mode kernel.Mode) {}

func (l *Leaf) StateSize(mode kernel.Mode) int { return l.AlgSize(mode) + l.DiffSize(mode) }
func (l *Leaf) AlgSize(mode kernel.Mode) int   { return l.Offsets().Record(mode).AlgSize }
func (l *Leaf) DiffSize(mode kernel.Mode) int  { return l.Offsets().Record(mode).DiffSize }
func (l *Leaf) RootSize(mode kernel.Mode) int {
	rec := l.Offsets().Record(mode)
	return rec.AlgRoots + rec.DiffRoots
}
func (l *Leaf) JacSize(mode kernel.Mode) int { return l.Offsets().Record(mode).JacSize }

func (l *Leaf) GetStateName(names *[]string, mode kernel.Mode, prefix string) {}
func (l *Leaf) FindIndex(field string, mode kernel.Mode) (int, bool)          { return 0, false }

// SetBaseVoltage is a no-op default satisfying bus.baseSettable for devices
// that do not convert between physical and per-unit quantities.
func (l *Leaf) SetBaseVoltage(kv float64) {}
