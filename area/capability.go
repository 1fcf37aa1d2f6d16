// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package area

import "github.com/llnl/griddyn/kernel"

// PFlowInitializeA cascades to every child.
func (a *Area) PFlowInitializeA(t0 float64, flags uint32) error {
	for _, child := range a.PrimaryObjects() {
		if m, ok := child.(kernel.Model); ok {
			if err := m.PFlowInitializeA(t0, flags); err != nil {
				return err
			}
		}
	}
	return nil
}

// PFlowInitializeB cascades to every child.
func (a *Area) PFlowInitializeB() error {
	for _, child := range a.PrimaryObjects() {
		if m, ok := child.(kernel.Model); ok {
			if err := m.PFlowInitializeB(); err != nil {
				return err
			}
		}
	}
	return nil
}

// DynInitializeA cascades to every child.
func (a *Area) DynInitializeA(t0 float64, flags uint32) error {
	for _, child := range a.PrimaryObjects() {
		if m, ok := child.(kernel.Model); ok {
			if err := m.DynInitializeA(t0, flags); err != nil {
				return err
			}
		}
	}
	return nil
}

// DynInitializeB cascades to every child.
func (a *Area) DynInitializeB(inputs []float64, desiredOut []string) ([]string, error) {
	var set []string
	for _, child := range a.PrimaryObjects() {
		m, ok := child.(kernel.Model)
		if !ok {
			continue
		}
		fs, err := m.DynInitializeB(inputs, desiredOut)
		if err != nil {
			return nil, err
		}
		set = append(set, fs...)
	}
	return set, nil
}

// Residual is the actual assembly entry point ListMaintainer's three-phase
// order (preEx, residual, delayedResidual) drives; this plain cascade
// (declared to satisfy kernel.Model uniformly) is what a bare Area without
// a ListMaintainer pass falls back to -- see listmaintainer.go for the
// ordered version the driver actually calls.
func (a *Area) Residual(inputs []float64, sD *kernel.StateData, resid []float64, mode kernel.Mode) error {
	for _, child := range a.PrimaryObjects() {
		if m, ok := child.(kernel.Model); ok {
			if err := m.Residual(inputs, sD, resid, mode); err != nil {
				return err
			}
		}
	}
	return nil
}

// Derivative cascades to every child.
func (a *Area) Derivative(inputs []float64, sD *kernel.StateData, deriv []float64, mode kernel.Mode) error {
	for _, child := range a.PrimaryObjects() {
		if m, ok := child.(kernel.Model); ok {
			if err := m.Derivative(inputs, sD, deriv, mode); err != nil {
				return err
			}
		}
	}
	return nil
}

// JacobianElements cascades to every child with the same location vector.
// The per-object location conventions (a bus's [rowP, rowQ, colTheta,
// colV], a link's eight-entry terminal layout) are assigned by whatever
// assembly drives the walk -- the driver's analytic Jacobian pass walks
// buses and links individually with per-object locations; this uniform
// cascade serves callers whose children all share one convention.
func (a *Area) JacobianElements(inputs []float64, sD *kernel.StateData, matrixData kernel.JacobianSink, inputLocs []int, mode kernel.Mode) error {
	for _, child := range a.PrimaryObjects() {
		if m, ok := child.(kernel.Model); ok {
			if err := m.JacobianElements(inputs, sD, matrixData, inputLocs, mode); err != nil {
				return err
			}
		}
	}
	return nil
}

// AlgebraicUpdate cascades to every child.
func (a *Area) AlgebraicUpdate(inputs []float64, sD *kernel.StateData, update []float64, mode kernel.Mode, alpha float64) error {
	for _, child := range a.PrimaryObjects() {
		if m, ok := child.(kernel.Model); ok {
			if err := m.AlgebraicUpdate(inputs, sD, update, mode, alpha); err != nil {
				return err
			}
		}
	}
	return nil
}

// RootTest cascades to every child.
func (a *Area) RootTest(inputs []float64, sD *kernel.StateData, roots []float64, mode kernel.Mode) error {
	for _, child := range a.PrimaryObjects() {
		if m, ok := child.(kernel.Model); ok {
			if err := m.RootTest(inputs, sD, roots, mode); err != nil {
				return err
			}
		}
	}
	return nil
}

// RootTrigger is never called directly on an Area: the driver dispatches a
// root event straight to the owning object. Present only to satisfy
// kernel.Model.
func (a *Area) RootTrigger(rootIndex int, t float64, inputs []float64, sD *kernel.StateData) (kernel.ChangeCode, error) {
	return kernel.NoChange, nil
}

// RootCheck reports whether any child has a pending root.
func (a *Area) RootCheck(sD *kernel.StateData, mode kernel.Mode) (bool, error) {
	for _, child := range a.PrimaryObjects() {
		m, ok := child.(kernel.Model)
		if !ok {
			continue
		}
		pending, err := m.RootCheck(sD, mode)
		if err != nil {
			return false, err
		}
		if pending {
			return true, nil
		}
	}
	return false, nil
}

// SetState cascades to every child using the same combined buffer (each
// child reads its own offset range out of it).
func (a *Area) SetState(t float64, state, dstate []float64) error {
	a.SetTime(t)
	for _, child := range a.PrimaryObjects() {
		if m, ok := child.(kernel.Model); ok {
			if err := m.SetState(t, state, dstate); err != nil {
				return err
			}
		}
	}
	return nil
}

// Guess cascades to every child.
func (a *Area) Guess(t float64, state, dstate []float64) error {
	for _, child := range a.PrimaryObjects() {
		if m, ok := child.(kernel.Model); ok {
			if err := m.Guess(t, state, dstate); err != nil {
				return err
			}
		}
	}
	return nil
}

// GetTols concatenates every child's tolerance vectors in SubObjects order,
// matching the offset table's own layout.
func (a *Area) GetTols(mode kernel.Mode) (atol, rtol []float64) {
	for _, child := range a.PrimaryObjects() {
		m, ok := child.(kernel.Model)
		if !ok {
			continue
		}
		at, rt := m.GetTols(mode)
		atol = append(atol, at...)
		rtol = append(rtol, rt...)
	}
	return
}

// GetVariableType concatenates every child's variable-type vector.
func (a *Area) GetVariableType(mode kernel.Mode) []kernel.VariableType {
	var out []kernel.VariableType
	for _, child := range a.PrimaryObjects() {
		if m, ok := child.(kernel.Model); ok {
			out = append(out, m.GetVariableType(mode)...)
		}
	}
	return out
}

// GetConstraints concatenates every child's constraint vector.
func (a *Area) GetConstraints(mode kernel.Mode) []float64 {
	var out []float64
	for _, child := range a.PrimaryObjects() {
		if m, ok := child.(kernel.Model); ok {
			out = append(out, m.GetConstraints(mode)...)
		}
	}
	return out
}

// GetOutputs is not meaningful at the area level (an area has no single
// output tuple); returns nil.
func (a *Area) GetOutputs(inputs []float64, sD *kernel.StateData, mode kernel.Mode) []float64 { return nil }

// GetOutputLocs returns nil for the same reason.
func (a *Area) GetOutputLocs(mode kernel.Mode) []int { return nil }

// UpdateLocalCache is a no-op; an area has no aggregate quantity of its own
// to cache (unlike a bus's nodal power sums).
func (a *Area) UpdateLocalCache(inputs []float64, sD *kernel.StateData, mode kernel.Mode) {}

// StateSize/AlgSize/DiffSize/RootSize/JacSize read the cached subtree
// totals the offset table already computed.
func (a *Area) StateSize(mode kernel.Mode) int { return a.AlgSize(mode) + a.DiffSize(mode) }
func (a *Area) AlgSize(mode kernel.Mode) int   { return a.Offsets().Record(mode).AlgSize }
func (a *Area) DiffSize(mode kernel.Mode) int  { return a.Offsets().Record(mode).DiffSize }
func (a *Area) RootSize(mode kernel.Mode) int {
	rec := a.Offsets().Record(mode)
	return rec.AlgRoots + rec.DiffRoots
}
func (a *Area) JacSize(mode kernel.Mode) int { return a.Offsets().Record(mode).JacSize }

// GetStateName cascades to every child with a derived prefix.
func (a *Area) GetStateName(names *[]string, mode kernel.Mode, prefix string) {
	for _, child := range a.PrimaryObjects() {
		if m, ok := child.(kernel.Model); ok {
			m.GetStateName(names, mode, prefix+a.Name()+".")
		}
	}
}

// FindIndex searches every child in turn.
func (a *Area) FindIndex(field string, mode kernel.Mode) (int, bool) {
	for _, child := range a.PrimaryObjects() {
		if m, ok := child.(kernel.Model); ok {
			if idx, found := m.FindIndex(field, mode); found {
				return idx, true
			}
		}
	}
	return 0, false
}
