// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package link

import (
	"math"

	"github.com/llnl/griddyn/kernel"
)

// SubObjects is always empty: a line owns no sub-objects (an adjustable
// transformer, which does carry its own tap-position state, overrides
// LocalSizes but still owns nothing sizeable beneath it).
func (l *Link) SubObjects() []kernel.Sizeable { return nil }

// LocalSizes is zero: a plain line's flows are pure functions of its two
// terminal buses' outputs, contributing no unknowns of its own.
func (l *Link) LocalSizes(mode kernel.Mode) kernel.LocalSize { return kernel.LocalSize{} }

func (l *Link) PFlowInitializeA(t0 float64, flags uint32) error { l.cache.Invalidate(); return nil }
func (l *Link) PFlowInitializeB() error                         { return nil }
func (l *Link) DynInitializeA(t0 float64, flags uint32) error   { l.cache.Invalidate(); return nil }
func (l *Link) DynInitializeB(inputs []float64, desiredOut []string) ([]string, error) {
	return nil, nil
}

// Residual/Derivative/AlgebraicUpdate are no-ops: a plain line has no
// equations or differential states of its own -- its flow contribution is
// read by the two terminal buses via FlowAt during their residual
// assembly. JacobianElements below is the line's real assembly
// contribution: the partials of those flows.
func (l *Link) Residual(inputs []float64, sD *kernel.StateData, resid []float64, mode kernel.Mode) error {
	return nil
}
func (l *Link) Derivative(inputs []float64, sD *kernel.StateData, deriv []float64, mode kernel.Mode) error {
	return nil
}

// JacobianElements writes the partials of the line's terminal flows into
// matrixData, drawn from the derivative table matched to the active
// approximation level. inputLocs carries eight solver locations assigned
// by the enclosing assembly:
//
//	[0..3] columns of the from-end angle, from-end magnitude, to-end
//	       angle, to-end magnitude;
//	[4..7] residual rows of the from-end P/Q and to-end P/Q balances.
//
// KNullLocation entries (a held slack quantity, a bus outside the
// problem) are skipped. Every entry is negated on the way in: the flow
// leaves its bus, so it enters the nodal balance with a minus sign.
func (l *Link) JacobianElements(inputs []float64, sD *kernel.StateData, matrixData kernel.JacobianSink, inputLocs []int, mode kernel.Mode) error {
	if matrixData == nil || len(inputLocs) < 8 {
		return nil
	}
	d := l.Derivatives()
	thF, vF, thT, vT := inputLocs[0], inputLocs[1], inputLocs[2], inputLocs[3]
	rowPF, rowQF, rowPT, rowQT := inputLocs[4], inputLocs[5], inputLocs[6], inputLocs[7]
	put := func(row, col int, v float64) {
		if row == kernel.KNullLocation || col == kernel.KNullLocation || v == 0 {
			return
		}
		matrixData.Put(row, col, -v)
	}
	put(rowPF, thF, d.dP1dTh1)
	put(rowPF, vF, d.dP1dV1)
	put(rowPF, thT, d.dP1dTh2)
	put(rowPF, vT, d.dP1dV2)

	put(rowQF, thF, d.dQ1dTh1)
	put(rowQF, vF, d.dQ1dV1)
	put(rowQF, thT, d.dQ1dTh2)
	put(rowQF, vT, d.dQ1dV2)

	put(rowPT, thF, d.dP2dTh1)
	put(rowPT, vF, d.dP2dV1)
	put(rowPT, thT, d.dP2dTh2)
	put(rowPT, vT, d.dP2dV2)

	put(rowQT, thF, d.dQ2dTh1)
	put(rowQT, vF, d.dQ2dV1)
	put(rowQT, thT, d.dQ2dTh2)
	put(rowQT, vT, d.dQ2dV2)
	return nil
}

func (l *Link) AlgebraicUpdate(inputs []float64, sD *kernel.StateData, update []float64, mode kernel.Mode, alpha float64) error {
	return nil
}

func (l *Link) RootTest(inputs []float64, sD *kernel.StateData, roots []float64, mode kernel.Mode) error {
	return nil
}
func (l *Link) RootTrigger(rootIndex int, t float64, inputs []float64, sD *kernel.StateData) (kernel.ChangeCode, error) {
	return kernel.NoChange, nil
}
func (l *Link) RootCheck(sD *kernel.StateData, mode kernel.Mode) (bool, error) { return false, nil }

func (l *Link) SetState(t float64, state, dstate []float64) error { l.SetTime(t); return nil }
func (l *Link) Guess(t float64, state, dstate []float64) error    { return nil }

func (l *Link) GetTols(mode kernel.Mode) (atol, rtol []float64) { return nil, nil }
func (l *Link) GetVariableType(mode kernel.Mode) []kernel.VariableType { return nil }
func (l *Link) GetConstraints(mode kernel.Mode) []float64 { return nil }

func (l *Link) GetOutputs(inputs []float64, sD *kernel.StateData, mode kernel.Mode) []float64 {
	return nil
}
func (l *Link) GetOutputLocs(mode kernel.Mode) []int { return nil }

// PowerFlowAdjust reports a JacobianChange whenever an angle-bounds
// violation is detected: a
// line whose angle difference has drifted past +-pi/2 signals that its
// small-angle/linear approximations (if in use) are no longer valid.
func (l *Link) PowerFlowAdjust(inputs []float64, flags uint32, level kernel.AdjustLevel) (kernel.ChangeCode, error) {
	if math.Abs(l.AngleDiff()) > math.Pi/2 {
		return kernel.JacobianChange, nil
	}
	return kernel.NoChange, nil
}

func (l *Link) UpdateLocalCache(inputs []float64, sD *kernel.StateData, mode kernel.Mode) {
	if l.cache.Fresh(sD.SeqID) {
		return
	}
	l.recompute()
}

func (l *Link) StateSize(mode kernel.Mode) int { return 0 }
func (l *Link) AlgSize(mode kernel.Mode) int   { return 0 }
func (l *Link) DiffSize(mode kernel.Mode) int  { return 0 }
func (l *Link) RootSize(mode kernel.Mode) int  { return 0 }
func (l *Link) JacSize(mode kernel.Mode) int   { return 0 }

func (l *Link) GetStateName(names *[]string, mode kernel.Mode, prefix string) {}
func (l *Link) FindIndex(field string, mode kernel.Mode) (int, bool)          { return 0, false }
