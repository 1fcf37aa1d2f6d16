// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package link

import (
	"math"

	"github.com/llnl/griddyn/kernel"
)

// FixPower drives the flow measured at measureTerminal (1 = from end,
// 2 = to end) to the requested (p, q) by adjusting two local degrees of
// freedom: the unfixed terminal bus's voltage magnitude and the branch's
// tap angle. The loop is a full-step Newton iteration on a locally computed
// 2x2 [dP/dV dP/dphi; dQ/dV dQ/dphi], terminating when
// (|dP|+|dQ|) < (atol+vtol)/2 of the fixed-terminal bus, and treating a
// re-rising error or a singular 2x2 as divergence. On convergence the
// solved operating point is recorded on the fixed-terminal bus and
// PropagatePower distributes it across that bus's remaining unfixed
// objects.
func (l *Link) FixPower(p, q float64, measureTerminal, fixedTerminal int) error {
	if measureTerminal < 1 || measureTerminal > 2 {
		return kernel.Newf(kernel.InvalidParameterValue, "link %q: fixPower measure terminal must be 1 or 2 (got %d)", l.Name(), measureTerminal)
	}
	if fixedTerminal < 1 || fixedTerminal > 2 {
		return kernel.Newf(kernel.InvalidParameterValue, "link %q: fixPower fixed terminal must be 1 or 2 (got %d)", l.Name(), fixedTerminal)
	}
	free, fixed := l.To, l.From
	if fixedTerminal == 2 {
		free, fixed = l.From, l.To
	}
	if free == nil || fixed == nil {
		return kernel.Newf(kernel.UnrecognizedObject, "link %q: fixPower requires both terminals resolved", l.Name())
	}
	tol := (fixed.Atol + fixed.Vtol) / 2

	measure := func() (pm, qm float64) {
		l.cache.Invalidate()
		l.recompute()
		if measureTerminal == 1 {
			return l.p1, l.q1
		}
		return l.p2, l.q2
	}

	const h = 1e-7
	prevErr := math.Inf(1)
	for it := 0; it < 50; it++ {
		pm, qm := measure()
		dp, dq := p-pm, q-qm
		errNow := math.Abs(dp) + math.Abs(dq)
		if errNow < tol {
			fixed.Pfixed, fixed.Qfixed = p, q
			if err := fixed.Set("voltage", fixed.V); err != nil {
				return err
			}
			return fixed.PropagatePower(false)
		}
		if errNow >= prevErr {
			return kernel.Newf(kernel.SolverConvergence, "link %q: fixPower error re-rose at iteration %d (%g >= %g)", l.Name(), it, errNow, prevErr)
		}
		prevErr = errNow

		v0, a0 := free.V, l.PhaseShift
		free.V = v0 + h
		pV, qV := measure()
		free.V = v0
		l.PhaseShift = a0 + h
		pA, qA := measure()
		l.PhaseShift = a0

		j11, j12 := (pV-pm)/h, (pA-pm)/h
		j21, j22 := (qV-qm)/h, (qA-qm)/h
		det := j11*j22 - j12*j21
		if math.Abs(det) < 1e-12 {
			return kernel.Newf(kernel.SolverConvergence, "link %q: fixPower 2x2 is singular at iteration %d", l.Name(), it)
		}
		free.V += (dp*j22 - dq*j12) / det
		l.PhaseShift += (dq*j11 - dp*j21) / det
		l.cache.Invalidate()
	}
	return kernel.Newf(kernel.SolverConvergence, "link %q: fixPower did not converge within 50 iterations", l.Name())
}
