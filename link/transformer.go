// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package link

import (
	"math"

	"github.com/llnl/griddyn/bus"
	"github.com/llnl/griddyn/kernel"
)

// ControlMode selects what an AdjustableTransformer's tap regulates
// toward.
type ControlMode int

const (
	Manual ControlMode = iota
	VoltageControl
	MWControl
	MVarControl
)

// AdjustableTransformer is a Link whose tap (and, in phase-shifter use,
// PhaseShift) is driven toward a setpoint, either in discrete steps by
// PowerFlowAdjust or continuously as a solver-managed state (see
// EnableContinuousControl). Oscillation between two tap values is
// detected by counting direction reversals and freezing further movement
// once a threshold is hit, so a hunting tap cannot stall the enclosing
// adjustment loop.
type AdjustableTransformer struct {
	Link

	Mode     ControlMode
	Stepped  bool
	StepSize float64 // tap increment per adjustment, used when Stepped
	MinTap   float64
	MaxTap   float64
	Target   float64 // setpoint: pu voltage, MW, or MVar depending on Mode

	// stepped control adjusts only while the measured quantity is outside
	// [MinTarget, MaxTarget]; both zero means "regulate to Target" (the
	// continuous behavior) regardless of Stepped.
	MinTarget float64
	MaxTarget float64

	lastDirection int // +1, -1, or 0
	oCount        int
	oscillating   bool

	// continuous-state control: the tap is a solver state with the
	// equation controlled-quantity == Target and a root pair watching the
	// controlled quantity against [MinTarget, MaxTarget]
	continuousState bool
	atLimit         int     // 0 regulating, -1 clamped at MinTap, +1 at MaxTap
	reqTap          float64 // the solver's requested tap before clamping
}

// NewAdjustableTransformer returns a transformer with the given tap bounds,
// starting in Manual mode. Built without Link's own New (rather than
// wrapping its result) so the bus's incident-link list ends up holding a
// reference into this exact struct, not a throwaway copy: AddLink needs
// &a.Link, obtained only after a itself is allocated.
func NewAdjustableTransformer(id int, name string, from, to *bus.Bus, minTap, maxTap, stepSize float64) *AdjustableTransformer {
	a := &AdjustableTransformer{
		Link:     Link{Object: kernel.NewObject(id, name), From: from, To: to, Tap: 1},
		MinTap:   minTap,
		MaxTap:   maxTap,
		StepSize: stepSize,
	}
	a.Flags().Set(kernel.FlagEnabled)
	from.AddLink(&a.Link)
	to.AddLink(&a.Link)
	return a
}

// measuredValue returns the quantity this transformer's control mode
// regulates, read from its own current flow/terminal state.
func (a *AdjustableTransformer) measuredValue() float64 {
	switch a.Mode {
	case VoltageControl:
		return a.To.V
	case MWControl:
		return a.p2
	case MVarControl:
		return a.q2
	}
	return 0
}

// PowerFlowAdjust nudges the tap toward its regulation target, returning
// ParameterChange when it moved the tap. In stepped mode the tap moves one
// StepSize per call, and only while the measured quantity sits outside
// [MinTarget, MaxTarget]; in non-stepped mode (or with no band configured)
// the tap is driven toward Target until the error is negligible. A
// transformer in Manual mode or under EnableContinuousControl, or a call
// below AdjustLowVoltageCheck, reports NoChange without moving the tap.
// The sign
// convention follows the tap referring the from-side voltage down by 1/t:
// lowering the tap raises the regulated quantity, so the step direction is
// the negative of the error's sign. Oscillation between two tap values is
// detected via a reversal counter: five direction flips freeze further
// movement and report StateChange once, so the enclosing adjustment loop
// does not spin forever on a hunting tap.
func (a *AdjustableTransformer) PowerFlowAdjust(inputs []float64, flags uint32, level kernel.AdjustLevel) (kernel.ChangeCode, error) {
	if a.Mode == Manual || a.continuousState || level < kernel.AdjustLowVoltageCheck {
		return kernel.NoChange, nil
	}
	a.recompute()
	m := a.measuredValue()

	var err float64
	if a.Stepped && (a.MinTarget != 0 || a.MaxTarget != 0) {
		switch {
		case m < a.MinTarget:
			err = a.MinTarget - m
		case m > a.MaxTarget:
			err = a.MaxTarget - m
		default:
			a.lastDirection = 0
			return kernel.NoChange, nil
		}
	} else {
		err = a.Target - m
		if math.Abs(err) < 1e-6 {
			a.lastDirection = 0
			return kernel.NoChange, nil
		}
	}

	// raising the measured quantity requires lowering the tap
	direction := -1
	if err < 0 {
		direction = 1
	}
	if a.lastDirection != 0 && direction != a.lastDirection {
		a.oCount++
	}
	a.lastDirection = direction
	if a.oCount >= 5 {
		a.oscillating = true
		return kernel.StateChange, nil
	}

	step := a.StepSize
	if !a.Stepped {
		step = math.Min(a.StepSize, math.Abs(err)*0.1)
	}
	next := a.Tap + float64(direction)*step
	if next < a.MinTap {
		next = a.MinTap
	}
	if next > a.MaxTap {
		next = a.MaxTap
	}
	if next == a.Tap {
		return kernel.NoChange, nil
	}
	a.Tap = next
	a.cache.Invalidate()
	return kernel.ParameterChange, nil
}

// Clone returns a structural deep copy, including the oscillation-guard
// counters so a cloned contingency tree inherits the tap's present
// hunting state rather than restarting it.
func (a *AdjustableTransformer) Clone() kernel.Model {
	lc := a.Link.Clone().(*Link)
	return &AdjustableTransformer{
		Link:          *lc,
		Mode:          a.Mode,
		Stepped:       a.Stepped,
		StepSize:      a.StepSize,
		MinTap:        a.MinTap,
		MaxTap:        a.MaxTap,
		Target:        a.Target,
		MinTarget:     a.MinTarget,
		MaxTarget:     a.MaxTarget,
		lastDirection: a.lastDirection,
		oCount:        a.oCount,
		oscillating:   a.oscillating,

		continuousState: a.continuousState,
		atLimit:         a.atLimit,
		reqTap:          a.reqTap,
	}
}

// EnableContinuousControl switches the transformer to continuous-tap
// regulation: instead of PowerFlowAdjust nudging the tap between solves,
// the tap becomes one algebraic solver state whose equation holds the
// controlled quantity at Target, with a root pair watching the controlled
// quantity against [MinTarget, MaxTarget] and an at-limit state that
// clamps the tap to a violated tap bound until the root clears.
func (a *AdjustableTransformer) EnableContinuousControl() {
	a.Stepped = false
	a.continuousState = true
	a.Flags().Set(kernel.FlagHasPflowStates)
	a.Flags().Set(kernel.FlagHasRoots)
	a.Alert(a.ID(), kernel.StateCountIncrease)
}

// ContinuousControl reports whether the tap is solver-managed.
func (a *AdjustableTransformer) ContinuousControl() bool { return a.continuousState }

// AtLimit reports the at-limit state: -1 clamped at MinTap, +1 at MaxTap,
// 0 regulating freely.
func (a *AdjustableTransformer) AtLimit() int { return a.atLimit }

// LocalSizes reports the tap state and its root pair in steady-state
// algebraic modes. Dynamic runs hold the tap where the last power flow
// left it, so dynamic modes see no transformer state.
func (a *AdjustableTransformer) LocalSizes(mode kernel.Mode) kernel.LocalSize {
	if !a.continuousState || mode.Dynamic || !mode.Algebraic {
		return kernel.LocalSize{}
	}
	return kernel.LocalSize{Alg: 1, AlgRoot: 2, Jac: 4}
}

// SetState installs the solver's tap value, clamping it into
// [MinTap, MaxTap] and recording which bound (if either) is active; the
// unclamped request is kept so the at-limit equation can drive the solver
// back onto the bound.
func (a *AdjustableTransformer) SetState(t float64, state, dstate []float64) error {
	a.SetTime(t)
	if !a.continuousState || len(state) == 0 {
		return nil
	}
	a.reqTap = state[0]
	tap := state[0]
	a.atLimit = 0
	if tap <= a.MinTap {
		tap = a.MinTap
		a.atLimit = -1
	}
	if tap >= a.MaxTap {
		tap = a.MaxTap
		a.atLimit = 1
	}
	if tap != a.Tap {
		a.Tap = tap
		a.cache.Invalidate()
	}
	return nil
}

// Guess reproduces SetState's input.
func (a *AdjustableTransformer) Guess(t float64, state, dstate []float64) error {
	if !a.continuousState || len(state) == 0 {
		return nil
	}
	state[0] = a.Tap
	return nil
}

// Residual writes the tap's control equation: while regulating, the
// controlled quantity equals Target; at a clamp, the requested tap is
// driven back onto the violated bound so the solved state stays pinned
// there until the root clears.
func (a *AdjustableTransformer) Residual(inputs []float64, sD *kernel.StateData, resid []float64, mode kernel.Mode) error {
	if !a.continuousState || mode.Dynamic || !mode.Algebraic {
		return nil
	}
	rec := a.Offsets().Record(mode)
	loc := kernel.GetLocations(mode, rec)
	if loc.DestLoc == kernel.KNullLocation {
		return nil
	}
	a.recompute()
	switch a.atLimit {
	case -1:
		resid[loc.DestLoc] = a.reqTap - a.MinTap
	case 1:
		resid[loc.DestLoc] = a.reqTap - a.MaxTap
	default:
		resid[loc.DestLoc] = a.measuredValue() - a.Target
	}
	return nil
}

// RootTest writes the controlled quantity's distance to each side of its
// band: both roots stay positive while it sits inside
// [MinTarget, MaxTarget].
func (a *AdjustableTransformer) RootTest(inputs []float64, sD *kernel.StateData, roots []float64, mode kernel.Mode) error {
	if !a.continuousState {
		return nil
	}
	rec := a.Offsets().Record(mode)
	if rec.RootOffset == kernel.KNullLocation {
		return nil
	}
	a.recompute()
	m := a.measuredValue()
	roots[rec.RootOffset] = m - a.MinTarget
	roots[rec.RootOffset+1] = a.MaxTarget - m
	return nil
}

// RootCheck reports a pending transition: a clamped tap whose controlled
// quantity has come back strictly inside the band can resume regulating.
func (a *AdjustableTransformer) RootCheck(sD *kernel.StateData, mode kernel.Mode) (bool, error) {
	if !a.continuousState || a.atLimit == 0 {
		return false, nil
	}
	a.recompute()
	m := a.measuredValue()
	return m > a.MinTarget && m < a.MaxTarget, nil
}

// RootTrigger releases the at-limit clamp once the controlled quantity is
// back inside the band, reporting JacobianChange so the enclosing solve
// rebuilds against the resumed control equation.
func (a *AdjustableTransformer) RootTrigger(rootIndex int, t float64, inputs []float64, sD *kernel.StateData) (kernel.ChangeCode, error) {
	pending, err := a.RootCheck(sD, kernel.LocalMode)
	if err != nil || !pending {
		return kernel.NoChange, err
	}
	a.atLimit = 0
	a.reqTap = a.Tap
	return kernel.JacobianChange, nil
}

// IsOscillating reports whether the tap-hunting guard has tripped.
func (a *AdjustableTransformer) IsOscillating() bool { return a.oscillating }

// ResetOscillationGuard clears the reversal counter, used when a new
// power-flow solve begins.
func (a *AdjustableTransformer) ResetOscillationGuard() {
	a.oCount = 0
	a.oscillating = false
	a.lastDirection = 0
}
