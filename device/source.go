// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package device

import (
	"github.com/cpmech/gosl/fun"
	"github.com/llnl/griddyn/kernel"
)

// Source is a scheduled real-power injection whose setpoint follows a
// fun.Func of time rather than a control loop: interpolated or
// piecewise-constant, depending on which fun.Func implementation Schedule
// holds.
type Source struct {
	Leaf

	Schedule fun.Func
	Qset     float64 // reactive power is not schedule-driven
}

// NewSource returns a source following sched, with an initially zero
// reactive setpoint.
func NewSource(id int, name string, sched fun.Func) *Source {
	s := &Source{Leaf: Leaf{Object: kernel.NewObject(id, name)}, Schedule: sched}
	s.Flags().Set(kernel.FlagEnabled)
	return s
}

// RealPower evaluates the schedule at the object's current simulation time;
// v, theta, f are unused -- a Source's output is time-driven, not a
// function of local bus state.
func (s *Source) RealPower(v, theta, f float64) float64 {
	if s.Schedule == nil {
		return 0
	}
	return s.Schedule.F(s.Time(), nil)
}

// ReactivePower returns the fixed reactive setpoint.
func (s *Source) ReactivePower(v, theta, f float64) float64 { return s.Qset }

// Clone returns a structural deep copy). Schedule is
// shared by reference: a fun.Func is read-only time-series/expression data
// with no tree identity, so cloning the tree does not require cloning it.
func (s *Source) Clone() kernel.Model {
	return &Source{
		Leaf:     Leaf{Object: s.Object.CloneBase()},
		Schedule: s.Schedule,
		Qset:     s.Qset,
	}
}

// SetState advances the source's clock so RealPower tracks the solver's
// current time (a Source has no states of its own to restore).
func (s *Source) SetState(t float64, state, dstate []float64) error {
	s.SetTime(t)
	return nil
}
