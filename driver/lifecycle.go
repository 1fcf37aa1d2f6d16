// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package driver implements the simulation driver: the
// lifecycle state machine, the action-queue CLI grammar, and the
// consumed Solver interface with one reference implementation.
package driver

import "github.com/llnl/griddyn/kernel"

// State is the driver's lifecycle state.
type State int

const (
	Startup State = iota
	Initialized
	PowerflowComplete
	DynamicInitialized
	DynamicPartial
	DynamicComplete
)

func (s State) String() string {
	switch s {
	case Startup:
		return "Startup"
	case Initialized:
		return "Initialized"
	case PowerflowComplete:
		return "PowerflowComplete"
	case DynamicInitialized:
		return "DynamicInitialized"
	case DynamicPartial:
		return "DynamicPartial"
	case DynamicComplete:
		return "DynamicComplete"
	}
	return "Unknown"
}

// validEdges enumerates the allowed lifecycle transitions,
// including the reset edges back to Initialized from any dynamic state.
var validEdges = map[State][]State{
	Startup:             {Initialized},
	Initialized:         {PowerflowComplete},
	PowerflowComplete:   {DynamicInitialized, Initialized},
	DynamicInitialized:  {DynamicPartial, DynamicComplete, Initialized},
	DynamicPartial:      {DynamicPartial, DynamicComplete, Initialized},
	DynamicComplete:     {Initialized},
}

// Machine tracks the driver's current lifecycle state and rejects
// out-of-order transitions.
type Machine struct {
	state State
}

// NewMachine returns a machine starting at Startup.
func NewMachine() *Machine { return &Machine{state: Startup} }

// State returns the current lifecycle state.
func (m *Machine) State() State { return m.state }

// Transition moves to next if the edge is valid, else returns
// ObjectUpdateFailure-shaped error describing the rejected transition.
func (m *Machine) Transition(next State) error {
	for _, allowed := range validEdges[m.state] {
		if allowed == next {
			m.state = next
			return nil
		}
	}
	return kernel.Newf(kernel.ObjectUpdateFailure, "invalid lifecycle transition %s -> %s", m.state, next)
}

// MakeReady is the idempotent lifecycle helper: it drives the
// machine forward to at least target, calling the supplied step functions
// only for transitions not yet taken. Each stepFn runs the actual
// work (power-flow solve, dynamic initialization, ...) for the edge into
// the state it is keyed by.
func (m *Machine) MakeReady(target State, steps map[State]func() error) error {
	path := pathTo(m.state, target)
	for _, next := range path {
		if fn, ok := steps[next]; ok {
			if err := fn(); err != nil {
				return err
			}
		}
		if err := m.Transition(next); err != nil {
			return err
		}
	}
	return nil
}

// pathTo returns the straight-line forward path from cur to target along
// the state ordering Startup < Initialized < PowerflowComplete <
// DynamicInitialized < DynamicComplete; DynamicPartial is never an
// automatic MakeReady target since it is a caller-driven partial-step
// state, not a destination a readiness check asks for.
func pathTo(cur, target State) []State {
	if cur == DynamicPartial {
		// mid-integration counts as dynamically initialized: a readiness
		// check between intervals must not restart the lifecycle
		cur = DynamicInitialized
	}
	order := []State{Startup, Initialized, PowerflowComplete, DynamicInitialized, DynamicComplete}
	var idxCur, idxTarget int
	for i, s := range order {
		if s == cur {
			idxCur = i
		}
		if s == target {
			idxTarget = i
		}
	}
	if idxTarget <= idxCur {
		return nil
	}
	return order[idxCur+1 : idxTarget+1]
}
