// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package driver

import (
	"testing"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/la"
	"github.com/llnl/griddyn/kernel"
)

func Test_machine01_valid_path(tst *testing.T) {
	chk.PrintTitle("machine01. lifecycle transitions follow the declared edges")

	m := NewMachine()
	if m.State() != Startup {
		tst.Fatalf("a fresh machine must start at Startup, got %s", m.State())
	}
	steps := []State{Initialized, PowerflowComplete, DynamicInitialized, DynamicComplete}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			tst.Fatalf("Transition(%s) failed: %v", s, err)
		}
	}
	if m.State() != DynamicComplete {
		tst.Errorf("expected final state DynamicComplete, got %s", m.State())
	}
}

func Test_machine02_invalid_transition(tst *testing.T) {
	m := NewMachine()
	if err := m.Transition(PowerflowComplete); err == nil {
		tst.Errorf("Startup -> PowerflowComplete must be rejected (skips Initialized)")
	}
	if m.State() != Startup {
		tst.Errorf("a rejected transition must not move the machine's state")
	}
}

func Test_machine03_makeready_idempotent(tst *testing.T) {
	m := NewMachine()
	calls := map[State]int{}
	steps := map[State]func() error{
		Initialized:        func() error { calls[Initialized]++; return nil },
		PowerflowComplete:  func() error { calls[PowerflowComplete]++; return nil },
		DynamicInitialized: func() error { calls[DynamicInitialized]++; return nil },
	}

	if err := m.MakeReady(PowerflowComplete, steps); err != nil {
		tst.Fatalf("MakeReady failed: %v", err)
	}
	if m.State() != PowerflowComplete {
		tst.Errorf("MakeReady must land on the requested target, got %s", m.State())
	}
	if calls[Initialized] != 1 || calls[PowerflowComplete] != 1 {
		tst.Errorf("each step function must run exactly once, got %v", calls)
	}

	// a second call targeting an already-passed state must not re-run steps
	if err := m.MakeReady(PowerflowComplete, steps); err != nil {
		tst.Fatalf("idempotent MakeReady failed: %v", err)
	}
	if calls[Initialized] != 1 || calls[PowerflowComplete] != 1 {
		tst.Errorf("MakeReady must not re-run steps for a state already reached, got %v", calls)
	}

	if err := m.MakeReady(DynamicInitialized, steps); err != nil {
		tst.Fatalf("MakeReady forward to DynamicInitialized failed: %v", err)
	}
	if calls[DynamicInitialized] != 1 {
		tst.Errorf("MakeReady must run the one new step to reach DynamicInitialized, got %v", calls)
	}
}

func Test_parseaction01_forms(tst *testing.T) {
	a, err := ParseAction("set bus1 voltage 1.05")
	if err != nil {
		tst.Fatalf("ParseAction failed: %v", err)
	}
	if a.Command != CmdSet || a.String1 != "bus1" || a.String2 != "voltage" || a.Doubles != 1 {
		tst.Errorf("unexpected parse of 4-field set action: %+v", a)
	}
	chk.Scalar(tst, "parsed value", 1e-12, a.ValDouble, 1.05)

	a, err = ParseAction("dynamicpartitioned 2.0 0.005")
	if err != nil {
		tst.Fatalf("ParseAction failed: %v", err)
	}
	if a.Command != CmdDynamicPartitioned || a.Doubles != 2 {
		tst.Errorf("unexpected parse of two-double dynamic action: %+v", a)
	}
	chk.Scalar(tst, "end", 1e-12, a.ValDouble, 2.0)
	chk.Scalar(tst, "step", 1e-12, a.ValDouble2, 0.005)

	a, err = ParseAction("powerflow")
	if err != nil {
		tst.Fatalf("ParseAction failed: %v", err)
	}
	if a.Command != CmdPowerflow || a.String1 != "" || a.Doubles != 0 {
		tst.Errorf("unexpected parse of bare powerflow action: %+v", a)
	}

	a, err = ParseAction("save out.dat")
	if err != nil {
		tst.Fatalf("ParseAction failed: %v", err)
	}
	if a.Command != CmdSave || a.String1 != "out.dat" {
		tst.Errorf("unexpected parse of save action: %+v", a)
	}
}

func Test_parseaction02_errors(tst *testing.T) {
	if _, err := ParseAction(""); err == nil {
		tst.Errorf("an empty action must fail to parse")
	}
	if _, err := ParseAction("bogus arg"); err == nil || !kernel.Is(err, kernel.UnrecognizedParameter) {
		tst.Errorf("an unrecognized verb must fail with UnrecognizedParameter")
	}
	if _, err := ParseAction("set a b c extra"); err == nil {
		tst.Errorf("a third string argument must fail to parse")
	}
}

func Test_queue01_fifo(tst *testing.T) {
	var q Queue
	q.Push(Action{Command: CmdInitialize})
	q.Push(Action{Command: CmdPowerflow})
	if q.Len() != 2 {
		tst.Fatalf("expected 2 queued actions, got %d", q.Len())
	}
	a, ok := q.Pop()
	if !ok || a.Command != CmdInitialize {
		tst.Errorf("Pop must return the first Pushed action, got %+v", a)
	}
	a, ok = q.Pop()
	if !ok || a.Command != CmdPowerflow {
		tst.Errorf("Pop must return the second Pushed action next, got %+v", a)
	}
	if _, ok := q.Pop(); ok {
		tst.Errorf("Pop on an empty queue must report !ok")
	}
}

func Test_dyncoefs01_theta_method(tst *testing.T) {
	var d DynCoefs
	d.Init(0.5)

	dt, xOld, fOld, fNew := 0.01, 1.0, 2.0, 2.2
	a0, a1 := d.Calc(dt, xOld, fOld)
	xNew := a1 + a0*fNew // the root of Residual==0
	res := d.Residual(xNew, fNew, a0, a1)
	chk.Scalar(tst, "theta-method residual at its own root", 1e-12, res, 0)
}

func Test_newtonraphson01_converges(tst *testing.T) {
	chk.PrintTitle("newtonraphson01. converges on a trivial linear residual")

	mode := kernel.Mode{OffsetIndex: 2, Dynamic: false, Algebraic: true}
	residual := func(state, resid []float64) error {
		resid[0] = state[0] - 5.0
		return nil
	}
	jacobian := func(state []float64, kb *la.Triplet) error {
		kb.Put(0, 0, 1.0)
		return nil
	}

	s := NewNewtonRaphson("pflow", mode, residual, jacobian)
	if err := s.Allocate(1, 0); err != nil {
		tst.Fatalf("Allocate failed: %v", err)
	}
	if err := s.Initialize(0); err != nil {
		tst.Fatalf("Initialize failed: %v", err)
	}
	if !s.IsInitialized() {
		tst.Errorf("IsInitialized must be true after Initialize")
	}

	status, err := s.Solve(1.0)
	if err != nil {
		tst.Fatalf("Solve failed: %v", err)
	}
	if status != Converged {
		tst.Errorf("expected Converged, got %v", status)
	}
	chk.Scalar(tst, "solved state", 1e-6, s.StateData()[0], 5.0)
}

func Test_registry01_add_get(tst *testing.T) {
	r := NewRegistry()
	m := kernel.Mode{OffsetIndex: 2, Algebraic: true}
	residual := func(state, resid []float64) error { return nil }
	jacobian := func(state []float64, kb *la.Triplet) error { return nil }
	s := NewNewtonRaphson("pflow", m, residual, jacobian)

	idx := r.Add(s)
	if r.Get(idx) != SolverInterface(s) {
		tst.Errorf("Get(idx) must return the solver just Added")
	}
	idx2 := r.Add(s)
	if idx2 != idx {
		tst.Errorf("Add must not create a second slot for the same mode, got %d and %d", idx, idx2)
	}
	if r.Get(99) != nil {
		tst.Errorf("Get of an unassigned index must return nil")
	}
}
