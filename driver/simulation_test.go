// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package driver

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/la"

	"github.com/llnl/griddyn/area"
	"github.com/llnl/griddyn/bus"
	"github.com/llnl/griddyn/device"
	"github.com/llnl/griddyn/kernel"
	"github.com/llnl/griddyn/link"
)

// buildTwoBus wires the smallest solvable system: a slack bus with one
// generator, a PQ bus with one load, and a single line between them.
func buildTwoBus(level link.Level, loadP, loadQ float64) (s *Simulation, b1, b2 *bus.Bus, g *device.Generator, ld *device.Load, l *link.Link) {
	root := area.New(1, "sys")
	b1 = bus.New(2, "b1")
	b1.Kind = bus.SLK
	b1.V = 1
	b2 = bus.New(3, "b2")
	b2.V = 1
	root.AddBus(b1)
	root.AddBus(b2)

	g = device.NewGenerator(4, "g1")
	b1.AddGenerator(g)
	ld = device.NewLoad(5, "load1")
	ld.P, ld.Q = loadP, loadQ
	b2.AddLoad(ld)

	l = link.New(6, "line1", b1, b2)
	l.X = 0.05
	l.Level = level
	root.AddLink(l)

	s = New("twobus", root)
	return
}

func Test_sim01_empty_area_powerflow(tst *testing.T) {
	chk.PrintTitle("sim01. an empty tree fails or empties out per the disconnect policy")

	root := area.New(1, "empty")
	root.Flags().Set(kernel.FlagNoAutoDisconnect)
	s := New("empty", root)

	code, err := s.Execute(Action{Command: CmdPowerflow})
	if err == nil || !kernel.Is(err, kernel.NoSlackBusFound) {
		tst.Fatalf("an empty tree with auto-disconnect disabled must fail with NoSlackBusFound, got %v", err)
	}
	if int(code) != ExitNoSlackBusFound {
		tst.Errorf("execution code must be the topology exit code %d, got %d", ExitNoSlackBusFound, code)
	}

	root.Flags().Clear(kernel.FlagNoAutoDisconnect)
	if _, err := s.Execute(Action{Command: CmdPowerflow}); err != nil {
		tst.Fatalf("with auto-disconnect allowed the empty tree must solve vacuously: %v", err)
	}
	if s.State() != PowerflowComplete {
		tst.Errorf("expected PowerflowComplete, got %s", s.State())
	}
}

func Test_sim02_twobus_dc(tst *testing.T) {
	chk.PrintTitle("sim02. two-bus DC flow carries the load to the slack exactly")

	s, b1, _, g, _, l := buildTwoBus(link.Linear, 0.5, 0.1)
	s.PFlowMode = s.GetSolverMode("dc")

	if _, err := s.Run(); err != nil {
		tst.Fatalf("Run failed: %v", err)
	}
	if s.State() != PowerflowComplete {
		tst.Fatalf("expected PowerflowComplete after the default chain, got %s", s.State())
	}
	p1, _ := l.FlowAt(b1.ID())
	chk.Scalar(tst, "line flow at the slack end", 1e-6, p1, 0.5)
	pg, err := g.Get("p", "pu")
	if err != nil {
		tst.Fatalf("Get(p) failed: %v", err)
	}
	chk.Scalar(tst, "slack dispatch equals the load (lossless line)", 1e-6, pg, 0.5)

	maxDp, _ := s.VerifyBalance()
	if maxDp > 1e-6 {
		tst.Errorf("real-power balance must close at every bus, worst mismatch %g", maxDp)
	}
}

func Test_sim03_tap_adjustment(tst *testing.T) {
	chk.PrintTitle("sim03. stepped tap control walks the controlled voltage into its band")

	root := area.New(1, "sys")
	b1 := bus.New(2, "b1")
	b1.Kind = bus.SLK
	b1.V = 1
	b2 := bus.New(3, "b2")
	b2.V = 1
	root.AddBus(b1)
	root.AddBus(b2)
	g := device.NewGenerator(4, "g1")
	b1.AddGenerator(g)
	ld := device.NewLoad(5, "load1")
	ld.P = 0.05
	b2.AddLoad(ld)

	xf := link.NewAdjustableTransformer(6, "xf1", b1, b2, 0.9, 1.2, 0.01)
	xf.X = 0.05
	xf.Tap = 1.08
	xf.Mode = link.VoltageControl
	xf.Stepped = true
	xf.Target = 1.0
	xf.MinTarget = 0.95
	xf.MaxTarget = 1.05
	root.AddLink(xf)

	s := New("tap", root)
	if err := s.MakeReady(PowerflowComplete, s.PFlowMode); err != nil {
		tst.Fatalf("powerflow failed: %v", err)
	}

	if b2.V < 0.95 || b2.V > 1.05 {
		tst.Errorf("controlled voltage must end inside [0.95, 1.05], got %v", b2.V)
	}
	if xf.Tap >= 1.08 {
		tst.Errorf("the tap must have stepped down from 1.08, got %v", xf.Tap)
	}
	if xf.Tap < 1.0 {
		tst.Errorf("reaching the band must take at most ~7 steps of 0.01, tap overshot to %v", xf.Tap)
	}
	if xf.IsOscillating() {
		tst.Errorf("a monotone approach must not trip the oscillation guard")
	}

	// a further adjustment pass reports no change: the band is satisfied
	cc, err := xf.PowerFlowAdjust(nil, 0, kernel.AdjustFull)
	if err != nil {
		tst.Fatalf("PowerFlowAdjust failed: %v", err)
	}
	if cc != kernel.NoChange {
		tst.Errorf("a voltage inside the band must report NoChange, got %v", cc)
	}
}

func Test_sim05_root_triggered_breaker_trip(tst *testing.T) {
	chk.PrintTitle("sim05. an overcurrent root trips the breaker exactly once")

	s, b1, b2, g, ld, l := buildTwoBus(link.Full, 0.2, 0.0)
	l.X = 0.1
	g.Pset = 0.2
	r := device.NewRelay(7, "relay1", l, 0.5)
	r.TargetID = l.ID()
	s.Root.AddRelay(r)

	if err := s.MakeReady(DynamicInitialized, s.DynAlgMode); err != nil {
		tst.Fatalf("dynamic initialization failed: %v", err)
	}
	s.Schedule(0.01, 0, func(sim *Simulation) error {
		return ld.Set("p", 0.9)
	})
	if err := s.DynamicPartitioned(0.05, 0.005); err != nil {
		tst.Fatalf("DynamicPartitioned failed: %v", err)
	}

	if !r.Tripped() {
		tst.Fatalf("the relay must have tripped")
	}
	if s.RootTriggerCount != 1 {
		tst.Errorf("expected exactly one root trigger, got %d", s.RootTriggerCount)
	}
	if !l.TerminalOpen(b1.ID()) {
		tst.Errorf("the trip must open the link's from-side switch")
	}
	p, q := l.FlowAt(b1.ID())
	if p != 0 || q != 0 {
		tst.Errorf("an open line must carry zero flow, got p=%v q=%v", p, q)
	}
	if !b2.Disconnected {
		tst.Errorf("the islanded load bus must have been disconnected")
	}
}

func Test_sim06_partitioned_matches_dae(tst *testing.T) {
	chk.PrintTitle("sim06. partitioned and DAE integration agree on the same scenario")

	run := func(dae bool) (delta, omega, v2, th2 float64) {
		s, _, b2, g, ld, l := buildTwoBus(link.Full, 0.4, 0.05)
		l.X = 0.1
		g.Pset = 0.4
		if err := s.MakeReady(DynamicInitialized, s.DAEMode); err != nil {
			tst.Fatalf("dynamic initialization failed: %v", err)
		}
		s.Schedule(0.005, 0, func(sim *Simulation) error {
			return ld.Set("p", 0.45)
		})
		var err error
		if dae {
			err = s.DynamicDAE(0.05, 0.001)
		} else {
			err = s.DynamicPartitioned(0.05, 0.001)
		}
		if err != nil {
			tst.Fatalf("integration failed (dae=%v): %v", dae, err)
		}
		st := make([]float64, 2)
		g.Guess(s.Time(), st, nil)
		return st[0], st[1], b2.V, b2.Theta
	}

	d1, w1, v1, t1 := run(true)
	d2, w2, v2, t2 := run(false)
	chk.Scalar(tst, "rotor angle", 1e-3, d1, d2)
	chk.Scalar(tst, "speed deviation", 1e-3, w1, w2)
	chk.Scalar(tst, "load-bus voltage", 1e-3, v1, v2)
	chk.Scalar(tst, "load-bus angle", 1e-3, t1, t2)
}

func Test_sim07_checkpoint_rollback(tst *testing.T) {
	s, _, b2, _, ld, _ := buildTwoBus(link.Full, 0.3, 0.05)
	if err := s.MakeReady(PowerflowComplete, s.PFlowMode); err != nil {
		tst.Fatalf("powerflow failed: %v", err)
	}
	vBefore, aBefore := b2.V, b2.Theta

	s.Checkpoint()
	if s.Checkpoints() != 1 {
		tst.Fatalf("expected one checkpoint on the stack")
	}

	ld.P = 0.6
	if err := s.solvePowerflow(); err != nil {
		tst.Fatalf("re-solve failed: %v", err)
	}
	if math.Abs(b2.V-vBefore) < 1e-9 {
		tst.Fatalf("doubling the load must move the solved voltage")
	}

	if err := s.Rollback(); err != nil {
		tst.Fatalf("Rollback failed: %v", err)
	}
	chk.Scalar(tst, "voltage restored", 1e-15, b2.V, vBefore)
	chk.Scalar(tst, "angle restored", 1e-15, b2.Theta, aBefore)
	if s.Checkpoints() != 0 {
		tst.Errorf("Rollback must pop the checkpoint")
	}

	if err := s.Rollback(); err == nil {
		tst.Errorf("Rollback on an empty stack must fail")
	}
}

func Test_sim08_save_load_roundtrip(tst *testing.T) {
	chk.PrintTitle("sim08. a saved power flow reloads bit-for-bit")

	s, _, b2, _, _, _ := buildTwoBus(link.Full, 0.3, 0.05)
	if err := s.MakeReady(PowerflowComplete, s.PFlowMode); err != nil {
		tst.Fatalf("powerflow failed: %v", err)
	}
	path := filepath.Join(tst.TempDir(), "state.dat")
	if err := s.SaveState(path); err != nil {
		tst.Fatalf("SaveState failed: %v", err)
	}
	vSolved, aSolved := b2.V, b2.Theta

	b2.V, b2.Theta = 1, 0
	if err := s.LoadState(path); err != nil {
		tst.Fatalf("LoadState failed: %v", err)
	}
	if b2.V != vSolved || b2.Theta != aSolved {
		tst.Errorf("LoadState must reproduce the saved operating point exactly: got (%v,%v) want (%v,%v)", b2.V, b2.Theta, vSolved, aSolved)
	}
}

func Test_sim09_event_ordering(tst *testing.T) {
	s, _, _, _, _, _ := buildTwoBus(link.Full, 0.3, 0.0)
	var order []int
	mark := func(id int) func(*Simulation) error {
		return func(*Simulation) error { order = append(order, id); return nil }
	}
	s.Schedule(0.2, 1, mark(2))
	s.Schedule(0.1, 5, mark(1))
	s.Schedule(0.2, 0, mark(3)) // same time as id 2, higher priority (smaller number)
	s.Schedule(0.2, 1, mark(4)) // ties with id 2 on both keys: insertion order decides

	if err := s.EventMode(1.0); err != nil {
		tst.Fatalf("EventMode failed: %v", err)
	}
	want := []int{1, 3, 2, 4}
	if len(order) != len(want) {
		tst.Fatalf("expected %d events executed, got %d", len(want), len(order))
	}
	for i := range want {
		if order[i] != want[i] {
			tst.Fatalf("events must run in (time, priority, insertion) order: got %v", order)
		}
	}
	chk.Scalar(tst, "EventMode lands on its horizon", 1e-12, s.Time(), 1.0)
}

func Test_sim10_action_queue(tst *testing.T) {
	s, _, b2, _, _, _ := buildTwoBus(link.Full, 0.3, 0.05)
	for _, line := range []string{
		"initialize",
		"powerflow",
		"checkpoint",
		"set b2 vtol 1e-7",
	} {
		a, err := ParseAction(line)
		if err != nil {
			tst.Fatalf("ParseAction(%q) failed: %v", line, err)
		}
		s.Enqueue(a)
	}
	if _, err := s.Run(); err != nil {
		tst.Fatalf("Run over the queue failed: %v", err)
	}
	if s.State() != PowerflowComplete {
		tst.Errorf("expected PowerflowComplete, got %s", s.State())
	}
	if s.Checkpoints() != 1 {
		tst.Errorf("the queued checkpoint action must have run")
	}
	if b2.Vtol != 1e-7 {
		tst.Errorf("the queued set action must have applied, got vtol %v", b2.Vtol)
	}

	// a failing action aborts the drain and surfaces its code
	bad, err := ParseAction("set nosuch voltage 1.0")
	if err != nil {
		tst.Fatalf("ParseAction failed: %v", err)
	}
	s.Enqueue(bad)
	code, err := s.Run()
	if err == nil || !kernel.Is(err, kernel.UnrecognizedObject) {
		tst.Errorf("setting an unknown object must fail with UnrecognizedObject, got %v", err)
	}
	if int(code) != ExitUnrecognizedObject {
		tst.Errorf("expected execution code %d, got %d", ExitUnrecognizedObject, code)
	}
}

func Test_sim11_getsolvermode_names(tst *testing.T) {
	s, _, _, _, _, _ := buildTwoBus(link.Full, 0.1, 0.0)
	if m := s.GetSolverMode("ac"); !m.Equal(s.PFlowMode) {
		tst.Errorf("\"ac\" must resolve to the default power-flow mode")
	}
	if m := s.GetSolverMode("dae"); !m.Equal(s.DAEMode) {
		tst.Errorf("\"dae\" must resolve to the default DAE mode")
	}
	dc1 := s.GetSolverMode("dc")
	dc2 := s.GetSolverMode("dc")
	if !dc1.DC || dc1.OffsetIndex != dc2.OffsetIndex {
		tst.Errorf("\"dc\" must construct one DC mode and then reuse it, got %+v / %+v", dc1, dc2)
	}
	fresh := s.GetSolverMode("somethingelse")
	if fresh.OffsetIndex <= 5 || fresh.OffsetIndex == dc1.OffsetIndex {
		tst.Errorf("an unknown name must construct a fresh mode above the reserved indices, got %+v", fresh)
	}
}

func Test_sim12_iterate_quasi_static(tst *testing.T) {
	s, _, b2, _, ld, _ := buildTwoBus(link.Full, 0.2, 0.0)
	s.Schedule(0.5, 0, func(*Simulation) error { ld.P = 0.4; return nil })
	if err := s.Iterate(0.25, 1.0); err != nil {
		tst.Fatalf("Iterate failed: %v", err)
	}
	chk.Scalar(tst, "Iterate lands on its horizon", 1e-12, s.Time(), 1.0)
	if s.PendingEvents() != 0 {
		tst.Errorf("the scheduled load change must have executed")
	}
	if b2.V >= 1.0 {
		tst.Errorf("the heavier load must depress the solved voltage, got %v", b2.V)
	}
}

func Test_sim04_continuous_tap_control(tst *testing.T) {
	chk.PrintTitle("sim04. a continuous tap is solved as an algebraic state")

	root := area.New(1, "sys")
	b1 := bus.New(2, "b1")
	b1.Kind = bus.SLK
	b1.V = 1
	b2 := bus.New(3, "b2")
	b2.V = 1
	root.AddBus(b1)
	root.AddBus(b2)
	g := device.NewGenerator(4, "g1")
	b1.AddGenerator(g)
	ld := device.NewLoad(5, "load1")
	ld.P = 0.05
	b2.AddLoad(ld)

	xf := link.NewAdjustableTransformer(6, "xf1", b1, b2, 0.9, 1.2, 0.01)
	xf.X = 0.05
	xf.Tap = 1.08
	xf.Mode = link.VoltageControl
	xf.Target = 1.0
	xf.MinTarget = 0.95
	xf.MaxTarget = 1.05
	xf.EnableContinuousControl()
	root.AddLink(xf)

	s := New("ctap", root)
	if err := s.MakeReady(PowerflowComplete, s.PFlowMode); err != nil {
		tst.Fatalf("powerflow failed: %v", err)
	}

	chk.Scalar(tst, "controlled voltage lands on its target", 1e-5, b2.V, 1.0)
	if xf.Tap <= 0.9 || xf.Tap >= 1.2 {
		tst.Errorf("the solved tap must sit strictly inside its range, got %v", xf.Tap)
	}
	if xf.AtLimit() != 0 {
		tst.Errorf("an in-range solution must not leave the tap clamped")
	}
}

func Test_sim13_jacobian_paths_agree(tst *testing.T) {
	chk.PrintTitle("sim13. analytic assembly matches the numerical rule cell for cell")

	s, _, _, _, ld, l := buildTwoBus(link.Full, 0.3, 0.1)
	l.R, l.B = 0.02, 0.04
	ld.Ip, ld.Yq = 0.05, 0.1
	if err := s.MakeReady(PowerflowComplete, s.PFlowMode); err != nil {
		tst.Fatalf("powerflow failed: %v", err)
	}

	p := s.buildPowerflow(s.PFlowMode, false)
	n := p.size()
	x := make([]float64, n)
	p.capture(x)

	kbA := new(la.Triplet)
	kbA.Init(n, n, n*n+n)
	kbN := new(la.Triplet)
	kbN.Init(n, n, n*n+n)
	if err := p.jacobianAnalytic(x, kbA); err != nil {
		tst.Fatalf("analytic assembly failed: %v", err)
	}
	if err := p.jacobianNumerical(x, kbN); err != nil {
		tst.Fatalf("numerical assembly failed: %v", err)
	}
	analytic := kbA.ToMatrix(nil).ToDense()
	numeric := kbN.ToMatrix(nil).ToDense()
	chk.Matrix(tst, "power-flow Jacobian", 1e-6, analytic, numeric)
}
