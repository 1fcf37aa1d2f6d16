// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package device

import (
	"math"
	"testing"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/fun"
	"github.com/cpmech/gosl/num"

	"github.com/llnl/griddyn/kernel"
)

func dynMode() kernel.Mode {
	return kernel.Mode{OffsetIndex: 0, Dynamic: true, Algebraic: true, Differential: true, PairedOffsetIndex: kernel.KNullLocation}
}

func Test_load01_zip(tst *testing.T) {
	chk.PrintTitle("load01. ZIP real/reactive power split")

	l := NewLoad(1, "load1")
	l.P, l.Ip, l.Yp = 1.0, 0.5, 0.2
	l.Q, l.Iq, l.Yq = 0.3, 0.1, 0.05

	v := 0.95
	wantP := l.P + l.Ip*v + l.Yp*v*v
	wantQ := l.Q + l.Iq*v + l.Yq*v*v
	chk.Scalar(tst, "real power ", 1e-12, l.RealPower(v, 0, 1), wantP)
	chk.Scalar(tst, "reactive power", 1e-12, l.ReactivePower(v, 0, 1), wantQ)
}

func Test_load02_composite(tst *testing.T) {
	c := NewCompositeLoad(1, "comp1")
	a := NewLoad(2, "a")
	a.P, a.Q = 1.0, 0.2
	b := NewLoad(3, "b")
	b.P, b.Q = 2.0, 0.4
	c.AddComponent(a, 0.3)
	c.AddComponent(b, 0.7)

	wantP := 0.3*a.RealPower(1, 0, 1) + 0.7*b.RealPower(1, 0, 1)
	chk.Scalar(tst, "composite real power", 1e-12, c.RealPower(1, 0, 1), wantP)

	subs := c.SubObjects()
	if len(subs) != 2 {
		tst.Errorf("CompositeLoad.SubObjects must expose both inner loads, got %d", len(subs))
	}
}

func Test_load03_clone(tst *testing.T) {
	l := NewLoad(1, "load1")
	l.P = 1.5
	clone := l.Clone()
	lc, ok := clone.(*Load)
	if !ok {
		tst.Fatalf("Clone must return a *Load")
	}
	lc.P = 9
	chk.Scalar(tst, "original untouched by clone mutation", 1e-12, l.P, 1.5)
}

func Test_generator01_powerflow_dispatch(tst *testing.T) {
	g := NewGenerator(1, "gen1")
	g.Pset, g.Qset = 1.2, 0.3
	chk.Scalar(tst, "pflow-mode real power is Pset", 1e-12, g.RealPower(1.0, 0, 1), g.Pset)
	chk.Scalar(tst, "pflow-mode reactive power is Qset", 1e-12, g.ReactivePower(1.0, 0, 1), g.Qset)
}

func Test_generator02_swing_derivative(tst *testing.T) {
	chk.PrintTitle("generator02. classical swing-equation derivative")

	g := NewGenerator(1, "gen1")
	g.Flags().Set(kernel.FlagInitializedForDyn)
	g.Xd = 0.3
	g.H = 5
	g.D = 1
	g.Pset = 1.0
	g.delta, g.omega = 0.2, 0.01

	m := dynMode()
	kernel.LoadSizes(g, m, false)
	kernel.SetOffsets(g, kernel.OffsetBase{}, m)

	inputs := []float64{1.0, 0.0, 1.0} // V, theta, f
	deriv := make([]float64, 2)
	if err := g.Derivative(inputs, &kernel.StateData{}, deriv, m); err != nil {
		tst.Fatalf("Derivative failed: %v", err)
	}

	omega0 := 2 * math.Pi * 60
	chk.Scalar(tst, "d(delta)/dt", 1e-12, deriv[0], g.omega*omega0)

	pe := g.RealPower(inputs[0], inputs[1], inputs[2])
	wantDomega := (g.Pset - pe - g.D*g.omega) / (2 * g.H)
	chk.Scalar(tst, "d(omega)/dt", 1e-12, deriv[1], wantDomega)
}

func Test_generator03_clone_governor_exciter(tst *testing.T) {
	g := NewGenerator(1, "gen1")
	g.Governor = &Governor{}
	g.Governor.SetPmech(0.8)
	g.Exciter = &SimpleAVR{}

	clone := g.Clone()
	gc, ok := clone.(*Generator)
	if !ok {
		tst.Fatalf("Clone must return a *Generator")
	}
	if gc.Governor == g.Governor {
		tst.Errorf("Clone must copy the Governor by value, not share the pointer")
	}
	chk.Scalar(tst, "cloned governor Pmech", 1e-12, gc.Governor.Pmech(), g.Governor.Pmech())
	if gc.Exciter == g.Exciter {
		tst.Errorf("Clone must copy a recognized Exciter concrete type, not share the pointer")
	}
}

type fakeCurrentSource struct{ i float64 }

func (f *fakeCurrentSource) Current() float64 { return f.i }
func (f *fakeCurrentSource) ID() int          { return 99 }

func Test_relay01_root_trigger(tst *testing.T) {
	chk.PrintTitle("relay01. root test crosses zero and trips")

	src := &fakeCurrentSource{i: 0.5}
	r := NewRelay(1, "relay1", src, 1.0)

	roots := make([]float64, 1)
	rec := r.Offsets().Record(kernel.LocalMode)
	rec.RootOffset = 0
	if err := r.RootTest(nil, &kernel.StateData{}, roots, kernel.LocalMode); err != nil {
		tst.Fatalf("RootTest failed: %v", err)
	}
	chk.Scalar(tst, "root value (threshold - current)", 1e-12, roots[0], r.Threshold-src.Current())

	if r.Tripped() {
		tst.Errorf("a fresh relay must not be tripped")
	}
	cc, err := r.RootTrigger(0, 0, nil, &kernel.StateData{})
	if err != nil {
		tst.Fatalf("RootTrigger failed: %v", err)
	}
	if cc != kernel.StateChange {
		tst.Errorf("a first trigger must report StateChange, got %v", cc)
	}
	if !r.Tripped() {
		tst.Errorf("RootTrigger must mark the relay tripped")
	}
	cc2, _ := r.RootTrigger(0, 0, nil, &kernel.StateData{})
	if cc2 != kernel.NoChange {
		tst.Errorf("a second trigger on an already-tripped relay must be a no-op")
	}
}

func Test_relay02_clone_pending_monitor(tst *testing.T) {
	src := &fakeCurrentSource{i: 0.2}
	r := NewRelay(1, "relay1", src, 1.0)

	clone := r.Clone()
	rc, ok := clone.(*Relay)
	if !ok {
		tst.Fatalf("Clone must return a *Relay")
	}
	if rc.Monitor != nil {
		tst.Errorf("Clone must leave Monitor nil pending area.UpdateObjectLinkages")
	}
	id, ok := rc.PendingMonitorID()
	if !ok || id != src.ID() {
		tst.Errorf("PendingMonitorID must preserve the original monitor's id, got %d,%v want %d", id, ok, src.ID())
	}

	other := &fakeCurrentSource{i: 0.9}
	rc.SetMonitor(other)
	if rc.Monitor != other {
		tst.Errorf("SetMonitor must install the resolved monitor")
	}
}

func Test_alarm_codec_round_trip(tst *testing.T) {
	msg := EncodeAlarm(3, -7)
	code, target, err := DecodeAlarm(msg)
	if err != nil {
		tst.Fatalf("DecodeAlarm failed on a message produced by EncodeAlarm: %v", err)
	}
	if code != 3 || target != -7 {
		tst.Errorf("round trip mismatch: got code=%d target=%d", code, target)
	}
}

func Test_source01_schedule(tst *testing.T) {
	s := NewSource(1, "src1", &fun.Cte{C: 2.5})
	s.Qset = 0.4
	s.SetState(10, nil, nil)
	chk.Scalar(tst, "scheduled real power", 1e-12, s.RealPower(1, 0, 1), 2.5)
	chk.Scalar(tst, "fixed reactive power", 1e-12, s.ReactivePower(1, 0, 1), 0.4)
}

// jacSink captures Jacobian entries by (row, col), summing duplicates the
// way a triplet does.
type jacSink map[[2]int]float64

func (s jacSink) Put(i, j int, v float64) { s[[2]int{i, j}] += v }

func Test_load04_jacobian(tst *testing.T) {
	chk.PrintTitle("load04. the ZIP voltage sensitivity enters the nodal rows negated")

	l := NewLoad(1, "load1")
	l.P, l.Ip, l.Yp = 0.4, 0.05, 0.2
	l.Q, l.Iq, l.Yq = 0.1, 0.02, -0.19

	inputs := []float64{0.97, 0, 1}
	sink := jacSink{}
	locs := []int{0, 1, 2, 3} // rowP, rowQ, colTheta, colV
	if err := l.JacobianElements(inputs, &kernel.StateData{}, sink, locs, kernel.LocalMode); err != nil {
		tst.Fatalf("JacobianElements failed: %v", err)
	}

	var tmp float64
	dnumP := num.DerivCen(func(x float64, args ...interface{}) (res float64) {
		tmp, inputs[0] = inputs[0], x
		res = -l.RealPower(inputs[0], 0, 1)
		inputs[0] = tmp
		return
	}, inputs[0])
	dnumQ := num.DerivCen(func(x float64, args ...interface{}) (res float64) {
		tmp, inputs[0] = inputs[0], x
		res = -l.ReactivePower(inputs[0], 0, 1)
		inputs[0] = tmp
		return
	}, inputs[0])
	chk.Scalar(tst, "dP/dV", 1e-8, sink[[2]int{0, 3}], dnumP)
	chk.Scalar(tst, "dQ/dV", 1e-8, sink[[2]int{1, 3}], dnumQ)
	if _, ok := sink[[2]int{0, 2}]; ok {
		tst.Errorf("a voltage-only load must not couple to the angle column")
	}
}

func Test_generator04_jacobian(tst *testing.T) {
	chk.PrintTitle("generator04. machine couplings match a finite difference on the injections")

	g := NewGenerator(1, "gen1")
	g.Pset, g.Qset = 0.4, 0.1
	inputs := []float64{1.02, 0.05, 1}
	locs := []int{0, 1, 2, 3}

	// before dynamic initialization the dispatch is constant: no entries
	sink := jacSink{}
	if err := g.JacobianElements(inputs, &kernel.StateData{}, sink, locs, kernel.LocalMode); err != nil {
		tst.Fatalf("JacobianElements failed: %v", err)
	}
	if len(sink) != 0 {
		tst.Fatalf("a power-flow dispatch must contribute no Jacobian entries, got %d", len(sink))
	}

	if err := g.DynInitializeA(0, 0); err != nil {
		tst.Fatalf("DynInitializeA failed: %v", err)
	}
	if _, err := g.DynInitializeB(inputs, nil); err != nil {
		tst.Fatalf("DynInitializeB failed: %v", err)
	}
	sink = jacSink{}
	if err := g.JacobianElements(inputs, &kernel.StateData{}, sink, locs, kernel.LocalMode); err != nil {
		tst.Fatalf("JacobianElements failed: %v", err)
	}

	var tmp float64
	fd := func(reactive bool, idx int) float64 {
		return num.DerivCen(func(x float64, args ...interface{}) (res float64) {
			tmp, inputs[idx] = inputs[idx], x
			if reactive {
				res = g.ReactivePower(inputs[0], inputs[1], 1)
			} else {
				res = g.RealPower(inputs[0], inputs[1], 1)
			}
			inputs[idx] = tmp
			return
		}, inputs[idx])
	}
	chk.Scalar(tst, "dPe/dV", 1e-8, sink[[2]int{0, 3}], fd(false, 0))
	chk.Scalar(tst, "dPe/dtheta", 1e-8, sink[[2]int{0, 2}], fd(false, 1))
	chk.Scalar(tst, "dQe/dV", 1e-8, sink[[2]int{1, 3}], fd(true, 0))
	chk.Scalar(tst, "dQe/dtheta", 1e-8, sink[[2]int{1, 2}], fd(true, 1))
}

func Test_load05_composite_jacobian(tst *testing.T) {
	c := NewCompositeLoad(1, "comp1")
	a := NewLoad(2, "a")
	a.Ip, a.Iq = 0.2, 0.1
	b := NewLoad(3, "b")
	b.Ip, b.Iq = 0.4, 0.2
	c.AddComponent(a, 0.3)
	c.AddComponent(b, 0.7)

	inputs := []float64{1.0, 0, 1}
	sink := jacSink{}
	if err := c.JacobianElements(inputs, &kernel.StateData{}, sink, []int{0, 1, 2, 3}, kernel.LocalMode); err != nil {
		tst.Fatalf("JacobianElements failed: %v", err)
	}
	want := -(0.3*a.Ip + 0.7*b.Ip)
	chk.Scalar(tst, "fraction-weighted dP/dV", 1e-12, sink[[2]int{0, 3}], want)
}
