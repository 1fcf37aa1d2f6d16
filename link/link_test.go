// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package link

import (
	"testing"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"
	"github.com/cpmech/gosl/num"

	"github.com/llnl/griddyn/bus"
	"github.com/llnl/griddyn/device"
	"github.com/llnl/griddyn/kernel"
)

// fixedSource is a minimal settable injection device, enough for a bus to
// aggregate and for PropagatePower to assign dispatch to.
type fixedSource struct {
	device.Leaf
	p, q float64
}

func newFixedSource(id int) *fixedSource {
	s := &fixedSource{Leaf: device.Leaf{Object: kernel.NewObject(id, "src")}}
	s.Flags().Set(kernel.FlagEnabled)
	return s
}

func (s *fixedSource) RealPower(v, theta, f float64) float64     { return s.p }
func (s *fixedSource) ReactivePower(v, theta, f float64) float64 { return s.q }

func (s *fixedSource) Set(name string, value float64) error {
	switch name {
	case "p":
		s.p = value
	case "q":
		s.q = value
	default:
		return kernel.Newf(kernel.UnrecognizedParameter, "source has no parameter %q", name)
	}
	return nil
}

func Test_link01_linear_flow(tst *testing.T) {
	chk.PrintTitle("link01. linear-approximation flow is antisymmetric")

	b1 := bus.New(1, "b1")
	b2 := bus.New(2, "b2")
	b1.V, b1.Theta = 1.0, 0.1
	b2.V, b2.Theta = 1.0, 0.0

	l := New(3, "line1", b1, b2)
	l.X = 0.1
	l.Level = Linear

	p1, _ := l.FlowAt(1)
	p2, _ := l.FlowAt(2)
	chk.Scalar(tst, "p1", 1e-12, p1, (b1.Theta-b2.Theta)/l.X)
	chk.Scalar(tst, "p2 = -p1 (lossless linear branch)", 1e-12, p2, -p1)
}

func Test_link02_open_terminal(tst *testing.T) {
	b1 := bus.New(1, "b1")
	b2 := bus.New(2, "b2")
	b1.V, b1.Theta = 1.0, 0.1

	l := New(3, "line1", b1, b2)
	l.X = 0.1
	l.Level = Linear

	if l.TerminalOpen(1) || l.TerminalOpen(2) {
		tst.Errorf("a fresh link must have both terminals closed")
	}
	l.OpenFrom()
	if !l.TerminalOpen(1) {
		tst.Errorf("OpenFrom must open the from terminal")
	}
	p1, q1 := l.FlowAt(1)
	if p1 != 0 || q1 != 0 {
		tst.Errorf("an open terminal must contribute zero flow, got p=%v q=%v", p1, q1)
	}
	if !l.IsOpen() {
		// only one end open: not fully disconnected
	} else {
		tst.Errorf("IsOpen must require both ends open")
	}
	l.OpenTo()
	if !l.IsOpen() {
		tst.Errorf("IsOpen must be true once both ends are open")
	}
}

func Test_link03_fault_splice(tst *testing.T) {
	b1 := bus.New(1, "b1")
	b2 := bus.New(2, "b2")
	b1.V, b1.Theta = 1.0, 0.1
	b2.V, b2.Theta = 1.0, 0.0

	l := New(3, "line1", b1, b2)
	l.X = 0.1
	l.Level = Linear

	p1Before, _ := l.FlowAt(1)
	l.SetFault(0, 0.2)
	p1After, _ := l.FlowAt(1)
	if p1After == p1Before {
		tst.Errorf("SetFault must change the effective branch impedance and so the flow")
	}
	l.ClearFault()
	p1Cleared, _ := l.FlowAt(1)
	chk.Scalar(tst, "flow after ClearFault matches pre-fault flow", 1e-12, p1Cleared, p1Before)
}

func Test_link04_clone_and_linkages(tst *testing.T) {
	b1 := bus.New(1, "b1")
	b2 := bus.New(2, "b2")
	l := New(3, "line1", b1, b2)
	l.R, l.X, l.Tap = 0.01, 0.1, 1.02

	clone := l.Clone()
	lc, ok := clone.(*Link)
	if !ok {
		tst.Fatalf("Clone must return a *Link")
	}
	if lc == l {
		tst.Errorf("Clone must not return the original pointer")
	}
	if lc.From != nil || lc.To != nil {
		tst.Errorf("Clone must leave From/To nil pending updateObjectLinkages")
	}
	fromID, toID := lc.PendingTerminalIDs()
	if fromID != b1.ID() || toID != b2.ID() {
		tst.Errorf("PendingTerminalIDs must preserve the original terminal ids, got %d,%d want %d,%d", fromID, toID, b1.ID(), b2.ID())
	}

	nb1 := bus.New(1, "b1-clone")
	nb2 := bus.New(2, "b2-clone")
	lc.SetTerminals(nb1, nb2)
	if lc.FromBus() != nb1 || lc.ToBus() != nb2 {
		tst.Errorf("SetTerminals must install the resolved bus pointers")
	}
	chk.Scalar(tst, "cloned R", 1e-12, lc.R, l.R)
	chk.Scalar(tst, "cloned Tap", 1e-12, lc.Tap, l.Tap)
}

func Test_transformer01_oscillation_guard(tst *testing.T) {
	chk.PrintTitle("transformer01. tap-hunting guard trips after 5 reversals")

	b1 := bus.New(1, "b1")
	b2 := bus.New(2, "b2")
	b1.V, b2.V = 1.0, 1.0

	a := NewAdjustableTransformer(3, "xf1", b1, b2, 0.9, 1.1, 0.01)
	a.Mode = VoltageControl
	a.Target = 1.0

	var last kernel.ChangeCode
	var err error
	for i := 0; i < 12; i++ {
		if i%2 == 0 {
			b2.V = 0.9
		} else {
			b2.V = 1.1
		}
		last, err = a.PowerFlowAdjust(nil, 0, kernel.AdjustFull)
		if err != nil {
			tst.Fatalf("PowerFlowAdjust failed: %v", err)
		}
		if a.IsOscillating() {
			break
		}
	}
	if !a.IsOscillating() {
		tst.Errorf("hunting tap must trip the oscillation guard within 12 alternations")
	}
	if last != kernel.StateChange {
		tst.Errorf("the call that trips the guard must report StateChange, got %v", last)
	}

	a.ResetOscillationGuard()
	if a.IsOscillating() {
		tst.Errorf("ResetOscillationGuard must clear the oscillating flag")
	}
}

func Test_transformer02_manual_mode_noop(tst *testing.T) {
	b1 := bus.New(1, "b1")
	b2 := bus.New(2, "b2")
	a := NewAdjustableTransformer(3, "xf1", b1, b2, 0.9, 1.1, 0.01)
	a.Target = 1.05

	cc, err := a.PowerFlowAdjust(nil, 0, kernel.AdjustFull)
	if err != nil {
		tst.Fatalf("PowerFlowAdjust failed: %v", err)
	}
	if cc != kernel.NoChange {
		tst.Errorf("Manual mode must never adjust the tap, got %v", cc)
	}
	chk.Scalar(tst, "tap unchanged in Manual mode", 1e-12, a.Tap, 1.0)
}

func Test_link05_fixpower(tst *testing.T) {
	chk.PrintTitle("link05. fixPower drives the measured terminal flow to its target")

	b1 := bus.New(1, "b1")
	b2 := bus.New(2, "b2")
	b1.V, b2.V = 1.0, 1.0
	g := newFixedSource(3)
	b1.AddGenerator(g)

	l := New(4, "line1", b1, b2)
	l.X = 0.1
	l.Level = Full

	if err := l.FixPower(0.2, 0.02, 1, 1); err != nil {
		tst.Fatalf("FixPower failed: %v", err)
	}
	p1, q1 := l.FlowAt(b1.ID())
	tol := (b1.Atol + b1.Vtol) / 2
	if dp := p1 - 0.2; dp > tol || dp < -tol {
		tst.Errorf("measured P must land on its target within tolerance, got %v", p1)
	}
	if dq := q1 - 0.02; dq > tol || dq < -tol {
		tst.Errorf("measured Q must land on its target within tolerance, got %v", q1)
	}
	// the fixed-terminal bus's one unfixed generator absorbed the flow
	chk.Scalar(tst, "propagated generator dispatch", 1e-5, g.p, 0.2)
}

func Test_link06_fixpower_bad_terminal(tst *testing.T) {
	b1 := bus.New(1, "b1")
	b2 := bus.New(2, "b2")
	l := New(3, "line1", b1, b2)
	l.X = 0.1
	if err := l.FixPower(0.1, 0, 3, 1); err == nil || !kernel.Is(err, kernel.InvalidParameterValue) {
		tst.Errorf("an out-of-range terminal index must fail with InvalidParameterValue")
	}
}

func Test_link07_approximation_table(tst *testing.T) {
	chk.PrintTitle("link07. all nine approximation levels produce consistent lossless flows")

	b1 := bus.New(1, "b1")
	b2 := bus.New(2, "b2")
	b1.V, b1.Theta = 1.02, 0.05
	b2.V, b2.Theta = 0.99, 0.0

	levels := []Level{Full, Decoupled, SmallAngle, SmallAngleDecoupled,
		Simplified, SimplifiedDecoupled, SimplifiedSmallAngle, FastDecoupled, Linear}

	l := New(3, "line1", b1, b2)
	l.X = 0.1 // lossless branch: every level agrees that P1 = -P2
	for _, lv := range levels {
		l.Level = lv
		l.PFlowInitializeA(0, 0) // clears the flow cache between levels
		p1, _ := l.FlowAt(1)
		p2, _ := l.FlowAt(2)
		chk.Scalar(tst, "lossless antisymmetry", 1e-12, p1, -p2)
		if p1 <= 0 {
			tst.Errorf("level %d: power must flow from the leading-angle end, got p1=%v", lv, p1)
		}
	}

	// the small-angle linearization tracks the exact flow to third order
	l.Level = Full
	l.PFlowInitializeA(0, 0)
	pFull, _ := l.FlowAt(1)
	l.Level = SmallAngle
	l.PFlowInitializeA(0, 0)
	pSmall, _ := l.FlowAt(1)
	d := pFull - pSmall
	if d > 1e-3 || d < -1e-3 {
		tst.Errorf("small-angle flow must track the exact flow at a 0.05 rad spread, difference %v", d)
	}
}

func Test_transformer03_continuous_state_contract(tst *testing.T) {
	chk.PrintTitle("transformer03. continuous control: sizing, clamp, and root pair")

	b1 := bus.New(1, "b1")
	b2 := bus.New(2, "b2")
	b1.V, b2.V = 1.0, 0.97
	a := NewAdjustableTransformer(3, "xf1", b1, b2, 0.95, 1.1, 0.01)
	a.X = 0.05
	a.Mode = VoltageControl
	a.Target = 1.0
	a.MinTarget = 0.95
	a.MaxTarget = 1.05
	a.EnableContinuousControl()

	m := kernel.Mode{OffsetIndex: 2, Algebraic: true, PairedOffsetIndex: kernel.KNullLocation}
	ls := a.LocalSizes(m)
	if ls.Alg != 1 || ls.AlgRoot != 2 {
		tst.Fatalf("continuous control must size one state and a root pair, got %+v", ls)
	}
	kernel.LoadSizes(a, m, false)
	kernel.SetOffsets(a, kernel.OffsetBase{}, m)

	// a requested tap beyond the range clamps and flags the at-limit state
	if err := a.SetState(0, []float64{1.4}, nil); err != nil {
		tst.Fatalf("SetState failed: %v", err)
	}
	if a.AtLimit() != 1 {
		tst.Errorf("a request above MaxTap must clamp high, got atLimit=%d", a.AtLimit())
	}
	chk.Scalar(tst, "clamped tap", 1e-12, a.Tap, 1.1)

	// at the clamp, the control equation drives the requested tap back
	// onto the bound
	resid := make([]float64, 1)
	if err := a.Residual(nil, &kernel.StateData{}, resid, m); err != nil {
		tst.Fatalf("Residual failed: %v", err)
	}
	chk.Scalar(tst, "at-limit residual", 1e-12, resid[0], 1.4-1.1)

	// the root pair tracks the controlled quantity against its band
	roots := make([]float64, 2)
	if err := a.RootTest(nil, &kernel.StateData{}, roots, m); err != nil {
		tst.Fatalf("RootTest failed: %v", err)
	}
	chk.Scalar(tst, "lower-band root", 1e-12, roots[0], b2.V-0.95)
	chk.Scalar(tst, "upper-band root", 1e-12, roots[1], 1.05-b2.V)

	// once the controlled quantity is back inside the band, the trigger
	// releases the clamp
	pending, err := a.RootCheck(&kernel.StateData{}, m)
	if err != nil || !pending {
		tst.Fatalf("an in-band controlled quantity must report a pending release, got %v, %v", pending, err)
	}
	cc, err := a.RootTrigger(0, 0, nil, &kernel.StateData{})
	if err != nil {
		tst.Fatalf("RootTrigger failed: %v", err)
	}
	if cc != kernel.JacobianChange {
		tst.Errorf("releasing the clamp must report JacobianChange, got %v", cc)
	}
	if a.AtLimit() != 0 {
		tst.Errorf("the clamp must be released")
	}

	// the regulating equation compares the controlled quantity to Target
	if err := a.Residual(nil, &kernel.StateData{}, resid, m); err != nil {
		tst.Fatalf("Residual failed: %v", err)
	}
	chk.Scalar(tst, "regulating residual", 1e-12, resid[0], b2.V-a.Target)
}

func Test_link08_derivative_table(tst *testing.T) {
	chk.PrintTitle("link08. every level's derivative table matches a finite difference on its flows")

	tap, r, x, b := 1.03, 0.02, 0.12, 0.08
	levels := []Level{Full, Decoupled, SmallAngle, SmallAngleDecoupled,
		Simplified, SimplifiedDecoupled, SimplifiedSmallAngle, FastDecoupled, Linear}

	for _, lv := range levels {
		a := lv.Approx()
		vals := []float64{1.02, 0.07, 0.98, -0.01} // V1, th1, V2, th2
		d := derivs(vals[0], vals[1], vals[2], vals[3], tap, r, x, b, a)
		analytic := [4][4]float64{
			{d.dP1dV1, d.dP1dTh1, d.dP1dV2, d.dP1dTh2},
			{d.dQ1dV1, d.dQ1dTh1, d.dQ1dV2, d.dQ1dTh2},
			{d.dP2dV1, d.dP2dTh1, d.dP2dV2, d.dP2dTh2},
			{d.dQ2dV1, d.dQ2dTh1, d.dQ2dV2, d.dQ2dTh2},
		}
		var tmp float64
		for iv := 0; iv < 4; iv++ {
			for fl := 0; fl < 4; fl++ {
				dnum := num.DerivCen(func(q float64, args ...interface{}) (res float64) {
					tmp, vals[iv] = vals[iv], q
					p1, q1, p2, q2 := flows(vals[0], vals[1], vals[2], vals[3], tap, r, x, b, a)
					vals[iv] = tmp
					return [4]float64{p1, q1, p2, q2}[fl]
				}, vals[iv])
				chk.Scalar(tst, io.Sf("level %d: d(flow %d)/d(x %d)", lv, fl, iv), 1e-6, analytic[fl][iv], dnum)
			}
		}
	}
}

// recordSink captures Jacobian entries by (row, col), summing duplicates
// the way a triplet does.
type recordSink map[[2]int]float64

func (r recordSink) Put(i, j int, v float64) { r[[2]int{i, j}] += v }

func Test_link09_jacobian_elements(tst *testing.T) {
	chk.PrintTitle("link09. JacobianElements writes the negated flow partials at the assigned locations")

	b1 := bus.New(1, "b1")
	b2 := bus.New(2, "b2")
	b1.V, b1.Theta = 1.02, 0.07
	b2.V, b2.Theta = 0.98, -0.01
	l := New(3, "line1", b1, b2)
	l.R, l.X, l.B = 0.02, 0.12, 0.08
	l.Tap = 1.03

	d := l.Derivatives()
	sink := recordSink{}
	// columns 0..3 = thF, vF, thT, vT; rows 4..7 = PF, QF, PT, QT
	locs := []int{0, 1, 2, 3, 4, 5, 6, 7}
	if err := l.JacobianElements(nil, &kernel.StateData{}, sink, locs, kernel.LocalMode); err != nil {
		tst.Fatalf("JacobianElements failed: %v", err)
	}
	chk.Scalar(tst, "from P row / from theta col", 1e-12, sink[[2]int{4, 0}], -d.dP1dTh1)
	chk.Scalar(tst, "from Q row / from V col", 1e-12, sink[[2]int{5, 1}], -d.dQ1dV1)
	chk.Scalar(tst, "to P row / to V col", 1e-12, sink[[2]int{6, 3}], -d.dP2dV2)
	chk.Scalar(tst, "to Q row / from theta col", 1e-12, sink[[2]int{7, 0}], -d.dQ2dTh1)

	// a held quantity is skipped, not written at a bogus location
	sink = recordSink{}
	held := []int{kernel.KNullLocation, kernel.KNullLocation, 2, 3, kernel.KNullLocation, kernel.KNullLocation, 6, 7}
	if err := l.JacobianElements(nil, &kernel.StateData{}, sink, held, kernel.LocalMode); err != nil {
		tst.Fatalf("JacobianElements failed: %v", err)
	}
	for key := range sink {
		if key[0] < 6 || key[1] < 2 {
			tst.Errorf("an entry landed on a held location: %v", key)
		}
	}

	// an open line couples nothing
	l.OpenFrom()
	sink = recordSink{}
	if err := l.JacobianElements(nil, &kernel.StateData{}, sink, locs, kernel.LocalMode); err != nil {
		tst.Fatalf("JacobianElements failed: %v", err)
	}
	if len(sink) != 0 {
		tst.Errorf("an open line must contribute no Jacobian entries, got %d", len(sink))
	}
}
