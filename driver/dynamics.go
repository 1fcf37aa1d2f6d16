// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package driver

import (
	"github.com/cpmech/gosl/la"
	"github.com/cpmech/gosl/num"

	"github.com/llnl/griddyn/area"
	"github.com/llnl/griddyn/bus"
	"github.com/llnl/griddyn/device"
	"github.com/llnl/griddyn/kernel"
)

// diffOwner is one differential-state-holding device together with the bus
// whose outputs feed it and its block in the dynamic mode's differential
// index space.
type diffOwner struct {
	model kernel.Model
	b     *bus.Bus
	off   int
	n     int
}

// rootOwner is one root-holding object and its block in the dynamic mode's
// root index space.
type rootOwner struct {
	model kernel.Model
	off   int
	n     int
}

// doDynInitialize sizes the dynamic modes, runs both dynamic
// initialization phases over the tree, and caches the differential- and
// root-owner lists the integration loops walk.
func (s *Simulation) doDynInitialize() error {
	s.resize(s.DAEMode)
	s.resize(s.DynAlgMode)
	s.resize(s.DynDiffMode)
	if err := s.Root.DynInitializeA(s.currentTime, 0); err != nil {
		return err
	}
	if _, err := s.Root.DynInitializeB(nil, nil); err != nil {
		return err
	}
	s.collectDynamics()
	s.dynAlg = s.buildPowerflow(s.DynAlgMode, true)
	s.initRecorder()
	s.record()
	return nil
}

func (s *Simulation) collectDynamics() {
	s.diffOwners = nil
	for _, b := range s.Root.AllBuses() {
		for _, g := range b.Generators() {
			rec := g.Offsets().Record(s.DAEMode)
			if rec.Own.Diff > 0 {
				s.diffOwners = append(s.diffOwners, diffOwner{model: g, b: b, off: rec.DiffOffset, n: rec.Own.Diff})
			}
		}
	}

	s.rootOwners = nil
	s.relays = nil
	var walk func(a *area.Area)
	walk = func(a *area.Area) {
		for _, child := range a.PrimaryObjects() {
			if sub, ok := child.(*area.Area); ok {
				walk(sub)
				continue
			}
			m, ok := child.(kernel.Model)
			if !ok {
				continue
			}
			rec := child.Offsets().Record(s.DAEMode)
			if nr := rec.Own.AlgRoot + rec.Own.DiffRoot; nr > 0 {
				s.rootOwners = append(s.rootOwners, rootOwner{model: m, off: rec.RootOffset, n: nr})
			}
			if r, ok := child.(*device.Relay); ok {
				s.relays = append(s.relays, r)
			}
		}
	}
	walk(s.Root)

	s.prevRoots = s.evalRoots(s.DAEMode)
}

func (s *Simulation) diffSize() int {
	return s.Root.Offsets().Record(s.DAEMode).DiffSize
}

func (s *Simulation) rootSize() int {
	rec := s.Root.Offsets().Record(s.DAEMode)
	return rec.AlgRoots + rec.DiffRoots
}

// setDiffStates distributes the flat differential vector to its owners.
func (s *Simulation) setDiffStates(t float64, diff []float64) {
	for _, o := range s.diffOwners {
		o.model.SetState(t, diff[o.off:o.off+o.n], nil)
	}
}

// captureDiffStates fills the flat differential vector from its owners.
func (s *Simulation) captureDiffStates(t float64, diff []float64) {
	for _, o := range s.diffOwners {
		o.model.Guess(t, diff[o.off:o.off+o.n], nil)
	}
}

// evalDerivatives computes every differential state's time derivative at
// the present operating point.
func (s *Simulation) evalDerivatives(mode kernel.Mode) []float64 {
	deriv := make([]float64, s.diffSize())
	sD := &kernel.StateData{Time: s.currentTime, Mode: mode, SeqID: kernel.NextSeqID()}
	for _, o := range s.diffOwners {
		outs := o.b.Outputs()
		o.model.Derivative(outs[:], sD, deriv, mode)
	}
	return deriv
}

// daeProblem is the combined [algebraic | differential] nonlinear system
// one implicit theta-method step solves: the algebraic rows are the nodal
// balances, the differential rows the theta-method residual
// x_new - xOld - dt*(theta*f_new + (1-theta)*f_old), with the xOld/f_old
// terms folded into a1 at the start of the step.
type daeProblem struct {
	s    *Simulation
	alg  *powerFlowProblem
	nAlg int
	a0   float64
	a1   []float64
}

func (d *daeProblem) size() int { return d.nAlg + len(d.a1) }

func (d *daeProblem) residual(z, r []float64) error {
	diff := z[d.nAlg:]
	d.s.setDiffStates(d.s.currentTime, diff)
	if err := d.alg.residual(z[:d.nAlg], r[:d.nAlg]); err != nil {
		return err
	}
	f := d.s.evalDerivatives(d.s.DAEMode)
	for k := range diff {
		r[d.nAlg+k] = diff[k] - d.a1[k] - d.a0*f[k]
	}
	return nil
}

// jacobian assembles the combined system's Jacobian cell by cell with
// num.DerivFwd: the differential rows couple into the rotor states, which
// the analytic nodal tables do not cover, so the DAE step stays on the
// numerical rule.
func (d *daeProblem) jacobian(z []float64, kb *la.Triplet) error {
	n := d.size()
	resid := make([]float64, n)
	var tmp float64
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			dnum := num.DerivFwd(func(zj float64, args ...interface{}) (res float64) {
				tmp, z[j] = z[j], zj
				d.residual(z, resid)
				z[j] = tmp
				return resid[i]
			}, z[j])
			if dnum != 0 {
				kb.Put(i, j, dnum)
			}
		}
	}
	return d.residual(z, resid)
}

// DynamicDAE integrates the combined DAE system to end with the single
// implicit solver, one theta-method Newton solve per step.
func (s *Simulation) DynamicDAE(end, step float64) error {
	if err := s.MakeReady(DynamicInitialized, s.DAEMode); err != nil {
		return err
	}
	if step <= 0 {
		step = s.DefaultDynStep
	}
	alg := s.buildPowerflow(s.DAEMode, true)
	d := &daeProblem{s: s, alg: alg, nAlg: alg.size(), a1: make([]float64, s.diffSize())}
	s.dae = d
	var coefs DynCoefs
	coefs.Init(s.Theta)

	si := s.daeNewton(d.size())
	for s.currentTime < end-1e-12 {
		if s.daeStale {
			alg = s.buildPowerflow(s.DAEMode, true)
			d.alg = alg
			d.nAlg = alg.size()
			d.a1 = make([]float64, s.diffSize())
			s.daeSolver = nil
			si = s.daeNewton(d.size())
			s.daeStale = false
		}
		if err := s.runDueEvents(); err != nil {
			return err
		}
		dt := step
		if s.currentTime+dt > end {
			dt = end - s.currentTime
		}
		if evT, ok := s.events.nextTime(); ok && evT > s.currentTime && evT < s.currentTime+dt {
			dt = evT - s.currentTime
		}

		z := si.StateData()
		alg.capture(z[:d.nAlg])
		diffOld := make([]float64, s.diffSize())
		s.captureDiffStates(s.currentTime, diffOld)
		copy(z[d.nAlg:], diffOld)
		f0 := s.evalDerivatives(s.DAEMode)

		d.a0 = dt * s.Theta
		for k := range diffOld {
			_, a1 := coefs.Calc(dt, diffOld[k], f0[k])
			d.a1[k] = a1
		}

		if err := s.machine.Transition(DynamicPartial); err != nil {
			return err
		}
		if err := s.solveWithRetry(si); err != nil {
			return err
		}
		z = si.StateData()
		alg.apply(z[:d.nAlg])
		s.currentTime += dt
		s.setDiffStates(s.currentTime, z[d.nAlg:])

		if _, err := s.checkRoots(s.DAEMode); err != nil {
			return err
		}
		s.record()
	}
	return nil
}

func (s *Simulation) daeNewton(n int) *NewtonRaphson {
	if s.daeSolver == nil {
		s.daeSolver = s.tune(NewNewtonRaphson("dae", s.DAEMode,
			func(z, r []float64) error { return s.dae.residual(z, r) },
			func(z []float64, kb *la.Triplet) error { return s.dae.jacobian(z, kb) }))
		s.registry.Add(s.daeSolver)
	}
	if len(s.daeSolver.StateData()) != n {
		s.daeSolver.SetMaxNonZeros(n*n + n)
		s.daeSolver.Allocate(n, s.rootSize())
		td := s.daeSolver.TypeData()
		nAlg := n - s.diffSize()
		for i := range td {
			if i < nAlg {
				td[i] = float64(kernel.VarAlgebraic)
			} else {
				td[i] = float64(kernel.VarDifferential)
			}
		}
	}
	if !s.daeSolver.IsInitialized() {
		s.daeSolver.Initialize(s.currentTime)
	}
	return s.daeSolver
}

// DynamicPartitioned integrates to end with the partitioned pair of
// solvers: each step advances the differential states with a
// predictor-corrector theta blend, re-solving the algebraic network
// between corrections.
func (s *Simulation) DynamicPartitioned(end, step float64) error {
	if err := s.MakeReady(DynamicInitialized, s.DynAlgMode); err != nil {
		return err
	}
	if step <= 0 {
		step = s.DefaultDynStep
	}
	for s.currentTime < end-1e-12 {
		if err := s.runDueEvents(); err != nil {
			return err
		}
		dt := step
		if s.currentTime+dt > end {
			dt = end - s.currentTime
		}
		if evT, ok := s.events.nextTime(); ok && evT > s.currentTime && evT < s.currentTime+dt {
			dt = evT - s.currentTime
		}
		if err := s.machine.Transition(DynamicPartial); err != nil {
			return err
		}
		if err := s.partitionedStep(dt); err != nil {
			return err
		}
		if _, err := s.checkRoots(s.DAEMode); err != nil {
			return err
		}
		s.record()
	}
	return nil
}

// DynamicDecoupled is DynamicPartitioned with the decoupled flow
// approximation pinned on every link for the duration of the run.
func (s *Simulation) DynamicDecoupled(end, step float64) error {
	type overridable interface {
		SetApproxOverride(kernel.Approx)
		ClearApproxOverride()
	}
	var pinned []overridable
	for _, l := range s.Root.AllLinks() {
		if o, ok := l.(overridable); ok {
			o.SetApproxOverride(kernel.ApproxDecoupled)
			pinned = append(pinned, o)
		}
	}
	err := s.DynamicPartitioned(end, step)
	for _, o := range pinned {
		o.ClearApproxOverride()
	}
	return err
}

// Step advances the partitioned dynamics by exactly one step of the given
// size.
func (s *Simulation) Step(step float64) error {
	if step <= 0 {
		step = s.DefaultDynStep
	}
	return s.DynamicPartitioned(s.currentTime+step, step)
}

func (s *Simulation) partitionedStep(dt float64) error {
	nDiff := s.diffSize()
	diffOld := make([]float64, nDiff)
	s.captureDiffStates(s.currentTime, diffOld)
	f0 := s.evalDerivatives(s.DynDiffMode)

	// predictor
	diff := make([]float64, nDiff)
	for k := range diff {
		diff[k] = diffOld[k] + dt*f0[k]
	}
	t1 := s.currentTime + dt
	s.setDiffStates(t1, diff)

	// corrector: re-solve the network between derivative refreshes
	for iter := 0; iter < 2; iter++ {
		if err := s.solveDynAlg(); err != nil {
			return err
		}
		f1 := s.evalDerivatives(s.DynDiffMode)
		for k := range diff {
			diff[k] = diffOld[k] + dt*((1-s.Theta)*f0[k]+s.Theta*f1[k])
		}
		s.setDiffStates(t1, diff)
	}
	if err := s.solveDynAlg(); err != nil {
		return err
	}
	s.currentTime = t1
	return nil
}

// solveDynAlg re-solves the dynamic algebraic sub-problem against the
// present differential states.
func (s *Simulation) solveDynAlg() error {
	p := s.dynAlg
	if p == nil || p.size() == 0 {
		return nil
	}
	if s.dynAlgSolver == nil {
		s.dynAlgSolver = s.tune(NewNewtonRaphson("dynalg", s.DynAlgMode,
			func(x, r []float64) error { return s.dynAlg.residual(x, r) },
			func(x []float64, kb *la.Triplet) error { return s.dynAlg.jacobian(x, kb) }))
		s.registry.Add(s.dynAlgSolver)
	}
	n := p.size()
	if len(s.dynAlgSolver.StateData()) != n {
		s.dynAlgSolver.SetMaxNonZeros(n*n + n)
		s.dynAlgSolver.Allocate(n, 0)
	}
	if !s.dynAlgSolver.IsInitialized() {
		s.dynAlgSolver.Initialize(s.currentTime)
	}
	p.capture(s.dynAlgSolver.StateData())
	if err := s.solveWithRetry(s.dynAlgSolver); err != nil {
		return err
	}
	p.apply(s.dynAlgSolver.StateData())
	return nil
}

// evalRoots evaluates every root function at the present operating point.
func (s *Simulation) evalRoots(mode kernel.Mode) []float64 {
	n := s.rootSize()
	if n == 0 {
		return nil
	}
	roots := make([]float64, n)
	sD := &kernel.StateData{Time: s.currentTime, Mode: mode, SeqID: kernel.NextSeqID()}
	s.Root.RootTest(nil, sD, roots, mode)
	return roots
}

// checkRoots compares the present root values against the previous step's
// and dispatches RootTrigger for every sign change, then applies the
// driver's breaker policy (a tripped relay opens its target link's from
// switch), then re-runs CheckNetwork and re-sizes the problem after any
// trigger. Returns the number of triggers dispatched.
func (s *Simulation) checkRoots(mode kernel.Mode) (int, error) {
	cur := s.evalRoots(mode)
	if cur == nil || len(s.prevRoots) != len(cur) {
		s.prevRoots = cur
		return 0, nil
	}
	sD := &kernel.StateData{Time: s.currentTime, Mode: mode, SeqID: kernel.NextSeqID()}
	triggers := 0
	structural := false
	for _, o := range s.rootOwners {
		for k := 0; k < o.n; k++ {
			idx := o.off + k
			if idx < 0 || idx >= len(cur) {
				continue
			}
			prev, now := s.prevRoots[idx], cur[idx]
			crossed := (prev > 0 && now <= 0) || (prev < 0 && now >= 0)
			if !crossed {
				continue
			}
			cc, err := o.model.RootTrigger(k, s.currentTime, nil, sD)
			if err != nil {
				return triggers, err
			}
			triggers++
			if cc >= kernel.JacobianChange {
				structural = true
			}
		}
	}
	if triggers > 0 {
		s.applyBreakerPolicy()
		s.RootTriggerCount += triggers
	}
	if structural || triggers > 0 {
		// a trip may have islanded part of the network; disconnect any
		// partition left without a source before rebuilding the problems
		if _, err := s.Root.CheckNetwork(); err != nil {
			return triggers, err
		}
		s.resize(s.DAEMode)
		s.resize(s.DynAlgMode)
		s.resize(s.DynDiffMode)
		// offsets may have moved; rebuild the owner lists, the algebraic
		// sub-problem, and the root baseline against the new topology
		s.collectDynamics()
		s.dynAlg = s.buildPowerflow(s.DynAlgMode, true)
		s.dynAlgSolver = nil
		s.daeStale = true
		return triggers, nil
	}
	s.prevRoots = cur
	return triggers, nil
}

// applyBreakerPolicy opens the from-side switch of every link targeted by
// a freshly tripped relay.
func (s *Simulation) applyBreakerPolicy() {
	type opener interface{ OpenFrom() }
	for _, r := range s.relays {
		if !r.Tripped() || r.TargetID == 0 {
			continue
		}
		if s.actedRelays[r.ID()] {
			continue
		}
		if l, ok := s.linkByID[r.TargetID]; ok {
			if op, ok := l.(opener); ok {
				op.OpenFrom()
			}
		}
		s.actedRelays[r.ID()] = true
	}
}

// initRecorder builds the run's time-series recorder with one V and one
// theta column per bus.
func (s *Simulation) initRecorder() {
	var cols []string
	for _, b := range s.Root.AllBuses() {
		cols = append(cols, b.Name()+".V", b.Name()+".theta")
	}
	s.recorder = newSeries(s.Name, cols)
}

// record appends the present bus states as one recorder row.
func (s *Simulation) record() {
	if s.recorder == nil {
		return
	}
	row := make([]float64, 0, 2*len(s.Root.AllBuses()))
	for _, b := range s.Root.AllBuses() {
		row = append(row, b.V, b.Theta)
	}
	s.recorder.Append(s.currentTime, row)
}
