// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package driver

import (
	"math"

	"github.com/cpmech/gosl/io"
	"github.com/cpmech/gosl/la"
	"github.com/cpmech/gosl/num"

	"github.com/llnl/griddyn/area"
	"github.com/llnl/griddyn/bus"
	"github.com/llnl/griddyn/kernel"
)

type pfVarKind int

const (
	varTheta pfVarKind = iota
	varV
)

type pfVar struct {
	b    *bus.Bus
	kind pfVarKind
}

type pfEq struct {
	b        *bus.Bus
	reactive bool
}

// pfExtra is a non-bus primary carrying its own algebraic states in this
// mode (a continuous-control transformer's tap); its states ride after
// the bus unknowns and its equations after the bus balances.
type pfExtra struct {
	m   kernel.Model
	off int
	n   int
}

// powerFlowProblem maps the connected buses' free quantities into a flat
// unknown vector and their nodal-balance mismatches into the residual the
// Newton solver drives to zero. In the steady-state problem the bus type
// decides the split (PQ frees theta and V, PV frees theta, afix frees V,
// SLK frees nothing); in a dynamic algebraic sub-problem every connected
// bus frees both, since machine dynamics pin the absolute angle instead of
// a slack bus.
type powerFlowProblem struct {
	sim   *Simulation
	mode  kernel.Mode
	vars  []pfVar
	eqs   []pfEq
	buses []*bus.Bus

	extras    []pfExtra
	nStateAlg int
}

func (s *Simulation) buildPowerflow(mode kernel.Mode, dynamic bool) *powerFlowProblem {
	p := &powerFlowProblem{sim: s, mode: mode}
	for _, b := range s.Root.AllBuses() {
		if !b.IsEnabled() || b.Disconnected {
			continue
		}
		p.buses = append(p.buses, b)
		if dynamic {
			p.vars = append(p.vars, pfVar{b, varTheta}, pfVar{b, varV})
			p.eqs = append(p.eqs, pfEq{b, false}, pfEq{b, true})
			continue
		}
		if mode.DC {
			// angles against real power only; voltages are parameters of a
			// DC screening solve
			switch b.Kind {
			case bus.PQ, bus.PV:
				p.vars = append(p.vars, pfVar{b, varTheta})
				p.eqs = append(p.eqs, pfEq{b, false})
			}
			continue
		}
		switch b.Kind {
		case bus.PQ:
			p.vars = append(p.vars, pfVar{b, varTheta}, pfVar{b, varV})
			p.eqs = append(p.eqs, pfEq{b, false}, pfEq{b, true})
		case bus.PV:
			p.vars = append(p.vars, pfVar{b, varTheta})
			p.eqs = append(p.eqs, pfEq{b, false})
		case bus.Afix:
			p.vars = append(p.vars, pfVar{b, varV})
			p.eqs = append(p.eqs, pfEq{b, true})
		case bus.SLK:
			// both quantities held
		}
	}
	if !dynamic && !mode.DC {
		p.extras = s.statefulPrimaries(mode)
		for _, e := range p.extras {
			p.nStateAlg += e.n
		}
	}
	return p
}

// statefulPrimaries collects the non-bus primaries holding algebraic
// states in this mode, anywhere in the tree.
func (s *Simulation) statefulPrimaries(mode kernel.Mode) []pfExtra {
	var out []pfExtra
	var walk func(a *area.Area)
	walk = func(a *area.Area) {
		for _, l := range a.Links() {
			rec := l.Offsets().Record(mode)
			if rec.Own.Alg > 0 {
				out = append(out, pfExtra{m: l, off: rec.AlgOffset, n: rec.Own.Alg})
			}
		}
		for _, r := range a.RelaysList() {
			rec := r.Offsets().Record(mode)
			if rec.Own.Alg > 0 {
				out = append(out, pfExtra{m: r, off: rec.AlgOffset, n: rec.Own.Alg})
			}
		}
		for _, sub := range a.Areas() {
			walk(sub)
		}
	}
	walk(s.Root)
	return out
}

func (p *powerFlowProblem) size() int { return len(p.vars) + p.nStateAlg }

// apply writes the unknown vector back onto the buses and the stateful
// primaries.
func (p *powerFlowProblem) apply(x []float64) {
	for i, v := range p.vars {
		if v.kind == varTheta {
			v.b.Theta = x[i]
		} else {
			v.b.V = x[i]
		}
	}
	for _, e := range p.extras {
		lo := len(p.vars) + e.off
		e.m.SetState(p.sim.currentTime, x[lo:lo+e.n], nil)
	}
}

// capture fills the unknown vector from the present operating point, the
// initial guess of each solve.
func (p *powerFlowProblem) capture(x []float64) {
	for i, v := range p.vars {
		if v.kind == varTheta {
			x[i] = v.b.Theta
		} else {
			x[i] = v.b.V
		}
	}
	for _, e := range p.extras {
		lo := len(p.vars) + e.off
		e.m.Guess(p.sim.currentTime, x[lo:lo+e.n], nil)
	}
}

// residual evaluates the nodal mismatches at x under a fresh sequence ID,
// so every bus re-aggregates its generator/load/link sums exactly once.
func (p *powerFlowProblem) residual(x, resid []float64) error {
	p.apply(x)
	sD := &kernel.StateData{Time: p.sim.currentTime, Mode: p.mode, SeqID: kernel.NextSeqID()}
	for _, b := range p.buses {
		b.UpdateLocalCache(nil, sD, p.mode)
	}
	for i, eq := range p.eqs {
		dp, dq := eq.b.PowerBalance()
		if eq.reactive {
			resid[i] = dq
		} else {
			resid[i] = dp
		}
	}
	if p.nStateAlg > 0 {
		stateResid := make([]float64, p.nStateAlg)
		for _, e := range p.extras {
			if err := e.m.Residual(nil, sD, stateResid, p.mode); err != nil {
				return err
			}
		}
		copy(resid[len(p.eqs):], stateResid)
	}
	return nil
}

// jacobian assembles the residual's Jacobian. With only bus unknowns in
// play every entry is analytic, drawn from the objects' own derivative
// tables through the JacobianElements contract; a problem carrying extra
// algebraic states (a continuous transformer tap) falls back to the
// numerical rule.
func (p *powerFlowProblem) jacobian(x []float64, kb *la.Triplet) error {
	if p.nStateAlg > 0 {
		return p.jacobianNumerical(x, kb)
	}
	return p.jacobianAnalytic(x, kb)
}

// busJacLoc is one bus's assigned Jacobian locations: its nodal-balance
// rows and its unknown columns, KNullLocation for a held quantity.
type busJacLoc struct {
	rowP, rowQ, colTh, colV int
}

func nullBusJacLoc() busJacLoc {
	return busJacLoc{kernel.KNullLocation, kernel.KNullLocation, kernel.KNullLocation, kernel.KNullLocation}
}

// jacobianAnalytic walks the tree once: every bus forwards its assigned
// [rowP, rowQ, colTheta, colV] locations to its attached devices, and
// every closed link writes the partials of its two terminal flows from
// its own derivative table. The triplet sums duplicate entries, so each
// contributor adds independently.
func (p *powerFlowProblem) jacobianAnalytic(x []float64, kb *la.Triplet) error {
	p.apply(x)
	sD := &kernel.StateData{Time: p.sim.currentTime, Mode: p.mode, SeqID: kernel.NextSeqID()}
	for _, b := range p.buses {
		b.UpdateLocalCache(nil, sD, p.mode)
	}

	locs := make(map[*bus.Bus]busJacLoc, len(p.buses))
	for _, b := range p.buses {
		locs[b] = nullBusJacLoc()
	}
	for i, v := range p.vars {
		bl := locs[v.b]
		if v.kind == varTheta {
			bl.colTh = i
		} else {
			bl.colV = i
		}
		locs[v.b] = bl
	}
	for i, eq := range p.eqs {
		bl := locs[eq.b]
		if eq.reactive {
			bl.rowQ = i
		} else {
			bl.rowP = i
		}
		locs[eq.b] = bl
	}

	for _, b := range p.buses {
		bl := locs[b]
		if err := b.JacobianElements(nil, sD, kb, []int{bl.rowP, bl.rowQ, bl.colTh, bl.colV}, p.mode); err != nil {
			return err
		}
	}

	for _, l := range p.sim.Root.AllLinks() {
		if !l.IsEnabled() {
			continue
		}
		from, to := l.FromBus(), l.ToBus()
		if from == nil || to == nil {
			continue
		}
		blF, okF := locs[from]
		blT, okT := locs[to]
		if !okF {
			blF = nullBusJacLoc()
		}
		if !okT {
			blT = nullBusJacLoc()
		}
		if !okF && !okT {
			continue
		}
		locs8 := []int{blF.colTh, blF.colV, blT.colTh, blT.colV, blF.rowP, blF.rowQ, blT.rowP, blT.rowQ}
		if err := l.JacobianElements(nil, sD, kb, locs8, p.mode); err != nil {
			return err
		}
	}
	return nil
}

// jacobianNumerical assembles the Jacobian cell by cell with
// num.DerivFwd, the fallback for problems whose extra algebraic states
// the analytic tables do not cover.
func (p *powerFlowProblem) jacobianNumerical(x []float64, kb *la.Triplet) error {
	n := p.size()
	resid := make([]float64, n)
	var tmp float64
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			dnum := num.DerivFwd(func(xj float64, args ...interface{}) (res float64) {
				tmp, x[j] = x[j], xj
				p.residual(x, resid)
				x[j] = tmp
				return resid[i]
			}, x[j])
			if dnum != 0 {
				kb.Put(i, j, dnum)
			}
		}
	}
	p.apply(x)
	return nil
}

// solvePowerflow is the driver's steady-state solve: condition the
// topology, re-size the offsets, solve the nodal balance, run the
// adjustment loop until it reports no further change, and close the
// remaining slack/PV dispatch.
func (s *Simulation) solvePowerflow() error {
	if _, err := s.Root.CheckNetwork(); err != nil {
		return err
	}
	s.resize(s.PFlowMode)
	p := s.buildPowerflow(s.PFlowMode, false)
	s.pf = p
	if p.size() == 0 {
		return nil
	}
	si := s.powerflowSolver(p.size())
	x := si.StateData()
	p.capture(x)
	if err := s.solveWithRetry(si); err != nil {
		return err
	}
	p.apply(si.StateData())

	for pass := 0; pass < maxAdjustPasses; pass++ {
		cc, err := s.Root.PowerFlowAdjust(nil, 0, kernel.AdjustFull)
		if err != nil {
			return err
		}
		if cc == kernel.NoChange {
			break
		}
		p.capture(si.StateData())
		if err := s.solveWithRetry(si); err != nil {
			return err
		}
		p.apply(si.StateData())
	}

	// continuous controllers: release any at-limit clamp whose root has
	// cleared and re-solve until quiescent
	for pass := 0; pass < 5; pass++ {
		sD := &kernel.StateData{Time: s.currentTime, Mode: s.PFlowMode, SeqID: kernel.NextSeqID()}
		triggered := false
		for _, e := range p.extras {
			pending, err := e.m.RootCheck(sD, s.PFlowMode)
			if err != nil {
				return err
			}
			if !pending {
				continue
			}
			if _, err := e.m.RootTrigger(0, s.currentTime, nil, sD); err != nil {
				return err
			}
			triggered = true
		}
		if !triggered {
			break
		}
		p.capture(si.StateData())
		if err := s.solveWithRetry(si); err != nil {
			return err
		}
		p.apply(si.StateData())
	}

	s.finalizeDispatch(p)
	return nil
}

// maxAdjustPasses bounds the adjust-and-resolve loop; each adjusting
// object carries its own oscillation guard, so the bound only protects
// against many objects adjusting in alternation.
const maxAdjustPasses = 25

// powerflowSolver returns the (lazily created, re-allocated on resize)
// Newton interface bound to whatever s.pf currently points at.
func (s *Simulation) powerflowSolver(n int) *NewtonRaphson {
	if s.pfSolver == nil {
		s.pfSolver = s.tune(NewNewtonRaphson("powerflow", s.PFlowMode,
			func(x, r []float64) error { return s.pf.residual(x, r) },
			func(x []float64, kb *la.Triplet) error { return s.pf.jacobian(x, kb) }))
		s.registry.Add(s.pfSolver)
	}
	if len(s.pfSolver.StateData()) != n {
		s.pfSolver.SetMaxNonZeros(n*n + n)
		s.pfSolver.Allocate(n, 0)
		td := s.pfSolver.TypeData()
		for i := range td {
			td[i] = float64(kernel.VarAlgebraic)
		}
	}
	if !s.pfSolver.IsInitialized() {
		s.pfSolver.Initialize(s.currentTime)
	}
	return s.pfSolver
}

// solveWithRetry runs one solve and, on a convergence failure, retries
// once with the tolerance relaxed by ToleranceRelaxation before surfacing
// the error.
func (s *Simulation) solveWithRetry(si *NewtonRaphson) error {
	status, err := si.Solve(s.currentTime)
	if err == nil && status == Converged {
		return nil
	}
	fbTol, fbMin := s.baseTols()
	io.Pfyel("powerflow: retrying with tolerances relaxed by %g\n", s.ToleranceRelaxation)
	si.Set("fbtol", fbTol*s.ToleranceRelaxation)
	si.Set("fbmin", fbMin*s.ToleranceRelaxation)
	status, err = si.Solve(s.currentTime)
	si.Set("fbtol", fbTol)
	si.Set("fbmin", fbMin)
	if err != nil {
		return err
	}
	if status != Converged {
		return kernel.Newf(kernel.SolverConvergence, "powerflow did not converge")
	}
	return nil
}

const (
	defaultFbTol = 1e-6
	defaultFbMin = 1e-10
)

// baseTols returns the configured (or default) convergence tolerances.
func (s *Simulation) baseTols() (fbTol, fbMin float64) {
	fbTol, fbMin = defaultFbTol, defaultFbMin
	if s.solverCfg != nil {
		if s.solverCfg.Rtol > 0 {
			fbTol = s.solverCfg.Rtol
		}
		if s.solverCfg.Atol > 0 {
			fbMin = s.solverCfg.Atol
		}
	}
	return
}

// tune applies the configured solver knobs to a freshly built interface.
func (s *Simulation) tune(si *NewtonRaphson) *NewtonRaphson {
	if s.solverCfg == nil {
		return si
	}
	if s.solverCfg.NmaxIt > 0 {
		si.Set("nmaxit", float64(s.solverCfg.NmaxIt))
	}
	fbTol, fbMin := s.baseTols()
	si.Set("fbtol", fbTol)
	si.Set("fbmin", fbMin)
	return si
}

// finalizeDispatch closes the dispatch the solved unknowns left free: the
// slack bus's generator absorbs the partition's P and Q imbalance, PV
// generators absorb their bus's Q imbalance, and afix generators their P.
func (s *Simulation) finalizeDispatch(p *powerFlowProblem) {
	sD := &kernel.StateData{Time: s.currentTime, Mode: p.mode, SeqID: kernel.NextSeqID()}
	for _, b := range p.buses {
		b.UpdateLocalCache(nil, sD, p.mode)
		dp, dq := b.PowerBalance()
		gens := b.Generators()
		if len(gens) == 0 {
			continue
		}
		g, ok := gens[0].(interface {
			Set(name string, value float64) error
			Get(name, unit string) (float64, error)
		})
		if !ok {
			continue
		}
		adjustGen := func(name string, delta float64) {
			if math.Abs(delta) < 1e-15 {
				return
			}
			cur, err := g.Get(name, "pu")
			if err != nil {
				return
			}
			g.Set(name, cur-delta)
		}
		switch b.Kind {
		case bus.SLK:
			adjustGen("p", dp)
			adjustGen("q", dq)
		case bus.PV:
			adjustGen("q", dq)
		case bus.Afix:
			adjustGen("p", dp)
		}
	}
}

// VerifyBalance checks the nodal balance at every connected bus after a
// converged power flow, returning the largest |P| and |Q| mismatch found.
func (s *Simulation) VerifyBalance() (maxDp, maxDq float64) {
	sD := &kernel.StateData{Time: s.currentTime, Mode: s.PFlowMode, SeqID: kernel.NextSeqID()}
	for _, b := range s.Root.AllBuses() {
		if !b.IsEnabled() || b.Disconnected {
			continue
		}
		b.UpdateLocalCache(nil, sD, s.PFlowMode)
		dp, dq := b.PowerBalance()
		if math.Abs(dp) > maxDp {
			maxDp = math.Abs(dp)
		}
		if math.Abs(dq) > maxDq {
			maxDq = math.Abs(dq)
		}
	}
	return
}
