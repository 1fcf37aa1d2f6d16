// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package driver

import (
	"github.com/cpmech/gosl/la"

	"github.com/llnl/griddyn/kernel"
)

// SolverInterface is the consumed numerical-solver abstraction:
// the driver allocates it against a sized problem, installs state/deriv/type
// buffers, and drives it forward with Solve. One registered interface per
// solver-mode offset index.
type SolverInterface interface {
	Allocate(stateSize, rootCount int) error
	SetMaxNonZeros(n int)
	Set(name string, value float64)
	Initialize(t0 float64) error
	IsInitialized() bool
	StateData() []float64
	DerivData() []float64
	TypeData() []float64
	Solve(tStop float64) (Status, error)
	Get(name string) float64
	Name() string
	Mode() kernel.Mode
	Clone(fullCopy bool) SolverInterface
	NonZeros() int
}

// Status is the outcome of one SolverInterface.Solve call.
type Status int

const (
	Converged Status = iota
	Diverged
	MaxIterations
)

// NewtonRaphson is the one reference SolverInterface the kernel ships:
// the consumed interface needs a concrete implementation to be exercised
// end to end, without pulling in a production KINSOL/IDA/CVODE-class
// library. The iteration is the classical assemble-factor-solve-update
// loop: assemble into a *la.Triplet, factorize and solve with a
// *la.LinSol obtained from la.GetSolver, apply the correction, and check
// convergence of the largest residual component (la.VecLargest) against
// its iteration-zero value.
type NewtonRaphson struct {
	name string
	mode kernel.Mode

	linSolName string
	linSol     la.LinSol
	kb         *la.Triplet
	maxNNZ     int

	state, deriv, vtype []float64

	residualFn func(state []float64, resid []float64) error
	jacobianFn func(state []float64, kb *la.Triplet) error

	nmaxIt int
	fbTol  float64
	fbMin  float64

	iterCount int
	resEvals  int

	initialized bool
}

// NewNewtonRaphson returns an uninitialized solver for the given mode, named
// for the registry.
func NewNewtonRaphson(name string, mode kernel.Mode, residualFn func([]float64, []float64) error, jacobianFn func([]float64, *la.Triplet) error) *NewtonRaphson {
	return &NewtonRaphson{
		name: name, mode: mode,
		linSolName: "umfpack",
		residualFn: residualFn, jacobianFn: jacobianFn,
		nmaxIt: 30, fbTol: 1e-6, fbMin: 1e-10,
	}
}

// Allocate sizes the solver's state/deriv/type/residual buffers and a fresh
// Jacobian triplet with the requested nonzero capacity.
func (s *NewtonRaphson) Allocate(stateSize, rootCount int) error {
	s.state = make([]float64, stateSize)
	s.deriv = make([]float64, stateSize)
	s.vtype = make([]float64, stateSize)
	s.kb = new(la.Triplet)
	if s.maxNNZ == 0 {
		s.maxNNZ = stateSize*stateSize/4 + stateSize
	}
	s.kb.Init(stateSize, stateSize, s.maxNNZ)
	return nil
}

// SetMaxNonZeros overrides the Jacobian triplet's nonzero capacity; must be
// called before Allocate to take effect.
func (s *NewtonRaphson) SetMaxNonZeros(n int) { s.maxNNZ = n }

// Set installs a named tuning knob").
func (s *NewtonRaphson) Set(name string, value float64) {
	switch name {
	case "nmaxit":
		s.nmaxIt = int(value)
	case "fbtol":
		s.fbTol = value
	case "fbmin":
		s.fbMin = value
	case "maxnonzeros":
		s.maxNNZ = int(value)
	}
}

// Initialize prepares the linear-solver backend for the first Solve call.
func (s *NewtonRaphson) Initialize(t0 float64) error {
	s.linSol = la.GetSolver(s.linSolName)
	s.initialized = true
	return nil
}

// IsInitialized reports whether Initialize has run.
func (s *NewtonRaphson) IsInitialized() bool { return s.initialized }

func (s *NewtonRaphson) StateData() []float64 { return s.state }
func (s *NewtonRaphson) DerivData() []float64 { return s.deriv }
func (s *NewtonRaphson) TypeData() []float64  { return s.vtype }

// Solve runs an undamped Newton iteration to tStop, matching fem/solver.go's
// loop: each iteration assembles the residual and the Jacobian, factorizes,
// solves for the correction and applies it in full, checking convergence
// against the largest
// residual component relative to its value at iteration zero.
func (s *NewtonRaphson) Solve(tStop float64) (Status, error) {
	n := len(s.state)
	resid := make([]float64, n)
	var largFb0 float64
	for it := 0; it < s.nmaxIt; it++ {
		s.iterCount = it
		if err := s.residualFn(s.state, resid); err != nil {
			return Diverged, err
		}
		s.resEvals++
		largFb := la.VecLargest(resid, 1)
		if it == 0 {
			largFb0 = largFb
		} else if largFb0 > 0 && largFb < s.fbTol*largFb0 {
			return Converged, nil
		}
		if largFb < s.fbMin {
			return Converged, nil
		}

		s.kb.Start()
		if err := s.jacobianFn(s.state, s.kb); err != nil {
			return Diverged, err
		}
		if err := s.linSol.InitR(s.kb, false, false, false); err != nil {
			return Diverged, err
		}
		if err := s.linSol.Fact(); err != nil {
			return Diverged, err
		}
		delta := make([]float64, n)
		negResid := make([]float64, n)
		for i, v := range resid {
			negResid[i] = -v
		}
		if err := s.linSol.SolveR(delta, negResid, false); err != nil {
			return Diverged, err
		}
		for i := range s.state {
			s.state[i] += delta[i]
		}
	}
	return MaxIterations, kernel.Newf(kernel.SolverConvergence, "%s: did not converge within %d iterations", s.name, s.nmaxIt)
}

// Get reports a named solver statistic ("iterationcount", "resevals",
// ...).
func (s *NewtonRaphson) Get(name string) float64 {
	switch name {
	case "iterationcount":
		return float64(s.iterCount)
	case "resevals":
		return float64(s.resEvals)
	}
	return 0
}

// Name returns the registry name this solver was constructed with.
func (s *NewtonRaphson) Name() string { return s.name }

// Mode returns the solver mode this interface was allocated against.
func (s *NewtonRaphson) Mode() kernel.Mode { return s.mode }

// Clone returns a fresh, unallocated solver sharing this one's residual and
// Jacobian callbacks and tuning; fullCopy additionally copies the current
// state vector, matching the "clone(fullCopy)" used by contingency
// fan-out.
func (s *NewtonRaphson) Clone(fullCopy bool) SolverInterface {
	c := NewNewtonRaphson(s.name, s.mode, s.residualFn, s.jacobianFn)
	c.nmaxIt, c.fbTol, c.fbMin = s.nmaxIt, s.fbTol, s.fbMin
	if fullCopy && s.state != nil {
		c.state = append([]float64(nil), s.state...)
	}
	return c
}

// NonZeros reports the Jacobian triplet's current nonzero count.
func (s *NewtonRaphson) NonZeros() int {
	if s.kb == nil {
		return 0
	}
	return s.kb.Len()
}

// Registry is the driver's sparse vector of solver interfaces indexed by
// mode.OffsetIndex. Slots 0-1 are reserved (local/empty).
type Registry struct {
	slots []SolverInterface
}

// NewRegistry returns a registry with slots 0 and 1 pre-reserved.
func NewRegistry() *Registry {
	return &Registry{slots: make([]SolverInterface, 2)}
}

// Add installs si at the next free index unless its mode already has one,
// returning the assigned index.
func (r *Registry) Add(si SolverInterface) int {
	m := si.Mode()
	for i, existing := range r.slots {
		if existing != nil && existing.Mode().Equal(m) {
			return i
		}
	}
	r.slots = append(r.slots, si)
	return len(r.slots) - 1
}

// Get returns the solver interface at index idx, or nil if unassigned.
func (r *Registry) Get(idx int) SolverInterface {
	if idx < 0 || idx >= len(r.slots) {
		return nil
	}
	return r.slots[idx]
}
