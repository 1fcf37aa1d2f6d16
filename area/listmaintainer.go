// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package area

import (
	"sync"

	"github.com/llnl/griddyn/kernel"
)

// ListMaintainer classifies an area's full object tree into the three
// buckets assembly runs in order and caches the classification until the
// next explicit Rebuild:
//   - preEx: objects flagged FlagPreexRequested, which must run first each
//     call (e.g. a generator that needs its reference-frame variables
//     refreshed before anything downstream reads them);
//   - full: dynamically-capable objects, assembled every call;
//   - partial: everything else -- pure power-flow devices with no dynamic
//     states, whose residual is comparatively cheap to recompute.
type ListMaintainer struct {
	area *Area

	preEx   []kernel.Model
	full    []kernel.Model
	partial []kernel.Model

	built bool
}

// NewListMaintainer returns a maintainer bound to area a; call Rebuild (or
// just Residual, which rebuilds lazily) before first use.
func NewListMaintainer(a *Area) *ListMaintainer {
	return &ListMaintainer{area: a}
}

// Rebuild re-walks the area's full tree and reclassifies every object.
// The assembly calls invoke it only on first use; invalidating the area's
// offset table does not trigger a rebuild.
func (lm *ListMaintainer) Rebuild() {
	lm.preEx, lm.full, lm.partial = nil, nil, nil
	lm.classify(lm.area)
	lm.built = true
}

func (lm *ListMaintainer) classify(a *Area) {
	for _, child := range a.PrimaryObjects() {
		m, ok := child.(kernel.Model)
		if !ok {
			continue
		}
		if !child.IsEnabled() {
			continue
		}
		flagged, _ := child.(interface{ Flags() *kernel.Flags })
		switch {
		case flagged != nil && flagged.Flags().Has(kernel.FlagPreexRequested):
			lm.preEx = append(lm.preEx, m)
		case child.IsDynamicCapable():
			lm.full = append(lm.full, m)
		default:
			lm.partial = append(lm.partial, m)
		}
	}
	for _, sub := range a.areas {
		lm.classify(sub)
	}
}

// Residual runs the three-phase assembly order -- preEx, then full, then
// partial ("delayedResidual") -- building the classification first if it
// has never been built. parallel
// selects intra-phase goroutine fan-out, safe because every object in a
// phase writes to its own disjoint offset range.
func (lm *ListMaintainer) Residual(inputs []float64, sD *kernel.StateData, resid []float64, mode kernel.Mode, parallel bool) error {
	return lm.run(parallel, func(m kernel.Model) error {
		return m.Residual(inputs, sD, resid, mode)
	})
}

// Derivative runs the same three-phase order for derivative assembly.
func (lm *ListMaintainer) Derivative(inputs []float64, sD *kernel.StateData, deriv []float64, mode kernel.Mode, parallel bool) error {
	return lm.run(parallel, func(m kernel.Model) error {
		return m.Derivative(inputs, sD, deriv, mode)
	})
}

// AlgebraicUpdate runs the same three-phase order for a fixed-point
// algebraic update with blending factor alpha.
func (lm *ListMaintainer) AlgebraicUpdate(inputs []float64, sD *kernel.StateData, update []float64, mode kernel.Mode, alpha float64, parallel bool) error {
	return lm.run(parallel, func(m kernel.Model) error {
		return m.AlgebraicUpdate(inputs, sD, update, mode, alpha)
	})
}

// JacobianElements runs the same three-phase order for Jacobian assembly.
func (lm *ListMaintainer) JacobianElements(inputs []float64, sD *kernel.StateData, matrixData kernel.JacobianSink, inputLocs []int, mode kernel.Mode, parallel bool) error {
	return lm.run(parallel, func(m kernel.Model) error {
		return m.JacobianElements(inputs, sD, matrixData, inputLocs, mode)
	})
}

func (lm *ListMaintainer) run(parallel bool, call func(kernel.Model) error) error {
	if !lm.built {
		lm.Rebuild()
	}
	for _, phase := range [][]kernel.Model{lm.preEx, lm.full, lm.partial} {
		if err := runPhase(phase, parallel, call); err != nil {
			return err
		}
	}
	return nil
}

func runPhase(phase []kernel.Model, parallel bool, call func(kernel.Model) error) error {
	if !parallel || len(phase) < 2 {
		for _, m := range phase {
			if err := call(m); err != nil {
				return err
			}
		}
		return nil
	}

	var wg sync.WaitGroup
	errs := make([]error, len(phase))
	for i, m := range phase {
		wg.Add(1)
		go func(i int, m kernel.Model) {
			defer wg.Done()
			errs[i] = call(m)
		}(i, m)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
