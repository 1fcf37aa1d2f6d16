// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package driver

import "github.com/cpmech/gosl/chk"

// DynCoefs holds the theta-method integration coefficients a partitioned
// or DAE dynamic step uses to combine a state's derivative at the old and
// new time points into the algebraic residual the Newton solve drives to
// zero. theta=1 is backward Euler (unconditionally stable, first order);
// theta=0.5 is the trapezoidal rule (second order, the default for
// differential sub-steps). Reduced to the single coefficient a
// first-order DAE state update actually needs -- the generator/exciter/
// governor states have no Newmark-style second-derivative term to
// carry.
type DynCoefs struct {
	theta float64

	// derived
	a0, a1 float64 // x_new = a0*(f_new) + a1*x_old_term; Calc returns these terms and does not store them here
}

// Init sets theta, validating it against the usual theta-method
// bounds.
func (d *DynCoefs) Init(theta float64) {
	if theta < 1e-5 || theta > 1.0 {
		chk.Panic("theta-method requires 1e-5 <= theta <= 1.0 (theta = %v is incorrect)", theta)
	}
	d.theta = theta
}

// Calc derives the two blend coefficients for step size dt: a residual of
// the form x_new - x_old - dt*(theta*f_new + (1-theta)*f_old) == 0 is
// evaluated as a0*f_new + a1, with a1 folding in the x_old and f_old terms
// the caller supplies.
func (d *DynCoefs) Calc(dt, xOld, fOld float64) (a0, a1 float64) {
	a0 = dt * d.theta
	a1 = xOld + dt*(1-d.theta)*fOld
	return
}

// Residual evaluates the theta-method residual for one scalar state given
// its new value/derivative and the a1 blend term Calc produced.
func (d *DynCoefs) Residual(xNew, fNew, a0, a1 float64) float64 {
	return xNew - a1 - a0*fNew
}
