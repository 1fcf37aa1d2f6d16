// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package device

// Exciter is the field-voltage regulation contract a Generator drives: given
// the present terminal voltage and a reference, it returns the rate of
// change of field voltage Efd. A single differential state is enough to
// exercise the dynamic-assembly contract end to end.
type Exciter interface {
	Efd() float64
	DerivativeEfd(vTerminal float64) float64
	SetEfd(v float64)
}

// SimpleAVR is a first-order automatic voltage regulator: Efd moves toward
// a gain-scaled voltage error with a single lag time constant, the minimal
// shape needed to give Generator a non-trivial exciter state.
type SimpleAVR struct {
	Gain  float64 // Ka
	Ta    float64 // lag time constant, s
	Vref  float64 // reference terminal voltage, pu

	efd float64
}

// NewSimpleAVR returns an AVR with the given gain and lag constant.
func NewSimpleAVR(gain, ta, vref float64) *SimpleAVR {
	return &SimpleAVR{Gain: gain, Ta: ta, Vref: vref}
}

// Efd returns the exciter's current field-voltage output.
func (a *SimpleAVR) Efd() float64 { return a.efd }

// SetEfd forces the exciter's internal state.
func (a *SimpleAVR) SetEfd(v float64) { a.efd = v }

// DerivativeEfd returns d(Efd)/dt given the present terminal voltage.
func (a *SimpleAVR) DerivativeEfd(vTerminal float64) float64 {
	target := a.Gain * (a.Vref - vTerminal)
	return (target - a.efd) / a.Ta
}

// ExciterWrapper forwards every capability call to an owned inner Exciter,
// renaming its single input (terminal voltage) and single output (Efd)
// the way the generator expects them addressed: a thin shim that lets a
// Generator treat any Exciter implementation uniformly, whether it is a
// native model like SimpleAVR or, in a fuller build, a co-simulation
// boundary -- this module stops at the forwarding pattern itself; no FMI
// runtime is linked.
type ExciterWrapper struct {
	Inner Exciter
}

// Efd forwards to the inner exciter.
func (w *ExciterWrapper) Efd() float64 { return w.Inner.Efd() }

// DerivativeEfd forwards to the inner exciter.
func (w *ExciterWrapper) DerivativeEfd(vTerminal float64) float64 {
	return w.Inner.DerivativeEfd(vTerminal)
}

// SetEfd forwards to the inner exciter.
func (w *ExciterWrapper) SetEfd(v float64) { w.Inner.SetEfd(v) }
