// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

// Sizeable is the minimal contract the offset table needs to recurse over a
// subtree: enough for loadSizes to decide whether a child contributes to
// sizing without knowing anything about what the object actually
// computes. Area, Bus, Link, and every Device implement it by embedding
// *Object and adding LocalSizes.
type Sizeable interface {
	IsEnabled() bool
	IsSampledOnly() bool
	IsDynamicCapable() bool // has-dyn-states / has-pflow-states structural flags
	NoPflowStates() bool
	Offsets() *OffsetTable
	LocalSizes(mode Mode) LocalSize
	SubObjects() []Sizeable
}

// Model is the full device-capability contract every primary or sub-device
// object participating in assembly implements. Types that only need to be sized (e.g. a disabled
// placeholder) may implement just Sizeable; anything that contributes
// residuals/Jacobians implements Model, which embeds Sizeable.
type Model interface {
	Sizeable

	PFlowInitializeA(t0 float64, flags uint32) error
	PFlowInitializeB() error
	DynInitializeA(t0 float64, flags uint32) error
	DynInitializeB(inputs []float64, desiredOut []string) (fieldsSet []string, err error)

	Residual(inputs []float64, sD *StateData, resid []float64, mode Mode) error
	Derivative(inputs []float64, sD *StateData, deriv []float64, mode Mode) error
	JacobianElements(inputs []float64, sD *StateData, matrixData JacobianSink, inputLocs []int, mode Mode) error
	AlgebraicUpdate(inputs []float64, sD *StateData, update []float64, mode Mode, alpha float64) error

	RootTest(inputs []float64, sD *StateData, roots []float64, mode Mode) error
	RootTrigger(rootIndex int, t float64, inputs []float64, sD *StateData) (ChangeCode, error)
	RootCheck(sD *StateData, mode Mode) (bool, error)

	SetState(t float64, state, dstate []float64) error
	Guess(t float64, state, dstate []float64) error
	GetTols(mode Mode) (atol, rtol []float64)
	GetVariableType(mode Mode) []VariableType
	GetConstraints(mode Mode) []float64

	GetOutputs(inputs []float64, sD *StateData, mode Mode) []float64
	GetOutputLocs(mode Mode) []int // KNullLocation entries mean "no solver-managed state"

	PowerFlowAdjust(inputs []float64, flags uint32, level AdjustLevel) (ChangeCode, error)
	UpdateLocalCache(inputs []float64, sD *StateData, mode Mode)

	StateSize(mode Mode) int
	AlgSize(mode Mode) int
	DiffSize(mode Mode) int
	RootSize(mode Mode) int
	JacSize(mode Mode) int

	GetStateName(names *[]string, mode Mode, prefix string)
	FindIndex(field string, mode Mode) (int, bool)
}

// JacobianSink is the write surface a Jacobian-contributing object targets;
// satisfied by *gosl/la.Triplet, the sparse-triplet accumulator the rest of
// the pack's numerical code builds Jacobians into.
type JacobianSink interface {
	Put(i, j int, val float64)
}

// VariableType classifies a single state entry for the consumed solver
// interface's type_data() vector.
type VariableType int

const (
	VarAlgebraic VariableType = iota
	VarDifferential
	VarAlgebraicRoot
)

// AdjustLevel selects how much of the tree powerFlowAdjust walks.
type AdjustLevel int

const (
	AdjustLow AdjustLevel = iota
	AdjustLowVoltageCheck
	AdjustFull
)

// ChangeCode is the maximum-severity result of a powerFlowAdjust call,
// ordered so max() is a plain comparison.
type ChangeCode int

const (
	NoChange ChangeCode = iota
	ParameterChange
	JacobianChange
	StateChange
)

// Max returns the more severe of c and other.
func (c ChangeCode) Max(other ChangeCode) ChangeCode {
	if other > c {
		return other
	}
	return c
}
