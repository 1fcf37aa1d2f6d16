// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

// KNullLocation is the reserved sentinel meaning "this object has no
// presence in this solver mode".
const KNullLocation = -1

// Approx is a bitset selecting one of the link's nine flow-approximation
// levels. Modelled as flag bits rather than a single enum
// because a mode can combine "decoupled" with "small angle" etc.
type Approx uint8

const (
	ApproxDecoupled Approx = 1 << iota
	ApproxSmallAngle
	ApproxSimplified
	ApproxFastDecoupled
	ApproxLinear
)

// Mode is an addressable solver-mode descriptor.
// Two modes with equal flag tuples compare equal via Equal.
type Mode struct {
	OffsetIndex       int
	Dynamic           bool
	Differential      bool
	Algebraic         bool
	Local             bool
	ExtendedState     bool
	DC                bool
	Approx            Approx
	PairedOffsetIndex int // -1 if this mode is not partitioned
}

// LocalMode is always defined with offset 0 so individual objects can be
// inspected without a global solve.
var LocalMode = Mode{OffsetIndex: 0, Local: true, Algebraic: true, PairedOffsetIndex: KNullLocation}

// Equal reports whether two modes have the same flag tuple, ignoring
// OffsetIndex (which is an allocation detail, not part of the mode's
// identity).
func (m Mode) Equal(o Mode) bool {
	return m.Dynamic == o.Dynamic &&
		m.Differential == o.Differential &&
		m.Algebraic == o.Algebraic &&
		m.Local == o.Local &&
		m.ExtendedState == o.ExtendedState &&
		m.DC == o.DC &&
		m.Approx == o.Approx
}

// Paired reports whether this mode has a companion offset index, i.e. it is
// one half of a partitioned alg/diff solve.
func (m Mode) Paired() bool { return m.PairedOffsetIndex != KNullLocation }

// BufferLayout identifies which of the five state/derivative buffer
// arrangements GetLocations must address for this mode.
type BufferLayout int

const (
	LayoutLocal BufferLayout = iota
	LayoutDAE
	LayoutAlgebraicOnly
	LayoutDifferentialOnly
	LayoutPaired
)

// Layout derives which buffer arrangement applies to m.
func (m Mode) Layout() BufferLayout {
	switch {
	case m.Local:
		return LayoutLocal
	case m.Paired():
		return LayoutPaired
	case m.Algebraic && !m.Differential:
		return LayoutAlgebraicOnly
	case m.Differential && !m.Algebraic:
		return LayoutDifferentialOnly
	default:
		return LayoutDAE
	}
}
