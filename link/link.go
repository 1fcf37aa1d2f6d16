// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package link

import (
	"math"

	"github.com/llnl/griddyn/bus"
	"github.com/llnl/griddyn/kernel"
)

// Link is a two-terminal AC branch: a pi-section admittance between two
// buses, with independent from/to switches, an internal fault tap point,
// and a selectable flow-approximation Level. A standard line
// contributes no solver-managed states of its own -- its flows are pure
// functions of the two terminal buses' (V, theta).
type Link struct {
	kernel.Object

	From, To *bus.Bus

	R, X, B    float64 // pu series resistance/reactance, total shunt charging
	Tap        float64 // turns ratio applied to the From side; 1 for a plain line
	PhaseShift float64 // rad
	Level      Level
	RatingMVA  float64

	fromOpen, toOpen bool

	faulted      bool
	faultR, faultX float64 // fault-branch impedance spliced in at the fault point

	approxOverride kernel.Approx // OR'd into Level's bits while a solver mode pins an approximation

	cache          kernel.Cache
	p1, q1, p2, q2 float64
	deriv          linkDeriv // partial-derivative table, refreshed alongside the flows

	pendingFromID, pendingToID int // bus ids to resolve, set by Clone, consumed by area.UpdateObjectLinkages
}

// New returns a line with unity tap and the Full approximation level.
func New(id int, name string, from, to *bus.Bus) *Link {
	l := &Link{Object: kernel.NewObject(id, name), From: from, To: to, Tap: 1}
	l.Flags().Set(kernel.FlagEnabled)
	from.AddLink(l)
	to.AddLink(l)
	return l
}

// FromBus returns the line's from-end terminal bus.
func (l *Link) FromBus() *bus.Bus { return l.From }

// ToBus returns the line's to-end terminal bus.
func (l *Link) ToBus() *bus.Bus { return l.To }

// TerminalOpen reports whether the terminal at busID is switched out.
func (l *Link) TerminalOpen(busID int) bool {
	switch busID {
	case l.From.ID():
		return l.fromOpen
	case l.To.ID():
		return l.toOpen
	}
	return true
}

// OpenFrom/OpenTo/CloseFrom/CloseTo operate the two terminal switches,
// alerting ConnectivityChange so offset tables depending on network shape
// (the followNetwork partition) invalidate.
func (l *Link) OpenFrom()  { l.setSwitch(&l.fromOpen, true) }
func (l *Link) OpenTo()    { l.setSwitch(&l.toOpen, true) }
func (l *Link) CloseFrom() { l.setSwitch(&l.fromOpen, false) }
func (l *Link) CloseTo()   { l.setSwitch(&l.toOpen, false) }

func (l *Link) setSwitch(sw *bool, open bool) {
	if *sw == open {
		return
	}
	*sw = open
	l.cache.Invalidate()
	l.Alert(l.ID(), kernel.ConnectivityChange)
}

// IsOpen reports whether the line is open at both ends (fully disconnected).
func (l *Link) IsOpen() bool { return l.fromOpen && l.toOpen }

// SetFault marks the branch faulted with fault impedance (r, x): flows are
// then recomputed with twice (r, x) added in series to the branch
// impedance. The branch is not split at a fault location and no shunt is
// modelled at the fault point.
func (l *Link) SetFault(r, x float64) {
	l.faulted = true
	l.faultR, l.faultX = r, x
	l.cache.Invalidate()
	l.Alert(l.ID(), kernel.JacCountIncrease)
}

// ClearFault removes a previously spliced fault.
func (l *Link) ClearFault() {
	if !l.faulted {
		return
	}
	l.faulted = false
	l.cache.Invalidate()
	l.Alert(l.ID(), kernel.JacCountDecrease)
}

// recompute fills p1,q1,p2,q2 from the current terminal states, honouring
// open switches (an open terminal contributes zero flow at that end) and a
// spliced fault (approximated here as twice the fault impedance added to
// the series impedance, with no shunt at the fault point -- an
// engineering approximation adequate for exercising the fault-branch
// contract, not a substitute for a real short-circuit study).
func (l *Link) recompute() {
	if l.fromOpen || l.toOpen {
		l.p1, l.q1, l.p2, l.q2 = 0, 0, 0, 0
		l.deriv = linkDeriv{}
		return
	}
	r, x := l.R, l.X
	if l.faulted {
		r, x = r+l.faultR*2, x+l.faultX*2
	}
	th2 := l.To.Theta + l.PhaseShift
	a := l.Level.Approx() | l.approxOverride
	l.p1, l.q1, l.p2, l.q2 = flows(l.From.V, l.From.Theta, l.To.V, th2, l.Tap, r, x, l.B, a)
	l.deriv = derivs(l.From.V, l.From.Theta, l.To.V, th2, l.Tap, r, x, l.B, a)
}

// Derivatives returns the partial-derivative table matched to the present
// flows: the sensitivity of each terminal injection to the four terminal
// quantities, re-derived alongside the flow cache. An open line couples
// nothing and returns the zero table.
func (l *Link) Derivatives() linkDeriv {
	l.recompute()
	return l.deriv
}

// SetApproxOverride ORs extra approximation bits into the line's own Level
// for the duration of a solve that pins an approximation (a decoupled
// dynamic sub-step, a DC screening pass). ClearApproxOverride restores the
// line's configured Level.
func (l *Link) SetApproxOverride(a kernel.Approx) {
	if l.approxOverride == a {
		return
	}
	l.approxOverride = a
	l.cache.Invalidate()
}

// ClearApproxOverride removes a previously pinned approximation.
func (l *Link) ClearApproxOverride() { l.SetApproxOverride(0) }

// FlowAt returns the (P,Q) this link contributes at the terminal named by
// busID.
func (l *Link) FlowAt(busID int) (p, q float64) {
	l.recompute()
	switch busID {
	case l.From.ID():
		return l.p1, l.q1
	case l.To.ID():
		return l.p2, l.q2
	}
	return 0, 0
}

// Current approximates the branch's per-unit current magnitude from its
// from-end flow and voltage, for a Relay's CurrentSource contract.
func (l *Link) Current() float64 {
	l.recompute()
	if l.From.V == 0 {
		return 0
	}
	return math.Hypot(l.p1, l.q1) / l.From.V
}

// AngleDiff returns the present angle difference across the branch (used
// by the driver's angle-bounds violation check).
func (l *Link) AngleDiff() float64 { return l.From.Theta - l.To.Theta - l.PhaseShift }

// Clone returns a structural deep copy of the line).
// From/To are left nil: they are weak references into the owning area's
// bus list. The original terminals' ids are retained in pendingFromID/
// pendingToID so a subsequent area.UpdateObjectLinkages pass can resolve
// them against the new tree in a single index-rewrite pass over the
// cloned arena.
func (l *Link) Clone() kernel.Model {
	c := &Link{
		Object:     l.Object.CloneBase(),
		R:          l.R,
		X:          l.X,
		B:          l.B,
		Tap:        l.Tap,
		PhaseShift: l.PhaseShift,
		Level:      l.Level,
		RatingMVA:  l.RatingMVA,
		fromOpen:   l.fromOpen,
		toOpen:     l.toOpen,
		faulted:    l.faulted,
		faultR:     l.faultR,
		faultX:     l.faultX,
	}
	if l.From != nil {
		c.pendingFromID = l.From.ID()
	}
	if l.To != nil {
		c.pendingToID = l.To.ID()
	}
	return c
}

// SetTerminals installs the resolved From/To bus pointers, used by
// area.UpdateObjectLinkages to repair the weak references Clone leaves
// unresolved.
func (l *Link) SetTerminals(from, to *bus.Bus) {
	l.From, l.To = from, to
	l.cache.Invalidate()
}

// PendingTerminalIDs returns the bus ids this link's terminals pointed to
// at clone time.
func (l *Link) PendingTerminalIDs() (fromID, toID int) {
	return l.pendingFromID, l.pendingToID
}

// Get implements the closed-match unit-free getter.
func (l *Link) Get(name, unit string) (float64, error) {
	switch name {
	case "r":
		return l.R, nil
	case "x":
		return l.X, nil
	case "b":
		return l.B, nil
	case "tap":
		return l.Tap, nil
	case "rating":
		return kernel.GetUnit(l.RatingMVA, "mva", unit)
	}
	return 0, kernel.Newf(kernel.UnrecognizedParameter, "link %q has no parameter %q", l.Name(), name)
}

// Set implements the closed-match setter; R/X/Tap/B all require their
// documented domains, returning InvalidParameterValue otherwise (the same
// no-silent-ignore policy as bus.Set).
func (l *Link) Set(name string, value float64) error {
	switch name {
	case "r":
		if value < 0 {
			return kernel.Newf(kernel.InvalidParameterValue, "link %q: r must be >= 0 (got %v)", l.Name(), value)
		}
		l.R = value
	case "x":
		if value == 0 {
			return kernel.Newf(kernel.InvalidParameterValue, "link %q: x must be nonzero", l.Name())
		}
		l.X = value
	case "b":
		l.B = value
	case "tap":
		if value <= 0 {
			return kernel.Newf(kernel.InvalidParameterValue, "link %q: tap must be > 0 (got %v)", l.Name(), value)
		}
		l.Tap = value
	case "rating":
		if value <= 0 {
			return kernel.Newf(kernel.InvalidParameterValue, "link %q: rating must be > 0 (got %v)", l.Name(), value)
		}
		l.RatingMVA = value
	default:
		return kernel.Newf(kernel.UnrecognizedParameter, "link %q has no parameter %q", l.Name(), name)
	}
	l.cache.Invalidate()
	return nil
}
