// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package device

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/llnl/griddyn/kernel"
)

// CurrentSource is the minimal contract a Relay monitors: whatever it is
// attached to (a link, typically) reports its present current magnitude in
// pu.
type CurrentSource interface {
	Current() float64
}

// Relay is a root-based protection device: it declares one algebraic root
// equal to (threshold - monitored current), and RootTrigger fires the trip
// when the solver reports a zero-crossing.
type Relay struct {
	Leaf

	Threshold float64
	Monitor   CurrentSource
	TargetID  int // object to act on when tripped (typically a link/breaker)

	tripped bool

	pendingMonitorID  int // id of the Monitor at clone time, consumed by area.UpdateObjectLinkages
	hasPendingMonitor bool
}

// NewRelay returns a relay with the given trip threshold monitoring src.
func NewRelay(id int, name string, src CurrentSource, threshold float64) *Relay {
	r := &Relay{Leaf: Leaf{Object: kernel.NewObject(id, name)}, Monitor: src, Threshold: threshold}
	r.Flags().Set(kernel.FlagEnabled)
	r.Flags().Set(kernel.FlagHasRoots)
	return r
}

// LocalSizes reports one algebraic root.
func (r *Relay) LocalSizes(mode kernel.Mode) kernel.LocalSize {
	return kernel.LocalSize{AlgRoot: 1}
}

// RootTest writes the trip root: positive while under threshold, crossing
// zero at the trip point.
func (r *Relay) RootTest(inputs []float64, sD *kernel.StateData, roots []float64, mode kernel.Mode) error {
	rec := r.Offsets().Record(mode)
	if rec.RootOffset == kernel.KNullLocation || r.Monitor == nil {
		return nil
	}
	roots[rec.RootOffset] = r.Threshold - r.Monitor.Current()
	return nil
}

// RootTrigger fires the trip: marks tripped and alerts a structural
// StateChange so the solver re-sizes after the affected object (the
// breaker this relay controls) reacts.
func (r *Relay) RootTrigger(rootIndex int, t float64, inputs []float64, sD *kernel.StateData) (kernel.ChangeCode, error) {
	if r.tripped {
		return kernel.NoChange, nil
	}
	r.tripped = true
	r.Alert(r.ID(), kernel.StateCountIncrease)
	return kernel.StateChange, nil
}

// Tripped reports whether this relay has fired.
func (r *Relay) Tripped() bool { return r.tripped }

// Clone returns a structural deep copy). Monitor is left
// nil: it is a weak reference to whatever this relay watches (typically a
// link), and its id is retained in pendingMonitorID for
// area.UpdateObjectLinkages to resolve against the new tree; TargetID is
// already a plain integer identity and needs no rewriting.
func (r *Relay) Clone() kernel.Model {
	c := &Relay{
		Leaf:      Leaf{Object: r.Object.CloneBase()},
		Threshold: r.Threshold,
		TargetID:  r.TargetID,
		tripped:   r.tripped,
	}
	if r.Monitor != nil {
		if idz, ok := r.Monitor.(interface{ ID() int }); ok {
			c.pendingMonitorID = idz.ID()
			c.hasPendingMonitor = true
		}
	}
	return c
}

// SetMonitor installs the current source this relay watches, used by
// area.UpdateObjectLinkages to repair the weak reference Clone leaves
// unresolved.
func (r *Relay) SetMonitor(src CurrentSource) { r.Monitor = src }

// PendingMonitorID returns the id of the CurrentSource this relay watched
// at clone time, if it had one and that source's type exposed an id.
func (r *Relay) PendingMonitorID() (id int, ok bool) {
	return r.pendingMonitorID, r.hasPendingMonitor
}

// EncodeAlarm formats an alarm message in the codec's historical form:
// "ALARM <code> <targetID>". Some historical encoders emitted a doubled
// space before a negative targetID (a "% d" padding quirk); this encoder
// always emits single spaces. DecodeAlarm does not collapse repeated
// whitespace when splitting, so a message carrying that quirk is reported
// as malformed rather than being silently normalized.
func EncodeAlarm(code int, targetID int) string {
	return fmt.Sprintf("ALARM %d %d", code, targetID)
}

// DecodeAlarm parses an alarm message produced by EncodeAlarm, addressing
// fields by fixed position after a single-space split. Splitting on a
// single space rather than strings.Fields is intentional: strings.Fields
// would collapse a doubled space and silently "fix" the historical
// stray-space emission. A doubled space before the targetID shifts an
// empty field into position 2 and the real value into position 3, which
// this function does not special-case: the empty field fails to parse and
// the message is rejected with InvalidParameterValue.
func DecodeAlarm(msg string) (code, targetID int, err error) {
	parts := strings.Split(msg, " ")
	if len(parts) < 3 || parts[0] != "ALARM" {
		return 0, 0, kernel.Newf(kernel.InvalidParameterValue, "malformed alarm message %q", msg)
	}
	code, err1 := strconv.Atoi(parts[1])
	targetID, err2 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil {
		return 0, 0, kernel.Newf(kernel.InvalidParameterValue, "malformed alarm message %q", msg)
	}
	return code, targetID, nil
}
