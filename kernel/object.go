// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"strings"

	"github.com/llnl/griddyn/units"
)

// Alerter is implemented by anything that can receive an upward-propagating
// structural alert.
type Alerter interface {
	Alert(source int, code AlertCode)
}

// Object is the uniform base embedded by every concrete model kind (Area,
// Bus, Link, Device). It carries identity, naming, a weak parent reference,
// flags, and the two timestamps every object tracks; it is a struct rather
// than an interface because the uniform base is shared *data*, not just a
// shared method set -- the method set itself is the capability contract of
// kernel.Model.
type Object struct {
	id         int
	userID     int
	name       string
	parent     Alerter // weak: never owns, only used to propagate alerts
	flags      Flags
	time       float64
	nextUpdate float64

	offsets *OffsetTable

	state      []float64
	dstateDt   []float64
}

// NewObject constructs a base with the given stable id and name. Ownership
// (attaching to a parent) happens separately via SetParent, matching the
// two-step "constructed, then attached" lifecycle
func NewObject(id int, name string) Object {
	return Object{
		id:      id,
		userID:  -1,
		name:    name,
		offsets: NewOffsetTable(),
		flags:   Flags{},
	}
}

// ID returns the object's stable integer identity.
func (o *Object) ID() int { return o.id }

// Name returns the object's human-readable name.
func (o *Object) Name() string { return o.name }

// SetName renames the object.
func (o *Object) SetName(name string) { o.name = name }

// UserID returns the user-assigned lookup id, or -1 if unset.
func (o *Object) UserID() int { return o.userID }

// SetUserID assigns a user-facing lookup id.
func (o *Object) SetUserID(id int) { o.userID = id }

// SetParent installs the weak upward reference used by Alert.
func (o *Object) SetParent(p Alerter) { o.parent = p }

// Flags exposes the mutable flag set.
func (o *Object) Flags() *Flags { return &o.flags }

// IsEnabled reports the enabled status flag.
func (o *Object) IsEnabled() bool { return o.flags.Has(FlagEnabled) }

// SetEnabled sets or clears the enabled flag and alerts the parent with an
// object-count change, since a disabled object contributes zero to every
// size while disabled.
func (o *Object) SetEnabled(v bool) {
	wasEnabled := o.IsEnabled()
	o.flags.SetTo(FlagEnabled, v)
	o.offsets.InvalidateAll()
	if wasEnabled != v {
		if v {
			o.Alert(o.id, ObjectCountIncrease)
		} else {
			o.Alert(o.id, ObjectCountDecrease)
		}
	}
}

// IsSampledOnly reports the sampled-only user-settable flag.
func (o *Object) IsSampledOnly() bool { return o.flags.Has(FlagSampledOnly) }

// SetSampledOnly implements the setter cascadeSampledOnly expects to find
// via a type assertion.
func (o *Object) SetSampledOnly(v bool) { o.flags.SetTo(FlagSampledOnly, v) }

// IsDynamicCapable reports the has-dyn-states structural flag.
func (o *Object) IsDynamicCapable() bool { return o.flags.Has(FlagHasDynStates) }

// NoPflowStates reports the complement of has-pflow-states.
func (o *Object) NoPflowStates() bool { return !o.flags.Has(FlagHasPflowStates) }

// Offsets returns this object's per-mode offset table.
func (o *Object) Offsets() *OffsetTable { return o.offsets }

// Time returns the object's current simulation time.
func (o *Object) Time() float64 { return o.time }

// SetTime advances the object's local clock.
func (o *Object) SetTime(t float64) { o.time = t }

// NextUpdate returns the next scheduled discrete-update time.
func (o *Object) NextUpdate() float64 { return o.nextUpdate }

// SetNextUpdate schedules the next discrete-update time.
func (o *Object) SetNextUpdate(t float64) { o.nextUpdate = t }

// Alert propagates an integer code upward: the flag the code
// maps to is set on this object, and, if there is a parent, Alert is
// re-dispatched to it so the change bubbles to the root. Setting a change
// flag also invalidates every mode's offset-table cache, since the
// structural footprint this alert reports may have changed any mode's
// sizing.
func (o *Object) Alert(source int, code AlertCode) {
	f := code.FlagFor()
	if f != 0 {
		o.flags.Set(f)
		o.offsets.InvalidateAll()
	}
	if o.parent != nil {
		o.parent.Alert(o.id, code)
	}
}

// UpdateFlags ORs the cascading bits of each child's flags into this
// object's own flags; the children's change bits are left set. Concrete
// composite kinds (Area,
// Bus) call this after a walk that may have queued structural changes.
func (o *Object) UpdateFlags(children []*Object) {
	for _, c := range children {
		o.flags.AbsorbCascade(c.flags.CascadeBits())
	}
}

// ClearChangeFlags clears this object's own change-alert bits once a
// rebuild has consumed them.
func (o *Object) ClearChangeFlags() { o.flags.ClearChangeFlags() }

// State returns the object's local state vector, laid out as
// [algebraic | differential]
func (o *Object) State() []float64 { return o.state }

// DState returns the object's local dstate/dt vector, same layout as State.
func (o *Object) DState() []float64 { return o.dstateDt }

// ResizeLocalState (re)allocates the local state/dstate vectors to match
// algSize+diffSize, preserving existing values up to the smaller of the two
// lengths. Called after a loadSizes pass changes Own.Alg/Own.Diff.
func (o *Object) ResizeLocalState(algSize, diffSize int) {
	n := algSize + diffSize
	if len(o.state) == n {
		return
	}
	ns := make([]float64, n)
	nd := make([]float64, n)
	copy(ns, o.state)
	copy(nd, o.dstateDt)
	o.state, o.dstateDt = ns, nd
}

// CloneBase returns a structural copy of the base Object for the
// clone(): identity and scalar fields carry over, state/dstate vectors are
// copied rather than shared, the offset table starts fresh (the clone's own
// assembly pass rebuilds it), and the parent link is left nil -- the
// concrete caller's own Clone() attaches it once the new tree is wired, and
// any weak reference the caller held into its own subtree is repaired by a
// subsequent updateObjectLinkages pass rather than by CloneBase itself.
func (o *Object) CloneBase() Object {
	c := Object{
		id:         o.id,
		userID:     o.userID,
		name:       o.name,
		flags:      o.flags,
		time:       o.time,
		nextUpdate: o.nextUpdate,
		offsets:    NewOffsetTable(),
	}
	if len(o.state) > 0 {
		c.state = append([]float64(nil), o.state...)
		c.dstateDt = append([]float64(nil), o.dstateDt...)
	}
	return c
}

// SetFlag sets or clears a flag by name. Only the user-settable flags
// (and the enabled status bit) are reachable through the string surface;
// structural and alert flags are kernel-managed, and asking for them, or
// for any unknown name, returns UnrecognizedParameter.
func (o *Object) SetFlag(name string, v bool) error {
	switch strings.ToLower(strings.ReplaceAll(name, "_", "")) {
	case "lateinit":
		o.flags.SetTo(FlagLateInit, v)
	case "sampledonly":
		o.SetSampledOnly(v)
	case "noautodisconnect":
		o.flags.SetTo(FlagNoAutoDisconnect, v)
	case "enabled":
		o.SetEnabled(v)
	default:
		return Newf(UnrecognizedParameter, "object %q has no settable flag %q", o.name, name)
	}
	return nil
}

// GetString returns a named string attribute.
func (o *Object) GetString(name string) (string, error) {
	switch strings.ToLower(name) {
	case "name":
		return o.name, nil
	}
	return "", Newf(UnrecognizedParameter, "object %q has no string attribute %q", o.name, name)
}

// GetUnit converts a value stored in the object's native unit to the
// requested unit string, using the shared unit registry.
func GetUnit(value float64, nativeUnit, wantUnit string) (float64, error) {
	return units.Convert(value, nativeUnit, wantUnit)
}
