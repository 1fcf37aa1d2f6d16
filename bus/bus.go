// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bus implements the electrical-node model object: a
// bus holds V, theta, f, attaches generators/loads/links, and aggregates
// nodal power balance. A standard bus publishes no solver-managed state of
// its own -- its algebraic equations are the nodal balances its incident
// links and sub-devices contribute.
package bus

import (
	"github.com/llnl/griddyn/kernel"
	"github.com/llnl/griddyn/units"
)

// Type is the power-flow bus classification.
type Type int

const (
	PQ Type = iota
	PV
	SLK
	Afix
)

func (t Type) String() string {
	switch t {
	case PQ:
		return "PQ"
	case PV:
		return "PV"
	case SLK:
		return "SLK"
	case Afix:
		return "afix"
	}
	return "?"
}

// Device is the subset of the sub-device contract a bus needs to aggregate
// power: the "getRealPower/getReactivePower with the bus outputs as
// inputs".
type Device interface {
	kernel.Model
	RealPower(v, theta, f float64) float64
	ReactivePower(v, theta, f float64) float64
}

// IncidentLink is the subset of the link contract a bus needs: whether its
// terminal at this bus is switched in, and its contributed flow.
type IncidentLink interface {
	kernel.Model
	TerminalOpen(busID int) bool
	FlowAt(busID int) (p, q float64)
}

// Bus is the electrical-node model object.
type Bus struct {
	kernel.Object

	Kind        Type
	DynType     string
	V           float64 // pu
	Theta       float64 // rad
	Freq        float64 // pu, default 1
	BaseKV      float64
	Vtol        float64
	Atol        float64
	Network     int // network-partition number assigned by followNetwork
	Disconnected bool

	Pfixed, Qfixed float64 // last target recorded by a link's FixPower; PropagatePower does not read them

	generators []Device
	loads      []Device
	links      []IncidentLink

	cache kernel.Cache

	sumPgen, sumQgen float64
	sumPload, sumQload float64
	sumPlink, sumQlink float64

	extAuxAlg [2]float64 // extended-mode auxiliary load states (P, Q)
}

// New returns a bus with default per-unit frequency and tolerances.
func New(id int, name string) *Bus {
	b := &Bus{Object: kernel.NewObject(id, name), Freq: 1, Vtol: 1e-6, Atol: 1e-6}
	b.Flags().Set(kernel.FlagEnabled)
	b.Flags().Set(kernel.FlagConnected)
	return b
}

// AddGenerator appends a generator to the bus's generator list; no position
// index is recorded on the device.
func (b *Bus) AddGenerator(g Device) {
	b.generators = append(b.generators, g)
}

// AddLoad attaches a load.
func (b *Bus) AddLoad(l Device) {
	b.loads = append(b.loads, l)
}

// AddLink attaches an incident link.
func (b *Bus) AddLink(l IncidentLink) {
	b.links = append(b.links, l)
}

// Generators returns the attached generator list.
func (b *Bus) Generators() []Device { return b.generators }

// Loads returns the attached load list.
func (b *Bus) Loads() []Device { return b.loads }

// Links returns the attached incident-link list.
func (b *Bus) Links() []IncidentLink { return b.links }

// Outputs is the 3-tuple (V, theta, f) every sub-device or link reads as
// its input vector.
func (b *Bus) Outputs() [3]float64 { return [3]float64{b.V, b.Theta, b.Freq} }

// OutputLocs is (kNull, kNull, kNull): a standard bus has no solver-managed
// state of its own.
func (b *Bus) OutputLocs() [3]int {
	return [3]int{kernel.KNullLocation, kernel.KNullLocation, kernel.KNullLocation}
}

// Get implements the unit-aware getter for the bus's known
// keys; unrecognized names return UnrecognizedParameter.
func (b *Bus) Get(name, unit string) (float64, error) {
	switch name {
	case "voltage", "v":
		return units.Convert(b.V, "pu", unit)
	case "angle":
		return units.Convert(b.Theta, "rad", unit)
	case "freq", "frequency":
		return units.Convert(b.Freq, "pu", unit)
	case "basevoltage":
		return units.Convert(b.BaseKV, "kv", unit)
	}
	return 0, kernel.Newf(kernel.UnrecognizedParameter, "bus %q has no parameter %q", b.Name(), name)
}

// Set implements the closed-match setter plus the bus's failure
// semantics: an out-of-range voltage on an initialized dynamic bus alerts
// POTENTIAL_FAULT_CHANGE so adjacent links recompute admittance, and any
// numeric setter outside its documented domain returns
// InvalidParameterValue uniformly; no silent-ignore path survives
// anywhere in the kernel.
func (b *Bus) Set(name string, value float64) error {
	switch name {
	case "voltage", "v":
		if value < 0 {
			return kernel.Newf(kernel.InvalidParameterValue, "bus %q: voltage must be >= 0 (got %v)", b.Name(), value)
		}
		b.V = value
		if value < 0.25 && b.Flags().Has(kernel.FlagInitializedForDyn) {
			b.Alert(b.ID(), kernel.PotentialFaultChange)
		}
		return nil
	case "angle":
		b.Theta = value
		return nil
	case "freq", "frequency":
		b.Freq = value
		return nil
	case "basevoltage":
		if value <= 0 {
			return kernel.Newf(kernel.InvalidParameterValue, "bus %q: basevoltage must be > 0 (got %v)", b.Name(), value)
		}
		b.BaseKV = value
		for _, g := range b.generators {
			propagateBase(g, value)
		}
		for _, l := range b.loads {
			propagateBase(l, value)
		}
		return nil
	case "vtol":
		if value <= 0 {
			return kernel.Newf(kernel.InvalidParameterValue, "bus %q: vtol must be > 0 (got %v)", b.Name(), value)
		}
		b.Vtol = value
		return nil
	case "atol":
		if value <= 0 {
			return kernel.Newf(kernel.InvalidParameterValue, "bus %q: atol must be > 0 (got %v)", b.Name(), value)
		}
		b.Atol = value
		return nil
	}
	return kernel.Newf(kernel.UnrecognizedParameter, "bus %q has no parameter %q", b.Name(), name)
}

// baseSettable is satisfied by devices that propagate the bus's base
// voltage/power into their own per-unit conversion; not every device needs
// it, so it is an optional interface rather than part of bus.Device.
type baseSettable interface {
	SetBaseVoltage(kv float64)
}

func propagateBase(d Device, kv float64) {
	if s, ok := d.(baseSettable); ok {
		s.SetBaseVoltage(kv)
	}
}

// capacitySource is the optional interface a generator exposes to report
// its upward capacity.
// Devices that do not implement it (loads) contribute nothing.
type capacitySource interface {
	Capacity() float64
}

// GenCapacity sums the reported capacity of every attached generator,
// the input an area's checkNetwork uses to pick which PV bus to promote to
// slack when a network partition has none.
func (b *Bus) GenCapacity() float64 {
	var total float64
	for _, g := range b.generators {
		if cs, ok := g.(capacitySource); ok {
			total += cs.Capacity()
		}
	}
	return total
}

// IsConnected reports electrical connectivity: a bus is connected iff
// neither terminal switch of any incident link is open and the bus's own
// disconnected flag is clear.
func (b *Bus) IsConnected() bool {
	if b.Disconnected {
		return false
	}
	for _, l := range b.links {
		if l.TerminalOpen(b.ID()) {
			return false
		}
		// the far terminal counts too, where the link exposes its end buses
		if ends, ok := l.(interface{ FromBus() *Bus; ToBus() *Bus }); ok {
			for _, t := range []*Bus{ends.FromBus(), ends.ToBus()} {
				if t != nil && l.TerminalOpen(t.ID()) {
					return false
				}
			}
		}
	}
	return true
}

// modelCloner is satisfied by any sub-device capable of producing a
// structural deep copy of itself.
type modelCloner interface {
	Clone() kernel.Model
}

// Clone returns a structural deep copy of the bus and its owned
// generators and loads. The incident-link list is left empty: a bus only
// holds weak references to its links, and those are rebuilt by
// area.UpdateObjectLinkages once the whole tree has been cloned.
// Sub-devices that do not implement Clone are silently skipped; every
// concrete device this kernel ships implements Clone, so the skip path
// only protects against future additions.
func (b *Bus) Clone() kernel.Model {
	c := &Bus{
		Object:       b.Object.CloneBase(),
		Kind:         b.Kind,
		DynType:      b.DynType,
		V:            b.V,
		Theta:        b.Theta,
		Freq:         b.Freq,
		BaseKV:       b.BaseKV,
		Vtol:         b.Vtol,
		Atol:         b.Atol,
		Network:      b.Network,
		Disconnected: b.Disconnected,
		Pfixed:       b.Pfixed,
		Qfixed:       b.Qfixed,
		extAuxAlg:    b.extAuxAlg,
	}
	for _, g := range b.generators {
		if mc, ok := g.(modelCloner); ok {
			if nd, ok := mc.Clone().(Device); ok {
				c.generators = append(c.generators, nd)
			}
		}
	}
	for _, l := range b.loads {
		if mc, ok := l.(modelCloner); ok {
			if nd, ok := mc.Clone().(Device); ok {
				c.loads = append(c.loads, nd)
			}
		}
	}
	return c
}

// Disconnect sets the disconnected flag, invalidates cached output
// locations, zeroes V and theta, and emits JAC_COUNT_DECREASE.
func (b *Bus) Disconnect() {
	b.Disconnected = true
	b.cache.Invalidate()
	b.V = 0
	b.Theta = 0
	b.Alert(b.ID(), kernel.JacCountDecrease)
}

// Reconnect clears the disconnected flag. If ref is non-nil its V/theta are
// copied; otherwise the
// caller is expected to have already applied reset(low_voltage_dyn)
// semantics before calling Reconnect. Emits JAC_COUNT_INCREASE.
func (b *Bus) Reconnect(ref *Bus) {
	b.Disconnected = false
	if ref != nil {
		b.V = ref.V
		b.Theta = ref.Theta
	}
	b.cache.Invalidate()
	b.Alert(b.ID(), kernel.JacCountIncrease)
}
