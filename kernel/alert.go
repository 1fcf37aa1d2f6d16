// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

// AlertCode is the integer code passed to Object.Alert; it propagates
// upward through the object tree, turning into a change flag at each
// ancestor.
type AlertCode int

// Alert codes recognised by the kernel. Names mirror the flags they set.
const (
	StateCountIncrease AlertCode = iota
	StateCountDecrease
	RootCountIncrease
	RootCountDecrease
	JacCountIncrease
	JacCountDecrease
	ObjectCountIncrease
	ObjectCountDecrease
	ConstraintChange
	ConnectivityChange
	VoltageControlChange
	PotentialFaultChange
)

// FlagFor maps an alert code to the change flag it sets on the receiving
// object. PotentialFaultChange maps to ConnectivityChange: a voltage
// collapse on a bus is, from the offset table's point of view, the same
// kind of structural change a switched line produces -- adjacent
// admittances must be recomputed either way.
func (c AlertCode) FlagFor() Flag {
	switch c {
	case StateCountIncrease, StateCountDecrease:
		return FlagStateCountChange
	case RootCountIncrease, RootCountDecrease:
		return FlagRootCountChange
	case JacCountIncrease, JacCountDecrease:
		return FlagJacobianCountChange
	case ObjectCountIncrease, ObjectCountDecrease:
		return FlagObjectCountChange
	case ConstraintChange:
		return FlagConstraintChange
	case ConnectivityChange, PotentialFaultChange:
		return FlagConnectivityChange
	case VoltageControlChange:
		return FlagVoltageControlChange
	}
	return 0
}
