// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package units implements the small named-unit registry the kernel's
// Object.Get(name, unit) needs: a unit name maps to a quantity class and
// a factor relative to that class's base (SI-ish) unit.
package units

import (
	"math"
	"strings"

	"github.com/cpmech/gosl/chk"
)

// class identifies a family of mutually convertible units.
type class int

const (
	classPower class = iota
	classVoltage
	classCurrent
	classImpedance
	classFrequency
	classAngle
	classTime
	classDistance
	classNone
)

type entry struct {
	class  class
	factor float64 // multiply a value in this unit by factor to get the class base unit
}

// base units per class: power->MW, voltage->kV, current->A, impedance->Ohm,
// frequency->Hz, angle->rad, time->s, distance->m. "pu", "" and "default"
// are one class-less entry each: pu<->physical conversion needs a system
// base the caller supplies (ConvertPU), so a bare Convert to or from any
// of them applies no scaling.
var table = map[string]entry{
	"mw":   {classPower, 1},
	"mws":  {classPower, 1},
	"kw":   {classPower, 1e-3},
	"w":    {classPower, 1e-6},
	"watt": {classPower, 1e-6},
	"mvar": {classPower, 1},
	"mva":  {classPower, 1},

	"v":    {classVoltage, 1e-3},
	"volt": {classVoltage, 1e-3},
	"kv":   {classVoltage, 1},

	"a":    {classCurrent, 1},
	"amp":  {classCurrent, 1},
	"amps": {classCurrent, 1},

	"ohm":  {classImpedance, 1},
	"ohms": {classImpedance, 1},

	"hz":    {classFrequency, 1},
	"1/s":   {classFrequency, 1},
	"rad/s": {classFrequency, 1 / (2 * math.Pi)},

	"rad":     {classAngle, 1},
	"deg":     {classAngle, math.Pi / 180},
	"degrees": {classAngle, math.Pi / 180},

	"sec":  {classTime, 1},
	"s":    {classTime, 1},
	"min":  {classTime, 60},
	"hour": {classTime, 3600},
	"hr":   {classTime, 3600},
	"day":  {classTime, 86400},
	"week": {classTime, 604800},

	"m":     {classDistance, 1},
	"meter": {classDistance, 1},
	"km":    {classDistance, 1000},
	"mile":  {classDistance, 1609.344},
	"foot":  {classDistance, 0.3048},
	"ft":    {classDistance, 0.3048},

	"pu":    {classNone, 1},
	"":      {classNone, 1},
	"default": {classNone, 1},
}

func lookup(name string) (entry, bool) {
	e, ok := table[strings.ToLower(strings.TrimSpace(name))]
	return e, ok
}

// Convert converts value from fromUnit to toUnit. Both must belong to the
// same quantity class (or either may be the class-less "default"/"pu"
// marker, in which case no scaling is applied) or Convert returns an
// error; an unrecognized unit name is an error too.
func Convert(value float64, fromUnit, toUnit string) (float64, error) {
	from, ok := lookup(fromUnit)
	if !ok {
		return 0, chk.Err("unrecognized unit %q", fromUnit)
	}
	to, ok := lookup(toUnit)
	if !ok {
		return 0, chk.Err("unrecognized unit %q", toUnit)
	}
	if from.class == classNone || to.class == classNone {
		return value, nil
	}
	if from.class != to.class {
		return 0, chk.Err("cannot convert between incompatible units %q and %q", fromUnit, toUnit)
	}
	return value * from.factor / to.factor, nil
}

// ConvertPU converts a per-unit value to a physical unit given the system
// base quantity (in the class's base unit, e.g. base MVA for power, base kV
// for voltage).
func ConvertPU(valuePU float64, base float64, toUnit string) (float64, error) {
	to, ok := lookup(toUnit)
	if !ok {
		return 0, chk.Err("unrecognized unit %q", toUnit)
	}
	if to.class == classNone {
		return valuePU * base, nil
	}
	return valuePU * base / to.factor, nil
}
