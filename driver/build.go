// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package driver

import (
	"strings"

	"github.com/llnl/griddyn/area"
	"github.com/llnl/griddyn/bus"
	"github.com/llnl/griddyn/device"
	"github.com/llnl/griddyn/inp"
	"github.com/llnl/griddyn/kernel"
	"github.com/llnl/griddyn/link"
)

// BuildFromData constructs a simulation from a parsed configuration: the
// network section becomes the area tree, the solver section tunes the
// Newton interfaces, and the driver section sets the integration policy.
// External file formats stay outside the kernel; whatever parses them
// populates inp.Data and arrives here.
func BuildFromData(d *inp.Data) (*Simulation, error) {
	if len(d.Network.Areas) == 0 {
		return nil, kernel.Newf(kernel.FileIncomplete, "configuration describes no areas")
	}

	nextID := 0
	id := func() int {
		nextID++
		return nextID
	}

	var root *area.Area
	if len(d.Network.Areas) == 1 {
		a, err := buildArea(d.Network.Areas[0], id)
		if err != nil {
			return nil, err
		}
		root = a
	} else {
		root = area.New(id(), d.Desc)
		for _, ad := range d.Network.Areas {
			a, err := buildArea(ad, id)
			if err != nil {
				return nil, err
			}
			root.AddArea(a)
		}
	}

	s := New(d.Desc, root)
	s.solverCfg = &d.Solver
	if d.Driver.DtInit > 0 {
		s.DefaultDynStep = d.Driver.DtInit
	}
	return s, nil
}

func buildArea(ad inp.AreaData, id func() int) (*area.Area, error) {
	a := area.New(id(), ad.Name)
	busByName := make(map[string]*bus.Bus, len(ad.Buses))

	for _, bd := range ad.Buses {
		b := bus.New(id(), bd.Name)
		kind, err := busKind(bd.Type)
		if err != nil {
			return nil, err
		}
		b.Kind = kind
		b.V = bd.Vpu
		if b.V == 0 {
			b.V = 1
		}
		b.Theta = bd.ThetaRad
		if bd.BaseKV > 0 {
			if err := b.Set("basevoltage", bd.BaseKV); err != nil {
				return nil, err
			}
		}
		for _, gd := range bd.Generators {
			g := device.NewGenerator(id(), gd.Name)
			if err := applyParams(g, gd); err != nil {
				return nil, err
			}
			b.AddGenerator(g)
		}
		for _, ld := range bd.Loads {
			l := device.NewLoad(id(), ld.Name)
			if err := applyParams(l, ld); err != nil {
				return nil, err
			}
			b.AddLoad(l)
		}
		a.AddBus(b)
		busByName[bd.Name] = b
	}

	for _, ld := range ad.Links {
		from, okF := busByName[ld.From]
		to, okT := busByName[ld.To]
		if !okF || !okT {
			return nil, kernel.Newf(kernel.UnrecognizedObject, "link %q references unknown bus %q/%q", ld.Name, ld.From, ld.To)
		}
		l := link.New(id(), ld.Name, from, to)
		l.R, l.X, l.B = ld.R, ld.X, ld.B
		if ld.Tap != 0 {
			l.Tap = ld.Tap
		}
		lv, err := approxLevel(ld.Approx)
		if err != nil {
			return nil, err
		}
		l.Level = lv
		a.AddLink(l)
	}

	for _, sub := range ad.Areas {
		child, err := buildArea(sub, id)
		if err != nil {
			return nil, err
		}
		a.AddArea(child)
	}
	return a, nil
}

type paramSettable interface {
	Set(name string, value float64) error
}

func applyParams(dev paramSettable, dd inp.DeviceData) error {
	for k, v := range dd.Params {
		if err := dev.Set(k, v); err != nil {
			return err
		}
	}
	return nil
}

func busKind(name string) (bus.Type, error) {
	switch strings.ToLower(name) {
	case "", "pq":
		return bus.PQ, nil
	case "pv":
		return bus.PV, nil
	case "slk", "slack":
		return bus.SLK, nil
	case "afix":
		return bus.Afix, nil
	}
	return bus.PQ, kernel.Newf(kernel.InvalidParameterValue, "unrecognized bus type %q", name)
}

func approxLevel(name string) (link.Level, error) {
	switch strings.ToLower(name) {
	case "", "full":
		return link.Full, nil
	case "decoupled":
		return link.Decoupled, nil
	case "smallangle":
		return link.SmallAngle, nil
	case "smallangledecoupled":
		return link.SmallAngleDecoupled, nil
	case "simplified":
		return link.Simplified, nil
	case "simplifieddecoupled":
		return link.SimplifiedDecoupled, nil
	case "simplifiedsmallangle":
		return link.SimplifiedSmallAngle, nil
	case "fastdecoupled":
		return link.FastDecoupled, nil
	case "linear", "dc":
		return link.Linear, nil
	}
	return link.Full, kernel.Newf(kernel.InvalidParameterValue, "unrecognized approximation level %q", name)
}
