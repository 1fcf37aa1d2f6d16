// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package inp implements the JSON-tagged configuration structs a driver
// reads at startup: network topology, solver tolerances, and driver policy
// knobs. File-format parsers for external formats (CDF, MATPOWER, ...) stay
// out of scope; only the shape they would populate lives here.
package inp

import (
	"encoding/json"
	"os"

	"github.com/cpmech/gosl/chk"
)

// Data holds the top-level simulation description read from a JSON file.
type Data struct {
	Desc    string `json:"desc"`    // human-readable description
	DirOut  string `json:"dirout"`  // directory for persisted output
	Encoder string `json:"encoder"` // persisted-state encoder; "binary" or "csv"

	Network NetworkData `json:"network"`
	Solver  SolverData  `json:"solver"`
	Driver  DriverData  `json:"driver"`
}

// NetworkData describes the Area/Bus/Link/Device tree to be built.
type NetworkData struct {
	Areas []AreaData `json:"areas"`
}

// AreaData describes one composite area and its direct children.
type AreaData struct {
	Name  string      `json:"name"`
	Buses []BusData   `json:"buses"`
	Links []LinkData  `json:"links"`
	Areas []AreaData  `json:"areas"` // nested sub-areas
}

// BusData describes one bus and its attached sub-devices.
type BusData struct {
	Name       string       `json:"name"`
	Type       string       `json:"type"` // "PQ", "PV", "SLK", "afix"
	BaseKV     float64      `json:"basekv"`
	Vpu        float64      `json:"vpu"`
	ThetaRad   float64      `json:"thetarad"`
	Generators []DeviceData `json:"generators"`
	Loads      []DeviceData `json:"loads"`
}

// LinkData describes one connecting branch.
type LinkData struct {
	Name     string  `json:"name"`
	From     string  `json:"from"`
	To       string  `json:"to"`
	R        float64 `json:"r"`  // pu resistance
	X        float64 `json:"x"`  // pu reactance
	B        float64 `json:"b"`  // pu shunt susceptance (line charging)
	Tap      float64 `json:"tap"`
	Approx   string  `json:"approx"` // one of the nine approximation-level names, "" => full
}

// DeviceData describes one sub-device (generator, load, relay, source)
// attached to a bus, identified by Type and an open parameter bag.
type DeviceData struct {
	Name   string             `json:"name"`
	Type   string             `json:"type"`
	Params map[string]float64 `json:"params"`
}

// SolverData holds the numerical-solver tolerances and iteration policy
// consumed by the driver's Solver interface.
type SolverData struct {
	Type      string  `json:"type"`      // "newton"
	NmaxIt    int     `json:"nmaxit"`    // iteration cap
	Atol      float64 `json:"atol"`      // absolute tolerance
	Rtol      float64 `json:"rtol"`      // relative tolerance
	Itol      float64 // derived convergence tolerance, set by PostProcess
}

// SetDefault fills SolverData with conservative defaults.
func (s *SolverData) SetDefault() {
	if s.Type == "" {
		s.Type = "newton"
	}
	if s.NmaxIt == 0 {
		s.NmaxIt = 30
	}
	if s.Atol == 0 {
		s.Atol = 1e-8
	}
	if s.Rtol == 0 {
		s.Rtol = 1e-6
	}
}

// PostProcess derives Itol from Atol/Rtol once both are known.
func (s *SolverData) PostProcess() {
	s.Itol = s.Atol + s.Rtol
}

// DriverData holds the lifecycle/action-queue policy knobs.
type DriverData struct {
	MaxDynIterations int     `json:"maxdyniterations"`
	DtInit           float64 `json:"dtinit"`
	DtMin            float64 `json:"dtmin"`
	ParallelResidual bool    `json:"parallelresidual"`
	ParallelJacobian bool    `json:"paralleljacobian"`
}

// SetDefault fills DriverData with conservative defaults.
func (d *DriverData) SetDefault() {
	if d.MaxDynIterations == 0 {
		d.MaxDynIterations = 10
	}
	if d.DtInit == 0 {
		d.DtInit = 1.0 / 60.0
	}
	if d.DtMin == 0 {
		d.DtMin = 1e-6
	}
}

// ReadData reads and unmarshals a simulation JSON file, applying defaults
// to its Solver and Driver sections; the kernel's configuration has no
// include-file or alias-expansion machinery, so this is a plain
// json.Unmarshal.
func ReadData(path string) (*Data, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, chk.Err("cannot read simulation file %q: %v", path, err)
	}
	var d Data
	if err := json.Unmarshal(buf, &d); err != nil {
		return nil, chk.Err("cannot parse simulation file %q: %v", path, err)
	}
	d.Solver.SetDefault()
	d.Solver.PostProcess()
	d.Driver.SetDefault()
	return &d, nil
}
