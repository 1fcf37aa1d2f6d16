// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package driver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cpmech/gosl/chk"
	"github.com/stretchr/testify/require"

	"github.com/llnl/griddyn/inp"
	"github.com/llnl/griddyn/kernel"
)

const twoBusJSON = `{
  "desc": "two-bus configuration",
  "network": {
    "areas": [{
      "name": "sys",
      "buses": [
        {"name": "b1", "type": "SLK", "vpu": 1.0,
         "generators": [{"name": "g1", "type": "generator", "params": {"p": 0}}]},
        {"name": "b2", "type": "PQ",
         "loads": [{"name": "load1", "type": "zip", "params": {"p": 0.3, "q": 0.05}}]}
      ],
      "links": [
        {"name": "line1", "from": "b1", "to": "b2", "r": 0.01, "x": 0.05, "approx": "full"}
      ]
    }]
  },
  "solver": {"type": "newton", "nmaxit": 25, "atol": 1e-9, "rtol": 1e-7}
}`

func Test_build01_from_configuration(tst *testing.T) {
	chk.PrintTitle("build01. a configuration file becomes a solvable tree")

	path := filepath.Join(tst.TempDir(), "twobus.json")
	if err := os.WriteFile(path, []byte(twoBusJSON), 0644); err != nil {
		tst.Fatalf("cannot write fixture: %v", err)
	}
	d, err := inp.ReadData(path)
	require.NoError(tst, err)
	s, err := BuildFromData(d)
	require.NoError(tst, err)

	require.Len(tst, s.Root.AllBuses(), 2, "the built tree must carry the configured buses")
	require.Len(tst, s.Root.AllLinks(), 1, "the built tree must carry the configured links")
	if err := s.MakeReady(PowerflowComplete, s.PFlowMode); err != nil {
		tst.Fatalf("powerflow over the built tree failed: %v", err)
	}
	maxDp, maxDq := s.VerifyBalance()
	if maxDp > 1e-6 || maxDq > 1e-6 {
		tst.Errorf("the built tree must solve to balance, worst mismatches dp=%g dq=%g", maxDp, maxDq)
	}

	// the configured iteration cap reached the solver
	if got := s.pfSolver.nmaxIt; got != 25 {
		tst.Errorf("configured nmaxit must reach the solver, got %d", got)
	}
}

func Test_build02_bad_references(tst *testing.T) {
	d := &inp.Data{}
	if _, err := BuildFromData(d); err == nil || !kernel.Is(err, kernel.FileIncomplete) {
		tst.Errorf("an arealess configuration must fail with FileIncomplete, got %v", err)
	}

	d = &inp.Data{Network: inp.NetworkData{Areas: []inp.AreaData{{
		Name:  "sys",
		Buses: []inp.BusData{{Name: "b1", Type: "SLK"}},
		Links: []inp.LinkData{{Name: "l1", From: "b1", To: "nosuch", X: 0.1}},
	}}}}
	if _, err := BuildFromData(d); err == nil || !kernel.Is(err, kernel.UnrecognizedObject) {
		tst.Errorf("a link to an unknown bus must fail with UnrecognizedObject, got %v", err)
	}
}
