// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package driver

import (
	"strings"

	"github.com/llnl/griddyn/kernel"
	"github.com/llnl/griddyn/persist"
)

// SaveState writes the present operating point -- per bus V, theta, and
// net (P, Q) injection -- as a one-row block of the binary time-series
// format, or its CSV sibling when path ends in ".csv".
func (s *Simulation) SaveState(path string) error {
	buses := s.Root.AllBuses()
	cols := make([]string, 0, 4*len(buses))
	for _, b := range buses {
		cols = append(cols, b.Name()+".V", b.Name()+".theta", b.Name()+".P", b.Name()+".Q")
	}
	ser := persist.New(s.Name+" state", cols)

	sD := &kernel.StateData{Time: s.currentTime, Mode: s.PFlowMode, SeqID: kernel.NextSeqID()}
	row := make([]float64, 0, len(cols))
	for _, b := range buses {
		b.UpdateLocalCache(nil, sD, s.PFlowMode)
		p, q := b.Injections()
		row = append(row, b.V, b.Theta, p, q)
	}
	if err := ser.Append(s.currentTime, row); err != nil {
		return err
	}
	if strings.HasSuffix(path, ".csv") {
		return persist.WriteCSV(path, ser)
	}
	return persist.WriteBinary(path, ser)
}

// LoadState reads a state file produced by SaveState and restores every
// named bus's V and theta from the file's last row, leaving the recorded
// injections as informative columns (they are derived quantities the next
// solve recomputes).
func (s *Simulation) LoadState(path string) error {
	var ser *persist.Series
	var err error
	if strings.HasSuffix(path, ".csv") {
		ser, err = persist.ReadCSV(path)
	} else {
		ser, err = persist.ReadBinary(path)
	}
	if err != nil {
		return err
	}
	if ser.RowCount() == 0 {
		return kernel.Newf(kernel.FileIncomplete, "state file %q has no rows", path)
	}
	last := ser.RowCount() - 1

	buses := s.Root.AllBuses()
	byName := make(map[string]int, len(buses))
	for i, b := range buses {
		byName[b.Name()] = i
	}

	for k, col := range ser.ColNames {
		dot := strings.LastIndex(col, ".")
		if dot < 0 {
			continue
		}
		busName, field := col[:dot], col[dot+1:]
		i, ok := byName[busName]
		if !ok {
			return kernel.Newf(kernel.FileLoadFailure, "state file %q names unknown bus %q", path, busName)
		}
		switch field {
		case "V":
			buses[i].V = ser.Cols[k][last]
		case "theta":
			buses[i].Theta = ser.Cols[k][last]
		}
	}
	s.currentTime = ser.Time[last]
	return nil
}

// SaveRecording writes the run's accumulated time series, or its CSV
// sibling when path ends in ".csv"; an error is returned before dynamic
// initialization has created the recorder.
func (s *Simulation) SaveRecording(path string) error {
	if s.recorder == nil {
		return kernel.Newf(kernel.FileIncomplete, "no recording to save; the recorder starts with dynamic initialization")
	}
	if strings.HasSuffix(path, ".csv") {
		return persist.WriteCSV(path, s.recorder)
	}
	return persist.WriteBinary(path, s.recorder)
}
