// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package driver

import (
	"strings"

	"github.com/llnl/griddyn/bus"
	"github.com/llnl/griddyn/kernel"
)

// ResetLevel selects how much of the solved state a Reset discards.
type ResetLevel int

const (
	ResetMinimal ResetLevel = iota
	ResetVoltage
	ResetAngle
	ResetLowVoltageDyn
	ResetFull
)

func resetLevelByName(name string) ResetLevel {
	switch strings.ToLower(name) {
	case "voltage":
		return ResetVoltage
	case "angle":
		return ResetAngle
	case "lowvoltagedyn", "low_voltage_dyn":
		return ResetLowVoltageDyn
	case "full":
		return ResetFull
	}
	return ResetMinimal
}

// Reset moves the lifecycle back to Initialized and discards solved state
// according to level: minimal keeps everything, voltage flattens free bus
// voltages, angle flattens angles, low_voltage_dyn restores only collapsed
// buses, and full flattens both and clears the recorder and the event
// bookkeeping.
func (s *Simulation) Reset(level ResetLevel) error {
	if s.machine.State() != Startup && s.machine.State() != Initialized {
		if err := s.machine.Transition(Initialized); err != nil {
			return err
		}
	}
	flattenV := false
	flattenA := false
	switch level {
	case ResetMinimal:
	case ResetVoltage:
		flattenV = true
	case ResetAngle:
		flattenA = true
	case ResetLowVoltageDyn:
		for _, b := range s.Root.AllBuses() {
			if !b.Disconnected && b.V < 0.7 {
				b.V = 1
				b.Theta = 0
			}
		}
	case ResetFull:
		flattenV = true
		flattenA = true
		s.recorder = nil
		s.prevRoots = nil
		s.RootTriggerCount = 0
		for id := range s.actedRelays {
			delete(s.actedRelays, id)
		}
	}
	for _, b := range s.Root.AllBuses() {
		if b.Disconnected {
			continue
		}
		// PQ voltages and non-slack angles are the free quantities a solve
		// fills in; boundary conditions (PV/SLK setpoints, afix angles) are
		// kept through every reset level
		if flattenV && b.Kind == bus.PQ {
			b.V = 1
		}
		if flattenA && b.Kind != bus.SLK && b.Kind != bus.Afix {
			b.Theta = 0
		}
	}
	s.Root.Offsets().InvalidateAll()
	return nil
}

// Checkpoint captures the present solved state (time, every bus's
// operating point, every differential owner's states) on the checkpoint
// stack.
func (s *Simulation) Checkpoint() {
	s.checkpoints = append(s.checkpoints, s.snapshot())
}

// Rollback restores the most recent checkpoint, failing when none exists.
func (s *Simulation) Rollback() error {
	if len(s.checkpoints) == 0 {
		return kernel.Newf(kernel.ObjectUpdateFailure, "rollback with no checkpoint on the stack")
	}
	snap := s.checkpoints[len(s.checkpoints)-1]
	s.checkpoints = s.checkpoints[:len(s.checkpoints)-1]
	s.restore(snap)
	return nil
}

// Checkpoints reports the checkpoint stack depth.
func (s *Simulation) Checkpoints() int { return len(s.checkpoints) }

type snapshot struct {
	time float64
	busV []float64
	busA []float64
	busF []float64
	diff []float64
}

func (s *Simulation) snapshot() snapshot {
	buses := s.Root.AllBuses()
	snap := snapshot{
		time: s.currentTime,
		busV: make([]float64, len(buses)),
		busA: make([]float64, len(buses)),
		busF: make([]float64, len(buses)),
	}
	for i, b := range buses {
		snap.busV[i], snap.busA[i], snap.busF[i] = b.V, b.Theta, b.Freq
	}
	if n := s.diffSize(); n > 0 {
		snap.diff = make([]float64, n)
		s.captureDiffStates(s.currentTime, snap.diff)
	}
	return snap
}

func (s *Simulation) restore(snap snapshot) {
	s.currentTime = snap.time
	buses := s.Root.AllBuses()
	for i, b := range buses {
		if i >= len(snap.busV) {
			break
		}
		b.V, b.Theta, b.Freq = snap.busV[i], snap.busA[i], snap.busF[i]
	}
	if snap.diff != nil {
		s.setDiffStates(snap.time, snap.diff)
	}
}
