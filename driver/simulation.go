// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package driver

import (
	"strings"

	"github.com/cpmech/gosl/io"

	"github.com/llnl/griddyn/area"
	"github.com/llnl/griddyn/bus"
	"github.com/llnl/griddyn/device"
	"github.com/llnl/griddyn/inp"
	"github.com/llnl/griddyn/kernel"
	"github.com/llnl/griddyn/persist"
)

// Simulation is the driver: a plain value owned by the caller that ties
// the root area to the lifecycle machine, the solver registry, the action
// queue, and the event queue. The four default solver modes occupy offset
// indices 2-5 (0 is the local mode, 1 the reserved empty slot); further
// modes requested by name allocate from 6 upward.
type Simulation struct {
	Root *area.Area
	Name string

	PFlowMode   kernel.Mode
	DAEMode     kernel.Mode
	DynAlgMode  kernel.Mode
	DynDiffMode kernel.Mode

	Theta               float64 // integration blend: 1 backward Euler, 0.5 trapezoidal
	DefaultDynStep      float64
	ToleranceRelaxation float64

	RootTriggerCount int

	machine  *Machine
	registry *Registry
	queue    Queue
	events   eventQueue

	dcMode        kernel.Mode
	dcModeSet     bool
	nextModeIndex int

	currentTime float64

	pfSolver     *NewtonRaphson
	daeSolver    *NewtonRaphson
	dynAlgSolver *NewtonRaphson

	pf       *powerFlowProblem
	dae      *daeProblem
	dynAlg   *powerFlowProblem
	daeStale bool

	diffOwners []diffOwner
	rootOwners []rootOwner
	relays     []*device.Relay
	prevRoots  []float64

	linkByID    map[int]area.Link
	actedRelays map[int]bool

	recorder    *persist.Series
	checkpoints []snapshot
	objectIDSeq int

	solverCfg *inp.SolverData
}

// New returns a simulation driving root, with trapezoidal dynamics and the
// default tolerance-relaxation retry policy.
func New(name string, root *area.Area) *Simulation {
	s := &Simulation{
		Root:                root,
		Name:                name,
		Theta:               0.5,
		DefaultDynStep:      0.005,
		ToleranceRelaxation: 100,
		machine:             NewMachine(),
		registry:            NewRegistry(),
		nextModeIndex:       6,
		linkByID:            make(map[int]area.Link),
		actedRelays:         make(map[int]bool),
	}
	s.PFlowMode = kernel.Mode{OffsetIndex: 2, Algebraic: true, PairedOffsetIndex: kernel.KNullLocation}
	s.DAEMode = kernel.Mode{OffsetIndex: 3, Dynamic: true, Algebraic: true, Differential: true, PairedOffsetIndex: kernel.KNullLocation}
	s.DynAlgMode = kernel.Mode{OffsetIndex: 4, Dynamic: true, Algebraic: true, PairedOffsetIndex: 5}
	s.DynDiffMode = kernel.Mode{OffsetIndex: 5, Dynamic: true, Differential: true, PairedOffsetIndex: 4}
	return s
}

// State reports the lifecycle machine's current state.
func (s *Simulation) State() State { return s.machine.State() }

// Time reports the simulation's current time.
func (s *Simulation) Time() float64 { return s.currentTime }

// Registry exposes the solver-interface registry.
func (s *Simulation) Registry() *Registry { return s.registry }

// Recorder exposes the run's time-series recorder (nil before dynamic
// initialization).
func (s *Simulation) Recorder() *persist.Series { return s.recorder }

// GetSolverMode resolves a symbolic mode name to its descriptor,
// constructing a fresh mode (with the next free offset index) for a name
// the driver has not seen before.
func (s *Simulation) GetSolverMode(name string) kernel.Mode {
	switch strings.ToLower(name) {
	case "local":
		return kernel.LocalMode
	case "ac", "pflow", "powerflow":
		return s.PFlowMode
	case "dae", "dynamic":
		return s.DAEMode
	case "dynalg", "algebraic":
		return s.DynAlgMode
	case "dyndiff", "differential":
		return s.DynDiffMode
	case "dc":
		if !s.dcModeSet {
			s.dcMode = kernel.Mode{OffsetIndex: s.nextModeIndex, Algebraic: true, DC: true, Approx: kernel.ApproxLinear, PairedOffsetIndex: kernel.KNullLocation}
			s.nextModeIndex++
			s.dcModeSet = true
		}
		return s.dcMode
	}
	m := kernel.Mode{OffsetIndex: s.nextModeIndex, Algebraic: true, PairedOffsetIndex: kernel.KNullLocation}
	s.nextModeIndex++
	return m
}

// resize re-runs the sizing and offset-distribution passes for mode and
// consumes the tree's pending change flags.
func (s *Simulation) resize(mode kernel.Mode) {
	kernel.LoadSizes(s.Root, mode, false)
	kernel.SetOffsets(s.Root, kernel.OffsetBase{}, mode)
	s.Root.ClearChangeFlags()
}

func (s *Simulation) lifecycleSteps() map[State]func() error {
	return map[State]func() error{
		Initialized:        s.doInitialize,
		PowerflowComplete:  s.solvePowerflow,
		DynamicInitialized: s.doDynInitialize,
	}
}

// doInitialize conditions the topology, sizes the power-flow mode, and
// runs both power-flow initialization phases.
func (s *Simulation) doInitialize() error {
	if _, err := s.Root.CheckNetwork(); err != nil {
		return err
	}
	for _, l := range s.Root.AllLinks() {
		if n, ok := l.(interface{ ID() int }); ok {
			s.linkByID[n.ID()] = l
		}
	}
	s.resize(s.PFlowMode)
	if err := s.Root.PFlowInitializeA(s.currentTime, 0); err != nil {
		return err
	}
	return s.Root.PFlowInitializeB()
}

// MakeReady idempotently drives the lifecycle forward to target, then
// verifies the mode's solver interface still matches the problem size,
// re-sizing and re-allocating if a change alert was posted since the last
// solve.
func (s *Simulation) MakeReady(target State, mode kernel.Mode) error {
	if err := s.machine.MakeReady(target, s.lifecycleSteps()); err != nil {
		return err
	}
	if s.Root.Flags().HasAnyChange() {
		s.resize(mode)
		if mode.Equal(s.PFlowMode) && s.pf != nil {
			s.pf = s.buildPowerflow(s.PFlowMode, false)
		}
		if (mode.Equal(s.DynAlgMode) || mode.Equal(s.DAEMode)) && s.dynAlg != nil {
			s.dynAlg = s.buildPowerflow(s.DynAlgMode, true)
		}
	}
	return nil
}

// Finalize marks the dynamic run complete.
func (s *Simulation) Finalize() error {
	if s.machine.State() == DynamicComplete {
		return nil
	}
	return s.machine.Transition(DynamicComplete)
}

// Schedule enqueues a discrete event.
func (s *Simulation) Schedule(t float64, priority int, act func(*Simulation) error) {
	s.events.schedule(&Event{Time: t, Priority: priority, Act: act})
}

// PendingEvents reports the number of not-yet-executed events.
func (s *Simulation) PendingEvents() int { return s.events.len() }

// runDueEvents executes, in order, every event scheduled at or before the
// present time.
func (s *Simulation) runDueEvents() error {
	for _, ev := range s.events.popDue(s.currentTime + 1e-9) {
		if err := ev.Act(s); err != nil {
			return err
		}
	}
	return nil
}

// Enqueue pushes an action at the back of the FIFO action queue.
func (s *Simulation) Enqueue(a Action) { s.queue.Push(a) }

// Run executes the queued actions front to back, aborting on the first
// failure; with an empty queue it performs the default chain
// initialize -> powerflow -> dynamics-to-last-event (or just the power
// flow when no event is scheduled).
func (s *Simulation) Run() (ExecCode, error) {
	if s.queue.Len() == 0 {
		if err := s.MakeReady(PowerflowComplete, s.PFlowMode); err != nil {
			return ExecCodeFor(err), err
		}
		if end, ok := s.events.nextTimeEnd(); ok {
			if err := s.DynamicDAE(end, 0); err != nil {
				return ExecCodeFor(err), err
			}
			if err := s.Finalize(); err != nil {
				return ExecCodeFor(err), err
			}
		}
		return ExecSuccess, nil
	}
	for {
		a, ok := s.queue.Pop()
		if !ok {
			return ExecSuccess, nil
		}
		if code, err := s.Execute(a); err != nil {
			return code, err
		}
	}
}

// nextTimeEnd returns the latest scheduled event time, the horizon the
// default Run chain integrates to.
func (q *eventQueue) nextTimeEnd() (t float64, ok bool) {
	if len(q.items) == 0 {
		return 0, false
	}
	return q.items[len(q.items)-1].Time, true
}

// Execute dispatches one action, returning its execution code alongside
// any error.
func (s *Simulation) Execute(a Action) (ExecCode, error) {
	var err error
	code := ExecSuccess
	switch a.Command {
	case CmdRun:
		return s.Run()
	case CmdInitialize:
		err = s.MakeReady(Initialized, s.PFlowMode)
	case CmdPowerflow:
		err = s.MakeReady(PowerflowComplete, s.PFlowMode)
	case CmdIterate:
		err = s.Iterate(a.ValDouble, a.ValDouble2)
	case CmdEventMode:
		err = s.EventMode(a.ValDouble)
	case CmdDynamicDAE:
		err = s.DynamicDAE(a.ValDouble, a.ValDouble2)
	case CmdDynamicPartitioned:
		err = s.DynamicPartitioned(a.ValDouble, a.ValDouble2)
	case CmdDynamicDecoupled:
		err = s.DynamicDecoupled(a.ValDouble, a.ValDouble2)
	case CmdStep:
		err = s.Step(a.ValDouble)
	case CmdSet:
		err = s.setParameter(a.String1, a.String2, a.ValDouble)
		if err == nil {
			code = ExecParameterFound
		}
	case CmdSetAll:
		err = s.setAll(a.String1, a.String2, a.ValDouble)
	case CmdSetTime:
		s.currentTime = a.ValDouble
	case CmdSetSolver:
		s.GetSolverMode(a.String1)
	case CmdSave:
		err = s.SaveState(a.String1)
	case CmdLoad:
		err = s.LoadState(a.String1)
	case CmdAdd:
		err = s.addObject(a)
		if err == nil {
			code = ExecObjectAddSuccess
		}
	case CmdReset:
		err = s.Reset(resetLevelByName(a.String1))
	case CmdRollback:
		err = s.Rollback()
	case CmdCheckpoint:
		s.Checkpoint()
	default:
		err = kernel.Newf(kernel.UnrecognizedParameter, "unrecognized command %v", a.Command)
	}
	if err != nil {
		io.Pfred("action %v failed: %v\n", a.Command, err)
		return ExecCodeFor(err), err
	}
	return code, nil
}

// Iterate advances time in quasi-static steps: each interval executes the
// due events and re-solves the power flow.
func (s *Simulation) Iterate(step, end float64) error {
	if step <= 0 {
		return kernel.Newf(kernel.InvalidParameterValue, "iterate requires a positive step (got %v)", step)
	}
	if err := s.MakeReady(PowerflowComplete, s.PFlowMode); err != nil {
		return err
	}
	for s.currentTime < end-1e-12 {
		dt := step
		if s.currentTime+dt > end {
			dt = end - s.currentTime
		}
		s.currentTime += dt
		if err := s.runDueEvents(); err != nil {
			return err
		}
		if err := s.solvePowerflow(); err != nil {
			return err
		}
		s.record()
	}
	return nil
}

// EventMode advances straight from event time to event time, re-solving
// the power flow after each batch, and lands on end.
func (s *Simulation) EventMode(end float64) error {
	if err := s.MakeReady(PowerflowComplete, s.PFlowMode); err != nil {
		return err
	}
	for {
		t, ok := s.events.nextTime()
		if !ok || t > end {
			break
		}
		s.currentTime = t
		if err := s.runDueEvents(); err != nil {
			return err
		}
		if err := s.solvePowerflow(); err != nil {
			return err
		}
		s.record()
	}
	if s.currentTime < end {
		s.currentTime = end
	}
	return nil
}

// setParameter resolves an object by name anywhere in the tree and applies
// a closed-match Set on it.
func (s *Simulation) setParameter(objName, param string, value float64) error {
	obj, ok := s.findObject(s.Root, objName)
	if !ok {
		return kernel.Newf(kernel.UnrecognizedObject, "no object named %q", objName)
	}
	settable, ok := obj.(interface {
		Set(name string, value float64) error
	})
	if !ok {
		return kernel.Newf(kernel.UnrecognizedParameter, "object %q accepts no parameters", objName)
	}
	return settable.Set(param, value)
}

// setAll applies a parameter to every object of the named kind.
func (s *Simulation) setAll(kind, param string, value float64) error {
	switch strings.ToLower(kind) {
	case "bus":
		for _, b := range s.Root.AllBuses() {
			if err := b.Set(param, value); err != nil {
				return err
			}
		}
		return nil
	case "link":
		for _, l := range s.Root.AllLinks() {
			settable, ok := l.(interface {
				Set(name string, value float64) error
			})
			if !ok {
				continue
			}
			if err := settable.Set(param, value); err != nil {
				return err
			}
		}
		return nil
	}
	return kernel.Newf(kernel.UnrecognizedObject, "setall: unrecognized object kind %q", kind)
}

func (s *Simulation) findObject(a *area.Area, name string) (kernel.Sizeable, bool) {
	if obj, ok := a.FindByName(name); ok {
		return obj, true
	}
	for _, sub := range a.Areas() {
		if obj, ok := s.findObject(sub, name); ok {
			return obj, true
		}
	}
	return nil, false
}

// addObject handles the Add command's small vocabulary: a named bus, or a
// load attached to a named bus with an optional initial real power.
func (s *Simulation) addObject(a Action) error {
	switch strings.ToLower(a.String1) {
	case "bus":
		if a.String2 == "" {
			return kernel.Newf(kernel.ObjectAddFailure, "add bus requires a name")
		}
		if _, exists := s.findObject(s.Root, a.String2); exists {
			return kernel.Newf(kernel.ObjectAddFailure, "an object named %q already exists", a.String2)
		}
		b := bus.New(s.nextObjectID(), a.String2)
		s.Root.AddBus(b)
		return nil
	case "load":
		obj, ok := s.findObject(s.Root, a.String2)
		if !ok {
			return kernel.Newf(kernel.UnrecognizedObject, "add load: no bus named %q", a.String2)
		}
		b, ok := obj.(*bus.Bus)
		if !ok {
			return kernel.Newf(kernel.ObjectAddFailure, "add load: %q is not a bus", a.String2)
		}
		ld := device.NewLoad(s.nextObjectID(), a.String2+"_load")
		ld.P = a.ValDouble
		ld.Q = a.ValDouble2
		b.AddLoad(ld)
		return nil
	}
	return kernel.Newf(kernel.ObjectAddFailure, "add: unrecognized object kind %q", a.String1)
}

func (s *Simulation) nextObjectID() int {
	s.objectIDSeq++
	return 1_000_000 + s.objectIDSeq
}

func newSeries(desc string, cols []string) *persist.Series { return persist.New(desc, cols) }
