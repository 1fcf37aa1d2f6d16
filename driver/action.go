// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package driver

import (
	"strconv"
	"strings"

	"github.com/llnl/griddyn/kernel"
)

// Command tags one action-queue entry with the operation it requests.
type Command int

const (
	CmdRun Command = iota
	CmdInitialize
	CmdPowerflow
	CmdIterate
	CmdEventMode
	CmdDynamicDAE
	CmdDynamicPartitioned
	CmdDynamicDecoupled
	CmdStep
	CmdSet
	CmdSetAll
	CmdSetTime
	CmdSetSolver
	CmdSave
	CmdLoad
	CmdAdd
	CmdReset
	CmdRollback
	CmdCheckpoint
)

var commandNames = map[Command]string{
	CmdRun:                "run",
	CmdInitialize:         "initialize",
	CmdPowerflow:          "powerflow",
	CmdIterate:            "iterate",
	CmdEventMode:          "eventmode",
	CmdDynamicDAE:         "dynamicdae",
	CmdDynamicPartitioned: "dynamicpartitioned",
	CmdDynamicDecoupled:   "dynamicdecoupled",
	CmdStep:               "step",
	CmdSet:                "set",
	CmdSetAll:             "setall",
	CmdSetTime:            "settime",
	CmdSetSolver:          "setsolver",
	CmdSave:               "save",
	CmdLoad:               "load",
	CmdAdd:                "add",
	CmdReset:              "reset",
	CmdRollback:           "rollback",
	CmdCheckpoint:         "checkpoint",
}

var commandByName = func() map[string]Command {
	m := make(map[string]Command, len(commandNames)+3)
	for c, n := range commandNames {
		m[n] = c
	}
	// accepted spellings beyond the canonical one
	m["pflow"] = CmdPowerflow
	m["dae"] = CmdDynamicDAE
	m["init"] = CmdInitialize
	return m
}()

func (c Command) String() string {
	if n, ok := commandNames[c]; ok {
		return n
	}
	return "unknown"
}

// Action is one tagged action-queue entry: a command plus up to two string
// arguments, up to two numeric values, and an optional trailing integer.
type Action struct {
	Command    Command
	String1    string
	String2    string
	ValDouble  float64
	ValDouble2 float64
	ValInt     int

	// Doubles/HasInt record how many numeric trailers were actually
	// present, so a command can distinguish "step 0" from "step".
	Doubles int
	HasInt  bool
}

// ParseAction parses one line of the
// "<verb> <arg1> [<arg2>] [<double>] [<double2>] [<int>]" grammar.
// Leading non-numeric tokens fill String1/String2; numeric tokens fill
// ValDouble, ValDouble2, and finally ValInt (which must parse as an
// integer). Unrecognized verbs, excess arguments, and malformed numeric
// trailers all return UnrecognizedParameter, matching the rest of the
// kernel's closed-match parameter surface.
func ParseAction(line string) (Action, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Action{}, kernel.Newf(kernel.UnrecognizedParameter, "empty action")
	}
	cmd, ok := commandByName[strings.ToLower(fields[0])]
	if !ok {
		return Action{}, kernel.Newf(kernel.UnrecognizedParameter, "unrecognized action verb %q", fields[0])
	}

	a := Action{Command: cmd}
	nStrings := 0
	for _, tok := range fields[1:] {
		if f, err := strconv.ParseFloat(tok, 64); err == nil {
			switch {
			case a.Doubles == 0:
				a.ValDouble = f
				a.Doubles = 1
			case a.Doubles == 1:
				a.ValDouble2 = f
				a.Doubles = 2
			case !a.HasInt:
				n, err := strconv.Atoi(tok)
				if err != nil {
					return Action{}, kernel.Newf(kernel.UnrecognizedParameter, "action %q: trailing value %q is not an integer", fields[0], tok)
				}
				a.ValInt = n
				a.HasInt = true
			default:
				return Action{}, kernel.Newf(kernel.UnrecognizedParameter, "action %q: too many numeric arguments", fields[0])
			}
			continue
		}
		switch nStrings {
		case 0:
			a.String1 = tok
		case 1:
			a.String2 = tok
		default:
			return Action{}, kernel.Newf(kernel.UnrecognizedParameter, "action %q: too many string arguments", fields[0])
		}
		nStrings++
	}
	return a, nil
}

// Queue is the driver's FIFO action queue: Run drains it front to back,
// aborting on the first failing action.
type Queue struct {
	actions []Action
}

// Push appends an action at the back of the queue.
func (q *Queue) Push(a Action) { q.actions = append(q.actions, a) }

// Pop removes and returns the front action; ok is false on an empty queue.
func (q *Queue) Pop() (a Action, ok bool) {
	if len(q.actions) == 0 {
		return Action{}, false
	}
	a = q.actions[0]
	q.actions = q.actions[1:]
	return a, true
}

// Len returns the number of queued actions.
func (q *Queue) Len() int { return len(q.actions) }
