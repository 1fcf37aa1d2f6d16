// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package driver

import "github.com/llnl/griddyn/kernel"

// ExecCode is the integer execution code an action dispatch returns:
// 0 is plain success, small positive codes report qualified successes, and
// the error codes reuse the process exit-code ranges below so a caller can
// pass one straight through as an exit status.
type ExecCode int

const (
	ExecSuccess          ExecCode = 0
	ExecObjectAddSuccess ExecCode = 1
	ExecParameterFound   ExecCode = 2
)

// Process exit-code ranges: 0 success, 1-3 configuration errors, 4-6
// load-file errors, 10-19 topology errors, 20-29 solver errors, 30-39
// internal invariant violations.
const (
	ExitSuccess               = 0
	ExitInvalidParameter      = 1
	ExitUnrecognizedParameter = 2
	ExitUnrecognizedObject    = 3
	ExitFileNotFound          = 4
	ExitFileIncomplete        = 5
	ExitFileLoadFailure       = 6
	ExitNoSlackBusFound       = 10
	ExitSolverConvergence     = 20
	ExitFunctionFailure       = 30
)

// ExecCodeFor maps an error from an action dispatch to its execution code.
func ExecCodeFor(err error) ExecCode {
	if err == nil {
		return ExecSuccess
	}
	switch {
	case kernel.Is(err, kernel.InvalidParameterValue):
		return ExecCode(ExitInvalidParameter)
	case kernel.Is(err, kernel.UnrecognizedParameter):
		return ExecCode(ExitUnrecognizedParameter)
	case kernel.Is(err, kernel.UnrecognizedObject), kernel.Is(err, kernel.ObjectAddFailure):
		return ExecCode(ExitUnrecognizedObject)
	case kernel.Is(err, kernel.FileNotFound):
		return ExecCode(ExitFileNotFound)
	case kernel.Is(err, kernel.FileIncomplete):
		return ExecCode(ExitFileIncomplete)
	case kernel.Is(err, kernel.FileLoadFailure):
		return ExecCode(ExitFileLoadFailure)
	case kernel.Is(err, kernel.NoSlackBusFound):
		return ExecCode(ExitNoSlackBusFound)
	case kernel.Is(err, kernel.SolverConvergence):
		return ExecCode(ExitSolverConvergence)
	}
	return ExecCode(ExitFunctionFailure)
}
