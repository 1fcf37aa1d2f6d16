// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package kernel implements the GridDyn simulation kernel's object model:
// the uniform object base, solver-mode and offset bookkeeping, and the
// capability contract every model object (area, bus, link, device)
// implements so that a solver can assemble residuals and Jacobians against
// it.
package kernel

import (
	"fmt"

	"github.com/cpmech/gosl/chk"
)

// Kind enumerates the error taxonomy of the kernel.
type Kind int

const (
	// UnrecognizedObject -- find/add could not resolve a target.
	UnrecognizedObject Kind = iota
	// UnrecognizedParameter -- set/get saw a name no component accepts.
	UnrecognizedParameter
	// InvalidParameterValue -- syntactically recognised, semantically out of range.
	InvalidParameterValue
	// ObjectAddFailure -- naming conflict, duplicate insert, or wrong kind.
	ObjectAddFailure
	// ObjectRemoveFailure -- inconsistent locIndex.
	ObjectRemoveFailure
	// ObjectUpdateFailure -- updateObjectLinkages after clone found no match.
	ObjectUpdateFailure
	// SolverConvergence -- solver returned non-success.
	SolverConvergence
	// NoSlackBusFound -- topology cannot be solved.
	NoSlackBusFound
	// FileNotFound -- persistence boundary only.
	FileNotFound
	// FileIncomplete -- persistence boundary only.
	FileIncomplete
	// FileLoadFailure -- persistence boundary only.
	FileLoadFailure
)

var kindNames = map[Kind]string{
	UnrecognizedObject:    "UnrecognizedObject",
	UnrecognizedParameter: "UnrecognizedParameter",
	InvalidParameterValue: "InvalidParameterValue",
	ObjectAddFailure:      "ObjectAddFailure",
	ObjectRemoveFailure:   "ObjectRemoveFailure",
	ObjectUpdateFailure:   "ObjectUpdateFailure",
	SolverConvergence:     "SolverConvergence",
	NoSlackBusFound:       "NoSlackBusFound",
	FileNotFound:          "FileNotFound",
	FileIncomplete:        "FileIncomplete",
	FileLoadFailure:       "FileLoadFailure",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "UnknownKind"
}

// Error is the kernel's tagged error. It wraps a chk.Err-built message,
// keeping chk's formatting, while still letting callers switch on
// Kind.
type Error struct {
	Kind Kind
	err  error
}

func (e *Error) Error() string { return e.err.Error() }

// Unwrap lets errors.Is/As reach the underlying chk error.
func (e *Error) Unwrap() error { return e.err }

// Newf builds a tagged kernel error with a chk.Err-formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, err: chk.Err(format, args...)}
}

// Is reports whether err is a kernel *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

// must-fail helper used by invariant assertions: panics with a diagnostic
// dump identifying the offending object; an assertion failure aborts the
// current simulation.
func assertFail(objName string, objID int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	chk.Panic("invariant violation in object %q (id=%d): %s", objName, objID, msg)
}
