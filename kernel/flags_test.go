// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import "testing"

func Test_flags01(tst *testing.T) {
	var f Flags
	if f.Has(FlagEnabled) {
		tst.Errorf("fresh Flags must not report FlagEnabled set")
	}
	f.Set(FlagEnabled)
	if !f.Has(FlagEnabled) {
		tst.Errorf("Set did not stick")
	}
	f.Clear(FlagEnabled)
	if f.Has(FlagEnabled) {
		tst.Errorf("Clear did not stick")
	}
	f.SetTo(FlagArmed, true)
	f.SetTo(FlagArmed, false)
	if f.Has(FlagArmed) {
		tst.Errorf("SetTo(false) did not clear")
	}
}

func Test_flags02(tst *testing.T) {
	// only cascade-mask bits propagate from child to parent
	var child, parent Flags
	child.Set(FlagStateCountChange)
	child.Set(FlagEnabled) // status flag: must not cascade

	parent.AbsorbCascade(child.CascadeBits())
	if !parent.Has(FlagStateCountChange) {
		tst.Errorf("change-alert flag did not cascade to parent")
	}
	if parent.Has(FlagEnabled) {
		tst.Errorf("status flag leaked into parent via cascade")
	}
}

func Test_flags03(tst *testing.T) {
	var f Flags
	f.Set(FlagRootCountChange)
	if !f.HasAnyChange() {
		tst.Errorf("HasAnyChange false after setting a change-alert bit")
	}
	f.ClearChangeFlags()
	if f.HasAnyChange() {
		tst.Errorf("ClearChangeFlags left a change-alert bit set")
	}
}
