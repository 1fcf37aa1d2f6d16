// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package units

import (
	"testing"

	"github.com/cpmech/gosl/chk"
)

func Test_units01(tst *testing.T) {

	chk.PrintTitle("units01. power/voltage/angle conversions")

	v, err := Convert(1, "mw", "kw")
	if err != nil {
		tst.Errorf("Convert failed: %v", err)
		return
	}
	chk.Scalar(tst, "1 MW in kW ", 1e-12, v, 1000.0)

	v, err = Convert(1, "kv", "v")
	if err != nil {
		tst.Errorf("Convert failed: %v", err)
		return
	}
	chk.Scalar(tst, "1 kV in V  ", 1e-9, v, 1000.0)

	v, err = Convert(180, "deg", "rad")
	if err != nil {
		tst.Errorf("Convert failed: %v", err)
		return
	}
	chk.Scalar(tst, "180 deg in rad", 1e-12, v, 3.14159265358979)
}

func Test_units02(tst *testing.T) {
	if _, err := Convert(1, "mw", "kv"); err == nil {
		tst.Errorf("Convert across incompatible classes must fail")
	}
	if _, err := Convert(1, "bogus", "mw"); err == nil {
		tst.Errorf("Convert with an unrecognized unit must fail")
	}
}

func Test_units03(tst *testing.T) {
	v, err := ConvertPU(1.05, 100, "mw")
	if err != nil {
		tst.Errorf("ConvertPU failed: %v", err)
		return
	}
	chk.Scalar(tst, "1.05 pu @ 100 MVA base", 1e-9, v, 105.0)
}
