// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package area

import "github.com/llnl/griddyn/kernel"

// PowerFlowAdjust cascades to every child and returns the maximum-severity
// ChangeCode observed. Alerts raised by adjusting children are suppressed
// for the duration of the walk (the adjustment list must not mutate
// mid-walk) and replayed in order once every child has reported; a
// JacobianChange or above additionally invalidates the offset table so the
// next assembly pass re-sizes.
func (a *Area) PowerFlowAdjust(inputs []float64, flags uint32, level kernel.AdjustLevel) (kernel.ChangeCode, error) {
	a.suppressAlerts = true
	max := kernel.NoChange
	var walkErr error
	for _, child := range a.PrimaryObjects() {
		m, ok := child.(kernel.Model)
		if !ok {
			continue
		}
		cc, err := m.PowerFlowAdjust(inputs, flags, level)
		if err != nil {
			walkErr = err
			break
		}
		max = max.Max(cc)
	}
	a.suppressAlerts = false
	for _, p := range a.pendingAlerts {
		a.Object.Alert(p.source, p.code)
	}
	a.pendingAlerts = a.pendingAlerts[:0]
	if walkErr != nil {
		return max, walkErr
	}
	if max >= kernel.JacobianChange {
		a.Offsets().InvalidateAll()
	}
	return max, nil
}
