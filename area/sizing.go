// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package area

import "github.com/llnl/griddyn/kernel"

// SubObjects returns every direct child -- buses, links, relays, and
// sub-areas -- since, unlike a bus, an area owns its links directly,
// and all of them participate in offset-table recursion.
func (a *Area) SubObjects() []kernel.Sizeable { return a.PrimaryObjects() }

// LocalSizes is zero: an area contributes no states of its own beyond its
// children's.
func (a *Area) LocalSizes(mode kernel.Mode) kernel.LocalSize { return kernel.LocalSize{} }
