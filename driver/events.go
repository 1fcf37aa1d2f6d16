// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package driver

import "sort"

// Event is a scheduled discrete change: at Time, Act runs against the
// simulation between solver calls. Events execute in (Time, Priority)
// order -- smaller Priority first at equal times -- with remaining ties
// broken by insertion order.
type Event struct {
	Time     float64
	Priority int
	Act      func(*Simulation) error

	seq int
}

type eventQueue struct {
	items   []*Event
	nextSeq int
}

func (q *eventQueue) schedule(ev *Event) {
	ev.seq = q.nextSeq
	q.nextSeq++
	q.items = append(q.items, ev)
	sort.SliceStable(q.items, func(i, j int) bool {
		a, b := q.items[i], q.items[j]
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.seq < b.seq
	})
}

// popDue removes and returns every event with Time <= t, already ordered.
func (q *eventQueue) popDue(t float64) []*Event {
	n := 0
	for n < len(q.items) && q.items[n].Time <= t {
		n++
	}
	due := q.items[:n]
	q.items = q.items[n:]
	return due
}

// nextTime returns the earliest scheduled time, or ok=false on an empty
// queue.
func (q *eventQueue) nextTime() (t float64, ok bool) {
	if len(q.items) == 0 {
		return 0, false
	}
	return q.items[0].Time, true
}

func (q *eventQueue) len() int { return len(q.items) }
