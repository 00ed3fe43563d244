// Copyright (C) 2019 The CodeActual Go Environment Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package time provides mock clocks and timers whose expiration tests control.
package time

import (
	"time"

	"github.com/stretchr/testify/mock"

	cage_time_mocks "github.com/codeactual/dcwatch/internal/cage/time/mocks"
)

// NewTimer returns a mock timer and a mock clock configured to provide it.
func NewTimer() (*cage_time_mocks.Timer, *cage_time_mocks.Clock) {
	timer := new(cage_time_mocks.Timer)
	clock := new(cage_time_mocks.Clock)
	clock.On("NewTimer", mock.AnythingOfType("time.Duration")).Return(timer)
	return timer, clock
}

// DebounceTimer is a mock timer, and the clock which provides it, that only expires
// when the test calls Expire.
type DebounceTimer struct {
	Timer *cage_time_mocks.Timer
	Clock *cage_time_mocks.Clock

	expire chan time.Time

	// Resets receives a value per Timer.Reset call.
	Resets chan time.Duration
}

// NewDebounceTimer returns a timer whose Stop and Reset calls succeed.
func NewDebounceTimer() *DebounceTimer {
	timer, clock := NewTimer()

	d := &DebounceTimer{
		Timer:  timer,
		Clock:  clock,
		expire: make(chan time.Time, 1),
		Resets: make(chan time.Duration, 16),
	}

	var c <-chan time.Time = d.expire
	timer.On("C").Return(c)
	timer.On("Stop").Return(true)
	timer.On("Reset", mock.AnythingOfType("time.Duration")).Return(true).Run(func(args mock.Arguments) {
		select {
		case d.Resets <- args.Get(0).(time.Duration):
		default:
		}
	})

	return d
}

// Expire simulates the end of the debounce interval.
func (d *DebounceTimer) Expire() {
	d.expire <- time.Now()
}
