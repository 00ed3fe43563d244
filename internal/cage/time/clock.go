// Copyright (C) 2019 The CodeActual Go Environment Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

//go:generate mockery -all

// Package time provides an injectable clock and display formats.
package time

import (
	std_time "time"
)

// Clock abstracts the current time and timer creation so tests can control both.
type Clock interface {
	Now() std_time.Time
	NewTimer(std_time.Duration) Timer
}

// Timer is the subset of time.Timer used by Clock consumers. C is a method so mocks can supply the channel.
type Timer interface {
	Reset(std_time.Duration) bool
	Stop() bool
	C() <-chan std_time.Time
}

type RealClock struct{}

// Now returns the current UTC time.Time (unlike the standard lib which returns local).
func (r RealClock) Now() std_time.Time {
	return std_time.Now().UTC()
}

func (r RealClock) NewTimer(d std_time.Duration) Timer {
	return &RealTimer{t: std_time.NewTimer(d)}
}

// FixedClock always returns the same time. Its timers are real.
type FixedClock struct {
	RealClock

	T std_time.Time
}

func (f FixedClock) Now() std_time.Time {
	return f.T
}

type RealTimer struct {
	t *std_time.Timer
}

func (r *RealTimer) Reset(d std_time.Duration) bool {
	return r.t.Reset(d)
}

func (r *RealTimer) Stop() bool {
	return r.t.Stop()
}

func (r *RealTimer) C() <-chan std_time.Time {
	return r.t.C
}

var (
	_ Clock = (*RealClock)(nil)
	_ Clock = FixedClock{}
	_ Timer = (*RealTimer)(nil)
)
