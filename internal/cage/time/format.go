// Copyright (C) 2019 The CodeActual Go Environment Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package time

import (
	std_time "time"

	"github.com/hako/durafmt"
)

// DatetimeLayout is the time.Format layout of Datetime.
const DatetimeLayout = "20060102-150405"

// Datetime returns the clock's UTC date+time in format YYYYMMDD-HHMMSS.
func Datetime(c Clock) string {
	return c.Now().UTC().Format(DatetimeLayout)
}

// DurationShort returns a compact duration, e.g. "2 minutes".
func DurationShort(d std_time.Duration) string {
	// durafmt does not support microseconds, e.g. if an error causes a timed operation to
	// exit early.
	if d < std_time.Millisecond {
		d = 0
	}
	return durafmt.ParseShort(d).String()
}
