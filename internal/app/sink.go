// Copyright (C) 2020 The dcwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package app

import (
	"io"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/codeactual/dcwatch/internal/activity"
	cage_time "github.com/codeactual/dcwatch/internal/cage/time"
	"github.com/codeactual/dcwatch/internal/dcwatch"
)

// NewSink builds the configured activity. Print output goes to out.
//
// The unarchive activity shares the exec timeout.
func NewSink(log *zap.Logger, cfg dcwatch.Config, out io.Writer, clock cage_time.Clock) (dcwatch.Sink, error) {
	switch cfg.Activity {
	case dcwatch.ActivityPrint:
		return activity.NewPrint(out, clock), nil
	case dcwatch.ActivityExec:
		x, err := activity.NewExec(log, cfg.Exec.Commands(), activity.ExecOptions{
			Async:   cfg.Exec.Async,
			Limit:   cfg.Exec.Limit,
			Timeout: cfg.Exec.GetTimeout(),
		})
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return x, nil
	case dcwatch.ActivityUnarchive:
		u, err := activity.NewUnarchive(log, cfg.Unarchive.Cmd, cfg.Unarchive.Include, cfg.Unarchive.Limit, cfg.Exec.GetTimeout())
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return u, nil
	case dcwatch.ActivityNone:
		return dcwatch.NopSink{}, nil
	}
	return nil, errors.Errorf("unknown activity [%s]", cfg.Activity)
}
