// Copyright (C) 2020 The dcwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package activity

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/codeactual/dcwatch/internal/dcwatch"
)

// NewUnarchive returns a sink which runs cmd, in the background, for each new file
// matching an include pattern.
//
// cmd is expanded like Exec commands, e.g. "unzip -o {{.Path}} -d {{.Dir}}".
func NewUnarchive(log *zap.Logger, cmd string, include []string, limit int, timeout time.Duration) (*Filter, error) {
	x, err := NewExec(log, map[dcwatch.Op]string{dcwatch.NewFile: cmd}, ExecOptions{
		Async:   true,
		Limit:   limit,
		Timeout: timeout,
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	f, err := NewFilter(x, include, nil, dcwatch.NewFile)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return f, nil
}
