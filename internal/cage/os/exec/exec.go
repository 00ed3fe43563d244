// Copyright (C) 2019 The CodeActual Go Environment Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

//go:generate mockery -name Executor
package exec

import (
	"bytes"
	"context"
	"io"
	std_exec "os/exec"
	"strings"

	"github.com/pkg/errors"
)

// Result describes one process of a pipeline.
type Result struct {
	Pid  int
	Code int
	Err  error
}

// PipelineResult indexes Result values by the command which produced them.
type PipelineResult struct {
	Cmd map[*std_exec.Cmd]Result
}

// Executor runs pipelines. It exists to support os/exec.Cmd mocking in tests.
type Executor interface {
	// Buffered runs the commands as a "|" pipeline and returns the last command's stdout
	// and the combined stderr of all commands.
	Buffered(ctx context.Context, cmds ...*std_exec.Cmd) (stdout *bytes.Buffer, stderr *bytes.Buffer, res PipelineResult, err error)
}

// CommonExecutor runs real processes.
type CommonExecutor struct{}

func (CommonExecutor) Buffered(ctx context.Context, cmds ...*std_exec.Cmd) (stdout *bytes.Buffer, stderr *bytes.Buffer, res PipelineResult, err error) {
	stdout = &bytes.Buffer{}
	stderr = &bytes.Buffer{}
	res = PipelineResult{Cmd: map[*std_exec.Cmd]Result{}}

	if len(cmds) == 0 {
		return stdout, stderr, res, errors.New("no commands to run")
	}

	// lockedWriter avoids interleaved writes from concurrent stages
	errWriter := &lockedWriter{w: stderr}

	var closers []io.Closer
	for n, cmd := range cmds {
		cmd.Stderr = errWriter
		if n == len(cmds)-1 {
			cmd.Stdout = stdout
			continue
		}
		pipe, pipeErr := cmd.StdoutPipe()
		if pipeErr != nil {
			return stdout, stderr, res, errors.Wrapf(pipeErr, "failed to connect [%s]", CmdToString(cmd))
		}
		cmds[n+1].Stdin = pipe
		if c, ok := pipe.(io.Closer); ok {
			closers = append(closers, c)
		}
	}

	started := 0
	for _, cmd := range cmds {
		if startErr := cmd.Start(); startErr != nil {
			res.Cmd[cmd] = Result{Code: -1, Err: startErr}
			err = errors.Wrapf(startErr, "failed to start [%s]", CmdToString(cmd))
			break
		}
		started++
	}

	if err != nil {
		for _, c := range closers {
			_ = c.Close()
		}
	}

	for _, cmd := range cmds[:started] {
		waitErr := cmd.Wait()
		r := Result{Pid: cmd.Process.Pid, Err: waitErr}
		if cmd.ProcessState != nil {
			r.Code = cmd.ProcessState.ExitCode()
		}
		res.Cmd[cmd] = r
		if waitErr != nil && err == nil {
			err = errors.Wrapf(waitErr, "failed to run [%s]", CmdToString(cmd))
		}
	}

	if ctxErr := ctx.Err(); ctxErr != nil && err != nil {
		err = errors.Wrap(ctxErr, err.Error())
	}

	return stdout, stderr, res, err
}

// ArgToCmd creates one command per argument slice, e.g. from shell.Parse.
func ArgToCmd(ctx context.Context, args ...[]string) (cmds []*std_exec.Cmd) {
	for _, a := range args {
		if len(a) == 0 {
			continue
		}
		cmds = append(cmds, std_exec.CommandContext(ctx, a[0], a[1:]...))
	}
	return cmds
}

// CmdToString returns the command's arguments joined by spaces.
func CmdToString(cmd *std_exec.Cmd) string {
	return strings.Join(cmd.Args, " ")
}

var _ Executor = CommonExecutor{}
