// Copyright (C) 2020 The dcwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package activity

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	std_template "text/template"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	cage_zap "github.com/codeactual/dcwatch/internal/cage/log/zap"
	cage_exec "github.com/codeactual/dcwatch/internal/cage/os/exec"
	cage_shell "github.com/codeactual/dcwatch/internal/cage/shell"
	cage_template "github.com/codeactual/dcwatch/internal/cage/text/template"
	cage_time "github.com/codeactual/dcwatch/internal/cage/time"
	"github.com/codeactual/dcwatch/internal/dcwatch"
)

// DefaultCloseGrace is the default ExecOptions.CloseGrace value.
const DefaultCloseGrace = 30 * time.Second

// waitDelay bounds how long a killed pipeline may hold its output pipes open.
const waitDelay = 5 * time.Second

// ExecOptions selects Exec behavior.
type ExecOptions struct {
	// Async runs commands in the background so slow commands do not delay the stream.
	Async bool

	// Limit caps concurrent background commands. Zero is unlimited.
	Limit int

	// Timeout bounds each command. Zero is unlimited.
	Timeout time.Duration

	// CloseGrace is how long Close waits for background commands before killing them.
	// Zero selects DefaultCloseGrace.
	CloseGrace time.Duration

	// Executor defaults to cage_exec.CommonExecutor.
	Executor cage_exec.Executor

	// Clock defaults to cage_time.RealClock.
	Clock cage_time.Clock
}

// Exec runs a command per event.
//
// Commands are text/template strings expanded with TemplateData, and then split into
// a "|" pipeline with shell quoting rules. TemplateData is also exported to each process
// environment, see TemplateData.Env.
type Exec struct {
	Log *zap.Logger

	opt  ExecOptions
	cmds map[dcwatch.Op]*std_template.Template

	// ctx is canceled once background commands finish or CloseGrace ends, whichever is first.
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	failures  uint64
	closeOnce sync.Once
}

// NewExec parses the command templates, indexed by the event kind they handle.
func NewExec(log *zap.Logger, cmds map[dcwatch.Op]string, opt ExecOptions) (*Exec, error) {
	if opt.Executor == nil {
		opt.Executor = cage_exec.CommonExecutor{}
	}
	if opt.Clock == nil {
		opt.Clock = cage_time.RealClock{}
	}
	if opt.CloseGrace <= 0 {
		opt.CloseGrace = DefaultCloseGrace
	}

	x := &Exec{
		Log:  cage_zap.OrNop(log),
		opt:  opt,
		cmds: map[dcwatch.Op]*std_template.Template{},
	}

	for op, text := range cmds {
		t, err := cage_template.Parse(op.String(), text)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse [%s] command", op)
		}
		x.cmds[op] = t
	}

	x.ctx, x.cancel = context.WithCancel(context.Background())
	x.group = &errgroup.Group{}
	if opt.Limit > 0 {
		x.group.SetLimit(opt.Limit)
	}

	return x, nil
}

func (x *Exec) OnNewFile(p string)      { x.handle(dcwatch.Event{Op: dcwatch.NewFile, Path: p}) }
func (x *Exec) OnDeletedFile(p string)  { x.handle(dcwatch.Event{Op: dcwatch.DeletedFile, Path: p}) }
func (x *Exec) OnNewDirectory(p string) { x.handle(dcwatch.Event{Op: dcwatch.NewDirectory, Path: p}) }
func (x *Exec) OnDeletedDirectory(p string) {
	x.handle(dcwatch.Event{Op: dcwatch.DeletedDirectory, Path: p})
}
func (x *Exec) OnMovedFile(from, to string) {
	x.handle(dcwatch.Event{Op: dcwatch.MovedFile, Path: from, To: to})
}
func (x *Exec) OnMovedDirectory(from, to string) {
	x.handle(dcwatch.Event{Op: dcwatch.MovedDirectory, Path: from, To: to})
}

// Failures returns the number of commands which could not be built or exited with an error.
func (x *Exec) Failures() uint64 {
	return atomic.LoadUint64(&x.failures)
}

// Close waits for background commands to finish, and kills those still running after
// CloseGrace. Only the first call has an effect.
func (x *Exec) Close() error {
	x.closeOnce.Do(func() {
		defer x.cancel()

		done := make(chan struct{})
		go func() {
			_ = x.group.Wait() // failures are already logged and counted
			close(done)
		}()

		grace := x.opt.Clock.NewTimer(x.opt.CloseGrace)
		defer grace.Stop()

		select {
		case <-done:
		case <-grace.C():
			x.Log.Warn(
				"killing background commands",
				cage_zap.Tag("exec"),
				zap.String("grace", cage_time.DurationShort(x.opt.CloseGrace)),
			)
			x.cancel()
			<-done
		}
	})
	return nil
}

func (x *Exec) handle(e dcwatch.Event) {
	t, ok := x.cmds[e.Op]
	if !ok {
		return
	}

	if !x.opt.Async {
		_ = x.run(t, e)
		return
	}

	x.group.Go(func() error {
		return x.run(t, e)
	})
}

func (x *Exec) run(t *std_template.Template, e dcwatch.Event) error {
	err := x.runE(t, e)
	if err != nil {
		atomic.AddUint64(&x.failures, 1)
		x.Log.Error(
			"command failed",
			cage_zap.Tag("exec"),
			zap.String("op", e.Op.String()),
			zap.String("path", e.Path),
			zap.Error(err),
		)
	}
	return err
}

func (x *Exec) runE(t *std_template.Template, e dcwatch.Event) error {
	data := NewTemplateData(e)

	buf, err := cage_template.Execute(t, data)
	if err != nil {
		return errors.WithStack(err)
	}
	cmdStr := buf.String()

	args, err := cage_shell.ParseEnv(cmdStr, data.Getenv)
	if err != nil {
		return errors.WithStack(err)
	}
	if len(args) == 0 {
		return errors.Errorf("command [%s] is empty after expansion", cmdStr)
	}

	ctx := x.ctx
	if x.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, x.opt.Timeout)
		defer cancel()
	}

	cmds := cage_exec.ArgToCmd(ctx, args...)
	env := append(os.Environ(), data.Env()...)
	for _, cmd := range cmds {
		cmd.Env = env
		cmd.WaitDelay = waitDelay
	}

	start := x.opt.Clock.Now()
	stdout, stderr, _, err := x.opt.Executor.Buffered(ctx, cmds...)
	runLen := cage_time.DurationShort(x.opt.Clock.Now().Sub(start))

	if err != nil {
		var stderrStr string
		if stderr != nil {
			stderrStr = stderr.String()
		}
		return errors.Wrapf(err, "failed to run [%s] after [%s], stderr [%s]", cmdStr, runLen, stderrStr)
	}

	fields := []zap.Field{
		cage_zap.Tag("exec"),
		zap.String("cmd", cmdStr),
		zap.String("runLen", runLen),
	}
	if stdout != nil && stdout.Len() > 0 {
		fields = append(fields, zap.String("stdout", stdout.String()))
	}
	x.Log.Info("command finished", fields...)

	return nil
}

var _ dcwatch.Sink = (*Exec)(nil)
