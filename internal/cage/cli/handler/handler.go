// Copyright (C) 2019 The CodeActual Go Environment Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package handler defines the parts of a sub-command which do not depend on a specific
// CLI library: the process session (context, signals, output streams), parsed input, and
// mixins which contribute reusable flags and setup.
package handler

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Input holds the parsed command line.
type Input struct {
	// Args holds the positional arguments.
	Args []string

	// Viper holds the flag values, and environment variables with the command's prefix,
	// under keys whose "-" are replaced with "_".
	Viper *viper.Viper
}

// Mixin contributes flags and pre-run setup to multiple commands, e.g. logging.
type Mixin interface {
	// BindCobraFlags registers flags and returns their names.
	BindCobraFlags(cmd *cobra.Command) []string

	// Name identifies the mixin in error messages.
	Name() string

	// PreRun is called after flags are parsed and before Handler.Run.
	PreRun(ctx context.Context, args []string) error
}

// Session provides process-wide state to a command.
type Session interface {
	// Start creates the context and begins listening for signals.
	Start()

	// Context is canceled after the first SIGINT/SIGTERM, after its OnSignal hooks return.
	Context() context.Context

	// OnSignal registers a hook for a signal.
	OnSignal(sig os.Signal, f func(os.Signal))

	Out() io.Writer
	Err() io.Writer

	// ExitOnErr prints the message and error, and exits with the code, if err is non-nil.
	ExitOnErr(err error, msg string, code int)
}

// DefaultSession is a Session backed by the real process.
type DefaultSession struct {
	OutWriter io.Writer
	ErrWriter io.Writer

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	hooks  map[os.Signal][]func(os.Signal)
	once   sync.Once
}

func (s *DefaultSession) Start() {
	s.once.Do(func() {
		s.mu.Lock()
		s.ctx, s.cancel = context.WithCancel(context.Background())
		s.mu.Unlock()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		go func() {
			for sig := range sigCh {
				s.mu.Lock()
				hooks := append([]func(os.Signal){}, s.hooks[sig]...)
				s.mu.Unlock()

				for _, f := range hooks {
					f(sig)
				}
				s.cancel()
			}
		}()
	})
}

func (s *DefaultSession) Context() context.Context {
	s.Start()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *DefaultSession) OnSignal(sig os.Signal, f func(os.Signal)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hooks == nil {
		s.hooks = map[os.Signal][]func(os.Signal){}
	}
	s.hooks[sig] = append(s.hooks[sig], f)
}

func (s *DefaultSession) Out() io.Writer {
	if s.OutWriter == nil {
		return os.Stdout
	}
	return s.OutWriter
}

func (s *DefaultSession) Err() io.Writer {
	if s.ErrWriter == nil {
		return os.Stderr
	}
	return s.ErrWriter
}

func (s *DefaultSession) ExitOnErr(err error, msg string, code int) {
	if err == nil {
		return
	}
	if msg == "" {
		fmt.Fprintf(s.Err(), "%+v\n", err)
	} else {
		fmt.Fprintf(s.Err(), "%s: %+v\n", msg, err)
	}
	os.Exit(code)
}

var _ Session = (*DefaultSession)(nil)
