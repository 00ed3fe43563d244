// Copyright (C) 2020 The dcwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Root command dcwatch watches dCache (or local) directories and reacts to file and
// directory events.
//
// Usage:
//
//	dcwatch --config /path/to/config [PATH...]
//	dcwatch --recursive --endpoint https://frontend.example.org:3880/api/v1/events /data/run1
package root

import (
	"context"
	"os"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/codeactual/dcwatch/internal/app"
	"github.com/codeactual/dcwatch/internal/cage/cli/handler"
	handler_cobra "github.com/codeactual/dcwatch/internal/cage/cli/handler/cobra"
	log_zap "github.com/codeactual/dcwatch/internal/cage/cli/handler/mixin/log/zap"
	cage_zap "github.com/codeactual/dcwatch/internal/cage/log/zap"
	cage_time "github.com/codeactual/dcwatch/internal/cage/time"
	"github.com/codeactual/dcwatch/internal/dcwatch"
)

// Handler defines the sub-command flags and logic.
type Handler struct {
	handler.Session

	ConfigPath string

	// Timestamp prefixes printed events with the date and time.
	Timestamp bool

	Log *log_zap.Mixin
}

// Init defines the command, its environment variable prefix, etc.
//
// It implements cli/handler/cobra.Handler.
func (h *Handler) Init() handler_cobra.Init {
	h.Log = &log_zap.Mixin{}
	return handler_cobra.Init{
		Cmd: &cobra.Command{
			Use:   "dcwatch [PATH...]",
			Args:  cobra.ArbitraryArgs,
			Short: "Watch directories and react to file and directory events",
			Example: strings.Join([]string{
				"dcwatch --config /path/to/config",
				"dcwatch -r -u alice /data/run1 /data/run2",
				"dcwatch --source local -r --activity exec --config exec.yaml ./incoming",
			}, "\n"),
		},
		EnvPrefix: app.EnvPrefix,
		Mixins: []handler.Mixin{
			h.Log,
		},
	}
}

// BindFlags binds the flags to Handler fields.
//
// It implements cli/handler/cobra.Handler.
func (h *Handler) BindFlags(cmd *cobra.Command) []string {
	cmd.Flags().StringVarP(&h.ConfigPath, "config", "c", "", "viper-readable config file")
	cmd.Flags().BoolVarP(&h.Timestamp, "timestamp", "t", false, "prefix printed events with the date and time")
	return append([]string{"config", "timestamp"}, app.BindConfigFlags(cmd)...)
}

// Run performs the sub-command logic.
//
// It implements cli/handler/cobra.Handler.
func (h *Handler) Run(ctx context.Context, input handler.Input) {
	cfg, err := app.LoadConfig(input.Viper, h.ConfigPath, input.Args)
	h.ExitOnErr(err, "failed to load config", 1)

	h.ExitOnErr(app.PromptPassword(&cfg, os.Stdin, h.Err()), "", 1)

	h.ExitOnErr(h.run(ctx, cfg), "", 1)
}

func (h *Handler) run(ctx context.Context, cfg dcwatch.Config) (err error) {
	log := h.Log.Logger

	onSignal := func(s os.Signal) {
		log.Info("shutting down", cage_zap.Tag("root"), zap.String("signal", s.String()))
	}
	h.OnSignal(syscall.SIGTERM, onSignal)
	h.OnSignal(syscall.SIGINT, onSignal)

	reg := app.NewRegistry()
	metrics, err := dcwatch.NewMetrics(reg)
	if err != nil {
		return errors.WithStack(err)
	}
	if cfg.MetricsAddr != "" {
		metricsErrCh := app.ServeMetrics(ctx, log, cfg.MetricsAddr, reg)
		go func() {
			if serveErr := <-metricsErrCh; serveErr != nil {
				log.Error("metrics server failed", cage_zap.Tag("root"), zap.Error(serveErr))
			}
		}()
	}

	var clock cage_time.Clock
	if h.Timestamp {
		clock = cage_time.RealClock{}
	}
	sink, err := app.NewSink(log, cfg, h.Out(), clock)
	if err != nil {
		return errors.WithStack(err)
	}

	backend, err := app.NewBackend(ctx, log, cfg)
	if err != nil {
		return errors.WithStack(err)
	}

	d := dcwatch.NewDispatcher(log, backend, sink, dcwatch.Options{
		Recursive:   cfg.Recursive,
		MoveTimeout: cfg.MoveTimeout,
		Metrics:     metrics,
	})

	defer func() {
		// ctx is likely canceled at this point
		closeCtx, cancel := context.WithTimeout(context.Background(), app.CloseTimeout)
		defer cancel()

		if closeErr := backend.Close(closeCtx); closeErr != nil {
			log.Error("failed to close source", cage_zap.Tag("root"), zap.Error(closeErr))
		}
		if closeErr := d.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if err = d.Install(ctx, cfg.Roots); err != nil {
		return errors.WithStack(err)
	}

	src, err := backend.Open(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	log.Info(
		"watching",
		cage_zap.Tag("root"),
		zap.String("source", cfg.Source),
		zap.String("activity", cfg.Activity),
		zap.Bool("recursive", cfg.Recursive),
	)

	err = d.Run(ctx, src)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return errors.WithStack(err)
}

// NewCommand returns a cobra command instance based on Handler.
func NewCommand() *cobra.Command {
	return handler_cobra.NewHandler(&Handler{
		Session: &handler.DefaultSession{},
	})
}

var _ handler_cobra.Handler = (*Handler)(nil)
