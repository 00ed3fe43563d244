// Copyright (C) 2020 The dcwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Command plan installs the watches the root command would, prints them along with every
// failed request, and then releases them without consuming any events.
//
// Usage:
//
//	dcwatch plan --config /path/to/config [PATH...]
package plan

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/codeactual/dcwatch/internal/app"
	"github.com/codeactual/dcwatch/internal/cage/cli/handler"
	handler_cobra "github.com/codeactual/dcwatch/internal/cage/cli/handler/cobra"
	log_zap "github.com/codeactual/dcwatch/internal/cage/cli/handler/mixin/log/zap"
	cage_zap "github.com/codeactual/dcwatch/internal/cage/log/zap"
	"github.com/codeactual/dcwatch/internal/dcwatch"
)

// Handler defines the sub-command flags and logic.
type Handler struct {
	handler.Session

	ConfigPath string

	Log *log_zap.Mixin
}

// Init defines the command, its environment variable prefix, etc.
//
// It implements cli/handler/cobra.Handler.
func (h *Handler) Init() handler_cobra.Init {
	h.Log = &log_zap.Mixin{}
	return handler_cobra.Init{
		Cmd: &cobra.Command{
			Use:   "plan [PATH...]",
			Short: "Print the watches which would be installed",
			Example: strings.Join([]string{
				"dcwatch plan --config /path/to/config",
				"dcwatch plan -r /data/run1",
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
	return append([]string{"config"}, app.BindConfigFlags(cmd)...)
}

// Run performs the sub-command logic.
//
// It implements cli/handler/cobra.Handler.
func (h *Handler) Run(ctx context.Context, input handler.Input) {
	cfg, err := app.LoadConfig(input.Viper, h.ConfigPath, input.Args)
	h.ExitOnErr(err, "failed to load config", 1)

	h.ExitOnErr(app.PromptPassword(&cfg, os.Stdin, h.Err()), "", 1)

	backend, err := app.NewBackend(ctx, h.Log.Logger, cfg)
	h.ExitOnErr(err, "failed to connect", 1)

	d := dcwatch.NewDispatcher(h.Log.Logger, backend, nil, dcwatch.Options{Recursive: cfg.Recursive})
	installErr := d.Install(ctx, cfg.Roots)

	closeCtx, cancel := context.WithTimeout(context.Background(), app.CloseTimeout)
	defer cancel()
	if closeErr := backend.Close(closeCtx); closeErr != nil {
		h.Log.Error("failed to release watches", cage_zap.Tag("plan"), zap.Error(closeErr))
	}

	Print(h.Out(), d)

	if installErr != nil && !errors.Is(installErr, dcwatch.ErrNoWatches) {
		h.ExitOnErr(installErr, "", 1)
	}
	if d.Table.IsEmpty() || len(d.Installer.Failures) > 0 {
		os.Exit(2)
	}
}

// Print writes one line per installed watch, sorted by path, and then one per failure.
func Print(w io.Writer, d *dcwatch.Dispatcher) {
	for _, e := range d.Table.Entries() {
		fmt.Fprintf(w, "WATCH %s\n", e.Path)
	}
	for _, f := range d.Installer.Failures {
		fmt.Fprintf(w, "FAILED %s %s: %s\n", strings.ToUpper(f.Op), f.Path, failureReason(f.Err))
	}
	fmt.Fprintf(w, "%d watches, %d failures\n", d.Table.Len(), len(d.Installer.Failures))
}

func failureReason(err error) string {
	var rejected *dcwatch.RejectedError
	if errors.As(err, &rejected) {
		return fmt.Sprintf("%d %s", rejected.Status, rejected.Message)
	}
	return err.Error()
}

// NewCommand returns a cobra command instance based on Handler.
func NewCommand() *cobra.Command {
	return handler_cobra.NewHandler(&Handler{
		Session: &handler.DefaultSession{},
	})
}

var _ handler_cobra.Handler = (*Handler)(nil)
