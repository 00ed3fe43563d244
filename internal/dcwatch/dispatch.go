// Copyright (C) 2020 The dcwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package dcwatch

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/go-stack/stack"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	cage_zap "github.com/codeactual/dcwatch/internal/cage/log/zap"
)

// Options selects Dispatcher behavior.
type Options struct {
	// Recursive selects whether whole subtrees are watched.
	Recursive bool

	// MoveTimeout is the move-pairing window in notifications. Zero selects DefaultMoveTimeout.
	MoveTimeout uint64

	// Metrics is optional.
	Metrics *Metrics
}

// Dispatcher owns the watch table and move correlator, pulls notifications from a Source
// one at a time, and delivers the classified events to a Sink.
//
// All state is confined to the goroutine which calls Install and Run.
type Dispatcher struct {
	// Table holds the installed watches.
	Table *WatchTable

	// Installer populates Table.
	Installer *Installer

	// Classifier converts notifications to events.
	Classifier *Classifier

	// Sink receives every event.
	Sink Sink

	// Log receives debug/info-level messages.
	Log *zap.Logger

	// Metrics is optional.
	Metrics *Metrics

	// count is the number of notifications consumed, i.e. the move-expiry clock.
	count uint64

	closeOnce sync.Once
	closeErr  error
}

// NewDispatcher returns an instance with an empty watch table. Call Install before Run.
func NewDispatcher(log *zap.Logger, sub Subscriber, sink Sink, opt Options) *Dispatcher {
	log = cage_zap.OrNop(log)
	if sink == nil {
		sink = NopSink{}
	}

	table := NewWatchTable()
	installer := &Installer{
		Subscriber: sub,
		Table:      table,
		Recursive:  opt.Recursive,
		Log:        log,
		Metrics:    opt.Metrics,
	}

	return &Dispatcher{
		Table:     table,
		Installer: installer,
		Classifier: &Classifier{
			Table:     table,
			Moves:     NewMoveCorrelator(opt.MoveTimeout),
			Installer: installer,
			Recursive: opt.Recursive,
			Roots:     map[string]bool{},
			Log:       log,
			Metrics:   opt.Metrics,
		},
		Sink:    sink,
		Log:     log,
		Metrics: opt.Metrics,
	}
}

// Install watches the deduplicated roots.
//
// ErrNoWatches is returned if every installation failed, in which case Run must not be called.
func (d *Dispatcher) Install(ctx context.Context, roots []string) error {
	accepted, err := d.Installer.Install(ctx, roots)
	for _, r := range accepted {
		d.Classifier.Roots[r] = true
	}
	if err != nil {
		return errors.WithStack(err)
	}

	d.Log.Info(
		"watches installed",
		cage_zap.Tag("dispatch"),
		zap.Strings("roots", accepted),
		zap.Int("watches", d.Table.Len()),
		zap.Int("failures", len(d.Installer.Failures)),
	)
	return nil
}

// Run consumes notifications until the source ends or ctx is done.
//
// Each notification is fully classified, and its events delivered, before the next one
// is pulled. A clean end of stream returns ErrStreamClosed. Cancellation returns ctx.Err().
func (d *Dispatcher) Run(ctx context.Context, src Source) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := src.Next(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if errors.Is(err, io.EOF) {
				return errors.WithStack(ErrStreamClosed)
			}
			return errors.Wrap(err, "notification stream failed")
		}

		d.count++
		d.Metrics.notification()

		for _, e := range d.Classifier.Classify(ctx, n, d.count) {
			d.deliver(e)
		}
	}
}

// Count returns the number of notifications consumed so far.
func (d *Dispatcher) Count() uint64 {
	return d.count
}

// Close closes the sink. Only the first call has an effect.
func (d *Dispatcher) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = errors.Wrap(d.Sink.Close(), "failed to close activity")
		d.Log.Info(
			"dispatcher closed",
			cage_zap.Tag("dispatch"),
			zap.Uint64("notifications", d.count),
			zap.Int("pendingMoves", d.Classifier.Moves.Len()),
			zap.Int("watches", d.Table.Len()),
		)
	})
	return d.closeErr
}

func (d *Dispatcher) deliver(e Event) {
	defer func() { // one misbehaving activity call must not end the stream
		if r := recover(); r != nil {
			d.Log.Error(
				"activity panicked",
				cage_zap.Tag("dispatch"),
				zap.String("op", e.Op.String()),
				zap.String("path", e.Path),
				zap.String("panic", fmt.Sprintf("%v", r)),
				zap.String("stack", fmt.Sprintf("%+v", stack.Trace().TrimRuntime())),
			)
		}
	}()

	fields := []zap.Field{
		cage_zap.Tag("dispatch"),
		zap.String("op", e.Op.String()),
		zap.String("path", e.Path),
	}
	if e.Op.IsMove() {
		fields = append(fields, zap.String("to", e.To))
	}
	d.Log.Debug("event", fields...)

	d.Metrics.event(e.Op)
	Deliver(d.Sink, e)
}
