// Copyright (C) 2020 The dcwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package dcwatch

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	cage_zap "github.com/codeactual/dcwatch/internal/cage/log/zap"
)

const (
	// OpInstall labels failures of Subscriber.InstallWatch.
	OpInstall = "install"

	// OpList labels failures of Subscriber.ListChildren.
	OpList = "list"
)

// InstallFailure describes one request that failed during installation.
type InstallFailure struct {
	// Op is OpInstall or OpList.
	Op   string
	Path string
	Err  error
}

// Installer covers requested roots, and optionally their whole subtrees, with one watch
// per directory.
type Installer struct {
	// Subscriber performs the subscription and listing requests.
	Subscriber Subscriber

	// Table receives an entry per successful subscription.
	Table *WatchTable

	// Recursive selects whether subdirectories are discovered and watched.
	Recursive bool

	// Log receives debug/info-level messages.
	Log *zap.Logger

	// Metrics is optional.
	Metrics *Metrics

	// Failures collects every failed request, in order.
	Failures []InstallFailure
}

// Install deduplicates the roots and installs each one in the configured mode.
//
// It returns the roots which survived deduplication. ErrNoWatches is returned if the
// table is empty afterward.
func (i *Installer) Install(ctx context.Context, roots []string) (accepted []string, err error) {
	accepted = DedupePaths(i.Log, roots)

	for _, root := range accepted {
		if i.Recursive {
			if err = i.InstallRecursive(ctx, root); err != nil {
				return accepted, errors.WithStack(err)
			}
		} else {
			_ = i.InstallSingle(ctx, root)
		}
	}

	if i.Table.IsEmpty() {
		return accepted, errors.Wrapf(ErrNoWatches, "roots %v", accepted)
	}
	return accepted, nil
}

// InstallSingle subscribes to one path and records it in the table.
//
// A path that is already watched is left as-is. Failures are logged, collected in
// Failures, and returned, but never retried.
func (i *Installer) InstallSingle(ctx context.Context, path string) error {
	path = NormalizePath(path)

	if id, found := i.Table.Lookup(path); found {
		i.Log.Debug(
			"path already watched",
			cage_zap.Tag("install"),
			zap.String("path", path),
			zap.String("watch", string(id)),
		)
		return nil
	}

	id, err := i.Subscriber.InstallWatch(ctx, path)
	if err != nil {
		i.fail(OpInstall, path, err)
		return err
	}

	i.Table.Install(id, path)
	i.Metrics.watches(i.Table.Len())

	i.Log.Info(
		"added watch",
		cage_zap.Tag("install"),
		zap.String("path", path),
		zap.String("watch", string(id)),
	)

	return nil
}

// InstallRecursive installs a watch on path and every directory below it.
//
// The walk uses an explicit stack so depth is bounded only by the remote tree. Parents
// are installed before their children. Subtrees whose root is already watched are
// skipped. A failed subscription skips that directory's subtree and a failed listing
// keeps the directory's own watch. Only context cancellation is returned.
func (i *Installer) InstallRecursive(ctx context.Context, path string) error {
	stack := []string{NormalizePath(path)}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "recursive install of [%s] interrupted", path)
		}

		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, found := i.Table.Lookup(dir); found {
			continue
		}
		if err := i.InstallSingle(ctx, dir); err != nil {
			continue
		}

		children, err := i.Subscriber.ListChildren(ctx, dir)
		if err != nil {
			i.fail(OpList, dir, err)
			continue
		}

		// push in reverse so children are visited in listing order
		for n := len(children) - 1; n >= 0; n-- {
			if children[n].IsDir {
				stack = append(stack, JoinPath(dir, children[n].Name))
			}
		}
	}

	return nil
}

func (i *Installer) fail(op, path string, err error) {
	i.Failures = append(i.Failures, InstallFailure{Op: op, Path: path, Err: err})
	i.Metrics.installFailed(op, err)

	fields := []zap.Field{
		cage_zap.Tag("install"),
		zap.String("op", op),
		zap.String("path", path),
	}
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		fields = append(fields, zap.Int("status", rejected.Status), zap.String("reason", rejected.Message))
	} else {
		fields = append(fields, zap.Error(err))
	}

	switch op {
	case OpInstall:
		i.Log.Warn("failed to add watch", fields...)
	default:
		i.Log.Warn("failed to list directory", fields...)
	}
}
