// Copyright (C) 2020 The dcwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package dcwatch

import (
	"context"

	"github.com/davecgh/go-spew/spew"
	"go.uber.org/zap"

	cage_zap "github.com/codeactual/dcwatch/internal/cage/log/zap"
)

// Classifier turns one raw notification into zero or more semantic events, and applies
// the watch-table mutations the notification implies.
//
// It is not safe for concurrent use.
type Classifier struct {
	// Table resolves watch ids to paths.
	Table *WatchTable

	// Moves pairs move halves.
	Moves *MoveCorrelator

	// Installer adds watches for new directories in recursive mode.
	Installer *Installer

	// Recursive enables watch installation for new directories and root suppression.
	Recursive bool

	// Roots holds the normalized, requested root paths.
	Roots map[string]bool

	// Log receives debug/info-level messages.
	Log *zap.Logger

	// Metrics is optional.
	Metrics *Metrics

	// detached holds, per cookie, the watches of a directory whose MovedFrom half awaits
	// its counterpart.
	detached map[int][]WatchEntry
}

// Classify processes one notification. now is the notification's position in the stream.
//
// Events from move halves which expired at this tick are returned before the
// notification's own event.
func (c *Classifier) Classify(ctx context.Context, n RawNotification, now uint64) (events []Event) {
	action, actionCount := n.Mask.Action()
	isDir := n.Mask.Has(IsDirectory)

	if actionCount > 1 {
		c.Log.Warn(
			"notification has multiple actions, using the last",
			cage_zap.Tag("classify"),
			zap.Error(ErrMalformedNotification),
			zap.Strings("mask", n.Mask.Strings()),
			zap.String("action", action.String()),
		)
	}

	// Every non-move notification is a tick of the move-expiry clock, including those
	// dropped below.
	if !action.IsMoveHalf() {
		events = append(events, c.expire(ctx, now)...)
	}

	if actionCount == 0 {
		c.Log.Debug(
			"notification has no action",
			cage_zap.Tag("classify"),
			zap.Error(ErrMalformedNotification),
			zap.String("dump", spew.Sdump(n)),
		)
		return events
	}

	dir, err := c.Table.Resolve(n.Watch)
	if err != nil {
		c.Metrics.unknownWatch()
		logf := c.Log.Warn
		if action == Ignored { // expected after a subtree was forgotten
			logf = c.Log.Debug
		}
		logf(
			"dropped notification for unknown watch",
			cage_zap.Tag("classify"),
			zap.String("watch", string(n.Watch)),
			zap.Strings("mask", n.Mask.Strings()),
			zap.String("name", n.Name),
		)
		return events
	}

	path := dir
	if n.HasName {
		path = JoinPath(dir, n.Name)
	}

	// The subscription was invalidated server-side and will never deliver again.
	if action == Ignored && (isDir || !n.HasName) {
		c.Table.Remove(n.Watch)
		c.Metrics.watches(c.Table.Len())
		c.Log.Info(
			"removed watch",
			cage_zap.Tag("classify"),
			zap.String("watch", string(n.Watch)),
			zap.String("path", dir),
		)
		if c.Table.IsEmpty() {
			c.Log.Warn("no watches remain", cage_zap.Tag("classify"))
		}
	}

	if !n.HasName && c.Recursive && c.Roots[dir] {
		c.Log.Debug(
			"suppressed notification about a root",
			cage_zap.Tag("classify"),
			zap.String("path", dir),
			zap.String("action", action.String()),
		)
		return events
	}

	// Watch the new directory before anything else is dispatched so its own activity
	// is not missed.
	if action == Created && isDir && c.Recursive && c.Installer != nil {
		if err := c.Installer.InstallRecursive(ctx, path); err != nil {
			c.Log.Info("new directory install interrupted", cage_zap.Tag("classify"), zap.Error(err))
		}
	}

	if action.IsMoveHalf() {
		return append(events, c.move(ctx, n, action, path, isDir, now)...)
	}

	// Watches at or below a deleted directory observe nothing at that path anymore.
	if action == Deleted && isDir && n.HasName {
		c.forget(path, "directory deleted")
	}

	switch {
	case isDir && action == Created:
		return append(events, Event{Op: NewDirectory, Path: dirPath(path)})
	case isDir && action == Deleted:
		return append(events, Event{Op: DeletedDirectory, Path: dirPath(path)})
	case isDir && (action == Ignored || action == DeletedSelf || action == MoveSelf):
		return events
	case !isDir && action == ClosedAfterWrite:
		return append(events, Event{Op: NewFile, Path: path})
	case !isDir && action == Deleted:
		return append(events, Event{Op: DeletedFile, Path: path})
	case !isDir && (action == Ignored || action == DeletedSelf || action == Created):
		return events
	}

	c.Log.Debug(
		"unhandled action",
		cage_zap.Tag("classify"),
		zap.String("path", path),
		zap.String("action", action.String()),
		zap.Bool("isDir", isDir),
	)
	return events
}

func (c *Classifier) move(ctx context.Context, n RawNotification, half Flag, path string, isDir bool, now uint64) []Event {
	if isDir {
		path = dirPath(path)
	}

	if n.Cookie == nil {
		c.Log.Warn(
			"move notification has no cookie, treating it as unpaired",
			cage_zap.Tag("classify"),
			zap.Error(ErrMalformedNotification),
			zap.String("path", path),
			zap.String("action", half.String()),
		)
		if half == MovedFrom && isDir {
			c.forget(path, "directory moved away")
		}
		return c.demote(ctx, PendingMove{Path: path, Half: half, IsDir: isDir})
	}

	res := c.Moves.Observe(*n.Cookie, path, half, isDir, now)
	if !res.Paired {
		c.Log.Debug(
			"buffered move half",
			cage_zap.Tag("classify"),
			zap.Int("cookie", *n.Cookie),
			zap.String("path", path),
			zap.String("action", half.String()),
		)
		// Until the counterpart arrives the directory is at no known path.
		if half == MovedFrom && isDir {
			if removed := c.Table.RemoveTree(path); len(removed) > 0 {
				if c.detached == nil {
					c.detached = map[int][]WatchEntry{}
				}
				c.detached[*n.Cookie] = append(c.detached[*n.Cookie], removed...)
				c.Metrics.watches(c.Table.Len())
			}
		}
		return nil
	}

	c.Metrics.movePaired()

	if !isDir {
		return []Event{{Op: MovedFile, Path: res.From, To: res.To}}
	}

	// A buffered MovedFrom half already took its watches out of the table.
	var rebased int
	if half == MovedFrom {
		rebased = c.Table.Rebase(res.From, res.To)
	} else {
		from := NormalizePath(res.From)
		for _, e := range c.detached[*n.Cookie] {
			if e.Path == from || IsDescendant(e.Path, from) {
				c.Table.Install(e.ID, RebasePath(e.Path, from, res.To))
				rebased++
			}
		}
		delete(c.detached, *n.Cookie)
	}

	if rebased > 0 {
		c.Metrics.watches(c.Table.Len())
		c.Log.Info(
			"rebased watches after directory move",
			cage_zap.Tag("classify"),
			zap.String("from", res.From),
			zap.String("to", res.To),
			zap.Int("count", rebased),
		)
	}
	return []Event{{Op: MovedDirectory, Path: res.From, To: res.To}}
}

// expire demotes every move half whose window closed at or before now.
func (c *Classifier) expire(ctx context.Context, now uint64) (events []Event) {
	for _, p := range c.Moves.ExpireUpTo(now) {
		c.Metrics.moveExpired()
		c.Log.Debug(
			"move half expired",
			cage_zap.Tag("classify"),
			zap.Int("cookie", p.Cookie),
			zap.String("path", p.Path),
			zap.String("action", p.Half.String()),
		)
		if p.Half == MovedFrom && p.IsDir {
			if gone := c.detached[p.Cookie]; len(gone) > 0 {
				c.Log.Info(
					"forgot watches of directory moved away",
					cage_zap.Tag("classify"),
					zap.String("path", p.Path),
					zap.Int("count", len(gone)),
				)
			}
			delete(c.detached, p.Cookie)
		}
		events = append(events, c.demote(ctx, p)...)
	}
	return events
}

// demote converts an unpaired move half into a plain create/delete.
//
// A directory moved in from outside the watched tree is covered like a new one.
func (c *Classifier) demote(ctx context.Context, p PendingMove) []Event {
	if p.Half == MovedTo && p.IsDir && c.Recursive && c.Installer != nil {
		if err := c.Installer.InstallRecursive(ctx, NormalizePath(p.Path)); err != nil {
			c.Log.Info("moved-in directory install interrupted", cage_zap.Tag("classify"), zap.Error(err))
		}
	}
	return []Event{p.Demote()}
}

// forget removes the watches at or below path.
func (c *Classifier) forget(path, reason string) {
	removed := c.Table.RemoveTree(path)
	if len(removed) == 0 {
		return
	}
	c.Metrics.watches(c.Table.Len())
	c.Log.Info(
		"forgot watches",
		cage_zap.Tag("classify"),
		zap.String("path", NormalizePath(path)),
		zap.String("reason", reason),
		zap.Int("count", len(removed)),
	)
}

// dirPath appends the separator which marks directory paths in events.
func dirPath(p string) string {
	if p == Separator {
		return p
	}
	return p + Separator
}
