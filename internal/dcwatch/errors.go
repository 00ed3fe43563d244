// Copyright (C) 2020 The dcwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package dcwatch

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrUnknownWatch is returned by WatchTable.Resolve for an id that is not installed.
	ErrUnknownWatch = errors.New("unknown watch")

	// ErrMalformedNotification describes a notification which was only partially usable.
	ErrMalformedNotification = errors.New("malformed notification")

	// ErrNoWatches indicates that no watch survived installation.
	ErrNoWatches = errors.New("no watch could be installed")

	// ErrStreamClosed indicates the notification stream ended.
	ErrStreamClosed = errors.New("notification stream closed")
)

// RejectedError indicates the server declined a subscription or listing request.
type RejectedError struct {
	// Op is "install" or "list".
	Op string

	Path string

	// Status is the HTTP status code.
	Status int

	// Message is the human-readable reason supplied by the server.
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s [%s] rejected with status [%d]: %s", e.Op, e.Path, e.Status, e.Message)
}

// TransportError indicates a network-level failure of a subscription or listing request.
type TransportError struct {
	// Op is "install" or "list".
	Op string

	Path string

	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s [%s] failed: %s", e.Op, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRejected returns true if err is, or wraps, a *RejectedError.
func IsRejected(err error) bool {
	var r *RejectedError
	return errors.As(err, &r)
}

// IsTransport returns true if err is, or wraps, a *TransportError.
func IsTransport(err error) bool {
	var t *TransportError
	return errors.As(err, &t)
}
