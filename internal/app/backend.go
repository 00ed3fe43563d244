// Copyright (C) 2020 The dcwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package app

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/codeactual/dcwatch/internal/dcache"
	"github.com/codeactual/dcwatch/internal/dcwatch"
	"github.com/codeactual/dcwatch/internal/localfs"
)

// CloseTimeout bounds Backend.Close during shutdown.
const CloseTimeout = 10 * time.Second

// Backend provides the subscriptions and the notification stream of one source.
type Backend interface {
	dcwatch.Subscriber

	// Open starts the notification stream. Call it after watches are installed.
	Open(ctx context.Context) (dcwatch.Source, error)

	// Close ends the stream and releases every watch.
	Close(ctx context.Context) error
}

// NewBackend connects to the configured source.
//
// For dCache a new channel is created, so the caller must Close the backend to
// delete it.
func NewBackend(ctx context.Context, log *zap.Logger, cfg dcwatch.Config) (Backend, error) {
	switch cfg.Source {
	case dcwatch.SourceLocal:
		src, err := localfs.New(log, localfs.DefaultDebounce)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return &localBackend{Source: src}, nil
	case dcwatch.SourceDcache:
		client, err := dcache.New(log, dcache.Config{
			Endpoint:          cfg.Endpoint,
			NamespaceEndpoint: cfg.NamespaceEndpoint,
			User:              cfg.User,
			Password:          cfg.Password,
			CACert:            cfg.CACert,
			Insecure:          cfg.Insecure,
			RequestsPerSecond: cfg.RequestsPerSecond,
		})
		if err != nil {
			return nil, errors.WithStack(err)
		}
		ch, err := client.CreateChannel(ctx)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return &dcacheBackend{Channel: ch}, nil
	}
	return nil, errors.Errorf("unknown source [%s]", cfg.Source)
}

type dcacheBackend struct {
	*dcache.Channel

	stream *dcache.Stream
}

func (b *dcacheBackend) Open(ctx context.Context) (dcwatch.Source, error) {
	s, err := b.Channel.Open(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	b.stream = s
	return s, nil
}

// Close deletes the channel, which also ends its subscriptions server-side.
func (b *dcacheBackend) Close(ctx context.Context) error {
	if b.stream != nil {
		_ = b.stream.Close()
	}
	return errors.WithStack(b.Channel.Delete(ctx))
}

type localBackend struct {
	*localfs.Source
}

func (b *localBackend) Open(context.Context) (dcwatch.Source, error) {
	return b.Source, nil
}

func (b *localBackend) Close(context.Context) error {
	return errors.WithStack(b.Source.Close())
}

var (
	_ Backend = (*dcacheBackend)(nil)
	_ Backend = (*localBackend)(nil)
)
