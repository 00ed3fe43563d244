// Copyright (C) 2020 The dcwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package app_test

import (
	"context"
	"io/ioutil"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codeactual/dcwatch/internal/app"
	"github.com/codeactual/dcwatch/internal/cage/testkit"
	"github.com/codeactual/dcwatch/internal/dcwatch"
)

func TestServeMetrics(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	reg := app.NewRegistry()
	m, err := dcwatch.NewMetrics(reg)
	require.NoError(t, err)
	m.Watches.Set(3)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := app.ServeMetrics(ctx, testkit.NewZapLogger(), addr, reg)

	var body string
	require.Eventually(t, func() bool {
		resp, getErr := http.Get("http://" + addr + "/metrics")
		if getErr != nil {
			return false
		}
		defer resp.Body.Close()
		b, readErr := ioutil.ReadAll(resp.Body)
		if readErr != nil {
			return false
		}
		body = string(b)
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	require.True(t, strings.Contains(body, "dcwatch_watches 3"), body)
	require.True(t, strings.Contains(body, "go_goroutines"), body)

	cancel()
	require.NoError(t, <-errCh)
}
