// Copyright (C) 2020 The dcwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package dcache is a client of the dCache frontend REST API: event channels, inotify
// subscriptions, and namespace listings.
package dcache

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	cage_zap "github.com/codeactual/dcwatch/internal/cage/log/zap"
	"github.com/codeactual/dcwatch/internal/dcwatch"
)

const (
	// maxErrorBody bounds how much of a failed response is read for its message.
	maxErrorBody = 64 * 1024

	fileTypeDir = "DIR"
)

// Config holds the connection settings.
type Config struct {
	// Endpoint is the events endpoint, e.g. "https://frontend.example.org:3880/api/v1/events".
	Endpoint string

	// NamespaceEndpoint is the namespace endpoint, e.g. "https://frontend.example.org:3880/api/v1/namespace".
	NamespaceEndpoint string

	User     string
	Password string

	// CACert is an optional PEM bundle file added to the system pool.
	CACert string

	// Insecure disables server certificate verification.
	Insecure bool

	// RequestsPerSecond throttles subscription and listing requests. Zero is unlimited.
	RequestsPerSecond float64

	// HTTPClient, if set, replaces the client built from the TLS settings.
	HTTPClient *http.Client
}

// Client performs requests against one dCache frontend.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// New returns a Client.
func New(log *zap.Logger, cfg Config) (*Client, error) {
	log = cage_zap.OrNop(log)
	if cfg.Endpoint == "" {
		return nil, errors.New("events endpoint is required")
	}
	if cfg.NamespaceEndpoint == "" {
		ns, err := dcwatch.NamespaceEndpointFor(cfg.Endpoint)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		cfg.NamespaceEndpoint = ns
	}
	cfg.Endpoint = strings.TrimSuffix(cfg.Endpoint, "/")
	cfg.NamespaceEndpoint = strings.TrimSuffix(cfg.NamespaceEndpoint, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		tlsConfig, err := newTLSConfig(cfg)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = tlsConfig

		// no overall timeout: the event stream is a single long-lived response
		httpClient = &http.Client{Transport: transport}
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		cfg:     cfg,
		http:    httpClient,
		limiter: rate.NewLimiter(limit, 1),
		log:     log,
	}, nil
}

func newTLSConfig(cfg Config) (*tls.Config, error) {
	c := &tls.Config{InsecureSkipVerify: cfg.Insecure}

	if cfg.CACert == "" {
		return c, nil
	}

	pem, err := ioutil.ReadFile(cfg.CACert)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read CA bundle [%s]", cfg.CACert)
	}

	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.Errorf("no certificates found in CA bundle [%s]", cfg.CACert)
	}
	c.RootCAs = pool

	return c, nil
}

// Channel is one server-side event channel which aggregates subscriptions.
type Channel struct {
	// URL is the channel location returned by the server.
	URL string

	client *Client
}

// CreateChannel asks the server for a new event channel.
func (c *Client) CreateChannel(ctx context.Context) (*Channel, error) {
	resp, err := c.do(ctx, http.MethodPost, c.cfg.Endpoint+"/channels", nil, "")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create channel at [%s]", c.cfg.Endpoint)
	}
	defer closeBody(resp)

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, errors.WithStack(rejected("channel", c.cfg.Endpoint, resp))
	}

	loc, err := resp.Location()
	if err != nil {
		return nil, errors.Wrap(err, "channel response has no location")
	}

	c.log.Info("created channel", cage_zap.Tag("dcache"), zap.String("channel", loc.String()))

	return &Channel{URL: loc.String(), client: c}, nil
}

// ListChildren returns the immediate children of a namespace directory.
func (c *Client) ListChildren(ctx context.Context, p string) ([]dcwatch.Child, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.WithStack(err)
	}

	u := c.cfg.NamespaceEndpoint + (&url.URL{Path: p}).EscapedPath() + "?children=true"

	resp, err := c.do(ctx, http.MethodGet, u, nil, "")
	if err != nil {
		return nil, &dcwatch.TransportError{Op: dcwatch.OpList, Path: p, Err: err}
	}
	defer closeBody(resp)

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, rejected(dcwatch.OpList, p, resp)
	}

	var listing struct {
		Children []struct {
			FileName string `json:"fileName"`
			FileType string `json:"fileType"`
		} `json:"children"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, &dcwatch.TransportError{Op: dcwatch.OpList, Path: p, Err: errors.Wrap(err, "failed to decode listing")}
	}

	children := make([]dcwatch.Child, 0, len(listing.Children))
	for _, entry := range listing.Children {
		children = append(children, dcwatch.Child{Name: entry.FileName, IsDir: entry.FileType == fileTypeDir})
	}
	return children, nil
}

// InstallWatch subscribes the channel to inotify events of one directory.
//
// The subscription URL returned by the server is the watch id.
func (ch *Channel) InstallWatch(ctx context.Context, p string) (dcwatch.WatchID, error) {
	if err := ch.client.limiter.Wait(ctx); err != nil {
		return "", errors.WithStack(err)
	}

	body, err := json.Marshal(map[string]string{"path": p})
	if err != nil {
		return "", errors.WithStack(err)
	}

	resp, err := ch.client.do(ctx, http.MethodPost, ch.URL+"/subscriptions/inotify", bytes.NewReader(body), "application/json")
	if err != nil {
		return "", &dcwatch.TransportError{Op: dcwatch.OpInstall, Path: p, Err: err}
	}
	defer closeBody(resp)

	if resp.StatusCode >= http.StatusBadRequest {
		return "", rejected(dcwatch.OpInstall, p, resp)
	}

	loc, err := resp.Location()
	if err != nil {
		return "", &dcwatch.TransportError{Op: dcwatch.OpInstall, Path: p, Err: errors.Wrap(err, "subscription response has no location")}
	}

	return dcwatch.WatchID(loc.String()), nil
}

// ListChildren delegates to the client so a Channel is a complete dcwatch.Subscriber.
func (ch *Channel) ListChildren(ctx context.Context, p string) ([]dcwatch.Child, error) {
	return ch.client.ListChildren(ctx, p)
}

// Delete removes the channel and, server-side, all of its subscriptions.
func (ch *Channel) Delete(ctx context.Context) error {
	resp, err := ch.client.do(ctx, http.MethodDelete, ch.URL, nil, "")
	if err != nil {
		return errors.Wrapf(err, "failed to delete channel [%s]", ch.URL)
	}
	defer closeBody(resp)

	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode != http.StatusNotFound {
		return errors.WithStack(rejected("delete", ch.URL, resp))
	}

	ch.client.log.Info("deleted channel", cage_zap.Tag("dcache"), zap.String("channel", ch.URL))
	return nil
}

// Open connects to the channel's event stream.
//
// The connection lives until ctx is done or the returned Stream is closed.
func (ch *Channel) Open(ctx context.Context) (*Stream, error) {
	req, err := ch.client.newRequest(ctx, http.MethodGet, ch.URL, nil, "")
	if err != nil {
		return nil, errors.WithStack(err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := ch.client.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to channel [%s]", ch.URL)
	}

	if resp.StatusCode != http.StatusOK {
		defer closeBody(resp)
		return nil, errors.WithStack(rejected("stream", ch.URL, resp))
	}

	ch.client.log.Info("connected to event stream", cage_zap.Tag("dcache"), zap.String("channel", ch.URL))

	return newStream(ch.client.log, resp.Body), nil
}

func (c *Client) newRequest(ctx context.Context, method, u string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create request [%s %s]", method, u)
	}
	if c.cfg.User != "" {
		req.SetBasicAuth(c.cfg.User, c.cfg.Password)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, u string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := c.newRequest(ctx, method, u, body, contentType)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	c.log.Debug("request", cage_zap.Tag("dcache"), zap.String("method", method), zap.String("url", u))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "request failed [%s %s]", method, u)
	}
	return resp, nil
}

// rejected converts a failed response to a *dcwatch.RejectedError.
func rejected(op, p string, resp *http.Response) *dcwatch.RejectedError {
	return &dcwatch.RejectedError{
		Op:      op,
		Path:    p,
		Status:  resp.StatusCode,
		Message: errorMessage(resp),
	}
}

// errorMessage extracts the human-readable reason from a failed response.
//
// dCache replies with {"errors":[{"message":...}]} or a problem document with a
// title/detail. Other bodies are used verbatim, and an empty body falls back to
// the status text.
func errorMessage(resp *http.Response) string {
	body, _ := ioutil.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var doc struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &doc) == nil {
		var msgs []string
		for _, e := range doc.Errors {
			if e.Message != "" {
				msgs = append(msgs, e.Message)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
		if doc.Detail != "" {
			return doc.Detail
		}
		if doc.Title != "" {
			return doc.Title
		}
	}

	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

func closeBody(resp *http.Response) {
	_, _ = io.Copy(ioutil.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}

var _ dcwatch.Subscriber = (*Channel)(nil)
