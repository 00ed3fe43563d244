// Copyright (C) 2020 The dcwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package dcwatch

import (
	"net/url"
	"os/user"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	std_viper "github.com/spf13/viper"
)

const (
	// DefaultEndpoint is the default Config.Endpoint value.
	DefaultEndpoint = "https://prometheus.desy.de:3880/api/v1/events"

	// DefaultCmdTimeout is the default ExecConfig.Timeout value.
	DefaultCmdTimeout = "15m"

	// DefaultUnarchiveInclude is the default UnarchiveConfig.Include value.
	DefaultUnarchiveInclude = "**/*.zip"

	SourceDcache = "dcache"
	SourceLocal  = "local"

	ActivityPrint     = "print"
	ActivityExec      = "exec"
	ActivityUnarchive = "unarchive"
	ActivityNone      = "none"
)

// ExecConfig defines the commands run by the exec activity.
//
// Its config section is Exec. Each command is a text/template string expanded with
// activity.TemplateData. An empty command skips that kind of event.
type ExecConfig struct {
	NewFile          string `mapstructure:"new_file"`
	DeletedFile      string `mapstructure:"deleted_file"`
	MovedFile        string `mapstructure:"moved_file"`
	NewDirectory     string `mapstructure:"new_directory"`
	DeletedDirectory string `mapstructure:"deleted_directory"`
	MovedDirectory   string `mapstructure:"moved_directory"`

	// Async runs commands in the background instead of before the next notification.
	Async bool `mapstructure:"async"`

	// Limit caps concurrent background commands. Zero is unlimited.
	Limit int `mapstructure:"limit" validate:"gte=0"`

	// Timeout is a time.Duration compatible string which bounds each command.
	Timeout string `mapstructure:"timeout"`

	// timeout is the parsed version of Timeout.
	timeout time.Duration
}

// GetTimeout returns the parsed value of Timeout.
func (e ExecConfig) GetTimeout() time.Duration {
	return e.timeout
}

// Commands returns the command templates indexed by the event kind they handle.
func (e ExecConfig) Commands() map[Op]string {
	cmds := map[Op]string{}
	for op, c := range map[Op]string{
		NewFile:          e.NewFile,
		DeletedFile:      e.DeletedFile,
		MovedFile:        e.MovedFile,
		NewDirectory:     e.NewDirectory,
		DeletedDirectory: e.DeletedDirectory,
		MovedDirectory:   e.MovedDirectory,
	} {
		if c != "" {
			cmds[op] = c
		}
	}
	return cmds
}

// UnarchiveConfig defines the unarchive activity.
//
// Its config section is Unarchive.
type UnarchiveConfig struct {
	// Cmd extracts one archive. It is expanded like ExecConfig commands.
	Cmd string `mapstructure:"cmd"`

	// Include holds doublestar patterns of archive paths.
	Include []string `mapstructure:"include"`

	// Limit caps concurrent extractions. Zero is unlimited.
	Limit int `mapstructure:"limit" validate:"gte=0"`
}

// Config defines the structure of a config file, its environment variables, and flags.
type Config struct {
	// Source selects the notification source: SourceDcache or SourceLocal.
	Source string `mapstructure:"source" validate:"oneof=dcache local"`

	// Endpoint is the dCache events endpoint, e.g. "https://frontend.example.org:3880/api/v1/events".
	Endpoint string `mapstructure:"endpoint" validate:"required_if=Source dcache,omitempty,url"`

	// NamespaceEndpoint is the dCache namespace endpoint used to list directories.
	//
	// It defaults to Endpoint with its last path segment replaced by "namespace".
	NamespaceEndpoint string `mapstructure:"namespace_endpoint" validate:"omitempty,url"`

	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`

	// CACert is a PEM bundle of additional trusted certificate authorities.
	CACert string `mapstructure:"ca_cert" validate:"omitempty,file"`

	// Insecure disables server certificate verification.
	Insecure bool `mapstructure:"insecure"`

	// RequestsPerSecond throttles subscription and listing requests. Zero is unlimited.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gte=0"`

	// Recursive selects whether whole subtrees are watched.
	Recursive bool `mapstructure:"recursive"`

	// MoveTimeout is how many notifications a move half waits for its counterpart.
	MoveTimeout uint64 `mapstructure:"move_timeout" validate:"gte=1"`

	// Activity selects the reaction to events.
	Activity string `mapstructure:"activity" validate:"oneof=print exec unarchive none"`

	Exec      ExecConfig      `mapstructure:"exec"`
	Unarchive UnarchiveConfig `mapstructure:"unarchive"`

	// MetricsAddr, if set, is the host:port which serves /metrics.
	MetricsAddr string `mapstructure:"metrics_addr" validate:"omitempty,hostname_port"`

	// Roots are the paths to watch.
	Roots []string `mapstructure:"roots" validate:"required,min=1,dive,required"`
}

// ReadConfig converts the merged file/env/flag values of a viper instance to a Config value.
func ReadConfig(v *std_viper.Viper) (c Config, err error) {
	if err = v.Unmarshal(&c); err != nil {
		return Config{}, errors.Wrap(err, "failed to unmarshal config")
	}
	if err = FinalizeConfig(&c); err != nil {
		return Config{}, errors.WithStack(err)
	}
	return c, nil
}

// FinalizeConfig applies defaults, derives computed fields, and validates.
func FinalizeConfig(c *Config) error {
	if c.Source == "" {
		c.Source = SourceDcache
	}
	if c.Activity == "" {
		c.Activity = ActivityPrint
	}
	if c.MoveTimeout == 0 {
		c.MoveTimeout = DefaultMoveTimeout
	}
	if c.Exec.Timeout == "" {
		c.Exec.Timeout = DefaultCmdTimeout
	}
	if len(c.Unarchive.Include) == 0 {
		c.Unarchive.Include = []string{DefaultUnarchiveInclude}
	}

	var timeoutErr error
	c.Exec.timeout, timeoutErr = time.ParseDuration(c.Exec.Timeout)
	if timeoutErr != nil {
		return errors.Wrapf(timeoutErr, "failed to parse exec timeout [%s]", c.Exec.Timeout)
	}

	if c.Source == SourceDcache {
		if c.Endpoint == "" {
			c.Endpoint = DefaultEndpoint
		}
		c.Endpoint = strings.TrimSuffix(c.Endpoint, Separator)
		if c.NamespaceEndpoint == "" {
			ns, err := NamespaceEndpointFor(c.Endpoint)
			if err != nil {
				return errors.WithStack(err)
			}
			c.NamespaceEndpoint = ns
		}
		if c.User == "" {
			u, err := user.Current()
			if err != nil {
				return errors.Wrap(err, "failed to get current user name")
			}
			c.User = u.Username
		}
	}

	for n, r := range c.Roots {
		if c.Source == SourceLocal {
			abs, err := filepath.Abs(r)
			if err != nil {
				return errors.Wrapf(err, "failed to get absolute path of root [%s]", r)
			}
			c.Roots[n] = abs
			continue
		}
		if !strings.HasPrefix(r, Separator) {
			return errors.Errorf("root [%s] must be an absolute namespace path", r)
		}
	}

	switch c.Activity {
	case ActivityExec:
		if len(c.Exec.Commands()) == 0 {
			return errors.New("exec activity requires at least one command in the [exec] section")
		}
	case ActivityUnarchive:
		if c.Unarchive.Cmd == "" {
			return errors.New("unarchive activity requires [unarchive.cmd]")
		}
	}

	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}

	return nil
}

// NamespaceEndpointFor derives the namespace endpoint from an events endpoint by
// replacing the last path segment, e.g. ".../api/v1/events" becomes ".../api/v1/namespace".
func NamespaceEndpointFor(events string) (string, error) {
	u, err := url.Parse(events)
	if err != nil {
		return "", errors.Wrapf(err, "failed to parse endpoint [%s]", events)
	}
	u.Path = path.Join(path.Dir(strings.TrimSuffix(u.Path, Separator)), "namespace")
	return u.String(), nil
}
