// Copyright 2026 © The Flowgate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jllopis/flowgate/pkg/ci"
	"github.com/jllopis/flowgate/pkg/config"
	"github.com/jllopis/flowgate/pkg/eval"
	"github.com/jllopis/flowgate/pkg/gate"
	"github.com/jllopis/flowgate/pkg/history"
	"github.com/jllopis/flowgate/pkg/notify"
	"github.com/jllopis/flowgate/pkg/resilience"
)

// newSink builds the configured delivery sink. The stdout sink writes to w;
// it is silent in JSON mode, where the outcome itself carries the payload.
func (a *app) newSink(name string, w io.Writer) (notify.Sink, error) {
	n := a.cfg.Notify
	retry, timeout := a.deliveryPolicy()

	switch name {
	case "webhook":
		return notify.NewWebhookSink(n.WebhookURL,
			notify.WithHTTPClient(&http.Client{}),
			notify.WithRetry(retry),
			notify.WithAttemptTimeout(timeout),
			notify.WithLogger(a.logger),
		), nil
	case "discord":
		return notify.NewDiscordSink(n.DiscordWebhookURL, &http.Client{},
			notify.WithDiscordRetry(retry),
			notify.WithDiscordAttemptTimeout(timeout),
		)
	case "stdout":
		if a.global.JSON {
			return notify.Discard{}, nil
		}
		return notify.NewWriterSink(w), nil
	case "none":
		return notify.Discard{}, nil
	default:
		return nil, fmt.Errorf("unknown notify sink %q", name)
	}
}

// deliveryPolicy returns the retry policy and per-attempt timeout shared by
// the network sinks.
func (a *app) deliveryPolicy() (resilience.RetryConfig, time.Duration) {
	n := a.cfg.Notify
	return resilience.DefaultRetryConfig().WithMaxAttempts(n.MaxAttempts),
		time.Duration(n.TimeoutSeconds) * time.Second
}

// openHistory opens the run store when history is enabled.
func openHistory(cfg config.HistoryConfig) (*history.SQLiteStore, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	return history.OpenSQLite(cfg.Path)
}

func (a *app) directory() ci.Directory {
	return ci.Directory{
		Users:    a.cfg.Identity.Users,
		Fallback: a.cfg.Identity.DevopsRoleID,
		Logger:   a.logger,
	}
}

func (a *app) newRunner(req gate.Request, sink notify.Sink, store history.Store) *gate.Runner {
	opts := []gate.Option{
		gate.WithAggregator(eval.NewAggregator(a.cfg.Eval.Engine())),
		gate.WithDirectory(a.directory()),
		gate.WithEnv(a.lookup),
		gate.WithSink(sink),
		gate.WithMetrics(a.metrics),
		gate.WithLogger(a.logger),
	}
	if store != nil {
		opts = append(opts, gate.WithHistory(store))
	}
	return gate.NewRunner(req, opts...)
}
