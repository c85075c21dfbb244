// Copyright 2026 © The Flowgate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"log/slog"
	"time"

	"github.com/jllopis/flowgate/pkg/errors"
	"github.com/jllopis/flowgate/pkg/gate"
	"github.com/jllopis/flowgate/pkg/history"
	"github.com/jllopis/flowgate/pkg/notify"
	"github.com/jllopis/flowgate/pkg/resilience"
	"github.com/jllopis/flowgate/pkg/workflow"
)

// runWatch re-evaluates the workflow every time its file changes, until the
// context is cancelled. Verdicts are printed and delivered but never change
// the exit status.
func (a *app) runWatch(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("watch", flag.ContinueOnError)
	flags.SetOutput(a.stderr)
	path := flags.String("path", a.cfg.Workflow.Path, "Path to the workflow JSON/YAML file")
	interval := flags.Duration("interval", 2*time.Second, "Polling interval")
	response := flags.String("response", a.cfg.Workflow.Response, "Agent response to score")
	expected := flags.String("expected", a.cfg.Workflow.Expected, "Expected answer keywords")
	if err := flags.Parse(args); err != nil {
		return NewInvalidArgumentError("watch", err.Error())
	}
	if *interval <= 0 {
		return NewInvalidArgumentError("interval", "must be positive")
	}

	sink, err := a.newSink(a.cfg.Notify.Sink, a.stdout)
	if err != nil {
		return NewConfigError(err, "")
	}
	sink = notify.WithBreaker(sink, resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:     sink.Name(),
		Cooldown: time.Minute,
	}))

	store, err := openHistory(a.cfg.History)
	if err != nil {
		return errors.New(errors.CodeConfig, "open history store", err).
			WithContext("path", a.cfg.History.Path)
	}
	var runStore history.Store
	if store != nil {
		defer store.Close()
		runStore = store
	}

	watcher, err := workflow.NewWatcher(*path,
		workflow.WithWatchInterval(*interval),
		workflow.WithWatchLogger(a.logger),
	)
	if err != nil {
		return workflowError(*path, err)
	}

	// Reloads are queued and evaluated on this goroutine; a newer graph
	// replaces one that has not been picked up yet.
	changes := make(chan *workflow.Graph, 1)
	watcher.OnChange(func(g *workflow.Graph) {
		select {
		case <-changes:
		default:
		}
		changes <- g
	})
	watcher.Start(ctx)
	defer watcher.Stop()

	runner := a.newRunner(gate.Request{Path: *path, Response: *response, Expected: *expected}, sink, runStore)
	a.logger.Info("watching workflow", slog.String("path", *path), slog.Duration("interval", *interval))

	if !a.evaluate(ctx, runner, watcher.Graph()) {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case g := <-changes:
			if !a.evaluate(ctx, runner, g) {
				return nil
			}
		}
	}
}

// evaluate runs one gate pass and prints the verdict. It reports false once
// the context is gone.
func (a *app) evaluate(ctx context.Context, runner *gate.Runner, g *workflow.Graph) bool {
	out, err := runner.RunGraph(ctx, g)
	if errors.IsCode(err, errors.CodeContextLost) {
		return false
	}
	if a.global.JSON {
		if jsonErr := a.printJSON(out); jsonErr != nil {
			a.logger.Warn("print outcome failed", slog.String("error", jsonErr.Error()))
		}
	} else {
		a.printVerdict(out)
	}
	if err != nil {
		NewDeliveryError(err, out.Sink).Print(a.stderr, a.global.JSON)
	}
	return true
}
