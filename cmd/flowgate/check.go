// Copyright 2026 © The Flowgate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/jllopis/flowgate/pkg/errors"
	"github.com/jllopis/flowgate/pkg/gate"
	"github.com/jllopis/flowgate/pkg/history"
)

func (a *app) runCheck(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	path := fs.String("path", a.cfg.Workflow.Path, "Path to the workflow JSON/YAML file")
	response := fs.String("response", a.cfg.Workflow.Response, "Agent response to score")
	expected := fs.String("expected", a.cfg.Workflow.Expected, "Expected answer keywords")
	sinkName := fs.String("sink", a.cfg.Notify.Sink, "Delivery sink: webhook, discord, stdout, none")
	if err := fs.Parse(args); err != nil {
		return NewInvalidArgumentError("check", err.Error())
	}
	if fs.NArg() > 0 {
		return NewInvalidArgumentError("check", fmt.Sprintf("unexpected args: %v", fs.Args()))
	}

	a.cfg.Notify.Sink = *sinkName
	if err := a.cfg.Validate(); err != nil {
		return NewConfigError(err, "")
	}
	sink, err := a.newSink(*sinkName, a.stdout)
	if err != nil {
		return NewConfigError(err, "")
	}

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

	runner := a.newRunner(gate.Request{Path: *path, Response: *response, Expected: *expected}, sink, runStore)
	out, err := runner.Run(ctx)
	if errors.IsCode(err, errors.CodeContextLost) {
		return err
	}

	if a.global.JSON {
		if jsonErr := a.printJSON(out); jsonErr != nil {
			return jsonErr
		}
	} else {
		a.printVerdict(out)
	}
	if err != nil {
		NewDeliveryError(err, out.Sink).Print(a.stderr, a.global.JSON)
	}
	if !out.Passed() {
		return exitCode(1)
	}
	return nil
}

// printVerdict prints a summary line. The report text follows unless the
// stdout sink already printed it.
func (a *app) printVerdict(out gate.Outcome) {
	verdict := color.New(color.FgRed, color.Bold).Sprint("FAIL")
	if out.Passed() {
		verdict = color.New(color.FgGreen, color.Bold).Sprint("PASS")
	}
	fmt.Fprintf(a.stdout, "flowgate: %s %s on %s (%d checks, %s, sink %s)\n",
		verdict, out.Metadata.Builder, out.Metadata.Repo, len(out.Report.Results), out.Duration.Round(time.Microsecond), out.Sink)
	if out.Sink != "stdout" {
		fmt.Fprintln(a.stdout, out.Report.Text)
	}
}
