// Copyright 2026 © The Flowgate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/jllopis/flowgate/pkg/errors"
	"github.com/jllopis/flowgate/pkg/history"
)

func (a *app) runHistory(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("history", flag.ContinueOnError)
	flags.SetOutput(a.stderr)
	builder := flags.String("builder", "", "Filter by builder login")
	repo := flags.String("repo", "", "Filter by repository")
	status := flags.String("status", "", "Filter by result: pass or fail")
	limit := flags.Int("limit", 20, "Maximum number of runs")
	if err := flags.Parse(args); err != nil {
		return NewInvalidArgumentError("history", err.Error())
	}
	if *limit < 0 {
		return NewInvalidArgumentError("limit", "must be zero or positive")
	}

	filter := history.Filter{Builder: *builder, Repo: *repo, Limit: *limit}
	switch *status {
	case "":
	case "pass", "fail":
		passed := *status == "pass"
		filter.Passed = &passed
	default:
		return NewInvalidArgumentError("status", fmt.Sprintf("unknown status %q; use pass or fail", *status))
	}

	store, err := history.OpenSQLite(a.cfg.History.Path)
	if err != nil {
		return errors.New(errors.CodeConfig, "open history store", err).
			WithContext("path", a.cfg.History.Path)
	}
	defer store.Close()

	records, err := store.List(ctx, filter)
	if err != nil {
		return err
	}

	if a.global.JSON {
		if records == nil {
			records = []history.Record{}
		}
		return a.printJSON(records)
	}
	if len(records) == 0 {
		fmt.Fprintln(a.stdout, "No runs recorded.")
		return nil
	}

	w := newTabWriter(a.stdout)
	writeRow(w, "CREATED", "BUILDER", "REPO", "RESULT", "ACCURACY", "ID", "TEXT")
	for _, rec := range records {
		result := "FAIL"
		if rec.Passed {
			result = "PASS"
		}
		accuracy := ""
		if rec.Accuracy != nil {
			accuracy = strconv.FormatFloat(*rec.Accuracy, 'f', 2, 64) + "%"
		}
		text := rec.Text
		if rec.Fault != "" {
			text = rec.Fault
		}
		writeRow(w, formatTime(rec.CreatedAt), rec.Builder, rec.Repo, result, accuracy, rec.ID, truncateMessage(text, 60))
	}
	return w.Flush()
}
