// Copyright 2026 © The Flowgate Authors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

// WriterSink prints notifications to a writer as coloured text or JSON lines.
type WriterSink struct {
	mu   sync.Mutex
	w    io.Writer
	json bool
}

// NewWriterSink creates a text sink. Colour follows fatih/color's terminal
// detection.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// NewJSONWriterSink creates a sink writing one JSON object per notification.
func NewJSONWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w, json: true}
}

// Name implements Sink.
func (s *WriterSink) Name() string { return "stdout" }

// Deliver implements Sink.
func (s *WriterSink) Deliver(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.json {
		return json.NewEncoder(s.w).Encode(n)
	}

	verdict := color.New(color.FgRed, color.Bold).Sprint("FAIL")
	if n.Passed() {
		verdict = color.New(color.FgGreen, color.Bold).Sprint("PASS")
	}
	target := n.DiscordID
	if target == "" {
		target = "-"
	}
	_, err := fmt.Fprintf(s.w, "%s %s on %s (notify %s)\n%s\n", verdict, n.BuilderName, n.Repo, target, n.TestResults)
	return err
}
