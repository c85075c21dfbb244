// Copyright 2026 © The Flowgate Authors
// SPDX-License-Identifier: Apache-2.0

// Package notify delivers gate reports to webhooks, Discord and local writers.
package notify

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/jllopis/flowgate/pkg/resilience"
)

// Status values carried in a Notification.
const (
	StatusPass = "pass"
	StatusFail = "fail"
)

// StatusFor maps a verdict to its wire status.
func StatusFor(passed bool) string {
	if passed {
		return StatusPass
	}
	return StatusFail
}

// Notification is the payload handed to every sink. Its JSON form is the
// webhook body consumed by the downstream automation.
type Notification struct {
	Status      string `json:"status"`
	BuilderName string `json:"builder_name"`
	DiscordID   string `json:"discord_id"`
	TestResults string `json:"test_results"`
	Repo        string `json:"repo"`
	RunID       string `json:"run_id,omitempty"`
}

// Passed reports whether the notification carries a passing verdict.
func (n Notification) Passed() bool {
	return n.Status == StatusPass
}

// Sink delivers a notification somewhere.
type Sink interface {
	Deliver(ctx context.Context, n Notification) error
	Name() string
}

// Multi delivers to every sink in order. All sinks are attempted; their
// errors are joined.
type Multi []Sink

// Deliver implements Sink.
func (m Multi) Deliver(ctx context.Context, n Notification) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Deliver(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Name implements Sink.
func (m Multi) Name() string {
	names := make([]string, len(m))
	for i, sink := range m {
		names[i] = sink.Name()
	}
	return "multi(" + strings.Join(names, ",") + ")"
}

// Discard drops every notification.
type Discard struct{}

// Deliver implements Sink.
func (Discard) Deliver(context.Context, Notification) error { return nil }

// Name implements Sink.
func (Discard) Name() string { return "none" }

// WithBreaker guards sink with a circuit breaker.
func WithBreaker(sink Sink, cb *resilience.CircuitBreaker) Sink {
	return &breakerSink{next: sink, cb: cb}
}

type breakerSink struct {
	next Sink
	cb   *resilience.CircuitBreaker
}

func (b *breakerSink) Deliver(ctx context.Context, n Notification) error {
	return b.cb.Call(ctx, func(ctx context.Context) error {
		return b.next.Deliver(ctx, n)
	})
}

func (b *breakerSink) Name() string { return b.next.Name() }
