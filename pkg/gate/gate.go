// Copyright 2026 © The Flowgate Authors
// SPDX-License-Identifier: Apache-2.0

// Package gate runs the workflow quality gate end to end: it reads CI
// metadata, loads and evaluates the workflow, records the run and delivers
// the report.
package gate

import (
	"context"
	stderrors "errors"
	"io/fs"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/flowgate/pkg/ci"
	"github.com/jllopis/flowgate/pkg/errors"
	"github.com/jllopis/flowgate/pkg/eval"
	"github.com/jllopis/flowgate/pkg/history"
	"github.com/jllopis/flowgate/pkg/notify"
	"github.com/jllopis/flowgate/pkg/telemetry"
	"github.com/jllopis/flowgate/pkg/workflow"
)

// MissingWorkflowText is the report text when the workflow file does not exist.
const MissingWorkflowText = "Error: Workflow JSON file not found in the repository."

// Request is what a run evaluates.
type Request struct {
	Path     string
	Response string
	Expected string
}

// Outcome is the result of one run. The verdict never depends on delivery.
type Outcome struct {
	Metadata     ci.Metadata         `json:"metadata"`
	NotifyID     string              `json:"notify_id"`
	Report       eval.Report         `json:"report"`
	Fault        *errors.Error       `json:"fault,omitempty"`
	Notification notify.Notification `json:"notification"`
	RecordID     string              `json:"record_id,omitempty"`
	Delivered    bool                `json:"delivered"`
	Sink         string              `json:"sink"`
	Duration     time.Duration       `json:"duration_ns"`
}

// Passed reports the verdict.
func (o Outcome) Passed() bool {
	return o.Report.Passed
}

// Runner wires the evaluation engine to its collaborators.
type Runner struct {
	request    Request
	aggregator *eval.Aggregator
	directory  ci.Directory
	lookup     ci.LookupFunc
	sink       notify.Sink
	store      history.Store
	metrics    *telemetry.EvalMetrics
	tracer     trace.Tracer
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithAggregator sets the evaluation engine.
func WithAggregator(a *eval.Aggregator) Option {
	return func(r *Runner) {
		r.aggregator = a
	}
}

// WithDirectory sets the builder to notification id mapping.
func WithDirectory(d ci.Directory) Option {
	return func(r *Runner) {
		r.directory = d
	}
}

// WithEnv sets the environment lookup used for CI metadata.
func WithEnv(lookup ci.LookupFunc) Option {
	return func(r *Runner) {
		r.lookup = lookup
	}
}

// WithSink sets the delivery sink.
func WithSink(s notify.Sink) Option {
	return func(r *Runner) {
		r.sink = s
	}
}

// WithHistory records every run in store.
func WithHistory(store history.Store) Option {
	return func(r *Runner) {
		r.store = store
	}
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *telemetry.EvalMetrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a runner for req. Without options it evaluates with the
// default configuration and discards the report.
func NewRunner(req Request, opts ...Option) *Runner {
	r := &Runner{
		request:    req,
		aggregator: eval.NewAggregator(eval.DefaultConfig()),
		sink:       notify.Discard{},
		tracer:     otel.Tracer("flowgate/gate"),
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.directory.Logger == nil {
		r.directory.Logger = r.logger
	}
	return r
}

// Run loads the workflow file and evaluates it. A missing or unreadable
// workflow yields a failed report that is still recorded and delivered.
// The returned error is a delivery failure or a cancelled context; the
// outcome's verdict is valid in the first case.
func (r *Runner) Run(ctx context.Context) (Outcome, error) {
	graph, err := workflow.LoadGraph(r.request.Path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return r.finish(ctx, nil, errors.New(errors.CodeNotFound, "workflow file not found", err).
				WithContext("path", r.request.Path))
		}
		return r.finish(ctx, nil, errors.New(errors.CodeEvaluationFault, "workflow could not be loaded", err).
			WithContext("path", r.request.Path))
	}
	return r.finish(ctx, graph, nil)
}

// RunGraph evaluates an already loaded graph.
func (r *Runner) RunGraph(ctx context.Context, graph *workflow.Graph) (Outcome, error) {
	if graph == nil {
		graph = &workflow.Graph{}
	}
	return r.finish(ctx, graph, nil)
}

func (r *Runner) finish(ctx context.Context, graph *workflow.Graph, loadErr *errors.Error) (Outcome, error) {
	start := r.now()
	meta := ci.FromEnv(r.lookup)
	notifyID, _ := r.directory.Resolve(meta.Builder)

	ctx, span := r.tracer.Start(ctx, "flowgate.gate.run",
		trace.WithAttributes(telemetry.RunAttributes(meta.RunID, meta.Builder, meta.Repo)...))
	defer span.End()

	out := Outcome{Metadata: meta, NotifyID: notifyID, Sink: r.sink.Name()}
	logger := r.logger.With(slog.String("builder", meta.Builder), slog.String("repo", meta.Repo))
	logger.InfoContext(ctx, "starting workflow check", slog.String("path", r.request.Path))

	fault := loadErr
	if fault == nil {
		span.SetAttributes(telemetry.WorkflowAttributes(r.request.Path, len(graph.Nodes), graph.EdgeCount())...)
		report, err := r.aggregator.Evaluate(ctx, graph, r.request.Response, r.request.Expected)
		if errors.IsCode(err, errors.CodeContextLost) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "cancelled")
			return out, err
		}
		if err != nil {
			fault = errors.As(err)
		} else {
			out.Report = report
		}
	}
	if fault != nil {
		out.Fault = fault
		out.Report = FaultReport(fault)
		span.RecordError(fault)
		span.SetAttributes(telemetry.AttributeFault(fault))
		logger.ErrorContext(ctx, "workflow check fault", slog.String("error", fault.Error()))
	}
	out.Duration = r.now().Sub(start)

	for _, res := range out.Report.Results {
		span.AddEvent("check", trace.WithAttributes(telemetry.ResultAttributes(res)...))
	}
	span.SetAttributes(telemetry.AttributePassed(out.Passed()))
	if fault != nil {
		r.metrics.RecordFault(ctx, fault, out.Duration)
	} else {
		r.metrics.RecordReport(ctx, out.Report, out.Duration)
	}
	logger.InfoContext(ctx, "workflow check finished",
		slog.Bool("passed", out.Passed()),
		slog.Duration("duration", out.Duration),
	)

	r.record(ctx, &out, logger)

	out.Notification = notify.Notification{
		Status:      notify.StatusFor(out.Passed()),
		BuilderName: meta.Builder,
		DiscordID:   notifyID,
		TestResults: out.Report.Text,
		Repo:        meta.Repo,
		RunID:       meta.RunID,
	}
	err := r.sink.Deliver(ctx, out.Notification)
	r.metrics.RecordDelivery(ctx, r.sink.Name(), err)
	span.SetAttributes(telemetry.DeliveryAttributes(r.sink.Name(), err == nil)...)
	if err != nil {
		logger.WarnContext(ctx, "report delivery failed",
			slog.String("sink", r.sink.Name()),
			slog.String("error", err.Error()),
		)
		if !errors.IsCode(err, errors.CodeDeliveryFailed) && !errors.IsCode(err, errors.CodeTimeout) &&
			!errors.IsCode(err, errors.CodeContextLost) {
			err = errors.New(errors.CodeDeliveryFailed, "report delivery failed", err).
				WithAttribute("sink", r.sink.Name())
		}
		return out, err
	}
	out.Delivered = true
	return out, nil
}

func (r *Runner) record(ctx context.Context, out *Outcome, logger *slog.Logger) {
	if r.store == nil {
		return
	}
	rec := history.Record{
		RunID:   out.Metadata.RunID,
		Builder: out.Metadata.Builder,
		Repo:    out.Metadata.Repo,
		Passed:  out.Passed(),
		Text:    out.Report.Text,
	}
	if res, ok := out.Report.Result(eval.CheckAccuracy); ok {
		rec.Accuracy = res.Score
	}
	if out.Fault != nil {
		rec.Fault = string(out.Fault.Code)
	}
	stored, err := r.store.Record(ctx, rec)
	if err != nil {
		logger.WarnContext(ctx, "failed to record run history", slog.String("error", err.Error()))
		return
	}
	out.RecordID = stored.ID
}

// FaultReport converts a fault into the failed report delivered in place
// of an evaluation.
func FaultReport(fault *errors.Error) eval.Report {
	text := MissingWorkflowText
	if fault.Code != errors.CodeNotFound {
		text = "System Error: " + faultMessage(fault)
	}
	return eval.Report{Passed: false, Text: text}
}

func faultMessage(fault *errors.Error) string {
	if fault.Err == nil {
		return fault.Message
	}
	return fault.Message + ": " + fault.Err.Error()
}
