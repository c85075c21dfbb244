// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/flowgate/pkg/errors"
	"github.com/jllopis/flowgate/pkg/eval"
)

// EvalMetrics records gate outcomes, per-check results and report deliveries.
type EvalMetrics struct {
	// evaluations counts gate runs by outcome (passed, failed, fault)
	evaluations metric.Int64Counter

	// checks counts individual check results by check and outcome
	checks metric.Int64Counter

	// deliveries counts report deliveries by sink and success
	deliveries metric.Int64Counter

	accuracy metric.Float64Histogram
	duration metric.Float64Histogram
}

// Outcome labels for flowgate.evaluations.total.
const (
	OutcomePassed = "passed"
	OutcomeFailed = "failed"
	OutcomeFault  = "fault"
)

// NewEvalMetrics creates the instruments on the global meter provider.
func NewEvalMetrics(ctx context.Context) (*EvalMetrics, error) {
	meter := otel.Meter("flowgate/eval")

	evaluations, err := meter.Int64Counter(
		"flowgate.evaluations.total",
		metric.WithDescription("Gate runs by outcome"),
	)
	if err != nil {
		return nil, err
	}

	checks, err := meter.Int64Counter(
		"flowgate.checks.total",
		metric.WithDescription("Check results by check and outcome"),
	)
	if err != nil {
		return nil, err
	}

	deliveries, err := meter.Int64Counter(
		"flowgate.delivery.total",
		metric.WithDescription("Report deliveries by sink and success"),
	)
	if err != nil {
		return nil, err
	}

	accuracy, err := meter.Float64Histogram(
		"flowgate.accuracy.score",
		metric.WithDescription("Keyword accuracy score in percent"),
		metric.WithUnit("%"),
		metric.WithExplicitBucketBoundaries(0, 25, 50, 75, 90, 100),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"flowgate.evaluation.duration_ms",
		metric.WithDescription("Wall time of a gate evaluation"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &EvalMetrics{
		evaluations: evaluations,
		checks:      checks,
		deliveries:  deliveries,
		accuracy:    accuracy,
		duration:    duration,
	}, nil
}

// RecordReport records the overall outcome, every check result and the
// accuracy score when present.
func (m *EvalMetrics) RecordReport(ctx context.Context, report eval.Report, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeFailed
	if report.Passed {
		outcome = OutcomePassed
	}
	m.evaluations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	m.duration.Record(ctx, durationMillis(elapsed))

	for _, res := range report.Results {
		m.checks.Add(ctx, 1, metric.WithAttributes(
			attribute.String(AttrCheck, string(res.Check)),
			attribute.Bool(AttrCheckPassed, res.Passed),
		))
		if res.Check == eval.CheckAccuracy && res.Score != nil {
			m.accuracy.Record(ctx, *res.Score)
		}
	}
}

// RecordFault counts a run that ended without a report.
func (m *EvalMetrics) RecordFault(ctx context.Context, err error, elapsed time.Duration) {
	if m == nil || err == nil {
		return
	}
	m.evaluations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", OutcomeFault),
		attribute.String("error.code", string(errors.As(err).Code)),
	))
	m.duration.Record(ctx, durationMillis(elapsed))
}

// RecordDelivery counts a delivery attempt through sink.
func (m *EvalMetrics) RecordDelivery(ctx context.Context, sink string, err error) {
	if m == nil {
		return
	}
	m.deliveries.Add(ctx, 1, metric.WithAttributes(DeliveryAttributes(sink, err == nil)...))
}

func durationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
