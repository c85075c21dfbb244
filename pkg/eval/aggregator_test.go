// Copyright 2026 © The Flowgate Authors
// SPDX-License-Identifier: Apache-2.0

package eval

import (
	"context"
	"strings"
	"testing"

	"github.com/jllopis/flowgate/pkg/errors"
	"github.com/jllopis/flowgate/pkg/workflow"
)

type stubEvaluator struct {
	check  Check
	passed bool
	panics bool
}

func (s stubEvaluator) Check() Check { return s.check }

func (s stubEvaluator) Evaluate(Input) Result {
	if s.panics {
		panic("unexpected shape")
	}
	return Result{Check: s.check, Passed: s.passed, Message: string(s.check) + " message"}
}

func TestAggregatorReportOrder(t *testing.T) {
	for _, concurrent := range []bool{false, true} {
		agg := NewAggregator(DefaultConfig(), WithConcurrency(concurrent))
		report, err := agg.Evaluate(context.Background(), healthyGraph(),
			"Hello! I am your assistant from Batangas.", "assistant Batangas")
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if !report.Passed {
			t.Fatalf("expected pass, got %q", report.Text)
		}
		want := "Accuracy Score: 100.00% (Passed)\nTone: Professional and appropriate.\nStructure: Healthy"
		if report.Text != want {
			t.Errorf("concurrent=%v: unexpected text %q", concurrent, report.Text)
		}
		checks := []Check{CheckAccuracy, CheckTone, CheckStructure}
		for i, res := range report.Results {
			if res.Check != checks[i] {
				t.Errorf("result %d: expected %s, got %s", i, checks[i], res.Check)
			}
		}
	}
}

func TestAggregatorKeepsAllMessagesOnFailure(t *testing.T) {
	agg := NewAggregator(DefaultConfig())
	report, err := agg.Evaluate(context.Background(), &workflow.Graph{}, "whatever", "assistant")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if report.Passed {
		t.Fatal("expected failure")
	}
	lines := strings.Split(report.Text, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), report.Text)
	}
	if !strings.HasPrefix(lines[0], "Accuracy Score:") ||
		!strings.HasPrefix(lines[1], "Tone:") ||
		!strings.HasPrefix(lines[2], "Structure Issues:") {
		t.Errorf("unexpected order %q", report.Text)
	}
}

func TestAggregatorIdempotent(t *testing.T) {
	agg := NewAggregator(DefaultConfig(), WithConcurrency(true))
	graph := healthyGraph()
	graph.Nodes = append(graph.Nodes, workflow.Node{Name: "Stray"})

	first, err := agg.Evaluate(context.Background(), graph, "dunno, assistant", "assistant Batangas")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := agg.Evaluate(context.Background(), graph, "dunno, assistant", "assistant Batangas")
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if again.Text != first.Text || again.Passed != first.Passed {
			t.Fatalf("run %d differs: %q vs %q", i, again.Text, first.Text)
		}
	}
}

func TestAggregatorOverallIsConjunction(t *testing.T) {
	checks := []Check{CheckAccuracy, CheckTone, CheckStructure}
	for failing := -1; failing < len(checks); failing++ {
		evaluators := make([]Evaluator, len(checks))
		for i, c := range checks {
			evaluators[i] = stubEvaluator{check: c, passed: i != failing}
		}
		report, err := NewAggregator(DefaultConfig(), WithEvaluators(evaluators...)).
			Evaluate(context.Background(), nil, "", "")
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if wantPass := failing == -1; report.Passed != wantPass {
			t.Errorf("failing=%d: expected passed=%v", failing, wantPass)
		}
		if report.Text != "accuracy message\ntone message\nstructure message" {
			t.Errorf("unexpected text %q", report.Text)
		}
	}
}

func TestAggregatorFault(t *testing.T) {
	for _, concurrent := range []bool{false, true} {
		agg := NewAggregator(DefaultConfig(), WithConcurrency(concurrent), WithEvaluators(
			stubEvaluator{check: CheckAccuracy, passed: true},
			stubEvaluator{check: CheckStructure, panics: true},
		))
		report, err := agg.Evaluate(context.Background(), nil, "", "")
		if !errors.IsCode(err, errors.CodeEvaluationFault) {
			t.Fatalf("expected evaluation fault, got %v", err)
		}
		if report.Passed || report.Text != "" {
			t.Errorf("fault must yield an empty report, got %+v", report)
		}
		if fe := errors.As(err); fe.Attributes["check"] != "structure" {
			t.Errorf("expected check attribute, got %v", fe.Attributes)
		}
	}
}

func TestAggregatorCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewAggregator(DefaultConfig()).Evaluate(ctx, nil, "", "")
	if !errors.IsCode(err, errors.CodeContextLost) {
		t.Fatalf("expected context lost, got %v", err)
	}
}

func TestEvaluateDocument(t *testing.T) {
	agg := NewAggregator(DefaultConfig())
	doc := []byte(`{"nodes": [{"name": "Lonely", "type": "n8n-nodes-base.set"}]}`)
	report, err := agg.EvaluateDocument(context.Background(), doc, "assistant", "assistant")
	if err != nil {
		t.Fatalf("evaluate document: %v", err)
	}
	res, ok := report.Result(CheckStructure)
	if !ok || res.Passed || len(res.Findings) != 1 {
		t.Fatalf("unexpected structure result %+v", res)
	}

	for _, bad := range []string{`{"nodes": 42}`, `{"nodes": [{"name": 5, "type": true}]}`} {
		_, err = agg.EvaluateDocument(context.Background(), []byte(bad), "", "")
		if !errors.IsCode(err, errors.CodeEvaluationFault) {
			t.Fatalf("%s: expected evaluation fault, got %v", bad, err)
		}
	}
}
