// Copyright 2026 © The Flowgate Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"testing"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jllopis/flowgate/pkg/eval"
)

func TestRunAttributes(t *testing.T) {
	attrs := RunAttributes("run-1", "octocat", "acme/flows")

	expected := map[string]any{
		AttrRunID:   "run-1",
		AttrBuilder: "octocat",
		AttrRepo:    "acme/flows",
	}
	assertAttributes(t, attrs, expected)

	if len(RunAttributes("run-2", "", "")) != 1 {
		t.Error("empty builder and repo should be omitted")
	}
}

func TestWorkflowAttributes(t *testing.T) {
	attrs := WorkflowAttributes("workflows/a.json", 4, 3)

	expected := map[string]any{
		AttrWorkflowPath:  "workflows/a.json",
		AttrWorkflowNodes: 4,
		AttrWorkflowEdges: 3,
	}
	assertAttributes(t, attrs, expected)
}

func TestResultAttributes(t *testing.T) {
	score := 50.0
	attrs := ResultAttributes(eval.Result{
		Check:    eval.CheckAccuracy,
		Passed:   false,
		Score:    &score,
		Findings: []string{"batangas"},
	})

	expected := map[string]any{
		AttrCheck:       "accuracy",
		AttrCheckPassed: false,
		AttrCheckScore:  50.0,
	}
	assertAttributes(t, attrs, expected)

	attrs = ResultAttributes(eval.Result{Check: eval.CheckTone, Passed: true})
	if len(attrs) != 2 {
		t.Errorf("expected only check and passed attributes, got %d", len(attrs))
	}
}

func TestDeliveryAttributes(t *testing.T) {
	attrs := DeliveryAttributes("webhook", true)

	expected := map[string]any{
		AttrSink:      "webhook",
		AttrDelivered: true,
	}
	assertAttributes(t, attrs, expected)
}

func assertAttributes(t *testing.T, attrs []attribute.KeyValue, expected map[string]any) {
	t.Helper()

	found := make(map[string]attribute.KeyValue)
	for _, attr := range attrs {
		found[string(attr.Key)] = attr
	}

	for key, expectedVal := range expected {
		attr, ok := found[key]
		if !ok {
			t.Errorf("missing attribute %s", key)
			continue
		}

		var actualVal any
		switch attr.Value.Type() {
		case attribute.STRING:
			actualVal = attr.Value.AsString()
		case attribute.INT64:
			actualVal = int(attr.Value.AsInt64())
		case attribute.FLOAT64:
			actualVal = attr.Value.AsFloat64()
		case attribute.BOOL:
			actualVal = attr.Value.AsBool()
		}

		if actualVal != expectedVal {
			t.Errorf("attribute %s: got %v, want %v", key, actualVal, expectedVal)
		}
	}
}
