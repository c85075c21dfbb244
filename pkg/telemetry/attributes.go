// Copyright 2026 © The Flowgate Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry provides logging, tracing and metrics for flowgate runs.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"

	"github.com/jllopis/flowgate/pkg/errors"
	"github.com/jllopis/flowgate/pkg/eval"
)

// Attribute keys for flowgate spans and metrics.
const (
	// Run attributes
	AttrRunID   = "flowgate.run.id"
	AttrBuilder = "flowgate.run.builder"
	AttrRepo    = "flowgate.run.repo"
	AttrPassed  = "flowgate.run.passed"
	AttrFault   = "flowgate.run.fault"

	// Workflow attributes
	AttrWorkflowPath  = "flowgate.workflow.path"
	AttrWorkflowNodes = "flowgate.workflow.nodes"
	AttrWorkflowEdges = "flowgate.workflow.edges"

	// Check attributes
	AttrCheck         = "flowgate.check.name"
	AttrCheckPassed   = "flowgate.check.passed"
	AttrCheckScore    = "flowgate.check.score"
	AttrCheckFindings = "flowgate.check.findings"

	// Delivery attributes
	AttrSink      = "flowgate.delivery.sink"
	AttrDelivered = "flowgate.delivery.success"
)

// RunAttributes returns attributes identifying a gate run.
func RunAttributes(runID, builder, repo string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrRunID, runID),
	}
	if builder != "" {
		attrs = append(attrs, attribute.String(AttrBuilder, builder))
	}
	if repo != "" {
		attrs = append(attrs, attribute.String(AttrRepo, repo))
	}
	return attrs
}

// AttributePassed marks the overall verdict of a run.
func AttributePassed(passed bool) attribute.KeyValue {
	return attribute.Bool(AttrPassed, passed)
}

// AttributeFault records the code of a fault that replaced evaluation.
func AttributeFault(err *errors.Error) attribute.KeyValue {
	return attribute.String(AttrFault, string(err.Code))
}

// WorkflowAttributes describes the evaluated workflow document.
func WorkflowAttributes(path string, nodes, edges int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int(AttrWorkflowNodes, nodes),
		attribute.Int(AttrWorkflowEdges, edges),
	}
	if path != "" {
		attrs = append(attrs, attribute.String(AttrWorkflowPath, path))
	}
	return attrs
}

// ResultAttributes returns attributes for a single check result.
func ResultAttributes(res eval.Result) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrCheck, string(res.Check)),
		attribute.Bool(AttrCheckPassed, res.Passed),
	}
	if res.Score != nil {
		attrs = append(attrs, attribute.Float64(AttrCheckScore, *res.Score))
	}
	if len(res.Findings) > 0 {
		attrs = append(attrs, attribute.StringSlice(AttrCheckFindings, res.Findings))
	}
	return attrs
}

// DeliveryAttributes returns attributes for a report delivery.
func DeliveryAttributes(sink string, success bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrSink, sink),
		attribute.Bool(AttrDelivered, success),
	}
}
