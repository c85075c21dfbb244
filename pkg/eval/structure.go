// Copyright 2026 © The Flowgate Authors
// SPDX-License-Identifier: Apache-2.0

package eval

import (
	"strings"

	"github.com/jllopis/flowgate/pkg/workflow"
)

// StructureValidator checks that a workflow graph is production ready: it has
// an error trigger, no orphan nodes and an agent with a language model wired
// into it.
type StructureValidator struct {
	schema Schema
}

// NewStructureValidator creates a validator for the given schema strings.
func NewStructureValidator(schema Schema) *StructureValidator {
	return &StructureValidator{schema: schema}
}

// Check implements Evaluator.
func (v *StructureValidator) Check() Check {
	return CheckStructure
}

// Evaluate implements Evaluator.
func (v *StructureValidator) Evaluate(in Input) Result {
	return v.Validate(in.Graph)
}

// Validate runs the three structural checks. A nil graph is an empty graph.
func (v *StructureValidator) Validate(graph *workflow.Graph) Result {
	if graph == nil {
		graph = &workflow.Graph{}
	}
	adj := graph.Adjacency()

	hasTrigger := len(graph.NodesOfType(v.schema.ErrorTriggerType)) > 0
	orphans := adj.Orphans(graph.Nodes)
	hasModel := false
	// Any agent with a model satisfies the check when several agents exist.
	for _, agent := range graph.NodesOfType(v.schema.AgentType) {
		if adj.Receives(v.schema.LanguageModelKind, agent) {
			hasModel = true
			break
		}
	}

	passed := hasTrigger && len(orphans) == 0 && hasModel
	if passed {
		return Result{Check: CheckStructure, Passed: true, Message: "Structure: Healthy"}
	}

	var issues []string
	if !hasTrigger {
		issues = append(issues, "Missing Error Trigger.")
	}
	if len(orphans) > 0 {
		issues = append(issues, "Orphan nodes found: "+strings.Join(orphans, ", ")+".")
	}
	if !hasModel {
		issues = append(issues, "AI Agent has no Model connected.")
	}
	return Result{
		Check:    CheckStructure,
		Passed:   false,
		Message:  "Structure Issues: " + strings.Join(issues, " "),
		Findings: orphans,
	}
}
