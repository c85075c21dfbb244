// Copyright 2026 © The Flowgate Authors
// SPDX-License-Identifier: Apache-2.0

// Package eval scores an agent workflow and its generated response.
//
// Three independent checks run against one input:
//   - Accuracy: keyword coverage of the expected answer in the response
//   - Tone: disallowed vocabulary in the response
//   - Structure: error trigger presence, connectivity and model wiring of the graph
//
// An Aggregator combines them into a Report whose text always lists the
// accuracy, tone and structure messages in that order.
//
//	agg := eval.NewAggregator(eval.DefaultConfig())
//	report, err := agg.Evaluate(ctx, graph, response, expected)
//	if err != nil {
//	    // evaluation fault, report as a system failure
//	}
//	fmt.Println(report.Text)
//
// Evaluators hold no mutable state and are safe for concurrent use.
package eval

import (
	"fmt"

	"github.com/jllopis/flowgate/pkg/workflow"
)

// Check names one of the evaluators.
type Check string

const (
	CheckAccuracy  Check = "accuracy"
	CheckTone      Check = "tone"
	CheckStructure Check = "structure"
)

// Reserved schema strings of the n8n authoring platform.
const (
	DefaultErrorTriggerType  = "n8n-nodes-base.errorTrigger"
	DefaultAgentType         = "@n8n/n8n-nodes-langchain.agent"
	DefaultLanguageModelKind = "ai_languageModel"
)

// DefaultThreshold is the minimum accuracy score, in percent, that passes.
const DefaultThreshold = 90.0

// DefaultTonePhrases lists the vocabulary flagged by the tone screen.
var DefaultTonePhrases = []string{"whatever", "dunno", "stupid", "hey bro"}

// Schema holds the reserved strings that identify special nodes and
// connection kinds in a workflow document. They must match the authoring
// platform verbatim.
type Schema struct {
	ErrorTriggerType  string `json:"error_trigger_type" koanf:"error_trigger_type"`
	AgentType         string `json:"agent_type" koanf:"agent_type"`
	LanguageModelKind string `json:"language_model_kind" koanf:"language_model_kind"`
}

// DefaultSchema returns the n8n schema strings.
func DefaultSchema() Schema {
	return Schema{
		ErrorTriggerType:  DefaultErrorTriggerType,
		AgentType:         DefaultAgentType,
		LanguageModelKind: DefaultLanguageModelKind,
	}
}

// Config carries every tunable of the evaluators.
type Config struct {
	Threshold   float64
	TonePhrases []string
	Schema      Schema
	Concurrent  bool
}

// DefaultConfig returns the canonical evaluator configuration.
func DefaultConfig() Config {
	phrases := make([]string, len(DefaultTonePhrases))
	copy(phrases, DefaultTonePhrases)
	return Config{
		Threshold:   DefaultThreshold,
		TonePhrases: phrases,
		Schema:      DefaultSchema(),
	}
}

// Validate reports configuration values the evaluators cannot work with.
func (c Config) Validate() error {
	if c.Threshold < 0 || c.Threshold > 100 {
		return fmt.Errorf("threshold %.2f out of range [0, 100]", c.Threshold)
	}
	if c.Schema.ErrorTriggerType == "" {
		return fmt.Errorf("schema error trigger type is required")
	}
	if c.Schema.AgentType == "" {
		return fmt.Errorf("schema agent type is required")
	}
	if c.Schema.LanguageModelKind == "" {
		return fmt.Errorf("schema language model kind is required")
	}
	return nil
}

// Input is everything a single evaluation looks at.
type Input struct {
	Graph    *workflow.Graph
	Response string
	Expected string
}

// Result is the outcome of one check. Score is set only by checks that
// produce one. Findings lists the offending items (orphans, phrases,
// missing keywords) in a stable order.
type Result struct {
	Check    Check    `json:"check"`
	Passed   bool     `json:"passed"`
	Message  string   `json:"message"`
	Score    *float64 `json:"score,omitempty"`
	Findings []string `json:"findings,omitempty"`
}

// Evaluator runs one check.
type Evaluator interface {
	// Check names the evaluator.
	Check() Check

	// Evaluate must be total over well-typed input.
	Evaluate(in Input) Result
}
