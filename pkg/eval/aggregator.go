// Copyright 2026 © The Flowgate Authors
// SPDX-License-Identifier: Apache-2.0

package eval

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jllopis/flowgate/pkg/errors"
	"github.com/jllopis/flowgate/pkg/workflow"
)

// Report is the combined verdict of all checks.
type Report struct {
	Passed  bool     `json:"passed"`
	Text    string   `json:"text"`
	Results []Result `json:"results"`
}

// Result returns the result for check, if the report holds one.
func (r Report) Result(check Check) (Result, bool) {
	for _, res := range r.Results {
		if res.Check == check {
			return res, true
		}
	}
	return Result{}, false
}

// Aggregator runs a fixed list of evaluators and joins their results.
type Aggregator struct {
	evaluators []Evaluator
	concurrent bool
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithConcurrency runs evaluators in parallel goroutines. Report contents
// do not depend on this setting.
func WithConcurrency(enabled bool) Option {
	return func(a *Aggregator) {
		a.concurrent = enabled
	}
}

// WithEvaluators replaces the evaluator list. Results are reported in the
// order given.
func WithEvaluators(evaluators ...Evaluator) Option {
	return func(a *Aggregator) {
		a.evaluators = evaluators
	}
}

// NewAggregator builds the accuracy, tone and structure evaluators from cfg.
func NewAggregator(cfg Config, opts ...Option) *Aggregator {
	a := &Aggregator{
		evaluators: []Evaluator{
			NewKeywordScorer(cfg.Threshold),
			NewToneScreener(cfg.TonePhrases...),
			NewStructureValidator(cfg.Schema),
		},
		concurrent: cfg.Concurrent,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Evaluate runs every evaluator against the input. The report passes only
// if every result passes. A fault inside an evaluator is returned as a
// CodeEvaluationFault error with an empty report.
func (a *Aggregator) Evaluate(ctx context.Context, graph *workflow.Graph, response, expected string) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, errors.New(errors.CodeContextLost, "evaluation cancelled", err)
	}
	in := Input{Graph: graph, Response: response, Expected: expected}

	results := make([]Result, len(a.evaluators))
	faults := make([]error, len(a.evaluators))
	if a.concurrent {
		var wg sync.WaitGroup
		for i, ev := range a.evaluators {
			wg.Add(1)
			go func(i int, ev Evaluator) {
				defer wg.Done()
				results[i], faults[i] = safeEvaluate(ev, in)
			}(i, ev)
		}
		wg.Wait()
	} else {
		for i, ev := range a.evaluators {
			results[i], faults[i] = safeEvaluate(ev, in)
		}
	}

	for _, fault := range faults {
		if fault != nil {
			return Report{}, fault
		}
	}
	return buildReport(results), nil
}

// EvaluateDocument decodes a JSON or YAML workflow document and evaluates it.
// Undecodable documents are reported as evaluation faults.
func (a *Aggregator) EvaluateDocument(ctx context.Context, document []byte, response, expected string) (Report, error) {
	graph, err := workflow.Parse("", document)
	if err != nil {
		return Report{}, errors.New(errors.CodeEvaluationFault, "workflow document could not be decoded", err)
	}
	return a.Evaluate(ctx, graph, response, expected)
}

func buildReport(results []Result) Report {
	passed := len(results) > 0
	lines := make([]string, 0, len(results))
	for _, res := range results {
		passed = passed && res.Passed
		lines = append(lines, res.Message)
	}
	return Report{
		Passed:  passed,
		Text:    strings.Join(lines, "\n"),
		Results: results,
	}
}

func safeEvaluate(ev Evaluator, in Input) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(errors.CodeEvaluationFault, fmt.Sprintf("%s check failed", ev.Check()), fmt.Errorf("%v", r)).
				WithAttribute("check", string(ev.Check()))
		}
	}()
	return ev.Evaluate(in), nil
}
