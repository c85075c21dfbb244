// Copyright 2026 © The Flowgate Authors
// SPDX-License-Identifier: Apache-2.0

package eval

import (
	"fmt"
	"strings"
)

// KeywordScorer measures how many expected-answer keywords appear in a
// response. Matching is case-insensitive substring containment, so
// "assist" matches "assistant".
type KeywordScorer struct {
	threshold float64
}

// NewKeywordScorer creates a scorer passing at threshold percent or more.
func NewKeywordScorer(threshold float64) *KeywordScorer {
	return &KeywordScorer{threshold: threshold}
}

// Check implements Evaluator.
func (s *KeywordScorer) Check() Check {
	return CheckAccuracy
}

// Evaluate implements Evaluator.
func (s *KeywordScorer) Evaluate(in Input) Result {
	return s.Score(in.Response, in.Expected)
}

// Score compares response against the whitespace-separated keywords of
// expected. An expected answer without keywords scores 0 and fails.
func (s *KeywordScorer) Score(response, expected string) Result {
	keywords := strings.Fields(strings.ToLower(expected))
	lowered := strings.ToLower(response)

	var missing []string
	matches := 0
	for _, keyword := range keywords {
		if strings.Contains(lowered, keyword) {
			matches++
		} else {
			missing = append(missing, keyword)
		}
	}

	score := 0.0
	if len(keywords) > 0 {
		score = float64(matches) / float64(len(keywords)) * 100
	}
	passed := len(keywords) > 0 && score >= s.threshold

	label := "Failed"
	if passed {
		label = "Passed"
	}
	return Result{
		Check:    CheckAccuracy,
		Passed:   passed,
		Message:  fmt.Sprintf("Accuracy Score: %.2f%% (%s)", score, label),
		Score:    &score,
		Findings: missing,
	}
}
