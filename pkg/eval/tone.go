// Copyright 2026 © The Flowgate Authors
// SPDX-License-Identifier: Apache-2.0

package eval

import (
	"strings"
)

// ToneScreener flags disallowed vocabulary in a response.
type ToneScreener struct {
	phrases []string
}

// NewToneScreener creates a screener for the given phrases. Phrases are
// lower-cased; blanks and duplicates are dropped and order is kept.
func NewToneScreener(phrases ...string) *ToneScreener {
	seen := make(map[string]struct{}, len(phrases))
	normalized := make([]string, 0, len(phrases))
	for _, phrase := range phrases {
		p := strings.ToLower(strings.TrimSpace(phrase))
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		normalized = append(normalized, p)
	}
	return &ToneScreener{phrases: normalized}
}

// Check implements Evaluator.
func (s *ToneScreener) Check() Check {
	return CheckTone
}

// Evaluate implements Evaluator.
func (s *ToneScreener) Evaluate(in Input) Result {
	return s.Screen(in.Response)
}

// Screen returns a failing result listing every configured phrase found in
// response, in configuration order.
func (s *ToneScreener) Screen(response string) Result {
	lowered := strings.ToLower(response)

	var found []string
	for _, phrase := range s.phrases {
		if strings.Contains(lowered, phrase) {
			found = append(found, phrase)
		}
	}

	if len(found) == 0 {
		return Result{Check: CheckTone, Passed: true, Message: "Tone: Professional and appropriate."}
	}
	return Result{
		Check:    CheckTone,
		Passed:   false,
		Message:  "Tone: Unprofessional language detected: " + strings.Join(found, ", "),
		Findings: found,
	}
}
