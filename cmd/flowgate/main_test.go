// Copyright 2026 © The Flowgate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jllopis/flowgate/pkg/gate"
)

const healthyWorkflow = `{
  "name": "Support Agent",
  "nodes": [
    {"name": "Chat Trigger", "type": "@n8n/n8n-nodes-langchain.chatTrigger"},
    {"name": "AI Agent", "type": "@n8n/n8n-nodes-langchain.agent"},
    {"name": "OpenAI Chat Model", "type": "@n8n/n8n-nodes-langchain.lmChatOpenAi"},
    {"name": "Error Trigger", "type": "n8n-nodes-base.errorTrigger"},
    {"name": "Alert", "type": "n8n-nodes-base.slack"}
  ],
  "connections": {
    "Chat Trigger": {"main": [[{"node": "AI Agent", "type": "main", "index": 0}]]},
    "OpenAI Chat Model": {"ai_languageModel": [[{"node": "AI Agent", "type": "ai_languageModel", "index": 0}]]},
    "Error Trigger": {"main": [[{"node": "Alert", "type": "main", "index": 0}]]}
  }
}`

const (
	goodResponse = "Hello! I am your assistant from Batangas."
	expected     = "assistant Batangas"
)

func writeWorkflow(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workflow.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write workflow: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	base := []string{"--no-color", "--env-file", filepath.Join(t.TempDir(), "absent.env")}
	code := run(context.Background(), append(base, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestParseGlobalFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		json    bool
		config  []string
		rest    []string
		wantErr bool
	}{
		{
			name: "command only",
			args: []string{"check", "--path", "x.json"},
			rest: []string{"check", "--path", "x.json"},
		},
		{
			name:   "config flags both forms",
			args:   []string{"--config", "c.yaml", "--set=eval.threshold=80", "--json", "graph"},
			json:   true,
			config: []string{"--config", "c.yaml", "--set=eval.threshold=80"},
			rest:   []string{"graph"},
		},
		{
			name:   "double dash",
			args:   []string{"--env-file", "ci.env", "--", "--weird"},
			config: []string{"--env-file", "ci.env"},
			rest:   []string{"--weird"},
		},
		{
			name:    "missing value",
			args:    []string{"--set"},
			wantErr: true,
		},
		{
			name:    "unknown flag",
			args:    []string{"--verbose", "check"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags, rest, err := parseGlobalFlags(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if flags.JSON != tt.json {
				t.Errorf("expected json=%v", tt.json)
			}
			if strings.Join(flags.ConfigArgs, " ") != strings.Join(tt.config, " ") {
				t.Errorf("expected config args %v, got %v", tt.config, flags.ConfigArgs)
			}
			if strings.Join(rest, " ") != strings.Join(tt.rest, " ") {
				t.Errorf("expected rest %v, got %v", tt.rest, rest)
			}
		})
	}
}

func TestConfigPath(t *testing.T) {
	if got := configPath([]string{"--set", "a=b", "--config", "x.yaml"}); got != "x.yaml" {
		t.Errorf("expected x.yaml, got %q", got)
	}
	if got := configPath([]string{"--config=y.yaml"}); got != "y.yaml" {
		t.Errorf("expected y.yaml, got %q", got)
	}
	if got := configPath(nil); got != "" {
		t.Errorf("expected empty path, got %q", got)
	}
}

func TestRunVersionAndHelp(t *testing.T) {
	code, out, _ := runCLI(t, "version")
	if code != 0 || strings.TrimSpace(out) != version {
		t.Fatalf("unexpected version output %d %q", code, out)
	}

	code, out, _ = runCLI(t, "--json", "version")
	if code != 0 || !strings.Contains(out, `"version":"dev"`) {
		t.Fatalf("unexpected json version output %q", out)
	}

	code, out, _ = runCLI(t)
	if code != 0 || !strings.Contains(out, "Commands:") {
		t.Fatalf("expected usage, got %q", out)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	code, _, errOut := runCLI(t, "deploy")
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(errOut, "Invalid Input") {
		t.Errorf("expected invalid input error, got %q", errOut)
	}
}

func TestCheckPasses(t *testing.T) {
	path := writeWorkflow(t, healthyWorkflow)
	code, out, errOut := runCLI(t, "check", "--path", path, "--response", goodResponse, "--expected", expected, "--sink", "none")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s %s", code, out, errOut)
	}
	if !strings.Contains(out, "flowgate: PASS") {
		t.Errorf("expected PASS verdict, got %q", out)
	}
	if !strings.Contains(out, "Structure: Healthy") {
		t.Errorf("expected report text, got %q", out)
	}
}

func TestCheckFails(t *testing.T) {
	path := writeWorkflow(t, healthyWorkflow)
	code, out, _ := runCLI(t, "check", "--path", path, "--response", "dunno", "--expected", expected, "--sink", "none")
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(out, "flowgate: FAIL") || !strings.Contains(out, "Unprofessional language detected: dunno") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestCheckStdoutSinkPrintsReportOnce(t *testing.T) {
	path := writeWorkflow(t, healthyWorkflow)
	code, out, _ := runCLI(t, "check", "--path", path, "--response", goodResponse, "--expected", expected, "--sink", "stdout")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if n := strings.Count(out, "Structure: Healthy"); n != 1 {
		t.Errorf("expected the report once, got %d times in %q", n, out)
	}
}

func TestCheckMissingWorkflow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	code, out, _ := runCLI(t, "check", "--path", path, "--sink", "none")
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(out, gate.MissingWorkflowText) {
		t.Errorf("expected missing workflow text, got %q", out)
	}
}

func TestCheckJSONOutput(t *testing.T) {
	path := writeWorkflow(t, healthyWorkflow)
	code, out, _ := runCLI(t, "--json", "check", "--path", path, "--response", goodResponse, "--expected", expected, "--sink", "stdout")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}

	var payload struct {
		Report struct {
			Passed  bool   `json:"passed"`
			Text    string `json:"text"`
			Results []struct {
				Check string `json:"check"`
			} `json:"results"`
		} `json:"report"`
		Notification struct {
			Status string `json:"status"`
		} `json:"notification"`
		Sink      string `json:"sink"`
		Delivered bool   `json:"delivered"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("stdout must be a single JSON document: %v\n%s", err, out)
	}
	if !payload.Report.Passed || len(payload.Report.Results) != 3 {
		t.Errorf("unexpected report %+v", payload.Report)
	}
	if payload.Notification.Status != "pass" {
		t.Errorf("expected pass status, got %q", payload.Notification.Status)
	}
	if payload.Sink != "none" || !payload.Delivered {
		t.Errorf("json mode silences the stdout sink, got sink=%q delivered=%v", payload.Sink, payload.Delivered)
	}
}

func TestCheckThresholdOverride(t *testing.T) {
	path := writeWorkflow(t, healthyWorkflow)
	code, _, _ := runCLI(t, "--set", "eval.threshold=40", "check", "--path", path,
		"--response", "your assistant", "--expected", expected, "--sink", "none")
	if code != 0 {
		t.Fatalf("50%% accuracy should pass a 40%% threshold, got exit %d", code)
	}
}

func TestConfigErrors(t *testing.T) {
	code, _, errOut := runCLI(t, "--set", "eval.threshold=150", "check")
	if code != 1 || !strings.Contains(errOut, "Configuration Error") {
		t.Fatalf("expected configuration error, got %d %q", code, errOut)
	}

	code, _, errOut = runCLI(t, "--json", "check", "--sink", "webhook")
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	var payload map[string]map[string]string
	if err := json.Unmarshal([]byte(errOut), &payload); err != nil {
		t.Fatalf("expected json error: %v %q", err, errOut)
	}
	if payload["error"]["code"] != "CONFIG_ERROR" {
		t.Errorf("unexpected error payload %v", payload)
	}
}

func TestTruncateMessage(t *testing.T) {
	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{"short", 10, "short"},
		{"a  b\n c", 10, "a b c"},
		{"abcdefghij", 6, "abc..."},
		{"abcdef", 2, "ab"},
		{"", 5, "-"},
	}
	for _, tt := range tests {
		if got := truncateMessage(tt.in, tt.limit); got != tt.want {
			t.Errorf("truncateMessage(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
		}
	}
}
