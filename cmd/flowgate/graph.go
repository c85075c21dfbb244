// Copyright 2026 © The Flowgate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	stderrors "errors"
	"flag"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jllopis/flowgate/pkg/errors"
	"github.com/jllopis/flowgate/pkg/eval"
	"github.com/jllopis/flowgate/pkg/workflow"
)

type graphResult struct {
	Format  string   `json:"format"`
	Content string   `json:"content,omitempty"`
	Name    string   `json:"name,omitempty"`
	Nodes   int      `json:"nodes"`
	Edges   int      `json:"edges"`
	Orphans []string `json:"orphans"`
}

// edge is one source-to-target link of a given connection kind.
type edge struct {
	From string
	To   string
	Kind string
}

func (a *app) runGraph(args []string) error {
	flags := flag.NewFlagSet("graph", flag.ContinueOnError)
	flags.SetOutput(a.stderr)
	output := flags.String("output", "mermaid", "Output format: mermaid, dot, json, orphans")
	graphPath := flags.String("path", a.cfg.Workflow.Path, "Path to workflow JSON/YAML file")
	if err := flags.Parse(args); err != nil {
		return NewInvalidArgumentError("graph", err.Error())
	}

	graph, err := loadWorkflow(*graphPath)
	if err != nil {
		return err
	}

	orphans := graph.Orphans()
	result := graphResult{
		Format:  *output,
		Name:    graph.Name,
		Nodes:   len(graph.Nodes),
		Edges:   graph.EdgeCount(),
		Orphans: orphans,
	}

	switch *output {
	case "mermaid":
		result.Content = toMermaid(graph, a.cfg.Eval.Schema)
	case "dot":
		result.Content = toDot(graph, a.cfg.Eval.Schema)
	case "json":
		jsonBytes, err := workflow.MarshalJSON(graph, true)
		if err != nil {
			return err
		}
		result.Content = string(jsonBytes)
	case "orphans":
		result.Content = strings.Join(orphans, "\n")
	default:
		return NewInvalidArgumentError("output", fmt.Sprintf("unknown output format %q; use mermaid, dot, json or orphans", *output))
	}

	if a.global.JSON {
		return a.printJSON(result)
	}
	if result.Content != "" {
		fmt.Fprintln(a.stdout, strings.TrimRight(result.Content, "\n"))
	}
	return nil
}

func loadWorkflow(path string) (*workflow.Graph, error) {
	graph, err := workflow.LoadGraph(path)
	if err != nil {
		return nil, workflowError(path, err)
	}
	return graph, nil
}

func workflowError(path string, err error) error {
	if stderrors.Is(err, fs.ErrNotExist) {
		return NewNotFoundError("workflow", path)
	}
	return errors.New(errors.CodeEvaluationFault, "workflow could not be loaded", err).
		WithContext("path", path)
}

// edges lists every connection in a stable order: sources by name, kinds
// by name, then branch and target order.
func edges(g *workflow.Graph) []edge {
	sources := make([]string, 0, len(g.Connections))
	for source := range g.Connections {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	var out []edge
	for _, source := range sources {
		byKind := g.Connections[source]
		kinds := make([]string, 0, len(byKind))
		for kind := range byKind {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		for _, kind := range kinds {
			for _, branch := range byKind[kind] {
				for _, target := range branch {
					out = append(out, edge{From: source, To: target.Node, Kind: kind})
				}
			}
		}
	}
	return out
}

// nodeIDs assigns mermaid-safe ids: declared nodes first, then names that
// only appear in connections.
func nodeIDs(g *workflow.Graph, links []edge) (map[string]string, []string) {
	ids := make(map[string]string)
	var undeclared []string
	for i, node := range g.Nodes {
		ids[node.Name] = fmt.Sprintf("n%d", i)
	}
	for _, e := range links {
		for _, name := range []string{e.From, e.To} {
			if _, ok := ids[name]; !ok {
				ids[name] = fmt.Sprintf("x%d", len(undeclared))
				undeclared = append(undeclared, name)
			}
		}
	}
	return ids, undeclared
}

func toMermaid(g *workflow.Graph, schema eval.Schema) string {
	links := edges(g)
	ids, undeclared := nodeIDs(g, links)
	orphans := make(map[string]bool)
	for _, name := range g.Orphans() {
		orphans[name] = true
	}

	var sb strings.Builder
	sb.WriteString("graph LR\n")

	// Nodes
	for _, node := range g.Nodes {
		label := mermaidLabel(node.Name)
		if node.Type != "" {
			label += "<br/><i>" + mermaidLabel(shortType(node.Type)) + "</i>"
		}
		sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", ids[node.Name], label))
	}
	for _, name := range undeclared {
		sb.WriteString(fmt.Sprintf("    %s([\"%s?\"])\n", ids[name], mermaidLabel(name)))
	}

	// Edges
	for _, e := range links {
		if e.Kind == "main" {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", ids[e.From], ids[e.To]))
		} else {
			sb.WriteString(fmt.Sprintf("    %s -. %s .-> %s\n", ids[e.From], e.Kind, ids[e.To]))
		}
	}

	// Highlight safety triggers, agents and orphans
	for _, node := range g.Nodes {
		switch {
		case orphans[node.Name]:
			sb.WriteString(fmt.Sprintf("    style %s fill:#F8D7DA\n", ids[node.Name]))
		case node.Type == schema.ErrorTriggerType:
			sb.WriteString(fmt.Sprintf("    style %s fill:#FFE8A1\n", ids[node.Name]))
		case node.Type == schema.AgentType:
			sb.WriteString(fmt.Sprintf("    style %s fill:#90EE90\n", ids[node.Name]))
		}
	}

	return sb.String()
}

func toDot(g *workflow.Graph, schema eval.Schema) string {
	orphans := make(map[string]bool)
	for _, name := range g.Orphans() {
		orphans[name] = true
	}

	var sb strings.Builder
	sb.WriteString("digraph G {\n")
	sb.WriteString("    rankdir=LR;\n")
	sb.WriteString("    node [shape=box, style=rounded];\n")

	// Nodes
	for _, node := range g.Nodes {
		label := node.Name
		if node.Type != "" {
			label = fmt.Sprintf("%s\\n(%s)", node.Name, shortType(node.Type))
		}
		attrs := fmt.Sprintf("label=\"%s\"", strings.ReplaceAll(label, `"`, `\"`))

		switch {
		case orphans[node.Name]:
			attrs += ", style=\"rounded,filled\", fillcolor=\"#F8D7DA\""
		case node.Type == schema.ErrorTriggerType:
			attrs += ", style=\"rounded,filled\", fillcolor=\"#FFE8A1\""
		case node.Type == schema.AgentType:
			attrs += ", style=\"rounded,filled\", fillcolor=\"#90EE90\""
		}

		sb.WriteString(fmt.Sprintf("    %q [%s];\n", node.Name, attrs))
	}

	// Edges
	for _, e := range edges(g) {
		attrs := ""
		if e.Kind != "main" {
			attrs = fmt.Sprintf(" [label=%q, style=dashed]", e.Kind)
		}
		sb.WriteString(fmt.Sprintf("    %q -> %q%s;\n", e.From, e.To, attrs))
	}

	sb.WriteString("}\n")
	return sb.String()
}

// shortType drops the package prefix: "n8n-nodes-base.errorTrigger" -> "errorTrigger".
func shortType(t string) string {
	if i := strings.LastIndex(t, "."); i >= 0 && i < len(t)-1 {
		return t[i+1:]
	}
	return t
}

func mermaidLabel(s string) string {
	return strings.NewReplacer(`"`, "#quot;", "<", "#lt;", ">", "#gt;").Replace(s)
}
