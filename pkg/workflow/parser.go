// Copyright 2026 © The Flowgate Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseJSON decodes a workflow document from JSON.
// Absent nodes or connections decode to empty collections.
func ParseJSON(data []byte) (*Graph, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON payload")
	}
	var graph Graph
	if err := json.Unmarshal(data, &graph); err != nil {
		return nil, fmt.Errorf("parse json workflow: %w", err)
	}
	graph.normalize()
	return &graph, nil
}

// ParseYAML decodes a workflow document from YAML.
func ParseYAML(data []byte) (*Graph, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty YAML payload")
	}
	var graph Graph
	if err := yaml.Unmarshal(data, &graph); err != nil {
		return nil, fmt.Errorf("parse yaml workflow: %w", err)
	}
	graph.normalize()
	return &graph, nil
}

// MarshalJSON serializes a graph to JSON. Use pretty for indented output.
func MarshalJSON(graph *Graph, pretty bool) ([]byte, error) {
	if graph == nil {
		return nil, fmt.Errorf("graph is nil")
	}
	if pretty {
		return json.MarshalIndent(graph, "", "  ")
	}
	return json.Marshal(graph)
}

func (g *Graph) normalize() {
	if g.Nodes == nil {
		g.Nodes = []Node{}
	}
	if g.Connections == nil {
		g.Connections = Connections{}
	}
}
