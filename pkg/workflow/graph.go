// Copyright 2026 © The Flowgate Authors
// SPDX-License-Identifier: Apache-2.0

// Package workflow models automation-platform workflow documents as a typed
// node-and-connection graph.
//
// A workflow document lists its nodes and, keyed by source node name, the
// outgoing connections grouped by connection kind. Each kind holds a list of
// branches (one per source output) and each branch fans out to targets:
//
//	{
//	  "nodes": [{"name": "Chat", "type": "@n8n/n8n-nodes-langchain.chatTrigger"}],
//	  "connections": {
//	    "Chat": {"main": [[{"node": "AI Agent", "type": "main", "index": 0}]]}
//	  }
//	}
//
// Missing fields decode to empty collections and references to names that are
// not declared as nodes are tolerated.
package workflow

// Node is a single workflow step. Name is unique within a graph and is the
// only identity used by connections.
type Node struct {
	Name        string         `json:"name" yaml:"name"`
	Type        string         `json:"type" yaml:"type"`
	ID          string         `json:"id,omitempty" yaml:"id,omitempty"`
	TypeVersion float64        `json:"typeVersion,omitempty" yaml:"typeVersion,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// Target is one destination of a connection branch.
type Target struct {
	Node  string `json:"node" yaml:"node"`
	Type  string `json:"type,omitempty" yaml:"type,omitempty"`
	Index int    `json:"index" yaml:"index"`
}

// Branch is the ordered fan-out from one source output.
type Branch []Target

// Connections maps a source node name to its branches grouped by connection kind.
type Connections map[string]map[string][]Branch

// Graph is a decoded workflow document.
type Graph struct {
	Name        string      `json:"name,omitempty" yaml:"name,omitempty"`
	Nodes       []Node      `json:"nodes" yaml:"nodes"`
	Connections Connections `json:"connections" yaml:"connections"`
}

// Adjacency is the connection index of a graph, built in one pass.
type Adjacency struct {
	touched map[string]struct{}
	inbound map[string]map[string]struct{}
}

// Adjacency indexes g.Connections. A nil graph yields an empty index.
func (g *Graph) Adjacency() *Adjacency {
	adj := &Adjacency{
		touched: make(map[string]struct{}),
		inbound: make(map[string]map[string]struct{}),
	}
	if g == nil {
		return adj
	}
	for source, kinds := range g.Connections {
		adj.touched[source] = struct{}{}
		for kind, branches := range kinds {
			targets := adj.inbound[kind]
			if targets == nil {
				targets = make(map[string]struct{})
				adj.inbound[kind] = targets
			}
			for _, branch := range branches {
				for _, target := range branch {
					adj.touched[target.Node] = struct{}{}
					targets[target.Node] = struct{}{}
				}
			}
		}
	}
	return adj
}

// Touched reports whether name appears as a connection source or target.
func (a *Adjacency) Touched(name string) bool {
	_, ok := a.touched[name]
	return ok
}

// Receives reports whether name is the target of at least one branch under kind.
func (a *Adjacency) Receives(kind, name string) bool {
	_, ok := a.inbound[kind][name]
	return ok
}

// Orphans returns, in node order, the names of nodes that never appear as a
// connection source or target.
func (g *Graph) Orphans() []string {
	if g == nil {
		return nil
	}
	return g.Adjacency().Orphans(g.Nodes)
}

// Orphans returns the names in nodes that the index never touched.
func (a *Adjacency) Orphans(nodes []Node) []string {
	var orphans []string
	for _, node := range nodes {
		if !a.Touched(node.Name) {
			orphans = append(orphans, node.Name)
		}
	}
	return orphans
}

// NodesOfType returns the names of nodes whose type equals nodeType exactly.
func (g *Graph) NodesOfType(nodeType string) []string {
	if g == nil {
		return nil
	}
	var names []string
	for _, node := range g.Nodes {
		if node.Type == nodeType {
			names = append(names, node.Name)
		}
	}
	return names
}

// EdgeCount returns the total number of branch targets.
func (g *Graph) EdgeCount() int {
	if g == nil {
		return 0
	}
	count := 0
	for _, kinds := range g.Connections {
		for _, branches := range kinds {
			for _, branch := range branches {
				count += len(branch)
			}
		}
	}
	return count
}
