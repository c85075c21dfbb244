// Copyright 2026 © The Flowgate Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadGraph loads a workflow graph from a JSON or YAML file.
// A missing file is reported with an error satisfying errors.Is(err, fs.ErrNotExist).
func LoadGraph(path string) (*Graph, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("workflow path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, data)
}

// Parse decodes data using the format implied by name's extension,
// falling back to content sniffing.
func Parse(name string, data []byte) (*Graph, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return ParseJSON(data)
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return parseGraphAuto(data)
	}
}

func parseGraphAuto(data []byte) (*Graph, error) {
	trimmed := strings.TrimSpace(string(data))
	// A JSON object is JSON; YAML would coerce mismatched types into strings.
	if strings.HasPrefix(trimmed, "{") {
		return ParseJSON(data)
	}
	if graph, err := ParseYAML(data); err == nil {
		return graph, nil
	}
	return nil, fmt.Errorf("unsupported workflow format")
}
