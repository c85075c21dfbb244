// Copyright 2026 © The Flowgate Authors
// SPDX-License-Identifier: Apache-2.0

// Package ci reads build metadata from the CI environment and maps builder
// logins to notification targets.
package ci

import (
	"log/slog"
	"os"
	"strings"
)

// Defaults used when the CI environment does not provide a value.
const (
	DefaultBuilder = "Unknown_Builder"
	DefaultRepo    = "Unknown_Repo"
)

// Metadata describes the build being gated.
type Metadata struct {
	Builder string `json:"builder"`
	Repo    string `json:"repo"`
	RunID   string `json:"run_id,omitempty"`
	Commit  string `json:"commit,omitempty"`
	Ref     string `json:"ref,omitempty"`
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// FromEnv reads GitHub Actions variables through lookup. A nil lookup reads
// the process environment. Blank values count as unset.
func FromEnv(lookup LookupFunc) Metadata {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key, fallback string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return fallback
	}
	return Metadata{
		Builder: get("GITHUB_ACTOR", DefaultBuilder),
		Repo:    get("GITHUB_REPOSITORY", DefaultRepo),
		RunID:   get("GITHUB_RUN_ID", ""),
		Commit:  get("GITHUB_SHA", ""),
		Ref:     get("GITHUB_REF_NAME", ""),
	}
}

// Directory maps builder logins to notification ids.
type Directory struct {
	Users    map[string]string
	Fallback string
	Logger   *slog.Logger
}

// Resolve returns the id mapped to login, or Fallback when there is none.
// The second result reports whether login was found.
func (d Directory) Resolve(login string) (string, bool) {
	if id, ok := d.Users[login]; ok && id != "" {
		return id, true
	}
	// GitHub logins are case-insensitive.
	for user, id := range d.Users {
		if id != "" && strings.EqualFold(user, login) {
			return id, true
		}
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("no notification id for builder, using fallback",
		slog.String("builder", login),
		slog.Bool("fallback_set", d.Fallback != ""),
	)
	return d.Fallback, false
}
