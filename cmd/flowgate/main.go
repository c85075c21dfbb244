// Copyright 2026 © The Flowgate Authors
// SPDX-License-Identifier: Apache-2.0

// Package main implements the flowgate CLI.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/jllopis/flowgate/pkg/ci"
	"github.com/jllopis/flowgate/pkg/config"
	"github.com/jllopis/flowgate/pkg/errors"
	"github.com/jllopis/flowgate/pkg/telemetry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const serviceName = "flowgate"

type globalFlags struct {
	ConfigArgs []string
	JSON       bool
	NoColor    bool
	Help       bool
}

// app carries what every command needs.
type app struct {
	global  globalFlags
	cfg     *config.Config
	stdout  io.Writer
	stderr  io.Writer
	lookup  ci.LookupFunc
	logger  *slog.Logger
	metrics *telemetry.EvalMetrics
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global, rest, err := parseGlobalFlags(args)
	if err != nil {
		return reportError(stderr, NewInvalidArgumentError("flags", err.Error()), global.JSON)
	}
	if global.NoColor {
		color.NoColor = true
	}
	if global.Help || len(rest) == 0 {
		printUsage(stdout)
		return 0
	}

	cmd := rest[0]
	switch cmd {
	case "help":
		printUsage(stdout)
		return 0
	case "version":
		printVersion(stdout, global.JSON)
		return 0
	}

	cfg, err := config.LoadWithCLI(global.ConfigArgs)
	if err != nil {
		return reportError(stderr, NewConfigError(err, configPath(global.ConfigArgs)), global.JSON)
	}

	logOut, closeLog := telemetry.LogWriter(cfg.Log.File, stderr)
	defer func() { _ = closeLog() }()
	logger := telemetry.ConfigureSlog(logOut, cfg.Log.Level, cfg.Log.Format)

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitWithConfig(serviceName, version, telemetry.Config{
			Exporter:     cfg.Telemetry.Exporter,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		})
		if err != nil {
			return reportError(stderr, NewConfigError(err, configPath(global.ConfigArgs)), global.JSON)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
			}
		}()
	}
	metrics, err := telemetry.NewEvalMetrics(ctx)
	if err != nil {
		logger.Warn("metrics disabled", slog.String("error", err.Error()))
	}

	a := &app{
		global:  global,
		cfg:     cfg,
		stdout:  stdout,
		stderr:  stderr,
		lookup:  os.LookupEnv,
		logger:  logger,
		metrics: metrics,
	}

	switch cmd {
	case "check":
		return a.exit(a.runCheck(ctx, rest[1:]))
	case "graph":
		return a.exit(a.runGraph(rest[1:]))
	case "history":
		return a.exit(a.runHistory(ctx, rest[1:]))
	case "watch":
		return a.exit(a.runWatch(ctx, rest[1:]))
	default:
		return reportError(stderr, NewInvalidArgumentError(cmd, fmt.Sprintf("unknown command %q", cmd)), global.JSON)
	}
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	var flags globalFlags

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		switch {
		case arg == "-h" || arg == "--help":
			flags.Help = true
			return flags, nil, nil
		case arg == "--json":
			flags.JSON = true
		case arg == "--no-color":
			flags.NoColor = true
		case arg == "--config" || arg == "--set" || arg == "--env-file":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for %s", arg)
			}
			flags.ConfigArgs = append(flags.ConfigArgs, arg, args[i+1])
			i++
		case strings.HasPrefix(arg, "--config="),
			strings.HasPrefix(arg, "--set="),
			strings.HasPrefix(arg, "--env-file="):
			flags.ConfigArgs = append(flags.ConfigArgs, arg)
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
	}
	return flags, nil, nil
}

// exitCode lets a command report a verdict without an error message.
type exitCode int

func (c exitCode) Error() string { return fmt.Sprintf("exit status %d", int(c)) }

func (a *app) exit(err error) int {
	if err == nil {
		return 0
	}
	if code, ok := err.(exitCode); ok {
		return int(code)
	}
	if cliErr, ok := err.(*CLIError); ok {
		return reportError(a.stderr, cliErr, a.global.JSON)
	}
	return reportError(a.stderr, NewCLIError(errors.As(err), ""), a.global.JSON)
}

func reportError(w io.Writer, err *CLIError, asJSON bool) int {
	err.Print(w, asJSON)
	return 1
}

func configPath(args []string) string {
	for i, arg := range args {
		if arg == "--config" && i+1 < len(args) {
			return args[i+1]
		}
		if value, ok := strings.CutPrefix(arg, "--config="); ok {
			return value
		}
	}
	return ""
}

func (a *app) printJSON(value any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
}

func writeRow(writer *tabwriter.Writer, cols ...string) {
	for i, col := range cols {
		cols[i] = normalizeCell(col)
	}
	fmt.Fprintln(writer, strings.Join(cols, "\t"))
}

func normalizeCell(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return strings.Join(strings.Fields(value), " ")
}

func truncateMessage(value string, limit int) string {
	value = normalizeCell(value)
	if limit <= 0 || len(value) <= limit {
		return value
	}
	if limit <= 3 {
		return value[:limit]
	}
	return value[:limit-3] + "..."
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.UTC().Format(time.RFC3339)
}

func printVersion(w io.Writer, asJSON bool) {
	if asJSON {
		fmt.Fprintf(w, "{\"version\":%q}\n", version)
		return
	}
	fmt.Fprintln(w, version)
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `flowgate: CI quality gate for n8n AI agent workflows

Usage:
  flowgate [global flags] <command> [args]

Global flags:
  --config <path>      YAML or JSON settings file
  --env-file <path>    dotenv file (default .env, ignored when absent)
  --set key=value      Override config (repeatable)
  --json               JSON output
  --no-color           Disable coloured output

Commands:
  check [--path <file>] [--response <text>] [--expected <text>] [--sink <name>]
  graph [--path <file>] [--output mermaid|dot|json|orphans]
  history [--builder <login>] [--repo <owner/name>] [--status pass|fail] [--limit N]
  watch [--path <file>] [--interval 2s]
  version
  help

check exits with status 1 when the workflow fails the gate.
`)
}
