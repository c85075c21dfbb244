// Copyright 2026 © The Flowgate Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads flowgate settings from defaults, an optional YAML or
// JSON file, a .env file, FLOWGATE_ environment variables and --set flags,
// in increasing order of precedence.
package config

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/jllopis/flowgate/pkg/errors"
	"github.com/jllopis/flowgate/pkg/eval"
)

// EnvPrefix prefixes every environment override (FLOWGATE_EVAL_THRESHOLD -> eval.threshold).
const EnvPrefix = "FLOWGATE_"

type Config struct {
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Eval      EvalConfig      `koanf:"eval"`
	Workflow  WorkflowConfig  `koanf:"workflow"`
	Notify    NotifyConfig    `koanf:"notify"`
	Identity  IdentityConfig  `koanf:"identity"`
	History   HistoryConfig   `koanf:"history"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
	File   string `koanf:"file"`   // optional, rotated
}

type TelemetryConfig struct {
	Enabled      bool   `koanf:"enabled"`
	Exporter     string `koanf:"exporter"` // stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

type EvalConfig struct {
	Threshold   float64     `koanf:"threshold"`
	TonePhrases []string    `koanf:"tone_phrases"`
	Concurrent  bool        `koanf:"concurrent"`
	Schema      eval.Schema `koanf:"schema"`
}

// Engine converts the loaded settings into an evaluator configuration.
func (c EvalConfig) Engine() eval.Config {
	phrases := make([]string, len(c.TonePhrases))
	copy(phrases, c.TonePhrases)
	return eval.Config{
		Threshold:   c.Threshold,
		TonePhrases: phrases,
		Schema:      c.Schema,
		Concurrent:  c.Concurrent,
	}
}

type WorkflowConfig struct {
	Path     string `koanf:"path"`
	Response string `koanf:"response"`
	Expected string `koanf:"expected"`
}

type NotifyConfig struct {
	Sink              string `koanf:"sink"` // webhook, discord, stdout, none
	WebhookURL        string `koanf:"webhook_url"`
	DiscordWebhookURL string `koanf:"discord_webhook_url"`
	TimeoutSeconds    int    `koanf:"timeout_seconds"`
	MaxAttempts       int    `koanf:"max_attempts"`
}

type IdentityConfig struct {
	Users        map[string]string `koanf:"users"`
	DevopsRoleID string            `koanf:"devops_role_id"`
}

type HistoryConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

func setDefaults(k *koanf.Koanf) {
	k.Set("log.level", "info")
	k.Set("log.format", "text")
	k.Set("log.file", "")

	k.Set("telemetry.enabled", false)
	k.Set("telemetry.exporter", "stdout")
	k.Set("telemetry.otlp_endpoint", "")
	k.Set("telemetry.otlp_insecure", false)

	k.Set("eval.threshold", eval.DefaultThreshold)
	k.Set("eval.tone_phrases", eval.DefaultConfig().TonePhrases)
	k.Set("eval.concurrent", false)
	k.Set("eval.schema.error_trigger_type", eval.DefaultErrorTriggerType)
	k.Set("eval.schema.agent_type", eval.DefaultAgentType)
	k.Set("eval.schema.language_model_kind", eval.DefaultLanguageModelKind)

	k.Set("workflow.path", "workflows/ai_agent_workflow.json")
	k.Set("workflow.response", "")
	k.Set("workflow.expected", "")

	k.Set("notify.sink", "stdout")
	k.Set("notify.webhook_url", "")
	k.Set("notify.discord_webhook_url", "")
	k.Set("notify.timeout_seconds", 10)
	k.Set("notify.max_attempts", 3)

	k.Set("identity.devops_role_id", "")

	k.Set("history.enabled", false)
	k.Set("history.path", "flowgate.db")
}

// Load reads defaults, the optional file at path and FLOWGATE_ variables.
func Load(path string) (*Config, error) {
	return load(cliArgs{ConfigPath: path})
}

// LoadWithCLI accepts the global CLI config flags:
//
//	--config <file>     YAML or JSON settings file
//	--env-file <file>   dotenv file, default ".env" (ignored when absent)
//	--set key=value     override a single key, repeatable
func LoadWithCLI(args []string) (*Config, error) {
	parsed, err := parseCLIArgs(args)
	if err != nil {
		return nil, errors.New(errors.CodeConfig, "invalid config flags", err)
	}
	return load(parsed)
}

func load(args cliArgs) (*Config, error) {
	k := koanf.New(".")
	setDefaults(k)

	// 1. Load from file
	if args.ConfigPath != "" {
		if err := k.Load(file.Provider(args.ConfigPath), yaml.Parser()); err != nil {
			return nil, errors.New(errors.CodeConfig, "load config file", err).
				WithContext("config_path", args.ConfigPath)
		}
	}

	// 2. .env does not override variables already set in the process.
	if args.EnvFile != "" {
		if err := godotenv.Load(args.EnvFile); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.New(errors.CodeConfig, "load env file", err).
				WithContext("env_file", args.EnvFile)
		}
	}

	// 3. Load from ENV (FLOWGATE_NOTIFY_WEBHOOK_URL -> notify.webhook_url)
	known := flattenedKeys(k)
	lists := make(map[string]bool)
	for _, key := range known {
		switch k.Get(key).(type) {
		case []string, []interface{}:
			lists[key] = true
		}
	}
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(name, value string) (string, interface{}) {
		key := envKey(known, name)
		if lists[key] {
			return key, splitList(value)
		}
		return key, value
	}), nil); err != nil {
		return nil, errors.New(errors.CodeConfig, "load environment", err)
	}

	// 4. --set overrides
	for _, kv := range args.Sets {
		key, value, err := parseSet(kv)
		if err != nil {
			return nil, errors.New(errors.CodeConfig, "invalid --set", err).WithContext("set", kv)
		}
		if err := k.Set(key, value); err != nil {
			return nil, errors.New(errors.CodeConfig, "apply --set", err).WithContext("set", kv)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.New(errors.CodeConfig, "decode config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if err := c.Eval.Engine().Validate(); err != nil {
		return errors.New(errors.CodeConfig, "invalid eval settings", err)
	}
	switch c.Notify.Sink {
	case "webhook":
		if c.Notify.WebhookURL == "" {
			return errors.New(errors.CodeConfig, "notify.webhook_url is required for the webhook sink", nil)
		}
	case "discord":
		if c.Notify.DiscordWebhookURL == "" {
			return errors.New(errors.CodeConfig, "notify.discord_webhook_url is required for the discord sink", nil)
		}
	case "stdout", "none":
	default:
		return errors.New(errors.CodeConfig, fmt.Sprintf("unknown notify sink %q", c.Notify.Sink), nil)
	}
	switch c.Telemetry.Exporter {
	case "", "stdout", "otlp":
	default:
		return errors.New(errors.CodeConfig, fmt.Sprintf("unknown telemetry exporter %q", c.Telemetry.Exporter), nil)
	}
	return nil
}

type cliArgs struct {
	ConfigPath string
	EnvFile    string
	Sets       []string
}

func parseCLIArgs(args []string) (cliArgs, error) {
	out := cliArgs{EnvFile: ".env"}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, value, hasValue := strings.Cut(arg, "=")
		switch name {
		case "--config", "--env-file", "--set":
		default:
			return out, fmt.Errorf("unknown config flag %q", arg)
		}
		if !hasValue {
			if i+1 >= len(args) {
				return out, fmt.Errorf("missing value for %s", name)
			}
			value = args[i+1]
			i++
		}
		switch name {
		case "--config":
			out.ConfigPath = value
		case "--env-file":
			out.EnvFile = value
		case "--set":
			out.Sets = append(out.Sets, value)
		}
	}
	return out, nil
}

// parseSet splits key=value. Values that look like JSON objects or arrays
// are decoded so maps and lists can be set from the command line.
func parseSet(kv string) (string, any, error) {
	key, raw, ok := strings.Cut(kv, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", nil, fmt.Errorf("expected key=value, got %q", kv)
	}
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var decoded any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
			return "", nil, fmt.Errorf("decode %s: %w", key, err)
		}
		return key, decoded, nil
	}
	return key, raw, nil
}

// flattenedKeys maps "eval_tone_phrases" style names to their dotted keys.
func flattenedKeys(k *koanf.Koanf) map[string]string {
	known := make(map[string]string)
	for _, key := range k.Keys() {
		known[strings.ReplaceAll(key, ".", "_")] = key
	}
	return known
}

// mapKeys are config maps whose keys are data, not settings. The part of an
// environment name after one of them keeps its case
// (FLOWGATE_IDENTITY_USERS_JaneDoe -> identity.users.JaneDoe).
var mapKeys = []string{"identity.users"}

func envKey(known map[string]string, name string) string {
	raw := strings.TrimPrefix(name, EnvPrefix)
	flat := strings.ToLower(raw)
	if key, ok := known[flat]; ok {
		return key
	}
	for _, prefix := range mapKeys {
		envPrefix := strings.ReplaceAll(prefix, ".", "_") + "_"
		if strings.HasPrefix(flat, envPrefix) && len(raw) > len(envPrefix) {
			return prefix + "." + raw[len(envPrefix):]
		}
	}
	return strings.ReplaceAll(flat, "_", ".")
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
