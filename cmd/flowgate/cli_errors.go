// Copyright 2026 © The Flowgate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/jllopis/flowgate/pkg/errors"
)

// CLIError wraps errors.Error with a hint for the user.
type CLIError struct {
	Cause *errors.Error
	Hint  string
}

// NewCLIError creates a new CLI error.
func NewCLIError(err *errors.Error, hint string) *CLIError {
	return &CLIError{
		Cause: err,
		Hint:  hint,
	}
}

// Error returns the formatted error message with hints.
func (e *CLIError) Error() string {
	if e.Cause == nil {
		return "unknown error"
	}

	msg := e.Cause.Error()
	if e.Hint != "" {
		msg += "\n  Hint: " + e.Hint
	}
	return msg
}

// Unwrap exposes the typed error.
func (e *CLIError) Unwrap() error {
	if e.Cause == nil {
		return nil
	}
	return e.Cause
}

// Print writes the error to w, as a JSON object when asJSON is set.
func (e *CLIError) Print(w io.Writer, asJSON bool) {
	code, message := errors.CodeInternal, "unknown error"
	if e.Cause != nil {
		code, message = e.Cause.Code, e.Cause.Message
		if e.Cause.Err != nil {
			message += ": " + e.Cause.Err.Error()
		}
	}

	if asJSON {
		payload, _ := json.Marshal(map[string]any{
			"error": map[string]string{
				"code":    string(code),
				"message": message,
				"hint":    e.Hint,
			},
		})
		fmt.Fprintln(w, string(payload))
		return
	}

	fmt.Fprintf(w, "%s (%s): %s\n", color.New(color.FgRed, color.Bold).Sprint("Error"), FormatErrorCode(code), message)
	if e.Hint != "" {
		fmt.Fprintf(w, "  Hint: %s\n", e.Hint)
	}
}

// NewNotFoundError creates a not found error with CLI hints.
func NewNotFoundError(resource, name string) *CLIError {
	fe := errors.New(errors.CodeNotFound, fmt.Sprintf("%s '%s' not found", resource, name), nil).
		WithContext("resource", resource).
		WithContext("name", name)
	return NewCLIError(fe, fmt.Sprintf("check the %s path or set workflow.path", resource))
}

// NewInvalidArgumentError creates an invalid argument error with CLI hints.
func NewInvalidArgumentError(arg, reason string) *CLIError {
	fe := errors.New(errors.CodeInvalidInput, fmt.Sprintf("invalid argument: %s", reason), nil).
		WithContext("argument", arg).
		WithContext("reason", reason)
	return NewCLIError(fe, "run 'flowgate help' for usage information")
}

// NewConfigError creates a configuration error with CLI hints.
func NewConfigError(err error, configPath string) *CLIError {
	fe := errors.As(err)
	if fe.Code != errors.CodeConfig {
		fe = errors.New(errors.CodeConfig, "configuration error", err)
	}
	if configPath != "" {
		fe = fe.WithContext("config_path", configPath)
	}

	hint := "check your configuration file, FLOWGATE_ variables and --set flags"
	if configPath != "" {
		hint = fmt.Sprintf("check %s for syntax errors", configPath)
	}
	return NewCLIError(fe, hint)
}

// NewDeliveryError wraps a failed report delivery.
func NewDeliveryError(err error, sink string) *CLIError {
	fe := errors.As(err)
	return NewCLIError(fe, fmt.Sprintf("the verdict stands; check the %s sink settings under notify.*", sink))
}

// FormatErrorCode returns a user-friendly name for error codes.
func FormatErrorCode(code errors.ErrorCode) string {
	switch code {
	case errors.CodeInternal:
		return "Internal Error"
	case errors.CodeInvalidInput:
		return "Invalid Input"
	case errors.CodeNotFound:
		return "Not Found"
	case errors.CodeTimeout:
		return "Timeout"
	case errors.CodeContextLost:
		return "Context Lost"
	case errors.CodeEvaluationFault:
		return "Evaluation Fault"
	case errors.CodeDeliveryFailed:
		return "Delivery Failed"
	case errors.CodeConfig:
		return "Configuration Error"
	default:
		return string(code)
	}
}
