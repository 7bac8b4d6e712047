// errors.go - Error types and exit codes shared by every batchrun command.
//
// Commands return errors and let main decide how to display them:
//   - handlers never print and return nil for a failure
//   - structured types carry what JSON output needs
//   - GetExitCode maps an error to the process exit status
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"github.com/jeranaias/batchrun/internal/config"
	"github.com/jeranaias/batchrun/internal/history"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general error or a run with failed tasks
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitNetworkError indicates the status server could not listen
	ExitNetworkError = 5
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
	// ExitInterrupted indicates the run was stopped by a signal
	ExitInterrupted = 130
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // Command that failed (e.g., "run", "history")
	Action  string // Action being performed (e.g., "open journal")
	Reason  string // Human-readable reason
	Err     error  // Underlying error (if any)
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError represents a validation failure for user input.
type ValidationError struct {
	Field   string // Field that failed validation
	Value   string // Value that was provided
	Reason  string // Why validation failed
	Example string // Example of valid value (optional)
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// NotFoundError represents a resource not found error.
type NotFoundError struct {
	Resource string // Type of resource (e.g., "run", "config key")
	ID       string // Identifier that was not found
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// TasksFailedError is returned by a headless run in which tasks failed.
type TasksFailedError struct {
	Failed int
	NotRun int
}

func (e *TasksFailedError) Error() string {
	if e.NotRun > 0 {
		return fmt.Sprintf("%d task(s) failed, %d not run", e.Failed, e.NotRun)
	}
	return fmt.Sprintf("%d task(s) failed", e.Failed)
}

// InterruptedError is returned when a signal stopped a headless run.
type InterruptedError struct {
	Signal string
}

func (e *InterruptedError) Error() string {
	return "interrupted by " + e.Signal
}

// =============================================================================
// ERROR CONSTRUCTION HELPERS
// =============================================================================

// NewCommandError creates a new command error.
func NewCommandError(command, action, reason string, err error) error {
	return &CommandError{
		Command: command,
		Action:  action,
		Reason:  reason,
		Err:     err,
	}
}

// NewValidationError creates a new validation error.
func NewValidationError(field, value, reason string) error {
	return &ValidationError{
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// NewValidationErrorWithExample creates a validation error with an example.
func NewValidationErrorWithExample(field, value, reason, example string) error {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Reason:  reason,
		Example: example,
	}
}

// NewNotFoundError creates a new not found error.
func NewNotFoundError(resource, id string) error {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// ErrMissingArgument creates an error for missing required arguments.
func ErrMissingArgument(argName, usage string) error {
	return NewValidationErrorWithExample(argName, "", "required argument missing", usage)
}

// =============================================================================
// ERROR DISPLAY
// =============================================================================

// DisplayError writes err for the user. In JSON mode a structured error
// object goes to stdout; otherwise a styled line goes to stderr.
func DisplayError(err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		DisplayErrorJSON(os.Stdout, err)
		return
	}
	fmt.Fprintf(os.Stderr, "%s %s\n", RenderConditional(ErrorStyle, "[ERROR]"), err.Error())
}

// DisplayErrorJSON writes err as a JSON object.
func DisplayErrorJSON(w io.Writer, err error) {
	output := map[string]interface{}{
		"error":     err.Error(),
		"success":   false,
		"exit_code": GetExitCode(err),
	}

	var (
		cmdErr    *CommandError
		valErr    *ValidationError
		notFound  *NotFoundError
		failedErr *TasksFailedError
	)
	switch {
	case errors.As(err, &valErr):
		output["error_type"] = "validation_error"
		output["field"] = valErr.Field
		output["value"] = valErr.Value
		output["reason"] = valErr.Reason
		if valErr.Example != "" {
			output["example"] = valErr.Example
		}
	case errors.As(err, &notFound):
		output["error_type"] = "not_found_error"
		output["resource"] = notFound.Resource
		output["id"] = notFound.ID
	case errors.As(err, &failedErr):
		output["error_type"] = "tasks_failed"
		output["failed"] = failedErr.Failed
		output["not_run"] = failedErr.NotRun
	case errors.As(err, &cmdErr):
		output["error_type"] = "command_error"
		output["command"] = cmdErr.Command
		output["action"] = cmdErr.Action
		output["reason"] = cmdErr.Reason
		if cmdErr.Err != nil {
			output["underlying_error"] = cmdErr.Err.Error()
		}
	default:
		output["error_type"] = "generic_error"
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.Encode(output)
}

// HandleErrorAndExit displays an error and exits with its exit code.
func HandleErrorAndExit(err error, jsonMode bool) {
	if err == nil {
		return
	}
	DisplayError(err, jsonMode)
	os.Exit(GetExitCode(err))
}

// GetExitCode determines the exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return ExitUsageError
	}

	var notFoundErr *NotFoundError
	if errors.As(err, &notFoundErr) || errors.Is(err, history.ErrRunNotFound) {
		return ExitNotFoundError
	}

	var interrupted *InterruptedError
	if errors.As(err, &interrupted) {
		return ExitInterrupted
	}

	var cfgErr config.ValidationError
	var cfgErrs config.ValidateErrors
	if errors.As(err, &cfgErr) || errors.As(err, &cfgErrs) {
		return ExitConfigError
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ExitNetworkError
	}

	errMsg := strings.ToLower(err.Error())
	if strings.Contains(errMsg, "config") {
		return ExitConfigError
	}

	return ExitGeneralError
}

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
