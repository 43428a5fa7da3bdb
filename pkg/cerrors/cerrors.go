// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package cerrors

import (
	"fmt"
)

// Process exit codes. The CLI distinguishes test failures from
// infrastructure problems so automation can react to each.
const (
	ExitCodeOK          = 0
	ExitCodeTestsFailed = 1
	ExitCodeInfraError  = 2
	ExitCodeUserError   = 255
)

// ExitError carries a process exit code together with a user-facing
// message. The main function unwraps it to decide the exit status.
type ExitError struct {
	Code int
	Msg  string
}

// Error returns the error string associated with the error
func (e *ExitError) Error() string {
	return e.Msg
}

// Newf builds an ExitError with the generic user-error code.
func Newf(format string, args ...interface{}) *ExitError {
	return &ExitError{Code: ExitCodeUserError, Msg: fmt.Sprintf(format, args...)}
}

// Infraf builds an ExitError signalling an infrastructure or connection
// failure.
func Infraf(format string, args ...interface{}) *ExitError {
	return &ExitError{Code: ExitCodeInfraError, Msg: fmt.Sprintf(format, args...)}
}

// TestsFailedf builds an ExitError signalling a test failure, as opposed
// to an infrastructure error.
func TestsFailedf(format string, args ...interface{}) *ExitError {
	return &ExitError{Code: ExitCodeTestsFailed, Msg: fmt.Sprintf(format, args...)}
}

// ConfigError indicates that an option file passed via `@file` could not
// be loaded or has an unsupported structure.
type ConfigError struct {
	Path   string
	Reason string
}

// Error returns the error string associated with the error
func (e *ConfigError) Error() string {
	return fmt.Sprintf("option file %s: %s", e.Path, e.Reason)
}

// OptionFormatError indicates a key=value option token that could not be
// parsed.
type OptionFormatError struct {
	Name  string
	Token string
}

// Error returns the error string associated with the error
func (e *OptionFormatError) Error() string {
	return fmt.Sprintf("option `%s` of %s is invalid, must be defined as `key=value|@file`", e.Token, e.Name)
}

// ConstraintFormatError indicates a hardware constraint that could not be
// parsed into a dotted path and a value.
type ConstraintFormatError struct {
	Constraint string
}

// Error returns the error string associated with the error
func (e *ConstraintFormatError) Error() string {
	return fmt.Sprintf("cannot parse hardware constraint `%s`", e.Constraint)
}

// AuthError indicates the API rejected the bearer token.
type AuthError struct {
	Docs string
}

// Error returns the error string associated with the error
func (e *AuthError) Error() string {
	return fmt.Sprintf("API token is invalid. See %s for more information", e.Docs)
}

// ValidationError carries the server-provided message of a 400 response.
type ValidationError struct {
	Message string
	Tracker string
}

// Error returns the error string associated with the error
func (e *ValidationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "Reason unknown."
	}
	return fmt.Sprintf("request is invalid. %s\nPlease file an issue to %s if unsure", msg, e.Tracker)
}

// NotFoundError indicates the request ID is unknown to the API.
type NotFoundError struct {
	ID string
}

// Error returns the error string associated with the error
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("request %s was not found", e.ID)
}
