// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package api

// Pipeline states reported by the API. The lifecycle is
// new -> queued -> running -> complete|error|canceled; cancel-requested is
// a transient state observed between a cancel call and the cancellation.
const (
	StateNew             = "new"
	StateQueued          = "queued"
	StateRunning         = "running"
	StateComplete        = "complete"
	StateError           = "error"
	StateCanceled        = "canceled"
	StateCancelRequested = "cancel-requested"
)

// PipelineStates lists the states accepted by the listing filter.
var PipelineStates = []string{
	StateNew, StateQueued, StateRunning, StateComplete, StateError, StateCanceled,
}

// Overall results reported under result.overall on complete requests.
const (
	ResultPassed  = "passed"
	ResultFailed  = "failed"
	ResultError   = "error"
	ResultSkipped = "skipped"
	ResultUnknown = "unknown"
)

// Result is the outcome block of a finished request.
type Result struct {
	Overall string `json:"overall" yaml:"overall"`
	Summary string `json:"summary,omitempty" yaml:"summary,omitempty"`
	XUnit   string `json:"xunit,omitempty" yaml:"xunit,omitempty"`
}

// Run points at the published artifacts once the pipeline is running.
type Run struct {
	Artifacts string `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
}

// Note is a remote-side annotation, surfaced on pipeline errors.
type Note struct {
	Level   string `json:"level,omitempty" yaml:"level,omitempty"`
	Message string `json:"message" yaml:"message"`
}

// RequestStatus is the request document as returned by the API, read-only
// to this client.
type RequestStatus struct {
	ID                    string           `json:"id" yaml:"id"`
	State                 string           `json:"state" yaml:"state"`
	Created               string           `json:"created,omitempty" yaml:"created,omitempty"`
	QueuedTime            *float64         `json:"queued_time,omitempty" yaml:"queued_time,omitempty"`
	RunTime               *float64         `json:"run_time,omitempty" yaml:"run_time,omitempty"`
	TokenID               string           `json:"token_id,omitempty" yaml:"token_id,omitempty"`
	Test                  Test             `json:"test" yaml:"test"`
	EnvironmentsRequested []*Environment   `json:"environments_requested,omitempty" yaml:"environments_requested,omitempty"`
	Settings              *RequestSettings `json:"settings,omitempty" yaml:"settings,omitempty"`
	User                  *User            `json:"user,omitempty" yaml:"user,omitempty"`
	Result                *Result          `json:"result,omitempty" yaml:"result,omitempty"`
	Run                   *Run             `json:"run,omitempty" yaml:"run,omitempty"`
	Notes                 []Note           `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// ArtifactsURL returns the artifacts base URL, or "" when not yet
// available.
func (s *RequestStatus) ArtifactsURL() string {
	if s.Run == nil {
		return ""
	}
	return s.Run.Artifacts
}

// Overall returns result.overall, or "" when the result block is absent.
func (s *RequestStatus) Overall() string {
	if s.Result == nil {
		return ""
	}
	return s.Result.Overall
}

// Finished reports whether the request reached a terminal state.
func (s *RequestStatus) Finished() bool {
	switch s.State {
	case StateComplete, StateError, StateCanceled:
		return true
	}
	return false
}

// IsReservation reports whether any requested environment carries the
// reservation duration variable.
func (s *RequestStatus) IsReservation() bool {
	for _, environment := range s.EnvironmentsRequested {
		if environment.Variables == nil {
			continue
		}
		if _, ok := environment.Variables["TF_RESERVATION_DURATION"]; ok {
			return true
		}
	}
	return false
}

// SubmitResponse is the body of a successful POST /v0.1/requests.
type SubmitResponse struct {
	ID string `json:"id"`
}

// APIError is the structured error body of 4xx responses.
type APIError struct {
	Message string `json:"message"`
}

// Whoami resolves the identity behind a bearer token.
type Whoami struct {
	Token struct {
		ID    string `json:"id"`
		Name  string `json:"name,omitempty"`
		Ranch string `json:"ranch"`
	} `json:"token"`
}

// Compose acceptance rule types.
const (
	ComposeTypeCompose = "compose"
	ComposeTypeRegex   = "regex"
)

// Compose is one accepted compose name, or a regex-type acceptance rule.
type Compose struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// ComposesResponse is the body of GET /v0.1/composes/{ranch}.
type ComposesResponse struct {
	Composes []Compose `json:"composes"`
}

// EncryptPayload is the body of POST /v0.1/secrets/encrypt.
type EncryptPayload struct {
	URL     string `json:"url"`
	Message string `json:"message"`
	TokenID string `json:"token_id,omitempty"`
}
