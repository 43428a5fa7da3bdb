// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

// Package api defines the documents exchanged with the Testing Farm API.
// A Request is built once per invocation and is immutable after submission.
package api

// Test selects exactly one of the two supported test descriptors. The API
// keys the variant by its JSON field name.
type Test struct {
	FMF *TestFMF `json:"fmf,omitempty" yaml:"fmf,omitempty"`
	STI *TestSTI `json:"sti,omitempty" yaml:"sti,omitempty"`
}

// Type returns the wire name of the variant carried by the union.
func (t Test) Type() string {
	if t.FMF != nil {
		return "fmf"
	}
	if t.STI != nil {
		return "sti"
	}
	return ""
}

// URL returns the git URL of whichever variant is set.
func (t Test) URL() string {
	if t.FMF != nil {
		return t.FMF.URL
	}
	if t.STI != nil {
		return t.STI.URL
	}
	return ""
}

// Ref returns the git ref of whichever variant is set.
func (t Test) Ref() string {
	if t.FMF != nil {
		return t.FMF.Ref
	}
	if t.STI != nil {
		return t.STI.Ref
	}
	return ""
}

// TestFMF describes a tmt/fmf test selection.
type TestFMF struct {
	URL        string `json:"url" yaml:"url"`
	Ref        string `json:"ref" yaml:"ref"`
	MergeSHA   string `json:"merge_sha,omitempty" yaml:"merge_sha,omitempty"`
	Name       string `json:"name,omitempty" yaml:"name,omitempty"`
	PlanFilter string `json:"plan_filter,omitempty" yaml:"plan_filter,omitempty"`
	TestName   string `json:"test_name,omitempty" yaml:"test_name,omitempty"`
	TestFilter string `json:"test_filter,omitempty" yaml:"test_filter,omitempty"`
	Path       string `json:"path,omitempty" yaml:"path,omitempty"`
}

// TestSTI describes an STI playbook test selection.
type TestSTI struct {
	URL       string   `json:"url" yaml:"url"`
	Ref       string   `json:"ref" yaml:"ref"`
	Playbooks []string `json:"playbooks,omitempty" yaml:"playbooks,omitempty"`
}

// OSImage names the compose used to provision a guest. When absent the
// tests run against the container image named in the plan.
type OSImage struct {
	Compose string `json:"compose,omitempty" yaml:"compose,omitempty"`
}

// Artifact is one installable item for the test environment.
type Artifact struct {
	Type    string `json:"type" yaml:"type"`
	ID      string `json:"id,omitempty" yaml:"id,omitempty"`
	NVR     string `json:"nvr,omitempty" yaml:"nvr,omitempty"`
	Install *bool  `json:"install,omitempty" yaml:"install,omitempty"`
}

// TMT carries the tmt-specific environment knobs.
type TMT struct {
	Context     map[string]string `json:"context,omitempty" yaml:"context,omitempty"`
	Environment map[string]string `json:"environment,omitempty" yaml:"environment,omitempty"`
	ExtraArgs   *TMTExtraArgs     `json:"extra_args,omitempty" yaml:"extra_args,omitempty"`
}

// TMTExtraArgs holds additional per-step options passed through to tmt.
type TMTExtraArgs struct {
	Discover []string `json:"discover,omitempty" yaml:"discover,omitempty"`
	Prepare  []string `json:"prepare,omitempty" yaml:"prepare,omitempty"`
	Finish   []string `json:"finish,omitempty" yaml:"finish,omitempty"`
}

// SecurityGroupRule opens a port range towards or from a CIDR on the
// provisioned guest. Supported by AWS pools only.
type SecurityGroupRule struct {
	Type     string `json:"type" yaml:"type"`
	Protocol string `json:"protocol" yaml:"protocol"`
	CIDR     string `json:"cidr" yaml:"cidr"`
	PortMin  int    `json:"port_min" yaml:"port_min"`
	PortMax  int    `json:"port_max" yaml:"port_max"`
}

// Provisioning carries guest provisioning settings.
type Provisioning struct {
	Tags                      map[string]string   `json:"tags,omitempty" yaml:"tags,omitempty"`
	WatchdogDispatchDelay     *int                `json:"watchdog-dispatch-delay,omitempty" yaml:"watchdog-dispatch-delay,omitempty"`
	WatchdogPeriodDelay       *int                `json:"watchdog-period-delay,omitempty" yaml:"watchdog-period-delay,omitempty"`
	PostInstallScript         string              `json:"post_install_script,omitempty" yaml:"post_install_script,omitempty"`
	SecurityGroupRulesIngress []SecurityGroupRule `json:"security_group_rules_ingress,omitempty" yaml:"security_group_rules_ingress,omitempty"`
	SecurityGroupRulesEgress  []SecurityGroupRule `json:"security_group_rules_egress,omitempty" yaml:"security_group_rules_egress,omitempty"`
}

// EnvironmentSettings wraps per-environment settings blocks.
type EnvironmentSettings struct {
	Provisioning *Provisioning `json:"provisioning,omitempty" yaml:"provisioning,omitempty"`
}

// Environment describes one requested test environment, one per
// architecture.
type Environment struct {
	Arch      string                 `json:"arch" yaml:"arch"`
	OS        *OSImage               `json:"os,omitempty" yaml:"os,omitempty"`
	Pool      string                 `json:"pool,omitempty" yaml:"pool,omitempty"`
	Variables map[string]string      `json:"variables,omitempty" yaml:"variables,omitempty"`
	Secrets   map[string]string      `json:"secrets,omitempty" yaml:"secrets,omitempty"`
	Artifacts []Artifact             `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
	Hardware  map[string]interface{} `json:"hardware,omitempty" yaml:"hardware,omitempty"`
	Kickstart map[string]string      `json:"kickstart,omitempty" yaml:"kickstart,omitempty"`
	TMT       *TMT                   `json:"tmt,omitempty" yaml:"tmt,omitempty"`
	Settings  *EnvironmentSettings   `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// HasCompose reports whether the environment provisions a full guest
// rather than a container.
func (e *Environment) HasCompose() bool {
	return e.OS != nil && e.OS.Compose != ""
}

// EnsureProvisioning initializes the settings chain down to the
// provisioning block and returns it.
func (e *Environment) EnsureProvisioning() *Provisioning {
	if e.Settings == nil {
		e.Settings = &EnvironmentSettings{}
	}
	if e.Settings.Provisioning == nil {
		e.Settings.Provisioning = &Provisioning{}
	}
	return e.Settings.Provisioning
}

// EnsureTMT initializes the tmt block and returns it.
func (e *Environment) EnsureTMT() *TMT {
	if e.TMT == nil {
		e.TMT = &TMT{}
	}
	return e.TMT
}

// PipelineSettings tunes the remote pipeline executing the request.
type PipelineSettings struct {
	Timeout       int    `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Type          string `json:"type,omitempty" yaml:"type,omitempty"`
	ParallelLimit int    `json:"parallel-limit,omitempty" yaml:"parallel-limit,omitempty"`
}

// WorkerSettings overrides the worker container image. Requires developer
// permissions on the service side.
type WorkerSettings struct {
	Image string `json:"image" yaml:"image"`
}

// RequestSettings is the top-level settings block of a request.
type RequestSettings struct {
	Pipeline *PipelineSettings `json:"pipeline,omitempty" yaml:"pipeline,omitempty"`
	Worker   *WorkerSettings   `json:"worker,omitempty" yaml:"worker,omitempty"`
}

// Webpage annotates the request with a link shown in the results viewer.
type Webpage struct {
	URL  string `json:"url" yaml:"url"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	Icon string `json:"icon,omitempty" yaml:"icon,omitempty"`
}

// User carries user-provided request annotations.
type User struct {
	Webpage *Webpage `json:"webpage,omitempty" yaml:"webpage,omitempty"`
}

// Request is a full test request document, POSTed to /v0.1/requests.
type Request struct {
	Test         Test             `json:"test" yaml:"test"`
	Environments []*Environment   `json:"environments" yaml:"environments"`
	Settings     *RequestSettings `json:"settings,omitempty" yaml:"settings,omitempty"`
	User         *User            `json:"user,omitempty" yaml:"user,omitempty"`
}

// EnsurePipeline initializes the settings chain down to the pipeline
// block and returns it.
func (r *Request) EnsurePipeline() *PipelineSettings {
	if r.Settings == nil {
		r.Settings = &RequestSettings{}
	}
	if r.Settings.Pipeline == nil {
		r.Settings.Pipeline = &PipelineSettings{}
	}
	return r.Settings.Pipeline
}

// ContainsCompose reports whether any environment has a compose set.
func (r *Request) ContainsCompose() bool {
	for _, environment := range r.Environments {
		if environment.HasCompose() {
			return true
		}
	}
	return false
}
