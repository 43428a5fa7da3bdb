// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

// Package request assembles Testing Farm request documents from CLI
// options. Builders are deterministic: the same input yields the same
// document, all environment probing happens in the callers.
package request

import (
	"github.com/facebookincubator/farmcli/pkg/api"
	"github.com/facebookincubator/farmcli/pkg/cerrors"
	"github.com/facebookincubator/farmcli/pkg/config"
	"github.com/facebookincubator/farmcli/pkg/options"
)

// Test types accepted by the service.
const (
	TestTypeFMF = "fmf"
	TestTypeSTI = "sti"
)

// Input collects everything the request verb knows after flag parsing.
type Input struct {
	TestType string

	GitURL   string
	GitRef   string
	MergeSHA string

	PlanName   string
	PlanFilter string
	TestName   string
	TestFilter string
	Path       string
	Playbooks  []string

	Arches  []string
	Compose string
	Pool    string

	Hardware       []string
	Kickstart      []string
	TMTContext     []string
	Variables      []string
	Secrets        []string
	TMTEnvironment []string
	TMTDiscover    []string
	TMTPrepare     []string
	TMTFinish      []string

	RedHatBrewBuilds []string
	FedoraKojiBuilds []string
	FedoraCoprBuilds []string
	Repositories     []string
	RepositoryFiles  []string

	Tags                      []string
	WatchdogDispatchDelay     *int
	WatchdogPeriodDelay       *int
	PostInstallScript         string
	SecurityGroupRulesIngress []string
	SecurityGroupRulesEgress  []string

	Timeout       int
	PipelineType  string
	ParallelLimit int
	WorkerImage   string

	UserWebpage     string
	UserWebpageName string
	UserWebpageIcon string

	Reserve             bool
	ReservationDuration int
	// AuthorizedKeys is the concatenated public key material to install
	// on the reserved guest, read by the caller.
	AuthorizedKeys string
	// WorkstationIP opens ingress from the caller's address to the
	// reserved guest, resolved by the caller.
	WorkstationIP string
}

// Builder assembles request documents.
type Builder struct {
	cfg *config.Settings
}

// NewBuilder returns a Builder using cfg for service-side defaults.
func NewBuilder(cfg *config.Settings) *Builder {
	return &Builder{cfg: cfg}
}

// Build validates the input and assembles a request document.
func (b *Builder) Build(in Input) (*api.Request, error) {
	if in.Compose == "" && !singleX8664(in.Arches) {
		return nil, cerrors.Newf(
			"without compose the tests run against a container image specified in the plan. " +
				"Only 'x86_64' architecture supported in this case")
	}

	// STI has no notion of a container provision method
	if in.TestType == TestTypeSTI && in.Compose == "container" {
		return nil, cerrors.Newf("container based testing is not available for 'sti' test type")
	}

	test, err := buildTest(in)
	if err != nil {
		return nil, err
	}

	environments, err := b.buildEnvironments(in)
	if err != nil {
		return nil, err
	}

	request := &api.Request{Test: test, Environments: environments}

	if in.Reserve {
		if err := b.addReservations(request, in); err != nil {
			return nil, err
		}
	}

	if err := applyProvisioningDetails(environments[0], in); err != nil {
		return nil, err
	}

	if in.Reserve {
		// the pipeline must outlive the reservation
		timeout := in.Timeout
		if in.ReservationDuration > timeout {
			timeout = in.ReservationDuration
		}
		request.EnsurePipeline().Timeout = timeout
	}
	if in.PipelineType != "" {
		request.EnsurePipeline().Type = in.PipelineType
	}
	if in.ParallelLimit > 0 {
		request.EnsurePipeline().ParallelLimit = in.ParallelLimit
	}
	if in.WorkerImage != "" {
		if request.Settings == nil {
			request.Settings = &api.RequestSettings{}
		}
		request.Settings.Worker = &api.WorkerSettings{Image: in.WorkerImage}
	}

	if in.UserWebpage == "" && (in.UserWebpageName != "" || in.UserWebpageIcon != "") {
		return nil, cerrors.Newf("the user-webpage-name and user-webpage-icon can be used only with user-webpage option")
	}
	if in.UserWebpage != "" {
		request.User = &api.User{Webpage: &api.Webpage{
			URL:  in.UserWebpage,
			Name: in.UserWebpageName,
			Icon: in.UserWebpageIcon,
		}}
	}

	return request, nil
}

func buildTest(in Input) (api.Test, error) {
	switch in.TestType {
	case TestTypeFMF:
		return api.Test{FMF: &api.TestFMF{
			URL:        in.GitURL,
			Ref:        in.GitRef,
			MergeSHA:   in.MergeSHA,
			Name:       in.PlanName,
			PlanFilter: in.PlanFilter,
			TestName:   in.TestName,
			TestFilter: in.TestFilter,
			Path:       in.Path,
		}}, nil
	case TestTypeSTI:
		return api.Test{STI: &api.TestSTI{
			URL:       in.GitURL,
			Ref:       in.GitRef,
			Playbooks: in.Playbooks,
		}}, nil
	}
	return api.Test{}, cerrors.Newf("unsupported test type %q", in.TestType)
}

// buildEnvironments creates one environment per requested architecture.
func (b *Builder) buildEnvironments(in Input) ([]*api.Environment, error) {
	variables, err := options.OptionsToDict("environment variables", in.Variables)
	if err != nil {
		return nil, err
	}
	secrets, err := options.OptionsToDict("environment secrets", in.Secrets)
	if err != nil {
		return nil, err
	}
	kickstart, err := options.OptionsToDict("environment kickstart", in.Kickstart)
	if err != nil {
		return nil, err
	}
	tmtEnvironment, err := options.OptionsToDict("tmt environment variables", in.TMTEnvironment)
	if err != nil {
		return nil, err
	}

	var hardware map[string]interface{}
	if len(in.Hardware) > 0 {
		hardware, err = options.HWConstraints(in.Hardware)
		if err != nil {
			return nil, err
		}
	}

	artifacts, err := collectArtifacts(in)
	if err != nil {
		return nil, err
	}

	environments := make([]*api.Environment, 0, len(in.Arches))
	for _, arch := range in.Arches {
		environment := &api.Environment{
			Arch:      arch,
			Pool:      in.Pool,
			Hardware:  hardware,
			Artifacts: artifacts,
		}

		// the requested arch always travels in the tmt context, tmt
		// plans adjust on it
		tmtContext, err := options.OptionsToDict("tmt context", in.TMTContext)
		if err != nil {
			return nil, err
		}
		if _, ok := tmtContext["arch"]; !ok {
			tmtContext["arch"] = arch
		}
		environment.EnsureTMT().Context = tmtContext

		if in.Compose != "" {
			environment.OS = &api.OSImage{Compose: in.Compose}
		}
		if len(secrets) > 0 {
			environment.Secrets = secrets
		}
		if len(variables) > 0 {
			environment.Variables = variables
		}
		if len(kickstart) > 0 {
			environment.Kickstart = kickstart
		}
		if len(tmtEnvironment) > 0 {
			environment.EnsureTMT().Environment = tmtEnvironment
		}

		if len(in.TMTDiscover) > 0 || len(in.TMTPrepare) > 0 || len(in.TMTFinish) > 0 {
			tmt := environment.EnsureTMT()
			tmt.ExtraArgs = &api.TMTExtraArgs{
				Discover: in.TMTDiscover,
				Prepare:  in.TMTPrepare,
				Finish:   in.TMTFinish,
			}
		}

		environments = append(environments, environment)
	}
	return environments, nil
}

func collectArtifacts(in Input) ([]api.Artifact, error) {
	var all []api.Artifact
	for _, source := range []struct {
		artifactType string
		raw          []string
	}{
		{"redhat-brew-build", in.RedHatBrewBuilds},
		{"fedora-koji-build", in.FedoraKojiBuilds},
		{"fedora-copr-build", in.FedoraCoprBuilds},
		{"repository", in.Repositories},
		{"repository-file", in.RepositoryFiles},
	} {
		if len(source.raw) == 0 {
			continue
		}
		artifacts, err := options.Artifacts(source.artifactType, source.raw)
		if err != nil {
			return nil, err
		}
		all = append(all, artifacts...)
	}
	return all, nil
}

// applyProvisioningDetails attaches the guest provisioning options. The
// API reads them from the first environment.
func applyProvisioningDetails(environment *api.Environment, in Input) error {
	if len(in.Tags) > 0 {
		tags, err := options.OptionsToDict("tags", in.Tags)
		if err != nil {
			return err
		}
		environment.EnsureProvisioning().Tags = tags
	}
	if in.WatchdogDispatchDelay != nil {
		environment.EnsureProvisioning().WatchdogDispatchDelay = in.WatchdogDispatchDelay
	}
	if in.WatchdogPeriodDelay != nil {
		environment.EnsureProvisioning().WatchdogPeriodDelay = in.WatchdogPeriodDelay
	}
	if in.PostInstallScript != "" {
		environment.EnsureProvisioning().PostInstallScript = in.PostInstallScript
	}

	if len(in.SecurityGroupRulesIngress) > 0 || len(in.SecurityGroupRulesEgress) > 0 {
		ingress, egress, err := ParseSecurityGroupRules(in.SecurityGroupRulesIngress, in.SecurityGroupRulesEgress)
		if err != nil {
			return err
		}
		provisioning := environment.EnsureProvisioning()
		provisioning.SecurityGroupRulesIngress = ingress
		provisioning.SecurityGroupRulesEgress = egress
	}
	return nil
}

// addReservations appends the reservation test to every environment.
func (b *Builder) addReservations(request *api.Request, in Input) error {
	if !request.ContainsCompose() {
		return cerrors.Newf("reservations are not supported with container executions, cannot continue")
	}
	if len(request.Environments) > 1 {
		return cerrors.Newf("reservations are currently supported for a single plan, cannot continue")
	}

	ingress, _, err := ParseSecurityGroupRules([]string{LocalhostIngressRule(in.WorkstationIP)}, nil)
	if err != nil {
		return err
	}

	for _, environment := range request.Environments {
		if err := b.AddReservation(environment, in.AuthorizedKeys, ingress, nil, in.ReservationDuration); err != nil {
			return err
		}
	}
	return nil
}

func singleX8664(arches []string) bool {
	return len(arches) == 1 && arches[0] == "x86_64"
}
