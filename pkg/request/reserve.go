// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package request

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/facebookincubator/farmcli/pkg/api"
	"github.com/facebookincubator/farmcli/pkg/cerrors"
	"github.com/facebookincubator/farmcli/pkg/config"
	"github.com/facebookincubator/farmcli/pkg/options"
)

// ReserveInput describes a standalone reservation request.
type ReserveInput struct {
	Arch    string
	Compose string
	Pool    string

	Hardware  []string
	Tags      []string
	Kickstart []string

	RedHatBrewBuilds []string
	FedoraKojiBuilds []string
	FedoraCoprBuilds []string
	Repositories     []string
	RepositoryFiles  []string

	PostInstallScript string
	WorkerImage       string

	SecurityGroupRulesIngress []string
	SecurityGroupRulesEgress  []string
	// SkipWorkstationAccess leaves the caller's address out of the
	// ingress rules.
	SkipWorkstationAccess bool
	WorkstationIP         string

	// GitRef overrides the reservation plan ref, useful when testing
	// changes to the plan itself.
	GitRef string

	Duration       int
	AuthorizedKeys string
}

// BuildReserve assembles a request running only the reservation plan.
func (b *Builder) BuildReserve(in ReserveInput) (*api.Request, error) {
	ref := in.GitRef
	if ref == "" {
		ref = b.cfg.ReserveRef
	}

	environment := &api.Environment{
		Arch: in.Arch,
		Pool: in.Pool,
	}

	// interactive guests on spot instances get reclaimed under the
	// user, force regular instances
	provisioning := environment.EnsureProvisioning()
	provisioning.Tags = map[string]string{"ArtemisUseSpot": "false"}

	if in.Compose != "" {
		environment.OS = &api.OSImage{Compose: in.Compose}
	}

	if len(in.Hardware) > 0 {
		hardware, err := options.HWConstraints(in.Hardware)
		if err != nil {
			return nil, err
		}
		environment.Hardware = hardware
	}

	if len(in.Tags) > 0 {
		tags, err := options.OptionsToDict("tags", in.Tags)
		if err != nil {
			return nil, err
		}
		tags["ArtemisUseSpot"] = "false"
		provisioning.Tags = tags
	}

	if len(in.Kickstart) > 0 {
		kickstart, err := options.OptionsToDict("environment kickstart", in.Kickstart)
		if err != nil {
			return nil, err
		}
		environment.Kickstart = kickstart
	}

	artifacts, err := collectArtifacts(Input{
		RedHatBrewBuilds: in.RedHatBrewBuilds,
		FedoraKojiBuilds: in.FedoraKojiBuilds,
		FedoraCoprBuilds: in.FedoraCoprBuilds,
		Repositories:     in.Repositories,
		RepositoryFiles:  in.RepositoryFiles,
	})
	if err != nil {
		return nil, err
	}
	environment.Artifacts = artifacts

	if in.PostInstallScript != "" {
		provisioning.PostInstallScript = in.PostInstallScript
	}

	ingressOptions := in.SecurityGroupRulesIngress
	if !in.SkipWorkstationAccess {
		ingressOptions = append(ingressOptions, LocalhostIngressRule(in.WorkstationIP))
	}
	if len(ingressOptions) > 0 || len(in.SecurityGroupRulesEgress) > 0 {
		ingress, egress, err := ParseSecurityGroupRules(ingressOptions, in.SecurityGroupRulesEgress)
		if err != nil {
			return nil, err
		}
		provisioning.SecurityGroupRulesIngress = ingress
		provisioning.SecurityGroupRulesEgress = egress
	}

	environment.Variables = map[string]string{
		ReservationDurationVariable: strconv.Itoa(in.Duration),
	}

	if in.AuthorizedKeys == "" {
		return nil, cerrors.Newf("no public SSH keys found, cannot continue")
	}
	environment.Secrets = map[string]string{
		AuthorizedKeysSecret: base64.StdEncoding.EncodeToString([]byte(in.AuthorizedKeys)),
	}

	request := &api.Request{
		Test: api.Test{FMF: &api.TestFMF{
			URL:  b.cfg.ReserveURL,
			Ref:  ref,
			Name: b.cfg.ReservePlan,
		}},
		Environments: []*api.Environment{environment},
	}

	if in.WorkerImage != "" {
		request.Settings = &api.RequestSettings{Worker: &api.WorkerSettings{Image: in.WorkerImage}}
	}

	if in.Duration > config.DefaultPipelineTimeout {
		request.EnsurePipeline().Timeout = in.Duration
	}

	return request, nil
}

// RunInput describes an ad-hoc script execution via the sanity plan.
type RunInput struct {
	Arch    string
	Compose string
	Pool    string

	Hardware  []string
	Variables []string
	Secrets   []string

	Command []string
}

// BuildRun assembles a request executing an arbitrary command through
// the sanity plan's SCRIPT variable.
func (b *Builder) BuildRun(in RunInput) (*api.Request, error) {
	environment := &api.Environment{
		Arch: in.Arch,
		Pool: in.Pool,
	}

	if in.Compose != "" {
		environment.OS = &api.OSImage{Compose: in.Compose}
	}

	if len(in.Secrets) > 0 {
		secrets, err := options.OptionsToDict("environment secrets", in.Secrets)
		if err != nil {
			return nil, err
		}
		environment.Secrets = secrets
	}

	variables, err := options.OptionsToDict("environment variables", in.Variables)
	if err != nil {
		return nil, err
	}

	if len(in.Hardware) > 0 {
		hardware, err := options.HWConstraints(in.Hardware)
		if err != nil {
			return nil, err
		}
		environment.Hardware = hardware
	}

	variables["SCRIPT"] = strings.Join(in.Command, " ")
	environment.Variables = variables

	return &api.Request{
		Test: api.Test{FMF: &api.TestFMF{
			URL:  b.cfg.TestsGitURL,
			Ref:  "main",
			Name: b.cfg.SanityPlan,
		}},
		Environments: []*api.Environment{environment},
	}, nil
}
