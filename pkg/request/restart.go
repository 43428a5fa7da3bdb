// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package request

import (
	"github.com/facebookincubator/farmcli/pkg/api"
	"github.com/facebookincubator/farmcli/pkg/cerrors"
	"github.com/facebookincubator/farmcli/pkg/options"
)

// RestartInput carries the overrides a restart may apply on top of the
// original request.
type RestartInput struct {
	Compose  string
	Pool     string
	GitURL   string
	GitRef   string
	MergeSHA string

	Hardware []string
	Tags     []string

	PlanName   string
	PlanFilter string
	TestName   string
	TestFilter string
	// Path is applied only when PathSet, an empty path is a valid
	// override.
	Path    string
	PathSet bool

	TMTDiscover []string
	TMTPrepare  []string
	TMTFinish   []string

	WorkerImage   string
	PipelineType  string
	ParallelLimit int

	Reserve             bool
	ReservationDuration int
	AuthorizedKeys      string
	WorkstationIP       string
}

// BuildRestart derives a fresh request from a previously submitted one.
// Only the test and requested environments survive, everything else is
// rebuilt from the overrides.
func (b *Builder) BuildRestart(previous *api.RequestStatus, in RestartInput) (*api.Request, error) {
	environments := make([]*api.Environment, 0, len(previous.EnvironmentsRequested))
	for _, requested := range previous.EnvironmentsRequested {
		environment := *requested
		environments = append(environments, &environment)
	}
	if len(environments) == 0 {
		return nil, cerrors.Newf("the request has no environments to restart")
	}

	test := cloneTest(previous.Test)
	if test.FMF == nil && test.STI == nil {
		return nil, cerrors.Newf("the request has no test to restart")
	}

	request := &api.Request{
		Test:         test,
		Environments: environments,
	}

	if in.GitURL != "" {
		if test.FMF != nil {
			test.FMF.URL = in.GitURL
		} else {
			test.STI.URL = in.GitURL
		}
	}
	if in.GitRef != "" {
		if test.FMF != nil {
			test.FMF.Ref = in.GitRef
		} else {
			test.STI.Ref = in.GitRef
		}
	}
	if in.MergeSHA != "" {
		if test.FMF == nil {
			return nil, cerrors.Newf("the '--git-merge-sha' option is compatible only with 'tmt' tests")
		}
		test.FMF.MergeSHA = in.MergeSHA
	}
	if in.TestName != "" {
		if test.FMF == nil {
			return nil, cerrors.Newf("the '--test' option is compatible only with 'tmt' tests")
		}
		test.FMF.TestName = in.TestName
	}
	if in.TestFilter != "" {
		if test.FMF == nil {
			return nil, cerrors.Newf("the '--test-filter' option is compatible only with 'tmt' tests")
		}
		test.FMF.TestFilter = in.TestFilter
	}
	if in.PlanName != "" {
		if test.FMF == nil {
			return nil, cerrors.Newf("the '--plan' option is compatible only with 'tmt' tests")
		}
		test.FMF.Name = in.PlanName
	}
	if in.PlanFilter != "" {
		if test.FMF == nil {
			return nil, cerrors.Newf("the '--plan-filter' option is compatible only with 'tmt' tests")
		}
		test.FMF.PlanFilter = in.PlanFilter
	}
	if in.PathSet && test.FMF != nil {
		test.FMF.Path = in.Path
	}

	if in.Compose != "" {
		for _, environment := range environments {
			environment.OS = &api.OSImage{Compose: in.Compose}
		}
	}
	if len(in.Hardware) > 0 {
		hardware, err := options.HWConstraints(in.Hardware)
		if err != nil {
			return nil, err
		}
		for _, environment := range environments {
			environment.Hardware = hardware
		}
	}
	if in.Pool != "" {
		for _, environment := range environments {
			environment.Pool = in.Pool
		}
	}

	if len(in.TMTDiscover) > 0 || len(in.TMTPrepare) > 0 || len(in.TMTFinish) > 0 {
		for _, environment := range environments {
			tmt := environment.EnsureTMT()
			if tmt.ExtraArgs == nil {
				tmt.ExtraArgs = &api.TMTExtraArgs{}
			}
			if len(in.TMTDiscover) > 0 {
				tmt.ExtraArgs.Discover = in.TMTDiscover
			}
			if len(in.TMTPrepare) > 0 {
				tmt.ExtraArgs.Prepare = in.TMTPrepare
			}
			if len(in.TMTFinish) > 0 {
				tmt.ExtraArgs.Finish = in.TMTFinish
			}
		}
	}

	if len(in.Tags) > 0 {
		tags, err := options.OptionsToDict("tags", in.Tags)
		if err != nil {
			return nil, err
		}
		for _, environment := range environments {
			environment.EnsureProvisioning().Tags = tags
		}
	}

	if in.WorkerImage != "" {
		if request.Settings == nil {
			request.Settings = &api.RequestSettings{}
		}
		request.Settings.Worker = &api.WorkerSettings{Image: in.WorkerImage}
		// the API rejects a worker override without a pipeline block
		request.EnsurePipeline()
	}
	if in.PipelineType != "" {
		request.EnsurePipeline().Type = in.PipelineType
	}
	if in.ParallelLimit > 0 {
		request.EnsurePipeline().ParallelLimit = in.ParallelLimit
	}

	if in.Reserve {
		if err := b.addReservations(request, Input{
			AuthorizedKeys:      in.AuthorizedKeys,
			WorkstationIP:       in.WorkstationIP,
			ReservationDuration: in.ReservationDuration,
		}); err != nil {
			return nil, err
		}
	}

	return request, nil
}

func cloneTest(test api.Test) api.Test {
	var clone api.Test
	if test.FMF != nil {
		fmf := *test.FMF
		clone.FMF = &fmf
	}
	if test.STI != nil {
		sti := *test.STI
		clone.STI = &sti
	}
	return clone
}
