// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package request

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/facebookincubator/farmcli/pkg/api"
)

func previousRequest() *api.RequestStatus {
	return &api.RequestStatus{
		ID:    "11111111-2222-3333-4444-555555555555",
		State: api.StateComplete,
		Test: api.Test{FMF: &api.TestFMF{
			URL: "https://gitlab.com/example/repo",
			Ref: "main",
		}},
		EnvironmentsRequested: []*api.Environment{
			{Arch: "x86_64", OS: &api.OSImage{Compose: "Fedora-40"}},
		},
		Result: &api.Result{Overall: api.ResultFailed},
		Run:    &api.Run{Artifacts: "https://artifacts.example.com/1"},
	}
}

func TestBuildRestartKeepsOnlyTestAndEnvironments(t *testing.T) {
	request, err := testBuilder().BuildRestart(previousRequest(), RestartInput{})
	require.NoError(t, err)

	require.Equal(t, "https://gitlab.com/example/repo", request.Test.URL())
	require.Len(t, request.Environments, 1)
	require.Nil(t, request.Settings)
	require.Nil(t, request.User)
}

func TestBuildRestartOverrides(t *testing.T) {
	request, err := testBuilder().BuildRestart(previousRequest(), RestartInput{
		Compose: "CentOS-Stream-9",
		Pool:    "aws",
		GitRef:  "devel",
	})
	require.NoError(t, err)

	require.Equal(t, "devel", request.Test.Ref())
	require.Equal(t, "CentOS-Stream-9", request.Environments[0].OS.Compose)
	require.Equal(t, "aws", request.Environments[0].Pool)
}

func TestBuildRestartDoesNotMutatePrevious(t *testing.T) {
	previous := previousRequest()
	_, err := testBuilder().BuildRestart(previous, RestartInput{GitRef: "devel"})
	require.NoError(t, err)
	require.Equal(t, "main", previous.Test.Ref())
}

func TestBuildRestartPlanOptionsRequireFMF(t *testing.T) {
	previous := previousRequest()
	previous.Test = api.Test{STI: &api.TestSTI{URL: "https://gitlab.com/example/repo", Ref: "main"}}

	_, err := testBuilder().BuildRestart(previous, RestartInput{PlanName: "/plans/basic"})
	require.ErrorContains(t, err, "'tmt' tests")

	_, err = testBuilder().BuildRestart(previous, RestartInput{PlanFilter: "tier:1"})
	require.ErrorContains(t, err, "'tmt' tests")
}

func TestBuildRestartPathOnlyWhenSet(t *testing.T) {
	previous := previousRequest()
	previous.Test.FMF.Path = "/subdir"

	request, err := testBuilder().BuildRestart(previous, RestartInput{})
	require.NoError(t, err)
	require.Equal(t, "/subdir", request.Test.FMF.Path)

	request, err = testBuilder().BuildRestart(previous, RestartInput{Path: "", PathSet: true})
	require.NoError(t, err)
	require.Empty(t, request.Test.FMF.Path)
}

func TestBuildRestartWorkerImageRequiresPipeline(t *testing.T) {
	request, err := testBuilder().BuildRestart(previousRequest(), RestartInput{WorkerImage: "quay.io/example/worker:latest"})
	require.NoError(t, err)
	require.Equal(t, "quay.io/example/worker:latest", request.Settings.Worker.Image)
	require.NotNil(t, request.Settings.Pipeline)
}

func TestBuildRestartReserve(t *testing.T) {
	request, err := testBuilder().BuildRestart(previousRequest(), RestartInput{
		Reserve:             true,
		ReservationDuration: 45,
		AuthorizedKeys:      "ssh-rsa AAA\n",
		WorkstationIP:       "203.0.113.7",
	})
	require.NoError(t, err)

	environment := request.Environments[0]
	require.Contains(t, environment.Secrets, AuthorizedKeysSecret)
	require.Equal(t, "45", environment.Variables[ReservationDurationVariable])
	require.Len(t, environment.Settings.Provisioning.SecurityGroupRulesIngress, 1)
}

func TestBuildRestartNoEnvironments(t *testing.T) {
	previous := previousRequest()
	previous.EnvironmentsRequested = nil

	_, err := testBuilder().BuildRestart(previous, RestartInput{})
	require.ErrorContains(t, err, "no environments")
}

func TestBuildReserveRequest(t *testing.T) {
	request, err := testBuilder().BuildReserve(ReserveInput{
		Arch:           "x86_64",
		Compose:        "Fedora-Rawhide",
		Duration:       30,
		AuthorizedKeys: "ssh-rsa AAA\n",
		WorkstationIP:  "203.0.113.7",
	})
	require.NoError(t, err)

	require.Equal(t, "/testing-farm/reserve", request.Test.FMF.Name)
	require.Equal(t, "main", request.Test.Ref())

	environment := request.Environments[0]
	require.Equal(t, "false", environment.Settings.Provisioning.Tags["ArtemisUseSpot"])
	require.Equal(t, "30", environment.Variables[ReservationDurationVariable])
	require.Len(t, environment.Settings.Provisioning.SecurityGroupRulesIngress, 1)
	require.Equal(t, "203.0.113.7/32", environment.Settings.Provisioning.SecurityGroupRulesIngress[0].CIDR)
	// default duration fits into the default pipeline timeout
	require.Nil(t, request.Settings)
}

func TestBuildReserveSkipWorkstationAccess(t *testing.T) {
	request, err := testBuilder().BuildReserve(ReserveInput{
		Arch:                  "x86_64",
		Compose:               "Fedora-Rawhide",
		Duration:              30,
		AuthorizedKeys:        "ssh-rsa AAA\n",
		SkipWorkstationAccess: true,
	})
	require.NoError(t, err)
	require.Empty(t, request.Environments[0].Settings.Provisioning.SecurityGroupRulesIngress)
}

func TestBuildReserveLongDurationRaisesTimeout(t *testing.T) {
	request, err := testBuilder().BuildReserve(ReserveInput{
		Arch:           "x86_64",
		Compose:        "Fedora-Rawhide",
		Duration:       24 * 60,
		AuthorizedKeys: "ssh-rsa AAA\n",
		WorkstationIP:  "203.0.113.7",
	})
	require.NoError(t, err)
	require.Equal(t, 24*60, request.Settings.Pipeline.Timeout)
}

func TestBuildRunScriptVariable(t *testing.T) {
	request, err := testBuilder().BuildRun(RunInput{
		Arch:    "x86_64",
		Command: []string{"cat", "/etc/os-release"},
	})
	require.NoError(t, err)

	require.Equal(t, "/testing-farm/sanity", request.Test.FMF.Name)
	require.Equal(t, "https://gitlab.com/testing-farm/tests", request.Test.URL())
	require.Equal(t, "cat /etc/os-release", request.Environments[0].Variables["SCRIPT"])
}
