// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package reserve

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/facebookincubator/farmcli/pkg/api"
	"github.com/facebookincubator/farmcli/pkg/cerrors"
	"github.com/facebookincubator/farmcli/pkg/transport"
)

const provisioningLog = `[pre-artifact-installation] setting up
Guest is being provisioned
`

const readyLog = `[pre-artifact-installation] setting up
Guest is being provisioned
Guest is ready ssh root@10.0.170.20
execute task #1
[+] Reservation tick: 1
`

func TestClassifyLogProgression(t *testing.T) {
	tests := []struct {
		log   string
		state string
		guest string
	}{
		{"pipeline starting\n", StateCreating, ""},
		{"[pre-artifact-installation] installing\n", StatePreparing, ""},
		{provisioningLog, StateProvisioning, ""},
		{readyLog, StateReady, "10.0.170.20"},
		// address seen but the reservation task has not started yet
		{"Guest is ready ssh root@10.0.170.20\n", StateProvisioning, ""},
	}

	for _, tt := range tests {
		progress, err := ClassifyLog(tt.log)
		require.NoError(t, err, tt.log)
		require.Equal(t, tt.state, progress.State, tt.log)
		require.Equal(t, tt.guest, progress.Guest, tt.log)
	}
}

func TestClassifyLogHostname(t *testing.T) {
	log := "Guest is ready ssh root@ec2-18-117-99-99.us-east-2.compute.amazonaws.com\nexecute task #1\n"
	progress, err := ClassifyLog(log)
	require.NoError(t, err)
	require.Equal(t, StateReady, progress.State)
	require.Equal(t, "ec2-18-117-99-99.us-east-2.compute.amazonaws.com", progress.Guest)
}

func TestClassifyLogTestingError(t *testing.T) {
	_, err := ClassifyLog("Result of testing: ERROR\n")
	require.ErrorIs(t, err, ErrReservationFailed)
}

func TestGuestAddresses(t *testing.T) {
	log := "Guest is ready ssh root@10.0.0.1\nGuest is ready ssh root@10.0.0.2\n"
	require.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, GuestAddresses(log))
	require.Empty(t, GuestAddresses("nothing here"))
}

// scriptedClient replays statuses and serves one pipeline log per fetch.
type scriptedClient struct {
	statuses []*api.RequestStatus
	logs     []string
	getCalls int
	logCalls int
}

func (c *scriptedClient) Get(ctx context.Context, id string, opts transport.GetOptions) (*api.RequestStatus, error) {
	index := c.getCalls
	if index >= len(c.statuses) {
		index = len(c.statuses) - 1
	}
	c.getCalls++
	return c.statuses[index], nil
}

func (c *scriptedClient) FetchArtifact(ctx context.Context, url string) (string, error) {
	index := c.logCalls
	if index >= len(c.logs) {
		index = len(c.logs) - 1
	}
	c.logCalls++
	return c.logs[index], nil
}

func status(state string) *api.RequestStatus {
	request := &api.RequestStatus{ID: "req-1", State: state}
	if state == api.StateRunning {
		request.Run = &api.Run{Artifacts: "https://artifacts.example.com/req-1"}
	}
	return request
}

func newTestWaiter(client Client, out *bytes.Buffer) *Waiter {
	return NewWaiter(client, out, Config{
		IssueTracker: "https://issues.example.com",
		StatusPage:   "https://status.example.com",
		Tick:         time.Millisecond,
	})
}

func TestWaitUntilGuestReady(t *testing.T) {
	client := &scriptedClient{
		statuses: []*api.RequestStatus{
			status(api.StateNew),
			status(api.StateQueued),
			status(api.StateRunning),
		},
		logs: []string{"starting\n", provisioningLog, readyLog},
	}

	var out bytes.Buffer
	guest, err := newTestWaiter(client, &out).Wait(context.Background(), "req-1")
	require.NoError(t, err)
	require.Equal(t, "10.0.170.20", guest)
	require.Contains(t, out.String(), StateProvisioning)
}

func TestWaitFailsWhenRequestFinishesEarly(t *testing.T) {
	client := &scriptedClient{statuses: []*api.RequestStatus{status(api.StateError)}}

	var out bytes.Buffer
	_, err := newTestWaiter(client, &out).Wait(context.Background(), "req-1")
	var exitErr *cerrors.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, cerrors.ExitCodeUserError, exitErr.Code)
	require.Contains(t, exitErr.Msg, "reservation failed")
}

func TestWaitFailsOnEmptyPipelineLog(t *testing.T) {
	client := &scriptedClient{
		statuses: []*api.RequestStatus{status(api.StateRunning)},
		logs:     []string{""},
	}

	var out bytes.Buffer
	_, err := newTestWaiter(client, &out).Wait(context.Background(), "req-1")
	require.ErrorContains(t, err, "pipeline log was empty")
	require.ErrorContains(t, err, "https://issues.example.com")
}

func TestWaitFailsOnTestingError(t *testing.T) {
	client := &scriptedClient{
		statuses: []*api.RequestStatus{status(api.StateRunning)},
		logs:     []string{"Result of testing: ERROR\n"},
	}

	var out bytes.Buffer
	_, err := newTestWaiter(client, &out).Wait(context.Background(), "req-1")
	require.ErrorContains(t, err, "failed to run reservation task")
	require.ErrorContains(t, err, "https://status.example.com")
}

func TestHandoverSingleGuest(t *testing.T) {
	client := &scriptedClient{logs: []string{readyLog}}

	var out bytes.Buffer
	err := newTestWaiter(client, &out).Handover(context.Background(), status(api.StateRunning), false)
	require.NoError(t, err)
	require.Contains(t, out.String(), "ssh root@10.0.170.20")
}

func TestHandoverMultipleGuests(t *testing.T) {
	log := "Guest is ready ssh root@10.0.0.1\nGuest is ready ssh root@10.0.0.2\n"
	client := &scriptedClient{logs: []string{log}}

	var out bytes.Buffer
	// autoconnect is ignored with several guests
	err := newTestWaiter(client, &out).Handover(context.Background(), status(api.StateRunning), true)
	require.NoError(t, err)
	require.Contains(t, out.String(), "ssh root@10.0.0.1")
	require.Contains(t, out.String(), "ssh root@10.0.0.2")
}

func TestHandoverNoGuests(t *testing.T) {
	client := &scriptedClient{logs: []string{"no guests in sight\n"}}

	var out bytes.Buffer
	err := newTestWaiter(client, &out).Handover(context.Background(), status(api.StateRunning), false)
	require.ErrorContains(t, err, "no guests found to connect to")
}
