// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package listing

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

type fakeClient struct {
	requests  map[string]*api.RequestStatus
	listed    []*api.RequestStatus
	artifacts map[string]string
	filters   []transport.ListFilter
}

func (c *fakeClient) Get(_ context.Context, id string, _ transport.GetOptions) (*api.RequestStatus, error) {
	if request, ok := c.requests[id]; ok {
		return request, nil
	}
	return nil, &cerrors.NotFoundError{ID: id}
}

func (c *fakeClient) List(_ context.Context, filter transport.ListFilter) ([]*api.RequestStatus, error) {
	c.filters = append(c.filters, filter)
	var matching []*api.RequestStatus
	for _, request := range c.listed {
		if request.State == filter.State {
			matching = append(matching, request)
		}
	}
	return matching, nil
}

func (c *fakeClient) FetchArtifact(_ context.Context, url string) (string, error) {
	return c.artifacts[url], nil
}

func listedRequest(id, state, created string) *api.RequestStatus {
	return &api.RequestStatus{
		ID:      id,
		State:   state,
		Created: created,
		Test: api.Test{FMF: &api.TestFMF{
			URL: "https://github.com/example/repo",
			Ref: "main",
		}},
		EnvironmentsRequested: []*api.Environment{
			{Arch: "x86_64", OS: &api.OSImage{Compose: "Fedora-40"}},
		},
	}
}

func TestParseAge(t *testing.T) {
	age, err := ParseAge("12h")
	require.NoError(t, err)
	require.Equal(t, Age{Value: 12, Unit: "h"}, age)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.Equal(t, "2024-05-01T00:00:00", age.QueryValue(now))

	for _, invalid := range []string{"", "d", "12", "12w", "-1d", "xd"} {
		_, err := ParseAge(invalid)
		require.Error(t, err, invalid)
	}
}

func TestExtractUUID(t *testing.T) {
	const id = "11111111-2222-3333-4444-555555555555"

	extracted, err := ExtractUUID(id)
	require.NoError(t, err)
	require.Equal(t, id, extracted)

	extracted, err = ExtractUUID("https://artifacts.example.com/" + id + "/pipeline.log")
	require.NoError(t, err)
	require.Equal(t, id, extracted)

	_, err = ExtractUUID("not-an-id")
	require.Error(t, err)
}

func TestFetchByIDsPreservesOrderAndSkipsUnknown(t *testing.T) {
	first := listedRequest("11111111-2222-3333-4444-555555555555", api.StateComplete, "2024-05-01T10:00:00")
	second := listedRequest("22222222-2222-3333-4444-555555555555", api.StateRunning, "2024-05-01T11:00:00")
	client := &fakeClient{requests: map[string]*api.RequestStatus{
		first.ID:  first,
		second.ID: second,
	}}

	requests, err := FetchByIDs(context.Background(), client, []string{
		first.ID,
		"33333333-2222-3333-4444-555555555555",
		second.ID,
	}, transport.GetOptions{})
	require.NoError(t, err)
	require.Len(t, requests, 2)
	require.Equal(t, first.ID, requests[0].ID)
	require.Equal(t, second.ID, requests[1].ID)
}

func TestFetchByIDsRejectsInvalidID(t *testing.T) {
	_, err := FetchByIDs(context.Background(), &fakeClient{}, []string{"garbage"}, transport.GetOptions{})
	require.Error(t, err)
}

func TestFetchByStates(t *testing.T) {
	client := &fakeClient{listed: []*api.RequestStatus{
		listedRequest("11111111-2222-3333-4444-555555555555", api.StateRunning, "2024-05-01T10:00:00"),
		listedRequest("22222222-2222-3333-4444-555555555555", api.StateQueued, "2024-05-01T11:00:00"),
	}}

	requests, err := FetchByStates(context.Background(), client, []string{api.StateQueued, api.StateRunning}, transport.ListFilter{
		Authenticated: true,
	})
	require.NoError(t, err)
	require.Len(t, requests, 2)
	require.Equal(t, api.StateQueued, requests[0].State)
	require.Equal(t, api.StateRunning, requests[1].State)
	require.Len(t, client.filters, 2)
	require.True(t, client.filters[0].Authenticated)
}

func TestShortenGitURL(t *testing.T) {
	label, path := shortenGitURL("https://github.com/example/repo")
	require.Equal(t, "github", label)
	require.Equal(t, "example/repo", path)

	label, path = shortenGitURL("https://*****@gitlab.com/redhat/example")
	require.Equal(t, "gitlab-rh", label)
	require.Equal(t, "example", path)

	label, path = shortenGitURL("https://example.com/repo")
	require.Empty(t, label)
	require.Equal(t, "https://example.com/repo", path)
}

func TestEnvSummaries(t *testing.T) {
	environments := []*api.Environment{
		{Arch: "x86_64", OS: &api.OSImage{Compose: "Fedora-40"}},
		{Arch: "x86_64", OS: &api.OSImage{Compose: "Fedora-40"}},
		{Arch: "aarch64"},
		{Arch: "s390x", OS: &api.OSImage{Compose: "RHEL-9.4.0-Nightly-Extremely-Long-Compose"}},
	}

	summaries := envSummaries(environments, maxTableComposeLength)
	require.Equal(t, []string{
		" x86_64 (Fedora-40)",
		"aarch64 (container)",
		"  s390x (<too-long>)",
	}, summaries)
}

func TestStateIcon(t *testing.T) {
	request := listedRequest("1", api.StateQueued, "")
	require.Equal(t, "⌛️", stateIcon(request))

	request.State = api.StateComplete
	request.Result = &api.Result{Overall: api.ResultPassed}
	require.Equal(t, "✅", stateIcon(request))

	request.Result.Overall = api.ResultSkipped
	require.Equal(t, "⤼", stateIcon(request))

	request.State = api.StateCancelRequested
	require.Equal(t, "🚫", stateIcon(request))
}

func TestRanch(t *testing.T) {
	require.Equal(t, "redhat", ranch("https://artifacts.osci.redhat.com/1"))
	require.Equal(t, "public", ranch("https://artifacts.dev.testing-farm.io/1"))
	require.Equal(t, "<unknown>", ranch(artifactsUnavailable))
	require.Equal(t, "<unrecognized ranch>", ranch("https://example.com/1"))
}

func TestStartedAndFinishedTimes(t *testing.T) {
	queued := 60.0
	ran := 30.0
	request := listedRequest("1", api.StateComplete, "2024-05-01T10:00:00")
	request.QueuedTime = &queued
	request.RunTime = &ran

	started, ok := startedTime(request)
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 5, 1, 10, 1, 0, 0, time.UTC), started)

	finished, ok := finishedTime(request)
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 5, 1, 10, 1, 30, 0, time.UTC), finished)

	request.State = api.StateRunning
	_, ok = finishedTime(request)
	require.False(t, ok)
}

func TestRenderTableSortsNewestFirst(t *testing.T) {
	older := listedRequest("11111111-2222-3333-4444-555555555555", api.StateRunning, "2024-05-01T10:00:00")
	newer := listedRequest("22222222-2222-3333-4444-555555555555", api.StateQueued, "2024-05-02T10:00:00")
	newer.Test.FMF.Ref = "0123456789012345678901234567890123456789"

	var buf bytes.Buffer
	RenderTable(&buf, []*api.RequestStatus{older, newer}, RenderOptions{ShowTime: true, ShowUTC: true})

	out := buf.String()
	require.Less(t, bytes.Index(buf.Bytes(), []byte(newer.ID)), bytes.Index(buf.Bytes(), []byte(older.ID)))
	require.Contains(t, out, "github")
	require.Contains(t, out, "(01234567)")
	require.Contains(t, out, "Fedora-40")
}

func TestRenderTableTokenIDColumn(t *testing.T) {
	request := listedRequest("11111111-2222-3333-4444-555555555555", api.StateQueued, "2024-05-01T10:00:00")
	request.TokenID = "aaaaaaaa-2222-3333-4444-555555555555"

	var buf bytes.Buffer
	RenderTable(&buf, []*api.RequestStatus{request}, RenderOptions{ShowTokenID: true})
	require.Contains(t, buf.String(), request.TokenID)
}

func reservationRequest(id, state string) *api.RequestStatus {
	request := listedRequest(id, state, "2024-05-01T10:00:00")
	request.EnvironmentsRequested[0].Variables = map[string]string{"TF_RESERVATION_DURATION": "30"}
	request.Run = &api.Run{Artifacts: "https://artifacts.example.com/" + id}
	return request
}

func TestRenderReservationTable(t *testing.T) {
	active := reservationRequest("11111111-2222-3333-4444-555555555555", api.StateRunning)
	done := reservationRequest("22222222-2222-3333-4444-555555555555", api.StateComplete)
	plain := listedRequest("33333333-2222-3333-4444-555555555555", api.StateRunning, "2024-05-01T10:00:00")

	client := &fakeClient{artifacts: map[string]string{
		active.ArtifactsURL() + "/pipeline.log": "Guest is ready, connect via root@10.0.0.7",
	}}

	var buf bytes.Buffer
	err := RenderReservationTable(context.Background(), &buf, client, []*api.RequestStatus{active, done, plain}, RenderOptions{ShowUTC: true})
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, active.ID)
	require.NotContains(t, out, done.ID)
	require.NotContains(t, out, plain.ID)
	require.Contains(t, out, "root@10.0.0.7")
}

func TestRenderReservationTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	err := RenderReservationTable(context.Background(), &buf, &fakeClient{}, nil, RenderOptions{})
	require.NoError(t, err)
	require.Contains(t, buf.String(), "No active reservations found")
}

func TestRenderText(t *testing.T) {
	queued := 60.0
	ran := 90.5
	request := listedRequest("11111111-2222-3333-4444-555555555555", api.StateComplete, "2024-05-01T10:00:00")
	request.QueuedTime = &queued
	request.RunTime = &ran
	request.Result = &api.Result{Overall: api.ResultPassed, Summary: "all good"}
	request.Run = &api.Run{Artifacts: "https://artifacts.example.com/1"}

	var buf bytes.Buffer
	RenderText(&buf, []*api.RequestStatus{request}, RenderOptions{ShowUTC: true})

	out := buf.String()
	require.Contains(t, out, "Artifacts    https://artifacts.example.com/1")
	require.Contains(t, out, "State        complete")
	require.Contains(t, out, "Result       passed")
	require.Contains(t, out, "Summary      all good")
	require.Contains(t, out, "Queued Time  1m 0.00s")
	require.Contains(t, out, "Run Time     1m 30.50s")
	require.Contains(t, out, "Environment 1")
	require.Contains(t, out, "Fedora-40")
}

func TestRenderTextBrief(t *testing.T) {
	request := listedRequest("11111111-2222-3333-4444-555555555555", api.StateQueued, "2024-05-01T10:00:00")

	var buf bytes.Buffer
	RenderText(&buf, []*api.RequestStatus{request}, RenderOptions{Brief: true, ShowUTC: true})

	out := buf.String()
	require.NotContains(t, out, "Queued Time")
	require.NotContains(t, out, "Environment 1")
}

func TestRenderJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderJSON(&buf, nil))
	require.Equal(t, "[]\n", buf.String())
}

func TestRenderYAML(t *testing.T) {
	request := listedRequest("11111111-2222-3333-4444-555555555555", api.StateQueued, "2024-05-01T10:00:00")

	var buf bytes.Buffer
	require.NoError(t, RenderYAML(&buf, []*api.RequestStatus{request}))
	require.Contains(t, buf.String(), "state: queued")
}

func TestFormatSeconds(t *testing.T) {
	require.Equal(t, notAvailable, formatSeconds(nil))
	value := 125.25
	require.Equal(t, "2m 5.25s", formatSeconds(&value))
}
