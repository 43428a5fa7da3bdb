// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/facebookincubator/farmcli/pkg/cerrors"
	"github.com/facebookincubator/farmcli/pkg/config"
)

func testSettings() *config.Settings {
	return &config.Settings{
		APIURL:         "https://api.example.test",
		InternalAPIURL: "https://internal.example.test",
		IssueTracker:   "https://issues.example.test",
		OnboardingDocs: "https://docs.example.test",
		StatusPage:     "https://status.example.test",
	}
}

func runCLI(t *testing.T, cfg *config.Settings, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := CLIMain(context.Background(), cfg, args, &out)
	return out.String(), err
}

func TestCLIMainMissingVerb(t *testing.T) {
	out, err := runCLI(t, testSettings())
	require.Error(t, err)
	require.Contains(t, out, "Usage:")
}

func TestCLIMainUnknownVerb(t *testing.T) {
	_, err := runCLI(t, testSettings(), "frobnicate")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown verb")
}

func TestCLIMainVersion(t *testing.T) {
	out, err := runCLI(t, testSettings(), "version")
	require.NoError(t, err)
	require.Contains(t, out, Version)
}

func TestCLIMainHelp(t *testing.T) {
	out, err := runCLI(t, testSettings(), "help")
	require.NoError(t, err)
	require.Contains(t, out, "farmcli [verb] [flags]")
}

func TestVerbsRequireToken(t *testing.T) {
	cfg := testSettings()
	for _, args := range [][]string{
		{"request", "--git-url", "https://example.test/repo"},
		{"cancel", "00000000-0000-4000-8000-000000000000"},
		{"encrypt", "secret-message"},
	} {
		_, err := runCLI(t, cfg, args...)
		require.Error(t, err, "verb %s", args[0])
		require.Contains(t, err.Error(), "no API token found")
	}
}

func TestCancelExpectsSingleID(t *testing.T) {
	_, err := runCLI(t, testSettings(), "cancel")
	require.Error(t, err)
	require.Contains(t, err.Error(), "exactly one request ID")

	_, err = runCLI(t, testSettings(), "cancel", "one", "two")
	require.Error(t, err)
	require.Contains(t, err.Error(), "exactly one request ID")
}

func TestWatchRequiresID(t *testing.T) {
	_, err := runCLI(t, testSettings(), "watch")
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing request ID")
}

func TestRunRequiresCommand(t *testing.T) {
	_, err := runCLI(t, testSettings(), "run")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no command to run")
}

func TestComposesRequiresTokenOrRanch(t *testing.T) {
	_, err := runCLI(t, testSettings(), "composes")
	require.Error(t, err)
	require.Contains(t, err.Error(), "Cannot determine ranch")
}

func TestEncryptExpectsSingleMessage(t *testing.T) {
	cfg := testSettings()
	cfg.APIToken = "token"
	_, err := runCLI(t, cfg, "encrypt")
	require.Error(t, err)
	require.Contains(t, err.Error(), "exactly one message")
}

func TestListFlagConflicts(t *testing.T) {
	id := "00000000-0000-4000-8000-000000000000"
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "id with mine",
			args: []string{"list", "--id", id, "--mine"},
			want: "conflicts with '--mine'",
		},
		{
			name: "id with age",
			args: []string{"list", "--id", id, "--age", "2d"},
			want: "conflicts with '--age'",
		},
		{
			name: "id with min-age",
			args: []string{"list", "--id", id, "--min-age", "1h"},
			want: "conflicts with '--min-age'",
		},
		{
			name: "id with reserve",
			args: []string{"list", "--id", id, "--reserve"},
			want: "cannot be used with '--id'",
		},
		{
			name: "reserve with explicit format",
			args: []string{"list", "--reserve", "--format", "json"},
			want: "specialized table",
		},
		{
			name: "show-secrets without id",
			args: []string{"list", "--show-secrets"},
			want: "only with the '--id' option",
		},
		{
			name: "ranch with mine",
			args: []string{"list", "--ranch", "public"},
			want: "conflicts with '--mine'",
		},
		{
			name: "token-id not uuid4",
			args: []string{"list", "--all", "--token-id", "not-a-uuid"},
			want: "must be a valid UUID4",
		},
		{
			name: "token-id with explicit all",
			args: []string{"list", "--all", "--token-id", id},
			want: "conflicts with '--mine' and '--all'",
		},
		{
			name: "invalid format",
			args: []string{"list", "--format", "xml"},
			want: "unsupported format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, testSettings(), tt.args...)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestListRequiresTokenForMine(t *testing.T) {
	_, err := runCLI(t, testSettings(), "list")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no API token found")
}

func TestRequestSanityConflicts(t *testing.T) {
	cfg := testSettings()
	cfg.APIToken = "token"
	_, err := runCLI(t, cfg, "request", "--sanity", "--git-url", "https://example.test/repo")
	require.Error(t, err)
	require.Contains(t, err.Error(), "mutually exclusive")
}

func TestExitErrorCodes(t *testing.T) {
	var exitErr *cerrors.ExitError

	_, err := runCLI(t, testSettings(), "frobnicate")
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, cerrors.ExitCodeUserError, exitErr.Code)
}
