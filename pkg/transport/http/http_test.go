// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/facebookincubator/farmcli/pkg/api"
	"github.com/facebookincubator/farmcli/pkg/cerrors"
	"github.com/facebookincubator/farmcli/pkg/transport"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:            srv.URL,
		Token:              "secret-token",
		OnboardingDocs:     "https://docs.example.com/onboarding",
		IssueTracker:       "https://issues.example.com",
		PublicIPCheckerURL: srv.URL + "/ip",
		Timeout:            5 * time.Second,
		Retries:            0,
	})
}

func TestSubmit(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v0.1/requests", r.URL.Path)
		require.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		io.WriteString(w, `{"id": "11111111-2222-3333-4444-555555555555"}`)
	}))

	resp, err := client.Submit(context.Background(), &api.Request{})
	require.NoError(t, err)
	require.Equal(t, "11111111-2222-3333-4444-555555555555", resp.ID)
}

func TestSubmitValidationError(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"message": "unsupported compose"}`)
	}))

	_, err := client.Submit(context.Background(), &api.Request{})
	var validationErr *cerrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "unsupported compose", validationErr.Message)
	require.Equal(t, "https://issues.example.com", validationErr.Tracker)
}

func TestSubmitAuthError(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.Submit(context.Background(), &api.Request{})
	var authErr *cerrors.AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, "https://docs.example.com/onboarding", authErr.Docs)
}

func TestGet(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v0.1/requests/abc", r.URL.Path)
		require.Empty(t, r.Header.Get("Authorization"))
		io.WriteString(w, `{"id": "abc", "state": "running"}`)
	}))

	status, err := client.Get(context.Background(), "abc", transport.GetOptions{})
	require.NoError(t, err)
	require.Equal(t, api.StateRunning, status.State)
}

func TestGetNotFound(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.Get(context.Background(), "missing", transport.GetOptions{})
	var notFound *cerrors.NotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "missing", notFound.ID)
}

func TestGetForbidden(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := client.Get(context.Background(), "abc", transport.GetOptions{Authenticated: true})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestGetInternalEndpoint(t *testing.T) {
	var hitInternal bool
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hitInternal = true
		io.WriteString(w, `{"id": "abc", "state": "complete"}`)
	}))
	defer internal.Close()

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("public endpoint must not be hit")
	}))
	client.cfg.InternalBaseURL = internal.URL

	_, err := client.Get(context.Background(), "abc", transport.GetOptions{Internal: true})
	require.NoError(t, err)
	require.True(t, hitInternal)
}

func TestCancelOutcomes(t *testing.T) {
	tests := []struct {
		status int
		check  func(t *testing.T, err error)
	}{
		{http.StatusOK, func(t *testing.T, err error) { require.NoError(t, err) }},
		{http.StatusNoContent, func(t *testing.T, err error) { require.ErrorIs(t, err, ErrAlreadyCanceled) }},
		{http.StatusConflict, func(t *testing.T, err error) { require.ErrorIs(t, err, ErrAlreadyFinished) }},
		{http.StatusNotFound, func(t *testing.T, err error) {
			var notFound *cerrors.NotFoundError
			require.ErrorAs(t, err, &notFound)
		}},
		{http.StatusUnauthorized, func(t *testing.T, err error) {
			var authErr *cerrors.AuthError
			require.ErrorAs(t, err, &authErr)
		}},
	}

	for _, tt := range tests {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodDelete, r.Method)
			w.WriteHeader(tt.status)
		}))
		tt.check(t, client.Cancel(context.Background(), "abc"))
	}
}

func TestListFilterParams(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		require.Equal(t, "2026-01-02T15:04:05", query.Get("created_after"))
		require.Equal(t, "running", query.Get("state"))
		require.Equal(t, "public", query.Get("ranch"))
		require.Equal(t, "tok-1", query.Get("token_id"))
		require.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		io.WriteString(w, `[{"id": "a"}, {"id": "b"}]`)
	}))

	requests, err := client.List(context.Background(), transport.ListFilter{
		CreatedAfter:  "2026-01-02T15:04:05",
		State:         "running",
		Ranch:         "public",
		TokenID:       "tok-1",
		Authenticated: true,
	})
	require.NoError(t, err)
	require.Len(t, requests, 2)
}

func TestWhoami(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v0.1/whoami", r.URL.Path)
		io.WriteString(w, `{"token": {"id": "tok-1", "name": "ci", "ranch": "redhat"}}`)
	}))

	whoami, err := client.Whoami(context.Background())
	require.NoError(t, err)
	require.Equal(t, "redhat", whoami.Token.Ranch)
}

func TestComposes(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v0.1/composes/public", r.URL.Path)
		io.WriteString(w, `{"composes": [{"name": "Fedora-40"}, {"name": "CentOS-Stream-9"}]}`)
	}))

	composes, err := client.Composes(context.Background(), "public")
	require.NoError(t, err)
	require.Len(t, composes, 2)
	require.Equal(t, "Fedora-40", composes[0].Name)
}

func TestEncrypt(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v0.1/secrets/encrypt", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		io.WriteString(w, "encrypted-blob\n")
	}))

	ciphertext, err := client.Encrypt(context.Background(), &api.EncryptPayload{Message: "hunter2"})
	require.NoError(t, err)
	require.Equal(t, "encrypted-blob", ciphertext)
}

func TestFetchArtifactReturnsBodyOnAnyStatus(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, "not here yet")
	}))

	body, err := client.FetchArtifact(context.Background(), client.cfg.BaseURL+"/log.txt")
	require.NoError(t, err)
	require.Equal(t, "not here yet", body)
}

func TestPublicIP(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "203.0.113.7\n")
	}))

	ip, err := client.PublicIP(context.Background())
	require.NoError(t, err)
	require.Equal(t, "203.0.113.7", ip)
}
