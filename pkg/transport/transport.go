// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

// Package transport abstracts the ways of talking to the Testing Farm API.
// The interface strictly only uses farmcli data structures.
package transport

import (
	"context"

	"github.com/facebookincubator/farmcli/pkg/api"
)

// ListFilter narrows a request listing.
type ListFilter struct {
	State         string
	CreatedAfter  string
	CreatedBefore string
	Ranch         string
	TokenID       string
	// Authenticated sends the bearer token, required when listing own
	// requests.
	Authenticated bool
	// Internal targets the internal API endpoint (exposes secrets).
	Internal bool
}

// GetOptions select the endpoint variant of a single-request fetch.
type GetOptions struct {
	Authenticated bool
	Internal      bool
}

// Transport talks to the Testing Farm service.
type Transport interface {
	Submit(ctx context.Context, request *api.Request) (*api.SubmitResponse, error)
	Get(ctx context.Context, id string, opts GetOptions) (*api.RequestStatus, error)
	Cancel(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]*api.RequestStatus, error)
	Whoami(ctx context.Context) (*api.Whoami, error)
	Composes(ctx context.Context, ranch string) ([]api.Compose, error)
	Encrypt(ctx context.Context, payload *api.EncryptPayload) (string, error)

	// FetchArtifact retrieves a plain text/XML document published under
	// the artifacts URL of a request. Unauthenticated.
	FetchArtifact(ctx context.Context, url string) (string, error)
	// FetchArtifactRaced is FetchArtifact with 404 added to the retry
	// forcelist, for documents that appear shortly after completion.
	FetchArtifactRaced(ctx context.Context, url string) (string, error)
	// PublicIP asks the IP echo service for the workstation's address.
	PublicIP(ctx context.Context) (string, error)
}
